// Package input turns raw terminal bytes into per-frame key-down events.
package input

import (
	"bufio"
)

// Control bytes.
const (
	ctrlC  = 0x03
	escape = 0x1b
)

// Input is everything pressed since the previous read.
type Input struct {
	Quit    bool   // Ctrl-C, a lone Esc, or the stream closed
	Up      int    // Arrow presses
	Down    int
	Left    int
	Right   int
	Keys    []byte // Letters, lower-cased, in press order
	Digit   int    // Last digit pressed, -1 if none
	Pressed []byte // Raw bytes
}

// Stream delivers input bytes via a channel.
type Stream struct {
	ch     chan byte
	closed bool
}

// StartStream spawns a goroutine that reads from r and sends bytes to the stream.
func StartStream(r *bufio.Reader) *Stream {
	s := &Stream{ch: make(chan byte, 128)}
	go func() {
		for {
			b, err := r.ReadByte()
			if err != nil {
				close(s.ch)
				return
			}
			s.ch <- b
		}
	}()
	return s
}

// ReadInput drains all available bytes from the stream without blocking.
func ReadInput(s *Stream) Input {
	var buf []byte
drain:
	for !s.closed {
		select {
		case b, ok := <-s.ch:
			if !ok {
				s.closed = true
				break drain
			}
			buf = append(buf, b)
		default:
			break drain
		}
	}

	in := Parse(buf)
	if s.closed {
		in.Quit = true
	}
	return in
}

// Parse decodes one batch of bytes. CSI arrow sequences count as arrows; an
// Esc not followed by '[' quits.
func Parse(buf []byte) Input {
	in := Input{Digit: -1, Pressed: buf}

	for i := 0; i < len(buf); i++ {
		b := buf[i]

		if b == escape {
			if i+2 < len(buf) && buf[i+1] == '[' {
				// CSI sequence: ESC [ <code>
				switch buf[i+2] {
				case 'A':
					in.Up++
				case 'B':
					in.Down++
				case 'C':
					in.Right++
				case 'D':
					in.Left++
				}
				i += 2
				continue
			}
			in.Quit = true
			continue
		}

		switch {
		case b == ctrlC:
			in.Quit = true
		case b >= '0' && b <= '9':
			in.Digit = int(b - '0')
		case b >= 'A' && b <= 'Z':
			in.Keys = append(in.Keys, b+'a'-'A')
		case b >= 'a' && b <= 'z':
			in.Keys = append(in.Keys, b)
		}
	}
	return in
}
