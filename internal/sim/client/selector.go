package client

import (
	"github.com/tomz197/simtuner/internal/controller"
	"github.com/tomz197/simtuner/internal/input"
	"github.com/tomz197/simtuner/internal/sim/config"
	"github.com/tomz197/simtuner/internal/sim/host"
)

// selector tracks the slider row under the cursor and turns key presses
// into host commands.
type selector struct {
	index int
}

// commands translates one frame of input. Letters become presses (R resets),
// arrows move the cursor or nudge the selected slider and digits jump it.
func (s *selector) commands(in input.Input, rows []controller.Row) []host.Command {
	var cmds []host.Command

	for _, k := range in.Keys {
		if k == 'r' {
			cmds = append(cmds, host.Command{Kind: host.CmdReset})
			continue
		}
		for _, row := range rows {
			if row.Key == k {
				cmds = append(cmds, host.Command{Kind: host.CmdPress, Param: row.ID})
				break
			}
		}
	}

	if len(rows) == 0 {
		return cmds
	}
	s.index = ((s.index+in.Down-in.Up)%len(rows) + len(rows)) % len(rows)
	row := rows[s.index]

	value, moved := row.Value, false
	if in.Digit >= 0 {
		value = row.Min + (row.Max-row.Min)*float64(in.Digit)/config.JumpDivisions
		moved = true
	}
	if net := in.Right - in.Left; net != 0 {
		value += float64(net) * nudge(row)
		moved = true
	}
	if moved {
		value = min(max(value, row.Min), row.Max)
		cmds = append(cmds, host.Command{Kind: host.CmdSlide, Param: row.ID, Value: value})
	}
	return cmds
}

// nudge is the Left/Right increment for a row.
func nudge(row controller.Row) float64 {
	if row.Integer {
		return 1
	}
	return (row.Max - row.Min) / config.NudgeDivisions
}
