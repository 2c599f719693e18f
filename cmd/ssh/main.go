package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/activeterm"
	"github.com/charmbracelet/wish/logging"

	envconfig "github.com/tomz197/simtuner/internal/config"
	"github.com/tomz197/simtuner/internal/draw"
	"github.com/tomz197/simtuner/internal/observability"
	"github.com/tomz197/simtuner/internal/sim/client"
	"github.com/tomz197/simtuner/internal/sim/config"
	"github.com/tomz197/simtuner/internal/sim/host"
)

const (
	defaultHost        = "::"
	defaultPort        = "2222"
	defaultHostKeyPath = "/app/keys/host_key"
)

func main() {
	logger := config.NewLogger(os.Stderr)

	addr := envconfig.GetEnv("SSH_HOST", defaultHost)
	port := envconfig.GetEnv("SSH_PORT", defaultPort)
	hostKeyPath := envconfig.GetEnv("SSH_HOST_KEY", defaultHostKeyPath)
	logger.Info("ssh config", "host", addr, "port", port, "host_key", hostKeyPath)

	// One simulation shared by every operator.
	ctx, cancelHost := context.WithCancel(context.Background())
	defer cancelHost()
	simHost := host.New(config.Load(), host.Options{Logger: logger.WithPrefix("host")})
	go simHost.Run(ctx)

	if metricsAddr := envconfig.GetEnv("METRICS_ADDR", ""); metricsAddr != "" {
		collector, err := observability.NewCollector(nil, simHost.GetSnapshot)
		if err != nil {
			logger.Fatal("failed to register metrics", "err", err)
		}
		go func() {
			if err := collector.Serve(ctx, metricsAddr, logger); err != nil {
				logger.Warn("metrics server exited", "err", err)
			}
		}()
	}

	opts := []ssh.Option{
		wish.WithAddress(net.JoinHostPort(addr, port)),
		wish.WithMiddleware(
			tunerMiddleware(simHost, logger),
			activeterm.Middleware(),
			logging.MiddlewareWithLogger(logger.WithPrefix("ssh")),
		),
		// Key presses are tiny and latency sensitive.
		ssh.WrapConn(func(ctx ssh.Context, conn net.Conn) net.Conn {
			if tcpConn, ok := conn.(*net.TCPConn); ok {
				_ = tcpConn.SetNoDelay(true)
			}
			return conn
		}),
	}
	if hostKeyPath != "" {
		opts = append(opts, wish.WithHostKeyPath(hostKeyPath))
	}

	s, err := wish.NewServer(opts...)
	if err != nil {
		logger.Fatal("failed to create server", "err", err)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("starting ssh server", "addr", net.JoinHostPort(addr, port))
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, ssh.ErrServerClosed) {
			logger.Fatal("server error", "err", err)
		}
	}()

	<-done
	logger.Info("shutting down")

	logger.Info("notifying connected operators")
	simHost.Shutdown(config.ShutdownTimeout)
	cancelHost()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("shutdown error", "err", err)
	}
}

// tunerMiddleware runs a tuning client for each PTY session.
func tunerMiddleware(h host.SimHost, logger *log.Logger) wish.Middleware {
	return func(next ssh.Handler) ssh.Handler {
		return func(sess ssh.Session) {
			pty, winCh, ok := sess.Pty()
			if !ok {
				fmt.Fprintln(sess, "Error: PTY required. Please connect with: ssh -t user@host")
				return
			}

			logger.Info("session started", "user", sess.User(), "term", pty.Term,
				"width", pty.Window.Width, "height", pty.Window.Height)

			sizeTracker := newSizeTracker(pty.Window.Width, pty.Window.Height)
			go func() {
				for win := range winCh {
					sizeTracker.update(win.Width, win.Height)
				}
			}()

			c := client.NewClient(h, bufio.NewReader(sess), sess, client.ClientOptions{
				TermSizeFunc: sizeTracker.getSize,
				Username:     sess.User(),
				Logger:       logger.WithPrefix("client"),
			})
			if err := c.Run(); err != nil {
				logger.Error("client error", "user", sess.User(), "err", err)
			}

			logger.Info("session ended", "user", sess.User())
			next(sess)
		}
	}
}

// sizeTracker tracks terminal size from SSH window change events.
type sizeTracker struct {
	mu     sync.RWMutex
	width  int
	height int
}

func newSizeTracker(width, height int) *sizeTracker {
	return &sizeTracker{width: width, height: height}
}

func (s *sizeTracker) update(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = width
	s.height = height
}

func (s *sizeTracker) getSize() (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height, nil
}

var _ draw.TermSizeFunc = (*sizeTracker)(nil).getSize
