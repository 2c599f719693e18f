package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/term"

	envconfig "github.com/tomz197/simtuner/internal/config"
	"github.com/tomz197/simtuner/internal/observability"
	"github.com/tomz197/simtuner/internal/sim/client"
	"github.com/tomz197/simtuner/internal/sim/config"
	"github.com/tomz197/simtuner/internal/sim/host"
)

func main() {
	logger, closeLog, err := openLog(envconfig.GetEnv("TUNER_LOG_FILE", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to enable raw mode: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = term.Restore(fd, oldState)
	}()

	if err := run(logger); err != nil {
		_ = term.Restore(fd, oldState)
		fmt.Fprintf(os.Stderr, "tuner error: %v\n", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := host.New(config.Load(), host.Options{Logger: logger})
	go h.Run(ctx)

	if addr := envconfig.GetEnv("METRICS_ADDR", ""); addr != "" {
		collector, err := observability.NewCollector(nil, h.GetSnapshot)
		if err != nil {
			return err
		}
		go func() {
			if err := collector.Serve(ctx, addr, logger); err != nil {
				logger.Warn("metrics server exited", "err", err)
			}
		}()
	}

	c := client.NewClient(h, bufio.NewReader(os.Stdin), os.Stdout, client.ClientOptions{
		Username: envconfig.GetEnv("USER", "local"),
		Logger:   logger,
	})
	return c.Run()
}

// openLog returns the process logger. The terminal is in raw mode, so logs go
// to path or nowhere.
func openLog(path string) (*log.Logger, func(), error) {
	if path == "" {
		return config.NewLogger(io.Discard), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return config.NewLogger(f), func() { _ = f.Close() }, nil
}
