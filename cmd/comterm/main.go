// Package main is the entry point for the comterm serial terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/luhtfiimanal/go-comterm/console"
	"github.com/luhtfiimanal/go-comterm/internal/config"
	"github.com/luhtfiimanal/go-comterm/internal/logging"
	"github.com/luhtfiimanal/go-comterm/internal/terminal"
)

func main() {
	os.Exit(run())
}

func run() int {
	fs := pflag.NewFlagSet(filepath.Base(os.Args[0]), pflag.ContinueOnError)
	config.RegisterFlags(fs)
	showHelp := fs.BoolP("help", "h", false, "Print this message.")
	fs.Usage = func() { usage(fs) }

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	if *showHelp {
		usage(fs)
		return 0
	}

	cfg, err := config.Load(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		return 1
	}

	logger, err := logging.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize logger: %v\n", err)
		return 1
	}
	logger, _ = logging.WithSession(logger)
	defer logger.Sync()
	logger.Info("Starting", zap.String("port", cfg.Serial.Port))

	con, err := console.Open(console.Options{
		Logger:        logger,
		MaxReadLength: cfg.Console.MaxReadLength,
		HandleSignals: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open console: %v\n", err)
		return 1
	}
	defer con.Close()

	session := terminal.New(terminal.Options{
		Console: con,
		Config:  cfg,
		Logger:  logger,
	})

	// Hangup and termination end the process; Ctrl-C only leaves
	// communication mode.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGHUP, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	defer signal.Stop(interrupts)
	go func() {
		for {
			select {
			case <-interrupts:
				session.Interrupt()
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := session.Run(ctx); err != nil {
		if errors.Is(err, terminal.ErrSelectionCancelled) {
			return 1
		}
		con.PrintErrf("%v\n", err)
		logger.Error("Session failed", zap.Error(err))
		return 1
	}
	return 0
}

func usage(fs *pflag.FlagSet) {
	name := fs.Name()
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s [options] [port_name] - Run application.\n", name)
	fmt.Fprintf(os.Stderr, "  %s --help - Print this message.\n", name)
	fmt.Fprintf(os.Stderr, "Options:\n")
	fmt.Fprint(os.Stderr, fs.FlagUsages())
}
