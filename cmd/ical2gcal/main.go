package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"ical2gcal/internal/auth"
	"ical2gcal/internal/cli"
	appLog "ical2gcal/internal/log"
)

// version will be set during build
var version = "dev"

func main() {
	cli.SetVersion(version)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, stopping", "signal", sig.String())
		cancel()
	}()

	code := cli.Run(ctx, os.Args[1:], cli.Env{
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Interactive: auth.IsInteractive(os.Stdin),
	})
	cancel()
	os.Exit(code)
}
