package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/doctrina/internal/common"
)

// runServe starts the job pipeline and blocks until SIGINT/SIGTERM
func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to TOML configuration file")
	dbPath := fs.String("db", "", "Override database file path")
	logLevel := fs.String("log-level", "", "Override log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, logger, err := loadAppWithOverrides(*configPath, *dbPath, *logLevel)
	if err != nil {
		return err
	}
	defer a.Close()

	common.PrintBanner(common.GetVersion())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.Start(ctx); err != nil {
		return err
	}
	logger.Info().
		Str("db", a.Config.Storage.Path).
		Int("max_concurrent", a.Config.Jobs.MaxConcurrent).
		Msg("Doctrina serving, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	return nil
}
