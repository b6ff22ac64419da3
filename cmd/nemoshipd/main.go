package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"nemoship/internal/config"
	"nemoship/internal/logging"
	"nemoship/internal/services"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "nemoshipd: %v\n", err)
		if hint := services.Hint(err); hint != "" {
			fmt.Fprintf(os.Stderr, "hint: %s\n", hint)
		}
		cancel()
		os.Exit(max(services.ExitCode(err), 1))
	}
}

func run(ctx context.Context, args []string) error {
	if err := parseArgs(args); err != nil {
		return err
	}

	cfg, _, _, err := config.Load(os.Getenv(envConfigPath))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "serve", "load config", "", err)
	}

	logger, err := logging.NewFromSettings(cfg.Logging.Format, cfg.Logging.Level, cfg.LogFile("nemoshipd"))
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "serve", "init logger", "", err)
	}

	d := newDaemon(cfg, logger)
	return d.run(ctx)
}
