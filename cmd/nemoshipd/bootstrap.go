package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"nemoship/internal/audio"
	"nemoship/internal/config"
	"nemoship/internal/deps"
	"nemoship/internal/inference"
	"nemoship/internal/logging"
	"nemoship/internal/services"
	"nemoship/internal/services/nemo"
)

// envConfigPath points nemoshipd at a config file inside the container.
const envConfigPath = "NEMOSHIP_CONFIG"

// parseArgs accepts the optional "serve" argument SageMaker passes to
// hosting containers.
func parseArgs(args []string) error {
	switch {
	case len(args) == 0:
		return nil
	case len(args) == 1 && strings.TrimSpace(args[0]) == "serve":
		return nil
	default:
		return services.Wrap(services.ErrValidation, "serve", "parse arguments",
			fmt.Sprintf("unexpected arguments %q (only \"serve\" is accepted)", args), nil)
	}
}

type daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	engine  *nemo.Engine
	encoder *inference.Encoder
	server  *inference.Server
}

func newDaemon(cfg *config.Config, logger *slog.Logger) *daemon {
	engine := nemo.New(nemo.Config{
		ModelPath:      cfg.ModelArtifactPath(),
		Python:         cfg.Serve.Python,
		Command:        cfg.Serve.EngineCommand,
		Device:         cfg.Serve.Device,
		SampleRate:     cfg.Serve.SampleRate,
		StartupTimeout: time.Duration(cfg.Serve.StartupSeconds) * time.Second,
	}, logger)
	encoder := inference.NewEncoder(cfg.Serve.TextField, logger)
	return &daemon{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		encoder: encoder,
		server:  buildServer(cfg, engine.Transcribe, encoder, logger),
	}
}

func buildServer(cfg *config.Config, fn inference.TranscribeFunc, encoder *inference.Encoder, logger *slog.Logger) *inference.Server {
	decoder := audio.NewDecoder(audio.Format{
		ContentType: cfg.Serve.ContentType,
		Field:       cfg.Serve.AudioField,
		SampleRate:  cfg.Serve.SampleRate,
		Channels:    cfg.Serve.Channels,
	})
	return inference.NewServer(
		inference.ServerConfig{Bind: cfg.Serve.Bind, MaxRequestBytes: cfg.Serve.MaxRequestBytes},
		decoder,
		inference.NewTranscriber(fn),
		encoder,
		logger,
	)
}

// run serves /ping immediately, loads the model once, then marks the
// container ready until ctx is cancelled. A model that cannot be loaded
// stops the process.
func (d *daemon) run(ctx context.Context) error {
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := d.server.Start(serveCtx); err != nil {
		return services.Wrap(services.ErrConfiguration, "serve", "listen", d.cfg.Serve.Bind, err)
	}
	defer d.engine.Close() //nolint:errcheck

	if err := checkEngineBinary(d.cfg); err != nil {
		return err
	}
	if err := d.engine.Start(ctx); err != nil {
		return err
	}
	d.server.SetReady(true)
	d.logger.Info("nemoshipd ready",
		logging.String("address", d.server.Addr()),
		logging.String("model", d.cfg.ModelArtifactPath()),
		logging.String("device", d.engine.Device()),
	)

	<-ctx.Done()
	d.server.SetReady(false)
	d.logger.Info("nemoshipd shutting down",
		logging.Int64("served", d.server.Served()),
		logging.Int64("accept_mismatches", d.encoder.AcceptMismatches()),
	)
	return nil
}

// engineRequirement names the program that hosts the ASR worker.
func engineRequirement(cfg *config.Config) deps.Requirement {
	req := deps.Requirement{
		Name:        "ASR engine",
		Command:     cfg.Serve.Python,
		Description: "Python interpreter with nemo_toolkit installed",
	}
	if len(cfg.Serve.EngineCommand) > 0 {
		req.Command = cfg.Serve.EngineCommand[0]
		req.Description = "custom engine command"
	}
	return req
}

func checkEngineBinary(cfg *config.Config) error {
	missing := deps.Missing(deps.CheckBinaries([]deps.Requirement{engineRequirement(cfg)}))
	if len(missing) == 0 {
		return nil
	}
	return services.Wrap(services.ErrExternalTool, "serve", "check engine", missing[0].Detail, nil)
}
