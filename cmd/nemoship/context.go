package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"nemoship/internal/artifact"
	"nemoship/internal/checkpoint"
	"nemoship/internal/cloud"
	"nemoship/internal/config"
	"nemoship/internal/ledger"
	"nemoship/internal/logging"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
			cfg.Logging.Level = strings.ToLower(strings.TrimSpace(*c.logLevelFlag))
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// logger builds a logger that writes to the command's stderr and, when
// enabled, to the nemoship log file.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return newCommandLogger(cmd.ErrOrStderr(), cfg)
}

func newCommandLogger(w io.Writer, cfg *config.Config) (*slog.Logger, error) {
	opts := logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Writer: w,
	}
	if path := cfg.LogFile("nemoship"); path != "" {
		opts.OutputPaths = []string{path}
	}
	return logging.New(opts)
}

func (c *commandContext) openLedger() (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg.LedgerPath())
}

// awsClients resolves credentials and fills cfg.AWS.Region from the SDK's
// resolution when the config left it empty.
func (c *commandContext) awsClients(ctx context.Context) (*cloud.Clients, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	awsCfg, err := cloud.LoadConfig(ctx, cloud.Settings{Region: cfg.AWS.Region, Profile: cfg.AWS.Profile})
	if err != nil {
		return nil, err
	}
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = awsCfg.Region
	}
	return cloud.NewClients(awsCfg), nil
}

func newPreparer(cfg *config.Config, logger *slog.Logger) *artifact.Preparer {
	fetcher := checkpoint.NewHubFetcher(checkpoint.HubConfig{
		BaseURL:  cfg.Checkpoint.HubURL,
		Revision: cfg.Checkpoint.Revision,
		Filename: cfg.Checkpoint.Filename,
		Token:    cfg.Checkpoint.Token,
		Timeout:  time.Duration(cfg.Checkpoint.TimeoutSeconds) * time.Second,
	}, logger)
	return artifact.NewPreparer(fetcher,
		artifact.WithLogger(logger),
		artifact.WithCanonicalName(cfg.Model.CanonicalName),
		artifact.WithRevalidateCached(cfg.Model.RevalidateCached),
	)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
