package config

import (
	"errors"
	"fmt"
	"strings"

	"nemoship/internal/logging"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateModel(); err != nil {
		return err
	}
	if c.Checkpoint.TimeoutSeconds <= 0 {
		return errors.New("checkpoint.timeout_seconds must be positive")
	}
	if err := c.validateDeploy(); err != nil {
		return err
	}
	if err := c.validateServe(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateModel() error {
	parts := strings.Split(c.Model.ID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("model.id must look like owner/name, got %q", c.Model.ID)
	}
	if strings.ContainsAny(c.Model.CanonicalName, `/\`) {
		return fmt.Errorf("model.canonical_name must be a bare file name, got %q", c.Model.CanonicalName)
	}
	if c.Model.CheckpointPath == c.Model.ArchivePath {
		return errors.New("model.checkpoint_path and model.archive_path must differ")
	}
	return nil
}

func (c *Config) validateDeploy() error {
	if c.Deploy.InstanceCount <= 0 {
		return errors.New("deploy.instance_count must be positive")
	}
	if c.Deploy.WaitTimeoutMinutes <= 0 {
		return errors.New("deploy.wait_timeout_minutes must be positive")
	}
	return nil
}

func (c *Config) validateServe() error {
	if c.Serve.SampleRate <= 0 {
		return errors.New("serve.sample_rate must be positive")
	}
	if c.Serve.Channels != 1 {
		return fmt.Errorf("serve.channels must be 1 (the model takes mono audio), got %d", c.Serve.Channels)
	}
	if c.Serve.MaxRequestBytes <= 0 {
		return errors.New("serve.max_request_bytes must be positive")
	}
	if c.Serve.StartupSeconds <= 0 {
		return errors.New("serve.startup_timeout_seconds must be positive")
	}
	switch c.Serve.Device {
	case "auto", "cuda", "cpu":
	default:
		return fmt.Errorf("serve.device must be auto, cuda or cpu, got %q", c.Serve.Device)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidFormat(c.Logging.Format) {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}

// ValidateForDeploy checks the settings only a deployment needs.
func (c *Config) ValidateForDeploy() error {
	if c.Deploy.ImageURI == "" {
		return errors.New("deploy.image_uri must be set (or NEMOSHIP_IMAGE_URI) to register a model")
	}
	if c.AWS.RoleARN == "" && c.AWS.RoleName == "" {
		return errors.New("aws.role_arn or aws.role_name must be set")
	}
	return nil
}
