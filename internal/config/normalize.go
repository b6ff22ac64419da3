package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeModel(); err != nil {
		return err
	}
	c.normalizeCheckpoint()
	c.normalizeAWS()
	c.normalizeDeploy()
	if err := c.normalizeServe(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ArtifactsDir, err = expandPath(orDefault(c.Paths.ArtifactsDir, defaultArtifactsDir)); err != nil {
		return fmt.Errorf("paths.artifacts_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(orDefault(c.Paths.StateDir, defaultStateDir)); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(orDefault(c.Paths.LogDir, defaultLogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeModel() error {
	c.Model.ID = strings.TrimSpace(c.Model.ID)
	c.Model.CanonicalName = orDefault(c.Model.CanonicalName, defaultCanonicalName)

	var err error
	checkpoint := strings.TrimSpace(c.Model.CheckpointPath)
	if checkpoint == "" {
		checkpoint = filepath.Join(c.Paths.ArtifactsDir, defaultCanonicalName)
	}
	if c.Model.CheckpointPath, err = expandPath(checkpoint); err != nil {
		return fmt.Errorf("model.checkpoint_path: %w", err)
	}
	archive := strings.TrimSpace(c.Model.ArchivePath)
	if archive == "" {
		archive = filepath.Join(c.Paths.ArtifactsDir, defaultArchiveName)
	}
	if c.Model.ArchivePath, err = expandPath(archive); err != nil {
		return fmt.Errorf("model.archive_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeCheckpoint() {
	c.Checkpoint.HubURL = strings.TrimRight(orDefault(c.Checkpoint.HubURL, defaultHubURL), "/")
	c.Checkpoint.Revision = orDefault(c.Checkpoint.Revision, defaultHubRevision)
	c.Checkpoint.Filename = strings.TrimSpace(c.Checkpoint.Filename)
	c.Checkpoint.Token = strings.TrimSpace(c.Checkpoint.Token)
	if c.Checkpoint.Token == "" {
		c.Checkpoint.Token = firstEnv("HF_TOKEN", "HUGGING_FACE_HUB_TOKEN")
	}
	if c.Checkpoint.TimeoutSeconds == 0 {
		c.Checkpoint.TimeoutSeconds = defaultHubTimeoutSeconds
	}
}

func (c *Config) normalizeAWS() {
	c.AWS.Region = strings.TrimSpace(c.AWS.Region)
	if c.AWS.Region == "" {
		c.AWS.Region = firstEnv("AWS_REGION", "AWS_DEFAULT_REGION")
	}
	c.AWS.Profile = strings.TrimSpace(c.AWS.Profile)
	if c.AWS.Profile == "" {
		c.AWS.Profile = firstEnv("AWS_PROFILE")
	}
	c.AWS.RoleName = orDefault(c.AWS.RoleName, defaultRoleName)
	c.AWS.RoleARN = strings.TrimSpace(c.AWS.RoleARN)
	if c.AWS.RoleARN == "" {
		c.AWS.RoleARN = firstEnv("NEMOSHIP_ROLE_ARN")
	}
	c.AWS.Bucket = strings.TrimSpace(c.AWS.Bucket)
	c.AWS.Prefix = strings.Trim(strings.TrimSpace(c.AWS.Prefix), "/")
}

func (c *Config) normalizeDeploy() {
	c.Deploy.EndpointName = orDefault(c.Deploy.EndpointName, defaultEndpointName)
	c.Deploy.ModelName = strings.TrimSpace(c.Deploy.ModelName)
	c.Deploy.ImageURI = strings.TrimSpace(c.Deploy.ImageURI)
	if c.Deploy.ImageURI == "" {
		c.Deploy.ImageURI = firstEnv("NEMOSHIP_IMAGE_URI")
	}
	c.Deploy.InstanceType = orDefault(c.Deploy.InstanceType, defaultInstanceType)
	c.Deploy.VariantName = orDefault(c.Deploy.VariantName, defaultVariantName)
	if c.Deploy.WaitTimeoutMinutes == 0 {
		c.Deploy.WaitTimeoutMinutes = defaultWaitTimeoutMinutes
	}
}

func (c *Config) normalizeServe() error {
	c.Serve.Bind = orDefault(c.Serve.Bind, defaultServeBind)
	modelDir := strings.TrimSpace(c.Serve.ModelDir)
	if modelDir == "" {
		modelDir = orDefault(firstEnv("SM_MODEL_DIR"), defaultModelDir)
	}
	var err error
	if c.Serve.ModelDir, err = expandPath(modelDir); err != nil {
		return fmt.Errorf("serve.model_dir: %w", err)
	}
	c.Serve.ContentType = orDefault(c.Serve.ContentType, defaultContentType)
	c.Serve.AudioField = orDefault(c.Serve.AudioField, defaultAudioField)
	c.Serve.TextField = orDefault(c.Serve.TextField, defaultTextField)
	c.Serve.Python = orDefault(c.Serve.Python, defaultPython)
	c.Serve.Device = strings.ToLower(orDefault(c.Serve.Device, defaultDevice))
	cmd := c.Serve.EngineCommand[:0]
	for _, part := range c.Serve.EngineCommand {
		if part = strings.TrimSpace(part); part != "" {
			cmd = append(cmd, part)
		}
	}
	c.Serve.EngineCommand = cmd
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		c.Notifications.NtfyTopic = firstEnv("NEMOSHIP_NTFY_TOPIC")
	}
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(orDefault(c.Logging.Format, defaultLogFormat))
	c.Logging.Level = strings.ToLower(orDefault(c.Logging.Level, defaultLogLevel))
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
