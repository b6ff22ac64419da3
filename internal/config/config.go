package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"nemoship/internal/textutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directory configuration.
type Paths struct {
	ArtifactsDir string `toml:"artifacts_dir"`
	StateDir     string `toml:"state_dir"`
	LogDir       string `toml:"log_dir"`
}

// Model describes the checkpoint being shipped and where its artifacts live.
type Model struct {
	ID               string `toml:"id"`
	CheckpointPath   string `toml:"checkpoint_path"`
	ArchivePath      string `toml:"archive_path"`
	CanonicalName    string `toml:"canonical_name"`
	RevalidateCached bool   `toml:"revalidate_cached"`
}

// Checkpoint configures the Hugging Face Hub download used when the local
// checkpoint is missing.
type Checkpoint struct {
	HubURL         string `toml:"hub_url"`
	Revision       string `toml:"revision"`
	Filename       string `toml:"filename"`
	Token          string `toml:"token"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AWS contains account-level settings shared by deploy, role and invoke.
type AWS struct {
	Region   string `toml:"region"`
	Profile  string `toml:"profile"`
	RoleName string `toml:"role_name"`
	RoleARN  string `toml:"role_arn"`
	Bucket   string `toml:"bucket"`
	Prefix   string `toml:"prefix"`
}

// Deploy contains SageMaker model and endpoint settings.
type Deploy struct {
	EndpointName       string `toml:"endpoint_name"`
	ModelName          string `toml:"model_name"`
	ImageURI           string `toml:"image_uri"`
	InstanceType       string `toml:"instance_type"`
	InstanceCount      int    `toml:"instance_count"`
	VariantName        string `toml:"variant_name"`
	Wait               bool   `toml:"wait"`
	WaitTimeoutMinutes int    `toml:"wait_timeout_minutes"`
}

// Serve configures the nemoshipd inference container.
type Serve struct {
	Bind            string   `toml:"bind"`
	ModelDir        string   `toml:"model_dir"`
	SampleRate      int      `toml:"sample_rate"`
	Channels        int      `toml:"channels"`
	ContentType     string   `toml:"content_type"`
	AudioField      string   `toml:"audio_field"`
	TextField       string   `toml:"text_field"`
	MaxRequestBytes int64    `toml:"max_request_bytes"`
	Python          string   `toml:"python"`
	EngineCommand   []string `toml:"engine_command"`
	Device          string   `toml:"device"`
	StartupSeconds  int      `toml:"startup_timeout_seconds"`
}

// Notifications configures ntfy delivery of deployment events.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	ToFile bool   `toml:"to_file"`
}

// Config encapsulates all configuration values for nemoship.
//
// Configuration sections by subsystem:
//   - Paths: local artifact, state and log directories
//   - Model: checkpoint identity, archive location and cache policy
//   - Checkpoint: Hugging Face Hub download settings
//   - AWS: region, credentials profile, execution role and S3 location
//   - Deploy: SageMaker model and endpoint settings
//   - Serve: inference container contract and ASR engine
//   - Notifications: ntfy topic for deployment events
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Model         Model         `toml:"model"`
	Checkpoint    Checkpoint    `toml:"checkpoint"`
	AWS           AWS           `toml:"aws"`
	Deploy        Deploy        `toml:"deploy"`
	Serve         Serve         `toml:"serve"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A .env file in
// the working directory or next to the config file is applied before
// environment fallbacks are read; existing environment variables win.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if err := loadDotEnv(filepath.Dir(resolvedPath)); err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func loadDotEnv(configDir string) error {
	candidates := []string{".env"}
	if configDir != "" {
		candidates = append(candidates, filepath.Join(configDir, ".env"))
	}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("load env file %s: %w", candidate, err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("nemoship.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the artifact, state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ArtifactsDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "nemoship.db")
}

// DeployLockPath returns the file used to serialize deployments.
func (c *Config) DeployLockPath() string {
	return filepath.Join(c.Paths.StateDir, "deploy.lock")
}

// LogFile returns the log file path when file logging is enabled.
func (c *Config) LogFile(name string) string {
	if !c.Logging.ToFile {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, name+".log")
}

// ModelArtifactPath returns the checkpoint location the server loads.
func (c *Config) ModelArtifactPath() string {
	return filepath.Join(c.Serve.ModelDir, c.Model.CanonicalName)
}

// ModelKey returns the S3 object key for the packaged archive.
func (c *Config) ModelKey() string {
	name := filepath.Base(c.Model.ArchivePath)
	prefix := textutil.KeyPrefix(c.AWS.Prefix)
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && pathValue[1] == '/' {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
