package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"nemoship/internal/config"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"AWS_REGION", "AWS_DEFAULT_REGION", "AWS_PROFILE", "HF_TOKEN",
		"HUGGING_FACE_HUB_TOKEN", "NEMOSHIP_IMAGE_URI", "NEMOSHIP_ROLE_ARN", "NEMOSHIP_NTFY_TOPIC", "SM_MODEL_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaultsExpandPaths(t *testing.T) {
	clearEnv(t)
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}
	if resolved != filepath.Join(home, ".config", "nemoship", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}

	artifacts := filepath.Join(home, ".local", "share", "nemoship", "artifacts")
	if cfg.Paths.ArtifactsDir != artifacts {
		t.Fatalf("unexpected artifacts dir %q", cfg.Paths.ArtifactsDir)
	}
	if cfg.Model.CheckpointPath != filepath.Join(artifacts, "model.nemo") {
		t.Fatalf("unexpected checkpoint path %q", cfg.Model.CheckpointPath)
	}
	if cfg.Model.ArchivePath != filepath.Join(artifacts, "model.tar.gz") {
		t.Fatalf("unexpected archive path %q", cfg.Model.ArchivePath)
	}
	if cfg.Model.ID != "nvidia/parakeet-rnnt-0.6b" || cfg.Model.CanonicalName != "model.nemo" {
		t.Fatalf("unexpected model defaults: %+v", cfg.Model)
	}
	if cfg.Model.RevalidateCached {
		t.Fatal("expected cached archives to be trusted by default")
	}
	if cfg.Serve.ModelDir != "/opt/ml/model" || cfg.Serve.Bind != "0.0.0.0:8080" {
		t.Fatalf("unexpected serve defaults: %+v", cfg.Serve)
	}
	if cfg.Serve.SampleRate != 16000 || cfg.Serve.Channels != 1 || cfg.Serve.ContentType != "application/json" {
		t.Fatalf("unexpected audio contract: %+v", cfg.Serve)
	}
	if cfg.Deploy.EndpointName != "nemo-parakeet-demo" || cfg.Deploy.InstanceType != "ml.g5.xlarge" {
		t.Fatalf("unexpected deploy defaults: %+v", cfg.Deploy)
	}
	if cfg.AWS.RoleName != "SageMakerExecutionRole-Parakeet" || cfg.AWS.Prefix != "nemo-parakeet" {
		t.Fatalf("unexpected aws defaults: %+v", cfg.AWS)
	}
	if cfg.ModelKey() != "nemo-parakeet/model.tar.gz" {
		t.Fatalf("unexpected model key %q", cfg.ModelKey())
	}
	if cfg.LogFile("nemoship") != "" {
		t.Fatal("file logging should be disabled by default")
	}
}

func TestLoadReadsFileAndEnvFallbacks(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("AWS_DEFAULT_REGION", "eu-west-1")
	t.Setenv("NEMOSHIP_IMAGE_URI", "123.dkr.ecr.eu-west-1.amazonaws.com/nemoship:latest")
	t.Setenv("SM_MODEL_DIR", "/tmp/model")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
artifacts_dir = "` + filepath.Join(dir, "art") + `"
state_dir = "` + filepath.Join(dir, "state") + `"

[model]
id = "nvidia/parakeet-tdt-0.6b-v2"
revalidate_cached = true

[aws]
prefix = "/custom/"

[logging]
format = "JSON"
level = "DEBUG"
to_file = true
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected explicit path to resolve, got %q exists=%v", resolved, exists)
	}
	if cfg.Model.ID != "nvidia/parakeet-tdt-0.6b-v2" || !cfg.Model.RevalidateCached {
		t.Fatalf("model section not applied: %+v", cfg.Model)
	}
	if cfg.Model.ArchivePath != filepath.Join(dir, "art", "model.tar.gz") {
		t.Fatalf("archive path should follow artifacts_dir, got %q", cfg.Model.ArchivePath)
	}
	if cfg.AWS.Region != "eu-west-1" {
		t.Fatalf("expected region fallback, got %q", cfg.AWS.Region)
	}
	if cfg.AWS.Prefix != "custom" {
		t.Fatalf("expected trimmed prefix, got %q", cfg.AWS.Prefix)
	}
	if !strings.HasSuffix(cfg.Deploy.ImageURI, "nemoship:latest") {
		t.Fatalf("expected image uri fallback, got %q", cfg.Deploy.ImageURI)
	}
	if cfg.Serve.ModelDir != "/tmp/model" {
		t.Fatalf("expected SM_MODEL_DIR fallback, got %q", cfg.Serve.ModelDir)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("logging not normalized: %+v", cfg.Logging)
	}
	if cfg.LedgerPath() != filepath.Join(dir, "state", "nemoship.db") {
		t.Fatalf("unexpected ledger path %q", cfg.LedgerPath())
	}
	if cfg.LogFile("nemoshipd") != filepath.Join(cfg.Paths.LogDir, "nemoshipd.log") {
		t.Fatalf("unexpected log file %q", cfg.LogFile("nemoshipd"))
	}
	if err := cfg.ValidateForDeploy(); err != nil {
		t.Fatalf("ValidateForDeploy: %v", err)
	}
}

func TestLoadAppliesDotEnvBesideConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[model]\nid = \"nvidia/parakeet-rnnt-0.6b\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("NEMOSHIP_ROLE_ARN=arn:aws:iam::123456789012:role/test\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv does not override variables that are already set.
	os.Unsetenv("NEMOSHIP_ROLE_ARN")

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.AWS.RoleARN != "arn:aws:iam::123456789012:role/test" {
		t.Fatalf("expected role arn from .env, got %q", cfg.AWS.RoleARN)
	}
	os.Unsetenv("NEMOSHIP_ROLE_ARN")
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	cases := map[string]string{
		"bad model id":     "[model]\nid = \"parakeet\"\n",
		"nested canonical": "[model]\ncanonical_name = \"a/model.nemo\"\n",
		"instance count":   "[deploy]\ninstance_count = -1\n",
		"device":           "[serve]\ndevice = \"tpu\"\n",
		"log format":       "[logging]\nformat = \"xml\"\n",
		"unknown key":      "[serve]\nport = 8080\n",
		"sample rate":      "[serve]\nsample_rate = -5\n",
		"stereo":           "[serve]\nchannels = 2\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
				t.Fatalf("write config: %v", err)
			}
			if _, _, _, err := config.Load(path); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestValidateForDeployRequiresImage(t *testing.T) {
	cfg := config.Default()
	if err := cfg.ValidateForDeploy(); err == nil {
		t.Fatal("expected missing image uri to fail")
	}
}

func TestCreateSampleParsesAsConfig(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample is not valid TOML: %v", err)
	}
	if decoded.Deploy.EndpointName != "nemo-parakeet-demo" {
		t.Fatalf("unexpected sample endpoint %q", decoded.Deploy.EndpointName)
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

func TestModelKeyNormalizesPrefix(t *testing.T) {
	cfg := config.Default()
	cfg.Model.ArchivePath = "/tmp/artifacts/model.tar.gz"
	cfg.AWS.Prefix = "/team/asr/"
	if got := cfg.ModelKey(); got != "team/asr/model.tar.gz" {
		t.Fatalf("unexpected key %q", got)
	}
	cfg.AWS.Prefix = ""
	if got := cfg.ModelKey(); got != "model.tar.gz" {
		t.Fatalf("unexpected key without prefix %q", got)
	}
}

func TestLoadNotificationsFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NEMOSHIP_NTFY_TOPIC", "https://ntfy.sh/nemoship-test")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/nemoship-test" {
		t.Fatalf("unexpected topic %q", cfg.Notifications.NtfyTopic)
	}
	if cfg.Notifications.RequestTimeoutSeconds != 10 {
		t.Fatalf("unexpected timeout %d", cfg.Notifications.RequestTimeoutSeconds)
	}
}
