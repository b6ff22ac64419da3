package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nemoship/internal/config"
	"nemoship/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	for _, key := range []string{"NEMOSHIP_IMAGE_URI", "NEMOSHIP_ROLE_ARN", "NEMOSHIP_NTFY_TOPIC", "HF_TOKEN", "HUGGING_FACE_HUB_TOKEN", "SM_MODEL_DIR"} {
		t.Setenv(key, "")
	}
	t.Chdir(base)

	configPath := filepath.Join(base, "nemoship.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nartifacts_dir = %q\nstate_dir = %q\nlog_dir = %q\n\n",
		cfg.Paths.ArtifactsDir, cfg.Paths.StateDir, cfg.Paths.LogDir)
	fmt.Fprintf(&b, "[model]\ncheckpoint_path = %q\narchive_path = %q\n\n",
		cfg.Model.CheckpointPath, cfg.Model.ArchivePath)
	fmt.Fprintf(&b, "[checkpoint]\nhub_url = %q\n\n", "http://127.0.0.1:1")
	fmt.Fprintf(&b, "[aws]\nregion = %q\n", cfg.AWS.Region)
	if cfg.AWS.Bucket != "" {
		fmt.Fprintf(&b, "bucket = %q\n", cfg.AWS.Bucket)
	}
	fmt.Fprintf(&b, "\n[deploy]\nimage_uri = %q\n\n", cfg.Deploy.ImageURI)
	fmt.Fprintf(&b, "[serve]\nmodel_dir = %q\n\n[logging]\nlevel = \"warn\"\n", cfg.Serve.ModelDir)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", needle, haystack)
	}
}
