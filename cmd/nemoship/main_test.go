package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"nemoship/internal/audio"
	"nemoship/internal/inference"
	"nemoship/internal/ledger"
	"nemoship/internal/services"
	"nemoship/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	_, _, err = runCLI(t, []string{"config", "validate", "--deploy"}, env.configPath)
	if !errors.Is(err, services.ErrConfiguration) || services.ExitCode(err) != 2 {
		t.Fatalf("expected configuration error without image, got %v", err)
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected refusal to overwrite existing config")
	}
}

func TestPrepareInspectAndHistory(t *testing.T) {
	env := setupCLITestEnv(t)
	testsupport.WriteFile(t, env.cfg.Model.CheckpointPath, 256)

	out, _, err := runCLI(t, []string{"prepare"}, env.configPath)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	requireContains(t, out, "Reused:   no")
	requireContains(t, out, env.cfg.Model.ArchivePath)

	out, _, err = runCLI(t, []string{"prepare"}, env.configPath)
	if err != nil {
		t.Fatalf("second prepare: %v", err)
	}
	requireContains(t, out, "Reused:   yes")
	requireContains(t, out, "Changed:  no")

	out, _, err = runCLI(t, []string{"inspect"}, env.configPath)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	requireContains(t, out, "model.nemo")
	requireContains(t, out, "0644")

	out, _, err = runCLI(t, []string{"history", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var view historyView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode history: %v\n%s", err, out)
	}
	if len(view.Artifacts) != 2 || !view.Artifacts[0].Reused || view.Artifacts[1].Reused {
		t.Fatalf("unexpected artifacts %+v", view.Artifacts)
	}
	if view.Artifacts[0].SHA256 != view.Artifacts[1].SHA256 {
		t.Fatal("expected the reused archive to keep its digest")
	}
	if view.Schema == "" {
		t.Fatal("expected schema version in history output")
	}

	out, _, err = runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history table: %v", err)
	}
	requireContains(t, out, "Archives")
}

func TestPrepareFailsWhenCheckpointUnavailable(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"prepare"}, env.configPath)
	if err == nil {
		t.Fatal("expected retrieval failure without checkpoint or reachable hub")
	}
	requireContains(t, err.Error(), "nvidia/parakeet-rnnt-0.6b")
}

func TestInspectRejectsInvalidArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	bad := filepath.Join(env.baseDir, "bad.tar.gz")
	testsupport.WriteBytes(t, bad, []byte("definitely not gzip"))

	if _, _, err := runCLI(t, []string{"inspect", bad}, env.configPath); err == nil {
		t.Fatal("expected inspect to fail for a corrupt archive")
	}
}

func TestInvokeAgainstLocalServer(t *testing.T) {
	env := setupCLITestEnv(t)

	var got int
	srv := inference.NewServer(
		inference.ServerConfig{Bind: "127.0.0.1:0", MaxRequestBytes: 1 << 20},
		audio.NewDecoder(audio.DefaultFormat()),
		inference.NewTranscriber(func(_ context.Context, batch [][]float32) ([]string, error) {
			got = len(batch[0])
			return []string{"hello world"}, nil
		}),
		inference.NewEncoder("text", nil),
		nil,
	)
	srv.SetReady(true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wav := filepath.Join(env.baseDir, "sample.wav")
	testsupport.WriteBytes(t, wav, testsupport.WAV(testsupport.SpeechWAV(1600)))

	out, stderr, err := runCLI(t, []string{"invoke", "--check", "--url", ts.URL, wav}, env.configPath)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if strings.TrimSpace(out) != "hello world" {
		t.Fatalf("unexpected transcript %q", out)
	}
	requireContains(t, stderr, "audio ok: 1600 samples")
	if got != 1600 {
		t.Fatalf("expected 1600 samples at the server, got %d", got)
	}
}

func TestInvokeCheckRejectsWrongSampleRate(t *testing.T) {
	env := setupCLITestEnv(t)
	wav := filepath.Join(env.baseDir, "phone.wav")
	spec := testsupport.SpeechWAV(800)
	spec.SampleRate = 8000
	testsupport.WriteBytes(t, wav, testsupport.WAV(spec))

	_, _, err := runCLI(t, []string{"invoke", "--check", "--url", "http://127.0.0.1:1", wav}, env.configPath)
	if !errors.Is(err, audio.ErrSampleRateMismatch) || !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected local sample rate rejection, got %v", err)
	}
}

func TestInvokeSurfacesServerErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := inference.NewServer(
		inference.ServerConfig{Bind: "127.0.0.1:0"},
		audio.NewDecoder(audio.DefaultFormat()),
		inference.NewTranscriber(nil),
		inference.NewEncoder("text", nil),
		nil,
	)
	srv.SetReady(true)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wav := filepath.Join(env.baseDir, "sample.wav")
	testsupport.WriteBytes(t, wav, testsupport.WAV(testsupport.SpeechWAV(160)))

	_, _, err := runCLI(t, []string{"invoke", "--url", ts.URL, wav}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "InferenceFailure") {
		t.Fatalf("expected inference failure from server, got %v", err)
	}
}

func TestPreflightReportsMissingImage(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"preflight", "--skip-aws"}, env.configPath)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected preflight failure, got %v", err)
	}
	requireContains(t, out, "Artifacts directory")
	requireContains(t, out, "[FAIL] deploy.image_uri not set")
}

func TestExtractText(t *testing.T) {
	text, err := extractText([]byte(`{"text":"a <b> c"}`), "text")
	if err != nil || text != "a <b> c" {
		t.Fatalf("unexpected %q %v", text, err)
	}
	if _, err := extractText([]byte(`{"transcript":"x"}`), "text"); err == nil {
		t.Fatal("expected error for missing text field")
	}
	if _, err := extractText([]byte(`{"text":1}`), "text"); err == nil {
		t.Fatal("expected error for non-string text")
	}
}

func TestInvocationsURL(t *testing.T) {
	cases := map[string]string{
		"http://localhost:8080":               "http://localhost:8080/invocations",
		"http://localhost:8080/":              "http://localhost:8080/invocations",
		"http://localhost:8080/custom/invoke": "http://localhost:8080/custom/invoke",
	}
	for in, want := range cases {
		got, err := invocationsURL(in)
		if err != nil || got != want {
			t.Errorf("invocationsURL(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := invocationsURL("localhost"); err == nil {
		t.Fatal("expected error for URL without scheme")
	}
}

func TestRenderTableFillsEmptyCells(t *testing.T) {
	out := renderTable("", []string{"A", "B"}, [][]string{{"x"}}, nil)
	requireContains(t, out, "x")
	requireContains(t, out, emptyCell)
}

func TestTestNotify(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify without topic: %v", err)
	}
	requireContains(t, out, "Notifications disabled")

	var title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	t.Setenv("NEMOSHIP_NTFY_TOPIC", server.URL)

	out, _, err = runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if title != "nemoship - Test" {
		t.Fatalf("unexpected notification title %q", title)
	}
}

func TestLogsShowsTail(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs without file: %v", err)
	}
	requireContains(t, out, "No log file at")

	testsupport.WriteBytes(t, filepath.Join(env.cfg.Paths.LogDir, "nemoshipd.log"), []byte("one\ntwo\nthree\n"))
	out, _, err = runCLI(t, []string{"logs", "nemoshipd", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("unexpected tail %q", out)
	}

	if _, _, err := runCLI(t, []string{"logs", "worker"}, env.configPath); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for unknown log, got %v", err)
	}
}

func TestHistoryShowsSingleDeployment(t *testing.T) {
	env := setupCLITestEnv(t)
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store := testsupport.MustOpenLedger(t, env.cfg)
	id, err := store.BeginDeployment(context.Background(), ledger.Deployment{
		EndpointName: "nemo-parakeet-demo",
		ImageURI:     "123456789012.dkr.ecr.us-east-1.amazonaws.com/nemoship:latest",
		InstanceType: "ml.g5.xlarge",
		StartedAt:    time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("BeginDeployment: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close ledger: %v", err)
	}

	out, _, err := runCLI(t, []string{"history", "--deployment", strconv.FormatInt(id, 10)}, env.configPath)
	if err != nil {
		t.Fatalf("history --deployment: %v", err)
	}
	requireContains(t, out, "Deployment "+strconv.FormatInt(id, 10))
	requireContains(t, out, "ml.g5.xlarge")
	requireContains(t, out, "running")

	_, _, err = runCLI(t, []string{"history", "--deployment", "999"}, env.configPath)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
