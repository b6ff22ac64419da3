package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nemoship/internal/fileutil"
	"nemoship/internal/logging"
)

const (
	defaultHubURL          = "https://huggingface.co"
	defaultRevision        = "main"
	defaultDownloadTimeout = 60 * time.Minute
	checkpointExtension    = ".nemo"
)

// Fetcher saves the checkpoint identified by modelID to dest.
type Fetcher interface {
	Fetch(ctx context.Context, modelID, dest string) error
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, modelID, dest string) error

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, modelID, dest string) error {
	return f(ctx, modelID, dest)
}

// HubConfig describes where checkpoints are downloaded from.
type HubConfig struct {
	BaseURL  string
	Revision string
	// Filename overrides the file requested from the repository. Empty means
	// "<repo name>.nemo", the layout NVIDIA uses for its published models.
	Filename string
	Token    string
	Timeout  time.Duration
}

// HubFetcher downloads checkpoints from a Hugging Face compatible hub.
type HubFetcher struct {
	cfg    HubConfig
	client *http.Client
	logger *slog.Logger
}

// Option customizes a HubFetcher.
type Option func(*HubFetcher)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HubFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// NewHubFetcher constructs a fetcher for the supplied hub configuration.
func NewHubFetcher(cfg HubConfig, logger *slog.Logger, opts ...Option) *HubFetcher {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHubURL
	}
	cfg.Revision = strings.TrimSpace(cfg.Revision)
	if cfg.Revision == "" {
		cfg.Revision = defaultRevision
	}
	cfg.Filename = strings.TrimSpace(cfg.Filename)
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultDownloadTimeout
	}
	f := &HubFetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logging.NewComponentLogger(logger, "checkpoint"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// URL returns the download location for modelID.
func (f *HubFetcher) URL(modelID string) (string, error) {
	owner, name, err := splitModelID(modelID)
	if err != nil {
		return "", err
	}
	filename := f.cfg.Filename
	if filename == "" {
		filename = name + checkpointExtension
	}
	return fmt.Sprintf("%s/%s/%s/resolve/%s/%s",
		f.cfg.BaseURL,
		url.PathEscape(owner),
		url.PathEscape(name),
		url.PathEscape(f.cfg.Revision),
		url.PathEscape(filename),
	), nil
}

// Fetch downloads the checkpoint for modelID and atomically writes it to dest.
func (f *HubFetcher) Fetch(ctx context.Context, modelID, dest string) error {
	source, err := f.URL(modelID)
	if err != nil {
		return err
	}
	if err := fileutil.EnsureParentDir(dest); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+f.cfg.Token)
	}

	f.logger.Info("downloading checkpoint",
		logging.String("model", modelID),
		logging.String("url", source),
		logging.String("dest", dest),
	)
	started := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", source, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("download %s: unexpected status %d: %s", source, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	written, err := fileutil.WriteAtomic(dest, resp.Body, 0o644)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	f.logger.Info("checkpoint saved",
		logging.String("model", modelID),
		logging.String("dest", dest),
		logging.Int64("bytes", written),
		logging.Duration("elapsed", time.Since(started).Round(time.Millisecond)),
	)
	return nil
}

func splitModelID(modelID string) (string, string, error) {
	trimmed := strings.Trim(strings.TrimSpace(modelID), "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("model identifier %q must look like <owner>/<name>", modelID)
	}
	return parts[0], parts[1], nil
}

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("checkpoint fetching is disabled")

// Disabled is a Fetcher that always fails; it backs offline configurations
// where the checkpoint must already be on disk.
var Disabled Fetcher = FetcherFunc(func(context.Context, string, string) error {
	return ErrNotConfigured
})
