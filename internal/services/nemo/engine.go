package nemo

import (
	"bufio"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"

	"nemoship/internal/logging"
	"nemoship/internal/services"
)

//go:embed worker.py
var workerScript string

var (
	// ErrModelMissing reports that the checkpoint is not in the model directory.
	ErrModelMissing = errors.New("model artifact missing")
	// ErrNotStarted reports a Transcribe call before Start succeeded.
	ErrNotStarted = errors.New("asr worker not started")
	// ErrWorkerExited reports that the worker process went away.
	ErrWorkerExited = errors.New("asr worker exited")
)

// Process is a running worker with line-oriented stdio.
type Process struct {
	Stdin  io.WriteCloser
	Stdout io.Reader
	Wait   func() error
	Kill   func() error
}

// ProcessStarter launches the worker. Tests substitute in-memory workers.
type ProcessStarter func(ctx context.Context, name string, args, env []string) (*Process, error)

type request struct {
	ID   string   `json:"id"`
	WAVs []string `json:"wavs"`
}

type reply struct {
	ID     string   `json:"id,omitempty"`
	Ready  *bool    `json:"ready,omitempty"`
	Device string   `json:"device,omitempty"`
	Texts  []string `json:"texts,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// Engine owns one worker process.
type Engine struct {
	cfg    Config
	logger *slog.Logger
	start  ProcessStarter

	mu     sync.Mutex
	proc   *Process
	lines  chan reply
	device string
}

// New returns an Engine for cfg. Call Start before Transcribe.
func New(cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:    cfg.withDefaults(),
		logger: logging.NewComponentLogger(logger, "nemo"),
		start:  execStarter,
	}
}

// WithProcessStarter sets a custom process starter (for testing).
func (e *Engine) WithProcessStarter(starter ProcessStarter) {
	e.start = starter
}

// Device returns the device the worker reported at startup.
func (e *Engine) Device() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.device
}

// Start launches the worker and blocks until it has loaded the model.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc != nil {
		return nil
	}

	if info, err := os.Stat(e.cfg.ModelPath); err != nil || info.IsDir() {
		return services.Wrap(services.ErrNotFound, "serve", "load model", "",
			fmt.Errorf("%w: %s", ErrModelMissing, e.cfg.ModelPath))
	}

	name, args := e.command()
	env := append(os.Environ(),
		EnvModelPath+"="+e.cfg.ModelPath,
		EnvDevice+"="+e.cfg.Device,
	)
	proc, err := e.start(ctx, name, args, env)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "serve", "start worker", name, err)
	}

	lines := make(chan reply, 1)
	go readReplies(proc.Stdout, lines, e.logger)

	e.logger.Info("loading model", logging.String("model", e.cfg.ModelPath), logging.String("device", e.cfg.Device))
	timer := time.NewTimer(e.cfg.StartupTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-lines:
		switch {
		case !ok:
			stopProcess(proc)
			return services.Wrap(services.ErrExternalTool, "serve", "start worker", "worker exited during startup", ErrWorkerExited)
		case msg.Ready == nil || !*msg.Ready:
			stopProcess(proc)
			return services.Wrap(services.ErrExternalTool, "serve", "load model", msg.Error, nil)
		}
		e.device = msg.Device
	case <-timer.C:
		stopProcess(proc)
		return services.Wrap(services.ErrTimeout, "serve", "load model",
			fmt.Sprintf("worker not ready after %s", e.cfg.StartupTimeout), nil)
	case <-ctx.Done():
		stopProcess(proc)
		return ctx.Err()
	}

	e.proc = proc
	e.lines = lines
	e.logger.Info("model loaded", logging.String("device", e.device))
	return nil
}

func (e *Engine) command() (string, []string) {
	if len(e.cfg.Command) > 0 {
		return e.cfg.Command[0], e.cfg.Command[1:]
	}
	return e.cfg.Python, []string{"-u", "-c", workerScript}
}

// Transcribe sends batch to the worker and returns one transcript per
// signal. Calls are serialized.
func (e *Engine) Transcribe(ctx context.Context, batch [][]float32) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		return nil, ErrNotStarted
	}
	if len(batch) == 0 {
		return nil, nil
	}

	dir, err := os.MkdirTemp(e.cfg.WorkDir, "nemoship-asr-*")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(dir)

	req := request{ID: uuid.NewString(), WAVs: make([]string, len(batch))}
	for i, signal := range batch {
		path := filepath.Join(dir, fmt.Sprintf("signal_%03d.wav", i))
		if err := writeWAV(path, signal, e.cfg.SampleRate); err != nil {
			return nil, err
		}
		req.WAVs[i] = path
	}

	line, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode worker request: %w", err)
	}
	if _, err := e.proc.Stdin.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("%w: write request: %w", ErrWorkerExited, err)
	}

	for {
		select {
		case msg, ok := <-e.lines:
			if !ok {
				return nil, ErrWorkerExited
			}
			if msg.ID != req.ID {
				e.logger.Debug("discarding stale worker reply", logging.String("reply_id", msg.ID))
				continue
			}
			if msg.Error != "" {
				return nil, errors.New(msg.Error)
			}
			if len(msg.Texts) != len(batch) {
				return nil, fmt.Errorf("worker returned %d transcripts for %d signals", len(msg.Texts), len(batch))
			}
			return msg.Texts, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close stops the worker.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.proc == nil {
		return nil
	}
	err := stopProcess(e.proc)
	e.proc = nil
	e.lines = nil
	return err
}

func readReplies(r io.Reader, out chan<- reply, logger *slog.Logger) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var msg reply
		if err := json.Unmarshal([]byte(text), &msg); err != nil {
			logger.Debug("worker output", logging.String("line", text))
			continue
		}
		out <- msg
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("worker stdout closed", logging.Error(err))
	}
}

func stopProcess(p *Process) error {
	if p.Stdin != nil {
		_ = p.Stdin.Close()
	}
	done := make(chan error, 1)
	go func() {
		if p.Wait == nil {
			done <- nil
			return
		}
		done <- p.Wait()
	}()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		if p.Kill != nil {
			_ = p.Kill()
		}
		return <-done
	}
}

func writeWAV(path string, signal []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer f.Close()

	const scale = float64(1<<(wavBitDepth-1) - 1)
	data := make([]int, len(signal))
	for i, s := range signal {
		v := float64(s)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		data[i] = int(v * scale)
	}

	enc := wav.NewEncoder(f, sampleRate, wavBitDepth, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	return nil
}

func execStarter(_ context.Context, name string, args, env []string) (*Process, error) {
	// The worker outlives the request context that started it.
	cmd := exec.Command(name, args...) //nolint:gosec
	cmd.Env = env
	cmd.Stderr = os.Stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &Process{
		Stdin:  stdin,
		Stdout: stdout,
		Wait:   cmd.Wait,
		Kill:   func() error { return cmd.Process.Kill() },
	}, nil
}
