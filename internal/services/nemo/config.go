package nemo

import "time"

const (
	DefaultPython         = "python3"
	DefaultDevice         = "auto"
	DefaultSampleRate     = 16000
	DefaultStartupTimeout = 10 * time.Minute

	// Environment passed to the worker process.
	EnvModelPath = "NEMOSHIP_MODEL_PATH"
	EnvDevice    = "NEMOSHIP_DEVICE"

	wavBitDepth = 32
)

// Config describes how to launch the worker.
type Config struct {
	// ModelPath is the .nemo checkpoint the worker restores.
	ModelPath string
	// Python runs the bundled worker when Command is empty.
	Python string
	// Command replaces the bundled worker entirely.
	Command []string
	// Device is auto, cuda or cpu.
	Device         string
	SampleRate     int
	StartupTimeout time.Duration
	// WorkDir holds per-request WAV files; empty means os.TempDir.
	WorkDir string
}

func (c Config) withDefaults() Config {
	if c.Python == "" {
		c.Python = DefaultPython
	}
	if c.Device == "" {
		c.Device = DefaultDevice
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = DefaultStartupTimeout
	}
	return c
}
