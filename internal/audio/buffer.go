package audio

import "time"

// Buffer holds validated PCM samples normalized to [-1, 1]. Samples are
// interleaved when the decoder's Format allows more than one channel; the
// serving path only accepts mono.
type Buffer struct {
	samples    []float32
	sampleRate int
	channels   int
}

// Samples returns a copy of the sample data.
func (b Buffer) Samples() []float32 {
	out := make([]float32, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of samples across all channels.
func (b Buffer) Len() int { return len(b.samples) }

// Frames returns the number of sample frames.
func (b Buffer) Frames() int {
	if b.channels <= 1 {
		return len(b.samples)
	}
	return len(b.samples) / b.channels
}

// SampleRate returns the sample rate in Hz.
func (b Buffer) SampleRate() int { return b.sampleRate }

// Channels returns the channel count.
func (b Buffer) Channels() int { return max(b.channels, 1) }

// Duration returns the playback length.
func (b Buffer) Duration() time.Duration {
	if b.sampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.sampleRate)
}

// IsZero reports whether b was never populated by a Decoder.
func (b Buffer) IsZero() bool { return b.samples == nil }
