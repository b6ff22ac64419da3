package inference

import (
	"context"
	"errors"
	"fmt"

	"nemoship/internal/audio"
)

// ErrInferenceFailure wraps any failure raised by the model.
var ErrInferenceFailure = errors.New("inference failure")

// TranscribeFunc is the model capability: one transcript per input signal.
type TranscribeFunc func(ctx context.Context, batch [][]float32) ([]string, error)

// Transcriber adapts a TranscribeFunc to single validated buffers.
type Transcriber struct {
	fn TranscribeFunc
}

// NewTranscriber wraps fn.
func NewTranscriber(fn TranscribeFunc) *Transcriber {
	return &Transcriber{fn: fn}
}

// Transcribe runs the model on buf and returns its transcript verbatim.
func (t *Transcriber) Transcribe(ctx context.Context, buf audio.Buffer) (text string, err error) {
	if t == nil || t.fn == nil {
		return "", fmt.Errorf("%w: no model loaded", ErrInferenceFailure)
	}
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: model panicked: %v", ErrInferenceFailure, r)
		}
	}()

	results, err := t.fn(ctx, [][]float32{buf.Samples()})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInferenceFailure, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: model returned no transcripts", ErrInferenceFailure)
	}
	return results[0], nil
}
