package inference

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"

	"nemoship/internal/logging"
)

const (
	ContentTypeJSON  = "application/json"
	DefaultTextField = "text"
)

// Encoder renders transcripts as JSON response bodies.
type Encoder struct {
	field      string
	logger     *slog.Logger
	mismatches atomic.Int64
}

// NewEncoder returns an Encoder writing the transcript under field.
func NewEncoder(field string, logger *slog.Logger) *Encoder {
	if strings.TrimSpace(field) == "" {
		field = DefaultTextField
	}
	return &Encoder{field: field, logger: logging.NewComponentLogger(logger, "encoder")}
}

// Encode returns {"<field>": text} and application/json. A non-empty accept
// other than application/json is logged and counted; the output is the same.
func (e *Encoder) Encode(text, accept string) ([]byte, string) {
	if accept = strings.TrimSpace(accept); accept != "" && accept != ContentTypeJSON {
		n := e.mismatches.Add(1)
		logging.WarnWithContext(e.logger, "non-json accept requested; returning application/json", "accept_mismatch",
			logging.String("accept", accept),
			logging.Int64("mismatch_count", n),
			logging.String(logging.FieldImpact, "client receives JSON regardless"),
			logging.String(logging.FieldErrorHint, "send Accept: application/json"),
		)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string map cannot fail.
	_ = enc.Encode(map[string]string{e.field: text})
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), ContentTypeJSON
}

// AcceptMismatches returns how many requests asked for a non-JSON response.
func (e *Encoder) AcceptMismatches() int64 {
	return e.mismatches.Load()
}
