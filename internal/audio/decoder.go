package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-audio/wav"
)

const (
	DefaultContentType = "application/json"
	DefaultField       = "audio_b64"
	DefaultSampleRate  = 16000
	DefaultChannels    = 1

	wavFormatPCM = 1
)

// Format is the accepted request shape.
type Format struct {
	ContentType string
	Field       string
	SampleRate  int
	Channels    int
}

// DefaultFormat is the inference contract: JSON with a base64 16 kHz mono
// PCM WAV under audio_b64.
func DefaultFormat() Format {
	return Format{
		ContentType: DefaultContentType,
		Field:       DefaultField,
		SampleRate:  DefaultSampleRate,
		Channels:    DefaultChannels,
	}
}

// Decoder validates request bodies against a Format.
type Decoder struct {
	format Format
}

// NewDecoder returns a Decoder for format. Zero fields take the defaults.
func NewDecoder(format Format) *Decoder {
	def := DefaultFormat()
	if strings.TrimSpace(format.ContentType) == "" {
		format.ContentType = def.ContentType
	}
	if format.Field == "" {
		format.Field = def.Field
	}
	if format.SampleRate <= 0 {
		format.SampleRate = def.SampleRate
	}
	if format.Channels <= 0 {
		format.Channels = def.Channels
	}
	return &Decoder{format: format}
}

// Format returns the accepted request shape.
func (d *Decoder) Format() Format { return d.format }

// Decode turns a request body into a Buffer or reports the first rule the
// body breaks.
func (d *Decoder) Decode(body []byte, contentType string) (Buffer, error) {
	if got := strings.TrimSpace(contentType); got != d.format.ContentType {
		return Buffer{}, fmt.Errorf("%w: only %q is accepted, got %q", ErrUnsupportedContentType, d.format.ContentType, got)
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return Buffer{}, fmt.Errorf("%w: invalid JSON: %w", ErrMalformedPayload, err)
	}
	if payload == nil {
		return Buffer{}, fmt.Errorf("%w: body must be a JSON object", ErrMalformedPayload)
	}

	raw, ok := payload[d.format.Field]
	if !ok {
		return Buffer{}, fmt.Errorf("%w: required field %q not present", ErrMissingField, d.format.Field)
	}
	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil || encoded == "" {
		return Buffer{}, fmt.Errorf("%w: %q must be a non-empty base64 string", ErrInvalidFieldType, d.format.Field)
	}

	wavBytes, err := decodeBase64(encoded)
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: %q: %w", ErrInvalidEncoding, d.format.Field, err)
	}

	return d.decodeWAV(wavBytes)
}

func decodeBase64(s string) ([]byte, error) {
	if strings.ContainsAny(s, "\r\n") {
		return nil, fmt.Errorf("line breaks are not allowed")
	}
	return base64.StdEncoding.Strict().DecodeString(s)
}

func (d *Decoder) decodeWAV(data []byte) (buf Buffer, err error) {
	defer func() {
		if r := recover(); r != nil {
			buf = Buffer{}
			err = fmt.Errorf("%w: %v", ErrUndecodableAudio, r)
		}
	}()

	dec := wav.NewDecoder(bytes.NewReader(data))
	dec.ReadInfo()
	if dec.Err() != nil {
		return Buffer{}, fmt.Errorf("%w: %w", ErrUndecodableAudio, dec.Err())
	}
	if dec.SampleRate == 0 || dec.NumChans == 0 || dec.BitDepth == 0 {
		return Buffer{}, fmt.Errorf("%w: missing or invalid fmt chunk", ErrUndecodableAudio)
	}
	switch {
	case dec.WavAudioFormat == wavFormatPCM:
	case dec.WavAudioFormat == wavFormatExtensible && isExtensiblePCM(data):
	default:
		return Buffer{}, fmt.Errorf("%w: audio format %d is not PCM", ErrUndecodableAudio, dec.WavAudioFormat)
	}
	switch dec.BitDepth {
	case 16, 24, 32:
	default:
		return Buffer{}, fmt.Errorf("%w: unsupported bit depth %d", ErrUndecodableAudio, dec.BitDepth)
	}

	if int(dec.SampleRate) != d.format.SampleRate {
		return Buffer{}, fmt.Errorf("%w: expected sample rate %d Hz, but received %d Hz",
			ErrSampleRateMismatch, d.format.SampleRate, dec.SampleRate)
	}
	if int(dec.NumChans) != d.format.Channels {
		return Buffer{}, fmt.Errorf("%w: expected %d channel(s), got %d",
			ErrChannelCountMismatch, d.format.Channels, dec.NumChans)
	}

	if err := dec.FwdToPCM(); err != nil {
		return Buffer{}, fmt.Errorf("%w: locate data chunk: %w", ErrUndecodableAudio, err)
	}
	if dec.PCMSize == 0 {
		return Buffer{}, fmt.Errorf("%w: data chunk holds no samples", ErrEmptyAudio)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf("%w: read samples: %w", ErrUndecodableAudio, err)
	}
	if pcm == nil || len(pcm.Data) == 0 {
		return Buffer{}, fmt.Errorf("%w: decoded audio is empty", ErrEmptyAudio)
	}

	scale := float32(int64(1) << (dec.BitDepth - 1))
	samples := make([]float32, len(pcm.Data))
	for i, v := range pcm.Data {
		samples[i] = float32(v) / scale
	}
	return Buffer{samples: samples, sampleRate: int(dec.SampleRate), channels: int(dec.NumChans)}, nil
}
