package audio_test

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"nemoship/internal/audio"
	"nemoship/internal/testsupport"
)

func body(b64 string) []byte {
	return []byte(`{"audio_b64": "` + b64 + `"}`)
}

func TestDecodeAcceptsSpeechWAV(t *testing.T) {
	dec := audio.NewDecoder(audio.Format{})
	buf, err := dec.Decode(body(testsupport.Base64WAV(testsupport.SpeechWAV(1600))), "application/json")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Len() != 1600 {
		t.Fatalf("expected 1600 samples, got %d", buf.Len())
	}
	if buf.SampleRate() != 16000 {
		t.Fatalf("unexpected sample rate %d", buf.SampleRate())
	}
	if buf.Duration() != 100*time.Millisecond {
		t.Fatalf("unexpected duration %s", buf.Duration())
	}
	samples := buf.Samples()
	var peak float32
	for _, s := range samples {
		if s < -1 || s > 1 {
			t.Fatalf("sample %f outside [-1, 1]", s)
		}
		if s > peak {
			peak = s
		}
	}
	if peak < 0.4 || peak > 0.6 {
		t.Fatalf("expected peak near 0.5, got %f", peak)
	}
	samples[0] = 42
	if buf.Samples()[0] == 42 {
		t.Fatal("Samples must return a copy")
	}
}

func TestDecodeAcceptsOtherBitDepths(t *testing.T) {
	dec := audio.NewDecoder(audio.DefaultFormat())
	for _, depth := range []int{16, 24, 32} {
		for _, extensible := range []bool{false, true} {
			spec := testsupport.WAVSpec{SampleRate: 16000, Channels: 1, BitDepth: depth, Frames: 10, Extensible: extensible}
			buf, err := dec.Decode(body(testsupport.Base64WAV(spec)), "application/json")
			if err != nil {
				t.Fatalf("depth %d extensible=%v: %v", depth, extensible, err)
			}
			if buf.Len() != 10 {
				t.Fatalf("depth %d extensible=%v: expected 10 samples, got %d", depth, extensible, buf.Len())
			}
		}
	}
}

func TestDecodeSingleSample(t *testing.T) {
	buf, err := audio.NewDecoder(audio.Format{}).Decode(body(testsupport.Base64WAV(testsupport.SpeechWAV(1))), " application/json ")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Len() != 1 {
		t.Fatalf("expected 1 sample, got %d", buf.Len())
	}
}

func TestDecodeRejections(t *testing.T) {
	valid := testsupport.Base64WAV(testsupport.SpeechWAV(160))
	stereo := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 16000, Channels: 2, BitDepth: 16, Frames: 160})
	rate44 := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 44100, Channels: 1, BitDepth: 16, Frames: 160})
	rate8stereo := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 8000, Channels: 2, BitDepth: 16, Frames: 160})
	empty := testsupport.Base64WAV(testsupport.SpeechWAV(0))
	float := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 16000, Channels: 1, BitDepth: 32, Frames: 16, Format: 3})
	eightBit := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 16000, Channels: 1, BitDepth: 8, Frames: 16})
	extStereo := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 16000, Channels: 2, BitDepth: 24, Frames: 160, Extensible: true})
	extRate8 := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 8000, Channels: 1, BitDepth: 16, Frames: 160, Extensible: true})
	extFloat := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 16000, Channels: 1, BitDepth: 32, Frames: 16, Format: 3, Extensible: true})
	wrapped := valid[:20] + "\n" + valid[20:]
	unpadded := strings.TrimRight(base64.StdEncoding.EncodeToString([]byte("RIFF1")), "=")

	cases := []struct {
		name        string
		body        []byte
		contentType string
		want        error
		kind        string
	}{
		{"content type", body(valid), "audio/wav", audio.ErrUnsupportedContentType, "UnsupportedContentType"},
		{"content type with params", body(valid), "application/json; charset=utf-8", audio.ErrUnsupportedContentType, "UnsupportedContentType"},
		{"invalid json", []byte(`{"audio_b64": `), "application/json", audio.ErrMalformedPayload, "MalformedPayload"},
		{"json array", []byte(`["x"]`), "application/json", audio.ErrMalformedPayload, "MalformedPayload"},
		{"json null", []byte(`null`), "application/json", audio.ErrMalformedPayload, "MalformedPayload"},
		{"missing field", []byte(`{"audio": "abcd"}`), "application/json", audio.ErrMissingField, "MissingField"},
		{"number field", []byte(`{"audio_b64": 12}`), "application/json", audio.ErrInvalidFieldType, "InvalidFieldType"},
		{"null field", []byte(`{"audio_b64": null}`), "application/json", audio.ErrInvalidFieldType, "InvalidFieldType"},
		{"empty field", body(""), "application/json", audio.ErrInvalidFieldType, "InvalidFieldType"},
		{"bad alphabet", body("!!!!"), "application/json", audio.ErrInvalidEncoding, "InvalidEncoding"},
		{"line break", []byte(`{"audio_b64": "` + strings.ReplaceAll(wrapped, "\n", `\n`) + `"}`), "application/json", audio.ErrInvalidEncoding, "InvalidEncoding"},
		{"missing padding", body(unpadded), "application/json", audio.ErrInvalidEncoding, "InvalidEncoding"},
		{"not wav", body(base64.StdEncoding.EncodeToString([]byte("definitely not a wav file"))), "application/json", audio.ErrUndecodableAudio, "UndecodableAudio"},
		{"float wav", body(float), "application/json", audio.ErrUndecodableAudio, "UndecodableAudio"},
		{"extensible float wav", body(extFloat), "application/json", audio.ErrUndecodableAudio, "UndecodableAudio"},
		{"8-bit wav", body(eightBit), "application/json", audio.ErrUndecodableAudio, "UndecodableAudio"},
		{"sample rate", body(rate44), "application/json", audio.ErrSampleRateMismatch, "SampleRateMismatch"},
		{"rate checked before channels", body(rate8stereo), "application/json", audio.ErrSampleRateMismatch, "SampleRateMismatch"},
		{"stereo", body(stereo), "application/json", audio.ErrChannelCountMismatch, "ChannelCountMismatch"},
		{"extensible sample rate", body(extRate8), "application/json", audio.ErrSampleRateMismatch, "SampleRateMismatch"},
		{"extensible stereo", body(extStereo), "application/json", audio.ErrChannelCountMismatch, "ChannelCountMismatch"},
		{"empty audio", body(empty), "application/json", audio.ErrEmptyAudio, "EmptyAudio"},
	}

	dec := audio.NewDecoder(audio.DefaultFormat())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			buf, err := dec.Decode(tc.body, tc.contentType)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if got := audio.Kind(err); got != tc.kind {
				t.Fatalf("expected kind %q, got %q", tc.kind, got)
			}
			if !buf.IsZero() {
				t.Fatal("rejected input must not yield a buffer")
			}
		})
	}
}

func TestSampleRateMessageNamesBothRates(t *testing.T) {
	rate := testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 22050, Channels: 1, BitDepth: 16, Frames: 10})
	_, err := audio.NewDecoder(audio.Format{}).Decode(body(rate), "application/json")
	if err == nil || !strings.Contains(err.Error(), "16000") || !strings.Contains(err.Error(), "22050") {
		t.Fatalf("expected message naming both rates, got %v", err)
	}
}

func TestCustomFormat(t *testing.T) {
	dec := audio.NewDecoder(audio.Format{Field: "wav", SampleRate: 8000, Channels: 2})
	payload := []byte(`{"wav": "` + testsupport.Base64WAV(testsupport.WAVSpec{SampleRate: 8000, Channels: 2, BitDepth: 16, Frames: 5}) + `"}`)
	buf, err := dec.Decode(payload, "application/json")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Len() != 10 {
		t.Fatalf("expected interleaved 10 samples, got %d", buf.Len())
	}
	if buf.Frames() != 5 || buf.Channels() != 2 {
		t.Fatalf("expected 5 stereo frames, got %d frames of %d channels", buf.Frames(), buf.Channels())
	}
	if buf.Duration() != 625*time.Microsecond {
		t.Fatalf("expected duration from frames, got %s", buf.Duration())
	}
}

func TestKindOfForeignError(t *testing.T) {
	if audio.Kind(errors.New("other")) != "" || audio.Kind(nil) != "" {
		t.Fatal("expected empty kind for non-decoder errors")
	}
	if audio.IsDecodeError(errors.New("other")) {
		t.Fatal("foreign error is not a decode error")
	}
}
