package audio

import "errors"

var (
	ErrUnsupportedContentType = errors.New("unsupported content type")
	ErrMalformedPayload       = errors.New("malformed payload")
	ErrMissingField           = errors.New("missing field")
	ErrInvalidFieldType       = errors.New("invalid field type")
	ErrInvalidEncoding        = errors.New("invalid base64 encoding")
	ErrUndecodableAudio       = errors.New("undecodable audio")
	ErrSampleRateMismatch     = errors.New("sample rate mismatch")
	ErrChannelCountMismatch   = errors.New("channel count mismatch")
	ErrEmptyAudio             = errors.New("empty audio")
)

var kinds = []struct {
	err  error
	name string
}{
	{ErrUnsupportedContentType, "UnsupportedContentType"},
	{ErrMalformedPayload, "MalformedPayload"},
	{ErrMissingField, "MissingField"},
	{ErrInvalidFieldType, "InvalidFieldType"},
	{ErrInvalidEncoding, "InvalidEncoding"},
	{ErrUndecodableAudio, "UndecodableAudio"},
	{ErrSampleRateMismatch, "SampleRateMismatch"},
	{ErrChannelCountMismatch, "ChannelCountMismatch"},
	{ErrEmptyAudio, "EmptyAudio"},
}

// Kind names the decoding rule err violated, or "" when err is not a
// decoder error.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return ""
}

// IsDecodeError reports whether err came from Decoder.Decode.
func IsDecodeError(err error) bool {
	return Kind(err) != ""
}
