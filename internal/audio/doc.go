// Package audio decodes and strictly validates inference request payloads.
//
// A request body is a JSON object carrying a base64 WAV file. Decoder.Decode
// runs a fixed sequence of checks and stops at the first failure, returning
// a sentinel that names exactly which rule was broken: content type, JSON
// shape, field presence and type, base64 encoding, WAV container, sample
// rate, channel count, then emptiness. Nothing is repaired: no resampling,
// no downmixing, no padding.
//
// A Buffer only exists after every check passed, so code that receives one
// can rely on its format.
package audio
