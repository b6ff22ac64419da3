// Package inference serves transcription requests in the SageMaker
// bring-your-own-container shape.
//
// The request path is decode, transcribe, encode: audio.Decoder validates
// the payload, Transcriber hands the samples to the loaded model as a
// one-element batch, and Encoder wraps the transcript as {"text": ...}.
// Server exposes GET /ping and POST /invocations on a gorilla/mux router and
// maps each failure class to an HTTP status with a JSON error body.
package inference
