// Package nemo runs a NeMo ASR model inside a long-lived Python worker and
// exposes it as a Go transcription function.
//
// The worker is started once, loads the checkpoint, announces readiness,
// then answers one JSON line per request. Requests are serialized; each one
// writes its signals to temporary WAV files that the worker transcribes as a
// single batch. The bundled worker script can be replaced through
// Config.Command for custom images.
package nemo
