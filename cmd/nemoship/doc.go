// Command nemoship packages a NeMo speech-recognition checkpoint, deploys it
// to a SageMaker endpoint and invokes the result.
//
// Typical flow:
//
//	nemoship config init
//	nemoship preflight
//	nemoship deploy
//	nemoship invoke sample.wav
//
// prepare and inspect work entirely offline once the checkpoint is cached.
// history reads the local deployment ledger.
package main
