// Package services holds helpers shared by the artifact, deployment and
// inference layers: error markers with Wrap for stage-tagged failures, and
// context helpers that carry stage names and request ids into the logs.
//
// Subpackages wrap external engines (the NeMo transcription worker) behind
// small testable interfaces.
package services
