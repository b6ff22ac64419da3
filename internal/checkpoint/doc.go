// Package checkpoint retrieves pretrained .nemo checkpoints onto local disk.
//
// The Fetcher interface is the only thing the artifact preparer depends on.
// HubFetcher implements it against the Hugging Face Hub "resolve" endpoint,
// which is where NeMo's from_pretrained looks for published checkpoints.
// Downloads stream into a temporary sibling file and are renamed into place
// only when complete, so an interrupted fetch never leaves a partial
// checkpoint at the destination.
package checkpoint
