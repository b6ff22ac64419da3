// Package deploy runs the end-to-end deployment: prepare the model archive,
// record it in the ledger, resolve the execution role and bucket, upload the
// archive, register the SageMaker model and endpoint configuration, then
// create or update the endpoint and optionally wait for it to serve.
//
// Only one deployment may run per state directory; Run holds a file lock for
// its whole duration and marks rows left running by a crashed process as
// interrupted before starting.
package deploy
