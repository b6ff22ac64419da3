// Package cloud wraps the AWS services nemoship talks to: IAM for the
// SageMaker execution role, STS for the caller identity, S3 for the model
// archive, SageMaker for model and endpoint registration, and the SageMaker
// runtime for invocations.
//
// Each wrapper depends on a narrow interface satisfied by the matching
// aws-sdk-go-v2 client so tests can substitute stubs. Calls are made once;
// retry behaviour is whatever the SDK's default retryer does.
package cloud
