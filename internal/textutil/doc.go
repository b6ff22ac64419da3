// Package textutil normalizes free-form text into names AWS accepts.
//
// SageMaker resource names allow only ASCII letters, digits and single
// hyphens; S3 key segments are friendlier but still reject path separators
// inside a prefix segment. Both helpers collapse anything else to a hyphen.
package textutil
