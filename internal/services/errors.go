package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrCloud         = errors.New("cloud api error")
)

// Wrap prefixes err with stage and operation context while tagging it with
// marker so callers can classify the failure with errors.Is.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Hint returns a short operator-facing suggestion for err.
func Hint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "check the config file and environment overrides"
	case errors.Is(err, ErrValidation):
		return "inspect the input and retry"
	case errors.Is(err, ErrNotFound):
		return "verify the referenced path or resource exists"
	case errors.Is(err, ErrCloud):
		return "verify AWS credentials, region and IAM permissions"
	case errors.Is(err, ErrTimeout):
		return "retry or raise the configured timeout"
	case errors.Is(err, ErrExternalTool):
		return "check the external tool output in the logs"
	default:
		return "check logs for details"
	}
}

// ExitCode maps err to the process exit status used by the CLI.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return 2
	default:
		return 1
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{stage, operation, message} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
