package llm

import (
	"errors"
	"fmt"
)

// Distinct, non-retriable-without-backoff error kinds. Callers surface
// these to the invoking feature instead of retrying silently.
var (
	ErrRateLimited     = errors.New("model provider rate limited")
	ErrPaymentRequired = errors.New("model provider payment required")
)

// MalformedOutputError flags non-JSON or schema-mismatched model output.
// The affected pipeline stage aborts; the pipeline continues with partial
// results.
type MalformedOutputError struct {
	Detail string
	Err    error
}

func (e *MalformedOutputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed model output: %s: %v", e.Detail, e.Err)
	}
	return fmt.Sprintf("malformed model output: %s", e.Detail)
}

func (e *MalformedOutputError) Unwrap() error { return e.Err }

// IsMalformedOutput reports whether err is a malformed-output failure.
func IsMalformedOutput(err error) bool {
	var m *MalformedOutputError
	return errors.As(err, &m)
}

// ConfigurationError flags missing credentials or a disabled feature.
// Surfaced to the caller as a rejected request, never retried.
type ConfigurationError struct {
	Detail string
}

func (e *ConfigurationError) Error() string {
	return "model client configuration: " + e.Detail
}
