package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: lock contention,
	// temporarily unreachable paths, short I/O hiccups.
	ErrTransient = errors.New("transient failure")
	// ErrContent marks per-unit content failures: corrupt or encrypted
	// containers, unreadable files, digest mismatches. Recorded, never retried.
	ErrContent = errors.New("content error")
	// ErrConfiguration marks problems that must stop a run before it starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrIntegrity marks catalog constraint violations; the enclosing batch
	// transaction rolls back rather than persisting a partial write.
	ErrIntegrity = errors.New("integrity error")
	// ErrNotFound marks missing records or paths.
	ErrNotFound = errors.New("not found")
	// ErrTimeout marks units that exceeded a configured ceiling.
	ErrTimeout = errors.New("timeout")
)

// Kind names an error class from the taxonomy.
type Kind string

const (
	KindTransient     Kind = "transient"
	KindContent       Kind = "content"
	KindConfiguration Kind = "configuration"
	KindIntegrity     Kind = "integrity"
	KindNotFound      Kind = "not_found"
	KindTimeout       Kind = "timeout"
	KindUnknown       Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
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

// Classify reports which taxonomy class an error belongs to.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrIntegrity):
		return KindIntegrity
	case errors.Is(err, ErrContent):
		return KindContent
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Retryable reports whether the error class qualifies for automatic retry.
// Content-level failures (corruption, passwords) never retry.
func Retryable(err error) bool {
	return Classify(err) == KindTransient
}

// Fatal reports whether the error must stop the run entirely.
func Fatal(err error) bool {
	k := Classify(err)
	return k == KindConfiguration || k == KindIntegrity
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "engine failure"
	}
	return strings.Join(parts, ": ")
}
