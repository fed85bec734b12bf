// Package faults defines the engine-wide error taxonomy and the retry
// helper that applies bounded exponential backoff to transient failures.
//
// Errors are tagged with sentinel markers so the ingest coordinator can
// decide whether a failed unit should be retried, recorded and skipped,
// or abort the run before any work begins.
package faults
