// Package config loads, normalizes, and validates the TOML configuration
// consumed by the ingestion engine: library roots and exclusion rules,
// hashing and archive ceilings, matcher thresholds, selection policies,
// and the destination path template.
package config
