// Package archive expands container files (zip, 7z, rar, tar, gzip, zstd)
// so their members become first-class content in the catalog. Members are
// hashed by streaming where the format allows it; solid or nested containers
// are extracted into a bounded temp area first. Password-protected and
// corrupt containers degrade gracefully: readable members are salvaged and
// the failure is recorded instead of aborting the run.
package archive
