// Package main hosts the romcurator CLI entrypoint and command graph.
//
// The Cobra-based command tree drives ingest runs, reference catalog imports,
// correlation passes, curation queue review, 1G1R selection, and destination
// organization. It centralizes configuration resolution, catalog access, and
// structured logging setup so subcommands can focus on user experience
// instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
