// Package catalog persists the curation catalog in SQLite: library roots,
// discovered instances, hashed file records, canonical games and releases,
// reference entries with correlation links, curation candidates, selection
// sets, and the operation log used for undo.
package catalog
