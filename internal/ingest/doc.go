// Package ingest sequences one full engine run: preflight, discovery,
// hashing, container expansion, and correlation, under a single catalog
// lock with a persisted run record.
package ingest
