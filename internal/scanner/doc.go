// Package scanner walks library roots breadth-first, filters paths through
// exclusion rules, and records discovery candidates in resumable,
// checkpointed batches. An interrupted walk resumes from the last committed
// directory level; a change to the exclusion rules invalidates the
// checkpoint and restarts the walk.
package scanner
