// Package organizer materializes a selection set on disk: it plans
// destination paths from the configured template, moves files with a
// copy-verify fallback across filesystems, and records every move in the
// operation log so a run can be undone.
package organizer
