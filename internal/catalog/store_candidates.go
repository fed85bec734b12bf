package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnsureRoot registers a library root path, returning its identifier.
func (s *Store) EnsureRoot(ctx context.Context, path, label string) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO library_root (path, label, created_at) VALUES (?, ?, ?)
         ON CONFLICT(path) DO NOTHING`,
		path, nullableString(label), nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert root: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM library_root WHERE path = ?`, path).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup root: %w", err)
	}
	return id, nil
}

// Roots returns all registered library roots.
func (s *Store) Roots(ctx context.Context) ([]LibraryRoot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, path, label, created_at FROM library_root ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query roots: %w", err)
	}
	defer rows.Close()

	var roots []LibraryRoot
	for rows.Next() {
		var (
			root    LibraryRoot
			label   sql.NullString
			created string
		)
		if err := rows.Scan(&root.ID, &root.Path, &label, &created); err != nil {
			return nil, err
		}
		root.Label = label.String
		if t, err := parseTimeString(created); err == nil {
			root.CreatedAt = t
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}

// RecordDiscoveryBatch upserts a batch of discovered candidates and the walk
// checkpoint that covers them in a single transaction, so a resumed walk
// never revisits committed work or loses it.
func (s *Store) RecordDiscoveryBatch(ctx context.Context, candidates []Candidate, checkpoint Checkpoint) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stamp := nowStamp()
		for _, c := range candidates {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO discovery_candidate
                    (root_id, relative_path, size_bytes, modified_at, state, run_id, created_at, updated_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                 ON CONFLICT(root_id, relative_path) DO UPDATE SET
                    size_bytes = excluded.size_bytes,
                    modified_at = excluded.modified_at,
                    state = CASE
                        WHEN discovery_candidate.size_bytes != excluded.size_bytes
                          OR discovery_candidate.modified_at IS NOT excluded.modified_at
                        THEN 'pending'
                        ELSE discovery_candidate.state
                    END,
                    run_id = excluded.run_id,
                    updated_at = excluded.updated_at`,
				c.RootID, c.RelativePath, c.SizeBytes, nullableTime(c.ModifiedAt),
				CandidatePending, nullableString(c.RunID), stamp, stamp,
			)
			if err != nil {
				return fmt.Errorf("upsert candidate %q: %w", c.RelativePath, err)
			}
			// A sighting refreshes the instance so reconciliation only
			// flags paths the walk never reached, and restores instances
			// that were missing but have reappeared.
			_, err = tx.ExecContext(ctx,
				`UPDATE physical_instance SET last_seen_at = ?, status = ?
                 WHERE root_id = ? AND relative_path = ? AND status != ?`,
				stamp, InstancePresent, c.RootID, c.RelativePath, InstanceQuarantined,
			)
			if err != nil {
				return fmt.Errorf("refresh instance %q: %w", c.RelativePath, err)
			}
		}
		return saveCheckpointTx(ctx, tx, checkpoint)
	})
}

func saveCheckpointTx(ctx context.Context, tx *sql.Tx, cp Checkpoint) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO walk_checkpoint (root_id, cursor, rules_hash, version, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(root_id) DO UPDATE SET
            cursor = excluded.cursor,
            rules_hash = excluded.rules_hash,
            version = excluded.version,
            updated_at = excluded.updated_at`,
		cp.RootID, cp.Cursor, cp.RulesHash, cp.Version, nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// SaveCheckpoint persists a walk checkpoint outside a discovery batch, used
// when a directory level completes without producing new candidates.
func (s *Store) SaveCheckpoint(ctx context.Context, cp Checkpoint) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return saveCheckpointTx(ctx, tx, cp)
	})
}

// CheckpointForRoot returns the stored walk checkpoint, or nil when the root
// has no resumable walk.
func (s *Store) CheckpointForRoot(ctx context.Context, rootID int64) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT root_id, cursor, rules_hash, version, updated_at FROM walk_checkpoint WHERE root_id = ?`,
		rootID,
	)
	var (
		cp      Checkpoint
		updated string
	)
	err := row.Scan(&cp.RootID, &cp.Cursor, &cp.RulesHash, &cp.Version, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	if t, err := parseTimeString(updated); err == nil {
		cp.UpdatedAt = t
	}
	return &cp, nil
}

// ClearCheckpoint drops the walk checkpoint for a root, forcing the next
// scan to start from the beginning.
func (s *Store) ClearCheckpoint(ctx context.Context, rootID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM walk_checkpoint WHERE root_id = ?`, rootID); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

const candidateColumns = "id, root_id, relative_path, size_bytes, modified_at, state, failure, run_id, created_at, updated_at"

func scanCandidate(scanner interface{ Scan(dest ...any) error }) (*Candidate, error) {
	var (
		c        Candidate
		modified sql.NullString
		state    string
		failure  sql.NullString
		runID    sql.NullString
		created  string
		updated  string
	)
	if err := scanner.Scan(&c.ID, &c.RootID, &c.RelativePath, &c.SizeBytes, &modified, &state, &failure, &runID, &created, &updated); err != nil {
		return nil, err
	}
	c.State = CandidateState(state)
	c.Failure = failure.String
	c.RunID = runID.String
	if modified.Valid {
		if t, err := parseTimeString(modified.String); err == nil {
			c.ModifiedAt = t
		}
	}
	if t, err := parseTimeString(created); err == nil {
		c.CreatedAt = t
	}
	if t, err := parseTimeString(updated); err == nil {
		c.UpdatedAt = t
	}
	return &c, nil
}

// PendingCandidates returns up to limit candidates awaiting hashing, oldest first.
func (s *Store) PendingCandidates(ctx context.Context, limit int) ([]*Candidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+candidateColumns+` FROM discovery_candidate WHERE state = ? ORDER BY id LIMIT ?`,
		CandidatePending, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// CandidateByPath returns the candidate for a root-relative path, or nil.
func (s *Store) CandidateByPath(ctx context.Context, rootID int64, relativePath string) (*Candidate, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM discovery_candidate WHERE root_id = ? AND relative_path = ?`,
		rootID, relativePath,
	)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

// MarkCandidate transitions a candidate to a terminal state with an optional
// failure note.
func (s *Store) MarkCandidate(ctx context.Context, id int64, state CandidateState, failure string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE discovery_candidate SET state = ?, failure = ?, updated_at = ? WHERE id = ?`,
		state, nullableString(failure), nowStamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark candidate: %w", err)
	}
	return nil
}

// RetryFailedCandidates moves every failed candidate back to pending so the
// next hashing pass picks it up again. Returns the number requeued.
func (s *Store) RetryFailedCandidates(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_candidate SET state = ?, failure = NULL, updated_at = ? WHERE state = ?`,
		CandidatePending, nowStamp(), CandidateFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed candidates: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailedCandidates marks every failed candidate as skipped so it stops
// appearing in the backlog. The discovery row survives, keeping the failure
// note and preventing rediscovery on the next scan.
func (s *Store) ClearFailedCandidates(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_candidate SET state = ?, updated_at = ? WHERE state = ?`,
		CandidateSkipped, nowStamp(), CandidateFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("clear failed candidates: %w", err)
	}
	return res.RowsAffected()
}

// SkipUnseenCandidates marks pending candidates under a root that the walk
// identified by runID never touched as skipped. After a rules change forces a
// full re-walk, the rows left behind are exactly the paths the new exclusions
// filtered out. Returns the number of candidates skipped.
func (s *Store) SkipUnseenCandidates(ctx context.Context, rootID int64, runID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE discovery_candidate
         SET state = ?, failure = 'excluded by updated rules', updated_at = ?
         WHERE root_id = ? AND state = ? AND (run_id IS NULL OR run_id != ?)`,
		CandidateSkipped, nowStamp(), rootID, CandidatePending, runID,
	)
	if err != nil {
		return 0, fmt.Errorf("skip unseen candidates: %w", err)
	}
	return res.RowsAffected()
}

// PendingWork sums the backlog awaiting the hashing stage: candidate count
// and total bytes.
func (s *Store) PendingWork(ctx context.Context) (int, int64, error) {
	var (
		count int
		bytes sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(size_bytes), 0) FROM discovery_candidate WHERE state = ?`,
		CandidatePending,
	).Scan(&count, &bytes)
	if err != nil {
		return 0, 0, fmt.Errorf("pending work: %w", err)
	}
	return count, bytes.Int64, nil
}

// CandidateStats returns a count of candidates grouped by state.
func (s *Store) CandidateStats(ctx context.Context) (map[CandidateState]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM discovery_candidate GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("candidate stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[CandidateState]int)
	for rows.Next() {
		var state CandidateState
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[state] = count
	}
	return stats, rows.Err()
}

// MarkInstancesMissing flags instances under a root that were not seen since
// cutoff as missing. Returns the number of instances flagged.
func (s *Store) MarkInstancesMissing(ctx context.Context, rootID int64, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE physical_instance SET status = ? WHERE root_id = ? AND status = ? AND last_seen_at < ?`,
		InstanceMissing, rootID, InstancePresent, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("mark instances missing: %w", err)
	}
	return res.RowsAffected()
}
