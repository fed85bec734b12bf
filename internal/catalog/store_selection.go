package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateSelectionSet persists a frozen selection atomically. Sets are
// immutable once written; reruns create new sets instead of editing.
func (s *Store) CreateSelectionSet(ctx context.Context, set SelectionSet, entries []SelectionEntry) error {
	if set.ID == "" {
		return errors.New("selection set id is empty")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO selection_set (id, policy_name, created_at) VALUES (?, ?, ?)`,
			set.ID, set.PolicyName, nowStamp(),
		)
		if err != nil {
			return fmt.Errorf("insert selection set: %w", err)
		}
		for _, e := range entries {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO selection_entry (set_id, game_id, release_id, instance_id, rank, reason)
                 VALUES (?, ?, ?, ?, ?, ?)`,
				set.ID, e.GameID, nullableInt64(e.ReleaseID), nullableInt64(e.InstanceID),
				e.Rank, nullableString(e.Reason),
			)
			if err != nil {
				return fmt.Errorf("insert selection entry for game %d: %w", e.GameID, err)
			}
		}
		return nil
	})
}

// SelectionSetByID returns one selection set header, or nil.
func (s *Store) SelectionSetByID(ctx context.Context, id string) (*SelectionSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, policy_name, created_at FROM selection_set WHERE id = ?`, id)
	var (
		set     SelectionSet
		created string
	)
	err := row.Scan(&set.ID, &set.PolicyName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get selection set: %w", err)
	}
	if t, err := parseTimeString(created); err == nil {
		set.CreatedAt = t
	}
	return &set, nil
}

// LatestSelectionSet returns the most recent set for a policy, or nil.
func (s *Store) LatestSelectionSet(ctx context.Context, policyName string) (*SelectionSet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, policy_name, created_at FROM selection_set WHERE policy_name = ?
         ORDER BY created_at DESC LIMIT 1`,
		policyName,
	)
	var (
		set     SelectionSet
		created string
	)
	err := row.Scan(&set.ID, &set.PolicyName, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest selection set: %w", err)
	}
	if t, err := parseTimeString(created); err == nil {
		set.CreatedAt = t
	}
	return &set, nil
}

// ListSelectionSets returns all selection sets, newest first.
func (s *Store) ListSelectionSets(ctx context.Context) ([]*SelectionSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, policy_name, created_at FROM selection_set ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query selection sets: %w", err)
	}
	defer rows.Close()

	var sets []*SelectionSet
	for rows.Next() {
		var (
			set     SelectionSet
			created string
		)
		if err := rows.Scan(&set.ID, &set.PolicyName, &created); err != nil {
			return nil, err
		}
		if t, err := parseTimeString(created); err == nil {
			set.CreatedAt = t
		}
		sets = append(sets, &set)
	}
	return sets, rows.Err()
}

// SelectionEntries returns the entries of a set ordered by rank.
func (s *Store) SelectionEntries(ctx context.Context, setID string) ([]*SelectionEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, set_id, game_id, release_id, instance_id, rank, reason
         FROM selection_entry WHERE set_id = ? ORDER BY rank`,
		setID,
	)
	if err != nil {
		return nil, fmt.Errorf("query selection entries: %w", err)
	}
	defer rows.Close()

	var entries []*SelectionEntry
	for rows.Next() {
		var (
			e          SelectionEntry
			releaseID  sql.NullInt64
			instanceID sql.NullInt64
			reason     sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SetID, &e.GameID, &releaseID, &instanceID, &e.Rank, &reason); err != nil {
			return nil, err
		}
		e.ReleaseID = releaseID.Int64
		e.InstanceID = instanceID.Int64
		e.Reason = reason.String
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
