package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// BeginRun records the start of an ingest run.
func (s *Store) BeginRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ingest_run (id, started_at, status) VALUES (?, ?, ?)`,
		runID, nowStamp(), RunRunning,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun closes an ingest run with its terminal status and stats.
func (s *Store) FinishRun(ctx context.Context, runID string, status RunStatus, statsJSON, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE ingest_run SET finished_at = ?, status = ?, stats_json = ?, error = ? WHERE id = ?`,
		nowStamp(), status, nullableString(statsJSON), nullableString(errMsg), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RunByID returns one ingest run, or nil.
func (s *Store) RunByID(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, finished_at, status, stats_json, error FROM ingest_run WHERE id = ?`,
		runID,
	)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// RecentRuns returns the most recent ingest runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, stats_json, error
         FROM ingest_run ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (*Run, error) {
	var (
		run      Run
		started  string
		finished sql.NullString
		status   string
		stats    sql.NullString
		errMsg   sql.NullString
	)
	if err := scanner.Scan(&run.ID, &started, &finished, &status, &stats, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)
	run.StatsJSON = stats.String
	run.Error = errMsg.String
	if t, err := parseTimeString(started); err == nil {
		run.StartedAt = t
	}
	if finished.Valid {
		if t, err := parseTimeString(finished.String); err == nil {
			run.FinishedAt = t
		}
	}
	return &run, nil
}

// AppendOperation adds one entry to the append-only operation log.
func (s *Store) AppendOperation(ctx context.Context, op Operation) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO operation_log (run_id, kind, instance_id, source_path, dest_path, sha1, detail, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		nullableString(op.RunID), op.Kind, nullableInt64(op.InstanceID),
		nullableString(op.SourcePath), nullableString(op.DestPath),
		nullableString(op.SHA1), nullableString(op.Detail), nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("append operation: %w", err)
	}
	return res.LastInsertId()
}

const operationColumns = "id, run_id, kind, instance_id, source_path, dest_path, sha1, detail, undone, created_at"

func scanOperation(scanner interface{ Scan(dest ...any) error }) (*Operation, error) {
	var (
		op         Operation
		runID      sql.NullString
		kind       string
		instanceID sql.NullInt64
		sourcePath sql.NullString
		destPath   sql.NullString
		sha1       sql.NullString
		detail     sql.NullString
		undone     int
		created    string
	)
	if err := scanner.Scan(&op.ID, &runID, &kind, &instanceID, &sourcePath, &destPath, &sha1, &detail, &undone, &created); err != nil {
		return nil, err
	}
	op.RunID = runID.String
	op.Kind = OperationKind(kind)
	op.InstanceID = instanceID.Int64
	op.SourcePath = sourcePath.String
	op.DestPath = destPath.String
	op.SHA1 = sha1.String
	op.Detail = detail.String
	op.Undone = undone != 0
	if t, err := parseTimeString(created); err == nil {
		op.CreatedAt = t
	}
	return &op, nil
}

// OperationsForRun returns the log entries of one run in apply order.
func (s *Store) OperationsForRun(ctx context.Context, runID string) ([]*Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operation_log WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query operations: %w", err)
	}
	defer rows.Close()
	return collectOperations(rows)
}

// UndoableOperations returns the not-yet-undone move and copy entries of a
// run in reverse apply order, the order an undo must replay them in.
func (s *Store) UndoableOperations(ctx context.Context, runID string) ([]*Operation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+operationColumns+` FROM operation_log
         WHERE run_id = ? AND undone = 0 AND kind IN (?, ?, ?)
         ORDER BY id DESC`,
		runID, OpMove, OpCopy, OpQuarantine,
	)
	if err != nil {
		return nil, fmt.Errorf("query undoable operations: %w", err)
	}
	defer rows.Close()
	return collectOperations(rows)
}

func collectOperations(rows *sql.Rows) ([]*Operation, error) {
	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// MarkOperationUndone flags a log entry as reverted.
func (s *Store) MarkOperationUndone(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE operation_log SET undone = 1 WHERE id = ? AND undone = 0`, id)
	if err != nil {
		return fmt.Errorf("mark operation undone: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("operation %d is not undoable", id)
	}
	return nil
}

// LatestOrganizeRun returns the run id of the most recent move/copy
// operation, or empty when nothing has been organized.
func (s *Store) LatestOrganizeRun(ctx context.Context) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM operation_log
         WHERE kind IN (?, ?) AND run_id IS NOT NULL
         ORDER BY id DESC LIMIT 1`,
		OpMove, OpCopy,
	)
	var runID string
	err := row.Scan(&runID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest organize run: %w", err)
	}
	return runID, nil
}
