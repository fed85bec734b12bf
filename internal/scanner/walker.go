package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"romcurator/internal/catalog"
	"romcurator/internal/faults"
	"romcurator/internal/logging"
)

// checkpointVersion is bumped when the cursor encoding changes; stored
// checkpoints with another version are discarded.
const checkpointVersion = 1

// Stats summarizes one walk of one root.
type Stats struct {
	DirsWalked    int
	Discovered    int
	Excluded      int
	MarkerSkipped int
	Unreadable    int
	Resumed       bool
	MissedFlagged int64
	RulesSkipped  int64
}

// Walker discovers files under library roots in checkpointed batches.
type Walker struct {
	store     *catalog.Store
	logger    *slog.Logger
	rules     Rules
	batchSize int
}

// New constructs a Walker. batchSize bounds how many candidates are held in
// memory before a commit.
func New(store *catalog.Store, logger *slog.Logger, rules Rules, batchSize int) *Walker {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &Walker{
		store:     store,
		logger:    logging.NewComponentLogger(logger, "scanner"),
		rules:     rules,
		batchSize: batchSize,
	}
}

type cursorState struct {
	Queue []string `json:"queue"`
	// StartedAt is the start of the whole walk, carried across resumes so
	// reconciliation compares against the first pass, not the latest one.
	StartedAt time.Time `json:"started_at"`
}

func encodeCursor(queue []string, startedAt time.Time) string {
	data, err := json.Marshal(cursorState{Queue: queue, StartedAt: startedAt})
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeCursor(cursor string) (cursorState, error) {
	var state cursorState
	if err := json.Unmarshal([]byte(cursor), &state); err != nil {
		return cursorState{}, fmt.Errorf("decode walk cursor: %w", err)
	}
	return state, nil
}

// Walk scans one root to completion. Directories are visited breadth-first
// so the checkpoint cursor is simply the queue of directories not yet
// visited; every candidate batch commits together with that cursor.
func (w *Walker) Walk(ctx context.Context, rootID int64, rootPath, runID string) (Stats, error) {
	var stats Stats
	rulesHash := w.rules.Hash()

	queue := []string{"."}
	walkStart := time.Now().UTC()

	if cp, err := w.store.CheckpointForRoot(ctx, rootID); err != nil {
		return stats, err
	} else if cp != nil {
		if cp.RulesHash == rulesHash && cp.Version == checkpointVersion {
			state, err := decodeCursor(cp.Cursor)
			if err != nil {
				w.logger.Warn("discarding unreadable checkpoint", logging.Error(err))
			} else {
				queue = state.Queue
				if !state.StartedAt.IsZero() {
					walkStart = state.StartedAt
				}
				stats.Resumed = true
				w.logger.Info("resuming walk from checkpoint",
					slog.Int64("root_id", rootID),
					slog.Int("pending_dirs", len(queue)))
			}
		} else {
			w.logger.Info("exclusion rules changed, restarting walk", slog.Int64("root_id", rootID))
			if err := w.store.ClearCheckpoint(ctx, rootID); err != nil {
				return stats, err
			}
		}
	}

	var batch []catalog.Candidate
	flush := func(flushCtx context.Context, remaining []string) error {
		cp := catalog.Checkpoint{
			RootID:    rootID,
			Cursor:    encodeCursor(remaining, walkStart),
			RulesHash: rulesHash,
			Version:   checkpointVersion,
		}
		if len(batch) == 0 {
			return w.store.SaveCheckpoint(flushCtx, cp)
		}
		if err := w.store.RecordDiscoveryBatch(flushCtx, batch, cp); err != nil {
			return err
		}
		stats.Discovered += len(batch)
		batch = batch[:0]
		return nil
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			// Persist progress with a detached context so cancellation
			// still leaves a resumable checkpoint behind.
			if flushErr := flush(context.WithoutCancel(ctx), queue); flushErr != nil {
				return stats, flushErr
			}
			return stats, faults.Wrap(faults.ErrTransient, "scan", "walk", "walk interrupted", err)
		}

		dir := queue[0]
		queue = queue[1:]
		stats.DirsWalked++

		entries, err := os.ReadDir(filepath.Join(rootPath, filepath.FromSlash(dir)))
		if err != nil {
			stats.Unreadable++
			w.logger.Warn("skipping unreadable directory",
				slog.String("dir", dir), logging.Error(err))
			continue
		}

		names := make([]string, len(entries))
		for i, entry := range entries {
			names[i] = entry.Name()
		}
		if w.rules.hasMarker(names) {
			stats.MarkerSkipped++
			w.logger.Debug("skipping marked directory", slog.String("dir", dir))
			continue
		}

		for _, entry := range entries {
			rel := path.Join(dir, entry.Name())
			if entry.IsDir() {
				if w.rules.Excluded(rel + "/") || w.rules.Excluded(rel) {
					stats.Excluded++
					continue
				}
				queue = append(queue, rel)
				continue
			}
			if !entry.Type().IsRegular() {
				continue
			}
			if w.rules.Excluded(rel) {
				stats.Excluded++
				continue
			}
			info, err := entry.Info()
			if err != nil {
				stats.Unreadable++
				w.logger.Warn("skipping unreadable file", slog.String("path", rel), logging.Error(err))
				continue
			}
			batch = append(batch, catalog.Candidate{
				RootID:       rootID,
				RelativePath: rel,
				SizeBytes:    info.Size(),
				ModifiedAt:   info.ModTime().UTC(),
				RunID:        runID,
			})
			if len(batch) >= w.batchSize {
				if err := flush(ctx, queue); err != nil {
					return stats, err
				}
			}
		}

		if err := flush(ctx, queue); err != nil {
			return stats, err
		}
	}

	if err := w.store.ClearCheckpoint(ctx, rootID); err != nil {
		return stats, err
	}

	// A complete walk has touched every includable path, so pending
	// candidates it never refreshed are now excluded (or gone) and must not
	// reach the hashing stage. Resumed walks skip this: their earlier batches
	// ran under another run id.
	if !stats.Resumed {
		skipped, err := w.store.SkipUnseenCandidates(ctx, rootID, runID)
		if err != nil {
			return stats, err
		}
		stats.RulesSkipped = skipped
		if skipped > 0 {
			w.logger.Info("skipped candidates no longer eligible",
				slog.Int64("root_id", rootID), slog.Int64("count", skipped))
		}
	}

	flagged, err := w.store.MarkInstancesMissing(ctx, rootID, walkStart)
	if err != nil {
		return stats, err
	}
	stats.MissedFlagged = flagged
	if flagged > 0 {
		w.logger.Info("flagged missing instances",
			slog.Int64("root_id", rootID), slog.Int64("count", flagged))
	}

	w.logger.Info("walk complete",
		slog.Int64("root_id", rootID),
		slog.Int("dirs", stats.DirsWalked),
		slog.Int("discovered", stats.Discovered),
		slog.Int("excluded", stats.Excluded))
	return stats, nil
}
