package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"romcurator/internal/catalog"
	"romcurator/internal/faults"
)

// Undo reverses every undoable operation of a run, newest first, so chained
// moves unwind in the right order. Returns the number reversed.
func (o *Organizer) Undo(ctx context.Context, runID string) (int, error) {
	ops, err := o.store.UndoableOperations(ctx, runID)
	if err != nil {
		return 0, err
	}
	if len(ops) == 0 {
		return 0, nil
	}

	roots, err := o.store.Roots(ctx)
	if err != nil {
		return 0, err
	}

	reversed := 0
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return reversed, err
		}
		if _, err := moveFile(op.DestPath, op.SourcePath); err != nil {
			return reversed, faults.Wrap(faults.ErrTransient, "undo", "move file",
				fmt.Sprintf("restore %s", op.SourcePath), err)
		}

		if op.InstanceID != 0 {
			rootID, relPath, ok := locateUnderRoot(op.SourcePath, roots)
			if ok {
				if err := o.store.MoveInstance(ctx, op.InstanceID, rootID, relPath); err != nil {
					return reversed, err
				}
			}
			if op.Kind == catalog.OpQuarantine {
				if err := o.store.SetInstanceStatus(ctx, op.InstanceID, catalog.InstancePresent); err != nil {
					return reversed, err
				}
			}
		}

		if _, err := o.store.AppendOperation(ctx, catalog.Operation{
			RunID:      runID,
			Kind:       catalog.OpUndo,
			InstanceID: op.InstanceID,
			SourcePath: op.DestPath,
			DestPath:   op.SourcePath,
			Detail:     fmt.Sprintf("undo of operation %d", op.ID),
		}); err != nil {
			return reversed, err
		}
		if err := o.store.MarkOperationUndone(ctx, op.ID); err != nil {
			return reversed, err
		}
		reversed++
		o.logger.Info("operation undone",
			slog.Int64("operation", op.ID),
			slog.String("restored", op.SourcePath))
	}
	return reversed, nil
}

// Quarantine moves an instance's file into the quarantine directory and
// marks the row so later scans never resurrect it.
func (o *Organizer) Quarantine(ctx context.Context, instanceID int64, runID, reason string) error {
	if strings.TrimSpace(o.opts.QuarantineDir) == "" {
		return faults.Wrap(faults.ErrConfiguration, "quarantine", "configure",
			"quarantine directory is not set", nil)
	}
	instance, err := o.store.InstanceByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if instance == nil {
		return faults.Wrap(faults.ErrNotFound, "quarantine", "lookup",
			fmt.Sprintf("instance %d not found", instanceID), nil)
	}
	roots, err := o.store.Roots(ctx)
	if err != nil {
		return err
	}
	var rootPath string
	for _, root := range roots {
		if root.ID == instance.RootID {
			rootPath = root.Path
			break
		}
	}
	if rootPath == "" {
		return faults.Wrap(faults.ErrIntegrity, "quarantine", "lookup",
			fmt.Sprintf("instance %d references unknown root %d", instanceID, instance.RootID), nil)
	}

	source := filepath.Join(rootPath, filepath.FromSlash(instance.RelativePath))
	dest := filepath.Join(o.opts.QuarantineDir, filepath.Base(instance.RelativePath))
	if _, err := moveFile(source, dest); err != nil {
		return faults.Wrap(faults.ErrTransient, "quarantine", "move file",
			fmt.Sprintf("quarantine %s", source), err)
	}

	if _, err := o.store.AppendOperation(ctx, catalog.Operation{
		RunID:      runID,
		Kind:       catalog.OpQuarantine,
		InstanceID: instanceID,
		SourcePath: source,
		DestPath:   dest,
		Detail:     reason,
	}); err != nil {
		return err
	}
	quarantineRootID, err := o.store.EnsureRoot(ctx, o.opts.QuarantineDir, "quarantine")
	if err != nil {
		return err
	}
	if err := o.store.MoveInstance(ctx, instanceID, quarantineRootID, filepath.Base(instance.RelativePath)); err != nil {
		return err
	}
	if err := o.store.SetInstanceStatus(ctx, instanceID, catalog.InstanceQuarantined); err != nil {
		return err
	}
	o.logger.Warn("instance quarantined",
		slog.Int64("instance", instanceID),
		slog.String("path", source),
		slog.String("reason", reason))
	return nil
}

// locateUnderRoot maps an absolute path back onto the longest-prefix library
// root, returning the root ID and slash-form relative path.
func locateUnderRoot(absPath string, roots []catalog.LibraryRoot) (int64, string, bool) {
	sorted := make([]catalog.LibraryRoot, len(roots))
	copy(sorted, roots)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i].Path) > len(sorted[j].Path) })
	for _, root := range sorted {
		rel, err := filepath.Rel(root.Path, absPath)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		return root.ID, filepath.ToSlash(rel), true
	}
	return 0, "", false
}
