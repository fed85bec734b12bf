package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"romcurator/internal/catalog"
	"romcurator/internal/logging"
	"romcurator/internal/testsupport"
)

func newStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func writeFile(t *testing.T, root string, rel string, contents string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestWalkDiscoversFiles(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "nes/game1.nes", "aaa")
	writeFile(t, root, "nes/game2.nes", "bbb")
	writeFile(t, root, "snes/deep/game3.sfc", "ccc")

	rootID, _ := store.EnsureRoot(ctx, root, "")
	w := New(store, logging.NewNop(), Rules{}, 10)

	stats, err := w.Walk(ctx, rootID, root, "run-1")
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if stats.Discovered != 3 {
		t.Fatalf("discovered = %d, want 3", stats.Discovered)
	}

	pending, _ := store.PendingCandidates(ctx, 10)
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}

	// Walk completed, so no checkpoint should remain.
	cp, _ := store.CheckpointForRoot(ctx, rootID)
	if cp != nil {
		t.Fatal("checkpoint left behind after completed walk")
	}
}

func TestWalkAppliesExclusions(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "keep.nes", "x")
	writeFile(t, root, "skip.tmp", "x")
	writeFile(t, root, "trash/ignored.nes", "x")

	rootID, _ := store.EnsureRoot(ctx, root, "")
	rules := Rules{ExcludeGlobs: []string{"**/*.tmp", "*.tmp", "trash", "trash/**"}}
	w := New(store, logging.NewNop(), rules, 10)

	stats, err := w.Walk(ctx, rootID, root, "run-1")
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if stats.Discovered != 1 {
		t.Fatalf("discovered = %d, want 1", stats.Discovered)
	}
	pending, _ := store.PendingCandidates(ctx, 10)
	if len(pending) != 1 || pending[0].RelativePath != "keep.nes" {
		t.Fatalf("unexpected candidates: %+v", pending)
	}
}

func TestWalkSkipsMarkedDirectories(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "good/game.nes", "x")
	writeFile(t, root, "private/game.nes", "x")
	writeFile(t, root, "private/.curatorignore", "")

	rootID, _ := store.EnsureRoot(ctx, root, "")
	w := New(store, logging.NewNop(), Rules{MarkerFiles: []string{".curatorignore"}}, 10)

	stats, err := w.Walk(ctx, rootID, root, "run-1")
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if stats.MarkerSkipped != 1 {
		t.Fatalf("marker skipped = %d, want 1", stats.MarkerSkipped)
	}
	pending, _ := store.PendingCandidates(ctx, 10)
	if len(pending) != 1 || pending[0].RelativePath != "good/game.nes" {
		t.Fatalf("unexpected candidates: %+v", pending)
	}
}

func TestWalkResumesFromCheckpoint(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	root := t.TempDir()
	for _, rel := range []string{"a/1.nes", "b/2.nes", "c/3.nes"} {
		writeFile(t, root, rel, "x")
	}

	rootID, _ := store.EnsureRoot(ctx, root, "")
	w := New(store, logging.NewNop(), Rules{}, 10)

	// A pre-cancelled context stops the walk before it drains the queue.
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := w.Walk(cancelled, rootID, root, "run-1"); err == nil {
		t.Fatal("expected error from interrupted walk")
	}

	cp, _ := store.CheckpointForRoot(ctx, rootID)
	if cp == nil {
		t.Fatal("interrupted walk left no checkpoint")
	}

	stats, err := w.Walk(ctx, rootID, root, "run-2")
	if err != nil {
		t.Fatalf("resumed walk: %v", err)
	}
	if !stats.Resumed {
		t.Fatal("walk did not resume from checkpoint")
	}

	pending, _ := store.PendingCandidates(ctx, 10)
	if len(pending) != 3 {
		t.Fatalf("pending after resume = %d, want 3", len(pending))
	}
}

func TestWalkRestartsWhenRulesChange(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "game.nes", "x")

	rootID, _ := store.EnsureRoot(ctx, root, "")

	w := New(store, logging.NewNop(), Rules{}, 10)
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, _ = w.Walk(cancelled, rootID, root, "run-1")
	if cp, _ := store.CheckpointForRoot(ctx, rootID); cp == nil {
		t.Fatal("no checkpoint to invalidate")
	}

	// New rules: the stale checkpoint must not be resumed.
	w2 := New(store, logging.NewNop(), Rules{ExcludeGlobs: []string{"*.tmp"}}, 10)
	stats, err := w2.Walk(ctx, rootID, root, "run-2")
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if stats.Resumed {
		t.Fatal("walk resumed a checkpoint written under different rules")
	}
	if stats.Discovered != 1 {
		t.Fatalf("discovered = %d, want 1", stats.Discovered)
	}
}

func TestRuleChangeSkipsStagedCandidates(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	root := t.TempDir()
	writeFile(t, root, "keep.nes", "x")
	writeFile(t, root, "trash/old.nes", "x")

	rootID, _ := store.EnsureRoot(ctx, root, "")
	w := New(store, logging.NewNop(), Rules{}, 10)
	if _, err := w.Walk(ctx, rootID, root, "run-1"); err != nil {
		t.Fatalf("first walk: %v", err)
	}
	if pending, _ := store.PendingCandidates(ctx, 10); len(pending) != 2 {
		t.Fatalf("pending after first walk = %d, want 2", len(pending))
	}

	// New exclusions: the staged candidate under trash/ must not linger in
	// the hashing queue.
	w2 := New(store, logging.NewNop(), Rules{ExcludeGlobs: []string{"trash", "trash/**"}}, 10)
	stats, err := w2.Walk(ctx, rootID, root, "run-2")
	if err != nil {
		t.Fatalf("second walk: %v", err)
	}
	if stats.RulesSkipped != 1 {
		t.Fatalf("rules skipped = %d, want 1", stats.RulesSkipped)
	}

	pending, _ := store.PendingCandidates(ctx, 10)
	if len(pending) != 1 || pending[0].RelativePath != "keep.nes" {
		t.Fatalf("pending after rules change = %+v", pending)
	}
	stale, _ := store.CandidateByPath(ctx, rootID, "trash/old.nes")
	if stale.State != catalog.CandidateSkipped {
		t.Fatalf("stale candidate state = %s, want skipped", stale.State)
	}
}

func TestWalkRecordsCandidateSizes(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	root := t.TempDir()
	const size = int64(100 << 10)
	testsupport.WriteFileOfSize(t, filepath.Join(root, "big.nes"), size)

	rootID, _ := store.EnsureRoot(ctx, root, "")
	w := New(store, logging.NewNop(), Rules{}, 10)
	if _, err := w.Walk(ctx, rootID, root, "run-1"); err != nil {
		t.Fatalf("walk: %v", err)
	}

	pending, _ := store.PendingCandidates(ctx, 10)
	if len(pending) != 1 || pending[0].SizeBytes != size {
		t.Fatalf("unexpected candidates: %+v", pending)
	}
}

func TestRulesHashIsOrderInsensitive(t *testing.T) {
	a := Rules{ExcludeGlobs: []string{"x", "y"}, MarkerFiles: []string{"m"}}
	b := Rules{ExcludeGlobs: []string{"y", "x"}, MarkerFiles: []string{"m"}}
	if a.Hash() != b.Hash() {
		t.Error("hash differs for reordered globs")
	}
	c := Rules{ExcludeGlobs: []string{"x"}, MarkerFiles: []string{"m"}}
	if a.Hash() == c.Hash() {
		t.Error("hash identical for different globs")
	}
}
