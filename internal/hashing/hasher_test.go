package hashing

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"romcurator/internal/catalog"
	"romcurator/internal/logging"
)

func TestComputeDigestsKnownVector(t *testing.T) {
	digests, err := ComputeDigests(context.Background(), strings.NewReader("abc"), 4)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if digests.SHA1 != "a9993e364706816aba3e25717850c26c9cd0d89d" {
		t.Errorf("sha1 = %s", digests.SHA1)
	}
	if digests.MD5 != "900150983cd24fb0d6963f7d28e17f72" {
		t.Errorf("md5 = %s", digests.MD5)
	}
	if digests.CRC32 != "352441c2" {
		t.Errorf("crc32 = %s", digests.CRC32)
	}
	if digests.SizeBytes != 3 {
		t.Errorf("size = %d", digests.SizeBytes)
	}
}

func TestComputeDigestsHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ComputeDigests(ctx, bytes.NewReader(make([]byte, 1024)), 16)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}

func setupLibrary(t *testing.T) (*catalog.Store, int64, string) {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	root := t.TempDir()
	rootID, err := store.EnsureRoot(context.Background(), root, "")
	if err != nil {
		t.Fatalf("ensure root: %v", err)
	}
	return store, rootID, root
}

func discover(t *testing.T, store *catalog.Store, rootID int64, root, rel, contents string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(full)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	err = store.RecordDiscoveryBatch(context.Background(), []catalog.Candidate{{
		RootID: rootID, RelativePath: rel, SizeBytes: info.Size(), ModifiedAt: info.ModTime().UTC(),
	}}, catalog.Checkpoint{RootID: rootID, Cursor: "{}", RulesHash: "t", Version: 1})
	if err != nil {
		t.Fatalf("record candidate: %v", err)
	}
}

func TestRunPromotesAndDeduplicates(t *testing.T) {
	store, rootID, root := setupLibrary(t)
	ctx := context.Background()

	discover(t, store, rootID, root, "one.bin", "same-content")
	discover(t, store, rootID, root, "two.bin", "same-content")

	h := New(store, logging.NewNop(), Options{Workers: 2, BatchSize: 10})
	stats, err := h.Run(ctx, map[int64]string{rootID: root})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Hashed != 2 {
		t.Fatalf("hashed = %d, want 2", stats.Hashed)
	}

	pending, _ := store.PendingCandidates(ctx, 10)
	if len(pending) != 0 {
		t.Fatalf("pending after run = %d, want 0", len(pending))
	}

	// Both instances must share one file record.
	candidates, _ := store.CandidateStats(ctx)
	if candidates[catalog.CandidateHashed] != 2 {
		t.Fatalf("hashed candidates = %d", candidates[catalog.CandidateHashed])
	}
	instOne, _ := store.CandidateByPath(ctx, rootID, "one.bin")
	if instOne.State != catalog.CandidateHashed {
		t.Fatalf("candidate one state = %s", instOne.State)
	}
}

func TestRunUsesHashCacheOnRescan(t *testing.T) {
	store, rootID, root := setupLibrary(t)
	ctx := context.Background()

	discover(t, store, rootID, root, "game.bin", "payload")
	h := New(store, logging.NewNop(), Options{Workers: 1, BatchSize: 10})
	if _, err := h.Run(ctx, map[int64]string{rootID: root}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Re-discover the unchanged file; the second pass must hit the cache.
	cand, _ := store.CandidateByPath(ctx, rootID, "game.bin")
	if err := store.MarkCandidate(ctx, cand.ID, catalog.CandidatePending, ""); err != nil {
		t.Fatalf("reset candidate: %v", err)
	}
	stats, err := h.Run(ctx, map[int64]string{rootID: root})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.CacheHits != 1 {
		t.Fatalf("cache hits = %d, want 1", stats.CacheHits)
	}
}

func TestRunSkipsVanishedAndOversized(t *testing.T) {
	store, rootID, root := setupLibrary(t)
	ctx := context.Background()

	discover(t, store, rootID, root, "vanished.bin", "x")
	if err := os.Remove(filepath.Join(root, "vanished.bin")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	discover(t, store, rootID, root, "huge.bin", "0123456789")

	h := New(store, logging.NewNop(), Options{Workers: 1, BatchSize: 10, MaxFileBytes: 5})
	stats, err := h.Run(ctx, map[int64]string{rootID: root})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Skipped != 2 {
		t.Fatalf("skipped = %d, want 2", stats.Skipped)
	}
	if stats.Hashed != 0 {
		t.Fatalf("hashed = %d, want 0", stats.Hashed)
	}
}

func TestRunAppliesRoleFunc(t *testing.T) {
	store, rootID, root := setupLibrary(t)
	ctx := context.Background()

	discover(t, store, rootID, root, "bundle.zip", "not-a-real-zip")
	h := New(store, logging.NewNop(), Options{
		Workers: 1, BatchSize: 10,
		Role: func(rel string) catalog.ContentRole {
			if strings.HasSuffix(rel, ".zip") {
				return catalog.RoleContainer
			}
			return catalog.RoleROM
		},
	})
	if _, err := h.Run(ctx, map[int64]string{rootID: root}); err != nil {
		t.Fatalf("run: %v", err)
	}

	digests, err := ComputeDigests(ctx, strings.NewReader("not-a-real-zip"), 64)
	if err != nil {
		t.Fatalf("digests: %v", err)
	}
	record, _ := store.FileBySHA1(ctx, digests.SHA1)
	if record == nil || record.ContentRole != catalog.RoleContainer {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestRunUnmountedRootFails(t *testing.T) {
	store, rootID, root := setupLibrary(t)
	ctx := context.Background()
	discover(t, store, rootID, root, "a.bin", "x")

	h := New(store, logging.NewNop(), Options{Workers: 1, BatchSize: 10, UnitTimeout: time.Second})
	stats, err := h.Run(ctx, map[int64]string{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Failed != 1 {
		t.Fatalf("failed = %d, want 1", stats.Failed)
	}
	cand, _ := store.CandidateByPath(ctx, rootID, "a.bin")
	if cand.State != catalog.CandidateFailed {
		t.Fatalf("state = %s, want failed", cand.State)
	}
}
