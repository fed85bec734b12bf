package organizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"romcurator/internal/catalog"
	"romcurator/internal/logging"
)

const testTemplate = "{{.Platform}}/{{.Title}}{{with .Region}} ({{.}}){{end}}{{.Ext}}"

type fixture struct {
	store      *catalog.Store
	libraryDir string
	destDir    string
	quarantine string
	instanceID int64
	setID      string
	sourcePath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	libraryDir := t.TempDir()
	sourcePath := filepath.Join(libraryDir, "snes", "example.sfc")
	if err := os.MkdirAll(filepath.Dir(sourcePath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(sourcePath, []byte("rom-payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	rootID, err := store.EnsureRoot(ctx, libraryDir, "")
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	platformID, err := store.EnsurePlatform(ctx, "SNES", "")
	if err != nil {
		t.Fatalf("platform: %v", err)
	}
	game, err := store.GetOrCreateGame(ctx, platformID, "Example Quest", "example quest")
	if err != nil {
		t.Fatalf("game: %v", err)
	}
	releaseID, err := store.AddRelease(ctx, catalog.Release{GameID: game.ID, Region: "USA"})
	if err != nil {
		t.Fatalf("release: %v", err)
	}

	err = store.CommitHashBatch(ctx, []catalog.HashedFile{{
		RootID:       rootID,
		RelativePath: "snes/example.sfc",
		Digests:      catalog.Digests{SHA1: "s1", CRC32: "c1", MD5: "m1", SizeBytes: 11},
		ContentRole:  catalog.RoleROM,
	}})
	if err != nil {
		t.Fatalf("hash batch: %v", err)
	}
	file, _ := store.FileBySHA1(ctx, "s1")
	if err := store.LinkArtifact(ctx, releaseID, file.ID); err != nil {
		t.Fatalf("artifact: %v", err)
	}
	instances, _ := store.InstancesForFile(ctx, file.ID)
	instanceID := instances[0].ID

	setID := "set-test"
	err = store.CreateSelectionSet(ctx, catalog.SelectionSet{ID: setID, PolicyName: "default"},
		[]catalog.SelectionEntry{{
			SetID: setID, GameID: game.ID, ReleaseID: releaseID,
			InstanceID: instanceID, Rank: 1,
		}})
	if err != nil {
		t.Fatalf("selection set: %v", err)
	}

	return &fixture{
		store:      store,
		libraryDir: libraryDir,
		destDir:    t.TempDir(),
		quarantine: t.TempDir(),
		instanceID: instanceID,
		setID:      setID,
		sourcePath: sourcePath,
	}
}

func (f *fixture) organizer(t *testing.T, overwrite bool) *Organizer {
	t.Helper()
	o, err := New(f.store, logging.NewNop(), Options{
		DestinationDir: f.destDir,
		QuarantineDir:  f.quarantine,
		PathTemplate:   testTemplate,
		Overwrite:      overwrite,
	})
	if err != nil {
		t.Fatalf("new organizer: %v", err)
	}
	return o
}

func (f *fixture) wantDest() string {
	return filepath.Join(f.destDir, "SNES", "Example Quest (USA).sfc")
}

func TestPlanRendersTemplate(t *testing.T) {
	f := newFixture(t)
	plan, err := f.organizer(t, false).Plan(context.Background(), f.setID)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan) != 1 {
		t.Fatalf("plan entries = %d, want 1", len(plan))
	}
	entry := plan[0]
	if entry.Action != ActionMove {
		t.Fatalf("action = %s (%s)", entry.Action, entry.Reason)
	}
	if entry.DestPath != f.wantDest() {
		t.Errorf("dest = %q, want %q", entry.DestPath, f.wantDest())
	}
	if entry.SourcePath != f.sourcePath {
		t.Errorf("source = %q, want %q", entry.SourcePath, f.sourcePath)
	}
	// Planning must not touch the filesystem.
	if _, err := os.Stat(f.sourcePath); err != nil {
		t.Fatalf("source moved by plan: %v", err)
	}
}

func TestApplyMovesAndRecords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stats, err := f.organizer(t, false).Apply(ctx, f.setID, "run-org")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.Moved != 1 {
		t.Fatalf("stats = %+v", stats)
	}

	if _, err := os.Stat(f.wantDest()); err != nil {
		t.Fatalf("destination missing: %v", err)
	}
	if _, err := os.Stat(f.sourcePath); !os.IsNotExist(err) {
		t.Fatalf("source still present: %v", err)
	}

	ops, _ := f.store.OperationsForRun(ctx, "run-org")
	if len(ops) != 1 || ops[0].Kind != catalog.OpMove || ops[0].DestPath != f.wantDest() {
		t.Fatalf("ops = %+v", ops)
	}
	if ops[0].SHA1 != "s1" {
		t.Errorf("operation sha1 = %q, want the moved content's digest", ops[0].SHA1)
	}

	instance, _ := f.store.InstanceByID(ctx, f.instanceID)
	if instance.RelativePath != "SNES/Example Quest (USA).sfc" {
		t.Errorf("instance path = %q", instance.RelativePath)
	}
	if instance.Status != catalog.InstancePresent {
		t.Errorf("instance status = %s", instance.Status)
	}
}

func TestApplyConflictRespectsOverwrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dest := f.wantDest()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(dest, []byte("occupied"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	stats, err := f.organizer(t, false).Apply(ctx, f.setID, "run-1")
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if stats.Conflicts != 1 || stats.Moved != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if _, err := os.Stat(f.sourcePath); err != nil {
		t.Fatalf("conflicting apply must leave source alone: %v", err)
	}

	stats, err = f.organizer(t, true).Apply(ctx, f.setID, "run-2")
	if err != nil {
		t.Fatalf("apply overwrite: %v", err)
	}
	if stats.Moved != 1 {
		t.Fatalf("overwrite stats = %+v", stats)
	}
	contents, _ := os.ReadFile(dest)
	if string(contents) != "rom-payload" {
		t.Errorf("dest contents = %q", contents)
	}
}

func TestUndoRestoresRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.organizer(t, false)

	if _, err := o.Apply(ctx, f.setID, "run-undo"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	reversed, err := o.Undo(ctx, "run-undo")
	if err != nil {
		t.Fatalf("undo: %v", err)
	}
	if reversed != 1 {
		t.Fatalf("reversed = %d, want 1", reversed)
	}
	if _, err := os.Stat(f.sourcePath); err != nil {
		t.Fatalf("source not restored: %v", err)
	}
	if _, err := os.Stat(f.wantDest()); !os.IsNotExist(err) {
		t.Fatalf("destination lingers: %v", err)
	}

	instance, _ := f.store.InstanceByID(ctx, f.instanceID)
	if instance.RelativePath != "snes/example.sfc" {
		t.Errorf("instance path = %q", instance.RelativePath)
	}

	// The run is spent: a second undo has nothing to reverse.
	reversed, err = o.Undo(ctx, "run-undo")
	if err != nil || reversed != 0 {
		t.Fatalf("second undo = (%d, %v), want (0, nil)", reversed, err)
	}
}

func TestQuarantineAndUndo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	o := f.organizer(t, false)

	if err := o.Quarantine(ctx, f.instanceID, "run-q", "bad dump"); err != nil {
		t.Fatalf("quarantine: %v", err)
	}

	quarantined := filepath.Join(f.quarantine, "example.sfc")
	if _, err := os.Stat(quarantined); err != nil {
		t.Fatalf("quarantined file missing: %v", err)
	}
	instance, _ := f.store.InstanceByID(ctx, f.instanceID)
	if instance.Status != catalog.InstanceQuarantined {
		t.Fatalf("status = %s", instance.Status)
	}

	reversed, err := o.Undo(ctx, "run-q")
	if err != nil || reversed != 1 {
		t.Fatalf("undo = (%d, %v)", reversed, err)
	}
	if _, err := os.Stat(f.sourcePath); err != nil {
		t.Fatalf("source not restored: %v", err)
	}
	instance, _ = f.store.InstanceByID(ctx, f.instanceID)
	if instance.Status != catalog.InstancePresent {
		t.Fatalf("status after undo = %s", instance.Status)
	}
}

func TestPlanSkipsMissingInstance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.store.SetInstanceStatus(ctx, f.instanceID, catalog.InstanceMissing); err != nil {
		t.Fatalf("set status: %v", err)
	}
	plan, err := f.organizer(t, false).Plan(ctx, f.setID)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if len(plan) != 1 || plan[0].Action != ActionSkip {
		t.Fatalf("plan = %+v", plan)
	}
}

func TestRejectsTraversalInTemplate(t *testing.T) {
	f := newFixture(t)
	o, err := New(f.store, logging.NewNop(), Options{
		DestinationDir: f.destDir,
		PathTemplate:   "../{{.Title}}{{.Ext}}",
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := o.Plan(context.Background(), f.setID); err == nil {
		t.Fatal("template escaping the destination must fail")
	}
}
