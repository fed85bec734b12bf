package refimport

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"romcurator/internal/catalog"
	"romcurator/internal/logging"
)

const sampleDAT = `<?xml version="1.0"?>
<datafile>
  <header>
    <name>Nintendo - Nintendo Entertainment System</name>
    <description>Nintendo - Nintendo Entertainment System</description>
    <version>20260101-000000</version>
    <homepage>No-Intro</homepage>
  </header>
  <game name="Super Mario Bros. (USA)">
    <description>Super Mario Bros. (USA)</description>
    <rom name="Super Mario Bros. (USA).nes" size="40976" crc="3337EC46" md5="811B027EAF99C2DEF7B933C5208636DE" sha1="EA343F4E445A9050D4B4FBAC2C77D0693B1D0922" status="verified"/>
  </game>
  <game name="Super Mario Bros. (Europe) (Rev 1)" cloneof="Super Mario Bros. (USA)">
    <description>Super Mario Bros. (Europe) (Rev 1)</description>
    <rom name="Super Mario Bros. (Europe) (Rev 1).nes" size="40976" crc="9F2D3E4A" md5="00000000000000000000000000000000" sha1="1111111111111111111111111111111111111111"/>
  </game>
</datafile>`

func newStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestImportDAT(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	stats, err := New(store, logging.NewNop()).Import(ctx, strings.NewReader(sampleDAT))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Entries != 2 || stats.Clones != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.Platform != "Nintendo - Nintendo Entertainment System" {
		t.Errorf("platform = %q", stats.Platform)
	}

	entry, err := store.EntryBySHA1(ctx, "ea343f4e445a9050d4b4fbac2c77d0693b1d0922")
	if err != nil || entry == nil {
		t.Fatalf("entry lookup: %v", err)
	}
	if entry.Title != "Super Mario Bros." || entry.Region != "USA" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.DumpStatus != "verified" {
		t.Errorf("dump status = %q", entry.DumpStatus)
	}

	platform, _, err := store.ResolvePlatform(ctx, "Nintendo - Nintendo Entertainment System")
	if err != nil || platform == nil {
		t.Fatalf("platform lookup: %v", err)
	}
	entries, _ := store.EntriesForPlatform(ctx, platform.ID)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	var clone *catalog.ReferenceEntry
	for _, e := range entries {
		if e.IsClone {
			clone = e
		}
	}
	if clone == nil || clone.CloneOf != "Super Mario Bros. (USA)" {
		t.Fatalf("clone = %+v", clone)
	}
	if clone.Version != "1" {
		t.Errorf("clone version = %q, want parsed revision", clone.Version)
	}
	if clone.Region != "Europe" {
		t.Errorf("clone region = %q", clone.Region)
	}
}

func TestImportUsesExistingAlias(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	platformID, _ := store.EnsurePlatform(ctx, "NES", "")
	if err := store.AddPlatformAlias(ctx, platformID, "Nintendo - Nintendo Entertainment System", "nointro", 1.0); err != nil {
		t.Fatalf("alias: %v", err)
	}

	stats, err := New(store, logging.NewNop()).Import(ctx, strings.NewReader(sampleDAT))
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if stats.Platform != "NES" {
		t.Fatalf("platform = %q, alias must resolve to the canonical platform", stats.Platform)
	}
	entries, _ := store.EntriesForPlatform(ctx, platformID)
	if len(entries) != 2 {
		t.Fatalf("entries landed on the wrong platform: %d", len(entries))
	}
}

func TestReimportUpdatesInPlace(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	importer := New(store, logging.NewNop())
	if _, err := importer.Import(ctx, strings.NewReader(sampleDAT)); err != nil {
		t.Fatalf("first import: %v", err)
	}
	platform, _, _ := store.ResolvePlatform(ctx, "Nintendo - Nintendo Entertainment System")
	before, _ := store.EntriesForPlatform(ctx, platform.ID)
	if len(before) != 2 {
		t.Fatalf("entries = %d, want 2", len(before))
	}

	if _, err := importer.Import(ctx, strings.NewReader(sampleDAT)); err != nil {
		t.Fatalf("second import: %v", err)
	}
	after, _ := store.EntriesForPlatform(ctx, platform.ID)
	if len(after) != 2 {
		t.Fatalf("re-import duplicated entries: %d, want 2", len(after))
	}
	// Stable identifiers keep existing correlation links valid.
	for i := range before {
		if after[i].ID != before[i].ID {
			t.Fatalf("entry id changed: %d -> %d", before[i].ID, after[i].ID)
		}
	}
}

func TestImportRejectsGarbage(t *testing.T) {
	store := newStore(t)
	if _, err := New(store, logging.NewNop()).Import(context.Background(), strings.NewReader("not xml at all")); err == nil {
		t.Fatal("garbage input must fail")
	}
}

func TestDetectVocabulary(t *testing.T) {
	cases := []struct {
		header datHeader
		want   string
	}{
		{datHeader{Name: "Nintendo - NES", Homepage: "No-Intro"}, "nointro"},
		{datHeader{Name: "Commodore Amiga - Games (TOSEC-v2021)"}, "tosec"},
		{datHeader{Name: "GoodNES", Description: "GoodTools set"}, "goodtools"},
	}
	for _, tc := range cases {
		if got := detectVocabulary(tc.header); got != tc.want {
			t.Errorf("detectVocabulary(%q) = %q, want %q", tc.header.Name, got, tc.want)
		}
	}
}
