package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"

	"romcurator/internal/catalog"
)

func TestProbe(t *testing.T) {
	cases := []struct {
		path string
		kind Kind
		ok   bool
	}{
		{"game.zip", KindZip, true},
		{"game.7z", KindSevenZip, true},
		{"game.rar", KindRar, true},
		{"game.part1.rar", KindRar, true},
		{"game.part2.rar", "", false},
		{"set.tar", KindTar, true},
		{"set.tar.gz", KindTar, true},
		{"set.tgz", KindTar, true},
		{"set.tar.zst", KindTar, true},
		{"rom.gz", KindGzip, true},
		{"rom.zst", KindZstd, true},
		{"archive.7z.001", KindSevenZip, true},
		{"archive.7z.002", "", false},
		{"archive.zip.001", "", false},
		{"archive.z01", "", false},
		{"game.nes", "", false},
	}
	for _, tc := range cases {
		kind, ok := Probe(tc.path)
		if ok != tc.ok || kind != tc.kind {
			t.Errorf("Probe(%q) = (%q, %v), want (%q, %v)", tc.path, kind, ok, tc.kind, tc.ok)
		}
	}
}

func TestClassifierRoles(t *testing.T) {
	c := NewClassifier([]catalog.ExtensionRule{
		{Ext: ".sav", Role: catalog.RoleAuxiliary},
	})
	if got := c.Role("game.nes"); got != catalog.RoleROM {
		t.Errorf("nes role = %s", got)
	}
	if got := c.Role("notes.txt"); got != catalog.RoleAuxiliary {
		t.Errorf("txt role = %s", got)
	}
	if got := c.Role("bundle.zip"); got != catalog.RoleContainer {
		t.Errorf("zip role = %s", got)
	}
	if got := c.Role("disc1.iso"); got != catalog.RoleDisc {
		t.Errorf("iso role = %s", got)
	}
	if got := c.Role("translation.ips"); got != catalog.RolePatch {
		t.Errorf("ips role = %s", got)
	}
	if got := c.Role("progress.srm"); got != catalog.RoleSave {
		t.Errorf("srm role = %s", got)
	}
	// Registry rules outrank the built-in tables.
	if got := c.Role("game.sav"); got != catalog.RoleAuxiliary {
		t.Errorf("registry rule ignored: %s", got)
	}
}

func TestProbeFileSniffsSignature(t *testing.T) {
	dir := t.TempDir()

	// A zip wearing the wrong extension is recognized by its magic bytes.
	misnamed := filepath.Join(dir, "bundle.bin")
	writeZip(t, misnamed, map[string]string{"game.nes": "rom"})
	if kind, ok := ProbeFile(misnamed); !ok || kind != KindZip {
		t.Errorf("ProbeFile(misnamed zip) = (%q, %v), want (zip, true)", kind, ok)
	}

	// No magic and no container extension: not a container.
	plain := filepath.Join(dir, "game.nes")
	if err := os.WriteFile(plain, []byte("rom-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if kind, ok := ProbeFile(plain); ok {
		t.Errorf("ProbeFile(plain rom) = (%q, true), want false", kind)
	}

	// A later split volume is never expandable, whatever its content.
	split := filepath.Join(dir, "set.zip.001")
	writeZip(t, split, map[string]string{"a": "b"})
	if _, ok := ProbeFile(split); ok {
		t.Error("ProbeFile must refuse split zip volumes")
	}

	// Unreadable paths fall back to the extension.
	if kind, ok := ProbeFile(filepath.Join(dir, "missing.7z")); !ok || kind != KindSevenZip {
		t.Errorf("ProbeFile(missing.7z) = (%q, %v), want (7z, true)", kind, ok)
	}
}

func TestClassifyOpenError(t *testing.T) {
	err := classifyOpenError(errors.New("sevenzip: password required"))
	if !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("password text not classified: %v", err)
	}
	err = classifyOpenError(errors.New("rardecode: cannot decrypt block"))
	if !errors.Is(err, ErrPasswordRequired) {
		t.Errorf("decrypt text not classified: %v", err)
	}
	err = classifyOpenError(errors.New("unexpected end of archive"))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("structural failure must map to corrupt: %v", err)
	}
	if errors.Is(err, ErrPasswordRequired) {
		t.Error("corrupt error must not double as password required")
	}
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, contents := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(contents)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write zip: %v", err)
	}
}

func TestZipContainerRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.zip")
	writeZip(t, path, map[string]string{
		"game.nes":  "rom-bytes",
		"notes.txt": "hello",
	})

	c, err := Open(path, KindZip, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	members, err := c.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}

	rc, err := c.OpenMember(context.Background(), "game.nes")
	if err != nil {
		t.Fatalf("open member: %v", err)
	}
	defer rc.Close()
	var got bytes.Buffer
	if _, err := got.ReadFrom(rc); err != nil {
		t.Fatalf("read member: %v", err)
	}
	if got.String() != "rom-bytes" {
		t.Errorf("member contents = %q", got.String())
	}
}

func TestOpenZipCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.zip")
	if err := os.WriteFile(path, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Open(path, KindZip, nil); err == nil {
		t.Fatal("expected corrupt error")
	}
}

func writeTarGz(t *testing.T, path string, files map[string]string) {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, contents := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(contents))}); err != nil {
			t.Fatalf("tar header: %v", err)
		}
		if _, err := tw.Write([]byte(contents)); err != nil {
			t.Fatalf("tar write: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestTarGzContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "set.tar.gz")
	writeTarGz(t, path, map[string]string{"disk1.img": "payload-1"})

	c, err := Open(path, KindTar, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	members, err := c.Enumerate(context.Background())
	if err != nil {
		t.Fatalf("enumerate: %v", err)
	}
	if len(members) != 1 || members[0].Path != "disk1.img" {
		t.Fatalf("members = %+v", members)
	}

	rc, err := c.OpenMember(context.Background(), "disk1.img")
	if err != nil {
		t.Fatalf("open member: %v", err)
	}
	defer rc.Close()
	var got bytes.Buffer
	got.ReadFrom(rc)
	if got.String() != "payload-1" {
		t.Errorf("contents = %q", got.String())
	}
}

func TestGzipSingleMember(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rom.bin.gz")
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	gz.Write([]byte("raw-rom"))
	gz.Close()
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Open(path, KindGzip, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()

	members, _ := c.Enumerate(context.Background())
	if len(members) != 1 || members[0].Path != "rom.bin" {
		t.Fatalf("members = %+v", members)
	}
	rc, err := c.OpenMember(context.Background(), "rom.bin")
	if err != nil {
		t.Fatalf("open member: %v", err)
	}
	defer rc.Close()
	var got bytes.Buffer
	got.ReadFrom(rc)
	if got.String() != "raw-rom" {
		t.Errorf("contents = %q", got.String())
	}
}
