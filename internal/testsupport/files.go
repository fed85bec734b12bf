package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path string, content []byte) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFileOfSize fills path with size bytes of a repeating pattern. A size
// <= 0 writes a single byte.
func WriteFileOfSize(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	pattern := bytes.Repeat([]byte{0x42}, 32*1024)
	var buf bytes.Buffer
	buf.Grow(int(size))
	for int64(buf.Len()) < size {
		remaining := size - int64(buf.Len())
		if remaining < int64(len(pattern)) {
			buf.Write(pattern[:remaining])
		} else {
			buf.Write(pattern)
		}
	}
	WriteFile(t, path, buf.Bytes())
}
