package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

// Kind identifies a container format.
type Kind string

const (
	KindZip      Kind = "zip"
	KindSevenZip Kind = "7z"
	KindRar      Kind = "rar"
	KindTar      Kind = "tar"
	KindGzip     Kind = "gzip"
	KindZstd     Kind = "zstd"
)

// Sentinel conditions a caller is expected to branch on.
var (
	// ErrPasswordRequired means no configured password opened the container.
	ErrPasswordRequired = errors.New("container requires a password")
	// ErrCorrupt means the container structure is damaged; some members may
	// still have been salvaged.
	ErrCorrupt = errors.New("container is corrupt")
)

// Member describes one entry inside a container.
type Member struct {
	Path string
	Size int64
}

// Container is a read handle over one archive file.
type Container interface {
	Kind() Kind
	// Enumerate lists the members without extracting them.
	Enumerate(ctx context.Context) ([]Member, error)
	// OpenMember streams one member's content.
	OpenMember(ctx context.Context, path string) (io.ReadCloser, error)
	Close() error
}

var splitVolumePattern = regexp.MustCompile(`\.(?:z\d{2}|\d{3}|part0*[2-9]\d*\.rar|r\d{2})$`)

// Probe classifies a path by extension alone, for member paths that do not
// exist on disk. The second return is false for non-containers. Later volumes
// of split sets report ok=false so only the first volume is expanded.
func Probe(path string) (Kind, bool) {
	lower := strings.ToLower(path)

	if splitVolumePattern.MatchString(lower) {
		// .7z.001 chains open through the first volume. Split zip sets are
		// not expandable; the zip reader needs the reassembled archive.
		if strings.HasSuffix(lower, ".7z.001") {
			return KindSevenZip, true
		}
		return "", false
	}

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return KindZip, true
	case strings.HasSuffix(lower, ".7z"):
		return KindSevenZip, true
	case strings.HasSuffix(lower, ".rar"):
		if strings.Contains(lower, ".part") && !strings.HasSuffix(lower, ".part1.rar") && !strings.HasSuffix(lower, ".part01.rar") {
			return "", false
		}
		return KindRar, true
	case strings.HasSuffix(lower, ".tar"):
		return KindTar, true
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return KindTar, true
	case strings.HasSuffix(lower, ".tar.zst"):
		return KindTar, true
	case strings.HasSuffix(lower, ".gz"):
		return KindGzip, true
	case strings.HasSuffix(lower, ".zst"):
		return KindZstd, true
	}
	return "", false
}

// ProbeFile classifies an on-disk file by signature bytes, falling back to
// the extension when the file cannot be read or carries no known magic.
// Later volumes of split sets report ok=false regardless of content.
func ProbeFile(path string) (Kind, bool) {
	lower := strings.ToLower(path)
	if splitVolumePattern.MatchString(lower) && !strings.HasSuffix(lower, ".7z.001") {
		return "", false
	}
	kind, ok := sniffSignature(path)
	if !ok {
		return Probe(path)
	}
	// A gzip or zstd wrapper around a tarball expands as tar.
	if (kind == KindGzip || kind == KindZstd) &&
		(strings.Contains(lower, ".tar.") || strings.HasSuffix(lower, ".tgz")) {
		return KindTar, true
	}
	return kind, true
}

var (
	zipMagic      = []byte("PK\x03\x04")
	sevenZipMagic = []byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}
	rarMagic      = []byte("Rar!\x1a\x07")
	gzipMagic     = []byte{0x1F, 0x8B}
	zstdMagic     = []byte{0x28, 0xB5, 0x2F, 0xFD}
	tarMagic      = []byte("ustar") // at offset 257
)

func sniffSignature(path string) (Kind, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()

	header := make([]byte, 262)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", false
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic):
		return KindZip, true
	case bytes.HasPrefix(header, sevenZipMagic):
		return KindSevenZip, true
	case bytes.HasPrefix(header, rarMagic):
		return KindRar, true
	case bytes.HasPrefix(header, gzipMagic):
		return KindGzip, true
	case bytes.HasPrefix(header, zstdMagic):
		return KindZstd, true
	case len(header) >= 262 && bytes.Equal(header[257:262], tarMagic):
		return KindTar, true
	}
	return "", false
}

// classifyOpenError maps a library open failure onto the package sentinels.
// Encryption errors come back in different shapes per format and decoder
// version, so the match is on the error text.
func classifyOpenError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") || strings.Contains(msg, "decrypt") {
		return fmt.Errorf("%w: %v", ErrPasswordRequired, err)
	}
	return fmt.Errorf("%w: %v", ErrCorrupt, err)
}

// Open returns a Container for the probed kind. passwords are tried in
// order, the empty password first, for formats that support encryption.
func Open(path string, kind Kind, passwords []string) (Container, error) {
	switch kind {
	case KindZip:
		return openZip(path)
	case KindSevenZip:
		return openSevenZip(path, passwords)
	case KindRar:
		return openRar(path, passwords)
	case KindTar, KindGzip, KindZstd:
		return openStream(path, kind)
	default:
		return nil, errors.New("unsupported container kind")
	}
}
