package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// streamContainer handles the sequential formats: tar (optionally gzip or
// zstd compressed) and single-member gzip/zstd files. Members are reached by
// rescanning from the start, which is the only access these formats offer.
type streamContainer struct {
	path string
	kind Kind
}

func openStream(path string, kind Kind) (Container, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	_ = f.Close()
	return &streamContainer{path: path, kind: kind}, nil
}

func (s *streamContainer) Kind() Kind { return s.kind }

// open positions a fresh reader over the decompressed payload. The caller
// owns the returned closer.
func (s *streamContainer) open() (io.Reader, io.Closer, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, nil, err
	}
	lower := strings.ToLower(s.path)
	switch {
	case strings.HasSuffix(lower, ".gz"), strings.HasSuffix(lower, ".tgz"):
		gz, err := gzip.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		return gz, multiCloser{gz, f}, nil
	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(f)
		if err != nil {
			_ = f.Close()
			return nil, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		rc := zr.IOReadCloser()
		return rc, multiCloser{rc, f}, nil
	default:
		return f, f, nil
	}
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var firstErr error
	for _, c := range m {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// singleMemberName is the implied member path of a bare .gz or .zst file.
func (s *streamContainer) singleMemberName() string {
	base := filepath.Base(s.path)
	lower := strings.ToLower(base)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return base[:len(base)-len(".gz")]
	case strings.HasSuffix(lower, ".zst"):
		return base[:len(base)-len(".zst")]
	}
	return base
}

func (s *streamContainer) Enumerate(ctx context.Context) ([]Member, error) {
	if s.kind != KindTar {
		return []Member{{Path: s.singleMemberName(), Size: -1}}, nil
	}

	reader, closer, err := s.open()
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	tr := tar.NewReader(reader)
	var members []Member
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Salvage whatever headers were readable.
			if len(members) > 0 {
				return members, fmt.Errorf("%w: %v", ErrCorrupt, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		members = append(members, Member{Path: hdr.Name, Size: hdr.Size})
	}
	return members, nil
}

func (s *streamContainer) OpenMember(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reader, closer, err := s.open()
	if err != nil {
		return nil, err
	}

	if s.kind != KindTar {
		if path != s.singleMemberName() {
			_ = closer.Close()
			return nil, fmt.Errorf("member %q not found", path)
		}
		return readCloser{Reader: reader, Closer: closer}, nil
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			_ = closer.Close()
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if hdr.Typeflag == tar.TypeReg && hdr.Name == path {
			return readCloser{Reader: tr, Closer: closer}, nil
		}
	}
	_ = closer.Close()
	return nil, fmt.Errorf("member %q not found", path)
}

func (s *streamContainer) Close() error { return nil }

type readCloser struct {
	io.Reader
	io.Closer
}
