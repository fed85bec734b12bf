package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zip"
)

type zipContainer struct {
	rc *zip.ReadCloser
}

func openZip(path string) (Container, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &zipContainer{rc: rc}, nil
}

func (z *zipContainer) Kind() Kind { return KindZip }

func (z *zipContainer) Enumerate(ctx context.Context) ([]Member, error) {
	members := make([]Member, 0, len(z.rc.File))
	for _, f := range z.rc.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/") {
			continue
		}
		members = append(members, Member{Path: f.Name, Size: int64(f.UncompressedSize64)})
	}
	return members, nil
}

func (z *zipContainer) OpenMember(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, f := range z.rc.File {
		if f.Name != path {
			continue
		}
		// Traditional zip encryption sets the low flag bit; there is no
		// portable way to decrypt, so the member is reported as locked.
		if f.Flags&0x1 != 0 {
			return nil, ErrPasswordRequired
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open member %q: %v", ErrCorrupt, path, err)
		}
		return rc, nil
	}
	return nil, fmt.Errorf("member %q not found", path)
}

func (z *zipContainer) Close() error {
	return z.rc.Close()
}
