package archive

import (
	"context"
	"fmt"
	"io"

	"github.com/nwaples/rardecode/v2"
)

type rarContainer struct {
	path     string
	password string
	files    []*rardecode.File
}

// openRar lists the archive up front, trying the empty password first.
// rardecode follows multi-part sets when handed the first part.
func openRar(path string, passwords []string) (Container, error) {
	attempts := append([]string{""}, passwords...)
	var lastErr error
	for _, password := range attempts {
		var opts []rardecode.Option
		if password != "" {
			opts = append(opts, rardecode.Password(password))
		}
		files, err := rardecode.List(path, opts...)
		if err == nil {
			return &rarContainer{path: path, password: password, files: files}, nil
		}
		lastErr = err
	}
	return nil, classifyOpenError(lastErr)
}

func (r *rarContainer) Kind() Kind { return KindRar }

func (r *rarContainer) Enumerate(ctx context.Context) ([]Member, error) {
	members := make([]Member, 0, len(r.files))
	for _, f := range r.files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if f.IsDir {
			continue
		}
		members = append(members, Member{Path: f.Name, Size: f.UnPackedSize})
	}
	return members, nil
}

func (r *rarContainer) OpenMember(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, f := range r.files {
		if f.Name == path {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: open member %q: %v", ErrCorrupt, path, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("member %q not found", path)
}

func (r *rarContainer) Close() error { return nil }
