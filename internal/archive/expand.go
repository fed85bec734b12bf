package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"romcurator/internal/catalog"
	"romcurator/internal/hashing"
	"romcurator/internal/logging"
)

// Options bound one expansion pass. MemberHashLimit caps how many members of
// a single container are hashed; zero means no cap.
type Options struct {
	MaxDepth        int
	TempSpaceBytes  int64
	Passwords       []string
	ChunkBytes      int
	MemberHashLimit int
}

// Stats summarizes expansion work.
type Stats struct {
	Containers       int
	Members          int
	Salvaged         int
	PasswordRequired int
	Corrupt          int
	NestedExpanded   int
}

// Expander walks container file records and catalogs their members.
type Expander struct {
	store      *catalog.Store
	logger     *slog.Logger
	tempDir    string
	opts       Options
	classifier *Classifier
}

// NewExpander constructs an Expander. classifier may be nil, in which case
// built-in extension defaults apply.
func NewExpander(store *catalog.Store, logger *slog.Logger, tempDir string, classifier *Classifier, opts Options) *Expander {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 3
	}
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = hashing.DefaultChunkBytes
	}
	return &Expander{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "archive"),
		tempDir:    tempDir,
		opts:       opts,
		classifier: classifier,
	}
}

// Expand catalogs the members of one container file. Password and corruption
// failures mark the container's discovery candidate failed and are recorded
// in the operation log without returning an error, so a bad archive never
// aborts the run; readable members are salvaged. candidateID may be zero when
// the container has no discovery row.
func (e *Expander) Expand(ctx context.Context, absPath string, containerFileID, candidateID int64, runID string) (Stats, error) {
	var stats Stats
	err := e.expand(ctx, absPath, containerFileID, candidateID, runID, 1, &stats)
	return stats, err
}

func (e *Expander) expand(ctx context.Context, absPath string, containerFileID, candidateID int64, runID string, depth int, stats *Stats) error {
	kind, ok := ProbeFile(absPath)
	if !ok {
		return nil
	}
	stats.Containers++

	container, err := Open(absPath, kind, e.opts.Passwords)
	if err != nil {
		return e.recordFailure(ctx, absPath, candidateID, runID, err, stats)
	}
	defer container.Close()

	members, err := container.Enumerate(ctx)
	if err != nil && len(members) == 0 {
		return e.recordFailure(ctx, absPath, candidateID, runID, err, stats)
	}
	partial := err != nil
	if partial {
		// Partial enumeration: keep what was readable.
		stats.Corrupt++
		if opErr := e.appendOp(ctx, catalog.OpCorrupt, absPath, runID, err); opErr != nil {
			return opErr
		}
	}

	var contents []catalog.ArchiveMemberContent
	var nested []string // member paths that are containers themselves
	primaryCandidates := 0
	primaryIndex := -1
	hashed := 0

	for _, member := range members {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.opts.MemberHashLimit > 0 && hashed >= e.opts.MemberHashLimit {
			e.logger.Warn("member hash limit reached, remaining members skipped",
				slog.String("container", absPath),
				slog.Int("limit", e.opts.MemberHashLimit))
			break
		}
		digests, tempPath, memberErr := e.hashMember(ctx, container, member)
		if memberErr != nil {
			stats.Corrupt++
			e.logger.Warn("skipping unreadable member",
				slog.String("container", absPath),
				slog.String("member", member.Path),
				logging.Error(memberErr))
			if errors.Is(memberErr, ErrPasswordRequired) {
				stats.PasswordRequired++
				if opErr := e.appendOp(ctx, catalog.OpPasswordRequired, absPath+"!"+member.Path, runID, memberErr); opErr != nil {
					return opErr
				}
			} else if opErr := e.appendOp(ctx, catalog.OpCorrupt, absPath+"!"+member.Path, runID, memberErr); opErr != nil {
				return opErr
			}
			continue
		}
		stats.Members++
		hashed++
		if partial {
			stats.Salvaged++
		}

		role := e.classifier.Role(member.Path)
		if role.Playable() {
			primaryCandidates++
			primaryIndex = len(contents)
		}
		contents = append(contents, catalog.ArchiveMemberContent{
			MemberPath: member.Path,
			Digests:    digests,
			Role:       role,
			Depth:      depth,
		})

		if _, isContainer := Probe(member.Path); isContainer && depth < e.opts.MaxDepth {
			if tempPath == "" {
				tempPath, memberErr = e.extractToTemp(ctx, container, member)
				if memberErr != nil {
					e.logger.Warn("cannot extract nested container",
						slog.String("member", member.Path), logging.Error(memberErr))
					continue
				}
			}
			nested = append(nested, tempPath)
		} else if tempPath != "" {
			_ = os.Remove(tempPath)
		}
	}

	// A container with exactly one playable member treats it as the primary
	// content; multi-member sets leave the decision to correlation.
	if primaryCandidates == 1 && primaryIndex >= 0 {
		contents[primaryIndex].IsPrimary = true
	}

	if err := e.store.RecordArchiveMembers(ctx, containerFileID, contents); err != nil {
		return err
	}

	for _, tempPath := range nested {
		digests, hashErr := hashTempFile(ctx, tempPath, e.opts.ChunkBytes)
		if hashErr == nil {
			if record, recErr := e.store.FileBySHA1(ctx, digests.SHA1); recErr == nil && record != nil {
				stats.NestedExpanded++
				if err := e.expand(ctx, tempPath, record.ID, 0, runID, depth+1, stats); err != nil {
					_ = os.Remove(tempPath)
					return err
				}
			}
		}
		_ = os.Remove(tempPath)
	}
	return nil
}

// hashMember streams a member through the digest pass. Formats that cannot
// stream twice return the temp path used, so a nested expansion can reuse it.
func (e *Expander) hashMember(ctx context.Context, container Container, member Member) (catalog.Digests, string, error) {
	rc, err := container.OpenMember(ctx, member.Path)
	if err != nil {
		return catalog.Digests{}, "", err
	}
	defer rc.Close()

	if _, isContainer := Probe(member.Path); isContainer {
		// Nested containers are spooled to disk so they can be both hashed
		// and reopened for expansion.
		tempPath, err := e.spool(rc, member)
		if err != nil {
			return catalog.Digests{}, "", err
		}
		digests, err := hashTempFile(ctx, tempPath, e.opts.ChunkBytes)
		if err != nil {
			_ = os.Remove(tempPath)
			return catalog.Digests{}, "", err
		}
		return digests, tempPath, nil
	}

	digests, err := hashing.ComputeDigests(ctx, rc, e.opts.ChunkBytes)
	if err != nil {
		return catalog.Digests{}, "", err
	}
	return digests, "", nil
}

func (e *Expander) extractToTemp(ctx context.Context, container Container, member Member) (string, error) {
	rc, err := container.OpenMember(ctx, member.Path)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	return e.spool(rc, member)
}

func (e *Expander) spool(r io.Reader, member Member) (string, error) {
	if err := ensureTempSpace(e.tempDir, member.Size, e.opts.TempSpaceBytes); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(e.tempDir, "expand-*"+filepath.Ext(member.Path))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		name := tmp.Name()
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("%w: spool member %q: %v", ErrCorrupt, member.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	return tmp.Name(), nil
}

func hashTempFile(ctx context.Context, path string, chunkBytes int) (catalog.Digests, error) {
	f, err := os.Open(path)
	if err != nil {
		return catalog.Digests{}, err
	}
	defer f.Close()
	return hashing.ComputeDigests(ctx, f, chunkBytes)
}

func (e *Expander) recordFailure(ctx context.Context, absPath string, candidateID int64, runID string, cause error, stats *Stats) error {
	kind := catalog.OpCorrupt
	if errors.Is(cause, ErrPasswordRequired) {
		kind = catalog.OpPasswordRequired
		stats.PasswordRequired++
	} else {
		stats.Corrupt++
	}
	e.logger.Warn("container not expandable",
		slog.String("path", absPath),
		slog.String("reason", string(kind)),
		logging.Error(cause))
	if candidateID != 0 {
		if err := e.store.MarkCandidate(ctx, candidateID, catalog.CandidateFailed, cause.Error()); err != nil {
			return err
		}
	}
	return e.appendOp(ctx, kind, absPath, runID, cause)
}

func (e *Expander) appendOp(ctx context.Context, kind catalog.OperationKind, path, runID string, cause error) error {
	_, err := e.store.AppendOperation(ctx, catalog.Operation{
		RunID:      runID,
		Kind:       kind,
		SourcePath: path,
		Detail:     cause.Error(),
	})
	return err
}
