package hashing

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"romcurator/internal/catalog"
	"romcurator/internal/faults"
	"romcurator/internal/logging"
)

// RoleFunc classifies a root-relative path into a content role. The ingest
// coordinator wires this to the extension registry and container probe.
type RoleFunc func(relativePath string) catalog.ContentRole

// Options tune one hashing pass.
type Options struct {
	ChunkBytes   int
	MaxFileBytes int64 // 0 means unlimited
	Workers      int   // 0 sizes to the machine
	UnitTimeout  time.Duration
	BatchSize    int
	Role         RoleFunc
}

// Stats summarizes one hashing pass.
type Stats struct {
	Hashed    int
	CacheHits int
	Failed    int
	Skipped   int
}

// Hasher promotes pending candidates to hashed file records.
type Hasher struct {
	store  *catalog.Store
	logger *slog.Logger
	opts   Options
}

// New constructs a Hasher with normalized options.
func New(store *catalog.Store, logger *slog.Logger, opts Options) *Hasher {
	if opts.ChunkBytes <= 0 {
		opts.ChunkBytes = DefaultChunkBytes
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 200
	}
	if opts.UnitTimeout <= 0 {
		opts.UnitTimeout = 10 * time.Minute
	}
	if opts.Role == nil {
		opts.Role = func(string) catalog.ContentRole { return catalog.RoleROM }
	}
	return &Hasher{
		store:  store,
		logger: logging.NewComponentLogger(logger, "hashing"),
		opts:   opts,
	}
}

// Run drains the pending queue until it is empty or ctx is cancelled.
// rootPaths maps root identifiers to their absolute paths.
func (h *Hasher) Run(ctx context.Context, rootPaths map[int64]string) (Stats, error) {
	var stats Stats
	for {
		if err := ctx.Err(); err != nil {
			return stats, faults.Wrap(faults.ErrTransient, "hash", "run", "hashing interrupted", err)
		}

		pending, err := h.store.PendingCandidates(ctx, h.opts.BatchSize)
		if err != nil {
			return stats, err
		}
		if len(pending) == 0 {
			return stats, nil
		}

		batchStats, err := h.processBatch(ctx, pending, rootPaths)
		stats.Hashed += batchStats.Hashed
		stats.CacheHits += batchStats.CacheHits
		stats.Failed += batchStats.Failed
		stats.Skipped += batchStats.Skipped
		if err != nil {
			return stats, err
		}
	}
}

type unitOutcome struct {
	candidate *catalog.Candidate
	result    *catalog.HashedFile
	state     catalog.CandidateState
	failure   string
	cacheHit  bool
}

func (h *Hasher) processBatch(ctx context.Context, pending []*catalog.Candidate, rootPaths map[int64]string) (Stats, error) {
	outcomes := make([]unitOutcome, len(pending))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(h.opts.Workers)

	for i, candidate := range pending {
		i, candidate := i, candidate
		group.Go(func() error {
			outcomes[i] = h.hashOne(groupCtx, candidate, rootPaths)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Stats{}, err
	}

	var stats Stats
	var results []catalog.HashedFile
	for _, outcome := range outcomes {
		switch {
		case outcome.result != nil:
			results = append(results, *outcome.result)
			stats.Hashed++
			if outcome.cacheHit {
				stats.CacheHits++
			}
		case outcome.state == catalog.CandidateSkipped:
			stats.Skipped++
		default:
			stats.Failed++
		}
	}

	if err := h.store.CommitHashBatch(ctx, results); err != nil {
		return stats, err
	}
	for _, outcome := range outcomes {
		if outcome.result != nil {
			continue
		}
		if err := h.store.MarkCandidate(ctx, outcome.candidate.ID, outcome.state, outcome.failure); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

func (h *Hasher) hashOne(ctx context.Context, candidate *catalog.Candidate, rootPaths map[int64]string) unitOutcome {
	outcome := unitOutcome{candidate: candidate, state: catalog.CandidateFailed}

	rootPath, ok := rootPaths[candidate.RootID]
	if !ok {
		outcome.failure = "library root not mounted"
		return outcome
	}
	absPath := filepath.Join(rootPath, filepath.FromSlash(candidate.RelativePath))

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			outcome.state = catalog.CandidateSkipped
			outcome.failure = "vanished before hashing"
			return outcome
		}
		outcome.failure = err.Error()
		return outcome
	}

	if h.opts.MaxFileBytes > 0 && info.Size() > h.opts.MaxFileBytes {
		outcome.state = catalog.CandidateSkipped
		outcome.failure = "exceeds configured size limit"
		h.logger.Debug("skipping oversized file",
			slog.String("path", candidate.RelativePath),
			slog.Int64("size", info.Size()))
		return outcome
	}

	modTime := info.ModTime().UTC()

	if cached, err := h.store.CachedDigests(ctx, absPath, info.Size(), modTime); err == nil && cached != nil {
		outcome.result = &catalog.HashedFile{
			CandidateID:  candidate.ID,
			RootID:       candidate.RootID,
			RelativePath: candidate.RelativePath,
			AbsolutePath: absPath,
			ModifiedAt:   modTime,
			Digests:      *cached,
			ContentRole:  h.opts.Role(candidate.RelativePath),
		}
		outcome.cacheHit = true
		return outcome
	}

	unitCtx, cancel := context.WithTimeout(ctx, h.opts.UnitTimeout)
	defer cancel()

	file, err := os.Open(absPath)
	if err != nil {
		outcome.failure = err.Error()
		return outcome
	}
	defer file.Close()

	digests, err := ComputeDigests(unitCtx, file, h.opts.ChunkBytes)
	if err != nil {
		outcome.failure = err.Error()
		h.logger.Warn("hashing failed",
			slog.String("path", candidate.RelativePath), logging.Error(err))
		return outcome
	}

	outcome.result = &catalog.HashedFile{
		CandidateID:  candidate.ID,
		RootID:       candidate.RootID,
		RelativePath: candidate.RelativePath,
		AbsolutePath: absPath,
		ModifiedAt:   modTime,
		Digests:      digests,
		ContentRole:  h.opts.Role(candidate.RelativePath),
	}
	return outcome
}
