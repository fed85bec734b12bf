package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"romcurator/internal/archive"
	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/correlate"
	"romcurator/internal/faults"
	"romcurator/internal/hashing"
	"romcurator/internal/logging"
	"romcurator/internal/scanner"
)

// Report is the persisted summary of one run, stored as JSON on the run row.
type Report struct {
	RunID      string                   `json:"run_id"`
	StartedAt  time.Time                `json:"started_at"`
	FinishedAt time.Time                `json:"finished_at"`
	Scan       map[string]scanner.Stats `json:"scan"`
	Hash       hashing.Stats            `json:"hash"`
	Archive    archive.Stats            `json:"archive"`
	Correlate  correlate.Stats          `json:"correlate"`
}

// Coordinator drives one run end to end. Exactly one run per catalog may be
// active; a lock file next to the database enforces that across processes.
type Coordinator struct {
	cfg    *config.Config
	store  *catalog.Store
	logger *slog.Logger
}

func New(cfg *config.Config, store *catalog.Store, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:    cfg,
		store:  store,
		logger: logging.NewComponentLogger(logger, "ingest"),
	}
}

func (c *Coordinator) retryPolicy() faults.RetryPolicy {
	wf := c.cfg.Workflow
	return faults.RetryPolicy{
		MaxAttempts:     wf.RetryMaxAttempts,
		InitialInterval: time.Duration(wf.RetryInitialMs) * time.Millisecond,
		MaxInterval:     time.Duration(wf.RetryMaxIntervalMs) * time.Millisecond,
	}
}

// Run executes the full pipeline. The run record is finished with the right
// status on every exit path, including cancellation, so provenance never
// shows a run stuck in "running" after the process is gone.
func (c *Coordinator) Run(ctx context.Context) (*Report, error) {
	lock := flock.New(c.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrTransient, "ingest", "acquire lock", "cannot acquire run lock", err)
	}
	if !locked {
		return nil, faults.Wrap(faults.ErrTransient, "ingest", "acquire lock",
			"another run holds the catalog lock", nil)
	}
	defer func() { _ = lock.Unlock() }()

	summary, err := Preflight(ctx, c.cfg, c.store)
	if err != nil {
		return nil, err
	}
	c.logger.Info("preflight passed",
		slog.Int("roots_mounted", summary.RootsMounted),
		slog.Uint64("temp_free_bytes", summary.TempFreeBytes),
		slog.Int("pending_files", summary.PendingFiles),
		slog.Int64("pending_bytes", summary.PendingBytes),
		slog.Int("pending_containers", summary.PendingContainers),
		slog.Duration("estimated_duration", summary.EstimatedDuration))

	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Scan:      make(map[string]scanner.Stats),
	}
	if err := c.store.BeginRun(ctx, report.RunID); err != nil {
		return nil, err
	}
	c.logger.Info("run started", slog.String("run", report.RunID))

	runErr := c.runStages(ctx, report)
	report.FinishedAt = time.Now().UTC()

	status := catalog.RunCompleted
	errMsg := ""
	if runErr != nil {
		status = catalog.RunFailed
		if ctx.Err() != nil {
			status = catalog.RunCancelled
		}
		errMsg = runErr.Error()
	}
	statsJSON, _ := json.Marshal(report)
	// Finishing the run must survive a cancelled context.
	finishCtx := context.WithoutCancel(ctx)
	if err := c.store.FinishRun(finishCtx, report.RunID, status, string(statsJSON), errMsg); err != nil {
		c.logger.Error("run record not finalized", logging.Error(err))
	}

	if runErr != nil {
		return report, runErr
	}
	c.logger.Info("run completed",
		slog.String("run", report.RunID),
		slog.Int("discovered", totalDiscovered(report.Scan)),
		slog.Int("hashed", report.Hash.Hashed),
		slog.Int("members", report.Archive.Members),
		slog.Int("linked", report.Correlate.ExactLinked+report.Correlate.FuzzyLinked))
	return report, nil
}

func (c *Coordinator) runStages(ctx context.Context, report *Report) error {
	rootPaths, err := c.scan(ctx, report)
	if err != nil {
		return err
	}
	if err := c.hash(ctx, report, rootPaths); err != nil {
		return err
	}
	if c.cfg.Archive.Enabled {
		if err := c.expand(ctx, report, rootPaths); err != nil {
			return err
		}
	}
	return c.correlate(ctx, report)
}

// scan walks every mounted root and returns the rootID→path map the later
// stages resolve candidates against. Unmounted roots are skipped, not
// failed: their instances stay untouched until the mount returns.
func (c *Coordinator) scan(ctx context.Context, report *Report) (map[int64]string, error) {
	rules := scanner.Rules{
		ExcludeGlobs: c.cfg.Library.ExcludeGlobs,
		MarkerFiles:  c.cfg.Library.MarkerFiles,
	}
	walker := scanner.New(c.store, c.logger, rules, c.cfg.Ingestion.BatchSize)

	rootPaths := make(map[int64]string)
	for _, root := range c.cfg.Library.Roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			c.logger.Warn("skipping unmounted root", slog.String("root", root))
			continue
		}
		rootID, err := c.store.EnsureRoot(ctx, root, filepath.Base(root))
		if err != nil {
			return nil, err
		}
		rootPaths[rootID] = root

		var stats scanner.Stats
		err = faults.Retry(ctx, c.logger, c.retryPolicy(), "scan "+root, func() error {
			var walkErr error
			stats, walkErr = walker.Walk(ctx, rootID, root, report.RunID)
			return walkErr
		})
		report.Scan[root] = stats
		if err != nil {
			return nil, err
		}
	}
	return rootPaths, nil
}

func (c *Coordinator) hash(ctx context.Context, report *Report, rootPaths map[int64]string) error {
	classifier, err := c.classifier(ctx)
	if err != nil {
		return err
	}
	hasher := hashing.New(c.store, c.logger, hashing.Options{
		ChunkBytes:   c.cfg.HashChunkBytes(),
		MaxFileBytes: int64(c.cfg.Ingestion.MaxFileSizeMiB) << 20,
		Workers:      c.cfg.Ingestion.Workers,
		UnitTimeout:  time.Duration(c.cfg.Ingestion.UnitTimeoutSeconds) * time.Second,
		BatchSize:    c.cfg.Ingestion.BatchSize,
		Role:         classifier.Role,
	})
	return faults.Retry(ctx, c.logger, c.retryPolicy(), "hash", func() error {
		stats, err := hasher.Run(ctx, rootPaths)
		report.Hash.Hashed += stats.Hashed
		report.Hash.CacheHits += stats.CacheHits
		report.Hash.Failed += stats.Failed
		report.Hash.Skipped += stats.Skipped
		return err
	})
}

func (c *Coordinator) expand(ctx context.Context, report *Report, rootPaths map[int64]string) error {
	classifier, err := c.classifier(ctx)
	if err != nil {
		return err
	}
	expander := archive.NewExpander(c.store, c.logger, c.cfg.Paths.TempDir, classifier, archive.Options{
		MaxDepth:        c.cfg.Archive.MaxDepth,
		TempSpaceBytes:  int64(c.cfg.Archive.TempSpaceMiB) << 20,
		Passwords:       c.cfg.Archive.Passwords,
		ChunkBytes:      c.cfg.HashChunkBytes(),
		MemberHashLimit: c.cfg.Archive.MemberHashLimit,
	})

	work, err := c.store.ContainersToExpand(ctx)
	if err != nil {
		return err
	}
	for _, container := range work {
		if err := ctx.Err(); err != nil {
			return faults.Wrap(faults.ErrTimeout, "expand", "run", "expansion interrupted", err)
		}
		rootPath, ok := rootPaths[container.RootID]
		if !ok {
			continue
		}
		absPath := filepath.Join(rootPath, filepath.FromSlash(container.RelativePath))
		var candidateID int64
		if cand, err := c.store.CandidateByPath(ctx, container.RootID, container.RelativePath); err != nil {
			return err
		} else if cand != nil {
			candidateID = cand.ID
		}
		stats, err := expander.Expand(ctx, absPath, container.FileID, candidateID, report.RunID)
		report.Archive.Containers += stats.Containers
		report.Archive.Members += stats.Members
		report.Archive.Salvaged += stats.Salvaged
		report.Archive.PasswordRequired += stats.PasswordRequired
		report.Archive.Corrupt += stats.Corrupt
		report.Archive.NestedExpanded += stats.NestedExpanded
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) correlate(ctx context.Context, report *Report) error {
	matcher := correlate.New(c.store, c.logger, correlate.Options{
		AutoLinkThreshold: c.cfg.Matching.AutoLinkThreshold,
		ReviewThreshold:   c.cfg.Matching.ReviewThreshold,
		RefreshConfidence: c.cfg.Matching.RefreshConfidence,
	})
	stats, err := matcher.Run(ctx)
	report.Correlate = stats
	return err
}

func (c *Coordinator) classifier(ctx context.Context) (*archive.Classifier, error) {
	rules, err := c.store.ExtensionRules(ctx)
	if err != nil {
		return nil, err
	}
	return archive.NewClassifier(rules), nil
}

func totalDiscovered(scans map[string]scanner.Stats) int {
	total := 0
	for _, stats := range scans {
		total += stats.Discovered
	}
	return total
}
