package correlate

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"romcurator/internal/catalog"
	"romcurator/internal/faults"
	"romcurator/internal/logging"
	"romcurator/internal/titlenorm"
)

// Options tune the matcher's decision thresholds.
type Options struct {
	// AutoLinkThreshold is the minimum score for an unattended link. A score
	// at or above it links only when no second candidate also clears it.
	AutoLinkThreshold float64
	// ReviewThreshold is the minimum score worth a human look. Scores below
	// it leave the instance unmatched.
	ReviewThreshold float64
	// RefreshConfidence re-scores links of already-attached files on every
	// pass instead of skipping them outright.
	RefreshConfidence bool
	// Format selects the naming vocabulary used to parse file names.
	Format titlenorm.Format
}

// Stats summarizes one correlation pass.
type Stats struct {
	Examined    int
	ExactLinked int
	FuzzyLinked int
	Queued      int
	Duplicates  int
	Unmatched   int
	Skipped     int
	Refreshed   int
}

// Matcher correlates cataloged instances with imported reference entries.
// Digest matches link directly; everything else goes through title scoring
// against the instance's platform, with ambiguous results queued for review.
type Matcher struct {
	store  *catalog.Store
	logger *slog.Logger
	opts   Options

	entryCache map[int64][]*catalog.ReferenceEntry
}

func New(store *catalog.Store, logger *slog.Logger, opts Options) *Matcher {
	if opts.AutoLinkThreshold <= 0 {
		opts.AutoLinkThreshold = 0.95
	}
	if opts.ReviewThreshold <= 0 {
		opts.ReviewThreshold = 0.5
	}
	if opts.Format == "" {
		opts.Format = titlenorm.FormatAuto
	}
	return &Matcher{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "correlate"),
		opts:       opts,
		entryCache: make(map[int64][]*catalog.ReferenceEntry),
	}
}

// Run correlates every present instance that is not yet attached to a
// release, then every file record that exists only as an archive member. The
// pass is idempotent: attached content is skipped, and pinned links are never
// disturbed by automatic decisions.
func (m *Matcher) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	instances, err := m.store.InstancesByStatus(ctx, catalog.InstancePresent)
	if err != nil {
		return stats, faults.Wrap(faults.ErrTransient, "correlate", "list instances", "load present instances", err)
	}

	for _, instance := range instances {
		if err := ctx.Err(); err != nil {
			return stats, faults.Wrap(faults.ErrTimeout, "correlate", "run", "correlation interrupted", err)
		}
		if err := m.correlateInstance(ctx, instance, &stats); err != nil {
			return stats, err
		}
	}

	if err := m.correlateMembers(ctx, &stats); err != nil {
		return stats, err
	}

	m.logger.Info("correlation pass finished",
		slog.Int("examined", stats.Examined),
		slog.Int("exact", stats.ExactLinked),
		slog.Int("fuzzy", stats.FuzzyLinked),
		slog.Int("queued", stats.Queued),
		slog.Int("unmatched", stats.Unmatched))
	return stats, nil
}

func (m *Matcher) correlateInstance(ctx context.Context, instance *catalog.Instance, stats *Stats) error {
	file, err := m.store.FileByID(ctx, instance.FileID)
	if err != nil {
		return err
	}
	if file == nil || !file.ContentRole.Playable() {
		return nil
	}
	attached, err := m.store.FileAttached(ctx, file.ID)
	if err != nil {
		return err
	}
	if attached {
		if m.opts.RefreshConfidence {
			return m.refreshLink(ctx, file, stats)
		}
		stats.Skipped++
		return nil
	}
	stats.Examined++

	// Digest identity beats any amount of name heuristics.
	entry, err := m.store.EntryBySHA1(ctx, file.SHA1)
	if err != nil {
		return err
	}
	if entry != nil && entry.PlatformID != 0 {
		if err := m.linkEntry(ctx, entry, file, 1.0); err != nil {
			return err
		}
		stats.ExactLinked++
		return nil
	}

	return m.correlateByName(ctx, instance, file, stats)
}

func (m *Matcher) correlateByName(ctx context.Context, instance *catalog.Instance, file *catalog.FileRecord, stats *Stats) error {
	platformName := platformSegment(instance.RelativePath)
	if platformName == "" {
		stats.Unmatched++
		return m.enqueue(ctx, catalog.CurationItem{
			Kind:       catalog.CurationUnmatched,
			InstanceID: instance.ID,
			Detail:     fmt.Sprintf("%s: no platform directory", instance.RelativePath),
		})
	}

	platform, platformConfidence, err := m.store.ResolvePlatform(ctx, platformName)
	if err != nil {
		return err
	}
	if platform == nil {
		stats.Unmatched++
		return m.enqueue(ctx, catalog.CurationItem{
			Kind:       catalog.CurationUnmatched,
			InstanceID: instance.ID,
			Detail:     fmt.Sprintf("%s: unknown platform %q", instance.RelativePath, platformName),
		})
	}

	parsed := titlenorm.ParseName(baseName(instance.RelativePath), m.opts.Format)
	game, releaseID, duplicate, err := m.ensureLocalRelease(ctx, platform.ID, parsed, file.ID)
	if err != nil {
		return err
	}
	if duplicate {
		stats.Duplicates++
		if err := m.enqueue(ctx, catalog.CurationItem{
			Kind:       catalog.CurationDuplicate,
			GameID:     game.ID,
			InstanceID: instance.ID,
			Detail:     fmt.Sprintf("release %d already cataloged for %q", releaseID, game.Title),
		}); err != nil {
			return err
		}
	}

	entries, err := m.entriesFor(ctx, platform.ID)
	if err != nil {
		return err
	}
	ranked := rankEntries(parsed.Title, entries, platformConfidence)
	if len(ranked) == 0 || ranked[0].score < m.opts.ReviewThreshold {
		stats.Unmatched++
		return m.enqueue(ctx, catalog.CurationItem{
			Kind:       catalog.CurationUnmatched,
			GameID:     game.ID,
			InstanceID: instance.ID,
			Detail:     fmt.Sprintf("%s: no reference entry resembles %q", instance.RelativePath, parsed.Title),
		})
	}

	best := ranked[0]
	ambiguous := len(ranked) > 1 && ranked[1].score >= m.opts.AutoLinkThreshold
	if best.score >= m.opts.AutoLinkThreshold && !ambiguous {
		if err := m.store.UpsertCorrelationLink(ctx, catalog.CorrelationLink{
			GameID:     game.ID,
			EntryID:    best.entry.ID,
			MatchType:  catalog.MatchFuzzy,
			Confidence: best.score,
		}); err != nil {
			return err
		}
		stats.FuzzyLinked++
		m.logger.Debug("fuzzy link",
			slog.String("path", instance.RelativePath),
			slog.String("entry", best.entry.Title),
			slog.Float64("score", best.score))
		return nil
	}

	detail := fmt.Sprintf("%s resembles %q", instance.RelativePath, best.entry.Title)
	if ambiguous {
		detail = fmt.Sprintf("%s: %q and %q both score above the link threshold",
			instance.RelativePath, best.entry.Title, ranked[1].entry.Title)
	}
	stats.Queued++
	return m.enqueue(ctx, catalog.CurationItem{
		Kind:       catalog.CurationFuzzyMatch,
		GameID:     game.ID,
		EntryID:    best.entry.ID,
		InstanceID: instance.ID,
		Score:      best.score,
		Detail:     detail,
	})
}

// correlateMembers hash-matches content that exists only inside containers.
// Members have no on-disk path to parse, so digest identity is the only
// signal; anything without an exact reference hit waits for a later pass.
func (m *Matcher) correlateMembers(ctx context.Context, stats *Stats) error {
	files, err := m.store.UnattachedMemberFiles(ctx)
	if err != nil {
		return faults.Wrap(faults.ErrTransient, "correlate", "list members", "load archive member records", err)
	}
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return faults.Wrap(faults.ErrTimeout, "correlate", "run", "correlation interrupted", err)
		}
		entry, err := m.store.EntryBySHA1(ctx, file.SHA1)
		if err != nil {
			return err
		}
		if entry == nil || entry.PlatformID == 0 {
			continue
		}
		stats.Examined++
		if err := m.linkEntry(ctx, entry, file, 1.0); err != nil {
			return err
		}
		stats.ExactLinked++
		m.logger.Debug("archive member linked",
			slog.String("entry", entry.Title),
			slog.String("sha1", file.SHA1))
	}
	return nil
}

// refreshLink re-verifies an attached file's digest link and rewrites its
// confidence. Pinned links are left alone by the upsert.
func (m *Matcher) refreshLink(ctx context.Context, file *catalog.FileRecord, stats *Stats) error {
	entry, err := m.store.EntryBySHA1(ctx, file.SHA1)
	if err != nil {
		return err
	}
	if entry == nil || entry.PlatformID == 0 {
		stats.Skipped++
		return nil
	}
	game, err := m.store.GameByTitleKey(ctx, entry.PlatformID, entry.TitleKey)
	if err != nil {
		return err
	}
	if game == nil {
		stats.Skipped++
		return nil
	}
	if err := m.store.UpsertCorrelationLink(ctx, catalog.CorrelationLink{
		GameID:     game.ID,
		EntryID:    entry.ID,
		MatchType:  catalog.MatchAutomatic,
		Confidence: 1.0,
	}); err != nil {
		return err
	}
	stats.Refreshed++
	return nil
}

// linkEntry materializes an exact digest match: the entry's own metadata
// becomes the canonical game and release.
func (m *Matcher) linkEntry(ctx context.Context, entry *catalog.ReferenceEntry, file *catalog.FileRecord, confidence float64) error {
	game, err := m.store.GetOrCreateGame(ctx, entry.PlatformID, entry.Title, entry.TitleKey)
	if err != nil {
		return err
	}
	releaseID, err := m.store.AddRelease(ctx, catalog.Release{
		GameID:     game.ID,
		EntryID:    entry.ID,
		Region:     entry.Region,
		Languages:  entry.Languages,
		Version:    entry.Version,
		DevStatus:  entry.DevStatus,
		DumpStatus: entry.DumpStatus,
		IsClone:    entry.IsClone,
	})
	if err != nil {
		return err
	}
	if err := m.store.LinkArtifact(ctx, releaseID, file.ID); err != nil {
		return err
	}
	return m.store.UpsertCorrelationLink(ctx, catalog.CorrelationLink{
		GameID:     game.ID,
		EntryID:    entry.ID,
		MatchType:  catalog.MatchAutomatic,
		Confidence: confidence,
	})
}

// ensureLocalRelease records the game and release the file name describes,
// independent of whether a reference entry confirms it. A pre-existing
// release with the same region and version is reused and flagged as a
// duplicate rather than silently doubled.
func (m *Matcher) ensureLocalRelease(ctx context.Context, platformID int64, parsed titlenorm.Release, fileID int64) (*catalog.Game, int64, bool, error) {
	game, err := m.store.GetOrCreateGame(ctx, platformID, parsed.Title, parsed.TitleKey)
	if err != nil {
		return nil, 0, false, err
	}

	releases, err := m.store.ReleasesForGame(ctx, game.ID)
	if err != nil {
		return nil, 0, false, err
	}
	for _, release := range releases {
		if release.Region == parsed.Region && release.Version == parsed.Version {
			if err := m.store.LinkArtifact(ctx, release.ID, fileID); err != nil {
				return nil, 0, false, err
			}
			return game, release.ID, true, nil
		}
	}

	releaseID, err := m.store.AddRelease(ctx, catalog.Release{
		GameID:     game.ID,
		Region:     parsed.Region,
		Languages:  strings.Join(parsed.Languages, ","),
		Version:    parsed.Version,
		DevStatus:  parsed.DevStatus,
		DumpStatus: parsed.DumpStatus,
		IsClone:    parsed.IsClone,
	})
	if err != nil {
		return nil, 0, false, err
	}
	if err := m.store.LinkArtifact(ctx, releaseID, fileID); err != nil {
		return nil, 0, false, err
	}
	return game, releaseID, false, nil
}

func (m *Matcher) entriesFor(ctx context.Context, platformID int64) ([]*catalog.ReferenceEntry, error) {
	if entries, ok := m.entryCache[platformID]; ok {
		return entries, nil
	}
	entries, err := m.store.EntriesForPlatform(ctx, platformID)
	if err != nil {
		return nil, err
	}
	m.entryCache[platformID] = entries
	return entries, nil
}

func (m *Matcher) enqueue(ctx context.Context, item catalog.CurationItem) error {
	_, err := m.store.EnqueueCuration(ctx, item)
	return err
}

// platformSegment returns the top-level directory of a relative path, which
// by library convention names the platform. Files sitting directly under the
// root have no platform hint.
func platformSegment(relativePath string) string {
	relativePath = filepath.ToSlash(relativePath)
	segment, rest, found := strings.Cut(relativePath, "/")
	if !found || rest == "" {
		return ""
	}
	return segment
}

func baseName(relativePath string) string {
	base := filepath.Base(relativePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
