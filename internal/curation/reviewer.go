package curation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"romcurator/internal/catalog"
	"romcurator/internal/logging"
)

// Reviewer applies human decisions to the curation queue. Accepted matches
// become pinned manual links that no automatic pass may overwrite.
type Reviewer struct {
	store  *catalog.Store
	logger *slog.Logger
	prefs  Preferences
}

func NewReviewer(store *catalog.Store, logger *slog.Logger, prefs Preferences) *Reviewer {
	return &Reviewer{
		store:  store,
		logger: logging.NewComponentLogger(logger, "curation"),
		prefs:  prefs,
	}
}

// Queue returns open curation items, oldest first.
func (r *Reviewer) Queue(ctx context.Context, limit int) ([]*catalog.CurationItem, error) {
	if limit <= 0 {
		limit = 50
	}
	return r.store.OpenCurationItems(ctx, limit)
}

// Accept resolves an item in favor of its proposed outcome. A fuzzy match
// pins the proposed link; other kinds record the acknowledgement and close.
func (r *Reviewer) Accept(ctx context.Context, itemID int64, resolvedBy string) error {
	item, err := r.store.CurationItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("curation item %d not found", itemID)
	}

	if item.Kind == catalog.CurationFuzzyMatch {
		if item.EntryID == 0 || item.GameID == 0 {
			return fmt.Errorf("curation item %d has no proposed link", itemID)
		}
		if err := r.pin(ctx, item.GameID, item.EntryID, item.Score); err != nil {
			return err
		}
	}
	if err := r.store.ResolveCuration(ctx, itemID, catalog.CurationAccepted, resolvedBy); err != nil {
		return err
	}
	if item.Kind == catalog.CurationFuzzyMatch {
		// The decision stands for the whole game; stale proposals close out.
		if _, err := r.store.SupersedeCurationForGame(ctx, item.GameID); err != nil {
			return err
		}
	}
	r.logger.Info("curation item accepted",
		slog.Int64("item", itemID),
		slog.String("kind", string(item.Kind)),
		slog.String("by", resolvedBy))
	return nil
}

// AcceptEntry resolves an item by linking the game to a reviewer-chosen
// reference entry instead of the proposed one.
func (r *Reviewer) AcceptEntry(ctx context.Context, itemID, entryID int64, resolvedBy string) error {
	item, err := r.store.CurationItemByID(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("curation item %d not found", itemID)
	}
	if item.GameID == 0 {
		return fmt.Errorf("curation item %d carries no game to link", itemID)
	}
	entry, err := r.store.EntryByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("reference entry %d not found", entryID)
	}

	if err := r.pin(ctx, item.GameID, entryID, 1.0); err != nil {
		return err
	}
	if err := r.store.ResolveCuration(ctx, itemID, catalog.CurationAccepted, resolvedBy); err != nil {
		return err
	}
	if _, err := r.store.SupersedeCurationForGame(ctx, item.GameID); err != nil {
		return err
	}
	r.logger.Info("curation item resolved to chosen entry",
		slog.Int64("item", itemID),
		slog.Int64("entry", entryID),
		slog.String("by", resolvedBy))
	return nil
}

// Reject closes an item without taking its proposal.
func (r *Reviewer) Reject(ctx context.Context, itemID int64, resolvedBy string) error {
	if err := r.store.ResolveCuration(ctx, itemID, catalog.CurationRejected, resolvedBy); err != nil {
		return err
	}
	r.logger.Info("curation item rejected",
		slog.Int64("item", itemID),
		slog.String("by", resolvedBy))
	return nil
}

func (r *Reviewer) pin(ctx context.Context, gameID, entryID int64, confidence float64) error {
	return r.store.UpsertCorrelationLink(ctx, catalog.CorrelationLink{
		GameID:     gameID,
		EntryID:    entryID,
		MatchType:  catalog.MatchManual,
		Confidence: confidence,
		Pinned:     true,
	})
}

// SweepVersionChoices scans every game for competing releases of the same
// region and queues a version_choice item naming the preferred one. Games
// already holding a version_choice item, open or decided, are left alone so
// repeated sweeps never nag about settled questions.
func (r *Reviewer) SweepVersionChoices(ctx context.Context) (int, error) {
	platforms, err := r.store.Platforms(ctx)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, platform := range platforms {
		games, err := r.store.GamesForPlatform(ctx, platform.ID)
		if err != nil {
			return enqueued, err
		}
		for _, game := range games {
			if err := ctx.Err(); err != nil {
				return enqueued, err
			}
			queued, err := r.sweepGame(ctx, game)
			if err != nil {
				return enqueued, err
			}
			if queued {
				enqueued++
			}
		}
	}
	return enqueued, nil
}

func (r *Reviewer) sweepGame(ctx context.Context, game *catalog.Game) (bool, error) {
	existing, err := r.store.CurationItemsForGame(ctx, game.ID)
	if err != nil {
		return false, err
	}
	for _, item := range existing {
		if item.Kind == catalog.CurationVersionChoice {
			return false, nil
		}
	}

	releases, err := r.store.ReleasesForGame(ctx, game.ID)
	if err != nil {
		return false, err
	}
	byRegion := make(map[string][]*catalog.Release)
	for _, release := range releases {
		byRegion[release.Region] = append(byRegion[release.Region], release)
	}
	// Deterministic sweep order: the first competing region wins the single
	// version_choice slot, so map iteration order must not pick it.
	regions := make([]string, 0, len(byRegion))
	for region := range byRegion {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	for _, region := range regions {
		group := byRegion[region]
		if len(group) < 2 || !versionsDiffer(group) {
			continue
		}
		best := group[0]
		for _, release := range group[1:] {
			best = PreferRelease(best, release, r.prefs)
		}
		detail := fmt.Sprintf("%q has %d %s releases; prefer version %q",
			game.Title, len(group), regionLabel(region), best.Version)
		if _, err := r.store.EnqueueCuration(ctx, catalog.CurationItem{
			Kind:   catalog.CurationVersionChoice,
			GameID: game.ID,
			Detail: detail,
		}); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func versionsDiffer(group []*catalog.Release) bool {
	for _, release := range group[1:] {
		if CompareVersions(group[0].Version, release.Version) != 0 {
			return true
		}
	}
	return false
}

func regionLabel(region string) string {
	if region == "" {
		return "unspecified-region"
	}
	return region
}
