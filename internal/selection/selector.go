package selection

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	"romcurator/internal/catalog"
	"romcurator/internal/curation"
	"romcurator/internal/logging"
)

// Policy names the preferences a selection run applies. Order matters:
// earlier regions and languages outrank later ones.
type Policy struct {
	Name              string
	RegionOrder       []string
	LanguageOrder     []string
	ExcludeClones     bool
	ExcludeUnverified bool
}

// Stats summarizes one selection run.
type Stats struct {
	Games    int
	Selected int
	Skipped  int
}

// Selector produces one-game-one-release snapshots. Every run writes a new
// immutable selection set; rerunning a policy never mutates earlier sets.
type Selector struct {
	store  *catalog.Store
	logger *slog.Logger
	policy Policy
}

func New(store *catalog.Store, logger *slog.Logger, policy Policy) *Selector {
	return &Selector{
		store:  store,
		logger: logging.NewComponentLogger(logger, "selection"),
		policy: policy,
	}
}

// candidate is one selectable (release, instance) pair for a game, carrying
// the correlation confidence backing it.
type candidate struct {
	release    *catalog.Release
	instance   *catalog.Instance
	confidence float64
}

// Run evaluates every cataloged game under the policy and freezes the result
// as a new selection set. Games with no eligible release are skipped, not
// guessed at.
func (s *Selector) Run(ctx context.Context) (*catalog.SelectionSet, Stats, error) {
	entries, stats, err := s.compute(ctx)
	if err != nil {
		return nil, stats, err
	}

	set := catalog.SelectionSet{
		ID:         uuid.NewString(),
		PolicyName: s.policy.Name,
	}
	for i := range entries {
		entries[i].SetID = set.ID
		entries[i].Rank = i + 1
	}
	if err := s.store.CreateSelectionSet(ctx, set, entries); err != nil {
		return nil, stats, err
	}
	s.logger.Info("selection set created",
		slog.String("set", set.ID),
		slog.String("policy", s.policy.Name),
		slog.Int("selected", stats.Selected),
		slog.Int("skipped", stats.Skipped))
	return &set, stats, nil
}

// Preview evaluates the policy without persisting anything.
func (s *Selector) Preview(ctx context.Context) ([]catalog.SelectionEntry, Stats, error) {
	return s.compute(ctx)
}

func (s *Selector) compute(ctx context.Context) ([]catalog.SelectionEntry, Stats, error) {
	var stats Stats

	platforms, err := s.store.Platforms(ctx)
	if err != nil {
		return nil, stats, err
	}

	var entries []catalog.SelectionEntry
	for _, platform := range platforms {
		games, err := s.store.GamesForPlatform(ctx, platform.ID)
		if err != nil {
			return nil, stats, err
		}
		for _, game := range games {
			if err := ctx.Err(); err != nil {
				return nil, stats, err
			}
			stats.Games++
			chosen, reason, err := s.selectForGame(ctx, game)
			if err != nil {
				return nil, stats, err
			}
			if chosen == nil {
				stats.Skipped++
				s.logger.Debug("no eligible release",
					slog.String("game", game.Title),
					slog.String("reason", reason))
				continue
			}
			stats.Selected++
			entries = append(entries, catalog.SelectionEntry{
				GameID:     game.ID,
				ReleaseID:  chosen.release.ID,
				InstanceID: chosen.instance.ID,
				Reason:     reason,
			})
		}
	}
	return entries, stats, nil
}

func (s *Selector) selectForGame(ctx context.Context, game *catalog.Game) (*candidate, string, error) {
	// Only correlated games are selectable: a game without a single
	// reference link is a guess, not a confirmed title.
	links, err := s.store.LinksForGame(ctx, game.ID)
	if err != nil {
		return nil, "", err
	}
	if len(links) == 0 {
		return nil, "no confirmed reference link", nil
	}
	confidenceByEntry := make(map[int64]float64, len(links))
	bestConfidence := 0.0
	for _, link := range links {
		confidenceByEntry[link.EntryID] = link.Confidence
		if link.Confidence > bestConfidence {
			bestConfidence = link.Confidence
		}
	}

	releases, err := s.store.ReleasesForGame(ctx, game.ID)
	if err != nil {
		return nil, "", err
	}

	var candidates []candidate
	excluded := 0
	for _, release := range releases {
		if s.policy.ExcludeClones && release.IsClone {
			excluded++
			continue
		}
		if s.policy.ExcludeUnverified && release.DumpStatus != "verified" {
			excluded++
			continue
		}
		instance, err := s.presentInstance(ctx, release.ID)
		if err != nil {
			return nil, "", err
		}
		if instance == nil {
			continue
		}
		// Releases created from a reference entry carry that entry's link
		// confidence; locally-inferred releases inherit the game's best.
		confidence := bestConfidence
		if c, ok := confidenceByEntry[release.EntryID]; ok {
			confidence = c
		}
		candidates = append(candidates, candidate{release: release, instance: instance, confidence: confidence})
	}
	if len(candidates) == 0 {
		if excluded > 0 {
			return nil, fmt.Sprintf("all %d releases excluded by policy", excluded), nil
		}
		return nil, "no release has a present file", nil
	}

	s.rank(candidates)
	best := candidates[0]
	return &best, s.reason(best, len(candidates)), nil
}

// presentInstance finds the on-disk file backing a release: the primary
// artifact's oldest instance that is still present.
func (s *Selector) presentInstance(ctx context.Context, releaseID int64) (*catalog.Instance, error) {
	files, err := s.store.ArtifactsForRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if !file.ContentRole.Playable() {
			continue
		}
		instances, err := s.store.InstancesForFile(ctx, file.ID)
		if err != nil {
			return nil, err
		}
		for _, instance := range instances {
			if instance.Status == catalog.InstancePresent {
				return instance, nil
			}
		}
	}
	return nil, nil
}

// rank orders candidates best-first. The comparison chain is strictly
// deterministic and ends on release ID, so identical catalogs always
// produce identical sets.
func (s *Selector) rank(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]

		ar, br := s.regionRank(a.release.Region), s.regionRank(b.release.Region)
		if ar != br {
			return ar < br
		}
		al, bl := s.languageRank(a.release.Languages), s.languageRank(b.release.Languages)
		if al != bl {
			return al < bl
		}
		av, bv := a.release.DumpStatus == "verified", b.release.DumpStatus == "verified"
		if av != bv {
			return av
		}
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if cmp := curation.CompareVersions(a.release.Version, b.release.Version); cmp != 0 {
			return cmp > 0
		}
		return a.release.ID < b.release.ID
	})
}

func (s *Selector) regionRank(region string) int {
	for i, want := range s.policy.RegionOrder {
		if strings.EqualFold(region, want) {
			return i
		}
	}
	return len(s.policy.RegionOrder)
}

// languageRank is the best (lowest) position any of the release's languages
// holds in the policy order.
func (s *Selector) languageRank(languages string) int {
	best := len(s.policy.LanguageOrder)
	for _, language := range strings.Split(languages, ",") {
		language = strings.TrimSpace(language)
		for i, want := range s.policy.LanguageOrder {
			if i >= best {
				break
			}
			if strings.EqualFold(language, want) {
				best = i
			}
		}
	}
	return best
}

func (s *Selector) reason(c candidate, total int) string {
	parts := []string{fmt.Sprintf("best of %d candidates", total)}
	if c.release.Region != "" {
		parts = append(parts, "region "+c.release.Region)
	}
	if c.release.Version != "" {
		parts = append(parts, "version "+c.release.Version)
	}
	if c.release.DumpStatus == "verified" {
		parts = append(parts, "verified dump")
	}
	return strings.Join(parts, ", ")
}
