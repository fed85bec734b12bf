package refimport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"romcurator/internal/catalog"
	"romcurator/internal/faults"
	"romcurator/internal/logging"
	"romcurator/internal/titlenorm"
)

// Stats summarizes one reference import.
type Stats struct {
	Source   string
	Platform string
	Entries  int
	Clones   int
}

// Importer loads reference catalogs (Logiqx XML DAT files) into the store.
// Entries are immutable once imported; re-importing a source replaces its
// version stamp but never mutates existing entries.
type Importer struct {
	store  *catalog.Store
	logger *slog.Logger
}

func New(store *catalog.Store, logger *slog.Logger) *Importer {
	return &Importer{
		store:  store,
		logger: logging.NewComponentLogger(logger, "refimport"),
	}
}

// ImportFile imports one DAT file from disk.
func (im *Importer) ImportFile(ctx context.Context, path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, faults.Wrap(faults.ErrConfiguration, "import", "open dat",
			fmt.Sprintf("open %s", path), err)
	}
	defer f.Close()
	return im.Import(ctx, f)
}

// Import reads one DAT document and stores its entries under a reference
// source named by the DAT header.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Stats, error) {
	file, err := parseDAT(r)
	if err != nil {
		return Stats{}, faults.Wrap(faults.ErrContent, "import", "parse dat", "reference file does not parse", err)
	}

	vocabulary := detectVocabulary(file.Header)
	format := titlenorm.Format(vocabulary)

	platformID, platformName, err := im.resolvePlatform(ctx, file.Header.Name)
	if err != nil {
		return Stats{}, err
	}
	sourceID, err := im.store.EnsureReferenceSource(ctx, file.Header.Name, vocabulary, file.Header.Version)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{Source: file.Header.Name, Platform: platformName}
	const batchSize = 500
	batch := make([]catalog.ReferenceEntry, 0, batchSize)
	for _, game := range file.Games {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		entry := buildEntry(sourceID, platformID, game, format)
		if entry.IsClone {
			stats.Clones++
		}
		batch = append(batch, entry)
		stats.Entries++
		if len(batch) == batchSize {
			if err := im.store.InsertReferenceEntries(ctx, batch); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
	}
	if err := im.store.InsertReferenceEntries(ctx, batch); err != nil {
		return stats, err
	}

	im.logger.Info("reference source imported",
		slog.String("source", stats.Source),
		slog.String("platform", stats.Platform),
		slog.String("vocabulary", vocabulary),
		slog.Int("entries", stats.Entries))
	return stats, nil
}

// resolvePlatform maps the DAT header name onto a platform, creating the
// platform when neither canonical name nor alias knows it.
func (im *Importer) resolvePlatform(ctx context.Context, headerName string) (int64, string, error) {
	platform, _, err := im.store.ResolvePlatform(ctx, headerName)
	if err != nil {
		return 0, "", err
	}
	if platform != nil {
		return platform.ID, platform.Name, nil
	}
	id, err := im.store.EnsurePlatform(ctx, headerName, "")
	if err != nil {
		return 0, "", err
	}
	return id, headerName, nil
}

func buildEntry(sourceID, platformID int64, game datGame, format titlenorm.Format) catalog.ReferenceEntry {
	parsed := titlenorm.ParseName(game.Name, format)
	entry := catalog.ReferenceEntry{
		SourceID:   sourceID,
		PlatformID: platformID,
		ExternalID: game.Name,
		Title:      parsed.Title,
		TitleKey:   parsed.TitleKey,
		Region:     parsed.Region,
		Languages:  strings.Join(parsed.Languages, ","),
		Version:    parsed.Version,
		DevStatus:  parsed.DevStatus,
		DumpStatus: parsed.DumpStatus,
		IsClone:    game.CloneOf != "",
		CloneOf:    game.CloneOf,
	}
	if len(game.ROMs) > 0 {
		rom := game.ROMs[0]
		entry.SHA1 = strings.ToLower(rom.SHA1)
		entry.CRC32 = strings.ToLower(rom.CRC)
		entry.MD5 = strings.ToLower(rom.MD5)
		entry.SizeBytes = rom.Size
		if entry.DumpStatus == "" && rom.Status != "" {
			entry.DumpStatus = rom.Status
		}
	}
	return entry
}
