package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// EnsureReferenceSource registers an imported reference catalog by name.
func (s *Store) EnsureReferenceSource(ctx context.Context, name, kind, version string) (int64, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reference_source (name, kind, version, imported_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET kind = excluded.kind, version = excluded.version, imported_at = excluded.imported_at`,
		name, kind, nullableString(version), nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("upsert reference source: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM reference_source WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup reference source: %w", err)
	}
	return id, nil
}

// InsertReferenceEntries stores a batch of entries for one source atomically.
// Re-importing a source updates entries in place by (source_id, external_id),
// keeping entry identifiers stable so correlation links survive the refresh.
func (s *Store) InsertReferenceEntries(ctx context.Context, entries []ReferenceEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO reference_entry
                    (source_id, platform_id, external_id, title, title_key, region, languages,
                     version, dev_status, dump_status, is_clone, clone_of, sha1, crc32, md5, size_bytes)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
                 ON CONFLICT(source_id, external_id) WHERE external_id IS NOT NULL DO UPDATE SET
                    platform_id = excluded.platform_id,
                    title = excluded.title,
                    title_key = excluded.title_key,
                    region = excluded.region,
                    languages = excluded.languages,
                    version = excluded.version,
                    dev_status = excluded.dev_status,
                    dump_status = excluded.dump_status,
                    is_clone = excluded.is_clone,
                    clone_of = excluded.clone_of,
                    sha1 = excluded.sha1,
                    crc32 = excluded.crc32,
                    md5 = excluded.md5,
                    size_bytes = excluded.size_bytes`,
				e.SourceID, nullableInt64(e.PlatformID), nullableString(e.ExternalID),
				e.Title, e.TitleKey, nullableString(e.Region), nullableString(e.Languages),
				nullableString(e.Version), nullableString(e.DevStatus), nullableString(e.DumpStatus),
				boolToInt(e.IsClone), nullableString(e.CloneOf),
				nullableString(e.SHA1), nullableString(e.CRC32), nullableString(e.MD5),
				nullableInt64(e.SizeBytes),
			)
			if err != nil {
				return fmt.Errorf("insert reference entry %q: %w", e.Title, err)
			}
		}
		return nil
	})
}

const entryColumns = "id, source_id, platform_id, external_id, title, title_key, region, languages, version, dev_status, dump_status, is_clone, clone_of, sha1, crc32, md5, size_bytes"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*ReferenceEntry, error) {
	var (
		e          ReferenceEntry
		platformID sql.NullInt64
		externalID sql.NullString
		region     sql.NullString
		languages  sql.NullString
		version    sql.NullString
		devStatus  sql.NullString
		dumpStatus sql.NullString
		isClone    int
		cloneOf    sql.NullString
		sha1       sql.NullString
		crc32      sql.NullString
		md5        sql.NullString
		size       sql.NullInt64
	)
	if err := scanner.Scan(&e.ID, &e.SourceID, &platformID, &externalID, &e.Title, &e.TitleKey,
		&region, &languages, &version, &devStatus, &dumpStatus, &isClone, &cloneOf,
		&sha1, &crc32, &md5, &size); err != nil {
		return nil, err
	}
	e.PlatformID = platformID.Int64
	e.ExternalID = externalID.String
	e.Region = region.String
	e.Languages = languages.String
	e.Version = version.String
	e.DevStatus = devStatus.String
	e.DumpStatus = dumpStatus.String
	e.IsClone = isClone != 0
	e.CloneOf = cloneOf.String
	e.SHA1 = sha1.String
	e.CRC32 = crc32.String
	e.MD5 = md5.String
	e.SizeBytes = size.Int64
	return &e, nil
}

// EntryBySHA1 returns the reference entry carrying an exact digest, or nil.
func (s *Store) EntryBySHA1(ctx context.Context, sha1 string) (*ReferenceEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM reference_entry WHERE sha1 = ? LIMIT 1`, sha1)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry by sha1: %w", err)
	}
	return e, nil
}

// EntryByID returns one reference entry, or nil.
func (s *Store) EntryByID(ctx context.Context, id int64) (*ReferenceEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM reference_entry WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// EntriesForPlatform returns all reference entries for a platform, used by
// the fuzzy matcher to build its candidate set.
func (s *Store) EntriesForPlatform(ctx context.Context, platformID int64) ([]*ReferenceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM reference_entry WHERE platform_id = ? ORDER BY id`, platformID)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []*ReferenceEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// UpsertCorrelationLink records a game-to-entry link. A pinned link is never
// overwritten by an automatic or fuzzy pass; manual writes replace it
// explicitly.
func (s *Store) UpsertCorrelationLink(ctx context.Context, link CorrelationLink) error {
	existing, err := s.linkFor(ctx, link.GameID, link.EntryID)
	if err != nil {
		return err
	}
	if existing != nil && existing.Pinned && link.MatchType != MatchManual {
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO correlation_link (game_id, entry_id, match_type, confidence, pinned, created_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(game_id, entry_id) DO UPDATE SET
            match_type = excluded.match_type,
            confidence = excluded.confidence,
            pinned = excluded.pinned`,
		link.GameID, link.EntryID, link.MatchType, link.Confidence, boolToInt(link.Pinned), nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert correlation link: %w", err)
	}
	return nil
}

func (s *Store) linkFor(ctx context.Context, gameID, entryID int64) (*CorrelationLink, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, game_id, entry_id, match_type, confidence, pinned, created_at
         FROM correlation_link WHERE game_id = ? AND entry_id = ?`,
		gameID, entryID,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get correlation link: %w", err)
	}
	return link, nil
}

func scanLink(scanner interface{ Scan(dest ...any) error }) (*CorrelationLink, error) {
	var (
		l         CorrelationLink
		matchType string
		pinned    int
		created   string
	)
	if err := scanner.Scan(&l.ID, &l.GameID, &l.EntryID, &matchType, &l.Confidence, &pinned, &created); err != nil {
		return nil, err
	}
	l.MatchType = MatchType(matchType)
	l.Pinned = pinned != 0
	if t, err := parseTimeString(created); err == nil {
		l.CreatedAt = t
	}
	return &l, nil
}

// PinLink marks a link as a permanent manual decision.
func (s *Store) PinLink(ctx context.Context, gameID, entryID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE correlation_link SET pinned = 1, match_type = ? WHERE game_id = ? AND entry_id = ?`,
		MatchManual, gameID, entryID,
	)
	if err != nil {
		return fmt.Errorf("pin link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no link between game %d and entry %d", gameID, entryID)
	}
	return nil
}

// LinksForGame returns all correlation links for a game.
func (s *Store) LinksForGame(ctx context.Context, gameID int64) ([]*CorrelationLink, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, game_id, entry_id, match_type, confidence, pinned, created_at
         FROM correlation_link WHERE game_id = ? ORDER BY confidence DESC`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	var links []*CorrelationLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// EnqueueCuration inserts a new open curation item.
func (s *Store) EnqueueCuration(ctx context.Context, item CurationItem) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO curation_candidate (kind, game_id, entry_id, instance_id, score, detail, state, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Kind, nullableInt64(item.GameID), nullableInt64(item.EntryID), nullableInt64(item.InstanceID),
		item.Score, nullableString(item.Detail), CurationOpen, nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("enqueue curation item: %w", err)
	}
	return res.LastInsertId()
}

const curationColumns = "id, kind, game_id, entry_id, instance_id, score, detail, state, created_at, resolved_at, resolved_by"

func scanCuration(scanner interface{ Scan(dest ...any) error }) (*CurationItem, error) {
	var (
		item       CurationItem
		kind       string
		gameID     sql.NullInt64
		entryID    sql.NullInt64
		instanceID sql.NullInt64
		score      sql.NullFloat64
		detail     sql.NullString
		state      string
		created    string
		resolved   sql.NullString
		resolvedBy sql.NullString
	)
	if err := scanner.Scan(&item.ID, &kind, &gameID, &entryID, &instanceID, &score, &detail, &state, &created, &resolved, &resolvedBy); err != nil {
		return nil, err
	}
	item.Kind = CurationKind(kind)
	item.GameID = gameID.Int64
	item.EntryID = entryID.Int64
	item.InstanceID = instanceID.Int64
	item.Score = score.Float64
	item.Detail = detail.String
	item.State = CurationState(state)
	item.ResolvedBy = resolvedBy.String
	if t, err := parseTimeString(created); err == nil {
		item.CreatedAt = t
	}
	if resolved.Valid {
		if t, err := parseTimeString(resolved.String); err == nil {
			item.ResolvedAt = t
		}
	}
	return &item, nil
}

// OpenCurationItems returns the review queue, oldest first.
func (s *Store) OpenCurationItems(ctx context.Context, limit int) ([]*CurationItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+curationColumns+` FROM curation_candidate WHERE state = ? ORDER BY id LIMIT ?`,
		CurationOpen, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query open curation items: %w", err)
	}
	defer rows.Close()

	var items []*CurationItem
	for rows.Next() {
		item, err := scanCuration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CurationItemsForGame returns every curation item referencing a game,
// regardless of state.
func (s *Store) CurationItemsForGame(ctx context.Context, gameID int64) ([]*CurationItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+curationColumns+` FROM curation_candidate WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query curation items for game: %w", err)
	}
	defer rows.Close()

	var items []*CurationItem
	for rows.Next() {
		item, err := scanCuration(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CurationItemByID returns one curation item, or nil.
func (s *Store) CurationItemByID(ctx context.Context, id int64) (*CurationItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+curationColumns+` FROM curation_candidate WHERE id = ?`, id)
	item, err := scanCuration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get curation item: %w", err)
	}
	return item, nil
}

// ResolveCuration transitions an open item to accepted or rejected. Resolving
// an already-resolved item is an error so double reviews are surfaced.
func (s *Store) ResolveCuration(ctx context.Context, id int64, state CurationState, resolvedBy string) error {
	if state != CurationAccepted && state != CurationRejected {
		return fmt.Errorf("invalid resolution state %q", state)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE curation_candidate SET state = ?, resolved_at = ?, resolved_by = ?
         WHERE id = ? AND state = ?`,
		state, nowStamp(), nullableString(resolvedBy), id, CurationOpen,
	)
	if err != nil {
		return fmt.Errorf("resolve curation item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("curation item %d is not open", id)
	}
	return nil
}

// SupersedeCurationForGame closes open items for a game when a newer pass
// makes them stale.
func (s *Store) SupersedeCurationForGame(ctx context.Context, gameID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE curation_candidate SET state = ?, resolved_at = ? WHERE game_id = ? AND state = ?`,
		CurationSuperseded, nowStamp(), gameID, CurationOpen,
	)
	if err != nil {
		return 0, fmt.Errorf("supersede curation items: %w", err)
	}
	return res.RowsAffected()
}
