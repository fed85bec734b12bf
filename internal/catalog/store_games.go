package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// EnsurePlatform registers a platform by canonical name, returning its identifier.
func (s *Store) EnsurePlatform(ctx context.Context, name, sortName string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errors.New("platform name is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO platform (name, sort_name) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`,
		name, nullableString(sortName),
	)
	if err != nil {
		return 0, fmt.Errorf("insert platform: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM platform WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup platform: %w", err)
	}
	return id, nil
}

// AddPlatformAlias maps an external vocabulary name onto a platform.
func (s *Store) AddPlatformAlias(ctx context.Context, platformID int64, alias, source string, confidence float64) error {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return errors.New("platform alias is empty")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO platform_link (platform_id, alias, source, confidence) VALUES (?, ?, ?, ?)
         ON CONFLICT(alias) DO UPDATE SET
            platform_id = excluded.platform_id,
            source = excluded.source,
            confidence = excluded.confidence`,
		platformID, alias, source, confidence,
	)
	if err != nil {
		return fmt.Errorf("add platform alias: %w", err)
	}
	return nil
}

// ResolvePlatform finds a platform by canonical name or alias. The returned
// confidence is 1.0 for a canonical-name hit and the alias confidence
// otherwise. Returns nil when nothing matches.
func (s *Store) ResolvePlatform(ctx context.Context, name string) (*Platform, float64, error) {
	name = strings.TrimSpace(name)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, sort_name FROM platform WHERE name = ? COLLATE NOCASE`, name)
	p, err := scanPlatform(row)
	if err == nil {
		return p, 1.0, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, fmt.Errorf("lookup platform: %w", err)
	}

	row = s.db.QueryRowContext(ctx,
		`SELECT p.id, p.name, p.sort_name, l.confidence
         FROM platform_link l JOIN platform p ON p.id = l.platform_id
         WHERE l.alias = ? COLLATE NOCASE
         ORDER BY l.confidence DESC LIMIT 1`, name)
	var (
		plat       Platform
		sortName   sql.NullString
		confidence float64
	)
	err = row.Scan(&plat.ID, &plat.Name, &sortName, &confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("lookup platform alias: %w", err)
	}
	plat.SortName = sortName.String
	return &plat, confidence, nil
}

func scanPlatform(scanner interface{ Scan(dest ...any) error }) (*Platform, error) {
	var (
		p        Platform
		sortName sql.NullString
	)
	if err := scanner.Scan(&p.ID, &p.Name, &sortName); err != nil {
		return nil, err
	}
	p.SortName = sortName.String
	return &p, nil
}

// Platforms returns all registered platforms ordered by name.
func (s *Store) Platforms(ctx context.Context) ([]*Platform, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, sort_name FROM platform ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query platforms: %w", err)
	}
	defer rows.Close()

	var platforms []*Platform
	for rows.Next() {
		p, err := scanPlatform(rows)
		if err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

const gameColumns = "id, platform_id, title, title_key, created_at, updated_at"

func scanGame(scanner interface{ Scan(dest ...any) error }) (*Game, error) {
	var (
		g       Game
		created string
		updated string
	)
	if err := scanner.Scan(&g.ID, &g.PlatformID, &g.Title, &g.TitleKey, &created, &updated); err != nil {
		return nil, err
	}
	if t, err := parseTimeString(created); err == nil {
		g.CreatedAt = t
	}
	if t, err := parseTimeString(updated); err == nil {
		g.UpdatedAt = t
	}
	return &g, nil
}

// GetOrCreateGame resolves a canonical game by normalized title key,
// creating it when absent.
func (s *Store) GetOrCreateGame(ctx context.Context, platformID int64, title, titleKey string) (*Game, error) {
	if strings.TrimSpace(titleKey) == "" {
		return nil, errors.New("title key is empty")
	}
	stamp := nowStamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO canonical_game (platform_id, title, title_key, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(platform_id, title_key) DO NOTHING`,
		platformID, title, titleKey, stamp, stamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert game: %w", err)
	}
	return s.GameByTitleKey(ctx, platformID, titleKey)
}

// GameByTitleKey returns the game matching a normalized title key, or nil.
func (s *Store) GameByTitleKey(ctx context.Context, platformID int64, titleKey string) (*Game, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+gameColumns+` FROM canonical_game WHERE platform_id = ? AND title_key = ?`,
		platformID, titleKey,
	)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

// GameByID returns one game, or nil.
func (s *Store) GameByID(ctx context.Context, id int64) (*Game, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM canonical_game WHERE id = ?`, id)
	g, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game: %w", err)
	}
	return g, nil
}

// GamesForPlatform returns all canonical games for a platform ordered by title.
func (s *Store) GamesForPlatform(ctx context.Context, platformID int64) ([]*Game, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+gameColumns+` FROM canonical_game WHERE platform_id = ? ORDER BY title`, platformID)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var games []*Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// AddRelease attaches a release variant to a game.
func (s *Store) AddRelease(ctx context.Context, r Release) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO game_release (game_id, entry_id, region, languages, version, dev_status, dump_status, is_clone, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.GameID, nullableInt64(r.EntryID), nullableString(r.Region), nullableString(r.Languages), nullableString(r.Version),
		nullableString(r.DevStatus), nullableString(r.DumpStatus), boolToInt(r.IsClone), nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert release: %w", err)
	}
	return res.LastInsertId()
}

const releaseColumns = "id, game_id, entry_id, region, languages, version, dev_status, dump_status, is_clone, created_at"

func scanRelease(scanner interface{ Scan(dest ...any) error }) (*Release, error) {
	var (
		r          Release
		entryID    sql.NullInt64
		region     sql.NullString
		languages  sql.NullString
		version    sql.NullString
		devStatus  sql.NullString
		dumpStatus sql.NullString
		isClone    int
		created    string
	)
	if err := scanner.Scan(&r.ID, &r.GameID, &entryID, &region, &languages, &version, &devStatus, &dumpStatus, &isClone, &created); err != nil {
		return nil, err
	}
	r.EntryID = entryID.Int64
	r.Region = region.String
	r.Languages = languages.String
	r.Version = version.String
	r.DevStatus = devStatus.String
	r.DumpStatus = dumpStatus.String
	r.IsClone = isClone != 0
	if t, err := parseTimeString(created); err == nil {
		r.CreatedAt = t
	}
	return &r, nil
}

// ReleaseByID returns one release, or nil.
func (s *Store) ReleaseByID(ctx context.Context, id int64) (*Release, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+releaseColumns+` FROM game_release WHERE id = ?`, id)
	r, err := scanRelease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	return r, nil
}

// ReleasesForGame returns all release variants of a game.
func (s *Store) ReleasesForGame(ctx context.Context, gameID int64) ([]*Release, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+releaseColumns+` FROM game_release WHERE game_id = ? ORDER BY id`, gameID)
	if err != nil {
		return nil, fmt.Errorf("query releases: %w", err)
	}
	defer rows.Close()

	var releases []*Release
	for rows.Next() {
		r, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, r)
	}
	return releases, rows.Err()
}

// LinkArtifact ties a file record to a release.
func (s *Store) LinkArtifact(ctx context.Context, releaseID, fileID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO release_artifact (release_id, file_id) VALUES (?, ?)
         ON CONFLICT(release_id, file_id) DO NOTHING`,
		releaseID, fileID,
	)
	if err != nil {
		return fmt.Errorf("link artifact: %w", err)
	}
	return nil
}

// FileAttached reports whether a file record is already tied to any release.
func (s *Store) FileAttached(ctx context.Context, fileID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM release_artifact WHERE file_id = ?`, fileID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check artifact: %w", err)
	}
	return count > 0, nil
}

// ReleaseGame returns the game a release belongs to.
func (s *Store) ReleaseGame(ctx context.Context, releaseID int64) (int64, error) {
	var gameID int64
	err := s.db.QueryRowContext(ctx,
		`SELECT game_id FROM game_release WHERE id = ?`, releaseID).Scan(&gameID)
	if err != nil {
		return 0, fmt.Errorf("release game: %w", err)
	}
	return gameID, nil
}

// ArtifactsForRelease returns the file records tied to a release.
func (s *Store) ArtifactsForRelease(ctx context.Context, releaseID int64) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, f.sha1, f.crc32, f.md5, f.sha256, f.size_bytes, f.content_role, f.first_seen_at
         FROM release_artifact a JOIN file_record f ON f.id = a.file_id
         WHERE a.release_id = ? ORDER BY f.id`,
		releaseID,
	)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	var files []*FileRecord
	for rows.Next() {
		f, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// MergeGames folds fromID into intoID: releases move over, correlation links
// are carried across unless the target already holds one for the same entry,
// and the source game is deleted. Pinned links survive the merge.
func (s *Store) MergeGames(ctx context.Context, fromID, intoID int64) error {
	if fromID == intoID {
		return errors.New("cannot merge a game into itself")
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM canonical_game WHERE id = ?`, intoID).Scan(&exists); err != nil {
			return fmt.Errorf("check target game: %w", err)
		}
		if exists == 0 {
			return fmt.Errorf("target game %d not found", intoID)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE game_release SET game_id = ? WHERE game_id = ?`, intoID, fromID); err != nil {
			return fmt.Errorf("move releases: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE OR IGNORE correlation_link SET game_id = ? WHERE game_id = ?`, intoID, fromID); err != nil {
			return fmt.Errorf("move correlation links: %w", err)
		}
		// Links colliding with an existing (game, entry) pair stay behind
		// and are removed with the source game below.
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM canonical_game WHERE id = ?`, fromID); err != nil {
			return fmt.Errorf("delete merged game: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE canonical_game SET updated_at = ? WHERE id = ?`, nowStamp(), intoID); err != nil {
			return fmt.Errorf("touch target game: %w", err)
		}
		return nil
	})
}
