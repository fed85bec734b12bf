package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Digests carries all computed digests for one unit of content.
type Digests struct {
	SHA1      string
	CRC32     string
	MD5       string
	SHA256    string
	SizeBytes int64
}

// HashedFile is the outcome of hashing one candidate, ready to commit.
type HashedFile struct {
	CandidateID  int64
	RootID       int64
	RelativePath string
	AbsolutePath string
	ModifiedAt   time.Time
	Digests      Digests
	ContentRole  ContentRole
}

const fileColumns = "id, sha1, crc32, md5, sha256, size_bytes, content_role, first_seen_at"

func scanFileRecord(scanner interface{ Scan(dest ...any) error }) (*FileRecord, error) {
	var (
		f      FileRecord
		sha256 sql.NullString
		role   string
		seen   string
	)
	if err := scanner.Scan(&f.ID, &f.SHA1, &f.CRC32, &f.MD5, &sha256, &f.SizeBytes, &role, &seen); err != nil {
		return nil, err
	}
	f.SHA256 = sha256.String
	f.ContentRole = ContentRole(role)
	if t, err := parseTimeString(seen); err == nil {
		f.FirstSeenAt = t
	}
	return &f, nil
}

// FileBySHA1 returns the file record with the given digest, or nil.
func (s *Store) FileBySHA1(ctx context.Context, sha1 string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_record WHERE sha1 = ?`, sha1)
	f, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	return f, nil
}

// FileByID returns the file record with the given identifier, or nil.
func (s *Store) FileByID(ctx context.Context, id int64) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_record WHERE id = ?`, id)
	f, err := scanFileRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get file record: %w", err)
	}
	return f, nil
}

func ensureFileRecordTx(ctx context.Context, tx *sql.Tx, d Digests, role ContentRole) (int64, error) {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO file_record (sha1, crc32, md5, sha256, size_bytes, content_role, first_seen_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(sha1) DO NOTHING`,
		d.SHA1, d.CRC32, d.MD5, nullableString(d.SHA256), d.SizeBytes, role, nowStamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert file record: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx, `SELECT id FROM file_record WHERE sha1 = ?`, d.SHA1).Scan(&id); err != nil {
		return 0, fmt.Errorf("lookup file record: %w", err)
	}
	return id, nil
}

// CommitHashBatch persists a batch of hashing results atomically: file
// records are deduplicated by sha1, physical instances upserted, candidates
// promoted to hashed, and the hash cache refreshed.
func (s *Store) CommitHashBatch(ctx context.Context, results []HashedFile) error {
	if len(results) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stamp := nowStamp()
		for _, r := range results {
			fileID, err := ensureFileRecordTx(ctx, tx, r.Digests, r.ContentRole)
			if err != nil {
				return err
			}
			// first_seen_at survives re-hashing; only the conflict branch
			// leaves it untouched.
			_, err = tx.ExecContext(ctx,
				`INSERT INTO physical_instance
                    (root_id, relative_path, file_id, status, size_bytes, modified_at, first_seen_at, last_seen_at)
                 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                 ON CONFLICT(root_id, relative_path) DO UPDATE SET
                    file_id = excluded.file_id,
                    status = 'present',
                    size_bytes = excluded.size_bytes,
                    modified_at = excluded.modified_at,
                    last_seen_at = excluded.last_seen_at`,
				r.RootID, r.RelativePath, fileID, InstancePresent,
				r.Digests.SizeBytes, nullableTime(r.ModifiedAt), stamp, stamp,
			)
			if err != nil {
				return fmt.Errorf("upsert instance %q: %w", r.RelativePath, err)
			}
			if r.CandidateID != 0 {
				_, err = tx.ExecContext(ctx,
					`UPDATE discovery_candidate SET state = ?, failure = NULL, updated_at = ? WHERE id = ?`,
					CandidateHashed, stamp, r.CandidateID,
				)
				if err != nil {
					return fmt.Errorf("promote candidate: %w", err)
				}
			}
			if r.AbsolutePath != "" {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO hash_cache (path, size_bytes, modified_at, sha1, crc32, md5, sha256, cached_at)
                     VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                     ON CONFLICT(path) DO UPDATE SET
                        size_bytes = excluded.size_bytes,
                        modified_at = excluded.modified_at,
                        sha1 = excluded.sha1,
                        crc32 = excluded.crc32,
                        md5 = excluded.md5,
                        sha256 = excluded.sha256,
                        cached_at = excluded.cached_at`,
					r.AbsolutePath, r.Digests.SizeBytes, r.ModifiedAt.UTC().Format(time.RFC3339Nano),
					r.Digests.SHA1, r.Digests.CRC32, r.Digests.MD5, nullableString(r.Digests.SHA256), stamp,
				)
				if err != nil {
					return fmt.Errorf("refresh hash cache: %w", err)
				}
			}
		}
		return nil
	})
}

// CachedDigests returns memoized digests for a path when its size and mtime
// are unchanged, or nil when the cache cannot be trusted.
func (s *Store) CachedDigests(ctx context.Context, path string, sizeBytes int64, modifiedAt time.Time) (*Digests, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT sha1, crc32, md5, sha256, size_bytes, modified_at FROM hash_cache WHERE path = ?`,
		path,
	)
	var (
		d           Digests
		sha256      sql.NullString
		modifiedRaw string
	)
	err := row.Scan(&d.SHA1, &d.CRC32, &d.MD5, &sha256, &d.SizeBytes, &modifiedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get hash cache: %w", err)
	}
	if d.SizeBytes != sizeBytes {
		return nil, nil
	}
	cachedMod, err := parseTimeString(modifiedRaw)
	if err != nil || !cachedMod.Equal(modifiedAt.UTC().Truncate(time.Nanosecond)) {
		return nil, nil
	}
	d.SHA256 = sha256.String
	return &d, nil
}

const instanceColumns = "id, root_id, relative_path, file_id, status, size_bytes, modified_at, first_seen_at, last_seen_at"

func scanInstance(scanner interface{ Scan(dest ...any) error }) (*Instance, error) {
	var (
		inst      Instance
		fileID    sql.NullInt64
		status    string
		modified  sql.NullString
		firstSeen string
		lastSeen  string
	)
	if err := scanner.Scan(&inst.ID, &inst.RootID, &inst.RelativePath, &fileID, &status, &inst.SizeBytes, &modified, &firstSeen, &lastSeen); err != nil {
		return nil, err
	}
	inst.FileID = fileID.Int64
	inst.Status = InstanceStatus(status)
	if modified.Valid {
		if t, err := parseTimeString(modified.String); err == nil {
			inst.ModifiedAt = t
		}
	}
	if t, err := parseTimeString(firstSeen); err == nil {
		inst.FirstSeenAt = t
	}
	if t, err := parseTimeString(lastSeen); err == nil {
		inst.LastSeenAt = t
	}
	return &inst, nil
}

// InstanceByID returns one physical instance, or nil.
func (s *Store) InstanceByID(ctx context.Context, id int64) (*Instance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM physical_instance WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return inst, nil
}

// InstancesForFile returns all on-disk occurrences of a file record.
func (s *Store) InstancesForFile(ctx context.Context, fileID int64) ([]*Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM physical_instance WHERE file_id = ? ORDER BY id`, fileID)
	if err != nil {
		return nil, fmt.Errorf("query instances for file: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows)
}

// InstancesByStatus returns instances in the given status, oldest first.
func (s *Store) InstancesByStatus(ctx context.Context, status InstanceStatus) ([]*Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceColumns+` FROM physical_instance WHERE status = ? ORDER BY id`, status)
	if err != nil {
		return nil, fmt.Errorf("query instances by status: %w", err)
	}
	defer rows.Close()
	return collectInstances(rows)
}

func collectInstances(rows *sql.Rows) ([]*Instance, error) {
	var instances []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	return instances, rows.Err()
}

// SetInstanceStatus transitions one instance to a new on-disk status.
func (s *Store) SetInstanceStatus(ctx context.Context, id int64, status InstanceStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE physical_instance SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("set instance status: %w", err)
	}
	return nil
}

// MoveInstance records a relocation of an instance, rebinding it to a new
// root and relative path after the organizer applies a plan.
func (s *Store) MoveInstance(ctx context.Context, id, newRootID int64, newRelativePath string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE physical_instance SET root_id = ?, relative_path = ?, last_seen_at = ? WHERE id = ?`,
		newRootID, newRelativePath, nowStamp(), id)
	if err != nil {
		return fmt.Errorf("move instance: %w", err)
	}
	return nil
}

// RecordArchiveMembers persists the expansion of one container atomically.
// Member file records are deduplicated by digest like top-level files.
func (s *Store) RecordArchiveMembers(ctx context.Context, containerFileID int64, members []ArchiveMemberContent) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, m := range members {
			var memberFileID any
			if m.Digests.SHA1 != "" {
				role := m.Role
				if role == "" {
					role = RoleROM
				}
				id, err := ensureFileRecordTx(ctx, tx, m.Digests, role)
				if err != nil {
					return err
				}
				memberFileID = id
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO archive_member (container_file_id, member_path, member_file_id, depth, is_primary)
                 VALUES (?, ?, ?, ?, ?)
                 ON CONFLICT(container_file_id, member_path) DO UPDATE SET
                    member_file_id = excluded.member_file_id,
                    depth = excluded.depth,
                    is_primary = excluded.is_primary`,
				containerFileID, m.MemberPath, memberFileID, m.Depth, boolToInt(m.IsPrimary),
			)
			if err != nil {
				return fmt.Errorf("upsert archive member %q: %w", m.MemberPath, err)
			}
		}
		return nil
	})
}

// ArchiveMemberContent is one expanded member with its digests and classified
// role, used when recording a container expansion.
type ArchiveMemberContent struct {
	MemberPath string
	Digests    Digests
	Role       ContentRole
	Depth      int
	IsPrimary  bool
}

// MembersOfContainer returns the recorded members of a container file.
func (s *Store) MembersOfContainer(ctx context.Context, containerFileID int64) ([]*ArchiveMember, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, container_file_id, member_path, member_file_id, depth, is_primary
         FROM archive_member WHERE container_file_id = ? ORDER BY member_path`,
		containerFileID,
	)
	if err != nil {
		return nil, fmt.Errorf("query archive members: %w", err)
	}
	defer rows.Close()

	var members []*ArchiveMember
	for rows.Next() {
		var (
			m         ArchiveMember
			fileID    sql.NullInt64
			isPrimary int
		)
		if err := rows.Scan(&m.ID, &m.ContainerFileID, &m.MemberPath, &fileID, &m.Depth, &isPrimary); err != nil {
			return nil, err
		}
		m.MemberFileID = fileID.Int64
		m.IsPrimary = isPrimary != 0
		members = append(members, &m)
	}
	return members, rows.Err()
}

// UnattachedMemberFiles returns playable file records that exist only as
// archive members: no physical instance of their own and no release artifact
// yet. These are the extracted contents correlation still has to match.
func (s *Store) UnattachedMemberFiles(ctx context.Context) ([]*FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT f.id, f.sha1, f.crc32, f.md5, f.sha256, f.size_bytes, f.content_role, f.first_seen_at
         FROM file_record f
         JOIN archive_member m ON m.member_file_id = f.id
         WHERE f.content_role IN (?, ?)
           AND NOT EXISTS (SELECT 1 FROM physical_instance i WHERE i.file_id = f.id)
           AND NOT EXISTS (SELECT 1 FROM release_artifact a WHERE a.file_id = f.id)
         ORDER BY f.id`,
		RoleROM, RoleDisc,
	)
	if err != nil {
		return nil, fmt.Errorf("query unattached member files: %w", err)
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

// ContainerWork is a container file awaiting expansion, located through one
// of its present instances.
type ContainerWork struct {
	FileID       int64
	RootID       int64
	RelativePath string
}

// ContainersToExpand returns container files that have a present instance
// and no recorded members yet.
func (s *Store) ContainersToExpand(ctx context.Context) ([]ContainerWork, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.id, i.root_id, i.relative_path
         FROM file_record f
         JOIN physical_instance i ON i.file_id = f.id
         WHERE f.content_role = ? AND i.status = ?
           AND NOT EXISTS (SELECT 1 FROM archive_member m WHERE m.container_file_id = f.id)
         GROUP BY f.id
         ORDER BY f.id`,
		RoleContainer, InstancePresent,
	)
	if err != nil {
		return nil, fmt.Errorf("query containers to expand: %w", err)
	}
	defer rows.Close()

	var work []ContainerWork
	for rows.Next() {
		var w ContainerWork
		if err := rows.Scan(&w.FileID, &w.RootID, &w.RelativePath); err != nil {
			return nil, err
		}
		work = append(work, w)
	}
	return work, rows.Err()
}

// ExtensionRules returns the configured extension registry.
func (s *Store) ExtensionRules(ctx context.Context) ([]ExtensionRule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ext, role, platform_hint FROM extension_rule ORDER BY ext`)
	if err != nil {
		return nil, fmt.Errorf("query extension rules: %w", err)
	}
	defer rows.Close()

	var rules []ExtensionRule
	for rows.Next() {
		var (
			rule ExtensionRule
			role string
			hint sql.NullString
		)
		if err := rows.Scan(&rule.Ext, &role, &hint); err != nil {
			return nil, err
		}
		rule.Role = ContentRole(role)
		rule.PlatformHint = hint.String
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpsertExtensionRule registers or updates one extension mapping.
func (s *Store) UpsertExtensionRule(ctx context.Context, rule ExtensionRule) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extension_rule (ext, role, platform_hint) VALUES (?, ?, ?)
         ON CONFLICT(ext) DO UPDATE SET role = excluded.role, platform_hint = excluded.platform_hint`,
		rule.Ext, rule.Role, nullableString(rule.PlatformHint),
	)
	if err != nil {
		return fmt.Errorf("upsert extension rule: %w", err)
	}
	return nil
}
