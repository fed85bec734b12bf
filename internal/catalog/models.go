package catalog

import "time"

// CandidateState tracks a discovered path through the hashing pipeline.
type CandidateState string

const (
	CandidatePending CandidateState = "pending"
	CandidateHashed  CandidateState = "hashed"
	CandidateFailed  CandidateState = "failed"
	CandidateSkipped CandidateState = "skipped"
)

// InstanceStatus tracks the on-disk state of a cataloged file.
type InstanceStatus string

const (
	InstancePresent     InstanceStatus = "present"
	InstanceMissing     InstanceStatus = "missing"
	InstanceQuarantined InstanceStatus = "quarantined"
)

// MatchType records how a correlation link was established: digest identity,
// title similarity, or a human decision.
type MatchType string

const (
	MatchAutomatic MatchType = "automatic"
	MatchFuzzy     MatchType = "fuzzy"
	MatchManual    MatchType = "manual"
)

// CurationState tracks a review item through the queue.
type CurationState string

const (
	CurationOpen       CurationState = "open"
	CurationAccepted   CurationState = "accepted"
	CurationRejected   CurationState = "rejected"
	CurationSuperseded CurationState = "superseded"
)

// CurationKind classifies why an item needs review.
type CurationKind string

const (
	CurationFuzzyMatch    CurationKind = "fuzzy_match"
	CurationDuplicate     CurationKind = "duplicate"
	CurationVersionChoice CurationKind = "version_choice"
	CurationUnmatched     CurationKind = "unmatched"
)

// OperationKind names an entry in the operation log.
type OperationKind string

const (
	OpMove             OperationKind = "move"
	OpCopy             OperationKind = "copy"
	OpQuarantine       OperationKind = "quarantine"
	OpUndo             OperationKind = "undo"
	OpPasswordRequired OperationKind = "password_required"
	OpCorrupt          OperationKind = "corrupt"
)

// RunStatus tracks an ingest run lifecycle.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// ContentRole classifies what a file record contributes to a release.
// Container marks an archive whose members still need expansion.
type ContentRole string

const (
	RoleROM       ContentRole = "rom"
	RoleDisc      ContentRole = "disc"
	RolePatch     ContentRole = "patch"
	RoleSave      ContentRole = "save"
	RoleAuxiliary ContentRole = "auxiliary"
	RoleContainer ContentRole = "container"
)

// Playable reports whether the role is game content eligible for correlation
// and selection, as opposed to companions like patches, saves, and docs.
func (r ContentRole) Playable() bool {
	return r == RoleROM || r == RoleDisc
}

// LibraryRoot is a configured scan root registered in the catalog.
type LibraryRoot struct {
	ID        int64
	Path      string
	Label     string
	CreatedAt time.Time
}

// Platform is a known system, addressed by canonical name or alias.
type Platform struct {
	ID       int64
	Name     string
	SortName string
}

// PlatformAlias maps an external vocabulary name onto a platform.
type PlatformAlias struct {
	ID         int64
	PlatformID int64
	Alias      string
	Source     string
	Confidence float64
}

// Game is the canonical title an instance or reference entry resolves to.
type Game struct {
	ID         int64
	PlatformID int64
	Title      string
	TitleKey   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Release is one published variant of a game. EntryID points at the
// reference entry the release was created from, when one exists.
type Release struct {
	ID         int64
	GameID     int64
	EntryID    int64
	Region     string
	Languages  string
	Version    string
	DevStatus  string
	DumpStatus string
	IsClone    bool
	CreatedAt  time.Time
}

// FileRecord is content identified by digest, independent of location.
type FileRecord struct {
	ID          int64
	SHA1        string
	CRC32       string
	MD5         string
	SHA256      string
	SizeBytes   int64
	ContentRole ContentRole
	FirstSeenAt time.Time
}

// Instance is one on-disk occurrence of content under a library root.
type Instance struct {
	ID           int64
	RootID       int64
	RelativePath string
	FileID       int64
	Status       InstanceStatus
	SizeBytes    int64
	ModifiedAt   time.Time
	FirstSeenAt  time.Time
	LastSeenAt   time.Time
}

// Candidate is a discovered path awaiting hashing.
type Candidate struct {
	ID           int64
	RootID       int64
	RelativePath string
	SizeBytes    int64
	ModifiedAt   time.Time
	State        CandidateState
	Failure      string
	RunID        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ArchiveMember records content found inside a container file.
type ArchiveMember struct {
	ID              int64
	ContainerFileID int64
	MemberPath      string
	MemberFileID    int64
	Depth           int
	IsPrimary       bool
}

// ReferenceSource identifies an imported reference catalog.
type ReferenceSource struct {
	ID         int64
	Name       string
	Kind       string
	Version    string
	ImportedAt time.Time
}

// ReferenceEntry is one entry from a reference source, with known digests.
type ReferenceEntry struct {
	ID         int64
	SourceID   int64
	PlatformID int64
	ExternalID string
	Title      string
	TitleKey   string
	Region     string
	Languages  string
	Version    string
	DevStatus  string
	DumpStatus string
	IsClone    bool
	CloneOf    string
	SHA1       string
	CRC32      string
	MD5        string
	SizeBytes  int64
}

// CorrelationLink ties a canonical game to a reference entry.
type CorrelationLink struct {
	ID         int64
	GameID     int64
	EntryID    int64
	MatchType  MatchType
	Confidence float64
	Pinned     bool
	CreatedAt  time.Time
}

// CurationItem is a queued decision awaiting human review.
type CurationItem struct {
	ID         int64
	Kind       CurationKind
	GameID     int64
	EntryID    int64
	InstanceID int64
	Score      float64
	Detail     string
	State      CurationState
	CreatedAt  time.Time
	ResolvedAt time.Time
	ResolvedBy string
}

// SelectionSet is a frozen 1G1R selection produced by a policy run.
type SelectionSet struct {
	ID         string
	PolicyName string
	CreatedAt  time.Time
}

// SelectionEntry is the chosen instance for one game within a set.
type SelectionEntry struct {
	ID         int64
	SetID      string
	GameID     int64
	ReleaseID  int64
	InstanceID int64
	Rank       int
	Reason     string
}

// Operation is one entry of the append-only operation log.
type Operation struct {
	ID         int64
	RunID      string
	Kind       OperationKind
	InstanceID int64
	SourcePath string
	DestPath   string
	SHA1       string
	Detail     string
	Undone     bool
	CreatedAt  time.Time
}

// Run records one ingest run for provenance.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     RunStatus
	StatsJSON  string
	Error      string
}

// Checkpoint is the resumable cursor for one root's discovery walk.
type Checkpoint struct {
	RootID    int64
	Cursor    string
	RulesHash string
	Version   int
	UpdatedAt time.Time
}

// HashCacheEntry memoizes digests for an unchanged path.
type HashCacheEntry struct {
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
	SHA1       string
	CRC32      string
	MD5        string
	SHA256     string
	CachedAt   time.Time
}

// ExtensionRule maps a file extension to a content role and optional
// platform hint.
type ExtensionRule struct {
	Ext          string
	Role         ContentRole
	PlatformHint string
}
