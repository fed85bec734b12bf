package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DatabaseDir   string `toml:"database_dir"`
	LogDir        string `toml:"log_dir"`
	TempDir       string `toml:"temp_dir"`
	QuarantineDir string `toml:"quarantine_dir"`
}

// Library describes the scanned collection and the organized destination.
type Library struct {
	Roots             []string `toml:"roots"`
	ExcludeGlobs      []string `toml:"exclude_globs"`
	MarkerFiles       []string `toml:"marker_files"`
	DestinationDir    string   `toml:"destination_dir"`
	PathTemplate      string   `toml:"path_template"`
	OverwriteExisting bool     `toml:"overwrite_existing"`
}

// Ingestion bounds the discovery and hashing pipeline.
type Ingestion struct {
	BatchSize          int `toml:"batch_size"`
	HashChunkMiB       int `toml:"hash_chunk_mib"`
	MaxFileSizeMiB     int `toml:"max_file_size_mib"`
	Workers            int `toml:"workers"`
	UnitTimeoutSeconds int `toml:"unit_timeout_seconds"`
}

// Archive bounds container expansion.
type Archive struct {
	Enabled         bool     `toml:"enabled"`
	MaxDepth        int      `toml:"max_depth"`
	TempSpaceMiB    int      `toml:"temp_space_mib"`
	Passwords       []string `toml:"passwords"`
	MemberHashLimit int      `toml:"member_hash_limit"`
}

// Matching holds the correlator confidence thresholds.
type Matching struct {
	AutoLinkThreshold float64 `toml:"auto_link_threshold"`
	ReviewThreshold   float64 `toml:"review_threshold"`
	RefreshConfidence bool    `toml:"refresh_confidence"`
}

// Curation holds the automatic conflict-resolution preferences.
type Curation struct {
	PreferHigherRevision bool `toml:"prefer_higher_revision"`
	PreferVerified       bool `toml:"prefer_verified"`
}

// SelectionPolicy is an ordered set of tie-break rules for 1G1R selection.
type SelectionPolicy struct {
	Name              string   `toml:"name"`
	RegionOrder       []string `toml:"region_order"`
	LanguageOrder     []string `toml:"language_order"`
	ExcludeClones     bool     `toml:"exclude_clones"`
	ExcludeUnverified bool     `toml:"exclude_unverified"`
}

// Workflow holds retry/backoff tuning for transient failures.
type Workflow struct {
	RetryMaxAttempts  int `toml:"retry_max_attempts"`
	RetryInitialMs    int `toml:"retry_initial_ms"`
	RetryMaxIntervalMs int `toml:"retry_max_interval_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the engine.
//
// Sections by subsystem:
//   - Paths: catalog database, logs, temp extraction, quarantine
//   - Library: scan roots, exclusions, destination layout
//   - Ingestion: batch size, hash chunking, worker pool, ceilings
//   - Archive: expansion depth, temp space, candidate passwords
//   - Matching: correlator thresholds
//   - Curation: automatic conflict preferences
//   - Selection: named 1G1R policies
//   - Workflow: transient retry tuning
//   - Logging: format and level
type Config struct {
	Paths     Paths             `toml:"paths"`
	Library   Library           `toml:"library"`
	Ingestion Ingestion         `toml:"ingestion"`
	Archive   Archive           `toml:"archive"`
	Matching  Matching          `toml:"matching"`
	Curation  Curation          `toml:"curation"`
	Selection []SelectionPolicy `toml:"selection"`
	Workflow  Workflow          `toml:"workflow"`
	Logging   Logging           `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/romcurator/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("romcurator.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the engine needs to operate.
// The destination directory is created best-effort so a run can start while
// external storage is temporarily offline.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DatabaseDir, c.Paths.LogDir, c.Paths.TempDir, c.Paths.QuarantineDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Library.DestinationDir) != "" {
		_ = os.MkdirAll(c.Library.DestinationDir, 0o755)
	}
	return nil
}

// DatabasePath returns the catalog database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DatabaseDir, "catalog.db")
}

// LockPath returns the per-catalog run lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DatabaseDir, "ingest.lock")
}

// HashChunkBytes returns the configured hashing chunk size in bytes.
func (c *Config) HashChunkBytes() int {
	return c.Ingestion.HashChunkMiB << 20
}

// Policy returns the named selection policy, or the first configured policy
// when name is empty.
func (c *Config) Policy(name string) (SelectionPolicy, error) {
	if len(c.Selection) == 0 {
		return SelectionPolicy{}, errors.New("no selection policies configured")
	}
	if strings.TrimSpace(name) == "" {
		return c.Selection[0], nil
	}
	for _, policy := range c.Selection {
		if strings.EqualFold(policy.Name, name) {
			return policy, nil
		}
	}
	return SelectionPolicy{}, fmt.Errorf("selection policy %q not configured", name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
