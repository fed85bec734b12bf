package testsupport

import (
	"path/filepath"
	"testing"

	"romcurator/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Directories exist when it returns.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DatabaseDir = filepath.Join(base, "db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.TempDir = filepath.Join(base, "tmp")
	cfgVal.Paths.QuarantineDir = filepath.Join(base, "quarantine")
	cfgVal.Library.DestinationDir = filepath.Join(base, "organized")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithRoots sets the library scan roots on the test config.
func WithRoots(roots ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.Roots = roots
	}
}

// WithArchiveExpansion toggles container expansion on the test config.
func WithArchiveExpansion(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Archive.Enabled = enabled
	}
}
