package config

const (
	defaultDatabaseDir    = "~/.local/share/romcurator"
	defaultLogDir         = "~/.local/share/romcurator/logs"
	defaultTempDir        = "~/.cache/romcurator/extract"
	defaultQuarantineDir  = "~/.local/share/romcurator/quarantine"
	defaultPathTemplate   = "{{.Platform}}/{{.Title}}{{with .Region}} ({{.}}){{end}}{{.Ext}}"
	defaultBatchSize      = 200
	defaultHashChunkMiB   = 32
	defaultWorkers        = 0 // sized to available cores at run time
	defaultUnitTimeout    = 600
	defaultArchiveDepth   = 3
	defaultTempSpaceMiB   = 4096
	defaultAutoThreshold  = 0.95
	defaultReviewThreshold = 0.5
	defaultRetryAttempts  = 3
	defaultRetryInitialMs = 250
	defaultRetryMaxMs     = 5000
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DatabaseDir:   defaultDatabaseDir,
			LogDir:        defaultLogDir,
			TempDir:       defaultTempDir,
			QuarantineDir: defaultQuarantineDir,
		},
		Library: Library{
			PathTemplate: defaultPathTemplate,
			MarkerFiles:  []string{".curatorignore"},
		},
		Ingestion: Ingestion{
			BatchSize:          defaultBatchSize,
			HashChunkMiB:       defaultHashChunkMiB,
			Workers:            defaultWorkers,
			UnitTimeoutSeconds: defaultUnitTimeout,
		},
		Archive: Archive{
			Enabled:      true,
			MaxDepth:     defaultArchiveDepth,
			TempSpaceMiB: defaultTempSpaceMiB,
		},
		Matching: Matching{
			AutoLinkThreshold: defaultAutoThreshold,
			ReviewThreshold:   defaultReviewThreshold,
			RefreshConfidence: true,
		},
		Curation: Curation{
			PreferHigherRevision: true,
			PreferVerified:       true,
		},
		Selection: []SelectionPolicy{
			{
				Name:          "default",
				RegionOrder:   []string{"USA", "World", "Europe", "Japan"},
				LanguageOrder: []string{"en"},
				ExcludeClones: true,
			},
		},
		Workflow: Workflow{
			RetryMaxAttempts:   defaultRetryAttempts,
			RetryInitialMs:     defaultRetryInitialMs,
			RetryMaxIntervalMs: defaultRetryMaxMs,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
