package config

import (
	"fmt"
	"strings"
)

// normalize expands paths and fills derived defaults after decoding.
func (c *Config) normalize() error {
	var err error
	if c.Paths.DatabaseDir, err = expandPath(c.Paths.DatabaseDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return err
	}
	if c.Paths.QuarantineDir, err = expandPath(c.Paths.QuarantineDir); err != nil {
		return err
	}
	if c.Library.DestinationDir != "" {
		if c.Library.DestinationDir, err = expandPath(c.Library.DestinationDir); err != nil {
			return err
		}
	}

	roots := make([]string, 0, len(c.Library.Roots))
	for _, root := range c.Library.Roots {
		trimmed := strings.TrimSpace(root)
		if trimmed == "" {
			continue
		}
		expanded, err := expandPath(trimmed)
		if err != nil {
			return fmt.Errorf("library root %q: %w", root, err)
		}
		roots = append(roots, expanded)
	}
	c.Library.Roots = roots

	if c.Ingestion.BatchSize <= 0 {
		c.Ingestion.BatchSize = defaultBatchSize
	}
	if c.Ingestion.HashChunkMiB <= 0 {
		c.Ingestion.HashChunkMiB = defaultHashChunkMiB
	}
	if c.Ingestion.UnitTimeoutSeconds <= 0 {
		c.Ingestion.UnitTimeoutSeconds = defaultUnitTimeout
	}
	if c.Archive.MaxDepth <= 0 {
		c.Archive.MaxDepth = defaultArchiveDepth
	}
	if c.Archive.TempSpaceMiB <= 0 {
		c.Archive.TempSpaceMiB = defaultTempSpaceMiB
	}
	if c.Matching.AutoLinkThreshold == 0 {
		c.Matching.AutoLinkThreshold = defaultAutoThreshold
	}
	if c.Matching.ReviewThreshold == 0 {
		c.Matching.ReviewThreshold = defaultReviewThreshold
	}
	if c.Workflow.RetryMaxAttempts <= 0 {
		c.Workflow.RetryMaxAttempts = defaultRetryAttempts
	}
	if c.Workflow.RetryInitialMs <= 0 {
		c.Workflow.RetryInitialMs = defaultRetryInitialMs
	}
	if c.Workflow.RetryMaxIntervalMs <= 0 {
		c.Workflow.RetryMaxIntervalMs = defaultRetryMaxMs
	}
	if strings.TrimSpace(c.Library.PathTemplate) == "" {
		c.Library.PathTemplate = defaultPathTemplate
	}
	return nil
}
