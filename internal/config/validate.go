package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable. Violations are fatal before
// any catalog work begins.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateIngestion(); err != nil {
		return err
	}
	if err := c.validateMatching(); err != nil {
		return err
	}
	if err := c.validateSelection(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DatabaseDir) == "" {
		return errors.New("paths.database_dir must be set")
	}
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		return errors.New("paths.temp_dir must be set")
	}
	return nil
}

func (c *Config) validateIngestion() error {
	if c.Ingestion.BatchSize <= 0 {
		return errors.New("ingestion.batch_size must be positive")
	}
	if c.Ingestion.HashChunkMiB <= 0 {
		return errors.New("ingestion.hash_chunk_mib must be positive")
	}
	if c.Ingestion.Workers < 0 {
		return errors.New("ingestion.workers must be >= 0")
	}
	if c.Archive.MaxDepth < 1 {
		return errors.New("archive.max_depth must be at least 1")
	}
	if c.Archive.TempSpaceMiB <= 0 {
		return errors.New("archive.temp_space_mib must be positive")
	}
	return nil
}

func (c *Config) validateMatching() error {
	if c.Matching.AutoLinkThreshold <= 0 || c.Matching.AutoLinkThreshold > 1 {
		return errors.New("matching.auto_link_threshold must be between 0 and 1")
	}
	if c.Matching.ReviewThreshold < 0 || c.Matching.ReviewThreshold > 1 {
		return errors.New("matching.review_threshold must be between 0 and 1")
	}
	if c.Matching.ReviewThreshold >= c.Matching.AutoLinkThreshold {
		return errors.New("matching.review_threshold must be below matching.auto_link_threshold")
	}
	return nil
}

func (c *Config) validateSelection() error {
	if len(c.Selection) == 0 {
		return errors.New("at least one [[selection]] policy must be configured")
	}
	seen := make(map[string]struct{}, len(c.Selection))
	for i, policy := range c.Selection {
		name := strings.ToLower(strings.TrimSpace(policy.Name))
		if name == "" {
			return fmt.Errorf("selection policy %d: name must be set", i+1)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("selection policy %q configured more than once", policy.Name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
