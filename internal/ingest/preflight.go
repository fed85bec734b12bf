package ingest

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"romcurator/internal/catalog"
	"romcurator/internal/config"
	"romcurator/internal/faults"
)

// estimateThroughput is the assumed hashing rate used for the duration
// estimate. Deliberately conservative for spinning disks.
const estimateThroughput = 100 << 20 // bytes per second

// Summary is the pre-run validation report: what is mounted, how much temp
// space is free, and how much staged work the run will face.
type Summary struct {
	RootsConfigured   int           `json:"roots_configured"`
	RootsMounted      int           `json:"roots_mounted"`
	TempFreeBytes     uint64        `json:"temp_free_bytes"`
	PendingFiles      int           `json:"pending_files"`
	PendingBytes      int64         `json:"pending_bytes"`
	PendingContainers int           `json:"pending_containers"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
}

// Preflight verifies that a run can start: the catalog answers, at least one
// library root is mounted, and the temp directory accepts writes. It fails
// fast on configuration problems instead of half-running, and returns a
// summary of the backlog the run is about to face.
func Preflight(ctx context.Context, cfg *config.Config, store *catalog.Store) (*Summary, error) {
	summary := &Summary{RootsConfigured: len(cfg.Library.Roots)}

	if len(cfg.Library.Roots) == 0 {
		return nil, faults.Wrap(faults.ErrConfiguration, "preflight", "check roots",
			"no library roots configured", nil)
	}

	if err := store.CheckHealth(ctx); err != nil {
		return nil, faults.Wrap(faults.ErrIntegrity, "preflight", "check catalog",
			"catalog database failed its health check", err)
	}

	for _, root := range cfg.Library.Roots {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if info.IsDir() {
			summary.RootsMounted++
		}
	}
	if summary.RootsMounted == 0 {
		return nil, faults.Wrap(faults.ErrTransient, "preflight", "check roots",
			fmt.Sprintf("none of the %d configured roots is mounted", len(cfg.Library.Roots)), nil)
	}

	probe, err := os.CreateTemp(cfg.Paths.TempDir, "preflight-*")
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "preflight", "check temp dir",
			fmt.Sprintf("temp directory %q is not writable", cfg.Paths.TempDir), err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	var fs unix.Statfs_t
	if err := unix.Statfs(cfg.Paths.TempDir, &fs); err == nil {
		summary.TempFreeBytes = fs.Bavail * uint64(fs.Bsize)
	}

	pendingFiles, pendingBytes, err := store.PendingWork(ctx)
	if err != nil {
		return nil, err
	}
	summary.PendingFiles = pendingFiles
	summary.PendingBytes = pendingBytes

	containers, err := store.ContainersToExpand(ctx)
	if err != nil {
		return nil, err
	}
	summary.PendingContainers = len(containers)

	if pendingBytes > 0 {
		summary.EstimatedDuration = time.Duration(pendingBytes/estimateThroughput+1) * time.Second
	}

	return summary, nil
}
