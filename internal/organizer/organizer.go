package organizer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"romcurator/internal/catalog"
	"romcurator/internal/faults"
	"romcurator/internal/logging"
	"romcurator/internal/titlenorm"
)

// Options configure where and how files are laid out.
type Options struct {
	DestinationDir string
	QuarantineDir  string
	// PathTemplate renders the destination path relative to DestinationDir.
	// Fields: Platform, Title, Region, Version, Ext.
	PathTemplate string
	Overwrite    bool
}

// Action says what the plan intends for one entry.
type Action string

const (
	ActionMove     Action = "move"
	ActionSkip     Action = "skip"
	ActionConflict Action = "conflict"
)

// PlanEntry is one planned placement. SHA1 identifies the content being
// moved so the operation log can prove what traveled.
type PlanEntry struct {
	InstanceID int64
	GameID     int64
	ReleaseID  int64
	SourcePath string
	DestPath   string
	SHA1       string
	Action     Action
	Reason     string
}

// Stats summarizes an apply pass.
type Stats struct {
	Planned     int
	Moved       int
	CrossDevice int
	Skipped     int
	Conflicts   int
}

// templateData is the render context for one destination path.
type templateData struct {
	Platform string
	Title    string
	Region   string
	Version  string
	Ext      string
}

// Organizer lays a frozen selection set out under the destination directory.
type Organizer struct {
	store  *catalog.Store
	logger *slog.Logger
	opts   Options
	tmpl   *template.Template
}

func New(store *catalog.Store, logger *slog.Logger, opts Options) (*Organizer, error) {
	if strings.TrimSpace(opts.DestinationDir) == "" {
		return nil, faults.Wrap(faults.ErrConfiguration, "organize", "configure",
			"destination directory is not set", nil)
	}
	tmpl, err := template.New("destination").Parse(opts.PathTemplate)
	if err != nil {
		return nil, faults.Wrap(faults.ErrConfiguration, "organize", "configure",
			fmt.Sprintf("path template %q does not parse", opts.PathTemplate), err)
	}
	return &Organizer{
		store:  store,
		logger: logging.NewComponentLogger(logger, "organizer"),
		opts:   opts,
		tmpl:   tmpl,
	}, nil
}

// Plan computes, without touching the filesystem, where every entry of a
// selection set would land.
func (o *Organizer) Plan(ctx context.Context, setID string) ([]PlanEntry, error) {
	entries, err := o.store.SelectionEntries(ctx, setID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		set, err := o.store.SelectionSetByID(ctx, setID)
		if err != nil {
			return nil, err
		}
		if set == nil {
			return nil, faults.Wrap(faults.ErrNotFound, "organize", "plan",
				fmt.Sprintf("selection set %s not found", setID), nil)
		}
	}

	roots, err := o.rootPaths(ctx)
	if err != nil {
		return nil, err
	}
	platforms, err := o.platformNames(ctx)
	if err != nil {
		return nil, err
	}

	var plan []PlanEntry
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		planned, err := o.planEntry(ctx, entry, roots, platforms)
		if err != nil {
			return nil, err
		}
		plan = append(plan, planned)
	}
	return plan, nil
}

func (o *Organizer) planEntry(ctx context.Context, entry *catalog.SelectionEntry, roots map[int64]string, platforms map[int64]string) (PlanEntry, error) {
	planned := PlanEntry{
		InstanceID: entry.InstanceID,
		GameID:     entry.GameID,
		ReleaseID:  entry.ReleaseID,
	}

	instance, err := o.store.InstanceByID(ctx, entry.InstanceID)
	if err != nil {
		return planned, err
	}
	if instance == nil || instance.Status != catalog.InstancePresent {
		planned.Action = ActionSkip
		planned.Reason = "instance is no longer present"
		return planned, nil
	}
	rootPath, ok := roots[instance.RootID]
	if !ok {
		planned.Action = ActionSkip
		planned.Reason = fmt.Sprintf("library root %d unknown", instance.RootID)
		return planned, nil
	}
	planned.SourcePath = filepath.Join(rootPath, filepath.FromSlash(instance.RelativePath))

	if file, err := o.store.FileByID(ctx, instance.FileID); err != nil {
		return planned, err
	} else if file != nil {
		planned.SHA1 = file.SHA1
	}

	game, err := o.store.GameByID(ctx, entry.GameID)
	if err != nil {
		return planned, err
	}
	release, err := o.store.ReleaseByID(ctx, entry.ReleaseID)
	if err != nil {
		return planned, err
	}
	if game == nil || release == nil {
		planned.Action = ActionSkip
		planned.Reason = "game or release vanished from the catalog"
		return planned, nil
	}

	relDest, err := o.renderPath(templateData{
		Platform: titlenorm.SanitizeFileName(platforms[game.PlatformID]),
		Title:    titlenorm.SanitizeFileName(game.Title),
		Region:   titlenorm.SanitizeFileName(release.Region),
		Version:  titlenorm.SanitizeFileName(release.Version),
		Ext:      filepath.Ext(instance.RelativePath),
	})
	if err != nil {
		return planned, err
	}
	planned.DestPath = filepath.Join(o.opts.DestinationDir, filepath.FromSlash(relDest))

	if planned.DestPath == planned.SourcePath {
		planned.Action = ActionSkip
		planned.Reason = "already organized"
		return planned, nil
	}
	if _, err := os.Stat(planned.DestPath); err == nil && !o.opts.Overwrite {
		planned.Action = ActionConflict
		planned.Reason = "destination exists"
		return planned, nil
	}
	planned.Action = ActionMove
	return planned, nil
}

func (o *Organizer) renderPath(data templateData) (string, error) {
	var sb strings.Builder
	if err := o.tmpl.Execute(&sb, data); err != nil {
		return "", faults.Wrap(faults.ErrConfiguration, "organize", "render path",
			"path template failed to render", err)
	}
	rendered := strings.TrimSpace(sb.String())
	if rendered == "" || strings.Contains(rendered, "..") {
		return "", faults.Wrap(faults.ErrConfiguration, "organize", "render path",
			fmt.Sprintf("path template produced unusable path %q", rendered), nil)
	}
	return rendered, nil
}

// Apply executes the plan for a selection set. Every move lands in the
// operation log before the instance row is updated, so a crash between the
// two leaves an auditable trail rather than a silent divergence.
func (o *Organizer) Apply(ctx context.Context, setID, runID string) (Stats, error) {
	var stats Stats

	plan, err := o.Plan(ctx, setID)
	if err != nil {
		return stats, err
	}
	destRootID, err := o.store.EnsureRoot(ctx, o.opts.DestinationDir, "organized")
	if err != nil {
		return stats, err
	}

	for _, entry := range plan {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Planned++
		switch entry.Action {
		case ActionSkip:
			stats.Skipped++
			continue
		case ActionConflict:
			stats.Conflicts++
			o.logger.Warn("destination occupied",
				slog.String("source", entry.SourcePath),
				slog.String("dest", entry.DestPath))
			continue
		}

		crossed, err := moveFile(entry.SourcePath, entry.DestPath)
		if err != nil {
			return stats, faults.Wrap(faults.ErrTransient, "organize", "move file",
				fmt.Sprintf("move %s", entry.SourcePath), err)
		}
		detail := ""
		if crossed {
			stats.CrossDevice++
			detail = "cross-device copy"
		}
		if _, err := o.store.AppendOperation(ctx, catalog.Operation{
			RunID:      runID,
			Kind:       catalog.OpMove,
			InstanceID: entry.InstanceID,
			SourcePath: entry.SourcePath,
			DestPath:   entry.DestPath,
			SHA1:       entry.SHA1,
			Detail:     detail,
		}); err != nil {
			return stats, err
		}
		relDest, err := filepath.Rel(o.opts.DestinationDir, entry.DestPath)
		if err != nil {
			return stats, err
		}
		if err := o.store.MoveInstance(ctx, entry.InstanceID, destRootID, filepath.ToSlash(relDest)); err != nil {
			return stats, err
		}
		stats.Moved++
		o.logger.Info("organized",
			slog.String("source", entry.SourcePath),
			slog.String("dest", entry.DestPath))
	}
	return stats, nil
}

func (o *Organizer) rootPaths(ctx context.Context) (map[int64]string, error) {
	roots, err := o.store.Roots(ctx)
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string, len(roots))
	for _, root := range roots {
		paths[root.ID] = root.Path
	}
	return paths, nil
}

func (o *Organizer) platformNames(ctx context.Context) (map[int64]string, error) {
	platforms, err := o.store.Platforms(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[int64]string, len(platforms))
	for _, platform := range platforms {
		names[platform.ID] = platform.Name
	}
	return names, nil
}
