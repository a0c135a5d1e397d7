package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/docsync/pkg/docpatch"
	"github.com/jingkaihe/docsync/pkg/history"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/promotion"
	"github.com/jingkaihe/docsync/pkg/render"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// SyncOptions tune a tree sync.
type SyncOptions struct {
	// DryRun computes diffs without writing any file.
	DryRun bool
	// ReportOnly skips the agent files entirely.
	ReportOnly bool
}

// SyncResult is the outcome of a tree sync.
type SyncResult struct {
	Root      string
	Promotion *promotion.Result
	Report    *render.SyncReport
	// Diffs maps agent files to their unified diff in dry-run mode.
	Diffs map[string]string
	// RunID identifies the recorded history entry, if any.
	RunID string
}

// Sync detects the tree under root, distributes skills between the root
// and its subdirectories and patches every agent file. Write failures of
// individual files do not stop the sync; they are returned together with
// the result.
func (p *Pipeline) Sync(ctx context.Context, root string, opts SyncOptions) (*SyncResult, error) {
	started := time.Now()

	tree, err := p.DetectTree(ctx, root)
	if err != nil {
		return nil, err
	}

	catalog := skills.LoadProject(ctx, tree.Root, p.cfg.Skills)
	engine := promotion.NewEngine(p.matcher,
		promotion.WithThreshold(p.cfg.Promotion.Threshold),
		promotion.WithMaxPerDir(p.cfg.Matching.DirMaxSkills),
		promotion.WithMinRelevance(p.cfg.Matching.MinRelevance),
	)

	var promoted *promotion.Result
	telemetry.WithSpanFunc(ctx, "pipeline.promote", func(ctx context.Context) {
		promoted = engine.Run(ctx, tree, catalog)
		telemetry.SetAttributes(ctx,
			attribute.Int("docsync.subdirs", promoted.Subdirs),
			attribute.StringSlice("docsync.promoted", promoted.Promoted),
		)
	}, attribute.Int("docsync.catalog", len(catalog)))

	result := &SyncResult{
		Root:      tree.Root,
		Promotion: promoted,
		Report:    render.NewSyncReport(promoted),
		Diffs:     map[string]string{},
	}
	result.Report.DryRun = opts.DryRun

	if opts.ReportOnly {
		return result, nil
	}

	var merr *multierror.Error
	err = telemetry.WithSpan(ctx, "pipeline.patch", func(ctx context.Context) error {
		merr = p.patchAll(ctx, result, opts.DryRun)
		return merr.ErrorOrNil()
	}, attribute.Bool("docsync.dry_run", opts.DryRun))

	p.record(ctx, result, started)
	return result, err
}

// patchAll applies each directory's block to its agent file. Directories
// with skills are patched with their block; directories whose block is
// empty have a stale section removed.
func (p *Pipeline) patchAll(ctx context.Context, result *SyncResult, dryRun bool) *multierror.Error {
	var merr *multierror.Error
	patcher := docpatch.NewPatcher(docpatch.WithDryRun(dryRun))
	report := result.Report

	for _, dir := range result.Promotion.Dirs {
		entry := report.Directories[dir.Rel]
		if len(dir.Skills) == 0 && entry.Markdown != "" {
			continue
		}

		path := p.agentFiles.Resolve(dir.Path)
		rel := relPath(result.Root, path)
		entry.AgentFile = rel

		patch, err := patcher.Patch(ctx, path, entry.Markdown)
		if err != nil {
			logger.G(ctx).WithError(err).WithField("file", rel).Warn("failed to update agent file")
			telemetry.RecordError(ctx, err)
			merr = multierror.Append(merr, err)
			report.Failed = append(report.Failed, rel)
			entry.Status = "failed"
			report.Directories[dir.Rel] = entry
			continue
		}

		entry.Status = string(patch.Status)
		report.Directories[dir.Rel] = entry

		switch patch.Status {
		case docpatch.StatusUpdated:
			telemetry.AddEvent(ctx, "agent_file.updated", attribute.String("docsync.file", rel))
			report.Updated = append(report.Updated, rel)
			if patch.Diff != "" {
				result.Diffs[rel] = patch.Diff
			}
		case docpatch.StatusUnchanged:
			report.Unchanged = append(report.Unchanged, rel)
		}
	}
	return merr
}

// record stores the sync in history. Failures are logged only.
func (p *Pipeline) record(ctx context.Context, result *SyncResult, started time.Time) {
	if p.history == nil {
		return
	}

	report := result.Report
	run := &history.Run{
		Root:       result.Root,
		DryRun:     report.DryRun,
		Threshold:  result.Promotion.Threshold,
		Promoted:   result.Promotion.Promoted,
		Updated:    len(report.Updated),
		Unchanged:  len(report.Unchanged),
		Failed:     len(report.Failed),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}
	for _, dir := range result.Promotion.Dirs {
		entry := report.Directories[dir.Rel]
		run.Dirs = append(run.Dirs, history.Directory{
			Rel:          dir.Rel,
			AgentFile:    entry.AgentFile,
			Status:       entry.Status,
			Technologies: entry.Technologies,
			Skills:       matcher.Names(dir.Skills),
		})
	}

	if err := p.history.Record(ctx, run); err != nil {
		logger.G(ctx).WithError(errors.Cause(err)).Warn("failed to record sync history")
		return
	}
	result.RunID = run.ID
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
