package pipeline

import (
	"context"
	"path/filepath"

	"github.com/jingkaihe/docsync/pkg/docpatch"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/render"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/jingkaihe/docsync/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// MatchOptions tune a single directory match.
type MatchOptions struct {
	Scope         skills.Scope
	MaxSkills     int
	Compact       bool
	SkipEcosystem bool
	// Update patches the directory's agent file with the rendered block.
	Update bool
	DryRun bool
}

// MatchResult is the outcome of a single directory match.
type MatchResult struct {
	Dir       string
	Techs     []techdetect.DetectedTech
	Ecosystem int
	Matches   []matcher.Match
	Markdown  string
	Patch     *docpatch.Result
}

// Match detects the technologies of dir, gathers its local skills plus
// ecosystem suggestions for the top technologies, and ranks them.
func (p *Pipeline) Match(ctx context.Context, dir string, opts MatchOptions) (*MatchResult, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", dir)
	}

	techs, err := p.Detect(ctx, abs, false)
	if err != nil {
		return nil, err
	}

	result := &MatchResult{Dir: abs, Techs: techs}
	catalog := skills.LoadProject(ctx, abs, p.cfg.Skills)

	if !opts.SkipEcosystem {
		eco := p.queryEcosystem(ctx, techs)
		result.Ecosystem = len(eco)
		catalog = append(catalog, eco...)
	}

	maxSkills := opts.MaxSkills
	if maxSkills <= 0 {
		maxSkills = p.cfg.Matching.MaxSkills
	}

	telemetry.WithSpanFunc(ctx, "pipeline.match", func(ctx context.Context) {
		result.Matches = p.matcher.Match(ctx, matcher.FromDetected(techs), catalog, matcher.Options{
			Scope:        opts.Scope,
			MaxSkills:    maxSkills,
			MinRelevance: p.cfg.Matching.MinRelevance,
		})
		telemetry.SetAttributes(ctx, attribute.Int("docsync.matches", len(result.Matches)))
	}, attribute.String("docsync.dir", abs), attribute.Int("docsync.catalog", len(catalog)))

	result.Markdown = render.Block(result.Matches, opts.Compact)

	if opts.Update && len(result.Matches) > 0 {
		patcher := docpatch.NewPatcher(docpatch.WithDryRun(opts.DryRun))
		patch, err := patcher.Patch(ctx, p.agentFiles.Resolve(abs), result.Markdown)
		if err != nil {
			return result, err
		}
		result.Patch = &patch
	}
	return result, nil
}

// queryEcosystem asks the registry about the top detected technologies.
func (p *Pipeline) queryEcosystem(ctx context.Context, techs []techdetect.DetectedTech) []skills.Skill {
	if p.searcher == nil || !p.cfg.Ecosystem.Enabled {
		return nil
	}

	terms := make([]string, 0, p.cfg.Ecosystem.Terms)
	for _, t := range techs {
		if len(terms) == p.cfg.Ecosystem.Terms {
			break
		}
		terms = append(terms, t.Name)
	}

	var found []skills.Skill
	telemetry.WithSpanFunc(ctx, "pipeline.ecosystem", func(ctx context.Context) {
		found = skills.QueryAll(ctx, p.searcher, terms, p.cfg.Ecosystem.Limit)
		telemetry.SetAttributes(ctx, attribute.Int("docsync.ecosystem_skills", len(found)))
	}, attribute.StringSlice("docsync.terms", terms))

	logger.G(ctx).WithField("terms", terms).WithField("count", len(found)).Debug("queried ecosystem")
	return found
}
