// Package pipeline wires detection, matching, promotion, rendering and
// document patching into the flows exposed by the CLI and the MCP server.
package pipeline

import (
	"context"
	"path/filepath"

	"github.com/jingkaihe/docsync/pkg/catalogfile"
	"github.com/jingkaihe/docsync/pkg/config"
	"github.com/jingkaihe/docsync/pkg/docpatch"
	"github.com/jingkaihe/docsync/pkg/history"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/jingkaihe/docsync/pkg/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// Pipeline runs docsync flows with one resolved configuration.
type Pipeline struct {
	cfg        config.Config
	catalog    *techdetect.Catalog
	rules      *matcher.Rules
	detector   *techdetect.Detector
	matcher    *matcher.Matcher
	searcher   skills.Searcher
	history    *history.Store
	agentFiles docpatch.AgentFiles
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithSearcher sets the ecosystem searcher used by Match. Without one the
// ecosystem is never queried.
func WithSearcher(s skills.Searcher) Option {
	return func(p *Pipeline) {
		p.searcher = s
	}
}

// WithHistory records every sync that touches files in store.
func WithHistory(store *history.Store) Option {
	return func(p *Pipeline) {
		p.history = store
	}
}

// New resolves the catalog and rules of cfg and builds a pipeline.
func New(cfg config.Config, opts ...Option) (*Pipeline, error) {
	catalog, rules, err := catalogfile.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	detectorOpts := []techdetect.Option{techdetect.WithIgnorePatterns(cfg.Detection.Ignore...)}
	if len(cfg.Detection.SkipDirs) > 0 {
		detectorOpts = append(detectorOpts, techdetect.WithSkipDirs(cfg.Detection.SkipDirs...))
	}
	detector, err := techdetect.NewDetector(catalog, detectorOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create detector")
	}

	p := &Pipeline{
		cfg:      cfg,
		catalog:  catalog,
		rules:    rules,
		detector: detector,
		matcher:  matcher.New(rules),
		agentFiles: docpatch.AgentFiles{
			Primary: cfg.Docs.PrimaryFile,
			Alias:   cfg.Docs.AliasFile,
		},
	}
	if p.agentFiles.Primary == "" {
		p.agentFiles = docpatch.DefaultAgentFiles()
	}

	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the configuration the pipeline was built with.
func (p *Pipeline) Config() config.Config {
	return p.cfg
}

// Rules returns the resolved matching rules.
func (p *Pipeline) Rules() *matcher.Rules {
	return p.rules
}

// Catalog returns the resolved signature catalog.
func (p *Pipeline) Catalog() *techdetect.Catalog {
	return p.catalog
}

// Detect detects the technologies of dir, recursively unless local is set.
func (p *Pipeline) Detect(ctx context.Context, dir string, local bool) ([]techdetect.DetectedTech, error) {
	mode := techdetect.ModeRecursive
	if local {
		mode = techdetect.ModeLocal
	}

	var techs []techdetect.DetectedTech
	err := telemetry.WithSpan(ctx, "pipeline.detect", func(ctx context.Context) error {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s", dir)
		}
		techs, err = p.detector.Detect(ctx, abs, mode, nil)
		if err != nil {
			return err
		}
		telemetry.SetAttributes(ctx, attribute.Int("docsync.technologies", len(techs)))
		return nil
	}, attribute.String("docsync.dir", dir), attribute.String("docsync.mode", mode.String()))
	return techs, err
}

// DetectTree detects root and its subdirectories.
func (p *Pipeline) DetectTree(ctx context.Context, root string) (*techdetect.Tree, error) {
	var tree *techdetect.Tree
	err := telemetry.WithSpan(ctx, "pipeline.detect_tree", func(ctx context.Context) error {
		var err error
		tree, err = p.detector.DetectTree(ctx, root, p.cfg.Detection.MinConfidence)
		if err != nil {
			return err
		}
		telemetry.SetAttributes(ctx, attribute.Int("docsync.directories", len(tree.Dirs)))
		return nil
	}, attribute.String("docsync.root", root))
	return tree, err
}
