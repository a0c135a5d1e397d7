// Package promotion decides which skills are embedded at the project root
// and which stay local to a subdirectory. Frequency tallies over every
// subdirectory are complete before any promotion decision is taken.
package promotion

import (
	"context"
	"sort"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
)

// DefaultThreshold is the share of subdirectories a skill must appear in
// to be promoted to the root.
const DefaultThreshold = 0.8

// Dir is the final skill assignment of one directory.
type Dir struct {
	Rel    string
	Path   string
	Techs  []techdetect.DetectedTech
	Skills []matcher.Match
}

// IsRoot reports whether d is the project root.
func (d Dir) IsRoot() bool {
	return d.Rel == "/"
}

// Result is the outcome of promotion over a detected tree.
type Result struct {
	// Dirs holds the root first, then subdirectories in walk order.
	Dirs []Dir
	// Promoted names the promoted skills, sorted.
	Promoted []string
	// Counts records in how many subdirectories each skill matched.
	Counts map[string]int
	// Subdirs is the number of subdirectories considered.
	Subdirs   int
	Threshold float64
}

// Root returns the root assignment.
func (r *Result) Root() Dir {
	return r.Dirs[0]
}

// Frequency returns the share of subdirectories in which skill matched.
func (r *Result) Frequency(skill string) float64 {
	if r.Subdirs == 0 {
		return 0
	}
	return float64(r.Counts[skill]) / float64(r.Subdirs)
}

// IsPromoted reports whether skill was promoted to the root.
func (r *Result) IsPromoted(skill string) bool {
	i := sort.SearchStrings(r.Promoted, skill)
	return i < len(r.Promoted) && r.Promoted[i] == skill
}

// Engine runs the tally, promote and rebuild passes.
type Engine struct {
	matcher      *matcher.Matcher
	threshold    float64
	maxPerDir    int
	minRelevance float64
}

// Option configures an Engine
type Option func(*Engine)

// WithThreshold sets the promotion threshold.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithMaxPerDir bounds the matches computed per directory.
func WithMaxPerDir(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxPerDir = n
		}
	}
}

// WithMinRelevance sets the relevance floor of directory matches.
func WithMinRelevance(v float64) Option {
	return func(e *Engine) {
		e.minRelevance = v
	}
}

// NewEngine creates a promotion engine matching with m.
func NewEngine(m *matcher.Matcher, opts ...Option) *Engine {
	e := &Engine{
		matcher:      m,
		threshold:    DefaultThreshold,
		maxPerDir:    matcher.DefaultDirMaxSkills,
		minRelevance: matcher.DefaultMinRelevance,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) techOptions() matcher.Options {
	return matcher.Options{
		Scope:        skills.ScopeTechnology,
		MaxSkills:    e.maxPerDir,
		MinRelevance: e.minRelevance,
	}
}

// Run assigns local skills to every directory of tree.
func (e *Engine) Run(ctx context.Context, tree *techdetect.Tree, catalog []skills.Skill) *Result {
	log := logger.G(ctx)
	opts := e.techOptions()

	// Pass 1: tally technology matches across every subdirectory.
	subdirs := tree.Subdirs()
	matches := make([][]matcher.Match, len(subdirs))
	counts := make(map[string]int)
	for i, dir := range subdirs {
		matches[i] = e.matcher.Match(ctx, matcher.FromDetected(dir.Techs), catalog, opts)
		for _, m := range matches[i] {
			counts[m.Name]++
		}
	}
	project := e.matcher.ProjectMatches(catalog)

	// Pass 2: promote frequent skills, find root-only skills.
	promoted := Promote(counts, len(subdirs), e.threshold)
	promotedSet := make(map[string]bool, len(promoted))
	for _, name := range promoted {
		promotedSet[name] = true
		log.WithField("skill", name).
			WithField("count", counts[name]).
			Debug("promoting skill to root")
	}

	rootTech := e.matcher.Match(ctx, matcher.FromDetected(tree.RootTechs()), catalog, opts)
	orphans := make([]matcher.Match, 0, len(rootTech))
	for _, m := range rootTech {
		if counts[m.Name] == 0 {
			orphans = append(orphans, m)
		}
	}

	// Pass 3: rebuild.
	root := make([]matcher.Match, 0, len(project)+len(promoted)+len(orphans))
	root = append(root, project...)
	for _, name := range promoted {
		if m, ok := firstInstance(matches, name); ok {
			root = append(root, m)
		}
	}
	for _, m := range orphans {
		if !containsMatch(root, m.Name) {
			root = append(root, m)
		}
	}

	result := &Result{
		Dirs:      make([]Dir, 0, len(tree.Dirs)),
		Promoted:  promoted,
		Counts:    counts,
		Subdirs:   len(subdirs),
		Threshold: e.threshold,
	}
	rootDir := tree.Dirs[0]
	result.Dirs = append(result.Dirs, Dir{Rel: rootDir.Rel, Path: rootDir.Path, Techs: rootDir.Techs, Skills: root})

	for i, dir := range subdirs {
		own := make([]matcher.Match, 0, len(matches[i]))
		for _, m := range matches[i] {
			if !promotedSet[m.Name] {
				own = append(own, m)
			}
		}
		result.Dirs = append(result.Dirs, Dir{Rel: dir.Rel, Path: dir.Path, Techs: dir.Techs, Skills: own})
	}

	log.WithField("subdirs", len(subdirs)).
		WithField("promoted", len(promoted)).
		WithField("orphans", len(orphans)).
		Debug("promotion complete")
	return result
}

// Promote returns, sorted, the skills whose count divided by subdirs
// reaches threshold. Nothing is promoted when there are no subdirectories.
func Promote(counts map[string]int, subdirs int, threshold float64) []string {
	promoted := []string{}
	if subdirs == 0 {
		return promoted
	}
	for name, count := range counts {
		if float64(count)/float64(subdirs) >= threshold {
			promoted = append(promoted, name)
		}
	}
	sort.Strings(promoted)
	return promoted
}

func firstInstance(matches [][]matcher.Match, name string) (matcher.Match, bool) {
	for _, dir := range matches {
		for _, m := range dir {
			if m.Name == name {
				return m, true
			}
		}
	}
	return matcher.Match{}, false
}

func containsMatch(matches []matcher.Match, name string) bool {
	for _, m := range matches {
		if m.Name == name {
			return true
		}
	}
	return false
}
