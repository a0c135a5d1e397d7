package techdetect

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gobwas/glob"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/pkg/errors"
)

// Mode selects how much of the file tree a detection pass looks at.
type Mode int

const (
	// ModeRecursive scans the whole subtree below the directory.
	ModeRecursive Mode = iota
	// ModeLocal scans only the direct children of the directory.
	ModeLocal
)

func (m Mode) String() string {
	if m == ModeLocal {
		return "local"
	}
	return "recursive"
}

// InheritedEvidence is the evidence line attached to detections seeded
// from a parent pass.
const InheritedEvidence = "inherited from root"

// DetectedTech is a technology found in a directory.
type DetectedTech struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

// Limits holds the scoring weights and resource caps of a detection pass.
type Limits struct {
	FileWeight      float64 // added per matched file pattern hit
	ContentWeight   float64 // added per file whose content matched
	InheritFactor   float64 // multiplier applied to inherited confidence
	MaxFileMatches  int     // file pattern hits counted per pattern
	MaxContentFiles int     // candidate files read per content glob
	MaxEvidence     int     // evidence lines kept per technology
	MaxFileSize     int64   // files above this size are never read
}

// DefaultLimits returns the standard weights and caps.
func DefaultLimits() Limits {
	return Limits{
		FileWeight:      0.3,
		ContentWeight:   0.4,
		InheritFactor:   0.3,
		MaxFileMatches:  5,
		MaxContentFiles: 10,
		MaxEvidence:     5,
		MaxFileSize:     1_000_000,
	}
}

// DefaultSkipDirs are directory names never descended into.
var DefaultSkipDirs = []string{
	".git", "node_modules", "__pycache__", ".venv", "venv",
	"target", "dist", "build", "vendor", ".idea", ".vscode",
}

// Detector runs signature catalogs against directories. A Detector is
// immutable once built and safe to share.
type Detector struct {
	catalog *Catalog
	limits  Limits
	skip    map[string]bool
	ignore  []glob.Glob
}

// Option configures a Detector
type Option func(*Detector) error

// WithLimits overrides the scoring weights and caps.
func WithLimits(l Limits) Option {
	return func(d *Detector) error {
		d.limits = l
		return nil
	}
}

// WithSkipDirs replaces the directory names that are never walked.
func WithSkipDirs(names ...string) Option {
	return func(d *Detector) error {
		d.skip = make(map[string]bool, len(names))
		for _, n := range names {
			d.skip[n] = true
		}
		return nil
	}
}

// WithIgnorePatterns adds glob patterns (matched against slash-separated
// paths relative to the scanned root, and against base names) for
// entries that are excluded from the walk.
func WithIgnorePatterns(patterns ...string) Option {
	return func(d *Detector) error {
		for _, p := range patterns {
			g, err := glob.Compile(p, '/')
			if err != nil {
				return errors.Wrapf(err, "invalid ignore pattern %q", p)
			}
			d.ignore = append(d.ignore, g)
		}
		return nil
	}
}

// NewDetector creates a detector for the given catalog.
func NewDetector(catalog *Catalog, opts ...Option) (*Detector, error) {
	if catalog == nil {
		catalog = DefaultCatalog()
	}

	d := &Detector{catalog: catalog, limits: DefaultLimits()}
	if err := WithSkipDirs(DefaultSkipDirs...)(d); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Catalog returns the detector's signature catalog.
func (d *Detector) Catalog() *Catalog {
	return d.catalog
}

// Detect scans dir and returns the technologies found, sorted by
// confidence. Inherited detections seed the result at a reduced
// confidence. Unreadable or oversized files are treated as no evidence;
// only a missing or non-directory dir is reported as an error.
func (d *Detector) Detect(ctx context.Context, dir string, mode Mode, inherited []DetectedTech) ([]DetectedTech, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", dir)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", dir)
	}

	var idx *fileIndex
	if mode == ModeLocal {
		idx = d.indexLocal(dir)
	} else {
		idx = d.indexTree(ctx, dir)
	}

	acc := newAccumulator(d.limits.MaxEvidence)
	for _, t := range inherited {
		acc.seed(DetectedTech{
			Name:       t.Name,
			Category:   t.Category,
			Confidence: clamp(t.Confidence * d.limits.InheritFactor),
			Evidence:   []string{InheritedEvidence},
		})
	}

	for i := range d.catalog.sigs {
		sig := &d.catalog.sigs[i]
		confidence, evidence := d.score(dir, idx, mode, sig)
		if len(evidence) == 0 {
			continue
		}
		acc.merge(DetectedTech{
			Name:       sig.Name,
			Category:   sig.Category,
			Confidence: clamp(confidence + sig.Boost),
			Evidence:   evidence,
		})
	}

	result := acc.sorted()

	logger.G(ctx).WithField("dir", dir).
		WithField("mode", mode.String()).
		WithField("count", len(result)).
		Debug("detected technologies")

	return result, nil
}

func (d *Detector) score(dir string, idx *fileIndex, mode Mode, sig *compiledSignature) (float64, []string) {
	var (
		confidence float64
		evidence   []string
	)

	for _, pattern := range sig.Files {
		for _, rel := range d.matchFiles(dir, idx, mode, pattern) {
			evidence = append(evidence, "file: "+rel)
			confidence += d.limits.FileWeight
		}
	}

	for _, cr := range sig.content {
		for _, rel := range d.contentCandidates(dir, idx, mode, cr.glob) {
			if re := d.firstMatch(filepath.Join(dir, filepath.FromSlash(rel)), cr); re != "" {
				evidence = append(evidence, fmt.Sprintf("pattern '%s' in %s", re, rel))
				confidence += d.limits.ContentWeight
			}
		}
	}

	return confidence, evidence
}

// matchFiles returns the slash-separated paths, relative to dir, of the
// entries matching a signature file pattern.
func (d *Detector) matchFiles(dir string, idx *fileIndex, mode Mode, pattern string) []string {
	if !hasMeta(pattern) {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(pattern))); err == nil {
			return []string{pattern}
		}
		return nil
	}

	if mode == ModeLocal && strings.Contains(pattern, "/") {
		return nil
	}

	return idx.match(pattern, d.limits.MaxFileMatches)
}

func (d *Detector) contentCandidates(dir string, idx *fileIndex, mode Mode, pattern string) []string {
	if !hasMeta(pattern) {
		info, err := os.Stat(filepath.Join(dir, filepath.FromSlash(pattern)))
		if err != nil || !info.Mode().IsRegular() {
			return nil
		}
		return []string{pattern}
	}

	if mode == ModeLocal && strings.Contains(pattern, "/") {
		return nil
	}

	return idx.match(pattern, d.limits.MaxContentFiles)
}

// firstMatch returns the source of the first regex matching the file, or
// the empty string when none does or the file cannot be read.
func (d *Detector) firstMatch(file string, cr compiledContent) string {
	info, err := os.Stat(file)
	if err != nil || info.Size() > d.limits.MaxFileSize {
		return ""
	}

	data, err := os.ReadFile(file)
	if err != nil || isBinary(data) {
		return ""
	}

	for _, re := range cr.patterns {
		if re.Match(data) {
			return re.String()
		}
	}
	return ""
}

// isBinary reports whether data has a NUL byte in its first 512 bytes.
func isBinary(data []byte) bool {
	head := data[:min(len(data), 512)]
	return bytes.IndexByte(head, 0) >= 0
}

// fileIndex lists the regular files visible to one detection pass, as
// slash-separated paths relative to the scanned directory in lexical
// walk order.
type fileIndex struct {
	files []string
}

func (idx *fileIndex) match(pattern string, limit int) []string {
	var out []string
	byPath := strings.Contains(pattern, "/")

	for _, rel := range idx.files {
		if limit > 0 && len(out) >= limit {
			break
		}
		target := path.Base(rel)
		if byPath {
			target = rel
		}
		if ok, _ := doublestar.Match(pattern, target); ok {
			out = append(out, rel)
		}
	}
	return out
}

func (d *Detector) indexLocal(dir string) *fileIndex {
	idx := &fileIndex{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return idx
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || d.ignored(e.Name()) {
			continue
		}
		idx.files = append(idx.files, e.Name())
	}
	return idx
}

func (d *Detector) indexTree(ctx context.Context, root string) *fileIndex {
	idx := &fileIndex{}
	err := filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			if e != nil && e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if p == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if e.IsDir() {
			if d.skip[e.Name()] || d.ignored(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if e.Type().IsRegular() && !d.ignored(rel) {
			idx.files = append(idx.files, rel)
		}
		return nil
	})
	if err != nil {
		logger.G(ctx).WithError(err).WithField("dir", root).Debug("failed to walk directory")
	}
	return idx
}

// SkipDir reports whether a directory name is excluded from walks.
func (d *Detector) SkipDir(name string) bool {
	return d.skip[name]
}

func (d *Detector) ignored(rel string) bool {
	base := path.Base(rel)
	for _, g := range d.ignore {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

func hasMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[{")
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// accumulator collects detections for one pass, keyed by name and kept
// in insertion order.
type accumulator struct {
	maxEvidence int
	order       []string
	byName      map[string]*DetectedTech
}

func newAccumulator(maxEvidence int) *accumulator {
	return &accumulator{maxEvidence: maxEvidence, byName: make(map[string]*DetectedTech)}
}

func (a *accumulator) seed(t DetectedTech) {
	if _, ok := a.byName[t.Name]; ok {
		return
	}
	a.order = append(a.order, t.Name)
	a.byName[t.Name] = &t
}

func (a *accumulator) merge(t DetectedTech) {
	existing, ok := a.byName[t.Name]
	if !ok {
		t.Evidence = capStrings(t.Evidence, a.maxEvidence)
		a.order = append(a.order, t.Name)
		a.byName[t.Name] = &t
		return
	}

	existing.Category = t.Category
	existing.Confidence = clamp(existing.Confidence + t.Confidence)
	evidence := make([]string, 0, len(existing.Evidence)+len(t.Evidence))
	evidence = append(evidence, existing.Evidence...)
	evidence = append(evidence, t.Evidence...)
	existing.Evidence = capStrings(evidence, a.maxEvidence)
}

func (a *accumulator) sorted() []DetectedTech {
	out := make([]DetectedTech, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, *a.byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func capStrings(s []string, n int) []string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
