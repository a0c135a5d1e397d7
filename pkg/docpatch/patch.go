// Package docpatch maintains a marker delimited skills section inside
// agent documentation files such as CLAUDE.md. The patcher only
// understands the markers; everything else in the file is left as is.
package docpatch

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

// Section markers.
const (
	StartMarker = "<!-- doc-sync:skills-start -->"
	EndMarker   = "<!-- doc-sync:skills-end -->"
)

var sectionPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(StartMarker) + `.*?` + regexp.QuoteMeta(EndMarker))

// Status is the outcome of patching one file.
type Status string

const (
	// StatusUpdated means the file content changed.
	StatusUpdated Status = "updated"
	// StatusUnchanged means the section was already up to date.
	StatusUnchanged Status = "unchanged"
	// StatusNotModified means nothing applied: the file is missing, or an
	// empty fragment met a file without a section.
	StatusNotModified Status = "not-modified"
)

// Result describes a patch of one file.
type Result struct {
	Path   string
	Status Status
	// Diff is a unified diff of the change, set in dry-run mode.
	Diff string
}

// Wrap surrounds fragment with the section markers.
func Wrap(fragment string) string {
	return StartMarker + "\n" + fragment + "\n" + EndMarker
}

// HasSection reports whether content carries both markers.
func HasSection(content string) bool {
	return strings.Contains(content, StartMarker) && strings.Contains(content, EndMarker)
}

// Apply computes the new content of a document. A non-blank fragment
// replaces every existing section or is appended after a blank line. A
// blank fragment removes the section. The second result reports whether
// the fragment applied at all.
func Apply(content, fragment string) (string, bool) {
	if strings.TrimSpace(fragment) == "" {
		if !HasSection(content) {
			return content, false
		}
		return removeSection(content), true
	}

	wrapped := Wrap(fragment)
	if HasSection(content) {
		return sectionPattern.ReplaceAllLiteralString(content, wrapped), true
	}

	base := strings.TrimRight(content, " \t\r\n")
	if base == "" {
		return wrapped + "\n", true
	}
	return base + "\n\n" + wrapped + "\n", true
}

func removeSection(content string) string {
	for {
		loc := sectionPattern.FindStringIndex(content)
		if loc == nil {
			return content
		}
		before := strings.TrimRight(content[:loc[0]], " \t\r\n")
		after := strings.TrimLeft(content[loc[1]:], "\r\n")

		switch {
		case strings.TrimSpace(after) == "":
			if before == "" {
				return ""
			}
			content = before + "\n"
		case before == "":
			content = after
		default:
			content = before + "\n\n" + after
		}
	}
}

// Patcher writes skill sections into documentation files.
type Patcher struct {
	dryRun bool
}

// PatcherOption configures a Patcher
type PatcherOption func(*Patcher)

// WithDryRun computes diffs without writing.
func WithDryRun(dryRun bool) PatcherOption {
	return func(p *Patcher) {
		p.dryRun = dryRun
	}
}

// NewPatcher creates a patcher.
func NewPatcher(opts ...PatcherOption) *Patcher {
	p := &Patcher{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DryRun reports whether the patcher leaves files untouched.
func (p *Patcher) DryRun() bool {
	return p.dryRun
}

var errUnchanged = errors.New("content unchanged")

// Patch applies fragment to the file at path. Missing files are never
// created. The file is rewritten under a lock only when its content
// changes.
func (p *Patcher) Patch(ctx context.Context, path, fragment string) (Result, error) {
	result := Result{Path: path, Status: StatusNotModified}
	log := logger.G(ctx).WithField("file", path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("documentation file missing, skipping")
			return result, nil
		}
		return result, errors.Wrapf(err, "failed to stat %s", path)
	}
	if info.IsDir() {
		return result, errors.Errorf("%s is a directory", path)
	}

	if p.dryRun {
		data, err := os.ReadFile(path)
		if err != nil {
			return result, errors.Wrapf(err, "failed to read %s", path)
		}
		updated, applied := Apply(string(data), fragment)
		result.Status = status(string(data), updated, applied)
		if result.Status == StatusUpdated {
			result.Diff = udiff.Unified(path, path, string(data), updated)
		}
		return result, nil
	}

	err = lockedfile.Transform(path, func(data []byte) ([]byte, error) {
		updated, applied := Apply(string(data), fragment)
		result.Status = status(string(data), updated, applied)
		if result.Status != StatusUpdated {
			return nil, errUnchanged
		}
		return []byte(updated), nil
	})
	if err != nil && !errors.Is(err, errUnchanged) {
		return Result{Path: path, Status: StatusNotModified}, errors.Wrapf(err, "failed to patch %s", path)
	}

	log.WithField("status", result.Status).Debug("patched documentation file")
	return result, nil
}

func status(before, after string, applied bool) Status {
	switch {
	case !applied:
		return StatusNotModified
	case before == after:
		return StatusUnchanged
	default:
		return StatusUpdated
	}
}
