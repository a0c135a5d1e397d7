package techdetect

import (
	"context"
	"io/fs"
	"path/filepath"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultMinConfidence is the confidence a subdirectory technology needs
// to be reported by a tree detection.
const DefaultMinConfidence = 0.3

// DirDetection holds the technologies detected for one directory.
type DirDetection struct {
	Path  string         // absolute path
	Rel   string         // "/" for the root, "/sub/dir" otherwise
	Techs []DetectedTech // sorted by confidence
}

// IsRoot reports whether the detection is for the tree root.
func (d DirDetection) IsRoot() bool {
	return d.Rel == "/"
}

// Tree is the result of a tree detection. Dirs[0] is always the root.
type Tree struct {
	Root string
	Dirs []DirDetection
}

// RootTechs returns the recursive detection of the root directory.
func (t *Tree) RootTechs() []DetectedTech {
	if len(t.Dirs) == 0 {
		return nil
	}
	return t.Dirs[0].Techs
}

// Subdirs returns every reported directory except the root.
func (t *Tree) Subdirs() []DirDetection {
	if len(t.Dirs) < 2 {
		return nil
	}
	return t.Dirs[1:]
}

// Lookup returns the detection for a relative directory path.
func (t *Tree) Lookup(rel string) (DirDetection, bool) {
	for _, d := range t.Dirs {
		if d.Rel == rel {
			return d, true
		}
	}
	return DirDetection{}, false
}

// DetectTree detects the root recursively, then every subdirectory locally
// with the root's detections inherited. Subdirectories with no technology
// at or above minConfidence are omitted from the result but their children
// are still visited.
func (d *Detector) DetectTree(ctx context.Context, root string, minConfidence float64) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", root)
	}

	rootTechs, err := d.Detect(ctx, abs, ModeRecursive, nil)
	if err != nil {
		return nil, err
	}

	tree := &Tree{
		Root: abs,
		Dirs: []DirDetection{{Path: abs, Rel: "/", Techs: rootTechs}},
	}

	log := logger.G(ctx).WithField("root", abs)

	err = filepath.WalkDir(abs, func(p string, e fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if p == abs {
				return walkErr
			}
			log.WithError(walkErr).WithField("dir", p).Debug("skipping unreadable entry")
			if e != nil && e.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !e.IsDir() || p == abs {
			return nil
		}

		rel, relErr := filepath.Rel(abs, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.skip[e.Name()] || d.ignored(rel) {
			return filepath.SkipDir
		}

		techs, detectErr := d.Detect(ctx, p, ModeLocal, rootTechs)
		if detectErr != nil {
			log.WithError(detectErr).WithField("dir", p).Debug("skipping directory")
			return nil
		}

		var kept []DetectedTech
		for _, t := range techs {
			if t.Confidence >= minConfidence {
				kept = append(kept, t)
			}
		}
		if len(kept) > 0 {
			tree.Dirs = append(tree.Dirs, DirDetection{Path: p, Rel: "/" + rel, Techs: kept})
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", abs)
	}

	log.WithField("dirs", len(tree.Dirs)).Debug("tree detection complete")
	return tree, nil
}
