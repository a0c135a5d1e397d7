package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

const skillFileName = "SKILL.md"

// ProjectSkillsDir is the project-relative directory scanned for skills.
const ProjectSkillsDir = ".claude/skills"

// Discovery handles skill discovery from configured directories
type Discovery struct {
	skillDirs []string
}

// Option is a function that configures a Discovery
type Option func(*Discovery) error

// WithSkillDirs sets custom skill directories. Earlier directories take
// precedence when two skills share a name.
func WithSkillDirs(dirs ...string) Option {
	return func(d *Discovery) error {
		d.skillDirs = append(d.skillDirs, dirs...)
		return nil
	}
}

// WithProjectDirs adds skill directories relative to a project root.
func WithProjectDirs(root string, rels ...string) Option {
	return func(d *Discovery) error {
		if len(rels) == 0 {
			rels = []string{ProjectSkillsDir}
		}
		for _, rel := range rels {
			d.skillDirs = append(d.skillDirs, filepath.Join(root, filepath.FromSlash(rel)))
		}
		return nil
	}
}

// NewDiscovery creates a new skill discovery instance. Without options it
// scans the project skills of the working directory.
func NewDiscovery(opts ...Option) (*Discovery, error) {
	d := &Discovery{}

	if len(opts) == 0 {
		opts = []Option{WithProjectDirs(".")}
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Dirs returns the scanned directories in precedence order.
func (d *Discovery) Dirs() []string {
	return d.skillDirs
}

// DiscoverSkills finds all available skills from configured directories
func (d *Discovery) DiscoverSkills() (map[string]*Skill, error) {
	skills := make(map[string]*Skill)

	for _, dir := range d.skillDirs {
		d.discoverSkillsFromDir(dir, skills)
	}

	return skills, nil
}

// List returns the discovered skills sorted by name.
func (d *Discovery) List() ([]Skill, error) {
	found, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	out := make([]Skill, 0, len(found))
	for _, s := range found {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (d *Discovery) discoverSkillsFromDir(dir string, skills map[string]*Skill) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		entryPath := filepath.Join(dir, entry.Name())

		// Stat follows symlinks so linked skill directories are found.
		info, err := os.Stat(entryPath)
		if err != nil || !info.IsDir() {
			continue
		}

		skill, err := loadSkill(filepath.Join(entryPath, skillFileName))
		if err != nil {
			continue
		}

		if _, exists := skills[skill.Name]; !exists {
			skill.Directory = entryPath
			skills[skill.Name] = skill
		}
	}
}

// GetSkill returns a specific skill by name
func (d *Discovery) GetSkill(name string) (*Skill, error) {
	skills, err := d.DiscoverSkills()
	if err != nil {
		return nil, err
	}

	skill, exists := skills[name]
	if !exists {
		return nil, errors.Errorf("skill '%s' not found", name)
	}

	return skill, nil
}

// loadSkill loads a single skill from its SKILL.md file
func loadSkill(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read skill file")
	}

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()

	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrap(err, "failed to parse markdown")
	}

	metaData := meta.Get(pctx)
	if metaData == nil {
		return nil, errors.New("missing frontmatter")
	}

	var m Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &m,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create frontmatter decoder")
	}
	if err := decoder.Decode(metaData); err != nil {
		return nil, errors.Wrap(err, "failed to decode frontmatter")
	}

	name := strings.TrimSpace(m.Name)
	if name == "" {
		return nil, errors.New("skill name is required in frontmatter")
	}

	// Unknown scopes fall back to the unspecified scope.
	scope, _ := ParseScope(strings.TrimSpace(m.Scope))

	return &Skill{
		Name:        name,
		Description: strings.Join(strings.Fields(m.Description), " "),
		Scope:       scope,
		Source:      SourceLocal,
		Install:     strings.TrimSpace(m.Install),
	}, nil
}

// FilterByAllowlist filters skills by an allowlist of names
// If the allowlist is empty, all skills are returned
func FilterByAllowlist(skills []Skill, allowed []string) []Skill {
	if len(allowed) == 0 {
		return skills
	}

	keep := make(map[string]bool, len(allowed))
	for _, name := range allowed {
		keep[name] = true
	}

	filtered := make([]Skill, 0, len(skills))
	for _, s := range skills {
		if keep[s.Name] {
			filtered = append(filtered, s)
		}
	}
	return filtered
}
