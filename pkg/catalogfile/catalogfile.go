// Package catalogfile loads a YAML file that extends the built-in
// detection signatures and skill matching rules.
//
//	signatures:
//	  - name: qwik
//	    category: framework
//	    files: [qwik.config.js]
//	    content:
//	      - glob: package.json
//	        patterns: ['"qwik"\s*:']
//	rules:
//	  qwik:
//	    - pattern: qwik
//	      weight: 0.9
//	scopes:
//	  release-notes: project
//	project_skills: [house-rules]
//	compound:
//	  nuxt-ui: [vue, tailwind]
package catalogfile

import (
	"bytes"
	"io"
	"os"

	"github.com/jingkaihe/docsync/pkg/config"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the decoded catalog extension file.
type File struct {
	Signatures    []techdetect.Signature    `yaml:"signatures"`
	Rules         map[string][]matcher.Rule `yaml:"rules"`
	Scopes        map[string]skills.Scope   `yaml:"scopes"`
	ProjectSkills []string                  `yaml:"project_skills"`
	Compound      map[string][]string       `yaml:"compound"`
}

// Parse decodes a catalog file. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, errors.Wrap(err, "failed to decode catalog file")
	}
	return &f, nil
}

// Load reads and decodes the catalog file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read catalog file %s", path)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid catalog file %s", path)
	}
	return f, nil
}

// RuleSet returns the matching rules carried by the file.
func (f *File) RuleSet() matcher.RuleSet {
	set := matcher.RuleSet{
		Tech:     f.Rules,
		Scopes:   make(map[string]skills.Scope, len(f.Scopes)+len(f.ProjectSkills)),
		Compound: f.Compound,
	}
	for name, scope := range f.Scopes {
		set.Scopes[name] = scope
	}
	for _, name := range f.ProjectSkills {
		set.Scopes[name] = skills.ScopeProject
	}
	return set
}

// Apply extends catalog and rules with the file's contents.
func (f *File) Apply(catalog *techdetect.Catalog, rules *matcher.Rules) (*techdetect.Catalog, *matcher.Rules, error) {
	extended, err := catalog.Extend(f.Signatures)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to extend signatures")
	}
	merged, err := rules.Extend(f.RuleSet())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to extend matching rules")
	}
	return extended, merged, nil
}

// Resolve builds the signature catalog and matching rules for cfg: the
// built-in tables, then the catalog file when configured, then the
// project skills and compound entries of the matching config.
func Resolve(cfg config.Config) (*techdetect.Catalog, *matcher.Rules, error) {
	catalog := techdetect.DefaultCatalog()
	rules := matcher.DefaultRules()

	if path := cfg.Detection.CatalogFile; path != "" {
		f, err := Load(path)
		if err != nil {
			return nil, nil, err
		}
		if catalog, rules, err = f.Apply(catalog, rules); err != nil {
			return nil, nil, err
		}
	}

	extra := (&File{
		ProjectSkills: cfg.Matching.ProjectSkills,
		Compound:      cfg.Matching.Compound,
	}).RuleSet()
	rules, err := rules.Extend(extra)
	if err != nil {
		return nil, nil, errors.Wrap(err, "invalid matching configuration")
	}
	return catalog, rules, nil
}
