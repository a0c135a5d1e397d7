// Package matcher ranks skills against detected technologies. Matching is
// purely keyword driven: each technology owns a list of weighted regex
// rules evaluated against a skill's name and description.
package matcher

import (
	"regexp"
	"sort"

	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/pkg/errors"
)

// Rule adds Weight × technology confidence to a skill's relevance when
// Pattern matches the skill text. Patterns are case-insensitive.
type Rule struct {
	Pattern string  `yaml:"pattern" json:"pattern"`
	Weight  float64 `yaml:"weight" json:"weight"`
}

// RuleSet is the uncompiled form of Rules.
type RuleSet struct {
	// Tech maps a technology name to its rules.
	Tech map[string][]Rule `yaml:"rules,omitempty" json:"rules,omitempty"`
	// Scopes overrides the scope declared by a skill.
	Scopes map[string]skills.Scope `yaml:"scopes,omitempty" json:"scopes,omitempty"`
	// Compound lists the technologies a skill requires together.
	Compound map[string][]string `yaml:"compound,omitempty" json:"compound,omitempty"`
}

type compiledRule struct {
	re     *regexp.Regexp
	weight float64
}

// Rules is a compiled, immutable RuleSet.
type Rules struct {
	set  RuleSet
	tech map[string][]compiledRule
}

// DefaultProjectSkills are workflow skills only ever embedded at the
// project root.
var DefaultProjectSkills = []string{
	"solution-design",
	"problem-analysis",
	"decision-critic",
	"planner",
	"deepthink",
	"codebase-analysis",
	"prompt-engineer",
	"refactor",
	"incoherence",
	"doc-sync",
	"claudeception",
}

// DefaultTechnologySkills are skills pinned to technology scope.
var DefaultTechnologySkills = []string{
	"vue-best-practices",
	"tailwind-v4-shadcn",
	"laravel-11-12-app-guidelines",
	"ui-skills",
}

func r(pattern string, weight float64) Rule {
	return Rule{Pattern: pattern, Weight: weight}
}

// DefaultRuleSet returns a fresh copy of the built-in tables.
func DefaultRuleSet() RuleSet {
	scopes := make(map[string]skills.Scope, len(DefaultProjectSkills)+len(DefaultTechnologySkills))
	for _, name := range DefaultProjectSkills {
		scopes[name] = skills.ScopeProject
	}
	for _, name := range DefaultTechnologySkills {
		scopes[name] = skills.ScopeTechnology
	}

	return RuleSet{
		Tech: map[string][]Rule{
			"laravel":        {r(`laravel|eloquent|artisan|blade`, 0.9), r(`inertia`, 0.5)},
			"php":            {r(`\bphp\b|composer`, 0.6)},
			"inertia":        {r(`inertia`, 0.9)},
			"tailwind":       {r(`tailwind`, 0.9)},
			"shadcn":         {r(`shadcn|radix`, 0.9)},
			"vue":            {r(`\bvue\b|composition.?api|script.?setup`, 0.9), r(`pinia|vue.?router`, 0.6)},
			"prisma":         {r(`prisma`, 0.9)},
			"postgresql":     {r(`postgres|psql|pg_`, 0.9)},
			"mongodb":        {r(`mongo|mongoose`, 0.9)},
			"surrealdb":      {r(`surreal`, 0.9)},
			"nextjs":         {r(`next\.?js|nextjs`, 0.9), r(`app.?router|server.?component`, 0.5)},
			"react":          {r(`\breact\b`, 0.9), r(`use[A-Z]\w+\(`, 0.3)},
			"fastapi":        {r(`fastapi`, 0.9)},
			"django":         {r(`django`, 0.9)},
			"langchain":      {r(`langchain`, 0.9)},
			"openai":         {r(`openai|gpt-[34]`, 0.9)},
			"anthropic":      {r(`anthropic|claude`, 0.9)},
			"huggingface":    {r(`hugging.?face|transformers`, 0.9)},
			"pytest":         {r(`pytest|conftest`, 0.9)},
			"phpunit":        {r(`phpunit`, 0.9)},
			"jest":           {r(`\bjest\b`, 0.9)},
			"vitest":         {r(`vitest`, 0.9)},
			"playwright":     {r(`playwright`, 0.9)},
			"python":         {r(`\bpython\b|\.py\b`, 0.5)},
			"typescript":     {r(`typescript|\.tsx?\b`, 0.5)},
			"go":             {r(`\bgolang\b|\.go\b`, 0.5)},
			"rust":           {r(`\brust\b|cargo`, 0.5)},
			"docker":         {r(`docker|dockerfile`, 0.8)},
			"kubernetes":     {r(`kubernetes|k8s|kubectl`, 0.9)},
			"vercel":         {r(`vercel`, 0.9)},
			"github-actions": {r(`github.?action|workflow\.ya?ml`, 0.8)},
		},
		Scopes: scopes,
		Compound: map[string][]string{
			"tailwind-v4-shadcn": {"tailwind", "shadcn"},
		},
	}
}

// NewRules compiles a rule set.
func NewRules(set RuleSet) (*Rules, error) {
	compiled := &Rules{
		set:  cloneSet(set),
		tech: make(map[string][]compiledRule, len(set.Tech)),
	}

	for tech, rules := range set.Tech {
		for _, rule := range rules {
			re, err := regexp.Compile("(?i)" + rule.Pattern)
			if err != nil {
				return nil, errors.Wrapf(err, "invalid rule pattern %q for %s", rule.Pattern, tech)
			}
			if rule.Weight < 0 {
				return nil, errors.Errorf("rule %q for %s has negative weight", rule.Pattern, tech)
			}
			compiled.tech[tech] = append(compiled.tech[tech], compiledRule{re: re, weight: rule.Weight})
		}
	}

	for name, scope := range set.Scopes {
		if scope != skills.ScopeProject && scope != skills.ScopeTechnology {
			return nil, errors.Errorf("invalid scope %q for skill %s", scope, name)
		}
	}

	return compiled, nil
}

// MustRules is like NewRules but panics on error.
func MustRules(set RuleSet) *Rules {
	rules, err := NewRules(set)
	if err != nil {
		panic(err)
	}
	return rules
}

// DefaultRules returns the compiled built-in tables.
func DefaultRules() *Rules {
	return MustRules(DefaultRuleSet())
}

// Extend returns new Rules with extra merged in. Technology rules are
// appended to the existing ones; scope and compound entries replace
// existing entries of the same skill.
func (r *Rules) Extend(extra RuleSet) (*Rules, error) {
	merged := cloneSet(r.set)
	for tech, rules := range extra.Tech {
		merged.Tech[tech] = append(merged.Tech[tech], rules...)
	}
	for name, scope := range extra.Scopes {
		merged.Scopes[name] = scope
	}
	for name, techs := range extra.Compound {
		merged.Compound[name] = append([]string(nil), techs...)
	}
	return NewRules(merged)
}

// WithProjectSkills returns Rules pinning the named skills to project scope.
func (r *Rules) WithProjectSkills(names ...string) (*Rules, error) {
	if len(names) == 0 {
		return r, nil
	}
	scopes := make(map[string]skills.Scope, len(names))
	for _, name := range names {
		scopes[name] = skills.ScopeProject
	}
	return r.Extend(RuleSet{Scopes: scopes})
}

// Set returns a copy of the uncompiled rule set.
func (r *Rules) Set() RuleSet {
	return cloneSet(r.set)
}

// Technologies returns the names of technologies with rules, sorted.
func (r *Rules) Technologies() []string {
	names := make([]string, 0, len(r.tech))
	for name := range r.tech {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScopeOf resolves a skill's scope: the override table first, then the
// scope the skill declares, then technology.
func (r *Rules) ScopeOf(s skills.Skill) skills.Scope {
	if scope, ok := r.set.Scopes[s.Name]; ok {
		return scope
	}
	if s.Scope != "" {
		return s.Scope
	}
	return skills.ScopeTechnology
}

// Requires returns the technologies a skill needs detected together, or
// nil when it has no compound requirement.
func (r *Rules) Requires(skill string) []string {
	return r.set.Compound[skill]
}

func (r *Rules) rulesFor(tech string) []compiledRule {
	return r.tech[tech]
}

func cloneSet(set RuleSet) RuleSet {
	out := RuleSet{
		Tech:     make(map[string][]Rule, len(set.Tech)),
		Scopes:   make(map[string]skills.Scope, len(set.Scopes)),
		Compound: make(map[string][]string, len(set.Compound)),
	}
	for k, v := range set.Tech {
		out.Tech[k] = append([]Rule(nil), v...)
	}
	for k, v := range set.Scopes {
		out.Scopes[k] = v
	}
	for k, v := range set.Compound {
		out.Compound[k] = append([]string(nil), v...)
	}
	return out
}
