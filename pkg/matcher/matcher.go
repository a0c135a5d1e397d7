package matcher

import (
	"context"
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
)

// Matching defaults.
const (
	DefaultMaxSkills    = 15
	DefaultDirMaxSkills = 10
	DefaultMinRelevance = 0.4
	// NameBonus is the weight applied when a technology's own name
	// appears as a whole word in the skill text.
	NameBonus = 0.5
)

// Tech is a detected technology as seen by the matcher.
type Tech struct {
	Name       string
	Confidence float64
}

// FromDetected converts detector output into matcher input.
func FromDetected(detected []techdetect.DetectedTech) []Tech {
	techs := make([]Tech, len(detected))
	for i, d := range detected {
		techs[i] = Tech{Name: d.Name, Confidence: d.Confidence}
	}
	return techs
}

// Match is a skill ranked against a set of technologies.
type Match struct {
	Name         string
	Source       skills.Source
	Scope        skills.Scope
	Description  string
	Triggers     []string
	Relevance    float64
	MatchedTechs []string
	Install      string
}

// Options filter and bound a match result. A zero Scope keeps every scope.
type Options struct {
	Scope        skills.Scope
	MaxSkills    int
	MinRelevance float64
}

// DefaultOptions returns the options used for single directory matching.
func DefaultOptions() Options {
	return Options{MaxSkills: DefaultMaxSkills, MinRelevance: DefaultMinRelevance}
}

// Matcher scores skills with a fixed set of rules.
type Matcher struct {
	rules *Rules
}

// New creates a matcher. A nil rules value uses DefaultRules.
func New(rules *Rules) *Matcher {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Matcher{rules: rules}
}

// Rules returns the rules used by the matcher.
func (m *Matcher) Rules() *Rules {
	return m.rules
}

// Match ranks catalog against techs. Rules of one technology add up;
// across technologies a skill keeps its highest relevance. When two
// catalog entries share a name the first one wins.
func (m *Matcher) Match(ctx context.Context, techs []Tech, catalog []skills.Skill, opts Options) []Match {
	byName := make(map[string]*Match)
	var order []string

	for _, tech := range techs {
		rules := m.rules.rulesFor(tech.Name)
		bonus := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(tech.Name) + `\b`)

		for _, skill := range catalog {
			text := strings.ToLower(skill.Name + " " + skill.Description)

			relevance := 0.0
			matched := false
			for _, rule := range rules {
				if rule.re.MatchString(text) {
					relevance += rule.weight * tech.Confidence
					matched = true
				}
			}
			if bonus.MatchString(text) {
				relevance += NameBonus * tech.Confidence
				matched = true
			}
			if !matched || relevance <= 0 {
				continue
			}

			if existing, ok := byName[skill.Name]; ok {
				existing.Relevance = clamp(max(existing.Relevance, relevance))
				if !slices.Contains(existing.MatchedTechs, tech.Name) {
					existing.MatchedTechs = append(existing.MatchedTechs, tech.Name)
				}
				continue
			}

			byName[skill.Name] = &Match{
				Name:         skill.Name,
				Source:       skill.Source,
				Scope:        m.rules.ScopeOf(skill),
				Description:  skill.Description,
				Triggers:     ExtractTriggers(skill.Description),
				Relevance:    clamp(relevance),
				MatchedTechs: []string{tech.Name},
				Install:      skill.Install,
			}
			order = append(order, skill.Name)
		}
	}

	detected := make(map[string]bool, len(techs))
	for _, t := range techs {
		detected[t.Name] = true
	}

	result := make([]Match, 0, len(order))
	for _, name := range order {
		match := byName[name]
		if opts.Scope != "" && match.Scope != opts.Scope {
			continue
		}
		if !m.satisfied(name, detected) {
			continue
		}
		if match.Relevance < opts.MinRelevance {
			continue
		}
		result = append(result, *match)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Relevance > result[j].Relevance
	})
	if opts.MaxSkills > 0 && len(result) > opts.MaxSkills {
		result = result[:opts.MaxSkills]
	}

	logger.G(ctx).
		WithField("techs", len(techs)).
		WithField("candidates", len(catalog)).
		WithField("matched", len(result)).
		Debug("matched skills")
	return result
}

// ProjectMatches returns the project scoped local skills of catalog at
// full relevance, independent of any technology evidence.
func (m *Matcher) ProjectMatches(catalog []skills.Skill) []Match {
	var result []Match
	seen := make(map[string]bool)
	for _, skill := range catalog {
		if skill.Source != skills.SourceLocal || seen[skill.Name] {
			continue
		}
		if m.rules.ScopeOf(skill) != skills.ScopeProject {
			continue
		}
		seen[skill.Name] = true
		result = append(result, Match{
			Name:         skill.Name,
			Source:       skill.Source,
			Scope:        skills.ScopeProject,
			Description:  skill.Description,
			Triggers:     ExtractTriggers(skill.Description),
			Relevance:    1.0,
			MatchedTechs: []string{},
			Install:      skill.Install,
		})
	}
	return result
}

func (m *Matcher) satisfied(skill string, detected map[string]bool) bool {
	for _, tech := range m.rules.Requires(skill) {
		if !detected[tech] {
			return false
		}
	}
	return true
}

// Names returns the names of matches in order.
func Names(matches []Match) []string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}
	return names
}

// TechNames returns the names of techs in order.
func TechNames(techs []Tech) []string {
	names := make([]string, len(techs))
	for i, t := range techs {
		names[i] = t.Name
	}
	return names
}

func clamp(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}
