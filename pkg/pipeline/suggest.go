package pipeline

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/pkg/errors"
)

// MaxSuggestions bounds the global skills offered for installation.
const MaxSuggestions = 10

// Suggestion lists global skills worth copying into a project that has
// no skills of its own.
type Suggestion struct {
	Root  string
	Techs []techdetect.DetectedTech
	// Candidates are the matched global skills, best first.
	Candidates []matcher.Match
	global     map[string]skills.Skill
}

// Empty reports whether there is nothing to suggest.
func (s *Suggestion) Empty() bool {
	return s == nil || len(s.Candidates) == 0
}

// Suggest matches the global skills collection against the technologies
// of root. It returns an empty suggestion when the project already has
// skills, when there are no global skills or no technologies.
func (p *Pipeline) Suggest(ctx context.Context, root string) (*Suggestion, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", root)
	}
	suggestion := &Suggestion{Root: abs}
	log := logger.G(ctx).WithField("root", abs)

	if local := skills.LoadProject(ctx, abs, p.cfg.Skills); len(local) > 0 {
		log.WithField("count", len(local)).Debug("project already has skills")
		return suggestion, nil
	}

	globalDir, err := p.cfg.GlobalSkillsDir()
	if err != nil {
		return nil, err
	}
	global := skills.LoadDir(ctx, globalDir)
	if len(global) == 0 {
		log.WithField("dir", globalDir).Debug("no global skills found")
		return suggestion, nil
	}

	techs, err := p.Detect(ctx, abs, false)
	if err != nil {
		return nil, err
	}
	suggestion.Techs = techs
	if len(techs) == 0 {
		return suggestion, nil
	}

	suggestion.global = make(map[string]skills.Skill, len(global))
	for _, s := range global {
		suggestion.global[s.Name] = s
	}

	suggestion.Candidates = p.matcher.Match(ctx, matcher.FromDetected(techs), global, matcher.Options{
		Scope:        skills.ScopeTechnology,
		MaxSkills:    MaxSuggestions,
		MinRelevance: p.cfg.Matching.MinRelevance,
	})
	return suggestion, nil
}

// Install copies the chosen candidates into the project.
func (s *Suggestion) Install(chosen []matcher.Match) ([]skills.InstallResult, error) {
	toInstall := make([]skills.Skill, 0, len(chosen))
	for _, m := range chosen {
		skill, ok := s.global[m.Name]
		if !ok {
			return nil, errors.Errorf("skill '%s' is not in the global collection", m.Name)
		}
		toInstall = append(toInstall, skill)
	}
	return skills.InstallAll(s.Root, toInstall)
}

// Select interprets an answer to the install prompt. An empty answer or
// "y"/"yes" picks every candidate, "n"/"no" none, otherwise the answer is
// a list of 1-based indexes separated by commas or spaces. Out of range
// and non-numeric entries are ignored.
func Select(answer string, candidates []matcher.Match) []matcher.Match {
	answer = strings.ToLower(strings.TrimSpace(answer))
	switch answer {
	case "", "y", "yes":
		return candidates
	case "n", "no":
		return nil
	}

	var chosen []matcher.Match
	for _, field := range strings.Fields(strings.ReplaceAll(answer, ",", " ")) {
		n, err := strconv.Atoi(field)
		if err != nil || n < 1 || n > len(candidates) {
			continue
		}
		chosen = append(chosen, candidates[n-1])
	}
	return chosen
}
