// Package render projects skill matches and sync results into the
// markdown blocks embedded in agent documentation and into JSON reports.
package render

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/skills"
)

// Row limits of the rendered tables.
const (
	CompactRows      = 5
	CompactDescLimit = 60
	FullDescLimit    = 80
	SuggestionRows   = 5
	SuggestionLimit  = 60
)

// Compact renders the subdirectory form of a skill block. It returns the
// empty string when there are no matches.
func Compact(matches []matcher.Match) string {
	if len(matches) == 0 {
		return ""
	}

	lines := []string{
		"## Skills",
		"",
		"| Skill | When to use |",
		"|-------|-------------|",
	}
	for i, m := range matches {
		if i == CompactRows {
			break
		}
		lines = append(lines, fmt.Sprintf("| `%s` | %s |", m.Name, cell(m.Description, CompactDescLimit)))
	}
	return strings.Join(lines, "\n")
}

// Full renders the root form of a skill block, listing install
// suggestions for ecosystem skills.
func Full(matches []matcher.Match) string {
	lines := []string{
		"## Relevant Skills",
		"",
		"Skills matched to this project's technology stack. Descriptions are passive context;",
		"full skill content loads on-demand when triggers match.",
		"",
		"| Skill | Triggers | Source |",
		"|-------|----------|--------|",
	}

	var ecosystem []matcher.Match
	for _, m := range matches {
		source := "local"
		if m.Source != skills.SourceLocal {
			source = "[skills.sh](https://skills.sh)"
		}
		if m.Source == skills.SourceEcosystem {
			ecosystem = append(ecosystem, m)
		}
		lines = append(lines, fmt.Sprintf("| `%s` | %s | %s |", m.Name, cell(m.Description, FullDescLimit), source))
	}

	if len(ecosystem) > 0 {
		lines = append(lines,
			"",
			"### Suggested Installations",
			"",
			"These skills.sh skills match your tech stack but aren't installed:",
			"",
		)
		for i, m := range ecosystem {
			if i == SuggestionRows {
				break
			}
			lines = append(lines, fmt.Sprintf("- `%s` - %s...", m.Install, truncate(m.Description, SuggestionLimit)))
		}
	}

	return strings.Join(lines, "\n")
}

// Block renders the compact or full form.
func Block(matches []matcher.Match, compact bool) string {
	if compact {
		return Compact(matches)
	}
	return Full(matches)
}

// cell truncates s to limit characters, marking the cut with "...", and
// escapes it for a table cell.
func cell(s string, limit int) string {
	if utf8.RuneCountInString(s) > limit {
		s = truncate(s, limit) + "..."
	}
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
