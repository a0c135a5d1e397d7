package render

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/promotion"
	"github.com/jingkaihe/docsync/pkg/techdetect"
)

// MaxReportDescription bounds descriptions in match reports.
const MaxReportDescription = 200

// MatchReport is the JSON projection of a skill match.
type MatchReport struct {
	Name         string   `json:"name"`
	Source       string   `json:"source"`
	Description  string   `json:"description"`
	Triggers     []string `json:"triggers"`
	Relevance    float64  `json:"relevance"`
	MatchedTechs []string `json:"matched_techs"`
	InstallCmd   string   `json:"install_cmd,omitempty"`
}

// Matches converts matches into their JSON projection.
func Matches(matches []matcher.Match) []MatchReport {
	out := make([]MatchReport, len(matches))
	for i, m := range matches {
		out[i] = MatchReport{
			Name:         m.Name,
			Source:       string(m.Source),
			Description:  truncate(m.Description, MaxReportDescription),
			Triggers:     nonNil(m.Triggers),
			Relevance:    techdetect.Round2(m.Relevance),
			MatchedTechs: nonNil(m.MatchedTechs),
			InstallCmd:   m.Install,
		}
	}
	return out
}

// DirReport is the sync outcome of one directory.
type DirReport struct {
	Technologies   []string `json:"technologies"`
	Skills         []string `json:"skills"`
	PromotedToRoot []string `json:"promoted_to_root"`
	AgentFile      string   `json:"agent_file,omitempty"`
	Status         string   `json:"status,omitempty"`
	Markdown       string   `json:"markdown,omitempty"`
}

// SyncReport is the JSON projection of a tree sync.
type SyncReport struct {
	Directories        map[string]DirReport `json:"directories"`
	PromotedSkills     []string             `json:"promoted_skills"`
	PromotionThreshold string               `json:"promotion_threshold"`
	Frequencies        map[string]float64   `json:"frequencies,omitempty"`
	Updated            []string             `json:"updated"`
	Unchanged          []string             `json:"unchanged"`
	Failed             []string             `json:"failed,omitempty"`
	DryRun             bool                 `json:"dry_run,omitempty"`
}

// DirMarkdown renders the skill block of one directory: the full form at
// the root, the compact form elsewhere.
func DirMarkdown(dir promotion.Dir) string {
	if dir.IsRoot() {
		return Full(dir.Skills)
	}
	return Compact(dir.Skills)
}

// NewSyncReport builds the report skeleton of a promotion result. File
// outcomes are filled in by the caller.
func NewSyncReport(result *promotion.Result) *SyncReport {
	report := &SyncReport{
		Directories:        make(map[string]DirReport, len(result.Dirs)),
		PromotedSkills:     nonNil(result.Promoted),
		PromotionThreshold: Percent(result.Threshold),
		Frequencies:        make(map[string]float64, len(result.Promoted)),
		Updated:            []string{},
		Unchanged:          []string{},
	}

	for _, name := range result.Promoted {
		report.Frequencies[name] = techdetect.Round2(result.Frequency(name))
	}

	for _, dir := range result.Dirs {
		techs := make([]string, len(dir.Techs))
		for i, t := range dir.Techs {
			techs[i] = t.Name
		}
		promoted := []string{}
		if dir.IsRoot() {
			promoted = nonNil(result.Promoted)
		}
		report.Directories[dir.Rel] = DirReport{
			Technologies:   techs,
			Skills:         nonNil(matcher.Names(dir.Skills)),
			PromotedToRoot: promoted,
			Markdown:       DirMarkdown(dir),
		}
	}
	return report
}

// Percent formats a ratio as a whole percentage.
func Percent(ratio float64) string {
	return fmt.Sprintf("%.0f%%", math.Round(ratio*100))
}

// SyncMarkdown renders the human sync report. The file summary is only
// included when withFiles is set.
func SyncMarkdown(report *SyncReport, withFiles bool) string {
	var b strings.Builder

	if withFiles {
		b.WriteString("## Skill Sync Report\n\n")
		fmt.Fprintf(&b, "Updated: %d files\n", len(report.Updated))
		fmt.Fprintf(&b, "Unchanged: %d files\n\n", len(report.Unchanged))
		if len(report.Updated) > 0 {
			b.WriteString("### Updated Files\n")
			for _, f := range report.Updated {
				fmt.Fprintf(&b, "  - %s\n", f)
			}
			b.WriteString("\n")
		}
		if len(report.Failed) > 0 {
			b.WriteString("### Failed Files\n")
			for _, f := range report.Failed {
				fmt.Fprintf(&b, "  - %s\n", f)
			}
			b.WriteString("\n")
		}
	}

	if len(report.PromotedSkills) > 0 {
		fmt.Fprintf(&b, "## Promoted Skills (>%s frequency)\n\n", report.PromotionThreshold)
		b.WriteString("These skills appear in most directories and are embedded at root only:\n\n")
		promoted := append([]string(nil), report.PromotedSkills...)
		sort.Strings(promoted)
		for _, name := range promoted {
			fmt.Fprintf(&b, "  - `%s` (%s of directories)\n", name, Percent(report.Frequencies[name]))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Directory Skill Index\n\n")
	rels := make([]string, 0, len(report.Directories))
	for rel := range report.Directories {
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	for _, rel := range rels {
		dir := report.Directories[rel]
		if rel != "/" && len(dir.Skills) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### `%s`\n", rel)
		techs := dir.Technologies
		if len(techs) > 5 {
			techs = techs[:5]
		}
		fmt.Fprintf(&b, "Technologies: %s\n", strings.Join(techs, ", "))
		if len(dir.Skills) > 0 {
			fmt.Fprintf(&b, "Skills: %s\n", strings.Join(dir.Skills, ", "))
		} else {
			b.WriteString("Skills: (none - all promoted to root)\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
