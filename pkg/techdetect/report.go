package techdetect

import (
	"fmt"
	"math"
	"strings"
)

// TechReport is the JSON projection of a detection.
type TechReport struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

// TreeTechReport is the JSON projection of a detection inside a tree
// report. Evidence is left out.
type TreeTechReport struct {
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// TreeReport maps relative directory paths to their detections.
type TreeReport map[string][]TreeTechReport

// Round2 rounds a confidence to two decimals for reporting.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Report projects detections into their JSON form.
func Report(techs []DetectedTech) []TechReport {
	out := make([]TechReport, 0, len(techs))
	for _, t := range techs {
		evidence := t.Evidence
		if evidence == nil {
			evidence = []string{}
		}
		out = append(out, TechReport{
			Name:       t.Name,
			Category:   t.Category,
			Confidence: Round2(t.Confidence),
			Evidence:   evidence,
		})
	}
	return out
}

// Report projects the tree into its JSON form.
func (t *Tree) Report() TreeReport {
	out := make(TreeReport, len(t.Dirs))
	for _, d := range t.Dirs {
		techs := make([]TreeTechReport, 0, len(d.Techs))
		for _, tech := range d.Techs {
			techs = append(techs, TreeTechReport{
				Name:       tech.Name,
				Category:   tech.Category,
				Confidence: Round2(tech.Confidence),
			})
		}
		out[d.Rel] = techs
	}
	return out
}

// Markdown renders the detections at or above threshold as a table.
func Markdown(techs []DetectedTech, threshold float64) string {
	var b strings.Builder
	b.WriteString("| Technology | Category | Confidence |\n")
	b.WriteString("|------------|----------|------------|")

	rows := 0
	for _, t := range techs {
		if t.Confidence < threshold {
			continue
		}
		fmt.Fprintf(&b, "\n| %s | %s | %.0f%% |", t.Name, t.Category, t.Confidence*100)
		rows++
	}

	if rows == 0 {
		return "No technologies detected above threshold."
	}
	return b.String()
}
