package matcher

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTriggers caps the triggers extracted from one description.
const MaxTriggers = 5

var triggerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[Uu]se when[:\s]+(.+?)(?:\.|$)`),
	regexp.MustCompile(`[Ww]hen[:\s]+\((\d+)\)(.+?)(?:,|\.|$)`),
	regexp.MustCompile(`[Ff]ix for[:\s]+(.+?)(?:\.|$)`),
	regexp.MustCompile(`[Hh]elps with[:\s]+(.+?)(?:\.|$)`),
}

// ExtractTriggers pulls activation hints such as "Use when ..." out of a
// skill description. Clauses must be longer than 10 and shorter than 100
// characters.
func ExtractTriggers(description string) []string {
	var triggers []string

	for _, re := range triggerPatterns {
		for _, m := range re.FindAllStringSubmatch(description, -1) {
			trigger := strings.TrimSpace(strings.Join(m[1:], " "))
			if n := utf8.RuneCountInString(trigger); n > 10 && n < 100 {
				triggers = append(triggers, trigger)
			}
		}
	}

	if len(triggers) > MaxTriggers {
		triggers = triggers[:MaxTriggers]
	}
	return triggers
}
