// Package skills provides the catalog of skills that can be embedded into
// agent documentation. Local skills are directories containing a SKILL.md
// file with YAML frontmatter; ecosystem skills come from the external
// skills.sh registry and are only suggested, never executed.
package skills

// Scope decides where a skill may be embedded.
type Scope string

const (
	// ScopeProject skills are workflow skills embedded at the project root only.
	ScopeProject Scope = "project"
	// ScopeTechnology skills are embedded wherever their technology is detected.
	ScopeTechnology Scope = "technology"
)

// ParseScope converts a user supplied scope. The empty string and "all"
// both mean no scope filter and yield the empty Scope.
func ParseScope(s string) (Scope, bool) {
	switch s {
	case "", "all":
		return "", true
	case string(ScopeProject):
		return ScopeProject, true
	case string(ScopeTechnology):
		return ScopeTechnology, true
	}
	return "", false
}

// Source records where a skill came from.
type Source string

const (
	SourceLocal     Source = "local"
	SourceEcosystem Source = "ecosystem"
)

// Skill represents a discovered or suggested skill
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Scope       Scope  `json:"scope,omitempty"`   // declared scope, empty when unspecified
	Source      Source `json:"source"`            // local or ecosystem
	Install     string `json:"install,omitempty"` // install directive for ecosystem skills
	Directory   string `json:"-"`                 // skill directory for local skills
}

// Metadata represents the YAML frontmatter in SKILL.md files
type Metadata struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
	Scope       string `mapstructure:"scope"`
	Install     string `mapstructure:"install"`
}
