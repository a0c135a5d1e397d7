package docpatch

import (
	"os"
	"path/filepath"
	"strings"
)

// Default agent documentation file names.
const (
	DefaultPrimaryFile = "CLAUDE.md"
	DefaultAliasFile   = "AGENTS.md"
)

// AgentFiles names the documentation files of a directory.
type AgentFiles struct {
	Primary string
	Alias   string
}

// DefaultAgentFiles returns CLAUDE.md with AGENTS.md as alias.
func DefaultAgentFiles() AgentFiles {
	return AgentFiles{Primary: DefaultPrimaryFile, Alias: DefaultAliasFile}
}

// Resolve returns the documentation file to patch in dir: the alias when
// the primary file mentions it and the alias exists, the primary file
// otherwise. The returned file may not exist.
func (a AgentFiles) Resolve(dir string) string {
	primary := filepath.Join(dir, a.Primary)
	if a.Alias == "" {
		return primary
	}

	data, err := os.ReadFile(primary)
	if err != nil || !strings.Contains(string(data), a.Alias) {
		return primary
	}

	alias := filepath.Join(dir, a.Alias)
	if info, err := os.Stat(alias); err == nil && !info.IsDir() {
		return alias
	}
	return primary
}
