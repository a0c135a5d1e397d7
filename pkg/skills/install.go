package skills

import (
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/errors"
)

// Install locations relative to the project root. The canonical copy
// lives under .agents/skills and .claude/skills links to it.
const (
	CanonicalSkillsDir = ".agents/skills"
	LinkedSkillsDir    = ProjectSkillsDir
)

// InstallStatus is the outcome of installing one skill.
type InstallStatus string

const (
	InstallStatusInstalled InstallStatus = "installed"
	InstallStatusExists    InstallStatus = "exists"
)

// InstallResult describes where a skill was installed.
type InstallResult struct {
	Name      string        `json:"name"`
	Status    InstallStatus `json:"status"`
	Canonical string        `json:"canonical"`
	Link      string        `json:"link"`
}

// Install copies a local skill directory into the project and links it
// from the project skills directory. A skill whose link already exists is
// left untouched.
func Install(projectRoot string, skill Skill) (InstallResult, error) {
	if skill.Directory == "" {
		return InstallResult{}, errors.Errorf("skill '%s' has no directory to install from", skill.Name)
	}

	dirName := filepath.Base(skill.Directory)
	canonical := filepath.Join(projectRoot, filepath.FromSlash(CanonicalSkillsDir), dirName)
	link := filepath.Join(projectRoot, filepath.FromSlash(LinkedSkillsDir), dirName)
	result := InstallResult{Name: skill.Name, Canonical: canonical, Link: link}

	if _, err := os.Lstat(link); err == nil {
		result.Status = InstallStatusExists
		return result, nil
	}

	for _, dir := range []string{filepath.Dir(canonical), filepath.Dir(link)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return result, errors.Wrapf(err, "failed to create %s", dir)
		}
	}

	if _, err := os.Stat(canonical); os.IsNotExist(err) {
		if err := os.CopyFS(canonical, os.DirFS(skill.Directory)); err != nil {
			return result, errors.Wrapf(err, "failed to copy skill '%s'", skill.Name)
		}
	}

	target := path.Join("..", "..", CanonicalSkillsDir, dirName)
	if err := os.Symlink(filepath.FromSlash(target), link); err != nil {
		return result, errors.Wrapf(err, "failed to link skill '%s'", skill.Name)
	}

	result.Status = InstallStatusInstalled
	return result, nil
}

// InstallAll installs each skill, stopping at the first failure.
func InstallAll(projectRoot string, skills []Skill) ([]InstallResult, error) {
	results := make([]InstallResult, 0, len(skills))
	for _, s := range skills {
		r, err := Install(projectRoot, s)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}
