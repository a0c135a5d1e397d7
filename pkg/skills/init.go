package skills

import (
	"context"

	"github.com/jingkaihe/docsync/pkg/config"
	"github.com/jingkaihe/docsync/pkg/logger"
)

// LoadProject discovers the local skills of a project according to the
// skills configuration. Discovery failures yield an empty catalog.
func LoadProject(ctx context.Context, root string, cfg config.SkillsConfig) []Skill {
	discovery, err := NewDiscovery(WithProjectDirs(root, cfg.ProjectDirs...))
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to create skill discovery")
		return nil
	}

	found, err := discovery.List()
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to discover skills")
		return nil
	}

	found = FilterByAllowlist(found, cfg.Allowed)
	logger.G(ctx).WithField("root", root).WithField("count", len(found)).Debug("discovered project skills")
	return found
}

// LoadDir discovers the skills stored directly under dir.
func LoadDir(ctx context.Context, dir string) []Skill {
	discovery, err := NewDiscovery(WithSkillDirs(dir))
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to create skill discovery")
		return nil
	}

	found, err := discovery.List()
	if err != nil {
		logger.G(ctx).WithError(err).Debug("failed to discover skills")
		return nil
	}
	return found
}
