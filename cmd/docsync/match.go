package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/jingkaihe/docsync/pkg/docpatch"
	"github.com/jingkaihe/docsync/pkg/pipeline"
	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/render"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// MatchConfig holds configuration for the match command
type MatchConfig struct {
	Scope         string
	Compact       bool
	MaxSkills     int
	SkipEcosystem bool
	JSONOutput    bool
	Update        bool
	DryRun        bool
}

// NewMatchConfig creates a new MatchConfig with default values
func NewMatchConfig() *MatchConfig {
	return &MatchConfig{
		Scope:         "all",
		Compact:       false,
		MaxSkills:     0,
		SkipEcosystem: false,
		JSONOutput:    false,
		Update:        false,
		DryRun:        false,
	}
}

// Validate validates the MatchConfig and returns an error if invalid
func (c *MatchConfig) Validate() error {
	if _, ok := skills.ParseScope(c.Scope); !ok {
		return errors.Errorf("invalid scope: %s, must be one of: all, project, technology", c.Scope)
	}
	if c.MaxSkills < 0 {
		return errors.Errorf("max skills cannot be negative: %d", c.MaxSkills)
	}
	if c.DryRun && !c.Update {
		return errors.New("--dry-run requires --update")
	}
	return nil
}

var matchCmd = &cobra.Command{
	Use:   "match [path]",
	Short: "Match skills to the technologies of a directory",
	Long: `Detect the technologies of a directory, rank the local skills and the
skills.sh registry suggestions against them and print the skills block.

With --update the block is also written to the directory's CLAUDE.md or
AGENTS.md between the docsync markers.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getMatchConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		cfg := appConfig
		cfg.History.Enabled = false
		if config.SkipEcosystem {
			cfg.Ecosystem.Enabled = false
		}
		rt, err := newRuntime(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to initialise docsync")
			os.Exit(1)
		}
		defer rt.Close()

		scope, _ := skills.ParseScope(config.Scope)
		result, err := rt.pipeline.Match(ctx, pathArg(args), pipeline.MatchOptions{
			Scope:         scope,
			MaxSkills:     config.MaxSkills,
			Compact:       config.Compact,
			SkipEcosystem: config.SkipEcosystem,
			Update:        config.Update,
			DryRun:        config.DryRun,
		})
		if err != nil {
			presenter.Error(err, "Failed to match skills")
			os.Exit(1)
		}

		if config.JSONOutput {
			printJSON(render.Matches(result.Matches))
		} else {
			fmt.Println(result.Markdown)
		}

		if config.Update {
			reportPatch(result.Patch, config.DryRun)
		}
	},
}

func init() {
	addMatchFlags(matchCmd)
}

func addMatchFlags(cmd *cobra.Command) {
	defaults := NewMatchConfig()
	cmd.Flags().String("scope", defaults.Scope, "Skill scope: all, project or technology")
	cmd.Flags().Bool("compact", defaults.Compact, "Render the compact skills table")
	cmd.Flags().Int("max-skills", defaults.MaxSkills, "Maximum number of skills (default: matching.max_skills)")
	cmd.Flags().Bool("skip-ecosystem", defaults.SkipEcosystem, "Do not query the skills.sh registry")
	cmd.Flags().Bool("json", defaults.JSONOutput, "Output in JSON format")
	cmd.Flags().Bool("update", defaults.Update, "Write the skills block to the directory's agent file")
	cmd.Flags().Bool("dry-run", defaults.DryRun, "With --update, show the diff without writing")
}

// getMatchConfigFromFlags extracts match configuration from command flags
func getMatchConfigFromFlags(cmd *cobra.Command) *MatchConfig {
	config := NewMatchConfig()

	if scope, err := cmd.Flags().GetString("scope"); err == nil {
		config.Scope = strings.ToLower(scope)
	}
	if compact, err := cmd.Flags().GetBool("compact"); err == nil {
		config.Compact = compact
	}
	if maxSkills, err := cmd.Flags().GetInt("max-skills"); err == nil {
		config.MaxSkills = maxSkills
	}
	if skip, err := cmd.Flags().GetBool("skip-ecosystem"); err == nil {
		config.SkipEcosystem = skip
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	if update, err := cmd.Flags().GetBool("update"); err == nil {
		config.Update = update
	}
	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}

	return config
}

func reportPatch(patch *docpatch.Result, dryRun bool) {
	if patch == nil {
		presenter.Info("No skills matched, agent file left untouched")
		return
	}

	switch patch.Status {
	case docpatch.StatusUpdated:
		if dryRun {
			presenter.Info(fmt.Sprintf("Would update %s", patch.Path))
			if patch.Diff != "" {
				fmt.Fprintln(os.Stderr, patch.Diff)
			}
			return
		}
		presenter.Success(fmt.Sprintf("Updated %s", patch.Path))
	case docpatch.StatusUnchanged:
		presenter.Info(fmt.Sprintf("%s is up to date", patch.Path))
	default:
		presenter.Info(fmt.Sprintf("%s not modified", patch.Path))
	}
}
