package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/jingkaihe/docsync/pkg/pipeline"
	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/render"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// SyncConfig holds configuration for the sync command
type SyncConfig struct {
	DryRun     bool
	JSONOutput bool
	Suggest    bool
	Yes        bool
	ReportOnly bool
}

// NewSyncConfig creates a new SyncConfig with default values
func NewSyncConfig() *SyncConfig {
	return &SyncConfig{
		DryRun:     false,
		JSONOutput: false,
		Suggest:    false,
		Yes:        false,
		ReportOnly: false,
	}
}

// Validate validates the SyncConfig and returns an error if invalid
func (c *SyncConfig) Validate() error {
	if c.ReportOnly && c.DryRun {
		return errors.New("--report-only and --dry-run cannot be combined")
	}
	if c.Suggest && c.JSONOutput && !c.Yes {
		return errors.New("--suggest with --json requires --yes")
	}
	return nil
}

var syncCmd = &cobra.Command{
	Use:   "sync [path]",
	Short: "Sync the skills section of every agent file in a project tree",
	Long: `Detect the technologies of the project root and of every subdirectory,
match skills per directory, promote the skills shared by most subdirectories
to the root and patch the skills section of each directory's CLAUDE.md or
AGENTS.md.

Examples:
  docsync sync
  docsync sync ./monorepo --dry-run
  docsync sync --report-only --json
  docsync sync --suggest`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getSyncConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		cfg := appConfig
		cfg.Ecosystem.Enabled = false
		rt, err := newRuntime(ctx, cfg)
		if err != nil {
			presenter.Error(err, "Failed to initialise docsync")
			os.Exit(1)
		}
		defer rt.Close()

		root := pathArg(args)
		if config.Suggest && !config.ReportOnly && !config.DryRun {
			suggestConfig := &SkillSuggestConfig{Yes: config.Yes}
			if _, err := suggestSkills(ctx, rt.pipeline, root, suggestConfig); err != nil {
				presenter.Error(err, "Failed to install suggested skills")
				os.Exit(1)
			}
		}

		if err := runSync(ctx, rt.pipeline, root, config); err != nil {
			os.Exit(1)
		}
	},
}

func init() {
	addSyncFlags(syncCmd)
}

func addSyncFlags(cmd *cobra.Command) {
	defaults := NewSyncConfig()
	cmd.Flags().Bool("dry-run", defaults.DryRun, "Show the changes without writing any file")
	cmd.Flags().Bool("json", defaults.JSONOutput, "Output the sync report in JSON format")
	cmd.Flags().Bool("suggest", defaults.Suggest, "Offer global skills first when the project has none")
	cmd.Flags().BoolP("yes", "y", defaults.Yes, "With --suggest, install every suggested skill without asking")
	cmd.Flags().Bool("report-only", defaults.ReportOnly, "Only compute and print the skill distribution")
}

// getSyncConfigFromFlags extracts sync configuration from command flags
func getSyncConfigFromFlags(cmd *cobra.Command) *SyncConfig {
	config := NewSyncConfig()

	if dryRun, err := cmd.Flags().GetBool("dry-run"); err == nil {
		config.DryRun = dryRun
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	if suggest, err := cmd.Flags().GetBool("suggest"); err == nil {
		config.Suggest = suggest
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	if reportOnly, err := cmd.Flags().GetBool("report-only"); err == nil {
		config.ReportOnly = reportOnly
	}

	return config
}

// runSync syncs root and prints the report. Write failures are reported
// and returned once the whole tree has been processed.
func runSync(ctx context.Context, p *pipeline.Pipeline, root string, config *SyncConfig) error {
	result, err := p.Sync(ctx, root, pipeline.SyncOptions{
		DryRun:     config.DryRun,
		ReportOnly: config.ReportOnly,
	})
	if result == nil {
		presenter.Error(err, "Failed to sync skills")
		return err
	}

	if config.JSONOutput {
		printJSON(result.Report)
	} else {
		fmt.Print(render.SyncMarkdown(result.Report, !config.ReportOnly))
		if config.DryRun {
			printDiffs(result.Diffs)
		}
	}

	if !config.ReportOnly {
		presenter.Summary(presenter.SyncCounts{
			Updated:   len(result.Report.Updated),
			Unchanged: len(result.Report.Unchanged),
			Failed:    len(result.Report.Failed),
			DryRun:    config.DryRun,
		})
	}
	if result.RunID != "" {
		presenter.Info(fmt.Sprintf("Recorded as run %s", shortID(result.RunID)))
	}

	if err != nil {
		presenter.Error(err, "Some agent files could not be updated")
		return err
	}
	return nil
}

func printDiffs(diffs map[string]string) {
	files := make([]string, 0, len(diffs))
	for f := range diffs {
		files = append(files, f)
	}
	sort.Strings(files)

	for _, f := range files {
		if diffs[f] == "" {
			continue
		}
		fmt.Println()
		fmt.Print(diffs[f])
	}
}
