package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jingkaihe/docsync/pkg/db"
	"github.com/jingkaihe/docsync/pkg/db/migrations"
	"github.com/jingkaihe/docsync/pkg/history"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// HistoryListConfig holds configuration for the history list command
type HistoryListConfig struct {
	All        bool
	Limit      int
	JSONOutput bool
}

// NewHistoryListConfig creates a new HistoryListConfig with default values
func NewHistoryListConfig() *HistoryListConfig {
	return &HistoryListConfig{
		All:        false,
		Limit:      20,
		JSONOutput: false,
	}
}

// HistoryShowConfig holds configuration for the history show command
type HistoryShowConfig struct {
	JSONOutput bool
}

// NewHistoryShowConfig creates a new HistoryShowConfig with default values
func NewHistoryShowConfig() *HistoryShowConfig {
	return &HistoryShowConfig{
		JSONOutput: false,
	}
}

// HistoryPruneConfig holds configuration for the history prune command
type HistoryPruneConfig struct {
	Keep int
	Yes  bool
}

// NewHistoryPruneConfig creates a new HistoryPruneConfig with default values
func NewHistoryPruneConfig() *HistoryPruneConfig {
	return &HistoryPruneConfig{
		Keep: 50,
		Yes:  false,
	}
}

// Validate validates the HistoryPruneConfig and returns an error if invalid
func (c *HistoryPruneConfig) Validate() error {
	if c.Keep < 0 {
		return errors.Errorf("keep cannot be negative: %d", c.Keep)
	}
	return nil
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded sync runs",
	Long:  `List, show and prune the sync runs recorded in the docsync database.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var historyListCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List the recorded sync runs of a project",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getHistoryListConfigFromFlags(cmd)
		listHistoryCmd(cmd.Context(), pathArg(args), config)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded sync run",
	Long:  `Show a recorded sync run with the outcome of every directory. A unique prefix of the run ID is enough.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getHistoryShowConfigFromFlags(cmd)
		showHistoryCmd(cmd.Context(), args[0], config)
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune [path]",
	Short: "Delete all but the most recent sync runs of a project",
	Long:  `Delete all but the most recent sync runs of a project and purge the
expired skills.sh registry results from the cache.`,
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getHistoryPruneConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}
		pruneHistoryCmd(cmd.Context(), pathArg(args), config)
	},
}

func init() {
	listDefaults := NewHistoryListConfig()
	historyListCmd.Flags().Bool("all", listDefaults.All, "List the runs of every project")
	historyListCmd.Flags().Int("limit", listDefaults.Limit, "Maximum number of runs to display (0 for all)")
	historyListCmd.Flags().Bool("json", listDefaults.JSONOutput, "Output in JSON format")

	showDefaults := NewHistoryShowConfig()
	historyShowCmd.Flags().Bool("json", showDefaults.JSONOutput, "Output in JSON format")

	addHistoryPruneFlags(historyPruneCmd)

	historyCmd.AddCommand(withTracing(historyListCmd))
	historyCmd.AddCommand(withTracing(historyShowCmd))
	historyCmd.AddCommand(withTracing(historyPruneCmd))
}

func addHistoryPruneFlags(cmd *cobra.Command) {
	defaults := NewHistoryPruneConfig()
	cmd.Flags().Int("keep", defaults.Keep, "Number of recent runs to keep")
	cmd.Flags().BoolP("yes", "y", defaults.Yes, "Do not ask for confirmation")
}

func getHistoryListConfigFromFlags(cmd *cobra.Command) *HistoryListConfig {
	config := NewHistoryListConfig()
	if all, err := cmd.Flags().GetBool("all"); err == nil {
		config.All = all
	}
	if limit, err := cmd.Flags().GetInt("limit"); err == nil {
		config.Limit = limit
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	return config
}

func getHistoryShowConfigFromFlags(cmd *cobra.Command) *HistoryShowConfig {
	config := NewHistoryShowConfig()
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	return config
}

func getHistoryPruneConfigFromFlags(cmd *cobra.Command) *HistoryPruneConfig {
	config := NewHistoryPruneConfig()
	if keep, err := cmd.Flags().GetInt("keep"); err == nil {
		config.Keep = keep
	}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	return config
}

func mustOpenHistory(ctx context.Context) (*history.Store, func()) {
	store, closeFn, err := openHistory(ctx, appConfig)
	if err != nil {
		presenter.Error(err, "Failed to open the docsync database")
		os.Exit(1)
	}
	return store, closeFn
}

func listHistoryCmd(ctx context.Context, path string, config *HistoryListConfig) {
	root := ""
	if !config.All {
		abs, err := filepath.Abs(path)
		if err != nil {
			presenter.Error(err, "Failed to resolve project root")
			os.Exit(1)
		}
		root = abs
	}

	store, closeFn := mustOpenHistory(ctx)
	defer closeFn()

	runs, err := store.List(ctx, root, config.Limit)
	if err != nil {
		presenter.Error(err, "Failed to list sync runs")
		os.Exit(1)
	}

	if config.JSONOutput {
		if runs == nil {
			runs = []history.Run{}
		}
		printJSON(runs)
		return
	}

	if len(runs) == 0 {
		presenter.Info("No sync runs recorded")
		return
	}
	writeRunTable(os.Stdout, runs, config.All)
}

func writeRunTable(w io.Writer, runs []history.Run, withRoot bool) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := "ID\tStarted\tUpdated\tUnchanged\tFailed\tPromoted"
	if withRoot {
		header += "\tRoot"
	}
	fmt.Fprintln(tw, header)
	fmt.Fprintln(tw, strings.Repeat("----\t", strings.Count(header, "\t"))+"----")

	for _, run := range runs {
		promoted := strings.Join(run.Promoted, ", ")
		if promoted == "" {
			promoted = "-"
		}
		line := fmt.Sprintf("%s\t%s\t%d\t%d\t%d\t%s",
			shortID(run.ID), run.StartedAt.Local().Format(time.RFC3339),
			run.Updated, run.Unchanged, run.Failed, promoted)
		if withRoot {
			line += "\t" + run.Root
		}
		fmt.Fprintln(tw, line)
	}
	tw.Flush()
}

func showHistoryCmd(ctx context.Context, id string, config *HistoryShowConfig) {
	store, closeFn := mustOpenHistory(ctx)
	defer closeFn()

	run, err := store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, history.ErrNotFound) {
			presenter.Error(err, "Unknown sync run")
		} else {
			presenter.Error(err, "Failed to load sync run")
		}
		os.Exit(1)
	}

	if config.JSONOutput {
		printJSON(run)
		return
	}
	writeRun(os.Stdout, run)
}

func writeRun(w io.Writer, run *history.Run) {
	fmt.Fprintf(w, "Run:       %s\n", run.ID)
	fmt.Fprintf(w, "Root:      %s\n", run.Root)
	fmt.Fprintf(w, "Started:   %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Duration:  %s\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))
	if run.DryRun {
		fmt.Fprintln(w, "Mode:      dry run")
	}
	fmt.Fprintf(w, "Threshold: %.0f%%\n", run.Threshold*100)
	if len(run.Promoted) > 0 {
		fmt.Fprintf(w, "Promoted:  %s\n", strings.Join(run.Promoted, ", "))
	}
	fmt.Fprintf(w, "Files:     %d updated, %d unchanged, %d failed\n\n", run.Updated, run.Unchanged, run.Failed)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "Directory\tFile\tStatus\tSkills")
	fmt.Fprintln(tw, "---------\t----\t------\t------")
	for _, dir := range run.Dirs {
		file := dir.AgentFile
		if file == "" {
			file = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", dir.Rel, file, dir.Status, strings.Join(dir.Skills, ", "))
	}
	tw.Flush()
}

func pruneHistoryCmd(ctx context.Context, path string, config *HistoryPruneConfig) {
	root, err := filepath.Abs(path)
	if err != nil {
		presenter.Error(err, "Failed to resolve project root")
		os.Exit(1)
	}

	question := fmt.Sprintf("Delete all but the %d most recent sync runs of %s?", config.Keep, root)
	if !config.Yes && isTTY() && !presenter.Confirm(question, false) {
		presenter.Info("Nothing deleted")
		return
	}

	database, err := db.OpenMigrated(ctx, appConfig.History.DBPath, migrations.All())
	if err != nil {
		presenter.Error(err, "Failed to open the docsync database")
		os.Exit(1)
	}
	defer database.Close()

	deleted, err := history.NewStore(database).Prune(ctx, root, config.Keep)
	if err != nil {
		presenter.Error(err, "Failed to prune sync runs")
		os.Exit(1)
	}
	presenter.Success(fmt.Sprintf("Deleted %d sync runs", deleted))

	purged, err := skills.NewCachedSearcher(nil, database, appConfig.Ecosystem.CacheTTL).Purge(ctx)
	if err != nil {
		logger.G(ctx).WithError(err).Warn("failed to purge ecosystem cache")
		return
	}
	if purged > 0 {
		presenter.Info(fmt.Sprintf("Purged %d expired registry results", purged))
	}
}

// shortID returns the first segment of a run id.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
