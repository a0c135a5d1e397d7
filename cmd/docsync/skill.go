package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"

	"github.com/jingkaihe/docsync/pkg/matcher"
	"github.com/jingkaihe/docsync/pkg/pipeline"
	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/tui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// SkillListConfig holds configuration for the skill list command
type SkillListConfig struct {
	Global     bool
	JSONOutput bool
}

// NewSkillListConfig creates a new SkillListConfig with default values
func NewSkillListConfig() *SkillListConfig {
	return &SkillListConfig{
		Global:     false,
		JSONOutput: false,
	}
}

// SkillSuggestConfig holds configuration for the skill suggest command
type SkillSuggestConfig struct {
	Yes   bool
	NoTUI bool
}

// NewSkillSuggestConfig creates a new SkillSuggestConfig with default values
func NewSkillSuggestConfig() *SkillSuggestConfig {
	return &SkillSuggestConfig{
		Yes:   false,
		NoTUI: false,
	}
}

// SkillInstallConfig holds configuration for the skill install command
type SkillInstallConfig struct {
	Dir string
}

// NewSkillInstallConfig creates a new SkillInstallConfig with default values
func NewSkillInstallConfig() *SkillInstallConfig {
	return &SkillInstallConfig{
		Dir: ".",
	}
}

var skillCmd = &cobra.Command{
	Use:   "skill",
	Short: "Manage project and global skills",
	Long:  `List the skills docsync can match and copy global skills into a project.`,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

var skillListCmd = &cobra.Command{
	Use:   "list [path]",
	Short: "List the skills available to a project",
	Long: `List the project skills found under the configured skill directories of
a project, or the global skills with --global.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getSkillListConfigFromFlags(cmd)
		listSkillsCmd(cmd.Context(), pathArg(args), config)
	},
}

var skillSuggestCmd = &cobra.Command{
	Use:   "suggest [path]",
	Short: "Suggest global skills for a project without skills",
	Long: `When a project has no skills of its own, match the global skills in
~/.claude/skills against the project's technologies and offer to copy the
relevant ones into .agents/skills, linked from .claude/skills.

Examples:
  docsync skill suggest
  docsync skill suggest ./service --yes
  docsync skill suggest --no-tui`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getSkillSuggestConfigFromFlags(cmd)

		rt, err := newRuntime(ctx, withoutStorage(appConfig))
		if err != nil {
			presenter.Error(err, "Failed to initialise docsync")
			os.Exit(1)
		}
		defer rt.Close()

		if _, err := suggestSkills(ctx, rt.pipeline, pathArg(args), config); err != nil {
			presenter.Error(err, "Failed to install skills")
			os.Exit(1)
		}
	},
}

var skillInstallCmd = &cobra.Command{
	Use:   "install <skill-name>...",
	Short: "Copy global skills into a project",
	Long: `Copy the named skills from the global skills directory into the project's
.agents/skills directory and link them from .claude/skills. Skills already
present are left untouched.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		config := getSkillInstallConfigFromFlags(cmd)
		installSkillsCmd(args, config)
	},
}

func init() {
	listDefaults := NewSkillListConfig()
	skillListCmd.Flags().BoolP("global", "g", listDefaults.Global, "List the global skills instead of the project skills")
	skillListCmd.Flags().Bool("json", listDefaults.JSONOutput, "Output in JSON format")

	suggestDefaults := NewSkillSuggestConfig()
	skillSuggestCmd.Flags().BoolP("yes", "y", suggestDefaults.Yes, "Install every suggested skill without asking")
	skillSuggestCmd.Flags().Bool("no-tui", suggestDefaults.NoTUI, "Ask with a plain prompt instead of the interactive list")

	installDefaults := NewSkillInstallConfig()
	skillInstallCmd.Flags().StringP("dir", "d", installDefaults.Dir, "Project root to install into")

	skillCmd.AddCommand(withTracing(skillListCmd))
	skillCmd.AddCommand(withTracing(skillSuggestCmd))
	skillCmd.AddCommand(withTracing(skillInstallCmd))
}

func getSkillListConfigFromFlags(cmd *cobra.Command) *SkillListConfig {
	config := NewSkillListConfig()
	if global, err := cmd.Flags().GetBool("global"); err == nil {
		config.Global = global
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}
	return config
}

func getSkillSuggestConfigFromFlags(cmd *cobra.Command) *SkillSuggestConfig {
	config := NewSkillSuggestConfig()
	if yes, err := cmd.Flags().GetBool("yes"); err == nil {
		config.Yes = yes
	}
	if noTUI, err := cmd.Flags().GetBool("no-tui"); err == nil {
		config.NoTUI = noTUI
	}
	return config
}

func getSkillInstallConfigFromFlags(cmd *cobra.Command) *SkillInstallConfig {
	config := NewSkillInstallConfig()
	if dir, err := cmd.Flags().GetString("dir"); err == nil && dir != "" {
		config.Dir = dir
	}
	return config
}

func listSkillsCmd(ctx context.Context, path string, config *SkillListConfig) {
	var found []skills.Skill
	if config.Global {
		dir, err := appConfig.GlobalSkillsDir()
		if err != nil {
			presenter.Error(err, "Failed to locate global skills")
			os.Exit(1)
		}
		found = skills.LoadDir(ctx, dir)
	} else {
		root, err := filepath.Abs(path)
		if err != nil {
			presenter.Error(err, "Failed to resolve project root")
			os.Exit(1)
		}
		found = skills.LoadProject(ctx, root, appConfig.Skills)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })

	if config.JSONOutput {
		if found == nil {
			found = []skills.Skill{}
		}
		printJSON(found)
		return
	}

	if len(found) == 0 {
		presenter.Info("No skills installed")
		return
	}
	writeSkillTable(os.Stdout, found)
}

func writeSkillTable(w io.Writer, found []skills.Skill) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCOPE\tDIRECTORY\tDESCRIPTION")
	fmt.Fprintln(tw, "----\t-----\t---------\t-----------")

	for _, skill := range found {
		description := []rune(skill.Description)
		if len(description) > 60 {
			description = append(description[:57], []rune("...")...)
		}
		scope := string(skill.Scope)
		if scope == "" {
			scope = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", skill.Name, scope, skill.Directory, string(description))
	}
	tw.Flush()
}

// suggestSkills offers the relevant global skills of a project without
// skills and installs the chosen ones. It returns the number installed.
func suggestSkills(ctx context.Context, p *pipeline.Pipeline, path string, config *SkillSuggestConfig) (int, error) {
	suggestion, err := p.Suggest(ctx, path)
	if err != nil {
		return 0, err
	}
	if suggestion.Empty() {
		presenter.Info("No global skills to suggest")
		return 0, nil
	}

	presenter.Section(fmt.Sprintf("No project skills found. %d relevant global skills:", len(suggestion.Candidates)))

	var chosen []matcher.Match
	switch {
	case config.Yes:
		chosen = suggestion.Candidates
	case !isTTY():
		presenter.Info("Not a terminal, skipping installation. Use --yes to install the suggestions")
		return 0, nil
	case config.NoTUI:
		fmt.Fprint(os.Stderr, tui.Summary(suggestion.Candidates))
		answer := presenter.Prompt("Copy these skills to the project? Numbers select a subset", "Y/n/1,2")
		chosen = pipeline.Select(answer, suggestion.Candidates)
	default:
		chosen, err = tui.RunPicker(suggestion.Candidates)
		if err != nil {
			return 0, errors.Wrap(err, "skill picker failed")
		}
	}

	if len(chosen) == 0 {
		presenter.Info("No skills installed")
		return 0, nil
	}

	results, err := suggestion.Install(chosen)
	reportInstall(results)
	return len(results), err
}

func installSkillsCmd(names []string, config *SkillInstallConfig) {
	root, err := filepath.Abs(config.Dir)
	if err != nil {
		presenter.Error(err, "Failed to resolve project root")
		os.Exit(1)
	}

	dir, err := appConfig.GlobalSkillsDir()
	if err != nil {
		presenter.Error(err, "Failed to locate global skills")
		os.Exit(1)
	}

	discovery, err := skills.NewDiscovery(skills.WithSkillDirs(dir))
	if err != nil {
		presenter.Error(err, "Failed to discover global skills")
		os.Exit(1)
	}

	toInstall := make([]skills.Skill, 0, len(names))
	for _, name := range names {
		skill, err := discovery.GetSkill(name)
		if err != nil {
			presenter.Error(errors.Wrapf(err, "looked in %s", dir), "Unknown skill")
			os.Exit(1)
		}
		toInstall = append(toInstall, *skill)
	}

	results, err := skills.InstallAll(root, toInstall)
	reportInstall(results)
	if err != nil {
		presenter.Error(err, "Failed to install skills")
		os.Exit(1)
	}
}

func reportInstall(results []skills.InstallResult) {
	for _, r := range results {
		switch r.Status {
		case skills.InstallStatusInstalled:
			presenter.Success(fmt.Sprintf("Installed %s", r.Name))
		case skills.InstallStatusExists:
			presenter.Info(fmt.Sprintf("%s already present", r.Name))
		}
	}
}

// isTTY checks if stdin is a terminal
func isTTY() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
