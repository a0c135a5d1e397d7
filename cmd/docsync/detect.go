package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// DetectConfig holds configuration for the detect command
type DetectConfig struct {
	Local      bool
	Tree       bool
	JSONOutput bool
}

// NewDetectConfig creates a new DetectConfig with default values
func NewDetectConfig() *DetectConfig {
	return &DetectConfig{
		Local:      false,
		Tree:       false,
		JSONOutput: false,
	}
}

// Validate validates the DetectConfig and returns an error if invalid
func (c *DetectConfig) Validate() error {
	if c.Local && c.Tree {
		return errors.New("--local and --tree cannot be combined")
	}
	return nil
}

var detectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "Detect the technologies used in a directory",
	Long: `Scan a directory for the marker files and content patterns of known
technologies and report a confidence for each one.

With --tree every subdirectory is scored as well, inheriting a fraction of the
root technologies.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		config := getDetectConfigFromFlags(cmd)
		if err := config.Validate(); err != nil {
			presenter.Error(err, "Invalid configuration")
			os.Exit(1)
		}

		rt, err := newRuntime(ctx, withoutStorage(appConfig))
		if err != nil {
			presenter.Error(err, "Failed to initialise docsync")
			os.Exit(1)
		}
		defer rt.Close()

		path := pathArg(args)
		if config.Tree {
			tree, err := rt.pipeline.DetectTree(ctx, path)
			if err != nil {
				presenter.Error(err, "Failed to detect technologies")
				os.Exit(1)
			}
			if config.JSONOutput {
				printJSON(tree.Report())
				return
			}
			writeTreeMarkdown(os.Stdout, tree, appConfig.Detection.MinConfidence)
			return
		}

		techs, err := rt.pipeline.Detect(ctx, path, config.Local)
		if err != nil {
			presenter.Error(err, "Failed to detect technologies")
			os.Exit(1)
		}
		if config.JSONOutput {
			printJSON(techdetect.Report(techs))
			return
		}
		fmt.Println(techdetect.Markdown(techs, appConfig.Detection.MinConfidence))
	},
}

func init() {
	addDetectFlags(detectCmd)
}

func addDetectFlags(cmd *cobra.Command) {
	defaults := NewDetectConfig()
	cmd.Flags().Bool("local", defaults.Local, "Only inspect the direct children of the directory")
	cmd.Flags().Bool("tree", defaults.Tree, "Detect the directory and every subdirectory")
	cmd.Flags().Bool("json", defaults.JSONOutput, "Output in JSON format")
}

// getDetectConfigFromFlags extracts detect configuration from command flags
func getDetectConfigFromFlags(cmd *cobra.Command) *DetectConfig {
	config := NewDetectConfig()

	if local, err := cmd.Flags().GetBool("local"); err == nil {
		config.Local = local
	}
	if tree, err := cmd.Flags().GetBool("tree"); err == nil {
		config.Tree = tree
	}
	if jsonOutput, err := cmd.Flags().GetBool("json"); err == nil {
		config.JSONOutput = jsonOutput
	}

	return config
}

func writeTreeMarkdown(w io.Writer, tree *techdetect.Tree, threshold float64) {
	for i, dir := range tree.Dirs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "### %s\n\n%s\n", dir.Rel, techdetect.Markdown(dir.Techs, threshold))
	}
}

func pathArg(args []string) string {
	if len(args) == 0 {
		return "."
	}
	return args[0]
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		presenter.Error(err, "Failed to encode output")
		os.Exit(1)
	}
	fmt.Println(string(data))
}
