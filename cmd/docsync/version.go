package main

import (
	"fmt"
	"os"

	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, _ []string) {
		info := version.Get()
		if jsonOutput, _ := cmd.Flags().GetBool("json"); !jsonOutput {
			fmt.Println(info.String())
			return
		}

		out, err := info.JSON()
		if err != nil {
			presenter.Error(err, "Failed to format version information")
			os.Exit(1)
		}
		fmt.Println(out)
	},
}

func init() {
	versionCmd.Flags().Bool("json", false, "Output in JSON format")
}
