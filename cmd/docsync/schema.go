package main

import (
	"os"

	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/schema"
	"github.com/spf13/cobra"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [report]",
	Short: "Print the JSON Schema of the JSON reports",
	Long: `Print the JSON Schema of one report (detect, tree, match, sync or history),
or of every report keyed by name when no report is given.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: schema.Names(),
	Run: func(_ *cobra.Command, args []string) {
		if len(args) == 0 {
			printJSON(schema.All())
			return
		}

		s, err := schema.For(args[0])
		if err != nil {
			presenter.Error(err, "Invalid report")
			os.Exit(1)
		}
		printJSON(s)
	},
}
