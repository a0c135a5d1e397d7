package main

import (
	"os"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/mcpserver"
	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/jingkaihe/docsync/pkg/version"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve docsync as an MCP server over stdio",
	Long: `Serve the detect_technologies, match_skills and sync_skills tools to an MCP
client over stdin and stdout. Logs go to stderr.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		ctx := cmd.Context()

		rt, err := newRuntime(ctx, appConfig)
		if err != nil {
			presenter.Error(err, "Failed to initialise docsync")
			os.Exit(1)
		}
		defer rt.Close()

		server := mcpserver.New(rt.pipeline, version.Get().Version)
		logger.G(ctx).WithField("tools", []string{mcpserver.ToolDetect, mcpserver.ToolMatch, mcpserver.ToolSync}).Info("serving MCP over stdio")

		if err := server.ServeStdio(); err != nil {
			presenter.Error(err, "MCP server stopped")
			os.Exit(1)
		}
	},
}
