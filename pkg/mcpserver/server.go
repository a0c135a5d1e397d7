// Package mcpserver exposes docsync detection, matching and syncing as MCP
// tools served over stdio.
package mcpserver

import (
	"context"
	"encoding/json"

	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/pipeline"
	"github.com/jingkaihe/docsync/pkg/render"
	"github.com/jingkaihe/docsync/pkg/skills"
	"github.com/jingkaihe/docsync/pkg/techdetect"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Server name advertised to MCP clients.
const Name = "docsync"

// Tool names.
const (
	ToolDetect = "detect_technologies"
	ToolMatch  = "match_skills"
	ToolSync   = "sync_skills"
)

// Server serves the docsync tools.
type Server struct {
	pipeline *pipeline.Pipeline
	mcp      *server.MCPServer
}

// New creates a server running every tool call through p.
func New(p *pipeline.Pipeline, version string) *Server {
	s := &Server{
		pipeline: p,
		mcp: server.NewMCPServer(
			Name,
			version,
			server.WithToolCapabilities(true),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(detectTool(), s.handleDetect)
	s.mcp.AddTool(matchTool(), s.handleMatch)
	s.mcp.AddTool(syncTool(), s.handleSync)
	return s
}

// MCPServer returns the underlying MCP server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves requests on stdin and stdout until stdin closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func detectTool() mcp.Tool {
	return mcp.NewTool(ToolDetect,
		mcp.WithDescription("Detect the technologies used in a project directory, or in every directory of a project tree."),
		mcp.WithString("path", mcp.Description("Directory to scan. Defaults to the working directory.")),
		mcp.WithBoolean("tree", mcp.Description("Detect the root and every subdirectory.")),
		mcp.WithBoolean("local", mcp.Description("Only look at the direct children of path.")),
	)
}

func matchTool() mcp.Tool {
	return mcp.NewTool(ToolMatch,
		mcp.WithDescription("Rank project and ecosystem skills against the technologies detected in a directory."),
		mcp.WithString("path", mcp.Description("Directory to match. Defaults to the working directory.")),
		mcp.WithString("scope", mcp.Description("Skill scope filter."), mcp.Enum("all", "project", "technology")),
		mcp.WithNumber("max_skills", mcp.Description("Maximum number of skills to return.")),
		mcp.WithBoolean("skip_ecosystem", mcp.Description("Do not query the skills.sh registry.")),
		mcp.WithString("format", mcp.Description("Output format."), mcp.Enum("json", "markdown")),
		mcp.WithBoolean("compact", mcp.Description("Render the compact markdown table.")),
	)
}

func syncTool() mcp.Tool {
	return mcp.NewTool(ToolSync,
		mcp.WithDescription("Distribute skills over a project tree and patch the skills section of every agent documentation file."),
		mcp.WithString("path", mcp.Description("Project root. Defaults to the working directory.")),
		mcp.WithBoolean("dry_run", mcp.Description("Report the changes without writing files.")),
		mcp.WithBoolean("report_only", mcp.Description("Only compute the skill distribution.")),
	)
}

type detectInput struct {
	Path  string `mapstructure:"path"`
	Tree  bool   `mapstructure:"tree"`
	Local bool   `mapstructure:"local"`
}

type matchInput struct {
	Path          string `mapstructure:"path"`
	Scope         string `mapstructure:"scope"`
	MaxSkills     int    `mapstructure:"max_skills"`
	SkipEcosystem bool   `mapstructure:"skip_ecosystem"`
	Format        string `mapstructure:"format"`
	Compact       bool   `mapstructure:"compact"`
}

type syncInput struct {
	Path       string `mapstructure:"path"`
	DryRun     bool   `mapstructure:"dry_run"`
	ReportOnly bool   `mapstructure:"report_only"`
}

func (s *Server) handleDetect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in detectInput
	if err := decodeArguments(request, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if in.Tree {
		tree, err := s.pipeline.DetectTree(ctx, in.Path)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(tree.Report())
	}

	techs, err := s.pipeline.Detect(ctx, in.Path, in.Local)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(techdetect.Report(techs))
}

func (s *Server) handleMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in matchInput
	if err := decodeArguments(request, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	scope, ok := skills.ParseScope(in.Scope)
	if !ok {
		return mcp.NewToolResultError("invalid scope: " + in.Scope), nil
	}

	result, err := s.pipeline.Match(ctx, in.Path, pipeline.MatchOptions{
		Scope:         scope,
		MaxSkills:     in.MaxSkills,
		Compact:       in.Compact,
		SkipEcosystem: in.SkipEcosystem,
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if in.Format == "markdown" {
		return mcp.NewToolResultText(result.Markdown), nil
	}
	return jsonResult(render.Matches(result.Matches))
}

func (s *Server) handleSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in syncInput
	if err := decodeArguments(request, &in); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.pipeline.Sync(ctx, in.Path, pipeline.SyncOptions{
		DryRun:     in.DryRun,
		ReportOnly: in.ReportOnly,
	})
	if result == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, jsonErr := jsonResult(result.Report)
	if jsonErr != nil {
		return nil, jsonErr
	}
	if err != nil {
		logger.G(ctx).WithError(err).Warn("sync finished with write failures")
		out.IsError = true
	}
	return out, nil
}

// decodeArguments decodes the call arguments into out. An empty path
// means the working directory.
func decodeArguments(request mcp.CallToolRequest, out any) error {
	args, _ := any(request.Params.Arguments).(map[string]any)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create argument decoder")
	}
	if err := decoder.Decode(args); err != nil {
		return errors.Wrap(err, "invalid arguments")
	}

	switch in := out.(type) {
	case *detectInput:
		in.Path = defaultPath(in.Path)
	case *matchInput:
		in.Path = defaultPath(in.Path)
	case *syncInput:
		in.Path = defaultPath(in.Path)
	}
	return nil
}

func defaultPath(p string) string {
	if p == "" {
		return "."
	}
	return p
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tool result")
	}
	return mcp.NewToolResultText(string(data)), nil
}
