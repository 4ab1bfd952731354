package cmd

import (
	"context"
	"errors"

	"github.com/samsaffron/workbench/internal/mcp"
	"github.com/samsaffron/workbench/internal/signal"
	"github.com/spf13/cobra"
)

var mcpWorkspace string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the workspace tools over MCP on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout exposing the
workspace tools. Logs go to stderr.

Example client configuration:
  {"command": "workbench", "args": ["mcp", "--workspace", "/path/to/project"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	AddWorkspaceFlag(mcpCmd, &mcpWorkspace)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWorkspaceOverride(cfg, mcpWorkspace)
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	err = mcp.NewServer(registry, Version).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
