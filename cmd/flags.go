package cmd

import (
	"github.com/samsaffron/workbench/internal/tools"
	"github.com/spf13/cobra"
)

// AddWorkspaceFlag adds the --workspace/-w flag
func AddWorkspaceFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVarP(dest, "workspace", "w", "", "Workspace root (default from config, current directory)")
}

// AddServerFlags adds --server and --token for commands that talk to a
// running `workbench serve`.
func AddServerFlags(cmd *cobra.Command, server, token *string) {
	cmd.Flags().StringVar(server, "server", "", "Server base URL (default from serve.host/serve.port)")
	cmd.Flags().StringVar(token, "token", "", "Bearer token (default serve.token or $WORKBENCH_SERVE_TOKEN)")
}

// toolNameCompletion completes the first argument of `workbench tool`.
func toolNameCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return tools.AllToolNames(), cobra.ShellCompDirectiveNoFileComp
}
