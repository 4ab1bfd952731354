package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=...".
var Version = "dev"

var (
	configFile string
	debugLog   bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file (default $XDG_CONFIG_HOME/workbench/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Log at debug level")
}

var rootCmd = &cobra.Command{
	Use:   "workbench",
	Short: "Sandboxed workspace tools and model streaming for coding agents",
	Long: `workbench exposes a directory to coding agents through a small set of
sandboxed tools and relays chat completions from an OpenAI-compatible backend.

Examples:
  workbench serve --workspace .               # HTTP API on 127.0.0.1:8765
  workbench tool read '{"path":"go.mod"}'     # run a tool locally
  workbench tool write '{"path":"a.txt","content":"hi\n"}'
  workbench chat "summarize main.go"          # stream from a running server
  workbench mcp                               # MCP server on stdio
  workbench config                            # show effective configuration`,
	Version:           Version,
	SilenceUsage:      true,
	CompletionOptions: cobra.CompletionOptions{DisableDefaultCmd: true},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging installs a text slog handler on stderr. --debug wins over the
// configured level.
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if debugLog {
		lvl = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
