package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/samsaffron/workbench/cmd/udiff"
	"github.com/samsaffron/workbench/internal/tools"
	"github.com/samsaffron/workbench/internal/ui"
	"github.com/spf13/cobra"
)

var (
	toolWorkspace   string
	toolApprove     bool
	toolRaw         bool
	toolInteractive bool
	toolColor       string
)

var toolCmd = &cobra.Command{
	Use:   "tool <name> [json-args|-]",
	Short: "Invoke a workspace tool locally",
	Long: `Invoke one of the workspace tools and print its {ok, result|error} envelope.

Arguments are a JSON object, read from stdin when given as "-". Mutations
are previews unless --approve is set or the arguments contain "approve": true.

With --interactive, a write or applyPatch preview is shown as a diff and
applied after confirmation.

Tools: list, read, write, applyPatch, glob, grep

Examples:
  workbench tool list
  workbench tool grep '{"pattern":"TODO","cwd":"internal"}'
  workbench tool write '{"path":"notes.txt","content":"hello\n"}'
  workbench tool write -i '{"path":"notes.txt","content":"hello\n"}'
  git diff | jq -Rs '{path:"main.go",diff:.}' | workbench tool applyPatch - --approve`,
	Args:              cobra.RangeArgs(1, 2),
	ValidArgsFunction: toolNameCompletion,
	RunE:              runTool,
}

func init() {
	rootCmd.AddCommand(toolCmd)
	AddWorkspaceFlag(toolCmd, &toolWorkspace)
	toolCmd.Flags().BoolVar(&toolApprove, "approve", false, "Apply write/applyPatch instead of previewing")
	toolCmd.Flags().BoolVar(&toolRaw, "json", false, "Always print the raw JSON envelope")
	toolCmd.Flags().BoolVarP(&toolInteractive, "interactive", "i", false, "Confirm and apply a write/applyPatch preview")
	toolCmd.Flags().StringVar(&toolColor, "color", "auto", "Color output: auto, always or never")
	_ = toolCmd.RegisterFlagCompletionFunc("color", cobra.FixedCompletions([]string{"auto", "always", "never"}, cobra.ShellCompDirectiveNoFileComp))
}

func runTool(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyWorkspaceOverride(cfg, toolWorkspace)
	registry, err := newRegistry(cfg)
	if err != nil {
		return err
	}

	var raw string
	if len(args) > 1 {
		raw = args[1]
	}
	toolArgs, err := readToolArgs(raw, cmd.InOrStdin(), toolApprove)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	styles, err := toolStyles(out, toolColor, toolRaw)
	if err != nil {
		return err
	}

	env := registry.Invoke(cmd.Context(), args[0], toolArgs)
	if toolInteractive && isPreview(env) {
		if styles == nil {
			styles = ui.NewStylesWithProfile(out, termenv.Ascii)
		}
		env, err = interactiveApply(cmd.Context(), registry, args[0], toolArgs, env, out, styles, confirmApply)
		if err != nil {
			return err
		}
		if env.Result == nil && env.OK {
			return nil
		}
	}
	if err := printEnvelope(out, env, styles); err != nil {
		return err
	}
	if !env.OK {
		cmd.SilenceErrors = true
		return fmt.Errorf("%s", env.Error)
	}
	return nil
}

// readToolArgs returns the JSON object to pass to the tool. approve sets
// "approve": true on top of whatever the caller provided.
func readToolArgs(raw string, stdin io.Reader, approve bool) (json.RawMessage, error) {
	if raw == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read args from stdin: %w", err)
		}
		raw = string(data)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	if !approve {
		return json.RawMessage(raw), nil
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, fmt.Errorf("tool arguments must be a JSON object: %w", err)
	}
	if obj == nil {
		obj = map[string]any{}
	}
	obj["approve"] = true
	data, err := json.Marshal(obj)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// toolStyles picks output styles for --color. A nil result means raw JSON.
func toolStyles(w io.Writer, mode string, raw bool) (*ui.Styles, error) {
	var styles *ui.Styles
	switch mode {
	case "auto", "":
		if raw || !ui.IsTerminal(os.Stdout) {
			return nil, nil
		}
		styles = ui.NewStyles(w)
	case "always":
		styles = ui.NewStylesWithProfile(w, termenv.TrueColor)
	case "never":
		styles = ui.NewStylesWithProfile(w, termenv.Ascii)
	default:
		return nil, fmt.Errorf("invalid --color %q (want auto, always or never)", mode)
	}
	if raw {
		return nil, nil
	}
	if ui.IsTerminal(os.Stdout) {
		styles.Width = ui.TerminalWidth(os.Stdout)
	}
	return styles, nil
}

func isPreview(env tools.Envelope) bool {
	m, ok := env.Result.(tools.MutationResult)
	return env.OK && ok && m.Status == tools.StatusPreview
}

// confirmApply asks on the terminal whether to apply a previewed change.
var confirmApply = func(title string) (bool, error) {
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(title).
				Affirmative("Apply").
				Negative("Skip").
				WithButtonAlignment(lipgloss.Left),
		),
	).WithShowHelp(false).WithShowErrors(false)
	if err := form.Run(); err != nil {
		return false, err
	}
	return form.GetBool("confirm"), nil
}

// interactiveApply shows the preview diff and re-invokes the tool with
// approve set once confirmed. A declined or empty change returns an OK
// envelope with no result.
func interactiveApply(ctx context.Context, registry *tools.Registry, name string, args json.RawMessage,
	preview tools.Envelope, w io.Writer, styles *ui.Styles, confirm func(string) (bool, error)) (tools.Envelope, error) {
	m := preview.Result.(tools.MutationResult)
	diff := previewDiff(registry.Workspace(), m)
	ui.RenderDiff(w, styles, m.Path, diff)
	if diff == "" {
		return tools.Envelope{OK: true}, nil
	}

	ok, err := confirm(fmt.Sprintf("Apply changes to %s?", m.Path))
	if err != nil {
		return tools.Envelope{}, fmt.Errorf("confirm: %w", err)
	}
	if !ok {
		fmt.Fprintln(w, styles.Muted.Render("not applied"))
		return tools.Envelope{OK: true}, nil
	}
	approved, err := readToolArgs(string(args), nil, true)
	if err != nil {
		return tools.Envelope{}, err
	}
	return registry.Invoke(ctx, name, approved), nil
}

// previewDiff returns the diff a preview would apply. applyPatch previews
// carry the patched content, so it is diffed against the file on disk.
func previewDiff(ws *tools.Workspace, m tools.MutationResult) string {
	if m.Diff != nil {
		return *m.Diff
	}
	if m.Content == nil {
		return ""
	}
	var before string
	if abs, err := ws.Resolve(m.Path); err == nil {
		if data, err := os.ReadFile(abs); err == nil {
			before = string(data)
		}
	}
	return udiff.Diff(m.Path, before, *m.Content)
}

// printEnvelope writes env as indented JSON. With styles set, a write
// preview is shown as a coloured diff and failures get a status line.
func printEnvelope(w io.Writer, env tools.Envelope, styles *ui.Styles) error {
	if styles != nil {
		if m, ok := env.Result.(tools.MutationResult); ok {
			switch {
			case m.Status == tools.StatusPreview && m.Diff != nil:
				ui.RenderDiff(w, styles, m.Path, *m.Diff)
				fmt.Fprintln(w, styles.Muted.Render("preview only; re-run with --approve to apply"))
				return nil
			case m.Status == tools.StatusApplied && m.BytesWritten != nil:
				fmt.Fprintln(w, styles.FormatResult(true, fmt.Sprintf("wrote %d bytes to %s", *m.BytesWritten, m.Path)))
				return nil
			}
		}
		if !env.OK {
			fmt.Fprintln(w, styles.FormatResult(false, env.Error))
			return nil
		}
	}

	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
