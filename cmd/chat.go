package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/samsaffron/workbench/internal/client"
	"github.com/samsaffron/workbench/internal/config"
	"github.com/samsaffron/workbench/internal/llm"
	"github.com/samsaffron/workbench/internal/signal"
	"github.com/samsaffron/workbench/internal/ui"
	"github.com/spf13/cobra"
)

var (
	chatServer      string
	chatToken       string
	chatModel       string
	chatSystem      string
	chatTemperature float64
	chatMarkdown    bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt...|->",
	Short: "Stream a reply from a running workbench server",
	Long: `Send a prompt to the /v1/chat/stream endpoint of a running
"workbench serve" and print tokens as they arrive.

Examples:
  workbench chat "explain the retry loop in client.go"
  cat notes.md | workbench chat -
  workbench chat --markdown "summarize README.md as a table"
  workbench chat --server http://10.0.0.5:8765 --token $TOKEN "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running workbench server",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var (
	statusServer string
	statusToken  string
)

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)

	AddServerFlags(chatCmd, &chatServer, &chatToken)
	chatCmd.Flags().StringVarP(&chatModel, "model", "m", "", "Model override (default: server's backend.model)")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "System message")
	chatCmd.Flags().Float64VarP(&chatTemperature, "temperature", "t", 0, "Sampling temperature (0-2)")
	chatCmd.Flags().BoolVar(&chatMarkdown, "markdown", false, "Render the finished reply as markdown instead of streaming raw tokens")

	AddServerFlags(statusCmd, &statusServer, &statusToken)
}

func newClient(cfg *config.Config, server, token string) *client.Client {
	if server == "" {
		server = cfg.Serve.URL()
	}
	if token == "" {
		token = cfg.Serve.Token
	}
	return client.New(server, token, nil)
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	prompt, err := readPrompt(args, cmd.InOrStdin())
	if err != nil {
		return err
	}
	req := llm.ChatRequest{Model: chatModel}
	if chatSystem != "" {
		req.Messages = append(req.Messages, llm.SystemText(chatSystem))
	}
	req.Messages = append(req.Messages, llm.UserText(prompt))
	if cmd.Flags().Changed("temperature") {
		t := chatTemperature
		req.Temperature = &t
	}

	ctx, stop := signal.NotifyContext(cmd.Context())
	defer stop()

	var render markdownRenderer
	if chatMarkdown {
		style := "notty"
		if ui.IsTerminal(os.Stdout) {
			style = "dark"
		}
		render, err = newMarkdownRenderer(style, ui.TerminalWidth(os.Stdout))
		if err != nil {
			return err
		}
	}
	return streamChat(ctx, newClient(cfg, chatServer, chatToken), req, cmd.OutOrStdout(), render)
}

// markdownRenderer turns a finished reply into terminal output.
type markdownRenderer func(text string) (string, error)

func newMarkdownRenderer(style string, width int) (markdownRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	tr, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	return tr.Render, nil
}

// streamChat prints tokens to out as they arrive. With render set, tokens
// are held back and the done text is rendered once. An error event becomes
// the command's error.
func streamChat(ctx context.Context, c *client.Client, req llm.ChatRequest, out io.Writer, render markdownRenderer) error {
	var streamErr error
	err := c.Stream(ctx, req, func(ev llm.StreamEvent) error {
		switch ev.Type {
		case llm.EventToken:
			if render != nil {
				return nil
			}
			_, err := io.WriteString(out, ev.Text)
			return err
		case llm.EventDone:
			if render != nil {
				rendered, err := render(ev.Text)
				if err != nil {
					return err
				}
				_, err = io.WriteString(out, rendered)
				return err
			}
			_, err := io.WriteString(out, "\n")
			return err
		case llm.EventError:
			streamErr = ev.Err()
		}
		return nil
	})
	if err != nil {
		return err
	}
	return streamErr
}

func readPrompt(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read prompt from stdin: %w", err)
		}
		args = []string{string(data)}
	}
	prompt := strings.TrimSpace(strings.Join(args, " "))
	if prompt == "" {
		return "", fmt.Errorf("prompt is empty")
	}
	return prompt, nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := newClient(cfg, statusServer, statusToken).Status(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "status:    %s (%s)\n", st.Status, st.Version)
	fmt.Fprintf(w, "workspace: %s\n", st.Workspace)
	fmt.Fprintf(w, "backend:   %s\n", st.Backend.Name)
	fmt.Fprintf(w, "model:     %s\n", st.Backend.Model)
	fmt.Fprintf(w, "tools:     %s\n", strings.Join(st.Tools, ", "))
	return nil
}
