package ui

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Theme defines the color palette for terminal output
type Theme struct {
	Primary   lipgloss.Color // accents (tool names, headers)
	Secondary lipgloss.Color // hunk headers

	Success lipgloss.Color
	Error   lipgloss.Color
	Warning lipgloss.Color
	Muted   lipgloss.Color // line numbers, context

	// Diff backgrounds
	DiffAddBg    lipgloss.Color
	DiffRemoveBg lipgloss.Color
}

// DefaultTheme returns the default color theme (gruvbox)
func DefaultTheme() *Theme {
	return &Theme{
		Primary:      lipgloss.Color("#b8bb26"), // gruvbox green
		Secondary:    lipgloss.Color("#83a598"), // gruvbox aqua
		Success:      lipgloss.Color("#b8bb26"),
		Error:        lipgloss.Color("#fb4934"), // gruvbox red
		Warning:      lipgloss.Color("#fabd2f"), // gruvbox yellow
		Muted:        lipgloss.Color("#928374"), // gruvbox gray
		DiffAddBg:    lipgloss.Color("#32361a"),
		DiffRemoveBg: lipgloss.Color("#3c1f1e"),
	}
}

// Status indicators
const (
	SuccessIcon = "✓"
	FailIcon    = "✗"
)

// Styles holds text styles bound to one output's renderer
type Styles struct {
	renderer *lipgloss.Renderer

	// Width truncates diff lines to this many cells. Zero disables it.
	Width int

	Bold    lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Muted   lipgloss.Style
	Tool    lipgloss.Style

	DiffAdd    lipgloss.Style
	DiffRemove lipgloss.Style
	DiffHeader lipgloss.Style
	LineNumber lipgloss.Style
}

// NewStyles creates styles for w. Color support is detected from w, so a
// pipe or buffer gets plain text.
func NewStyles(w io.Writer) *Styles {
	return NewStylesWithTheme(w, DefaultTheme())
}

// NewStylesWithTheme creates styles with a specific theme
func NewStylesWithTheme(w io.Writer, theme *Theme) *Styles {
	return newStyles(lipgloss.NewRenderer(w), theme)
}

// NewStylesWithProfile creates styles that always use profile, e.g.
// termenv.TrueColor for --color=always or termenv.Ascii for --color=never.
func NewStylesWithProfile(w io.Writer, profile termenv.Profile) *Styles {
	r := lipgloss.NewRenderer(w)
	r.SetColorProfile(profile)
	return newStyles(r, DefaultTheme())
}

func newStyles(r *lipgloss.Renderer, theme *Theme) *Styles {
	return &Styles{
		renderer: r,

		Bold:    r.NewStyle().Bold(true),
		Success: r.NewStyle().Foreground(theme.Success),
		Error:   r.NewStyle().Foreground(theme.Error),
		Warning: r.NewStyle().Foreground(theme.Warning),
		Muted:   r.NewStyle().Foreground(theme.Muted),
		Tool:    r.NewStyle().Bold(true).Foreground(theme.Primary),

		DiffAdd: r.NewStyle().
			Foreground(theme.Success).
			Background(theme.DiffAddBg),
		DiffRemove: r.NewStyle().
			Foreground(theme.Error).
			Background(theme.DiffRemoveBg),
		DiffHeader: r.NewStyle().
			Foreground(theme.Secondary).
			Bold(true),
		LineNumber: r.NewStyle().Foreground(theme.Muted),
	}
}

// Color reports whether output gets ANSI colors.
func (s *Styles) Color() bool {
	return s.renderer.ColorProfile() != termenv.Ascii
}

// FormatResult returns a styled success/fail result
func (s *Styles) FormatResult(success bool, msg string) string {
	if success {
		return s.Success.Render(SuccessIcon+" ") + msg
	}
	return s.Error.Render(FailIcon+" ") + msg
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the column count of f, or 0 if f is not a terminal.
func TerminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}
