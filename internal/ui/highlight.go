package ui

import (
	"fmt"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const highlightStyle = "monokai"

// Highlighter paints diff lines in 24-bit color using a lexer picked from
// the file name.
type Highlighter struct {
	lexer chroma.Lexer
	style *chroma.Style
}

// NewHighlighter picks a lexer by file name. Unknown extensions get a nil
// *Highlighter, which is still safe to call.
func NewHighlighter(path string) *Highlighter {
	lexer := lexers.Match(path)
	if lexer == nil {
		return nil
	}
	style := styles.Get(highlightStyle)
	if style == nil {
		style = styles.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(lexer), style: style}
}

// HighlightLine wraps each token of line in SGR escapes. bg, when set, is
// repeated on every token so the row keeps its add/remove tint. Lexer
// failures fall back to the plain line.
func (h *Highlighter) HighlightLine(line string, bg *[3]int) string {
	if h == nil {
		return line
	}
	tokens, err := h.lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var out strings.Builder
	for tok := tokens(); tok != chroma.EOF; tok = tokens() {
		text := strings.TrimRight(tok.Value, "\n")
		if text == "" {
			continue
		}
		codes := sgrCodes(h.style.Get(tok.Type), bg)
		if codes == "" {
			out.WriteString(text)
			continue
		}
		fmt.Fprintf(&out, "\x1b[%sm%s\x1b[0m", codes, text)
	}
	return out.String()
}

func sgrCodes(entry chroma.StyleEntry, bg *[3]int) string {
	var codes []string
	if bg != nil {
		codes = append(codes, fmt.Sprintf("48;2;%d;%d;%d", bg[0], bg[1], bg[2]))
	}
	if c := entry.Colour; c.IsSet() {
		codes = append(codes, fmt.Sprintf("38;2;%d;%d;%d", c.Red(), c.Green(), c.Blue()))
	}
	if entry.Bold == chroma.Yes {
		codes = append(codes, "1")
	}
	if entry.Italic == chroma.Yes {
		codes = append(codes, "3")
	}
	return strings.Join(codes, ";")
}
