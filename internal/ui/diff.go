package ui

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

var hunkRe = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// True-color backgrounds for highlighted diff lines; match the default theme.
var (
	diffAddBg    = [3]int{50, 54, 26}
	diffRemoveBg = [3]int{60, 31, 30}
)

// RenderDiff writes a colorized unified diff with line numbers. Removed lines
// are numbered by their virtual position in the new file so a replacement
// block lines up with its additions.
func RenderDiff(w io.Writer, styles *Styles, path, diffText string) {
	if diffText == "" {
		fmt.Fprintf(w, "%s %s\n", styles.Bold.Render("No changes:"), path)
		return
	}
	fmt.Fprintf(w, "%s %s\n", styles.Bold.Render("Edit:"), path)

	var highlighter *Highlighter
	if styles.Color() {
		highlighter = NewHighlighter(path)
	}
	width := lineNumberWidth(diffText)
	var newLineNum, deletionOffset, hunkCount int

	for _, line := range strings.Split(diffText, "\n") {
		if line == "" || strings.HasPrefix(line, "--- ") || strings.HasPrefix(line, "+++ ") ||
			strings.HasPrefix(line, "diff ") || strings.HasPrefix(line, `\`) {
			continue
		}
		content := fitContent(line[1:], styles.Width, width+3)
		switch line[0] {
		case '@':
			if m := hunkRe.FindStringSubmatch(line); m != nil {
				newLineNum, _ = strconv.Atoi(m[2])
			}
			deletionOffset = 0
			if hunkCount > 0 {
				fmt.Fprintln(w, styles.Muted.Render(strings.Repeat(" ", width)+"  ..."))
			}
			hunkCount++
		case '-':
			num := styles.LineNumber.Render(fmt.Sprintf("%*d- ", width, newLineNum+deletionOffset))
			fmt.Fprintln(w, num+colorLine(highlighter, styles, content, '-'))
			deletionOffset++
		case '+':
			deletionOffset = 0
			num := styles.LineNumber.Render(fmt.Sprintf("%*d+ ", width, newLineNum))
			fmt.Fprintln(w, num+colorLine(highlighter, styles, content, '+'))
			newLineNum++
		case ' ':
			deletionOffset = 0
			num := styles.LineNumber.Render(fmt.Sprintf("%*d  ", width, newLineNum))
			fmt.Fprintln(w, num+colorLine(highlighter, styles, content, ' '))
			newLineNum++
		default:
			fmt.Fprintln(w, line)
		}
	}
}

func colorLine(h *Highlighter, styles *Styles, content string, kind byte) string {
	if h != nil {
		switch kind {
		case '-':
			return h.HighlightLine(content, &diffRemoveBg)
		case '+':
			return h.HighlightLine(content, &diffAddBg)
		default:
			return h.HighlightLine(content, nil)
		}
	}
	switch kind {
	case '-':
		return styles.DiffRemove.Render(content)
	case '+':
		return styles.DiffAdd.Render(content)
	default:
		return content
	}
}

// fitContent truncates content so gutter plus content fits in width cells.
func fitContent(content string, width, gutter int) string {
	if width <= 0 || width <= gutter {
		return content
	}
	return runewidth.Truncate(content, width-gutter, "…")
}

// lineNumberWidth sizes the gutter from the largest line number any hunk
// can reach.
func lineNumberWidth(diffText string) int {
	lines := strings.Split(diffText, "\n")
	maxStart := 0
	for _, line := range lines {
		m := hunkRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, s := range m[1:] {
			if n, _ := strconv.Atoi(s); n > maxStart {
				maxStart = n
			}
		}
	}
	width := len(strconv.Itoa(maxStart + len(lines)))
	if width < 3 {
		width = 3
	}
	return width
}
