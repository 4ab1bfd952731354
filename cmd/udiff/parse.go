// Package udiff parses, applies and produces unified diffs.
package udiff

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LineType identifies the role of a hunk line.
type LineType int

const (
	Context LineType = iota // ' ' prefix
	Remove                  // '-' prefix
	Add                     // '+' prefix
)

func (t LineType) String() string {
	switch t {
	case Context:
		return "context"
	case Remove:
		return "remove"
	case Add:
		return "add"
	default:
		return "unknown"
	}
}

// Line is a single hunk line. Content includes its trailing newline unless the
// line was followed by a "\ No newline at end of file" marker.
type Line struct {
	Type    LineType
	Content string
}

// Hunk is one @@ section of a file diff.
type Hunk struct {
	OldStart int // 1-indexed; 0 when the hunk inserts into an empty file
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// FileDiff groups the hunks for one file.
type FileDiff struct {
	OldPath string
	NewPath string
	Hunks   []Hunk
}

// Path returns the most useful name for the diff target, with a/ b/ prefixes stripped.
func (f FileDiff) Path() string {
	p := f.NewPath
	if p == "" || p == "/dev/null" {
		p = f.OldPath
	}
	return StripPrefix(p)
}

// StripPrefix removes git-style a/ or b/ prefixes.
func StripPrefix(p string) string {
	if strings.HasPrefix(p, "a/") || strings.HasPrefix(p, "b/") {
		return p[2:]
	}
	return p
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// Parse parses unified diff text. Hunk bodies are read up to the counts in
// their headers first, so removed lines that start with "--" are not mistaken
// for file headers.
func Parse(text string) ([]FileDiff, error) {
	lines := splitKeepNewline(text)

	var diffs []FileDiff
	var current *FileDiff

	flush := func() {
		if current != nil && len(current.Hunks) > 0 {
			diffs = append(diffs, *current)
		}
		current = nil
	}

	for i := 0; i < len(lines); {
		raw := lines[i]
		line := strings.TrimRight(raw, "\r\n")

		switch {
		case strings.HasPrefix(line, "diff "):
			flush()
			i++
		case strings.HasPrefix(line, "--- "):
			flush()
			current = &FileDiff{OldPath: headerPath(line[4:])}
			i++
		case strings.HasPrefix(line, "+++ "):
			if current == nil {
				current = &FileDiff{}
			}
			current.NewPath = headerPath(line[4:])
			i++
		case strings.HasPrefix(line, "@@"):
			if current == nil {
				current = &FileDiff{}
			}
			hunk, next, err := parseHunk(lines, i)
			if err != nil {
				return nil, err
			}
			current.Hunks = append(current.Hunks, hunk)
			i = next
		default:
			// Preamble text (index lines, commit messages) is ignored.
			i++
		}
	}
	flush()

	if len(diffs) == 0 {
		return nil, fmt.Errorf("no hunks found")
	}
	return diffs, nil
}

func parseHunk(lines []string, start int) (Hunk, int, error) {
	header := strings.TrimRight(lines[start], "\r\n")
	m := hunkHeaderRe.FindStringSubmatch(header)
	if m == nil {
		return Hunk{}, 0, fmt.Errorf("line %d: malformed hunk header %q", start+1, header)
	}

	h := Hunk{
		OldStart: atoi(m[1]),
		OldCount: countOrOne(m[2]),
		NewStart: atoi(m[3]),
		NewCount: countOrOne(m[4]),
	}

	oldSeen, newSeen := 0, 0
	i := start + 1
	for i < len(lines) {
		raw := lines[i]
		if strings.HasPrefix(raw, `\`) {
			trimLastNewline(&h)
			i++
			continue
		}

		inWindow := oldSeen < h.OldCount || newSeen < h.NewCount
		if strings.HasPrefix(raw, "@@") {
			break
		}
		if !inWindow {
			// Past the declared counts only unambiguous hunk lines extend the hunk.
			if raw == "" || raw == "\n" || raw == "\r\n" || strings.IndexByte(" +-", raw[0]) < 0 ||
				strings.HasPrefix(raw, "--- ") || strings.HasPrefix(raw, "+++ ") {
				break
			}
		}

		var lt LineType
		var content string
		switch {
		case raw == "\n" || raw == "\r\n":
			// Editors often strip the single space from blank context lines.
			lt, content = Context, raw
		case raw[0] == ' ':
			lt, content = Context, raw[1:]
		case raw[0] == '-':
			lt, content = Remove, raw[1:]
		case raw[0] == '+':
			lt, content = Add, raw[1:]
		default:
			return Hunk{}, 0, fmt.Errorf("line %d: unexpected line in hunk: %q", i+1, strings.TrimRight(raw, "\r\n"))
		}
		// Only a "\ No newline" marker may strip the terminator.
		if !strings.HasSuffix(content, "\n") {
			content += "\n"
		}

		switch lt {
		case Context:
			oldSeen++
			newSeen++
		case Remove:
			oldSeen++
		case Add:
			newSeen++
		}
		h.Lines = append(h.Lines, Line{Type: lt, Content: content})
		i++
	}

	if len(h.Lines) == 0 {
		return Hunk{}, 0, fmt.Errorf("hunk %q is empty", header)
	}
	// Counts written by hand are frequently wrong; the body is authoritative.
	h.OldCount, h.NewCount = oldSeen, newSeen

	return h, i, nil
}

// trimLastNewline applies a "\ No newline at end of file" marker to the
// preceding hunk line.
func trimLastNewline(h *Hunk) {
	if len(h.Lines) == 0 {
		return
	}
	last := &h.Lines[len(h.Lines)-1]
	last.Content = strings.TrimSuffix(last.Content, "\n")
}

func headerPath(s string) string {
	// Strip trailing timestamps ("path\t2024-01-01 ...").
	if idx := strings.IndexByte(s, '\t'); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

func splitKeepNewline(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func countOrOne(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}
