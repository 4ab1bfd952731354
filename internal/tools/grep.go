package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/samsaffron/workbench/internal/llm"
)

// maxGrepFileSize skips files too large to be worth scanning line by line.
const maxGrepFileSize = 10 * 1024 * 1024

// Grep searches files under relDir for lines matching pattern, compiled as a
// case-insensitive regular expression. Binary and unreadable files are
// skipped. Collection stops once maxMatches lines were found, even mid-file.
// maxMatches <= 0 selects DefaultMaxMatches. relDir may also name one file.
func (w *Workspace) Grep(ctx context.Context, pattern, relDir string, maxMatches int) ([]GrepMatch, error) {
	if maxMatches <= 0 {
		maxMatches = DefaultMaxMatches
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, NewToolErrorf(ErrInvalidArguments, "invalid regex pattern: %v", err)
	}

	base, err := w.Resolve(relDir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(base)
	if err != nil {
		return nil, statError(relDir, err)
	}

	matches := []GrepMatch{}
	if !info.IsDir() {
		return searchFile(base, w.Rel(base), re, matches, maxMatches), nil
	}

	err = w.walk(ctx, base, func(path string, d fs.DirEntry) error {
		if !d.Type().IsRegular() {
			return nil
		}
		matches = searchFile(path, w.Rel(path), re, matches, maxMatches)
		if len(matches) >= maxMatches {
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// searchFile appends matches from one file until the total reaches limit.
// Files that cannot be read or look binary contribute nothing.
func searchFile(path, rel string, re *regexp.Regexp, matches []GrepMatch, limit int) []GrepMatch {
	info, err := os.Stat(path)
	if err != nil || info.Size() > maxGrepFileSize {
		return matches
	}
	data, err := os.ReadFile(path)
	if err != nil || isBinaryContent(data) {
		return matches
	}

	text := string(data)
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return matches
	}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if !re.MatchString(line) {
			continue
		}
		matches = append(matches, GrepMatch{File: rel, Line: i + 1, Text: line})
		if len(matches) >= limit {
			break
		}
	}
	return matches
}

// isBinaryContent sniffs the first 512 bytes the way net/http does and also
// treats any NUL byte in that window as binary.
func isBinaryContent(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	contentType := http.DetectContentType(head)
	return !strings.HasPrefix(contentType, "text/") &&
		!strings.Contains(contentType, "json") &&
		!strings.Contains(contentType, "xml")
}

// GrepTool implements the grep tool.
type GrepTool struct {
	ws     *Workspace
	limits Limits
}

// NewGrepTool creates a new GrepTool.
func NewGrepTool(ws *Workspace, limits Limits) *GrepTool {
	return &GrepTool{ws: ws, limits: limits}
}

// GrepArgs are the arguments for grep.
type GrepArgs struct {
	Pattern    string `json:"pattern"`
	Cwd        string `json:"cwd,omitempty"`
	MaxMatches int    `json:"maxMatches,omitempty"`
}

func (t *GrepTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        GrepToolName,
		Description: "Search file contents with a case-insensitive regular expression. Returns {file, line, text} for each matching line.",
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{
					"type":        "string",
					"description": "Regular expression (RE2 syntax), matched case-insensitively",
				},
				"cwd": map[string]interface{}{
					"type":        "string",
					"description": "Directory or file to search (default: the root)",
				},
				"maxMatches": map[string]interface{}{
					"type":        "integer",
					"description": fmt.Sprintf("Maximum matching lines to return (default: %d)", t.limits.MaxMatches),
				},
			},
			"required":             []string{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *GrepTool) Preview(args json.RawMessage) string {
	var a GrepArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Pattern == "" {
		return ""
	}
	if a.Cwd != "" {
		return fmt.Sprintf("/%s/ in %s", a.Pattern, a.Cwd)
	}
	return fmt.Sprintf("/%s/", a.Pattern)
}

func (t *GrepTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a GrepArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Pattern == "" {
		return nil, NewToolError(ErrInvalidArguments, "pattern is required")
	}
	if a.MaxMatches < 0 {
		return nil, NewToolError(ErrInvalidArguments, "maxMatches must be positive")
	}

	maxMatches := a.MaxMatches
	if maxMatches == 0 {
		maxMatches = t.limits.MaxMatches
	}
	return t.ws.Grep(ctx, a.Pattern, a.Cwd, maxMatches)
}
