package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"

	"github.com/samsaffron/workbench/cmd/udiff"
	"github.com/samsaffron/workbench/internal/llm"
)

// ApplyPatch applies a unified diff to a workspace file (a missing file is
// empty). A patch that fails to parse or apply yields a failed result and
// never touches disk. Otherwise approve=false returns the full post-apply
// content and approve=true writes it.
func (w *Workspace) ApplyPatch(rel, patch string, approve bool) (MutationResult, error) {
	abs, err := w.Resolve(rel)
	if err != nil {
		return MutationResult{}, err
	}
	before, mode, exists, err := readExisting(rel, abs)
	if err != nil {
		return MutationResult{}, err
	}

	after, err := patchContent(rel, before, patch)
	if err != nil {
		return Failed(rel, PatchDoesNotApply, err.Error()), nil
	}

	if !approve {
		return ContentPreview(rel, after), nil
	}

	if !exists {
		mode = 0644
	}
	if err := atomicWrite(abs, after, mode); err != nil {
		return MutationResult{}, err
	}
	return Applied(rel, len(after)), nil
}

// patchContent picks the section of patch that targets rel and applies it to
// content. A patch with a single section applies whatever its headers say.
func patchContent(rel, content, patch string) (string, error) {
	files, err := udiff.Parse(patch)
	if err != nil {
		return "", err
	}

	var target *udiff.FileDiff
	if len(files) == 1 {
		target = &files[0]
	} else {
		want := path.Clean(filepath.ToSlash(rel))
		for i := range files {
			if files[i].Path() == want {
				target = &files[i]
				break
			}
		}
	}
	if target == nil {
		return "", fmt.Errorf("no section of the patch targets %s", rel)
	}
	return udiff.Apply(content, target.Hunks)
}

// ApplyPatchTool implements the applyPatch tool.
type ApplyPatchTool struct {
	ws *Workspace
}

// NewApplyPatchTool creates a new ApplyPatchTool.
func NewApplyPatchTool(ws *Workspace) *ApplyPatchTool {
	return &ApplyPatchTool{ws: ws}
}

// ApplyPatchArgs are the arguments for applyPatch.
type ApplyPatchArgs struct {
	Path    string `json:"path"`
	Diff    string `json:"diff"`
	Approve bool   `json:"approve,omitempty"`
}

func (t *ApplyPatchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: ApplyPatchToolName,
		Description: `Apply a unified diff to one file. Context and removed lines must match the file exactly; a patch that does not apply is rejected whole.
Without approve this returns the resulting file content and changes nothing. Call again with approve=true to write it.

Format:
--- a/path/to/file
+++ b/path/to/file
@@ -12,3 +12,3 @@
 context line
-old line
+new line
 context line`,
		Schema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path relative to the workspace root",
				},
				"diff": map[string]interface{}{
					"type":        "string",
					"description": "Unified diff text",
				},
				"approve": map[string]interface{}{
					"type":        "boolean",
					"description": "Write to disk instead of previewing (default: false)",
				},
			},
			"required":             []string{"path", "diff"},
			"additionalProperties": false,
		},
	}
}

func (t *ApplyPatchTool) Preview(args json.RawMessage) string {
	var a ApplyPatchArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	if a.Approve {
		return a.Path
	}
	return fmt.Sprintf("%s (dry run)", a.Path)
}

func (t *ApplyPatchTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var a ApplyPatchArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, NewToolError(ErrInvalidArguments, "path is required")
	}
	if a.Diff == "" {
		return nil, NewToolError(ErrInvalidArguments, "diff is required")
	}
	return t.ws.ApplyPatch(a.Path, a.Diff, a.Approve)
}
