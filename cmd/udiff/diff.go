package udiff

import (
	diff "github.com/shogoki/gotextdiff"
)

// Diff returns a unified diff turning oldContent into newContent, labeled with
// name on both sides. Identical inputs produce an empty string.
func Diff(name, oldContent, newContent string) string {
	if oldContent == newContent {
		return ""
	}
	return string(diff.Diff(name, []byte(oldContent), name, []byte(newContent)))
}
