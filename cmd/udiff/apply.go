package udiff

import (
	"fmt"
	"strings"
)

// HunkError reports a hunk whose context or removed lines are not present in
// the content being patched.
type HunkError struct {
	Index    int // 1-indexed
	OldStart int
	Reason   string
}

func (e *HunkError) Error() string {
	return fmt.Sprintf("hunk %d (@@ -%d): %s", e.Index, e.OldStart, e.Reason)
}

// Apply applies the hunks to content and returns the patched text.
//
// Matching is strict: every context and removed line must equal the content
// byte for byte, including its line terminator. Hunks are applied in order
// and never overlap. When a hunk's old lines occur at several offsets the one
// nearest to the declared line (shifted by the drift observed for the previous
// hunk) wins, with the earlier offset preferred on a tie. Either every hunk
// applies or an error is returned and nothing is produced.
func Apply(content string, hunks []Hunk) (string, error) {
	src := splitKeepNewline(content)

	out := make([]string, 0, len(src))
	cursor := 0
	drift := 0

	for i, hunk := range hunks {
		oldSeq, newSeq := extractSequences(hunk.Lines)

		declared := hunk.OldStart - 1
		if len(oldSeq) == 0 {
			// "-N,0" inserts after line N.
			declared = hunk.OldStart
		}
		if declared < 0 {
			declared = 0
		}

		pos, err := locate(src, oldSeq, cursor, declared+drift)
		if err != nil {
			return "", &HunkError{Index: i + 1, OldStart: hunk.OldStart, Reason: err.Error()}
		}

		out = append(out, src[cursor:pos]...)
		out = append(out, newSeq...)
		cursor = pos + len(oldSeq)
		drift = pos - declared
	}
	out = append(out, src[cursor:]...)

	return strings.Join(out, ""), nil
}

// extractSequences splits hunk lines into the text expected before and after.
func extractSequences(hunkLines []Line) (old, new []string) {
	for _, line := range hunkLines {
		switch line.Type {
		case Context:
			old = append(old, line.Content)
			new = append(new, line.Content)
		case Remove:
			old = append(old, line.Content)
		case Add:
			new = append(new, line.Content)
		}
	}
	return old, new
}

// locate returns the offset at or after minPos where oldSeq matches lines,
// choosing the match nearest to want.
func locate(lines, oldSeq []string, minPos, want int) (int, error) {
	if len(oldSeq) == 0 {
		// Pure insertion: nothing to verify, clamp into the valid range.
		return clamp(want, minPos, len(lines)), nil
	}

	best := -1
	bestDist := 0
	for i := minPos; i <= len(lines)-len(oldSeq); i++ {
		if !matchSequence(lines[i:], oldSeq) {
			continue
		}
		dist := abs(i - want)
		if best < 0 || dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 {
		return 0, fmt.Errorf("could not find matching lines:\n%s", strings.Join(oldSeq, ""))
	}
	return best, nil
}

// matchSequence checks if the lines starting at content match the pattern exactly.
func matchSequence(content []string, pattern []string) bool {
	if len(content) < len(pattern) {
		return false
	}
	for i, p := range pattern {
		if content[i] != p {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
