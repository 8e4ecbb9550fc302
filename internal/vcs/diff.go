package vcs

import "strings"

// diffLookahead bounds the resynchronization scan. A larger value finds
// tighter hunks across big insertions at the cost of more comparisons per
// mismatch; there is no value that is optimal for every input.
const diffLookahead = 50

// diffContext is the number of unchanged leading lines carried into a hunk.
const diffContext = 3

// Diff computes ordered hunks of changed lines between two text blobs. It is
// a bounded-cost resynchronizing heuristic, not an LCS-minimal diff: when no
// matching line pair is found within diffLookahead steps the hunk simply
// grows past the true resynchronization point.
func Diff(oldText, newText string) []DiffHunk {
	oldLines := strings.Split(oldText, "\n")
	newLines := strings.Split(newText, "\n")

	var hunks []DiffHunk
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		// Skip the common region.
		for i < len(oldLines) && j < len(newLines) && oldLines[i] == newLines[j] {
			i++
			j++
		}
		if i >= len(oldLines) && j >= len(newLines) {
			break
		}

		hunk := DiffHunk{OldStart: i + 1, NewStart: j + 1}
		for k := max(0, i-diffContext); k < i; k++ {
			hunk.Lines = append(hunk.Lines, DiffLine{Content: oldLines[k], Origin: ' '})
		}

		oldEnd, newEnd := resync(oldLines, newLines, i, j)

		for k := i; k < oldEnd; k++ {
			hunk.Lines = append(hunk.Lines, DiffLine{Content: oldLines[k], Origin: '-'})
		}
		for k := j; k < newEnd; k++ {
			hunk.Lines = append(hunk.Lines, DiffLine{Content: newLines[k], Origin: '+'})
		}
		hunk.OldLines = oldEnd - i
		hunk.NewLines = newEnd - j
		hunks = append(hunks, hunk)

		i, j = oldEnd, newEnd
	}
	return hunks
}

// resync advances a trial cursor pair in lockstep from (i, j) looking for the
// next equal line pair. When either side runs out, the remainder of both
// sides is consumed into the current hunk.
func resync(oldLines, newLines []string, i, j int) (int, int) {
	oldEnd, newEnd := i, j
	for step := 0; step < diffLookahead; step++ {
		oldEnd++
		newEnd++
		if oldEnd >= len(oldLines) || newEnd >= len(newLines) {
			return len(oldLines), len(newLines)
		}
		if oldLines[oldEnd] == newLines[newEnd] {
			return oldEnd, newEnd
		}
	}
	return oldEnd, newEnd
}
