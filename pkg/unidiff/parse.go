package unidiff

import (
	"regexp"
	"strconv"
	"strings"
)

// Hunk is one contiguous change region extracted from a unified diff.
//
// NewStart is the 1-based line number in the target file where the hunk's
// content block begins. RemovedCount is the number of original-side lines the
// hunk spans (context plus removed lines, the old_count of the header). Lines
// holds the context and added lines in diff order with their markers
// stripped; it is the exact block that should occupy the hunk's region after
// application. A Hunk is never mutated once extracted.
type Hunk struct {
	NewStart     int
	RemovedCount int
	Lines        []string
}

// hunkHeaderRe matches "@@ -old_start[,old_count] +new_start[,new_count] @@"
// with optional trailing section text. Counts default to 1 when omitted, per
// unified-diff convention.
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// scanState tracks where the extraction scan is relative to the first hunk
// marker. Lines seen in scanHeader (diff --git, ---, +++, commit noise) carry
// no content and are discarded.
type scanState int

const (
	scanHeader scanState = iota
	scanHunk
)

// ExtractHunks scans diff text line by line and returns the hunks it
// describes, in order of appearance. A line that resembles a hunk header but
// fails numeric parsing is treated as ordinary text rather than aborting the
// scan, so a partially well-formed patch still yields its valid hunks.
func ExtractHunks(diffText string) []Hunk {
	var (
		hunks   []Hunk
		current *Hunk
	)
	state := scanHeader

	flush := func() {
		if current != nil {
			hunks = append(hunks, *current)
			current = nil
		}
	}

	for _, line := range splitLines(diffText) {
		if hunk, ok := parseHunkHeader(line); ok {
			flush()
			state = scanHunk
			current = &hunk
			continue
		}
		if state == scanHeader {
			continue
		}
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			// File headers of a following diff section, not content.
		case strings.HasPrefix(line, "+"):
			current.Lines = append(current.Lines, line[1:])
		case strings.HasPrefix(line, "-"):
			// Removed line: implied by RemovedCount, never re-emitted.
		case strings.HasPrefix(line, " "):
			current.Lines = append(current.Lines, line[1:])
		}
	}
	flush()
	return hunks
}

func parseHunkHeader(line string) (Hunk, bool) {
	match := hunkHeaderRe.FindStringSubmatch(line)
	if match == nil {
		return Hunk{}, false
	}
	removed, ok := parseCount(match[2])
	if !ok {
		return Hunk{}, false
	}
	newStart, err := strconv.Atoi(match[3])
	if err != nil {
		return Hunk{}, false
	}
	return Hunk{NewStart: newStart, RemovedCount: removed}, true
}

// parseCount resolves an optional hunk-header count, defaulting to 1 when the
// ",count" segment is absent.
func parseCount(value string) (int, bool) {
	if value == "" {
		return 1, true
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

// LooksLikeDiff reports whether content should be interpreted as a unified
// diff rather than literal file content. It mirrors the checks used by the
// write_file tool when routing payloads to the patch engine.
func LooksLikeDiff(content string) bool {
	if strings.HasPrefix(content, "diff --git") ||
		strings.HasPrefix(content, "---") ||
		strings.HasPrefix(content, "+++") {
		return true
	}
	return hunkHeaderRe.MatchString(content)
}

func splitLines(input string) []string {
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}
