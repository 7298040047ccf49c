package unidiff

import "strings"

// Document is file content represented as lines without terminators, plus a
// flag recording whether the original content ended with a trailing newline.
// The flag survives application so Render can reproduce the convention.
type Document struct {
	Lines           []string
	TrailingNewline bool
}

// ParseDocument splits raw content into a Document, normalizing CR and CRLF
// line endings. Empty content yields a document with no lines.
func ParseDocument(content string) Document {
	normalized := strings.ReplaceAll(content, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	if normalized == "" {
		return Document{}
	}
	doc := Document{TrailingNewline: strings.HasSuffix(normalized, "\n")}
	doc.Lines = strings.Split(strings.TrimSuffix(normalized, "\n"), "\n")
	return doc
}

// Render joins the document's lines with single newlines, appending one
// trailing newline only when the original content carried one.
func (d Document) Render() string {
	if len(d.Lines) == 0 {
		return ""
	}
	content := strings.Join(d.Lines, "\n")
	if d.TrailingNewline {
		content += "\n"
	}
	return content
}

// Apply extracts the hunks in diffText and applies them to the document,
// returning the mutated copy. The trailing-newline flag is preserved.
func Apply(doc Document, diffText string) Document {
	return Document{
		Lines:           ApplyHunks(doc.Lines, ExtractHunks(diffText)),
		TrailingNewline: doc.TrailingNewline,
	}
}

// ApplyHunks applies hunks to a line sequence and returns the result. The
// input slice is copied, never mutated.
//
// Hunks are applied in reverse order of appearance: applying top to bottom
// would shift the line indices every later hunk was computed against, while
// the tail of the sequence is still untouched when a hunk is reached in
// reverse. Deletion windows that over-run the end of the sequence are clamped
// rather than rejected, so a stale patch degrades to a partial application
// instead of a panic.
func ApplyHunks(lines []string, hunks []Hunk) []string {
	result := append([]string(nil), lines...)
	for i := len(hunks) - 1; i >= 0; i-- {
		hunk := hunks[i]
		start := hunk.NewStart - 1
		if start < 0 {
			start = 0
		}
		if start > len(result) {
			start = len(result)
		}
		remove := hunk.RemovedCount
		if remove < 0 {
			remove = 0
		}
		if start+remove > len(result) {
			remove = len(result) - start
		}
		result = splice(result, start, remove, hunk.Lines)
	}
	return result
}

func splice(target []string, index, deleteCount int, replacement []string) []string {
	if deleteCount == 0 && len(replacement) == 0 {
		return target
	}
	result := make([]string, 0, len(target)-deleteCount+len(replacement))
	result = append(result, target[:index]...)
	result = append(result, replacement...)
	result = append(result, target[index+deleteCount:]...)
	return result
}
