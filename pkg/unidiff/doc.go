// Package unidiff parses unified-diff text and applies it to in-memory line
// sequences.
//
// The package is the self-contained half of diffkit's two-tier patch engine:
// when git is unavailable (or rejects a patch) the dispatcher falls back to
// these primitives. They are exported separately so that editors and testing
// utilities can apply hunks without touching the filesystem.
package unidiff
