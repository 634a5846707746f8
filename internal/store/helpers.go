// ABOUTME: SQL helper functions for query construction.
// ABOUTME: Escaping for user-supplied LIKE patterns.

package store

import "strings"

// escapeSQLLike escapes \, %, and _ so user input matches literally in a
// LIKE ... ESCAPE '\' clause. Backslash goes first to avoid double-escaping.
func escapeSQLLike(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "\\", "\\\\")
	pattern = strings.ReplaceAll(pattern, "%", "\\%")
	pattern = strings.ReplaceAll(pattern, "_", "\\_")
	return pattern
}
