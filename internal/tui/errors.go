package tui

import "strings"

// humanError shortens a wrapped failure message to its innermost cause
// for the symbol table. "fetch KRAS: umap: connection refused" becomes
// "Connection refused".
func humanError(msg string) string {
	if msg == "" {
		return ""
	}
	parts := strings.Split(msg, ": ")
	last := parts[len(parts)-1]
	if last == "" {
		return msg
	}
	return strings.ToUpper(last[:1]) + last[1:]
}
