package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/cpritcha/catalog/internal/author"
	"github.com/cpritcha/catalog/internal/reference"
)

// Constants for output formatting.
const (
	ListTitleMaxLen   = 50 // Used in list command output
	DetailTitleMaxLen = 70 // Used in get command detail view
	TextWrapWidth     = 60 // Standard text wrap width
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputHuman writes a human-readable string to stdout.
func outputHuman(format string, args ...any) {
	fmt.Printf(format, args...)
}

// exitWithError outputs an error in the appropriate format (human or JSON),
// shuts down the active container and exits.
func exitWithError(code int, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	shutdownActive()
	os.Exit(code)
}

// exitOnError exits with the code mapped from err when err is non-nil.
func exitOnError(err error, what string) {
	if err != nil {
		exitWithError(exitCodeFor(err), "%s: %v", what, err)
	}
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
}

// UpdateResponse is the response for config set commands.
type UpdateResponse struct {
	Status string `json:"status"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// wrapText wraps text at width, indenting continuation lines.
func wrapText(text string, width int, indent string) string {
	if len(text) <= width {
		return text
	}

	var lines []string
	var currentLine strings.Builder

	for _, word := range strings.Fields(text) {
		if currentLine.Len() == 0 {
			currentLine.WriteString(word)
		} else if currentLine.Len()+1+len(word) <= width {
			currentLine.WriteString(" ")
			currentLine.WriteString(word)
		} else {
			lines = append(lines, currentLine.String())
			currentLine.Reset()
			currentLine.WriteString(word)
		}
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	return strings.Join(lines, "\n"+indent)
}

// formatAuthorsShort formats authorship as "Family G, Family G" with at
// most maxCount names.
func formatAuthorsShort(authors []reference.PublicationAuthor, maxCount int) string {
	var names []string
	for _, a := range authors {
		if a.Role != reference.RoleAuthor {
			continue
		}
		names = append(names, author.NewName(a.FamilyName, a.GivenName).LastNameAndInitial())
	}
	if len(names) > maxCount {
		return strings.Join(names[:maxCount], ", ") + " et al."
	}
	return strings.Join(names, ", ")
}

// formatIDs formats ids as "1, 2, 3".
func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
