// Package views holds the per-aid-type view models. Each is a pure function
// of the generated content plus the small amount of interaction state the
// session keeps for it.
package views

import "strings"

const ContentPlaceholder = "Your generated materials will appear here."

// SummaryParagraphs renders each line of the summary as its own paragraph.
// Blank lines are kept so spacing in the model's reply survives.
func SummaryParagraphs(text string) []string {
	return strings.Split(text, "\n")
}
