// Package differ describes content changes between two policy versions:
// a short human summary and a structured added/removed/modified diff.
package differ

import (
	"context"

	"grc-portal/models"
)

// FallbackSummary is used whenever no generated summary is available.
const FallbackSummary = "Content updated"

// FallbackDiff is the diff recorded when generation fails.
func FallbackDiff() models.ChangeDiff {
	return models.ChangeDiff{
		Added:    []string{},
		Removed:  []string{},
		Modified: []string{"Content was updated"},
	}
}

// Generator produces change descriptions. Implementations may be slow or
// fail; wrap them in a Guarded before handing them to the workflow engine.
type Generator interface {
	Summarize(ctx context.Context, oldContent, newContent string) (string, error)
	Diff(ctx context.Context, oldContent, newContent string) (models.ChangeDiff, error)
	Name() string
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
