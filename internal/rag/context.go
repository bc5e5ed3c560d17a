// Package rag holds the pure formatting step between vector search and the
// completion call. Everything here is deterministic: identical hit lists must
// produce byte-identical output, since the formatted block is persisted in
// prompts and cited by block number.
package rag

import (
	"fmt"
	"strings"

	"media-insight/internal/domain/model"
)

const contextHeader = "Relevant indexed media content:\n"

const contextInstruction = "\nAnswer the user's question using the content above. When your answer relies on a specific excerpt, cite its source number (for example [Source 1])."

// FormatTimestamp renders seconds as HH:MM:SS.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}

// FormatContext renders ranked hits into numbered source blocks, preserving
// the given order (hits arrive sorted by score; equal scores keep service
// order). Returns "" for an empty hit list.
func FormatContext(hits []model.SearchHit, includeSummaries bool) string {
	if len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(contextHeader)

	for i, h := range hits {
		b.WriteString(fmt.Sprintf("\n[Source %d]\n", i+1))
		if h.Language != "" {
			b.WriteString(fmt.Sprintf("Title: %s (%s)\n", h.Title, h.Language))
		} else {
			b.WriteString(fmt.Sprintf("Title: %s\n", h.Title))
		}
		b.WriteString(fmt.Sprintf("Time: %s - %s\n", FormatTimestamp(h.StartTime), FormatTimestamp(h.EndTime)))
		b.WriteString(fmt.Sprintf("Score: %.2f\n", h.Score))
		if includeSummaries && h.Summary != "" {
			b.WriteString(fmt.Sprintf("Summary: %s\n", h.Summary))
		}
		b.WriteString(fmt.Sprintf("Text: %s\n", h.Text))
	}

	b.WriteString(contextInstruction)
	return b.String()
}

// FormatSystemPrompt appends the formatted context to the base system prompt.
func FormatSystemPrompt(basePrompt, context string) string {
	if context == "" {
		return basePrompt
	}
	return basePrompt + "\n\n" + context
}
