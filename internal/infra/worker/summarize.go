package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
)

// summarizeWindowChars bounds how much transcript text goes into one
// summarization call.
const summarizeWindowChars = 6000

const summarizePrompt = `You are a transcript summarizer. Given a transcript excerpt, respond with a JSON object {"topic": "...", "summary": "..."} where topic is a short title for the excerpt and summary is a 2-4 sentence summary. Respond with JSON only.`

type segmentWindow struct {
	segments  []model.Segment
	startTime float64
	endTime   float64
}

// windowSegments groups consecutive segments into windows bounded by
// summarizeWindowChars. A single oversized segment still forms its own window.
func windowSegments(segments []model.Segment) []segmentWindow {
	var windows []segmentWindow
	var current []model.Segment
	size := 0
	flush := func() {
		if len(current) == 0 {
			return
		}
		windows = append(windows, segmentWindow{
			segments:  current,
			startTime: current[0].StartTime,
			endTime:   current[len(current)-1].EndTime,
		})
		current = nil
		size = 0
	}
	for _, s := range segments {
		if size > 0 && size+len(s.Text) > summarizeWindowChars {
			flush()
		}
		current = append(current, s)
		size += len(s.Text)
	}
	flush()
	return windows
}

func windowText(w segmentWindow) string {
	var b strings.Builder
	for _, s := range w.segments {
		b.WriteString(s.Text)
		b.WriteString("\n")
	}
	return b.String()
}

// summarizeSegments produces one SummaryEntry per window through the chat
// model. An unparseable reply degrades to the raw reply text as the summary.
func summarizeSegments(ctx context.Context, ai adapter.AIServiceAdapter, chatModel string, params adapter.ChatParams, segments []model.Segment) ([]model.SummaryEntry, error) {
	windows := windowSegments(segments)
	entries := make([]model.SummaryEntry, 0, len(windows))

	for i, w := range windows {
		messages := []adapter.Message{
			{Role: "system", Content: summarizePrompt},
			{Role: "user", Content: windowText(w)},
		}
		reply, err := ai.Chat(ctx, chatModel, messages, params)
		if err != nil {
			return nil, fmt.Errorf("summarize window %d: %w", i, err)
		}

		var parsed struct {
			Topic   string `json:"topic"`
			Summary string `json:"summary"`
		}
		if err := json.Unmarshal([]byte(extractJSON(reply)), &parsed); err != nil || parsed.Summary == "" {
			parsed.Topic = ""
			parsed.Summary = strings.TrimSpace(reply)
		}
		entries = append(entries, model.SummaryEntry{
			Index:     i,
			Topic:     parsed.Topic,
			Summary:   parsed.Summary,
			StartTime: w.startTime,
			EndTime:   w.endTime,
		})
	}
	return entries, nil
}

// extractJSON strips markdown fences and surrounding prose models tend to add.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}
