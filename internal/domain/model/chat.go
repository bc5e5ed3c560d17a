package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatTurn is one message in a session transcript. The history store is
// append-only; turns are never mutated or deleted by the chat path.
type ChatTurn struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// SearchHit is a single scored result from the vector backend. It lives for
// one chat or search request and is never persisted.
type SearchHit struct {
	ID        string  `json:"id"`
	Score     float64 `json:"score"`
	Text      string  `json:"text"`
	Title     string  `json:"title"`
	MediaPath string  `json:"media_path,omitempty"`
	MediaID   string  `json:"media_id,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Language  string  `json:"language,omitempty"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	SourceKind string `json:"source_kind,omitempty"`
}

// Reference is the citation view of a hit returned to chat callers.
type Reference struct {
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
	Title     string  `json:"title"`
	MediaPath string  `json:"media_path,omitempty"`
	MediaID   string  `json:"media_id,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Language  string  `json:"language,omitempty"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// ReferenceFromHit keeps the citation payload in lockstep with the hit fields.
func ReferenceFromHit(h SearchHit) Reference {
	return Reference{
		Text:      h.Text,
		Score:     h.Score,
		Title:     h.Title,
		MediaPath: h.MediaPath,
		MediaID:   h.MediaID,
		Summary:   h.Summary,
		Language:  h.Language,
		StartTime: h.StartTime,
		EndTime:   h.EndTime,
	}
}

// ChatAnswer is the orchestrator's reply for one request.
type ChatAnswer struct {
	Answer     string      `json:"answer"`
	References []Reference `json:"references"`
	Query      string      `json:"query"`
	SessionID  string      `json:"session_id"`
}
