package model

import "time"

// Segment is one recognized sentence with its time range in seconds.
type Segment struct {
	Index     int     `json:"index"`
	Speaker   string  `json:"speaker,omitempty"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type Transcript struct {
	ID        string
	MediaPath string
	Title     string
	Language  string
	Segments  []Segment
	CreatedAt time.Time
}

// TranscriptMeta is the listing view without the segment payload.
type TranscriptMeta struct {
	ID           string
	MediaPath    string
	Title        string
	Language     string
	SegmentCount int
	CreatedAt    time.Time
}

// SummaryEntry is one paragraph-level summary covering a span of segments.
type SummaryEntry struct {
	Index     int     `json:"index"`
	Topic     string  `json:"topic,omitempty"`
	Summary   string  `json:"summary"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type Summary struct {
	ID           string
	TranscriptID string
	Entries      []SummaryEntry
	CreatedAt    time.Time
}
