package model

import "time"

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusRunning JobStatus = "running"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailed  JobStatus = "failed"
)

// JobResult is the accumulated output of the pipeline stages. Fields are only
// ever added or overwritten by the worker holding the claim; a checkpoint merge
// never clears a previously-set field. Stage position is derived from which
// fields are present, so a restarted worker needs no extra bookkeeping.
type JobResult struct {
	MediaPath    string `json:"media_path,omitempty"`
	Basename     string `json:"basename,omitempty"`
	MediaURL     string `json:"media_url,omitempty"`
	TranscriptID string `json:"transcript_id,omitempty"`
	SegmentCount int    `json:"segment_count,omitempty"`
	SummaryID    string `json:"summary_id,omitempty"`
	SummaryCount int    `json:"summary_count,omitempty"`
	Progress     int    `json:"progress,omitempty"`
	Stage        string `json:"stage,omitempty"`
	IndexSynced  *bool  `json:"index_synced,omitempty"`
	IndexError   string `json:"index_error,omitempty"`
}

// Merge applies the set fields of patch on top of r. Zero values in patch are
// treated as "not set"; Progress never moves backwards.
func (r *JobResult) Merge(patch JobResult) {
	if patch.MediaPath != "" {
		r.MediaPath = patch.MediaPath
	}
	if patch.Basename != "" {
		r.Basename = patch.Basename
	}
	if patch.MediaURL != "" {
		r.MediaURL = patch.MediaURL
	}
	if patch.TranscriptID != "" {
		r.TranscriptID = patch.TranscriptID
	}
	if patch.SegmentCount > 0 {
		r.SegmentCount = patch.SegmentCount
	}
	if patch.SummaryID != "" {
		r.SummaryID = patch.SummaryID
	}
	if patch.SummaryCount > 0 {
		r.SummaryCount = patch.SummaryCount
	}
	if patch.Progress > r.Progress {
		r.Progress = patch.Progress
	}
	if patch.Stage != "" {
		r.Stage = patch.Stage
	}
	if patch.IndexSynced != nil {
		r.IndexSynced = patch.IndexSynced
	}
	if patch.IndexError != "" {
		r.IndexError = patch.IndexError
	}
}

type Job struct {
	ID         string
	URL        string
	Status     JobStatus
	Result     JobResult
	Error      string
	CreatedAt  time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
}

func NewJob(id, url string) *Job {
	return &Job{
		ID:        id,
		URL:       url,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
}

// Terminal reports whether the job reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusSuccess || j.Status == JobStatusFailed
}

func BoolPtr(b bool) *bool { return &b }
