package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
	"media-insight/internal/usecase"
)

type jobResponse struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Status     model.JobStatus `json:"status"`
	Result     model.JobResult `json:"result"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func toJobResponse(j *model.Job) jobResponse {
	return jobResponse{
		ID:         j.ID,
		URL:        j.URL,
		Status:     j.Status,
		Result:     j.Result,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	job, err := s.ingestUC.SubmitJob(r.Context(), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, struct {
		JobID  string          `json:"job_id"`
		Status model.JobStatus `json:"status"`
	}{JobID: job.ID, Status: job.Status})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.ingestUC.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	status := model.JobStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	jobs, err := s.ingestUC.ListJobs(r.Context(), status, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, struct {
		Jobs []jobResponse `json:"jobs"`
	}{Jobs: out})
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	tr, err := s.ingestUC.GetTranscript(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID        string          `json:"id"`
		MediaPath string          `json:"media_path"`
		Title     string          `json:"title"`
		Language  string          `json:"language,omitempty"`
		Segments  []model.Segment `json:"segments"`
		CreatedAt time.Time       `json:"created_at"`
	}{tr.ID, tr.MediaPath, tr.Title, tr.Language, tr.Segments, tr.CreatedAt})
}

func (s *Server) handleListTranscripts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	metas, err := s.ingestUC.ListTranscripts(r.Context(), limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	type metaResponse struct {
		ID           string    `json:"id"`
		MediaPath    string    `json:"media_path"`
		Title        string    `json:"title"`
		Language     string    `json:"language,omitempty"`
		SegmentCount int       `json:"segment_count"`
		CreatedAt    time.Time `json:"created_at"`
	}
	out := make([]metaResponse, 0, len(metas))
	for _, m := range metas {
		out = append(out, metaResponse{m.ID, m.MediaPath, m.Title, m.Language, m.SegmentCount, m.CreatedAt})
	}
	writeJSON(w, http.StatusOK, struct {
		Transcripts []metaResponse `json:"transcripts"`
	}{Transcripts: out})
}

func (s *Server) handleDeleteTranscript(w http.ResponseWriter, r *http.Request) {
	if err := s.ingestUC.DeleteTranscript(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.ingestUC.GetSummary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ID           string               `json:"id"`
		TranscriptID string               `json:"transcript_id"`
		Entries      []model.SummaryEntry `json:"entries"`
		CreatedAt    time.Time            `json:"created_at"`
	}{sum.ID, sum.TranscriptID, sum.Entries, sum.CreatedAt})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string  `json:"query"`
		SessionID      string  `json:"session_id"`
		TopK           int     `json:"top_k"`
		ScoreThreshold float64 `json:"score_threshold"`
		Language       string  `json:"language"`
		MediaID        string  `json:"media_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	answer, err := s.chatUC.Answer(r.Context(), usecase.ChatRequest{
		Query:          req.Query,
		SessionID:      req.SessionID,
		TopK:           req.TopK,
		ScoreThreshold: req.ScoreThreshold,
		Language:       req.Language,
		MediaID:        req.MediaID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query          string  `json:"query"`
		TopK           int     `json:"top_k"`
		ScoreThreshold float64 `json:"score_threshold"`
		Language       string  `json:"language"`
		MediaID        string  `json:"media_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	var filters *adapter.SearchFilters
	if req.Language != "" || req.MediaID != "" {
		filters = &adapter.SearchFilters{Language: req.Language, MediaID: req.MediaID}
	}
	hits, err := s.chatUC.Search(r.Context(), req.Query, req.TopK, req.ScoreThreshold, filters)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Hits []model.SearchHit `json:"hits"`
	}{Hits: hits})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	turns, err := s.chatUC.GetHistory(r.Context(), chi.URLParam(r, "sessionID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Turns []model.ChatTurn `json:"turns"`
	}{Turns: turns})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.chatUC.ClearHistory(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	values, err := s.configUC.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	key := chi.URLParam(r, "key")
	if err := s.configUC.Set(r.Context(), key, req.Value); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": req.Value})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrEmptyQuery):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrRateLimited):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
