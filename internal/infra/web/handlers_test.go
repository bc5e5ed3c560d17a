package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
	"media-insight/internal/usecase"
)

type mockIngestUC struct {
	jobs        map[string]*model.Job
	transcripts map[string]*model.Transcript
	deleted     []string
	submitErr   error
}

func newMockIngestUC() *mockIngestUC {
	return &mockIngestUC{
		jobs:        map[string]*model.Job{},
		transcripts: map[string]*model.Transcript{},
	}
}

func (m *mockIngestUC) SubmitJob(ctx context.Context, mediaURL string) (*model.Job, error) {
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	if mediaURL == "" {
		return nil, domain.ErrInvalidArgument
	}
	job := model.NewJob("job-1", mediaURL)
	m.jobs[job.ID] = job
	return job, nil
}

func (m *mockIngestUC) GetJob(ctx context.Context, id string) (*model.Job, error) {
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return j, nil
}

func (m *mockIngestUC) ListJobs(ctx context.Context, status model.JobStatus, limit, offset int) ([]*model.Job, error) {
	out := make([]*model.Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		if status != "" && j.Status != status {
			continue
		}
		out = append(out, j)
	}
	return out, nil
}

func (m *mockIngestUC) GetTranscript(ctx context.Context, id string) (*model.Transcript, error) {
	tr, ok := m.transcripts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return tr, nil
}

func (m *mockIngestUC) ListTranscripts(ctx context.Context, limit, offset int) ([]model.TranscriptMeta, error) {
	out := make([]model.TranscriptMeta, 0, len(m.transcripts))
	for _, tr := range m.transcripts {
		out = append(out, model.TranscriptMeta{ID: tr.ID, MediaPath: tr.MediaPath, Title: tr.Title, SegmentCount: len(tr.Segments)})
	}
	return out, nil
}

func (m *mockIngestUC) DeleteTranscript(ctx context.Context, id string) error {
	if _, ok := m.transcripts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.transcripts, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockIngestUC) GetSummary(ctx context.Context, transcriptID string) (*model.Summary, error) {
	return nil, domain.ErrNotFound
}

type mockChatUC struct {
	answer      *model.ChatAnswer
	answerErr   error
	lastRequest usecase.ChatRequest
	lastFilters *adapter.SearchFilters
	cleared     []string
}

func (m *mockChatUC) Answer(ctx context.Context, req usecase.ChatRequest) (*model.ChatAnswer, error) {
	m.lastRequest = req
	if m.answerErr != nil {
		return nil, m.answerErr
	}
	return m.answer, nil
}

func (m *mockChatUC) Search(ctx context.Context, query string, topK int, threshold float64, filters *adapter.SearchFilters) ([]model.SearchHit, error) {
	m.lastFilters = filters
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	return []model.SearchHit{{ID: "p1", Score: 0.9, Text: "hello"}}, nil
}

func (m *mockChatUC) GetHistory(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	return []model.ChatTurn{{SessionID: sessionID, Role: "user", Content: "hi"}}, nil
}

func (m *mockChatUC) ClearHistory(ctx context.Context, sessionID string) error {
	m.cleared = append(m.cleared, sessionID)
	return nil
}

type mockConfigUC struct {
	values map[string]string
}

func (m *mockConfigUC) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrNotFound
	}
	return v, nil
}

func (m *mockConfigUC) GetAll(ctx context.Context) (map[string]string, error) {
	return m.values, nil
}

func (m *mockConfigUC) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return domain.ErrInvalidArgument
	}
	m.values[key] = value
	return nil
}

func newTestServer(ingest *mockIngestUC, chat *mockChatUC, cfg *mockConfigUC) *Server {
	logger := zerolog.Nop()
	auth := NewAuthManager("test-secret", false, "", time.Minute)
	return NewServer(ingest, chat, cfg, auth, "test-api-key", &logger)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitJob(t *testing.T) {
	ingest := newMockIngestUC()
	srv := newTestServer(ingest, &mockChatUC{}, &mockConfigUC{values: map[string]string{}})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/jobs", map[string]string{"url": "https://example.com/a.mp4"}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.JobID == "" || resp.Status != "pending" {
		t.Errorf("unexpected response %+v", resp)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/jobs", map[string]string{"url": ""}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty url, got %d", rec.Code)
	}
}

func TestGetJobNotFound(t *testing.T) {
	srv := newTestServer(newMockIngestUC(), &mockChatUC{}, &mockConfigUC{values: map[string]string{}})
	rec := doJSON(t, srv.Router(), http.MethodGet, "/api/jobs/missing", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["error"] == "" {
		t.Error("expected an error message in the body")
	}
}

func TestChatErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"empty query", domain.ErrEmptyQuery, http.StatusBadRequest},
		{"rate limited", domain.ErrRateLimited, http.StatusTooManyRequests},
		{"upstream down", domain.ErrUnavailable, http.StatusServiceUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chat := &mockChatUC{answerErr: tc.err}
			srv := newTestServer(newMockIngestUC(), chat, &mockConfigUC{values: map[string]string{}})
			rec := doJSON(t, srv.Router(), http.MethodPost, "/api/chat", map[string]string{"query": "q"}, nil)
			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}

func TestChatPassesRequestThrough(t *testing.T) {
	chat := &mockChatUC{answer: &model.ChatAnswer{
		Answer:     "because",
		References: []model.Reference{{Text: "ref", Score: 0.8}},
		Query:      "why",
		SessionID:  "s-1",
	}}
	srv := newTestServer(newMockIngestUC(), chat, &mockConfigUC{values: map[string]string{}})

	rec := doJSON(t, srv.Router(), http.MethodPost, "/api/chat", map[string]any{
		"query":           "why",
		"session_id":      "s-1",
		"top_k":           3,
		"score_threshold": 0.25,
		"language":        "en",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if chat.lastRequest.TopK != 3 || chat.lastRequest.ScoreThreshold != 0.25 || chat.lastRequest.Language != "en" {
		t.Errorf("request not passed through: %+v", chat.lastRequest)
	}
	var resp model.ChatAnswer
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Answer != "because" || len(resp.References) != 1 || resp.SessionID != "s-1" {
		t.Errorf("unexpected answer payload %+v", resp)
	}
}

func TestSearchFilters(t *testing.T) {
	chat := &mockChatUC{}
	srv := newTestServer(newMockIngestUC(), chat, &mockConfigUC{values: map[string]string{}})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/search", map[string]any{"query": "q", "language": "en"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if chat.lastFilters == nil || chat.lastFilters.Language != "en" {
		t.Errorf("expected language filter, got %+v", chat.lastFilters)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/search", map[string]any{"query": "q"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if chat.lastFilters != nil {
		t.Errorf("expected nil filters when unconstrained, got %+v", chat.lastFilters)
	}
}

func TestDeleteTranscript(t *testing.T) {
	ingest := newMockIngestUC()
	ingest.transcripts["t-1"] = &model.Transcript{ID: "t-1", MediaPath: "/data/a.mp4"}
	srv := newTestServer(ingest, &mockChatUC{}, &mockConfigUC{values: map[string]string{}})
	router := srv.Router()

	rec := doJSON(t, router, http.MethodDelete, "/api/transcripts/t-1", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, router, http.MethodDelete, "/api/transcripts/t-1", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestClearHistory(t *testing.T) {
	chat := &mockChatUC{}
	srv := newTestServer(newMockIngestUC(), chat, &mockConfigUC{values: map[string]string{}})

	rec := doJSON(t, srv.Router(), http.MethodDelete, "/api/chat/history/sess-9", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(chat.cleared) != 1 || chat.cleared[0] != "sess-9" {
		t.Errorf("expected session sess-9 cleared, got %v", chat.cleared)
	}
}

func TestConfigRequiresAdmin(t *testing.T) {
	cfg := &mockConfigUC{values: map[string]string{"system_prompt": "be helpful"}}
	srv := newTestServer(newMockIngestUC(), &mockChatUC{}, cfg)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodGet, "/api/config/", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/config/", nil, map[string]string{
		"Authorization": "Bearer test-api-key",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with api key, got %d", rec.Code)
	}
	var values map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &values); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if values["system_prompt"] != "be helpful" {
		t.Errorf("unexpected config %v", values)
	}

	rec = doJSON(t, router, http.MethodPut, "/api/config/system_prompt", map[string]string{"value": "be terse"}, map[string]string{
		"Authorization": "Bearer test-api-key",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on set, got %d", rec.Code)
	}
	if cfg.values["system_prompt"] != "be terse" {
		t.Errorf("config not updated: %v", cfg.values)
	}
}

func TestAdminSessionLogin(t *testing.T) {
	cfg := &mockConfigUC{values: map[string]string{}}
	srv := newTestServer(newMockIngestUC(), &mockChatUC{}, cfg)
	router := srv.Router()

	rec := doJSON(t, router, http.MethodPost, "/api/admin/login", map[string]string{"api_key": "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodPost, "/api/admin/login", map[string]string{"api_key": "test-api-key"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on login, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["token"] == "" {
		t.Fatal("expected a session token")
	}

	// The minted JWT is accepted on the admin surface.
	rec = doJSON(t, router, http.MethodGet, "/api/config/", nil, map[string]string{
		"Authorization": "Bearer " + resp["token"],
	})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with session token, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(newMockIngestUC(), &mockChatUC{}, &mockConfigUC{values: map[string]string{}})
	rec := doJSON(t, srv.Router(), http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
