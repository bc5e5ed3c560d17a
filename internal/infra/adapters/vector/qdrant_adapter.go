package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
)

var _ adapter.VectorStore = (*QdrantStore)(nil)

// QdrantStore implements adapter.VectorStore against the Qdrant REST API.
type QdrantStore struct {
	base       string // e.g., http://localhost:6333
	apiKey     string
	collection string
	client     *http.Client
}

func NewQdrantStore(baseURL, apiKey, collection string) (*QdrantStore, error) {
	if baseURL == "" {
		return nil, errors.New("qdrant base url empty")
	}
	if collection == "" {
		collection = "media_chunks"
	}
	return &QdrantStore{
		base:       baseURL,
		apiKey:     apiKey,
		collection: collection,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (q *QdrantStore) do(ctx context.Context, method, path string, body any, out any) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: qdrant: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: qdrant http %d", domain.ErrUnavailable, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// EnsureCollection creates the collection with cosine distance when absent.
func (q *QdrantStore) EnsureCollection(ctx context.Context, vectorSize int) error {
	err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil, nil)
	if err == nil {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	return q.do(ctx, http.MethodPut, "/collections/"+q.collection, body, nil)
}

type qdrantPayload struct {
	Text      string  `json:"text"`
	Title     string  `json:"title,omitempty"`
	MediaPath string  `json:"media_path,omitempty"`
	MediaID   string  `json:"media_id,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Language  string  `json:"language,omitempty"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Kind      string  `json:"kind,omitempty"`
}

func payloadFromPoint(p adapter.VectorPoint) qdrantPayload {
	return qdrantPayload{
		Text:      p.Text,
		Title:     p.Title,
		MediaPath: p.MediaPath,
		MediaID:   p.MediaID,
		Summary:   p.Summary,
		Language:  p.Language,
		StartTime: p.StartTime,
		EndTime:   p.EndTime,
		Kind:      p.SourceKind,
	}
}

func hitFromPayload(id string, score float64, pl qdrantPayload) model.SearchHit {
	return model.SearchHit{
		ID:         id,
		Score:      score,
		Text:       pl.Text,
		Title:      pl.Title,
		MediaPath:  pl.MediaPath,
		MediaID:    pl.MediaID,
		Summary:    pl.Summary,
		Language:   pl.Language,
		StartTime:  pl.StartTime,
		EndTime:    pl.EndTime,
		SourceKind: pl.Kind,
	}
}

func qdrantFilter(filters *adapter.SearchFilters) map[string]any {
	if filters == nil {
		return nil
	}
	var must []map[string]any
	add := func(key, value string) {
		if value != "" {
			must = append(must, map[string]any{
				"key":   key,
				"match": map[string]any{"value": value},
			})
		}
	}
	add("language", filters.Language)
	add("media_id", filters.MediaID)
	add("kind", filters.SourceKind)
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func (q *QdrantStore) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64, filters *adapter.SearchFilters) ([]model.SearchHit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		body["score_threshold"] = scoreThreshold
	}
	if f := qdrantFilter(filters); f != nil {
		body["filter"] = f
	}

	var payload struct {
		Result []struct {
			ID      any           `json:"id"`
			Score   float64       `json:"score"`
			Payload qdrantPayload `json:"payload"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", body, &payload)
	if err != nil {
		return nil, err
	}

	hits := make([]model.SearchHit, 0, len(payload.Result))
	for _, r := range payload.Result {
		hits = append(hits, hitFromPayload(fmt.Sprint(r.ID), r.Score, r.Payload))
	}
	return hits, nil
}

func (q *QdrantStore) Store(ctx context.Context, points []adapter.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	type qdrantPoint struct {
		ID      string        `json:"id"`
		Vector  []float32     `json:"vector"`
		Payload qdrantPayload `json:"payload"`
	}
	converted := make([]qdrantPoint, 0, len(points))
	for _, p := range points {
		converted = append(converted, qdrantPoint{
			ID:      p.ID,
			Vector:  p.Vector,
			Payload: payloadFromPoint(p),
		})
	}
	body := map[string]any{"points": converted}
	return q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", body, nil)
}

func (q *QdrantStore) Delete(ctx context.Context, mediaID string) error {
	if mediaID == "" {
		return domain.ErrInvalidArgument
	}
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "media_id", "match": map[string]any{"value": mediaID}},
			},
		},
	}
	return q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", body, nil)
}

func (q *QdrantStore) List(ctx context.Context, limit, offset int) ([]model.SearchHit, error) {
	body := map[string]any{
		"limit":        limit + offset,
		"with_payload": true,
	}
	var payload struct {
		Result struct {
			Points []struct {
				ID      any           `json:"id"`
				Payload qdrantPayload `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/scroll", body, &payload)
	if err != nil {
		return nil, err
	}
	points := payload.Result.Points
	if offset >= len(points) {
		return nil, nil
	}
	points = points[offset:]

	hits := make([]model.SearchHit, 0, len(points))
	for _, r := range points {
		hits = append(hits, hitFromPayload(fmt.Sprint(r.ID), 0, r.Payload))
	}
	return hits, nil
}

func (q *QdrantStore) Ping(ctx context.Context) error {
	return q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil, nil)
}
