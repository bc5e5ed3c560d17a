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

var _ adapter.VectorStore = (*VikingDBStore)(nil)

// VikingDBStore implements adapter.VectorStore against the Volcengine VikingDB
// HTTP API. Same shape as the Qdrant adapter, different wire format.
type VikingDBStore struct {
	base       string
	apiKey     string
	collection string
	client     *http.Client
}

func NewVikingDBStore(baseURL, apiKey, collection string) (*VikingDBStore, error) {
	if baseURL == "" {
		return nil, errors.New("vikingdb base url empty")
	}
	if apiKey == "" {
		return nil, errors.New("vikingdb api key empty")
	}
	if collection == "" {
		collection = "media_chunks"
	}
	return &VikingDBStore{
		base:       baseURL,
		apiKey:     apiKey,
		collection: collection,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (v *VikingDBStore) do(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.apiKey)
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: vikingdb: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: vikingdb http %d", domain.ErrUnavailable, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// vikingFields is the flat field map VikingDB stores per data row.
type vikingFields struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector,omitempty"`
	Text      string    `json:"text"`
	Title     string    `json:"title,omitempty"`
	MediaPath string    `json:"media_path,omitempty"`
	MediaID   string    `json:"media_id,omitempty"`
	Summary   string    `json:"summary,omitempty"`
	Language  string    `json:"language,omitempty"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	Kind      string    `json:"kind,omitempty"`
}

func hitFromFields(score float64, f vikingFields) model.SearchHit {
	return model.SearchHit{
		ID:         f.ID,
		Score:      score,
		Text:       f.Text,
		Title:      f.Title,
		MediaPath:  f.MediaPath,
		MediaID:    f.MediaID,
		Summary:    f.Summary,
		Language:   f.Language,
		StartTime:  f.StartTime,
		EndTime:    f.EndTime,
		SourceKind: f.Kind,
	}
}

func vikingFilter(filters *adapter.SearchFilters) map[string]any {
	if filters == nil {
		return nil
	}
	var conds []map[string]any
	add := func(field, value string) {
		if value != "" {
			conds = append(conds, map[string]any{
				"op":    "must",
				"field": field,
				"conds": []string{value},
			})
		}
	}
	add("language", filters.Language)
	add("media_id", filters.MediaID)
	add("kind", filters.SourceKind)
	if len(conds) == 0 {
		return nil
	}
	if len(conds) == 1 {
		return conds[0]
	}
	return map[string]any{"op": "and", "conds": conds}
}

func (v *VikingDBStore) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64, filters *adapter.SearchFilters) ([]model.SearchHit, error) {
	body := map[string]any{
		"collection_name": v.collection,
		"index_name":      v.collection,
		"search": map[string]any{
			"order_by_vector": map[string]any{"vectors": [][]float32{vector}},
			"limit":           limit,
		},
	}
	if f := vikingFilter(filters); f != nil {
		body["search"].(map[string]any)["filter"] = f
	}

	var payload struct {
		Data [][]struct {
			Score  float64      `json:"score"`
			Fields vikingFields `json:"fields"`
		} `json:"data"`
	}
	if err := v.do(ctx, "/api/index/search", body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}

	hits := make([]model.SearchHit, 0, len(payload.Data[0]))
	for _, r := range payload.Data[0] {
		// VikingDB has no server-side score cutoff.
		if scoreThreshold > 0 && r.Score < scoreThreshold {
			continue
		}
		hits = append(hits, hitFromFields(r.Score, r.Fields))
	}
	return hits, nil
}

func (v *VikingDBStore) Store(ctx context.Context, points []adapter.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}
	fields := make([]vikingFields, 0, len(points))
	for _, p := range points {
		fields = append(fields, vikingFields{
			ID:        p.ID,
			Vector:    p.Vector,
			Text:      p.Text,
			Title:     p.Title,
			MediaPath: p.MediaPath,
			MediaID:   p.MediaID,
			Summary:   p.Summary,
			Language:  p.Language,
			StartTime: p.StartTime,
			EndTime:   p.EndTime,
			Kind:      p.SourceKind,
		})
	}
	body := map[string]any{
		"collection_name": v.collection,
		"fields":          fields,
	}
	return v.do(ctx, "/api/collection/upsert_data", body, nil)
}

func (v *VikingDBStore) Delete(ctx context.Context, mediaID string) error {
	if mediaID == "" {
		return domain.ErrInvalidArgument
	}
	// VikingDB deletes by primary key, so resolve the row IDs first.
	hits, err := v.listByMedia(ctx, mediaID)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return nil
	}
	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	body := map[string]any{
		"collection_name": v.collection,
		"primary_keys":    ids,
	}
	return v.do(ctx, "/api/collection/del_data", body, nil)
}

func (v *VikingDBStore) listByMedia(ctx context.Context, mediaID string) ([]model.SearchHit, error) {
	body := map[string]any{
		"collection_name": v.collection,
		"index_name":      v.collection,
		"search": map[string]any{
			"limit":  1000,
			"filter": vikingFilter(&adapter.SearchFilters{MediaID: mediaID}),
		},
	}
	var payload struct {
		Data [][]struct {
			Fields vikingFields `json:"fields"`
		} `json:"data"`
	}
	if err := v.do(ctx, "/api/index/search", body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}
	hits := make([]model.SearchHit, 0, len(payload.Data[0]))
	for _, r := range payload.Data[0] {
		hits = append(hits, hitFromFields(0, r.Fields))
	}
	return hits, nil
}

func (v *VikingDBStore) List(ctx context.Context, limit, offset int) ([]model.SearchHit, error) {
	body := map[string]any{
		"collection_name": v.collection,
		"index_name":      v.collection,
		"search": map[string]any{
			"limit": limit + offset,
		},
	}
	var payload struct {
		Data [][]struct {
			Fields vikingFields `json:"fields"`
		} `json:"data"`
	}
	if err := v.do(ctx, "/api/index/search", body, &payload); err != nil {
		return nil, err
	}
	if len(payload.Data) == 0 {
		return nil, nil
	}
	rows := payload.Data[0]
	if offset >= len(rows) {
		return nil, nil
	}
	rows = rows[offset:]

	hits := make([]model.SearchHit, 0, len(rows))
	for _, r := range rows {
		hits = append(hits, hitFromFields(0, r.Fields))
	}
	return hits, nil
}

func (v *VikingDBStore) Ping(ctx context.Context) error {
	body := map[string]any{"collection_name": v.collection}
	return v.do(ctx, "/api/collection/info", body, nil)
}
