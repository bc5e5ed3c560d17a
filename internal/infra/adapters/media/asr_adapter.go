package media

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

var _ adapter.Transcriber = (*ASRAdapter)(nil)

// ASRAdapter calls a speech recognition service that shares the media
// directory with this process and returns sentence-level segments.
type ASRAdapter struct {
	base   string
	apiKey string
	client *http.Client
}

func NewASRAdapter(baseURL, apiKey string, timeout time.Duration) (*ASRAdapter, error) {
	if baseURL == "" {
		return nil, errors.New("asr base url empty")
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &ASRAdapter{
		base:   baseURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}, nil
}

func (a *ASRAdapter) Transcribe(ctx context.Context, mediaPath string) ([]model.Segment, error) {
	if mediaPath == "" {
		return nil, domain.ErrInvalidArgument
	}
	reqBody := struct {
		MediaPath string `json:"media_path"`
	}{MediaPath: mediaPath}

	b, _ := json.Marshal(reqBody)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.base+"/transcribe", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: asr: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: asr http %d", domain.ErrUnavailable, resp.StatusCode)
	}

	var payload struct {
		Segments []model.Segment `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode asr response: %w", err)
	}
	if len(payload.Segments) == 0 {
		return nil, errors.New("asr returned no segments")
	}
	// Keep segment indexes dense regardless of what the service sent.
	for i := range payload.Segments {
		payload.Segments[i].Index = i
	}
	return payload.Segments, nil
}
