// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
	"media-insight/internal/domain/ports/repository"
)

type mockHistoryRepo struct {
	mu    sync.Mutex
	turns []model.ChatTurn
	err   error
}

func (m *mockHistoryRepo) Append(ctx context.Context, tx repository.Tx, turn *model.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	turn.ID = int64(len(m.turns) + 1)
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = time.Now()
	}
	m.turns = append(m.turns, *turn)
	return nil
}

func (m *mockHistoryRepo) GetHistory(ctx context.Context, tx repository.Tx, sessionID string, limit int) ([]model.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []model.ChatTurn
	for _, t := range m.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *mockHistoryRepo) DeleteSession(ctx context.Context, tx repository.Tx, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.turns[:0]
	for _, t := range m.turns {
		if t.SessionID != sessionID {
			kept = append(kept, t)
		}
	}
	m.turns = kept
	return nil
}

func (m *mockHistoryRepo) sessionTurns(sessionID string) []model.ChatTurn {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ChatTurn
	for _, t := range m.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out
}

type mockConfigRepo struct {
	values map[string]string
}

func (m *mockConfigRepo) Get(ctx context.Context, tx repository.Tx, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", domain.ErrNotFound
}

func (m *mockConfigRepo) GetAll(ctx context.Context, tx repository.Tx) (map[string]string, error) {
	return m.values, nil
}

func (m *mockConfigRepo) Set(ctx context.Context, tx repository.Tx, key, value string) error {
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.5, 0.5}, nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{0.5, 0.5}
	}
	return out, nil
}

type mockVectorStore struct {
	hits        []model.SearchHit
	err         error
	lastTopK    int
	lastFilters *adapter.SearchFilters
	deleted     []string
}

func (m *mockVectorStore) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float64, filters *adapter.SearchFilters) ([]model.SearchHit, error) {
	m.lastTopK = limit
	m.lastFilters = filters
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

func (m *mockVectorStore) Store(ctx context.Context, points []adapter.VectorPoint) error { return nil }

func (m *mockVectorStore) Delete(ctx context.Context, mediaID string) error {
	m.deleted = append(m.deleted, mediaID)
	return m.err
}

func (m *mockVectorStore) List(ctx context.Context, limit, offset int) ([]model.SearchHit, error) {
	return m.hits, nil
}

func (m *mockVectorStore) Ping(ctx context.Context) error { return nil }

type mockAI struct {
	reply        string
	err          error
	lastMessages []adapter.Message
	tokensPerMsg int
}

func (m *mockAI) ListModels(ctx context.Context) ([]string, error) { return nil, nil }

func (m *mockAI) GetModelInfo(model string) (adapter.ModelInfo, error) {
	return adapter.ModelInfo{}, nil
}

func (m *mockAI) CountTokens(ctx context.Context, model string, messages []adapter.Message) (int, error) {
	per := m.tokensPerMsg
	if per == 0 {
		per = 10
	}
	return per * len(messages), nil
}

func (m *mockAI) Chat(ctx context.Context, chatModel string, messages []adapter.Message, params adapter.ChatParams) (string, error) {
	m.lastMessages = messages
	if m.err != nil {
		return "", m.err
	}
	if m.reply == "" {
		return "mock answer", nil
	}
	return m.reply, nil
}

type mockLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.calls++
	return m.allowed, m.err
}

type mockHistoryCache struct {
	mu          sync.Mutex
	store       map[string][]model.ChatTurn
	invalidated int
}

func (m *mockHistoryCache) Get(ctx context.Context, sessionID string) ([]model.ChatTurn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil, nil
	}
	return m.store[sessionID], nil
}

func (m *mockHistoryCache) Put(ctx context.Context, sessionID string, turns []model.ChatTurn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		m.store = map[string][]model.ChatTurn{}
	}
	m.store[sessionID] = turns
	return nil
}

func (m *mockHistoryCache) Invalidate(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invalidated++
	delete(m.store, sessionID)
	return nil
}
