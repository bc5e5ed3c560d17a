// File: internal/usecase/chat_uc.go
package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
	"media-insight/internal/domain/ports/repository"
	"media-insight/internal/infra/logging"
	"media-insight/internal/infra/metrics"
	"media-insight/internal/rag"
)

// FallbackAnswer is returned verbatim when retrieval finds nothing.
const FallbackAnswer = "No relevant content was found in the knowledge base to answer your question."

// DefaultSystemPrompt is used when the config store has no system_prompt row.
const DefaultSystemPrompt = "You are an assistant that answers questions about transcribed media content. Answer using only the provided context and cite the sources you used."

const systemPromptKey = "system_prompt"

// Compile-time check
var _ ChatUseCase = (*chatUC)(nil)

type ChatRequest struct {
	Query          string
	SessionID      string
	TopK           int
	ScoreThreshold float64
	Language       string
	MediaID        string
}

// RateLimiter is the slice of the Redis limiter the chat path needs.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// HistoryCache fronts the history repository for the hot read path.
type HistoryCache interface {
	Get(ctx context.Context, sessionID string) ([]model.ChatTurn, error)
	Put(ctx context.Context, sessionID string, turns []model.ChatTurn) error
	Invalidate(ctx context.Context, sessionID string) error
}

type ChatUseCase interface {
	Answer(ctx context.Context, req ChatRequest) (*model.ChatAnswer, error)
	Search(ctx context.Context, query string, topK int, threshold float64, filters *adapter.SearchFilters) ([]model.SearchHit, error)
	GetHistory(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error)
	ClearHistory(ctx context.Context, sessionID string) error
}

type ChatConfig struct {
	Model          string
	MaxTokens      int
	Temperature    float64
	HistoryWindow  int
	TokenBudget    int
	TopK           int
	ScoreThreshold float64
	RatePerMinute  int
}

type chatUC struct {
	history   repository.ChatHistoryRepository
	sysConfig repository.SystemConfigRepository
	embedder  adapter.Embedder
	vectors   adapter.VectorStore
	ai        adapter.AIServiceAdapter
	limiter   RateLimiter
	cache     HistoryCache
	rateKeyFn func(sessionID string) string
	cfg       ChatConfig
	log       *zerolog.Logger
}

func NewChatUseCase(
	history repository.ChatHistoryRepository,
	sysConfig repository.SystemConfigRepository,
	embedder adapter.Embedder,
	vectors adapter.VectorStore,
	ai adapter.AIServiceAdapter,
	limiter RateLimiter,
	cache HistoryCache,
	rateKeyFn func(sessionID string) string,
	cfg ChatConfig,
	log *zerolog.Logger,
) *chatUC {
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 10
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if rateKeyFn == nil {
		rateKeyFn = func(sessionID string) string { return "rate_limit:chat:" + sessionID }
	}
	return &chatUC{
		history:   history,
		sysConfig: sysConfig,
		embedder:  embedder,
		vectors:   vectors,
		ai:        ai,
		limiter:   limiter,
		cache:     cache,
		rateKeyFn: rateKeyFn,
		cfg:       cfg,
		log:       log,
	}
}

func (c *chatUC) Answer(ctx context.Context, req ChatRequest) (*model.ChatAnswer, error) {
	start := time.Now()

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	ctx = logging.WithSessID(ctx, req.SessionID)
	log := logging.With(ctx, c.log)

	if c.limiter != nil && c.cfg.RatePerMinute > 0 {
		allowed, err := c.limiter.Allow(ctx, c.rateKeyFn(req.SessionID), c.cfg.RatePerMinute, time.Minute)
		if err != nil {
			// Limiter trouble must not take the chat path down.
			log.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !allowed {
			metrics.ObserveChat("error", time.Since(start))
			return nil, domain.ErrRateLimited
		}
	}

	topK := req.TopK
	if topK <= 0 {
		topK = c.cfg.TopK
	}
	threshold := req.ScoreThreshold
	if threshold <= 0 {
		threshold = c.cfg.ScoreThreshold
	}

	hits, err := c.Search(ctx, query, topK, threshold, searchFilters(req))
	if err != nil {
		metrics.ObserveChat("error", time.Since(start))
		return nil, err
	}

	if len(hits) == 0 {
		log.Info().Msg("no retrieval hits, returning fallback")
		answer := &model.ChatAnswer{
			Answer:     FallbackAnswer,
			References: []model.Reference{},
			Query:      query,
			SessionID:  req.SessionID,
		}
		c.persistTurns(ctx, req.SessionID, query, answer, nil, topK, threshold)
		metrics.ObserveChat("fallback", time.Since(start))
		return answer, nil
	}

	ragContext := rag.FormatContext(hits, true)
	systemPrompt := rag.FormatSystemPrompt(c.systemPrompt(ctx), ragContext)

	messages, err := c.composeMessages(ctx, req.SessionID, systemPrompt, query)
	if err != nil {
		metrics.ObserveChat("error", time.Since(start))
		return nil, err
	}

	reply, err := c.ai.Chat(ctx, c.cfg.Model, messages, adapter.ChatParams{
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		metrics.ObserveChat("error", time.Since(start))
		return nil, err
	}

	references := make([]model.Reference, 0, len(hits))
	for _, h := range hits {
		references = append(references, model.ReferenceFromHit(h))
	}
	answer := &model.ChatAnswer{
		Answer:     reply,
		References: references,
		Query:      query,
		SessionID:  req.SessionID,
	}
	c.persistTurns(ctx, req.SessionID, query, answer, references, topK, threshold)
	metrics.ObserveChat("answered", time.Since(start))
	return answer, nil
}

// Search embeds the query and hands it to the vector backend. Hits come back
// already sorted descending by score; this truncates, never re-sorts.
func (c *chatUC) Search(ctx context.Context, query string, topK int, threshold float64, filters *adapter.SearchFilters) ([]model.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.ErrEmptyQuery
	}
	vector, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hits, err := c.vectors.Search(ctx, vector, topK, threshold, filters)
	metrics.ObserveSearch("vector", time.Since(start), len(hits), err == nil)
	if err != nil {
		return nil, err
	}
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (c *chatUC) systemPrompt(ctx context.Context) string {
	if c.sysConfig != nil {
		if v, err := c.sysConfig.Get(ctx, nil, systemPromptKey); err == nil && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return DefaultSystemPrompt
}

// composeMessages builds [system, history..., user]. The history window is
// trimmed oldest-first until the whole prompt fits the token budget.
func (c *chatUC) composeMessages(ctx context.Context, sessionID, systemPrompt, query string) ([]adapter.Message, error) {
	history, err := c.GetHistory(ctx, sessionID, c.cfg.HistoryWindow)
	if err != nil {
		// A history read failure degrades to a stateless answer.
		logging.With(ctx, c.log).Warn().Err(err).Msg("history load failed, answering without it")
		history = nil
	}

	build := func(turns []model.ChatTurn) []adapter.Message {
		msgs := make([]adapter.Message, 0, len(turns)+2)
		msgs = append(msgs, adapter.Message{Role: model.RoleSystem, Content: systemPrompt})
		for _, t := range turns {
			msgs = append(msgs, adapter.Message{Role: t.Role, Content: t.Content})
		}
		msgs = append(msgs, adapter.Message{Role: model.RoleUser, Content: query})
		return msgs
	}

	messages := build(history)
	if c.cfg.TokenBudget <= 0 {
		return messages, nil
	}
	for len(history) > 0 {
		n, err := c.ai.CountTokens(ctx, c.cfg.Model, messages)
		if err != nil {
			// Counting failure keeps the windowed history as-is.
			return messages, nil
		}
		if n <= c.cfg.TokenBudget {
			metrics.ObservePromptTokens(n)
			return messages, nil
		}
		history = history[1:]
		messages = build(history)
	}
	return messages, nil
}

// persistTurns appends the user and assistant turns. Failures are logged and
// swallowed; the computed answer is already final.
func (c *chatUC) persistTurns(ctx context.Context, sessionID, query string, answer *model.ChatAnswer, references []model.Reference, topK int, threshold float64) {
	log := logging.With(ctx, c.log)

	userTurn := &model.ChatTurn{SessionID: sessionID, Role: model.RoleUser, Content: query}
	if err := c.history.Append(ctx, nil, userTurn); err != nil {
		log.Warn().Err(err).Msg("failed to persist user turn")
		return
	}
	meta := map[string]any{
		"top_k":           topK,
		"score_threshold": threshold,
	}
	if len(references) > 0 {
		meta["references"] = references
	}
	assistantTurn := &model.ChatTurn{
		SessionID: sessionID,
		Role:      model.RoleAssistant,
		Content:   answer.Answer,
		Metadata:  meta,
	}
	if err := c.history.Append(ctx, nil, assistantTurn); err != nil {
		log.Warn().Err(err).Msg("failed to persist assistant turn")
	}
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, sessionID); err != nil {
			log.Warn().Err(err).Msg("failed to invalidate history cache")
		}
	}
}

func (c *chatUC) GetHistory(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 {
		limit = c.cfg.HistoryWindow
	}
	if c.cache != nil {
		// The cache holds whatever window the last reader asked for; serve it
		// only when it covers this request, otherwise Postgres has the rest.
		if turns, err := c.cache.Get(ctx, sessionID); err == nil && len(turns) >= limit {
			return turns[len(turns)-limit:], nil
		}
	}
	turns, err := c.history.GetHistory(ctx, nil, sessionID, limit)
	if err != nil {
		return nil, err
	}
	if c.cache != nil && len(turns) > 0 {
		if err := c.cache.Put(ctx, sessionID, turns); err != nil {
			logging.With(ctx, c.log).Warn().Err(err).Msg("failed to populate history cache")
		}
	}
	return turns, nil
}

func (c *chatUC) ClearHistory(ctx context.Context, sessionID string) error {
	if err := c.history.DeleteSession(ctx, nil, sessionID); err != nil {
		return err
	}
	if c.cache != nil {
		if err := c.cache.Invalidate(ctx, sessionID); err != nil {
			logging.With(ctx, c.log).Warn().Err(err).Msg("failed to invalidate history cache")
		}
	}
	return nil
}

func searchFilters(req ChatRequest) *adapter.SearchFilters {
	if req.Language == "" && req.MediaID == "" {
		return nil
	}
	return &adapter.SearchFilters{Language: req.Language, MediaID: req.MediaID}
}
