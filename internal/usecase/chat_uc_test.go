// File: internal/usecase/chat_uc_test.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
)

func testHits() []model.SearchHit {
	return []model.SearchHit{
		{ID: "h1", Score: 0.95, Text: "first chunk", Title: "talk", Language: "en", StartTime: 0, EndTime: 30},
		{ID: "h2", Score: 0.85, Text: "second chunk", Title: "talk", Language: "en", StartTime: 30, EndTime: 60},
	}
}

func newTestChatUC(history *mockHistoryRepo, vectors *mockVectorStore, ai *mockAI, limiter *mockLimiter, cache *mockHistoryCache) *chatUC {
	logger := zerolog.Nop()
	var l RateLimiter
	if limiter != nil {
		l = limiter
	}
	var c HistoryCache
	if cache != nil {
		c = cache
	}
	return NewChatUseCase(
		history,
		&mockConfigRepo{},
		&mockEmbedder{},
		vectors,
		ai,
		l,
		c,
		nil,
		ChatConfig{
			Model:          "test-model",
			MaxTokens:      500,
			Temperature:    0.7,
			HistoryWindow:  10,
			TokenBudget:    1000,
			TopK:           5,
			ScoreThreshold: 0.7,
			RatePerMinute:  30,
		},
		&logger,
	)
}

func TestChat_RejectsEmptyQuery(t *testing.T) {
	uc := newTestChatUC(&mockHistoryRepo{}, &mockVectorStore{}, &mockAI{}, nil, nil)

	for _, q := range []string{"", "   ", "\n\t"} {
		if _, err := uc.Answer(context.Background(), ChatRequest{Query: q}); !errors.Is(err, domain.ErrEmptyQuery) {
			t.Errorf("query %q: expected ErrEmptyQuery, got %v", q, err)
		}
	}
}

func TestChat_GeneratesSessionID(t *testing.T) {
	uc := newTestChatUC(&mockHistoryRepo{}, &mockVectorStore{hits: testHits()}, &mockAI{}, nil, nil)

	ans, err := uc.Answer(context.Background(), ChatRequest{Query: "what is this about"})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if ans.SessionID == "" {
		t.Error("expected a generated session id")
	}

	ans2, _ := uc.Answer(context.Background(), ChatRequest{Query: "again", SessionID: "fixed"})
	if ans2.SessionID != "fixed" {
		t.Errorf("expected supplied session id to be kept, got %s", ans2.SessionID)
	}
}

func TestChat_FallbackOnZeroHits(t *testing.T) {
	history := &mockHistoryRepo{}
	ai := &mockAI{}
	uc := newTestChatUC(history, &mockVectorStore{}, ai, nil, nil)

	// The fallback must be byte-identical across calls.
	var answers []string
	for i := 0; i < 3; i++ {
		ans, err := uc.Answer(context.Background(), ChatRequest{Query: "unknown topic", SessionID: "s1"})
		if err != nil {
			t.Fatalf("Answer failed: %v", err)
		}
		answers = append(answers, ans.Answer)
		if len(ans.References) != 0 {
			t.Errorf("expected empty references, got %d", len(ans.References))
		}
	}
	for _, a := range answers {
		if a != FallbackAnswer {
			t.Errorf("expected fixed fallback answer, got %q", a)
		}
	}

	// No completion call happens on the fallback path.
	if ai.lastMessages != nil {
		t.Error("expected no completion call for zero hits")
	}

	// Both turns are still persisted per request.
	turns := history.sessionTurns("s1")
	if len(turns) != 6 {
		t.Fatalf("expected 6 persisted turns for 3 requests, got %d", len(turns))
	}
	if turns[0].Role != model.RoleUser || turns[1].Role != model.RoleAssistant {
		t.Errorf("expected user then assistant order, got %s, %s", turns[0].Role, turns[1].Role)
	}
	if turns[1].Content != FallbackAnswer {
		t.Errorf("expected fallback persisted as assistant turn, got %q", turns[1].Content)
	}
}

func TestChat_AnswerWithReferences(t *testing.T) {
	history := &mockHistoryRepo{}
	ai := &mockAI{reply: "the talk covers indexing [Source 1]"}
	uc := newTestChatUC(history, &mockVectorStore{hits: testHits()}, ai, nil, nil)

	ans, err := uc.Answer(context.Background(), ChatRequest{Query: "what is covered", SessionID: "s1"})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if ans.Answer != "the talk covers indexing [Source 1]" {
		t.Errorf("unexpected answer: %q", ans.Answer)
	}
	if len(ans.References) != 2 {
		t.Fatalf("expected 2 references, got %d", len(ans.References))
	}
	// References preserve the backend's score order.
	if ans.References[0].Score < ans.References[1].Score {
		t.Error("expected references in descending score order")
	}

	// System prompt carries the retrieval context and citation instruction.
	if len(ai.lastMessages) < 2 {
		t.Fatal("expected composed messages")
	}
	system := ai.lastMessages[0]
	if system.Role != model.RoleSystem {
		t.Fatalf("expected leading system message, got %s", system.Role)
	}
	if !strings.Contains(system.Content, "[Source 1]") || !strings.Contains(system.Content, "first chunk") {
		t.Error("expected context blocks inside the system prompt")
	}
	last := ai.lastMessages[len(ai.lastMessages)-1]
	if last.Role != model.RoleUser || last.Content != "what is covered" {
		t.Errorf("expected trailing user message with the query, got %+v", last)
	}

	// Exactly two turns persisted, assistant metadata carries references.
	turns := history.sessionTurns("s1")
	if len(turns) != 2 {
		t.Fatalf("expected exactly 2 persisted turns, got %d", len(turns))
	}
	if turns[1].Metadata["references"] == nil {
		t.Error("expected references in assistant turn metadata")
	}
}

func TestChat_TruncatesToTopKWithoutReordering(t *testing.T) {
	// Backend returns more hits than requested, with a tie.
	hits := []model.SearchHit{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.8},
		{ID: "c", Score: 0.8},
		{ID: "d", Score: 0.7},
	}
	vectors := &mockVectorStore{hits: hits}
	uc := newTestChatUC(&mockHistoryRepo{}, vectors, &mockAI{}, nil, nil)

	got, err := uc.Search(context.Background(), "q", 3, 0.5, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected truncation to 3, got %d", len(got))
	}
	// Service order survives, ties included.
	if got[0].ID != "a" || got[1].ID != "b" || got[2].ID != "c" {
		t.Errorf("expected service order a,b,c, got %s,%s,%s", got[0].ID, got[1].ID, got[2].ID)
	}
	if vectors.lastTopK != 3 {
		t.Errorf("expected topK forwarded to the backend, got %d", vectors.lastTopK)
	}
}

func TestChat_EmbedFailurePropagates(t *testing.T) {
	logger := zerolog.Nop()
	embedErr := errors.New("embedding service down")
	uc := NewChatUseCase(
		&mockHistoryRepo{},
		&mockConfigRepo{},
		&mockEmbedder{err: embedErr},
		&mockVectorStore{hits: testHits()},
		&mockAI{},
		nil, nil, nil,
		ChatConfig{Model: "m", TopK: 5},
		&logger,
	)
	if _, err := uc.Answer(context.Background(), ChatRequest{Query: "q"}); !errors.Is(err, embedErr) {
		t.Fatalf("expected embed error to propagate, got %v", err)
	}
}

func TestChat_RateLimiting(t *testing.T) {
	t.Run("denied", func(t *testing.T) {
		limiter := &mockLimiter{allowed: false}
		uc := newTestChatUC(&mockHistoryRepo{}, &mockVectorStore{hits: testHits()}, &mockAI{}, limiter, nil)
		if _, err := uc.Answer(context.Background(), ChatRequest{Query: "q", SessionID: "s"}); !errors.Is(err, domain.ErrRateLimited) {
			t.Fatalf("expected ErrRateLimited, got %v", err)
		}
	})

	t.Run("limiter error allows", func(t *testing.T) {
		limiter := &mockLimiter{allowed: false, err: errors.New("redis down")}
		uc := newTestChatUC(&mockHistoryRepo{}, &mockVectorStore{hits: testHits()}, &mockAI{}, limiter, nil)
		if _, err := uc.Answer(context.Background(), ChatRequest{Query: "q", SessionID: "s"}); err != nil {
			t.Fatalf("expected limiter failure to fail open, got %v", err)
		}
	})
}

func TestChat_HistoryWindowAndTokenTrim(t *testing.T) {
	history := &mockHistoryRepo{}
	for i := 0; i < 8; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		history.Append(context.Background(), nil, &model.ChatTurn{SessionID: "s1", Role: role, Content: "old turn"})
	}

	// 10 tokens per message, budget 1000: everything fits.
	ai := &mockAI{}
	uc := newTestChatUC(history, &mockVectorStore{hits: testHits()}, ai, nil, nil)
	if _, err := uc.Answer(context.Background(), ChatRequest{Query: "q", SessionID: "s1"}); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	// system + 8 history + user
	if len(ai.lastMessages) != 10 {
		t.Errorf("expected 10 messages, got %d", len(ai.lastMessages))
	}

	// Inflated per-message cost forces oldest-first trimming.
	ai2 := &mockAI{tokensPerMsg: 200}
	uc2 := newTestChatUC(history, &mockVectorStore{hits: testHits()}, ai2, nil, nil)
	if _, err := uc2.Answer(context.Background(), ChatRequest{Query: "q2", SessionID: "s1"}); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	// Budget 1000 / 200 per message = at most 5 messages.
	if len(ai2.lastMessages) > 5 {
		t.Errorf("expected history trimmed to fit budget, got %d messages", len(ai2.lastMessages))
	}
	// System and the current query always survive.
	if ai2.lastMessages[0].Role != model.RoleSystem {
		t.Error("expected system message to survive trimming")
	}
	if last := ai2.lastMessages[len(ai2.lastMessages)-1]; last.Content != "q2" {
		t.Errorf("expected current query to survive trimming, got %q", last.Content)
	}
}

func TestChat_HistoryCache(t *testing.T) {
	history := &mockHistoryRepo{}
	cache := &mockHistoryCache{}
	uc := newTestChatUC(history, &mockVectorStore{hits: testHits()}, &mockAI{}, nil, cache)

	if _, err := uc.Answer(context.Background(), ChatRequest{Query: "first", SessionID: "s1"}); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	// Append invalidates the session's cache entry.
	if cache.invalidated == 0 {
		t.Error("expected cache invalidation after append")
	}

	// A read populates the cache.
	turns, err := uc.GetHistory(context.Background(), "s1", 10)
	if err != nil || len(turns) != 2 {
		t.Fatalf("GetHistory failed: %v (%d turns)", err, len(turns))
	}
	if cache.store["s1"] == nil {
		t.Error("expected cache populated after read")
	}

	// ClearHistory removes both the rows and the cache entry.
	if err := uc.ClearHistory(context.Background(), "s1"); err != nil {
		t.Fatalf("ClearHistory failed: %v", err)
	}
	if got := history.sessionTurns("s1"); len(got) != 0 {
		t.Errorf("expected session rows deleted, got %d", len(got))
	}
	if cache.store["s1"] != nil {
		t.Error("expected cache entry dropped")
	}
}

func TestChat_HistoryCacheServesOnlyCoveringWindows(t *testing.T) {
	history := &mockHistoryRepo{}
	cache := &mockHistoryCache{}
	uc := newTestChatUC(history, &mockVectorStore{hits: testHits()}, &mockAI{}, nil, cache)

	for i := 0; i < 15; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		turn := model.ChatTurn{SessionID: "s1", Role: role, Content: fmt.Sprintf("turn %d", i)}
		if err := history.Append(context.Background(), nil, &turn); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	// Warm the cache with a small window.
	turns, err := uc.GetHistory(context.Background(), "s1", 10)
	if err != nil || len(turns) != 10 {
		t.Fatalf("GetHistory(10) = %d turns, err %v", len(turns), err)
	}

	// A wider request must not be truncated to the cached window.
	turns, err = uc.GetHistory(context.Background(), "s1", 15)
	if err != nil {
		t.Fatalf("GetHistory(15) failed: %v", err)
	}
	if len(turns) != 15 {
		t.Fatalf("expected 15 turns from the repository, got %d", len(turns))
	}
	if turns[0].Content != "turn 0" {
		t.Errorf("expected the oldest turn first, got %q", turns[0].Content)
	}

	// The cache now covers 15 turns; narrower reads are served from it even
	// when the repository is unavailable.
	history.err = errors.New("pg down")
	turns, err = uc.GetHistory(context.Background(), "s1", 5)
	if err != nil || len(turns) != 5 {
		t.Fatalf("GetHistory(5) = %d turns, err %v", len(turns), err)
	}
	if turns[4].Content != "turn 14" {
		t.Errorf("expected the newest turn last, got %q", turns[4].Content)
	}
}

func TestChat_PersistFailureDoesNotFailAnswer(t *testing.T) {
	history := &mockHistoryRepo{err: errors.New("pg down")}
	uc := newTestChatUC(history, &mockVectorStore{hits: testHits()}, &mockAI{}, nil, nil)

	ans, err := uc.Answer(context.Background(), ChatRequest{Query: "q", SessionID: "s1"})
	if err != nil {
		t.Fatalf("expected answer despite persistence failure, got %v", err)
	}
	if ans.Answer == "" {
		t.Error("expected a non-empty answer")
	}
}

func TestChat_LanguageFilterForwarded(t *testing.T) {
	vectors := &mockVectorStore{hits: testHits()}
	uc := newTestChatUC(&mockHistoryRepo{}, vectors, &mockAI{}, nil, nil)

	if _, err := uc.Answer(context.Background(), ChatRequest{Query: "q", Language: "en"}); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if vectors.lastFilters == nil || vectors.lastFilters.Language != "en" {
		t.Errorf("expected language filter forwarded, got %+v", vectors.lastFilters)
	}

	if _, err := uc.Answer(context.Background(), ChatRequest{Query: "q"}); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if vectors.lastFilters != nil {
		t.Error("expected nil filters when no constraints were given")
	}
}
