package vector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"media-insight/internal/domain"
	"media-insight/internal/domain/ports/adapter"
)

func TestQdrantStore_Search(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/media_chunks/points/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("expected api-key header, got %q", r.Header.Get("api-key"))
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":[
			{"id":"p1","score":0.92,"payload":{"text":"hello","title":"talk","media_id":"m1","language":"en","start_time":1.5,"end_time":4.0,"kind":"paragraph"}},
			{"id":"p2","score":0.81,"payload":{"text":"world"}}
		]}`))
	}))
	defer srv.Close()

	store, err := NewQdrantStore(srv.URL, "secret", "media_chunks")
	if err != nil {
		t.Fatalf("NewQdrantStore failed: %v", err)
	}

	hits, err := store.Search(context.Background(), []float32{0.1, 0.2}, 5, 0.7, &adapter.SearchFilters{Language: "en"})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "p1" || hits[0].Score != 0.92 || hits[0].Title != "talk" {
		t.Errorf("unexpected first hit: %+v", hits[0])
	}
	if hits[0].StartTime != 1.5 || hits[0].SourceKind != "paragraph" {
		t.Errorf("payload fields not mapped: %+v", hits[0])
	}

	if gotBody["score_threshold"] != 0.7 {
		t.Errorf("expected score_threshold in request, got %v", gotBody["score_threshold"])
	}
	if gotBody["filter"] == nil {
		t.Error("expected language filter in request")
	}
}

func TestQdrantStore_StoreAndDelete(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.RequestURI())
		w.Write([]byte(`{"result":{}}`))
	}))
	defer srv.Close()

	store, _ := NewQdrantStore(srv.URL, "", "media_chunks")

	points := []adapter.VectorPoint{
		{ID: "a", Vector: []float32{0.1}, Text: "one", MediaID: "m1"},
	}
	if err := store.Store(context.Background(), points); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := store.Store(context.Background(), nil); err != nil {
		t.Fatalf("empty Store should be a no-op, got %v", err)
	}
	if err := store.Delete(context.Background(), "m1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete(context.Background(), ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty media id, got %v", err)
	}

	want := []string{
		"PUT /collections/media_chunks/points?wait=true",
		"POST /collections/media_chunks/points/delete?wait=true",
	}
	if len(paths) != len(want) {
		t.Fatalf("expected %d requests, got %v", len(want), paths)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("request %d: expected %s, got %s", i, want[i], paths[i])
		}
	}
}

func TestQdrantStore_Unavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	store, _ := NewQdrantStore(srv.URL, "", "")
	_, err := store.Search(context.Background(), []float32{0.1}, 5, 0, nil)
	if !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if err := store.Ping(context.Background()); !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected Ping to report ErrUnavailable, got %v", err)
	}
}

func TestVikingDBStore_SearchThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/index/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"data":[[
			{"score":0.9,"fields":{"id":"a","text":"keep"}},
			{"score":0.4,"fields":{"id":"b","text":"drop"}}
		]]}`))
	}))
	defer srv.Close()

	store, err := NewVikingDBStore(srv.URL, "key", "media_chunks")
	if err != nil {
		t.Fatalf("NewVikingDBStore failed: %v", err)
	}
	hits, err := store.Search(context.Background(), []float32{0.1}, 5, 0.7, nil)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	// Cutoff is applied client-side for this backend.
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Fatalf("expected only the hit above threshold, got %+v", hits)
	}
}

func TestFactory(t *testing.T) {
	if _, err := New("qdrant", "http://localhost:6333", "", ""); err != nil {
		t.Errorf("qdrant backend should construct: %v", err)
	}
	if _, err := New("vikingdb", "http://example.com", "key", ""); err != nil {
		t.Errorf("vikingdb backend should construct: %v", err)
	}
	if _, err := New("pinecone", "http://example.com", "", ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown backend, got %v", err)
	}
}
