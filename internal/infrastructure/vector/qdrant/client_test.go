package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/woonylab/bookchat/internal/core/domain"
)

func TestEnsureCollectionIsIdempotent(t *testing.T) {
	var ensureCalls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && r.URL.Path == "/collections/u1_documents" {
			if atomic.AddInt32(&ensureCalls, 1) > 1 {
				w.WriteHeader(http.StatusConflict)
				return
			}
			w.WriteHeader(http.StatusCreated)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.EnsureCollection(context.Background(), "u1_documents", 4); err != nil {
		t.Fatalf("first EnsureCollection() error = %v", err)
	}
	if err := client.EnsureCollection(context.Background(), "u1_documents", 4); err != nil {
		t.Fatalf("second EnsureCollection() error = %v", err)
	}
	// Second call is served from the ensure cache.
	if got := atomic.LoadInt32(&ensureCalls); got != 1 {
		t.Fatalf("expected one ensure request, got %d", got)
	}
}

func TestEnsureCollectionTreatsConflictAsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer server.Close()

	client := New(server.URL)
	if err := client.EnsureCollection(context.Background(), "u1_documents", 4); err != nil {
		t.Fatalf("EnsureCollection() on conflict error = %v", err)
	}
}

func TestSearchMissingCollectionReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL)
	got, err := client.Search(context.Background(), "nobody_documents", []float32{0.1, 0.2}, 5, 0.25)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result for missing collection, got %d", len(got))
	}
}

func TestSearchWrapsBackendErrorAsStorageFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.Search(context.Background(), "u1_documents", []float32{0.1}, 5, 0)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrStorage) {
		t.Fatalf("expected storage failure kind, got %v", err)
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected error to include body, got %v", err)
	}
}

func TestScrollAllFollowsPagination(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/u1_documents/points/scroll" {
			http.NotFound(w, r)
			return
		}
		call := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if call == 1 {
			_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"content":"a"}},{"payload":{"content":"b"}}],"next_page_offset":2}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":{"points":[{"payload":{"content":"c"}}],"next_page_offset":null}}`))
	}))
	defer server.Close()

	client := New(server.URL)
	points, err := client.ScrollAll(context.Background(), "u1_documents", 2)
	if err != nil {
		t.Fatalf("ScrollAll() error = %v", err)
	}
	if len(points) != 3 {
		t.Fatalf("expected 3 points across pages, got %d", len(points))
	}
	if got := getStringPayload(points[2].Payload, "content"); got != "c" {
		t.Fatalf("expected last point content c, got %q", got)
	}
}

func TestScrollSampleIssuesOneBoundedRequest(t *testing.T) {
	var calls int32
	var requestedLimit int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/collections/u1_documents/points/scroll" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)

		var req struct {
			Limit int64 `json:"limit"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		atomic.StoreInt64(&requestedLimit, req.Limit)

		// A large collection: more pages remain after this one.
		points := make([]string, req.Limit)
		for i := range points {
			points[i] = `{"payload":{"content":"x"}}`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"points":[` + strings.Join(points, ",") + `],"next_page_offset":500}}`))
	}))
	defer server.Close()

	client := New(server.URL)
	points, err := client.ScrollSample(context.Background(), "u1_documents", 500)
	if err != nil {
		t.Fatalf("ScrollSample() error = %v", err)
	}
	if len(points) != 500 {
		t.Fatalf("expected 500 points, got %d", len(points))
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected a single scroll request despite next_page_offset, got %d", got)
	}
	if got := atomic.LoadInt64(&requestedLimit); got != 500 {
		t.Fatalf("expected request limit 500, got %d", got)
	}
}

func TestScrollSampleMissingCollectionReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL)
	points, err := client.ScrollSample(context.Background(), "nobody_documents", 500)
	if err != nil {
		t.Fatalf("ScrollSample() error = %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("expected empty result, got %d", len(points))
	}
}

func TestUpsertSendsIntegerPointIDs(t *testing.T) {
	var captured struct {
		Points []struct {
			ID json.Number `json:"id"`
		} `json:"points"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/collections/u1_documents/points") {
			dec := json.NewDecoder(r.Body)
			dec.UseNumber()
			_ = dec.Decode(&captured)
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL)
	points := []domain.VectorPoint{
		{ID: 7, Vector: []float32{0.1}, Payload: map[string]any{"content": "x"}},
		{ID: 8, Vector: []float32{0.2}, Payload: map[string]any{"content": "y"}},
	}
	if err := client.Upsert(context.Background(), "u1_documents", points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if len(captured.Points) != 2 {
		t.Fatalf("expected 2 points captured, got %d", len(captured.Points))
	}
	if captured.Points[0].ID.String() != "7" || captured.Points[1].ID.String() != "8" {
		t.Fatalf("expected ids 7,8, got %s,%s", captured.Points[0].ID, captured.Points[1].ID)
	}
}

func TestCountMissingCollectionIsZero(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	client := New(server.URL)
	n, err := client.Count(context.Background(), "nobody_documents")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("expected count 0, got %d", n)
	}
}
