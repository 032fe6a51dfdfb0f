package chatmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/woonylab/bookchat/internal/core/domain"
)

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

type fakeMemoryVectors struct {
	mu            sync.Mutex
	indexed       []domain.ConversationTurn
	searchResults []domain.ScoredTurn
	gotThreshold  float64
}

func (f *fakeMemoryVectors) IndexTurn(_ context.Context, _ string, turn domain.ConversationTurn, _ []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, turn)
	return nil
}

func (f *fakeMemoryVectors) SearchTurns(_ context.Context, _ string, _ []float32, _ int, threshold float64) ([]domain.ScoredTurn, error) {
	f.gotThreshold = threshold
	return f.searchResults, nil
}

func TestGetByIndexNegativeIndexingRoundTrip(t *testing.T) {
	store := NewStore(nil, nil, nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		query := fmt.Sprintf("q%d", i)
		if err := store.Append(ctx, "u1", query, "r"); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
		last := store.GetByIndex("u1", -1)
		if last == nil || last.Query != query {
			t.Fatalf("after append %d, GetByIndex(-1) = %+v, want query %q", i, last, query)
		}
	}

	if got := store.GetByIndex("u1", 0); got == nil || got.Query != "q0" {
		t.Fatalf("GetByIndex(0) = %+v, want q0", got)
	}
	if got := store.GetByIndex("u1", -5); got == nil || got.Query != "q0" {
		t.Fatalf("GetByIndex(-5) = %+v, want q0", got)
	}
	if got := store.GetByIndex("u1", 5); got != nil {
		t.Fatalf("GetByIndex(5) = %+v, want nil", got)
	}
	if got := store.GetByIndex("u1", -6); got != nil {
		t.Fatalf("GetByIndex(-6) = %+v, want nil", got)
	}
	if got := store.GetByIndex("nobody", -1); got != nil {
		t.Fatalf("GetByIndex for unknown user = %+v, want nil", got)
	}
}

func TestAppendIndexesTurnAsynchronously(t *testing.T) {
	vectors := &fakeMemoryVectors{}
	store := NewStore(&fakeEmbedder{}, vectors, nil)

	if err := store.Append(context.Background(), "u1", "hello", "hi"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	store.Wait()

	vectors.mu.Lock()
	defer vectors.mu.Unlock()
	if len(vectors.indexed) != 1 {
		t.Fatalf("expected 1 indexed turn, got %d", len(vectors.indexed))
	}
	if vectors.indexed[0].Query != "hello" {
		t.Fatalf("indexed turn query = %q, want hello", vectors.indexed[0].Query)
	}
}

func TestAppendSurvivesEmbeddingFailure(t *testing.T) {
	store := NewStore(&fakeEmbedder{err: fmt.Errorf("provider down")}, &fakeMemoryVectors{}, nil)

	if err := store.Append(context.Background(), "u1", "q", "r"); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	store.Wait()

	// Log write is authoritative regardless of vector failure.
	if store.Count("u1") != 1 {
		t.Fatalf("expected count 1 after failed vector write, got %d", store.Count("u1"))
	}
}

func TestSearchSimilarCapsThreshold(t *testing.T) {
	vectors := &fakeMemoryVectors{
		searchResults: []domain.ScoredTurn{
			{Turn: domain.ConversationTurn{Query: "low"}, Score: 0.4},
			{Turn: domain.ConversationTurn{Query: "high"}, Score: 0.9},
		},
	}
	store := NewStore(&fakeEmbedder{}, vectors, nil)

	hits, err := store.SearchSimilar(context.Background(), "u1", "query", 5, 0.8)
	if err != nil {
		t.Fatalf("SearchSimilar() error = %v", err)
	}
	if vectors.gotThreshold != 0.3 {
		t.Fatalf("expected threshold capped at 0.3, got %v", vectors.gotThreshold)
	}
	if len(hits) != 2 || hits[0].Turn.Query != "high" {
		t.Fatalf("expected hits sorted by descending score, got %+v", hits)
	}
}

func TestConcurrentAppendsDoNotInterfereAcrossUsers(t *testing.T) {
	store := NewStore(nil, nil, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for u := 0; u < 4; u++ {
		userID := fmt.Sprintf("user-%d", u)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				_ = store.Append(ctx, userID, fmt.Sprintf("q%d", i), "r")
			}
		}()
	}
	wg.Wait()

	for u := 0; u < 4; u++ {
		userID := fmt.Sprintf("user-%d", u)
		if got := store.Count(userID); got != 50 {
			t.Fatalf("user %s count = %d, want 50", userID, got)
		}
	}
}
