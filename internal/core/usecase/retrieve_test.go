package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/woonylab/bookchat/internal/core/domain"
)

func TestDynamicCandidateCount(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"sky", 8},
		{"what color is it", 12},
		{"one two three four five six seven eight nine ten", 25},
		{"", 8},
	}
	for _, tt := range tests {
		if got := dynamicCandidateCount(tt.query); got != tt.want {
			t.Errorf("dynamicCandidateCount(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

func TestEnsembleWeightsValidated(t *testing.T) {
	index := &fakeVectorIndex{}
	cache := NewBM25Cache(index, 500, nil)
	embedder := &fakeEmbedder{dim: 4}

	if _, err := NewRetriever(embedder, index, cache, 0.7, 0.4, 0.25, "_documents", nil); err == nil {
		t.Fatalf("expected error for weights summing to 1.1")
	}
	if _, err := NewRetriever(embedder, index, cache, -0.1, 1.1, 0.25, "_documents", nil); err == nil {
		t.Fatalf("expected error for negative weight")
	}
	if _, err := NewRetriever(embedder, index, cache, 0.7, 0.3, 0.25, "_documents", nil); err != nil {
		t.Fatalf("valid weights rejected: %v", err)
	}
}

func TestDedupKeepsFirstOccurrence(t *testing.T) {
	long := strings.Repeat("a", 200)
	docs := []domain.RetrievedDocument{
		{Content: long + " tail one", Score: 0.9},
		{Content: "unique", Score: 0.8},
		{Content: long + " tail two", Score: 0.7},
		{Content: "unique", Score: 0.6},
	}

	got := dedupDocuments(docs)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if !strings.HasSuffix(got[0].Content, "tail one") {
		t.Errorf("first occurrence did not win: %q", got[0].Content)
	}
	if got[1].Content != "unique" {
		t.Errorf("order not preserved: %q", got[1].Content)
	}
}

func TestEnsembleRankCombinesAndBreaksTiesByVectorRank(t *testing.T) {
	vectorDocs := []domain.RetrievedDocument{
		{Content: "alpha", Score: 0.9},
		{Content: "beta", Score: 0.5},
		{Content: "gamma", Score: 0.1},
	}
	bm25Docs := []domain.RetrievedDocument{
		{Content: "beta", Score: 3.0},
		{Content: "delta", Score: 1.0},
	}

	got := ensembleRank(vectorDocs, bm25Docs, 0.7, 0.3)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	// beta appears in both lists: 0.7*0.5 + 0.3*1.0 = 0.65, below alpha's 0.7.
	if got[0].Content != "alpha" || got[1].Content != "beta" {
		t.Fatalf("order = [%s %s ...], want [alpha beta ...]", got[0].Content, got[1].Content)
	}
	// gamma (vector rank 2, combined 0) ties delta's bm25 floor; vector rank wins.
	last2 := []string{got[2].Content, got[3].Content}
	if last2[0] != "gamma" || last2[1] != "delta" {
		t.Fatalf("tail = %v, want [gamma delta]", last2)
	}
}

func TestRetrieveVectorOnlyWhenLexicalSampleEmpty(t *testing.T) {
	index := &fakeVectorIndex{
		searchHits: []domain.ScoredPoint{
			{Score: 0.9, Payload: map[string]any{"content": "The sky is blue."}},
		},
		// Empty scroll: BM25 build yields nil.
	}
	cache := NewBM25Cache(index, 500, nil)
	r, err := NewRetriever(&fakeEmbedder{dim: 4}, index, cache, 0.7, 0.3, 0.25, "_documents", nil)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	docs := r.Retrieve(context.Background(), "u1", "what color is the sky")
	if len(docs) != 1 {
		t.Fatalf("len = %d, want 1", len(docs))
	}
	if docs[0].Content != "The sky is blue." {
		t.Fatalf("content = %q", docs[0].Content)
	}
	if index.lastSearchK != 15 {
		t.Errorf("search k = %d, want 15 for 5-word query", index.lastSearchK)
	}
}

func TestRetrieveReturnsEmptyOnEmbedFailure(t *testing.T) {
	index := &fakeVectorIndex{}
	cache := NewBM25Cache(index, 500, nil)
	r, err := NewRetriever(&fakeEmbedder{dim: 4, err: context.DeadlineExceeded}, index, cache, 0.7, 0.3, 0.25, "_documents", nil)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	if docs := r.Retrieve(context.Background(), "u1", "anything"); len(docs) != 0 {
		t.Fatalf("expected empty result, got %d docs", len(docs))
	}
}

func TestBookSamplesOnePseudoDocumentPerBook(t *testing.T) {
	index := &fakeVectorIndex{
		scrollHits: []domain.ScoredPoint{
			{Payload: map[string]any{"content": "first book page", "book_id": "1", "page_key": 1}},
			{Payload: map[string]any{"content": "second book page", "book_id": "2", "page_key": 1}},
			{Payload: map[string]any{"content": strings.Repeat("x", 600), "book_id": "2", "page_key": 2}},
		},
	}
	cache := NewBM25Cache(index, 500, nil)
	r, err := NewRetriever(&fakeEmbedder{dim: 4}, index, cache, 0.7, 0.3, 0.25, "_documents", nil)
	if err != nil {
		t.Fatalf("NewRetriever() error = %v", err)
	}

	docs := r.BookSamples(context.Background(), "u1")
	if len(docs) != 2 {
		t.Fatalf("len = %d, want one pseudo-document per book", len(docs))
	}
	if docs[0].Metadata["book_id"] != "1" || docs[1].Metadata["book_id"] != "2" {
		t.Fatalf("book ids = %v, %v", docs[0].Metadata["book_id"], docs[1].Metadata["book_id"])
	}
	for _, line := range strings.Split(docs[1].Content, "\n") {
		if len([]rune(line)) > 500 {
			t.Fatalf("sample chunk longer than 500 chars: %d", len([]rune(line)))
		}
	}
}
