package usecase

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
)

const (
	minCandidates = 8
	maxCandidates = 25

	dedupPrefixRunes = 200

	bookSampleChunks    = 5
	bookSampleChunkSize = 500
)

// Retriever merges dense vector search with BM25 scoring over a cached
// sample into one ranked, deduplicated document list. No error escapes
// Retrieve; every failure degrades toward an empty list.
type Retriever struct {
	embedder       ports.Embedder
	index          ports.VectorIndex
	cache          *BM25Cache
	vectorWeight   float64
	bm25Weight     float64
	scoreThreshold float64
	docSuffix      string
	logger         *slog.Logger
}

func NewRetriever(
	embedder ports.Embedder,
	index ports.VectorIndex,
	cache *BM25Cache,
	vectorWeight, bm25Weight, scoreThreshold float64,
	docSuffix string,
	logger *slog.Logger,
) (*Retriever, error) {
	if err := validateEnsembleWeights(vectorWeight, bm25Weight); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		embedder:       embedder,
		index:          index,
		cache:          cache,
		vectorWeight:   vectorWeight,
		bm25Weight:     bm25Weight,
		scoreThreshold: scoreThreshold,
		docSuffix:      docSuffix,
		logger:         logger,
	}, nil
}

func validateEnsembleWeights(vectorWeight, bm25Weight float64) error {
	if vectorWeight < 0 || bm25Weight < 0 {
		return domain.WrapError(domain.ErrInvalidInput, "ensemble weights",
			fmt.Errorf("weights must be non-negative: vector=%v bm25=%v", vectorWeight, bm25Weight))
	}
	if diff := vectorWeight + bm25Weight - 1.0; diff > 1e-9 || diff < -1e-9 {
		return domain.WrapError(domain.ErrInvalidInput, "ensemble weights",
			fmt.Errorf("weights must sum to 1.0: vector=%v bm25=%v", vectorWeight, bm25Weight))
	}
	return nil
}

func (r *Retriever) docCollection(userID string) string {
	return userID + r.docSuffix
}

// CorpusSize reports how many chunks the user has indexed. Failures are
// treated as zero so the caller degrades instead of erroring.
func (r *Retriever) CorpusSize(ctx context.Context, userID string) int {
	n, err := r.index.Count(ctx, r.docCollection(userID))
	if err != nil {
		r.logger.Warn("corpus_size_failed", "user_id", userID, "error", err)
		return 0
	}
	return n
}

// Retrieve runs hybrid retrieval for one query. Vector search and BM25
// scoring are independent reads and run concurrently.
func (r *Retriever) Retrieve(ctx context.Context, userID, query string) []domain.RetrievedDocument {
	collection := r.docCollection(userID)
	k := dynamicCandidateCount(query)

	var (
		wg         sync.WaitGroup
		vectorDocs []domain.RetrievedDocument
		bm25Docs   []domain.RetrievedDocument
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vectorDocs = r.vectorSearch(ctx, collection, query, k)
	}()
	go func() {
		defer wg.Done()
		idx := r.cache.Get(ctx, userID, collection)
		if idx == nil {
			// BM25 unavailable; vector-only retrieval.
			return
		}
		bm25Docs = idx.score(query, k)
	}()
	wg.Wait()

	combined := ensembleRank(vectorDocs, bm25Docs, r.vectorWeight, r.bm25Weight)
	return dedupDocuments(combined)
}

func (r *Retriever) vectorSearch(ctx context.Context, collection, query string, k int) []domain.RetrievedDocument {
	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		r.logger.Warn("query_embed_failed", "collection", collection, "error", err)
		return nil
	}

	points, err := r.index.Search(ctx, collection, vector, k, r.scoreThreshold)
	if err != nil {
		r.logger.Warn("vector_search_failed", "collection", collection, "error", err)
		return nil
	}

	out := make([]domain.RetrievedDocument, 0, len(points))
	for _, p := range points {
		out = append(out, domain.RetrievedDocument{
			Content:  payloadString(p.Payload, "content"),
			Metadata: p.Payload,
			Score:    p.Score,
		})
	}
	return out
}

// BookSamples builds one pseudo-document per book from a few sampled
// chunks, used for document_list intents instead of hybrid search.
func (r *Retriever) BookSamples(ctx context.Context, userID string) []domain.RetrievedDocument {
	points, err := r.index.ScrollAll(ctx, r.docCollection(userID), 256)
	if err != nil {
		r.logger.Warn("book_samples_failed", "user_id", userID, "error", err)
		return nil
	}

	chunks := make([]domain.DocumentChunk, 0, len(points))
	for _, p := range points {
		chunks = append(chunks, chunkFromPayload(p.Payload))
	}
	corpus := BuildUserCorpus(chunks)

	out := make([]domain.RetrievedDocument, 0, len(corpus.Books))
	for _, book := range corpus.Books {
		var sb strings.Builder
		for i, chunk := range book.Chunks {
			if i == bookSampleChunks {
				break
			}
			text := chunk.Text
			if runes := []rune(text); len(runes) > bookSampleChunkSize {
				text = string(runes[:bookSampleChunkSize])
			}
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		out = append(out, domain.RetrievedDocument{
			Content: sb.String(),
			Metadata: map[string]any{
				"book_id": book.BookID,
				"source":  "book_sample",
			},
			Score: 1.0,
		})
	}
	return out
}

// dynamicCandidateCount scales candidate depth with query length:
// clamp(words*3, 8, 25).
func dynamicCandidateCount(query string) int {
	k := len(strings.Fields(query)) * 3
	if k < minCandidates {
		return minCandidates
	}
	if k > maxCandidates {
		return maxCandidates
	}
	return k
}

// ensembleRank combines the two result lists with weighted min-max
// normalized scores. Ties break by vector rank; documents absent from
// the vector list rank after all vector hits at equal combined score.
func ensembleRank(vectorDocs, bm25Docs []domain.RetrievedDocument, vectorWeight, bm25Weight float64) []domain.RetrievedDocument {
	type entry struct {
		doc      domain.RetrievedDocument
		combined float64
		vecRank  int
	}

	entries := map[uint64]*entry{}
	var appended []*entry
	add := func(doc domain.RetrievedDocument, score float64, vecRank int) {
		key := contentPrefixHash(doc.Content)
		if e, ok := entries[key]; ok {
			e.combined += score
			if vecRank < e.vecRank {
				e.vecRank = vecRank
			}
			return
		}
		e := &entry{doc: doc, combined: score, vecRank: vecRank}
		entries[key] = e
		appended = append(appended, e)
	}

	vecNorm := normalizeScores(vectorDocs)
	for i, doc := range vectorDocs {
		add(doc, vectorWeight*vecNorm[i], i)
	}
	bmNorm := normalizeScores(bm25Docs)
	for i, doc := range bm25Docs {
		add(doc, bm25Weight*bmNorm[i], len(vectorDocs)+i)
	}

	sort.SliceStable(appended, func(a, b int) bool {
		if appended[a].combined != appended[b].combined {
			return appended[a].combined > appended[b].combined
		}
		return appended[a].vecRank < appended[b].vecRank
	})

	out := make([]domain.RetrievedDocument, 0, len(appended))
	for _, e := range appended {
		doc := e.doc
		doc.Score = e.combined
		out = append(out, doc)
	}
	return out
}

func normalizeScores(docs []domain.RetrievedDocument) []float64 {
	if len(docs) == 0 {
		return nil
	}
	minScore, maxScore := docs[0].Score, docs[0].Score
	for _, d := range docs[1:] {
		if d.Score < minScore {
			minScore = d.Score
		}
		if d.Score > maxScore {
			maxScore = d.Score
		}
	}

	out := make([]float64, len(docs))
	if maxScore == minScore {
		for i := range out {
			out[i] = 1.0
		}
		return out
	}
	for i, d := range docs {
		out[i] = (d.Score - minScore) / (maxScore - minScore)
	}
	return out
}

// dedupDocuments collapses documents whose first 200 characters hash
// identically; the first occurrence wins and order is preserved.
func dedupDocuments(docs []domain.RetrievedDocument) []domain.RetrievedDocument {
	seen := make(map[uint64]bool, len(docs))
	out := make([]domain.RetrievedDocument, 0, len(docs))
	for _, doc := range docs {
		key := contentPrefixHash(doc.Content)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, doc)
	}
	return out
}

func contentPrefixHash(content string) uint64 {
	runes := []rune(content)
	if len(runes) > dedupPrefixRunes {
		runes = runes[:dedupPrefixRunes]
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(runes)))
	return h.Sum64()
}
