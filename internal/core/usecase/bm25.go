package usecase

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75

	defaultBM25SampleSize = 500
)

type bm25Document struct {
	content  string
	metadata map[string]any
}

// bm25Index scores queries against a bounded sample of a collection,
// not the full corpus.
type bm25Index struct {
	docs      []bm25Document
	docTokens [][]string
	docFreq   map[string]int
	avgDocLen float64
}

// buildBM25Index returns nil when no document has usable content; the
// caller must then degrade to vector-only retrieval.
func buildBM25Index(docs []bm25Document) *bm25Index {
	idx := &bm25Index{docFreq: make(map[string]int)}
	var totalLen int
	for _, doc := range docs {
		tokens := tokenizeAlphaNum(doc.content)
		if len(tokens) == 0 {
			continue
		}
		idx.docs = append(idx.docs, doc)
		idx.docTokens = append(idx.docTokens, tokens)
		totalLen += len(tokens)

		seen := make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			if !seen[tok] {
				seen[tok] = true
				idx.docFreq[tok]++
			}
		}
	}
	if len(idx.docs) == 0 {
		return nil
	}
	idx.avgDocLen = float64(totalLen) / float64(len(idx.docs))
	return idx
}

func (idx *bm25Index) score(query string, k int) []domain.RetrievedDocument {
	queryTokens := tokenizeAlphaNum(query)
	if len(queryTokens) == 0 || k <= 0 {
		return nil
	}

	n := float64(len(idx.docs))
	scores := make([]float64, len(idx.docs))
	for i, tokens := range idx.docTokens {
		tf := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			tf[tok]++
		}
		docLen := float64(len(tokens))
		for _, qt := range queryTokens {
			freq := float64(tf[qt])
			if freq == 0 {
				continue
			}
			df := float64(idx.docFreq[qt])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			numer := freq * (bm25K1 + 1)
			denom := freq + bm25K1*(1-bm25B+bm25B*docLen/idx.avgDocLen)
			scores[i] += idf * numer / denom
		}
	}

	order := make([]int, len(idx.docs))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	out := make([]domain.RetrievedDocument, 0, k)
	for _, i := range order {
		if scores[i] <= 0 {
			break
		}
		out = append(out, domain.RetrievedDocument{
			Content:  idx.docs[i].content,
			Metadata: idx.docs[i].metadata,
			Score:    scores[i],
		})
		if len(out) == k {
			break
		}
	}
	return out
}

func tokenizeAlphaNum(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// BM25Cache builds lexical indexes lazily per (user, collection) key and
// keeps them until explicitly invalidated. Concurrent requests for the
// same uncached key may race to build; the first committed build wins
// and the duplicate work is a bounded cost, not a correctness issue.
type BM25Cache struct {
	index      ports.VectorIndex
	sampleSize int
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*bm25Index
}

func NewBM25Cache(index ports.VectorIndex, sampleSize int, logger *slog.Logger) *BM25Cache {
	if sampleSize <= 0 {
		sampleSize = defaultBM25SampleSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BM25Cache{
		index:      index,
		sampleSize: sampleSize,
		logger:     logger,
		entries:    make(map[string]*bm25Index),
	}
}

func cacheKey(userID, collection string) string {
	return userID + ":" + collection
}

// Get returns the cached index for the key, building it on first use.
// Nil means the collection has no usable lexical sample.
func (c *BM25Cache) Get(ctx context.Context, userID, collection string) *bm25Index {
	key := cacheKey(userID, collection)

	c.mu.Lock()
	if idx, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return idx
	}
	c.mu.Unlock()

	idx := c.build(ctx, collection)
	if idx == nil {
		// Failed or empty builds are not cached so a later request can
		// pick up newly indexed chunks.
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[key]; ok {
		return existing
	}
	c.entries[key] = idx
	return idx
}

func (c *BM25Cache) build(ctx context.Context, collection string) *bm25Index {
	points, err := c.index.ScrollSample(ctx, collection, c.sampleSize)
	if err != nil {
		c.logger.Warn("bm25_sample_failed", "collection", collection, "error", err)
		return nil
	}

	docs := make([]bm25Document, 0, len(points))
	for _, p := range points {
		content, _ := p.Payload["content"].(string)
		if strings.TrimSpace(content) == "" {
			continue
		}
		docs = append(docs, bm25Document{content: content, metadata: p.Payload})
	}
	return buildBM25Index(docs)
}

// Invalidate drops every cached entry belonging to the user. Called from
// the upload pipeline so new chunks become lexically searchable.
func (c *BM25Cache) Invalidate(userID string) {
	prefix := userID + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}
