// Package chatmemory keeps the authoritative per-user conversation log
// in process and mirrors each turn into a per-user vector collection for
// similarity lookup. The log write is authoritative; the vector write is
// best effort.
package chatmemory

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
)

const maxMemoryThreshold = 0.3

type Store struct {
	embedder ports.Embedder
	vectors  ports.MemoryVectorStore
	logger   *slog.Logger

	mu    sync.RWMutex
	turns map[string][]domain.ConversationTurn

	indexTimeout time.Duration
	wg           sync.WaitGroup
}

func NewStore(embedder ports.Embedder, vectors ports.MemoryVectorStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		embedder:     embedder,
		vectors:      vectors,
		logger:       logger,
		turns:        make(map[string][]domain.ConversationTurn),
		indexTimeout: 30 * time.Second,
	}
}

// Append records a completed turn. The in-process log commits first and
// is what index-based lookup sees; vector indexing runs asynchronously
// and its failure is logged, never surfaced.
func (s *Store) Append(_ context.Context, userID, query, response string) error {
	turn := domain.ConversationTurn{
		Query:     query,
		Response:  response,
		Timestamp: time.Now().UTC(),
	}

	s.mu.Lock()
	s.turns[userID] = append(s.turns[userID], turn)
	s.mu.Unlock()

	if s.embedder == nil || s.vectors == nil {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.indexTimeout)
		defer cancel()

		vector, err := s.embedder.EmbedQuery(ctx, turn.Query+"\n"+turn.Response)
		if err != nil {
			s.logger.Warn("chat_memory_embed_failed", "user_id", userID, "error", err)
			return
		}
		if err := s.vectors.IndexTurn(ctx, userID, turn, vector); err != nil {
			s.logger.Warn("chat_memory_index_failed", "user_id", userID, "error", err)
		}
	}()
	return nil
}

// GetByIndex supports Python-style negative indexing (-1 is the most
// recent turn). Out-of-range indexes return nil.
func (s *Store) GetByIndex(userID string, index int) *domain.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[userID]
	n := len(turns)
	if n == 0 {
		return nil
	}
	if index < 0 {
		index += n
	}
	if index < 0 || index >= n {
		return nil
	}
	turn := turns[index]
	return &turn
}

func (s *Store) Count(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns[userID])
}

// Recent returns up to n most recent turns in chronological order.
func (s *Store) Recent(userID string, n int) []domain.ConversationTurn {
	if n <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.turns[userID]
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]domain.ConversationTurn, len(turns))
	copy(out, turns)
	return out
}

// SearchSimilar embeds the query and searches the user's chat-memory
// collection. The effective threshold is capped at 0.3.
func (s *Store) SearchSimilar(ctx context.Context, userID, query string, k int, scoreThreshold float64) ([]domain.ScoredTurn, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, nil
	}
	if scoreThreshold > maxMemoryThreshold {
		scoreThreshold = maxMemoryThreshold
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.vectors.SearchTurns(ctx, userID, vector, k, scoreThreshold)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	return hits, nil
}

// Wait blocks until in-flight vector writes finish. Used in tests and
// during shutdown.
func (s *Store) Wait() {
	s.wg.Wait()
}
