package ports

import (
	"context"
	"time"

	"github.com/woonylab/bookchat/internal/core/domain"
)

// Embedder builds vectors for chunk and query text. A vector whose
// dimension differs from the configured size is a failure, not a result.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer invokes a completion model. The returned text is already
// normalized to a plain string; an empty normalized result is an error.
type Completer interface {
	Complete(ctx context.Context, prompt, model string) (string, error)
}

// VectorIndex is the per-collection contract against the vector store.
type VectorIndex interface {
	EnsureCollection(ctx context.Context, collection string, vectorSize int) error
	Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error
	Search(ctx context.Context, collection string, vector []float32, k int, scoreThreshold float64) ([]domain.ScoredPoint, error)
	ScrollAll(ctx context.Context, collection string, pageLimit int) ([]domain.ScoredPoint, error)
	ScrollSample(ctx context.Context, collection string, limit int) ([]domain.ScoredPoint, error)
	Count(ctx context.Context, collection string) (int, error)
}

// MemoryVectorStore indexes and searches per-user chat-memory turns.
type MemoryVectorStore interface {
	IndexTurn(ctx context.Context, userID string, turn domain.ConversationTurn, vector []float32) error
	SearchTurns(ctx context.Context, userID string, vector []float32, k int, scoreThreshold float64) ([]domain.ScoredTurn, error)
}

// ConversationStore is the authoritative per-user conversation log.
type ConversationStore interface {
	Append(ctx context.Context, userID, query, response string) error
	GetByIndex(userID string, index int) *domain.ConversationTurn
	Count(userID string) int
	Recent(userID string, n int) []domain.ConversationTurn
	SearchSimilar(ctx context.Context, userID, query string, k int, scoreThreshold float64) ([]domain.ScoredTurn, error)
}

// Chunker splits raw upload pages into ordered corpus chunks.
type Chunker interface {
	SplitPages(userID, bookID string, pages []domain.Page, uploadedAt time.Time) []domain.DocumentChunk
}

// UploadJobRepository persists upload-job state.
type UploadJobRepository interface {
	Create(ctx context.Context, job *domain.UploadJob) error
	GetByID(ctx context.Context, id string) (*domain.UploadJob, error)
	UpdateStatus(ctx context.Context, id string, status domain.UploadStatus, errMessage string) error
}

// MessageQueue publishes/consumes upload events.
type MessageQueue interface {
	PublishUploadCreated(ctx context.Context, jobID string) error
	SubscribeUploadCreated(ctx context.Context, handler func(context.Context, string) error) error
}

// LexicalCacheInvalidator drops cached lexical indexes for a user after
// the corpus changes.
type LexicalCacheInvalidator interface {
	Invalidate(userID string)
}
