package ports

import (
	"context"

	"github.com/woonylab/bookchat/internal/core/domain"
)

// ChatService is the inbound contract for one conversational request.
type ChatService interface {
	Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResult, error)
}

// DocumentUploader accepts raw pages and enqueues async indexing.
type DocumentUploader interface {
	Upload(ctx context.Context, userID, bookID string, pages []domain.Page) (*domain.UploadJob, error)
}

// UploadProcessor is the inbound contract for asynchronous indexing.
type UploadProcessor interface {
	ProcessByID(ctx context.Context, jobID string) error
}

// CorpusReader reconstructs a user's uploaded books from the index.
type CorpusReader interface {
	UserCorpus(ctx context.Context, userID string) (*domain.UserCorpus, error)
}

// UploadReader exposes upload-job state.
type UploadReader interface {
	GetByID(ctx context.Context, id string) (*domain.UploadJob, error)
}
