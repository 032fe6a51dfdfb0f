package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
)

// IngestUseCase accepts an upload, persists the job, and hands it to
// the worker through the queue. Indexing happens asynchronously.
type IngestUseCase struct {
	repo        ports.UploadJobRepository
	queue       ports.MessageQueue
	invalidator ports.LexicalCacheInvalidator
	logger      *slog.Logger
}

func NewIngestUseCase(repo ports.UploadJobRepository, queue ports.MessageQueue, invalidator ports.LexicalCacheInvalidator, logger *slog.Logger) *IngestUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{repo: repo, queue: queue, invalidator: invalidator, logger: logger}
}

func (uc *IngestUseCase) Upload(ctx context.Context, userID, bookID string, pages []domain.Page) (*domain.UploadJob, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("user_id is required"))
	}
	if strings.TrimSpace(bookID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("book_id is required"))
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", fmt.Errorf("at least one page is required"))
	}

	now := time.Now().UTC()
	job := &domain.UploadJob{
		ID:        uuid.NewString(),
		UserID:    userID,
		BookID:    bookID,
		Pages:     pages,
		Status:    domain.UploadStatusUploaded,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := uc.queue.PublishUploadCreated(ctx, job.ID); err != nil {
		// The job row survives; a requeue or manual retry can pick it up.
		uc.logger.Error("upload_publish_failed", "job_id", job.ID, "error", err)
		return nil, err
	}

	// Cached lexical samples predate this upload.
	uc.invalidator.Invalidate(userID)

	uc.logger.Info("upload_accepted", "job_id", job.ID, "user_id", userID, "book_id", bookID, "pages", len(pages))
	return job, nil
}

// GetByID reports job status to the HTTP layer.
func (uc *IngestUseCase) GetByID(ctx context.Context, id string) (*domain.UploadJob, error) {
	return uc.repo.GetByID(ctx, id)
}
