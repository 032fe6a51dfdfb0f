package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
)

// ProcessUseCase runs in the worker: it takes an accepted upload job,
// chunks its pages, embeds the chunks, and writes them into the user's
// document collection.
type ProcessUseCase struct {
	repo        ports.UploadJobRepository
	chunker     ports.Chunker
	embedder    ports.Embedder
	index       ports.VectorIndex
	invalidator ports.LexicalCacheInvalidator
	docSuffix   string
	vectorSize  int
	logger      *slog.Logger
}

func NewProcessUseCase(
	repo ports.UploadJobRepository,
	chunker ports.Chunker,
	embedder ports.Embedder,
	index ports.VectorIndex,
	invalidator ports.LexicalCacheInvalidator,
	docSuffix string,
	vectorSize int,
	logger *slog.Logger,
) *ProcessUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessUseCase{
		repo:        repo,
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		invalidator: invalidator,
		docSuffix:   docSuffix,
		vectorSize:  vectorSize,
		logger:      logger,
	}
}

func (uc *ProcessUseCase) ProcessByID(ctx context.Context, jobID string) error {
	job, err := uc.repo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, job.ID, domain.UploadStatusProcessing, ""); err != nil {
		return err
	}

	if err := uc.indexJob(ctx, job); err != nil {
		uc.logger.Error("upload_processing_failed", "job_id", job.ID, "error", err)
		if updateErr := uc.repo.UpdateStatus(ctx, job.ID, domain.UploadStatusFailed, err.Error()); updateErr != nil {
			uc.logger.Error("upload_status_update_failed", "job_id", job.ID, "error", updateErr)
		}
		return err
	}

	if err := uc.repo.UpdateStatus(ctx, job.ID, domain.UploadStatusReady, ""); err != nil {
		return err
	}
	uc.logger.Info("upload_processed", "job_id", job.ID, "user_id", job.UserID, "book_id", job.BookID)
	return nil
}

func (uc *ProcessUseCase) indexJob(ctx context.Context, job *domain.UploadJob) error {
	chunks := uc.chunker.SplitPages(job.UserID, job.BookID, job.Pages, job.CreatedAt)
	if len(chunks) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "process upload", fmt.Errorf("job %s produced no chunks", job.ID))
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return domain.WrapError(domain.ErrEmbedding, "process upload",
			fmt.Errorf("embedded %d of %d chunks", len(vectors), len(chunks)))
	}

	collection := job.UserID + uc.docSuffix
	if err := uc.index.EnsureCollection(ctx, collection, uc.vectorSize); err != nil {
		return err
	}

	// New point ids continue after whatever the collection already holds.
	existing, err := uc.index.Count(ctx, collection)
	if err != nil {
		return err
	}

	points := make([]domain.VectorPoint, len(chunks))
	for i, chunk := range chunks {
		points[i] = domain.VectorPoint{
			ID:      uint64(existing + i),
			Vector:  vectors[i],
			Payload: chunkPayload(chunk),
		}
	}
	if err := uc.index.Upsert(ctx, collection, points); err != nil {
		return err
	}

	uc.invalidator.Invalidate(job.UserID)
	return nil
}
