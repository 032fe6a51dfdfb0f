package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/woonylab/bookchat/internal/config"
	"github.com/woonylab/bookchat/internal/core/ports"
	"github.com/woonylab/bookchat/internal/core/usecase"
	"github.com/woonylab/bookchat/internal/infrastructure/chatmemory"
	"github.com/woonylab/bookchat/internal/infrastructure/chunking"
	"github.com/woonylab/bookchat/internal/infrastructure/llm/openai"
	"github.com/woonylab/bookchat/internal/infrastructure/queue/nats"
	"github.com/woonylab/bookchat/internal/infrastructure/repository/postgres"
	"github.com/woonylab/bookchat/internal/infrastructure/resilience"
	"github.com/woonylab/bookchat/internal/infrastructure/vector/qdrant"
	"github.com/woonylab/bookchat/internal/observability/logging"
	"github.com/woonylab/bookchat/internal/prompts"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	ChatUC    ports.ChatService
	IngestUC  *usecase.IngestUseCase
	ProcessUC ports.UploadProcessor
	CorpusUC  ports.CorpusReader

	Memory *chatmemory.Store

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	catalog, err := prompts.Load()
	if err != nil {
		return nil, fmt.Errorf("load prompt catalog: %w", err)
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	uploadRepo := postgres.NewUploadRepository(db)
	if err := uploadRepo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	vectorDB := qdrant.New(cfg.QdrantURL)
	memoryVectors := qdrant.NewMemoryClient(vectorDB, cfg.MemoryCollectionSuffix, cfg.EmbedDimension)

	llmClient := openai.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.EmbedModel, cfg.EmbedDimension, executor)
	embedder := openai.NewEmbedder(llmClient)
	completer := openai.NewCompleter(llmClient)

	memory := chatmemory.NewStore(embedder, memoryVectors, logging.Component(logger, "chat_memory"))
	bm25Cache := usecase.NewBM25Cache(vectorDB, cfg.BM25SampleSize, logging.Component(logger, "bm25"))

	retriever, err := usecase.NewRetriever(
		embedder,
		vectorDB,
		bm25Cache,
		cfg.VectorWeight,
		cfg.BM25Weight,
		cfg.ScoreThreshold,
		cfg.DocCollectionSuffix,
		logging.Component(logger, "retriever"),
	)
	if err != nil {
		queue.Close()
		_ = db.Close()
		return nil, fmt.Errorf("init retriever: %w", err)
	}

	classifier := usecase.NewIntentClassifier(completer, cfg.IntentModel, catalog, cfg.HistoryTurns, logging.Component(logger, "intent"))
	answerer := usecase.NewAnswerGenerator(completer, cfg.AnswerModel, catalog, logging.Component(logger, "answer"))
	chatUC := usecase.NewWorkflow(
		classifier,
		retriever,
		answerer,
		memory,
		catalog,
		cfg.MemoryTopK,
		cfg.MemoryScoreThreshold,
		logging.Component(logger, "workflow"),
	)

	chunker := chunking.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	ingestUC := usecase.NewIngestUseCase(uploadRepo, queue, bm25Cache, logging.Component(logger, "ingest"))
	processUC := usecase.NewProcessUseCase(uploadRepo, chunker, embedder, vectorDB, bm25Cache, cfg.DocCollectionSuffix, cfg.EmbedDimension, logging.Component(logger, "process"))
	corpusUC := usecase.NewCorpusService(vectorDB, cfg.DocCollectionSuffix)

	return &App{
		Config: cfg,

		Queue:     queue,
		ChatUC:    chatUC,
		IngestUC:  ingestUC,
		ProcessUC: processUC,
		CorpusUC:  corpusUC,

		Memory: memory,

		closeFn: func() {
			memory.Wait()
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
