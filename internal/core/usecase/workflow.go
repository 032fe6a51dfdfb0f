package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
	"github.com/woonylab/bookchat/internal/language"
	"github.com/woonylab/bookchat/internal/prompts"
)

const apologyAnswer = "Sorry, an error occurred while generating a response."

type workflowStep int

const (
	stepIntentAnalysis workflowStep = iota
	stepContextManagement
	stepRetrieval
	stepFollowUpHandling
	stepFallbackGeneralChat
	stepAnswerGeneration
	stepDone
)

// Workflow drives one chat request through the intent/retrieval/answer
// state machine. Chat never panics out and only returns an error for
// invalid input; every internal fault degrades to a templated answer.
type Workflow struct {
	classifier      *IntentClassifier
	retriever       *Retriever
	answerer        *AnswerGenerator
	conversations   ports.ConversationStore
	catalog         *prompts.Catalog
	memoryTopK      int
	memoryThreshold float64
	logger          *slog.Logger
}

func NewWorkflow(
	classifier *IntentClassifier,
	retriever *Retriever,
	answerer *AnswerGenerator,
	conversations ports.ConversationStore,
	catalog *prompts.Catalog,
	memoryTopK int,
	memoryThreshold float64,
	logger *slog.Logger,
) *Workflow {
	if memoryTopK <= 0 {
		memoryTopK = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		classifier:      classifier,
		retriever:       retriever,
		answerer:        answerer,
		conversations:   conversations,
		catalog:         catalog,
		memoryTopK:      memoryTopK,
		memoryThreshold: memoryThreshold,
		logger:          logger,
	}
}

func (w *Workflow) Chat(ctx context.Context, req domain.ChatRequest) (result *domain.ChatResult, err error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("user_id is required"))
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat", fmt.Errorf("query is required"))
	}

	state := &domain.RequestState{
		UserID:         req.UserID,
		Query:          req.Query,
		CharacterGenre: req.CharacterGenre,
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("chat_workflow_panic", "user_id", req.UserID, "panic", r)
			state.Answer = apologyAnswer
			state.Intent = domain.IntentError
			state.Error = fmt.Sprintf("panic: %v", r)
			w.persistTurn(ctx, state)
			result, err = w.result(state), nil
		}
	}()

	state.DetectedLanguage = language.Detect(req.Query)
	state.ConversationHistory = w.conversations.Recent(req.UserID, answerHistoryTurns)

	for step := stepIntentAnalysis; step != stepDone; {
		w.runStep(ctx, step, state)
		step = nextStep(step, state)
	}

	w.persistTurn(ctx, state)
	return w.result(state), nil
}

// nextStep is the transition function of the state machine. It depends
// only on the current step, the classified intent, and whether
// retrieval produced documents.
func nextStep(current workflowStep, state *domain.RequestState) workflowStep {
	switch current {
	case stepIntentAnalysis:
		switch state.Intent {
		case domain.IntentFollowUpSummary:
			return stepFollowUpHandling
		case domain.IntentGeneralChat:
			return stepAnswerGeneration
		default:
			return stepContextManagement
		}
	case stepContextManagement:
		if state.Answer != "" {
			// Templated short-circuit, e.g. empty corpus.
			return stepDone
		}
		return stepRetrieval
	case stepRetrieval:
		if state.Error != "" || len(state.RetrievedDocuments) == 0 {
			return stepFallbackGeneralChat
		}
		return stepAnswerGeneration
	case stepFollowUpHandling, stepFallbackGeneralChat:
		return stepAnswerGeneration
	default:
		return stepDone
	}
}

func (w *Workflow) runStep(ctx context.Context, step workflowStep, state *domain.RequestState) {
	switch step {
	case stepIntentAnalysis:
		res := w.classifier.Classify(ctx, state.Query, state.DetectedLanguage, state.ConversationHistory)
		state.Intent = res.PrimaryIntent
		state.Confidence = res.Confidence
		state.ReferenceIndex = res.ReferenceIndex
		state.ReferenceType = res.ReferenceType

	case stepContextManagement:
		if w.retriever.CorpusSize(ctx, state.UserID) == 0 {
			state.Answer = w.catalog.Template(state.DetectedLanguage, "upload_first")
			state.Intent = domain.IntentGeneralChat
		}

	case stepRetrieval:
		if state.Intent == domain.IntentDocumentList {
			state.RetrievedDocuments = w.retriever.BookSamples(ctx, state.UserID)
		} else {
			state.RetrievedDocuments = w.retriever.Retrieve(ctx, state.UserID, state.Query)
		}

	case stepFollowUpHandling:
		doc := resolveFollowUp(w.conversations, w.catalog, state)
		state.RetrievedDocuments = append(state.RetrievedDocuments, doc)

	case stepFallbackGeneralChat:
		w.memoryFallback(ctx, state)
		state.Intent = domain.IntentGeneralChat
		state.Error = ""
		state.RetrievedDocuments = nil

	case stepAnswerGeneration:
		answer, err := w.answerer.Generate(ctx, state)
		if err != nil {
			w.logger.Error("answer_generation_failed", "user_id", state.UserID, "error", err)
			state.Answer = apologyAnswer
			state.Intent = domain.IntentError
			state.Error = err.Error()
			return
		}
		state.Answer = answer
	}
}

// memoryFallback searches earlier conversation turns when document
// retrieval came back empty, so the general-chat answer can still lean
// on something the user said before.
func (w *Workflow) memoryFallback(ctx context.Context, state *domain.RequestState) {
	turns, err := w.conversations.SearchSimilar(ctx, state.UserID, state.Query, w.memoryTopK, w.memoryThreshold)
	if err != nil {
		w.logger.Warn("memory_fallback_failed", "user_id", state.UserID, "error", err)
		return
	}
	if len(turns) == 0 {
		return
	}
	state.FallbackToMemory = true
	state.MemoryConversations = turns
}

func (w *Workflow) persistTurn(ctx context.Context, state *domain.RequestState) {
	if state.Answer == "" {
		return
	}
	if err := w.conversations.Append(ctx, state.UserID, state.Query, state.Answer); err != nil {
		w.logger.Warn("conversation_persist_failed", "user_id", state.UserID, "error", err)
	}
}

func (w *Workflow) result(state *domain.RequestState) *domain.ChatResult {
	return &domain.ChatResult{
		Answer:           state.Answer,
		Intent:           state.Intent,
		Confidence:       state.Confidence,
		DetectedLanguage: state.DetectedLanguage,
		RetrievedCount:   len(state.RetrievedDocuments),
		FallbackToMemory: state.FallbackToMemory,
	}
}
