package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
	"github.com/woonylab/bookchat/internal/prompts"
)

const (
	answerHistoryTurns = 5
	memoryTurnsInUse   = 5
)

// AnswerGenerator composes the final prompt from the request state and
// invokes the capable completion model.
type AnswerGenerator struct {
	completer ports.Completer
	model     string
	catalog   *prompts.Catalog
	logger    *slog.Logger
}

func NewAnswerGenerator(completer ports.Completer, model string, catalog *prompts.Catalog, logger *slog.Logger) *AnswerGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerGenerator{completer: completer, model: model, catalog: catalog, logger: logger}
}

func (g *AnswerGenerator) Generate(ctx context.Context, state *domain.RequestState) (string, error) {
	prompt := g.buildPrompt(state)
	answer, err := g.completer.Complete(ctx, prompt, g.model)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

func (g *AnswerGenerator) buildPrompt(state *domain.RequestState) string {
	lang := state.DetectedLanguage
	var sb strings.Builder
	sb.WriteString(g.catalog.Template(lang, "answer_system"))
	sb.WriteString("\n\n")

	if tone := g.catalog.GenreTone(lang, state.CharacterGenre); tone != "" {
		sb.WriteString(tone)
		sb.WriteString("\n\n")
	}

	sb.WriteString(g.intentInstruction(lang, state.Intent))
	sb.WriteString("\n")

	if len(state.RetrievedDocuments) > 0 {
		sb.WriteString("\nContext:\n")
		for i, doc := range state.RetrievedDocuments {
			fmt.Fprintf(&sb, "[%d] %s\n", i+1, doc.Content)
		}
	}

	if state.FallbackToMemory && len(state.MemoryConversations) > 0 {
		sb.WriteString("\nRelated earlier conversation:\n")
		for i, scored := range state.MemoryConversations {
			if i == memoryTurnsInUse {
				break
			}
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", scored.Turn.Query, scored.Turn.Response)
		}
	}

	if n := len(state.ConversationHistory); n > 0 {
		start := n - answerHistoryTurns
		if start < 0 {
			start = 0
		}
		sb.WriteString("\nConversation so far:\n")
		for _, turn := range state.ConversationHistory[start:] {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", turn.Query, turn.Response)
		}
	}

	fmt.Fprintf(&sb, "\nUser: %s\nAssistant:", state.Query)
	return sb.String()
}

func (g *AnswerGenerator) intentInstruction(lang string, intent domain.Intent) string {
	switch intent {
	case domain.IntentDetailed:
		return g.catalog.Template(lang, "answer_detailed")
	case domain.IntentDocumentList:
		return g.catalog.Template(lang, "answer_document_list")
	case domain.IntentFollowUpSummary:
		return g.catalog.Template(lang, "answer_follow_up")
	default:
		return g.catalog.Template(lang, "answer_general_chat")
	}
}
