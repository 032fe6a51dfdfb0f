package usecase

import (
	"fmt"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/core/ports"
	"github.com/woonylab/bookchat/internal/prompts"
)

const (
	refTypeLast            = "last"
	refTypeOutOfRange      = "last (out of range fallback)"
	followUpSource         = "conversation_history"
	followUpReferenceType  = "follow_up_reference"
	followUpPlaceholderTag = "follow_up_placeholder"
)

// resolveFollowUp maps a back-reference from intent classification to a
// pseudo-document built from the referenced conversation turn. The
// pseudo-document flows through answer generation like a real hit.
func resolveFollowUp(store ports.ConversationStore, catalog *prompts.Catalog, state *domain.RequestState) domain.RetrievedDocument {
	index := -1
	refType := refTypeLast
	if state.ReferenceIndex != nil {
		index = *state.ReferenceIndex
		if state.ReferenceType != "" {
			refType = state.ReferenceType
		}
	}

	total := store.Count(state.UserID)
	if total == 0 {
		return placeholderDocument(catalog.Template(state.DetectedLanguage, "no_prior_conversation"))
	}
	if index >= 0 && index >= total {
		index = -1
		refType = refTypeOutOfRange
	}

	turn := store.GetByIndex(state.UserID, index)
	if turn == nil {
		return placeholderDocument(catalog.Template(state.DetectedLanguage, "turn_not_found"))
	}

	state.ReferenceIndex = &index
	state.ReferenceType = refType
	return domain.RetrievedDocument{
		Content: fmt.Sprintf("Previous question: %s\nPrevious answer: %s", turn.Query, turn.Response),
		Metadata: map[string]any{
			"source":            followUpSource,
			"type":              followUpReferenceType,
			"resolved_index":    index,
			"resolved_type":     refType,
			"original_query":    turn.Query,
			"original_response": turn.Response,
		},
		Score: 1.0,
	}
}

func placeholderDocument(text string) domain.RetrievedDocument {
	return domain.RetrievedDocument{
		Content: text,
		Metadata: map[string]any{
			"source": followUpSource,
			"type":   followUpPlaceholderTag,
		},
		Score: 1.0,
	}
}
