package domain

import "time"

type Intent string

const (
	IntentGeneralChat     Intent = "general_chat"
	IntentDocumentList    Intent = "document_list"
	IntentDetailed        Intent = "detailed"
	IntentFollowUpSummary Intent = "follow_up_summary"
	IntentError           Intent = "error"
)

func KnownIntent(s string) bool {
	switch Intent(s) {
	case IntentGeneralChat, IntentDocumentList, IntentDetailed, IntentFollowUpSummary:
		return true
	default:
		return false
	}
}

// ConversationTurn is one completed query/response pair. Immutable once
// appended; insertion order is the basis for index-based back-references.
type ConversationTurn struct {
	Query     string    `json:"query"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type ScoredTurn struct {
	Turn  ConversationTurn `json:"turn"`
	Score float64          `json:"score"`
}

type IntentResult struct {
	PrimaryIntent  Intent  `json:"primary_intent"`
	Confidence     float64 `json:"confidence"`
	Reasoning      string  `json:"reasoning"`
	ReferenceIndex *int    `json:"reference_index,omitempty"`
	ReferenceType  string  `json:"reference_type,omitempty"`
}

// RetrievedDocument is a ranked retrieval result. Pseudo-documents built
// from resolved conversation turns use the same shape as real search hits.
type RetrievedDocument struct {
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Score    float64        `json:"score"`
}

// RequestState is the per-request record threaded through the workflow.
// Created fresh per request and owned by the orchestrator until the
// terminal answer-generation step.
type RequestState struct {
	UserID              string
	Query               string
	ConversationHistory []ConversationTurn
	Intent              Intent
	Confidence          float64
	SearchContext       string
	DetectedLanguage    string
	RetrievedDocuments  []RetrievedDocument
	Answer              string
	CharacterGenre      string
	ReferenceIndex      *int
	ReferenceType       string
	FallbackToMemory    bool
	MemoryConversations []ScoredTurn
	Error               string
}

type ChatRequest struct {
	UserID         string `json:"user_id"`
	Query          string `json:"query"`
	CharacterGenre string `json:"character_genre,omitempty"`
}

type ChatResult struct {
	Answer           string  `json:"answer"`
	Intent           Intent  `json:"intent"`
	Confidence       float64 `json:"confidence"`
	DetectedLanguage string  `json:"detected_language,omitempty"`
	RetrievedCount   int     `json:"retrieved_count"`
	FallbackToMemory bool    `json:"fallback_to_memory,omitempty"`
}
