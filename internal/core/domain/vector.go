package domain

// VectorPoint is a point to upsert into a vector collection. IDs are
// integers assigned from the collection's existing point count so that
// appends to an existing collection never collide.
type VectorPoint struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a search or scroll result with its payload.
type ScoredPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}
