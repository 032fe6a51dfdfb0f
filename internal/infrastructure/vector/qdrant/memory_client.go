package qdrant

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/woonylab/bookchat/internal/core/domain"
)

// MemoryClient stores conversation turns in a per-user chat-memory
// collection, separate from the document collections.
type MemoryClient struct {
	client     *Client
	suffix     string
	vectorSize int
}

func NewMemoryClient(client *Client, collectionSuffix string, vectorSize int) *MemoryClient {
	return &MemoryClient{
		client:     client,
		suffix:     collectionSuffix,
		vectorSize: vectorSize,
	}
}

func (c *MemoryClient) collection(userID string) string {
	return userID + c.suffix
}

func (c *MemoryClient) IndexTurn(ctx context.Context, userID string, turn domain.ConversationTurn, vector []float32) error {
	if len(vector) == 0 || strings.TrimSpace(userID) == "" {
		return nil
	}
	coll := c.collection(userID)
	if err := c.client.EnsureCollection(ctx, coll, c.vectorSize); err != nil {
		return err
	}

	body := map[string]any{
		"points": []map[string]any{
			{
				"id":     uuid.NewString(),
				"vector": vector,
				"payload": map[string]any{
					"user_id":   userID,
					"query":     turn.Query,
					"response":  turn.Response,
					"timestamp": turn.Timestamp.UTC().Format(time.RFC3339),
				},
			},
		},
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", coll)
	status, respBody, err := c.client.doJSON(ctx, http.MethodPut, path, body, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "memory upsert", err)
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrStorage, "memory upsert",
			fmt.Errorf("qdrant status %d: %s", status, strings.TrimSpace(respBody)))
	}
	return nil
}

// SearchTurns returns the user's most similar past turns, descending by
// score. A user without a memory collection gets an empty result.
func (c *MemoryClient) SearchTurns(ctx context.Context, userID string, vector []float32, k int, scoreThreshold float64) ([]domain.ScoredTurn, error) {
	if len(vector) == 0 || strings.TrimSpace(userID) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	points, err := c.client.Search(ctx, c.collection(userID), vector, k, scoreThreshold)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ScoredTurn, 0, len(points))
	for _, p := range points {
		ts, _ := time.Parse(time.RFC3339, getStringPayload(p.Payload, "timestamp"))
		out = append(out, domain.ScoredTurn{
			Score: p.Score,
			Turn: domain.ConversationTurn{
				Query:     getStringPayload(p.Payload, "query"),
				Response:  getStringPayload(p.Payload, "response"),
				Timestamp: ts,
			},
		})
	}
	return out, nil
}
