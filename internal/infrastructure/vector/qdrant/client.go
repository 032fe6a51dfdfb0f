package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/woonylab/bookchat/internal/core/domain"
)

// Client talks to Qdrant over its REST API. One instance serves all
// per-user collections; ensure results are cached per collection.
type Client struct {
	baseURL    string
	httpClient *http.Client

	ensureMu sync.Mutex
	ensured  map[string]int
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		ensured:    make(map[string]int),
	}
}

// EnsureCollection creates the collection if missing. Qdrant answers the
// create PUT with 409 (or an "already exists" body) when it is already
// there; both count as success.
func (c *Client) EnsureCollection(ctx context.Context, collection string, vectorSize int) error {
	c.ensureMu.Lock()
	if size, ok := c.ensured[collection]; ok && size == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	status, body, err := c.doJSON(ctx, http.MethodPut, "/collections/"+collection, reqBody, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "ensure collection", err)
	}
	if status == http.StatusConflict || strings.Contains(body, "already exists") {
		c.markEnsured(collection, vectorSize)
		return nil
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrStorage, "ensure collection",
			fmt.Errorf("qdrant status %d: %s", status, strings.TrimSpace(body)))
	}
	c.markEnsured(collection, vectorSize)
	return nil
}

func (c *Client) markEnsured(collection string, vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensured[collection] = vectorSize
}

func (c *Client) Upsert(ctx context.Context, collection string, points []domain.VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	type point struct {
		ID      uint64         `json:"id"`
		Vector  []float32      `json:"vector"`
		Payload map[string]any `json:"payload"`
	}
	body := make([]point, 0, len(points))
	for _, p := range points {
		body = append(body, point{ID: p.ID, Vector: p.Vector, Payload: p.Payload})
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", collection)
	status, respBody, err := c.doJSON(ctx, http.MethodPut, path, map[string]any{"points": body}, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "upsert points", err)
	}
	if status >= 300 {
		return domain.WrapError(domain.ErrStorage, "upsert points",
			fmt.Errorf("qdrant status %d: %s", status, strings.TrimSpace(respBody)))
	}
	return nil
}

// Search runs cosine nearest-neighbor search. A missing collection is an
// empty result, not an error.
func (c *Client) Search(ctx context.Context, collection string, vector []float32, k int, scoreThreshold float64) ([]domain.ScoredPoint, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		reqBody["score_threshold"] = scoreThreshold
	}

	var searchResp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/search", collection)
	status, body, err := c.doJSON(ctx, http.MethodPost, path, reqBody, &searchResp)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "vector search", err)
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status >= 300 {
		return nil, domain.WrapError(domain.ErrStorage, "vector search",
			fmt.Errorf("qdrant status %d: %s", status, strings.TrimSpace(body)))
	}

	out := make([]domain.ScoredPoint, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.ScoredPoint{Score: r.Score, Payload: r.Payload})
	}
	return out, nil
}

// ScrollAll pages through every point of a collection (payload only) and
// flattens the result. A missing collection is an empty result.
func (c *Client) ScrollAll(ctx context.Context, collection string, pageLimit int) ([]domain.ScoredPoint, error) {
	if pageLimit <= 0 {
		pageLimit = 256
	}

	var out []domain.ScoredPoint
	var offset any
	for {
		points, nextOffset, err := c.scrollPage(ctx, collection, pageLimit, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, points...)
		if nextOffset == nil || len(points) == 0 {
			return out, nil
		}
		offset = nextOffset
	}
}

// ScrollSample fetches at most limit points in a single scroll request,
// regardless of collection size. A missing collection is an empty result.
func (c *Client) ScrollSample(ctx context.Context, collection string, limit int) ([]domain.ScoredPoint, error) {
	if limit <= 0 {
		return nil, nil
	}
	points, _, err := c.scrollPage(ctx, collection, limit, nil)
	return points, err
}

func (c *Client) scrollPage(ctx context.Context, collection string, limit int, offset any) ([]domain.ScoredPoint, any, error) {
	reqBody := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if offset != nil {
		reqBody["offset"] = offset
	}

	var scrollResp struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
			NextPageOffset any `json:"next_page_offset"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/scroll", collection)
	status, body, err := c.doJSON(ctx, http.MethodPost, path, reqBody, &scrollResp)
	if err != nil {
		return nil, nil, domain.WrapError(domain.ErrStorage, "scroll points", err)
	}
	if status == http.StatusNotFound {
		return nil, nil, nil
	}
	if status >= 300 {
		return nil, nil, domain.WrapError(domain.ErrStorage, "scroll points",
			fmt.Errorf("qdrant status %d: %s", status, strings.TrimSpace(body)))
	}

	out := make([]domain.ScoredPoint, 0, len(scrollResp.Result.Points))
	for _, p := range scrollResp.Result.Points {
		out = append(out, domain.ScoredPoint{Payload: p.Payload})
	}
	return out, scrollResp.Result.NextPageOffset, nil
}

// Count returns the exact point count, 0 for a missing collection.
func (c *Client) Count(ctx context.Context, collection string) (int, error) {
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/count", collection)
	status, body, err := c.doJSON(ctx, http.MethodPost, path, map[string]any{"exact": true}, &countResp)
	if err != nil {
		return 0, domain.WrapError(domain.ErrStorage, "count points", err)
	}
	if status == http.StatusNotFound {
		return 0, nil
	}
	if status >= 300 {
		return 0, domain.WrapError(domain.ErrStorage, "count points",
			fmt.Errorf("qdrant status %d: %s", status, strings.TrimSpace(body)))
	}
	return countResp.Result.Count, nil
}

// doJSON posts the payload and, for 2xx responses with out != nil,
// decodes the body into out. It returns the status code and, for non-2xx
// responses, a bounded copy of the body for error messages.
func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("qdrant request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return resp.StatusCode, string(raw), nil
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, "", fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, "", nil
}
