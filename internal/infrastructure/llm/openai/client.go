package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/woonylab/bookchat/internal/core/domain"
	"github.com/woonylab/bookchat/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible API (chat completions and
// embeddings). One instance is shared across requests.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	embedDim   int
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, embedModel string, embedDim int, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		embedDim:   embedDim,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   executor,
	}
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	request := map[string]any{
		"model": e.client.embedModel,
		"input": texts,
	}
	var response struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	err := e.client.execute(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/embeddings", request, &response, "embed")
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed", wrapTemporaryIfNeeded("embed", err))
	}
	if len(response.Data) != len(texts) {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed",
			fmt.Errorf("embeddings/texts mismatch: %d/%d", len(response.Data), len(texts)))
	}

	out := make([][]float32, 0, len(response.Data))
	for _, d := range response.Data {
		// A wrong-dimension vector is a failure, not a usable result.
		if e.client.embedDim > 0 && len(d.Embedding) != e.client.embedDim {
			return nil, domain.WrapError(domain.ErrEmbedding, "embed",
				fmt.Errorf("unexpected embedding dimension %d, want %d", len(d.Embedding), e.client.embedDim))
		}
		out = append(out, d.Embedding)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed query", fmt.Errorf("empty embedding result"))
	}
	return vectors[0], nil
}

type Completer struct {
	client *Client
}

func NewCompleter(client *Client) *Completer {
	return &Completer{client: client}
}

// Complete invokes the chat-completions endpoint and normalizes the
// response shape to a plain string. An empty normalized result is a
// completion failure.
func (c *Completer) Complete(ctx context.Context, prompt, model string) (string, error) {
	request := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	var raw json.RawMessage
	err := c.client.execute(ctx, "complete", func(ctx context.Context) error {
		return c.client.postJSON(ctx, "/chat/completions", request, &raw, "complete")
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrCompletion, "complete", wrapTemporaryIfNeeded("complete", err))
	}

	text, err := normalizeCompletionResponse(raw)
	if err != nil {
		return "", domain.WrapError(domain.ErrCompletion, "complete", err)
	}
	return text, nil
}

func (c *Client) execute(ctx context.Context, operation string, fn func(context.Context) error) error {
	if c.executor == nil {
		return fn(ctx)
	}
	return c.executor.Execute(ctx, "llm."+operation, fn, classifyProviderError)
}
