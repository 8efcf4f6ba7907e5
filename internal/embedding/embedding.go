// Package embedding provides the embedding provider contract (spec.md
// §6): batched text -> vector conversion backing both the dataset loader
// and the partitioner's input.
package embedding

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// Provider is `get_embeddings(list-of-text) -> list-of-vector` (spec.md
// §6 "Embedding provider contract").
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// GenaiProvider embeds via the Gemini embedding model, batching requests
// and rate-limiting them so a large dataset load doesn't trip provider
// quotas.
type GenaiProvider struct {
	client    *genai.Client
	model     string
	batchSize int
	limiter   *rate.Limiter
}

// NewGenaiProvider requires apiKey to be non-empty; callers should fall
// back to a mock/offline provider otherwise (e.g. for tests or datasets
// loaded with pre-computed embeddings).
func NewGenaiProvider(ctx context.Context, apiKey, model string, batchSize int, requestsPerSecond float64) (*GenaiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding: API key required")
	}
	if batchSize <= 0 {
		batchSize = 256
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenaiProvider{
		client:    client,
		model:     model,
		batchSize: batchSize,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}, nil
}

// Embed embeds texts in batches of batchSize, rate-limited one batch
// request at a time (spec.md §6 "batchable, the loader uses 256-item
// batches").
func (p *GenaiProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, 0, len(texts))

	for start := 0; start < len(texts); start += p.batchSize {
		end := min(start+p.batchSize, len(texts))
		batch := texts[start:end]

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("embedding rate limiter: %w", err)
		}

		vectors, err := p.embedBatch(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, vectors...)
	}

	slog.Info("embedded texts", "count", len(texts), "model", p.model, "batches", (len(texts)+p.batchSize-1)/max(p.batchSize, 1))
	return out, nil
}

func (p *GenaiProvider) embedBatch(ctx context.Context, batch []string) ([][]float64, error) {
	contents := make([]*genai.Content, len(batch))
	for i, text := range batch {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, nil)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float64, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = make([]float64, len(e.Values))
		for j, v := range e.Values {
			vectors[i][j] = float64(v)
		}
	}
	return vectors, nil
}
