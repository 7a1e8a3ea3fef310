// Package corpus builds and queries the passage corpus: embeddings,
// chunking, ingestion and hybrid search.
package corpus

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	errx "github.com/chat-food/server/internal/core/error"
)

type EmbeddingConfig struct {
	Model     string `envconfig:"EMBEDDING_MODEL" default:"gemini-embedding-001"`
	Dims      int    `envconfig:"EMBEDDING_DIMS" default:"768"`
	BatchSize int    `envconfig:"EMBEDDING_BATCH_SIZE" default:"32"`
}

// Embedder turns text into vectors. Documents and queries may be embedded
// differently by the provider.
// Implementations are safe for concurrent use.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// contentEmbedder is the part of *genai.Models used here.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

// GeminiEmbedder embeds with the Gemini embedding models.
type GeminiEmbedder struct {
	models contentEmbedder
	model  string
	dims   int32
}

func NewGeminiEmbedder(client *genai.Client, cfg EmbeddingConfig) (*GeminiEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("genai client is nil")
	}
	return newGeminiEmbedder(client.Models, cfg), nil
}

func newGeminiEmbedder(models contentEmbedder, cfg EmbeddingConfig) *GeminiEmbedder {
	return &GeminiEmbedder{models: models, model: cfg.Model, dims: int32(cfg.Dims)}
}

func (e *GeminiEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embed(ctx, texts, "RETRIEVAL_DOCUMENT")
}

func (e *GeminiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	out, err := e.embed(ctx, []string{text}, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("no texts provided")
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}
	cfg := &genai.EmbedContentConfig{TaskType: taskType}
	if e.dims > 0 {
		cfg.OutputDimensionality = genai.Ptr(e.dims)
	}

	resp, err := e.models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, errx.WrapUpstream(err, "gemini-embedding")
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, errx.WrapUpstream(fmt.Errorf("expected %d embeddings, got %d", len(texts), got), "gemini-embedding")
	}

	out := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, errx.WrapUpstream(fmt.Errorf("embedding %d is empty", i), "gemini-embedding")
		}
		out[i] = emb.Values
	}
	return out, nil
}
