package corpus

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino-ext/components/document/transformer/splitter/recursive"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
)

const (
	DefaultChunkSize = 1024
	DefaultOverlap   = 64
)

var defaultSeparators = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts page text into passages of at most ChunkSize runes with the
// eino recursive splitter, carrying up to Overlap runes between passages.
type Splitter struct {
	ChunkSize int
	Overlap   int

	transformer document.Transformer
}

func NewSplitter(ctx context.Context, chunkSize, overlap int) (*Splitter, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	t, err := recursive.NewSplitter(ctx, &recursive.Config{
		ChunkSize:   chunkSize,
		OverlapSize: overlap,
		Separators:  defaultSeparators,
		LenFunc:     utf8.RuneCountInString,
		KeepType:    recursive.KeepTypeNone,
	})
	if err != nil {
		return nil, fmt.Errorf("create splitter: %w", err)
	}
	return &Splitter{ChunkSize: chunkSize, Overlap: overlap, transformer: t}, nil
}

// Split returns the non-blank passages of text in order.
func (s *Splitter) Split(ctx context.Context, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	docs, err := s.transformer.Transform(ctx, []*schema.Document{{Content: text}})
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		if chunk := strings.TrimSpace(d.Content); chunk != "" {
			out = append(out, chunk)
		}
	}
	return out, nil
}
