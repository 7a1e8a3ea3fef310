// Package websearch adapts the Tavily client to the web search collaborator
// used by the information reasoner.
package websearch

import (
	"context"
	"strings"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	"github.com/chat-food/server/pkg/tavily"
)

type Searcher struct {
	client tavily.ITavily
}

func New(client tavily.ITavily) *Searcher {
	return &Searcher{client: client}
}

// Search drops results without content; the reasoner can only cite text.
func (s *Searcher) Search(ctx context.Context, query string) ([]model.WebResult, error) {
	results, err := s.client.Search(ctx, query)
	if err != nil {
		return nil, errx.WrapUpstream(err, "tavily")
	}

	out := make([]model.WebResult, 0, len(results))
	for _, r := range results {
		if strings.TrimSpace(r.Content) == "" {
			continue
		}
		out = append(out, model.WebResult{
			Title:   r.Title,
			URL:     r.URL,
			Content: r.Content,
			Score:   r.Score,
		})
	}
	return out, nil
}

// Disabled answers every query with no results, for deployments without a
// web search key.
type Disabled struct{}

func (Disabled) Search(context.Context, string) ([]model.WebResult, error) {
	return nil, nil
}
