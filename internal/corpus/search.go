package corpus

import (
	"context"
	"fmt"
	"sort"

	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// rrfK is the rank constant of reciprocal rank fusion.
const rrfK = 60.0

// PassageIndex is the storage side of search.
type PassageIndex interface {
	Keyword(ctx context.Context, query string, limit int) ([]model.Passage, error)
	Semantic(ctx context.Context, vector []float32, limit int) ([]model.Passage, error)
}

// Searcher implements model.PassageSearcher.
type Searcher struct {
	index    PassageIndex
	embedder Embedder
}

func NewSearcher(index PassageIndex, embedder Embedder) *Searcher {
	return &Searcher{index: index, embedder: embedder}
}

// Search queries the index in the given mode. Hybrid search fetches twice
// the limit from each side and fuses the rankings; when one side fails the
// other is used alone.
func (s *Searcher) Search(ctx context.Context, query string, mode model.SearchMode, limit int) ([]model.Passage, error) {
	if limit <= 0 {
		return nil, nil
	}

	switch mode {
	case model.SearchKeyword:
		return s.index.Keyword(ctx, query, limit)
	case model.SearchSemantic:
		return s.semantic(ctx, query, limit)
	}

	keyword, kerr := s.index.Keyword(ctx, query, 2*limit)
	semantic, serr := s.semantic(ctx, query, 2*limit)
	switch {
	case kerr != nil && serr != nil:
		return nil, fmt.Errorf("hybrid search failed: keyword: %w; semantic: %v", kerr, serr)
	case serr != nil:
		logx.Warn().Err(serr).Msg("semantic search failed, using keyword results")
		return truncate(keyword, limit), nil
	case kerr != nil:
		logx.Warn().Err(kerr).Msg("keyword search failed, using semantic results")
		return truncate(semantic, limit), nil
	}

	fused := Fuse(keyword, semantic)
	logx.Debug().
		Int("keyword", len(keyword)).
		Int("semantic", len(semantic)).
		Int("fused", len(fused)).
		Msg("hybrid search")
	return truncate(fused, limit), nil
}

func (s *Searcher) semantic(ctx context.Context, query string, limit int) ([]model.Passage, error) {
	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.index.Semantic(ctx, vec, limit)
}

// Fuse merges ranked lists with reciprocal rank fusion: every list adds
// 1/(k+rank) to a passage, rank starting at 1. Ties keep first-seen order.
func Fuse(lists ...[]model.Passage) []model.Passage {
	var (
		order  []string
		byID   = map[string]model.Passage{}
		scores = map[string]float64{}
	)
	for _, list := range lists {
		for rank, p := range list {
			if _, ok := byID[p.ID]; !ok {
				byID[p.ID] = p
				order = append(order, p.ID)
			}
			scores[p.ID] += 1.0 / (rrfK + float64(rank+1))
		}
	}

	out := make([]model.Passage, 0, len(order))
	for _, id := range order {
		p := byID[id]
		p.Score = scores[id]
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func truncate(ps []model.Passage, limit int) []model.Passage {
	if len(ps) > limit {
		return ps[:limit]
	}
	return ps
}
