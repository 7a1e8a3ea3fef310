package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/agent/graph/prompts"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

const foodNameHint = "The food name is the single dish being suggested."

// Suggester chains passage search, a suggestion, food name extraction and
// a catalog lookup of the suggested food.
type Suggester struct {
	searcher  model.PassageSearcher
	llm       *nodes.LLM
	extractor *nodes.SlotExtractor
	details   *nodes.FoodDetails
	opts      PassageOptions
}

func NewSuggester(searcher model.PassageSearcher, llm *nodes.LLM, e *nodes.SlotExtractor, details *nodes.FoodDetails, opts PassageOptions) *Suggester {
	return &Suggester{searcher: searcher, llm: llm, extractor: e, details: details, opts: opts}
}

// Suggest returns the suggestion followed by where to get it, when the
// catalog knows the suggested food.
func (s *Suggester) Suggest(ctx context.Context, query string) string {
	passages, err := s.searcher.Search(ctx, query, s.opts.Mode, s.opts.Limit)
	if err != nil {
		// the model can still suggest without context
		logx.Warn().Err(err).Str("tool", ToolSuggestFood).Msg("passage search failed")
	}

	msgs, err := prompts.RenderSuggestFromPassages(ctx, query, PassageSnippets(passages))
	if err != nil {
		logx.Error().Err(err).Str("tool", ToolSuggestFood).Msg("suggestion prompt failed")
		return TryAgainMessage
	}
	suggestion, err := s.llm.Text(ctx, msgs)
	if err != nil || suggestion == "" {
		logx.Error().Err(err).Str("tool", ToolSuggestFood).Msg("suggestion failed")
		return TryAgainMessage
	}

	food := s.extractor.ExtractOne(ctx, suggestion, model.SlotFoodName, foodNameHint)
	if model.IsAbsent(food) {
		return suggestion
	}

	details := s.details.Describe(ctx, food)
	logx.Debug().Str("food_name", food).Msg("suggestion resolved")
	return suggestion + "\n\n" + details
}

// NewSuggestFoodTool exposes Suggester.Suggest.
func NewSuggestFoodTool(s *Suggester) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolSuggestFood,
			Desc:        "Suggest a food for the client's request, together with restaurants that serve it and their prices.",
			ParamsOneOf: schema.NewParamsOneOfByParams(queryParam),
		},
		func(ctx context.Context, in *QueryInput) (string, error) {
			if in.Query == "" {
				return "query is required", nil
			}
			return s.Suggest(ctx, in.Query), nil
		},
	)
}

// NewFoodDetailsTool looks a food or restaurant up in the catalog.
func NewFoodDetailsTool(details *nodes.FoodDetails) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolFoodDetails,
			Desc:        "Find the restaurants serving a food and its price. The query must name the food and optionally the restaurant.",
			ParamsOneOf: schema.NewParamsOneOfByParams(queryParam),
		},
		func(ctx context.Context, in *QueryInput) (string, error) {
			if in.Query == "" {
				return "query is required", nil
			}
			return details.Describe(ctx, in.Query), nil
		},
	)
}
