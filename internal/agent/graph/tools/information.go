package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/agent/graph/prompts"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// PassageOptions selects how the passage index is queried by a tool.
type PassageOptions struct {
	Mode  model.SearchMode
	Limit int
}

// NewVectorSearchTool answers from the local passage corpus.
func NewVectorSearchTool(searcher model.PassageSearcher, llm *nodes.LLM, opts PassageOptions) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolVectorSearch,
			Desc:        "Search the local food knowledge database (recipes, ingredients, nutrition) and answer from what is found there. Use this tool first for any food information question.",
			ParamsOneOf: schema.NewParamsOneOfByParams(queryParam),
		},
		func(ctx context.Context, in *QueryInput) (string, error) {
			if in.Query == "" {
				return "query is required", nil
			}

			passages, err := searcher.Search(ctx, in.Query, opts.Mode, opts.Limit)
			if err != nil {
				logx.Error().Err(err).Str("tool", ToolVectorSearch).Msg("passage search failed")
				return TryAgainMessage, nil
			}
			if len(passages) == 0 {
				return NothingFoundInDB, nil
			}

			return answerFrom(ctx, llm, ToolVectorSearch, in.Query, "context", PassageSnippets(passages)), nil
		},
	)
}

// NewWebSearchTool answers from web search results.
func NewWebSearchTool(web model.WebSearcher, llm *nodes.LLM) tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolWebSearch,
			Desc:        "Search the web for food information and answer from the results. Use it when the database has no answer.",
			ParamsOneOf: schema.NewParamsOneOfByParams(queryParam),
		},
		func(ctx context.Context, in *QueryInput) (string, error) {
			if in.Query == "" {
				return "query is required", nil
			}

			results, err := web.Search(ctx, in.Query)
			if err != nil {
				logx.Error().Err(err).Str("tool", ToolWebSearch).Msg("web search failed")
				return TryAgainMessage, nil
			}
			if len(results) == 0 {
				return NothingFoundOnWeb, nil
			}

			snippets := make([]string, 0, len(results))
			for _, r := range results {
				snippets = append(snippets, fmt.Sprintf("%s (%s)\n%s", r.Title, r.URL, r.Content))
			}
			return answerFrom(ctx, llm, ToolWebSearch, in.Query, "results", snippets), nil
		},
	)
}

// PassageSnippets renders passages with their source for a prompt.
func PassageSnippets(passages []model.Passage) []string {
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		out = append(out, fmt.Sprintf("[%s, page %d]\n%s", p.FileName, p.PageNumber, p.Text))
	}
	return out
}

func answerFrom(ctx context.Context, llm *nodes.LLM, toolName, query, source string, snippets []string) string {
	msgs, err := prompts.RenderContextAnswer(ctx, query, source, snippets)
	if err != nil {
		logx.Error().Err(err).Str("tool", toolName).Msg("context prompt failed")
		return TryAgainMessage
	}
	text, err := llm.Text(ctx, msgs)
	if err != nil || text == "" {
		logx.Error().Err(err).Str("tool", toolName).Msg("context answer failed")
		return TryAgainMessage
	}
	return text
}
