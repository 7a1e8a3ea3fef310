// Package tools holds the tools the reasoning sub-graphs may call.
// Tool bodies never return errors to the graph; a failed dependency turns
// into TryAgainMessage so the model can still answer.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	logx "github.com/chat-food/server/pkg/logger"
)

const (
	ToolVectorSearch = "vector_search"
	ToolWebSearch    = "web_search"
	ToolSuggestFood  = "suggest_food"
	ToolFoodDetails  = "food_details"
)

const (
	TryAgainMessage   = "The service is not available right now, please try again later."
	NothingFoundInDB  = "Nothing relevant was found in the database."
	NothingFoundOnWeb = "Nothing relevant was found on the web."
)

// QueryInput is the argument shape shared by every tool.
type QueryInput struct {
	Query string `json:"query"`
}

var queryParam = map[string]*schema.ParameterInfo{
	"query": {
		Type:     schema.String,
		Desc:     "The client's request, rewritten as a standalone search query.",
		Required: true,
	},
}

// Infos returns the tool infos used to bind tools to a chat model.
func Infos(ctx context.Context, tools []tool.BaseTool) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// NewToolsNode wraps tools into a sequential ToolsNode that tolerates
// hallucinated tool names and loosely typed arguments.
func NewToolsNode(ctx context.Context, tools []tool.BaseTool) (*compose.ToolsNode, error) {
	node, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               tools,
		ExecuteSequentially: true,
		UnknownToolsHandler: func(ctx context.Context, name, input string) (string, error) {
			logx.Warn().
				Str("tool_name", name).
				Str("arguments", input).
				Msg("Unknown or invalid tool call; returning fallback result")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"ignored\"}", name), nil
		},
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			return SanitizeArguments(arguments), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return nil, fmt.Errorf("failed to create tools node: %w", err)
	}
	return node, nil
}

// SanitizeArguments coerces the query argument to a trimmed string and drops
// anything else. Arguments that are not a JSON object are kept as they are.
func SanitizeArguments(arguments string) string {
	var m map[string]any
	if err := json.Unmarshal([]byte(arguments), &m); err != nil {
		return arguments
	}

	out := map[string]any{}
	if v, ok := m["query"]; ok {
		switch vv := v.(type) {
		case string:
			out["query"] = strings.TrimSpace(vv)
		case float64:
			out["query"] = strconv.FormatFloat(vv, 'f', -1, 64)
		case nil:
		default:
			out["query"] = strings.TrimSpace(fmt.Sprint(v))
		}
	}

	b, err := json.Marshal(out)
	if err != nil {
		return arguments
	}
	return string(b)
}
