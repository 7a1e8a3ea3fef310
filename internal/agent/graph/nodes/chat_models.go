package nodes

import (
	"context"
	"fmt"

	logx "github.com/chat-food/server/pkg/logger"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/chat-food/server/internal/agent/model"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey       string
	BaseURL      string
	RouterConfig *model.RouterModelConfig
	RespConfig   *model.ResponseModelConfig
}

// ChatModels holds the router model (classification, extraction) and the
// response model (reasoning, reply writing).
type ChatModels struct {
	Router            einomodel.ToolCallingChatModel
	Response          einomodel.ToolCallingChatModel
	RouterModelName   string
	ResponseModelName string
}

// NewGenAIClient creates the Gemini API client shared by chat models and embeddings.
func NewGenAIClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		clientCfg.HTTPOptions.BaseURL = baseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// NewChatModels creates both chat models on top of one Gemini client.
func NewChatModels(ctx context.Context, client *genai.Client, config ChatModelConfig) (*ChatModels, error) {
	if config.RouterConfig == nil || config.RespConfig == nil {
		return nil, fmt.Errorf("chat model configs are nil")
	}

	// Classification needs no thinking; keep it fast and deterministic.
	router, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RouterConfig.Model,
		Temperature: &config.RouterConfig.Temperature,
		MaxTokens:   &config.RouterConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(0)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating router model")
		return nil, fmt.Errorf("error creating router model: %w", err)
	}

	response, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.RespConfig.Model,
		Temperature: &config.RespConfig.Temperature,
		MaxTokens:   &config.RespConfig.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(int32(1024)),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating response model")
		return nil, fmt.Errorf("error creating response model: %w", err)
	}

	return &ChatModels{
		Router:            router,
		Response:          response,
		RouterModelName:   config.RouterConfig.Model,
		ResponseModelName: config.RespConfig.Model,
	}, nil
}

// ResponseWithTools returns a copy of the response model bound to tools.
// Each reasoner gets its own copy so tool sets never leak between sub-graphs.
func (cm *ChatModels) ResponseWithTools(ctx context.Context, tools []tool.BaseTool) (einomodel.ToolCallingChatModel, error) {
	infos := make([]*schema.ToolInfo, 0, len(tools))
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get tool info: %w", err)
		}
		infos = append(infos, info)
	}

	bound, err := cm.Response.WithTools(infos)
	if err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools")
		return nil, fmt.Errorf("failed to bind tools: %w", err)
	}

	logx.Debug().Int("tools", len(infos)).Msg("Successfully bound tools to response model")
	return bound, nil
}
