package nodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	logx "github.com/chat-food/server/pkg/logger"
)

// LLM is a chat model called from inside lambda nodes and tools.
// Every call runs under its own deadline.
type LLM struct {
	Model   einomodel.BaseChatModel
	Name    string
	Timeout time.Duration
}

func NewLLM(m einomodel.BaseChatModel, name string, timeout time.Duration) *LLM {
	return &LLM{Model: m, Name: name, Timeout: timeout}
}

// Generate invokes the model and records usage cost on the reply.
func (l *LLM) Generate(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	if l == nil || l.Model == nil {
		return nil, fmt.Errorf("chat model is nil")
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{
		Name:      l.Name,
		Type:      "Gemini",
		Component: components.ComponentOfChatModel,
	})

	out, err := l.Model.Generate(ctx, msgs)
	if err != nil {
		return nil, errx.WrapUpstream(err, l.Name)
	}
	if out == nil {
		return nil, errx.WrapUpstream(fmt.Errorf("nil reply"), l.Name)
	}

	if cost := model.AttachUsageCost(out, l.Name); cost > 0 {
		usage := out.ResponseMeta.Usage
		logx.Debug().
			Str("model", l.Name).
			Int("prompt_tokens", usage.PromptTokens).
			Int("completion_tokens", usage.CompletionTokens).
			Float64("total_cost_usd", cost).
			Msg("LLM usage")
	}
	return out, nil
}

// Text invokes the model and returns the trimmed reply content.
func (l *LLM) Text(ctx context.Context, msgs []*schema.Message) (string, error) {
	out, err := l.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Content), nil
}
