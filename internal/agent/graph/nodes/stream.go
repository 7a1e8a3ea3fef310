package nodes

import (
	"context"
	"errors"
	"fmt"
	"io"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
)

// TokenSink receives the text of the user-facing answer as it is generated.
type TokenSink func(chunk string)

type tokenSinkKey struct{}

// WithTokenSink makes answer-writing model calls under ctx stream into sink.
func WithTokenSink(ctx context.Context, sink TokenSink) context.Context {
	return context.WithValue(ctx, tokenSinkKey{}, sink)
}

// WithoutTokenSink hides the sink from calls whose output is not the answer.
func WithoutTokenSink(ctx context.Context) context.Context {
	if tokenSinkFrom(ctx) == nil {
		return ctx
	}
	return context.WithValue(ctx, tokenSinkKey{}, TokenSink(nil))
}

func tokenSinkFrom(ctx context.Context) TokenSink {
	sink, _ := ctx.Value(tokenSinkKey{}).(TokenSink)
	return sink
}

// GenerateStream behaves like Generate. When ctx carries a TokenSink the
// model is streamed and text chunks go to the sink until the reply starts
// calling tools; the concatenated reply is returned either way.
func (l *LLM) GenerateStream(ctx context.Context, msgs []*schema.Message) (*schema.Message, error) {
	sink := tokenSinkFrom(ctx)
	if sink == nil {
		return l.Generate(ctx, msgs)
	}
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

	sr, err := l.Model.Stream(ctx, msgs)
	if err != nil {
		return nil, errx.WrapUpstream(err, l.Name)
	}
	defer sr.Close()

	var (
		chunks   []*schema.Message
		toolCall bool
	)
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errx.WrapUpstream(err, l.Name)
		}
		if chunk == nil {
			continue
		}
		chunks = append(chunks, chunk)
		if len(chunk.ToolCalls) > 0 {
			toolCall = true
		}
		if !toolCall && chunk.Content != "" {
			sink(chunk.Content)
		}
	}
	if len(chunks) == 0 {
		return nil, errx.WrapUpstream(fmt.Errorf("empty stream"), l.Name)
	}

	out, err := schema.ConcatMessages(chunks)
	if err != nil {
		return nil, errx.WrapUpstream(err, l.Name)
	}
	model.AttachUsageCost(out, l.Name)
	return out, nil
}
