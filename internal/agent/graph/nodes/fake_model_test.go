package nodes

import (
	"context"
	"sync"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// scriptedModel answers every call with fn and records what it was sent.
type scriptedModel struct {
	mu    sync.Mutex
	fn    func(msgs []*schema.Message) (*schema.Message, error)
	calls [][]*schema.Message
}

func replyWith(text string) *scriptedModel {
	return &scriptedModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return schema.AssistantMessage(text, nil), nil
	}}
}

func failWith(err error) *scriptedModel {
	return &scriptedModel{fn: func([]*schema.Message) (*schema.Message, error) {
		return nil, err
	}}
}

func (m *scriptedModel) Generate(_ context.Context, in []*schema.Message, _ ...einomodel.Option) (*schema.Message, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	m.mu.Unlock()
	return m.fn(in)
}

func (m *scriptedModel) Stream(ctx context.Context, in []*schema.Message, opts ...einomodel.Option) (*schema.StreamReader[*schema.Message], error) {
	out, err := m.Generate(ctx, in, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{out}), nil
}

func (m *scriptedModel) WithTools([]*schema.ToolInfo) (einomodel.ToolCallingChatModel, error) {
	return m, nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func testLLM(m einomodel.BaseChatModel) *LLM {
	return NewLLM(m, "test-model", 0)
}
