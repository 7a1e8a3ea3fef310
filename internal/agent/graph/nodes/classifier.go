package nodes

import (
	"context"

	"github.com/chat-food/server/internal/agent/graph/parsers"
	"github.com/chat-food/server/internal/agent/graph/prompts"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// Classifier maps a message onto one label of a LabelSet with a single
// model call. It never fails: every problem resolves to the fallback label.
type Classifier struct {
	llm *LLM
}

func NewClassifier(llm *LLM) *Classifier {
	return &Classifier{llm: llm}
}

func (c *Classifier) Classify(ctx context.Context, query string, labels model.LabelSet) model.Intent {
	msgs, err := prompts.RenderClassifier(ctx, labels, query)
	if err != nil {
		logx.Error().Err(err).Msg("classifier prompt failed")
		return labels.Fallback
	}

	reply, err := c.llm.Text(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Str("fallback", labels.Fallback.String()).Msg("classifier call failed")
		return labels.Fallback
	}

	label, err := parsers.ParseIntent(reply, labels)
	if err != nil {
		logx.Warn().Err(err).Str("reply", reply).Str("fallback", labels.Fallback.String()).Msg("ambiguous classification")
		return labels.Fallback
	}

	logx.Debug().Str("label", label.String()).Msg("classified")
	return label
}
