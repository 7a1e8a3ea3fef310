package nodes

import (
	"context"

	"github.com/chat-food/server/internal/agent/graph/parsers"
	"github.com/chat-food/server/internal/agent/graph/prompts"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// SlotExtractor pulls structured fields out of free text. Failures and
// malformed replies yield model.SlotAbsent values, never errors.
type SlotExtractor struct {
	llm *LLM
}

func NewSlotExtractor(llm *LLM) *SlotExtractor {
	return &SlotExtractor{llm: llm}
}

// Extract returns one value per field.
func (e *SlotExtractor) Extract(ctx context.Context, text string, fields []string) model.Slots {
	msgs, err := prompts.RenderSlotExtraction(ctx, fields, text)
	if err != nil {
		logx.Error().Err(err).Msg("slot prompt failed")
		return model.AbsentSlots(fields)
	}

	reply, err := e.llm.Text(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Strs("fields", fields).Msg("slot extraction call failed")
		return model.AbsentSlots(fields)
	}

	slots, err := parsers.ParseSlots(reply, fields)
	if err != nil {
		logx.Warn().Err(err).Str("reply", reply).Strs("fields", fields).Msg("malformed slot extraction")
		return model.AbsentSlots(fields)
	}
	return slots
}

// ExtractOne returns a single field value or model.SlotAbsent.
func (e *SlotExtractor) ExtractOne(ctx context.Context, text, field, hint string) string {
	msgs, err := prompts.RenderValueExtraction(ctx, field, hint, text)
	if err != nil {
		logx.Error().Err(err).Msg("value prompt failed")
		return model.SlotAbsent
	}

	reply, err := e.llm.Text(ctx, msgs)
	if err != nil {
		logx.Error().Err(err).Str("field", field).Msg("value extraction call failed")
		return model.SlotAbsent
	}
	return parsers.ParseValue(reply)
}
