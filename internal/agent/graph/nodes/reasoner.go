package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/conversations"
	"github.com/chat-food/server/internal/agent/graph/prompts"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// DefaultMaxRounds allows one completed tool round before the answer is forced.
const DefaultMaxRounds = 2

const extraFailed = "reasoner_failed"

// NewReasonerInputPreHandler starts a fresh budget for every invocation.
func NewReasonerInputPreHandler() func(context.Context, model.TurnInput, *model.ReasonerState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.ReasonerState) (model.TurnInput, error) {
		s.SessionID = in.SessionID
		s.History = nil
		s.Rounds = 0
		s.Forced = false
		s.ToolCallIDSeq = 0
		s.TotalCostUSD = 0
		return in, nil
	}
}

// NewReasonerInputNode lays out the system prompt, retained turns and query.
func NewReasonerInputNode(system *schema.Message) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) ([]*schema.Message, error) {
		return conversations.BuildResponseContext(system, in), nil
	})
}

// NewReasonerNode calls the tool-bound model. A failed call becomes a plain
// apology so the loop terminates instead of erroring.
func NewReasonerNode(llm *LLM) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in []*schema.Message) (*schema.Message, error) {
		out, err := llm.GenerateStream(ctx, in)
		if err != nil {
			logx.Error().Err(err).Str("node", NodeReasoner).Msg("reasoner call failed")
			msg := schema.AssistantMessage(ApologyMessage, nil)
			msg.Extra = map[string]any{extraFailed: true}
			return msg, nil
		}
		return out, nil
	})
}

// NewReasonerPreHandler appends the new input to the reasoning history and,
// when this call is the last one the budget allows, the final-round notice.
func NewReasonerPreHandler(maxRounds int) func(context.Context, []*schema.Message, *model.ReasonerState) ([]*schema.Message, error) {
	maxRounds = normalizeMaxRounds(maxRounds)
	return func(ctx context.Context, in []*schema.Message, s *model.ReasonerState) ([]*schema.Message, error) {
		// some providers omit tool_call_id on tool results
		for _, msg := range in {
			if msg == nil || msg.Role != schema.Tool || strings.TrimSpace(msg.ToolCallID) != "" {
				continue
			}
			if id := lastToolCallID(s.History); id != "" {
				msg.ToolCallID = id
			}
		}

		s.History = append(s.History, in...)

		if s.Rounds+1 >= maxRounds {
			s.Forced = true
			s.History = append(s.History, prompts.FinalNotice())
			logx.Debug().Str("session_id", s.SessionID).Int("round", s.Rounds+1).Msg("final reasoning round")
		}

		out := make([]*schema.Message, len(s.History))
		copy(out, s.History)
		return out, nil
	}
}

// NewReasonerPostHandler counts the round, names anonymous tool calls and
// accumulates cost.
func NewReasonerPostHandler() func(context.Context, *schema.Message, *model.ReasonerState) (*schema.Message, error) {
	return func(ctx context.Context, out *schema.Message, s *model.ReasonerState) (*schema.Message, error) {
		s.Rounds++
		if out == nil {
			return out, nil
		}

		if uc, ok := out.Extra["usage_cost"].(map[string]any); ok {
			if total, ok := uc["total_cost"].(float64); ok {
				s.TotalCostUSD += total
				out.Extra["usage_cost_total_usd"] = s.TotalCostUSD
			}
		}

		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				s.ToolCallIDSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("call_%d", s.ToolCallIDSeq)
			}
		}

		s.History = append(s.History, out)

		if len(out.ToolCalls) > 0 {
			logx.Debug().Int("tool_count", len(out.ToolCalls)).Int("round", s.Rounds).Msg("Calling tools")
		} else {
			logx.Debug().Int("round", s.Rounds).Msg("AI response ready")
		}
		return out, nil
	}
}

// NewReasonerCondition goes to the tools only when the model asked for them
// and the budget is not spent.
func NewReasonerCondition() func(context.Context, *schema.Message) (string, error) {
	return func(ctx context.Context, out *schema.Message) (string, error) {
		var forced bool
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.ReasonerState) error {
			forced = s.Forced
			return nil
		})

		if forced {
			if out != nil && len(out.ToolCalls) > 0 {
				logx.Warn().Int("tool_count", len(out.ToolCalls)).Msg("round budget spent, ignoring tool calls")
			}
			return NodeFinalize, nil
		}
		if out != nil && len(out.ToolCalls) > 0 {
			return NodeToolExecutor, nil
		}
		return NodeFinalize, nil
	}
}

// NewToolExecutorPreHandler logs each tool round.
func NewToolExecutorPreHandler() func(context.Context, *schema.Message, *model.ReasonerState) (*schema.Message, error) {
	return func(ctx context.Context, in *schema.Message, s *model.ReasonerState) (*schema.Message, error) {
		names := make([]string, 0, len(in.ToolCalls))
		for _, tc := range in.ToolCalls {
			names = append(names, tc.Function.Name)
		}
		logx.Debug().
			Str("session_id", s.SessionID).
			Int("round", s.Rounds).
			Strs("tools", names).
			Msg("Tool execution attempt")
		return in, nil
	}
}

// NewFinalizeNode produces the user-facing answer of a reasoning session.
// A reply without text falls back to the last tool result, then to an apology.
func NewFinalizeNode(domain model.Intent) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, out *schema.Message) (*schema.Message, error) {
		var (
			forced   bool
			lastTool string
			cost     float64
		)
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.ReasonerState) error {
			forced = s.Forced
			cost = s.TotalCostUSD
			for i := len(s.History) - 1; i >= 0; i-- {
				if m := s.History[i]; m != nil && m.Role == schema.Tool && strings.TrimSpace(m.Content) != "" {
					lastTool = strings.TrimSpace(m.Content)
					break
				}
			}
			return nil
		})

		text := ""
		if out != nil {
			text = strings.TrimSpace(out.Content)
		}
		status := model.StatusAnswered
		switch {
		case out != nil && out.Extra[extraFailed] == true:
			status = ""
		case forced && out != nil && len(out.ToolCalls) > 0:
			status = model.StatusForced
		}
		if text == "" {
			text = lastTool
		}
		if text == "" {
			text = ApologyMessage
		}

		logx.Info().Str("domain", domain.String()).Str("status", status).Float64("total_cost_usd", cost).Msg("reasoning finished")
		return newReply(text, domain, domain, status), nil
	})
}

func lastToolCallID(history []*schema.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		if msg == nil || msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
			continue
		}
		return strings.TrimSpace(msg.ToolCalls[0].ID)
	}
	return ""
}
