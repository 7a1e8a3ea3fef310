package nodes

import (
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/model"
)

// ===== Small helpers to keep handlers simple/readable =====

// newReply builds the assistant message a terminal node emits, tagged with
// how the turn was routed.
func newReply(text string, domain, intent model.Intent, status string) *schema.Message {
	msg := schema.AssistantMessage(text, nil)
	msg.Extra = map[string]any{
		model.ExtraDomain: string(domain),
		model.ExtraIntent: string(intent),
	}
	if status != "" {
		msg.Extra[model.ExtraStatus] = status
	}
	return msg
}

// ReplyMeta reads the routing tags written by newReply.
func ReplyMeta(msg *schema.Message) (domain, intent model.Intent, status string) {
	if msg == nil || msg.Extra == nil {
		return "", "", ""
	}
	if v, ok := msg.Extra[model.ExtraDomain].(string); ok {
		domain = model.Intent(v)
	}
	if v, ok := msg.Extra[model.ExtraIntent].(string); ok {
		intent = model.Intent(v)
	}
	if v, ok := msg.Extra[model.ExtraStatus].(string); ok {
		status = v
	}
	return domain, intent, status
}

// normalizeMaxRounds returns a sane default when the provided value is invalid.
func normalizeMaxRounds(n int) int {
	if n <= 0 {
		return DefaultMaxRounds
	}
	return n
}
