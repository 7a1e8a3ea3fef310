package conversations

import (
	"context"

	"github.com/chat-food/server/internal/agent/model"

	"github.com/cloudwego/eino/schema"
)

// MessagesManager owns the per-session intent window. Every method is keyed
// by session id; nothing is shared between sessions.
type MessagesManager struct {
	conversationRepo model.ConversationRepository
	maxTurns         int
}

func NewMessagesManager(conversationRepo model.ConversationRepository, config model.ConversationConfig) *MessagesManager {
	return &MessagesManager{
		conversationRepo: conversationRepo,
		maxTurns:         config.MaxTurns,
	}
}

// Advance appends a turn under label. When the window holds more than one
// label and the two most recent differ, both sequences collapse to their
// last element. maxTurns <= 0 disables the length cap.
func Advance(w model.Window, label model.Intent, message string, maxTurns int) model.Window {
	labels := append(append([]model.Intent(nil), w.Labels...), label)
	turns := append(append([]model.ConversationTurn(nil), w.Turns...), model.ConversationTurn{User: message})

	if n := len(labels); n > 1 && labels[n-1] != labels[n-2] {
		labels = labels[n-1:]
		turns = turns[len(turns)-1:]
	}

	labels, turns = trimTail(labels, turns, maxTurns)
	return model.Window{SessionID: w.SessionID, Labels: labels, Turns: turns}
}

// RecordTurn advances the stored window of the session and returns the
// retained turns before the new one, oldest first.
func (cm *MessagesManager) RecordTurn(ctx context.Context, sessionID string, label model.Intent, query string) ([]model.ConversationTurn, error) {
	w, err := cm.conversationRepo.UpdateWindow(ctx, sessionID, func(w model.Window) model.Window {
		return Advance(w, label, query, cm.maxTurns)
	})
	if err != nil {
		return nil, err
	}
	if len(w.Turns) == 0 {
		return nil, nil
	}
	prior := make([]model.ConversationTurn, len(w.Turns)-1)
	copy(prior, w.Turns[:len(w.Turns)-1])
	return prior, nil
}

// Narrow tags the newest turn with the order operation it resolved to. When
// the turn before it carries a different operation, the window collapses to
// the newest turn, the same way Advance does when the label changes.
func Narrow(w model.Window, op model.Intent) model.Window {
	n := len(w.Turns)
	if n == 0 {
		return w
	}
	labels := append([]model.Intent(nil), w.Labels...)
	turns := append([]model.ConversationTurn(nil), w.Turns...)
	turns[n-1].Operation = op

	if n > 1 && turns[n-2].Operation != op {
		turns = turns[n-1:]
		if len(labels) > 0 {
			labels = labels[len(labels)-1:]
		}
	}
	return model.Window{SessionID: w.SessionID, Labels: labels, Turns: turns}
}

// SameOperation returns the trailing run of turns tagged with op, oldest first.
func SameOperation(turns []model.ConversationTurn, op model.Intent) []model.ConversationTurn {
	i := len(turns)
	for i > 0 && turns[i-1].Operation == op {
		i--
	}
	if i == len(turns) {
		return nil
	}
	out := make([]model.ConversationTurn, len(turns)-i)
	copy(out, turns[i:])
	return out
}

// LastOperation returns the operation of the newest turn, if any.
func LastOperation(turns []model.ConversationTurn) model.Intent {
	if len(turns) == 0 {
		return ""
	}
	return turns[len(turns)-1].Operation
}

// MarkOperation narrows the stored window of the session to op.
func (cm *MessagesManager) MarkOperation(ctx context.Context, sessionID string, op model.Intent) error {
	_, err := cm.conversationRepo.UpdateWindow(ctx, sessionID, func(w model.Window) model.Window {
		return Narrow(w, op)
	})
	return err
}

func (cm *MessagesManager) LoadWindow(ctx context.Context, sessionID string) (*model.Window, error) {
	return cm.conversationRepo.LoadWindow(ctx, sessionID)
}

func (cm *MessagesManager) SaveResponse(ctx context.Context, sessionID string, content string) error {
	return cm.conversationRepo.SetLastReply(ctx, sessionID, content)
}

func (cm *MessagesManager) Reset(ctx context.Context, sessionID string) error {
	return cm.conversationRepo.ClearHistory(ctx, sessionID)
}

// BuildResponseContext lays out system prompt, retained turns and the current query.
func BuildResponseContext(system *schema.Message, in model.TurnInput) []*schema.Message {
	messages := make([]*schema.Message, 0, 2+2*len(in.Turns))
	if system != nil {
		messages = append(messages, system)
	}
	for _, t := range in.Turns {
		if t.User != "" {
			messages = append(messages, schema.UserMessage(t.User))
		}
		if t.Assistant != "" {
			messages = append(messages, schema.AssistantMessage(t.Assistant, nil))
		}
	}
	return append(messages, schema.UserMessage(in.Query))
}

// ====================== Helper function ======================
func trimTail(labels []model.Intent, turns []model.ConversationTurn, maxTurns int) ([]model.Intent, []model.ConversationTurn) {
	if maxTurns <= 0 || len(labels) <= maxTurns {
		return labels, turns
	}
	return labels[len(labels)-maxTurns:], turns[len(turns)-maxTurns:]
}
