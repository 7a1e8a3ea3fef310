package model

import (
	"context"
)

type ConversationRepository interface {
	// LoadWindow returns the retained window of a session; an unknown session yields an empty window.
	LoadWindow(ctx context.Context, sessionID string) (*Window, error)

	// UpdateWindow applies fn to the stored window and persists the result atomically.
	// At most one writer per session wins; concurrent writers are retried or rejected.
	UpdateWindow(ctx context.Context, sessionID string, fn func(Window) Window) (*Window, error)

	// SetLastReply attaches the assistant reply to the newest turn of the window.
	SetLastReply(ctx context.Context, sessionID string, reply string) error

	// ClearHistory removes all conversation state for a session.
	ClearHistory(ctx context.Context, sessionID string) error
}

// ConversationTurn is one user utterance plus the assistant's eventual reply.
// Operation is set on order turns once the order operation is resolved.
type ConversationTurn struct {
	User      string `json:"user"`
	Assistant string `json:"assistant,omitempty"`
	Operation Intent `json:"operation,omitempty"`
}

// Window is the per-session intent history: resolved labels paired 1:1 with turns.
type Window struct {
	SessionID string
	Labels    []Intent
	Turns     []ConversationTurn
}

// Len returns the number of retained turns.
func (w Window) Len() int {
	return len(w.Turns)
}

// UserMessages returns the user side of every retained turn, oldest first.
func (w Window) UserMessages() []string {
	out := make([]string, 0, len(w.Turns))
	for _, t := range w.Turns {
		out = append(out, t.User)
	}
	return out
}

// LastLabel returns the most recent label, or "" for an empty window.
func (w Window) LastLabel() Intent {
	if len(w.Labels) == 0 {
		return ""
	}
	return w.Labels[len(w.Labels)-1]
}
