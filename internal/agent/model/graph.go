package model

import (
	"strings"

	"github.com/cloudwego/eino/schema"
)

// Keys written into the final message Extra so callers can see how a turn was routed.
const (
	ExtraDomain = "domain"
	ExtraIntent = "intent"
	ExtraStatus = "status"
)

// RouterState is the top-level graph local state.
// Registered via compose.WithGenLocalState; only touched inside state handlers
// or compose.ProcessState, which Eino serializes per invocation.
type RouterState struct {
	SessionID string
	Domain    Intent
}

// SessionState is the local state shared by the nodes of one domain sub-graph run.
// It carries the raw message, the slots extracted so far and the resolved intent.
type SessionState struct {
	SessionID string
	Message   string
	Slots     Slots
	Intent    Intent
	Status    string
}

// ReasonerState is the local state of one tool-augmented reasoning session.
// Rounds counts model invocations; the budget never outlives the invocation.
type ReasonerState struct {
	SessionID     string
	History       []*schema.Message
	Rounds        int
	Forced        bool
	ToolCallIDSeq int

	// Accumulated total LLM cost (USD) across model invocations for this query
	TotalCostUSD float64
}

// QueryInput represents the input for processing user queries.
type QueryInput struct {
	SessionID string `json:"session_id"`
	Query     string `json:"query"`
}

// TurnInput is what flows between the router and the domain sub-graphs.
// Turns holds the earlier turns retained by the conversation window,
// oldest first, excluding Query itself.
type TurnInput struct {
	SessionID string
	Query     string
	Domain    Intent
	Turns     []ConversationTurn
}

// Transcript joins the retained user messages and the current query, one per line.
func (in TurnInput) Transcript() string {
	lines := make([]string, 0, len(in.Turns)+1)
	for _, t := range in.Turns {
		lines = append(lines, t.User)
	}
	lines = append(lines, in.Query)
	return strings.Join(lines, "\n")
}

// Reply is the outcome of one processed turn.
type Reply struct {
	SessionID string `json:"session_id"`
	Text      string `json:"reply"`
	Domain    Intent `json:"domain"`
	Intent    Intent `json:"intent,omitempty"`
	Status    string `json:"status,omitempty"`
}
