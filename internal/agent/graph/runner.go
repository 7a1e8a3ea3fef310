package graph

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/conversations"
	"github.com/chat-food/server/internal/agent/graph/nodes"
	"github.com/chat-food/server/internal/agent/graph/observers"
	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	logx "github.com/chat-food/server/pkg/logger"
)

// Runner executes one conversation turn at a time per session.
type Runner interface {
	Invoke(ctx context.Context, in model.QueryInput) (model.Reply, error)
	// Stream runs a turn like Invoke and feeds the answer to sink while it is
	// written. Replies that are not generated token by token reach sink once.
	// The returned Reply is authoritative.
	Stream(ctx context.Context, in model.QueryInput, sink nodes.TokenSink) (model.Reply, error)
	Reset(ctx context.Context, sessionID string) error
}

type graphRunner struct {
	runnable compose.Runnable[model.QueryInput, *schema.Message]
	messages *conversations.MessagesManager
	locks    *sessionLocks
}

// BuildRunner compiles the router graph and wraps it in a Runner.
func BuildRunner(ctx context.Context, cfg *Config) (Runner, error) {
	runnable, err := BuildGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logx.Debug().Msg("Router graph built successfully")
	return NewRunner(runnable, cfg.MessagesManager), nil
}

func NewRunner(runnable compose.Runnable[model.QueryInput, *schema.Message], mm *conversations.MessagesManager) Runner {
	return &graphRunner{runnable: runnable, messages: mm, locks: newSessionLocks()}
}

// Invoke validates the input and runs the graph. Graph failures never reach
// the caller: they become an apology reply. Only invalid input is an error.
func (r *graphRunner) Invoke(ctx context.Context, in model.QueryInput) (model.Reply, error) {
	return r.run(ctx, in)
}

func (r *graphRunner) Stream(ctx context.Context, in model.QueryInput, sink nodes.TokenSink) (model.Reply, error) {
	if sink == nil {
		return r.run(ctx, in)
	}
	streamed := false
	ctx = nodes.WithTokenSink(ctx, func(chunk string) {
		streamed = true
		sink(chunk)
	})

	reply, err := r.run(ctx, in)
	if err != nil {
		return reply, err
	}
	if !streamed {
		sink(reply.Text)
	}
	return reply, nil
}

func (r *graphRunner) run(ctx context.Context, in model.QueryInput) (model.Reply, error) {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.Query = strings.TrimSpace(in.Query)
	if in.SessionID == "" {
		return model.Reply{}, errx.ErrEmptySession
	}
	if in.Query == "" {
		return model.Reply{}, errx.ErrEmptyQuery
	}

	unlock := r.locks.Lock(in.SessionID)
	defer unlock()

	out, err := r.runnable.Invoke(ctx, in, compose.WithCallbacks(observers.NewAllCallbacks()))
	failed := err != nil || out == nil
	if failed {
		logx.Error().Err(err).Str("session_id", in.SessionID).Msg("graph run failed")
		out = schema.AssistantMessage(nodes.ApologyMessage, nil)
	}

	domain, intent, status := nodes.ReplyMeta(out)
	reply := model.Reply{
		SessionID: in.SessionID,
		Text:      out.Content,
		Domain:    domain,
		Intent:    intent,
		Status:    status,
	}

	// a failed run may not have recorded its turn; leave the window alone
	if !failed {
		if err := r.messages.SaveResponse(ctx, in.SessionID, reply.Text); err != nil {
			logx.Warn().Err(err).Str("session_id", in.SessionID).Msg("failed to save reply")
		}
	}

	logx.Info().
		Str("session_id", in.SessionID).
		Str("domain", domain.String()).
		Str("intent", intent.String()).
		Str("status", status).
		Msg("turn completed")
	return reply, nil
}

// Reset forgets the conversation window of a session.
func (r *graphRunner) Reset(ctx context.Context, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errx.ErrEmptySession
	}

	unlock := r.locks.Lock(sessionID)
	defer unlock()
	return r.messages.Reset(ctx, sessionID)
}
