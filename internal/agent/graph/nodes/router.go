package nodes

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/conversations"
	"github.com/chat-food/server/internal/agent/model"
	logx "github.com/chat-food/server/pkg/logger"
)

// NewInputPreHandler records the session on the router state.
func NewInputPreHandler() func(context.Context, model.QueryInput, *model.RouterState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.RouterState) (model.QueryInput, error) {
		s.SessionID = in.SessionID
		return in, nil
	}
}

// NewInputNode converts the public input into the turn that flows through the graph.
func NewInputNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (model.TurnInput, error) {
		return model.TurnInput{
			SessionID: in.SessionID,
			Query:     strings.TrimSpace(in.Query),
		}, nil
	})
}

// NewDomainClassifierNode picks the domain of the turn.
func NewDomainClassifierNode(c *Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (model.TurnInput, error) {
		in.Domain = c.Classify(ctx, in.Query, model.DomainLabels)
		return in, nil
	})
}

func NewDomainClassifierPostHandler() func(context.Context, model.TurnInput, *model.RouterState) (model.TurnInput, error) {
	return func(ctx context.Context, out model.TurnInput, s *model.RouterState) (model.TurnInput, error) {
		s.Domain = out.Domain
		logx.Info().Str("session_id", s.SessionID).Str("domain", out.Domain.String()).Msg("domain resolved")
		return out, nil
	}
}

// NewWindowNode advances the session window under the domain label and
// attaches the retained earlier turns. A store failure degrades to a turn
// without history.
func NewWindowNode(mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (model.TurnInput, error) {
		prior, err := mm.RecordTurn(ctx, in.SessionID, in.Domain, in.Query)
		if err != nil {
			logx.Error().Err(err).Str("session_id", in.SessionID).Msg("failed to record turn, continuing without history")
			return in, nil
		}
		in.Turns = prior
		return in, nil
	})
}

// NewDomainCondition routes the turn to its domain node.
func NewDomainCondition() func(context.Context, model.TurnInput) (string, error) {
	return func(ctx context.Context, in model.TurnInput) (string, error) {
		switch in.Domain {
		case model.IntentOrders:
			return NodeOrders, nil
		case model.IntentSearch:
			return NodeSearch, nil
		case model.IntentSuggestion:
			return NodeSuggestion, nil
		case model.IntentInformation:
			return NodeInformation, nil
		default:
			return NodeOther, nil
		}
	}
}

// NewOtherNode answers requests outside every supported domain.
func NewOtherNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (*schema.Message, error) {
		return newReply(CapabilityMessage, model.IntentOther, model.IntentOther, ""), nil
	})
}
