package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/chat-food/server/internal/agent/graph/conversations"
	"github.com/chat-food/server/internal/agent/model"
	errx "github.com/chat-food/server/internal/core/error"
	logx "github.com/chat-food/server/pkg/logger"
)

const commentHint = "The comment is the client's opinion about the order or its food."

// NewSessionStatePreHandler seeds the sub-graph state from the incoming turn.
func NewSessionStatePreHandler(fields []string) func(context.Context, model.TurnInput, *model.SessionState) (model.TurnInput, error) {
	return func(ctx context.Context, in model.TurnInput, s *model.SessionState) (model.TurnInput, error) {
		s.SessionID = in.SessionID
		s.Message = in.Query
		s.Slots = model.AbsentSlots(fields)
		return in, nil
	}
}

// NewSlotsNode extracts fields from the retained messages plus the query
// and merges them into the session state.
func NewSlotsNode(e *SlotExtractor, fields []string) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (model.TurnInput, error) {
		slots := e.Extract(ctx, in.Transcript(), fields)
		err := compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
			s.Slots.Merge(slots)
			return nil
		})
		if err != nil {
			return in, fmt.Errorf("failed to access state: %w", err)
		}
		logx.Debug().Str("session_id", in.SessionID).Interface("slots", slots).Msg("slots extracted")
		return in, nil
	})
}

// NewOrderClassifierNode resolves the order operation and stores it on the state.
// A message the classifier cannot place continues the previous operation when
// it carries order details of its own, so a follow-up such as a phone number
// completes the pending request. Retained turns are narrowed to the run of the
// resolved operation; turns of another operation never reach slot extraction.
func NewOrderClassifierNode(c *Classifier, e *SlotExtractor, mm *conversations.MessagesManager) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (model.TurnInput, error) {
		intent := c.Classify(ctx, in.Query, model.OrderLabels)
		if prev := conversations.LastOperation(in.Turns); intent == model.IntentOrderOther &&
			prev != "" && prev != model.IntentOrderOther {
			if e.Extract(ctx, in.Query, model.OrderSlotFields).Any() {
				logx.Debug().Str("session_id", in.SessionID).Str("operation", prev.String()).Msg("continuing previous order operation")
				intent = prev
			}
		}

		in.Turns = conversations.SameOperation(in.Turns, intent)
		if err := mm.MarkOperation(ctx, in.SessionID, intent); err != nil {
			logx.Warn().Err(err).Str("session_id", in.SessionID).Msg("failed to mark order operation")
		}

		err := compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
			s.Intent = intent
			return nil
		})
		if err != nil {
			return in, fmt.Errorf("failed to access state: %w", err)
		}
		return in, nil
	})
}

// NewOrderIntentCondition routes to the handler of the resolved order operation.
func NewOrderIntentCondition() func(context.Context, model.TurnInput) (string, error) {
	return func(ctx context.Context, in model.TurnInput) (string, error) {
		var intent model.Intent
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
			intent = s.Intent
			return nil
		})

		switch intent {
		case model.IntentCancelOrder:
			return NodeCancelOrder, nil
		case model.IntentComment:
			return NodeCommentOrder, nil
		case model.IntentOrderStatus:
			return NodeOrderStatus, nil
		default:
			return NodeOrderOther, nil
		}
	}
}

func NewCancelOrderNode(orders model.OrderService) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (*schema.Message, error) {
		slots := sessionSlots(ctx)
		text, status := CancelOrder(ctx, orders, slots)
		return finishOrder(ctx, in, model.IntentCancelOrder, text, status), nil
	})
}

func NewCommentOrderNode(orders model.OrderService, e *SlotExtractor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (*schema.Message, error) {
		slots := sessionSlots(ctx)
		text, status := CommentOrder(ctx, orders, e, slots, in.Transcript())
		_ = compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
			s.Slots.Merge(slots)
			return nil
		})
		return finishOrder(ctx, in, model.IntentComment, text, status), nil
	})
}

func NewOrderStatusNode(orders model.OrderService) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (*schema.Message, error) {
		slots := sessionSlots(ctx)
		text, status := OrderStatus(ctx, orders, slots)
		return finishOrder(ctx, in, model.IntentOrderStatus, text, status), nil
	})
}

func NewOrderOtherNode() *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.TurnInput) (*schema.Message, error) {
		return finishOrder(ctx, in, model.IntentOrderOther, OrderOptionsMessage, ""), nil
	})
}

// CancelOrder needs both order id and phone number. The order service is
// only called when both are present, and every outcome has its own reply.
func CancelOrder(ctx context.Context, orders model.OrderService, slots model.Slots) (reply, status string) {
	hasID, hasPhone := slots.Has(model.SlotOrderID), slots.Has(model.SlotPhoneNumber)
	switch {
	case !hasID && !hasPhone:
		return cancelMissingBoth, model.StatusNotExist
	case !hasID:
		return cancelMissingID, model.StatusNotExist
	case !hasPhone:
		return cancelMissingPhone, model.StatusNotExist
	}

	id := slots.Get(model.SlotOrderID)
	outcome, err := orders.Cancel(ctx, id, slots.Get(model.SlotPhoneNumber))
	if err != nil {
		logx.Error().Err(err).Str("order_id", id).Msg("cancel order failed")
		return ApologyMessage, ""
	}

	switch outcome {
	case model.CancelAlreadyDelivered:
		return fmt.Sprintf(cancelDelivered, id), model.StatusDelivered
	case model.CancelNotExist:
		return fmt.Sprintf(cancelNotExist, id), model.StatusNotExist
	case model.CancelAlreadyCanceled:
		return fmt.Sprintf(cancelAlready, id), model.StatusCanceled
	default:
		return fmt.Sprintf(cancelDone, id), model.StatusCanceled
	}
}

// CommentOrder checks person name, then order id, then the comment itself;
// the first missing one is reported and the order service is left alone.
// The extracted comment is written back into slots.
func CommentOrder(ctx context.Context, orders model.OrderService, e *SlotExtractor, slots model.Slots, text string) (reply, status string) {
	if !slots.Has(model.SlotPersonName) {
		return commentMissingName, model.StatusMissing
	}
	if !slots.Has(model.SlotOrderID) {
		return commentMissingID, model.StatusMissing
	}

	comment := e.ExtractOne(ctx, text, model.SlotComment, commentHint)
	if model.IsAbsent(comment) {
		return commentMissingComment, model.StatusMissing
	}
	slots[model.SlotComment] = comment

	id, name := slots.Get(model.SlotOrderID), slots.Get(model.SlotPersonName)
	if _, err := orders.AddComment(ctx, id, name, comment); err != nil {
		if errors.Is(err, errx.ErrOrderNotFound) {
			return fmt.Sprintf(commentNotExist, id), model.StatusNotExist
		}
		logx.Error().Err(err).Str("order_id", id).Msg("add comment failed")
		return ApologyMessage, ""
	}
	return fmt.Sprintf(commentDone, name, id), model.StatusCommented
}

// OrderStatus reports the current state of an order; it needs the order id.
func OrderStatus(ctx context.Context, orders model.OrderService, slots model.Slots) (reply, status string) {
	if !slots.Has(model.SlotOrderID) {
		return statusMissingID, model.StatusMissing
	}

	id := slots.Get(model.SlotOrderID)
	st, err := orders.Status(ctx, id)
	if errors.Is(err, errx.ErrOrderNotFound) || (err == nil && st == model.OrderNotExist) {
		return fmt.Sprintf(statusNotExist, id), model.StatusNotExist
	}
	if err != nil {
		logx.Error().Err(err).Str("order_id", id).Msg("order status failed")
		return ApologyMessage, ""
	}

	switch st {
	case model.OrderDelivered:
		return fmt.Sprintf(statusReport, id, model.StatusDelivered), model.StatusDelivered
	case model.OrderCanceled:
		return fmt.Sprintf(statusReport, id, model.StatusCanceled), model.StatusCanceled
	default:
		return fmt.Sprintf(statusReport, id, model.StatusActive), model.StatusActive
	}
}

func sessionSlots(ctx context.Context) model.Slots {
	var slots model.Slots
	_ = compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
		slots = make(model.Slots, len(s.Slots))
		for k, v := range s.Slots {
			slots[k] = v
		}
		return nil
	})
	if slots == nil {
		slots = model.Slots{}
	}
	return slots
}

func finishOrder(ctx context.Context, in model.TurnInput, intent model.Intent, text, status string) *schema.Message {
	_ = compose.ProcessState(ctx, func(_ context.Context, s *model.SessionState) error {
		s.Intent = intent
		s.Status = status
		return nil
	})
	logx.Info().
		Str("session_id", in.SessionID).
		Str("intent", intent.String()).
		Str("status", status).
		Msg("order request handled")
	return newReply(text, model.IntentOrders, intent, status)
}
