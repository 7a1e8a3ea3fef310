package conversations

import (
	"context"
	"testing"
	"time"

	"github.com/chat-food/server/internal/agent/model"
	"github.com/chat-food/server/internal/agent/repo"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	labelA = model.IntentOrders
	labelB = model.IntentSearch
)

func TestAdvanceCollapsesOnLabelChange(t *testing.T) {
	var w model.Window
	w = Advance(w, labelA, "m1", 0)
	w = Advance(w, labelA, "m2", 0)
	assert.Equal(t, 2, w.Len())

	w = Advance(w, labelB, "m3", 0)
	assert.Equal(t, []model.Intent{labelB}, w.Labels)
	assert.Equal(t, []string{"m3"}, w.UserMessages())
}

func TestAdvanceKeepsSequencesPaired(t *testing.T) {
	var w model.Window
	seq := []model.Intent{labelA, labelB, labelB, labelA, labelA, labelA, labelB}
	for i, l := range seq {
		w = Advance(w, l, string(rune('a'+i)), 0)
		require.Equal(t, len(w.Labels), len(w.Turns))
		assert.Equal(t, l, w.LastLabel())
		for _, got := range w.Labels {
			assert.Equal(t, l, got, "a window only ever holds one label")
		}
	}
}

func TestAdvanceDoesNotMutateInput(t *testing.T) {
	w := model.Window{
		Labels: []model.Intent{labelA},
		Turns:  []model.ConversationTurn{{User: "m1"}},
	}
	_ = Advance(w, labelB, "m2", 0)
	assert.Equal(t, []model.Intent{labelA}, w.Labels)
	assert.Equal(t, "m1", w.Turns[0].User)
}

func TestAdvanceCapsLength(t *testing.T) {
	var w model.Window
	for _, m := range []string{"m1", "m2", "m3", "m4"} {
		w = Advance(w, labelA, m, 3)
	}
	assert.Equal(t, []string{"m2", "m3", "m4"}, w.UserMessages())
	assert.Len(t, w.Labels, 3)
}

func TestNarrowCollapsesOnOperationChange(t *testing.T) {
	var w model.Window
	w = Narrow(Advance(w, labelA, "status of order 42", 0), model.IntentOrderStatus)
	w = Narrow(Advance(w, labelA, "and order 43?", 0), model.IntentOrderStatus)
	require.Equal(t, 2, w.Len())

	w = Narrow(Advance(w, labelA, "cancel order 77", 0), model.IntentCancelOrder)
	require.Equal(t, len(w.Labels), len(w.Turns))
	assert.Equal(t, []string{"cancel order 77"}, w.UserMessages())
	assert.Equal(t, model.IntentCancelOrder, w.Turns[0].Operation)
}

func TestSameOperation(t *testing.T) {
	turns := []model.ConversationTurn{
		{User: "a", Operation: model.IntentCancelOrder},
		{User: "b", Operation: model.IntentOrderStatus},
		{User: "c", Operation: model.IntentOrderStatus},
	}
	got := SameOperation(turns, model.IntentOrderStatus)
	assert.Equal(t, turns[1:], got)
	assert.Nil(t, SameOperation(turns, model.IntentCancelOrder))
	assert.Equal(t, model.IntentOrderStatus, LastOperation(turns))
	assert.Empty(t, LastOperation(nil))
}

func TestMarkOperationPersists(t *testing.T) {
	ctx := context.Background()
	mm := NewMessagesManager(repo.NewMemoryConversationRepository(10, time.Hour), model.ConversationConfig{MaxTurns: 20})

	_, err := mm.RecordTurn(ctx, "s1", labelA, "status of order 42")
	require.NoError(t, err)
	require.NoError(t, mm.MarkOperation(ctx, "s1", model.IntentOrderStatus))
	prior, err := mm.RecordTurn(ctx, "s1", labelA, "cancel order 77")
	require.NoError(t, err)
	require.Len(t, prior, 1)
	assert.Equal(t, model.IntentOrderStatus, prior[0].Operation)

	require.NoError(t, mm.MarkOperation(ctx, "s1", model.IntentCancelOrder))
	w, err := mm.LoadWindow(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cancel order 77"}, w.UserMessages())
}

func TestMessagesManagerPerSession(t *testing.T) {
	ctx := context.Background()
	mm := NewMessagesManager(repo.NewMemoryConversationRepository(8, time.Minute), model.ConversationConfig{MaxTurns: 10})

	prior, err := mm.RecordTurn(ctx, "s1", labelA, "cancel my order")
	require.NoError(t, err)
	assert.Empty(t, prior)
	require.NoError(t, mm.SaveResponse(ctx, "s1", "Please provide your order ID and phone number."))

	prior, err = mm.RecordTurn(ctx, "s1", labelA, "order 42, phone 555-1234")
	require.NoError(t, err)
	require.Len(t, prior, 1)
	assert.Equal(t, "cancel my order", prior[0].User)
	assert.Equal(t, "Please provide your order ID and phone number.", prior[0].Assistant)

	// another session starts empty
	prior, err = mm.RecordTurn(ctx, "s2", labelA, "hello")
	require.NoError(t, err)
	assert.Empty(t, prior)

	prior, err = mm.RecordTurn(ctx, "s1", labelB, "price of pizza")
	require.NoError(t, err)
	assert.Empty(t, prior)

	require.NoError(t, mm.Reset(ctx, "s1"))
	w, err := mm.LoadWindow(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, w.Len())
}

func TestBuildResponseContext(t *testing.T) {
	msgs := BuildResponseContext(schema.SystemMessage("sys"), model.TurnInput{
		Query: "and the price?",
		Turns: []model.ConversationTurn{{User: "suggest a stew", Assistant: "Try ghormeh sabzi."}},
	})
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "and the price?", msgs[3].Content)
}
