package parsers

import (
	"strings"
	"testing"

	"github.com/chat-food/server/internal/agent/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIntentSurfaceForms(t *testing.T) {
	cases := []struct {
		reply string
		want  model.Intent
	}{
		{"3", model.IntentSuggestion},
		{"food_suggestion", model.IntentSuggestion},
		{"3-food_suggestion", model.IntentSuggestion},
		{"3_food_suggestion", model.IntentSuggestion},
		{"3-'food_suggestion'", model.IntentSuggestion},
		{"3. food_suggestion", model.IntentSuggestion},
		{"  '3-food_suggestion'  ", model.IntentSuggestion},
		{"`food_suggestion`", model.IntentSuggestion},
		{"FOOD_SUGGESTION", model.IntentSuggestion},
		{"food suggestion", model.IntentSuggestion},
		{"food-suggestion.", model.IntentSuggestion},
		{"1", model.IntentOrders},
		{"\"orders\"", model.IntentOrders},
		{"5-other", model.IntentOther},
		{"2\n", model.IntentSearch},
	}
	for _, tc := range cases {
		t.Run(tc.reply, func(t *testing.T) {
			got, err := ParseIntent(tc.reply, model.DomainLabels)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseIntentFallsBack(t *testing.T) {
	cases := map[string]error{
		"":                           ErrEmptyReply,
		"   ":                        ErrEmptyReply,
		"I think you want a pizza":   ErrUnknownLabel,
		"9":                          ErrUnknownLabel,
		"0-orders":                   ErrUnknownLabel,
		"2-food_suggestion":          ErrLabelMismatch,
		"delivery":                   ErrUnknownLabel,
		strings.Repeat("x", 5*1024): ErrReplyTooLarge,
	}
	for reply, wantErr := range cases {
		got, err := ParseIntent(reply, model.DomainLabels)
		assert.ErrorIs(t, err, wantErr, "reply %q", reply)
		assert.Equal(t, model.IntentOther, got)
	}
}

func TestParseIntentOrderLabels(t *testing.T) {
	got, err := ParseIntent("2-comment_registration", model.OrderLabels)
	require.NoError(t, err)
	assert.Equal(t, model.IntentComment, got)

	got, err = ParseIntent("orders", model.OrderLabels)
	assert.Error(t, err)
	assert.Equal(t, model.IntentOrderOther, got)
}

func TestParseSlots(t *testing.T) {
	got, err := ParseSlots("42, 555-1234,None", model.OrderSlotFields)
	require.NoError(t, err)
	assert.Equal(t, model.Slots{
		model.SlotOrderID:     "42",
		model.SlotPhoneNumber: "555-1234",
		model.SlotPersonName:  model.SlotAbsent,
	}, got)

	got, err = ParseSlots("'pizza','none'", model.FoodSlotFields)
	require.NoError(t, err)
	assert.Equal(t, "pizza", got.Get(model.SlotFoodName))
	assert.False(t, got.Has(model.SlotRestaurantName))

	got, err = ParseSlots("42,,", model.OrderSlotFields)
	require.NoError(t, err)
	assert.Equal(t, model.SlotAbsent, got[model.SlotPhoneNumber])
	assert.Equal(t, model.SlotAbsent, got[model.SlotPersonName])
}

func TestParseSlotsMismatchYieldsAllAbsent(t *testing.T) {
	for _, reply := range []string{"42,555-1234", "42,555,John,extra", "", "Sure! Here you go"} {
		got, err := ParseSlots(reply, model.OrderSlotFields)
		assert.Error(t, err, "reply %q", reply)
		assert.Equal(t, model.AbsentSlots(model.OrderSlotFields), got)
	}
}

func TestParseValue(t *testing.T) {
	assert.Equal(t, "The soup was cold", ParseValue("  'The soup was cold' "))
	assert.Equal(t, model.SlotAbsent, ParseValue("NONE"))
	assert.Equal(t, model.SlotAbsent, ParseValue(" "))
}
