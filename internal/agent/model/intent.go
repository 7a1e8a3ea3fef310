package model

// Intent is a discrete routing label produced by the intent classifier.
type Intent string

// Domain intents selected by the top-level router.
const (
	IntentOrders      Intent = "orders"
	IntentSearch      Intent = "food_search"
	IntentSuggestion  Intent = "food_suggestion"
	IntentInformation Intent = "food_information"
	IntentOther       Intent = "other"
)

// Order intents selected inside the order sub-graph.
const (
	IntentCancelOrder Intent = "cancel_order"
	IntentComment     Intent = "comment_registration"
	IntentOrderStatus Intent = "order_status"
	IntentOrderOther  Intent = "order_other"
)

func (i Intent) String() string {
	return string(i)
}

// Label is one entry of a LabelSet together with the description shown to the model.
type Label struct {
	Name        Intent
	Description string
}

// LabelSet is an ordered set of labels with a designated fallback.
// The 1-based position of a label is its numeric surface form.
type LabelSet struct {
	Labels   []Label
	Fallback Intent
}

// Contains reports whether the intent is part of the set.
func (ls LabelSet) Contains(i Intent) bool {
	for _, l := range ls.Labels {
		if l.Name == i {
			return true
		}
	}
	return false
}

// At returns the label at the given 1-based index.
func (ls LabelSet) At(index int) (Intent, bool) {
	if index < 1 || index > len(ls.Labels) {
		return "", false
	}
	return ls.Labels[index-1].Name, true
}

var DomainLabels = LabelSet{
	Labels: []Label{
		{Name: IntentOrders, Description: "requests about an order and manipulation on it, like canceling it, commenting on it or asking for its status."},
		{Name: IntentSearch, Description: "requests about a food's details, like its price, the restaurant that serves it and similar details."},
		{Name: IntentSuggestion, Description: "requests which ask for a suggestion or recommendation about food."},
		{Name: IntentInformation, Description: "general or professional information about food, like a recipe, ingredients or nutrition."},
		{Name: IntentOther, Description: "the client wants something else."},
	},
	Fallback: IntentOther,
}

var OrderLabels = LabelSet{
	Labels: []Label{
		{Name: IntentCancelOrder, Description: "cancels an order if the client requests it."},
		{Name: IntentComment, Description: "registers the client's opinion or comment about an order."},
		{Name: IntentOrderStatus, Description: "the client wants to know the status of an order."},
		{Name: IntentOrderOther, Description: "the client wants something else."},
	},
	Fallback: IntentOrderOther,
}
