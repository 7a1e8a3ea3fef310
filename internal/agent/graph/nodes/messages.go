package nodes

// User-facing texts produced when a node cannot do better.
const (
	ApologyMessage    = "Sorry, something went wrong while handling your request. Please try again later."
	CapabilityMessage = "I can help you with your orders (cancel an order, register a comment, track its status), " +
		"find a food and its price, suggest something to eat, or answer questions about food."
	OrderOptionsMessage = "Please keep your request in these 3 fields:\nCancel the order\nComment registration\nTrack order status"
	NoFoodNamedMessage  = "Please tell me the name of the food or the restaurant you are looking for."
	NoRestaurantMessage = "No restaurant has this food currently."
)

const (
	cancelMissingBoth  = "Order cancellation failed; please provide your order ID and phone number."
	cancelMissingID    = "Order cancellation failed; please provide your order ID too."
	cancelMissingPhone = "Order cancellation failed; please provide your phone number too."
	cancelDelivered    = "Order cancellation failed; order %s is already delivered."
	cancelNotExist     = "Order cancellation failed; order %s does not exist."
	cancelAlready      = "Order %s is already canceled."
	cancelDone         = "Order %s was canceled successfully."

	commentMissingName    = "Comment registration failed; please provide your name."
	commentMissingID      = "Comment registration failed; please provide your order ID."
	commentMissingComment = "Comment registration failed; please tell me your comment about the order."
	commentNotExist       = "Comment registration failed; order %s does not exist."
	commentDone           = "Thank you %s, your comment on order %s was registered."

	statusMissingID = "Order status failed; please provide your order ID."
	statusNotExist  = "Order %s does not exist."
	statusReport    = "The status of order %s is: %s."
)
