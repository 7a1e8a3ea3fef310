package nodes

// Top-level router graph.
const (
	NodeInput            = "input"
	NodeDomainClassifier = "domain_classifier"
	NodeWindow           = "window"
	NodeOrders           = "orders"
	NodeSearch           = "food_search"
	NodeSuggestion       = "food_suggestion"
	NodeInformation      = "food_information"
	NodeOther            = "other"
)

// Order sub-graph.
const (
	NodeOrderSlots      = "order_slots"
	NodeOrderClassifier = "order_classifier"
	NodeCancelOrder     = "cancel_order"
	NodeCommentOrder    = "comment_order"
	NodeOrderStatus     = "order_status"
	NodeOrderOther      = "order_other"
)

// Food search sub-graph.
const (
	NodeFoodSlots     = "food_slots"
	NodeCatalogLookup = "catalog_lookup"
	NodeSearchReply   = "search_reply"
)

// Reasoner sub-graphs.
const (
	NodeReasonerInput = "reasoner_input"
	NodeReasoner      = "reasoner"
	NodeToolExecutor  = "tools"
	NodeFinalize      = "finalize"
)
