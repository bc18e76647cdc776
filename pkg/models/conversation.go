package models

import "time"

// Supported conversation intents. The classifier and the LLM client both
// treat this as a closed set; anything else degrades to general_question.
const (
	IntentProductSearch      = "product_search"
	IntentSearchAndAdd       = "search_and_add_to_cart"
	IntentAddToCart          = "add_to_cart"
	IntentAddMultipleToCart  = "add_multiple_to_cart"
	IntentUpdateCart         = "update_cart"
	IntentAdjustCartQuantity = "adjust_cart_quantity"
	IntentRemoveFromCart     = "remove_from_cart"
	IntentClearCart          = "clear_cart"
	IntentApplyDiscount      = "apply_discount"
	IntentViewCart           = "view_cart"
	IntentCheckout           = "checkout"
	IntentOrderStatus        = "order_status"
	IntentChangeOrderAddress = "change_order_address"
	IntentCancelOrder        = "cancel_order"
	IntentRequestRefund      = "request_refund"
	IntentMultiStatus        = "multi_status"
	IntentShowMemory         = "show_memory"
	IntentSavePreference     = "save_preference"
	IntentForgetPreference   = "forget_preference"
	IntentClearMemory        = "clear_memory"
	IntentSupportEscalation  = "support_escalation"
	IntentSupportStatus      = "support_status"
	IntentSupportClose       = "support_close"
	IntentGeneralQuestion    = "general_question"
)

// Agent names used for routing and response attribution.
const (
	AgentProduct      = "product"
	AgentCart         = "cart"
	AgentOrder        = "order"
	AgentMemory       = "memory"
	AgentSupport      = "support"
	AgentOrchestrator = "orchestrator"
)

// CodeClarificationRequired marks an agent result that needs a follow-up
// question before the action can be executed safely.
const CodeClarificationRequired = "CLARIFICATION_REQUIRED"

// IntentResult is the classifier's verdict for one utterance.
type IntentResult struct {
	Name       string         `json:"intent"`
	Confidence float64        `json:"confidence"`
	Entities   map[string]any `json:"entities"`
}

// AgentAction is a single typed operation for one agent.
type AgentAction struct {
	Name        string         `json:"name"`
	TargetAgent string         `json:"targetAgent,omitempty"`
	Params      map[string]any `json:"params"`
}

// SuggestedAction is a UI affordance attached to an agent result.
type SuggestedAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// AgentResult is what a single agent execution returns.
type AgentResult struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	Data             map[string]any    `json:"data,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggestedActions,omitempty"`
}

// AgentResponse is the transport payload returned to HTTP/WebSocket clients.
type AgentResponse struct {
	Success          bool              `json:"success"`
	Message          string            `json:"message"`
	Agent            string            `json:"agent"`
	Data             map[string]any    `json:"data,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggestedActions,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// InteractionRecord is one persisted conversation turn.
type InteractionRecord struct {
	ID        string         `json:"id" bson:"messageId"`
	SessionID string         `json:"sessionId" bson:"sessionId"`
	UserID    string         `json:"userId,omitempty" bson:"userId,omitempty"`
	Message   string         `json:"message" bson:"message"`
	Intent    string         `json:"intent" bson:"intent"`
	Agent     string         `json:"agent" bson:"agent"`
	Response  *AgentResponse `json:"response,omitempty" bson:"response,omitempty"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
}

// AgentContext carries everything an agent may consult for one request.
// It is assembled once per message and treated as read-only by agents.
type AgentContext struct {
	SessionID string
	UserID    string
	Channel   string
	Message   string
	Intent    IntentResult
	Session   *Session
	Cart      *Cart
	Memory    *MemorySnapshot
	Recent    []InteractionRecord
}
