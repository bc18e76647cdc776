package orchestrator

import (
	"github.com/conciergelabs/concierge/pkg/models"
)

// Agent action names the deterministic extractor and the planner share.
const (
	ActionSearchProducts     = "search_products"
	ActionGetProduct         = "get_product"
	ActionAddItem            = "add_item"
	ActionAddMultipleItems   = "add_multiple_items"
	ActionUpdateItem         = "update_item"
	ActionAdjustItemQuantity = "adjust_item_quantity"
	ActionRemoveItem         = "remove_item"
	ActionClearCart          = "clear_cart"
	ActionApplyDiscount      = "apply_discount"
	ActionGetCart            = "get_cart"
	ActionCheckoutSummary    = "checkout_summary"
	ActionGetOrderStatus     = "get_order_status"
	ActionListOrders         = "list_orders"
	ActionCancelOrder        = "cancel_order"
	ActionRequestRefund      = "request_refund"
	ActionChangeOrderAddress = "change_order_address"
	ActionShowMemory         = "show_memory"
	ActionSavePreference     = "save_preference"
	ActionForgetPreference   = "forget_preference"
	ActionClearMemory        = "clear_memory"
	ActionCreateTicket       = "create_ticket"
	ActionTicketStatus       = "ticket_status"
	ActionCloseTicket        = "close_ticket"
	ActionAnswerQuestion     = "answer_question"
)

// ExtractActions maps one classified intent onto the deterministic agent
// actions that fulfil it. This is the fallback path when the planner is
// disabled or declines.
func ExtractActions(intent models.IntentResult) []models.AgentAction {
	entities := intent.Entities
	if entities == nil {
		entities = map[string]any{}
	}

	switch intent.Name {
	case models.IntentMultiStatus:
		return []models.AgentAction{
			{Name: ActionGetCart, TargetAgent: models.AgentCart, Params: map[string]any{}},
			{Name: ActionGetOrderStatus, TargetAgent: models.AgentOrder, Params: entities},
		}
	case models.IntentProductSearch:
		return []models.AgentAction{{Name: ActionSearchProducts, Params: entities}}
	case models.IntentSearchAndAdd:
		productParams := map[string]any{"query": entities["query"]}
		for _, key := range []string{"size", "color", "brand", "minPrice", "maxPrice"} {
			if v, ok := entities[key]; ok && v != nil {
				productParams[key] = v
			}
		}
		quantity := entities["quantity"]
		if quantity == nil {
			quantity = 1
		}
		return []models.AgentAction{
			{Name: ActionSearchProducts, TargetAgent: models.AgentProduct, Params: productParams},
			{Name: ActionAddItem, TargetAgent: models.AgentCart, Params: map[string]any{
				"productId": entities["productId"],
				"variantId": entities["variantId"],
				"size":      entities["size"],
				"color":     entities["color"],
				"quantity":  quantity,
			}},
		}
	case models.IntentAddToCart:
		return []models.AgentAction{{Name: ActionAddItem, Params: entities}}
	case models.IntentAddMultipleToCart:
		return []models.AgentAction{{Name: ActionAddMultipleItems, Params: entities}}
	case models.IntentApplyDiscount:
		return []models.AgentAction{{Name: ActionApplyDiscount, Params: entities}}
	case models.IntentUpdateCart:
		return []models.AgentAction{{Name: ActionUpdateItem, Params: entities}}
	case models.IntentAdjustCartQuantity:
		return []models.AgentAction{{Name: ActionAdjustItemQuantity, Params: entities}}
	case models.IntentRemoveFromCart:
		return []models.AgentAction{{Name: ActionRemoveItem, Params: entities}}
	case models.IntentClearCart:
		return []models.AgentAction{{Name: ActionClearCart, Params: map[string]any{}}}
	case models.IntentViewCart:
		return []models.AgentAction{{Name: ActionGetCart, Params: map[string]any{}}}
	case models.IntentCheckout:
		return []models.AgentAction{{Name: ActionCheckoutSummary, Params: map[string]any{}}}
	case models.IntentOrderStatus:
		return []models.AgentAction{{Name: ActionGetOrderStatus, Params: entities}}
	case models.IntentCancelOrder:
		return []models.AgentAction{{Name: ActionCancelOrder, Params: entities}}
	case models.IntentRequestRefund:
		return []models.AgentAction{{Name: ActionRequestRefund, Params: entities}}
	case models.IntentChangeOrderAddress:
		return []models.AgentAction{{Name: ActionChangeOrderAddress, Params: entities}}
	case models.IntentShowMemory:
		return []models.AgentAction{{Name: ActionShowMemory, Params: map[string]any{}}}
	case models.IntentSavePreference:
		return []models.AgentAction{{Name: ActionSavePreference, Params: entities}}
	case models.IntentForgetPreference:
		return []models.AgentAction{{Name: ActionForgetPreference, Params: entities}}
	case models.IntentClearMemory:
		return []models.AgentAction{{Name: ActionClearMemory, Params: map[string]any{}}}
	case models.IntentSupportEscalation:
		return []models.AgentAction{{Name: ActionCreateTicket, TargetAgent: models.AgentSupport, Params: entities}}
	case models.IntentSupportStatus:
		return []models.AgentAction{{Name: ActionTicketStatus, TargetAgent: models.AgentSupport, Params: entities}}
	case models.IntentSupportClose:
		return []models.AgentAction{{Name: ActionCloseTicket, TargetAgent: models.AgentSupport, Params: entities}}
	}
	return []models.AgentAction{{Name: ActionAnswerQuestion, Params: entities}}
}

// RouteAgent picks the default target agent for an intent when an action
// does not name one itself.
func RouteAgent(intentName string) string {
	switch intentName {
	case models.IntentProductSearch, models.IntentSearchAndAdd:
		return models.AgentProduct
	case models.IntentAddToCart, models.IntentAddMultipleToCart, models.IntentApplyDiscount,
		models.IntentUpdateCart, models.IntentAdjustCartQuantity, models.IntentRemoveFromCart,
		models.IntentClearCart, models.IntentViewCart:
		return models.AgentCart
	case models.IntentCheckout, models.IntentOrderStatus, models.IntentCancelOrder,
		models.IntentRequestRefund, models.IntentChangeOrderAddress:
		return models.AgentOrder
	case models.IntentShowMemory, models.IntentSavePreference, models.IntentForgetPreference, models.IntentClearMemory:
		return models.AgentMemory
	case models.IntentSupportEscalation, models.IntentSupportStatus, models.IntentSupportClose:
		return models.AgentSupport
	}
	return models.AgentSupport
}
