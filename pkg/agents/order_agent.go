package agents

import (
	"context"
	"errors"
	"fmt"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
)

// OrderAgent answers order lifecycle actions. Actual order creation runs
// through the checkout endpoint with an idempotency key; conversationally
// the agent only summarizes and mutates existing orders.
type OrderAgent struct {
	orders *services.OrderService
	carts  *services.CartService
}

func NewOrderAgent(orders *services.OrderService, carts *services.CartService) *OrderAgent {
	return &OrderAgent{orders: orders, carts: carts}
}

func (a *OrderAgent) Name() string { return models.AgentOrder }

func (a *OrderAgent) Execute(ctx context.Context, action models.AgentAction, actx *models.AgentContext) models.AgentResult {
	switch action.Name {
	case "checkout_summary":
		return a.checkoutSummary(ctx, actx)
	case "get_order_status":
		return a.orderStatus(actx, action.Params)
	case "list_orders":
		return a.listOrders(actx)
	case "cancel_order":
		return a.cancelOrder(ctx, actx, action.Params)
	case "request_refund":
		return a.requestRefund(ctx, actx, action.Params)
	case "change_order_address":
		return a.changeAddress(ctx, actx, action.Params)
	}
	return failure(fmt.Sprintf("Unsupported order action: %s.", action.Name))
}

func (a *OrderAgent) checkoutSummary(ctx context.Context, actx *models.AgentContext) models.AgentResult {
	if actx.UserID == "" {
		return models.AgentResult{
			Success: false,
			Message: "Sign in to check out. I'll keep your cart ready.",
			Data:    map[string]any{"code": models.CodeClarificationRequired},
		}
	}
	cart := a.carts.GetCart(ctx, actx.UserID, actx.SessionID)
	if cart.ItemCount == 0 {
		return models.AgentResult{
			Success: false,
			Message: "Your cart is empty. Add an item before checking out.",
			Data:    map[string]any{"cart": cart},
			SuggestedActions: []models.SuggestedAction{
				{Label: "Search products", Action: "search:running shoes"},
			},
		}
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("You're ready to check out: %d item(s), $%.2f total including tax and shipping.",
			cart.ItemCount, cart.Total),
		Data: map[string]any{"cart": cart},
		SuggestedActions: []models.SuggestedAction{
			{Label: "Place order", Action: "place_order"},
			{Label: "Apply discount", Action: "apply code SAVE20"},
		},
	}
}

func (a *OrderAgent) orderStatus(actx *models.AgentContext, params map[string]any) models.AgentResult {
	if actx.UserID == "" {
		return failure("Sign in so I can look up your orders.")
	}
	order, result := a.resolveOrder(actx.UserID, params)
	if order == nil {
		return result
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("Order %s is %s. Estimated delivery %s.",
			order.ID, order.Status, order.EstimatedDelivery.Format("Jan 2")),
		Data: map[string]any{"order": order},
		SuggestedActions: []models.SuggestedAction{
			{Label: "Cancel order", Action: fmt.Sprintf("cancel order %s", order.ID)},
			{Label: "Request refund", Action: fmt.Sprintf("refund order %s", order.ID)},
		},
	}
}

func (a *OrderAgent) listOrders(actx *models.AgentContext) models.AgentResult {
	if actx.UserID == "" {
		return failure("Sign in so I can look up your orders.")
	}
	orders := a.orders.ListOrders(actx.UserID)
	if len(orders) > 5 {
		orders = orders[:5]
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("You have %d order(s).", len(orders)),
		Data:    map[string]any{"orders": orders},
	}
}

func (a *OrderAgent) cancelOrder(ctx context.Context, actx *models.AgentContext, params map[string]any) models.AgentResult {
	if actx.UserID == "" {
		return failure("Sign in so I can look up your orders.")
	}
	order, result := a.resolveOrder(actx.UserID, params)
	if order == nil {
		return result
	}
	cancelled, err := a.orders.CancelOrder(ctx, actx.UserID, order.ID, paramString(params, "reason"))
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			return failure(fmt.Sprintf("Order %s is %s and can no longer be cancelled.", order.ID, order.Status))
		}
		return failure(fmt.Sprintf("I couldn't find order %s.", order.ID))
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("Order %s has been cancelled.", cancelled.ID),
		Data:    map[string]any{"order": cancelled},
	}
}

func (a *OrderAgent) requestRefund(ctx context.Context, actx *models.AgentContext, params map[string]any) models.AgentResult {
	if actx.UserID == "" {
		return failure("Sign in so I can look up your orders.")
	}
	order, result := a.resolveOrder(actx.UserID, params)
	if order == nil {
		return result
	}
	refunded, err := a.orders.RequestRefund(ctx, actx.UserID, order.ID, paramString(params, "reason"))
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			return failure(fmt.Sprintf("A refund isn't available for order %s because it is %s.", order.ID, order.Status))
		}
		return failure(fmt.Sprintf("I couldn't find order %s.", order.ID))
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("I've requested a refund for order %s.", refunded.ID),
		Data:    map[string]any{"order": refunded},
	}
}

func (a *OrderAgent) changeAddress(ctx context.Context, actx *models.AgentContext, params map[string]any) models.AgentResult {
	if actx.UserID == "" {
		return failure("Sign in so I can look up your orders.")
	}
	address, ok := addressFromParams(params["shippingAddress"])
	if !ok {
		return failure("Give me the full address like: address: 1 Main St, city: Springfield, state: IL, zip: 62704, country: US.")
	}
	order, result := a.resolveOrder(actx.UserID, params)
	if order == nil {
		return result
	}
	updated, err := a.orders.UpdateShippingAddress(ctx, actx.UserID, order.ID, address)
	if err != nil {
		if errors.Is(err, services.ErrConflict) {
			return failure(fmt.Sprintf("Order %s is %s, so the address can't change anymore.", order.ID, order.Status))
		}
		return failure(fmt.Sprintf("I couldn't find order %s.", order.ID))
	}
	return models.AgentResult{
		Success: true,
		Message: fmt.Sprintf("Updated the shipping address for order %s.", updated.ID),
		Data:    map[string]any{"order": updated},
	}
}

// resolveOrder finds the order named in params, or the most recent one.
// A nil order means the accompanying result already explains the failure.
func (a *OrderAgent) resolveOrder(userID string, params map[string]any) (*models.Order, models.AgentResult) {
	if orderID := paramString(params, "orderId"); orderID != "" {
		order, err := a.orders.GetOrder(userID, orderID)
		if err != nil {
			return nil, failure(fmt.Sprintf("I couldn't find order %s.", orderID))
		}
		return order, models.AgentResult{}
	}
	orders := a.orders.ListOrders(userID)
	if len(orders) == 0 {
		return nil, models.AgentResult{
			Success: false,
			Message: "You have no orders yet.",
			Data:    map[string]any{},
			SuggestedActions: []models.SuggestedAction{
				{Label: "Search products", Action: "search:running shoes"},
			},
		}
	}
	return orders[0], models.AgentResult{}
}

func addressFromParams(value any) (models.Address, bool) {
	fields, ok := value.(map[string]any)
	if !ok {
		return models.Address{}, false
	}
	address := models.Address{
		Name:       paramString(fields, "name"),
		Line1:      paramString(fields, "line1"),
		Line2:      paramString(fields, "line2"),
		City:       paramString(fields, "city"),
		State:      paramString(fields, "state"),
		PostalCode: paramString(fields, "postalCode"),
		Country:    paramString(fields, "country"),
	}
	if address.Name == "" {
		address.Name = "Customer"
	}
	if address.Line1 == "" || address.City == "" || address.State == "" || address.PostalCode == "" || address.Country == "" {
		return models.Address{}, false
	}
	return address, true
}
