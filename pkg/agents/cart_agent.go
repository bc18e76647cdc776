package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/conciergelabs/concierge/pkg/intent"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
)

// Generic single-word queries that should not be narrowed to a name match;
// "shoes" legitimately matches several products.
var genericAddQueries = map[string]bool{
	"shoe": true, "shoes": true, "running": true, "runner": true,
	"trail": true, "clothing": true, "accessories": true,
}

// addResolution is the outcome of mapping loose add-to-cart parameters
// onto one concrete (product, variant) pair.
type addResolution struct {
	productID     string
	variantID     string
	clarification string
	options       []map[string]any
}

func (r addResolution) resolved() bool {
	return r.productID != "" && r.variantID != ""
}

// CartAgent mutates the shopper's cart. Ambiguous adds come back as
// clarification results instead of guessing a variant.
type CartAgent struct {
	carts    *services.CartService
	products *services.ProductService
}

func NewCartAgent(carts *services.CartService, products *services.ProductService) *CartAgent {
	return &CartAgent{carts: carts, products: products}
}

func (a *CartAgent) Name() string { return models.AgentCart }

func (a *CartAgent) Execute(ctx context.Context, action models.AgentAction, actx *models.AgentContext) models.AgentResult {
	userID, sessionID := actx.UserID, actx.SessionID
	params := action.Params

	switch action.Name {
	case "get_cart":
		cart := a.carts.GetCart(ctx, userID, sessionID)
		return models.AgentResult{
			Success:          true,
			Message:          fmt.Sprintf("Your cart has %d item(s), total $%.2f.", cart.ItemCount, cart.Total),
			Data:             map[string]any{"cart": cart},
			SuggestedActions: cartSuggestions(cart),
		}

	case "add_item":
		resolution := a.resolveVariantForAdd(ctx, params, actx)
		if resolution.clarification != "" {
			var suggested []models.SuggestedAction
			for _, option := range headOptions(resolution.options, 3) {
				suggested = append(suggested, models.SuggestedAction{
					Label:  fmt.Sprintf("Add %s", option["name"]),
					Action: fmt.Sprintf("add_to_cart:%s:%s", option["productId"], option["variantId"]),
				})
			}
			return models.AgentResult{
				Success:          false,
				Message:          resolution.clarification,
				Data:             map[string]any{"code": models.CodeClarificationRequired, "options": resolution.options},
				SuggestedActions: suggested,
			}
		}
		if !resolution.resolved() {
			return failure("Tell me what to add, for example: add 2 running shoes to cart.")
		}

		quantity := safeQuantity(params["quantity"])
		cart, err := a.carts.AddItem(ctx, userID, sessionID, resolution.productID, resolution.variantID, quantity)
		if err != nil {
			return failure(fmt.Sprintf("I couldn't add that item: %s.", addFailureReason(err)))
		}
		return models.AgentResult{
			Success: true,
			Message: fmt.Sprintf("Added item to cart: %s x%d. New total is $%.2f.",
				a.productName(resolution.productID), quantity, cart.Total),
			Data:             map[string]any{"cart": cart},
			SuggestedActions: cartSuggestions(cart),
		}

	case "add_multiple_items":
		return a.addMultipleItems(ctx, params, actx)

	case "clear_cart":
		cart := a.carts.ClearCart(ctx, userID, sessionID)
		return models.AgentResult{
			Success:          true,
			Message:          "Cleared your cart.",
			Data:             map[string]any{"cart": cart},
			SuggestedActions: cartSuggestions(cart),
		}

	case "adjust_item_quantity":
		cart := a.carts.GetCart(ctx, userID, sessionID)
		target := findCartItem(cart, params)
		if target == nil {
			return models.AgentResult{
				Success: false,
				Message: "I couldn't identify which cart item to adjust.",
				Data:    map[string]any{"cart": cart},
			}
		}
		delta := paramInt(params, "delta", 0)
		if delta == 0 {
			delta = 1
		}
		next := target.Quantity + delta
		if next <= 0 {
			updated, err := a.carts.RemoveItem(ctx, userID, sessionID, target.ItemID)
			if err != nil {
				return failure("I couldn't adjust that item.")
			}
			return models.AgentResult{
				Success:          true,
				Message:          fmt.Sprintf("Removed %s from cart.", target.Name),
				Data:             map[string]any{"cart": updated},
				SuggestedActions: cartSuggestions(updated),
			}
		}
		updated, err := a.carts.UpdateItemQuantity(ctx, userID, sessionID, target.ItemID, next)
		if err != nil {
			return failure("I couldn't adjust that item.")
		}
		return models.AgentResult{
			Success: true,
			Message: fmt.Sprintf("Updated %s quantity from %d to %d. Total is now $%.2f.",
				target.Name, target.Quantity, next, updated.Total),
			Data:             map[string]any{"cart": updated},
			SuggestedActions: cartSuggestions(updated),
		}

	case "update_item":
		cart := a.carts.GetCart(ctx, userID, sessionID)
		target := findCartItem(cart, params)
		if target == nil {
			return models.AgentResult{
				Success: false,
				Message: "Your cart is empty. Add an item first.",
				Data:    map[string]any{"cart": cart},
			}
		}
		quantity := safeQuantity(params["quantity"])
		updated, err := a.carts.UpdateItemQuantity(ctx, userID, sessionID, target.ItemID, quantity)
		if err != nil {
			return failure("I couldn't update that item.")
		}
		return models.AgentResult{
			Success:          true,
			Message:          fmt.Sprintf("Updated %s quantity to %d. Total is now $%.2f.", target.Name, quantity, updated.Total),
			Data:             map[string]any{"cart": updated},
			SuggestedActions: cartSuggestions(updated),
		}

	case "remove_item":
		cart := a.carts.GetCart(ctx, userID, sessionID)
		target := findCartItem(cart, params)
		if target == nil {
			return models.AgentResult{
				Success: false,
				Message: "Your cart is empty.",
				Data:    map[string]any{"cart": cart},
			}
		}
		removeQuantity := paramInt(params, "quantity", 0)
		if removeQuantity > 0 && target.Quantity > removeQuantity {
			remaining := target.Quantity - removeQuantity
			updated, err := a.carts.UpdateItemQuantity(ctx, userID, sessionID, target.ItemID, remaining)
			if err != nil {
				return failure("I couldn't remove that item.")
			}
			return models.AgentResult{
				Success:          true,
				Message:          fmt.Sprintf("Removed %d of %s. Remaining quantity is %d.", removeQuantity, target.Name, remaining),
				Data:             map[string]any{"cart": updated},
				SuggestedActions: cartSuggestions(updated),
			}
		}
		updated, err := a.carts.RemoveItem(ctx, userID, sessionID, target.ItemID)
		if err != nil {
			return failure("I couldn't remove that item.")
		}
		return models.AgentResult{
			Success:          true,
			Message:          fmt.Sprintf("Removed %s from cart. Cart total is $%.2f.", target.Name, updated.Total),
			Data:             map[string]any{"cart": updated},
			SuggestedActions: cartSuggestions(updated),
		}

	case "apply_discount":
		code := strings.ToUpper(paramString(params, "code"))
		if code == "" {
			return failure("Tell me the discount code to apply, for example: apply code SAVE20.")
		}
		cart, err := a.carts.ApplyDiscount(ctx, userID, sessionID, code)
		if err != nil {
			return failure(fmt.Sprintf("Code %s doesn't look valid.", code))
		}
		return models.AgentResult{
			Success:          true,
			Message:          fmt.Sprintf("Applied %s. You saved $%.2f.", code, cart.Discount),
			Data:             map[string]any{"cart": cart},
			SuggestedActions: cartSuggestions(cart),
		}
	}

	return failure(fmt.Sprintf("Unsupported cart action: %s.", action.Name))
}

func (a *CartAgent) addMultipleItems(ctx context.Context, params map[string]any, actx *models.AgentContext) models.AgentResult {
	items := multiAddItems(params["items"])
	if len(items) == 0 {
		return failure("Tell me multiple items like: add 2 running shoes and 1 hoodie to cart.")
	}

	var added, unresolved, clarifications []string
	for _, item := range items {
		resolution := a.resolveVariantForAdd(ctx, item, actx)
		if resolution.clarification != "" {
			unresolved = append(unresolved, paramString(item, "query"))
			clarifications = append(clarifications, resolution.clarification)
			continue
		}
		if !resolution.resolved() {
			unresolved = append(unresolved, paramString(item, "query"))
			continue
		}
		quantity := safeQuantity(item["quantity"])
		if _, err := a.carts.AddItem(ctx, actx.UserID, actx.SessionID, resolution.productID, resolution.variantID, quantity); err != nil {
			unresolved = append(unresolved, paramString(item, "query"))
			continue
		}
		added = append(added, fmt.Sprintf("%s x%d", a.productName(resolution.productID), quantity))
	}

	cart := a.carts.GetCart(ctx, actx.UserID, actx.SessionID)
	if len(added) == 0 {
		message := "I couldn't match those items. Try product names like running shoes or hoodie."
		if len(clarifications) > 0 {
			message = clarifications[0]
		}
		return models.AgentResult{
			Success: false,
			Message: message,
			Data:    map[string]any{"cart": cart, "unresolved": unresolved, "clarifications": clarifications},
		}
	}

	message := fmt.Sprintf("Added %s.", strings.Join(added, ", "))
	var unresolvedClean []string
	for _, name := range unresolved {
		if name != "" {
			unresolvedClean = append(unresolvedClean, name)
		}
	}
	if len(unresolvedClean) > 0 {
		message += fmt.Sprintf(" I couldn't match: %s.", strings.Join(unresolvedClean, ", "))
	}
	message += fmt.Sprintf(" Cart total is $%.2f.", cart.Total)
	return models.AgentResult{
		Success:          true,
		Message:          message,
		Data:             map[string]any{"cart": cart, "unresolved": unresolvedClean},
		SuggestedActions: cartSuggestions(cart),
	}
}

// resolveVariantForAdd walks the resolution ladder: explicit ids, product
// with variant filters, free-text query, and finally the last products the
// shopper was shown.
func (a *CartAgent) resolveVariantForAdd(ctx context.Context, params map[string]any, actx *models.AgentContext) addResolution {
	productID := paramString(params, "productId")
	variantID := paramString(params, "variantId")
	query := paramString(params, "query")
	color := strings.ToLower(paramString(params, "color"))
	size := strings.ToLower(paramString(params, "size"))

	if productID != "" && variantID != "" {
		return addResolution{productID: productID, variantID: variantID}
	}

	if productID != "" {
		if product, err := a.products.Get(productID); err == nil {
			variants := matchingInStockVariants(product, color, size)
			if len(variants) == 1 {
				return addResolution{productID: productID, variantID: variants[0].VariantID}
			}
			if len(variants) > 1 {
				options := make([]map[string]any, 0, 3)
				for _, variant := range headVariants(variants, 3) {
					options = append(options, resolutionOption(product, variant))
				}
				return addResolution{
					clarification: fmt.Sprintf("I found multiple variants for %s. Please specify size and/or color.", product.Name),
					options:       options,
				}
			}
		}
	}

	if query != "" {
		resolution := a.resolveVariantFromQuery(params, query, color, size)
		if resolution.resolved() || resolution.clarification != "" {
			return resolution
		}
	}

	if actx != nil {
		for i := len(actx.Recent) - 1; i >= 0; i-- {
			record := actx.Recent[i]
			if record.Response == nil {
				continue
			}
			products := productsFromResult(record.Response.Data)
			if len(products) == 0 {
				continue
			}
			first := products[0]
			if len(first.Variants) > 0 {
				return addResolution{productID: first.ProductID, variantID: first.Variants[0].VariantID}
			}
		}
	}
	return addResolution{}
}

func (a *CartAgent) resolveVariantFromQuery(params map[string]any, query, color, size string) addResolution {
	filter := services.SearchFilter{Query: query, Brand: paramString(params, "brand"), Limit: 8}
	if v, ok := paramFloat(params, "minPrice"); ok {
		filter.MinPrice = v
	}
	if v, ok := paramFloat(params, "maxPrice"); ok {
		filter.MaxPrice = v
	}
	products := a.products.Search(filter)

	type candidate struct {
		product *models.Product
		variant models.ProductVariant
	}
	var candidates []candidate
	var ambiguousOptions []map[string]any
	for _, product := range products {
		variants := matchingInStockVariants(product, color, size)
		if len(variants) == 0 {
			continue
		}
		if len(variants) == 1 || (size == "" && color == "") {
			candidates = append(candidates, candidate{product: product, variant: variants[0]})
			continue
		}
		for _, variant := range headVariants(variants, 3) {
			ambiguousOptions = append(ambiguousOptions, resolutionOption(product, variant))
		}
	}

	if len(candidates) == 0 && len(ambiguousOptions) > 0 {
		options := headOptions(ambiguousOptions, 3)
		names := make([]string, len(options))
		for i, option := range options {
			names[i] = fmt.Sprint(option["name"])
		}
		return addResolution{
			clarification: fmt.Sprintf("I found multiple size/color variants for '%s': %s. Please specify size and/or color.",
				query, strings.Join(names, ", ")),
			options: options,
		}
	}
	if len(candidates) == 0 {
		return addResolution{}
	}

	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryTokens := strings.Fields(queryLower)
	var strongMatches []candidate
	for _, pair := range candidates {
		if queryLower != "" && strings.Contains(strings.ToLower(pair.product.Name), queryLower) {
			strongMatches = append(strongMatches, pair)
		}
	}

	// Generic or single-word queries stay broad so the shopper picks;
	// specific queries narrow to name matches when there are any.
	narrowed := candidates
	if !(len(candidates) > 1 && (len(queryTokens) <= 1 || genericAddQueries[queryLower])) && len(strongMatches) > 0 {
		narrowed = strongMatches
	}

	if len(narrowed) == 1 {
		return addResolution{productID: narrowed[0].product.ProductID, variantID: narrowed[0].variant.VariantID}
	}

	options := make([]map[string]any, 0, 3)
	names := make([]string, 0, 3)
	for i, pair := range narrowed {
		if i >= 3 {
			break
		}
		option := resolutionOption(pair.product, pair.variant)
		options = append(options, option)
		names = append(names, fmt.Sprint(option["name"]))
	}
	return addResolution{
		clarification: fmt.Sprintf("I found multiple matches for '%s': %s. Which one should I add?", query, strings.Join(names, ", ")),
		options:       options,
	}
}

func (a *CartAgent) productName(productID string) string {
	if product, err := a.products.Get(productID); err == nil && strings.TrimSpace(product.Name) != "" {
		return product.Name
	}
	return "item"
}

func resolutionOption(product *models.Product, variant models.ProductVariant) map[string]any {
	suffix := ""
	if variant.Size != "" || variant.Color != "" {
		size, color := variant.Size, variant.Color
		if size == "" {
			size = "n/a"
		}
		if color == "" {
			color = "n/a"
		}
		suffix = fmt.Sprintf(" (%s / %s)", size, color)
	}
	return map[string]any{
		"productId": product.ProductID,
		"variantId": variant.VariantID,
		"name":      product.Name + suffix,
		"price":     product.Price,
		"size":      variant.Size,
		"color":     variant.Color,
	}
}

func matchingInStockVariants(product *models.Product, color, size string) []models.ProductVariant {
	var matches []models.ProductVariant
	for _, variant := range product.Variants {
		if color != "" && !strings.EqualFold(variant.Color, color) {
			continue
		}
		if size != "" && !strings.EqualFold(variant.Size, size) {
			continue
		}
		if variant.InStock {
			matches = append(matches, variant)
		}
	}
	return matches
}

// findCartItem matches an item by id, product, variant, or fuzzy name
// overlap, falling back to the first item.
func findCartItem(cart *models.Cart, params map[string]any) *models.CartItem {
	if cart == nil || len(cart.Items) == 0 {
		return nil
	}
	if itemID := paramString(params, "itemId"); itemID != "" {
		for i := range cart.Items {
			if cart.Items[i].ItemID == itemID {
				return &cart.Items[i]
			}
		}
		return nil
	}
	if productID := paramString(params, "productId"); productID != "" {
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				return &cart.Items[i]
			}
		}
		return nil
	}
	if variantID := paramString(params, "variantId"); variantID != "" {
		for i := range cart.Items {
			if cart.Items[i].VariantID == variantID {
				return &cart.Items[i]
			}
		}
		return nil
	}
	if query := strings.ToLower(paramString(params, "query")); query != "" {
		queryTokens := map[string]bool{}
		for _, token := range strings.Fields(query) {
			queryTokens[token] = true
		}
		bestScore := 0
		var best *models.CartItem
		for i := range cart.Items {
			name := strings.ToLower(cart.Items[i].Name)
			score := 0
			for _, token := range strings.Fields(name) {
				if queryTokens[token] {
					score++
				}
			}
			if strings.Contains(name, query) {
				score += 2
			}
			if score > bestScore {
				bestScore = score
				best = &cart.Items[i]
			}
		}
		if best != nil {
			return best
		}
	}
	return &cart.Items[0]
}

func cartSuggestions(cart *models.Cart) []models.SuggestedAction {
	actions := []models.SuggestedAction{{Label: "Continue shopping", Action: "search:more"}}
	if cart != nil && cart.ItemCount > 0 {
		actions = append(actions, models.SuggestedAction{Label: "Checkout", Action: "checkout"})
	}
	return actions
}

func multiAddItems(value any) []map[string]any {
	switch v := value.(type) {
	case []map[string]any:
		return v
	case []intent.MultiAddItem:
		items := make([]map[string]any, 0, len(v))
		for _, item := range v {
			row := map[string]any{"query": item.Query, "quantity": item.Quantity}
			if item.Color != "" {
				row["color"] = item.Color
			}
			items = append(items, row)
		}
		return items
	case []any:
		var items []map[string]any
		for _, row := range v {
			if item, ok := row.(map[string]any); ok {
				items = append(items, item)
			}
		}
		return items
	}
	return nil
}

func addFailureReason(err error) string {
	if errors.Is(err, services.ErrConflict) {
		return "that variant is out of stock"
	}
	return "the product or variant was not found"
}

func headOptions(options []map[string]any, n int) []map[string]any {
	if len(options) <= n {
		return options
	}
	return options[:n]
}

func headVariants(variants []models.ProductVariant, n int) []models.ProductVariant {
	if len(variants) <= n {
		return variants
	}
	return variants[:n]
}
