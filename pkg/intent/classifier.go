// Package intent turns free-form shopper utterances into a typed
// {intent, confidence, entities} verdict. Deterministic rules run first;
// an optional LLM prediction overrides the rule verdict only when it is
// both confident and more confident than the rules.
package intent

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/conciergelabs/concierge/pkg/models"
)

// Predictor is the optional LLM-backed intent classifier. A nil second
// return means "no prediction"; the caller falls back to the rules.
type Predictor interface {
	ClassifyIntent(ctx context.Context, message string, recent []models.InteractionRecord) (*models.IntentResult, bool)
}

// Classifier is the rule-first intent classifier.
type Classifier struct {
	predictor Predictor
}

// NewClassifier creates a classifier. predictor may be nil.
func NewClassifier(predictor Predictor) *Classifier {
	return &Classifier{predictor: predictor}
}

// Classify runs the rules and, when a predictor is configured, lets a
// sufficiently confident LLM verdict win.
func (c *Classifier) Classify(ctx context.Context, message string, recent []models.InteractionRecord) models.IntentResult {
	ruleResult := c.classifyRules(message, recent)
	if c.predictor == nil {
		return ruleResult
	}
	prediction, ok := c.predictor.ClassifyIntent(ctx, message, recent)
	if !ok || prediction == nil {
		return ruleResult
	}
	threshold := 0.7
	if ruleResult.Confidence > threshold {
		threshold = ruleResult.Confidence
	}
	if prediction.Confidence >= threshold {
		return *prediction
	}
	return ruleResult
}

var (
	reSpaces        = regexp.MustCompile(`[_\s]+`)
	reOrderID       = regexp.MustCompile(`(order[_\-]?\d+|ord[_\-]?\d+)`)
	reTicketID      = regexp.MustCompile(`(ticket[_\-]?(?:item[_\-]?)?\d+)`)
	reFirstInt      = regexp.MustCompile(`\b(\d+)\b`)
	rePriceBelow    = regexp.MustCompile(`(under|below)\s*\$?(\d+)`)
	rePriceAbove    = regexp.MustCompile(`(over|above)\s*\$?(\d+)`)
	reBrandExplicit = regexp.MustCompile(`(?i)(?:brand|from)\s*(?:is|=|:)?\s*([a-zA-Z0-9&\-\s]{2,80})`)
	reProductID     = regexp.MustCompile(`(prod[_\-]?\d+)`)
	reVariantID     = regexp.MustCompile(`(var[_\-]?\d+)`)
	reItemID        = regexp.MustCompile(`(item[_\-]?\d+)`)
	reDiscountCode  = regexp.MustCompile(`(?i)(?:code|coupon|promo)\s*(?:is|=|:)?\s*([a-zA-Z0-9_-]{4,20})`)
	reCodeCandidate = regexp.MustCompile(`\b([A-Za-z0-9]{4,20})\b`)
	reComboStrip    = regexp.MustCompile(`(?i)\b(and\s+)?(add|put)\b.*\bcart\b`)
	reWhitespace    = regexp.MustCompile(`\s+`)
	reViewCart      = regexp.MustCompile(`\b(view|show|open|see|display)\s+(my\s+)?cart\b`)
	reMultiAddHead  = regexp.MustCompile(`(?i)^.*?\badd\b`)
	reMultiAddTail  = regexp.MustCompile(`(?i)\bto\b\s+\b(my\s+)?cart\b.*$`)
	reMultiAddSplit = regexp.MustCompile(`\s*(?:,|\band\b)\s*`)

	reAddVerb       = regexp.MustCompile(`(?i)\badd\b`)
	reToCart        = regexp.MustCompile(`(?i)\bto\b\s+\b(my\s+)?cart\b`)
	reAnyEntityID   = regexp.MustCompile(`(?i)\b(prod[_\-]?\d+|var[_\-]?\d+|item[_\-]?\d+)\b`)
	reAnyInt        = regexp.MustCompile(`\b\d+\b`)
	reAddFiller     = regexp.MustCompile(`(?i)\b(please|the|a|an|item|items|quantity|qty|of|for|me|my|cart|with|color)\b`)
	reCartItemVerbs = regexp.MustCompile(`(?i)\b(remove|delete|drop|update|change|set|increase|decrease|reduce|quantity|qty|from|in|cart|my|the)\b`)
	rePunct         = regexp.MustCompile(`[,:;]`)
	reMultiAddNoise = regexp.MustCompile(`\b(of|a|an|the|please|to|my|cart)\b`)

	rePrefSize     = regexp.MustCompile(`\b(?:size\s*(?:is|=)?|wear size)\s*(xxs|xs|s|m|l|xl|xxl|\d{1,2})\b`)
	rePrefMax      = regexp.MustCompile(`(?:under|below|max(?:imum)?)\s*\$?(\d+)`)
	rePrefMin      = regexp.MustCompile(`(?:over|above|min(?:imum)?)\s*\$?(\d+)`)
	rePrefBrand    = regexp.MustCompile(`(?:brand|brands?)\s*(?:is|are|=|:)?\s*([a-z0-9,\s&-]{2,120})`)
	reBrandSplit   = regexp.MustCompile(`,|and`)
	reAddressField = map[string]*regexp.Regexp{
		"name":       regexp.MustCompile(`(?i)(?:name)\s*[:=]\s*([^,;]+)`),
		"line1":      regexp.MustCompile(`(?i)(?:line1|address|street)\s*[:=]\s*([^,;]+)`),
		"line2":      regexp.MustCompile(`(?i)(?:line2|apt|suite)\s*[:=]\s*([^,;]+)`),
		"city":       regexp.MustCompile(`(?i)(?:city)\s*[:=]\s*([^,;]+)`),
		"state":      regexp.MustCompile(`(?i)(?:state)\s*[:=]\s*([^,;]+)`),
		"postalCode": regexp.MustCompile(`(?i)(?:postal\s*code|postalcode|zip)\s*[:=]\s*([^,;]+)`),
		"country":    regexp.MustCompile(`(?i)(?:country)\s*[:=]\s*([^,;]+)`),
	}
)

var colorNames = []string{"black", "blue", "white", "green", "red", "gray", "charcoal", "navy"}

var knownBrands = []string{"strideforge", "peakroute", "aerothread", "carryworks"}

func (c *Classifier) classifyRules(message string, recent []models.InteractionRecord) models.IntentResult {
	text := strings.ToLower(strings.TrimSpace(message))
	phraseText := strings.TrimSpace(reSpaces.ReplaceAllString(text, " "))
	entities := map[string]any{}

	if text == "" {
		return models.IntentResult{Name: models.IntentGeneralQuestion, Confidence: 0.2, Entities: map[string]any{}}
	}

	if strings.Contains(text, "cart") && containsOrderStatusPhrase(text) {
		merge(entities, extractOrderID(text))
		return models.IntentResult{Name: models.IntentMultiStatus, Confidence: 0.9, Entities: entities}
	}

	// Memory intents.
	if isShowMemoryRequest(text) {
		return models.IntentResult{Name: models.IntentShowMemory, Confidence: 0.93, Entities: map[string]any{}}
	}
	if isClearMemoryRequest(text) {
		return models.IntentResult{Name: models.IntentClearMemory, Confidence: 0.92, Entities: map[string]any{}}
	}
	if forget := extractForgetPreference(message); len(forget) > 0 {
		return models.IntentResult{Name: models.IntentForgetPreference, Confidence: 0.9, Entities: forget}
	}
	if updates := extractPreferenceUpdates(message); len(updates) > 0 && isPreferenceStatement(text) {
		return models.IntentResult{Name: models.IntentSavePreference, Confidence: 0.88, Entities: map[string]any{"updates": updates}}
	}

	// Order intents.
	if strings.Contains(text, "order") && strings.Contains(text, "address") && containsAny(text, "change", "update", "delivery") {
		merge(entities, extractOrderID(text))
		merge(entities, extractShippingAddress(message))
		return models.IntentResult{Name: models.IntentChangeOrderAddress, Confidence: 0.88, Entities: entities}
	}
	if strings.Contains(text, "cancel") && strings.Contains(text, "order") {
		merge(entities, extractOrderID(text))
		return models.IntentResult{Name: models.IntentCancelOrder, Confidence: 0.91, Entities: entities}
	}
	if strings.Contains(text, "refund") && strings.Contains(text, "order") {
		merge(entities, extractOrderID(text))
		return models.IntentResult{Name: models.IntentRequestRefund, Confidence: 0.9, Entities: entities}
	}
	if containsOrderStatusPhrase(text) {
		merge(entities, extractOrderID(text))
		return models.IntentResult{Name: models.IntentOrderStatus, Confidence: 0.9, Entities: entities}
	}
	if containsAny(text, "checkout", "place order", "buy now") {
		return models.IntentResult{Name: models.IntentCheckout, Confidence: 0.95, Entities: map[string]any{}}
	}

	// Support intents.
	if isSupportStatusRequest(text) {
		merge(entities, extractTicketID(text))
		return models.IntentResult{Name: models.IntentSupportStatus, Confidence: 0.9, Entities: entities}
	}
	if isSupportCloseRequest(text) {
		merge(entities, extractTicketID(text))
		return models.IntentResult{Name: models.IntentSupportClose, Confidence: 0.9, Entities: entities}
	}
	if isSupportEscalationRequest(text) {
		merge(entities, extractTicketID(text))
		entities["query"] = strings.TrimSpace(message)
		return models.IntentResult{Name: models.IntentSupportEscalation, Confidence: 0.88, Entities: entities}
	}

	// Combo: search signal plus an add-to-cart verb.
	if strings.Contains(text, "add") && strings.Contains(text, "cart") &&
		containsAny(text, "find", "search", "show me", "recommend", "looking for", "under", "below", "over", "above") {
		merge(entities, extractQuantity(text))
		merge(entities, extractProductOrVariantID(text))
		merge(entities, extractPriceRange(text))
		merge(entities, extractColor(text))
		merge(entities, extractBrand(message))
		entities["query"] = extractSearchQueryForCombo(message)
		return models.IntentResult{Name: models.IntentSearchAndAdd, Confidence: 0.93, Entities: entities}
	}

	// Cart intents.
	if isClearCartRequest(text) {
		return models.IntentResult{Name: models.IntentClearCart, Confidence: 0.94, Entities: map[string]any{}}
	}
	if isAdjustCartQuantityRequest(text) {
		merge(entities, extractProductOrItemID(text))
		merge(entities, extractDelta(text))
		if query := extractCartItemQuery(message); query != "" {
			entities["query"] = query
		}
		return models.IntentResult{Name: models.IntentAdjustCartQuantity, Confidence: 0.89, Entities: entities}
	}
	if multiItems := extractMultiAddItems(message); len(multiItems) >= 2 {
		return models.IntentResult{Name: models.IntentAddMultipleToCart, Confidence: 0.9, Entities: map[string]any{"items": multiItems}}
	}
	if containsAny(text, "discount", "coupon", "promo") && containsAny(text, "apply", "use", "code") {
		merge(entities, extractDiscountCode(message))
		return models.IntentResult{Name: models.IntentApplyDiscount, Confidence: 0.9, Entities: entities}
	}
	if strings.Contains(text, "remove") && strings.Contains(text, "cart") {
		merge(entities, extractQuantity(text))
		merge(entities, extractProductOrItemID(text))
		if query := extractCartItemQuery(message); query != "" {
			entities["query"] = query
		}
		return models.IntentResult{Name: models.IntentRemoveFromCart, Confidence: 0.88, Entities: entities}
	}
	if containsAny(text, "update cart", "change quantity", "set quantity") {
		merge(entities, extractQuantity(text))
		merge(entities, extractProductOrItemID(text))
		if query := extractCartItemQuery(message); query != "" {
			entities["query"] = query
		}
		return models.IntentResult{Name: models.IntentUpdateCart, Confidence: 0.86, Entities: entities}
	}
	if strings.Contains(text, "add") && strings.Contains(text, "cart") {
		merge(entities, extractQuantity(text))
		merge(entities, extractProductOrVariantID(text))
		merge(entities, extractColor(text))
		merge(entities, extractBrand(message))
		if query := extractAddQuery(message); query != "" {
			entities["query"] = query
		}
		return models.IntentResult{Name: models.IntentAddToCart, Confidence: 0.92, Entities: entities}
	}
	if isViewCartRequest(phraseText) {
		return models.IntentResult{Name: models.IntentViewCart, Confidence: 0.9, Entities: map[string]any{}}
	}

	// Product intents.
	if containsAny(text, "find", "search", "show me", "recommend", "looking for") {
		merge(entities, extractPriceRange(text))
		merge(entities, extractColor(text))
		merge(entities, extractBrand(message))
		entities["query"] = strings.TrimSpace(message)
		return models.IntentResult{Name: models.IntentProductSearch, Confidence: 0.84, Entities: entities}
	}
	if isPriceRefinementRequest(phraseText, recent) {
		merge(entities, extractPriceRange(text))
		merge(entities, extractColor(text))
		merge(entities, extractBrand(message))
		entities["query"] = strings.TrimSpace(message)
		return models.IntentResult{Name: models.IntentProductSearch, Confidence: 0.8, Entities: entities}
	}
	if looksLikeProductQuery(phraseText) {
		merge(entities, extractPriceRange(text))
		merge(entities, extractColor(text))
		merge(entities, extractBrand(message))
		entities["query"] = strings.TrimSpace(message)
		return models.IntentResult{Name: models.IntentProductSearch, Confidence: 0.78, Entities: entities}
	}

	return models.IntentResult{Name: models.IntentGeneralQuestion, Confidence: 0.6, Entities: map[string]any{"query": strings.TrimSpace(message)}}
}

func merge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}

func containsAny(text string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

func extractOrderID(text string) map[string]any {
	if match := reOrderID.FindString(text); match != "" {
		return map[string]any{"orderId": strings.ReplaceAll(match, "-", "_")}
	}
	return nil
}

func extractTicketID(text string) map[string]any {
	if match := reTicketID.FindString(text); match != "" {
		return map[string]any{"ticketId": strings.ReplaceAll(match, "-", "_")}
	}
	return nil
}

func extractQuantity(text string) map[string]any {
	match := reFirstInt.FindStringSubmatch(text)
	if match == nil {
		return nil
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > 50 {
		n = 50
	}
	return map[string]any{"quantity": n}
}

func extractColor(text string) map[string]any {
	for _, color := range colorNames {
		if strings.Contains(text, color) {
			return map[string]any{"color": color}
		}
	}
	return nil
}

func extractPriceRange(text string) map[string]any {
	entities := map[string]any{}
	if match := rePriceBelow.FindStringSubmatch(text); match != nil {
		if v, err := strconv.ParseFloat(match[2], 64); err == nil {
			entities["maxPrice"] = v
		}
	}
	if match := rePriceAbove.FindStringSubmatch(text); match != nil {
		if v, err := strconv.ParseFloat(match[2], 64); err == nil {
			entities["minPrice"] = v
		}
	}
	if len(entities) == 0 {
		return nil
	}
	return entities
}

func extractBrand(message string) map[string]any {
	if match := reBrandExplicit.FindStringSubmatch(message); match != nil {
		raw := strings.Trim(match[1], " .,;")
		if raw != "" {
			return map[string]any{"brand": raw}
		}
	}
	lowered := strings.ToLower(message)
	for _, token := range knownBrands {
		if strings.Contains(lowered, token) {
			return map[string]any{"brand": token}
		}
	}
	return nil
}

func extractProductOrVariantID(text string) map[string]any {
	entities := map[string]any{}
	if match := reProductID.FindString(text); match != "" {
		entities["productId"] = strings.ReplaceAll(match, "-", "_")
	}
	if match := reVariantID.FindString(text); match != "" {
		entities["variantId"] = strings.ReplaceAll(match, "-", "_")
	}
	if len(entities) == 0 {
		return nil
	}
	return entities
}

func extractProductOrItemID(text string) map[string]any {
	if match := reItemID.FindString(text); match != "" {
		return map[string]any{"itemId": strings.ReplaceAll(match, "-", "_")}
	}
	return extractProductOrVariantID(text)
}

func extractDelta(text string) map[string]any {
	if strings.Contains(text, "set quantity") {
		return nil
	}
	amount := 1
	if match := reFirstInt.FindStringSubmatch(text); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil && n > 1 {
			amount = n
		}
	}
	if containsAny(text, "decrease", "reduce", "minus", "less") {
		return map[string]any{"delta": -amount}
	}
	if containsAny(text, "increase", "plus", "more", "another") {
		return map[string]any{"delta": amount}
	}
	return nil
}

func containsOrderStatusPhrase(text string) bool {
	if !strings.Contains(text, "order") {
		return false
	}
	return containsAny(text,
		"order status",
		"where is my order",
		"track order",
		"hasn't arrived",
		"hasnt arrived",
		"not arrived",
		"order is late",
		"order late",
		"delayed order",
		"order delayed",
	)
}

func extractDiscountCode(message string) map[string]any {
	if match := reDiscountCode.FindStringSubmatch(message); match != nil {
		return map[string]any{"code": strings.ToUpper(match[1])}
	}
	stopWords := map[string]bool{
		"APPLY": true, "DISCOUNT": true, "COUPON": true, "PROMO": true,
		"CODE": true, "PLEASE": true, "THIS": true, "THAT": true,
	}
	for _, match := range reCodeCandidate.FindAllStringSubmatch(message, -1) {
		token := strings.ToUpper(match[1])
		if stopWords[token] {
			continue
		}
		if strings.ContainsAny(token, "0123456789") {
			return map[string]any{"code": token}
		}
	}
	return nil
}

func extractSearchQueryForCombo(message string) string {
	cleaned := reComboStrip.ReplaceAllString(message, " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(cleaned, " "))
}

func extractShippingAddress(message string) map[string]any {
	fields := map[string]string{}
	for field, pattern := range reAddressField {
		if match := pattern.FindStringSubmatch(message); match != nil {
			fields[field] = strings.TrimSpace(match[1])
		}
	}
	for _, required := range []string{"line1", "city", "state", "postalCode", "country"} {
		if fields[required] == "" {
			return nil
		}
	}
	shipping := map[string]any{
		"name":       "Customer",
		"line1":      fields["line1"],
		"city":       fields["city"],
		"state":      fields["state"],
		"postalCode": fields["postalCode"],
		"country":    fields["country"],
	}
	if fields["name"] != "" {
		shipping["name"] = fields["name"]
	}
	if fields["line2"] != "" {
		shipping["line2"] = fields["line2"]
	}
	return map[string]any{"shippingAddress": shipping}
}

func extractAddQuery(message string) string {
	cleaned := reAddVerb.ReplaceAllString(message, " ")
	cleaned = reToCart.ReplaceAllString(cleaned, " ")
	cleaned = reAnyEntityID.ReplaceAllString(cleaned, " ")
	cleaned = reAnyInt.ReplaceAllString(cleaned, " ")
	cleaned = reAddFiller.ReplaceAllString(cleaned, " ")
	cleaned = rePunct.ReplaceAllString(cleaned, " ")
	cleaned = strings.TrimSpace(reWhitespace.ReplaceAllString(cleaned, " "))
	switch strings.ToLower(cleaned) {
	case "", "to", "cart":
		return ""
	}
	return cleaned
}

func extractCartItemQuery(message string) string {
	cleaned := reCartItemVerbs.ReplaceAllString(message, " ")
	cleaned = reAnyEntityID.ReplaceAllString(cleaned, " ")
	cleaned = reAnyInt.ReplaceAllString(cleaned, " ")
	cleaned = rePunct.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(reWhitespace.ReplaceAllString(cleaned, " "))
}

func isClearCartRequest(text string) bool {
	return containsAny(text,
		"clear cart",
		"empty cart",
		"remove all from cart",
		"delete all from cart",
		"clear my cart",
		"empty my cart",
	)
}

func isAdjustCartQuantityRequest(text string) bool {
	if strings.Contains(text, "set quantity") {
		return false
	}
	if !strings.Contains(text, "cart") && !strings.Contains(text, "quantity") && !strings.Contains(text, "qty") {
		return false
	}
	return containsAny(text, "increase", "decrease", "reduce", "minus", "plus", "one more", "one less", "another")
}

func isSupportEscalationRequest(text string) bool {
	if containsAny(text,
		"human agent",
		"support agent",
		"talk to support",
		"talk to a person",
		"connect me to support",
		"open a ticket",
		"escalate",
		"need help with issue",
	) {
		return true
	}
	return strings.Contains(text, "help") && strings.Contains(text, "order") && strings.Contains(text, "agent")
}

func isSupportStatusRequest(text string) bool {
	return containsAny(text,
		"ticket status",
		"support status",
		"status of my ticket",
		"my support ticket",
		"any update on ticket",
	)
}

func isSupportCloseRequest(text string) bool {
	return containsAny(text, "close ticket", "resolve ticket", "mark ticket resolved")
}

// MultiAddItem is one chunk of an "add X, Y and Z to cart" utterance.
type MultiAddItem struct {
	Query    string `json:"query"`
	Quantity int    `json:"quantity"`
	Color    string `json:"color,omitempty"`
}

func extractMultiAddItems(message string) []MultiAddItem {
	lower := strings.ToLower(message)
	if !strings.Contains(lower, "add") || !strings.Contains(lower, "cart") {
		return nil
	}
	body := strings.TrimSpace(reMultiAddHead.ReplaceAllString(lower, ""))
	body = strings.TrimSpace(reMultiAddTail.ReplaceAllString(body, ""))
	body = strings.Trim(reWhitespace.ReplaceAllString(body, " "), " .,;")
	if body == "" {
		return nil
	}
	var items []MultiAddItem
	for _, part := range reMultiAddSplit.Split(body, -1) {
		chunk := strings.Trim(part, " .,;")
		if chunk == "" {
			continue
		}
		quantity := 1
		if match := reFirstInt.FindStringSubmatch(chunk); match != nil {
			if n, err := strconv.Atoi(match[1]); err == nil {
				quantity = n
				if quantity < 1 {
					quantity = 1
				}
				if quantity > 50 {
					quantity = 50
				}
			}
		}
		color := ""
		if c := extractColor(chunk); c != nil {
			color = c["color"].(string)
		}
		query := reAnyInt.ReplaceAllString(chunk, " ")
		query = reMultiAddNoise.ReplaceAllString(query, " ")
		query = strings.TrimSpace(reWhitespace.ReplaceAllString(query, " "))
		if query == "" {
			continue
		}
		items = append(items, MultiAddItem{Query: query, Quantity: quantity, Color: color})
	}
	return items
}

func isShowMemoryRequest(text string) bool {
	return containsAny(text,
		"what do you remember",
		"show my preferences",
		"show memory",
		"what are my preferences",
		"what do you know about me",
		"remembered about me",
	)
}

func isClearMemoryRequest(text string) bool {
	return containsAny(text,
		"clear memory",
		"clear my memory",
		"forget everything",
		"reset my preferences",
		"clear preferences",
	)
}

func isPreferenceStatement(text string) bool {
	if containsAny(text, "remember", "note that", "save preference") {
		return true
	}
	if containsAny(text, "my size is", "i wear size", "budget", "price range") {
		return true
	}
	if strings.Contains(text, "i prefer") || strings.Contains(text, "i like") {
		return !containsAny(text, "show me", "find", "search", "add to cart", "checkout", "order status")
	}
	return false
}

func extractPreferenceUpdates(message string) map[string]any {
	text := strings.ToLower(strings.TrimSpace(message))
	updates := map[string]any{}

	if match := rePrefSize.FindStringSubmatch(text); match != nil {
		updates["size"] = strings.ToUpper(match[1])
	}

	maxMatch := rePrefMax.FindStringSubmatch(text)
	minMatch := rePrefMin.FindStringSubmatch(text)
	if maxMatch != nil || minMatch != nil {
		priceRange := models.PriceRange{}
		if minMatch != nil {
			priceRange.Min, _ = strconv.ParseFloat(minMatch[1], 64)
		}
		if maxMatch != nil {
			priceRange.Max, _ = strconv.ParseFloat(maxMatch[1], 64)
		}
		updates["priceRange"] = priceRange
	}

	var categories []string
	for _, category := range []string{"shoes", "clothing", "accessories"} {
		if strings.Contains(text, category) {
			categories = append(categories, category)
		}
	}
	if strings.Contains(text, "hoodie") || strings.Contains(text, "jogger") {
		categories = append(categories, "clothing")
	}
	if strings.Contains(text, "runner") || strings.Contains(text, "sneaker") {
		categories = append(categories, "shoes")
	}
	if len(categories) > 0 {
		updates["categories"] = dedupeSorted(categories)
	}

	var styles []string
	for _, style := range []string{"denim", "casual", "formal", "sport", "athleisure", "vintage", "streetwear", "minimal"} {
		if strings.Contains(text, style) {
			styles = append(styles, style)
		}
	}
	if len(styles) > 0 {
		updates["stylePreferences"] = dedupeSorted(styles)
	}

	var colors []string
	for _, color := range colorNames {
		if strings.Contains(text, color) {
			colors = append(colors, color)
		}
	}
	if len(colors) > 0 {
		updates["colorPreferences"] = dedupeSorted(colors)
	}

	if match := rePrefBrand.FindStringSubmatch(text); match != nil {
		var brands []string
		for _, chunk := range reBrandSplit.Split(match[1], -1) {
			if token := strings.TrimSpace(chunk); token != "" {
				brands = append(brands, token)
			}
		}
		if len(brands) > 0 {
			updates["brandPreferences"] = brands
		}
	}

	if (strings.Contains(text, "i prefer ") || strings.Contains(text, "i like ")) && !hasAnyKey(updates, "categories", "stylePreferences", "colorPreferences", "brandPreferences") {
		idx := strings.Index(text, "i prefer ")
		cut := len("i prefer ")
		if idx < 0 {
			idx = strings.Index(text, "i like ")
			cut = len("i like ")
		}
		if idx >= 0 {
			candidate := strings.Trim(text[idx+cut:], " .,!?")
			if candidate != "" {
				updates["stylePreferences"] = []string{strings.Fields(candidate)[0]}
			}
		}
	}

	return updates
}

func extractForgetPreference(message string) map[string]any {
	text := strings.ToLower(strings.TrimSpace(message))
	if !strings.Contains(text, "forget") && !strings.Contains(text, "remove preference") {
		return nil
	}
	if strings.Contains(text, "everything") || strings.Contains(text, "all preferences") {
		return map[string]any{"key": "all"}
	}
	switch {
	case strings.Contains(text, "size"):
		return map[string]any{"key": "size"}
	case strings.Contains(text, "price") || strings.Contains(text, "budget"):
		return map[string]any{"key": "priceRange"}
	case strings.Contains(text, "category") || strings.Contains(text, "categories"):
		return map[string]any{"key": "categories"}
	case strings.Contains(text, "style"):
		return map[string]any{"key": "stylePreferences"}
	case strings.Contains(text, "color"):
		return map[string]any{"key": "colorPreferences"}
	case strings.Contains(text, "brand"):
		return map[string]any{"key": "brandPreferences"}
	}
	for _, token := range []string{"shoes", "clothing", "accessories", "denim", "black", "blue", "green", "red", "gray"} {
		if strings.Contains(text, token) {
			return map[string]any{"value": token}
		}
	}
	return nil
}

func isViewCartRequest(text string) bool {
	if text == "" {
		return false
	}
	switch text {
	case "cart", "my cart", "view cart", "show cart", "show me cart", "view my cart":
		return true
	}
	if reViewCart.MatchString(text) {
		return true
	}
	return (strings.Contains(text, "what") || strings.Contains(text, "whats") || strings.Contains(text, "what's")) &&
		strings.Contains(text, "cart")
}

// isPriceRefinementRequest treats a bare price phrase ("under 150") as a
// continuation of the previous product search.
func isPriceRefinementRequest(text string, recent []models.InteractionRecord) bool {
	if extractPriceRange(text) == nil {
		return false
	}
	if containsAny(text, "cart", "checkout", "order", "refund", "ticket", "support") {
		return false
	}
	for i := len(recent) - 1; i >= 0; i-- {
		intentName := strings.TrimSpace(recent[i].Intent)
		agent := strings.TrimSpace(recent[i].Agent)
		if intentName == models.IntentProductSearch || intentName == models.IntentSearchAndAdd || agent == models.AgentProduct {
			return true
		}
	}
	return true
}

func looksLikeProductQuery(text string) bool {
	if text == "" {
		return false
	}
	if containsAny(text, "support", "ticket", "order", "refund", "cancel", "checkout", "memory", "preference", "cart") {
		return false
	}
	return containsAny(text,
		"shoe", "shoes", "sneaker", "sneakers", "runner", "running", "trail",
		"hoodie", "jogger", "joggers", "sock", "socks", "backpack", "bag",
		"clothing", "accessories", "denim", "athleisure",
	)
}

func dedupeSorted(in []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func hasAnyKey(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}
