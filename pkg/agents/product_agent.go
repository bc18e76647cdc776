package agents

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
)

var (
	reQueryVerbs   = regexp.MustCompile(`\b(show me|find|search|looking for|i need|i want|please|recommend|suggest)\b`)
	reQueryPrice   = regexp.MustCompile(`\b(under|below|over|above)\s*\$?\d+\b`)
	reQueryVague   = regexp.MustCompile(`\b(something|anything|options)\b`)
	reQueryGeneric = regexp.MustCompile(`\b(products?|items?)\b`)
	reQuerySpace   = regexp.MustCompile(`\s+`)
)

var canonicalBrands = map[string]string{
	"strideforge": "StrideForge",
	"peakroute":   "PeakRoute",
	"aerothread":  "AeroThread",
	"carryworks":  "CarryWorks",
}

// ProductAgent answers catalog searches, biased by the shopper's saved
// preferences and accumulated affinities.
type ProductAgent struct {
	products *services.ProductService
}

func NewProductAgent(products *services.ProductService) *ProductAgent {
	return &ProductAgent{products: products}
}

func (a *ProductAgent) Name() string { return models.AgentProduct }

func (a *ProductAgent) Execute(ctx context.Context, action models.AgentAction, actx *models.AgentContext) models.AgentResult {
	if action.Name == "get_product" {
		return a.getProduct(action.Params)
	}
	return a.search(action.Params, actx)
}

func (a *ProductAgent) search(params map[string]any, actx *models.AgentContext) models.AgentResult {
	rawQuery := paramString(params, "query")
	query := normalizeQuery(rawQuery)
	if shouldBrowseWithoutQuery(rawQuery, query) {
		query = ""
	}

	category := inferCategory(query)
	brand := inferBrand(query)
	preferredCategory, categoryReason := a.preferredCategory(actx, query)
	preferredBrand, brandReason := a.preferredBrand(actx, query)
	if category == "" {
		category = preferredCategory
	}
	if brand == "" {
		brand = preferredBrand
	}

	filter := services.SearchFilter{Query: query, Category: category, Brand: brand, Limit: 8}
	if v, ok := paramFloat(params, "minPrice"); ok {
		filter.MinPrice = v
	}
	if v, ok := paramFloat(params, "maxPrice"); ok {
		filter.MaxPrice = v
	}
	products := a.products.Search(filter)

	color := strings.ToLower(paramString(params, "color"))
	if color == "" {
		color = a.preferredColor(actx)
	}
	if color != "" {
		filtered := products[:0]
		for _, product := range products {
			for _, variant := range product.Variants {
				if strings.EqualFold(variant.Color, color) {
					filtered = append(filtered, product)
					break
				}
			}
		}
		products = filtered
	}

	products = sortWithAffinity(products, actx)

	var reasons []string
	if categoryReason != "" {
		reasons = append(reasons, categoryReason)
	}
	if brandReason != "" {
		reasons = append(reasons, brandReason)
	}
	reasonSnippet := ""
	if len(reasons) > 0 {
		reasonSnippet = " Based on your saved preference for " + strings.Join(reasons, " and ") + "."
	}

	if len(products) == 0 {
		return models.AgentResult{
			Success: true,
			Message: fmt.Sprintf("I couldn't find matching products.%s Want to broaden filters?", reasonSnippet),
			Data:    map[string]any{"products": []*models.Product{}},
			SuggestedActions: []models.SuggestedAction{
				{Label: "Show all products", Action: "search:all"},
				{Label: "Set max price $150", Action: "search:under_150"},
			},
		}
	}

	top := products[0]
	suggested := []models.SuggestedAction{{Label: "Show my cart", Action: "view_cart"}}
	if len(top.Variants) > 0 {
		suggested = append([]models.SuggestedAction{{
			Label:  fmt.Sprintf("Add %s", top.Name),
			Action: fmt.Sprintf("add_to_cart:%s:%s", top.ProductID, top.Variants[0].VariantID),
		}}, suggested...)
	}
	return models.AgentResult{
		Success:          true,
		Message:          fmt.Sprintf("I found %d options. Top result: %s ($%.2f).%s", len(products), top.Name, top.Price, reasonSnippet),
		Data:             map[string]any{"products": products},
		SuggestedActions: suggested,
	}
}

func (a *ProductAgent) getProduct(params map[string]any) models.AgentResult {
	productID := paramString(params, "productId")
	product, err := a.products.Get(productID)
	if err != nil {
		return failure(fmt.Sprintf("I couldn't find product %s.", productID))
	}
	suggested := []models.SuggestedAction{}
	if len(product.Variants) > 0 {
		suggested = append(suggested, models.SuggestedAction{
			Label:  fmt.Sprintf("Add %s", product.Name),
			Action: fmt.Sprintf("add_to_cart:%s:%s", product.ProductID, product.Variants[0].VariantID),
		})
	}
	return models.AgentResult{
		Success:          true,
		Message:          fmt.Sprintf("%s costs $%.2f.", product.Name, product.Price),
		Data:             map[string]any{"product": product},
		SuggestedActions: suggested,
	}
}

func normalizeQuery(query string) string {
	lowered := strings.ToLower(query)
	lowered = reQueryVerbs.ReplaceAllString(lowered, " ")
	lowered = reQueryPrice.ReplaceAllString(lowered, " ")
	lowered = reQueryVague.ReplaceAllString(lowered, " ")
	lowered = reQueryGeneric.ReplaceAllString(lowered, " ")
	return strings.TrimSpace(reQuerySpace.ReplaceAllString(lowered, " "))
}

func shouldBrowseWithoutQuery(rawQuery, normalizedQuery string) bool {
	lower := strings.ToLower(rawQuery)
	if containsAny(lower, "recommend", "suggest", "anything", "something") {
		return true
	}
	switch normalizedQuery {
	case "", "me", "for me":
		return true
	}
	return false
}

func inferCategory(query string) string {
	lower := strings.ToLower(query)
	switch {
	case strings.Contains(lower, "shoe") || strings.Contains(lower, "runner"):
		return "shoes"
	case strings.Contains(lower, "hoodie") || strings.Contains(lower, "jogger"):
		return "clothing"
	case strings.Contains(lower, "sock") || strings.Contains(lower, "backpack"):
		return "accessories"
	}
	return ""
}

func inferBrand(query string) string {
	lower := strings.ToLower(query)
	if lower == "" {
		return ""
	}
	for token, canonical := range canonicalBrands {
		if strings.Contains(lower, token) {
			return canonical
		}
	}
	return ""
}

func (a *ProductAgent) preferredCategory(actx *models.AgentContext, query string) (string, string) {
	if actx == nil || actx.Memory == nil {
		return "", ""
	}
	prefs := actx.Memory.Preferences
	if len(prefs.Categories) > 0 {
		category := strings.ToLower(strings.TrimSpace(prefs.Categories[0]))
		if category == "" {
			return "", ""
		}
		return category, "category " + category
	}
	if query == "" {
		for _, style := range prefs.StylePreferences {
			if strings.EqualFold(strings.TrimSpace(style), "denim") {
				return "clothing", "style denim"
			}
		}
	}
	if category := topScore(actx.Memory.ProductAffinities.Categories); category != "" {
		category = strings.ToLower(category)
		return category, "your past interest in " + category
	}
	return "", ""
}

func (a *ProductAgent) preferredBrand(actx *models.AgentContext, query string) (string, string) {
	if actx == nil || actx.Memory == nil {
		return "", ""
	}
	prefs := actx.Memory.Preferences
	if query == "" && len(prefs.BrandPreferences) > 0 {
		if brand := strings.TrimSpace(prefs.BrandPreferences[0]); brand != "" {
			return brand, "brand " + brand
		}
	}
	if brand := topScore(actx.Memory.ProductAffinities.Brands); brand != "" {
		return brand, "your past interest in " + brand
	}
	return "", ""
}

func (a *ProductAgent) preferredColor(actx *models.AgentContext) string {
	if actx == nil || actx.Memory == nil {
		return ""
	}
	if colors := actx.Memory.Preferences.ColorPreferences; len(colors) > 0 {
		return strings.ToLower(strings.TrimSpace(colors[0]))
	}
	return ""
}

// topScore returns the highest-scored key, preferring the lexicographically
// smaller one on ties so results stay deterministic.
func topScore(scores map[string]float64) string {
	best := ""
	bestScore := 0.0
	for key, score := range scores {
		if score > bestScore || (score == bestScore && best != "" && key < best) {
			best = key
			bestScore = score
		}
	}
	return best
}

// sortWithAffinity ranks results by direct product score, then category
// score, then brand score, then rating. Without memory the catalog order
// is preserved.
func sortWithAffinity(products []*models.Product, actx *models.AgentContext) []*models.Product {
	if actx == nil || actx.Memory == nil {
		return products
	}
	affinities := actx.Memory.ProductAffinities
	rank := func(p *models.Product) [4]float64 {
		return [4]float64{
			affinities.Products[p.ProductID],
			affinities.Categories[strings.ToLower(strings.TrimSpace(p.Category))],
			affinities.Brands[strings.ToLower(strings.TrimSpace(p.Brand))],
			p.Rating,
		}
	}
	sort.SliceStable(products, func(i, j int) bool {
		ri, rj := rank(products[i]), rank(products[j])
		for k := 0; k < 4; k++ {
			if ri[k] != rj[k] {
				return ri[k] > rj[k]
			}
		}
		return false
	})
	return products
}

func containsAny(text string, tokens ...string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}
