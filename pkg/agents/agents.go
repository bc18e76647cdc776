// Package agents holds the domain executors the orchestrator fans actions
// out to. Each agent wraps one service, executes typed actions against it,
// and answers with a user-facing message plus structured data.
package agents

import (
	"context"
	"strconv"
	"strings"

	"github.com/conciergelabs/concierge/pkg/models"
)

// Agent executes one action in the context of the current conversation.
type Agent interface {
	Name() string
	Execute(ctx context.Context, action models.AgentAction, actx *models.AgentContext) models.AgentResult
}

func paramString(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	}
	return ""
}

func paramInt(params map[string]any, key string, fallback int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func paramFloat(params map[string]any, key string) (float64, bool) {
	switch v := params[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// safeQuantity parses a quantity of any JSON-ish type and clamps it to
// [1, 50].
func safeQuantity(value any) int {
	quantity := 1
	switch v := value.(type) {
	case int:
		quantity = v
	case float64:
		quantity = int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			quantity = n
		}
	}
	if quantity < 1 {
		return 1
	}
	if quantity > 50 {
		return 50
	}
	return quantity
}

// productsFromResult pulls the product list out of a previous agent
// result, tolerating both value and pointer slices.
func productsFromResult(data map[string]any) []*models.Product {
	if data == nil {
		return nil
	}
	switch v := data["products"].(type) {
	case []*models.Product:
		return v
	case []models.Product:
		out := make([]*models.Product, len(v))
		for i := range v {
			out[i] = &v[i]
		}
		return out
	}
	return nil
}

func failure(message string) models.AgentResult {
	return models.AgentResult{Success: false, Message: message, Data: map[string]any{}}
}
