package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
)

// MemoryAgent surfaces and mutates a signed-in shopper's saved profile.
type MemoryAgent struct {
	memory *services.MemoryService
}

func NewMemoryAgent(memory *services.MemoryService) *MemoryAgent {
	return &MemoryAgent{memory: memory}
}

func (a *MemoryAgent) Name() string { return models.AgentMemory }

func (a *MemoryAgent) Execute(ctx context.Context, action models.AgentAction, actx *models.AgentContext) models.AgentResult {
	if actx.UserID == "" {
		return failure("I only keep a profile for signed-in shoppers. Sign in and I'll start remembering.")
	}

	switch action.Name {
	case "show_memory":
		snapshot := a.memory.Snapshot(ctx, actx.UserID)
		return models.AgentResult{
			Success: true,
			Message: describeMemory(snapshot),
			Data: map[string]any{
				"preferences":      snapshot.Preferences,
				"interactionCount": len(snapshot.InteractionHistory),
				"affinities":       snapshot.ProductAffinities,
			},
		}

	case "save_preference":
		updates, ok := action.Params["updates"].(map[string]any)
		if !ok || len(updates) == 0 {
			return failure("Tell me a preference to save, for example: remember my size is 10.")
		}
		a.memory.UpdatePreferences(ctx, actx.UserID, updates)
		snapshot := a.memory.Snapshot(ctx, actx.UserID)
		keys := make([]string, 0, len(updates))
		for key := range updates {
			keys = append(keys, key)
		}
		return models.AgentResult{
			Success: true,
			Message: fmt.Sprintf("Saved your %s preference(s).", strings.Join(keys, ", ")),
			Data:    map[string]any{"preferences": snapshot.Preferences},
		}

	case "forget_preference":
		return a.forget(ctx, actx.UserID, action.Params)

	case "clear_memory":
		a.memory.Clear(ctx, actx.UserID)
		return models.AgentResult{
			Success: true,
			Message: "Cleared your saved preferences and history.",
			Data:    map[string]any{},
		}
	}
	return failure(fmt.Sprintf("Unsupported memory action: %s.", action.Name))
}

func (a *MemoryAgent) forget(ctx context.Context, userID string, params map[string]any) models.AgentResult {
	key := paramString(params, "key")
	if key == "all" {
		a.memory.Clear(ctx, userID)
		return models.AgentResult{
			Success: true,
			Message: "Forgot everything I had saved about you.",
			Data:    map[string]any{},
		}
	}
	if key != "" {
		if !a.memory.ForgetPreference(ctx, userID, key) {
			return failure(fmt.Sprintf("I didn't have a %s preference saved.", key))
		}
		return models.AgentResult{
			Success: true,
			Message: fmt.Sprintf("Forgot your %s preference.", key),
			Data:    map[string]any{"preferences": a.memory.Snapshot(ctx, userID).Preferences},
		}
	}

	value := strings.ToLower(paramString(params, "value"))
	if value == "" {
		return failure("Tell me which preference to forget, for example: forget my size.")
	}
	snapshot := a.memory.Snapshot(ctx, userID)
	lists := map[string][]string{
		"categories":       snapshot.Preferences.Categories,
		"stylePreferences": snapshot.Preferences.StylePreferences,
		"colorPreferences": snapshot.Preferences.ColorPreferences,
		"brandPreferences": snapshot.Preferences.BrandPreferences,
	}
	for listKey, entries := range lists {
		kept := entries[:0:0]
		found := false
		for _, entry := range entries {
			if strings.EqualFold(strings.TrimSpace(entry), value) {
				found = true
				continue
			}
			kept = append(kept, entry)
		}
		if found {
			a.memory.UpdatePreferences(ctx, userID, map[string]any{listKey: kept})
			return models.AgentResult{
				Success: true,
				Message: fmt.Sprintf("Forgot %s from your %s.", value, listKey),
				Data:    map[string]any{"preferences": a.memory.Snapshot(ctx, userID).Preferences},
			}
		}
	}
	return failure(fmt.Sprintf("I didn't have %s saved anywhere.", value))
}

func describeMemory(snapshot *models.MemorySnapshot) string {
	prefs := snapshot.Preferences
	var parts []string
	if prefs.Size != "" {
		parts = append(parts, fmt.Sprintf("size %s", prefs.Size))
	}
	if len(prefs.BrandPreferences) > 0 {
		parts = append(parts, "brands "+strings.Join(prefs.BrandPreferences, ", "))
	}
	if len(prefs.Categories) > 0 {
		parts = append(parts, "categories "+strings.Join(prefs.Categories, ", "))
	}
	if len(prefs.ColorPreferences) > 0 {
		parts = append(parts, "colors "+strings.Join(prefs.ColorPreferences, ", "))
	}
	if prefs.PriceRange != nil {
		parts = append(parts, fmt.Sprintf("budget $%.0f-$%.0f", prefs.PriceRange.Min, prefs.PriceRange.Max))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("I don't have saved preferences yet, but I remember %d past interaction(s).",
			len(snapshot.InteractionHistory))
	}
	return fmt.Sprintf("Here's what I remember: %s. Plus %d past interaction(s).",
		strings.Join(parts, "; "), len(snapshot.InteractionHistory))
}
