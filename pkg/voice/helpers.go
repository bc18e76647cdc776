package voice

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/conciergelabs/concierge/pkg/models"
)

// extractProviderCallID digs the provider's call id out of a callback or
// log payload. Providers are inconsistent about the key, so several are
// tried, including one level under "data".
func extractProviderCallID(payload map[string]any) string {
	keys := []string{"call_id", "callId", "id", "uuid"}
	for _, key := range keys {
		if value := stringField(payload, key); value != "" {
			return value
		}
	}
	if data, ok := payload["data"].(map[string]any); ok {
		for _, key := range keys {
			if value := stringField(data, key); value != "" {
				return value
			}
		}
	}
	return ""
}

// normalizeProviderStatus maps the provider's status vocabulary onto
// {ringing, in_progress, completed, failed}. Unknown statuses return ""
// and are ignored by the caller.
func normalizeProviderStatus(payload map[string]any) string {
	raw := stringField(payload, "status")
	if raw == "" {
		raw = stringField(payload, "call_status")
	}
	if raw == "" {
		if data, ok := payload["data"].(map[string]any); ok {
			raw = stringField(data, "status")
		}
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "ended", "finished", "done", "success":
		return models.CallStatusCompleted
	case "failed", "failure", "error", "busy", "no_answer", "no-answer", "declined", "cancelled", "canceled":
		return models.CallStatusFailed
	case "ringing", "queued", "initiated", "dialing":
		return models.CallStatusRinging
	case "in_progress", "in-progress", "ongoing", "answered", "active", "started":
		return models.CallStatusInProgress
	}
	return ""
}

// extractOutcome normalizes the call disposition: lowercase with
// hyphens and spaces folded to underscores.
func extractOutcome(payload map[string]any) string {
	raw := ""
	for _, key := range []string{"outcome", "disposition", "result"} {
		if raw = stringField(payload, key); raw != "" {
			break
		}
	}
	if raw == "" {
		if data, ok := payload["data"].(map[string]any); ok {
			for _, key := range []string{"outcome", "disposition", "result"} {
				if raw = stringField(data, key); raw != "" {
					break
				}
			}
		}
	}
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, "-", "_")
	normalized = strings.ReplaceAll(normalized, " ", "_")
	return normalized
}

// providerEventKey derives a stable dedupe key for one callback
// delivery. Providers that send an explicit event id keep it; otherwise
// the canonical JSON of the payload is hashed, so a redelivered payload
// maps to the same key.
func providerEventKey(payload map[string]any) string {
	for _, key := range []string{"event_id", "eventId", "delivery_id", "idempotency_key"} {
		if value := stringField(payload, key); value != "" {
			return value
		}
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:16])
}

func stringField(payload map[string]any, key string) string {
	value, ok := payload[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

// inQuietHours evaluates the quiet window against a local hour.
// start == end means quiet hours are disabled.
func inQuietHours(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// resolveLocation walks the timezone fallback chain: user's zone, then
// the tenant default, then UTC.
func resolveLocation(userTZ, defaultTZ string) *time.Location {
	for _, name := range []string{userTZ, defaultTZ} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

// nextQuietExit returns the next local instant outside the quiet
// window, converted back to UTC. The exit is built from calendar
// components so DST transitions keep it at the local wall-clock hour;
// if the instant still collides with the window boundary it is nudged
// forward a minute at a time until clear.
func nextQuietExit(now time.Time, loc *time.Location, start, end int) time.Time {
	local := now.In(loc)
	exit := time.Date(local.Year(), local.Month(), local.Day(), end, 0, 0, 0, loc)
	if !exit.After(local) {
		exit = time.Date(local.Year(), local.Month(), local.Day()+1, end, 0, 0, 0, loc)
	}
	for inQuietHours(exit.In(loc).Hour(), start, end) {
		exit = exit.Add(time.Minute)
	}
	return exit.UTC()
}
