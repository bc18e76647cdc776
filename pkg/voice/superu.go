package voice

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/conciergelabs/concierge/pkg/config"
)

const superuRequestTimeout = 12 * time.Second

// Provider is the outbound-call backend. The production implementation
// is the SuperU client; tests substitute a fake.
type Provider interface {
	Enabled() bool
	StartOutboundCall(ctx context.Context, toPhone string, metadata map[string]any) (map[string]any, error)
	FetchCallLogs(ctx context.Context, callID string, limit int) ([]map[string]any, error)
}

// SuperUClient talks to the SuperU voice API.
type SuperUClient struct {
	cfg    *config.Settings
	http   *http.Client
	logger *slog.Logger
}

func NewSuperUClient(cfg *config.Settings) *SuperUClient {
	return &SuperUClient{
		cfg:    cfg,
		http:   &http.Client{Timeout: superuRequestTimeout},
		logger: slog.With("component", "superu_client"),
	}
}

// Enabled reports whether the provider is configured for real calls.
func (c *SuperUClient) Enabled() bool {
	return c.cfg.SuperUEnabled && strings.TrimSpace(c.cfg.SuperUAPIKey) != ""
}

// StartOutboundCall asks SuperU to place one call and returns the raw
// provider response.
func (c *SuperUClient) StartOutboundCall(ctx context.Context, toPhone string, metadata map[string]any) (map[string]any, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("superu is not configured")
	}
	assistant := strings.TrimSpace(c.cfg.SuperUAssistantID)
	fromNumber := strings.TrimSpace(c.cfg.SuperUFromPhoneNumber)
	if assistant == "" {
		return nil, fmt.Errorf("superu assistant id is required")
	}
	if fromNumber == "" {
		return nil, fmt.Errorf("superu from phone number is required")
	}

	payload := map[string]any{
		"assistant_id":      assistant,
		"phone_number":      toPhone,
		"from_phone_number": fromNumber,
	}
	if len(metadata) > 0 {
		payload["metadata"] = metadata
	}
	response, err := c.request(ctx, http.MethodPost, "/api/v1/call/outbound-call", nil, payload)
	if err != nil {
		return nil, err
	}
	object, ok := response.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("superu call response is not a JSON object")
	}
	return object, nil
}

// FetchCallLogs returns recent provider log rows, newest last.
func (c *SuperUClient) FetchCallLogs(ctx context.Context, callID string, limit int) ([]map[string]any, error) {
	if !c.Enabled() {
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	params := url.Values{"limit": []string{strconv.Itoa(limit)}}
	if callID != "" {
		params.Set("call_id", callID)
	}
	payload, err := c.request(ctx, http.MethodGet, "/api/v1/call/logs", params, nil)
	if err != nil {
		return nil, err
	}
	return extractRows(payload), nil
}

func (c *SuperUClient) request(ctx context.Context, method, path string, params url.Values, body map[string]any) (any, error) {
	endpoint := strings.TrimRight(c.cfg.SuperUBaseURL, "/") + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode superu request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("build superu request: %w", err)
	}
	req.Header.Set("superU-Api-Key", c.cfg.SuperUAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("superu request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("superu request failed: status %d", resp.StatusCode)
	}
	var decoded any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("superu response is not valid JSON: %w", err)
	}
	return decoded, nil
}

// extractRows accepts the provider's several list envelope shapes.
func extractRows(payload any) []map[string]any {
	switch v := payload.(type) {
	case []any:
		rows := make([]map[string]any, 0, len(v))
		for _, row := range v {
			if object, ok := row.(map[string]any); ok {
				rows = append(rows, object)
			}
		}
		return rows
	case map[string]any:
		for _, key := range []string{"list", "data", "results", "logs", "items", "calls"} {
			if nested, ok := v[key].([]any); ok {
				rows := make([]map[string]any, 0, len(nested))
				for _, row := range nested {
					if object, ok := row.(map[string]any); ok {
						rows = append(rows, object)
					}
				}
				return rows
			}
		}
		return []map[string]any{v}
	}
	return nil
}

// VerifyWebhookSignature checks the HMAC the provider attaches to
// callbacks: HMAC_SHA256(secret, timestamp + "." + body), with the
// timestamp bounded by the configured tolerance.
func VerifyWebhookSignature(cfg *config.Settings, signature, timestamp string, body []byte, now time.Time) bool {
	secret := strings.TrimSpace(cfg.SuperUWebhookSecret)
	if secret == "" {
		// Without a configured secret the webhook is open; operators
		// enable verification by setting SUPERU_WEBHOOK_SECRET.
		return true
	}
	if strings.TrimSpace(signature) == "" || strings.TrimSpace(timestamp) == "" {
		return false
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return false
	}
	tolerance := float64(cfg.SuperUWebhookToleranceSeconds)
	if tolerance > 0 && math.Abs(now.Sub(time.Unix(ts, 0)).Seconds()) > tolerance {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strings.TrimSpace(timestamp)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	provided := strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(provided)))
}
