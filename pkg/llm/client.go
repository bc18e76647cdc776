// Package llm wraps the configured completion provider behind two typed
// calls: intent classification and action planning. Every response is
// parsed as strict JSON, validated against an envelope schema, and then
// filtered through per-action parameter allow-lists so a misbehaving
// model can never smuggle arbitrary operations into the orchestrator.
package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/resilience"
)

// Completer issues one completion request and returns the raw model text.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ActionPlan is a validated multi-action plan produced by the planner.
type ActionPlan struct {
	Actions               []models.AgentAction
	Confidence            float64
	NeedsClarification    bool
	ClarificationQuestion string
}

const (
	maxPlanActions      = 5
	planConfidenceFloor = 0.55

	defaultClarificationQuestion = "Could you clarify the exact item details so I can do that safely?"

	maxPromptMessageLen = 2000
	maxRecentMessages   = 6
	maxRecentSnippetLen = 200

	maxParamStringLen = 300
	maxParamListLen   = 8
	maxParamDictKeys  = 12
	maxParamKeyLen    = 80
)

// supportedIntents is the closed set of intents a prediction may carry.
// Support escalation stays rule-only so a hallucinated "urgent" never
// opens tickets on its own.
var supportedIntents = map[string]bool{
	models.IntentProductSearch:      true,
	models.IntentSearchAndAdd:       true,
	models.IntentAddToCart:          true,
	models.IntentAddMultipleToCart:  true,
	models.IntentApplyDiscount:      true,
	models.IntentUpdateCart:         true,
	models.IntentAdjustCartQuantity: true,
	models.IntentRemoveFromCart:     true,
	models.IntentClearCart:          true,
	models.IntentViewCart:           true,
	models.IntentCheckout:           true,
	models.IntentOrderStatus:        true,
	models.IntentChangeOrderAddress: true,
	models.IntentCancelOrder:        true,
	models.IntentRequestRefund:      true,
	models.IntentMultiStatus:        true,
	models.IntentShowMemory:         true,
	models.IntentSavePreference:     true,
	models.IntentForgetPreference:   true,
	models.IntentClearMemory:        true,
	models.IntentGeneralQuestion:    true,
}

var supportedTargetAgents = map[string]bool{
	models.AgentProduct:      true,
	models.AgentCart:         true,
	models.AgentOrder:        true,
	models.AgentMemory:       true,
	models.AgentSupport:      true,
	models.AgentOrchestrator: true,
}

type plannerActionSpec struct {
	target        string
	allowedParams map[string]bool
}

func paramSet(keys ...string) map[string]bool {
	set := make(map[string]bool, len(keys))
	for _, key := range keys {
		set[key] = true
	}
	return set
}

// plannerActions is the full planner action surface with the parameter
// allow-list for each action. Params outside the list are dropped, never
// rejected, so one junk key does not void an otherwise sound plan.
var plannerActions = map[string]plannerActionSpec{
	"search_products":      {target: models.AgentProduct, allowedParams: paramSet("query", "category", "brand", "minPrice", "maxPrice", "color")},
	"add_item":             {target: models.AgentCart, allowedParams: paramSet("query", "productId", "variantId", "quantity", "brand", "color", "minPrice", "maxPrice")},
	"add_multiple_items":   {target: models.AgentCart, allowedParams: paramSet("items")},
	"update_item":          {target: models.AgentCart, allowedParams: paramSet("itemId", "productId", "variantId", "query", "quantity")},
	"adjust_item_quantity": {target: models.AgentCart, allowedParams: paramSet("itemId", "productId", "variantId", "query", "delta")},
	"remove_item":          {target: models.AgentCart, allowedParams: paramSet("itemId", "productId", "variantId", "query", "quantity")},
	"clear_cart":           {target: models.AgentCart, allowedParams: paramSet()},
	"get_cart":             {target: models.AgentCart, allowedParams: paramSet()},
	"apply_discount":       {target: models.AgentCart, allowedParams: paramSet("code")},
	"checkout_summary":     {target: models.AgentOrder, allowedParams: paramSet()},
	"get_order_status":     {target: models.AgentOrder, allowedParams: paramSet("orderId")},
	"cancel_order":         {target: models.AgentOrder, allowedParams: paramSet("orderId", "reason")},
	"request_refund":       {target: models.AgentOrder, allowedParams: paramSet("orderId", "reason")},
	"change_order_address": {target: models.AgentOrder, allowedParams: paramSet("orderId", "shippingAddress")},
	"show_memory":          {target: models.AgentMemory, allowedParams: paramSet()},
	"save_preference":      {target: models.AgentMemory, allowedParams: paramSet("updates")},
	"forget_preference":    {target: models.AgentMemory, allowedParams: paramSet("key", "value")},
	"clear_memory":         {target: models.AgentMemory, allowedParams: paramSet()},
	"create_ticket":        {target: models.AgentSupport, allowedParams: paramSet("query", "priority", "ticketId")},
	"ticket_status":        {target: models.AgentSupport, allowedParams: paramSet("ticketId")},
	"close_ticket":         {target: models.AgentSupport, allowedParams: paramSet("ticketId")},
	"answer_question":      {target: models.AgentSupport, allowedParams: paramSet("query")},
}

var reEmbeddedJSON = regexp.MustCompile(`(?s)\{.*\}`)

const intentEnvelopeSchema = `{
	"type": "object",
	"required": ["intent", "confidence"],
	"properties": {
		"intent": {"type": "string"},
		"confidence": {"type": "number"},
		"entities": {"type": "object"}
	}
}`

const planEnvelopeSchema = `{
	"type": "object",
	"required": ["confidence"],
	"properties": {
		"actions": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"targetAgent": {"type": "string"},
					"params": {"type": "object"}
				}
			}
		},
		"confidence": {"type": "number"},
		"needsClarification": {"type": "boolean"},
		"clarificationQuestion": {"type": "string"}
	}
}`

var (
	intentSchema = mustCompileSchema("intent-envelope.json", intentEnvelopeSchema)
	planSchema   = mustCompileSchema("plan-envelope.json", planEnvelopeSchema)
)

func mustCompileSchema(name, source string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(source), &doc); err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

// Client fronts the configured provider. A nil completer means the LLM is
// disabled; every call then reports "no prediction" and the rule-based
// paths carry the request alone.
type Client struct {
	cfg       *config.Settings
	completer Completer
	breaker   *resilience.Breaker
	logger    *slog.Logger
}

// NewClient builds a client from settings, wiring the provider named by
// LLM_PROVIDER when it is enabled and has credentials.
func NewClient(cfg *config.Settings) *Client {
	var completer Completer
	if cfg.LLMEnabled {
		switch cfg.LLMProvider {
		case "openai":
			if cfg.OpenAIAPIKey != "" {
				completer = newOpenAICompleter(cfg)
			}
		case "anthropic":
			if cfg.AnthropicAPIKey != "" {
				completer = newAnthropicCompleter(cfg)
			}
		}
	}
	return NewClientWithCompleter(cfg, completer)
}

// NewClientWithCompleter builds a client around an explicit completer.
func NewClientWithCompleter(cfg *config.Settings, completer Completer) *Client {
	return &Client{
		cfg:       cfg,
		completer: completer,
		breaker:   resilience.NewBreaker(cfg.LLMBreakerFailureThreshold, cfg.LLMBreakerRecoveryTimeout),
		logger:    slog.With("component", "llm_client"),
	}
}

// Enabled reports whether a provider is wired and usable.
func (c *Client) Enabled() bool {
	return c != nil && c.completer != nil
}

// ClassifyIntent asks the model for an intent verdict. The boolean is
// false whenever there is no usable prediction: disabled client, open
// breaker, transport error, malformed payload, or an unsupported intent.
func (c *Client) ClassifyIntent(ctx context.Context, message string, recent []models.InteractionRecord) (*models.IntentResult, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, err := c.complete(ctx, intentClassificationPrompt, c.classificationPayload(message, recent))
	if err != nil {
		c.logger.Warn("intent classification call failed", "error", err)
		return nil, false
	}
	payload, ok := parseEnvelope(raw, intentSchema)
	if !ok {
		c.logger.Warn("intent classification returned an invalid envelope")
		return nil, false
	}

	name := strings.TrimSpace(asString(payload["intent"]))
	if !supportedIntents[name] {
		return nil, false
	}
	entities, _ := payload["entities"].(map[string]any)
	if entities == nil {
		entities = map[string]any{}
	}
	return &models.IntentResult{
		Name:       name,
		Confidence: normalizeConfidence(payload["confidence"]),
		Entities:   entities,
	}, true
}

// PlanActions asks the model for a multi-action plan. Plans below the
// confidence floor, or with no surviving actions, are discarded.
func (c *Client) PlanActions(ctx context.Context, message string, recent []models.InteractionRecord, inferredIntent string) (*ActionPlan, bool) {
	if !c.Enabled() {
		return nil, false
	}
	raw, err := c.complete(ctx, actionPlanningPrompt, c.planPayload(message, recent, inferredIntent))
	if err != nil {
		c.logger.Warn("action planning call failed", "error", err)
		return nil, false
	}
	payload, ok := parseEnvelope(raw, planSchema)
	if !ok {
		c.logger.Warn("action planner returned an invalid envelope")
		return nil, false
	}

	confidence := normalizeConfidence(payload["confidence"])
	needsClarification, _ := payload["needsClarification"].(bool)
	question := strings.TrimSpace(asString(payload["clarificationQuestion"]))

	var actions []models.AgentAction
	if rows, ok := payload["actions"].([]any); ok {
		for _, row := range rows {
			if len(actions) >= maxPlanActions {
				break
			}
			if action, ok := parsePlannedAction(row); ok {
				actions = append(actions, action)
			}
		}
	}

	if needsClarification {
		if question == "" {
			question = defaultClarificationQuestion
		}
		return &ActionPlan{Confidence: confidence, NeedsClarification: true, ClarificationQuestion: question}, true
	}
	if confidence < planConfidenceFloor || len(actions) == 0 {
		return nil, false
	}
	return &ActionPlan{Actions: actions, Confidence: confidence}, true
}

func (c *Client) complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var raw string
	err := c.breaker.Do(func() error {
		var callErr error
		raw, callErr = c.completer.Complete(ctx, systemPrompt, userPrompt)
		return callErr
	})
	return raw, err
}

func (c *Client) classificationPayload(message string, recent []models.InteractionRecord) string {
	type snippet struct {
		Message string `json:"message"`
		Intent  string `json:"intent"`
	}
	snippets := []snippet{}
	for _, row := range tail(recent, maxRecentMessages) {
		msg := strings.TrimSpace(row.Message)
		if msg == "" {
			continue
		}
		snippets = append(snippets, snippet{Message: truncate(msg, maxRecentSnippetLen), Intent: strings.TrimSpace(row.Intent)})
	}
	payload, _ := json.Marshal(map[string]any{
		"message": truncate(strings.TrimSpace(message), maxPromptMessageLen),
		"recent":  snippets,
	})
	return string(payload)
}

func (c *Client) planPayload(message string, recent []models.InteractionRecord, inferredIntent string) string {
	type snippet struct {
		Message string `json:"message"`
		Intent  string `json:"intent"`
		Agent   string `json:"agent"`
	}
	snippets := []snippet{}
	for _, row := range tail(recent, maxRecentMessages) {
		msg := strings.TrimSpace(row.Message)
		if msg == "" {
			continue
		}
		snippets = append(snippets, snippet{
			Message: truncate(msg, maxRecentSnippetLen),
			Intent:  strings.TrimSpace(row.Intent),
			Agent:   strings.TrimSpace(row.Agent),
		})
	}
	allowed := make([]string, 0, len(plannerActions))
	for name := range plannerActions {
		allowed = append(allowed, name)
	}
	sort.Strings(allowed)
	payload, _ := json.Marshal(map[string]any{
		"message":        truncate(strings.TrimSpace(message), maxPromptMessageLen),
		"inferredIntent": strings.TrimSpace(inferredIntent),
		"allowedActions": allowed,
		"recent":         snippets,
	})
	return string(payload)
}

func parsePlannedAction(row any) (models.AgentAction, bool) {
	payload, ok := row.(map[string]any)
	if !ok {
		return models.AgentAction{}, false
	}
	name := strings.TrimSpace(asString(payload["name"]))
	if name == "" {
		return models.AgentAction{}, false
	}
	spec, ok := plannerActions[name]
	if !ok {
		return models.AgentAction{}, false
	}

	target := strings.TrimSpace(asString(payload["targetAgent"]))
	if target == "" || !supportedTargetAgents[target] {
		target = spec.target
	}

	rawParams, _ := payload["params"].(map[string]any)
	params := map[string]any{}
	for key, value := range rawParams {
		normalizedKey := strings.TrimSpace(key)
		if !spec.allowedParams[normalizedKey] {
			continue
		}
		if normalized, ok := normalizePlannerValue(value); ok {
			params[normalizedKey] = normalized
		}
	}
	return models.AgentAction{Name: name, TargetAgent: target, Params: params}, true
}

// normalizePlannerValue bounds model-provided values: strings are capped,
// lists and objects are both capped and recursively cleaned, and anything
// that is not a JSON scalar/list/object is dropped.
func normalizePlannerValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case bool:
		return v, true
	case float64:
		return v, true
	case int:
		return v, true
	case string:
		return truncate(v, maxParamStringLen), true
	case []any:
		normalized := []any{}
		for _, item := range head(v, maxParamListLen) {
			if clean, ok := normalizePlannerValue(item); ok {
				normalized = append(normalized, clean)
			}
		}
		return normalized, true
	case map[string]any:
		normalized := map[string]any{}
		count := 0
		for rawKey, rawValue := range v {
			if count >= maxParamDictKeys {
				break
			}
			count++
			key := truncate(strings.TrimSpace(rawKey), maxParamKeyLen)
			if key == "" {
				continue
			}
			if clean, ok := normalizePlannerValue(rawValue); ok {
				normalized[key] = clean
			}
		}
		return normalized, true
	}
	return nil, false
}

// parseEnvelope parses the raw completion as JSON, falling back to the
// first embedded object when the model wrapped it in prose, and then
// validates it against the envelope schema.
func parseEnvelope(raw string, schema *jsonschema.Schema) (map[string]any, bool) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, false
	}
	payload, ok := decodeObject(text)
	if !ok {
		embedded := reEmbeddedJSON.FindString(text)
		if embedded == "" {
			return nil, false
		}
		if payload, ok = decodeObject(embedded); !ok {
			return nil, false
		}
	}
	if err := schema.Validate(payload); err != nil {
		return nil, false
	}
	return payload, true
}

func decodeObject(text string) (map[string]any, bool) {
	var parsed any
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, false
	}
	payload, ok := parsed.(map[string]any)
	return payload, ok
}

func normalizeConfidence(value any) float64 {
	var number float64
	switch v := value.(type) {
	case float64:
		number = v
	case int:
		number = float64(v)
	case string:
		number, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	}
	if number < 0 {
		return 0
	}
	if number > 1 {
		return 1
	}
	return number
}

func asString(value any) string {
	s, _ := value.(string)
	return s
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

func tail[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[len(in)-n:]
}

func head[T any](in []T, n int) []T {
	if len(in) <= n {
		return in
	}
	return in[:n]
}
