// Package orchestrator is the single entry point for conversational
// messages: it classifies intent, builds agent context, optionally asks
// the LLM planner for a multi-step plan, dispatches to agents, and
// records the turn.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/conciergelabs/concierge/pkg/agents"
	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/intent"
	"github.com/conciergelabs/concierge/pkg/llm"
	"github.com/conciergelabs/concierge/pkg/metrics"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
)

const (
	recentWindow      = 12
	maxSuggested      = 6
	skippedAtomicMode = "SKIPPED_ATOMIC_MODE"
	writebackQueueCap = 256
	writebackDeadline = 2 * time.Second
)

// Planner produces multi-step action plans and doubles as the intent
// predictor when the classifier is allowed to consult the LLM.
type Planner interface {
	intent.Predictor
	PlanActions(ctx context.Context, message string, recent []models.InteractionRecord, inferredIntent string) (*llm.ActionPlan, bool)
	Enabled() bool
}

type memoryWrite struct {
	userID   string
	intent   string
	message  string
	response *models.AgentResponse
}

type Orchestrator struct {
	cfg             *config.Settings
	classifierLLM   *intent.Classifier
	classifierRules *intent.Classifier
	planner         Planner
	agents          map[string]agents.Agent
	sessions        *services.SessionService
	carts           *services.CartService
	memory          *services.MemoryService
	interactions    *services.InteractionService
	metrics         *metrics.Metrics
	logger          *slog.Logger

	writeback chan memoryWrite
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New wires the orchestrator. planner may be nil or disabled; the
// deterministic pipeline works without it.
func New(
	cfg *config.Settings,
	planner *llm.Client,
	agentList []agents.Agent,
	sessions *services.SessionService,
	carts *services.CartService,
	memory *services.MemoryService,
	interactions *services.InteractionService,
	m *metrics.Metrics,
) *Orchestrator {
	byName := make(map[string]agents.Agent, len(agentList))
	for _, agent := range agentList {
		byName[agent.Name()] = agent
	}
	o := &Orchestrator{
		cfg:             cfg,
		classifierRules: intent.NewClassifier(nil),
		agents:          byName,
		sessions:        sessions,
		carts:           carts,
		memory:          memory,
		interactions:    interactions,
		metrics:         m,
		logger:          slog.With("component", "orchestrator"),
		writeback:       make(chan memoryWrite, writebackQueueCap),
		done:            make(chan struct{}),
	}
	if planner != nil && planner.Enabled() {
		o.planner = planner
		o.classifierLLM = intent.NewClassifier(planner)
	} else {
		o.classifierLLM = o.classifierRules
	}
	o.wg.Add(1)
	go o.memoryWriter()
	return o
}

// Close stops the memory write-back worker after draining its queue.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
		o.wg.Wait()
	})
}

// ProcessMessage handles one conversational turn end to end and returns
// the transport payload.
func (o *Orchestrator) ProcessMessage(ctx context.Context, message, sessionID, userID, channel string) *models.AgentResponse {
	recent := o.interactions.Recent(sessionID, recentWindow)
	if len(recent) == 0 && userID != "" {
		recent = o.recentFromMemory(ctx, userID, recentWindow)
	}

	plannerEligible := o.plannerEligible(userID, sessionID)
	classifier := o.classifierRules
	if o.cfg.LLMDecisionPolicy == config.PolicyClassifierFirst && !plannerEligible {
		classifier = o.classifierLLM
	}
	intentResult := classifier.Classify(ctx, message, recent)

	actx := o.buildContext(ctx, intentResult, sessionID, userID, channel, message, recent)
	actions := ExtractActions(intentResult)
	routeAgent := RouteAgent(intentResult.Name)

	var plan *llm.ActionPlan
	plannerAttempted := false
	plannerUsed := false
	plannerDriven := false
	truncatedActionCount := 0

	if plannerEligible && (o.cfg.LLMDecisionPolicy == config.PolicyPlannerFirst || len(actions) >= 2) {
		plannerAttempted = true
		planned, ok := o.planner.PlanActions(ctx, message, recent, intentResult.Name)
		if !ok || planned == nil {
			o.metrics.LLMFailures.Inc()
			o.metrics.PlannerRuns.WithLabelValues("declined").Inc()
		} else {
			plan = planned
		}
	}

	var result models.AgentResult
	agentName := routeAgent

	if plan != nil && plan.NeedsClarification {
		plannerUsed = true
		agentName = models.AgentOrchestrator
		o.metrics.PlannerRuns.WithLabelValues("clarification").Inc()
		result = models.AgentResult{
			Success: false,
			Message: plan.ClarificationQuestion,
			Data:    map[string]any{"code": models.CodeClarificationRequired},
		}
	} else {
		if plan != nil && len(plan.Actions) > 0 {
			plannerUsed = true
			plannerDriven = true
			o.metrics.PlannerRuns.WithLabelValues("used").Inc()
			planned := plan.Actions
			if len(planned) > o.cfg.OrchestratorMaxActionsPerReq {
				truncatedActionCount = len(planned) - o.cfg.OrchestratorMaxActionsPerReq
				planned = planned[:o.cfg.OrchestratorMaxActionsPerReq]
			}
			actions = planned
			if actions[0].TargetAgent != "" {
				routeAgent = actions[0].TargetAgent
			}
		}
		result, agentName = o.executeActions(ctx, intentResult.Name, routeAgent, actions, actx, plannerDriven)
	}

	metadata := map[string]any{
		"intent":     intentResult.Name,
		"confidence": intentResult.Confidence,
		"executionPolicy": map[string]any{
			"decisionPolicy":  o.cfg.LLMDecisionPolicy,
			"plannerEligible": plannerEligible,
			"executionMode":   o.cfg.LLMPlannerExecutionMode,
		},
	}
	if plannerAttempted {
		plannerMeta := map[string]any{
			"used":               plannerUsed,
			"confidence":         0.0,
			"needsClarification": false,
			"actionCount":        0,
		}
		if plan != nil {
			plannerMeta["confidence"] = plan.Confidence
			plannerMeta["needsClarification"] = plan.NeedsClarification
			plannerMeta["actionCount"] = len(plan.Actions)
		}
		if truncatedActionCount > 0 {
			plannerMeta["truncatedActionCount"] = truncatedActionCount
		}
		metadata["planner"] = plannerMeta
	}

	response := &models.AgentResponse{
		Success:          result.Success,
		Message:          result.Message,
		Agent:            agentName,
		Data:             result.Data,
		SuggestedActions: result.SuggestedActions,
		Metadata:         metadata,
	}

	o.metrics.MessagesTotal.WithLabelValues(intentResult.Name, agentName).Inc()
	o.interactions.Record(ctx, &models.InteractionRecord{
		SessionID: sessionID,
		UserID:    userID,
		Message:   message,
		Intent:    intentResult.Name,
		Agent:     agentName,
		Response:  response,
	})
	o.sessions.UpdateConversation(ctx, sessionID, intentResult.Name, agentName, message, intentResult.Entities)
	o.enqueueMemoryWrite(userID, intentResult.Name, message, response)

	return response
}

// plannerEligible applies the global feature flags and the canary bucket
// for this (user, session) pair.
func (o *Orchestrator) plannerEligible(userID, sessionID string) bool {
	if o.planner == nil || !o.cfg.LLMPlannerEnabled || !o.cfg.PlannerFeatureEnabled {
		return false
	}
	percent := o.cfg.PlannerCanaryPercent
	if percent >= 100 {
		return true
	}
	if percent <= 0 {
		return false
	}
	return canaryBucket(userID, sessionID) < percent
}

// canaryBucket maps a (user, session) pair onto a stable bucket in
// [0,100). Guests all hash under the "anonymous" user.
func canaryBucket(userID, sessionID string) int {
	who := userID
	if who == "" {
		who = "anonymous"
	}
	sum := sha256.Sum256([]byte(who + ":" + sessionID))
	value, err := strconv.ParseUint(hex.EncodeToString(sum[:4]), 16, 64)
	if err != nil {
		return 0
	}
	return int(value % 100)
}

func (o *Orchestrator) buildContext(ctx context.Context, intentResult models.IntentResult, sessionID, userID, channel, message string, recent []models.InteractionRecord) *models.AgentContext {
	actx := &models.AgentContext{
		SessionID: sessionID,
		UserID:    userID,
		Channel:   channel,
		Message:   message,
		Intent:    intentResult,
		Session:   o.sessions.GetOrCreate(ctx, sessionID, userID, channel),
		Cart:      o.carts.GetCart(ctx, userID, sessionID),
		Recent:    recent,
	}
	if userID != "" {
		actx.Memory = o.memory.Snapshot(ctx, userID)
	}
	return actx
}

// recentFromMemory reconstructs a recent window from the user's memory
// history when the session itself has no interactions yet.
func (o *Orchestrator) recentFromMemory(ctx context.Context, userID string, limit int) []models.InteractionRecord {
	history := o.memory.History(ctx, userID, limit)
	recovered := make([]models.InteractionRecord, 0, len(history))
	for _, entry := range history {
		query := strings.TrimSpace(entry.Summary.Query)
		responseText := strings.TrimSpace(entry.Summary.Response)
		if query == "" && responseText == "" {
			continue
		}
		recovered = append(recovered, models.InteractionRecord{
			ID:        fmt.Sprintf("memory_%d", len(recovered)+1),
			SessionID: "memory",
			UserID:    userID,
			Message:   query,
			Intent:    entry.Type,
			Agent:     models.AgentMemory,
			Response:  &models.AgentResponse{Message: responseText, Agent: models.AgentMemory},
			Timestamp: entry.Timestamp,
		})
	}
	if len(recovered) > limit {
		recovered = recovered[len(recovered)-limit:]
	}
	return recovered
}

func (o *Orchestrator) executeActions(ctx context.Context, intentName, routeAgent string, actions []models.AgentAction, actx *models.AgentContext, plannerDriven bool) (models.AgentResult, string) {
	if len(actions) == 1 {
		name := targetOr(actions[0], routeAgent)
		return o.execute(ctx, name, actions[0], actx), name
	}
	if intentName == models.IntentSearchAndAdd {
		return o.executeSearchAddSequence(ctx, routeAgent, actions, actx)
	}
	if plannerDriven {
		return o.executePlannedSequence(ctx, routeAgent, actions, actx)
	}
	return o.executeParallel(ctx, routeAgent, actions, actx)
}

func (o *Orchestrator) execute(ctx context.Context, agentName string, action models.AgentAction, actx *models.AgentContext) models.AgentResult {
	agent, ok := o.agents[agentName]
	if !ok {
		o.logger.Error("no agent registered for action", "agent", agentName, "action", action.Name)
		return models.AgentResult{
			Success: false,
			Message: fmt.Sprintf("I can't handle %s right now.", action.Name),
			Data:    map[string]any{},
		}
	}
	return agent.Execute(ctx, action, actx)
}

// executeSearchAddSequence runs search-then-add in order, back-filling
// the add step with the top search result when it has no explicit ids.
func (o *Orchestrator) executeSearchAddSequence(ctx context.Context, routeAgent string, actions []models.AgentAction, actx *models.AgentContext) (models.AgentResult, string) {
	combined := map[string]any{}
	var messages []string
	var suggested []models.SuggestedAction
	success := true
	var previous *models.AgentResult

	for _, action := range actions {
		if action.Name == ActionAddItem {
			params := cloneParams(action.Params)
			productID, variantID := inferSelection(previous)
			if emptyParam(params["productId"]) && productID != "" {
				params["productId"] = productID
			}
			if emptyParam(params["variantId"]) && variantID != "" {
				params["variantId"] = variantID
			}
			if params["quantity"] == nil {
				params["quantity"] = 1
			}
			action.Params = params
		}
		name := targetOr(action, routeAgent)
		result := o.execute(ctx, name, action, actx)
		previous = &result

		combined[name] = result.Data
		messages = append(messages, result.Message)
		suggested = append(suggested, result.SuggestedActions...)
		success = success && result.Success
	}

	return models.AgentResult{
		Success:          success,
		Message:          strings.Join(messages, " "),
		Data:             combined,
		SuggestedActions: capSuggested(suggested),
	}, models.AgentOrchestrator
}

// executePlannedSequence runs a planner-produced action list with
// per-step records. Atomic mode stops at the first failure and marks the
// rest skipped; partial mode runs everything and flags partialFailure.
func (o *Orchestrator) executePlannedSequence(ctx context.Context, routeAgent string, actions []models.AgentAction, actx *models.AgentContext) (models.AgentResult, string) {
	atomic := o.cfg.LLMPlannerExecutionMode == config.ExecutionModeAtomic
	combined := map[string]any{}
	steps := make([]map[string]any, 0, len(actions))
	var messages []string
	var suggested []models.SuggestedAction
	anySuccess := false
	allSuccess := true
	stopped := false

	for _, action := range actions {
		name := targetOr(action, routeAgent)
		if stopped {
			steps = append(steps, map[string]any{"action": action.Name, "agent": name, "status": skippedAtomicMode})
			continue
		}
		result := o.execute(ctx, name, action, actx)
		combined[name] = result.Data
		messages = append(messages, result.Message)
		suggested = append(suggested, result.SuggestedActions...)
		steps = append(steps, map[string]any{"action": action.Name, "agent": name, "success": result.Success})
		anySuccess = anySuccess || result.Success
		allSuccess = allSuccess && result.Success
		if atomic && !result.Success {
			stopped = true
		}
	}

	combined["steps"] = steps
	success := anySuccess
	if atomic {
		success = allSuccess
	} else if !allSuccess {
		combined["partialFailure"] = true
	}

	return models.AgentResult{
		Success:          success,
		Message:          strings.Join(messages, " "),
		Data:             combined,
		SuggestedActions: capSuggested(suggested),
	}, models.AgentOrchestrator
}

// executeParallel fans independent actions out concurrently and merges
// the results keyed by agent.
func (o *Orchestrator) executeParallel(ctx context.Context, routeAgent string, actions []models.AgentAction, actx *models.AgentContext) (models.AgentResult, string) {
	type pair struct {
		name   string
		result models.AgentResult
	}
	results := make([]pair, len(actions))

	g, gctx := errgroup.WithContext(ctx)
	for i, action := range actions {
		g.Go(func() error {
			name := targetOr(action, routeAgent)
			results[i] = pair{name: name, result: o.execute(gctx, name, action, actx)}
			return nil
		})
	}
	_ = g.Wait()

	combined := map[string]any{}
	var messages []string
	var suggested []models.SuggestedAction
	success := true
	for _, p := range results {
		combined[p.name] = p.result.Data
		messages = append(messages, p.result.Message)
		suggested = append(suggested, p.result.SuggestedActions...)
		success = success && p.result.Success
	}

	return models.AgentResult{
		Success:          success,
		Message:          strings.Join(messages, " "),
		Data:             combined,
		SuggestedActions: capSuggested(suggested),
	}, models.AgentOrchestrator
}

func (o *Orchestrator) enqueueMemoryWrite(userID, intentName, message string, response *models.AgentResponse) {
	if userID == "" {
		return
	}
	// The channel is never closed, so a send can never panic even when
	// it races Close. Late messages may enqueue after shutdown begins;
	// the writer drains what it can and drops the rest.
	select {
	case <-o.done:
	case o.writeback <- memoryWrite{userID: userID, intent: intentName, message: message, response: response}:
	default:
		o.logger.Warn("memory write-back queue full, dropping entry", "userId", userID)
	}
}

func (o *Orchestrator) memoryWriter() {
	defer o.wg.Done()
	for {
		select {
		case write := <-o.writeback:
			o.flushMemoryWrite(write)
		case <-o.done:
			for {
				select {
				case write := <-o.writeback:
					o.flushMemoryWrite(write)
				default:
					return
				}
			}
		}
	}
}

func (o *Orchestrator) flushMemoryWrite(write memoryWrite) {
	ctx, cancel := context.WithTimeout(context.Background(), writebackDeadline)
	defer cancel()
	o.memory.RecordInteraction(ctx, write.userID, write.intent, write.message, write.response)
}

// inferSelection pulls the top (product, variant) pair from a search
// result so a following add step can use it.
func inferSelection(result *models.AgentResult) (string, string) {
	if result == nil || result.Data == nil {
		return "", ""
	}
	var first *models.Product
	switch products := result.Data["products"].(type) {
	case []*models.Product:
		if len(products) > 0 {
			first = products[0]
		}
	case []models.Product:
		if len(products) > 0 {
			first = &products[0]
		}
	}
	if first == nil || len(first.Variants) == 0 {
		return "", ""
	}
	return first.ProductID, first.Variants[0].VariantID
}

func targetOr(action models.AgentAction, fallback string) string {
	if action.TargetAgent != "" {
		return action.TargetAgent
	}
	return fallback
}

func cloneParams(params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for key, value := range params {
		out[key] = value
	}
	return out
}

func emptyParam(value any) bool {
	if value == nil {
		return true
	}
	s, ok := value.(string)
	return ok && strings.TrimSpace(s) == ""
}

func capSuggested(actions []models.SuggestedAction) []models.SuggestedAction {
	if len(actions) > maxSuggested {
		return actions[:maxSuggested]
	}
	return actions
}
