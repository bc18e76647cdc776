package voice

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/metrics"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
	"github.com/conciergelabs/concierge/pkg/store"
)

const providerEventRingSize = 200

// Service runs the abandoned-cart voice recovery loop: it scans for
// stale carts, schedules and dispatches outbound calls through the
// provider, ingests provider callbacks, and raises operational alerts.
type Service struct {
	cfg           *config.Settings
	store         *store.Store
	provider      Provider
	support       *services.SupportService
	notifications *services.NotificationService
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(cfg *config.Settings, st *store.Store, provider Provider, support *services.SupportService, notifications *services.NotificationService, m *metrics.Metrics) *Service {
	return &Service{
		cfg:           cfg,
		store:         st,
		provider:      provider,
		support:       support,
		notifications: notifications,
		metrics:       m,
		logger:        slog.With("component", "voice_recovery"),
		now:           time.Now,
	}
}

// WorkReport summarizes one pass of ProcessDueWork.
type WorkReport struct {
	Enqueued        int             `json:"enqueued"`
	Processed       ProcessedCounts `json:"processed"`
	Polled          int             `json:"polled"`
	AlertsGenerated int             `json:"alertsGenerated"`
	SettingsEnabled bool            `json:"settingsEnabled"`
}

// ProcessedCounts breaks down the pass's due jobs by the status each one
// landed in.
type ProcessedCounts struct {
	Total      int `json:"total"`
	Completed  int `json:"completed"`
	Retrying   int `json:"retrying"`
	Cancelled  int `json:"cancelled"`
	DeadLetter int `json:"deadLetter"`
}

// IngestResult is the outcome of one provider callback delivery.
type IngestResult struct {
	Accepted       bool   `json:"accepted"`
	Matched        bool   `json:"matched"`
	Idempotent     bool   `json:"idempotent"`
	CallID         string `json:"callId,omitempty"`
	ProviderCallID string `json:"providerCallId,omitempty"`
	Status         string `json:"status,omitempty"`
	Outcome        string `json:"outcome,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// ProcessDueWork runs one full scheduler pass: enqueue newly abandoned
// carts, execute due jobs, poll active provider calls, and evaluate
// alert thresholds. Passes are serial; a pass never overlaps itself.
func (s *Service) ProcessDueWork(ctx context.Context) WorkReport {
	settings := s.Settings(ctx)
	report := WorkReport{SettingsEnabled: settings.Enabled}
	report.Enqueued = s.enqueueAbandonedCartJobs(ctx, settings)
	report.Processed = s.processDueJobs(ctx, settings)
	report.Polled = s.pollProviderUpdates(ctx)
	report.AlertsGenerated = s.evaluateAlerts(ctx, settings)
	return report
}

// RecoveryKey identifies one abandoned cart snapshot. A cart touched
// after enqueue gets a fresh key and may be recovered again.
func RecoveryKey(cartID string, updatedAt time.Time) string {
	return cartID + "::" + updatedAt.UTC().Format(time.RFC3339)
}

func (s *Service) enqueueAbandonedCartJobs(ctx context.Context, settings *models.VoiceSettings) int {
	if !settings.Enabled {
		return 0
	}
	now := s.now().UTC()
	cutoff := now.Add(-time.Duration(settings.AbandonmentMinutes) * time.Minute)
	enqueued := 0
	for _, cart := range s.store.ListCarts() {
		if cart.ItemCount <= 0 || cart.UserID == "" || cart.UpdatedAt.After(cutoff) {
			continue
		}
		// A newer order means the cart converted on its own.
		if s.store.HasOrderAfter(cart.UserID, cart.UpdatedAt) {
			continue
		}
		key := RecoveryKey(cart.ID, cart.UpdatedAt)
		if _, exists := s.store.VoiceJobByRecoveryKey(key); exists {
			continue
		}
		if _, dispatched := s.store.CallIdempotencyGet(key); dispatched {
			continue
		}
		job := &models.VoiceJob{
			ID:          s.store.NextID("vjob"),
			Status:      models.JobStatusQueued,
			UserID:      cart.UserID,
			SessionID:   cart.SessionID,
			CartID:      cart.ID,
			RecoveryKey: key,
			NextRunAt:   now,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		s.store.PutVoiceJob(ctx, job)
		s.logger.Info("enqueued voice recovery job", "job_id", job.ID, "cart_id", cart.ID, "user_id", cart.UserID)
		enqueued++
	}
	return enqueued
}

func (s *Service) processDueJobs(ctx context.Context, settings *models.VoiceSettings) ProcessedCounts {
	var counts ProcessedCounts
	for _, job := range s.store.DueVoiceJobs(s.now().UTC()) {
		s.executeJob(ctx, settings, job)
		counts.Total++
		switch job.Status {
		case models.JobStatusCompleted:
			counts.Completed++
		case models.JobStatusRetrying:
			counts.Retrying++
		case models.JobStatusCancelled:
			counts.Cancelled++
		case models.JobStatusDeadLetter:
			counts.DeadLetter++
		}
	}
	return counts
}

// executeJob walks the dispatch ladder for one due job. Every rung
// either cancels the job, reschedules it, or falls through to dispatch.
func (s *Service) executeJob(ctx context.Context, settings *models.VoiceSettings, job *models.VoiceJob) {
	now := s.now().UTC()

	if settings.KillSwitch || s.cfg.VoiceGlobalKillSwitch {
		s.cancelJob(ctx, job, "kill switch active")
		s.emitAlert(ctx, models.AlertVoiceKillSwitchActive, "voice kill switch is active; job cancelled",
			models.AlertSeverityWarning, map[string]any{"jobId": job.ID})
		return
	}

	cart, cartOK := s.store.GetCart(job.CartID)
	user, userOK := s.store.GetUser(job.UserID)
	if !cartOK || !userOK || cart.ItemCount <= 0 {
		s.cancelJob(ctx, job, "cart_or_user_missing")
		s.recordSkippedCall(ctx, settings, job, models.CallStatusSkipped, "cart_or_user_missing")
		return
	}

	if s.store.IsVoiceSuppressed(job.UserID) {
		s.cancelJob(ctx, job, "suppressed")
		s.recordSkippedCall(ctx, settings, job, models.CallStatusSuppressed, "suppressed")
		return
	}

	if strings.TrimSpace(user.Phone) == "" {
		s.cancelJob(ctx, job, "missing_phone")
		s.recordSkippedCall(ctx, settings, job, models.CallStatusSkipped, "missing_phone")
		return
	}

	loc := resolveLocation(user.Timezone, settings.DefaultTimezone)
	if inQuietHours(now.In(loc).Hour(), settings.QuietHoursStart, settings.QuietHoursEnd) {
		job.Status = models.JobStatusRetrying
		job.NextRunAt = nextQuietExit(now, loc, settings.QuietHoursStart, settings.QuietHoursEnd)
		job.UpdatedAt = now
		s.store.PutVoiceJob(ctx, job)
		s.logger.Info("job deferred for quiet hours", "job_id", job.ID, "next_run_at", job.NextRunAt)
		return
	}

	startOfDay := now.Truncate(24 * time.Hour)
	callsToday := s.store.VoiceCallsDispatchedSince(startOfDay, "")
	userCallsToday := s.store.VoiceCallsDispatchedSince(startOfDay, job.UserID)
	var guardrail string
	switch {
	case callsToday >= settings.MaxCallsPerDay:
		guardrail = "daily call cap reached"
	case userCallsToday >= settings.MaxCallsPerUserPerDay:
		guardrail = "per-user daily call cap reached"
	case float64(callsToday+1)*settings.EstimatedCostPerCallUsd > settings.DailyBudgetUsd:
		guardrail = "daily budget exhausted"
	}
	if guardrail != "" {
		s.cancelJob(ctx, job, guardrail)
		s.emitAlert(ctx, models.AlertVoiceGuardrail, guardrail, models.AlertSeverityWarning, map[string]any{
			"jobId": job.ID, "callsToday": callsToday, "userCallsToday": userCallsToday,
		})
		return
	}

	if s.provider == nil || !s.provider.Enabled() ||
		strings.TrimSpace(settings.AssistantID) == "" || strings.TrimSpace(settings.FromPhoneNumber) == "" {
		s.cancelJob(ctx, job, "provider_not_configured")
		s.emitAlert(ctx, models.AlertVoiceProviderMissing, "voice provider is not configured",
			models.AlertSeverityCritical, map[string]any{"jobId": job.ID})
		return
	}

	s.dispatch(ctx, settings, job, user, now)
}

func (s *Service) dispatch(ctx context.Context, settings *models.VoiceSettings, job *models.VoiceJob, user *models.User, now time.Time) {
	request := map[string]any{
		"cartId":        job.CartID,
		"userId":        job.UserID,
		"recoveryKey":   job.RecoveryKey,
		"scriptVersion": settings.ScriptVersion,
		"campaign":      "abandoned_cart",
	}
	response, err := s.provider.StartOutboundCall(ctx, user.Phone, request)
	if err != nil {
		s.handleDispatchFailure(ctx, settings, job, err, now)
		return
	}

	providerCallID := extractProviderCallID(response)
	call := s.callForJob(settings, job, now)
	call.Status = models.CallStatusInitiated
	call.ProviderCallID = providerCallID
	call.Attempts = append(call.Attempts, models.CallAttempt{
		Attempt:   job.Attempt + 1,
		Timestamp: now,
		Status:    models.CallStatusInitiated,
		Request:   request,
		Response:  response,
	})
	call.UpdatedAt = now
	s.store.PutVoiceCall(ctx, call)

	idemValue := providerCallID
	if idemValue == "" {
		idemValue = job.ID
	}
	s.store.CallIdempotencySet(ctx, job.RecoveryKey, idemValue)

	job.Status = models.JobStatusCompleted
	job.LastError = ""
	job.UpdatedAt = now
	s.store.PutVoiceJob(ctx, job)
	s.metrics.VoiceJobsTotal.WithLabelValues(models.JobStatusCompleted).Inc()
	s.logger.Info("voice call dispatched", "job_id", job.ID, "call_id", call.ID, "provider_call_id", providerCallID)
}

func (s *Service) handleDispatchFailure(ctx context.Context, settings *models.VoiceSettings, job *models.VoiceJob, dispatchErr error, now time.Time) {
	call := s.callForJob(settings, job, now)
	call.Attempts = append(call.Attempts, models.CallAttempt{
		Attempt:   job.Attempt + 1,
		Timestamp: now,
		Status:    models.CallStatusFailed,
		Error:     dispatchErr.Error(),
	})
	call.LastError = dispatchErr.Error()
	call.UpdatedAt = now

	if job.Attempt+1 >= settings.MaxAttemptsPerCart {
		call.Status = models.CallStatusFailed
		s.store.PutVoiceCall(ctx, call)
		job.Attempt++
		job.Status = models.JobStatusDeadLetter
		job.LastError = dispatchErr.Error()
		job.UpdatedAt = now
		s.store.PutVoiceJob(ctx, job)
		s.metrics.VoiceJobsTotal.WithLabelValues(models.JobStatusDeadLetter).Inc()
		s.emitAlert(ctx, models.AlertVoiceDeadLetter,
			fmt.Sprintf("job %s exhausted %d attempts", job.ID, settings.MaxAttemptsPerCart),
			models.AlertSeverityCritical, map[string]any{"jobId": job.ID, "lastError": dispatchErr.Error()})
		s.logger.Error("voice job dead-lettered", "job_id", job.ID, "error", dispatchErr)
		return
	}

	backoff := settings.RetryBackoffSeconds
	idx := job.Attempt
	if idx >= len(backoff) {
		idx = len(backoff) - 1
	}
	delay := time.Duration(backoff[idx]) * time.Second
	retryAt := now.Add(delay)
	call.NextRetryAt = &retryAt
	s.store.PutVoiceCall(ctx, call)

	job.Attempt++
	job.Status = models.JobStatusRetrying
	job.LastError = dispatchErr.Error()
	job.NextRunAt = retryAt
	job.UpdatedAt = now
	s.store.PutVoiceJob(ctx, job)
	s.logger.Warn("voice dispatch failed, retrying", "job_id", job.ID, "attempt", job.Attempt, "retry_at", retryAt, "error", dispatchErr)
}

// callForJob returns the call record for the job's recovery key,
// creating it on first use. At most one call record exists per key.
func (s *Service) callForJob(settings *models.VoiceSettings, job *models.VoiceJob, now time.Time) *models.VoiceCall {
	if call, ok := s.store.VoiceCallByRecoveryKey(job.RecoveryKey); ok {
		return call
	}
	return &models.VoiceCall{
		ID:               s.store.NextID("vcall"),
		RecoveryKey:      job.RecoveryKey,
		UserID:           job.UserID,
		SessionID:        job.SessionID,
		CartID:           job.CartID,
		Status:           models.CallStatusQueued,
		ScriptVersion:    settings.ScriptVersion,
		Campaign:         "abandoned_cart",
		EstimatedCostUsd: settings.EstimatedCostPerCallUsd,
		CreatedAt:        now,
	}
}

func (s *Service) cancelJob(ctx context.Context, job *models.VoiceJob, reason string) {
	job.Status = models.JobStatusCancelled
	job.LastError = reason
	job.UpdatedAt = s.now().UTC()
	s.store.PutVoiceJob(ctx, job)
	s.metrics.VoiceJobsTotal.WithLabelValues(models.JobStatusCancelled).Inc()
	s.logger.Info("voice job cancelled", "job_id", job.ID, "reason", reason)
}

// recordSkippedCall leaves an audit trail for jobs cancelled before any
// dispatch happened.
func (s *Service) recordSkippedCall(ctx context.Context, settings *models.VoiceSettings, job *models.VoiceJob, status, reason string) {
	now := s.now().UTC()
	call := s.callForJob(settings, job, now)
	call.Status = status
	call.LastError = reason
	call.Attempts = append(call.Attempts, models.CallAttempt{
		Attempt:   job.Attempt + 1,
		Timestamp: now,
		Status:    status,
		Error:     reason,
	})
	call.UpdatedAt = now
	s.store.PutVoiceCall(ctx, call)
}

func (s *Service) pollProviderUpdates(ctx context.Context) int {
	if s.provider == nil || !s.provider.Enabled() {
		return 0
	}
	polled := 0
	for _, call := range s.store.ActiveVoiceCalls() {
		if call.ProviderCallID == "" {
			continue
		}
		rows, err := s.provider.FetchCallLogs(ctx, call.ProviderCallID, 1)
		if err != nil {
			s.emitAlert(ctx, models.AlertVoicePollFailed,
				fmt.Sprintf("polling call %s failed", call.ID),
				models.AlertSeverityWarning, map[string]any{"callId": call.ID, "error": err.Error()})
			continue
		}
		polled++
		if len(rows) == 0 {
			continue
		}
		row := rows[len(rows)-1]
		status := normalizeProviderStatus(row)
		outcome := extractOutcome(row)
		switch status {
		case models.CallStatusCompleted, models.CallStatusFailed:
			s.appendCallEvent(call, providerEventKey(row), status, outcome)
			s.updateCallTerminal(ctx, call, status, outcome)
		case models.CallStatusRinging, models.CallStatusInProgress:
			s.appendCallEvent(call, providerEventKey(row), status, outcome)
			s.updateCallProgress(ctx, call, status)
		}
	}
	return polled
}

func (s *Service) evaluateAlerts(ctx context.Context, settings *models.VoiceSettings) int {
	now := s.now().UTC()
	startOfDay := now.Truncate(24 * time.Hour)
	generated := 0

	pending := s.store.PendingVoiceJobCount()
	s.metrics.VoiceBacklog.Set(float64(pending))
	s.metrics.VoiceCallsToday.Set(float64(s.store.VoiceCallsDispatchedSince(startOfDay, "")))

	if pending > settings.AlertBacklogThreshold {
		s.emitAlert(ctx, models.AlertVoiceBacklogHigh,
			fmt.Sprintf("%d voice jobs pending (threshold %d)", pending, settings.AlertBacklogThreshold),
			models.AlertSeverityWarning, map[string]any{"pending": pending})
		generated++
	}

	terminal, failed := s.store.TerminalVoiceCallsSince(startOfDay)
	if terminal >= 1 {
		ratio := float64(failed) / float64(terminal)
		if ratio > settings.AlertFailureRatioThreshold {
			s.emitAlert(ctx, models.AlertVoiceFailureRatioHigh,
				fmt.Sprintf("%.0f%% of today's calls failed", ratio*100),
				models.AlertSeverityCritical, map[string]any{"terminal": terminal, "failed": failed})
			generated++
		}
	}
	return generated
}

func (s *Service) emitAlert(ctx context.Context, code, message, severity string, details map[string]any) {
	s.store.AppendVoiceAlert(ctx, &models.VoiceAlert{
		ID:        s.store.NextID("alert"),
		Code:      code,
		Message:   message,
		Severity:  severity,
		Details:   details,
		CreatedAt: s.now().UTC(),
	})
}

// IngestProviderCallback applies one provider webhook delivery to the
// matching call record. Redelivered events are detected by event key and
// acknowledged without reapplying.
func (s *Service) IngestProviderCallback(ctx context.Context, payload map[string]any) IngestResult {
	providerCallID := extractProviderCallID(payload)
	if providerCallID == "" {
		return IngestResult{Accepted: false, Reason: "missing_provider_call_id"}
	}
	call, ok := s.store.VoiceCallByProviderID(providerCallID)
	if !ok {
		return IngestResult{Accepted: true, Matched: false, Reason: "call_not_found", ProviderCallID: providerCallID}
	}

	eventKey := providerEventKey(payload)
	for _, key := range call.ProviderEventKeys {
		if key == eventKey {
			return IngestResult{
				Accepted: true, Matched: true, Idempotent: true,
				CallID: call.ID, ProviderCallID: providerCallID,
				Status: call.Status, Outcome: call.Outcome,
			}
		}
	}

	status := normalizeProviderStatus(payload)
	outcome := extractOutcome(payload)
	s.appendCallEvent(call, eventKey, status, outcome)

	switch status {
	case models.CallStatusCompleted, models.CallStatusFailed:
		s.updateCallTerminal(ctx, call, status, outcome)
	case models.CallStatusRinging, models.CallStatusInProgress:
		s.updateCallProgress(ctx, call, status)
	default:
		call.UpdatedAt = s.now().UTC()
		s.store.PutVoiceCall(ctx, call)
	}

	return IngestResult{
		Accepted: true, Matched: true,
		CallID: call.ID, ProviderCallID: providerCallID,
		Status: call.Status, Outcome: call.Outcome,
	}
}

// appendCallEvent records the delivery key and observation, both
// ring-buffered so a chatty provider cannot grow the record unbounded.
func (s *Service) appendCallEvent(call *models.VoiceCall, eventKey, status, outcome string) {
	call.ProviderEventKeys = append(call.ProviderEventKeys, eventKey)
	if len(call.ProviderEventKeys) > providerEventRingSize {
		call.ProviderEventKeys = call.ProviderEventKeys[len(call.ProviderEventKeys)-providerEventRingSize:]
	}
	call.ProviderEvents = append(call.ProviderEvents, models.CallEvent{
		Key:        eventKey,
		Status:     status,
		Outcome:    outcome,
		ReceivedAt: s.now().UTC(),
	})
	if len(call.ProviderEvents) > providerEventRingSize {
		call.ProviderEvents = call.ProviderEvents[len(call.ProviderEvents)-providerEventRingSize:]
	}
}

func (s *Service) updateCallTerminal(ctx context.Context, call *models.VoiceCall, status, outcome string) {
	call.Status = status
	if outcome != "" {
		call.Outcome = outcome
	}
	call.UpdatedAt = s.now().UTC()
	if !call.FollowupApplied {
		s.applyOutcomeActions(ctx, call)
		call.FollowupApplied = true
	}
	s.store.PutVoiceCall(ctx, call)
	s.logger.Info("voice call reached terminal state", "call_id", call.ID, "status", status, "outcome", call.Outcome)
}

func (s *Service) updateCallProgress(ctx context.Context, call *models.VoiceCall, status string) {
	call.Status = status
	call.UpdatedAt = s.now().UTC()
	s.store.PutVoiceCall(ctx, call)
}

// applyOutcomeActions dispatches the one-shot follow-up for a terminal
// call based on the normalized disposition.
func (s *Service) applyOutcomeActions(ctx context.Context, call *models.VoiceCall) {
	switch call.Outcome {
	case "do_not_call", "opt_out", "dnc":
		s.SuppressUser(ctx, call.UserID, "voice_opt_out")
	case "requested_callback", "needs_help", "agent_handoff":
		sessionID := call.SessionID
		if sessionID == "" {
			sessionID = "voice-session"
		}
		s.support.CreateTicket(ctx, services.TicketRequest{
			UserID:    call.UserID,
			SessionID: sessionID,
			Issue:     fmt.Sprintf("Callback requested during recovery call %s", call.ID),
			Category:  "callback",
			Priority:  "normal",
			Channel:   "voice",
		})
		s.notifications.SendVoiceFollowup(ctx, call.UserID, call.ID,
			"Thanks for your time. Our team will call you back shortly.", "callback_requested")
	case "converted", "checkout_intent", "interested":
		s.notifications.SendVoiceFollowup(ctx, call.UserID, call.ID,
			"Your cart is waiting. Complete checkout any time.", "conversion_intent")
	default:
		if call.Status == models.CallStatusFailed {
			s.notifications.SendVoiceFollowup(ctx, call.UserID, call.ID,
				"We tried to reach you about your cart but couldn't connect.", "call_failed")
		}
	}
}

// --- admin operations ---

// SuppressUser records a do-not-call opt-out. Idempotent per user.
func (s *Service) SuppressUser(ctx context.Context, userID, reason string) *models.VoiceSuppression {
	if strings.TrimSpace(reason) == "" {
		reason = "manual"
	}
	sup := &models.VoiceSuppression{
		UserID:    userID,
		Reason:    reason,
		CreatedAt: s.now().UTC(),
	}
	s.store.PutVoiceSuppression(ctx, sup)
	s.logger.Info("user suppressed from voice outreach", "user_id", userID, "reason", reason)
	return sup
}

// UnsuppressUser removes an opt-out; reports whether one existed.
func (s *Service) UnsuppressUser(ctx context.Context, userID string) bool {
	return s.store.DeleteVoiceSuppression(ctx, userID)
}

// ListSuppressions returns all opt-outs, newest first.
func (s *Service) ListSuppressions() []models.VoiceSuppression {
	return s.store.ListVoiceSuppressions()
}

// ListCalls returns call records, newest first, optionally filtered by
// status. limit <= 0 returns all.
func (s *Service) ListCalls(limit int, status string) []*models.VoiceCall {
	out := make([]*models.VoiceCall, 0)
	for _, call := range s.store.ListVoiceCalls() {
		if status != "" && call.Status != status {
			continue
		}
		out = append(out, call)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ListJobs returns jobs, newest first, optionally filtered by status.
func (s *Service) ListJobs(limit int, status string) []*models.VoiceJob {
	out := make([]*models.VoiceJob, 0)
	for _, job := range s.store.ListVoiceJobs() {
		if status != "" && job.Status != status {
			continue
		}
		out = append(out, job)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// ListAlerts returns alerts, newest first, optionally filtered by
// severity.
func (s *Service) ListAlerts(limit int, severity string) []models.VoiceAlert {
	if severity == "" {
		return s.store.ListVoiceAlerts(limit)
	}
	out := make([]models.VoiceAlert, 0)
	for _, alert := range s.store.ListVoiceAlerts(0) {
		if alert.Severity != severity {
			continue
		}
		out = append(out, alert)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Stats summarizes the subsystem for the admin dashboard.
func (s *Service) Stats(ctx context.Context) map[string]any {
	settings := s.Settings(ctx)
	now := s.now().UTC()
	startOfDay := now.Truncate(24 * time.Hour)
	terminal, failed := s.store.TerminalVoiceCallsSince(startOfDay)
	return map[string]any{
		"enabled":            settings.Enabled,
		"killSwitch":         settings.KillSwitch || s.cfg.VoiceGlobalKillSwitch,
		"pendingJobs":        s.store.PendingVoiceJobCount(),
		"activeCalls":        len(s.store.ActiveVoiceCalls()),
		"callsToday":         s.store.VoiceCallsDispatchedSince(startOfDay, ""),
		"terminalCallsToday": terminal,
		"failedCallsToday":   failed,
		"suppressions":       len(s.store.ListVoiceSuppressions()),
	}
}
