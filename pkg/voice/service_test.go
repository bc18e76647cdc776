package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/metrics"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
	"github.com/conciergelabs/concierge/pkg/store"
)

type fakeProvider struct {
	enabled  bool
	response map[string]any
	err      error
	logs     []map[string]any
	logsErr  error
	dialed   []string
}

func (f *fakeProvider) Enabled() bool { return f.enabled }

func (f *fakeProvider) StartOutboundCall(ctx context.Context, toPhone string, metadata map[string]any) (map[string]any, error) {
	f.dialed = append(f.dialed, toPhone)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeProvider) FetchCallLogs(ctx context.Context, callID string, limit int) ([]map[string]any, error) {
	if f.logsErr != nil {
		return nil, f.logsErr
	}
	return f.logs, nil
}

type voiceFixture struct {
	store    *store.Store
	cfg      *config.Settings
	provider *fakeProvider
	svc      *Service
	clock    time.Time
}

func voiceSettings() *config.Settings {
	return &config.Settings{
		VoiceSchedulerEnabled:      true,
		VoiceAbandonmentMinutes:    30,
		VoiceMaxAttemptsPerCart:    3,
		VoiceMaxCallsPerUserPerDay: 2,
		VoiceMaxCallsPerDay:        10,
		VoiceDailyBudgetUsd:        50,
		VoiceEstimatedCostUsd:      0.5,
		VoiceQuietHoursStart:       0,
		VoiceQuietHoursEnd:         0,
		VoiceRetryBackoffSeconds:   []int{60, 300, 900},
		VoiceScriptVersion:         "v1",
		VoiceDefaultTimezone:       "UTC",
		VoiceAlertBacklogThreshold: 100,
		VoiceAlertFailureRatio:     0.5,
		SuperUEnabled:              true,
		SuperUAssistantID:          "asst_1",
		SuperUFromPhoneNumber:      "+15550000000",
	}
}

// newVoiceFixture seeds one signed-in user with an abandoned cart and
// pins the service clock so backoff and guardrail windows are exact.
func newVoiceFixture(t *testing.T, cfg *config.Settings) *voiceFixture {
	t.Helper()
	ctx := context.Background()
	st := store.New(nil, nil)
	clock := time.Date(2026, 8, 25, 14, 0, 0, 0, time.UTC)

	st.PutUser(ctx, &models.User{
		ID: "user_1", Email: "jo@example.com", Name: "Jo",
		Phone: "+15551234567", Timezone: "UTC",
	})
	st.PutCart(ctx, &models.Cart{
		ID: "cart_1", UserID: "user_1", SessionID: "sess_1",
		Items:     []models.CartItem{{ProductID: "prod_1", VariantID: "var_1", Quantity: 2}},
		ItemCount: 2, Status: "active",
		CreatedAt: clock.Add(-2 * time.Hour),
		UpdatedAt: clock.Add(-time.Hour),
	})

	provider := &fakeProvider{
		enabled:  true,
		response: map[string]any{"call_id": "superu_call_001", "status": "queued"},
	}
	svc := NewService(cfg, st, provider,
		services.NewSupportService(st), services.NewNotificationService(st), metrics.New())

	f := &voiceFixture{store: st, cfg: cfg, provider: provider, svc: svc, clock: clock}
	svc.now = func() time.Time { return f.clock }
	return f
}

func (f *voiceFixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func alertCodes(st *store.Store) []string {
	var codes []string
	for _, alert := range st.ListVoiceAlerts(0) {
		codes = append(codes, alert.Code)
	}
	return codes
}

func TestProcessDueWorkHappyPath(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()

	report := f.svc.ProcessDueWork(ctx)

	assert.True(t, report.SettingsEnabled)
	assert.Equal(t, 1, report.Enqueued)
	assert.Equal(t, 1, report.Processed.Total)
	assert.Equal(t, 1, report.Processed.Completed)
	assert.Zero(t, report.Processed.DeadLetter)

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCompleted, jobs[0].Status)

	calls := f.svc.ListCalls(0, "")
	require.Len(t, calls, 1)
	assert.Equal(t, models.CallStatusInitiated, calls[0].Status)
	assert.Equal(t, "superu_call_001", calls[0].ProviderCallID)
	require.Len(t, calls[0].Attempts, 1)
	assert.Equal(t, 1, calls[0].Attempts[0].Attempt)
	assert.Equal(t, []string{"+15551234567"}, f.provider.dialed)

	key := RecoveryKey("cart_1", f.clock.Add(-time.Hour))
	value, ok := f.store.CallIdempotencyGet(key)
	require.True(t, ok)
	assert.Equal(t, "superu_call_001", value)

	// The same cart snapshot never enqueues twice.
	report = f.svc.ProcessDueWork(ctx)
	assert.Equal(t, 0, report.Enqueued)
	assert.Len(t, f.provider.dialed, 1)
}

func TestEnqueueSkipsFreshEmptyAndConvertedCarts(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()

	st := f.store
	st.PutCart(ctx, &models.Cart{
		ID: "cart_fresh", UserID: "user_1", ItemCount: 1,
		Items:     []models.CartItem{{ProductID: "prod_1", Quantity: 1}},
		UpdatedAt: f.clock.Add(-5 * time.Minute),
	})
	st.PutCart(ctx, &models.Cart{ID: "cart_empty", UserID: "user_1", ItemCount: 0, UpdatedAt: f.clock.Add(-2 * time.Hour)})
	st.PutUser(ctx, &models.User{ID: "user_2", Phone: "+15559990000"})
	st.PutCart(ctx, &models.Cart{
		ID: "cart_converted", UserID: "user_2", ItemCount: 1,
		Items:     []models.CartItem{{ProductID: "prod_1", Quantity: 1}},
		UpdatedAt: f.clock.Add(-2 * time.Hour),
	})
	st.PutOrder(ctx, &models.Order{ID: "order_1", UserID: "user_2", CreatedAt: f.clock.Add(-time.Hour)})

	report := f.svc.ProcessDueWork(ctx)

	// Only the fixture's cart_1 qualifies.
	assert.Equal(t, 1, report.Enqueued)
	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, "cart_1", jobs[0].CartID)
}

func TestDispatchFailureRetriesWithBackoff(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.provider.err = errors.New("provider unavailable")

	report := f.svc.ProcessDueWork(ctx)
	assert.Equal(t, 1, report.Processed.Retrying)

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusRetrying, jobs[0].Status)
	assert.Equal(t, 1, jobs[0].Attempt)
	assert.Equal(t, f.clock.Add(60*time.Second), jobs[0].NextRunAt)
	assert.Equal(t, "provider unavailable", jobs[0].LastError)

	// Second failure uses the next backoff rung.
	f.advance(61 * time.Second)
	f.svc.ProcessDueWork(ctx)
	jobs = f.svc.ListJobs(0, "")
	assert.Equal(t, 2, jobs[0].Attempt)
	assert.Equal(t, f.clock.Add(300*time.Second), jobs[0].NextRunAt)
}

func TestDispatchFailureDeadLettersAfterMaxAttempts(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceMaxAttemptsPerCart = 1
	f := newVoiceFixture(t, cfg)
	ctx := context.Background()
	f.provider.err = errors.New("line busy")

	report := f.svc.ProcessDueWork(ctx)
	assert.GreaterOrEqual(t, report.Processed.DeadLetter, 1)
	assert.Zero(t, report.Processed.Completed)

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusDeadLetter, jobs[0].Status)
	assert.Contains(t, alertCodes(f.store), models.AlertVoiceDeadLetter)

	calls := f.svc.ListCalls(0, "")
	require.Len(t, calls, 1)
	assert.Equal(t, models.CallStatusFailed, calls[0].Status)
	assert.Equal(t, "line busy", calls[0].LastError)
}

func TestBackoffReusesLastEntryWhenAttemptsExceedTable(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceRetryBackoffSeconds = []int{60}
	cfg.VoiceMaxAttemptsPerCart = 5
	f := newVoiceFixture(t, cfg)
	ctx := context.Background()
	f.provider.err = errors.New("provider unavailable")

	for i := 0; i < 3; i++ {
		f.svc.ProcessDueWork(ctx)
		jobs := f.svc.ListJobs(0, "")
		require.Equal(t, models.JobStatusRetrying, jobs[0].Status)
		assert.Equal(t, f.clock.Add(60*time.Second), jobs[0].NextRunAt)
		f.advance(61 * time.Second)
	}
}

func TestKillSwitchCancelsDueJobs(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceGlobalKillSwitch = true
	f := newVoiceFixture(t, cfg)

	report := f.svc.ProcessDueWork(context.Background())
	assert.GreaterOrEqual(t, report.Processed.Cancelled, 1)

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCancelled, jobs[0].Status)
	assert.Contains(t, alertCodes(f.store), models.AlertVoiceKillSwitchActive)
	assert.Empty(t, f.provider.dialed)
}

func TestSuppressedUserIsNeverDialed(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.SuppressUser(ctx, "user_1", "voice_opt_out")

	f.svc.ProcessDueWork(ctx)

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCancelled, jobs[0].Status)
	calls := f.svc.ListCalls(0, "")
	require.Len(t, calls, 1)
	assert.Equal(t, models.CallStatusSuppressed, calls[0].Status)
	assert.Empty(t, f.provider.dialed)
}

func TestMissingPhoneSkips(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.store.PutUser(ctx, &models.User{ID: "user_1", Email: "jo@example.com", Name: "Jo"})

	f.svc.ProcessDueWork(ctx)

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCancelled, jobs[0].Status)
	assert.Equal(t, "missing_phone", jobs[0].LastError)
	calls := f.svc.ListCalls(0, "")
	require.Len(t, calls, 1)
	assert.Equal(t, models.CallStatusSkipped, calls[0].Status)
}

func TestQuietHoursDeferToWindowExit(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceQuietHoursStart = 9
	cfg.VoiceQuietHoursEnd = 17
	f := newVoiceFixture(t, cfg)

	// Fixture clock is 14:00 UTC, inside the window.
	f.svc.ProcessDueWork(context.Background())

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusRetrying, jobs[0].Status)
	assert.Equal(t, time.Date(2026, 8, 25, 17, 0, 0, 0, time.UTC), jobs[0].NextRunAt)
	assert.Empty(t, f.provider.dialed)
}

func TestDailyCallCapGuardrail(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceMaxCallsPerDay = 1
	f := newVoiceFixture(t, cfg)
	ctx := context.Background()

	f.store.PutVoiceCall(ctx, &models.VoiceCall{
		ID: "vcall_earlier", RecoveryKey: "other::key", UserID: "user_9",
		Status: models.CallStatusCompleted,
		Attempts: []models.CallAttempt{
			{Attempt: 1, Timestamp: f.clock.Add(-time.Hour), Status: models.CallStatusInitiated},
		},
		CreatedAt: f.clock.Add(-time.Hour), UpdatedAt: f.clock.Add(-time.Hour),
	})

	f.svc.ProcessDueWork(ctx)

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCancelled, jobs[0].Status)
	assert.Contains(t, alertCodes(f.store), models.AlertVoiceGuardrail)
	assert.Empty(t, f.provider.dialed)
}

func TestDailyBudgetGuardrail(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceDailyBudgetUsd = 0.4
	cfg.VoiceEstimatedCostUsd = 0.5
	f := newVoiceFixture(t, cfg)

	f.svc.ProcessDueWork(context.Background())

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCancelled, jobs[0].Status)
	assert.Contains(t, alertCodes(f.store), models.AlertVoiceGuardrail)
}

func TestProviderNotConfiguredCancels(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	f.provider.enabled = false

	f.svc.ProcessDueWork(context.Background())

	jobs := f.svc.ListJobs(0, "")
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusCancelled, jobs[0].Status)
	assert.Contains(t, alertCodes(f.store), models.AlertVoiceProviderMissing)
}

func TestIngestProviderCallbackIdempotent(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.ProcessDueWork(ctx)

	payload := map[string]any{
		"event_id": "evt_1",
		"call_id":  "superu_call_001",
		"status":   "completed",
		"outcome":  "interested",
	}
	first := f.svc.IngestProviderCallback(ctx, payload)
	assert.True(t, first.Accepted)
	assert.True(t, first.Matched)
	assert.False(t, first.Idempotent)
	assert.Equal(t, models.CallStatusCompleted, first.Status)
	assert.Equal(t, "interested", first.Outcome)

	notifs := f.store.NotificationsForUser("user_1")
	require.Len(t, notifs, 1)
	assert.Equal(t, "conversion_intent", notifs[0].Data["disposition"])

	second := f.svc.IngestProviderCallback(ctx, payload)
	assert.True(t, second.Idempotent)
	assert.Equal(t, models.CallStatusCompleted, second.Status)
	// The follow-up fires once per call.
	assert.Len(t, f.store.NotificationsForUser("user_1"), 1)
}

func TestIngestRejectsMissingProviderCallID(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())

	result := f.svc.IngestProviderCallback(context.Background(), map[string]any{"status": "completed"})

	assert.False(t, result.Accepted)
	assert.Equal(t, "missing_provider_call_id", result.Reason)
}

func TestIngestUnknownCallAcknowledged(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())

	result := f.svc.IngestProviderCallback(context.Background(), map[string]any{"call_id": "superu_call_999"})

	assert.True(t, result.Accepted)
	assert.False(t, result.Matched)
	assert.Equal(t, "call_not_found", result.Reason)
	assert.Equal(t, "superu_call_999", result.ProviderCallID)
}

func TestOutcomeOptOutSuppressesUser(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.ProcessDueWork(ctx)

	f.svc.IngestProviderCallback(ctx, map[string]any{
		"call_id": "superu_call_001", "status": "completed", "outcome": "do_not_call",
	})

	sups := f.svc.ListSuppressions()
	require.Len(t, sups, 1)
	assert.Equal(t, "user_1", sups[0].UserID)
	assert.Equal(t, "voice_opt_out", sups[0].Reason)
}

func TestOutcomeCallbackCreatesTicketAndNotification(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.ProcessDueWork(ctx)

	f.svc.IngestProviderCallback(ctx, map[string]any{
		"call_id": "superu_call_001", "status": "completed", "outcome": "requested_callback",
	})

	tickets := f.store.TicketsFor("user_1", "")
	require.Len(t, tickets, 1)
	assert.Equal(t, "normal", tickets[0].Priority)
	assert.Equal(t, "voice", tickets[0].Channel)

	notifs := f.store.NotificationsForUser("user_1")
	require.Len(t, notifs, 1)
	assert.Equal(t, "callback_requested", notifs[0].Data["disposition"])
}

func TestFailedCallWithoutOutcomeNotifies(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.ProcessDueWork(ctx)

	f.svc.IngestProviderCallback(ctx, map[string]any{
		"call_id": "superu_call_001", "status": "no_answer",
	})

	calls := f.svc.ListCalls(0, "")
	require.Len(t, calls, 1)
	assert.Equal(t, models.CallStatusFailed, calls[0].Status)
	notifs := f.store.NotificationsForUser("user_1")
	require.Len(t, notifs, 1)
	assert.Equal(t, "call_failed", notifs[0].Data["disposition"])
}

func TestPollAppliesTerminalLogRow(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.ProcessDueWork(ctx)

	f.provider.logs = []map[string]any{{"status": "completed", "outcome": "converted"}}
	report := f.svc.ProcessDueWork(ctx)

	assert.Equal(t, 1, report.Polled)
	calls := f.svc.ListCalls(0, "")
	require.Len(t, calls, 1)
	assert.Equal(t, models.CallStatusCompleted, calls[0].Status)
	assert.Equal(t, "converted", calls[0].Outcome)
	notifs := f.store.NotificationsForUser("user_1")
	require.Len(t, notifs, 1)
	assert.Equal(t, "conversion_intent", notifs[0].Data["disposition"])
}

func TestPollFailureEmitsAlert(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.ProcessDueWork(ctx)

	f.provider.logsErr = errors.New("timeout")
	f.svc.ProcessDueWork(ctx)

	assert.Contains(t, alertCodes(f.store), models.AlertVoicePollFailed)
	calls := f.svc.ListCalls(0, "")
	assert.Equal(t, models.CallStatusInitiated, calls[0].Status)
}

func TestEvaluateAlertsBacklogAndFailureRatio(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceAlertBacklogThreshold = 0
	cfg.VoiceAlertFailureRatio = 0.5
	f := newVoiceFixture(t, cfg)
	ctx := context.Background()

	f.store.PutVoiceJob(ctx, &models.VoiceJob{
		ID: "vjob_pending", Status: models.JobStatusQueued,
		NextRunAt: f.clock.Add(time.Hour), CreatedAt: f.clock,
	})
	f.store.PutVoiceCall(ctx, &models.VoiceCall{
		ID: "vcall_bad", RecoveryKey: "k1", Status: models.CallStatusFailed,
		CreatedAt: f.clock, UpdatedAt: f.clock,
	})

	generated := f.svc.evaluateAlerts(ctx, f.svc.Settings(ctx))

	assert.Equal(t, 2, generated)
	codes := alertCodes(f.store)
	assert.Contains(t, codes, models.AlertVoiceBacklogHigh)
	assert.Contains(t, codes, models.AlertVoiceFailureRatioHigh)
}

func TestSchedulerDisabledSkipsEnqueue(t *testing.T) {
	cfg := voiceSettings()
	cfg.VoiceSchedulerEnabled = false
	f := newVoiceFixture(t, cfg)

	report := f.svc.ProcessDueWork(context.Background())

	assert.False(t, report.SettingsEnabled)
	assert.Equal(t, 0, report.Enqueued)
	assert.Empty(t, f.svc.ListJobs(0, ""))
}

func TestUpdateSettingsValidation(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()

	t.Run("valid partial update", func(t *testing.T) {
		settings, err := f.svc.UpdateSettings(ctx, map[string]any{
			"abandonmentMinutes": float64(45),
			"killSwitch":         true,
		})
		require.NoError(t, err)
		assert.Equal(t, 45, settings.AbandonmentMinutes)
		assert.True(t, settings.KillSwitch)
	})

	t.Run("quiet hour out of range", func(t *testing.T) {
		_, err := f.svc.UpdateSettings(ctx, map[string]any{"quietHoursStart": 24})
		assert.Error(t, err)
	})

	t.Run("non positive backoff", func(t *testing.T) {
		_, err := f.svc.UpdateSettings(ctx, map[string]any{"retryBackoffSeconds": []any{float64(0)}})
		assert.Error(t, err)
	})

	t.Run("descending backoff", func(t *testing.T) {
		_, err := f.svc.UpdateSettings(ctx, map[string]any{
			"retryBackoffSeconds": []any{float64(300), float64(60)},
		})
		assert.Error(t, err)
	})

	t.Run("backoff with equal neighbours", func(t *testing.T) {
		settings, err := f.svc.UpdateSettings(ctx, map[string]any{
			"retryBackoffSeconds": []any{float64(60), float64(60), float64(300)},
		})
		require.NoError(t, err)
		assert.Equal(t, []int{60, 60, 300}, settings.RetryBackoffSeconds)
	})

	t.Run("failure ratio above one", func(t *testing.T) {
		_, err := f.svc.UpdateSettings(ctx, map[string]any{"alertFailureRatioThreshold": 1.5})
		assert.Error(t, err)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := f.svc.UpdateSettings(ctx, map[string]any{"volume": 11})
		assert.Error(t, err)
	})
}

func TestStatsSnapshot(t *testing.T) {
	f := newVoiceFixture(t, voiceSettings())
	ctx := context.Background()
	f.svc.ProcessDueWork(ctx)

	stats := f.svc.Stats(ctx)

	assert.Equal(t, true, stats["enabled"])
	assert.Equal(t, 0, stats["pendingJobs"])
	assert.Equal(t, 1, stats["activeCalls"])
	assert.Equal(t, 1, stats["callsToday"])
}
