package models

import "time"

// VoiceJob statuses.
const (
	JobStatusQueued     = "queued"
	JobStatusRetrying   = "retrying"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusCancelled  = "cancelled"
	JobStatusDeadLetter = "dead_letter"
)

// VoiceCall statuses.
const (
	CallStatusQueued     = "queued"
	CallStatusInitiated  = "initiated"
	CallStatusRinging    = "ringing"
	CallStatusInProgress = "in_progress"
	CallStatusCompleted  = "completed"
	CallStatusFailed     = "failed"
	CallStatusSuppressed = "suppressed"
	CallStatusSkipped    = "skipped"
)

// Alert severities.
const (
	AlertSeverityInfo     = "info"
	AlertSeverityWarning  = "warning"
	AlertSeverityCritical = "critical"
)

// Alert codes emitted by the voice subsystem.
const (
	AlertVoiceBacklogHigh      = "VOICE_BACKLOG_HIGH"
	AlertVoiceFailureRatioHigh = "VOICE_FAILURE_RATIO_HIGH"
	AlertVoiceKillSwitchActive = "VOICE_KILL_SWITCH_ACTIVE"
	AlertVoiceGuardrail        = "VOICE_GUARDRAIL_TRIGGERED"
	AlertVoiceDeadLetter       = "VOICE_DEAD_LETTER"
	AlertVoicePollFailed       = "VOICE_POLL_FAILED"
	AlertVoiceProviderMissing  = "VOICE_PROVIDER_NOT_CONFIGURED"
)

// VoiceSettings is the per-tenant configuration singleton for the
// abandoned-cart recovery loop.
type VoiceSettings struct {
	Enabled                    bool      `json:"enabled" bson:"enabled"`
	KillSwitch                 bool      `json:"killSwitch" bson:"killSwitch"`
	AbandonmentMinutes         int       `json:"abandonmentMinutes" bson:"abandonmentMinutes"`
	MaxAttemptsPerCart         int       `json:"maxAttemptsPerCart" bson:"maxAttemptsPerCart"`
	MaxCallsPerUserPerDay      int       `json:"maxCallsPerUserPerDay" bson:"maxCallsPerUserPerDay"`
	MaxCallsPerDay             int       `json:"maxCallsPerDay" bson:"maxCallsPerDay"`
	DailyBudgetUsd             float64   `json:"dailyBudgetUsd" bson:"dailyBudgetUsd"`
	EstimatedCostPerCallUsd    float64   `json:"estimatedCostPerCallUsd" bson:"estimatedCostPerCallUsd"`
	QuietHoursStart            int       `json:"quietHoursStart" bson:"quietHoursStart"`
	QuietHoursEnd              int       `json:"quietHoursEnd" bson:"quietHoursEnd"`
	RetryBackoffSeconds        []int     `json:"retryBackoffSeconds" bson:"retryBackoffSeconds"`
	ScriptVersion              string    `json:"scriptVersion" bson:"scriptVersion"`
	ScriptTemplate             string    `json:"scriptTemplate" bson:"scriptTemplate"`
	AssistantID                string    `json:"assistantId" bson:"assistantId"`
	FromPhoneNumber            string    `json:"fromPhoneNumber" bson:"fromPhoneNumber"`
	DefaultTimezone            string    `json:"defaultTimezone" bson:"defaultTimezone"`
	AlertBacklogThreshold      int       `json:"alertBacklogThreshold" bson:"alertBacklogThreshold"`
	AlertFailureRatioThreshold float64   `json:"alertFailureRatioThreshold" bson:"alertFailureRatioThreshold"`
	UpdatedAt                  time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy.
func (s *VoiceSettings) Clone() *VoiceSettings {
	if s == nil {
		return nil
	}
	out := *s
	out.RetryBackoffSeconds = append([]int(nil), s.RetryBackoffSeconds...)
	return &out
}

// VoiceJob is one scheduled recovery attempt for an abandoned cart snapshot.
type VoiceJob struct {
	ID          string    `json:"id" bson:"jobId"`
	Status      string    `json:"status" bson:"status"`
	UserID      string    `json:"userId" bson:"userId"`
	SessionID   string    `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	CartID      string    `json:"cartId" bson:"cartId"`
	RecoveryKey string    `json:"recoveryKey" bson:"recoveryKey"`
	Attempt     int       `json:"attempt" bson:"attempt"`
	NextRunAt   time.Time `json:"nextRunAt" bson:"nextRunAt"`
	LastError   string    `json:"lastError,omitempty" bson:"lastError,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a copy.
func (j *VoiceJob) Clone() *VoiceJob {
	if j == nil {
		return nil
	}
	out := *j
	return &out
}

// CallAttempt records one dispatch attempt against the provider.
type CallAttempt struct {
	Attempt   int            `json:"attempt" bson:"attempt"`
	Timestamp time.Time      `json:"timestamp" bson:"timestamp"`
	Status    string         `json:"status" bson:"status"`
	Error     string         `json:"error,omitempty" bson:"error,omitempty"`
	Request   map[string]any `json:"request,omitempty" bson:"request,omitempty"`
	Response  map[string]any `json:"response,omitempty" bson:"response,omitempty"`
}

// CallEvent is one provider webhook or poll observation.
type CallEvent struct {
	Key        string    `json:"key" bson:"key"`
	Status     string    `json:"status" bson:"status"`
	Outcome    string    `json:"outcome,omitempty" bson:"outcome,omitempty"`
	ReceivedAt time.Time `json:"receivedAt" bson:"receivedAt"`
}

// VoiceCall is the call record for one recovery key. At most one exists
// per recoveryKey for the lifetime of the cart snapshot.
type VoiceCall struct {
	ID                string         `json:"id" bson:"callId"`
	RecoveryKey       string         `json:"recoveryKey" bson:"recoveryKey"`
	UserID            string         `json:"userId" bson:"userId"`
	SessionID         string         `json:"sessionId,omitempty" bson:"sessionId,omitempty"`
	CartID            string         `json:"cartId" bson:"cartId"`
	Status            string         `json:"status" bson:"status"`
	Attempts          []CallAttempt  `json:"attempts" bson:"attempts"`
	ProviderCallID    string         `json:"providerCallId,omitempty" bson:"providerCallId,omitempty"`
	ProviderEventKeys []string       `json:"providerEventKeys,omitempty" bson:"providerEventKeys,omitempty"`
	ProviderEvents    []CallEvent    `json:"providerEvents,omitempty" bson:"providerEvents,omitempty"`
	Outcome           string         `json:"outcome,omitempty" bson:"outcome,omitempty"`
	ScriptVersion     string         `json:"scriptVersion,omitempty" bson:"scriptVersion,omitempty"`
	Campaign          string         `json:"campaign,omitempty" bson:"campaign,omitempty"`
	EstimatedCostUsd  float64        `json:"estimatedCostUsd" bson:"estimatedCostUsd"`
	FollowupApplied   bool           `json:"followupApplied" bson:"followupApplied"`
	NextRetryAt       *time.Time     `json:"nextRetryAt,omitempty" bson:"nextRetryAt,omitempty"`
	LastError         string         `json:"lastError,omitempty" bson:"lastError,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt" bson:"updatedAt"`
}

// Clone returns a deep copy.
func (c *VoiceCall) Clone() *VoiceCall {
	if c == nil {
		return nil
	}
	out := *c
	out.Attempts = make([]CallAttempt, len(c.Attempts))
	copy(out.Attempts, c.Attempts)
	out.ProviderEventKeys = append([]string(nil), c.ProviderEventKeys...)
	out.ProviderEvents = append([]CallEvent(nil), c.ProviderEvents...)
	if c.NextRetryAt != nil {
		t := *c.NextRetryAt
		out.NextRetryAt = &t
	}
	if c.Metadata != nil {
		md := make(map[string]any, len(c.Metadata))
		for k, v := range c.Metadata {
			md[k] = v
		}
		out.Metadata = md
	}
	return &out
}

// IsTerminal reports whether the call reached a final state.
func (c *VoiceCall) IsTerminal() bool {
	return c.Status == CallStatusCompleted || c.Status == CallStatusFailed
}

// VoiceSuppression is a persistent opt-out for one user.
type VoiceSuppression struct {
	UserID    string    `json:"userId" bson:"userId"`
	Reason    string    `json:"reason" bson:"reason"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// VoiceAlert is an operational alert emitted by the voice subsystem.
type VoiceAlert struct {
	ID        string         `json:"id" bson:"alertId"`
	Code      string         `json:"code" bson:"code"`
	Message   string         `json:"message" bson:"message"`
	Severity  string         `json:"severity" bson:"severity"`
	Details   map[string]any `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt" bson:"createdAt"`
}
