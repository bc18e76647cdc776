package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	s := Load()

	assert.Equal(t, "concierge", s.AppName)
	assert.Equal(t, 0.08, s.CartTaxRate)
	assert.Equal(t, 5.99, s.DefaultShippingFee)
	assert.Equal(t, PolicyPlannerFirst, s.LLMDecisionPolicy)
	assert.Equal(t, ExecutionModePartial, s.LLMPlannerExecutionMode)
	assert.Equal(t, []int{60, 300, 900}, s.VoiceRetryBackoffSeconds)
	assert.Equal(t, 8*time.Second, s.LLMTimeout)
	assert.Equal(t, 5, s.OrchestratorMaxActionsPerReq)
}

func TestLoadOverridesAndClamps(t *testing.T) {
	t.Setenv("LLM_DECISION_POLICY", "classifier_first")
	t.Setenv("LLM_PLANNER_EXECUTION_MODE", "atomic")
	t.Setenv("ORCHESTRATOR_MAX_ACTIONS_PER_REQUEST", "25")
	t.Setenv("VOICE_RECOVERY_SCAN_INTERVAL_SECONDS", "1")
	t.Setenv("VOICE_QUIET_HOURS_START", "99")
	t.Setenv("VOICE_ALERT_FAILURE_RATIO_THRESHOLD", "1.7")
	t.Setenv("VOICE_RETRY_BACKOFF_SECONDS_CSV", "10, 20, nonsense, -5, 40")

	s := Load()

	assert.Equal(t, PolicyClassifierFirst, s.LLMDecisionPolicy)
	assert.Equal(t, ExecutionModeAtomic, s.LLMPlannerExecutionMode)
	assert.Equal(t, 10, s.OrchestratorMaxActionsPerReq, "clamped to the [1,10] ceiling")
	assert.Equal(t, 5*time.Second, s.VoiceScanInterval, "scan interval floors at 5s")
	assert.Equal(t, 23, s.VoiceQuietHoursStart)
	assert.Equal(t, 0.5, s.VoiceAlertFailureRatio, "out-of-range ratio falls back to default")
	assert.Equal(t, []int{10, 20, 40}, s.VoiceRetryBackoffSeconds)
}

func TestLoadUnknownEnumsFallBack(t *testing.T) {
	t.Setenv("LLM_DECISION_POLICY", "yolo")
	t.Setenv("LLM_PLANNER_EXECUTION_MODE", "bestial")

	s := Load()

	assert.Equal(t, PolicyPlannerFirst, s.LLMDecisionPolicy)
	assert.Equal(t, ExecutionModePartial, s.LLMPlannerExecutionMode)
}
