// Package config loads all runtime settings from the environment.
// Every value has a safe default so the service can boot with an empty
// environment; .env loading happens at the composition root.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Decision policies for the orchestrator.
const (
	PolicyPlannerFirst    = "planner_first"
	PolicyClassifierFirst = "classifier_first"
)

// Planner execution modes for multi-action runs.
const (
	ExecutionModeAtomic  = "atomic"
	ExecutionModePartial = "partial"
)

// Settings is the full runtime configuration.
type Settings struct {
	AppName  string
	HTTPPort string

	// Commerce
	CartTaxRate        float64
	DefaultShippingFee float64
	CartTTL            time.Duration
	SessionTTL         time.Duration

	// LLM
	LLMEnabled                   bool
	LLMProvider                  string
	LLMModel                     string
	LLMTimeout                   time.Duration
	LLMMaxTokens                 int
	LLMTemperature               float64
	LLMBreakerFailureThreshold   int
	LLMBreakerRecoveryTimeout    time.Duration
	OpenAIAPIKey                 string
	AnthropicAPIKey              string
	LLMPlannerEnabled            bool
	LLMDecisionPolicy            string
	PlannerFeatureEnabled        bool
	PlannerCanaryPercent         int
	LLMPlannerMaxActions         int
	LLMPlannerMinConfidence      float64
	LLMPlannerExecutionMode      string
	OrchestratorMaxActionsPerReq int

	// Voice recovery
	VoiceSchedulerEnabled      bool
	VoiceScanInterval          time.Duration
	VoiceAbandonmentMinutes    int
	VoiceMaxAttemptsPerCart    int
	VoiceMaxCallsPerUserPerDay int
	VoiceMaxCallsPerDay        int
	VoiceDailyBudgetUsd        float64
	VoiceEstimatedCostUsd      float64
	VoiceQuietHoursStart       int
	VoiceQuietHoursEnd         int
	VoiceRetryBackoffSeconds   []int
	VoiceScriptVersion         string
	VoiceScriptTemplate        string
	VoiceGlobalKillSwitch      bool
	VoiceDefaultTimezone       string
	VoiceAlertBacklogThreshold int
	VoiceAlertFailureRatio     float64

	// SuperU provider
	SuperUEnabled                 bool
	SuperUBaseURL                 string
	SuperUAPIKey                  string
	SuperUAssistantID             string
	SuperUFromPhoneNumber         string
	SuperUWebhookSecret           string
	SuperUWebhookToleranceSeconds int

	// Persistence
	EnableExternalServices bool
	MongoDBURI             string
	MongoDBName            string
	RedisURL               string

	// Audit
	ActivityLogSecret string

	// Rate limiting (requests per minute)
	RateLimitAnonymous     int
	RateLimitAuthenticated int
}

// Load reads settings from the environment, applying defaults and clamps.
func Load() *Settings {
	s := &Settings{
		AppName:  getEnv("APP_NAME", "concierge"),
		HTTPPort: getEnv("HTTP_PORT", "8000"),

		CartTaxRate:        getFloat("CART_TAX_RATE", 0.08),
		DefaultShippingFee: getFloat("DEFAULT_SHIPPING_FEE", 5.99),
		CartTTL:            getDuration("CART_TTL_HOURS", 24) * time.Hour,
		SessionTTL:         getDuration("SESSION_TTL_MINUTES", 30) * time.Minute,

		LLMEnabled:                 getBool("LLM_ENABLED", false),
		LLMProvider:                strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:                   getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:                 time.Duration(getFloat("LLM_TIMEOUT_SECONDS", 8) * float64(time.Second)),
		LLMMaxTokens:               getInt("LLM_MAX_TOKENS", 400),
		LLMTemperature:             getFloat("LLM_TEMPERATURE", 0),
		LLMBreakerFailureThreshold: getInt("LLM_CIRCUIT_BREAKER_FAILURE_THRESHOLD", 3),
		LLMBreakerRecoveryTimeout:  time.Duration(getFloat("LLM_CIRCUIT_BREAKER_TIMEOUT_SECONDS", 30) * float64(time.Second)),
		OpenAIAPIKey:               getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:            getEnv("ANTHROPIC_API_KEY", ""),

		LLMPlannerEnabled:            getBool("LLM_PLANNER_ENABLED", false),
		LLMDecisionPolicy:            strings.ToLower(getEnv("LLM_DECISION_POLICY", PolicyPlannerFirst)),
		PlannerFeatureEnabled:        getBool("PLANNER_FEATURE_ENABLED", true),
		PlannerCanaryPercent:         getInt("PLANNER_CANARY_PERCENT", 100),
		LLMPlannerMaxActions:         getInt("LLM_PLANNER_MAX_ACTIONS", 5),
		LLMPlannerMinConfidence:      getFloat("LLM_PLANNER_MIN_CONFIDENCE", 0.55),
		LLMPlannerExecutionMode:      strings.ToLower(getEnv("LLM_PLANNER_EXECUTION_MODE", ExecutionModePartial)),
		OrchestratorMaxActionsPerReq: clampInt(getInt("ORCHESTRATOR_MAX_ACTIONS_PER_REQUEST", 5), 1, 10),

		VoiceSchedulerEnabled:      getBool("VOICE_RECOVERY_SCHEDULER_ENABLED", false),
		VoiceScanInterval:          time.Duration(maxInt(5, getInt("VOICE_RECOVERY_SCAN_INTERVAL_SECONDS", 60))) * time.Second,
		VoiceAbandonmentMinutes:    maxInt(1, getInt("VOICE_ABANDONMENT_MINUTES", 30)),
		VoiceMaxAttemptsPerCart:    maxInt(1, getInt("VOICE_MAX_ATTEMPTS_PER_CART", 3)),
		VoiceMaxCallsPerUserPerDay: maxInt(1, getInt("VOICE_MAX_CALLS_PER_USER_PER_DAY", 1)),
		VoiceMaxCallsPerDay:        maxInt(1, getInt("VOICE_MAX_CALLS_PER_DAY", 50)),
		VoiceDailyBudgetUsd:        getFloat("VOICE_DAILY_BUDGET_USD", 25),
		VoiceEstimatedCostUsd:      getFloat("VOICE_ESTIMATED_COST_PER_CALL_USD", 0.5),
		VoiceQuietHoursStart:       clampInt(getInt("VOICE_QUIET_HOURS_START", 21), 0, 23),
		VoiceQuietHoursEnd:         clampInt(getInt("VOICE_QUIET_HOURS_END", 9), 0, 23),
		VoiceRetryBackoffSeconds:   getIntCSV("VOICE_RETRY_BACKOFF_SECONDS_CSV", []int{60, 300, 900}),
		VoiceScriptVersion:         getEnv("VOICE_SCRIPT_VERSION", "v1"),
		VoiceScriptTemplate:        getEnv("VOICE_SCRIPT_TEMPLATE", "You left items in your cart. Can I help you finish checkout?"),
		VoiceGlobalKillSwitch:      getBool("VOICE_GLOBAL_KILL_SWITCH", false),
		VoiceDefaultTimezone:       getEnv("VOICE_DEFAULT_TIMEZONE", "UTC"),
		VoiceAlertBacklogThreshold: maxInt(1, getInt("VOICE_ALERT_BACKLOG_THRESHOLD", 25)),
		VoiceAlertFailureRatio:     getFloat("VOICE_ALERT_FAILURE_RATIO_THRESHOLD", 0.5),

		SuperUEnabled:                 getBool("SUPERU_ENABLED", false),
		SuperUBaseURL:                 getEnv("SUPERU_BASE_URL", "https://api.superu.ai"),
		SuperUAPIKey:                  getEnv("SUPERU_API_KEY", ""),
		SuperUAssistantID:             getEnv("SUPERU_ASSISTANT_ID", ""),
		SuperUFromPhoneNumber:         getEnv("SUPERU_FROM_PHONE_NUMBER", ""),
		SuperUWebhookSecret:           getEnv("SUPERU_WEBHOOK_SECRET", ""),
		SuperUWebhookToleranceSeconds: getInt("SUPERU_WEBHOOK_TOLERANCE_SECONDS", 300),

		EnableExternalServices: getBool("ENABLE_EXTERNAL_SERVICES", false),
		MongoDBURI:             getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDBName:            getEnv("MONGODB_NAME", "commerce"),
		RedisURL:               getEnv("REDIS_URL", "redis://localhost:6379/0"),

		ActivityLogSecret: getEnv("ADMIN_ACTIVITY_LOG_SECRET", "change-me"),

		RateLimitAnonymous:     getInt("RATE_LIMIT_ANONYMOUS_PER_MINUTE", 120),
		RateLimitAuthenticated: getInt("RATE_LIMIT_AUTHENTICATED_PER_MINUTE", 600),
	}

	if s.LLMDecisionPolicy != PolicyClassifierFirst {
		s.LLMDecisionPolicy = PolicyPlannerFirst
	}
	if s.LLMPlannerExecutionMode != ExecutionModeAtomic {
		s.LLMPlannerExecutionMode = ExecutionModePartial
	}
	if s.VoiceAlertFailureRatio <= 0 || s.VoiceAlertFailureRatio > 1 {
		s.VoiceAlertFailureRatio = 0.5
	}
	return s
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getDuration(key string, fallback int) time.Duration {
	return time.Duration(getInt(key, fallback))
}

// getIntCSV parses a comma-separated list of positive integers, keeping
// the configured order. Invalid or non-positive entries are skipped.
func getIntCSV(key string, fallback []int) []int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return append([]int(nil), fallback...)
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n <= 0 {
			continue
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return append([]int(nil), fallback...)
	}
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
