package voice

import (
	"context"
	"fmt"
	"time"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/services"
)

// defaultSettings seeds the tenant singleton from environment config the
// first time anything reads it.
func defaultSettings(cfg *config.Settings, now time.Time) *models.VoiceSettings {
	return &models.VoiceSettings{
		Enabled:                    cfg.VoiceSchedulerEnabled,
		KillSwitch:                 cfg.VoiceGlobalKillSwitch,
		AbandonmentMinutes:         cfg.VoiceAbandonmentMinutes,
		MaxAttemptsPerCart:         cfg.VoiceMaxAttemptsPerCart,
		MaxCallsPerUserPerDay:      cfg.VoiceMaxCallsPerUserPerDay,
		MaxCallsPerDay:             cfg.VoiceMaxCallsPerDay,
		DailyBudgetUsd:             cfg.VoiceDailyBudgetUsd,
		EstimatedCostPerCallUsd:    cfg.VoiceEstimatedCostUsd,
		QuietHoursStart:            cfg.VoiceQuietHoursStart,
		QuietHoursEnd:              cfg.VoiceQuietHoursEnd,
		RetryBackoffSeconds:        append([]int(nil), cfg.VoiceRetryBackoffSeconds...),
		ScriptVersion:              cfg.VoiceScriptVersion,
		ScriptTemplate:             cfg.VoiceScriptTemplate,
		AssistantID:                cfg.SuperUAssistantID,
		FromPhoneNumber:            cfg.SuperUFromPhoneNumber,
		DefaultTimezone:            cfg.VoiceDefaultTimezone,
		AlertBacklogThreshold:      cfg.VoiceAlertBacklogThreshold,
		AlertFailureRatioThreshold: cfg.VoiceAlertFailureRatio,
		UpdatedAt:                  now,
	}
}

// Settings returns the current voice settings, creating them from config
// defaults on first read.
func (s *Service) Settings(ctx context.Context) *models.VoiceSettings {
	if settings, ok := s.store.GetVoiceSettings(); ok {
		return settings
	}
	settings := defaultSettings(s.cfg, s.now().UTC())
	s.store.PutVoiceSettings(ctx, settings)
	return settings
}

// UpdateSettings applies validated partial updates and persists the
// result.
func (s *Service) UpdateSettings(ctx context.Context, updates map[string]any) (*models.VoiceSettings, error) {
	settings := s.Settings(ctx)
	for key, value := range updates {
		switch key {
		case "enabled":
			v, ok := value.(bool)
			if !ok {
				return nil, services.NewValidationError(key, "must be a boolean")
			}
			settings.Enabled = v
		case "killSwitch":
			v, ok := value.(bool)
			if !ok {
				return nil, services.NewValidationError(key, "must be a boolean")
			}
			settings.KillSwitch = v
		case "abandonmentMinutes":
			v, err := intSetting(key, value, 1)
			if err != nil {
				return nil, err
			}
			settings.AbandonmentMinutes = v
		case "maxAttemptsPerCart":
			v, err := intSetting(key, value, 1)
			if err != nil {
				return nil, err
			}
			settings.MaxAttemptsPerCart = v
		case "maxCallsPerUserPerDay":
			v, err := intSetting(key, value, 1)
			if err != nil {
				return nil, err
			}
			settings.MaxCallsPerUserPerDay = v
		case "maxCallsPerDay":
			v, err := intSetting(key, value, 1)
			if err != nil {
				return nil, err
			}
			settings.MaxCallsPerDay = v
		case "dailyBudgetUsd":
			v, err := floatSetting(key, value, 0)
			if err != nil {
				return nil, err
			}
			settings.DailyBudgetUsd = v
		case "estimatedCostPerCallUsd":
			v, err := floatSetting(key, value, 0)
			if err != nil {
				return nil, err
			}
			settings.EstimatedCostPerCallUsd = v
		case "quietHoursStart":
			v, err := intSetting(key, value, 0)
			if err != nil || v > 23 {
				return nil, services.NewValidationError(key, "must be an hour in [0,23]")
			}
			settings.QuietHoursStart = v
		case "quietHoursEnd":
			v, err := intSetting(key, value, 0)
			if err != nil || v > 23 {
				return nil, services.NewValidationError(key, "must be an hour in [0,23]")
			}
			settings.QuietHoursEnd = v
		case "retryBackoffSeconds":
			backoff, err := backoffSetting(value)
			if err != nil {
				return nil, err
			}
			settings.RetryBackoffSeconds = backoff
		case "scriptVersion":
			settings.ScriptVersion = fmt.Sprint(value)
		case "scriptTemplate":
			settings.ScriptTemplate = fmt.Sprint(value)
		case "assistantId":
			settings.AssistantID = fmt.Sprint(value)
		case "fromPhoneNumber":
			settings.FromPhoneNumber = fmt.Sprint(value)
		case "defaultTimezone":
			name := fmt.Sprint(value)
			if _, err := time.LoadLocation(name); err != nil {
				return nil, services.NewValidationError(key, "must be a valid IANA timezone")
			}
			settings.DefaultTimezone = name
		case "alertBacklogThreshold":
			v, err := intSetting(key, value, 1)
			if err != nil {
				return nil, err
			}
			settings.AlertBacklogThreshold = v
		case "alertFailureRatioThreshold":
			v, err := floatSetting(key, value, 0)
			if err != nil || v <= 0 || v > 1 {
				return nil, services.NewValidationError(key, "must be a ratio in (0,1]")
			}
			settings.AlertFailureRatioThreshold = v
		default:
			return nil, services.NewValidationError(key, "is not a voice setting")
		}
	}
	settings.UpdatedAt = s.now().UTC()
	s.store.PutVoiceSettings(ctx, settings)
	return settings, nil
}

func intSetting(key string, value any, minimum int) (int, error) {
	switch v := value.(type) {
	case int:
		if v < minimum {
			return 0, services.NewValidationError(key, fmt.Sprintf("must be at least %d", minimum))
		}
		return v, nil
	case float64:
		n := int(v)
		if float64(n) != v || n < minimum {
			return 0, services.NewValidationError(key, fmt.Sprintf("must be an integer of at least %d", minimum))
		}
		return n, nil
	}
	return 0, services.NewValidationError(key, "must be a number")
}

func floatSetting(key string, value any, minimum float64) (float64, error) {
	switch v := value.(type) {
	case int:
		value = float64(v)
	case float64:
	default:
		return 0, services.NewValidationError(key, "must be a number")
	}
	f := value.(float64)
	if f < minimum {
		return 0, services.NewValidationError(key, fmt.Sprintf("must be at least %g", minimum))
	}
	return f, nil
}

func backoffSetting(value any) ([]int, error) {
	rows, ok := value.([]any)
	if !ok {
		if ints, ok := value.([]int); ok {
			rows = make([]any, len(ints))
			for i, n := range ints {
				rows[i] = n
			}
		} else {
			return nil, services.NewValidationError("retryBackoffSeconds", "must be a list of positive integers")
		}
	}
	if len(rows) == 0 {
		return nil, services.NewValidationError("retryBackoffSeconds", "must not be empty")
	}
	out := make([]int, 0, len(rows))
	for _, row := range rows {
		n, err := intSetting("retryBackoffSeconds", row, 1)
		if err != nil {
			return nil, err
		}
		if len(out) > 0 && n < out[len(out)-1] {
			return nil, services.NewValidationError("retryBackoffSeconds", "must be in ascending order")
		}
		out = append(out, n)
	}
	return out, nil
}
