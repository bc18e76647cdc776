package store

import (
	"context"
	"sort"
	"time"

	"github.com/conciergelabs/concierge/pkg/models"
)

// --- voice settings (singleton) ---

// GetVoiceSettings returns a copy of the settings singleton, if set.
func (s *Store) GetVoiceSettings() (*models.VoiceSettings, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.voiceSettings == nil {
		return nil, false
	}
	return s.voiceSettings.Clone(), true
}

// PutVoiceSettings replaces the settings singleton.
func (s *Store) PutVoiceSettings(ctx context.Context, settings *models.VoiceSettings) {
	cp := settings.Clone()
	s.mu.Lock()
	s.voiceSettings = cp
	s.mu.Unlock()
	s.writeThrough(ctx, "runtime_state", "key", "voice_recovery_settings", cp)
}

// --- voice jobs ---

// PutVoiceJob inserts or replaces a job.
func (s *Store) PutVoiceJob(ctx context.Context, job *models.VoiceJob) {
	cp := job.Clone()
	s.mu.Lock()
	s.voiceJobs[job.ID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollVoiceJobs, "jobId", job.ID, cp)
}

// GetVoiceJob returns a copy of the job, if present.
func (s *Store) GetVoiceJob(id string) (*models.VoiceJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.voiceJobs[id]
	if !ok {
		return nil, false
	}
	return job.Clone(), true
}

// VoiceJobByRecoveryKey returns any job holding the recovery key.
func (s *Store) VoiceJobByRecoveryKey(key string) (*models.VoiceJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, job := range s.voiceJobs {
		if job.RecoveryKey == key {
			return job.Clone(), true
		}
	}
	return nil, false
}

// ListVoiceJobs returns all jobs, newest first.
func (s *Store) ListVoiceJobs() []*models.VoiceJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.VoiceJob, 0, len(s.voiceJobs))
	for _, job := range s.voiceJobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// DueVoiceJobs returns queued/retrying jobs with nextRunAt <= now,
// ordered by nextRunAt ascending.
func (s *Store) DueVoiceJobs(now time.Time) []*models.VoiceJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VoiceJob
	for _, job := range s.voiceJobs {
		if (job.Status == models.JobStatusQueued || job.Status == models.JobStatusRetrying) && !job.NextRunAt.After(now) {
			out = append(out, job.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })
	return out
}

// PendingVoiceJobCount counts queued and retrying jobs.
func (s *Store) PendingVoiceJobCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.voiceJobs {
		if job.Status == models.JobStatusQueued || job.Status == models.JobStatusRetrying {
			n++
		}
	}
	return n
}

// --- voice calls ---

// PutVoiceCall inserts or replaces a call record.
func (s *Store) PutVoiceCall(ctx context.Context, call *models.VoiceCall) {
	cp := call.Clone()
	s.mu.Lock()
	s.voiceCalls[call.ID] = cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollVoiceCalls, "callId", call.ID, cp)
}

// GetVoiceCall returns a copy of the call, if present.
func (s *Store) GetVoiceCall(id string) (*models.VoiceCall, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	call, ok := s.voiceCalls[id]
	if !ok {
		return nil, false
	}
	return call.Clone(), true
}

// VoiceCallByRecoveryKey returns the call created for a recovery key.
func (s *Store) VoiceCallByRecoveryKey(key string) (*models.VoiceCall, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, call := range s.voiceCalls {
		if call.RecoveryKey == key {
			return call.Clone(), true
		}
	}
	return nil, false
}

// VoiceCallByProviderID returns the call matching a provider call id.
func (s *Store) VoiceCallByProviderID(providerCallID string) (*models.VoiceCall, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, call := range s.voiceCalls {
		if call.ProviderCallID != "" && call.ProviderCallID == providerCallID {
			return call.Clone(), true
		}
	}
	return nil, false
}

// ListVoiceCalls returns all calls, newest first.
func (s *Store) ListVoiceCalls() []*models.VoiceCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.VoiceCall, 0, len(s.voiceCalls))
	for _, call := range s.voiceCalls {
		out = append(out, call.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// ActiveVoiceCalls returns calls in initiated/ringing/in_progress state.
func (s *Store) ActiveVoiceCalls() []*models.VoiceCall {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.VoiceCall
	for _, call := range s.voiceCalls {
		switch call.Status {
		case models.CallStatusInitiated, models.CallStatusRinging, models.CallStatusInProgress:
			out = append(out, call.Clone())
		}
	}
	return out
}

// VoiceCallsDispatchedSince counts calls whose first attempt happened at
// or after t, optionally restricted to one user.
func (s *Store) VoiceCallsDispatchedSince(t time.Time, userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, call := range s.voiceCalls {
		if userID != "" && call.UserID != userID {
			continue
		}
		for _, attempt := range call.Attempts {
			if attempt.Status == models.CallStatusInitiated && !attempt.Timestamp.Before(t) {
				n++
				break
			}
		}
	}
	return n
}

// TerminalVoiceCallsSince returns (terminal, failed) counts for calls
// updated at or after t.
func (s *Store) TerminalVoiceCallsSince(t time.Time) (terminal, failed int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, call := range s.voiceCalls {
		if !call.IsTerminal() || call.UpdatedAt.Before(t) {
			continue
		}
		terminal++
		if call.Status == models.CallStatusFailed {
			failed++
		}
	}
	return terminal, failed
}

// CallIdempotencyGet reports whether a provider call was already placed
// for the recovery key.
func (s *Store) CallIdempotencyGet(recoveryKey string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.callIdempotency[recoveryKey]
	return v, ok
}

// CallIdempotencySet marks a recovery key as dispatched.
func (s *Store) CallIdempotencySet(ctx context.Context, recoveryKey, providerCallID string) {
	s.mu.Lock()
	s.callIdempotency[recoveryKey] = providerCallID
	s.mu.Unlock()
	s.writeThrough(ctx, "runtime_state", "key", "voice_call_idem:"+recoveryKey,
		map[string]string{"key": "voice_call_idem:" + recoveryKey, "providerCallId": providerCallID})
}

// --- suppressions ---

// PutVoiceSuppression records an opt-out (idempotent per user).
func (s *Store) PutVoiceSuppression(ctx context.Context, sup *models.VoiceSuppression) {
	cp := *sup
	s.mu.Lock()
	s.voiceSuppressions[sup.UserID] = &cp
	s.mu.Unlock()
	s.writeThrough(ctx, CollVoiceSuppressions, "userId", sup.UserID, &cp)
}

// DeleteVoiceSuppression removes an opt-out.
func (s *Store) DeleteVoiceSuppression(ctx context.Context, userID string) bool {
	s.mu.Lock()
	_, existed := s.voiceSuppressions[userID]
	delete(s.voiceSuppressions, userID)
	s.mu.Unlock()
	if existed {
		s.deleteThrough(ctx, CollVoiceSuppressions, "userId", userID)
	}
	return existed
}

// IsVoiceSuppressed reports whether the user opted out.
func (s *Store) IsVoiceSuppressed(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.voiceSuppressions[userID]
	return ok
}

// ListVoiceSuppressions returns all opt-outs, newest first.
func (s *Store) ListVoiceSuppressions() []models.VoiceSuppression {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VoiceSuppression, 0, len(s.voiceSuppressions))
	for _, sup := range s.voiceSuppressions {
		out = append(out, *sup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// --- alerts ---

// AppendVoiceAlert stores an alert, ring-buffered at 500 entries.
func (s *Store) AppendVoiceAlert(ctx context.Context, alert *models.VoiceAlert) {
	cp := *alert
	s.mu.Lock()
	s.voiceAlerts = append(s.voiceAlerts, &cp)
	if len(s.voiceAlerts) > alertRingSize {
		s.voiceAlerts = s.voiceAlerts[len(s.voiceAlerts)-alertRingSize:]
	}
	s.mu.Unlock()
	s.writeThrough(ctx, CollVoiceAlerts, "alertId", alert.ID, &cp)
}

// ListVoiceAlerts returns alerts, newest first, up to limit (0 = all).
func (s *Store) ListVoiceAlerts(limit int) []models.VoiceAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.VoiceAlert, 0, len(s.voiceAlerts))
	for i := len(s.voiceAlerts) - 1; i >= 0; i-- {
		out = append(out, *s.voiceAlerts[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
