package voice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/models"
)

func TestExtractProviderCallID(t *testing.T) {
	assert.Equal(t, "c1", extractProviderCallID(map[string]any{"call_id": "c1"}))
	assert.Equal(t, "c2", extractProviderCallID(map[string]any{"callId": "c2"}))
	assert.Equal(t, "c3", extractProviderCallID(map[string]any{"data": map[string]any{"uuid": "c3"}}))
	assert.Equal(t, "", extractProviderCallID(map[string]any{"status": "completed"}))
	// Numeric ids are not coerced.
	assert.Equal(t, "", extractProviderCallID(map[string]any{"id": 42}))
}

func TestNormalizeProviderStatus(t *testing.T) {
	cases := map[string]string{
		"Completed":   models.CallStatusCompleted,
		"ended":       models.CallStatusCompleted,
		"no_answer":   models.CallStatusFailed,
		"busy":        models.CallStatusFailed,
		"ringing":     models.CallStatusRinging,
		"in-progress": models.CallStatusInProgress,
		"answered":    models.CallStatusInProgress,
		"mystery":     "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, normalizeProviderStatus(map[string]any{"status": raw}), raw)
	}
	assert.Equal(t, models.CallStatusCompleted,
		normalizeProviderStatus(map[string]any{"data": map[string]any{"status": "done"}}))
}

func TestExtractOutcomeNormalizes(t *testing.T) {
	assert.Equal(t, "do_not_call", extractOutcome(map[string]any{"outcome": "Do Not Call"}))
	assert.Equal(t, "requested_callback", extractOutcome(map[string]any{"disposition": "requested-callback"}))
	assert.Equal(t, "converted", extractOutcome(map[string]any{"data": map[string]any{"result": "converted"}}))
	assert.Equal(t, "", extractOutcome(map[string]any{}))
}

func TestProviderEventKey(t *testing.T) {
	assert.Equal(t, "evt_1", providerEventKey(map[string]any{"event_id": "evt_1", "status": "x"}))

	// Without an explicit id the payload hash is stable across
	// redeliveries and distinct across payloads.
	a := providerEventKey(map[string]any{"call_id": "c1", "status": "completed"})
	b := providerEventKey(map[string]any{"call_id": "c1", "status": "completed"})
	c := providerEventKey(map[string]any{"call_id": "c1", "status": "failed"})
	require.NotEmpty(t, a)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestInQuietHours(t *testing.T) {
	// Disabled window.
	assert.False(t, inQuietHours(3, 9, 9))

	// Same-day window 9..17.
	assert.False(t, inQuietHours(8, 9, 17))
	assert.True(t, inQuietHours(9, 9, 17))
	assert.True(t, inQuietHours(16, 9, 17))
	assert.False(t, inQuietHours(17, 9, 17))

	// Overnight window 21..9.
	assert.True(t, inQuietHours(23, 21, 9))
	assert.True(t, inQuietHours(3, 21, 9))
	assert.False(t, inQuietHours(12, 21, 9))
}

func TestNextQuietExit(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:00 New York inside a 21..9 window exits at 09:00 local next day.
	now := time.Date(2026, 8, 26, 3, 0, 0, 0, time.UTC) // 23:00 Aug 25 local
	exit := nextQuietExit(now, loc, 21, 9)
	assert.Equal(t, time.Date(2026, 8, 26, 13, 0, 0, 0, time.UTC), exit)

	// Past today's exit hour, the exit rolls to tomorrow.
	now = time.Date(2026, 8, 25, 18, 0, 0, 0, time.UTC) // 14:00 local
	exit = nextQuietExit(now, loc, 9, 13)
	assert.Equal(t, time.Date(2026, 8, 26, 17, 0, 0, 0, time.UTC), exit)
}

func TestNextQuietExitAcrossDSTFallBack(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// Clocks fall back Nov 1 2026. 23:00 Oct 31 inside a 22..9 window
	// must exit at 09:00 local the next day (EST, UTC-5), never at a
	// wall-clock hour still inside the window.
	now := time.Date(2026, 11, 1, 3, 0, 0, 0, time.UTC) // 23:00 Oct 31 local (EDT)
	exit := nextQuietExit(now, loc, 22, 9)

	assert.Equal(t, time.Date(2026, 11, 1, 14, 0, 0, 0, time.UTC), exit)
	local := exit.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.False(t, inQuietHours(local.Hour(), 22, 9))
}

func TestResolveLocationFallbackChain(t *testing.T) {
	assert.Equal(t, "America/New_York", resolveLocation("America/New_York", "UTC").String())
	assert.Equal(t, "Europe/Berlin", resolveLocation("not-a-zone", "Europe/Berlin").String())
	assert.Equal(t, "UTC", resolveLocation("not-a-zone", "also-bad").String())
	assert.Equal(t, "UTC", resolveLocation("", "").String())
}
