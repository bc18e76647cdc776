package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

func newLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(&config.Settings{ActivityLogSecret: "audit-secret"}, store.New(nil, nil))
}

func TestRecordBuildsContiguousChain(t *testing.T) {
	log := newLog(t)
	ctx := context.Background()

	first := log.Record(ctx, "admin_1", "update_settings", "voice_settings", "", map[string]any{
		"before": map[string]any{"enabled": false},
		"after":  map[string]any{"enabled": true},
	})
	second := log.Record(ctx, "admin_1", "suppress_user", "voice_suppression", "user_1", nil)
	third := log.Record(ctx, "admin_2", "unsuppress_user", "voice_suppression", "user_1", nil)

	assert.Equal(t, "", first.PrevHash)
	assert.Equal(t, first.EntryHash, second.PrevHash)
	assert.Equal(t, second.EntryHash, third.PrevHash)
	assert.Equal(t, HashVersion, first.HashVersion)
	assert.NotEmpty(t, first.EntryHash)

	report := log.VerifyIntegrity()
	assert.True(t, report.Valid)
	assert.Equal(t, 3, report.Entries)
	assert.Empty(t, report.Errors)
}

func TestEntryHashIsDeterministic(t *testing.T) {
	log := newLog(t)
	entry := log.Record(context.Background(), "admin_1", "update_settings", "voice_settings", "", map[string]any{"after": map[string]any{"maxCallsPerDay": 5}})

	assert.Equal(t, entry.EntryHash, EntryHash(log.secret, entry))
	assert.NotEqual(t, entry.EntryHash, EntryHash([]byte("other-secret"), entry))
}

func TestVerifyDetectsTamperedEntry(t *testing.T) {
	log := newLog(t)
	ctx := context.Background()
	log.Record(ctx, "admin_1", "a", "r", "", nil)
	log.Record(ctx, "admin_1", "b", "r", "", nil)
	log.Record(ctx, "admin_1", "c", "r", "", nil)

	entries := log.Entries()
	entries[1].Action = "b-modified"

	report := VerifyEntries(log.secret, entries)
	require.False(t, report.Valid)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Errors[0].Index)
	assert.Equal(t, ErrCodeEntryHashMismatch, report.Errors[0].Code)
}

func TestVerifyDetectsRewrittenHashDownstream(t *testing.T) {
	log := newLog(t)
	ctx := context.Background()
	log.Record(ctx, "admin_1", "a", "r", "", nil)
	log.Record(ctx, "admin_1", "b", "r", "", nil)
	log.Record(ctx, "admin_1", "c", "r", "", nil)

	// An attacker who edits an entry and recomputes its hash without the
	// secret still breaks the next entry's prevHash link.
	entries := log.Entries()
	entries[1].Action = "b-modified"
	entries[1].EntryHash = "0000"

	report := VerifyEntries(log.secret, entries)
	require.False(t, report.Valid)
	codes := map[string]bool{}
	for _, e := range report.Errors {
		codes[e.Code] = true
	}
	assert.True(t, codes[ErrCodeEntryHashMismatch])
	assert.True(t, codes[ErrCodePrevHashMismatch])
}

func TestVerifyDetectsMissingHash(t *testing.T) {
	log := newLog(t)
	log.Record(context.Background(), "admin_1", "a", "r", "", nil)

	entries := log.Entries()
	entries[0].EntryHash = ""

	report := VerifyEntries(log.secret, entries)
	require.False(t, report.Valid)
	assert.Equal(t, ErrCodeMissingEntryHash, report.Errors[0].Code)
}

func TestVerifyDetectsDeletedEntry(t *testing.T) {
	log := newLog(t)
	ctx := context.Background()
	log.Record(ctx, "admin_1", "a", "r", "", nil)
	log.Record(ctx, "admin_1", "b", "r", "", nil)
	log.Record(ctx, "admin_1", "c", "r", "", nil)

	entries := log.Entries()
	entries = append(entries[:1], entries[2:]...)

	report := VerifyEntries(log.secret, entries)
	require.False(t, report.Valid)
	assert.Equal(t, ErrCodePrevHashMismatch, report.Errors[0].Code)
}

func TestVerifyEmptyChain(t *testing.T) {
	report := VerifyEntries([]byte("s"), []*models.AdminActivityEntry{})
	assert.True(t, report.Valid)
	assert.Equal(t, 0, report.Entries)
}
