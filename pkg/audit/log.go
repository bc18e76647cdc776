// Package audit maintains the hash-chained admin activity log. Every
// entry carries an HMAC over its canonical JSON plus the previous
// entry's hash, so any tampering breaks verification from that entry
// onward.
package audit

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/conciergelabs/concierge/pkg/config"
	"github.com/conciergelabs/concierge/pkg/models"
	"github.com/conciergelabs/concierge/pkg/store"
)

// HashVersion identifies the canonicalization scheme, bumped if the
// hashed field set ever changes.
const HashVersion = 1

// Log appends and verifies chain entries.
type Log struct {
	store  *store.Store
	secret []byte
	logger *slog.Logger
	now    func() time.Time

	// Serializes append so prevHash always reflects the latest entry.
	mu sync.Mutex
}

func NewLog(cfg *config.Settings, st *store.Store) *Log {
	return &Log{
		store:  st,
		secret: []byte(cfg.ActivityLogSecret),
		logger: slog.With("component", "audit_log"),
		now:    time.Now,
	}
}

// Record appends one admin action to the chain and returns the entry.
func (l *Log) Record(ctx context.Context, adminID, action, resource, resourceID string, changes map[string]any) *models.AdminActivityEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash := ""
	if last, ok := l.store.LastActivityEntry(); ok {
		prevHash = last.EntryHash
	}
	entry := &models.AdminActivityEntry{
		ID:          l.store.NextID("audit"),
		AdminID:     adminID,
		Action:      action,
		Resource:    resource,
		ResourceID:  resourceID,
		Changes:     changes,
		Timestamp:   l.now().UTC(),
		PrevHash:    prevHash,
		HashVersion: HashVersion,
	}
	entry.EntryHash = EntryHash(l.secret, entry)
	l.store.AppendActivityEntry(ctx, entry)
	l.logger.Info("admin action recorded", "admin_id", adminID, "action", action, "resource", resource)
	return entry
}

// Entries returns the chain in insertion order.
func (l *Log) Entries() []*models.AdminActivityEntry {
	return l.store.ListActivityEntries()
}

// VerifyIntegrity rebuilds the chain and reports every broken entry.
func (l *Log) VerifyIntegrity() IntegrityReport {
	return VerifyEntries(l.secret, l.store.ListActivityEntries())
}

// IntegrityError flags one broken entry.
type IntegrityError struct {
	Index int    `json:"index"`
	ID    string `json:"id"`
	Code  string `json:"code"`
}

// Error codes reported by VerifyEntries.
const (
	ErrCodePrevHashMismatch  = "prev_hash_mismatch"
	ErrCodeMissingEntryHash  = "missing_entry_hash"
	ErrCodeEntryHashMismatch = "entry_hash_mismatch"
)

// IntegrityReport is the result of a full chain scan.
type IntegrityReport struct {
	Valid   bool             `json:"valid"`
	Entries int              `json:"entries"`
	Errors  []IntegrityError `json:"errors,omitempty"`
}

// VerifyEntries checks an ordered chain against the secret. Each entry
// can fail independently; a single tamper surfaces on the entry itself
// and on its successor's prevHash link.
func VerifyEntries(secret []byte, entries []*models.AdminActivityEntry) IntegrityReport {
	report := IntegrityReport{Valid: true, Entries: len(entries)}
	prevHash := ""
	for i, entry := range entries {
		if entry.PrevHash != prevHash {
			report.Errors = append(report.Errors, IntegrityError{Index: i, ID: entry.ID, Code: ErrCodePrevHashMismatch})
		}
		if entry.EntryHash == "" {
			report.Errors = append(report.Errors, IntegrityError{Index: i, ID: entry.ID, Code: ErrCodeMissingEntryHash})
		} else if entry.EntryHash != EntryHash(secret, entry) {
			report.Errors = append(report.Errors, IntegrityError{Index: i, ID: entry.ID, Code: ErrCodeEntryHashMismatch})
		}
		prevHash = entry.EntryHash
	}
	report.Valid = len(report.Errors) == 0
	return report
}

// EntryHash computes HMAC-SHA256 over the entry's canonical JSON with
// entryHash excluded.
func EntryHash(secret []byte, entry *models.AdminActivityEntry) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(canonicalJSON(entry))
	return hex.EncodeToString(mac.Sum(nil))
}

// canonicalJSON renders the entry compactly with sorted keys. Marshal
// through a map so key order is deterministic regardless of struct
// layout.
func canonicalJSON(entry *models.AdminActivityEntry) []byte {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return nil
	}
	var asMap map[string]any
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		return nil
	}
	delete(asMap, "entryHash")
	canonical, err := json.Marshal(asMap)
	if err != nil {
		return nil
	}
	return canonical
}
