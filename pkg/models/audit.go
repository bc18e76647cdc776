package models

import "time"

// AdminActivityEntry is one append-only record in the hash-chained
// admin activity log. EntryHash covers every other field; PrevHash is
// the previous entry's EntryHash, "" for the first entry.
type AdminActivityEntry struct {
	ID          string         `json:"id" bson:"id"`
	AdminID     string         `json:"adminId" bson:"adminId"`
	Action      string         `json:"action" bson:"action"`
	Resource    string         `json:"resource" bson:"resource"`
	ResourceID  string         `json:"resourceId,omitempty" bson:"resourceId,omitempty"`
	Changes     map[string]any `json:"changes,omitempty" bson:"changes,omitempty"`
	Timestamp   time.Time      `json:"timestamp" bson:"timestamp"`
	PrevHash    string         `json:"prevHash" bson:"prevHash"`
	HashVersion int            `json:"hashVersion" bson:"hashVersion"`
	EntryHash   string         `json:"entryHash" bson:"entryHash"`
}

// Clone returns a deep copy.
func (e *AdminActivityEntry) Clone() *AdminActivityEntry {
	if e == nil {
		return nil
	}
	out := *e
	if e.Changes != nil {
		changes := make(map[string]any, len(e.Changes))
		for k, v := range e.Changes {
			changes[k] = v
		}
		out.Changes = changes
	}
	return &out
}
