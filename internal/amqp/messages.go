package amqp

import (
	"encoding/json"
	"time"
)

// Actions carried by sync messages.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// EntrySyncMessage is a lightweight notification that an entry changed.
// It carries only the entry ID and action; the worker fetches the full
// entry from the database. Version is the millisecond timestamp of the
// triggering write so consumers can drop stale duplicates.
type EntrySyncMessage struct {
	EntryID   string    `json:"entry_id"`
	Action    string    `json:"action"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEntrySyncMessage creates a sync message stamped with the current time.
func NewEntrySyncMessage(entryID, action string) *EntrySyncMessage {
	now := time.Now()
	return &EntrySyncMessage{
		EntryID:   entryID,
		Action:    action,
		Version:   now.UnixMilli(),
		Timestamp: now,
	}
}

// ToJSON converts the message to JSON bytes
func (m *EntrySyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntrySyncMessageFromJSON creates a message from JSON bytes
func EntrySyncMessageFromJSON(data []byte) (*EntrySyncMessage, error) {
	var msg EntrySyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
