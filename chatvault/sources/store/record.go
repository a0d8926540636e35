package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChatKind distinguishes private chats (keyed by user id) from group chats
// (keyed by group id).
type ChatKind string

const (
	KindPrivate ChatKind = "private"
	KindGroup   ChatKind = "group"
)

func (k ChatKind) Valid() bool {
	return k == KindPrivate || k == KindGroup
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// MessageRecord is one line of a backup file. Immutable once written.
type MessageRecord struct {
	Timestamp  time.Time `json:"timestamp"`
	Role       string    `json:"role"`
	Content    string    `json:"content"`
	SenderID   string    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
}

// MarshalLine serializes the record as a single JSON line, newline included.
func (m MessageRecord) MarshalLine() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func ParseLine(line []byte) (MessageRecord, error) {
	var rec MessageRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return MessageRecord{}, fmt.Errorf("parse record line: %w", err)
	}
	return rec, nil
}

// LogFileName returns the active backup filename for a conversation,
// e.g. "12345_private.jsonl".
func LogFileName(chatID string, kind ChatKind) string {
	return fmt.Sprintf("%s_%s.jsonl", chatID, kind)
}

// RotatedFileName returns the timestamp-suffixed name a full file is renamed
// to, e.g. "12345_private_20250614_093011.jsonl".
func RotatedFileName(chatID string, kind ChatKind, at time.Time) string {
	return fmt.Sprintf("%s_%s_%s.jsonl", chatID, kind, at.Format("20060102_150405"))
}
