package types

import (
	"time"

	"github.com/google/uuid"
)

// SessionID identifies one selection session (one form mount).
type SessionID string

// TaskID is the local identifier of a submitted task in history.
// The backend's own id is kept separately as RemoteTaskID.
type TaskID string

// NewSessionID generates a UUIDv7 session identifier.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewSessionID() SessionID {
	return SessionID(uuid.Must(uuid.NewV7()).String())
}

// NewTaskID generates a UUIDv7 task identifier.
// Time-ordered IDs keep task history inserts clustered and list order stable.
func NewTaskID() TaskID {
	return TaskID(uuid.Must(uuid.NewV7()).String())
}

// ParseSessionID validates and converts a string to SessionID.
func ParseSessionID(s string) (SessionID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return SessionID(s), nil
}

// ParseTaskID validates and converts a string to TaskID.
func ParseTaskID(s string) (TaskID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", err
	}
	return TaskID(s), nil
}

// TaskIDTime extracts the timestamp embedded in a UUIDv7 task ID.
// Returns zero time for invalid UUIDs; caller should check IsZero().
func TaskIDTime(id TaskID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
