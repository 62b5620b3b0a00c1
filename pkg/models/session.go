package models

import "time"

// SessionStatus represents the lifecycle state of a hosted session
type SessionStatus string

const (
	StatusActive   SessionStatus = "ACTIVE"
	StatusClosed   SessionStatus = "CLOSED"
	StatusTimedOut SessionStatus = "TIMED_OUT"
)

// Session describes a hosted document session
type Session struct {
	ID            string        `json:"id"`
	Status        SessionStatus `json:"status"`
	Authenticated bool          `json:"authenticated"`
	CreatedAt     time.Time     `json:"createdAt"`
	ExpiresAt     time.Time     `json:"expiresAt"`
	Timeout       int           `json:"timeout"`
}

// CreateSessionRequest is the payload for creating a new session
type CreateSessionRequest struct {
	Timeout int `json:"timeout,omitempty"` // seconds
}

// Snapshot is a point-in-time view of a session's state
type Snapshot struct {
	SessionID     string            `json:"sessionId"`
	Authenticated bool              `json:"authenticated"`
	Documents     []Document        `json:"documents"`
	Uploads       map[string]Upload `json:"uploads"`
	Signature     Signature         `json:"signature"`
	PenColor      string            `json:"penColor"`
	Revision      uint64            `json:"revision"`
}
