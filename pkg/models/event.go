package models

import "time"

// EventType names a session state transition
type EventType string

const (
	EventLogin            EventType = "login"
	EventLogout           EventType = "logout"
	EventUploadStarted    EventType = "upload.started"
	EventUploadCompleted  EventType = "upload.completed"
	EventUploadCancelled  EventType = "upload.cancelled"
	EventDocumentDeleted  EventType = "document.deleted"
	EventSignatureChanged EventType = "signature.changed"
	EventSessionExpired   EventType = "session.expired"
)

// Event is published to subscribers whenever session state changes
type Event struct {
	Type       EventType `json:"type"`
	SessionID  string    `json:"sessionId"`
	UploadID   string    `json:"uploadId,omitempty"`
	DocumentID string    `json:"documentId,omitempty"`
	Percent    int       `json:"percent,omitempty"`
	At         time.Time `json:"at"`
}
