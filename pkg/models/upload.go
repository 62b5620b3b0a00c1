package models

import "time"

// UploadStatus represents the state of a simulated upload
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadCompleted UploadStatus = "completed"
)

// Progress values reported for an upload
const (
	ProgressStarted  = 30
	ProgressComplete = 100
)

// Upload tracks one file selection or drop from start to completion
type Upload struct {
	ID          string       `json:"id"`
	Files       []string     `json:"files"`
	Percent     int          `json:"percent"`
	Status      UploadStatus `json:"status"`
	StartedAt   time.Time    `json:"startedAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}
