package models

import (
	"io"
	"time"
)

// Document is a file submitted to a session
type Document struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	ContentType   string    `json:"contentType,omitempty"`
	Size          int64     `json:"size"`
	ContentHandle string    `json:"contentHandle"`
	UploadID      string    `json:"uploadId"`
	AddedAt       time.Time `json:"addedAt"`
}

// File is an incoming payload from a file input, drop zone or signature image picker
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// DocumentList is the response for listing documents
type DocumentList struct {
	Documents []Document `json:"documents"`
	Revision  uint64     `json:"revision"`
}
