package models

// SignatureKind tags which signature representation is active
type SignatureKind string

const (
	SignatureNone  SignatureKind = "none"
	SignatureDrawn SignatureKind = "drawn"
	SignatureTyped SignatureKind = "typed"
	SignatureImage SignatureKind = "image"
)

// Signature holds at most one active representation, selected by Kind
type Signature struct {
	Kind         SignatureKind `json:"kind"`
	DrawnDataURL string        `json:"drawnDataUrl,omitempty"`
	TypedText    string        `json:"typedText,omitempty"`
	ImageURL     string        `json:"imageUrl,omitempty"`
}

// IsEmpty reports whether no representation is set
func (s Signature) IsEmpty() bool {
	return s.Kind == "" || s.Kind == SignatureNone
}

// Point is a canvas coordinate
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// StrokeRequest is the payload for drawing on the signature canvas
type StrokeRequest struct {
	Points []Point `json:"points"`
}

// CanvasRequest is the payload for attaching a signature canvas
type CanvasRequest struct {
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// TypedSignatureRequest is the payload for setting a typed signature
type TypedSignatureRequest struct {
	Text string `json:"text"`
}

// PenColorRequest is the payload for changing the pen color
type PenColorRequest struct {
	Color string `json:"color"`
}
