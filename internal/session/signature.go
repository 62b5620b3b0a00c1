package session

import (
	"fmt"
	"log"

	"github.com/shehryarbajwa/docdesk/internal/canvas"
	"github.com/shehryarbajwa/docdesk/pkg/models"
)

// AttachCanvas mounts a drawing surface for drawn signatures
func (s *Store) AttachCanvas(c *canvas.Canvas) error {
	if c == nil {
		return fmt.Errorf("%w: canvas is nil", ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authenticated {
		return ErrUnauthenticated
	}
	c.SetPenColor(s.penColor)
	s.canvas = c
	return nil
}

// Canvas returns the attached drawing surface, or nil
func (s *Store) Canvas() *canvas.Canvas {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canvas
}

// Draw adds a stroke to the attached canvas
func (s *Store) Draw(points []models.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMethodLocked(models.SignatureDrawn); err != nil {
		return err
	}
	if s.canvas == nil {
		return fmt.Errorf("%w: no signature canvas initialized", ErrInvalidState)
	}
	return s.canvas.AddStroke(points)
}

// SaveSignature captures the canvas as a PNG data URL
func (s *Store) SaveSignature() error {
	if err := s.saveSignature(); err != nil {
		return err
	}
	s.publish(models.Event{Type: models.EventSignatureChanged})
	return nil
}

func (s *Store) saveSignature() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkMethodLocked(models.SignatureDrawn); err != nil {
		return err
	}
	if s.canvas == nil {
		return fmt.Errorf("%w: no signature canvas initialized", ErrInvalidState)
	}

	url, err := s.canvas.DataURL()
	if err != nil {
		return err
	}
	s.signature = models.Signature{Kind: models.SignatureDrawn, DrawnDataURL: url}
	return nil
}

// ClearSignature erases the canvas and drops every signature representation
func (s *Store) ClearSignature() error {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return ErrUnauthenticated
	}

	var handle string
	if s.signature.Kind == models.SignatureImage {
		handle = s.signature.ImageURL
	}
	if s.canvas != nil {
		s.canvas.Clear()
	}
	s.signature = models.Signature{Kind: models.SignatureNone}
	s.mu.Unlock()

	s.blobs.Revoke(handle)
	s.publish(models.Event{Type: models.EventSignatureChanged})
	return nil
}

// SetTypedSignature stores text verbatim. Empty text clears a typed signature.
func (s *Store) SetTypedSignature(text string) error {
	s.mu.Lock()
	if err := s.checkMethodLocked(models.SignatureTyped); err != nil {
		s.mu.Unlock()
		return err
	}

	if text == "" {
		s.signature = models.Signature{Kind: models.SignatureNone}
	} else {
		s.signature = models.Signature{Kind: models.SignatureTyped, TypedText: text}
	}
	s.mu.Unlock()

	s.publish(models.Event{Type: models.EventSignatureChanged})
	return nil
}

// AttachSignatureImage stores an uploaded signature image and references it by handle
func (s *Store) AttachSignatureImage(f *models.File) error {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	if f == nil {
		s.mu.Unlock()
		log.Printf("⚠️ No file selected for signature image (session %s)", short(s.id))
		return ErrNoFileSelected
	}
	if err := s.checkMethodLocked(models.SignatureImage); err != nil {
		s.mu.Unlock()
		return err
	}
	generation := s.generation
	s.mu.Unlock()

	b, err := s.blobs.Put(f.Name, f.ContentType, f.Body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.authenticated || s.generation != generation {
		s.mu.Unlock()
		s.blobs.Revoke(b.Handle)
		return ErrUnauthenticated
	}
	if err := s.checkMethodLocked(models.SignatureImage); err != nil {
		s.mu.Unlock()
		s.blobs.Revoke(b.Handle)
		return err
	}
	previous := s.signature.ImageURL
	s.signature = models.Signature{Kind: models.SignatureImage, ImageURL: b.Handle}
	s.mu.Unlock()

	s.blobs.Revoke(previous)
	s.publish(models.Event{Type: models.EventSignatureChanged})
	return nil
}

// SetPenColor stores the color as given and applies it to the canvas
func (s *Store) SetPenColor(color string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.authenticated {
		return ErrUnauthenticated
	}
	s.penColor = color
	if s.canvas != nil {
		s.canvas.SetPenColor(color)
	}
	return nil
}

// Signature returns the active signature
func (s *Store) Signature() models.Signature {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signature
}

// checkMethodLocked rejects switching signature methods until the current one is cleared
func (s *Store) checkMethodLocked(kind models.SignatureKind) error {
	if !s.authenticated {
		return ErrUnauthenticated
	}
	if s.signature.IsEmpty() || s.signature.Kind == kind {
		return nil
	}
	return fmt.Errorf("%w: %s signature must be cleared first", ErrSignatureLocked, s.signature.Kind)
}
