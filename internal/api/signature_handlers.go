package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shehryarbajwa/docdesk/internal/canvas"
	"github.com/shehryarbajwa/docdesk/pkg/models"
)

// AttachCanvas handles POST /v1/sessions/{id}/signature/canvas
func (h *Handler) AttachCanvas(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	req := models.CanvasRequest{Width: h.opts.CanvasWidth, Height: h.opts.CanvasHeight}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	// Fall back to the configured size, then enforce the raster bounds
	if req.Width == 0 {
		req.Width = h.opts.CanvasWidth
	}
	if req.Height == 0 {
		req.Height = h.opts.CanvasHeight
	}
	if !canvas.ValidSize(req.Width, req.Height) {
		writeError(w, badRequest(fmt.Sprintf("canvas must be between 1x1 and %dx%d", canvas.MaxWidth, canvas.MaxHeight)))
		return
	}

	c := canvas.New(req.Width, req.Height)
	if err := store.AttachCanvas(c); err != nil {
		writeError(w, err)
		return
	}

	width, height := c.Size()
	writeJSON(w, http.StatusCreated, models.CanvasRequest{Width: width, Height: height})
}

// DrawStroke handles POST /v1/sessions/{id}/signature/strokes
func (h *Handler) DrawStroke(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.StrokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Points) == 0 {
		writeError(w, badRequest("stroke has no points"))
		return
	}

	if err := store.Draw(req.Points); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SaveSignature handles POST /v1/sessions/{id}/signature/save
func (h *Handler) SaveSignature(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := store.SaveSignature(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, store.Signature())
}

// ClearSignature handles DELETE /v1/sessions/{id}/signature
func (h *Handler) ClearSignature(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := store.ClearSignature(); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, store.Signature())
}

// SetTypedSignature handles PUT /v1/sessions/{id}/signature/typed
func (h *Handler) SetTypedSignature(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.TypedSignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := store.SetTypedSignature(req.Text); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, store.Signature())
}

// AttachSignatureImage handles POST /v1/sessions/{id}/signature/image with a "file" part
func (h *Handler) AttachSignatureImage(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	f, closer, err := h.formFile(r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	if err := store.AttachSignatureImage(f); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, store.Signature())
}

// GetSignatureImage handles GET /v1/sessions/{id}/signature/image
func (h *Handler) GetSignatureImage(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	sig := store.Signature()
	if sig.Kind != models.SignatureImage {
		http.Error(w, "No uploaded signature image", http.StatusNotFound)
		return
	}

	b, err := store.Blobs().Get(sig.ImageURL)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	contentType := b.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	http.ServeContent(w, r, b.Name, b.CreatedAt, b.Reader())
}

// SetPenColor handles PUT /v1/sessions/{id}/signature/pen
func (h *Handler) SetPenColor(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req models.PenColorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := store.SetPenColor(req.Color); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
