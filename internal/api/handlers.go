package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/docdesk/internal/canvas"
	"github.com/shehryarbajwa/docdesk/internal/ratelimit"
	"github.com/shehryarbajwa/docdesk/internal/session"
	"github.com/shehryarbajwa/docdesk/pkg/models"
)

// Options configures request handling
type Options struct {
	MaxUploadMemory int64
	CanvasWidth     int
	CanvasHeight    int
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	sessionMgr *session.Manager
	limiter    *ratelimit.Limiter
	opts       Options
}

// NewHandler creates a new HTTP handler
func NewHandler(sessionMgr *session.Manager, limiter *ratelimit.Limiter, opts Options) *Handler {
	if opts.MaxUploadMemory <= 0 {
		opts.MaxUploadMemory = 32 << 20
	}
	if opts.CanvasWidth <= 0 {
		opts.CanvasWidth = canvas.DefaultWidth
	}
	if opts.CanvasHeight <= 0 {
		opts.CanvasHeight = canvas.DefaultHeight
	}
	return &Handler{
		sessionMgr: sessionMgr,
		limiter:    limiter,
		opts:       opts,
	}
}

// store resolves the {id} route variable to an active session store
func (h *Handler) store(r *http.Request) (*session.Store, error) {
	return h.sessionMgr.Store(mux.Vars(r)["id"])
}

// CreateSession handles POST /v1/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest

	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}
	}

	sess, err := h.sessionMgr.CreateSession(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusCreated, sess)
}

// GetSession handles GET /v1/sessions/{id}
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessionMgr.GetSession(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sess)
}

// ListSessions handles GET /v1/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	status := models.SessionStatus(r.URL.Query().Get("status"))
	sessions := h.sessionMgr.ListSessions(status)
	if sessions == nil {
		sessions = []models.Session{}
	}

	writeJSON(w, http.StatusOK, sessions)
}

// DeleteSession handles DELETE /v1/sessions/{id}
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.sessionMgr.DeleteSession(id); err != nil {
		writeError(w, err)
		return
	}
	if h.limiter != nil {
		h.limiter.Forget(id)
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetState handles GET /v1/sessions/{id}/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, store.Snapshot())
}

// Login handles POST /v1/sessions/{id}/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	store.Login()
	writeJSON(w, http.StatusOK, store.Snapshot())
}

// Logout handles POST /v1/sessions/{id}/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	store.Logout()
	writeJSON(w, http.StatusOK, store.Snapshot())
}

// UploadDocument handles POST /v1/sessions/{id}/documents with a single "file" part
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	// Missing part becomes a nil file
	f, closer, err := h.formFile(r, "file")
	if err != nil {
		writeError(w, err)
		return
	}
	if closer != nil {
		defer closer.Close()
	}

	upload, err := store.SelectFile(f)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, upload)
}

// DropDocuments handles POST /v1/sessions/{id}/documents/drop with any number of "files" parts
func (h *Handler) DropDocuments(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := r.ParseMultipartForm(h.opts.MaxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Invalid multipart body: "+err.Error(), http.StatusBadRequest)
		return
	}

	// Collect every "files" part
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}

	files := make([]models.File, 0, len(headers))
	for _, fh := range headers {
		part, err := fh.Open()
		if err != nil {
			writeError(w, err)
			return
		}
		defer part.Close()

		files = append(files, models.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Body:        part,
		})
	}

	upload, err := store.DropFiles(files)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, upload)
}

// ListDocuments handles GET /v1/sessions/{id}/documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !store.Authenticated() {
		writeError(w, session.ErrUnauthenticated)
		return
	}

	docs, revision := store.Documents()
	writeJSON(w, http.StatusOK, models.DocumentList{Documents: docs, Revision: revision})
}

// DownloadArchive handles GET /v1/sessions/{id}/documents/archive
func (h *Handler) DownloadArchive(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !store.Authenticated() {
		writeError(w, session.ErrUnauthenticated)
		return
	}

	docs, _ := store.Documents()
	handles := make([]string, len(docs))
	for i, d := range docs {
		handles[i] = d.ContentHandle
	}

	var buf bytes.Buffer
	if err := store.Blobs().WriteArchive(&buf, handles); err != nil {
		log.Printf("❌ Archive failed for session %s: %v", store.ID(), err)
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", `attachment; filename="documents.tar.gz"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// DeleteDocument handles DELETE /v1/sessions/{id}/documents/{docId}
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := store.DeleteDocument(mux.Vars(r)["docId"]); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteDocumentAt handles DELETE /v1/sessions/{id}/documents/at/{index}?rev=N
func (h *Handler) DeleteDocumentAt(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}

	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		http.Error(w, "index must be an integer", http.StatusBadRequest)
		return
	}
	revision, err := strconv.ParseUint(r.URL.Query().Get("rev"), 10, 64)
	if err != nil {
		http.Error(w, "rev query parameter is required", http.StatusBadRequest)
		return
	}

	if err := store.DeleteDocumentAt(index, revision); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListUploads handles GET /v1/sessions/{id}/uploads
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	store, err := h.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !store.Authenticated() {
		writeError(w, session.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, store.Progress())
}

// formFile reads a single optional file part. A missing part yields a nil file.
func (h *Handler) formFile(r *http.Request, field string) (*models.File, multipart.File, error) {
	if err := r.ParseMultipartForm(h.opts.MaxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, badRequest("invalid multipart body: " + err.Error())
	}

	part, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, badRequest(err.Error())
	}

	return &models.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        part,
	}, part, nil
}
