package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/shehryarbajwa/docdesk/internal/stream"
)

// SetupRoutes configures all HTTP routes
func (h *Handler) SetupRoutes(streamServer *stream.Server) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/v1").Subrouter()

	api.HandleFunc("/sessions", h.CreateSession).Methods("POST")
	api.HandleFunc("/sessions", h.ListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.GetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", h.DeleteSession).Methods("DELETE")

	// Event feed (not rate limited - long lived)
	api.HandleFunc("/sessions/{id}/events", func(w http.ResponseWriter, r *http.Request) {
		streamServer.HandleEvents(w, r, mux.Vars(r)["id"])
	}).Methods("GET")

	// Session state endpoints (rate limited per session)
	sess := api.PathPrefix("/sessions/{id}").Subrouter()
	if h.limiter != nil {
		sess.Use(RateLimitMiddleware(h.limiter))
	}

	sess.HandleFunc("/state", h.GetState).Methods("GET")
	sess.HandleFunc("/login", h.Login).Methods("POST")
	sess.HandleFunc("/logout", h.Logout).Methods("POST")

	sess.HandleFunc("/documents", h.UploadDocument).Methods("POST")
	sess.HandleFunc("/documents", h.ListDocuments).Methods("GET")
	sess.HandleFunc("/documents/drop", h.DropDocuments).Methods("POST")
	sess.HandleFunc("/documents/archive", h.DownloadArchive).Methods("GET")
	sess.HandleFunc("/documents/at/{index}", h.DeleteDocumentAt).Methods("DELETE")
	sess.HandleFunc("/documents/{docId}", h.DeleteDocument).Methods("DELETE")
	sess.HandleFunc("/uploads", h.ListUploads).Methods("GET")

	sess.HandleFunc("/signature", h.ClearSignature).Methods("DELETE")
	sess.HandleFunc("/signature/canvas", h.AttachCanvas).Methods("POST")
	sess.HandleFunc("/signature/strokes", h.DrawStroke).Methods("POST")
	sess.HandleFunc("/signature/save", h.SaveSignature).Methods("POST")
	sess.HandleFunc("/signature/typed", h.SetTypedSignature).Methods("PUT")
	sess.HandleFunc("/signature/image", h.AttachSignatureImage).Methods("POST")
	sess.HandleFunc("/signature/image", h.GetSignatureImage).Methods("GET")
	sess.HandleFunc("/signature/pen", h.SetPenColor).Methods("PUT")

	r.Use(corsMiddleware)

	return r
}
