package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shehryarbajwa/docdesk/internal/blob"
	"github.com/shehryarbajwa/docdesk/internal/canvas"
	"github.com/shehryarbajwa/docdesk/pkg/models"
)

var (
	ErrUnauthenticated = errors.New("session is not authenticated")
	ErrInvalidState    = errors.New("invalid state")
	ErrStaleReference  = errors.New("stale document reference")
	ErrNoFileSelected  = errors.New("no file selected")
	ErrNoFiles         = errors.New("no files to upload")
	ErrTooManyUploads  = errors.New("too many pending uploads")
	ErrSignatureLocked = errors.New("another signature method is active")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionClosed   = errors.New("session is closed")
)

const (
	DefaultUploadDelay       = time.Second
	DefaultMaxPendingUploads = 8

	eventBuffer = 32
)

// Clock schedules upload completions
type Clock interface {
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Options configures a Store
type Options struct {
	UploadDelay       time.Duration
	MaxPendingUploads int64
	Clock             Clock
}

func (o Options) withDefaults() Options {
	if o.UploadDelay <= 0 {
		o.UploadDelay = DefaultUploadDelay
	}
	if o.MaxPendingUploads <= 0 {
		o.MaxPendingUploads = DefaultMaxPendingUploads
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	return o
}

// docEntry orders documents by submission: upload sequence, then position in the batch
type docEntry struct {
	doc    models.Document
	upload uint64
	index  int
}

// Store owns one client's authentication flag, documents, uploads and signature
type Store struct {
	id    string
	blobs *blob.Store
	opts  Options
	sem   *semaphore.Weighted

	mu            sync.Mutex
	authenticated bool
	closed        bool
	generation    uint64
	ctx           context.Context
	cancel        context.CancelFunc
	documents     []docEntry
	uploads       map[string]*models.Upload
	uploadSeq     uint64
	revision      uint64
	signature     models.Signature
	penColor      string
	canvas        *canvas.Canvas

	wg sync.WaitGroup

	subsMu  sync.Mutex
	subs    map[int]chan models.Event
	nextSub int
}

// NewStore creates a logged-out store
func NewStore(id string, blobs *blob.Store, opts Options) *Store {
	if id == "" {
		id = uuid.New().String()
	}
	if blobs == nil {
		blobs = blob.NewStore()
	}
	opts = opts.withDefaults()

	return &Store{
		id:        id,
		blobs:     blobs,
		opts:      opts,
		sem:       semaphore.NewWeighted(opts.MaxPendingUploads),
		uploads:   make(map[string]*models.Upload),
		signature: models.Signature{Kind: models.SignatureNone},
		penColor:  canvas.DefaultPenColor,
		subs:      make(map[int]chan models.Event),
	}
}

// ID returns the session id
func (s *Store) ID() string {
	return s.id
}

// Authenticated reports whether the session is logged in
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Login marks the session authenticated. No credentials are checked.
func (s *Store) Login() {
	s.mu.Lock()
	if s.authenticated || s.closed {
		s.mu.Unlock()
		return
	}
	s.authenticated = true
	s.generation++
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	log.Printf("🔓 Session %s logged in", short(s.id))
	s.publish(models.Event{Type: models.EventLogin})
}

// Logout cancels pending uploads and clears documents and signature
func (s *Store) Logout() {
	s.mu.Lock()
	wasAuthenticated := s.authenticated
	pending, handles := s.resetLocked()
	s.mu.Unlock()

	for _, h := range handles {
		s.blobs.Revoke(h)
	}
	for _, id := range pending {
		s.publish(models.Event{Type: models.EventUploadCancelled, UploadID: id})
	}
	if wasAuthenticated {
		log.Printf("🔒 Session %s logged out (%d pending uploads cancelled)", short(s.id), len(pending))
		s.publish(models.Event{Type: models.EventLogout})
	}
}

// resetLocked returns the session to its logged-out state.
// It returns the ids of uploads it cancelled and the blob handles to revoke.
func (s *Store) resetLocked() ([]string, []string) {
	if s.cancel != nil {
		s.cancel()
		s.ctx, s.cancel = nil, nil
	}

	var pending []string
	for id, u := range s.uploads {
		if u.Status == models.UploadPending {
			pending = append(pending, id)
		}
	}
	sort.Strings(pending)

	handles := make([]string, 0, len(s.documents)+1)
	for _, e := range s.documents {
		handles = append(handles, e.doc.ContentHandle)
	}
	if s.signature.Kind == models.SignatureImage {
		handles = append(handles, s.signature.ImageURL)
	}

	if len(s.documents) > 0 {
		s.revision++
	}
	s.authenticated = false
	s.documents = nil
	s.uploads = make(map[string]*models.Upload)
	s.signature = models.Signature{Kind: models.SignatureNone}
	s.penColor = canvas.DefaultPenColor
	if s.canvas != nil {
		s.canvas.Clear()
		s.canvas.SetPenColor(s.penColor)
	}

	return pending, handles
}

// SelectFile starts a simulated upload of a single file
func (s *Store) SelectFile(f *models.File) (*models.Upload, error) {
	if f == nil {
		return nil, ErrNoFileSelected
	}
	return s.startUpload([]models.File{*f})
}

// DropFiles starts a simulated upload of a batch of files
func (s *Store) DropFiles(files []models.File) (*models.Upload, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	return s.startUpload(files)
}

func (s *Store) startUpload(files []models.File) (*models.Upload, error) {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return nil, ErrUnauthenticated
	}
	generation := s.generation
	s.mu.Unlock()

	// Reserve a pending slot
	if !s.sem.TryAcquire(1) {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyUploads, s.opts.MaxPendingUploads)
	}

	// Read payloads outside the lock
	stored := make([]*blob.Blob, 0, len(files))
	for _, f := range files {
		b, err := s.blobs.Put(f.Name, f.ContentType, f.Body)
		if err != nil {
			s.revokeAll(stored)
			s.sem.Release(1)
			return nil, err
		}
		stored = append(stored, b)
	}

	s.mu.Lock()
	if !s.authenticated || s.generation != generation {
		s.mu.Unlock()
		s.revokeAll(stored)
		s.sem.Release(1)
		return nil, ErrUnauthenticated
	}

	// Register at 30% and schedule completion
	s.uploadSeq++
	names := make([]string, len(stored))
	for i, b := range stored {
		names[i] = b.Name
	}
	upload := &models.Upload{
		ID:        uuid.New().String(),
		Files:     names,
		Percent:   models.ProgressStarted,
		Status:    models.UploadPending,
		StartedAt: time.Now(),
	}
	s.uploads[upload.ID] = upload

	ctx := s.ctx
	fired := s.opts.Clock.After(s.opts.UploadDelay)
	s.wg.Add(1)
	go s.completeUpload(ctx, upload.ID, s.uploadSeq, stored, fired)

	out := copyUpload(upload)
	s.mu.Unlock()

	s.publish(models.Event{Type: models.EventUploadStarted, UploadID: upload.ID, Percent: upload.Percent})
	return out, nil
}

// completeUpload waits out the delay and appends the files, unless the session ends first
func (s *Store) completeUpload(ctx context.Context, uploadID string, seq uint64, stored []*blob.Blob, fired <-chan time.Time) {
	defer s.wg.Done()
	defer s.sem.Release(1)

	select {
	case <-fired:
	case <-ctx.Done():
		s.revokeAll(stored)
		log.Printf("⏹️ Upload %s cancelled for session %s", short(uploadID), short(s.id))
		return
	}

	s.mu.Lock()
	upload, ok := s.uploads[uploadID]
	if ctx.Err() != nil || !ok {
		s.mu.Unlock()
		s.revokeAll(stored)
		return
	}

	// Insert in submission order
	now := time.Now()
	for i, b := range stored {
		s.insertLocked(docEntry{
			doc: models.Document{
				ID:            uuid.New().String(),
				Name:          b.Name,
				ContentType:   b.ContentType,
				Size:          b.Size,
				ContentHandle: b.Handle,
				UploadID:      uploadID,
				AddedAt:       now,
			},
			upload: seq,
			index:  i,
		})
	}
	s.revision++
	upload.Percent = models.ProgressComplete
	upload.Status = models.UploadCompleted
	upload.CompletedAt = &now
	s.mu.Unlock()

	log.Printf("✅ Upload %s completed for session %s (%d files)", short(uploadID), short(s.id), len(stored))
	s.publish(models.Event{Type: models.EventUploadCompleted, UploadID: uploadID, Percent: models.ProgressComplete})
}

func (s *Store) insertLocked(e docEntry) {
	i := sort.Search(len(s.documents), func(i int) bool {
		d := s.documents[i]
		return d.upload > e.upload || (d.upload == e.upload && d.index > e.index)
	})
	s.documents = append(s.documents, docEntry{})
	copy(s.documents[i+1:], s.documents[i:])
	s.documents[i] = e
}

func (s *Store) revokeAll(stored []*blob.Blob) {
	for _, b := range stored {
		s.blobs.Revoke(b.Handle)
	}
}

// DeleteDocument removes a document by its stable id
func (s *Store) DeleteDocument(id string) error {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return ErrUnauthenticated
	}

	idx := -1
	for i, e := range s.documents {
		if e.doc.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: document %s does not exist", ErrStaleReference, id)
	}

	handle := s.removeLocked(idx)
	s.mu.Unlock()

	s.blobs.Revoke(handle)
	s.publish(models.Event{Type: models.EventDocumentDeleted, DocumentID: id})
	return nil
}

// DeleteDocumentAt removes the document at index in the snapshot taken at revision
func (s *Store) DeleteDocumentAt(index int, revision uint64) error {
	s.mu.Lock()
	if !s.authenticated {
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	if revision != s.revision {
		current := s.revision
		s.mu.Unlock()
		return fmt.Errorf("%w: snapshot revision %d, current %d", ErrStaleReference, revision, current)
	}
	if index < 0 || index >= len(s.documents) {
		s.mu.Unlock()
		return fmt.Errorf("%w: index %d out of range", ErrStaleReference, index)
	}

	id := s.documents[index].doc.ID
	handle := s.removeLocked(index)
	s.mu.Unlock()

	s.blobs.Revoke(handle)
	s.publish(models.Event{Type: models.EventDocumentDeleted, DocumentID: id})
	return nil
}

func (s *Store) removeLocked(idx int) string {
	handle := s.documents[idx].doc.ContentHandle
	s.documents = append(s.documents[:idx], s.documents[idx+1:]...)
	s.revision++
	return handle
}

// Documents returns the ordered documents and the revision they belong to
func (s *Store) Documents() ([]models.Document, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documentsLocked(), s.revision
}

func (s *Store) documentsLocked() []models.Document {
	docs := make([]models.Document, len(s.documents))
	for i, e := range s.documents {
		docs[i] = e.doc
	}
	return docs
}

// Progress returns every tracked upload keyed by upload id
func (s *Store) Progress() map[string]models.Upload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked()
}

func (s *Store) progressLocked() map[string]models.Upload {
	out := make(map[string]models.Upload, len(s.uploads))
	for id, u := range s.uploads {
		out[id] = *copyUpload(u)
	}
	return out
}

// Snapshot returns a copy of the whole session state
func (s *Store) Snapshot() models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return models.Snapshot{
		SessionID:     s.id,
		Authenticated: s.authenticated,
		Documents:     s.documentsLocked(),
		Uploads:       s.progressLocked(),
		Signature:     s.signature,
		PenColor:      s.penColor,
		Revision:      s.revision,
	}
}

// Blobs exposes the payload store backing content handles
func (s *Store) Blobs() *blob.Store {
	return s.blobs
}

// Wait blocks until no upload completion is in flight
func (s *Store) Wait() {
	s.wg.Wait()
}

// Close logs the session out, stops accepting work and ends all subscriptions
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.Logout()
	s.wg.Wait()

	s.subsMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsMu.Unlock()
}

// Subscribe returns a channel of session events and a function to stop receiving them
func (s *Store) Subscribe() (<-chan models.Event, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan models.Event, eventBuffer)
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			defer s.subsMu.Unlock()
			if c, ok := s.subs[id]; ok {
				close(c)
				delete(s.subs, id)
			}
		})
	}
}

func (s *Store) publish(e models.Event) {
	e.SessionID = s.id
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- e:
		default:
			log.Printf("⚠️ Event buffer full for session %s, dropping %s", short(s.id), e.Type)
		}
	}
}

func copyUpload(u *models.Upload) *models.Upload {
	out := *u
	out.Files = append([]string(nil), u.Files...)
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
