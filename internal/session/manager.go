package session

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/docdesk/internal/blob"
	"github.com/shehryarbajwa/docdesk/pkg/models"
)

const (
	DefaultSessionTimeout = time.Hour

	minTimeoutSeconds = 60
	maxTimeoutSeconds = 86400
)

// hosted pairs a store with its bookkeeping
type hosted struct {
	mu    sync.Mutex
	info  models.Session
	store *Store
	done  chan struct{}
}

// Manager hosts one Store per client session
type Manager struct {
	sessions       sync.Map // map[sessionID]*hosted
	blobs          *blob.Store
	opts           Options
	defaultTimeout time.Duration
}

// NewManager creates a new session manager
func NewManager(blobs *blob.Store, opts Options, defaultTimeout time.Duration) *Manager {
	if blobs == nil {
		blobs = blob.NewStore()
	}
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultSessionTimeout
	}
	return &Manager{
		blobs:          blobs,
		opts:           opts,
		defaultTimeout: defaultTimeout,
	}
}

// Blobs returns the payload store shared by all sessions
func (m *Manager) Blobs() *blob.Store {
	return m.blobs
}

// CreateSession starts a logged-out session that expires after its timeout
func (m *Manager) CreateSession(req models.CreateSessionRequest) (*models.Session, error) {
	// Validate timeout
	timeout := m.defaultTimeout
	if req.Timeout != 0 {
		if req.Timeout < minTimeoutSeconds || req.Timeout > maxTimeoutSeconds {
			return nil, fmt.Errorf("timeout must be between %d and %d seconds", minTimeoutSeconds, maxTimeoutSeconds)
		}
		timeout = time.Duration(req.Timeout) * time.Second
	}

	id := uuid.New().String()
	now := time.Now()

	// Create session with a logged-out store
	h := &hosted{
		info: models.Session{
			ID:        id,
			Status:    models.StatusActive,
			CreatedAt: now,
			ExpiresAt: now.Add(timeout),
			Timeout:   int(timeout / time.Second),
		},
		store: NewStore(id, m.blobs, m.opts),
		done:  make(chan struct{}),
	}
	m.sessions.Store(id, h)

	// Start timeout handler
	go m.handleTimeout(h, timeout)

	log.Printf("🆕 Session %s created (expires in %s)", short(id), timeout)
	info := h.snapshotInfo()
	return &info, nil
}

// GetSession returns the metadata of a session
func (m *Manager) GetSession(id string) (*models.Session, error) {
	h, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	info := h.snapshotInfo()
	return &info, nil
}

// Store returns the state store of an active session
func (m *Manager) Store(id string) (*Store, error) {
	h, err := m.lookup(id)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.info.Status != models.StatusActive {
		return nil, fmt.Errorf("%w: %s", ErrSessionClosed, h.info.Status)
	}
	return h.store, nil
}

// ListSessions returns all sessions, optionally filtered by status, oldest first
func (m *Manager) ListSessions(status models.SessionStatus) []models.Session {
	var sessions []models.Session

	m.sessions.Range(func(key, value interface{}) bool {
		info := value.(*hosted).snapshotInfo()
		if status != "" && info.Status != status {
			return true
		}
		sessions = append(sessions, info)
		return true
	})

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// DeleteSession logs the session out and marks it closed
func (m *Manager) DeleteSession(id string) error {
	h, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !h.finish(models.StatusClosed) {
		return fmt.Errorf("%w: already %s", ErrSessionClosed, h.snapshotInfo().Status)
	}

	h.store.Close()
	log.Printf("🗑️ Session %s closed", short(id))
	return nil
}

// Close shuts down every active session
func (m *Manager) Close() {
	m.sessions.Range(func(key, value interface{}) bool {
		h := value.(*hosted)
		if h.finish(models.StatusClosed) {
			h.store.Close()
		}
		return true
	})
}

func (m *Manager) lookup(id string) (*hosted, error) {
	value, ok := m.sessions.Load(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return value.(*hosted), nil
}

// handleTimeout expires a session once its timeout elapses
func (m *Manager) handleTimeout(h *hosted, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-h.done:
		return
	}

	if !h.finish(models.StatusTimedOut) {
		return
	}

	h.store.publish(models.Event{Type: models.EventSessionExpired})
	h.store.Close()
	log.Printf("⏰ Session %s timed out", short(h.info.ID))
}

// finish moves an active session to a terminal status. It reports false if the session already ended.
func (h *hosted) finish(status models.SessionStatus) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.info.Status != models.StatusActive {
		return false
	}
	h.info.Status = status
	close(h.done)
	return true
}

func (h *hosted) snapshotInfo() models.Session {
	h.mu.Lock()
	info := h.info
	h.mu.Unlock()

	info.Authenticated = h.store.Authenticated()
	return info
}
