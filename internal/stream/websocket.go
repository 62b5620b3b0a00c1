package stream

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shehryarbajwa/docdesk/internal/session"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server pushes session events to websocket clients
type Server struct {
	sessionMgr *session.Manager
}

func NewServer(sessionMgr *session.Manager) *Server {
	return &Server{
		sessionMgr: sessionMgr,
	}
}

// HandleEvents upgrades the request and streams events until either side goes away
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request, sessionID string) {
	store, err := s.sessionMgr.Store(sessionID)
	if err != nil {
		status := http.StatusNotFound
		if errors.Is(err, session.ErrSessionClosed) {
			status = http.StatusGone
		}
		http.Error(w, err.Error(), status)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}
	defer conn.Close()

	events, stop := store.Subscribe()
	defer stop()

	log.Printf("✅ Client subscribed to session %s events", sessionID)

	// Reading is required to notice the client closing the connection
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error (session %s): %v", sessionID, err)
				}
				return
			}
		}
	}()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(writeTimeout))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(e); err != nil {
				log.Printf("Failed to write event (session %s): %v", sessionID, err)
				return
			}
		case <-gone:
			log.Printf("Client unsubscribed from session %s events", sessionID)
			return
		}
	}
}
