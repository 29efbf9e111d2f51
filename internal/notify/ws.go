package notify

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/ride-booking/internal/models"
)

var ErrNoSession = errors.New("no websocket session")

// WSSession wraps a connected user socket. Writes are serialized.
type WSSession struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *WSSession) send(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(v)
}

// WSRegistry holds live passenger and driver sessions keyed by user id.
type WSRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*WSSession
	fallback Notifier
}

// NewWSRegistry builds a registry. fallback (usually a LogNotifier)
// receives messages for users without a session; nil means such
// messages are dropped with ErrNoSession.
func NewWSRegistry(fallback Notifier) *WSRegistry {
	return &WSRegistry{sessions: make(map[string]*WSSession), fallback: fallback}
}

func (r *WSRegistry) Add(userID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = &WSSession{conn: conn}
}

func (r *WSRegistry) Remove(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

func (r *WSRegistry) Notify(userID, message string) error {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		if r.fallback != nil {
			return r.fallback.Notify(userID, message)
		}
		return ErrNoSession
	}
	return s.send(Message{Text: message, At: time.Now()})
}

// PushLocation fans a live location sample out to a subscribed user.
func (r *WSRegistry) PushLocation(userID string, sample models.LocationSample) error {
	r.mu.RLock()
	s, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return ErrNoSession
	}
	return s.send(sample)
}
