package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	app "github.com/jdearaujo/invoicemaker/internal/application/invoicing"
)

// SessionKey is the gin context key carrying the request's session context
const SessionKey = "session"

// defaultSessionTTL bounds how long an idle session (and the download
// grants inside it) stays alive.
const defaultSessionTTL = 30 * time.Minute

type sessionEntry struct {
	session  *app.SessionContext
	lastSeen time.Time
}

// SessionStore keeps the live session contexts, keyed by session ID. Download
// grants live inside the session context, so dropping a session drops its
// grants with it. Sessions idle for longer than the TTL are evicted on
// access; cookie IDs are client-supplied, so the store must not grow with
// every value a client invents.
type SessionStore struct {
	mu        sync.Mutex
	ttl       time.Duration
	sessions  map[string]*sessionEntry
	lastSweep time.Time
	now       func() time.Time
}

// NewSessionStore creates an empty session store. A non-positive ttl falls
// back to the default.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &SessionStore{
		ttl:      ttl,
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// Get returns the session context for an ID, creating it on first use and
// refreshing its idle deadline.
func (s *SessionStore) Get(id string) *app.SessionContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	if entry, ok := s.sessions[id]; ok {
		entry.lastSeen = now
		return entry.session
	}

	session := app.NewSessionContext(id)
	s.sessions[id] = &sessionEntry{session: session, lastSeen: now}
	return session
}

// Drop removes a session and all grants recorded in it
func (s *SessionStore) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// sweep evicts sessions idle past the TTL. It runs at most once per TTL
// interval to keep Get cheap. Caller holds the lock.
func (s *SessionStore) sweep(now time.Time) {
	if now.Sub(s.lastSweep) < s.ttl {
		return
	}
	s.lastSweep = now
	for id, entry := range s.sessions {
		if now.Sub(entry.lastSeen) >= s.ttl {
			delete(s.sessions, id)
		}
	}
}

// Session binds each request to a session context identified by a cookie.
// A request without the cookie gets a fresh session and the cookie set.
func Session(store *SessionStore, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(cookieName)
		if err != nil || id == "" {
			id = uuid.NewString()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     cookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		c.Set(SessionKey, store.Get(id))
		c.Next()
	}
}

// GetSession returns the request's session context
func GetSession(c *gin.Context) *app.SessionContext {
	if v, ok := c.Get(SessionKey); ok {
		if session, ok := v.(*app.SessionContext); ok {
			return session
		}
	}
	return nil
}
