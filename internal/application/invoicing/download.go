package invoicing

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/jdearaujo/invoicemaker/internal/domain/invoicing"
)

// SessionContext is the per-session state download grants live in. Its
// lifetime is the session's; no grant survives the session. The grant map
// is keyed by invoice ID, so re-issuing a key for the same invoice replaces
// the previous grant.
type SessionContext struct {
	id string

	mu     sync.Mutex
	grants map[uint]string
}

// NewSessionContext creates a session context for a session identifier
func NewSessionContext(id string) *SessionContext {
	return &SessionContext{
		id:     id,
		grants: make(map[uint]string),
	}
}

// ID returns the session identifier
func (s *SessionContext) ID() string {
	return s.id
}

// Grant records a download key for an invoice, replacing any previous one
func (s *SessionContext) Grant(invoiceID uint, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants[invoiceID] = key
}

// GrantFor returns the recorded download key for an invoice, if any
func (s *SessionContext) GrantFor(invoiceID uint) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.grants[invoiceID]
	return key, ok
}

// DownloadAuthorizer issues and verifies ephemeral, session-bound download
// keys for invoice documents. A key is a deterministic digest of the shared
// secret, the session identity and the invoice identity; verification
// additionally requires the key to have been recorded in the presenting
// session, so a key never works from another session.
type DownloadAuthorizer struct {
	secret string
}

// NewDownloadAuthorizer creates a DownloadAuthorizer with the shared secret
func NewDownloadAuthorizer(secret string) *DownloadAuthorizer {
	return &DownloadAuthorizer{secret: secret}
}

// Issue computes the download key for an invoice in a session and records
// it as the session's current grant for that invoice.
func (a *DownloadAuthorizer) Issue(invoice *invoicing.Invoice, session *SessionContext) string {
	key := a.compute(invoice.ID, session.ID())
	session.Grant(invoice.ID, key)
	return key
}

// Verify checks a presented download key: the invoice must be persisted,
// the key must match the recomputed digest, and the same key must be
// recorded as a grant in the presenting session.
func (a *DownloadAuthorizer) Verify(invoice *invoicing.Invoice, session *SessionContext, key string) bool {
	if invoice == nil || invoice.ID == 0 || session == nil || key == "" {
		return false
	}
	if a.compute(invoice.ID, session.ID()) != key {
		return false
	}
	granted, ok := session.GrantFor(invoice.ID)
	return ok && granted == key
}

// compute derives the digest binding secret, session and invoice
func (a *DownloadAuthorizer) compute(invoiceID uint, sessionID string) string {
	sum := sha1.Sum([]byte(a.secret + sessionID + strconv.FormatUint(uint64(invoiceID), 10)))
	return hex.EncodeToString(sum[:])
}
