// Package sessions implements the multi-session core of the server: the
// registry that owns every live session's transport and lifetime, the
// coordinator that serializes per-session instance-context switches, and
// the sweeper that evicts idle sessions and drives orderly shutdown.
package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

// State is the lifecycle state of a session. The transient initializing
// state never escapes Registry.Create; externally a session is active
// until it reaches one of the terminal states and is removed.
type State string

const (
	StateActive     State = "active"
	StateExpired    State = "expired"
	StateTerminated State = "terminated"
	StateErrored    State = "errored"
)

// Transport processes the protocol messages of one session. The registry
// is the sole owner of a session's transport and closes it exactly once
// on removal.
type Transport interface {
	// HandleMessage processes one raw JSON-RPC message and returns the
	// raw response, or nil when the message needs no reply. A non-nil
	// error is fatal to the session.
	HandleMessage(ctx context.Context, msg []byte) ([]byte, error)
	// Close releases transport resources. Must be idempotent.
	Close(ctx context.Context) error
}

// Metadata is request provenance captured at session creation.
type Metadata struct {
	ClientIP      string
	UserAgent     string
	ClientName    string
	ClientVersion string
}

// Session is the unit of client isolation: one protocol transport, one
// handler instance, and an optional upstream instance context.
type Session struct {
	id        string
	createdAt time.Time
	meta      Metadata
	transport Transport
	done      chan struct{}

	mu         sync.Mutex
	lastAccess time.Time
	state      State
	ictx       *n8n.InstanceContext
	client     *n8n.Client
}

// SessionID returns the session identifier.
func (s *Session) SessionID() string { return s.id }

// CreatedAt returns the creation timestamp.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Meta returns the request provenance captured at creation.
func (s *Session) Meta() Metadata { return s.meta }

// Transport returns the session's owned protocol transport.
func (s *Session) Transport() Transport { return s.transport }

// Done returns a channel closed when the session is removed from the
// registry. Long-held connections select on it to end with the session.
func (s *Session) Done() <-chan struct{} { return s.done }

// LastAccess returns the last-access timestamp.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Instance returns the current upstream instance context, or nil.
func (s *Session) Instance() *n8n.InstanceContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ictx
}

// Client returns an n8n API client for the current instance context,
// building and caching it on first use. The cache is dropped whenever the
// context is switched.
func (s *Session) Client() (*n8n.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	c, err := n8n.NewFromContext(s.ictx)
	if err != nil {
		return nil, err
	}
	s.client = c
	return c, nil
}

// touch advances last-access. Monotonic: an older timestamp never wins.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastAccess) {
		s.lastAccess = now
	}
	s.mu.Unlock()
}

// idleSince reports whether the session has not been touched after cutoff.
func (s *Session) idleBefore(cutoff time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess.Before(cutoff)
}

// setInstance replaces the instance context wholesale and invalidates the
// cached client. Only the Switcher calls this on a live session.
func (s *Session) setInstance(ictx *n8n.InstanceContext) {
	s.mu.Lock()
	s.ictx = ictx
	s.client = nil
	s.mu.Unlock()
}

// markRemoved records the terminal state. Called by the registry with the
// session already unlinked.
func (s *Session) markRemoved(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}
