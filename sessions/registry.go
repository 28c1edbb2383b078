package sessions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

// Errors returned by the registry.
var (
	// ErrSessionNotFound indicates the session id resolves to nothing:
	// expired, terminated, or never created. Clients should re-initialize.
	ErrSessionNotFound = errors.New("session not found")
	// ErrCapacity indicates the concurrent-session ceiling was reached.
	// Retryable: the caller should surface it as a backoff-worthy condition.
	ErrCapacity = errors.New("session capacity reached")
	// ErrSessionExists indicates a caller-supplied id is already live.
	ErrSessionExists = errors.New("session id already exists")
)

// RemoveReason explains why a session is being removed.
type RemoveReason string

const (
	ReasonExpired        RemoveReason = "expired"
	ReasonTerminated     RemoveReason = "terminated"
	ReasonTransportError RemoveReason = "transport_error"
	ReasonDisconnect     RemoveReason = "client_disconnect"
	ReasonShutdown       RemoveReason = "server_shutdown"
)

func (r RemoveReason) state() State {
	switch r {
	case ReasonExpired:
		return StateExpired
	case ReasonTransportError:
		return StateErrored
	default:
		return StateTerminated
	}
}

// Config configures the registry.
type Config struct {
	// MaxSessions caps concurrently live sessions. Default 100.
	MaxSessions int
	// IdleTimeout is how long an untouched session stays live. Default 30m.
	IdleTimeout time.Duration
	// PerInstanceIDs derives composite session ids embedding the instance
	// config hash (per-instance multi-tenant mode).
	PerInstanceIDs bool
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 100
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Registry is the authoritative store of live sessions and the sole owner
// of their transports. All mutation goes through Create, Touch, and
// Remove; no other component touches the map.
type Registry struct {
	cfg Config
	log *slog.Logger

	mu           sync.Mutex
	sessions     map[string]*Session
	totalCreated uint64
	lastSweep    time.Time
}

// NewRegistry constructs a registry.
func NewRegistry(cfg Config) *Registry {
	cfg.applyDefaults()
	return &Registry{
		cfg:      cfg,
		log:      cfg.Logger,
		sessions: make(map[string]*Session),
	}
}

// CreateOptions parameterize session creation.
type CreateOptions struct {
	// SessionID optionally supplies the id (single-tenant deployments
	// fronted by a gateway that mints its own). Empty means generate.
	SessionID string
	// Instance is the upstream context the session is born with. May be
	// nil when the server runs against its configured default instance.
	Instance *n8n.InstanceContext
	// Meta is request provenance.
	Meta Metadata
}

// Create admits and registers a new session. Admission check and insert
// happen in one critical section so the capacity invariant holds under
// parallel creates. The connect callback builds the session's transport
// while the session is still invisible; it must not block.
func (r *Registry) Create(ctx context.Context, opts CreateOptions, connect func(*Session) Transport) (*Session, error) {
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.cfg.MaxSessions {
		r.log.WarnContext(ctx, "session.create.capacity", slog.Int("max", r.cfg.MaxSessions))
		return nil, ErrCapacity
	}

	id := opts.SessionID
	if id == "" {
		id = r.newSessionID(opts.Instance)
	}
	if _, exists := r.sessions[id]; exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}

	s := &Session{
		id:         id,
		createdAt:  now,
		lastAccess: now,
		state:      StateActive,
		meta:       opts.Meta,
		ictx:       opts.Instance,
		done:       make(chan struct{}),
	}
	s.transport = connect(s)

	r.sessions[id] = s
	r.totalCreated++
	r.log.InfoContext(ctx, "session.create.ok", slog.String("session_id", id), slog.Int("active", len(r.sessions)))
	return s, nil
}

// newSessionID generates a fresh identifier. Per-instance mode prefixes a
// stable hash of the instance context so distinct upstream configurations
// can never collide, while the uuid suffix keeps repeated creates with an
// identical context unique.
func (r *Registry) newSessionID(ictx *n8n.InstanceContext) string {
	if r.cfg.PerInstanceIDs && ictx != nil {
		return "n8n-" + ictx.ConfigHash() + "-" + uuid.NewString()
	}
	return uuid.NewString()
}

// Lookup resolves a live session by id.
func (r *Registry) Lookup(id string) (*Session, error) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Touch advances the session's last-access timestamp. No-op if absent.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if ok {
		s.touch(time.Now())
	}
}

// Remove unlinks the session and closes its transport. Idempotent: the
// second and subsequent calls for an id are no-ops, so the sweeper and a
// transport-error path can race on the same session safely. A transport
// close failure is logged and swallowed; the session is gone regardless.
func (r *Registry) Remove(ctx context.Context, id string, reason RemoveReason) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}

	s.markRemoved(reason.state())
	close(s.done)
	if err := s.transport.Close(ctx); err != nil {
		r.log.WarnContext(ctx, "session.close.fail", slog.String("session_id", id), slog.String("err", err.Error()))
	}
	r.log.InfoContext(ctx, "session.remove", slog.String("session_id", id), slog.String("reason", string(reason)))
	return true
}

// ActiveCount returns the number of live sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Has reports whether the id is live. Used by the sweeper to reconcile
// side tables keyed by session id.
func (r *Registry) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// SweepExpired removes every session idle past the timeout and records
// the sweep time. A failed removal never stops the pass.
func (r *Registry) SweepExpired(ctx context.Context) int {
	now := time.Now()
	cutoff := now.Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	r.lastSweep = now
	expired := make([]string, 0)
	for id, s := range r.sessions {
		if s.idleBefore(cutoff) {
			expired = append(expired, id)
		}
	}
	r.mu.Unlock()

	removed := 0
	for _, id := range expired {
		if r.Remove(ctx, id, ReasonExpired) {
			removed++
		}
	}
	return removed
}

// Drain removes every live session with reason server_shutdown. Used on
// process termination, after the sweeper has stopped and before the HTTP
// listener closes.
func (r *Registry) Drain(ctx context.Context) int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	drained := 0
	for _, id := range ids {
		if r.Remove(ctx, id, ReasonShutdown) {
			drained++
		}
	}
	return drained
}

// Metrics is the derived registry snapshot served at /metrics.
type Metrics struct {
	TotalCreated   uint64    `json:"totalCreated"`
	Active         int       `json:"active"`
	ExpiredUnswept int       `json:"expiredPendingSweep"`
	LastSweepAt    time.Time `json:"lastSweepAt,omitzero"`
}

// Metrics computes the current snapshot. Nothing here is stored beyond
// the counters the registry already keeps.
func (r *Registry) Metrics() Metrics {
	cutoff := time.Now().Add(-r.cfg.IdleTimeout)

	r.mu.Lock()
	defer r.mu.Unlock()

	expired := 0
	for _, s := range r.sessions {
		if s.idleBefore(cutoff) {
			expired++
		}
	}
	return Metrics{
		TotalCreated:   r.totalCreated,
		Active:         len(r.sessions),
		ExpiredUnswept: expired,
		LastSweepAt:    r.lastSweep,
	}
}
