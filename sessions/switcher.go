package sessions

import (
	"context"
	"log/slog"
	"sync"

	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

// Switcher serializes instance-context switches per session. In shared
// multi-tenant mode, concurrent requests for one session may each declare
// a different upstream context; without serialization their read-compare-
// replace sequences could interleave. Switcher keeps an in-flight slot per
// session id: the slot holder performs its switch alone, waiters block
// until the slot frees and then retry from scratch. Replacement is always
// wholesale last-writer-wins, never a field merge.
type Switcher struct {
	log *slog.Logger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// NewSwitcher constructs a Switcher.
func NewSwitcher(log *slog.Logger) *Switcher {
	if log == nil {
		log = slog.Default()
	}
	return &Switcher{log: log, inflight: make(map[string]chan struct{})}
}

// Switch makes the session operate against next. A structurally equal
// context is a no-op. Concurrent calls for the same session serialize;
// calls for different sessions proceed independently.
func (sw *Switcher) Switch(ctx context.Context, s *Session, next *n8n.InstanceContext) error {
	if err := next.Validate(); err != nil {
		return err
	}
	id := s.SessionID()

	for {
		sw.mu.Lock()
		wait, busy := sw.inflight[id]
		if !busy {
			done := make(chan struct{})
			sw.inflight[id] = done
			sw.mu.Unlock()

			sw.apply(ctx, s, next)

			sw.mu.Lock()
			delete(sw.inflight, id)
			sw.mu.Unlock()
			close(done)
			return nil
		}
		sw.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
			// Slot freed; retry fresh. The previous switch may already
			// have installed an equal context, making ours a no-op.
		}
	}
}

func (sw *Switcher) apply(ctx context.Context, s *Session, next *n8n.InstanceContext) {
	if s.Instance().Equal(next) {
		return
	}
	s.setInstance(next)
	sw.log.InfoContext(ctx, "session.context.switch",
		slog.String("session_id", s.SessionID()),
		slog.String("tenant", next.TenantID),
	)
}

// Reconcile drops in-flight entries whose owning session no longer exists.
// Slots are normally removed by their holders the moment a switch ends;
// this is the sweeper's defensive pass over the one side table keyed by
// session id. The entry is only unlinked, never closed here: the holder
// still owns the channel and closes it on exit, and any waiter also
// selects on its own context.
func (sw *Switcher) Reconcile(live func(id string) bool) int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	dropped := 0
	for id := range sw.inflight {
		if !live(id) {
			delete(sw.inflight, id)
			dropped++
		}
	}
	return dropped
}
