package sessions

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/n8n-mcp/n8n-mcp-go/n8n"
)

func newTestSession(t *testing.T, reg *Registry, ictx *n8n.InstanceContext) *Session {
	t.Helper()
	s, err := reg.Create(context.Background(), CreateOptions{Instance: ictx}, connectNop(&nopTransport{}))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return s
}

func TestSwitchReplacesContext(t *testing.T) {
	reg := NewRegistry(Config{})
	s := newTestSession(t, reg, testInstance("https://a.example.com"))
	sw := NewSwitcher(nil)

	next := testInstance("https://b.example.com")
	if err := sw.Switch(context.Background(), s, next); err != nil {
		t.Fatalf("switch: %v", err)
	}
	if !s.Instance().Equal(next) {
		t.Fatalf("instance = %+v, want %+v", s.Instance(), next)
	}
}

func TestSwitchRejectsInvalidContext(t *testing.T) {
	reg := NewRegistry(Config{})
	s := newTestSession(t, reg, testInstance("https://a.example.com"))
	sw := NewSwitcher(nil)

	err := sw.Switch(context.Background(), s, &n8n.InstanceContext{BaseURL: "ftp://nope"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !s.Instance().Equal(testInstance("https://a.example.com")) {
		t.Fatal("failed switch must leave the previous context intact")
	}
}

func TestSwitchEqualContextIsNoOp(t *testing.T) {
	reg := NewRegistry(Config{})
	ictx := testInstance("https://a.example.com")
	s := newTestSession(t, reg, ictx)
	sw := NewSwitcher(nil)

	same := &n8n.InstanceContext{BaseURL: ictx.BaseURL, APIKey: ictx.APIKey}
	if err := sw.Switch(context.Background(), s, same); err != nil {
		t.Fatalf("switch: %v", err)
	}
	// Pointer identity preserved: an equal context is never re-installed.
	if s.Instance() != ictx {
		t.Fatal("equal context should not replace the installed one")
	}
}

func TestSwitchDropsCachedClient(t *testing.T) {
	reg := NewRegistry(Config{})
	s := newTestSession(t, reg, testInstance("https://a.example.com"))
	sw := NewSwitcher(nil)

	c1, err := s.Client()
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := sw.Switch(context.Background(), s, testInstance("https://b.example.com")); err != nil {
		t.Fatalf("switch: %v", err)
	}
	c2, err := s.Client()
	if err != nil {
		t.Fatalf("client after switch: %v", err)
	}
	if c1 == c2 {
		t.Fatal("cached client survived a context switch")
	}
}

func TestConcurrentSwitchesConverge(t *testing.T) {
	reg := NewRegistry(Config{})
	s := newTestSession(t, reg, testInstance("https://seed.example.com"))
	sw := NewSwitcher(nil)

	const n = 20
	candidates := make([]*n8n.InstanceContext, n)
	for i := range candidates {
		candidates[i] = testInstance(fmt.Sprintf("https://tenant-%d.example.com", i))
	}

	var wg sync.WaitGroup
	for _, c := range candidates {
		wg.Add(1)
		go func(c *n8n.InstanceContext) {
			defer wg.Done()
			if err := sw.Switch(context.Background(), s, c); err != nil {
				t.Errorf("switch: %v", err)
			}
		}(c)
	}
	wg.Wait()

	// The final context must be exactly one of the inputs, never a blend.
	final := s.Instance()
	found := false
	for _, c := range candidates {
		if final.Equal(c) {
			found = true
			break
		}
	}
	if !found {
		t.Fatalf("final context %+v is not one of the requested contexts", final)
	}

	if dropped := sw.Reconcile(func(string) bool { return true }); dropped != 0 {
		t.Fatalf("reconcile dropped %d live slots after all switches finished", dropped)
	}
}

func TestSwitchWaiterHonorsContextCancel(t *testing.T) {
	reg := NewRegistry(Config{})
	s := newTestSession(t, reg, testInstance("https://a.example.com"))
	sw := NewSwitcher(nil)

	// Occupy the slot manually so a waiter blocks.
	sw.mu.Lock()
	sw.inflight[s.SessionID()] = make(chan struct{})
	sw.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := sw.Switch(ctx, s, testInstance("https://b.example.com"))
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestReconcileDropsOrphanedSlots(t *testing.T) {
	sw := NewSwitcher(nil)
	sw.mu.Lock()
	sw.inflight["dead"] = make(chan struct{})
	sw.inflight["live"] = make(chan struct{})
	sw.mu.Unlock()

	dropped := sw.Reconcile(func(id string) bool { return id == "live" })
	if dropped != 1 {
		t.Fatalf("dropped = %d, want 1", dropped)
	}
	sw.mu.Lock()
	_, hasLive := sw.inflight["live"]
	_, hasDead := sw.inflight["dead"]
	sw.mu.Unlock()
	if !hasLive || hasDead {
		t.Fatalf("reconcile kept wrong entries: live=%v dead=%v", hasLive, hasDead)
	}
}

func TestSweeperEvictsAndStops(t *testing.T) {
	reg := NewRegistry(Config{IdleTimeout: 20 * time.Millisecond})
	s := newTestSession(t, reg, testInstance("https://a.example.com"))

	sweeper := NewSweeper(reg, nil, 25*time.Millisecond, nil)
	sweeper.Start()
	defer sweeper.Stop()

	deadline := time.After(2 * time.Second)
	for reg.Has(s.SessionID()) {
		select {
		case <-deadline:
			t.Fatal("sweeper never evicted the idle session")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if s.State() != StateExpired {
		t.Fatalf("state = %q, want expired", s.State())
	}

	sweeper.Stop()
	sweeper.Stop() // idempotent
}
