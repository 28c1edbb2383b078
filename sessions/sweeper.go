package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper periodically evicts idle sessions and reconciles the switcher's
// side table. It bounds resource growth from abandoned sessions; nothing
// in the request path ever removes an idle session directly.
type Sweeper struct {
	reg      *Registry
	switcher *Switcher
	interval time.Duration
	log      *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewSweeper constructs a sweeper. The switcher may be nil when the
// deployment runs without shared tenancy. Interval defaults to 5 minutes.
func NewSweeper(reg *Registry, switcher *Switcher, interval time.Duration, log *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		reg:      reg,
		switcher: switcher,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop. Call Stop to end it.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one pass. Errors inside removal are already swallowed by the
// registry, so a misbehaving session cannot halt the loop.
func (s *Sweeper) sweep() {
	ctx := context.Background()
	removed := s.reg.SweepExpired(ctx)
	orphans := 0
	if s.switcher != nil {
		orphans = s.switcher.Reconcile(s.reg.Has)
	}
	if removed > 0 || orphans > 0 {
		s.log.Info("session.sweep",
			slog.Int("expired", removed),
			slog.Int("orphaned_switch_slots", orphans),
			slog.Int("active", s.reg.ActiveCount()),
		)
	}
}

// Stop halts the timer and waits for an in-progress pass to finish.
// Idempotent. Shutdown ordering is: Stop the sweeper, Drain the registry,
// then close the HTTP listener, so no session close races socket teardown.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
