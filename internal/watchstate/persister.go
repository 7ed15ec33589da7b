package watchstate

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mmcdole/watchparty/internal/domain"
)

// DefaultDebounce is the quiet period before a remote write
const DefaultDebounce = 3000 * time.Millisecond

// Persister writes every snapshot to the local store immediately and
// coalesces remote writes behind one trailing-edge debounce timer.
type Persister struct {
	local  domain.LocalStore
	sched  Scheduler
	delay  time.Duration
	flush  func()
	logger *slog.Logger

	mu      sync.Mutex
	pending Task
	gen     uint64 // bumped on every arm/cancel so a superseded timer is a no-op
}

// NewPersister creates a persister. flush runs on timer expiry and should
// read whatever state is current at that moment.
func NewPersister(local domain.LocalStore, sched Scheduler, delay time.Duration, flush func(), logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	if sched == nil {
		sched = SystemScheduler()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Persister{
		local:  local,
		sched:  sched,
		delay:  delay,
		flush:  flush,
		logger: logger,
	}
}

// Persist saves snap locally, then (re)arms the remote flush.
// A local write failure is logged and does not stop the flush from arming.
func (p *Persister) Persist(snap domain.Snapshot) {
	if p.local != nil {
		if err := p.local.SaveSnapshot(snap); err != nil {
			p.logger.Error("failed to save watch state locally", "error", err)
		}
	}
	p.Schedule()
}

// Schedule cancels any pending flush and arms a fresh one
func (p *Persister) Schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending != nil {
		p.pending.Stop()
	}
	p.gen++
	gen := p.gen
	p.pending = p.sched.AfterFunc(p.delay, func() { p.fire(gen) })
}

func (p *Persister) fire(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.pending == nil {
		p.mu.Unlock()
		return
	}
	p.pending = nil
	p.mu.Unlock()

	p.flush()
}

// Cancel drops the pending flush without running it.
// It reports whether one was pending.
func (p *Persister) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pending == nil {
		return false
	}
	p.pending.Stop()
	p.pending = nil
	p.gen++
	return true
}

// Pending reports whether a remote flush is armed
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}
