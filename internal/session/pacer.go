package session

import (
	"context"
	"sync"
	"time"
)

// Pacer holds stage changes back for a short, fixed delay so progress
// displays do not flash. Skip resolves every pending wait at once.
type Pacer struct {
	mu   sync.Mutex
	skip chan struct{}
}

// NewPacer returns a ready Pacer.
func NewPacer() *Pacer {
	return &Pacer{skip: make(chan struct{})}
}

// Wait blocks for d, until Skip is called, or until ctx is done. It reports
// false only when ctx ended the wait.
func (p *Pacer) Wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	p.mu.Lock()
	skip := p.skip
	p.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-skip:
		return true
	case <-ctx.Done():
		return false
	}
}

// Skip releases all current waiters. Later waits are unaffected.
func (p *Pacer) Skip() {
	p.mu.Lock()
	defer p.mu.Unlock()
	close(p.skip)
	p.skip = make(chan struct{})
}
