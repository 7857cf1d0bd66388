package monitor

import (
	"context"
	"log/slog"
	"sync"

	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// dispatcher hands broker callbacks to their own goroutines. Once drained it
// refuses new work, so a callback racing the unsubscribe cannot add to the
// wait group while drain is waiting on it.
type dispatcher struct {
	mu      sync.Mutex
	drained bool
	wg      sync.WaitGroup
}

// dispatch delivers t to sink in the background and reports whether it was
// accepted.
func (d *dispatcher) dispatch(ctx context.Context, sink Sink, t Transition) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.drained {
		slog.Debug("Dropping transition received after shutdown",
			logfields.ZoneID(t.ZoneID),
			logfields.TransitionID(t.ID))
		return false
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		deliver(ctx, sink, t)
	}()
	return true
}

// drain stops accepting work and waits for in-flight deliveries.
func (d *dispatcher) drain() {
	d.mu.Lock()
	d.drained = true
	d.mu.Unlock()
	d.wg.Wait()
}
