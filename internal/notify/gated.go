package notify

import (
	"context"
	"sync/atomic"
)

// Gated drops notifications while disabled, the way a device without the
// notification permission silently shows nothing.
type Gated struct {
	next    Notifier
	enabled atomic.Bool
}

// NewGated wraps next with the initial state.
func NewGated(next Notifier, enabled bool) *Gated {
	g := &Gated{next: next}
	g.enabled.Store(enabled)
	return g
}

func (g *Gated) Notify(ctx context.Context, n Notification) error {
	if !g.enabled.Load() {
		return nil
	}
	return g.next.Notify(ctx, n)
}

// SetEnabled toggles delivery.
func (g *Gated) SetEnabled(enabled bool) { g.enabled.Store(enabled) }

// Enabled reports the current state.
func (g *Gated) Enabled() bool { return g.enabled.Load() }
