// Package location answers "where is the device now" for the edit reconciler.
// Every provider is best effort: an unknown position is ErrUnavailable, never a
// reason to fail the caller's operation.
package location

import (
	"context"
	"errors"
	"time"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
)

// ErrUnavailable indicates no sufficiently fresh position is known.
var ErrUnavailable = ferrors.LocationError("device position unavailable").Build()

// Provider returns the current device position.
type Provider interface {
	CurrentPosition(ctx context.Context) (geo.Position, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (geo.Position, error)

func (f ProviderFunc) CurrentPosition(ctx context.Context) (geo.Position, error) { return f(ctx) }

// IsUnavailable reports whether err means the position is unknown.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		ferrors.HasCategory(err, ferrors.CategoryLocation)
}

// None never knows the position.
type None struct{}

func (None) CurrentPosition(context.Context) (geo.Position, error) {
	return geo.Position{}, ErrUnavailable
}

// Fixed always reports the same position.
type Fixed geo.Position

func (f Fixed) CurrentPosition(context.Context) (geo.Position, error) {
	return geo.Position(f), nil
}

// LastKnown is implemented by sources that remember the last position they saw,
// such as the in-process region monitor.
type LastKnown interface {
	LastPosition() (geo.Position, bool)
}

// FromLastKnown adapts src to Provider.
func FromLastKnown(src LastKnown) Provider {
	return ProviderFunc(func(context.Context) (geo.Position, error) {
		if p, ok := src.LastPosition(); ok {
			return p, nil
		}
		return geo.Position{}, ErrUnavailable
	})
}

// Bounded gives up on next after timeout and reports ErrUnavailable.
func Bounded(next Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return next
	}
	return ProviderFunc(func(ctx context.Context) (geo.Position, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		type result struct {
			pos geo.Position
			err error
		}
		ch := make(chan result, 1)
		go func() {
			p, err := next.CurrentPosition(ctx)
			ch <- result{p, err}
		}()

		select {
		case r := <-ch:
			return r.pos, r.err
		case <-ctx.Done():
			return geo.Position{}, ErrUnavailable.WithContext("timeout", timeout.String())
		}
	})
}
