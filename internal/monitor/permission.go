package monitor

import (
	"context"
	"sync/atomic"
)

// PermissionChecker reports whether continuous background location is granted.
type PermissionChecker interface {
	BackgroundLocationGranted(ctx context.Context) bool
}

// PermissionFunc adapts a function to PermissionChecker.
type PermissionFunc func(ctx context.Context) bool

func (f PermissionFunc) BackgroundLocationGranted(ctx context.Context) bool { return f(ctx) }

// StaticPermission is a switchable grant, set from configuration and flipped at
// runtime by the admin API.
type StaticPermission struct {
	granted atomic.Bool
}

// NewStaticPermission returns a StaticPermission with the initial grant.
func NewStaticPermission(granted bool) *StaticPermission {
	p := &StaticPermission{}
	p.granted.Store(granted)
	return p
}

func (p *StaticPermission) BackgroundLocationGranted(context.Context) bool {
	return p.granted.Load()
}

// Set changes the grant.
func (p *StaticPermission) Set(granted bool) {
	p.granted.Store(granted)
}

func checkPermission(ctx context.Context, pc PermissionChecker, zoneID int64) error {
	if pc == nil || pc.BackgroundLocationGranted(ctx) {
		return nil
	}
	return ErrPermissionDenied.WithContext("zone_id", zoneID)
}
