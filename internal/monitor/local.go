package monitor

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/logfields"
)

// Local is an in-process region monitor. It keeps the active regions in memory
// and derives ENTER/EXIT transitions from positions fed to UpdatePosition, the
// way a GPS polling loop would. Emit injects raw callbacks, and Forget drops all
// registrations the way the OS does on reboot.
type Local struct {
	mu           sync.Mutex
	regions      map[int64]Region
	inside       map[int64]bool
	position     *geo.Position
	permission   PermissionChecker
	maxRegions   int
	initialEnter bool

	events chan Transition
	done   chan struct{}
	once   sync.Once
}

// LocalOption configures Local.
type LocalOption func(*Local)

// WithPermission sets the background location grant source.
func WithPermission(pc PermissionChecker) LocalOption {
	return func(l *Local) { l.permission = pc }
}

// WithMaxRegions limits active registrations; 0 means unlimited.
func WithMaxRegions(n int) LocalOption {
	return func(l *Local) { l.maxRegions = n }
}

// WithInitialEnter emits ENTER for a region registered while the last known
// position is already inside it.
func WithInitialEnter(enabled bool) LocalOption {
	return func(l *Local) { l.initialEnter = enabled }
}

// WithEventBuffer sets how many undelivered transitions are queued before new
// ones are dropped.
func WithEventBuffer(n int) LocalOption {
	return func(l *Local) { l.events = make(chan Transition, n) }
}

// NewLocal creates an in-process monitor.
func NewLocal(opts ...LocalOption) *Local {
	l := &Local{
		regions:      make(map[int64]Region),
		inside:       make(map[int64]bool),
		initialEnter: true,
		events:       make(chan Transition, 64),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Local) Name() string { return "local" }

// Register implements Adapter.
func (l *Local) Register(ctx context.Context, r Region) error {
	if err := checkPermission(ctx, l.permission, r.ZoneID); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.regions[r.ZoneID]; !exists && l.maxRegions > 0 && len(l.regions) >= l.maxRegions {
		return ErrQuotaExceeded.
			WithContext("zone_id", r.ZoneID).
			WithContext("max_regions", l.maxRegions)
	}
	l.regions[r.ZoneID] = r

	if l.position == nil {
		return nil
	}
	in := r.Contains(*l.position)
	was := l.inside[r.ZoneID]
	l.inside[r.ZoneID] = in
	if l.initialEnter && in && !was {
		l.emitLocked(NewTransition(r.ZoneID, geofence.Enter))
	}
	return nil
}

// Unregister implements Adapter.
func (l *Local) Unregister(_ context.Context, zoneID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.regions, zoneID)
	delete(l.inside, zoneID)
	return nil
}

// Regions returns the active registrations ordered by zone id.
func (l *Local) Regions() []Region {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := slices.Sorted(maps.Keys(l.regions))
	out := make([]Region, 0, len(ids))
	for _, id := range ids {
		out = append(out, l.regions[id])
	}
	return out
}

// Forget drops every registration, as the OS does on reboot.
func (l *Local) Forget() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.regions)
	clear(l.inside)
}

// UpdatePosition records the device position and emits a transition for every
// region whose inside/outside state changed.
func (l *Local) UpdatePosition(p geo.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.position = &p
	for _, id := range slices.Sorted(maps.Keys(l.regions)) {
		in := l.regions[id].Contains(p)
		if in == l.inside[id] {
			continue
		}
		l.inside[id] = in
		kind := geofence.Exit
		if in {
			kind = geofence.Enter
		}
		l.emitLocked(NewTransition(id, kind))
	}
}

// LastPosition returns the last position fed to UpdatePosition.
func (l *Local) LastPosition() (geo.Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.position == nil {
		return geo.Position{}, false
	}
	return *l.position, true
}

// Emit injects a raw transition, registered or not.
func (l *Local) Emit(zoneID int64, kind geofence.TransitionKind) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.emitLocked(NewTransition(zoneID, kind))
}

func (l *Local) emitLocked(t Transition) {
	select {
	case l.events <- t:
	default:
		slog.Warn("Transition dropped, monitor buffer full",
			logfields.ZoneID(t.ZoneID),
			logfields.Transition(t.Kind.String()),
			logfields.TransitionID(t.ID))
	}
}

// Run implements Adapter. Every transition is delivered on its own goroutine.
func (l *Local) Run(ctx context.Context, sink Sink) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.done:
			return nil
		case t := <-l.events:
			wg.Add(1)
			go func() {
				defer wg.Done()
				deliver(ctx, sink, t)
			}()
		}
	}
}

// Close stops Run.
func (l *Local) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func deliver(ctx context.Context, sink Sink, t Transition) {
	if err := sink.HandleTransition(ctx, t); err != nil {
		slog.Error("Transition handling failed",
			logfields.ZoneID(t.ZoneID),
			logfields.Transition(t.Kind.String()),
			logfields.TransitionID(t.ID),
			logfields.Error(err))
	}
}
