package transition

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/careradius/internal/events"
	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/metrics"
	"git.home.luguber.info/inful/careradius/internal/monitor"
	"git.home.luguber.info/inful/careradius/internal/notify"
	"git.home.luguber.info/inful/careradius/internal/store"
)

type clock struct{ ms atomic.Int64 }

func newClock(ms int64) *clock {
	c := &clock{}
	c.set(ms)
	return c
}

func (c *clock) set(ms int64)   { c.ms.Store(ms) }
func (c *clock) now() time.Time { return time.UnixMilli(c.ms.Load()) }

type captureNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
	err  error
}

func (n *captureNotifier) Notify(_ context.Context, msg notify.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	return n.err
}

func (n *captureNotifier) texts() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, s := range n.sent {
		out = append(out, s.Text)
	}
	return out
}

type countingRecorder struct {
	metrics.NoopRecorder
	mu            sync.Mutex
	notifications map[metrics.ResultLabel]int
	transitions   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{
		notifications: map[metrics.ResultLabel]int{},
		transitions:   map[string]int{},
	}
}

func (r *countingRecorder) IncNotification(result metrics.ResultLabel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications[result]++
}

func (r *countingRecorder) IncTransition(kind, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions[kind+"/"+outcome]++
}

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(t.Context(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func createZone(t *testing.T, s store.Store, name string) geofence.Zone {
	t.Helper()
	z, err := s.UpsertZone(t.Context(), geofence.Zone{
		Name:         name,
		Center:       geo.Position{Latitude: 37.77, Longitude: -122.41},
		RadiusMeters: 30,
		EntryMessage: "Welcome to " + name,
		ExitMessage:  "Bye from " + name,
	})
	require.NoError(t, err)
	return z
}

func openVisits(t *testing.T, s store.Store, zoneID int64) []geofence.Visit {
	t.Helper()
	all, err := s.ListVisitsWithZone(t.Context())
	require.NoError(t, err)
	var out []geofence.Visit
	for _, v := range all {
		if v.IsOpen() && v.ZoneID != nil && *v.ZoneID == zoneID {
			out = append(out, v.Visit)
		}
	}
	return out
}

func TestHandler_EnterExitScenario(t *testing.T) {
	ctx := t.Context()
	s := newStore(t)
	zone := createZone(t, s, "Home")
	clk := newClock(1000)
	h := New(s, WithClock(clk.now))

	outcome, err := h.Deliver(ctx, zone.ID, geofence.Enter)
	require.NoError(t, err)
	require.Equal(t, OutcomeOpened, outcome)

	open, err := s.OpenVisitForZone(ctx, zone.ID)
	require.NoError(t, err)
	require.NotNil(t, open)
	require.Equal(t, int64(1000), open.EntryTime.UnixMilli())
	require.Equal(t, "Home", open.ZoneName)

	clk.set(1500)
	outcome, err = h.Deliver(ctx, zone.ID, geofence.Enter)
	require.NoError(t, err)
	require.Equal(t, OutcomeDuplicateEnter, outcome)

	clk.set(5000)
	outcome, err = h.Deliver(ctx, zone.ID, geofence.Exit)
	require.NoError(t, err)
	require.Equal(t, OutcomeClosed, outcome)

	clk.set(6000)
	outcome, err = h.Deliver(ctx, zone.ID, geofence.Exit)
	require.NoError(t, err)
	require.Equal(t, OutcomeStrayExit, outcome)

	visits, err := s.ListVisitsWithZone(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	v := visits[0]
	require.Equal(t, int64(1000), v.EntryTime.UnixMilli())
	require.NotNil(t, v.ExitTime)
	require.Equal(t, int64(5000), v.ExitTime.UnixMilli())
	require.Equal(t, int64(4000), *v.DurationMillis)
}

func TestHandler_StrayExitLeavesLedgerUntouched(t *testing.T) {
	s := newStore(t)
	zone := createZone(t, s, "Office")
	h := New(s)

	outcome, err := h.Deliver(t.Context(), zone.ID, geofence.Exit)
	require.NoError(t, err)
	require.Equal(t, OutcomeStrayExit, outcome)

	visits, err := s.ListVisitsWithZone(t.Context())
	require.NoError(t, err)
	require.Empty(t, visits)
}

func TestHandler_EnterForUnknownZone(t *testing.T) {
	s := newStore(t)
	n := &captureNotifier{}
	h := New(s, WithNotifier(n))

	outcome, err := h.Deliver(t.Context(), 404, geofence.Enter)
	require.NoError(t, err)
	require.Equal(t, OutcomeUnknownZone, outcome)
	require.False(t, outcome.Changed())
	require.Empty(t, n.texts())

	visits, err := s.ListVisitsWithZone(t.Context())
	require.NoError(t, err)
	require.Empty(t, visits)
}

func TestHandler_ConcurrentEntersOpenOneVisit(t *testing.T) {
	s := newStore(t)
	zone := createZone(t, s, "Home")
	h := New(s)

	const workers = 32
	var (
		wg     sync.WaitGroup
		opened atomic.Int32
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := h.Deliver(context.Background(), zone.ID, geofence.Enter)
			if err == nil && outcome == OutcomeOpened {
				opened.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), opened.Load())
	require.Len(t, openVisits(t, s, zone.ID), 1)
	require.Zero(t, h.locks.size())
}

func TestHandler_InterleavedTransitionsKeepAtMostOneOpenVisit(t *testing.T) {
	s := newStore(t)
	zones := []geofence.Zone{createZone(t, s, "A"), createZone(t, s, "B")}
	h := New(s)

	var wg sync.WaitGroup
	for i := range 60 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			kind := geofence.Enter
			if i%3 == 0 {
				kind = geofence.Exit
			}
			if _, err := h.Deliver(context.Background(), zones[i%2].ID, kind); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	for _, z := range zones {
		require.LessOrEqual(t, len(openVisits(t, s, z.ID)), 1)
	}
}

func TestHandler_NotificationFailureKeepsVisit(t *testing.T) {
	s := newStore(t)
	zone := createZone(t, s, "Home")
	n := &captureNotifier{err: errors.New("no permission")}
	rec := newCountingRecorder()
	h := New(s, WithNotifier(n), WithRecorder(rec))

	outcome, err := h.Deliver(t.Context(), zone.ID, geofence.Enter)
	require.NoError(t, err)
	require.Equal(t, OutcomeOpened, outcome)
	require.Len(t, openVisits(t, s, zone.ID), 1)
	require.Equal(t, 1, rec.notifications[metrics.ResultFailed])

	outcome, err = h.Deliver(t.Context(), zone.ID, geofence.Exit)
	require.NoError(t, err)
	require.Equal(t, OutcomeClosed, outcome)
	require.Empty(t, openVisits(t, s, zone.ID))
	require.Equal(t, 2, rec.notifications[metrics.ResultFailed])
	require.Equal(t, 1, rec.transitions["ENTER/opened"])
	require.Equal(t, 1, rec.transitions["EXIT/closed"])
}

func TestHandler_NotificationText(t *testing.T) {
	ctx := t.Context()
	s := newStore(t)
	zone := createZone(t, s, "Home")
	n := &captureNotifier{}
	h := New(s, WithNotifier(n))

	_, err := h.Deliver(ctx, zone.ID, geofence.Enter)
	require.NoError(t, err)

	// Renaming while inside: the ledger keeps the snapshot, the exit notice uses the new name.
	zone.Name = "Cottage"
	_, err = s.UpsertZone(ctx, zone)
	require.NoError(t, err)

	_, err = h.Deliver(ctx, zone.ID, geofence.Exit)
	require.NoError(t, err)

	require.Equal(t, []string{"Entered: Home", "Exited: Cottage"}, n.texts())
	require.Equal(t, "Welcome to Home", n.sent[0].Message)
	require.Equal(t, zone.ID, n.sent[0].ID)
	require.Equal(t, zone.ID+10000, n.sent[1].ID)

	visits, err := s.ListVisitsWithZone(ctx)
	require.NoError(t, err)
	require.Equal(t, "Home", visits[0].ZoneName)
}

func TestHandler_CloseOpenVisit(t *testing.T) {
	ctx := t.Context()
	s := newStore(t)
	zone := createZone(t, s, "Home")
	clk := newClock(1000)
	n := &captureNotifier{}
	bus := events.NewBus()
	defer bus.Close()
	ch, unsubscribe := events.Subscribe[events.VisitEvent](bus, 4)
	defer unsubscribe()

	h := New(s, WithClock(clk.now), WithNotifier(n), WithBus(bus))

	closed, err := h.CloseOpenVisit(ctx, zone.ID)
	require.NoError(t, err)
	require.Nil(t, closed)

	_, err = h.Deliver(ctx, zone.ID, geofence.Enter)
	require.NoError(t, err)

	clk.set(2500)
	closed, err = h.CloseOpenVisit(ctx, zone.ID)
	require.NoError(t, err)
	require.NotNil(t, closed)
	require.Equal(t, int64(1500), *closed.DurationMillis)
	require.Equal(t, []string{"Entered: Home"}, n.texts())

	first := <-ch
	require.IsType(t, events.VisitOpened{}, first)
	second := <-ch
	require.IsType(t, events.VisitClosed{}, second)
	require.True(t, second.(events.VisitClosed).Synthetic)
	require.Equal(t, zone.ID, second.ZoneRef())
}

func TestHandler_HandleTransitionAsSink(t *testing.T) {
	s := newStore(t)
	zone := createZone(t, s, "Home")
	var sink monitor.Sink = New(s)

	require.NoError(t, sink.HandleTransition(t.Context(), monitor.NewTransition(zone.ID, geofence.Enter)))
	require.Len(t, openVisits(t, s, zone.ID), 1)
}

func TestHandler_RejectsUnknownKind(t *testing.T) {
	_, err := New(newStore(t)).Deliver(t.Context(), 1, geofence.TransitionKind("DWELL"))
	require.Error(t, err)
}
