package zones

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/lifecycle"
	"git.home.luguber.info/inful/careradius/internal/location"
	"git.home.luguber.info/inful/careradius/internal/monitor"
	"git.home.luguber.info/inful/careradius/internal/reconcile"
	"git.home.luguber.info/inful/careradius/internal/store"
	"git.home.luguber.info/inful/careradius/internal/transition"
)

var home = geo.Position{Latitude: 37.77, Longitude: -122.41}

func newService(t *testing.T, mon *monitor.Local, pos location.Provider) (*Service, *transition.Handler) {
	t.Helper()
	s, err := store.Open(t.Context(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	h := transition.New(s)
	coord := lifecycle.New(mon, s)
	return NewService(s, coord, reconcile.New(s, h, coord, pos)), h
}

func TestService_CreateRegisters(t *testing.T) {
	mon := monitor.NewLocal()
	svc, _ := newService(t, mon, nil)

	res, err := svc.Create(t.Context(), geofence.Zone{ID: 99, Name: "Home", Center: home, RadiusMeters: 30})
	require.NoError(t, err)
	require.NotEqual(t, int64(99), res.Zone.ID)
	require.True(t, res.Registration.Monitored)
	require.Empty(t, res.Warning)
	require.Equal(t, geofence.DefaultIcon, res.Zone.Icon)
	require.Len(t, mon.Regions(), 1)
}

func TestService_CreateWithoutPermissionKeepsZone(t *testing.T) {
	mon := monitor.NewLocal(monitor.WithPermission(monitor.NewStaticPermission(false)))
	svc, _ := newService(t, mon, nil)

	res, err := svc.Create(t.Context(), geofence.Zone{Name: "Home", Center: home, RadiusMeters: 30})
	require.NoError(t, err)
	require.False(t, res.Registration.Monitored)
	require.Contains(t, res.Warning, "permission")

	zones, err := svc.List(t.Context())
	require.NoError(t, err)
	require.Len(t, zones, 1)
}

func TestService_CreateRejectsInvalidZone(t *testing.T) {
	svc, _ := newService(t, monitor.NewLocal(), nil)
	_, err := svc.Create(t.Context(), geofence.Zone{Name: "  ", Center: home, RadiusMeters: 30})
	require.Error(t, err)
}

func TestService_MoveClosesVisit(t *testing.T) {
	ctx := t.Context()
	mon := monitor.NewLocal(monitor.WithInitialEnter(false))
	svc, h := newService(t, mon, location.Fixed(home))

	res, err := svc.Create(ctx, geofence.Zone{Name: "Home", Center: home, RadiusMeters: 30})
	require.NoError(t, err)
	_, err = h.Deliver(ctx, res.Zone.ID, geofence.Enter)
	require.NoError(t, err)

	moved, err := svc.Move(ctx, res.Zone.ID, geo.Offset(home, 90, 400))
	require.NoError(t, err)
	require.NotNil(t, moved.Reconcile)
	require.NotNil(t, moved.Reconcile.Closed)

	visits, err := svc.ListVisits(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 1)
	require.False(t, visits[0].IsOpen())
	require.Equal(t, []monitor.Region{monitor.RegionFor(moved.Zone)}, mon.Regions())
}

func TestService_UpdateWithoutGeometryChange(t *testing.T) {
	svc, _ := newService(t, monitor.NewLocal(), nil)
	res, err := svc.Create(t.Context(), geofence.Zone{Name: "Home", Center: home, RadiusMeters: 30})
	require.NoError(t, err)

	z := res.Zone
	z.ExitMessage = "Lock the door"
	updated, err := svc.Update(t.Context(), z)
	require.NoError(t, err)
	require.Nil(t, updated.Reconcile)
	require.Equal(t, "Lock the door", updated.Zone.ExitMessage)
}

func TestService_CheckAndVisitHistory(t *testing.T) {
	ctx := t.Context()
	svc, h := newService(t, monitor.NewLocal(), location.Fixed(geo.Offset(home, 0, 100)))

	res, err := svc.Create(ctx, geofence.Zone{Name: "Home", Center: home, RadiusMeters: 30})
	require.NoError(t, err)
	_, err = h.Deliver(ctx, res.Zone.ID, geofence.Enter)
	require.NoError(t, err)

	check, err := svc.Check(ctx, res.Zone.ID)
	require.NoError(t, err)
	require.NotNil(t, check.Closed)

	_, err = h.Deliver(ctx, res.Zone.ID, geofence.Enter)
	require.NoError(t, err)
	visits, err := svc.ListVisits(ctx)
	require.NoError(t, err)
	require.Len(t, visits, 2)

	require.NoError(t, svc.DeleteVisit(ctx, visits[1].ID))
	require.ErrorIs(t, svc.DeleteVisit(ctx, visits[1].ID), store.ErrVisitNotFound)

	n, err := svc.ClearVisits(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	require.NoError(t, svc.Delete(ctx, res.Zone.ID))
	_, err = svc.Get(ctx, res.Zone.ID)
	require.ErrorIs(t, err, store.ErrZoneNotFound)
}
