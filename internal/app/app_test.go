package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/careradius/internal/config"
	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/location"
	"git.home.luguber.info/inful/careradius/internal/monitor"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	return cfg
}

// namedAdapter is a local monitor that does not expose itself as *monitor.Local.
type namedAdapter struct{ *monitor.Local }

func (namedAdapter) Name() string { return "stub" }

func TestBuild_DefaultsToLocalMonitor(t *testing.T) {
	a, err := Build(t.Context(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })

	require.Equal(t, "local", a.Monitor.Name())
	require.True(t, a.Notifier.Enabled())

	_, err = a.Location.CurrentPosition(t.Context())
	require.ErrorIs(t, err, location.ErrUnavailable)

	home := geo.Position{Latitude: 37.77, Longitude: -122.41}
	require.NoError(t, a.UpdatePosition(t.Context(), home))
	got, err := a.Location.CurrentPosition(t.Context())
	require.NoError(t, err)
	require.Equal(t, home, got)

	require.Error(t, a.UpdatePosition(t.Context(), geo.Position{Latitude: 91}))
}

func TestBuild_FixedLocationAndDisabledNotifications(t *testing.T) {
	cfg := testConfig(t)
	cfg.Location.Provider = config.LocationFixed
	cfg.Location.Latitude = 1
	cfg.Location.Longitude = 2
	cfg.Notifications.Enabled = false

	a, err := Build(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	p, err := a.Location.CurrentPosition(t.Context())
	require.NoError(t, err)
	require.Equal(t, geo.Position{Latitude: 1, Longitude: 2}, p)
	require.False(t, a.Notifier.Enabled())
}

func TestBuild_PositionFeedNeedsConsumer(t *testing.T) {
	a, err := Build(t.Context(), testConfig(t), WithAdapter(namedAdapter{monitor.NewLocal()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	err = a.UpdatePosition(t.Context(), geo.Position{Latitude: 1, Longitude: 1})
	require.ErrorIs(t, err, ErrPositionFeedUnsupported)
}

func TestBuild_ZoneServiceRegistersWithMonitor(t *testing.T) {
	local := monitor.NewLocal()
	a, err := Build(t.Context(), testConfig(t), WithAdapter(local))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	res, err := a.Zones.Create(t.Context(), geofence.Zone{
		Name:         "Home",
		Center:       geo.Position{Latitude: 37.77, Longitude: -122.41},
		RadiusMeters: 30,
	})
	require.NoError(t, err)
	require.True(t, res.Registration.Monitored)
	require.Len(t, local.Regions(), 1)
}
