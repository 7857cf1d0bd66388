package geofence

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
)

func validZone() Zone {
	return Zone{
		Name:         "Home",
		Center:       geo.Position{Latitude: 37.77, Longitude: -122.41},
		RadiusMeters: 30,
	}
}

func TestZoneValidate(t *testing.T) {
	require.NoError(t, validZone().Validate())

	cases := map[string]func(z *Zone){
		"blank name":      func(z *Zone) { z.Name = "   " },
		"radius too low":  func(z *Zone) { z.RadiusMeters = 9.99 },
		"radius too high": func(z *Zone) { z.RadiusMeters = 50.01 },
		"radius NaN":      func(z *Zone) { z.RadiusMeters = math.NaN() },
		"bad latitude":    func(z *Zone) { z.Center.Latitude = -91 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			z := validZone()
			mutate(&z)
			err := z.Validate()
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
		})
	}

	z := validZone()
	z.RadiusMeters = MinRadiusMeters
	require.NoError(t, z.Validate())
	z.RadiusMeters = MaxRadiusMeters
	require.NoError(t, z.Validate())
}

func TestZoneNormalize(t *testing.T) {
	z := validZone()
	z.Name = "  Café  "
	n := z.Normalize()
	require.Equal(t, "Café", n.Name)
	require.Equal(t, DefaultIcon, n.Icon)

	z.Icon = "🏠"
	require.Equal(t, "🏠", z.Normalize().Icon)
}

func TestGeometryNarrowed(t *testing.T) {
	old := validZone()
	old.RadiusMeters = 50

	shrunk := old
	shrunk.RadiusMeters = 15
	require.True(t, shrunk.GeometryNarrowed(old))

	widened := old
	widened.RadiusMeters = 50
	widened.Name = "Renamed"
	require.False(t, widened.GeometryNarrowed(old))

	moved := old
	moved.Center = geo.Offset(old.Center, 45, 3)
	require.True(t, moved.GeometryNarrowed(old))

	resaved := old
	resaved.Center = geo.Position{Latitude: old.Center.Latitude + 1e-8, Longitude: old.Center.Longitude}
	require.False(t, resaved.GeometryNarrowed(old))
}

func TestVisitClose(t *testing.T) {
	v := OpenVisit(1, "Home", time.UnixMilli(1000))
	require.True(t, v.IsOpen())
	require.Equal(t, "--", v.FormattedDuration())

	closed, err := v.Close(time.UnixMilli(5000))
	require.NoError(t, err)
	require.False(t, closed.IsOpen())
	require.Equal(t, int64(4000), *closed.DurationMillis)
	require.Equal(t, int64(5000), closed.ExitTime.UnixMilli())
	require.Equal(t, "00:00:04", closed.FormattedDuration())

	_, err = closed.Close(time.UnixMilli(6000))
	require.Error(t, err)
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "00:00:00", FormatDuration(0))
	require.Equal(t, "01:01:01", FormatDuration(time.Hour+time.Minute+time.Second+999*time.Millisecond))
	require.Equal(t, "26:00:00", FormatDuration(26*time.Hour))
}

func TestParseTransitionKind(t *testing.T) {
	k, err := ParseTransitionKind("enter")
	require.NoError(t, err)
	require.Equal(t, Enter, k)

	k, err = ParseTransitionKind(" EXIT ")
	require.NoError(t, err)
	require.Equal(t, Exit, k)

	_, err = ParseTransitionKind("dwell")
	require.Error(t, err)
}
