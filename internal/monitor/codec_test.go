package monitor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/careradius/internal/geofence"
)

func TestDecodeTransition(t *testing.T) {
	tr, err := DecodeTransition([]byte(`{"id":"abc","zone_id":4,"kind":"enter"}`))
	require.NoError(t, err)
	require.Equal(t, "abc", tr.ID)
	require.Equal(t, int64(4), tr.ZoneID)
	require.Equal(t, geofence.Enter, tr.Kind)
	require.False(t, tr.ReceivedAt.IsZero())
}

func TestDecodeTransition_GeneratesMissingID(t *testing.T) {
	tr, err := DecodeTransition([]byte(`{"zone_id":4,"kind":"EXIT"}`))
	require.NoError(t, err)
	require.NotEmpty(t, tr.ID)
	require.Equal(t, geofence.Exit, tr.Kind)
}

func TestDecodeTransition_Invalid(t *testing.T) {
	for name, payload := range map[string]string{
		"malformed":    `{"zone_id":`,
		"missing zone": `{"kind":"ENTER"}`,
		"bad kind":     `{"zone_id":1,"kind":"DWELL"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeTransition([]byte(payload))
			require.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestZoneIDFromKey(t *testing.T) {
	id, ok := zoneIDFromKey(regionKey(12))
	require.True(t, ok)
	require.Equal(t, int64(12), id)

	_, ok = zoneIDFromKey("other.12")
	require.False(t, ok)
}
