package integration

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// base is the scenario's time origin; offsets are given in milliseconds.
var base = time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)

// manualClock is shared by the store and the transition handler so every
// timestamp in the ledger is reproducible.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) at(ms int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = base.Add(time.Duration(ms) * time.Millisecond)
}

// ledgerSnapshot is the golden representation of the zone store and the visit ledger.
type ledgerSnapshot struct {
	Outcomes []string   `yaml:"outcomes"`
	Zones    []zoneRow  `yaml:"zones"`
	Visits   []visitRow `yaml:"visits"`
}

type zoneRow struct {
	ID        int64   `yaml:"id"`
	Name      string  `yaml:"name"`
	RadiusM   float64 `yaml:"radius_m"`
	CreatedAt string  `yaml:"created_at"`
}

type visitRow struct {
	ID         int64  `yaml:"id"`
	ZoneID     *int64 `yaml:"zone_id"`
	ZoneName   string `yaml:"zone_name"`
	Entry      string `yaml:"entry"`
	Exit       string `yaml:"exit,omitempty"`
	DurationMS *int64 `yaml:"duration_ms"`
	Duration   string `yaml:"duration"`
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func snapshotOf(outcomes []string, zones []geofence.Zone, visits []geofence.VisitWithZone) ledgerSnapshot {
	s := ledgerSnapshot{Outcomes: outcomes}
	for _, z := range zones {
		s.Zones = append(s.Zones, zoneRow{ID: z.ID, Name: z.Name, RadiusM: z.RadiusMeters, CreatedAt: stamp(z.CreatedAt)})
	}
	for _, v := range visits {
		row := visitRow{
			ID:         v.ID,
			ZoneID:     v.ZoneID,
			ZoneName:   v.ZoneName,
			Entry:      stamp(v.EntryTime),
			DurationMS: v.DurationMillis,
			Duration:   v.FormattedDuration(),
		}
		if v.ExitTime != nil {
			row.Exit = stamp(*v.ExitTime)
		}
		s.Visits = append(s.Visits, row)
	}
	return s
}

// verifyGolden compares actual against the YAML golden file, or rewrites the
// file when updateGolden is set.
func verifyGolden(t *testing.T, goldenPath string, actual ledgerSnapshot, updateGolden bool) {
	t.Helper()

	if updateGolden {
		data, err := yaml.Marshal(actual)
		require.NoError(t, err, "failed to marshal golden snapshot")
		require.NoError(t, os.MkdirAll(filepath.Dir(goldenPath), 0o750))
		require.NoError(t, os.WriteFile(goldenPath, data, 0o600))
		t.Logf("Updated golden file: %s", goldenPath)
		return
	}

	// #nosec G304 -- test utility reading golden file from testdata
	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err, "failed to read golden file: %s", goldenPath)

	var expected ledgerSnapshot
	require.NoError(t, yaml.Unmarshal(data, &expected), "failed to parse golden file")
	require.Equal(t, expected, actual, "ledger mismatch against %s", goldenPath)
}
