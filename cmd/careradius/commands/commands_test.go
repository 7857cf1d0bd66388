package commands

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/careradius/internal/config"
	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
)

type env struct {
	config string
	db     string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	e := env{config: filepath.Join(dir, "careradius.yaml"), db: filepath.Join(dir, "careradius.db")}
	out, err := e.runRaw(t, "init")
	require.NoError(t, err)
	require.Contains(t, out, "initialized successfully")
	return e
}

func (e env) runRaw(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Vars{"version": "test"},
		kong.Exit(func(int) { t.Fatalf("unexpected exit for %v", args) }))
	require.NoError(t, err)

	kctx, err := parser.Parse(append([]string{"-c", e.config, "--db", e.db}, args...))
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	err = kctx.Run(&Global{Logger: slog.Default(), Out: &out}, &cli)
	return out.String(), err
}

func (e env) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.runRaw(t, args...)
	require.NoError(t, err, "careradius %v", args)
	return out
}

func exitCode(err error) int {
	return ferrors.NewCLIErrorAdapter(false, slog.Default()).ExitCodeFor(err)
}

func TestInitRefusesToOverwrite(t *testing.T) {
	e := newEnv(t)
	_, err := e.runRaw(t, "init")
	require.Error(t, err)
	require.Equal(t, 7, exitCode(err))

	out := e.run(t, "init", "--force")
	require.Contains(t, out, "initialized successfully")
}

func TestZoneLifecycle(t *testing.T) {
	e := newEnv(t)

	out := e.run(t, "zone", "add", "Home", "--lat", "37.77", "--lng=-122.41", "--radius", "30", "--icon", "🏠")
	require.Contains(t, out, "created zone 1 (Home)")
	require.Contains(t, out, "monitoring: active")

	e.run(t, "zone", "add", "Office", "--lat", "37.78", "--lng=-122.40")

	var list []geofence.Zone
	require.NoError(t, json.Unmarshal([]byte(e.run(t, "zone", "list", "-o", "json")), &list))
	require.Len(t, list, 2)
	require.Equal(t, "Office", list[0].Name, "newest first")
	require.Equal(t, 30.0, list[1].RadiusMeters)
	require.Equal(t, "🏠", list[1].Icon)

	table := e.run(t, "zone", "list")
	require.Contains(t, table, "NAME")
	require.Contains(t, table, "Home")

	out = e.run(t, "zone", "update", "1", "--name", "Cottage", "--entry-message", "Welcome back")
	require.Contains(t, out, "updated zone 1 (Cottage)")

	// No position is known in a one-shot process, so shrinking cannot close anything.
	e.run(t, "transition", "enter", "1")
	out = e.run(t, "zone", "update", "1", "--radius", "15")
	require.Contains(t, out, "open visit kept: location_unavailable")

	out = e.run(t, "zone", "move", "1", "--lat", "37.7701", "--lng=-122.4101")
	require.Contains(t, out, "moved zone 1")

	out = e.run(t, "zone", "check", "1")
	require.Contains(t, out, "location_unavailable")

	require.Contains(t, e.run(t, "zone", "delete", "2"), "deleted zone 2")
	_, err := e.runRaw(t, "zone", "delete", "2")
	require.Error(t, err)
	require.Equal(t, 4, exitCode(err))
}

func TestZoneAddValidation(t *testing.T) {
	e := newEnv(t)

	_, err := e.runRaw(t, "zone", "add", "Tiny", "--lat", "1", "--lng", "1", "--radius", "5")
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))

	_, err = e.runRaw(t, "zone", "add", "Nowhere", "--lat", "91", "--lng", "1")
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))

	_, err = e.runRaw(t, "zone", "add", "NoCenter")
	require.Error(t, err, "lat and lng are required")
}

func TestTransitionsBuildVisitHistory(t *testing.T) {
	e := newEnv(t)
	e.run(t, "zone", "add", "Home", "--lat", "37.77", "--lng=-122.41")

	require.Contains(t, e.run(t, "transition", "ENTER", "1"), "ENTER zone 1: opened")
	require.Contains(t, e.run(t, "transition", "enter", "1"), "duplicate_enter")
	require.Contains(t, e.run(t, "transition", "exit", "1"), "EXIT zone 1: closed")
	require.Contains(t, e.run(t, "transition", "exit", "1"), "stray_exit")

	_, err := e.runRaw(t, "transition", "sideways", "1")
	require.Error(t, err)
	require.Equal(t, 2, exitCode(err))

	var visits []responses.VisitResponse
	require.NoError(t, json.Unmarshal([]byte(e.run(t, "visit", "list", "-o", "json")), &visits))
	require.Len(t, visits, 1)
	require.NotNil(t, visits[0].ExitTime)
	require.Regexp(t, `^\d{2}:\d{2}:\d{2}$`, visits[0].Duration)

	// Deleting the zone keeps the visit under its snapshot name.
	e.run(t, "zone", "delete", "1")
	table := e.run(t, "visit", "list")
	require.Contains(t, table, "Home (deleted)")

	_, err = e.runRaw(t, "visit", "clear")
	require.Error(t, err)
	require.Contains(t, e.run(t, "visit", "clear", "--yes"), "deleted 1 visits")

	_, err = e.runRaw(t, "visit", "delete", "1")
	require.Equal(t, 4, exitCode(err))
}

func TestReregisterAndMigrate(t *testing.T) {
	e := newEnv(t)
	e.run(t, "zone", "add", "Home", "--lat", "37.77", "--lng=-122.41")
	e.run(t, "zone", "add", "Gym", "--lat", "37.70", "--lng=-122.41")

	out := e.run(t, "reregister")
	require.Contains(t, out, "2 zones: 2 monitored, 0 need background location, 0 failed")

	out = e.run(t, "migrate")
	require.Contains(t, out, "at schema version")
}

func TestMissingConfigIsAConfigError(t *testing.T) {
	e := env{config: filepath.Join(t.TempDir(), "absent.yaml"), db: ":memory:"}
	_, err := e.runRaw(t, "zone", "list")
	require.Error(t, err)
	require.Equal(t, 7, exitCode(err))
}

func TestLoggingFollowsConfig(t *testing.T) {
	e := newEnv(t)
	data, err := os.ReadFile(e.config)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte("format: text"), []byte("format: json"), 1)
	require.NoError(t, os.WriteFile(e.config, data, 0o600))

	e.run(t, "zone", "list")
	_, ok := slog.Default().Handler().(*slog.JSONHandler)
	require.True(t, ok)

	var buf bytes.Buffer
	newLogger(&buf, config.LoggingConfig{Level: config.LogLevelWarn, Format: config.LogFormatText}, false).Info("hidden")
	require.Empty(t, buf.String())
	newLogger(&buf, config.LoggingConfig{Level: config.LogLevelWarn, Format: config.LogFormatText}, true).Debug("shown")
	require.Contains(t, buf.String(), "shown")
}
