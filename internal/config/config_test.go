package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("version: \"1\"\n"))
	require.NoError(t, err)

	require.Equal(t, "./careradius.db", cfg.Database.Path)
	require.Equal(t, MonitorLocal, cfg.Monitor.Type)
	require.True(t, cfg.Monitor.BackgroundLocation)
	require.True(t, cfg.Monitor.InitialEnter)
	require.Equal(t, 100, cfg.Monitor.MaxRegions)
	require.Equal(t, 5*time.Second, cfg.Monitor.RegisterTimeout)
	require.Equal(t, LocationMonitor, cfg.Location.Provider)
	require.True(t, cfg.Notifications.Enabled)
	require.Equal(t, []NotificationSink{NotificationSinkLog}, cfg.Notifications.Sinks)
	require.Equal(t, time.Duration(0), cfg.Recovery.ReregisterInterval)
	require.Equal(t, 4, cfg.Recovery.Concurrency)
	require.Equal(t, LogLevelInfo, cfg.Logging.Level)
	require.Equal(t, LogFormatText, cfg.Logging.Format)
}

func TestParseKeepsExplicitFalse(t *testing.T) {
	cfg, err := Parse([]byte(`
monitor:
  background_location: false
  initial_enter: false
notifications:
  enabled: false
`))
	require.NoError(t, err)
	require.False(t, cfg.Monitor.BackgroundLocation)
	require.False(t, cfg.Monitor.InitialEnter)
	require.False(t, cfg.Notifications.Enabled)
}

func TestParseNormalizesEnums(t *testing.T) {
	cfg, err := Parse([]byte(`
monitor:
  type: " NATS "
notifications:
  sinks: [LOG, nats]
logging:
  level: WARNING
  format: JSON
recovery:
  reregister_interval: 15m
`))
	require.NoError(t, err)
	require.Equal(t, MonitorNATS, cfg.Monitor.Type)
	require.Equal(t, LocationNATS, cfg.Location.Provider)
	require.Equal(t, []NotificationSink{NotificationSinkLog, NotificationSinkNATS}, cfg.Notifications.Sinks)
	require.Equal(t, LogLevelWarn, cfg.Logging.Level)
	require.Equal(t, LogFormatJSON, cfg.Logging.Format)
	require.Equal(t, 15*time.Minute, cfg.Recovery.ReregisterInterval)
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"monitor type":      "monitor:\n  type: bluetooth\n",
		"version":           "version: \"9\"\n",
		"fixed without pos": "location:\n  provider: fixed\n  latitude: 123\n",
		"monitor provider":  "monitor:\n  type: mqtt\nlocation:\n  provider: monitor\n",
		"qos":               "mqtt:\n  qos: 3\n",
		"http addr":         "http:\n  enabled: true\n  addr: nonsense\n",
		"notification sink": "notifications:\n  sinks: [pager]\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			require.Error(t, err)
			require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig), "got %v", err)
		})
	}
}

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("CARERADIUS_TEST_NATS", "nats://broker:4222")
	cfg, err := Parse([]byte("nats:\n  url: ${CARERADIUS_TEST_NATS}\n"))
	require.NoError(t, err)
	require.Equal(t, "nats://broker:4222", cfg.NATS.URL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	require.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInitWritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "careradius.yaml")
	require.NoError(t, Init(path, false))
	require.Error(t, Init(path, false))
	require.NoError(t, Init(path, true))

	t.Setenv("NATS_URL", "nats://example:4222")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "nats://example:4222", cfg.NATS.URL)
	require.Equal(t, 15*time.Minute, cfg.Recovery.ReregisterInterval)
	require.True(t, cfg.HTTP.Enabled)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, ValidateConfig(cfg))
	require.Equal(t, CurrentVersion, cfg.Version)
}

func TestParseNormalizesRetryBackoff(t *testing.T) {
	cfg, err := Parse([]byte(`
monitor:
  retry:
    backoff: EXPONENTIAL
    max_retries: 3
`))
	require.NoError(t, err)
	require.Equal(t, RetryBackoffExponential, cfg.Monitor.Retry.Backoff)
	require.Equal(t, 3, cfg.Monitor.Retry.MaxRetries)
	require.Equal(t, 200*time.Millisecond, cfg.Monitor.Retry.Initial)
	require.Equal(t, 2*time.Second, cfg.Monitor.Retry.Max)

	cfg, err = Parse([]byte("monitor:\n  retry:\n    backoff: sideways\n"))
	require.NoError(t, err)
	require.Equal(t, RetryBackoffLinear, cfg.Monitor.Retry.Backoff)
	require.Zero(t, cfg.Monitor.Retry.MaxRetries)
}
