package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

// CurrentVersion is the configuration file format version.
const CurrentVersion = "1"

// Config is the careradius configuration file.
type Config struct {
	Version       string              `yaml:"version"`
	Database      DatabaseConfig      `yaml:"database"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	NATS          NATSConfig          `yaml:"nats"`
	MQTT          MQTTConfig          `yaml:"mqtt"`
	Location      LocationConfig      `yaml:"location"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Recovery      RecoveryConfig      `yaml:"recovery"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `yaml:"path"` // file path or ":memory:"
}

// MonitorConfig selects and tunes the region monitor adapter.
type MonitorConfig struct {
	Type MonitorType `yaml:"type"` // local|nats|mqtt
	// MaxRegions is the service quota; registrations beyond it are rejected. 0 = unlimited.
	MaxRegions int `yaml:"max_regions"`
	// BackgroundLocation mirrors the device's continuous location grant.
	BackgroundLocation bool          `yaml:"background_location"`
	RegisterTimeout    time.Duration `yaml:"register_timeout"`
	// EventBuffer bounds transitions queued by the local monitor.
	EventBuffer int `yaml:"event_buffer"`
	// InitialEnter emits ENTER when a region is registered while the device is inside it.
	InitialEnter bool `yaml:"initial_enter"`
	// Retry governs retries of registrations the service rejected transiently.
	Retry RetryConfig `yaml:"retry"`

	backgroundLocationSpecified bool
	initialEnterSpecified       bool
}

// UnmarshalYAML records which booleans were set so defaults do not override an explicit false.
func (m *MonitorConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw MonitorConfig
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*m = MonitorConfig(r)
	for i := 0; i+1 < len(value.Content); i += 2 {
		switch value.Content[i].Value {
		case "background_location":
			m.backgroundLocationSpecified = true
		case "initial_enter":
			m.initialEnterSpecified = true
		}
	}
	return nil
}

// RetryConfig configures backoff between registration attempts.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"` // fixed|linear|exponential
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// NATSConfig configures the NATS connection shared by the NATS monitor,
// notifier and position provider.
type NATSConfig struct {
	URL                  string        `yaml:"url"`
	RegionsBucket        string        `yaml:"regions_bucket"`
	TransitionsSubject   string        `yaml:"transitions_subject"`
	NotificationsSubject string        `yaml:"notifications_subject"`
	PositionBucket       string        `yaml:"position_bucket"`
	PositionKey          string        `yaml:"position_key"`
	Timeout              time.Duration `yaml:"timeout"`
}

// MQTTConfig configures the MQTT monitor.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// LocationConfig selects where the edit reconciler reads the device position.
type LocationConfig struct {
	Provider  LocationProvider `yaml:"provider"` // none|fixed|monitor|nats
	Timeout   time.Duration    `yaml:"timeout"`
	MaxAge    time.Duration    `yaml:"max_age"`
	Latitude  float64          `yaml:"latitude"`
	Longitude float64          `yaml:"longitude"`
}

// NotificationsConfig configures transition notifications.
type NotificationsConfig struct {
	Enabled bool               `yaml:"enabled"`
	Sinks   []NotificationSink `yaml:"sinks"` // log|nats
	Timeout time.Duration      `yaml:"timeout"`

	enabledSpecified bool
}

// UnmarshalYAML records whether enabled was set explicitly.
func (n *NotificationsConfig) UnmarshalYAML(value *yaml.Node) error {
	type raw NotificationsConfig
	var r raw
	if err := value.Decode(&r); err != nil {
		return err
	}
	*n = NotificationsConfig(r)
	for i := 0; i+1 < len(value.Content); i += 2 {
		if value.Content[i].Value == "enabled" {
			n.enabledSpecified = true
		}
	}
	return nil
}

// RecoveryConfig configures re-registration after the monitor lost its regions.
type RecoveryConfig struct {
	// ReregisterInterval runs a periodic re-registration pass. 0 disables it.
	ReregisterInterval time.Duration `yaml:"reregister_interval"`
	// BootMarker is watched for creation or writes; either triggers a pass.
	BootMarker  string `yaml:"boot_marker"`
	Concurrency int    `yaml:"concurrency"`
}

// HTTPConfig configures the admin API.
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates the configuration file.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return nil, ferrors.ConfigError("configuration file not found").
			WithContext("path", configPath).
			Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes YAML content with ${VAR} expansion and applies defaults and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").Build()
	}

	if cfg.Version != "" && cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).
			Build()
	}

	if err := applyDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	loadEnvFiles()
	cfg := &Config{}
	_ = applyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Config{
		Version:  CurrentVersion,
		Database: DatabaseConfig{Path: "./careradius.db"},
		Monitor: MonitorConfig{
			Type:               MonitorLocal,
			MaxRegions:         100,
			BackgroundLocation: true,
			RegisterTimeout:    5 * time.Second,
			EventBuffer:        64,
			InitialEnter:       true,
			Retry: RetryConfig{
				Backoff:    RetryBackoffLinear,
				Initial:    200 * time.Millisecond,
				Max:        2 * time.Second,
				MaxRetries: 2,
			},
		},
		NATS: NATSConfig{
			URL:                  "${NATS_URL}",
			RegionsBucket:        "careradius-regions",
			TransitionsSubject:   "careradius.transitions",
			NotificationsSubject: "careradius.notifications",
			PositionBucket:       "careradius-position",
			PositionKey:          "device.current",
			Timeout:              5 * time.Second,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://127.0.0.1:1883",
			ClientID:    "careradius",
			Username:    "${MQTT_USERNAME}",
			Password:    "${MQTT_PASSWORD}",
			TopicPrefix: "careradius",
			QoS:         1,
		},
		Location: LocationConfig{
			Provider: LocationMonitor,
			Timeout:  3 * time.Second,
			MaxAge:   2 * time.Minute,
		},
		Notifications: NotificationsConfig{
			Enabled: true,
			Sinks:   []NotificationSink{NotificationSinkLog},
			Timeout: 2 * time.Second,
		},
		Recovery: RecoveryConfig{
			ReregisterInterval: 15 * time.Minute,
			BootMarker:         "/run/careradius/boot",
			Concurrency:        4,
		},
		HTTP:    HTTPConfig{Enabled: true, Addr: "127.0.0.1:8787"},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
