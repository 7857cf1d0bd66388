package config

import (
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// defaultAppliers run in order; later domains may read values set by earlier ones.
var defaultAppliers = []DefaultApplier{
	&databaseDefaults{},
	&monitorDefaults{},
	&natsDefaults{},
	&mqttDefaults{},
	&locationDefaults{},
	&notificationDefaults{},
	&recoveryDefaults{},
	&httpDefaults{},
	&loggingDefaults{},
}

func applyDefaults(cfg *Config) error {
	if cfg.Version == "" {
		cfg.Version = CurrentVersion
	}
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

type databaseDefaults struct{}

func (databaseDefaults) Domain() string { return "database" }

func (databaseDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./careradius.db"
	}
	return nil
}

type monitorDefaults struct{}

func (monitorDefaults) Domain() string { return "monitor" }

func (monitorDefaults) ApplyDefaults(cfg *Config) error {
	m := &cfg.Monitor
	if m.Type == "" {
		m.Type = MonitorLocal
	} else if mt, err := NormalizeMonitorType(string(m.Type)); err == nil {
		m.Type = mt
	}
	if m.MaxRegions < 0 {
		m.MaxRegions = 0
	}
	if m.MaxRegions == 0 {
		m.MaxRegions = 100
	}
	if !m.backgroundLocationSpecified {
		m.BackgroundLocation = true
	}
	if !m.initialEnterSpecified {
		m.InitialEnter = true
	}
	if m.RegisterTimeout <= 0 {
		m.RegisterTimeout = 5 * time.Second
	}
	if m.EventBuffer <= 0 {
		m.EventBuffer = 64
	}
	m.Retry.Backoff = NormalizeRetryBackoff(string(m.Retry.Backoff))
	if m.Retry.Initial <= 0 {
		m.Retry.Initial = 200 * time.Millisecond
	}
	if m.Retry.Max <= 0 {
		m.Retry.Max = 2 * time.Second
	}
	if m.Retry.MaxRetries < 0 {
		m.Retry.MaxRetries = 0
	}
	return nil
}

type natsDefaults struct{}

func (natsDefaults) Domain() string { return "nats" }

func (natsDefaults) ApplyDefaults(cfg *Config) error {
	n := &cfg.NATS
	if n.URL == "" {
		n.URL = "nats://127.0.0.1:4222"
	}
	if n.RegionsBucket == "" {
		n.RegionsBucket = "careradius-regions"
	}
	if n.TransitionsSubject == "" {
		n.TransitionsSubject = "careradius.transitions"
	}
	if n.NotificationsSubject == "" {
		n.NotificationsSubject = "careradius.notifications"
	}
	if n.PositionBucket == "" {
		n.PositionBucket = "careradius-position"
	}
	if n.PositionKey == "" {
		n.PositionKey = "device.current"
	}
	if n.Timeout <= 0 {
		n.Timeout = 5 * time.Second
	}
	return nil
}

type mqttDefaults struct{}

func (mqttDefaults) Domain() string { return "mqtt" }

func (mqttDefaults) ApplyDefaults(cfg *Config) error {
	m := &cfg.MQTT
	if m.Broker == "" {
		m.Broker = "tcp://127.0.0.1:1883"
	}
	if m.ClientID == "" {
		m.ClientID = "careradius"
	}
	if m.TopicPrefix == "" {
		m.TopicPrefix = "careradius"
	}
	if m.QoS == 0 {
		m.QoS = 1
	}
	if m.ConnectTimeout <= 0 {
		m.ConnectTimeout = 10 * time.Second
	}
	return nil
}

type locationDefaults struct{}

func (locationDefaults) Domain() string { return "location" }

func (locationDefaults) ApplyDefaults(cfg *Config) error {
	l := &cfg.Location
	if l.Provider == "" {
		switch cfg.Monitor.Type {
		case MonitorLocal:
			l.Provider = LocationMonitor
		case MonitorNATS:
			l.Provider = LocationNATS
		default:
			l.Provider = LocationNone
		}
	}
	if l.Timeout <= 0 {
		l.Timeout = 3 * time.Second
	}
	if l.MaxAge <= 0 {
		l.MaxAge = 2 * time.Minute
	}
	return nil
}

type notificationDefaults struct{}

func (notificationDefaults) Domain() string { return "notifications" }

func (notificationDefaults) ApplyDefaults(cfg *Config) error {
	n := &cfg.Notifications
	if !n.enabledSpecified {
		n.Enabled = true
	}
	if len(n.Sinks) == 0 {
		n.Sinks = []NotificationSink{NotificationSinkLog}
	}
	if n.Timeout <= 0 {
		n.Timeout = 2 * time.Second
	}
	return nil
}

type recoveryDefaults struct{}

func (recoveryDefaults) Domain() string { return "recovery" }

func (recoveryDefaults) ApplyDefaults(cfg *Config) error {
	r := &cfg.Recovery
	if r.ReregisterInterval < 0 {
		r.ReregisterInterval = 0
	}
	if r.Concurrency <= 0 {
		r.Concurrency = 4
	}
	return nil
}

type httpDefaults struct{}

func (httpDefaults) Domain() string { return "http" }

func (httpDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = "127.0.0.1:8787"
	}
	return nil
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}
