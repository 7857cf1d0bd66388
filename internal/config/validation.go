package config

import (
	"net"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geo"
)

// ValidateConfig normalizes enumerations in place and validates every section.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	for _, step := range []func() error{
		cv.validateMonitor,
		cv.validateLocation,
		cv.validateNotifications,
		cv.validateMQTT,
		cv.validateHTTP,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func invalid(field string, err error) error {
	return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid configuration value").
		WithContext("field", field).
		Build()
}

func (cv *configurationValidator) validateMonitor() error {
	mt, err := NormalizeMonitorType(string(cv.config.Monitor.Type))
	if err != nil {
		return invalid("monitor.type", err)
	}
	cv.config.Monitor.Type = mt
	return nil
}

func (cv *configurationValidator) validateLocation() error {
	l := &cv.config.Location
	p, err := NormalizeLocationProvider(string(l.Provider))
	if err != nil {
		return invalid("location.provider", err)
	}
	l.Provider = p

	if p == LocationFixed {
		pos := geo.Position{Latitude: l.Latitude, Longitude: l.Longitude}
		if err := pos.Validate(); err != nil {
			return invalid("location.latitude/longitude", err)
		}
	}
	if p == LocationMonitor && cv.config.Monitor.Type != MonitorLocal {
		return ferrors.ConfigError("location.provider monitor requires monitor.type local").
			WithContext("monitor.type", string(cv.config.Monitor.Type)).
			Build()
	}
	return nil
}

func (cv *configurationValidator) validateNotifications() error {
	sinks := cv.config.Notifications.Sinks
	for i, raw := range sinks {
		s, err := NormalizeNotificationSink(string(raw))
		if err != nil {
			return invalid("notifications.sinks", err)
		}
		sinks[i] = s
	}
	return nil
}

func (cv *configurationValidator) validateMQTT() error {
	if cv.config.MQTT.QoS > 2 {
		return ferrors.ConfigError("mqtt.qos must be 0, 1 or 2").
			WithContext("qos", cv.config.MQTT.QoS).
			Build()
	}
	return nil
}

func (cv *configurationValidator) validateHTTP() error {
	if !cv.config.HTTP.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(cv.config.HTTP.Addr); err != nil {
		return invalid("http.addr", err)
	}
	return nil
}
