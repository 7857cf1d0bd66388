package config

import (
	"git.home.luguber.info/inful/careradius/internal/foundation/normalization"
)

// MonitorType selects the region monitor adapter.
type MonitorType string

const (
	MonitorLocal MonitorType = "local"
	MonitorNATS  MonitorType = "nats"
	MonitorMQTT  MonitorType = "mqtt"
)

var monitorTypeNormalizer = normalization.NewEnumNormalizer("monitor type", map[string]MonitorType{
	"local": MonitorLocal,
	"nats":  MonitorNATS,
	"mqtt":  MonitorMQTT,
}, MonitorLocal)

// NormalizeMonitorType canonicalizes raw; invalid input yields an error.
func NormalizeMonitorType(raw string) (MonitorType, error) {
	return monitorTypeNormalizer.NormalizeWithValidation(raw)
}

// LocationProvider selects where the device position comes from.
type LocationProvider string

const (
	LocationNone    LocationProvider = "none"
	LocationFixed   LocationProvider = "fixed"
	LocationMonitor LocationProvider = "monitor"
	LocationNATS    LocationProvider = "nats"
)

var locationProviderNormalizer = normalization.NewEnumNormalizer("location provider", map[string]LocationProvider{
	"none":    LocationNone,
	"fixed":   LocationFixed,
	"monitor": LocationMonitor,
	"nats":    LocationNATS,
}, LocationNone)

func NormalizeLocationProvider(raw string) (LocationProvider, error) {
	return locationProviderNormalizer.NormalizeWithValidation(raw)
}

// NotificationSink selects a notification destination.
type NotificationSink string

const (
	NotificationSinkLog  NotificationSink = "log"
	NotificationSinkNATS NotificationSink = "nats"
)

var notificationSinkNormalizer = normalization.NewEnumNormalizer("notification sink", map[string]NotificationSink{
	"log":  NotificationSinkLog,
	"nats": NotificationSinkNATS,
}, NotificationSinkLog)

func NormalizeNotificationSink(raw string) (NotificationSink, error) {
	return notificationSinkNormalizer.NormalizeWithValidation(raw)
}

// RetryBackoffMode enumerates supported backoff strategies.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// NormalizeRetryBackoff canonicalizes raw; unknown values become linear.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

func NormalizeLogLevel(raw string) LogLevel {
	return logLevelNormalizer.Normalize(raw)
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

func NormalizeLogFormat(raw string) LogFormat {
	return logFormatNormalizer.Normalize(raw)
}
