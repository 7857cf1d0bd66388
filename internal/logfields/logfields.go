package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyZoneID       = "zone_id"
	KeyZoneName     = "zone_name"
	KeyVisitID      = "visit_id"
	KeyTransition   = "transition"
	KeyTransitionID = "transition_id"
	KeyOutcome      = "outcome"
	KeyMonitor      = "monitor"
	KeyRadius       = "radius_m"
	KeyDistance     = "distance_m"
	KeyDurationMS   = "duration_ms"
	KeyReason       = "reason"
	KeyPath         = "path"
	KeyMethod       = "method"
	KeyStatus       = "status"
	KeyCount        = "count"
	KeyRequestID    = "request_id"
	KeyRemoteAddr   = "remote_addr"
	KeyError        = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func ZoneID(id int64) slog.Attr         { return slog.Int64(KeyZoneID, id) }
func ZoneName(n string) slog.Attr       { return slog.String(KeyZoneName, n) }
func VisitID(id int64) slog.Attr        { return slog.Int64(KeyVisitID, id) }
func Transition(kind string) slog.Attr  { return slog.String(KeyTransition, kind) }
func TransitionID(id string) slog.Attr  { return slog.String(KeyTransitionID, id) }
func Outcome(o string) slog.Attr        { return slog.String(KeyOutcome, o) }
func Monitor(name string) slog.Attr     { return slog.String(KeyMonitor, name) }
func Radius(m float64) slog.Attr        { return slog.Float64(KeyRadius, m) }
func Distance(m float64) slog.Attr      { return slog.Float64(KeyDistance, m) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func Reason(r string) slog.Attr         { return slog.String(KeyReason, r) }
func Path(p string) slog.Attr           { return slog.String(KeyPath, p) }
func Method(m string) slog.Attr         { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr         { return slog.Int(KeyStatus, code) }
func Count(n int) slog.Attr             { return slog.Int(KeyCount, n) }
func RequestID(id string) slog.Attr     { return slog.String(KeyRequestID, id) }
func RemoteAddr(a string) slog.Attr     { return slog.String(KeyRemoteAddr, a) }

// Elapsed reports the time since start in fractional milliseconds.
func Elapsed(start time.Time) slog.Attr {
	return DurationMS(float64(time.Since(start).Microseconds()) / 1000)
}

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
