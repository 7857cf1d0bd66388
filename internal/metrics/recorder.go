package metrics

import "time"

// ResultLabel enumerates result categories for counters.
type ResultLabel string

const (
	ResultMonitored   ResultLabel = "monitored"
	ResultUnmonitored ResultLabel = "unmonitored"
	ResultFailed      ResultLabel = "failed"
	ResultSuccess     ResultLabel = "success"
	ResultSkipped     ResultLabel = "skipped"
	ResultUnavailable ResultLabel = "location_unavailable"
	ResultInside      ResultLabel = "inside"
	ResultClosed      ResultLabel = "closed"
)

// Recorder defines observability hooks for the geofence lifecycle. All methods
// must be safe to call on the NoopRecorder, which is the default everywhere.
type Recorder interface {
	// IncTransition counts a handled transition by kind (ENTER|EXIT) and outcome.
	IncTransition(kind, outcome string)
	ObserveTransitionDuration(d time.Duration)
	IncRegistration(result ResultLabel)
	IncUnregistration(result ResultLabel)
	ObserveReregisterAll(d time.Duration, zones int)
	IncReconcile(result ResultLabel)
	IncNotification(result ResultLabel)
	SetZones(n int)
	SetOpenVisits(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncTransition(string, string)            {}
func (NoopRecorder) ObserveTransitionDuration(time.Duration) {}
func (NoopRecorder) IncRegistration(ResultLabel)             {}
func (NoopRecorder) IncUnregistration(ResultLabel)           {}
func (NoopRecorder) ObserveReregisterAll(time.Duration, int) {}
func (NoopRecorder) IncReconcile(ResultLabel)                {}
func (NoopRecorder) IncNotification(ResultLabel)             {}
func (NoopRecorder) SetZones(int)                            {}
func (NoopRecorder) SetOpenVisits(int)                       {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
