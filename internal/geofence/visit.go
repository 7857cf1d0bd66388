package geofence

import (
	"fmt"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
)

// Visit is one stay inside a zone. ExitTime and DurationMillis are nil while the
// visit is open. ZoneID becomes nil when the zone is deleted; ZoneName is the
// snapshot taken when the visit was opened and is never rewritten.
type Visit struct {
	ID             int64      `json:"id"`
	ZoneID         *int64     `json:"zone_id"`
	ZoneName       string     `json:"zone_name"`
	EntryTime      time.Time  `json:"entry_time"`
	ExitTime       *time.Time `json:"exit_time"`
	DurationMillis *int64     `json:"duration_ms"`
}

// VisitWithZone pairs a visit with its zone; Zone is nil for deleted zones.
type VisitWithZone struct {
	Visit
	Zone *Zone `json:"zone"`
}

// OpenVisit starts a visit for zoneID at entry.
func OpenVisit(zoneID int64, zoneName string, entry time.Time) Visit {
	id := zoneID
	return Visit{
		ZoneID:    &id,
		ZoneName:  zoneName,
		EntryTime: TruncateMillis(entry),
	}
}

// IsOpen reports whether the visit has no exit yet.
func (v Visit) IsOpen() bool {
	return v.ExitTime == nil
}

// Close sets the exit time and the duration in whole milliseconds.
func (v Visit) Close(exit time.Time) (Visit, error) {
	if !v.IsOpen() {
		return v, ferrors.ValidationError("visit already closed").WithContext("visit_id", v.ID).Build()
	}
	exit = TruncateMillis(exit)
	duration := exit.UnixMilli() - v.EntryTime.UnixMilli()
	v.ExitTime = &exit
	v.DurationMillis = &duration
	return v, nil
}

// Duration returns the visit duration, zero while open.
func (v Visit) Duration() time.Duration {
	if v.DurationMillis == nil {
		return 0
	}
	return time.Duration(*v.DurationMillis) * time.Millisecond
}

// FormattedDuration renders the duration as HH:MM:SS, or "--" while open.
func (v Visit) FormattedDuration() string {
	if v.DurationMillis == nil {
		return "--"
	}
	return FormatDuration(v.Duration())
}

// FormatDuration renders d as HH:MM:SS. Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
}

// TruncateMillis drops sub-millisecond precision so stored and in-memory values agree.
func TruncateMillis(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli())
}

// TransitionKind is the boundary crossing reported by the region monitor.
type TransitionKind string

const (
	Enter TransitionKind = "ENTER"
	Exit  TransitionKind = "EXIT"
)

// ParseTransitionKind accepts ENTER/EXIT in any case.
func ParseTransitionKind(raw string) (TransitionKind, error) {
	switch TransitionKind(strings.ToUpper(strings.TrimSpace(raw))) {
	case Enter:
		return Enter, nil
	case Exit:
		return Exit, nil
	default:
		return "", ferrors.ValidationError("transition kind must be ENTER or EXIT").
			WithContext("kind", raw).
			Build()
	}
}

func (k TransitionKind) String() string { return string(k) }
