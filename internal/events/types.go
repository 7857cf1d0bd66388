package events

import "time"

// ZoneOp names the zone mutation carried by ZoneChanged.
type ZoneOp string

const (
	ZoneCreated ZoneOp = "created"
	ZoneUpdated ZoneOp = "updated"
	ZoneDeleted ZoneOp = "deleted"
)

// ZoneChanged is the zone change stream. It is emitted after the storage write
// committed and is consumed by list views that keep a snapshot of all zones.
type ZoneChanged struct {
	ZoneID    int64
	Op        ZoneOp
	ChangedAt time.Time
}

// VisitOpened is emitted after an ENTER opened a visit.
type VisitOpened struct {
	VisitID   int64
	ZoneID    int64
	ZoneName  string
	EntryTime time.Time
}

// VisitClosed is emitted after an EXIT, or a geometry edit, closed a visit.
type VisitClosed struct {
	VisitID        int64
	ZoneID         int64
	ZoneName       string
	ExitTime       time.Time
	DurationMillis int64
	Synthetic      bool
}

// RecoveryRequested asks for every persisted zone to be registered again with
// the region monitor. Reason is one of "startup", "boot", "schedule", "manual".
type RecoveryRequested struct {
	Reason      string
	RequestedAt time.Time
}

// VisitEvent is implemented by both visit events so a single subscription can
// observe the ledger.
type VisitEvent interface {
	visitEvent()
	ZoneRef() int64
}

func (VisitOpened) visitEvent()      {}
func (VisitClosed) visitEvent()      {}
func (e VisitOpened) ZoneRef() int64 { return e.ZoneID }
func (e VisitClosed) ZoneRef() int64 { return e.ZoneID }
