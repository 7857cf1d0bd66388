// Package notify delivers transition notifications. Delivery is fire-and-forget:
// callers log failures and never undo the ledger write that caused them.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/careradius/internal/foundation/errors"
	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// Title is shown on every transition notification.
const Title = "Geofence Event"

// exitIDOffset keeps EXIT notifications from replacing the zone's ENTER one.
const exitIDOffset = 10000

// ErrDeliveryFailed is returned by sinks that could not hand the notification off.
var ErrDeliveryFailed = ferrors.NotificationError("notification delivery failed").Build()

// Notification is a single user-facing transition notice.
type Notification struct {
	// ID is stable per zone and kind so a newer notice replaces an older one.
	ID            int64                   `json:"id"`
	CorrelationID string                  `json:"correlation_id"`
	ZoneID        int64                   `json:"zone_id"`
	ZoneName      string                  `json:"zone_name"`
	Kind          geofence.TransitionKind `json:"kind"`
	Title         string                  `json:"title"`
	Text          string                  `json:"text"`
	Message       string                  `json:"message,omitempty"`
	At            time.Time               `json:"at"`
}

// ForTransition builds the notification for a zone transition. message is the
// zone's custom entry or exit text and may be empty.
func ForTransition(kind geofence.TransitionKind, zoneID int64, zoneName, message string, at time.Time) Notification {
	id := zoneID
	verb := "Entered"
	if kind == geofence.Exit {
		id += exitIDOffset
		verb = "Exited"
	}
	return Notification{
		ID:            id,
		CorrelationID: uuid.NewString(),
		ZoneID:        zoneID,
		ZoneName:      zoneName,
		Kind:          kind,
		Title:         Title,
		Text:          verb + ": " + zoneName,
		Message:       message,
		At:            at,
	}
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Noop discards notifications.
type Noop struct{}

func (Noop) Notify(context.Context, Notification) error { return nil }

// Multi fans a notification out to every sink and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Timeout bounds every delivery made through next.
func Timeout(next Notifier, d time.Duration) Notifier {
	if d <= 0 {
		return next
	}
	return NotifierFunc(func(ctx context.Context, n Notification) error {
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next.Notify(ctx, n)
	})
}
