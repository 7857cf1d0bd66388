package daemon

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/careradius/internal/events"
	"git.home.luguber.info/inful/careradius/internal/logfields"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
)

const visitEventBuffer = 64

// consumeVisitEvents keeps the open visit gauge and the last transition shown
// by /healthz current.
func (d *Daemon) consumeVisitEvents(ctx context.Context, ch <-chan events.VisitEvent) {
	for evt := range ch {
		for range len(ch) {
			next, ok := <-ch
			if !ok {
				break
			}
			evt = next
		}
		if lt := lastTransitionOf(evt); lt != nil {
			d.lastTransition.Store(lt)
		}
		if err := d.refreshOpenVisits(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Open visit count failed", logfields.ZoneID(evt.ZoneRef()), logfields.Error(err))
		}
	}
}

func (d *Daemon) refreshOpenVisits(ctx context.Context) error {
	n, err := d.app.Store.CountOpenVisits(ctx)
	if err != nil {
		return err
	}
	d.app.Recorder.SetOpenVisits(n)
	return nil
}

func lastTransitionOf(evt events.VisitEvent) *responses.LastTransition {
	switch e := evt.(type) {
	case events.VisitOpened:
		return &responses.LastTransition{
			Event:    responses.VisitEventOpened,
			VisitID:  e.VisitID,
			ZoneID:   e.ZoneID,
			ZoneName: e.ZoneName,
			At:       e.EntryTime,
		}
	case events.VisitClosed:
		return &responses.LastTransition{
			Event:     responses.VisitEventClosed,
			VisitID:   e.VisitID,
			ZoneID:    e.ZoneID,
			ZoneName:  e.ZoneName,
			At:        e.ExitTime,
			Synthetic: e.Synthetic,
		}
	default:
		return nil
	}
}
