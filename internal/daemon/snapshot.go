package daemon

import (
	"context"
	"sync/atomic"

	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// zoneSnapshot holds the last full zone list. Readers never block; the zone
// change consumer replaces the whole slice after each committed write.
type zoneSnapshot struct {
	list atomic.Pointer[[]geofence.Zone]
}

// Zones implements handlers.ZoneSnapshot. The returned slice is shared and must
// not be modified.
func (s *zoneSnapshot) Zones() ([]geofence.Zone, bool) {
	p := s.list.Load()
	if p == nil {
		return nil, false
	}
	return *p, true
}

func (s *zoneSnapshot) refresh(ctx context.Context, lister interface {
	ListZones(ctx context.Context) ([]geofence.Zone, error)
}) (int, error) {
	list, err := lister.ListZones(ctx)
	if err != nil {
		return 0, err
	}
	s.list.Store(&list)
	return len(list), nil
}
