package monitor

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/careradius/internal/geofence"
)

// transitionMessage is the wire form shared by the broker adapters.
type transitionMessage struct {
	ID     string `json:"id,omitempty"`
	ZoneID int64  `json:"zone_id"`
	Kind   string `json:"kind"`
}

// DecodeTransition parses a {"id","zone_id","kind"} payload. A missing id is
// replaced with a fresh one.
func DecodeTransition(data []byte) (Transition, error) {
	var msg transitionMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return Transition{}, ErrInvalidTransition.WithContext("cause", err.Error())
	}
	if msg.ZoneID <= 0 {
		return Transition{}, ErrInvalidTransition.WithContext("zone_id", msg.ZoneID)
	}
	kind, err := geofence.ParseTransitionKind(msg.Kind)
	if err != nil {
		return Transition{}, ErrInvalidTransition.WithContext("kind", msg.Kind)
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return Transition{ID: msg.ID, ZoneID: msg.ZoneID, Kind: kind, ReceivedAt: time.Now()}, nil
}

func encodeRegion(r Region) ([]byte, error) {
	return json.Marshal(r)
}

func decodeRegion(data []byte) (Region, error) {
	var r Region
	err := json.Unmarshal(data, &r)
	return r, err
}
