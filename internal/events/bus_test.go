package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_OfferSubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[ZoneChanged](b, 1)
	defer unsubscribe()

	require.Zero(t, b.Offer(ZoneChanged{ZoneID: 5, Op: ZoneDeleted}))

	select {
	case got := <-ch:
		require.Equal(t, int64(5), got.ZoneID)
		require.Equal(t, ZoneDeleted, got.Op)
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_InterfaceSubscriptionReceivesConcreteEvents(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[VisitEvent](b, 2)
	defer unsubscribe()

	require.Zero(t, b.Offer(VisitOpened{ZoneID: 1}))
	require.Zero(t, b.Offer(VisitClosed{ZoneID: 1, DurationMillis: 4000}))

	for range 2 {
		select {
		case got := <-ch:
			require.Equal(t, int64(1), got.ZoneRef())
		case <-time.After(250 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBus_ConcreteSubscriptionIgnoresOtherTypes(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[VisitClosed](b, 1)
	defer unsubscribe()

	require.Zero(t, b.Offer(VisitOpened{ZoneID: 1}))
	require.Empty(t, ch)
}

func TestBus_OfferNeverBlocks(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[ZoneChanged](b, 1)
	defer unsubscribe()

	require.Equal(t, 0, b.Offer(ZoneChanged{ZoneID: 1}))
	require.Equal(t, 1, b.Offer(ZoneChanged{ZoneID: 2}))

	got := <-ch
	require.Equal(t, int64(1), got.ZoneID)

	var nilBus *Bus
	require.Equal(t, 0, nilBus.Offer(ZoneChanged{}))
}

func TestBus_Close(t *testing.T) {
	b := NewBus()

	ch, _ := Subscribe[RecoveryRequested](b, 1)
	b.Close()

	_, ok := <-ch
	require.False(t, ok)
	require.Zero(t, b.Offer(RecoveryRequested{Reason: "boot"}))

	late, _ := Subscribe[RecoveryRequested](b, 1)
	_, ok = <-late
	require.False(t, ok)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := NewBus()
	defer b.Close()

	ch, unsubscribe := Subscribe[ZoneChanged](b, 0)
	require.Equal(t, 1, b.Offer(ZoneChanged{ZoneID: 1}), "an unbuffered idle subscriber misses the event")

	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	require.False(t, ok)
	require.Equal(t, 0, b.Offer(ZoneChanged{ZoneID: 1}))
}
