package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/careradius/internal/geofence"
)

func TestDispatcher_DrainWaitsForInFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	sink := SinkFunc(func(context.Context, Transition) error {
		close(started)
		<-release
		return nil
	})

	var d dispatcher
	require.True(t, d.dispatch(t.Context(), sink, NewTransition(1, geofence.Enter)))
	<-started

	drained := make(chan struct{})
	go func() {
		d.drain()
		close(drained)
	}()

	select {
	case <-drained:
		t.Fatal("drain returned while a delivery was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("drain did not return after the delivery finished")
	}
}

func TestDispatcher_RefusesAfterDrain(t *testing.T) {
	sink := newRecordingSink()
	var d dispatcher
	d.drain()

	require.False(t, d.dispatch(t.Context(), sink, NewTransition(1, geofence.Enter)))
	require.Empty(t, sink.ch)
}

func TestMQTT_LateCallbackAfterRunIsDropped(t *testing.T) {
	client := newFakeClient()
	m := NewMQTT(client, MQTTOptions{TopicPrefix: "cr"})
	sink := newRecordingSink()

	done := make(chan error, 1)
	go func() { done <- m.Run(t.Context(), sink) }()
	<-client.subscribed

	require.NoError(t, m.Close())
	require.NoError(t, <-done)

	client.handler(client, fakeMessage{topic: "cr/transitions", payload: []byte(`{"zone_id":9,"kind":"ENTER"}`)})
	require.Empty(t, sink.ch)
}
