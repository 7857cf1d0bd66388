package events

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Bus is a small, typed, in-process event bus.
//
// Delivery never blocks: a subscriber whose buffer is full misses the event.
// Every producer emits after a storage commit or from a timer, and none of them
// may stall behind a slow consumer.
type Bus struct {
	mu        sync.RWMutex
	subs      map[reflect.Type]map[uint64]*subscriber
	nextID    atomic.Uint64
	isClosed  atomic.Bool
	closeOnce sync.Once
}

type subscriber struct {
	offer func(evt any) bool
	close func()
}

func NewBus() *Bus {
	return &Bus{
		subs: make(map[reflect.Type]map[uint64]*subscriber),
	}
}

// Subscribe registers a subscription for events of type T.
//
// If T is an interface, published events whose concrete type implements T are delivered.
// For concrete T, events are delivered only when the concrete type matches exactly.
func Subscribe[T any](b *Bus, buffer int) (<-chan T, func()) {
	eventType := reflect.TypeFor[T]()
	ch := make(chan T, buffer)

	if b.isClosed.Load() {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID.Add(1)

	// sendMu guards against sending on a channel closed by unsubscribe.
	var sendMu sync.RWMutex
	closed := false
	closeChannel := func() {
		sendMu.Lock()
		defer sendMu.Unlock()
		if !closed {
			closed = true
			close(ch)
		}
	}

	var unsubOnce sync.Once
	unsubscribe := func() {
		unsubOnce.Do(func() {
			b.mu.Lock()
			if typeSubs, ok := b.subs[eventType]; ok {
				delete(typeSubs, id)
				if len(typeSubs) == 0 {
					delete(b.subs, eventType)
				}
			}
			b.mu.Unlock()

			closeChannel()
		})
	}

	sub := &subscriber{
		offer: func(evt any) bool {
			v, ok := evt.(T)
			if !ok {
				return false
			}

			sendMu.RLock()
			defer sendMu.RUnlock()
			if closed {
				return false
			}

			select {
			case ch <- v:
				return true
			default:
				return false
			}
		},
		close: closeChannel,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.isClosed.Load() {
		closeChannel()
		return ch, func() {}
	}

	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[uint64]*subscriber)
	}
	b.subs[eventType][id] = sub

	return ch, unsubscribe
}

func (b *Bus) targets(evt any) []*subscriber {
	evtType := reflect.TypeOf(evt)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var targets []*subscriber
	for subType, typeSubs := range b.subs {
		match := subType == evtType
		if !match && subType.Kind() == reflect.Interface {
			match = evtType.Implements(subType)
		}
		if !match {
			continue
		}
		for _, s := range typeSubs {
			targets = append(targets, s)
		}
	}
	return targets
}

// Offer delivers evt to every matching subscriber with buffer space and returns
// the number of subscribers that did not receive it. A nil bus drops everything.
func (b *Bus) Offer(evt any) (dropped int) {
	if b == nil || evt == nil || b.isClosed.Load() {
		return 0
	}
	for _, s := range b.targets(evt) {
		if !s.offer(evt) {
			dropped++
		}
	}
	return dropped
}

// Close closes the bus and all subscription channels.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.isClosed.Store(true)

		b.mu.Lock()
		var toClose []*subscriber
		for _, typeSubs := range b.subs {
			for _, s := range typeSubs {
				toClose = append(toClose, s)
			}
		}
		b.subs = make(map[reflect.Type]map[uint64]*subscriber)
		b.mu.Unlock()

		for _, s := range toClose {
			s.close()
		}
	})
}
