// Package inproc is an in-process RoomBus for single-instance deployments
// and tests. A Room plays the role the Redis server plays in production;
// each participant joins it and gets its own origin-stamped handle.
package inproc

import (
	"context"
	"sync"

	"github.com/gofrs/uuid/v5"

	"github.com/inkroom/inkroom/bus"
)

const subscriberBuffer = 256

type subscription struct {
	origin  string
	ch      chan bus.Envelope
	done    <-chan struct{}
	handler bus.Handler
}

// Room fans published envelopes out to every joined handle except the
// publisher. Delivery to each subscriber is ordered: one buffered channel
// drained by one goroutine per subscription.
type Room struct {
	mu   sync.RWMutex
	next int
	subs map[string]map[int]*subscription
}

func NewRoom() *Room {
	return &Room{subs: make(map[string]map[int]*subscription)}
}

// Join returns a bus handle with its own origin id.
func (r *Room) Join() *Bus {
	return &Bus{room: r, origin: uuid.Must(uuid.NewV4()).String()}
}

func (r *Room) add(topic string, sub *subscription) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[topic] == nil {
		r.subs[topic] = make(map[int]*subscription)
	}
	id := r.next
	r.next++
	r.subs[topic][id] = sub
	return id
}

func (r *Room) remove(topic string, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs[topic], id)
}

func (r *Room) dispatch(topic string, env bus.Envelope) {
	r.mu.RLock()
	targets := make([]*subscription, 0, len(r.subs[topic]))
	for _, sub := range r.subs[topic] {
		if sub.origin != env.Origin {
			targets = append(targets, sub)
		}
	}
	r.mu.RUnlock()

	for _, sub := range targets {
		select {
		case sub.ch <- env:
		case <-sub.done:
		}
	}
}

// Bus is one participant's handle on a Room.
type Bus struct {
	room   *Room
	origin string
}

func (b *Bus) Publish(ctx context.Context, topic string, env bus.Envelope) error {
	env.Origin = b.origin
	b.room.dispatch(topic, env)
	return nil
}

func (b *Bus) Subscribe(ctx context.Context, topic string, handler bus.Handler) error {
	sub := &subscription{
		origin:  b.origin,
		ch:      make(chan bus.Envelope, subscriberBuffer),
		done:    ctx.Done(),
		handler: handler,
	}
	id := b.room.add(topic, sub)

	go func() {
		defer b.room.remove(topic, id)
		for {
			select {
			case <-ctx.Done():
				return
			case env := <-sub.ch:
				handler(env)
			}
		}
	}()

	return nil
}
