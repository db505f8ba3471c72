package engine

import (
	"context"
	"log"
	"time"

	"github.com/inkroom/inkroom/bus"
)

// PublishFunc hands a committed local event to the outside world. The
// session never retries a failed publish and never rolls local state back;
// failures are reported through the error hook and otherwise forgotten.
type PublishFunc func(ctx context.Context, env bus.Envelope) error

const publishTimeout = 5 * time.Second

// publisher drains one channel with one goroutine, so a participant's
// commits go out in exactly the order they were applied locally.
type publisher struct {
	ch      chan bus.Envelope
	publish PublishFunc
	onError func(env bus.Envelope, err error)
	done    chan struct{}
}

func newPublisher(publish PublishFunc, onError func(bus.Envelope, error), buffer int) *publisher {
	return &publisher{
		ch:      make(chan bus.Envelope, buffer),
		publish: publish,
		onError: onError,
		done:    make(chan struct{}),
	}
}

// enqueue blocks when the buffer is full rather than dropping or
// reordering; commit order is the contract.
func (p *publisher) enqueue(env bus.Envelope) {
	select {
	case p.ch <- env:
	case <-p.done:
	}
}

func (p *publisher) run(shutdownCtx context.Context) {
	defer close(p.done)

	for {
		select {
		case env := <-p.ch:
			p.send(env)
		case <-shutdownCtx.Done():
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case env := <-p.ch:
					p.send(env)
				default:
					return
				}
			}
		}
	}
}

func (p *publisher) send(env bus.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := p.publish(ctx, env); err != nil {
		log.Printf("Failed to publish %s event: %v", env.Type, err)
		if p.onError != nil {
			p.onError(env, err)
		}
	}
}
