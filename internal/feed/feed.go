// Package feed implements the change-feed plumbing shared by chat rooms,
// message logs and collaborative documents: stores publish topic changes,
// live queries listen on topics and re-run their query on every change.
package feed

import (
	"context"
	"sync"

	"github.com/PaulBabatuyi/classroom-chat/internal/metrics"
)

// Publisher announces that the data behind the given topics changed.
type Publisher interface {
	Publish(ctx context.Context, topics ...string)
}

// Notifier is a Publisher that live queries can listen on.
type Notifier interface {
	Publisher
	// Listen returns a channel that receives a signal after any of the topics
	// changes. Signals are coalesced: a listener that is busy sees one pending
	// signal, never a backlog. The returned func releases the subscription.
	Listen(topics ...string) (<-chan struct{}, func())
}

// Broker is an in-process Notifier.
type Broker struct {
	mu     sync.Mutex
	nextID int64
	subs   map[string]map[int64]chan struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[int64]chan struct{})}
}

func (b *Broker) Listen(topics ...string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	for _, t := range topics {
		if _, ok := b.subs[t]; !ok {
			b.subs[t] = make(map[int64]chan struct{})
		}
		b.subs[t][id] = ch
	}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for _, t := range topics {
				if conns, ok := b.subs[t]; ok {
					delete(conns, id)
					if len(conns) == 0 {
						delete(b.subs, t)
					}
				}
			}
		})
	}
}

// Publish signals every listener on topics once, however many of the topics
// it listens on.
func (b *Broker) Publish(_ context.Context, topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	signalled := make(map[int64]bool)
	for _, t := range topics {
		for id, ch := range b.subs[t] {
			if signalled[id] {
				continue
			}
			signalled[id] = true
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}
}

// Snapshot is one result set delivered by a live query. A snapshot carrying an
// error is the last one on its channel.
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Watch runs load once immediately and again after every change on topics,
// sending each result on the returned channel until ctx is cancelled or load
// fails. The channel is closed when the query stops. Each call owns one
// goroutine; re-subscribing replays the current state first.
func Watch[T any](ctx context.Context, n Notifier, topics []string, load func(context.Context) (T, error)) <-chan Snapshot[T] {
	out := make(chan Snapshot[T], 1)
	// listen before the first load so a change racing it is not lost
	changed, release := n.Listen(topics...)
	metrics.FeedSubscribers.Inc()

	go func() {
		defer metrics.FeedSubscribers.Dec()
		defer close(out)
		defer release()

		for {
			v, err := load(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case out <- Snapshot[T]{Value: v, Err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			select {
			case <-changed:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
