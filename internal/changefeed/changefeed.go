// Package changefeed delivers live, full-result-set snapshots.
//
// Writers Publish the topics they touched; readers Watch a set of topics with
// a load function and receive a fresh snapshot after every change. Bursts of
// publishes collapse into a single reload.
package changefeed

import (
	"context"
	"sync"
)

// Topic helpers keep names consistent between writers and readers
func MatchesTopic(userID string) string  { return "matches:" + userID }
func MessagesTopic(matchID string) string { return "messages:" + matchID }
func LikesTopic(userID string) string     { return "likes:" + userID }

// Publisher announces that documents under the given topics changed
type Publisher interface {
	Publish(ctx context.Context, topics ...string)
}

// Broker fans change notifications out to in-process watchers
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan struct{}
}

// NewBroker creates an empty broker
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*subscriber]struct{})}
}

// Publish wakes every watcher of the topics without blocking
func (b *Broker) Publish(_ context.Context, topics ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, topic := range topics {
		for s := range b.subs[topic] {
			select {
			case s.ch <- struct{}{}:
			default:
				// a reload is already pending
			}
		}
	}
}

func (b *Broker) subscribe(topics []string) (*subscriber, func()) {
	s := &subscriber{ch: make(chan struct{}, 1)}

	b.mu.Lock()
	for _, topic := range topics {
		if b.subs[topic] == nil {
			b.subs[topic] = make(map[*subscriber]struct{})
		}
		b.subs[topic][s] = struct{}{}
	}
	b.mu.Unlock()

	return s, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, topic := range topics {
			delete(b.subs[topic], s)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		}
	}
}

// Watchers returns the number of live watchers on a topic
func (b *Broker) Watchers(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[topic])
}

// Snapshot is one full result set, or the error that prevented loading it
type Snapshot[T any] struct {
	Value T
	Err   error
}

// Subscription is a cancellable stream of snapshots
type Subscription[T any] struct {
	C      <-chan Snapshot[T]
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the subscription and waits for its goroutine to exit
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
}

// Done is closed once the subscription has stopped
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Watch loads an initial snapshot and reloads after every publish on topics.
// Loading is lazy: nothing runs until the goroutine starts, and a new Watch
// with the same arguments restarts the sequence from a fresh load.
func Watch[T any](ctx context.Context, b *Broker, topics []string, load func(ctx context.Context) (T, error)) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Snapshot[T], 1)
	done := make(chan struct{})

	sub, unsubscribe := b.subscribe(topics)

	go func() {
		defer close(done)
		defer close(out)
		defer unsubscribe()

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

			select {
			case <-sub.ch:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Subscription[T]{C: out, cancel: cancel, done: done}
}
