// Package broadcast implements a lossy multi-consumer fan-out: every
// subscriber gets its own bounded channel, and a full channel is drained of
// its oldest entry to make room for the newest rather than ever blocking
// the publisher. A dropped message increments that subscriber's lagged
// counter instead of being redelivered.
//
// No queue/ring library in this project's dependency set offers this
// shape: ring buffers here evict the newest arrival on overflow (the
// opposite of what a live terminal feed needs), and the available
// multi-consumer ring is a shared dequeue, not an independent replay per
// subscriber. See DESIGN.md for the fuller comparison.
package broadcast

import (
	"sync"
	"sync/atomic"
)

// Subscription is one subscriber's view of a Hub's published values.
type Subscription[T any] struct {
	ch     chan T
	lagged int64
	hub    *Hub[T]
	id     uint64
}

// C returns the channel to range or select over.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Recv blocks for the next value. ok is false only if the subscription's
// channel has been closed; the Hub itself never closes it.
func (s *Subscription[T]) Recv() (T, bool) {
	v, ok := <-s.ch
	return v, ok
}

// TryRecv returns immediately; ok is false if nothing is queued right now.
func (s *Subscription[T]) TryRecv() (T, bool) {
	select {
	case v, ok := <-s.ch:
		return v, ok
	default:
		var zero T
		return zero, false
	}
}

// SwapLagged returns the number of messages dropped for this subscriber
// since the last call, resetting the counter to zero.
func (s *Subscription[T]) SwapLagged() int64 {
	return atomic.SwapInt64(&s.lagged, 0)
}

// Close unsubscribes from the hub. Safe to call once; further receives on
// C()/Recv() will drain whatever was already queued and then block forever,
// so callers should stop using the subscription after calling Close.
func (s *Subscription[T]) Close() {
	s.hub.unsubscribe(s.id)
}

// Hub is a lossy multi-consumer broadcaster of values of type T.
type Hub[T any] struct {
	mu   sync.Mutex
	subs map[uint64]*Subscription[T]
	next uint64
	cap  int
}

// NewHub returns a Hub whose subscriber channels have the given capacity.
func NewHub[T any](capacity int) *Hub[T] {
	return &Hub[T]{
		subs: make(map[uint64]*Subscription[T]),
		cap:  capacity,
	}
}

// Subscribe returns a fresh subscription. It observes only values
// published after this call returns; it never replays history.
func (h *Hub[T]) Subscribe() *Subscription[T] {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	sub := &Subscription[T]{
		ch:  make(chan T, h.cap),
		hub: h,
		id:  h.next,
	}
	h.subs[sub.id] = sub
	return sub
}

func (h *Hub[T]) unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

// Len reports the current subscriber count.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish fans data out to every current subscriber. A subscriber whose
// channel is full has its oldest queued value dropped (incrementing its
// lagged counter) to make room for this one; Publish itself never blocks.
//
// It returns false if there are currently no subscribers at all, mirroring
// a broadcast channel whose send fails outright with zero receivers: the
// Terminal reader loop treats that as its cue to stop reading.
func (h *Hub[T]) Publish(data T) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subs) == 0 {
		return false
	}

	for _, sub := range h.subs {
		select {
		case sub.ch <- data:
			continue
		default:
		}

		select {
		case <-sub.ch:
			atomic.AddInt64(&sub.lagged, 1)
		default:
		}

		select {
		case sub.ch <- data:
		default:
			// Another publish raced us for the slot we just freed; count
			// this value as dropped for this subscriber too.
			atomic.AddInt64(&sub.lagged, 1)
		}
	}
	return true
}
