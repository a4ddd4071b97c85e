// Package workqueue implements the FIFO hand-off used between producers and
// workers: a mutex-guarded queue with a non-blocking pop, a close flag that
// marks "no more producers", and a broadcast Signal to wake idle consumers.
package workqueue

import (
	"context"
	"sync"
	"time"
)

// Queue is a FIFO safe for any number of concurrent producers and consumers.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	head   int
	closed bool
	sig    *Signal
}

// New returns an empty queue. Pushes and Close notify sig; if sig is nil the
// queue gets a Signal of its own. Several queues may share one Signal so a
// consumer can wait on all of them at once.
func New[T any](sig *Signal) *Queue[T] {
	if sig == nil {
		sig = NewSignal()
	}
	return &Queue[T]{sig: sig}
}

// Push appends v to the tail. Pushing to a closed queue is a programming error
// and panics.
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		panic("workqueue: push on closed queue")
	}
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.sig.Notify()
}

// TryPop removes and returns the head element. ok is false if the queue was
// empty. Check and removal happen under one lock, so an element is handed to
// exactly one caller.
func (q *Queue[T]) TryPop() (v T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.head == len(q.items) {
		return v, false
	}
	v = q.items[q.head]
	var zero T
	q.items[q.head] = zero
	q.head++
	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 64 && q.head*2 > len(q.items):
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

// Len is an advisory snapshot of the number of queued elements.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// IsEmpty is an advisory snapshot.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Close marks that no producer will push again. Closing twice is a no-op.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	already := q.closed
	q.closed = true
	q.mu.Unlock()
	if !already {
		q.sig.Notify()
	}
}

// Drained reports, in one evaluation under the queue lock, whether the queue
// is closed and empty. Once true it stays true.
func (q *Queue[T]) Drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && q.head == len(q.items)
}

// Signal is a broadcast wake-up. Every Notify closes the channel handed out
// by the previous C call and installs a fresh one.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal returns a ready Signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// C returns a channel closed by the next Notify. Consumers take it before
// inspecting their queues so a push racing with the inspection is not missed.
func (s *Signal) C() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch
}

// Notify wakes every consumer waiting on a channel obtained from C.
func (s *Signal) Notify() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// Await blocks until wake is closed, timeout elapses or ctx is done. It returns
// ctx.Err() only in the last case. The timeout bounds the wait so callers
// re-check their exit condition even without a notification.
func Await(ctx context.Context, wake <-chan struct{}, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-wake:
		return nil
	case <-timer.C:
		return nil
	}
}
