package pipeline

import (
	"sync"
	"sync/atomic"
)

// InterruptToken is the shared barge-in signal observed by the splitter,
// worker pool, player and reasoning loop. It mirrors the teacher's
// ManagedStream.userInterrupting/internalInterrupt pair: an atomic flag for
// a cheap non-blocking check, plus a closed channel so waiters can block
// until the next interrupt without polling.
type InterruptToken struct {
	flag atomic.Bool
	mu   sync.Mutex
	ch   chan struct{}
}

// NewInterruptToken returns a token in the non-interrupted state.
func NewInterruptToken() *InterruptToken {
	return &InterruptToken{ch: make(chan struct{})}
}

// Interrupted reports whether the token is currently raised.
func (t *InterruptToken) Interrupted() bool {
	return t.flag.Load()
}

// Raise signals an interrupt to every current waiter. Safe to call
// concurrently and repeatedly; spec's ≤100ms observability requirement is
// satisfied by the atomic flag alone, the channel close is for blocking
// waiters in Wait().
func (t *InterruptToken) Raise() {
	if t.flag.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.ch)
		t.mu.Unlock()
	}
}

// Reset clears the interrupt for the next turn.
func (t *InterruptToken) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.flag.CompareAndSwap(true, false) {
		t.ch = make(chan struct{})
	}
}

// Wait returns a channel that closes the moment Raise is called.
func (t *InterruptToken) Wait() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ch
}
