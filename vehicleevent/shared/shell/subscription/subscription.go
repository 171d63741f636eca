package subscription

import (
	"sync"
)

// Subscription is one subscriber's stream of updates.
type Subscription[R any] struct {
	queryType string
	predicate Predicate[R]
	registry  *Registry[R]

	mu      sync.Mutex
	updates chan R
	done    chan struct{}
	closed  bool
	err     error
}

// Updates returns the stream of matching records. It is closed when the subscription ends.
func (s *Subscription[R]) Updates() <-chan R {
	return s.updates
}

// Done is closed when the subscription ends.
func (s *Subscription[R]) Done() <-chan struct{} {
	return s.done
}

// Err returns ErrSlowSubscriber if the subscription was closed for falling behind, otherwise nil.
func (s *Subscription[R]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Cancel ends the subscription. It is idempotent; once it returns nothing more is delivered.
func (s *Subscription[R]) Cancel() {
	s.registry.remove(s)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked(nil)
}

func (s *Subscription[R]) offer(record R, policy OverflowPolicy) {
	s.mu.Lock()

	if s.closed {
		s.mu.Unlock()
		return
	}

	select {
	case s.updates <- record:
		s.mu.Unlock()
		return
	default:
	}

	if policy == Disconnect {
		s.closeLocked(ErrSlowSubscriber)
		s.mu.Unlock()

		s.registry.remove(s)
		s.registry.onDisconnected(s.queryType)

		return
	}

	// the reader may have drained the channel meanwhile, so neither step can block
	select {
	case <-s.updates:
	default:
	}

	select {
	case s.updates <- record:
	default:
	}

	s.mu.Unlock()

	s.registry.onDropped(s.queryType)
}

func (s *Subscription[R]) closeLocked(err error) {
	if s.closed {
		return
	}

	s.closed = true
	s.err = err
	close(s.updates)
	close(s.done)
}
