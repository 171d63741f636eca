package publisher

import (
	"maps"
	"slices"
	"sync"

	"github.com/rkamradt/vehicleevent/eventstore"
)

// sequencer releases the events of each aggregate strictly in SequenceNumber order.
// Each shard owns one, so every event of an aggregate passes through the same sequencer.
// Events that arrive ahead of a gap are held back; events at or below the last released number are stale.
type sequencer struct {
	mu      sync.Mutex
	next    map[string]eventstore.SequenceNumberUint
	pending map[string]map[eventstore.SequenceNumberUint]job
}

func newSequencer() *sequencer {
	return &sequencer{
		next:    make(map[string]eventstore.SequenceNumberUint),
		pending: make(map[string]map[eventstore.SequenceNumberUint]job),
	}
}

// accept returns the jobs that are due now, in order. An envelope without a sequence number is due at once.
func (s *sequencer) accept(j job) (ready []job, stale bool) {
	seq := j.envelope.SequenceNumber
	if seq == 0 {
		return []job{j}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := j.envelope.AggregateID
	next := s.expectedLocked(id)

	switch {
	case seq < next:
		return nil, true

	case seq > next:
		if s.pending[id] == nil {
			s.pending[id] = make(map[eventstore.SequenceNumberUint]job)
		}

		if _, held := s.pending[id][seq]; held {
			return nil, true
		}

		s.pending[id][seq] = j

		return nil, false
	}

	return s.releaseLocked(id, []job{j}, next+1), false
}

// expected is the sequence number the aggregate's next released event must carry.
func (s *sequencer) expected(aggregateID string) eventstore.SequenceNumberUint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.expectedLocked(aggregateID)
}

// held is the number of events waiting for a gap of the aggregate to close.
func (s *sequencer) held(aggregateID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending[aggregateID])
}

// skipGap gives up on the missing numbers and releases the held events from the lowest one on.
func (s *sequencer) skipGap(aggregateID string) []job {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := s.pending[aggregateID]
	if len(held) == 0 {
		return nil
	}

	lowest := slices.Min(slices.Collect(maps.Keys(held)))

	return s.releaseLocked(aggregateID, nil, lowest)
}

func (s *sequencer) expectedLocked(aggregateID string) eventstore.SequenceNumberUint {
	if next, ok := s.next[aggregateID]; ok {
		return next
	}

	return 1
}

// releaseLocked appends every held job from next on without a gap and records the new expectation.
func (s *sequencer) releaseLocked(aggregateID string, ready []job, next eventstore.SequenceNumberUint) []job {
	held := s.pending[aggregateID]

	for {
		j, ok := held[next]
		if !ok {
			break
		}

		ready = append(ready, j)
		delete(held, next)
		next++
	}

	if len(held) == 0 {
		delete(s.pending, aggregateID)
	}

	s.next[aggregateID] = next

	return ready
}
