package memo

import (
	"math/big"
	"sync"
	"sync/atomic"
)

// SequencerConfig configures a Sequencer table.
type SequencerConfig struct {
	// QueueSize is the buffer size of the growth request queue.
	// 0 means unbuffered: every requester hands off directly to the writer.
	QueueSize int `mapstructure:"queue_size" validate:"min=0"`
}

// growRequest asks the writer goroutine to extend the table to target.
type growRequest struct {
	target int
	done   chan struct{}
}

// Sequencer is a single-writer Table.
//
// One goroutine owns the backing slice and is the only one that appends to
// it. After each growth it publishes a new slice header through an atomic
// pointer. Published headers never shrink and the elements they cover are
// never written again, so readers can index a loaded snapshot without any
// lock.
//
// Requests are handled in arrival order. A request whose target is already
// covered (because an earlier request grew past it) is answered without
// computing anything.
type Sequencer struct {
	snapshot atomic.Pointer[[]*big.Int]
	requests chan growRequest
	observer Observer

	closeOnce sync.Once
	closed    chan struct{}
	stopped   chan struct{}
}

// NewSequencer creates a seeded Sequencer table and starts its writer
// goroutine. Call Close to stop the writer. A nil observer disables events.
func NewSequencer(config SequencerConfig, observer Observer) *Sequencer {
	if observer == nil {
		observer = NoopObserver{}
	}

	s := &Sequencer{
		requests: make(chan growRequest, config.QueueSize),
		observer: observer,
		closed:   make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	values := seed(seedSize)
	s.snapshot.Store(&values)

	go s.run(values)

	return s
}

// run is the writer loop. values is owned exclusively by this goroutine.
func (s *Sequencer) run(values []*big.Int) {
	defer close(s.stopped)

	for {
		select {
		case <-s.closed:
			return
		case req := <-s.requests:
			before := len(values)
			if req.target >= before {
				values = extend(values, req.target)
				published := values
				s.snapshot.Store(&published)
				s.observer.RecordGrowth(len(values)-before, len(values))
			}
			close(req.done)
		}
	}
}

func (s *Sequencer) load() []*big.Int {
	return *s.snapshot.Load()
}

// GetOrCompute implements Table.
//
// If the table has been closed, indices beyond the high-water mark are
// computed from the frozen snapshot and not stored.
func (s *Sequencer) GetOrCompute(index int) *big.Int {
	if values := s.load(); index < len(values) {
		s.observer.RecordHit()
		return values[index]
	}
	s.observer.RecordMiss()

	req := growRequest{target: index, done: make(chan struct{})}

	select {
	case s.requests <- req:
	case <-s.closed:
		return computeFrom(s.load(), index)
	}

	select {
	case <-req.done:
	case <-s.stopped:
		// The writer may have finished our request just before stopping.
		if values := s.load(); index < len(values) {
			return values[index]
		}
		return computeFrom(s.load(), index)
	}

	return s.load()[index]
}

// Lookup implements Table.
func (s *Sequencer) Lookup(index int) (*big.Int, bool) {
	values := s.load()
	if index < 0 || index >= len(values) {
		return nil, false
	}
	return values[index], true
}

// Len implements Table.
func (s *Sequencer) Len() int {
	return len(s.load())
}

// HighWater implements Table.
func (s *Sequencer) HighWater() int {
	return s.Len() - 1
}

// Close stops the writer goroutine and waits for it to exit.
func (s *Sequencer) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
	})
	<-s.stopped
	return nil
}
