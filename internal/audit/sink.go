package audit

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sink receives records in pipeline order. Write is called with the
// pipeline lock held and must not call back into the pipeline.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

var ErrSinkClosed = errors.New("audit: sink closed")

// AsyncSink hands records to a single goroutine that writes them to next in
// order, so slow network sinks do not hold the pipeline lock. When the buffer
// is full, Write blocks.
type AsyncSink struct {
	next Sink
	ch   chan Record
	done chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsyncSink(next Sink, buffer int) *AsyncSink {
	if buffer <= 0 {
		buffer = 256
	}
	s := &AsyncSink{
		next: next,
		ch:   make(chan Record, buffer),
		done: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for rec := range s.ch {
		if err := s.next.Write(context.Background(), rec); err != nil {
			log.Error().
				Err(err).
				Uint64("seq", rec.Seq).
				Str("invocation_id", rec.InvocationID).
				Msg("async audit sink write failed")
		}
	}
}

func (s *AsyncSink) Write(_ context.Context, rec Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.ch <- rec
	return nil
}

// Close flushes buffered records and closes next.
func (s *AsyncSink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	<-s.done
	return s.next.Close()
}
