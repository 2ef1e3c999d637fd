package source

import (
	"context"
	"log"
	"sync"

	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/sink"
)

// Emitter writes records to a sink and keeps count. A failed write is logged
// with the record and destination, then the scrape moves on.
type Emitter struct {
	sink   sink.Sink
	logger *log.Logger

	mu       sync.Mutex
	written  map[string]int
	failures int
}

// NewEmitter wraps s
func NewEmitter(s sink.Sink, logger *log.Logger) *Emitter {
	if logger == nil {
		logger = log.New(log.Writer(), "[emit] ", log.LstdFlags)
	}
	return &Emitter{
		sink:    s,
		logger:  logger,
		written: make(map[string]int),
	}
}

// Emit writes one record. It never fails the caller.
func (e *Emitter) Emit(ctx context.Context, r records.Record) {
	err := e.sink.Write(ctx, r)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.failures++
		e.logger.Printf("❌ %v", err)
		return
	}
	e.written[r.Schema().Name]++
}

// Written returns the number of records stored per schema
func (e *Emitter) Written() map[string]int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]int, len(e.written))
	for k, v := range e.written {
		out[k] = v
	}
	return out
}

// Total returns the number of records stored across schemas
func (e *Emitter) Total() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, v := range e.written {
		n += v
	}
	return n
}

// Failures returns the number of writes the sink rejected
func (e *Emitter) Failures() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failures
}
