// Package sink persists emitted records. Every sink is append-only.
package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/fortuna/cricstats/internal/records"
)

// Sink receives records in emission order
type Sink interface {
	Write(ctx context.Context, r records.Record) error
	Close() error
}

// WriteError carries the full context of a failed write
type WriteError struct {
	Target string
	Record records.Record
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s to %s: %v", records.Describe(e.Record), e.Target, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Multi fans every record out to several sinks. A failing sink does not stop
// the others; their errors are joined.
type Multi struct {
	sinks []Sink
}

// NewMulti creates a fan-out sink, skipping nil entries
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Add appends another destination
func (m *Multi) Add(s Sink) {
	if s != nil {
		m.sinks = append(m.sinks, s)
	}
}

// Len returns the number of destinations
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Write forwards r to every destination
func (m *Multi) Write(ctx context.Context, r records.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every destination
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Func adapts a function into a Sink
type Func func(ctx context.Context, r records.Record) error

func (f Func) Write(ctx context.Context, r records.Record) error { return f(ctx, r) }
func (f Func) Close() error                                       { return nil }
