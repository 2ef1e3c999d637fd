package paginate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cricstats/internal/retry"
)

// fakeSource serves growing, overlapping batches: batch i holds items 0..size*(i+1)-1.
type fakeSource struct {
	batches   [][]string
	current   int
	failing   map[string]int // key -> number of failures before success (-1 = always)
	attempts  map[string]int
	processed []string
	moreErr   error
	fetchErr  error
}

func newFakeSource(batches ...[]string) *fakeSource {
	return &fakeSource{
		batches:  batches,
		failing:  map[string]int{},
		attempts: map[string]int{},
	}
}

func (f *fakeSource) Fetch(ctx context.Context) ([]string, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if f.current >= len(f.batches) {
		return nil, nil
	}
	return f.batches[f.current], nil
}

func (f *fakeSource) Key(item string) (string, error) {
	if item == "" {
		return "", errors.New("empty handle")
	}
	return item, nil
}

func (f *fakeSource) Process(ctx context.Context, item string) error {
	f.attempts[item]++
	if n, ok := f.failing[item]; ok && (n < 0 || f.attempts[item] <= n) {
		return fmt.Errorf("extract %s: %w", item, errors.New("timeout"))
	}
	f.processed = append(f.processed, item)
	return nil
}

func (f *fakeSource) More(ctx context.Context) (bool, error) {
	if f.moreErr != nil {
		return false, f.moreErr
	}
	if f.current+1 >= len(f.batches) {
		return false, nil
	}
	f.current++
	return true, nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestDriverProcessesEachKeyOnce(t *testing.T) {
	src := newFakeSource(
		[]string{"a", "b"},
		[]string{"a", "b", "c", "d"},
		[]string{"a", "b", "c", "d", "e", "b"},
	)

	d := New[string](src, nil, Options{Retry: retry.Policy{MaxAttempts: 1}}, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, src.processed)
	assert.Equal(t, 3, stats.Passes)
	assert.Equal(t, 5, stats.Seen)
	assert.Equal(t, 5, stats.Processed)
	assert.Equal(t, 7, stats.Duplicates)
	assert.Equal(t, Done, d.State())
}

func TestDriverStopsWhenPassFindsNothingNew(t *testing.T) {
	src := newFakeSource(
		[]string{"a", "b"},
		[]string{"a", "b"},
		[]string{"a", "b", "c"},
	)

	d := New[string](src, nil, Options{}, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, src.processed)
	assert.Equal(t, 2, stats.Passes)
}

func TestDriverRetriesThenSkips(t *testing.T) {
	src := newFakeSource([]string{"a", "bad", "c"}, []string{"a", "bad", "c", "d"})
	src.failing["bad"] = -1

	var hookCalls int
	opts := Options{Retry: retry.Policy{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		OnFailure:   func(int, error) { hookCalls++ },
	}}

	d := New[string](src, nil, opts, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, src.attempts["bad"])
	assert.Equal(t, 3, hookCalls)
	assert.Equal(t, []string{"a", "c", "d"}, src.processed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.Processed)
}

func TestDriverRecoversFlakyItem(t *testing.T) {
	src := newFakeSource([]string{"a", "flaky"})
	src.failing["flaky"] = 2

	d := New[string](src, nil, Options{Retry: retry.Policy{MaxAttempts: 3}}, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 3, src.attempts["flaky"])
	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 0, stats.Failed)
}

func TestDriverEmptyFetchIsDone(t *testing.T) {
	src := newFakeSource()

	var transitions []State
	opts := Options{OnTransition: func(_, to State) { transitions = append(transitions, to) }}
	d := New[string](src, nil, opts, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Passes)
	assert.Equal(t, []State{Done}, transitions)
}

func TestDriverTransitions(t *testing.T) {
	src := newFakeSource([]string{"a"}, []string{"a", "b"})

	var transitions []State
	opts := Options{OnTransition: func(_, to State) { transitions = append(transitions, to) }}
	d := New[string](src, nil, opts, quietLogger())
	_, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []State{
		ProcessingItem, WaitingForMore,
		Fetching, ProcessingItem, WaitingForMore,
		Done,
	}, transitions)
}

func TestDriverMoreErrorEndsRun(t *testing.T) {
	src := newFakeSource([]string{"a"}, []string{"a", "b"})
	src.moreErr = errors.New("button detached")

	d := New[string](src, nil, Options{}, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.Processed)
}

func TestDriverFetchErrorIsReported(t *testing.T) {
	src := newFakeSource([]string{"a"})
	src.fetchErr = errors.New("render timeout")

	d := New[string](src, nil, Options{Retry: retry.Policy{MaxAttempts: 2}}, quietLogger())
	_, err := d.Run(context.Background())

	assert.ErrorIs(t, err, src.fetchErr)
	assert.Equal(t, Done, d.State())
}

func TestDriverSkipsKeylessItems(t *testing.T) {
	src := newFakeSource([]string{"", "a"})

	d := New[string](src, nil, Options{}, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, stats.KeyErrors)
	assert.Equal(t, []string{"a"}, src.processed)
}

func TestDriverMaxPasses(t *testing.T) {
	src := newFakeSource([]string{"a"}, []string{"a", "b"}, []string{"a", "b", "c"})

	d := New[string](src, nil, Options{MaxPasses: 2}, quietLogger())
	stats, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, stats.Passes)
	assert.Equal(t, []string{"a", "b"}, src.processed)
}

func TestDriverSharedKeySetSkipsKnownKeys(t *testing.T) {
	seen := NewMemorySet()
	require.NoError(t, seen.Mark(context.Background(), "a"))

	src := newFakeSource([]string{"a", "b"})
	d := New[string](src, seen, Options{}, quietLogger())
	_, err := d.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, src.processed)
	assert.Equal(t, 2, seen.Len())
}
