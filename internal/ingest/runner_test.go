package ingest

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/cricstats/internal/ingest/cricinfo"
	"github.com/fortuna/cricstats/internal/ingest/source"
	"github.com/fortuna/cricstats/internal/ingest/source/sourcetest"
	"github.com/fortuna/cricstats/internal/paginate"
	"github.com/fortuna/cricstats/internal/records"
	"github.com/fortuna/cricstats/internal/retry"
	"github.com/fortuna/cricstats/internal/sink"
)

var quiet = log.New(io.Discard, "", 0)

const (
	summaryURL = "https://m.cricbuzz.com/cricket-series/1/test/matches"
	battingURL = "https://www.espncricinfo.com/series/test/results"
)

const summaryPage = `<html><body>
<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/m/1" title="Oman vs Namibia, 3rd Match, Group B">
  <div class="text-xs text-cbTxtSec">Sun, Jun 02 • Kensington Oval, Bridgetown</div>
  <div class="flex flex-col gap-3 my-2"><div>OMAN 109 (19.4)</div><div>NAM 109-6 (20)</div></div>
  <span class="text-cbComplete">Namibia won by Super Over</span>
</a>
<a class="w-full bg-cbWhite flex flex-col p-3 gap-1" href="/m/2" title="Sri Lanka vs Nepal, 23rd Match, Group D">
  <div class="text-xs text-cbTxtSec">Tue, Jun 11 • Central Broward Park, Lauderhill</div>
  <span class="text-cbComplete">No result</span>
</a>
</body></html>`

type failingLauncher struct{}

func (failingLauncher) Launch(context.Context) (source.Session, error) {
	return nil, errors.New("chrome not installed")
}

func newRunner(t *testing.T, launcher source.Launcher, s sink.Sink) *Runner {
	t.Helper()
	r, err := NewRunner(Options{
		Launcher: launcher,
		URLs:     map[Kind]string{KindSummary: summaryURL, KindBatting: battingURL},
		Retry:    retry.Policy{MaxAttempts: 2},
	}, s, quiet)
	require.NoError(t, err)
	return r
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Batting ")
	require.NoError(t, err)
	assert.Equal(t, KindBatting, k)

	k, err = ParseKind("all")
	require.NoError(t, err)
	assert.Equal(t, Kinds(), k.Expand())

	_, err = ParseKind("fielding")
	assert.Error(t, err)
}

func TestRunSummaryScrape(t *testing.T) {
	browser := sourcetest.NewBrowser().Serve(summaryURL, summaryPage)

	var rows [][]string
	r := newRunner(t, browser, sink.Func(func(_ context.Context, rec records.Record) error {
		rows = append(rows, records.Row(rec))
		return nil
	}))

	summaries, err := r.Run(context.Background(), KindSummary)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, KindSummary, s.Kind)
	assert.Equal(t, 2, s.Records)
	assert.Equal(t, 2, s.Stats.Processed)
	assert.Zero(t, s.SinkFailures)
	assert.Empty(t, s.Error)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Oman", "Namibia", "3rd Match", "B", "Kensington Oval, Bridgetown", "109", "10", "19.4", "109", "6", "20.0", "Super Over", "Namibia won by Super Over"}, rows[0])
	assert.Equal(t, "No result", rows[1][12])

	assert.Zero(t, browser.Sessions(), "session released")
	assert.Zero(t, browser.OpenPages(), "listing closed")
}

func TestRunCountsSinkFailures(t *testing.T) {
	browser := sourcetest.NewBrowser().Serve(summaryURL, summaryPage)
	calls := 0
	r := newRunner(t, browser, sink.Func(func(context.Context, records.Record) error {
		calls++
		if calls == 1 {
			return errors.New("disk full")
		}
		return nil
	}))

	summary, err := r.RunOne(context.Background(), KindSummary)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Records)
	assert.Equal(t, 1, summary.SinkFailures)
	assert.Equal(t, 2, summary.Stats.Processed, "a sink failure does not fail the item")
}

func TestRunContinuesPastFailedScrape(t *testing.T) {
	// the batting listing is not served, so fetching it gives up
	browser := sourcetest.NewBrowser().Serve(summaryURL, summaryPage)
	r := newRunner(t, browser, sink.Func(func(context.Context, records.Record) error { return nil }))

	var seen []Kind
	r.opts.Seen = func(k Kind) paginate.KeySet {
		seen = append(seen, k)
		return paginate.NewMemorySet()
	}

	summaries, err := r.Run(context.Background(), KindAll)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrTimeout)

	require.Len(t, summaries, 4)
	assert.NotEmpty(t, summaries[0].Error)
	assert.Equal(t, KindSummary, summaries[2].Kind)
	assert.Empty(t, summaries[2].Error)
	assert.Equal(t, 2, summaries[2].Records)
	assert.Equal(t, Kinds(), seen)

	assert.Zero(t, browser.Sessions())
}

func TestRunLaunchFailure(t *testing.T) {
	r := newRunner(t, failingLauncher{}, sink.Func(func(context.Context, records.Record) error { return nil }))

	summary, err := r.RunOne(context.Background(), KindRoster)
	require.Error(t, err)
	assert.Contains(t, summary.Error, "chrome not installed")
}

func TestNewRunnerRequiresCollaborators(t *testing.T) {
	_, err := NewRunner(Options{}, sink.NewMulti(), quiet)
	assert.Error(t, err)

	_, err = NewRunner(Options{Launcher: sourcetest.NewBrowser()}, nil, quiet)
	assert.Error(t, err)
}

func TestPollRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	browser := sourcetest.NewBrowser().Serve(summaryURL, summaryPage)
	r := newRunner(t, browser, sink.Func(func(context.Context, records.Record) error { return nil }))

	ctx, cancel := context.WithCancel(context.Background())
	var runs [][]RunSummary

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		r.Poll(ctx, KindSummary, time.Hour, func(summaries []RunSummary, err error) {
			runs = append(runs, summaries)
			cancel()
		})
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("poll did not stop after cancel")
	}

	require.Len(t, runs, 1)
	require.Len(t, runs[0], 1)
	assert.Equal(t, 2, runs[0][0].Records)
	assert.Zero(t, browser.Sessions())
}

type countingIDs struct{ n int }

func (c *countingIDs) Assign(context.Context, string) (string, error) {
	c.n++
	return "41", nil
}

func TestRunUsesConfiguredMatchIDs(t *testing.T) {
	scorecard := "https://www.espncricinfo.com/series/test/match-9/full-scorecard"
	browser := sourcetest.NewBrowser().
		Serve(battingURL, `<html><body><div class="ds-p-4 hover:ds-bg-ui-fill-translucent"><a href="/series/test/match-9/full-scorecard">Result</a></div></body></html>`).
		Serve(scorecard, `<html><body>
<h1 class="ds-text-title-xs ds-font-bold">Nepal vs Netherlands, 7th Match</h1>
<div class="ds-rounded-lg ds-mt-2">
  <span class="ds-text-title-xs ds-font-bold ds-capitalize">Nepal</span>
  <table class="ds-w-full ds-table ds-table-md ds-table-auto ci-scorecard-table"><tbody>
    <tr><td>Kushal Bhurtel</td><td>b van Beek</td><td>7</td><td>9</td><td>12</td><td>1</td><td>0</td><td>77.77</td></tr>
  </tbody></table>
</div></body></html>`)

	ids := &countingIDs{}
	var got []records.Batting
	r, err := NewRunner(Options{
		Launcher: browser,
		URLs:     map[Kind]string{KindBatting: battingURL},
		Retry:    retry.Policy{MaxAttempts: 1},
		IDs:      func(Kind) cricinfo.IDs { return ids },
	}, sink.Func(func(_ context.Context, rec records.Record) error {
		got = append(got, rec.(records.Batting))
		return nil
	}), quiet)
	require.NoError(t, err)

	_, err = r.RunOne(context.Background(), KindBatting)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "41", got[0].MatchID)
	assert.Equal(t, 1, ids.n)
}
