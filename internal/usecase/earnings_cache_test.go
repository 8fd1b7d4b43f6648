package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarnPull/internal/domain/models"
	xlogger "EarnPull/pkg/logger"
)

func newTestCache(t *testing.T, f *fakeFetcher, opts ...CacheOption) (*EarningsCache, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "earnings.csv")
	cfg := EarningsCacheConfig{
		SnapshotPath:           path,
		Policy:                 StalenessPolicy{QueryStaleDays: 5, PostEarningsStaleDays: 3, JitterDays: 5},
		RequeryUnavailableOnce: true,
	}
	opts = append([]CacheOption{WithClock(fixedClock(testNow))}, opts...)
	return NewEarningsCache(f, NewEarningsScraper(""), nopMetrics{}, xlogger.Nop(), cfg, opts...), path
}

func writeFile(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func TestCanonicalTicker(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "aapl", want: "AAPL"},
		{in: "  brk/b ", want: "BRK/B"},
		{in: "ABCDEFGHIJ", want: "ABCDEFGHIJ"},
		{in: "ABCDEFGHIJK", wantErr: true},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "A,B", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CanonicalTicker(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTicker)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEarningsCache_GetFetchesNewTickerOnce(t *testing.T) {
	f := newFakeFetcher()
	f.pages["/stocks.asp?symbol=AAPL"] = earningsPage(true, "Jul 25", "4:30 PM ET")
	c, _ := newTestCache(t, f)

	rec, err := c.Get(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", rec.Ticker)
	assert.True(t, rec.Available)
	assert.True(t, rec.Confirmed)
	assert.False(t, rec.NeedsRefresh)
	assert.Equal(t, testNow, rec.QueriedAt)
	assert.Equal(t, "4:30 PM ET", rec.ReleaseTime)
	assert.True(t, c.Dirty())

	again, err := c.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, rec, again)
	assert.Equal(t, 1, f.Calls())
	assert.Equal(t, 1, c.Len())
}

func TestEarningsCache_GetRejectsInvalidTicker(t *testing.T) {
	f := newFakeFetcher()
	c, _ := newTestCache(t, f)

	_, err := c.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidTicker)
	_, err = c.Get(context.Background(), "TOOLONGTICKER")
	assert.ErrorIs(t, err, ErrInvalidTicker)
	assert.Zero(t, f.Calls())
	assert.Zero(t, c.Len())
}

func TestEarningsCache_TransportFailureKeepsRecord(t *testing.T) {
	f := newFakeFetcher()
	f.err = errTransport
	c, _ := newTestCache(t, f)

	rec, err := c.Get(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.False(t, rec.Available)
	assert.False(t, rec.NeedsRefresh)
	assert.True(t, rec.QueriedAt.IsZero())
	assert.True(t, c.Dirty())

	// Attempted once this process; no retry from inside the cache.
	_, err = c.Get(context.Background(), "XYZ")
	require.NoError(t, err)
	assert.Equal(t, 1, f.Calls())
}

func TestEarningsCache_ParseFailureMarksUnavailable(t *testing.T) {
	f := newFakeFetcher()
	c, _ := newTestCache(t, f)

	rec, err := c.Get(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, rec.Available)
	assert.Equal(t, testNow, rec.QueriedAt)
}

func TestEarningsCache_EndToEndStaleRow(t *testing.T) {
	f := newFakeFetcher()
	f.pages["/stocks.asp?symbol=AAPL"] = earningsPage(true, "Jul 25", "4:30 PM,  ET")
	c, path := newTestCache(t, f)

	writeFile(t, path, snapshotText(
		"1,AAPL,04/01/2024,04/25/2024,AMC,0,my note",
		"1,MSFT,06/14/2024,07/20/2024,AMC,1,",
	))
	require.NoError(t, c.Open())
	assert.False(t, c.Dirty())
	assert.Equal(t, 2, c.Len())

	rec, err := c.Get(context.Background(), "aapl")
	require.NoError(t, err)
	assert.True(t, rec.Available)
	assert.True(t, rec.Confirmed)
	assert.Equal(t, "4:30 PM ET", rec.ReleaseTime)
	assert.Equal(t, "my note", rec.Notes)

	msft, err := c.Get(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.Equal(t, "AMC", msft.ReleaseTime)
	assert.Equal(t, 1, f.Calls(), "fresh record served from cache")

	require.NoError(t, c.Save())
	assert.False(t, c.Dirty())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "1,AAPL,06/15/2024,07/25/2024,4:30 PM ET,1,my note", lines[2])
	assert.Equal(t, "1,MSFT,06/14/2024,07/20/2024,AMC,1,", lines[3])
}

func TestEarningsCache_RequeryUnavailableOnce(t *testing.T) {
	text := snapshotText("0,GONE,06/14/2024,,,0,")

	t.Run("enabled", func(t *testing.T) {
		f := newFakeFetcher()
		c, path := newTestCache(t, f)
		writeFile(t, path, text)
		require.NoError(t, c.Open())

		_, err := c.Get(context.Background(), "GONE")
		require.NoError(t, err)
		_, err = c.Get(context.Background(), "GONE")
		require.NoError(t, err)
		assert.Equal(t, 1, f.Calls())
	})

	t.Run("disabled", func(t *testing.T) {
		f := newFakeFetcher()
		c, path := newTestCache(t, f)
		c.cfg.RequeryUnavailableOnce = false
		writeFile(t, path, text)
		require.NoError(t, c.Open())

		rec, err := c.Get(context.Background(), "GONE")
		require.NoError(t, err)
		assert.False(t, rec.Available)
		assert.Zero(t, f.Calls())
	})
}

func TestEarningsCache_ConcurrentGetFetchesOnce(t *testing.T) {
	f := newFakeFetcher()
	f.pages["/stocks.asp?symbol=AAPL"] = earningsPage(true, "Jul 25", "AMC")
	f.gate = make(chan struct{})
	c, _ := newTestCache(t, f)

	const readers = 16
	var wg sync.WaitGroup
	results := make([]models.EarningsRecord, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err := c.Get(context.Background(), "AAPL")
			assert.NoError(t, err)
			results[i] = rec
		}(i)
	}

	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()

	assert.Equal(t, 1, f.Calls())
	for _, rec := range results {
		assert.True(t, rec.Available)
	}
}

func TestEarningsCache_UnrelatedTickersDoNotBlock(t *testing.T) {
	f := newFakeFetcher()
	f.gate = make(chan struct{})
	c, path := newTestCache(t, f)
	writeFile(t, path, snapshotText("1,MSFT,06/14/2024,07/20/2024,AMC,1,"))
	require.NoError(t, c.Open())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Get(context.Background(), "SLOW")
	}()
	require.Eventually(t, func() bool { return f.Calls() == 1 }, time.Second, time.Millisecond)

	rec, err := c.Get(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, rec.Available)
	assert.Equal(t, 2, c.Len())

	close(f.gate)
	<-done
}

func TestEarningsCache_SetNotes(t *testing.T) {
	f := newFakeFetcher()
	c, path := newTestCache(t, f)

	err := c.SetNotes("AAPL", "x")
	assert.ErrorIs(t, err, ErrNotFound)

	writeFile(t, path, snapshotText("1,AAPL,06/14/2024,07/20/2024,AMC,1,"))
	require.NoError(t, c.Open())

	require.NoError(t, c.SetNotes("aapl", "line one\r\nline two\nend"))
	assert.True(t, c.Dirty())

	rec, err := c.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "line one line two end", rec.Notes)
	assert.False(t, rec.NeedsRefresh)
	assert.Zero(t, f.Calls())
}

func TestEarningsCache_LoadFailureLeavesCacheEmpty(t *testing.T) {
	f := newFakeFetcher()
	c, path := newTestCache(t, f)

	writeFile(t, path, snapshotText("1,AAPL,06/14/2024,07/20/2024,AMC,1,"))
	require.NoError(t, c.Open())
	require.Equal(t, 1, c.Len())

	writeFile(t, path, "Some Other File\n"+snapshotColumns+"\n1,AAPL,06/14/2024,07/20/2024,AMC,1,\n")
	err := c.LoadSnapshot(path)
	assert.ErrorIs(t, err, ErrBadSnapshotHeader)
	assert.Zero(t, c.Len())
}

func TestEarningsCache_OpenMissingFile(t *testing.T) {
	c, path := newTestCache(t, newFakeFetcher())
	require.NoError(t, c.Open())
	assert.Zero(t, c.Len())

	// Nothing to save yet.
	require.NoError(t, c.Save())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestEarningsCache_SaveLoadRoundTrip(t *testing.T) {
	f := newFakeFetcher()
	f.pages["/stocks.asp?symbol=AAPL"] = earningsPage(true, "Jul 25", "AMC")
	f.pages["/stocks.asp?symbol=IBM"] = earningsPage(false, "Jul 17", "BMO")
	c, path := newTestCache(t, f)

	for _, ticker := range []string{"IBM", "AAPL", "NONE"} {
		_, err := c.Get(context.Background(), ticker)
		require.NoError(t, err)
	}
	require.NoError(t, c.SetNotes("IBM", "watch, margins"))
	require.NoError(t, c.Close())

	reloaded, _ := newTestCache(t, newFakeFetcher())
	require.NoError(t, reloaded.LoadSnapshot(path))
	assert.False(t, reloaded.Dirty())
	assert.False(t, reloaded.SnapshotModTime().IsZero())

	got := reloaded.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, []string{"AAPL", "IBM", "NONE"}, []string{got[0].Ticker, got[1].Ticker, got[2].Ticker})

	want := c.Snapshot()
	for i := range want {
		assert.Equal(t, want[i].Available, got[i].Available, want[i].Ticker)
		assert.Equal(t, want[i].Confirmed, got[i].Confirmed, want[i].Ticker)
		assert.Equal(t, want[i].ReleaseTime, got[i].ReleaseTime, want[i].Ticker)
		assert.Equal(t, want[i].Notes, got[i].Notes, want[i].Ticker)
		if want[i].Available {
			assert.Equal(t, want[i].ReleaseAt, got[i].ReleaseAt, want[i].Ticker)
		}
	}
}

func TestEarningsCache_PublishesChanges(t *testing.T) {
	f := newFakeFetcher()
	f.pages["/stocks.asp?symbol=AAPL"] = earningsPage(true, "Jul 25", "AMC")
	pub := &recordingPublisher{}
	c, _ := newTestCache(t, f, WithPublisher(pub))

	_, err := c.Get(context.Background(), "AAPL")
	require.NoError(t, err)

	f.err = errTransport
	_, err = c.Get(context.Background(), "DOWN")
	require.NoError(t, err)

	changes := pub.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, "AAPL", changes[0].Ticker)
	assert.True(t, changes[0].Available)
	assert.Equal(t, "AMC", changes[0].ReleaseTime)
}

func TestEarningsCache_NotesRoundTripThroughFile(t *testing.T) {
	c, path := newTestCache(t, newFakeFetcher())
	writeFile(t, path, snapshotText("1,AAPL,06/14/2024,07/20/2024,AMC,1,"))
	require.NoError(t, c.Open())

	require.NoError(t, c.SetNotes("AAPL", `"guidance" `))
	require.NoError(t, c.Save())
	require.NoError(t, c.LoadSnapshot(path))

	rec, err := c.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, `"guidance" `, rec.Notes)
}

func TestEarningsCache_OpenCorruptSnapshotStartsEmpty(t *testing.T) {
	f := newFakeFetcher()
	f.pages["/stocks.asp?symbol=AAPL"] = earningsPage(true, "Jul 25", "AMC")
	c, path := newTestCache(t, f)
	writeFile(t, path, "garbage banner\nx\n")

	require.NoError(t, c.Open())
	assert.Zero(t, c.Len())
	assert.False(t, c.Dirty())
	assert.False(t, c.SnapshotModTime().IsZero(), "rejected file is remembered")

	// The job leaves the rejected file alone until it changes.
	job := NewSnapshotJob(c, path, time.Hour, xlogger.Nop())
	require.NoError(t, job.Run())

	_, err := c.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	require.NoError(t, c.Save())

	reloaded, _ := newTestCache(t, newFakeFetcher())
	require.NoError(t, reloaded.LoadSnapshot(path))
	assert.Equal(t, 1, reloaded.Len())
}

func TestEarningsCache_CallerCancelDoesNotSpendRefresh(t *testing.T) {
	f := newFakeFetcher()
	f.pages["/stocks.asp?symbol=AAPL"] = earningsPage(true, "Jul 25", "AMC")
	f.gate = make(chan struct{})
	c, path := newTestCache(t, f)
	writeFile(t, path, snapshotText("1,AAPL,04/01/2024,04/25/2024,AMC,0,"))
	require.NoError(t, c.Open())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	rec, err := c.Get(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, rec.NeedsRefresh, "caller gave up before the fetch finished")
	assert.Equal(t, time.April, rec.ReleaseAt.Month())

	close(f.gate)
	rec, err = c.Get(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.False(t, rec.NeedsRefresh)
	assert.Equal(t, time.July, rec.ReleaseAt.Month())
	assert.Equal(t, 25, rec.ReleaseAt.Day())
	assert.Equal(t, 1, f.Calls())
}
