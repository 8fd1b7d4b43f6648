package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"EarnPull/internal/domain/models"
)

var errTransport = errors.New("connection refused")

type fakeFetcher struct {
	mu    sync.Mutex
	pages map[string][]byte
	err   error
	calls int32
	paths []string
	gate  chan struct{} // when set, Fetch blocks until it is closed
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{pages: make(map[string][]byte)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, method, path string) ([]byte, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.paths = append(f.paths, path)
	gate, err, page := f.gate, f.err, f.pages[path]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if page == nil {
		return []byte("<html><head><title>Symbol Not Found</title></head><body></body></html>"), nil
	}
	return page, nil
}

func (f *fakeFetcher) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

type nopMetrics struct{}

func (nopMetrics) RecordFetch(string, string) {}
func (nopMetrics) RecordParseFailure(string) {}
func (nopMetrics) RecordCacheSize(int) {}
func (nopMetrics) RecordSnapshot(string, string) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordLatency(string, float64) {}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []models.EarningsChange
}

func (p *recordingPublisher) PublishChange(_ context.Context, c models.EarningsChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Changes() []models.EarningsChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.EarningsChange(nil), p.changes...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func earningsPage(confirmed bool, date, clock string) []byte {
	conf := "color-no"
	if confirmed {
		conf = "color-yes"
	}
	return []byte(`<html><head><title>Earnings</title></head><body>` +
		`<div id="datebox">` +
		`<div class="mainitem">Thursday</div>` +
		`<div class="` + conf + `">Confirmed</div>` +
		`<div class="mainitem">` + date + `</div>` +
		`<div class="mainitem">` + clock + `</div>` +
		`</div></body></html>`)
}
