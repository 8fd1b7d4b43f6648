package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"EarnPull/internal/domain/models"
	drepo "EarnPull/internal/domain/repository"
	"EarnPull/pkg/htmlx"
	xlogger "EarnPull/pkg/logger"
)

const earningsSource = "earnings"

var (
	ErrInvalidTicker = errors.New("invalid ticker")
	ErrNotFound      = errors.New("ticker not in cache")
)

// CanonicalTicker upper-cases a ticker and rejects empty or over-long symbols.
func CanonicalTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if t == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTicker)
	}
	if len(t) > models.MaxTickerLength {
		return "", fmt.Errorf("%w: %q longer than %d", ErrInvalidTicker, t, models.MaxTickerLength)
	}
	if strings.ContainsAny(t, ",\r\n") {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, t)
	}
	return t, nil
}

// EarningsCacheConfig holds the snapshot location and refresh policy.
type EarningsCacheConfig struct {
	SnapshotPath string
	Policy       StalenessPolicy
	// RequeryUnavailableOnce fetches an unavailable record on its first read
	// in this process even when it is not marked for refresh.
	RequeryUnavailableOnce bool
}

type cacheEntry struct {
	rec       models.EarningsRecord
	attempted bool
}

// EarningsCache maps tickers to their earnings records. One mutex guards the
// map and the dirty flag; network fetches run outside it, and singleflight
// keeps at most one fetch per ticker in flight.
type EarningsCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	dirty   bool
	modTime time.Time // snapshot mtime after our last load or save

	group   singleflight.Group
	fetcher drepo.Fetcher
	scraper *EarningsScraper
	pub     drepo.Publisher
	metrics drepo.Metrics
	log     *xlogger.Logger
	cfg     EarningsCacheConfig
	now     func() time.Time
}

// CacheOption configures an EarningsCache.
type CacheOption func(*EarningsCache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *EarningsCache) { c.now = now }
}

// WithPublisher announces refreshes that change a record.
func WithPublisher(pub drepo.Publisher) CacheOption {
	return func(c *EarningsCache) { c.pub = pub }
}

// NewEarningsCache creates an empty cache. Call Open to load the snapshot.
func NewEarningsCache(
	fetcher drepo.Fetcher,
	scraper *EarningsScraper,
	metrics drepo.Metrics,
	log *xlogger.Logger,
	cfg EarningsCacheConfig,
	opts ...CacheOption,
) *EarningsCache {
	c := &EarningsCache{
		entries: make(map[string]*cacheEntry),
		fetcher: fetcher,
		scraper: scraper,
		metrics: metrics,
		log:     log.With(xlogger.String("component", "earnings_cache")),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open loads the configured snapshot. It never fails: a missing or unreadable
// file leaves the cache empty, and the next save replaces the file.
func (c *EarningsCache) Open() error {
	path := c.cfg.SnapshotPath
	err := c.LoadSnapshot(path)
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		c.log.Info("no snapshot yet, starting empty", xlogger.String("path", path))
	default:
		c.log.Warn("snapshot unusable, starting empty", xlogger.String("path", path), xlogger.Error(err))
		// Remember the rejected file so it is not reloaded until someone edits it.
		if st, statErr := os.Stat(path); statErr == nil {
			c.mu.Lock()
			c.modTime = st.ModTime()
			c.mu.Unlock()
		}
	}
	return nil
}

// Save writes the configured snapshot if anything changed.
func (c *EarningsCache) Save() error {
	return c.SaveSnapshot(c.cfg.SnapshotPath)
}

// Close saves pending changes.
func (c *EarningsCache) Close() error {
	return c.Save()
}

// Get returns the record for ticker, fetching it first when it is new or
// marked for refresh. Transport and parse failures are absorbed into the
// record; the error is non-nil only for an invalid ticker.
func (c *EarningsCache) Get(ctx context.Context, ticker string) (models.EarningsRecord, error) {
	key, err := CanonicalTicker(ticker)
	if err != nil {
		return models.EarningsRecord{}, err
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{rec: models.NewEarningsRecord(key)}
		e.rec.NeedsRefresh = true
		c.entries[key] = e
		c.metrics.RecordCacheSize(len(c.entries))
	}
	if !c.needsFetch(e) {
		rec := e.rec
		c.mu.Unlock()
		return rec, nil
	}
	c.mu.Unlock()

	// The flight outlives any single caller: a caller that gives up gets the
	// record as it stands, and the fetch still lands for everyone else.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (interface{}, error) {
		return c.refresh(flightCtx, key), nil
	})
	select {
	case res := <-ch:
		return res.Val.(models.EarningsRecord), nil
	case <-ctx.Done():
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.entries[key]; ok {
			return e.rec, nil
		}
		return models.NewEarningsRecord(key), nil
	}
}

func (c *EarningsCache) needsFetch(e *cacheEntry) bool {
	if e.rec.NeedsRefresh {
		return true
	}
	return c.cfg.RequeryUnavailableOnce && !e.rec.Available && !e.attempted
}

// refresh fetches and parses the page for key and folds the outcome into the
// cached record.
func (c *EarningsCache) refresh(ctx context.Context, key string) models.EarningsRecord {
	// A flight for key may have finished between our check in Get and here.
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.needsFetch(e) {
		rec := e.rec
		c.mu.Unlock()
		return rec
	}
	c.mu.Unlock()

	start := time.Now()
	defer func() { c.metrics.RecordLatency("earnings_refresh", time.Since(start).Seconds()) }()

	c.log.Info("querying source", xlogger.String("ticker", key))
	page, fetchErr := c.fetcher.Fetch(ctx, http.MethodGet, c.scraper.Path(key))

	now := c.now()
	var (
		res      scrapeResult
		parseErr error
	)
	if fetchErr == nil {
		res, parseErr = c.scraper.Parse(page, now)
	}

	c.mu.Lock()
	e, ok := c.entries[key]
	if !ok {
		// The snapshot was reloaded while we were fetching.
		e = &cacheEntry{rec: models.NewEarningsRecord(key)}
		c.entries[key] = e
	}
	prev := e.rec
	e.attempted = true
	e.rec.NeedsRefresh = false
	c.dirty = true

	switch {
	case fetchErr != nil:
		// Keep whatever we knew before.
	case parseErr != nil:
		e.rec.QueriedAt = now.UTC()
		e.rec.Available = false
	default:
		e.rec.QueriedAt = now.UTC()
		e.rec.Available = true
		e.rec.Confirmed = res.Confirmed
		e.rec.ReleaseAt = res.ReleaseAt
		e.rec.ReleaseTime = res.ReleaseTime
	}
	rec := e.rec
	size := len(c.entries)
	c.mu.Unlock()

	c.metrics.RecordCacheSize(size)
	switch {
	case fetchErr != nil:
		c.metrics.RecordFetch(earningsSource, "error")
		c.log.Warn("earnings fetch failed", xlogger.String("ticker", key), xlogger.Error(fetchErr))
		return rec
	case parseErr != nil:
		c.metrics.RecordFetch(earningsSource, "ok")
		c.metrics.RecordParseFailure(earningsSource)
		c.log.Info("earnings not available",
			xlogger.String("ticker", key),
			xlogger.String("page_title", htmlx.PageTitle(string(page))),
			xlogger.Error(parseErr),
		)
	default:
		c.metrics.RecordFetch(earningsSource, "ok")
		c.log.Info("earnings refreshed",
			xlogger.String("ticker", key),
			xlogger.Time("release_at", rec.ReleaseAt),
			xlogger.Bool("confirmed", rec.Confirmed),
		)
	}

	if c.pub != nil && releaseChanged(prev, rec) {
		change := models.EarningsChange{
			Ticker:      rec.Ticker,
			Available:   rec.Available,
			Confirmed:   rec.Confirmed,
			ReleaseTime: rec.ReleaseTime,
			QueriedAt:   rec.QueriedAt,
		}
		if rec.Available {
			change.ReleaseAt = rec.ReleaseAt
		}
		if err := c.pub.PublishChange(ctx, change); err != nil {
			c.metrics.RecordError("publish")
			c.log.Warn("publish change failed", xlogger.String("ticker", key), xlogger.Error(err))
		}
	}
	return rec
}

func releaseChanged(prev, cur models.EarningsRecord) bool {
	if prev.Available != cur.Available {
		return true
	}
	if !cur.Available {
		return false
	}
	return prev.Confirmed != cur.Confirmed ||
		!prev.ReleaseAt.Equal(cur.ReleaseAt) ||
		prev.ReleaseTime != cur.ReleaseTime
}

// SetNotes replaces the notes of a cached ticker. It never fetches.
func (c *EarningsCache) SetNotes(ticker, notes string) error {
	key, err := CanonicalTicker(ticker)
	if err != nil {
		return err
	}
	notes = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(notes)

	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	e.rec.Notes = notes
	c.dirty = true
	return nil
}

// Snapshot returns copies of all records sorted by ticker.
func (c *EarningsCache) Snapshot() []models.EarningsRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedLocked()
}

func (c *EarningsCache) sortedLocked() []models.EarningsRecord {
	out := make([]models.EarningsRecord, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Len returns the number of cached tickers.
func (c *EarningsCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Dirty reports whether there are changes not yet saved.
func (c *EarningsCache) Dirty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dirty
}

// SnapshotModTime returns the snapshot file mtime recorded at the last load
// or save.
func (c *EarningsCache) SnapshotModTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modTime
}

// LoadSnapshot replaces the cache with the contents of path. On any failure
// the cache is left empty.
func (c *EarningsCache) LoadSnapshot(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.dirty = false
	c.modTime = time.Time{}

	f, err := os.Open(path)
	if err != nil {
		c.metrics.RecordSnapshot("load", "error")
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	records, err := readSnapshot(f, c.cfg.Policy, c.now(), c.log)
	if err != nil {
		c.metrics.RecordSnapshot("load", "error")
		c.log.Error("snapshot rejected", xlogger.String("path", path), xlogger.Error(err))
		return err
	}

	stale := 0
	for _, rec := range records {
		if rec.NeedsRefresh {
			stale++
		}
		c.entries[rec.Ticker] = &cacheEntry{rec: rec}
	}
	if st, err := f.Stat(); err == nil {
		c.modTime = st.ModTime()
	}

	c.metrics.RecordSnapshot("load", "ok")
	c.metrics.RecordCacheSize(len(c.entries))
	c.log.Info("snapshot loaded",
		xlogger.String("path", path),
		xlogger.Int("records", len(records)),
		xlogger.Int("stale", stale),
	)
	return nil
}

// SaveSnapshot writes every record to path when the cache is dirty. The file
// is written beside path and renamed over it.
func (c *EarningsCache) SaveSnapshot(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.dirty {
		return nil
	}

	records := c.sortedLocked()
	if err := writeFileAtomic(path, records); err != nil {
		c.metrics.RecordSnapshot("save", "error")
		return fmt.Errorf("save snapshot: %w", err)
	}
	if st, err := os.Stat(path); err == nil {
		c.modTime = st.ModTime()
	}
	c.dirty = false

	c.metrics.RecordSnapshot("save", "ok")
	c.log.Info("snapshot saved", xlogger.String("path", path), xlogger.Int("records", len(records)))
	return nil
}

func writeFileAtomic(path string, records []models.EarningsRecord) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := writeSnapshot(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
