package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarnPull/internal/domain/models"
	"EarnPull/internal/service/ratelimit"
	"EarnPull/pkg/cache"
	xhttp "EarnPull/pkg/http"
	xlogger "EarnPull/pkg/logger"
)

func newUpstream(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Query().Get("symbol") == "DOWN" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<html>" + r.URL.RawQuery + "</html>"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPageFetcher_FetchAndCache(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)

	pages := cache.NewMemoryCache()
	defer pages.Close()

	f, err := NewPageFetcher(xhttp.NewClient(xhttp.WithTimeout(time.Second)), pages, ratelimit.New(), xlogger.Nop(),
		PageFetcherConfig{BaseURL: srv.URL + "/", RateCapacity: 5, RatePerSec: 100, PageTTL: time.Minute})
	require.NoError(t, err)

	ctx := context.Background()
	body, err := f.Fetch(ctx, http.MethodGet, "/stocks.asp?symbol=AAPL")
	require.NoError(t, err)
	assert.Equal(t, "<html>symbol=AAPL</html>", string(body))

	again, err := f.Fetch(ctx, http.MethodGet, "/stocks.asp?symbol=AAPL")
	require.NoError(t, err)
	assert.Equal(t, body, again)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "second read served from page cache")

	_, err = f.Fetch(ctx, http.MethodGet, "/stocks.asp?symbol=DOWN")
	assert.ErrorIs(t, err, xhttp.ErrUnexpectedStatus)
	_, err = f.Fetch(ctx, http.MethodGet, "/stocks.asp?symbol=DOWN")
	assert.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits), "failures are not cached")
}

func TestPageFetcher_NoCache(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)

	f, err := NewPageFetcher(xhttp.NewClient(), nil, nil, xlogger.Nop(), PageFetcherConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), http.MethodGet, "/x?symbol=A")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPageFetcher_RateLimitHonoursContext(t *testing.T) {
	var hits int32
	srv := newUpstream(t, &hits)

	f, err := NewPageFetcher(xhttp.NewClient(), nil, ratelimit.New(), xlogger.Nop(),
		PageFetcherConfig{BaseURL: srv.URL, RateCapacity: 1, RatePerSec: 0.001})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), http.MethodGet, "/x?symbol=A")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Fetch(ctx, http.MethodGet, "/x?symbol=B")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestNewPageFetcher_RejectsBadURL(t *testing.T) {
	_, err := NewPageFetcher(xhttp.NewClient(), nil, nil, xlogger.Nop(), PageFetcherConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

type fakeProducer struct {
	topic string
	key   []byte
	value interface{}
}

func (p *fakeProducer) Publish(_ context.Context, topic string, key []byte, value interface{}) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func (p *fakeProducer) Close() error { return nil }

func TestKafkaEventPublisher(t *testing.T) {
	prod := &fakeProducer{}
	pub := NewKafkaEventPublisher(prod, "earnings.updated")

	change := models.EarningsChange{Ticker: "AAPL", Available: true}
	require.NoError(t, pub.PublishChange(context.Background(), change))
	assert.Equal(t, "earnings.updated", prod.topic)
	assert.Equal(t, []byte("AAPL"), prod.key)
	assert.Equal(t, change, prod.value)
	assert.NoError(t, pub.Close())

	assert.NoError(t, NoopPublisher{}.PublishChange(context.Background(), change))
}
