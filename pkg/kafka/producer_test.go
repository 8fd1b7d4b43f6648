package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.ErrorIs(t, err, ErrNoBrokers)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("zstd"))
	require.NoError(t, err)
	assert.Equal(t, "zstd", p.comp)
}

func TestProducer_Publish(t *testing.T) {
	reg := prometheus.NewRegistry()
	w := &fakeWriter{}
	p := newProducer(w, "gzip", reg)

	type payload struct {
		Ticker string `json:"ticker"`
	}
	require.NoError(t, p.Publish(context.Background(), "earnings.updated", []byte("AAPL"), payload{Ticker: "AAPL"}))
	require.NoError(t, p.Publish(context.Background(), "earnings.updated", nil, "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "earnings.updated", w.msgs[0].Topic)
	assert.Equal(t, []byte("AAPL"), w.msgs[0].Key)
	assert.JSONEq(t, `{"ticker":"AAPL"}`, string(w.msgs[0].Value))
	assert.Equal(t, []byte("raw"), w.msgs[1].Value)

	w.err = errors.New("leader not available")
	err := p.Publish(context.Background(), "earnings.updated", nil, []byte("x"))
	assert.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(p.metrics.messages.WithLabelValues("earnings.updated", "gzip", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.metrics.messages.WithLabelValues("earnings.updated", "gzip", "error")))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestParseCompression(t *testing.T) {
	assert.Equal(t, kafka.Snappy, parseCompression("snappy"))
	assert.Equal(t, kafka.Lz4, parseCompression("lz4"))
	assert.Equal(t, kafka.Gzip, parseCompression("unknown"))
}
