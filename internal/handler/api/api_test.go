package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"EarnPull/internal/domain/models"
	"EarnPull/internal/usecase"
	"EarnPull/pkg/calendar"
	xhttp "EarnPull/pkg/http"
	xlogger "EarnPull/pkg/logger"
)

type mockEarnings struct{ mock.Mock }

func (m *mockEarnings) Get(ctx context.Context, ticker string) (models.EarningsRecord, error) {
	args := m.Called(ctx, ticker)
	return args.Get(0).(models.EarningsRecord), args.Error(1)
}

func (m *mockEarnings) SetNotes(ticker, notes string) error {
	return m.Called(ticker, notes).Error(0)
}

func (m *mockEarnings) Snapshot() []models.EarningsRecord {
	return m.Called().Get(0).([]models.EarningsRecord)
}

func (m *mockEarnings) Save() error { return m.Called().Error(0) }

type mockForex struct{ mock.Mock }

func (m *mockForex) NextEvent(ctx context.Context, pair string) (models.FxEventView, error) {
	args := m.Called(ctx, pair)
	return args.Get(0).(models.FxEventView), args.Error(1)
}

// Saturday 2024-07-20 14:00 UTC.
var apiNow = time.Date(2024, time.July, 20, 14, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, earnings *mockEarnings, forex *mockForex) *xhttp.Server {
	t.Helper()
	eh := NewEarningsEchoHandler(xlogger.Nop(), earnings)
	eh.now = func() time.Time { return apiNow }

	var fl *MarketEchoHandler
	if forex != nil {
		fl = NewMarketEchoHandler(xlogger.Nop(), forex, calendar.New(time.UTC))
	} else {
		fl = NewMarketEchoHandler(xlogger.Nop(), nil, calendar.New(time.UTC))
	}
	fl.now = func() time.Time { return apiNow }

	return xhttp.NewServer(xhttp.Handlers{eh, fl}, xlogger.Nop(),
		xhttp.WithMetrics("", prometheus.NewRegistry()))
}

func do(s *xhttp.Server, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestEarnings_Release(t *testing.T) {
	release := time.Date(2024, time.July, 25, 4, 0, 0, 0, time.UTC) // Jul 25 00:00 Eastern
	m := &mockEarnings{}
	m.On("Get", mock.Anything, "aapl").Return(models.EarningsRecord{
		Ticker:      "AAPL",
		Available:   true,
		Confirmed:   true,
		QueriedAt:   apiNow,
		ReleaseAt:   release,
		ReleaseTime: "4:30 PM ET",
		Notes:       "beat",
	}, nil)
	m.On("Get", mock.Anything, "NOPE").Return(models.EarningsRecord{Ticker: "NOPE"}, nil)
	m.On("Get", mock.Anything, "BAD,").Return(models.EarningsRecord{}, fmt.Errorf("%w: %q", usecase.ErrInvalidTicker, "BAD,"))

	s := newTestServer(t, m, nil)

	rec := do(s, http.MethodGet, "/api/earnings/aapl", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"date":"Thu, Jul 25, 24"`)
	assert.Contains(t, body, `"date_std":"07/25/2024"`)
	assert.Contains(t, body, `"days":"05 Days"`)
	assert.Contains(t, body, `"time":"4:30 PM ET"`)
	assert.Contains(t, body, `"confirmed":true`)
	assert.Contains(t, body, `"notes":"beat"`)

	rec = do(s, http.MethodGet, "/api/earnings/NOPE", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"available":false`)
	assert.NotContains(t, rec.Body.String(), `"days"`)

	rec = do(s, http.MethodGet, "/api/earnings/BAD,", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(s, http.MethodGet, "/api/earnings/ABCDEFGHIJK", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"ticker"`)

	m.AssertExpectations(t)
}

func TestEarnings_Notes(t *testing.T) {
	m := &mockEarnings{}
	m.On("SetNotes", "MSFT", "watch guidance").Return(nil)
	m.On("SetNotes", "ZZZ", "x").Return(fmt.Errorf("%w: ZZZ", usecase.ErrNotFound))

	s := newTestServer(t, m, nil)

	rec := do(s, http.MethodPut, "/api/earnings/MSFT/notes", `{"notes":"watch guidance"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(s, http.MethodPut, "/api/earnings/ZZZ/notes", `{"notes":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(s, http.MethodPut, "/api/earnings/MSFT/notes", `{"notes":"`+strings.Repeat("n", 513)+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	m.AssertExpectations(t)
}

func TestEarnings_ListAndSave(t *testing.T) {
	m := &mockEarnings{}
	m.On("Snapshot").Return([]models.EarningsRecord{{Ticker: "AAPL"}, {Ticker: "MSFT"}})
	m.On("Save").Return(nil).Once()
	m.On("Save").Return(errors.New("disk full")).Once()

	s := newTestServer(t, m, nil)

	rec := do(s, http.MethodGet, "/api/earnings", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":2`)

	assert.Equal(t, http.StatusNoContent, do(s, http.MethodPost, "/api/earnings/snapshot", "").Code)
	assert.Equal(t, http.StatusInternalServerError, do(s, http.MethodPost, "/api/earnings/snapshot", "").Code)

	m.AssertExpectations(t)
}

func TestMarket_NextEvent(t *testing.T) {
	f := &mockForex{}
	f.On("NextEvent", mock.Anything, "EURUSD").Return(models.FxEventView{
		Pair: "EURUSD", Date: "Jul 22", Time: "12:30", Duration: "46:30",
		Currency: "USD", Description: "CPI (YoY)", Importance: 3,
	}, nil)
	f.On("NextEvent", mock.Anything, "AUDNZD").Return(models.FxEventView{}, usecase.ErrNoEvent)

	s := newTestServer(t, &mockEarnings{}, f)

	rec := do(s, http.MethodGet, "/api/forex/EURUSD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"duration":"46:30"`)

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/api/forex/AUDNZD", "").Code)
	f.AssertExpectations(t)

	disabled := newTestServer(t, &mockEarnings{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, do(disabled, http.MethodGet, "/api/forex/EURUSD", "").Code)
}

func TestMarket_Calendar(t *testing.T) {
	s := newTestServer(t, &mockEarnings{}, nil)

	tests := []struct {
		name   string
		query  string
		status int
		want   []string
	}{
		{
			name:   "independence day",
			query:  "?at=2024-07-04T15:00:00Z",
			status: http.StatusOK,
			want:   []string{`"closed":true`, `"holiday":"Independence Day"`, `"wall_clock":"2024-07-04 11:00:00 EDT"`},
		},
		{
			name:   "regular hours unix",
			query:  "?at=1720531800&zone=utc", // 2024-07-09 13:30 UTC, 09:30 Eastern
			status: http.StatusOK,
			want:   []string{`"closed":false`, `"regular_hours":true`, `"minute_index":0`},
		},
		{
			name:   "default now is a saturday",
			query:  "",
			status: http.StatusOK,
			want:   []string{`"closed":true`, `"at":"2024-07-20T14:00:00Z"`},
		},
		{name: "bad instant", query: "?at=yesterday", status: http.StatusBadRequest},
		{name: "bad zone", query: "?zone=mars", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodGet, "/api/calendar"+tt.query, "")
			assert.Equal(t, tt.status, rec.Code)
			for _, w := range tt.want {
				assert.Contains(t, rec.Body.String(), w)
			}
		})
	}
}
