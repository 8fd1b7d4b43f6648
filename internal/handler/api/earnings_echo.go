package api

import (
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"EarnPull/internal/domain/models"
	"EarnPull/internal/domain/service"
	"EarnPull/internal/usecase"
	"EarnPull/pkg/calendar"
	xhttp "EarnPull/pkg/http"
	xlogger "EarnPull/pkg/logger"
)

// EarningsEchoHandler serves release lookups and notes for tickers.
type EarningsEchoHandler struct {
	logger   *xlogger.Logger
	earnings service.EarningsLookup
	now      func() time.Time
}

func NewEarningsEchoHandler(logger *xlogger.Logger, earnings service.EarningsLookup) *EarningsEchoHandler {
	return &EarningsEchoHandler{
		logger:   logger.With(xlogger.String("component", "earnings_api")),
		earnings: earnings,
		now:      time.Now,
	}
}

func (h *EarningsEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/earnings")
	g.GET("", h.List)
	g.POST("/snapshot", h.Save)
	g.GET("/:ticker", h.Release)
	g.PUT("/:ticker/notes", h.SetNotes)
}

// Release returns the next release of one ticker, fetching it if needed.
func (h *EarningsEchoHandler) Release(c echo.Context) error {
	req := &models.TickerRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rec, err := h.earnings.Get(c.Request().Context(), req.Ticker)
	if err != nil {
		return h.fail(c, "earnings lookup", err)
	}
	return xhttp.SuccessResponse(c, releaseView(rec, h.now()))
}

func (h *EarningsEchoHandler) SetNotes(c echo.Context) error {
	req := &models.NotesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if err := h.earnings.SetNotes(req.Ticker, req.Notes); err != nil {
		return h.fail(c, "set notes", err)
	}
	return xhttp.NoContentResponse(c)
}

// List returns every cached record without fetching.
func (h *EarningsEchoHandler) List(c echo.Context) error {
	records := h.earnings.Snapshot()
	now := h.now()
	views := make([]models.ReleaseView, 0, len(records))
	for _, rec := range records {
		views = append(views, releaseView(rec, now))
	}
	return xhttp.ListResponse(c, views, int64(len(views)))
}

// Save writes pending changes to the snapshot file now.
func (h *EarningsEchoHandler) Save(c echo.Context) error {
	if err := h.earnings.Save(); err != nil {
		return h.fail(c, "snapshot save", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *EarningsEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, usecase.ErrInvalidTicker):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	case errors.Is(err, usecase.ErrNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	h.logger.Error(op+" failed", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError(op+" failed").WithError(err))
}

func releaseView(rec models.EarningsRecord, now time.Time) models.ReleaseView {
	v := models.ReleaseView{
		Ticker:    rec.Ticker,
		Available: rec.Available,
		Confirmed: rec.Confirmed,
		Notes:     rec.Notes,
	}
	if !rec.QueriedAt.IsZero() {
		v.QueriedAt = calendar.FormatStdDate(rec.QueriedAt)
	}
	if rec.Available {
		v.Date = calendar.FormatLongDate(rec.ReleaseAt)
		v.DateStd = calendar.FormatStdDate(rec.ReleaseAt)
		v.Time = rec.ReleaseTime
		v.Days = calendar.FormatDays(calendar.DaysUntil(rec.ReleaseAt, now))
	}
	return v
}
