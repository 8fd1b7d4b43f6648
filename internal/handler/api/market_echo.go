package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"EarnPull/internal/domain/models"
	"EarnPull/internal/domain/service"
	"EarnPull/internal/usecase"
	"EarnPull/pkg/calendar"
	xhttp "EarnPull/pkg/http"
	xlogger "EarnPull/pkg/logger"
	"EarnPull/pkg/util"
)

// MarketEchoHandler serves forex events and trading-calendar queries.
// forex may be nil when the forex source is disabled.
type MarketEchoHandler struct {
	logger *xlogger.Logger
	forex  service.ForexLookup
	cal    *calendar.Calendar
	now    func() time.Time
}

func NewMarketEchoHandler(logger *xlogger.Logger, forex service.ForexLookup, cal *calendar.Calendar) *MarketEchoHandler {
	return &MarketEchoHandler{
		logger: logger.With(xlogger.String("component", "market_api")),
		forex:  forex,
		cal:    cal,
		now:    time.Now,
	}
}

func (h *MarketEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/forex/:pair", h.NextEvent)
	g.GET("/calendar", h.Calendar)
}

func (h *MarketEchoHandler) NextEvent(c echo.Context) error {
	if h.forex == nil {
		return xhttp.AppErrorResponse(c, xhttp.UnavailableError("forex calendar is disabled"))
	}
	req := &models.PairRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	view, err := h.forex.NextEvent(c.Request().Context(), req.Pair)
	if errors.Is(err, usecase.ErrNoEvent) {
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()))
	}
	if err != nil {
		h.logger.Error("forex lookup failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("forex lookup failed").WithError(err))
	}
	return xhttp.SuccessResponse(c, view)
}

// Calendar answers closed / holiday / regular-hours questions for ?at=
// (RFC 3339 or unix seconds, default now) viewed in ?zone=.
func (h *MarketEchoHandler) Calendar(c echo.Context) error {
	req := &models.CalendarRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	at, err := parseInstant(req.At, h.now())
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithParam("at", req.At))
	}
	zone, err := calendar.ParseZone(req.Zone)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	wall, err := h.cal.ToZone(at, zone)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	return xhttp.SuccessResponse(c, calendarView(h.cal, at, wall))
}

func calendarView(cal *calendar.Calendar, at, wall time.Time) models.CalendarView {
	v := models.CalendarView{
		At:                at.UTC(),
		WallClock:         wall.Format("2006-01-02 15:04:05 MST"),
		Closed:            calendar.IsExchangeClosed(at),
		StartOfTradingDay: calendar.StartOfTradingDay(at),
		EndOfTradingDay:   calendar.EndOfTradingDay(at),
		StartOfWeek:       cal.StartOfWeek(at).UTC(),
		EndOfWeek:         cal.EndOfWeek(at).UTC(),
	}
	v.Holiday, _ = calendar.Holiday(at)
	v.RegularHours, v.MinuteIndex = calendar.IsRegularHours(at)
	return v
}

func parseInstant(s string, now time.Time) (time.Time, error) {
	if s == "" {
		return now, nil
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("at must be RFC 3339 or unix seconds: %q", s)
	}
	return t, nil
}
