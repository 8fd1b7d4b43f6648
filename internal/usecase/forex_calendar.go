package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"EarnPull/internal/domain/models"
	drepo "EarnPull/internal/domain/repository"
	"EarnPull/pkg/calendar"
	xlogger "EarnPull/pkg/logger"
)

const (
	forexSource = "forex"

	// DefaultForexPath names the weekly calendar file by the Sunday that
	// starts the week.
	DefaultForexPath = "/files/Calendar-%02d-%02d-%04d.xls"

	fxColumns      = 7
	fxMinLineBytes = 15
)

var ErrNoEvent = errors.New("no upcoming event for pair")

var fxWeekdays = map[string]int{
	"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
}

var fxMonths = map[string]bool{
	"jan": true, "feb": true, "mar": true, "apr": true, "may": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "oct": true, "nov": true, "dec": true,
}

// ForexCalendarConfig controls where and how often the weekly calendar is read.
type ForexCalendarConfig struct {
	PathFormat      string
	RequeryInterval time.Duration
}

// ForexCalendar keeps this week's upcoming macro events and answers
// next-event queries per currency pair.
type ForexCalendar struct {
	mu        sync.Mutex
	events    []models.FxEvent
	queriedAt time.Time
	week      time.Time

	fetcher drepo.Fetcher
	cal     *calendar.Calendar
	metrics drepo.Metrics
	log     *xlogger.Logger
	cfg     ForexCalendarConfig
	now     func() time.Time
}

func NewForexCalendar(
	fetcher drepo.Fetcher,
	cal *calendar.Calendar,
	metrics drepo.Metrics,
	log *xlogger.Logger,
	cfg ForexCalendarConfig,
) *ForexCalendar {
	if cfg.PathFormat == "" {
		cfg.PathFormat = DefaultForexPath
	}
	if cfg.RequeryInterval <= 0 {
		cfg.RequeryInterval = 30 * time.Minute
	}
	return &ForexCalendar{
		fetcher: fetcher,
		cal:     cal,
		metrics: metrics,
		log:     log.With(xlogger.String("component", "forex_calendar")),
		cfg:     cfg,
		now:     time.Now,
	}
}

// NextEvent returns the next event for a currency pair such as "EURUSD". A
// high importance match is taken at once; otherwise a more important event
// for the pair at the same instant replaces the first match.
func (f *ForexCalendar) NextEvent(ctx context.Context, pair string) (models.FxEventView, error) {
	pair = strings.ToUpper(strings.TrimSpace(pair))
	if pair == "" {
		return models.FxEventView{}, fmt.Errorf("%w: empty pair", ErrNoEvent)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	week := calendar.StartOfUTCWeek(now)
	if !week.Equal(f.week) || now.Sub(f.queriedAt) > f.cfg.RequeryInterval {
		f.refreshLocked(ctx, now, week)
	}

	best := -1
	for i, ev := range f.events {
		if best < 0 {
			if strings.Contains(pair, ev.Currency) && !ev.At.Before(now) {
				best = i
				if ev.Importance >= models.ImportanceHigh {
					break
				}
			}
			continue
		}
		if !ev.At.Equal(f.events[best].At) {
			break
		}
		if strings.Contains(pair, ev.Currency) && ev.Importance > f.events[best].Importance {
			best = i
		}
	}
	if best < 0 {
		return models.FxEventView{}, fmt.Errorf("%w: %s", ErrNoEvent, pair)
	}
	return f.view(pair, f.events[best], now), nil
}

func (f *ForexCalendar) view(pair string, ev models.FxEvent, now time.Time) models.FxEventView {
	left := ev.At.Sub(now)
	if left < 0 {
		left = 0
	}
	return models.FxEventView{
		Pair:        pair,
		At:          ev.At,
		Date:        f.cal.FormatFxDate(ev.At),
		Time:        f.cal.FormatFxTime(ev.At),
		Duration:    fmt.Sprintf("%02d:%02d", int(left.Hours()), int(left.Minutes())%60),
		Currency:    ev.Currency,
		Description: ev.Description,
		Importance:  ev.Importance,
	}
}

// refreshLocked replaces the event list with this week's file. On failure the
// previous list is kept and the next call tries again.
func (f *ForexCalendar) refreshLocked(ctx context.Context, now, week time.Time) {
	path := fmt.Sprintf(f.cfg.PathFormat, int(week.Month()), week.Day(), week.Year())
	body, err := f.fetcher.Fetch(ctx, http.MethodGet, path)
	if err != nil {
		f.metrics.RecordFetch(forexSource, "error")
		f.log.Warn("forex calendar fetch failed", xlogger.String("path", path), xlogger.Error(err))
		return
	}
	f.metrics.RecordFetch(forexSource, "ok")

	f.events = parseFxCalendar(string(body), week, now, f.log)
	f.queriedAt = now
	f.week = week
	f.log.Info("forex calendar loaded", xlogger.String("path", path), xlogger.Int("events", len(f.events)))
}

// parseFxCalendar reads the weekly CSV. Rows carry date, time, zone,
// currency, description, importance and trailing columns; only events at or
// after now are kept.
func parseFxCalendar(body string, week, now time.Time, log *xlogger.Logger) []models.FxEvent {
	var events []models.FxEvent
	for n, line := range strings.Split(body, "\n") {
		if n == 0 || len(line) < fxMinLineBytes {
			continue
		}
		cols := strings.SplitN(line, ",", fxColumns)
		if len(cols) != fxColumns {
			log.Debug("forex row skipped", xlogger.Int("line", n+1))
			continue
		}
		for i := range cols {
			cols[i] = strings.Trim(cols[i], " \t\r\n")
		}

		at, ok := fxEventTime(cols[0], cols[1], week)
		if !ok || at.Before(now) {
			continue
		}
		events = append(events, models.FxEvent{
			At:          at,
			Currency:    strings.ToUpper(cols[3]),
			Description: cols[4],
			Importance:  fxImportance(cols[5]),
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events
}

// fxEventTime places "Ddd Mmm DD" and "HH:MM" inside the week. Only the
// weekday positions the event; a missing time means 00:01.
func fxEventTime(date, clock string, week time.Time) (time.Time, bool) {
	parts := strings.Fields(date)
	if len(parts) != 3 || len(parts[0]) < 3 || len(parts[1]) < 3 {
		return time.Time{}, false
	}
	if !fxMonths[strings.ToLower(parts[1][:3])] {
		return time.Time{}, false
	}
	if _, err := strconv.Atoi(parts[2]); err != nil {
		return time.Time{}, false
	}
	dow := fxWeekdays[strings.ToLower(parts[0][:3])]

	hours, minutes := 0, 1
	if h, m, ok := strings.Cut(clock, ":"); ok {
		hh, errH := strconv.Atoi(strings.TrimSpace(h))
		mm, errM := strconv.Atoi(strings.TrimSpace(m))
		if errH == nil && errM == nil {
			hours, minutes = hh, mm
		}
	}
	return week.Add(time.Duration(dow)*24*time.Hour +
		time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute), true
}

func fxImportance(s string) int {
	s = strings.ToLower(s)
	switch {
	case strings.HasPrefix(s, "low"):
		return models.ImportanceLow
	case strings.HasPrefix(s, "medium"):
		return models.ImportanceMedium
	default:
		return models.ImportanceHigh
	}
}
