package models

import "time"

// Requests and views for the HTTP surface.

type TickerRequest struct {
	Ticker string `param:"ticker" validate:"required,max=10,printascii"`
}

type NotesRequest struct {
	Ticker string `param:"ticker" validate:"required,max=10,printascii"`
	Notes  string `json:"notes" validate:"max=512"`
}

type PairRequest struct {
	Pair string `param:"pair" validate:"required,min=3,max=12,printascii"`
}

type CalendarRequest struct {
	At   string `query:"at"`
	Zone string `query:"zone" default:"eastern" validate:"oneof=utc eastern pacific india local"`
}

// ReleaseView is the release information for one ticker.
type ReleaseView struct {
	Ticker    string `json:"ticker"`
	Available bool   `json:"available"`
	Confirmed bool   `json:"confirmed"`
	Date      string `json:"date,omitempty"`
	DateStd   string `json:"date_std,omitempty"`
	Time      string `json:"time,omitempty"`
	Days      string `json:"days,omitempty"`
	Notes     string `json:"notes"`
	QueriedAt string `json:"queried_at,omitempty"`
}

// CalendarView answers trading-calendar questions for one instant.
type CalendarView struct {
	At                time.Time `json:"at"`
	WallClock         string    `json:"wall_clock"`
	Closed            bool      `json:"closed"`
	Holiday           string    `json:"holiday,omitempty"`
	RegularHours      bool      `json:"regular_hours"`
	MinuteIndex       int       `json:"minute_index"`
	StartOfTradingDay time.Time `json:"start_of_trading_day"`
	EndOfTradingDay   time.Time `json:"end_of_trading_day"`
	StartOfWeek       time.Time `json:"start_of_week"`
	EndOfWeek         time.Time `json:"end_of_week"`
}
