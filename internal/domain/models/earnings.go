package models

import "time"

// MaxTickerLength bounds ticker symbols accepted at the public surface.
const MaxTickerLength = 10

// EarningsRecord is the cached earnings state of one ticker.
type EarningsRecord struct {
	Ticker       string
	Available    bool      // the source publishes a release date
	Confirmed    bool      // the source marks date/time as confirmed
	NeedsRefresh bool      // next read re-fetches first
	QueriedAt    time.Time // last fetch that produced a response
	ReleaseAt    time.Time // meaningful only when Available
	ReleaseTime  string    // e.g. "4:30 PM", "BMO"
	Notes        string
}

// NewEarningsRecord returns an unavailable record for ticker.
func NewEarningsRecord(ticker string) EarningsRecord {
	return EarningsRecord{Ticker: ticker}
}

// EarningsChange is published when a refresh alters what is known about a
// ticker's next release.
type EarningsChange struct {
	Ticker      string    `json:"ticker"`
	Available   bool      `json:"available"`
	Confirmed   bool      `json:"confirmed"`
	ReleaseAt   time.Time `json:"release_at,omitempty"`
	ReleaseTime string    `json:"release_time,omitempty"`
	QueriedAt   time.Time `json:"queried_at"`
}
