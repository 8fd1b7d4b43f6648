package models

import "time"

// Importance levels used by the forex calendar.
const (
	ImportanceLow    = 1
	ImportanceMedium = 2
	ImportanceHigh   = 3
)

// FxEvent is one scheduled macro-economic release.
type FxEvent struct {
	At          time.Time
	Currency    string
	Description string
	Importance  int
}

// FxEventView is the display form of the next event for a pair.
type FxEventView struct {
	Pair        string    `json:"pair"`
	At          time.Time `json:"at"`
	Date        string    `json:"date"`
	Time        string    `json:"time"`
	Duration    string    `json:"duration"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Importance  int       `json:"importance"`
}
