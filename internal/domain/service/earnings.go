package service

import (
	"context"

	"EarnPull/internal/domain/models"
)

// EarningsLookup answers release questions per ticker.
type EarningsLookup interface {
	Get(ctx context.Context, ticker string) (models.EarningsRecord, error)
	SetNotes(ticker, notes string) error
	Snapshot() []models.EarningsRecord
	Save() error
}

// ForexLookup answers next-event questions per currency pair.
type ForexLookup interface {
	NextEvent(ctx context.Context, pair string) (models.FxEventView, error)
}
