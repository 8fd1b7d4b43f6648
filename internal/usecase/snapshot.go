package usecase

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"EarnPull/internal/domain/models"
	"EarnPull/pkg/calendar"
	xlogger "EarnPull/pkg/logger"
)

// Snapshot file layout. The banner and column header must match exactly for
// a file to be accepted; existing files in the field carry these lines.
const (
	snapshotBanner  = "Earnings Data File Ver 7.0 Copyright (c) Pai Financials LLC (Do not remove this line)"
	snapshotColumns = "Available,Ticker,QueryDate,EarningsDate,EarningsTime,Confirmed,Notes"
	snapshotFields  = 7
	maxSnapshotLine = 64 * 1024
)

const (
	colAvailable = iota
	colTicker
	colQueryDate
	colEarningsDate
	colEarningsTime
	colConfirmed
	colNotes
)

var (
	ErrBadSnapshotHeader = errors.New("snapshot: header mismatch")
	errBadRow            = errors.New("snapshot: malformed row")
)

// StalenessPolicy decides which loaded records must be re-fetched before
// they are served.
type StalenessPolicy struct {
	QueryStaleDays        int
	PostEarningsStaleDays int
	JitterDays            int
	ForceRefresh          bool
}

// IsStale applies the refresh rule to a record found at the 1-based ordinal
// of its row. The ordinal spreads expiry of records queried on the same day
// over JitterDays distinct days.
func (p StalenessPolicy) IsStale(rec models.EarningsRecord, ordinal int, now time.Time) bool {
	if p.ForceRefresh {
		return true
	}
	if !rec.Available {
		return false
	}

	jitter := 0
	if p.JitterDays > 0 {
		jitter = ordinal % p.JitterDays
	}
	if calendar.DaysBetween(rec.QueriedAt, now) > p.QueryStaleDays+jitter {
		return true
	}
	if calendar.DaysBetween(now, rec.ReleaseAt) < -p.PostEarningsStaleDays {
		return true
	}
	return false
}

// readSnapshot parses a snapshot and marks stale records. Row-level problems
// are logged and the row skipped; only a bad header fails the read.
func readSnapshot(r io.Reader, policy StalenessPolicy, now time.Time, log *xlogger.Logger) ([]models.EarningsRecord, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxSnapshotLine)

	for _, want := range []string{snapshotBanner, snapshotColumns} {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, fmt.Errorf("read snapshot header: %w", err)
			}
			return nil, fmt.Errorf("%w: file too short", ErrBadSnapshotHeader)
		}
		if got := strings.TrimRight(sc.Text(), "\r"); got != want {
			return nil, fmt.Errorf("%w: got %q", ErrBadSnapshotHeader, got)
		}
	}

	var (
		records []models.EarningsRecord
		seen    = make(map[string]struct{})
		ordinal int
	)
	for sc.Scan() {
		ordinal++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		rec, err := parseSnapshotRow(line)
		if err != nil {
			log.Warn("snapshot row skipped", xlogger.Int("row", ordinal), xlogger.Error(err))
			continue
		}
		if _, dup := seen[rec.Ticker]; dup {
			log.Error("duplicate ticker in snapshot", xlogger.String("ticker", rec.Ticker), xlogger.Int("row", ordinal))
			continue
		}
		seen[rec.Ticker] = struct{}{}

		if policy.IsStale(rec, ordinal, now) {
			rec.NeedsRefresh = true
			log.Debug("marked for refresh", xlogger.String("ticker", rec.Ticker), xlogger.Int("row", ordinal))
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return records, nil
}

func parseSnapshotRow(line string) (models.EarningsRecord, error) {
	// Notes is the remainder of the line, so commas inside it survive.
	cols := strings.SplitN(line, ",", snapshotFields)
	if len(cols) != snapshotFields {
		return models.EarningsRecord{}, fmt.Errorf("%w: %d columns", errBadRow, len(cols))
	}
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}

	ticker, err := CanonicalTicker(cols[colTicker])
	if err != nil {
		return models.EarningsRecord{}, fmt.Errorf("%w: %v", errBadRow, err)
	}
	available, err := parseFlag(cols[colAvailable])
	if err != nil {
		return models.EarningsRecord{}, fmt.Errorf("%w: available: %v", errBadRow, err)
	}
	queried, err := calendar.ParseStdDate(cols[colQueryDate])
	if err != nil {
		return models.EarningsRecord{}, fmt.Errorf("%w: query date: %v", errBadRow, err)
	}

	rec := models.EarningsRecord{
		Ticker:      ticker,
		Available:   available,
		QueriedAt:   queried,
		ReleaseTime: cols[colEarningsTime],
		Notes:       unquoteNotes(cols[colNotes]),
	}
	if release, err := calendar.ParseStdDate(cols[colEarningsDate]); err == nil {
		rec.ReleaseAt = release
	} else if available {
		return models.EarningsRecord{}, fmt.Errorf("%w: earnings date: %v", errBadRow, err)
	}
	if rec.Confirmed, err = parseFlag(cols[colConfirmed]); err != nil {
		return models.EarningsRecord{}, fmt.Errorf("%w: confirmed: %v", errBadRow, err)
	}
	return rec, nil
}

func parseFlag(s string) (bool, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return false, err
	}
	return n != 0, nil
}

func unquoteNotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// writeSnapshot writes the header lines and one row per record.
func writeSnapshot(w io.Writer, records []models.EarningsRecord) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, snapshotBanner)
	fmt.Fprintln(bw, snapshotColumns)
	for _, rec := range records {
		fmt.Fprintln(bw, formatSnapshotRow(rec))
	}
	return bw.Flush()
}

var epoch = time.Unix(0, 0).UTC()

func formatSnapshotRow(rec models.EarningsRecord) string {
	release := rec.ReleaseAt
	if release.IsZero() {
		release = epoch
	}
	queried := rec.QueriedAt
	if queried.IsZero() {
		queried = epoch
	}
	return strings.Join([]string{
		boolFlag(rec.Available),
		rec.Ticker,
		calendar.FormatStdDate(queried),
		calendar.FormatStdDate(release),
		rec.ReleaseTime,
		boolFlag(rec.Confirmed),
		quoteNotes(rec.Notes),
	}, ",")
}

// quoteNotes wraps notes that the reader would otherwise trim or unquote.
func quoteNotes(s string) string {
	if s != strings.TrimSpace(s) || unquoteNotes(s) != s {
		return `"` + s + `"`
	}
	return s
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
