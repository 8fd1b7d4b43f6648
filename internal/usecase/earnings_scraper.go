package usecase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"EarnPull/pkg/calendar"
	"EarnPull/pkg/htmlx"
)

const (
	// DefaultEarningsPath is the quote page that carries the release box.
	DefaultEarningsPath = "/stocks.asp?symbol=%s"

	dateboxAnchor   = `id="datebox"`
	confirmedMarker = "color-yes"
	releaseBlockTag = "div"
)

var ErrAnchorNotFound = errors.New("earnings page: datebox anchor not found")

// scrapeResult is what one earnings page says about the next release.
type scrapeResult struct {
	Confirmed   bool
	ReleaseAt   time.Time
	ReleaseTime string
}

// EarningsScraper turns an earnings page into a scrapeResult.
type EarningsScraper struct {
	pathFormat string
}

// NewEarningsScraper returns a scraper for pages addressed by pathFormat, a
// format string with one %s for the encoded ticker.
func NewEarningsScraper(pathFormat string) *EarningsScraper {
	if pathFormat == "" {
		pathFormat = DefaultEarningsPath
	}
	return &EarningsScraper{pathFormat: pathFormat}
}

// Path returns the request path for ticker.
func (s *EarningsScraper) Path(ticker string) string {
	return fmt.Sprintf(s.pathFormat, htmlx.PercentEncode(ticker))
}

// Parse reads the release box: four sibling blocks holding the weekday, the
// confirmation marker, the date and the time. The first missing piece fails
// the whole parse.
func (s *EarningsScraper) Parse(page []byte, now time.Time) (scrapeResult, error) {
	buf := string(page)

	cursor := strings.Index(buf, dateboxAnchor)
	if cursor < 0 {
		return scrapeResult{}, ErrAnchorNotFound
	}

	var blocks [4]string
	for i := range blocks {
		block, next, err := htmlx.ExtractTag(releaseBlockTag, buf, cursor)
		if err != nil {
			return scrapeResult{}, fmt.Errorf("release block %d: %w", i, err)
		}
		blocks[i], cursor = block, next
	}

	var res scrapeResult
	res.Confirmed = strings.Contains(blocks[1], confirmedMarker)

	dateText, err := htmlx.ExtractValue(blocks[2])
	if err != nil {
		return scrapeResult{}, fmt.Errorf("release date: %w", err)
	}
	if res.ReleaseAt, err = calendar.ParseWebDate(dateText, now); err != nil {
		return scrapeResult{}, fmt.Errorf("release date: %w", err)
	}

	timeText, err := htmlx.ExtractValue(blocks[3])
	if err != nil {
		return scrapeResult{}, fmt.Errorf("release time: %w", err)
	}
	res.ReleaseTime = cleanField(timeText)
	return res, nil
}

// cleanField collapses whitespace and drops commas so the value fits a
// snapshot column.
func cleanField(s string) string {
	s = strings.ReplaceAll(s, ",", " ")
	return strings.Join(strings.Fields(s), " ")
}
