// Package calendar converts instants between the zones the service cares
// about and answers NYSE trading-calendar questions. All functions are pure
// apart from the Local zone, which is fixed per Calendar.
package calendar

import (
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"
)

var (
	ErrInvalidZone = errors.New("calendar: invalid zone")
	ErrInvalidDate = errors.New("calendar: date field out of range")
	ErrUnparsable  = errors.New("calendar: unparsable date")
)

// Zone identifies one of the supported time zones.
type Zone int

const (
	UTC Zone = iota
	Eastern
	Pacific
	India
	Local
)

func (z Zone) String() string {
	switch z {
	case UTC:
		return "utc"
	case Eastern:
		return "eastern"
	case Pacific:
		return "pacific"
	case India:
		return "india"
	case Local:
		return "local"
	default:
		return fmt.Sprintf("zone(%d)", int(z))
	}
}

// ParseZone maps a zone name (as produced by Zone.String) back to a Zone.
func ParseZone(name string) (Zone, error) {
	for z := UTC; z <= Local; z++ {
		if z.String() == name {
			return z, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidZone, name)
}

var (
	eastern = mustLoadLocation("America/New_York")
	pacific = mustLoadLocation("America/Los_Angeles")
	india   = mustLoadLocation("Asia/Kolkata")
)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("calendar: load %s: %v", name, err))
	}
	return loc
}

// EasternLocation returns the exchange zone.
func EasternLocation() *time.Location { return eastern }

// Calendar carries the Local zone used for week boundaries and the short
// forex display formats. The zero value is not usable; call New.
type Calendar struct {
	local *time.Location
}

// New returns a Calendar whose Local zone is loc, or time.Local when loc is nil.
func New(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{local: loc}
}

// Location resolves a Zone to its rule table.
func (c *Calendar) Location(z Zone) (*time.Location, error) {
	switch z {
	case UTC:
		return time.UTC, nil
	case Eastern:
		return eastern, nil
	case Pacific:
		return pacific, nil
	case India:
		return india, nil
	case Local:
		return c.local, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidZone, int(z))
	}
}

// ToZone returns t as a wall clock in zone z.
func (c *Calendar) ToZone(t time.Time, z Zone) (time.Time, error) {
	loc, err := c.Location(z)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

// Date builds the UTC instant for a wall clock in zone z. Fields are checked
// rather than normalized, so Feb 30 is an error.
func (c *Calendar) Date(z Zone, year int, month time.Month, day, hour, min, sec int) (time.Time, error) {
	loc, err := c.Location(z)
	if err != nil {
		return time.Time{}, err
	}
	if err := checkDate(year, month, day); err != nil {
		return time.Time{}, err
	}
	if hour < 0 || hour > 23 || min < 0 || min > 59 || sec < 0 || sec > 59 {
		return time.Time{}, fmt.Errorf("%w: %02d:%02d:%02d", ErrInvalidDate, hour, min, sec)
	}
	return time.Date(year, month, day, hour, min, sec, 0, loc).UTC(), nil
}

func checkDate(year int, month time.Month, day int) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("%w: month %d", ErrInvalidDate, int(month))
	}
	if day < 1 || day > daysIn(year, month) {
		return fmt.Errorf("%w: day %d of %s %d", ErrInvalidDate, day, month, year)
	}
	return nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
