// Package ingest implements the four-stage pipeline that loads daily trot
// racing data from the turfinfo API into Postgres.
package ingest

import (
	"time"

	"github.com/rotisserie/eris"
)

const dateCodeLayout = "02012006"

// DateCode identifies one calendar day in the source's DDMMYYYY form.
type DateCode struct {
	t time.Time
}

// ParseDateCode validates a DDMMYYYY date string.
func ParseDateCode(s string) (DateCode, error) {
	t, err := time.ParseInLocation(dateCodeLayout, s, time.UTC)
	if err != nil {
		return DateCode{}, eris.Wrapf(err, "ingest: invalid date code %q (want DDMMYYYY, e.g. 05112025)", s)
	}
	return DateCode{t: t}, nil
}

// DateCodeOf converts a time to its calendar-day code.
func DateCodeOf(t time.Time) DateCode {
	return DateCode{t: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// String returns the DDMMYYYY form used in source URLs.
func (d DateCode) String() string { return d.t.Format(dateCodeLayout) }

// Date returns the calendar day at UTC midnight.
func (d DateCode) Date() time.Time { return d.t }

// Next returns the following calendar day.
func (d DateCode) Next() DateCode { return DateCode{t: d.t.AddDate(0, 0, 1)} }

// After reports whether d is a later day than other.
func (d DateCode) After(other DateCode) bool { return d.t.After(other.t) }

// DateRange expands an inclusive start/end pair into the ordered list of
// days to process. Ranges run strictly sequentially, so the list order is
// the processing order.
func DateRange(start, end string) ([]DateCode, error) {
	from, err := ParseDateCode(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseDateCode(end)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, eris.Errorf("ingest: start date %s is after end date %s", start, end)
	}

	var dates []DateCode
	for d := from; !d.After(to); d = d.Next() {
		dates = append(dates, d)
	}
	return dates, nil
}
