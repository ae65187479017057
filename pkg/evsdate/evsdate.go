// Package evsdate converts between the date strings EVS scripting uses,
// time.Time, and Excel serial dates.
//
// EVS dates carry no time zone. Conversions read and write the wall clock of
// a time.Time and ignore its location; parsed values are returned in UTC.
package evsdate

import (
	"math"
	"strings"
	"time"

	evserrors "github.com/evs-automation/evsctl/internal/errors"
)

// Layout is the EVS date format. Parsing also accepts values without
// fractional seconds.
const Layout = "2006-01-02T15:04:05.000000"

const secondsPerDay = 24 * 60 * 60

// excelEpoch is day zero of the Excel 1900 date system, shifted to absorb
// the phantom 1900-02-29.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Parse reads an EVS date string.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// Layout without the fraction still accepts one when parsing.
	t, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, evserrors.NewValidationError("not an EVS date").
			WithField("date").WithValue(s).WithCause(err)
	}
	return t, nil
}

// Format writes t as an EVS date string.
func Format(t time.Time) string {
	return wall(t).Format(Layout)
}

// ToExcel returns t as an Excel serial date: days since 1899-12-30 plus the
// fraction of the day, to whole-second precision.
func ToExcel(t time.Time) float64 {
	secs := wall(t).Unix() - excelEpoch.Unix()
	days := secs / secondsPerDay
	rem := secs % secondsPerDay
	if rem < 0 {
		days--
		rem += secondsPerDay
	}
	return float64(days) + float64(rem)/secondsPerDay
}

// FromExcel converts an Excel serial date to a UTC time, rounded to the
// microsecond.
func FromExcel(serial float64) time.Time {
	days := math.Floor(serial)
	micros := math.Round((serial - days) * secondsPerDay * 1e6)
	return excelEpoch.
		AddDate(0, 0, int(days)).
		Add(time.Duration(micros) * time.Microsecond)
}

// ParseExcel converts an EVS date string to an Excel serial date.
func ParseExcel(s string) (float64, error) {
	t, err := Parse(s)
	if err != nil {
		return 0, err
	}
	return ToExcel(t), nil
}

// FormatExcel converts an Excel serial date to an EVS date string.
func FormatExcel(serial float64) string {
	return Format(FromExcel(serial))
}

// wall returns t's wall clock reading as a UTC time.
func wall(t time.Time) time.Time {
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC)
}
