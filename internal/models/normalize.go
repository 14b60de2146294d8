package models

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// MissingText is what a missing or blank text cell normalizes to
const MissingText = "NAN"

// NormalizeText trims and upper-cases a text cell. Blank cells become MissingText.
func NormalizeText(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" || v == "NONE" || v == "NULL" {
		return MissingText
	}
	return v
}

// NormalizeNumeric parses a numeric cell that may use a comma decimal separator.
// Anything unparseable, NaN or infinite yields 0.
func NormalizeNumeric(value string) float64 {
	f, ok := ParseNumeric(value)
	if !ok {
		return 0
	}
	return f
}

// ParseNumeric is NormalizeNumeric with an explicit success flag, used by the
// loader to report zero-filled cells.
func ParseNumeric(value string) (float64, bool) {
	v := strings.TrimSpace(value)
	if v == "" {
		return 0, false
	}
	v = strings.ReplaceAll(v, ",", ".")
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
}

var clockLayouts = []string{
	"15:04:05",
	"15:04",
	"15:04:05.000",
	"15h04",
}

var combinedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
}

// ParseTimestamp combines a date cell and a clock cell into one UTC timestamp.
// The date cell may already carry a time portion; when clock is non-empty that
// portion is discarded. A date with no clock resolves to midnight.
func ParseTimestamp(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, &ValidationError{Field: "date", Value: date, Message: "empty date"}
	}

	if clock == "" {
		for _, layout := range combinedLayouts {
			if t, err := time.Parse(layout, date); err == nil {
				return t.UTC(), nil
			}
		}
	}

	day, err := parseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	if clock == "" {
		return day, nil
	}

	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, clock); err == nil {
			return day.Add(time.Duration(c.Hour())*time.Hour +
				time.Duration(c.Minute())*time.Minute +
				time.Duration(c.Second())*time.Second), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "time", Value: clock, Message: "unrecognized time format"}
}

// ParseDate parses a date-only value in any of the accepted layouts
func ParseDate(value string) (time.Time, error) {
	return parseDate(strings.TrimSpace(value))
}

func parseDate(value string) (time.Time, error) {
	// Spreadsheet exports often carry "2024-01-01 00:00:00" in pure date columns
	if i := strings.IndexAny(value, " T"); i > 0 {
		value = value[:i]
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ValidationError{Field: "date", Value: value, Message: "unrecognized date format"}
}
