// Package datenorm turns the date spellings found in field spreadsheets into
// timestamps. Rules are tried in a fixed order and the first match wins:
//
//  1. DD-MM-YYYY
//  2. DDMMYY, two-digit years pivot at 50
//  3. spreadsheet serial day numbers of five or more digits
//  4. anything dateparse understands
//
// Callers that need a value no matter what use OrNow, which substitutes the
// current time for unparseable input instead of rejecting the record.
package datenorm

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	minYear = 1900
	maxYear = 2100

	// Spreadsheet serial days count from 1900-01-01 as day 1 and include the
	// nonexistent 1900-02-29, hence the offset of 2.
	serialOffsetDays = 2

	// Digit strings below this are years or day numbers, not serials.
	minSerialText = 10000
)

var (
	dashedDMY   = regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`)
	compactDMY  = regexp.MustCompile(`^\d{6}$`)
	allDigits   = regexp.MustCompile(`^\d+$`)
	storedBogus = regexp.MustCompile(`^\+(\d{6})-\d{2}-\d{2}T.*Z$`)

	serialEpoch = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Parse applies the rules in order and reports whether any of them matched.
func Parse(input string) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}

	if m := dashedDMY.FindStringSubmatch(s); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if t, ok := calendarDate(year, month, day); ok {
			return t, true
		}
	}

	if compactDMY.MatchString(s) {
		if t, ok := parseCompact(s); ok {
			return t, true
		}
	}

	if allDigits.MatchString(s) {
		if serial, err := strconv.ParseInt(s, 10, 64); err == nil && serial >= minSerialText {
			if t, ok := FromSerial(float64(serial)); ok {
				return t, true
			}
		}
	}

	if t, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// OrNow parses input and falls back to now when nothing matches.
func OrNow(input string, now time.Time) time.Time {
	if t, ok := Parse(input); ok {
		return t
	}
	return now
}

// Value normalizes a loosely typed cell value (string, number or time).
func Value(v interface{}, now time.Time) time.Time {
	switch val := v.(type) {
	case nil:
		return now
	case time.Time:
		if val.IsZero() {
			return now
		}
		return val
	case *time.Time:
		if val == nil || val.IsZero() {
			return now
		}
		return *val
	case float64:
		if t, ok := FromSerial(val); ok {
			return t
		}
		return now
	case int:
		if t, ok := FromSerial(float64(val)); ok {
			return t
		}
		return now
	case int64:
		if t, ok := FromSerial(float64(val)); ok {
			return t
		}
		return now
	case string:
		return OrNow(val, now)
	default:
		return now
	}
}

// FromSerial converts a spreadsheet serial day number. Fractions carry the
// time of day. Results outside 1900..2100 are rejected.
func FromSerial(serial float64) (time.Time, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 1 {
		return time.Time{}, false
	}
	days := math.Floor(serial)
	fraction := serial - days
	t := serialEpoch.AddDate(0, 0, int(days)-serialOffsetDays)
	if fraction > 0 {
		t = t.Add(time.Duration(math.Round(fraction * float64(24*time.Hour))))
	}
	if t.Year() < minYear || t.Year() > maxYear {
		return time.Time{}, false
	}
	return t, true
}

// RepairStored fixes values written by older importers that stored a serial
// day number as the year, e.g. "+045000-01-01T00:00:00.000Z".
func RepairStored(stored string) (time.Time, bool) {
	m := storedBogus.FindStringSubmatch(strings.TrimSpace(stored))
	if m == nil {
		return time.Time{}, false
	}
	serial, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	return FromSerial(float64(serial))
}

// IsRepairable reports whether stored matches the broken serial pattern.
func IsRepairable(stored string) bool {
	return storedBogus.MatchString(strings.TrimSpace(stored))
}

func parseCompact(s string) (time.Time, bool) {
	day, _ := strconv.Atoi(s[0:2])
	month, _ := strconv.Atoi(s[2:4])
	yy, _ := strconv.Atoi(s[4:6])

	year := 1900 + yy
	if yy < 50 {
		year = 2000 + yy
	}
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return time.Time{}, false
	}
	if year < minYear || year > maxYear {
		return time.Time{}, false
	}
	return calendarDate(year, month, day)
}

// calendarDate rejects dates that time.Date would silently roll over,
// such as 31-02-2024.
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
