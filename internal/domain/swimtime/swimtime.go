// Package swimtime parses and formats swim times, UK result dates and month keys.
//
// Every function here is total: malformed input yields a not-ok result, never an error or panic.
package swimtime

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/okian/qualtrack/internal/domain/model"
)

var timePattern = regexp.MustCompile(`^(?:(\d+):)?(\d+)(?:\.(\d+))?$`)

// ParseTime parses "M:SS.hh", "SS.hh" or "SS" into seconds.
// The fractional part is read as a decimal fraction, so "1:05.5" is 65.5.
// Leading and trailing whitespace from table cells is ignored; anything else around the
// time fails the parse.
func ParseTime(s string) (float64, bool) {
	m := timePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	minutes := 0.0
	if m[1] != "" {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		minutes = v
	}
	secText := m[2]
	if m[3] != "" {
		secText += "." + m[3]
	}
	secs, err := strconv.ParseFloat(secText, 64)
	if err != nil || math.IsInf(secs, 0) {
		return 0, false
	}
	return minutes*60 + secs, true
}

// ParseSeconds is ParseTime wrapped in the optional type.
func ParseSeconds(s string) model.Seconds {
	if v, ok := ParseTime(s); ok {
		return model.Some(v)
	}
	return model.None()
}

// FormatTime renders seconds as zero-padded "MM:SS.hh", or "--" when absent.
// Negative values cannot be swim times and also render as "--".
func FormatTime(s model.Seconds) string {
	v, ok := s.Get()
	if !ok || v < 0 {
		return "--"
	}
	hundredths := int64(math.Round(v * 100))
	minutes := hundredths / 6000
	rest := hundredths % 6000
	return fmt.Sprintf("%02d:%02d.%02d", minutes, rest/100, rest%100)
}

// ParseDate parses a UK "DD/MM/YY" or "DD/MM/YYYY" date at midnight UTC.
// Two-digit years always map to 2000+YY. Out-of-range day or month values roll over the
// way calendar arithmetic does, so "32/01/24" lands on 1 Feb 2024.
func ParseDate(s string) (time.Time, bool) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) < 3 {
		return time.Time{}, false
	}
	nums := [3]int{}
	for i := range nums {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil {
			return time.Time{}, false
		}
		nums[i] = n
	}
	day, month, year := nums[0], nums[1], nums[2]
	if year < 100 {
		year += 2000
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// ParseAnyDate accepts an ISO date, an RFC3339 timestamp or a UK date.
// The result is truncated to midnight UTC of its calendar day.
func ParseAnyDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.UTC()
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return ParseDate(s)
}

// MonthKey returns the "YYYY-MM" bucket of a result date.
func MonthKey(s string) (string, bool) {
	t, ok := ParseAnyDate(s)
	if !ok {
		return "", false
	}
	return MonthOf(t), true
}

// MonthOf formats t as "YYYY-MM".
func MonthOf(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// ISODate formats a UK or ISO date as "YYYY-MM-DD".
func ISODate(s string) (string, bool) {
	t, ok := ParseAnyDate(s)
	if !ok {
		return "", false
	}
	return t.Format(time.DateOnly), true
}
