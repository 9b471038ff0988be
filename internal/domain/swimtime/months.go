package swimtime

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var monthPattern = regexp.MustCompile(`^(\d{4})-(\d{2})$`)

func parseMonth(key string) (time.Time, bool) {
	m := monthPattern.FindStringSubmatch(strings.TrimSpace(key))
	if m == nil {
		return time.Time{}, false
	}
	y, _ := strconv.Atoi(m[1])
	mo, _ := strconv.Atoi(m[2])
	if mo < 1 || mo > 12 {
		return time.Time{}, false
	}
	return time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC), true
}

// ValidMonth reports whether key is a well-formed "YYYY-MM".
func ValidMonth(key string) bool {
	_, ok := parseMonth(key)
	return ok
}

// MonthRange lists every month from start to end inclusive.
// It is empty when either key is malformed or start is after end.
func MonthRange(start, end string) []string {
	from, ok := parseMonth(start)
	if !ok {
		return nil
	}
	to, ok := parseMonth(end)
	if !ok || from.After(to) {
		return nil
	}
	var out []string
	for t := from; !t.After(to); t = t.AddDate(0, 1, 0) {
		out = append(out, MonthOf(t))
	}
	return out
}

// LastNMonths lists the n months ending with the month of anchor, oldest first.
func LastNMonths(anchor time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, MonthOf(first.AddDate(0, -i, 0)))
	}
	return out
}

// AddMonths shifts a month key by delta months.
func AddMonths(key string, delta int) (string, bool) {
	t, ok := parseMonth(key)
	if !ok {
		return "", false
	}
	return MonthOf(t.AddDate(0, delta, 0)), true
}

var digitRun = regexp.MustCompile(`\d+`)

// LevelAll disables level filtering.
const LevelAll = "All"

// NormalizeLevel canonicalises a meet licence level so "L3", "Level 3" and "3" compare equal.
// Input without digits is returned trimmed.
func NormalizeLevel(level string) string {
	level = strings.TrimSpace(level)
	if d := digitRun.FindString(level); d != "" {
		if t := strings.TrimLeft(d, "0"); t != "" {
			return t
		}
		return "0"
	}
	return level
}

// LevelFilterActive reports whether level should restrict records.
func LevelFilterActive(level string) bool {
	level = strings.TrimSpace(level)
	return level != "" && !strings.EqualFold(level, LevelAll)
}

// LevelMatches reports whether a record level passes the filter.
func LevelMatches(filter, level string) bool {
	if !LevelFilterActive(filter) {
		return true
	}
	return NormalizeLevel(filter) == NormalizeLevel(level)
}
