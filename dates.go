package main

import (
	"fmt"
	"strings"
	"time"
)

// FeedDateLayout is the only date format the feed is queried with (YYMMDD).
const FeedDateLayout = "060102"

// archiveStart is the earliest date picked for random puzzles.
var archiveStart = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

// ParseFeedDate parses a 6-digit YYMMDD date. Eight-digit YYYYMMDD dates are
// rejected rather than converted.
func ParseFeedDate(s string) (time.Time, error) {
	if len(s) == 8 && allDigits(s) {
		return time.Time{}, fmt.Errorf("%w: %q is YYYYMMDD, expected YYMMDD", ErrInvalidDate, s)
	}
	if len(s) != 6 || !allDigits(s) {
		return time.Time{}, fmt.Errorf("%w: %q, expected YYMMDD", ErrInvalidDate, s)
	}
	t, err := time.Parse(FeedDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidDate, s, err)
	}
	return t, nil
}

// FormatFeedDate formats t as YYMMDD.
func FormatFeedDate(t time.Time) string {
	return t.Format(FeedDateLayout)
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

// ParseWeekday parses an English weekday name, case-insensitively.
func ParseWeekday(name string) (time.Weekday, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, name)
	}
	return wd, nil
}

// RandomDate picks a uniformly random date in [begin, end) falling on wd,
// drawing from intn (rand.IntN in production).
// It returns false when the window holds no such date.
func RandomDate(intn func(int) int, wd time.Weekday, begin, end time.Time) (time.Time, bool) {
	first := truncateDay(begin)
	first = first.AddDate(0, 0, (int(wd)-int(first.Weekday())+7)%7)
	end = truncateDay(end)
	if !first.Before(end) {
		return time.Time{}, false
	}

	days := int(end.Sub(first).Hours() / 24)
	n := (days-1)/7 + 1
	return first.AddDate(0, 0, 7*intn(n)), true
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CheckWeekday verifies that the puzzle's embedded date falls on want.
func CheckWeekday(meta PuzzleMetadata, want time.Weekday) error {
	t, err := ParseFeedDate(meta.Date)
	if err != nil {
		return malformed("embedded date: %v", err)
	}
	if got := t.Weekday(); got != want {
		return fmt.Errorf("%w: puzzle %s is a %s, requested %s", ErrDateMismatch, meta.Date, got, want)
	}
	return nil
}

// DateRange lists every date from..to inclusive in feed format.
func DateRange(from, to time.Time) []string {
	from, to = truncateDay(from), truncateDay(to)
	var dates []string
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, FormatFeedDate(d))
	}
	return dates
}
