// Notevault - Note Backup, Restore and Export Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/notevault

// Package cron parses cron expressions and computes fire times for the
// backup scheduler.
//
// Accepted forms:
//
//	"0 0 * * 0"       minute hour day-of-month month day-of-week
//	"30 0 0 * * 0"    same with a leading seconds field
//	"@daily"          descriptors: @yearly @annually @monthly @weekly
//	                  @daily @midnight @hourly
//
// Fields accept *, n, n-m, lists (a,b,c), steps (*/n, n-m/s, n/s) and
// three-letter month and weekday names. Day-of-week 7 is Sunday.
// When both day fields are restricted a day matching either one fires.
package cron

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidExpression wraps every parse failure.
var ErrInvalidExpression = errors.New("invalid cron expression")

// Schedule is a parsed expression. Each field is a bitset of allowed values.
type Schedule struct {
	expr string

	second, minute, hour, dom, month, dow uint64

	// domAny and dowAny record a literal "*" (or "?") in the day fields.
	domAny, dowAny bool
}

type bounds struct {
	name     string
	min, max int
	names    map[string]int
}

var (
	secondBounds = bounds{name: "second", min: 0, max: 59}
	minuteBounds = bounds{name: "minute", min: 0, max: 59}
	hourBounds   = bounds{name: "hour", min: 0, max: 23}
	domBounds    = bounds{name: "day-of-month", min: 1, max: 31}
	monthBounds  = bounds{name: "month", min: 1, max: 12, names: map[string]int{
		"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
		"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
	}}
	dowBounds = bounds{name: "day-of-week", min: 0, max: 7, names: map[string]int{
		"sun": 0, "mon": 1, "tue": 2, "wed": 3, "thu": 4, "fri": 5, "sat": 6,
	}}
)

var descriptors = map[string]string{
	"@yearly":   "0 0 1 1 *",
	"@annually": "0 0 1 1 *",
	"@monthly":  "0 0 1 * *",
	"@weekly":   "0 0 * * 0",
	"@daily":    "0 0 * * *",
	"@midnight": "0 0 * * *",
	"@hourly":   "0 * * * *",
}

// Parse parses expr. Errors wrap ErrInvalidExpression.
func Parse(expr string) (*Schedule, error) {
	trimmed := strings.TrimSpace(expr)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidExpression)
	}

	if strings.HasPrefix(trimmed, "@") {
		d, ok := descriptors[strings.ToLower(trimmed)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown descriptor %q", ErrInvalidExpression, trimmed)
		}
		trimmed = d
	}

	fields := strings.Fields(trimmed)
	switch len(fields) {
	case 5:
		fields = append([]string{"0"}, fields...)
	case 6:
	default:
		return nil, fmt.Errorf("%w: expected 5 or 6 fields, got %d", ErrInvalidExpression, len(fields))
	}

	s := &Schedule{expr: trimmed}
	var err error
	if s.second, _, err = parseField(fields[0], secondBounds); err != nil {
		return nil, err
	}
	if s.minute, _, err = parseField(fields[1], minuteBounds); err != nil {
		return nil, err
	}
	if s.hour, _, err = parseField(fields[2], hourBounds); err != nil {
		return nil, err
	}
	if s.dom, s.domAny, err = parseField(fields[3], domBounds); err != nil {
		return nil, err
	}
	if s.month, _, err = parseField(fields[4], monthBounds); err != nil {
		return nil, err
	}
	if s.dow, s.dowAny, err = parseField(fields[5], dowBounds); err != nil {
		return nil, err
	}
	// Fold 7 onto Sunday.
	if s.dow&(1<<7) != 0 {
		s.dow = s.dow&^(1<<7) | 1
	}
	return s, nil
}

// Validate reports whether expr parses.
func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// String returns the expression as given to Parse.
func (s *Schedule) String() string {
	return s.expr
}

// Next returns the first fire time strictly after t, in t's location.
// It returns the zero time when nothing matches within five years
// (e.g. "0 0 30 2 *").
func (s *Schedule) Next(t time.Time) time.Time {
	loc := t.Location()
	t = t.Truncate(time.Second).Add(time.Second)
	limit := t.Year() + 5

wrap:
	for t.Year() <= limit {
		for !has(s.month, int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			if t.Month() == time.January {
				continue wrap
			}
		}
		for !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			if t.Day() == 1 {
				continue wrap
			}
		}
		for !has(s.hour, t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			if t.Hour() == 0 {
				continue wrap
			}
		}
		for !has(s.minute, t.Minute()) {
			t = t.Truncate(time.Minute).Add(time.Minute)
			if t.Minute() == 0 {
				continue wrap
			}
		}
		for !has(s.second, t.Second()) {
			t = t.Add(time.Second)
			if t.Second() == 0 {
				continue wrap
			}
		}
		return t
	}
	return time.Time{}
}

func (s *Schedule) dayMatches(t time.Time) bool {
	domOK := has(s.dom, t.Day())
	dowOK := has(s.dow, int(t.Weekday()))
	switch {
	case s.domAny && s.dowAny:
		return true
	case s.domAny:
		return dowOK
	case s.dowAny:
		return domOK
	default:
		return domOK || dowOK
	}
}

func has(set uint64, v int) bool {
	return set&(1<<uint(v)) != 0
}

// parseField returns the bitset for one field and whether it was a wildcard.
func parseField(field string, b bounds) (uint64, bool, error) {
	if field == "*" || field == "?" {
		return span(b.min, b.max, 1), true, nil
	}
	var set uint64
	for _, part := range strings.Split(field, ",") {
		bits, err := parsePart(part, b)
		if err != nil {
			return 0, false, err
		}
		set |= bits
	}
	return set, false, nil
}

func parsePart(part string, b bounds) (uint64, error) {
	if part == "" {
		return 0, fmt.Errorf("%w: empty %s list item", ErrInvalidExpression, b.name)
	}

	rangePart, step := part, 1
	if i := strings.IndexByte(part, '/'); i >= 0 {
		n, err := strconv.Atoi(part[i+1:])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("%w: bad %s step %q", ErrInvalidExpression, b.name, part[i+1:])
		}
		rangePart, step = part[:i], n
	}

	var lo, hi int
	switch {
	case rangePart == "*":
		lo, hi = b.min, b.max
	case strings.Contains(rangePart, "-"):
		ends := strings.SplitN(rangePart, "-", 2)
		var err error
		if lo, err = b.value(ends[0]); err != nil {
			return 0, err
		}
		if hi, err = b.value(ends[1]); err != nil {
			return 0, err
		}
		if lo > hi {
			return 0, fmt.Errorf("%w: %s range %q is reversed", ErrInvalidExpression, b.name, rangePart)
		}
	default:
		v, err := b.value(rangePart)
		if err != nil {
			return 0, err
		}
		lo, hi = v, v
		// "n/s" means from n to the field maximum.
		if rangePart != part {
			hi = b.max
		}
	}
	return span(lo, hi, step), nil
}

func (b bounds) value(s string) (int, error) {
	if v, ok := b.names[strings.ToLower(s)]; ok {
		return v, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: bad %s value %q", ErrInvalidExpression, b.name, s)
	}
	if v < b.min || v > b.max {
		return 0, fmt.Errorf("%w: %s value %d outside %d-%d", ErrInvalidExpression, b.name, v, b.min, b.max)
	}
	return v, nil
}

func span(lo, hi, step int) uint64 {
	var set uint64
	for v := lo; v <= hi; v += step {
		set |= 1 << uint(v)
	}
	return set
}
