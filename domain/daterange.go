// Copyright 2010-2024 Google LLC
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package domain

import "time"

// Date is a calendar date with no time-of-day or timezone component; all
// roster dates are interpreted as wall-clock shop time.
type Date struct {
	t time.Time
}

// NewDate truncates (year, month, day) to a bare calendar date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateFromTime drops the time-of-day and zone from t.
func DateFromTime(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d is strictly later than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

// Equal reports whether d and other name the same calendar date.
func (d Date) Equal(other Date) bool { return d.t.Equal(other.t) }

// AddDays returns the date n days after d (n may be negative).
func (d Date) AddDays(n int) Date { return Date{d.t.AddDate(0, 0, n)} }

// Weekday returns the Go weekday of d.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// IsWeekend reports whether d falls on Saturday or Sunday.
func (d Date) IsWeekend() bool {
	w := d.t.Weekday()
	return w == time.Saturday || w == time.Sunday
}

// String renders d as an ISO-8601 calendar date.
func (d Date) String() string { return d.t.Format("2006-01-02") }

// Year, Month, and Day return the calendar components of d.
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }

// DateRange is the closed, inclusive interval [Start, End]; empty when Start
// is after End. Modeled after cpmodel.ClosedInterval/Domain, which represent
// integer ranges the same way.
type DateRange struct {
	Start Date
	End   Date
}

// Contains reports whether d falls within the closed range.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start) && !d.After(r.End)
}

// Overlaps reports whether r and other share at least one calendar date.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.End.Before(other.Start) && !other.End.Before(r.Start)
}

// Clip returns the intersection of r and bounds; the result is empty
// (Start after End) if they do not overlap.
func (r DateRange) Clip(bounds DateRange) DateRange {
	start := r.Start
	if bounds.Start.After(start) {
		start = bounds.Start
	}
	end := r.End
	if bounds.End.Before(end) {
		end = bounds.End
	}
	return DateRange{start, end}
}

// Empty reports whether the range contains no dates.
func (r DateRange) Empty() bool {
	return r.End.Before(r.Start)
}

// Days enumerates every date in the closed range, inclusive of both ends.
func (r DateRange) Days() []Date {
	if r.Empty() {
		return nil
	}
	var days []Date
	for d := r.Start; !d.After(r.End); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// MonthRange returns the first and last calendar day of (year, month),
// accounting for December's roll-over into the next year.
func MonthRange(year int, month time.Month) DateRange {
	first := NewDate(year, month, 1)
	next := first.t.AddDate(0, 1, 0)
	last := DateFromTime(next.AddDate(0, 0, -1))
	return DateRange{first, last}
}
