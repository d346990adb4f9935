// Copyright 2023-2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"sort"
	"time"
)

// Calendar is an ordered, de-duplicated sequence of valid trading days. It
// is the iteration domain for every daily reconstruction in the pipeline
type Calendar struct {
	Days []time.Time
}

// NewCalendar builds a Calendar from an unordered day list. Returns
// ErrNoTradingDays when the list is empty
func NewCalendar(days []time.Time) (*Calendar, error) {
	if len(days) == 0 {
		return nil, ErrNoTradingDays
	}

	sorted := make([]time.Time, len(days))
	copy(sorted, days)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	uniq := sorted[:1]
	for _, dt := range sorted[1:] {
		if !dt.Equal(uniq[len(uniq)-1]) {
			uniq = append(uniq, dt)
		}
	}

	return &Calendar{Days: uniq}, nil
}

// Len returns the number of trading days in the calendar
func (c *Calendar) Len() int {
	return len(c.Days)
}

// Index returns the position of the specified date in the calendar; -1 when
// the date is not a trading day
func (c *Calendar) Index(date time.Time) int {
	idx := sort.Search(len(c.Days), func(i int) bool {
		return !c.Days[i].Before(date)
	})

	if idx < len(c.Days) && c.Days[idx].Equal(date) {
		return idx
	}

	return -1
}

// IndexOnOrBefore returns the position of the latest trading day that is not
// after the specified date; -1 when the date precedes the calendar
func (c *Calendar) IndexOnOrBefore(date time.Time) int {
	idx := sort.Search(len(c.Days), func(i int) bool {
		return c.Days[i].After(date)
	})

	return idx - 1
}

// Next returns the first trading day strictly after the specified date and
// true; the zero time and false when the calendar is exhausted
func (c *Calendar) Next(date time.Time) (time.Time, bool) {
	idx := sort.Search(len(c.Days), func(i int) bool {
		return c.Days[i].After(date)
	})

	if idx == len(c.Days) {
		return time.Time{}, false
	}
	return c.Days[idx], true
}

// Prev returns the last trading day strictly before the specified date and
// true; the zero time and false when the date precedes the calendar
func (c *Calendar) Prev(date time.Time) (time.Time, bool) {
	idx := sort.Search(len(c.Days), func(i int) bool {
		return !c.Days[i].Before(date)
	})

	if idx == 0 {
		return time.Time{}, false
	}
	return c.Days[idx-1], true
}

// Between returns a calendar restricted to [begin, end] inclusive. Returns
// ErrInvalidTimeRange when end precedes begin and ErrNoTradingDays when the
// window contains no trading days
func (c *Calendar) Between(begin, end time.Time) (*Calendar, error) {
	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	startIdx := sort.Search(len(c.Days), func(i int) bool {
		return !c.Days[i].Before(begin)
	})
	endIdx := sort.Search(len(c.Days), func(i int) bool {
		return c.Days[i].After(end)
	})

	if startIdx == endIdx {
		return nil, ErrNoTradingDays
	}

	return &Calendar{Days: c.Days[startIdx:endIdx]}, nil
}

// Months segments the calendar into runs of trading days belonging to the
// same calendar month, in chronological order
func (c *Calendar) Months() [][]time.Time {
	return c.segment(func(a, b time.Time) bool {
		return a.Year() == b.Year() && a.Month() == b.Month()
	})
}

// Years segments the calendar into runs of trading days belonging to the
// same calendar year, in chronological order
func (c *Calendar) Years() [][]time.Time {
	return c.segment(func(a, b time.Time) bool {
		return a.Year() == b.Year()
	})
}

// MonthEnds returns the last trading day of each month in the calendar
func (c *Calendar) MonthEnds() []time.Time {
	months := c.Months()
	res := make([]time.Time, 0, len(months))
	for _, chunk := range months {
		res = append(res, chunk[len(chunk)-1])
	}
	return res
}

// YearEnds returns the last trading day of each year in the calendar
func (c *Calendar) YearEnds() []time.Time {
	years := c.Years()
	res := make([]time.Time, 0, len(years))
	for _, chunk := range years {
		res = append(res, chunk[len(chunk)-1])
	}
	return res
}

func (c *Calendar) segment(same func(a, b time.Time) bool) [][]time.Time {
	res := [][]time.Time{}
	var current []time.Time

	for _, dt := range c.Days {
		if len(current) > 0 && !same(current[0], dt) {
			res = append(res, current)
			current = nil
		}
		current = append(current, dt)
	}

	if len(current) > 0 {
		res = append(res, current)
	}

	return res
}
