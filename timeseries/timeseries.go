// Copyright 2021-2024
// SPDX-License-Identifier: Apache-2.0
//
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

// Package timeseries provides an immutable date indexed series of float64 values
// with exact and as-of lookups.
package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

const (
	// Tolerance used when comparing two series for equality
	Tolerance = 1e-3

	DateFormat = "2006-01-02"
)

var (
	ErrLengthMismatch = errors.New("dates and values must have the same length")
	ErrDatesNotSorted = errors.New("dates must be strictly ascending")
)

// TimeSeries stores values organized by date. Dates are unique and sorted in
// ascending order. A TimeSeries is never modified after construction; every
// accessor returns a copy.
type TimeSeries struct {
	dates []time.Time
	vals  []float64
}

// New creates a time series from parallel date and value slices
func New(dates []time.Time, vals []float64) (*TimeSeries, error) {
	if len(dates) != len(vals) {
		return nil, fmt.Errorf("%w: %d dates, %d values", ErrLengthMismatch, len(dates), len(vals))
	}

	for idx := 1; idx < len(dates); idx++ {
		if !dates[idx-1].Before(dates[idx]) {
			return nil, fmt.Errorf("%w: %s is not before %s", ErrDatesNotSorted,
				dates[idx-1].Format(DateFormat), dates[idx].Format(DateFormat))
		}
	}

	ts := &TimeSeries{
		dates: make([]time.Time, len(dates)),
		vals:  make([]float64, len(vals)),
	}
	copy(ts.dates, dates)
	copy(ts.vals, vals)

	return ts, nil
}

// Must is a helper that wraps a call to New and panics if the error is non-nil
func Must(ts *TimeSeries, err error) *TimeSeries {
	if err != nil {
		panic(err)
	}
	return ts
}

// FromMap creates a time series from a date -> value mapping
func FromMap(m map[time.Time]float64) *TimeSeries {
	ts := &TimeSeries{
		dates: make([]time.Time, 0, len(m)),
		vals:  make([]float64, 0, len(m)),
	}

	for dt := range m {
		ts.dates = append(ts.dates, dt)
	}

	sort.Slice(ts.dates, func(i, j int) bool { return ts.dates[i].Before(ts.dates[j]) })

	for _, dt := range ts.dates {
		ts.vals = append(ts.vals, m[dt])
	}

	return ts
}

// Empty returns a series with no values
func Empty() *TimeSeries {
	return &TimeSeries{
		dates: []time.Time{},
		vals:  []float64{},
	}
}

// Search returns the index of the greatest date in dates that is on or before
// date. If date precedes every entry -1 is returned. dates must be sorted.
func Search(dates []time.Time, date time.Time) int {
	idx := sort.Search(len(dates), func(i int) bool {
		return dates[i].After(date)
	})
	return idx - 1
}

// Len returns the number of entries in the series
func (ts *TimeSeries) Len() int {
	return len(ts.dates)
}

// Dates returns a copy of the date index
func (ts *TimeSeries) Dates() []time.Time {
	dates := make([]time.Time, len(ts.dates))
	copy(dates, ts.dates)
	return dates
}

// Values returns a copy of the values
func (ts *TimeSeries) Values() []float64 {
	vals := make([]float64, len(ts.vals))
	copy(vals, ts.vals)
	return vals
}

// Map returns the series as a date -> value mapping
func (ts *TimeSeries) Map() map[time.Time]float64 {
	m := make(map[time.Time]float64, len(ts.dates))
	for idx, dt := range ts.dates {
		m[dt] = ts.vals[idx]
	}
	return m
}

// ValueAt returns the value stored at exactly date
func (ts *TimeSeries) ValueAt(date time.Time) (float64, bool) {
	idx := Search(ts.dates, date)
	if idx < 0 || !ts.dates[idx].Equal(date) {
		return 0, false
	}
	return ts.vals[idx], true
}

// AsOf returns the most recent value recorded on or before date. Dates
// before the start of the series resolve to 0.
func (ts *TimeSeries) AsOf(date time.Time) float64 {
	idx := Search(ts.dates, date)
	if idx < 0 {
		return 0
	}
	return ts.vals[idx]
}

// First returns the first date and value; ok is false when the series is empty
func (ts *TimeSeries) First() (time.Time, float64, bool) {
	if len(ts.dates) == 0 {
		return time.Time{}, 0, false
	}
	return ts.dates[0], ts.vals[0], true
}

// Last returns the last date and value; ok is false when the series is empty
func (ts *TimeSeries) Last() (time.Time, float64, bool) {
	if len(ts.dates) == 0 {
		return time.Time{}, 0, false
	}
	n := len(ts.dates) - 1
	return ts.dates[n], ts.vals[n], true
}

// Equal reports whether both series share the same dates and their values
// are within Tolerance of each other
func (ts *TimeSeries) Equal(other *TimeSeries) bool {
	if other == nil || len(ts.dates) != len(other.dates) {
		return false
	}

	for idx, dt := range ts.dates {
		if !dt.Equal(other.dates[idx]) {
			return false
		}
		if math.Abs(ts.vals[idx]-other.vals[idx]) > Tolerance {
			return false
		}
	}

	return true
}

// Slice trims the series to the specified date range (inclusive)
func (ts *TimeSeries) Slice(begin, end time.Time) *TimeSeries {
	if end.Before(begin) || len(ts.dates) == 0 {
		return Empty()
	}

	beginIdx := sort.Search(len(ts.dates), func(i int) bool {
		return !ts.dates[i].Before(begin)
	})
	endIdx := Search(ts.dates, end) + 1

	if beginIdx >= endIdx {
		return Empty()
	}

	// New copies the slices so the result does not alias ts
	return Must(New(ts.dates[beginIdx:endIdx], ts.vals[beginIdx:endIdx]))
}

// Table renders an ASCII formatted table of the series
func (ts *TimeSeries) Table(colName string) string {
	if len(ts.dates) == 0 {
		return "<NO DATA>"
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Date", colName})
	table.SetFooter([]string{"Num Rows", fmt.Sprintf("%d", ts.Len())})
	table.SetBorder(false)

	for idx, dt := range ts.dates {
		table.Append([]string{dt.Format(DateFormat), fmt.Sprintf("%.4f", ts.vals[idx])})
	}

	table.Render()
	return s.String()
}
