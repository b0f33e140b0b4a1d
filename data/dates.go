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

package data

import (
	"sort"
	"time"

	"github.com/penny-vault/dca-backtest/tradecron"
	"github.com/rs/zerolog/log"
)

// UnionDates returns the sorted, de-duplicated union of the trading days of
// every history
func UnionDates(histories ...*PriceHistory) []time.Time {
	seen := make(map[time.Time]struct{})
	for _, history := range histories {
		if history == nil {
			continue
		}
		for _, dt := range history.dates {
			seen[dt] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(seen))
	for dt := range seen {
		dates = append(dates, dt)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// FilterDays returns the days of calendar selected by the tradecron spec
func FilterDays(spec string, calendar []time.Time) ([]time.Time, error) {
	schedule, err := tradecron.New(spec)
	if err != nil {
		log.Error().Err(err).Str("Schedule", spec).Msg("could not build tradecron schedule")
		return nil, err
	}
	return schedule.Filter(calendar), nil
}

// MonthBeginDates returns the first trading day of each month in calendar
func MonthBeginDates(calendar []time.Time) []time.Time {
	days, _ := FilterDays(tradecron.AtMonthBegin, calendar)
	return days
}

// MonthEndDates returns the last trading day of each month in calendar
func MonthEndDates(calendar []time.Time) []time.Time {
	days, _ := FilterDays(tradecron.AtMonthEnd, calendar)
	return days
}
