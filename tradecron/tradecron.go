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

// Package tradecron selects trading days from a calendar using cron-style
// day fields and trading-calendar-aware modifiers. The calendar is the list of
// days an asset actually traded, so holidays and gaps in the data are handled
// by construction.
package tradecron

import (
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	AtWeekBegin  = "@weekbegin"
	AtWeekEnd    = "@weekend"
	AtMonthBegin = "@monthbegin"
	AtMonthEnd   = "@monthend"
	AtDaily      = "@daily"
)

var (
	ErrConflictingModifiers = errors.New("only one date modifier may be used")
	ErrUnknownModifier      = errors.New("unknown tradecron modifier")
	ErrTooManyFields        = errors.New("too many fields; expected DayOfMonth Month DayOfWeek")
)

type TradeCron struct {
	Schedule       cron.Schedule
	ScheduleString string
	DaySpec        string
	DateFlag       string
}

// New parses a schedule made of an optional date modifier followed by up to
// three cron day fields: DayOfMonth(DoM) Month(M) DayOfWeek(DoW). Omitted
// fields default to '*'.
//
//	@weekbegin  - first trading day of each week
//	@weekend    - last trading day of each week
//	@monthbegin - first trading day of each month
//	@monthend   - last trading day of each month
//	@daily      - every trading day
//
// Examples:
//   - every trading day: * * *
//   - mondays: * * 1
//   - first trading day of each quarter: @monthbegin * 1,4,7,10
//   - last trading day of the year: @monthend * 12
func New(spec string) (*TradeCron, error) {
	specParser := cron.NewParser(cron.Dom | cron.Month | cron.Dow)

	tokens := strings.Fields(spec)
	dayTokens := make([]string, 0, 3)
	dateFlag := ""
	for _, token := range tokens {
		if token[0] != '@' {
			dayTokens = append(dayTokens, token)
			continue
		}

		switch token {
		case AtWeekBegin, AtWeekEnd, AtMonthBegin, AtMonthEnd:
			if dateFlag != "" {
				return nil, ErrConflictingModifiers
			}
			dateFlag = token
		case AtDaily:
		default:
			log.Error().Str("Modifier", token).Str("TradeCronSpec", spec).Msg("unknown tradecron modifier")
			return nil, ErrUnknownModifier
		}
	}

	if len(dayTokens) > 3 {
		return nil, ErrTooManyFields
	}
	for len(dayTokens) < 3 {
		dayTokens = append(dayTokens, "*")
	}
	daySpec := strings.Join(dayTokens, " ")

	schedule, err := specParser.Parse(daySpec)
	if err != nil {
		log.Error().Err(err).Str("DaySpec", daySpec).Str("TradeCronSpec", spec).Msg("robfig/cron could not parse day spec")
		return nil, err
	}

	return &TradeCron{
		Schedule:       schedule,
		ScheduleString: spec,
		DaySpec:        daySpec,
		DateFlag:       dateFlag,
	}, nil
}

// IsTradeDay reports whether calendar[idx] is selected by the schedule.
// calendar must be sorted ascending; the first and last entries close the
// week and month groups at the edges of the calendar.
func (tc *TradeCron) IsTradeDay(calendar []time.Time, idx int) bool {
	if idx < 0 || idx >= len(calendar) {
		return false
	}

	day := calendar[idx]
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	if !tc.Schedule.Next(midnight.Add(-time.Nanosecond)).Equal(midnight) {
		return false
	}

	switch tc.DateFlag {
	case AtWeekBegin:
		return idx == 0 || !sameWeek(calendar[idx-1], day)
	case AtWeekEnd:
		return idx == len(calendar)-1 || !sameWeek(calendar[idx+1], day)
	case AtMonthBegin:
		return idx == 0 || !sameMonth(calendar[idx-1], day)
	case AtMonthEnd:
		return idx == len(calendar)-1 || !sameMonth(calendar[idx+1], day)
	default:
		return true
	}
}

// Filter returns the days of calendar selected by the schedule
func (tc *TradeCron) Filter(calendar []time.Time) []time.Time {
	days := make([]time.Time, 0, len(calendar)/20+1)
	for idx, day := range calendar {
		if tc.IsTradeDay(calendar, idx) {
			days = append(days, day)
		}
	}
	return days
}

// Next returns the first selected day of calendar strictly after forDate
func (tc *TradeCron) Next(calendar []time.Time, forDate time.Time) (time.Time, bool) {
	for idx, day := range calendar {
		if day.After(forDate) && tc.IsTradeDay(calendar, idx) {
			return day, true
		}
	}
	return time.Time{}, false
}

func sameWeek(a, b time.Time) bool {
	ay, aw := a.ISOWeek()
	by, bw := b.ISOWeek()
	return ay == by && aw == bw
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
