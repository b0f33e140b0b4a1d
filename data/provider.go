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
	"context"
	"time"
)

// Provider loads the daily price history of a symbol between begin and end
// (both inclusive). Implementations return dates normalized to midnight UTC.
type Provider interface {
	Name() string
	History(ctx context.Context, symbol string, begin, end time.Time) (*PriceHistory, error)
}

const (
	ProviderYahoo = "yahoo"
	ProviderCSV   = "csv"
	ProviderPvDb  = "pvdb"
)

// NormalizeDate truncates t to midnight UTC of its calendar day
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func checkRange(begin, end time.Time) error {
	if end.Before(begin) {
		return ErrInvalidTimeRange
	}
	return nil
}

// bar is one trading day of price data collected before building a
// PriceHistory
type bar struct {
	date     time.Time
	open     float64
	low      float64
	high     float64
	close    float64
	adjClose float64
	dividend float64
}

func historyFromBars(symbol string, bars []bar) (*PriceHistory, error) {
	n := len(bars)
	dates := make([]time.Time, n)
	opens := make([]float64, n)
	lows := make([]float64, n)
	highs := make([]float64, n)
	closes := make([]float64, n)
	adjCloses := make([]float64, n)
	dividends := make(map[time.Time]float64)

	for idx, b := range bars {
		dates[idx] = b.date
		opens[idx] = b.open
		lows[idx] = b.low
		highs[idx] = b.high
		closes[idx] = b.close
		adjCloses[idx] = b.adjClose
		if b.dividend != 0 {
			dividends[b.date] = b.dividend
		}
	}

	return NewPriceHistory(symbol, dates, opens, lows, highs, closes, adjCloses, dividends)
}
