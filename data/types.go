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
	"fmt"
	"time"

	"github.com/penny-vault/dca-backtest/timeseries"
	"github.com/rs/zerolog"
)

type Metric string

const (
	MetricOpen          Metric = "Open"
	MetricLow           Metric = "Low"
	MetricHigh          Metric = "High"
	MetricClose         Metric = "Close"
	MetricAdjustedClose Metric = "AdjustedClose"
	MetricDividendCash  Metric = "DividendCash"
)

// PriceHistory is the daily price and dividend history of a single asset.
// All price series share the same ascending date index; dividends are sparse.
type PriceHistory struct {
	Symbol string

	dates     []time.Time
	opens     *timeseries.TimeSeries
	lows      *timeseries.TimeSeries
	highs     *timeseries.TimeSeries
	closes    *timeseries.TimeSeries
	adjCloses *timeseries.TimeSeries
	dividends *timeseries.TimeSeries
}

// NewPriceHistory validates that every price sequence aligns with dates and
// builds the asset history. Dates and dividend keys are normalized with
// NormalizeDate. dividends may be nil.
func NewPriceHistory(symbol string, dates []time.Time, opens, lows, highs, closes, adjCloses []float64, dividends map[time.Time]float64) (*PriceHistory, error) {
	n := len(dates)
	normalized := make([]time.Time, n)
	for idx, dt := range dates {
		normalized[idx] = NormalizeDate(dt)
	}
	dates = normalized

	for metric, vals := range map[Metric][]float64{
		MetricOpen:          opens,
		MetricLow:           lows,
		MetricHigh:          highs,
		MetricClose:         closes,
		MetricAdjustedClose: adjCloses,
	} {
		if len(vals) != n {
			return nil, fmt.Errorf("%w: %s has %d %s values for %d dates", ErrMalformedInput, symbol, len(vals), metric, n)
		}
	}

	history := &PriceHistory{
		Symbol: symbol,
		dates:  make([]time.Time, n),
	}
	copy(history.dates, dates)

	var err error
	if history.opens, err = timeseries.New(dates, opens); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrMalformedInput, symbol, err)
	}
	// the date index was validated above so the remaining series cannot fail
	history.lows = timeseries.Must(timeseries.New(dates, lows))
	history.highs = timeseries.Must(timeseries.New(dates, highs))
	history.closes = timeseries.Must(timeseries.New(dates, closes))
	history.adjCloses = timeseries.Must(timeseries.New(dates, adjCloses))

	if dividends == nil {
		history.dividends = timeseries.Empty()
	} else {
		payouts := make(map[time.Time]float64, len(dividends))
		for dt, amount := range dividends {
			payouts[NormalizeDate(dt)] += amount
		}
		history.dividends = timeseries.FromMap(payouts)
	}

	return history, nil
}

// Dates returns the trading days of the asset
func (h *PriceHistory) Dates() []time.Time {
	dates := make([]time.Time, len(h.dates))
	copy(dates, h.dates)
	return dates
}

// Len returns the number of trading days
func (h *PriceHistory) Len() int {
	return len(h.dates)
}

func (h *PriceHistory) Opens() *timeseries.TimeSeries     { return h.opens }
func (h *PriceHistory) Lows() *timeseries.TimeSeries      { return h.lows }
func (h *PriceHistory) Highs() *timeseries.TimeSeries     { return h.highs }
func (h *PriceHistory) Closes() *timeseries.TimeSeries    { return h.closes }
func (h *PriceHistory) AdjCloses() *timeseries.TimeSeries { return h.adjCloses }
func (h *PriceHistory) Dividends() *timeseries.TimeSeries { return h.dividends }

// Metric returns the series for the requested metric
func (h *PriceHistory) Metric(metric Metric) (*timeseries.TimeSeries, error) {
	switch metric {
	case MetricOpen:
		return h.opens, nil
	case MetricLow:
		return h.lows, nil
	case MetricHigh:
		return h.highs, nil
	case MetricClose:
		return h.closes, nil
	case MetricAdjustedClose:
		return h.adjCloses, nil
	case MetricDividendCash:
		return h.dividends, nil
	default:
		return nil, ErrUnsupportedMetric
	}
}

// CloseOn returns the close on the calendar day of date, or the most recent
// close before it when that day is not a trading day of the asset
func (h *PriceHistory) CloseOn(date time.Time) float64 {
	return h.closes.AsOf(NormalizeDate(date))
}

// DividendOn returns the dividend paid on the calendar day of date
func (h *PriceHistory) DividendOn(date time.Time) (float64, bool) {
	return h.dividends.ValueAt(NormalizeDate(date))
}

// OpenCloseSpread returns close - open for every trading day
func (h *PriceHistory) OpenCloseSpread() *timeseries.TimeSeries {
	return h.spread(h.closes, h.opens)
}

// HighLowSpread returns high - low for every trading day
func (h *PriceHistory) HighLowSpread() *timeseries.TimeSeries {
	return h.spread(h.highs, h.lows)
}

func (h *PriceHistory) spread(a, b *timeseries.TimeSeries) *timeseries.TimeSeries {
	av := a.Values()
	bv := b.Values()
	vals := make([]float64, len(av))
	for idx := range av {
		vals[idx] = av[idx] - bv[idx]
	}
	return timeseries.Must(timeseries.New(h.dates, vals))
}

func (h *PriceHistory) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Symbol", h.Symbol).Int("NumDays", len(h.dates))
	if len(h.dates) > 0 {
		e.Time("Begin", h.dates[0]).Time("End", h.dates[len(h.dates)-1])
	}
	e.Int("NumDividends", h.dividends.Len())
}
