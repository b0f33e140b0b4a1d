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

// Package indicators computes technical indicators over price series. Each
// indicator comes in two forms: a vector form operating on a plain slice and a
// date-keyed form returning a time series whose value at date d only depends on
// data strictly before d. The date-keyed form drops the first window dates (or
// the first two dates for single-step changes).
package indicators

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/dca-backtest/timeseries"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrInvalidWindow = errors.New("invalid window size")
	ErrNotEnoughData = errors.New("not enough values")
)

func checkWindow(n, window, minWindow int) error {
	if window < minWindow {
		return fmt.Errorf("%w: window %d must be at least %d", ErrInvalidWindow, window, minWindow)
	}
	if window > n {
		return fmt.Errorf("%w: window %d exceeds series length %d", ErrInvalidWindow, window, n)
	}
	return nil
}

func checkKeyed(ts *timeseries.TimeSeries, window, minWindow int) error {
	if err := checkWindow(ts.Len(), window, minWindow); err != nil {
		return err
	}
	if ts.Len() <= window {
		return fmt.Errorf("%w: window %d must be below series length %d", ErrInvalidWindow, window, ts.Len())
	}
	return nil
}

// keyed builds a series from vals where vals[k] is placed at dates[k+offset]
func keyed(dates []time.Time, vals []float64, offset int) *timeseries.TimeSeries {
	n := len(dates) - offset
	if n > len(vals) {
		n = len(vals)
	}
	return timeseries.Must(timeseries.New(dates[offset:offset+n], vals[:n]))
}

// SimpleMovingAverages returns the rolling mean of every window of vals
func SimpleMovingAverages(vals []float64, window int) ([]float64, error) {
	if err := checkWindow(len(vals), window, 1); err != nil {
		return nil, err
	}

	averages := make([]float64, len(vals)-window+1)
	sum := floats.Sum(vals[:window])
	averages[0] = sum / float64(window)
	for ii := window; ii < len(vals); ii++ {
		sum += vals[ii] - vals[ii-window]
		averages[ii-window+1] = sum / float64(window)
	}

	return averages, nil
}

// SMA returns the simple moving average of the window preceding each date
func SMA(ts *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	if err := checkKeyed(ts, window, 1); err != nil {
		return nil, err
	}

	averages, err := SimpleMovingAverages(ts.Values(), window)
	if err != nil {
		return nil, err
	}

	return keyed(ts.Dates(), averages, window), nil
}

// ExponentialMovingAverages seeds the average with the mean of the first window
// values and applies a smoothing factor of 2/(window+1) afterwards
func ExponentialMovingAverages(vals []float64, window int) ([]float64, error) {
	if err := checkWindow(len(vals), window, 1); err != nil {
		return nil, err
	}

	emas := make([]float64, len(vals)-window+1)
	emas[0] = stat.Mean(vals[:window], nil)
	alpha := 2.0 / float64(window+1)
	for ii := 1; ii < len(emas); ii++ {
		emas[ii] = vals[window+ii-1]*alpha + emas[ii-1]*(1-alpha)
	}

	return emas, nil
}

// EMA returns the exponential moving average known at each date
func EMA(ts *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	if err := checkKeyed(ts, window, 1); err != nil {
		return nil, err
	}

	emas, err := ExponentialMovingAverages(ts.Values(), window)
	if err != nil {
		return nil, err
	}

	return keyed(ts.Dates(), emas, window), nil
}

// MaximumDrawdowns returns, for every window, the largest drop from a value to
// the lowest value that follows it inside the same window
func MaximumDrawdowns(vals []float64, window int) ([]float64, error) {
	if len(vals) < 2 {
		return nil, fmt.Errorf("%w: drawdown needs at least 2 values", ErrNotEnoughData)
	}
	if err := checkWindow(len(vals), window, 1); err != nil {
		return nil, err
	}

	drawdowns := make([]float64, len(vals)-window+1)
	for ii := range drawdowns {
		maxDrawdown := 0.0
		for jj := 0; jj < window-1; jj++ {
			diff := vals[ii+jj] - floats.Min(vals[ii+jj+1:ii+window])
			if diff > maxDrawdown {
				maxDrawdown = diff
			}
		}
		drawdowns[ii] = maxDrawdown
	}

	return drawdowns, nil
}

// MaxDrawdown returns the drawdown of the window preceding each date
func MaxDrawdown(ts *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	if err := checkKeyed(ts, window, 1); err != nil {
		return nil, err
	}

	drawdowns, err := MaximumDrawdowns(ts.Values(), window)
	if err != nil {
		return nil, err
	}

	return keyed(ts.Dates(), drawdowns, window), nil
}

// PctChanges returns the relative change between consecutive values
func PctChanges(vals []float64) ([]float64, error) {
	if len(vals) < 2 {
		return nil, fmt.Errorf("%w: pct change needs at least 2 values", ErrNotEnoughData)
	}

	changes := make([]float64, len(vals)-1)
	for ii := 1; ii < len(vals); ii++ {
		changes[ii-1] = (vals[ii] - vals[ii-1]) / vals[ii-1]
	}

	return changes, nil
}

// PctChange returns, at each date, the change between the two preceding values
func PctChange(ts *timeseries.TimeSeries) (*timeseries.TimeSeries, error) {
	if ts.Len() < 3 {
		return nil, fmt.Errorf("%w: keyed pct change needs at least 3 values", ErrNotEnoughData)
	}

	changes, err := PctChanges(ts.Values())
	if err != nil {
		return nil, err
	}

	return keyed(ts.Dates(), changes, 2), nil
}

// LogReturns returns ln(v[i] / v[i-1]) for consecutive values
func LogReturns(vals []float64) ([]float64, error) {
	if len(vals) < 2 {
		return nil, fmt.Errorf("%w: log return needs at least 2 values", ErrNotEnoughData)
	}

	returns := make([]float64, len(vals)-1)
	for ii := 1; ii < len(vals); ii++ {
		returns[ii-1] = math.Log(vals[ii] / vals[ii-1])
	}

	return returns, nil
}

// LogReturn returns, at each date, the log return between the two preceding values
func LogReturn(ts *timeseries.TimeSeries) (*timeseries.TimeSeries, error) {
	if ts.Len() < 3 {
		return nil, fmt.Errorf("%w: keyed log return needs at least 3 values", ErrNotEnoughData)
	}

	returns, err := LogReturns(ts.Values())
	if err != nil {
		return nil, err
	}

	return keyed(ts.Dates(), returns, 2), nil
}

// Volatilities returns the population standard deviation of every window
func Volatilities(vals []float64, window int) ([]float64, error) {
	if err := checkWindow(len(vals), window, 2); err != nil {
		return nil, err
	}

	vols := make([]float64, len(vals)-window+1)
	for ii := range vols {
		vols[ii] = math.Sqrt(stat.PopVariance(vals[ii:ii+window], nil))
	}

	return vols, nil
}

// Volatility returns the volatility of the window preceding each date
func Volatility(ts *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	if err := checkKeyed(ts, window, 2); err != nil {
		return nil, err
	}

	vols, err := Volatilities(ts.Values(), window)
	if err != nil {
		return nil, err
	}

	return keyed(ts.Dates(), vols, window), nil
}

// RSIs computes the relative strength index using Wilder smoothing. The first
// value averages the gains and losses of the first window changes.
func RSIs(vals []float64, window int) ([]float64, error) {
	if err := checkWindow(len(vals), window, 2); err != nil {
		return nil, err
	}

	rsis := make([]float64, len(vals)-window)
	if len(rsis) == 0 {
		return rsis, nil
	}

	w := float64(window)
	avgGains := 0.0
	avgLosses := 0.0
	for jj := 1; jj <= window; jj++ {
		change := vals[jj] - vals[jj-1]
		if change > 0 {
			avgGains += change / w
		} else {
			avgLosses -= change / w
		}
	}

	for ii := range rsis {
		if ii > 0 {
			change := vals[ii+window] - vals[ii+window-1]
			if change > 0 {
				avgGains = (avgGains*(w-1) + change) / w
				avgLosses = avgLosses * (w - 1) / w
			} else {
				avgGains = avgGains * (w - 1) / w
				avgLosses = (avgLosses*(w-1) - change) / w
			}
		}
		rsis[ii] = 100 - (100 / (1 + avgGains/avgLosses))
	}

	return rsis, nil
}

// RSI returns the relative strength index known at each date
func RSI(ts *timeseries.TimeSeries, window int) (*timeseries.TimeSeries, error) {
	if err := checkKeyed(ts, window, 2); err != nil {
		return nil, err
	}

	rsis, err := RSIs(ts.Values(), window)
	if err != nil {
		return nil, err
	}

	return keyed(ts.Dates(), rsis, window), nil
}
