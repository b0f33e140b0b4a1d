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

package portfolio

import (
	"errors"
	"math"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// cash flows smaller than this are ignored by XIRR
	minCashFlow = 1e-3

	DefaultXIRRTolerance     = 1e-3
	DefaultXIRRMaxIterations = 1000
)

// Summary describes the outcome of a finished backtest
type Summary struct {
	Start         time.Time
	End           time.Time
	FinalValue    float64
	TotalExpenses float64
	TotalReturn   float64
	XIRR          float64
}

// TotalReturn is the final portfolio value over the cost basis still held on
// the last date, less one. It is 0 before Finalize or when nothing is held.
func (e *Engine) TotalReturn() float64 {
	lastDate, lastValue, ok := e.PortfolioValues().Last()
	if !ok {
		return 0
	}

	expenses := e.TotalExpensesAsOf(lastDate)
	if expenses == 0 {
		return 0
	}

	return lastValue/expenses - 1
}

// XIRR returns the annualized internal rate of return of the cash flows plus
// the final portfolio value. The rate is found by bisection over [-1, 1].
func (e *Engine) XIRR(tolerance float64, maxIterations int) float64 {
	history := e.CashFlowHistory()
	dates := make([]time.Time, 0, history.Len()+1)
	flows := make([]float64, 0, history.Len()+1)
	historyDates := history.Dates()
	for idx, amount := range history.Values() {
		if math.Abs(amount) > minCashFlow {
			dates = append(dates, historyDates[idx])
			flows = append(flows, amount)
		}
	}

	if len(flows) == 0 {
		return 0
	}

	uniqueDates := e.UniqueDates()
	lastDate := uniqueDates[len(uniqueDates)-1]
	dates = append(dates, lastDate)
	flows = append(flows, e.PortfolioValueAsOf(lastDate))

	first := dates[0]
	npv := func(rate float64) float64 {
		total := 0.0
		for idx, cf := range flows {
			days := dates[idx].Sub(first).Hours() / 24
			total += cf / math.Pow(1+rate, days/365)
		}
		return total
	}

	rate, err := bisect(npv, -1, 1, tolerance, maxIterations)
	if errors.Is(err, ErrDidNotConverge) {
		log.Debug().Float64("Rate", rate).Int("MaxIterations", maxIterations).Msg("xirr did not converge; using last bracket midpoint")
	}

	return rate
}

// Summary computes the headline statistics of a finalized portfolio
func (e *Engine) Summary() Summary {
	summary := Summary{}

	dates := e.UniqueDates()
	if len(dates) == 0 {
		return summary
	}

	summary.Start = dates[0]
	summary.End = dates[len(dates)-1]
	summary.FinalValue = e.PortfolioValueAsOf(summary.End)
	summary.TotalExpenses = e.TotalExpensesAsOf(summary.End)
	summary.TotalReturn = e.TotalReturn()
	summary.XIRR = e.XIRR(DefaultXIRRTolerance, DefaultXIRRMaxIterations)

	return summary
}
