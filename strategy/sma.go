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

package strategy

import (
	"fmt"
	"time"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/indicators"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/penny-vault/dca-backtest/timeseries"
	"github.com/rs/zerolog/log"
)

// SMA sets aside each ticker's share of the recurring amount on scheduled
// days and waits for the close to dip below its simple moving average before
// investing it. Whatever is left on a deadline day is invested at the close.
type SMA struct {
	policyBase

	startingAmount  float64
	recurringAmount float64
	dipThreshold    float64

	scheduled map[string]map[time.Time]bool
	deadlines map[string]map[time.Time]bool
	averages  map[string]*timeseries.TimeSeries
	budgets   map[string]float64
}

func NewSMA(name string, cfg DCAConfig, smaCfg SMAConfig, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (*SMA, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := smaCfg.validate(); err != nil {
		return nil, err
	}

	base, err := newPolicyBase(name, engine, assets, cfg.Allocations)
	if err != nil {
		return nil, err
	}
	base.dividendReinvestRate = cfg.DividendReinvestRate
	base.rebalanceEvery = cfg.RebalanceEvery
	base.rebalanceThreshold = cfg.RebalanceThreshold

	sma := &SMA{
		policyBase:      base,
		startingAmount:  cfg.StartingAmount,
		recurringAmount: cfg.RecurringAmount,
		dipThreshold:    smaCfg.DipThreshold,
		scheduled:       make(map[string]map[time.Time]bool, len(base.tickers)),
		deadlines:       make(map[string]map[time.Time]bool, len(base.tickers)),
		averages:        make(map[string]*timeseries.TimeSeries, len(base.tickers)),
		budgets:         make(map[string]float64, len(base.tickers)),
	}

	for _, ticker := range base.tickers {
		asset := base.assets[ticker]
		if sma.scheduled[ticker], err = scheduledDays(cfg.Schedule, asset); err != nil {
			return nil, err
		}
		if sma.deadlines[ticker], err = scheduledDays(smaCfg.Deadline, asset); err != nil {
			return nil, err
		}
		if sma.averages[ticker], err = indicators.SMA(asset.Closes(), smaCfg.Window); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, ticker, err)
		}
	}

	log.Info().Str("Strategy", name).Strs("Tickers", base.tickers).Int("Window", smaCfg.Window).Float64("DipThreshold", smaCfg.DipThreshold).Msg("sma strategy ready")
	return sma, nil
}

// Budget returns the amount still waiting to be invested in ticker
func (sma *SMA) Budget(ticker string) float64 {
	return sma.budgets[ticker]
}

func (sma *SMA) Apply(date time.Time) error {
	date = data.NormalizeDate(date)
	amount := sma.recurringAmount + sma.startingAmount
	refreshed := false

	for _, ticker := range sma.tickers {
		if sma.scheduled[ticker][date] {
			sma.budgets[ticker] = sma.allocations[ticker] * amount
			refreshed = true
		}

		if price, ok := closeOn(sma.assets[ticker], date); ok && sma.budgets[ticker] > 0 {
			average := sma.averages[ticker].AsOf(date)
			dipped := average > 0 && (average-price)/average > sma.dipThreshold
			if dipped || sma.deadlines[ticker][date] {
				if err := sma.invest(ticker, sma.budgets[ticker], date); err != nil {
					return err
				}
				sma.budgets[ticker] = 0
			}
		}

		if err := sma.reinvestDividends(ticker, date); err != nil {
			return err
		}
	}

	if refreshed {
		sma.startingAmount = 0
	}

	return sma.maybeRebalance(date)
}
