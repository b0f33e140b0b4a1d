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
	"errors"
	"fmt"
	"time"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/rs/zerolog/log"
)

// policyBase holds what every policy shares: the engine, the assets, target
// allocations, dividend reinvestment and periodic rebalancing
type policyBase struct {
	name        string
	engine      *portfolio.Engine
	assets      map[string]*data.PriceHistory
	tickers     []string
	allocations map[string]float64

	dividendReinvestRate float64

	rebalanceEvery     int
	rebalanceThreshold float64
	relativeThreshold  bool
	daysSinceRebalance int
}

func newPolicyBase(name string, engine *portfolio.Engine, assets map[string]*data.PriceHistory, allocations map[string]float64) (policyBase, error) {
	if engine == nil {
		return policyBase{}, fmt.Errorf("%w: engine is nil", ErrInvalidConfig)
	}

	allocations, err := validateAllocations(allocations)
	if err != nil {
		return policyBase{}, err
	}

	selected := make(map[string]*data.PriceHistory, len(allocations))
	for ticker := range allocations {
		asset, ok := assets[ticker]
		if !ok || asset == nil || asset.Len() == 0 {
			return policyBase{}, fmt.Errorf("%w: %s", ErrMissingHistory, ticker)
		}
		selected[ticker] = asset
	}

	return policyBase{
		name:        name,
		engine:      engine,
		assets:      selected,
		tickers:     sortedTickers(allocations),
		allocations: allocations,
	}, nil
}

func (b *policyBase) Name() string {
	return b.name
}

// accountingError filters out the errors a strategy carries on from. The
// engine has already logged them.
func accountingError(err error) error {
	if err == nil ||
		errors.Is(err, portfolio.ErrInsufficientShares) ||
		errors.Is(err, portfolio.ErrInvalidShares) ||
		errors.Is(err, portfolio.ErrUnknownAsset) {
		return nil
	}
	return err
}

// closeOn returns the close of asset on date if it traded that day
func closeOn(asset *data.PriceHistory, date time.Time) (float64, bool) {
	price, ok := asset.Closes().ValueAt(data.NormalizeDate(date))
	if !ok || price <= 0 {
		return 0, false
	}
	return price, true
}

// invest spends amount on ticker at the close of date
func (b *policyBase) invest(ticker string, amount float64, date time.Time) error {
	asset := b.assets[ticker]
	price, ok := closeOn(asset, date)
	if !ok || amount <= 0 {
		return nil
	}
	return accountingError(b.engine.Buy(asset, amount/price, date))
}

// reinvestDividends buys shares with part of a dividend paid on date
func (b *policyBase) reinvestDividends(ticker string, date time.Time) error {
	asset := b.assets[ticker]
	dividend, ok := asset.DividendOn(date)
	if !ok || dividend <= 0 || b.dividendReinvestRate <= 0 {
		return nil
	}

	price, ok := closeOn(asset, date)
	if !ok {
		return nil
	}

	shares := b.dividendReinvestRate * dividend * b.engine.TickerSharesAsOf(ticker, date) / price
	if shares <= 0 {
		return nil
	}

	log.Debug().Str("Ticker", ticker).Time("Date", date).Float64("Dividend", dividend).Float64("Shares", shares).Msg("reinvesting dividend")
	return accountingError(b.engine.Buy(asset, shares, date))
}

// maybeRebalance counts applied dates and rebalances every rebalanceEvery+1
// dates. A zero period disables rebalancing.
func (b *policyBase) maybeRebalance(date time.Time) error {
	if b.rebalanceEvery <= 0 {
		return nil
	}

	if b.daysSinceRebalance < b.rebalanceEvery {
		b.daysSinceRebalance++
		return nil
	}

	b.daysSinceRebalance = 0
	return b.rebalance(date)
}

func (b *policyBase) drift(actual, target float64) float64 {
	if b.relativeThreshold {
		return (actual - target) / target
	}
	return actual - target
}

// rebalance trades every ticker whose allocation drifted further than the
// threshold back to its target
func (b *policyBase) rebalance(date time.Time) error {
	current := b.engine.PercentageAllocations(date)
	for _, ticker := range b.tickers {
		asset := b.assets[ticker]
		target := b.allocations[ticker]
		actual := current[ticker]
		shares := b.engine.TickerSharesAsOf(ticker, date)
		drift := b.drift(actual, target)

		switch {
		case drift > b.rebalanceThreshold:
			excess := shares - shares*target/actual
			log.Debug().Str("Ticker", ticker).Time("Date", date).Float64("Actual", actual).Float64("Target", target).Msg("rebalance sell")
			if err := accountingError(b.engine.Sell(asset, excess, date)); err != nil {
				return err
			}
		case -drift > b.rebalanceThreshold && actual > 0:
			missing := shares*target/actual - shares
			log.Debug().Str("Ticker", ticker).Time("Date", date).Float64("Actual", actual).Float64("Target", target).Msg("rebalance buy")
			if err := accountingError(b.engine.Buy(asset, missing, date)); err != nil {
				return err
			}
		}
	}
	return nil
}

// scheduledDays returns the days of asset's calendar selected by spec
func scheduledDays(spec string, asset *data.PriceHistory) (map[time.Time]bool, error) {
	days, err := data.FilterDays(spec, asset.Dates())
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %s", ErrInvalidConfig, spec, err)
	}

	scheduled := make(map[time.Time]bool, len(days))
	for _, dt := range days {
		scheduled[dt] = true
	}
	return scheduled, nil
}
