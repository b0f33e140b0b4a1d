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
	"time"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/rs/zerolog/log"
)

// LumpSum invests the whole initial amount on the first trading day of each
// ticker. Its rebalance threshold is relative to the target allocation.
type LumpSum struct {
	policyBase

	initialAmount float64
	firstDates    map[string]time.Time
}

func NewLumpSum(name string, cfg LumpSumConfig, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (*LumpSum, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	base, err := newPolicyBase(name, engine, assets, cfg.Allocations)
	if err != nil {
		return nil, err
	}
	base.dividendReinvestRate = cfg.DividendReinvestRate
	base.rebalanceEvery = cfg.RebalanceEvery
	base.rebalanceThreshold = cfg.RebalanceThreshold
	base.relativeThreshold = true

	lumpSum := &LumpSum{
		policyBase:    base,
		initialAmount: cfg.InitialAmount,
		firstDates:    make(map[string]time.Time, len(base.tickers)),
	}

	for _, ticker := range base.tickers {
		lumpSum.firstDates[ticker] = base.assets[ticker].Dates()[0]
	}

	log.Info().Str("Strategy", name).Strs("Tickers", base.tickers).Float64("InitialAmount", cfg.InitialAmount).Msg("lump sum strategy ready")
	return lumpSum, nil
}

func (ls *LumpSum) Apply(date time.Time) error {
	date = data.NormalizeDate(date)
	for _, ticker := range ls.tickers {
		if date.Equal(ls.firstDates[ticker]) {
			if err := ls.invest(ticker, ls.allocations[ticker]*ls.initialAmount, date); err != nil {
				return err
			}
		}

		if err := ls.reinvestDividends(ticker, date); err != nil {
			return err
		}
	}

	return ls.maybeRebalance(date)
}
