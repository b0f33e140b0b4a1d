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

// DCA invests a recurring amount on every scheduled trading day. The starting
// amount is added to the first scheduled investment only.
type DCA struct {
	policyBase

	startingAmount  float64
	recurringAmount float64
	scheduled       map[string]map[time.Time]bool
}

func NewDCA(name string, cfg DCAConfig, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (*DCA, error) {
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

	dca := &DCA{
		policyBase:      base,
		startingAmount:  cfg.StartingAmount,
		recurringAmount: cfg.RecurringAmount,
		scheduled:       make(map[string]map[time.Time]bool, len(base.tickers)),
	}

	for _, ticker := range base.tickers {
		if dca.scheduled[ticker], err = scheduledDays(cfg.Schedule, base.assets[ticker]); err != nil {
			return nil, err
		}
	}

	log.Info().Str("Strategy", name).Strs("Tickers", base.tickers).Str("Schedule", cfg.Schedule).Msg("dca strategy ready")
	return dca, nil
}

func (dca *DCA) Apply(date time.Time) error {
	date = data.NormalizeDate(date)
	amount := dca.recurringAmount + dca.startingAmount
	invested := false

	for _, ticker := range dca.tickers {
		if dca.scheduled[ticker][date] {
			if err := dca.invest(ticker, dca.allocations[ticker]*amount, date); err != nil {
				return err
			}
			invested = true
		}

		if err := dca.reinvestDividends(ticker, date); err != nil {
			return err
		}
	}

	if invested {
		dca.startingAmount = 0
	}

	return dca.maybeRebalance(date)
}
