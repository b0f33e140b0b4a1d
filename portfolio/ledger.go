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
	"fmt"
	"time"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/timeseries"
)

// holdingLedger keeps cumulative snapshots of the shares held and the cost
// basis of a single asset. Both sequences share the same dates, are append
// only and keep zero entries.
type holdingLedger struct {
	asset *data.PriceHistory

	dates     []time.Time
	shares    []float64
	costBasis []float64
}

func newHoldingLedger(asset *data.PriceHistory) *holdingLedger {
	return &holdingLedger{
		asset: asset,
	}
}

func (l *holdingLedger) last() (time.Time, float64, float64, bool) {
	n := len(l.dates)
	if n == 0 {
		return time.Time{}, 0, 0, false
	}
	return l.dates[n-1], l.shares[n-1], l.costBasis[n-1], true
}

// checkOrder rejects dates before the latest snapshot
func (l *holdingLedger) checkOrder(date time.Time) error {
	lastDate, _, _, ok := l.last()
	if ok && date.Before(lastDate) {
		return fmt.Errorf("%w: %s on %s is before %s", ErrTransactionsOutOfOrder, l.asset.Symbol,
			date.Format("2006-01-02"), lastDate.Format("2006-01-02"))
	}
	return nil
}

// record writes a new cumulative snapshot. A snapshot on the last date is
// replaced in place.
func (l *holdingLedger) record(date time.Time, shares, costBasis float64) error {
	if err := l.checkOrder(date); err != nil {
		return err
	}

	lastDate, _, _, ok := l.last()
	if ok && date.Equal(lastDate) {
		n := len(l.dates)
		l.shares[n-1] = shares
		l.costBasis[n-1] = costBasis
		return nil
	}

	l.dates = append(l.dates, date)
	l.shares = append(l.shares, shares)
	l.costBasis = append(l.costBasis, costBasis)
	return nil
}

func (l *holdingLedger) recordBuy(shares, tradeValue float64, date time.Time) error {
	_, prevShares, prevCost, _ := l.last()
	return l.record(date, prevShares+shares, prevCost+tradeValue)
}

// recordSell leaves the ledger untouched when more shares are requested than
// the latest snapshot holds
func (l *holdingLedger) recordSell(shares, tradeValue float64, date time.Time) error {
	if err := l.checkOrder(date); err != nil {
		return err
	}
	_, available, prevCost, _ := l.last()
	if shares > available {
		return fmt.Errorf("%w: requested %.5f of %s, holding %.5f", ErrInsufficientShares, shares, l.asset.Symbol, available)
	}
	return l.record(date, available-shares, prevCost-tradeValue)
}

// Snapshots are keyed by normalized day, so lookups normalize date first.
func (l *holdingLedger) sharesAsOf(date time.Time) float64 {
	if idx := timeseries.Search(l.dates, data.NormalizeDate(date)); idx >= 0 {
		return l.shares[idx]
	}
	return 0
}

func (l *holdingLedger) costBasisAsOf(date time.Time) float64 {
	if idx := timeseries.Search(l.dates, data.NormalizeDate(date)); idx >= 0 {
		return l.costBasis[idx]
	}
	return 0
}

func (l *holdingLedger) valueAsOf(date time.Time) float64 {
	return l.sharesAsOf(date) * l.asset.CloseOn(date)
}

func (l *holdingLedger) sharesSeries() *timeseries.TimeSeries {
	return timeseries.Must(timeseries.New(l.dates, l.shares))
}

func (l *holdingLedger) costBasisSeries() *timeseries.TimeSeries {
	return timeseries.Must(timeseries.New(l.dates, l.costBasis))
}
