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

// Package portfolio records buy and sell transactions per asset and answers
// point-in-time questions about the resulting holdings: shares, cost basis,
// market value, allocation and profit and loss on any date.
package portfolio

import (
	"errors"
	"math"
	"time"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/timeseries"
	"github.com/rs/zerolog/log"
)

// Engine is the sole owner of the holding ledgers and the cash flow ledger.
// It is not safe for concurrent use.
type Engine struct {
	holdings map[string]*holdingLedger
	tickers  []string
	cashFlow map[time.Time]float64
	journal  []*Transaction

	valueSeries *timeseries.TimeSeries

	discardRejectedSellCashFlow bool
	source                      string
}

type Option func(*Engine)

// WithDiscardRejectedSellCashFlow only credits the cash flow of a sell once
// the sell has been accepted. By default a sell rejected for insufficient
// shares still credits its trade value.
func WithDiscardRejectedSellCashFlow() Option {
	return func(e *Engine) {
		e.discardRejectedSellCashFlow = true
	}
}

// WithSource tags every journal entry with the name of the strategy driving
// the engine
func WithSource(source string) Option {
	return func(e *Engine) {
		e.source = source
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		holdings: make(map[string]*holdingLedger),
		tickers:  make([]string, 0),
		cashFlow: make(map[time.Time]float64),
		journal:  make([]*Transaction, 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func validShares(shares float64) bool {
	return shares > 0 && !math.IsInf(shares, 1)
}

// Buy purchases shares of asset at the close on date
func (e *Engine) Buy(asset *data.PriceHistory, shares float64, date time.Time) error {
	if asset == nil {
		return ErrNilAsset
	}
	if !validShares(shares) {
		log.Warn().Str("Ticker", asset.Symbol).Time("Date", date).Float64("Shares", shares).Msg("refusing to buy a non-positive number of shares")
		return ErrInvalidShares
	}

	date = data.NormalizeDate(date)
	price := asset.CloseOn(date)
	tradeValue := shares * price

	ledger, ok := e.holdings[asset.Symbol]
	if !ok {
		ledger = newHoldingLedger(asset)
	}

	if err := ledger.recordBuy(shares, tradeValue, date); err != nil {
		log.Error().Stack().Err(err).Str("Ticker", asset.Symbol).Time("Date", date).Msg("buy rejected")
		return err
	}

	if !ok {
		e.holdings[asset.Symbol] = ledger
		e.tickers = append(e.tickers, asset.Symbol)
	}

	e.cashFlow[date] -= tradeValue

	trx := newTransaction(BuyTransaction, asset.Symbol, e.source, date, shares, price)
	e.journal = append(e.journal, trx)
	log.Debug().Object("Transaction", trx).Msg("buy")

	return nil
}

// Sell disposes of shares of asset at the close on date
func (e *Engine) Sell(asset *data.PriceHistory, shares float64, date time.Time) error {
	if asset == nil {
		return ErrNilAsset
	}

	ledger, ok := e.holdings[asset.Symbol]
	if !ok {
		log.Warn().Str("Ticker", asset.Symbol).Time("Date", date).Msg("ticker not in portfolio")
		return ErrUnknownAsset
	}

	if !validShares(shares) {
		log.Warn().Str("Ticker", asset.Symbol).Time("Date", date).Float64("Shares", shares).Msg("refusing to sell a non-positive number of shares")
		return ErrInvalidShares
	}

	date = data.NormalizeDate(date)
	if err := ledger.checkOrder(date); err != nil {
		log.Error().Stack().Err(err).Str("Ticker", asset.Symbol).Time("Date", date).Msg("sell rejected")
		return err
	}

	price := asset.CloseOn(date)
	tradeValue := shares * price

	if !e.discardRejectedSellCashFlow {
		e.cashFlow[date] += tradeValue
	}

	if err := ledger.recordSell(shares, tradeValue, date); err != nil {
		if errors.Is(err, ErrInsufficientShares) {
			log.Warn().Err(err).Str("Ticker", asset.Symbol).Time("Date", date).Float64("Shares", shares).Msg("not enough shares available to sell this volume of shares")
		} else {
			log.Error().Stack().Err(err).Str("Ticker", asset.Symbol).Time("Date", date).Msg("sell rejected")
		}
		return err
	}

	if e.discardRejectedSellCashFlow {
		e.cashFlow[date] += tradeValue
	}

	trx := newTransaction(SellTransaction, asset.Symbol, e.source, date, shares, price)
	e.journal = append(e.journal, trx)
	log.Debug().Object("Transaction", trx).Msg("sell")

	return nil
}

// Asset returns the price history of a held ticker
func (e *Engine) Asset(ticker string) (*data.PriceHistory, bool) {
	ledger, ok := e.holdings[ticker]
	if !ok {
		return nil, false
	}
	return ledger.asset, true
}

// Tickers returns the held tickers in the order they were first bought
func (e *Engine) Tickers() []string {
	tickers := make([]string, len(e.tickers))
	copy(tickers, e.tickers)
	return tickers
}

// HoldingView is a read-only snapshot of a holding ledger
type HoldingView struct {
	Ticker    string
	Shares    *timeseries.TimeSeries
	CostBasis *timeseries.TimeSeries
}

func (e *Engine) Holding(ticker string) (HoldingView, bool) {
	ledger, ok := e.holdings[ticker]
	if !ok {
		return HoldingView{}, false
	}
	return HoldingView{
		Ticker:    ticker,
		Shares:    ledger.sharesSeries(),
		CostBasis: ledger.costBasisSeries(),
	}, true
}

func (e *Engine) TickerSharesAsOf(ticker string, date time.Time) float64 {
	if ledger, ok := e.holdings[ticker]; ok {
		return ledger.sharesAsOf(date)
	}
	return 0
}

func (e *Engine) TickerExpensesAsOf(ticker string, date time.Time) float64 {
	if ledger, ok := e.holdings[ticker]; ok {
		return ledger.costBasisAsOf(date)
	}
	return 0
}

// TickerValueAsOf is the market value of the shares held on date
func (e *Engine) TickerValueAsOf(ticker string, date time.Time) float64 {
	if ledger, ok := e.holdings[ticker]; ok {
		return ledger.valueAsOf(date)
	}
	return 0
}

func (e *Engine) PortfolioValueAsOf(date time.Time) float64 {
	total := 0.0
	for _, ticker := range e.tickers {
		total += e.holdings[ticker].valueAsOf(date)
	}
	return total
}

func (e *Engine) TotalExpensesAsOf(date time.Time) float64 {
	total := 0.0
	for _, ticker := range e.tickers {
		total += e.holdings[ticker].costBasisAsOf(date)
	}
	return total
}

// PercentageAllocations returns the fraction of the portfolio value held in
// each ticker. When the portfolio is worth nothing every ticker maps to 0.
func (e *Engine) PercentageAllocations(date time.Time) map[string]float64 {
	allocations := make(map[string]float64, len(e.tickers))
	total := e.PortfolioValueAsOf(date)
	for _, ticker := range e.tickers {
		if total == 0 {
			allocations[ticker] = 0
			continue
		}
		allocations[ticker] = e.holdings[ticker].valueAsOf(date) / total
	}
	return allocations
}

// UniqueDates is the sorted union of the trading days of every held asset
func (e *Engine) UniqueDates() []time.Time {
	histories := make([]*data.PriceHistory, 0, len(e.tickers))
	for _, ticker := range e.tickers {
		histories = append(histories, e.holdings[ticker].asset)
	}
	return data.UnionDates(histories...)
}

// Finalize computes the portfolio value on every unique date. It should be
// called once all transactions have been recorded.
func (e *Engine) Finalize() {
	dates := e.UniqueDates()
	vals := make([]float64, len(dates))
	for idx, dt := range dates {
		vals[idx] = e.PortfolioValueAsOf(dt)
	}
	e.valueSeries = timeseries.Must(timeseries.New(dates, vals))
	log.Debug().Int("NumDates", len(dates)).Int("NumTransactions", len(e.journal)).Msg("portfolio finalized")
}

func (e *Engine) Finalized() bool {
	return e.valueSeries != nil
}

// PortfolioValues returns the series computed by Finalize
func (e *Engine) PortfolioValues() *timeseries.TimeSeries {
	if e.valueSeries == nil {
		return timeseries.Empty()
	}
	return e.valueSeries
}

// TickerValues returns the value of a holding on each trading day of its asset
func (e *Engine) TickerValues(ticker string) *timeseries.TimeSeries {
	return e.tickerSeries(ticker, func(l *holdingLedger, dt time.Time) float64 {
		return l.valueAsOf(dt)
	})
}

// TickerProfitAndLoss returns value less cost basis on each trading day of
// the asset
func (e *Engine) TickerProfitAndLoss(ticker string) *timeseries.TimeSeries {
	return e.tickerSeries(ticker, func(l *holdingLedger, dt time.Time) float64 {
		return l.valueAsOf(dt) - l.costBasisAsOf(dt)
	})
}

func (e *Engine) tickerSeries(ticker string, fn func(*holdingLedger, time.Time) float64) *timeseries.TimeSeries {
	ledger, ok := e.holdings[ticker]
	if !ok {
		return timeseries.Empty()
	}

	dates := ledger.asset.Dates()
	vals := make([]float64, len(dates))
	for idx, dt := range dates {
		vals[idx] = fn(ledger, dt)
	}
	return timeseries.Must(timeseries.New(dates, vals))
}

// PortfolioProfitAndLoss sums the profit and loss of every ticker on each
// unique date. A ticker without a price on a date contributes nothing.
func (e *Engine) PortfolioProfitAndLoss() *timeseries.TimeSeries {
	dates := e.UniqueDates()
	vals := make([]float64, len(dates))
	for _, ticker := range e.tickers {
		pl := e.TickerProfitAndLoss(ticker)
		for idx, dt := range dates {
			if v, ok := pl.ValueAt(dt); ok {
				vals[idx] += v
			}
		}
	}
	return timeseries.Must(timeseries.New(dates, vals))
}

// CashFlowHistory returns the net cash moved on each trade date. Buys are
// negative, sells positive.
func (e *Engine) CashFlowHistory() *timeseries.TimeSeries {
	return timeseries.FromMap(e.cashFlow)
}

// Transactions returns a copy of the journal of accepted trades
func (e *Engine) Transactions() []Transaction {
	trxs := make([]Transaction, len(e.journal))
	for idx, trx := range e.journal {
		trxs[idx] = *trx
	}
	return trxs
}
