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

package handler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/observability/opentelemetry"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/penny-vault/dca-backtest/report"
	"github.com/penny-vault/dca-backtest/strategy"
)

const dateLayout = "2006-01-02"

// HistoryLoader fetches the price histories a backtest needs. *data.Manager
// satisfies it.
type HistoryLoader interface {
	Histories(ctx context.Context, symbols []string, begin, end time.Time) (map[string]*data.PriceHistory, error)
}

var (
	loaderMu sync.RWMutex
	loader   HistoryLoader
)

// SetHistoryLoader sets the loader used by RunBacktest
func SetHistoryLoader(l HistoryLoader) {
	loaderMu.Lock()
	defer loaderMu.Unlock()
	loader = l
}

func historyLoader() HistoryLoader {
	loaderMu.RLock()
	defer loaderMu.RUnlock()
	return loader
}

type BacktestRequest struct {
	Strategy strategy.Config `json:"strategy"`
	Begin    string          `json:"begin" example:"2015-06-01"`
	End      string          `json:"end" example:"now"`
}

type BacktestResponse struct {
	Name          string                  `json:"name"`
	Kind          string                  `json:"kind"`
	Begin         time.Time               `json:"begin"`
	End           time.Time               `json:"end"`
	FinalValue    float64                 `json:"finalValue"`
	TotalExpenses float64                 `json:"totalExpenses"`
	TotalReturn   float64                 `json:"totalReturn"`
	XIRR          float64                 `json:"xirr"`
	Allocations   map[string]float64      `json:"allocations"`
	Series        []report.Point          `json:"series"`
	Transactions  []portfolio.Transaction `json:"transactions"`
}

func parseDate(s string, fallback string) (time.Time, error) {
	if s == "" {
		s = fallback
	}
	if s == "now" {
		return data.NormalizeDate(time.Now()), nil
	}
	return time.Parse(dateLayout, s)
}

// statusFor maps backtest failures onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, strategy.ErrUnknownKind),
		errors.Is(err, strategy.ErrInvalidAllocation),
		errors.Is(err, strategy.ErrInvalidConfig),
		errors.Is(err, data.ErrInvalidTimeRange),
		errors.Is(err, data.ErrNoTradingDays),
		errors.Is(err, strategy.ErrNoDates):
		return fiber.StatusBadRequest
	case errors.Is(err, data.ErrNotFound), errors.Is(err, strategy.ErrMissingHistory):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// RunBacktest runs the strategy described in the request body over the
// requested date range and returns its summary, daily series and journal
func RunBacktest(c *fiber.Ctx) (resp error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "RunBacktest")
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)
	defer span.End()

	req := BacktestRequest{Strategy: strategy.DefaultConfig()}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		log.Warn().Err(err).Msg("could not parse backtest request")
		span.RecordError(err)
		return fiber.NewError(fiber.StatusBadRequest, "malformed request body")
	}

	begin, err := parseDate(req.Begin, "1990-01-01")
	if err != nil {
		log.Warn().Err(err).Str("Begin", req.Begin).Msg("cannot parse begin date")
		return fiber.NewError(fiber.StatusBadRequest, "begin must be formatted as YYYY-MM-DD")
	}
	end, err := parseDate(req.End, "now")
	if err != nil {
		log.Warn().Err(err).Str("End", req.End).Msg("cannot parse end date")
		return fiber.NewError(fiber.StatusBadRequest, "end must be formatted as YYYY-MM-DD or now")
	}

	cfg := req.Strategy
	if err := cfg.Validate(); err != nil {
		log.Warn().Err(err).Object("Config", cfg).Msg("invalid strategy configuration")
		return fiber.NewError(statusFor(err), err.Error())
	}

	l := historyLoader()
	if l == nil {
		log.Error().Msg("backtest requested before a history loader was configured")
		return fiber.ErrServiceUnavailable
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("Panic", r).Object("Config", cfg).Msg("caught panic in backtest")
			span.SetStatus(codes.Error, "panic during backtest")
			resp = fiber.ErrInternalServerError
		}
	}()

	histories, err := l.Histories(ctx, cfg.Tickers(), begin, end)
	if err != nil {
		log.Error().Err(err).Strs("Tickers", cfg.Tickers()).Msg("could not load price histories")
		span.RecordError(err)
		span.SetStatus(codes.Error, "history download failed")
		return fiber.NewError(statusFor(err), err.Error())
	}

	engine, err := strategy.Backtest(ctx, cfg, histories)
	if err != nil {
		log.Error().Err(err).Object("Config", cfg).Msg("backtest failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, "backtest failed")
		return fiber.NewError(statusFor(err), err.Error())
	}

	points, err := report.Points(engine)
	if err != nil {
		log.Error().Err(err).Msg("could not build report series")
		return fiber.NewError(statusFor(err), err.Error())
	}

	summary := engine.Summary()
	return c.JSON(BacktestResponse{
		Name:          cfg.Name,
		Kind:          cfg.Kind,
		Begin:         summary.Start,
		End:           summary.End,
		FinalValue:    summary.FinalValue,
		TotalExpenses: summary.TotalExpenses,
		TotalReturn:   summary.TotalReturn,
		XIRR:          summary.XIRR,
		Allocations:   engine.PercentageAllocations(summary.End),
		Series:        points,
		Transactions:  engine.Transactions(),
	})
}
