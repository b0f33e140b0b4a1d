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
	"context"
	"fmt"
	"io"
	"time"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/observability/opentelemetry"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type runOptions struct {
	progress io.Writer
	engine   []portfolio.Option
}

type RunOption func(*runOptions)

// WithProgressBar draws a progress bar on w while dates are applied
func WithProgressBar(w io.Writer) RunOption {
	return func(o *runOptions) {
		o.progress = w
	}
}

// WithEngineOptions passes options to the engine created by Backtest
func WithEngineOptions(opts ...portfolio.Option) RunOption {
	return func(o *runOptions) {
		o.engine = append(o.engine, opts...)
	}
}

func newProgressBar(w io.Writer, max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

// Run applies policy to every date in ascending order and finalizes engine
func Run(ctx context.Context, policy TransactionPolicy, engine *portfolio.Engine, dates []time.Time, opts ...RunOption) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "strategy.Run")
	defer span.End()

	options := runOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	span.SetAttributes(
		attribute.String("Strategy", policy.Name()),
		attribute.Int("NumDates", len(dates)),
	)

	if len(dates) == 0 {
		span.SetStatus(codes.Error, "no dates")
		return ErrNoDates
	}

	subLog := log.With().Str("Strategy", policy.Name()).Time("Begin", dates[0]).Time("End", dates[len(dates)-1]).Logger()
	subLog.Info().Int("NumDates", len(dates)).Msg("running backtest")

	var bar *progressbar.ProgressBar
	if options.progress != nil {
		bar = newProgressBar(options.progress, len(dates), fmt.Sprintf("Backtesting %s...", policy.Name()))
	}

	for idx, dt := range dates {
		if idx > 0 && !dates[idx-1].Before(dt) {
			span.SetStatus(codes.Error, "dates out of order")
			return fmt.Errorf("%w: %s follows %s", ErrDatesOutOfOrder, dt.Format("2006-01-02"), dates[idx-1].Format("2006-01-02"))
		}

		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "backtest canceled")
			return err
		}

		if err := policy.Apply(dt); err != nil {
			subLog.Error().Stack().Err(err).Time("Date", dt).Msg("strategy failed to apply transactions")
			span.RecordError(err)
			span.SetStatus(codes.Error, "apply failed")
			return err
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				subLog.Warn().Err(err).Msg("could not update progress bar")
			}
		}
	}

	engine.Finalize()
	subLog.Info().Int("NumTransactions", len(engine.Transactions())).Msg("backtest complete")

	return nil
}

// Backtest builds the policy described by cfg over histories and runs it on
// the union of their trading days
func Backtest(ctx context.Context, cfg Config, histories map[string]*data.PriceHistory, opts ...RunOption) (*portfolio.Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := runOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	engineOpts := append([]portfolio.Option{portfolio.WithSource(cfg.Name)}, options.engine...)
	engine := portfolio.NewEngine(engineOpts...)

	policy, err := New(cfg, engine, histories)
	if err != nil {
		log.Error().Err(err).Object("Config", cfg).Msg("could not build strategy")
		return nil, err
	}

	selected := make([]*data.PriceHistory, 0, len(histories))
	for _, ticker := range cfg.Tickers() {
		selected = append(selected, histories[ticker])
	}

	if err := Run(ctx, policy, engine, data.UnionDates(selected...), opts...); err != nil {
		return nil, err
	}

	return engine, nil
}
