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

package data

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/dca-backtest/data/database"
	"github.com/penny-vault/dca-backtest/observability/opentelemetry"
)

const eodQuery = "SELECT event_date, open, low, high, close, adj_close, COALESCE(dividend, 0) FROM eod WHERE ticker=$1 AND event_date BETWEEN $2 AND $3 ORDER BY event_date"

// PvDb reads end-of-day prices from the eod table of a PostgreSQL database
type PvDb struct {
}

// NewPvDb Create a new PVDB data provider
func NewPvDb() *PvDb {
	return &PvDb{}
}

func (p *PvDb) Name() string {
	return ProviderPvDb
}

// History fetches EOD prices and dividends for symbol from the database
func (p *PvDb) History(ctx context.Context, symbol string, begin, end time.Time) (*PriceHistory, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "pvdb.History")
	defer span.End()

	span.SetAttributes(attribute.String("Symbol", symbol))
	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if err := checkRange(begin, end); err != nil {
		subLog.Warn().Stack().Msg("end before begin in call to History")
		return nil, err
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load eod prices -- could not get a database transaction"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Msg(msg)
		return nil, err
	}

	rows, err := trx.Query(ctx, eodQuery, symbol, begin, end)
	if err != nil {
		span.RecordError(err)
		msg := "failed to load eod prices -- db query failed"
		span.SetStatus(codes.Error, msg)
		subLog.Warn().Stack().Err(err).Str("SQL", eodQuery).Msg(msg)
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	bars := make([]bar, 0, 252)
	for rows.Next() {
		var b bar
		if err := rows.Scan(&b.date, &b.open, &b.low, &b.high, &b.close, &b.adjClose, &b.dividend); err != nil {
			rows.Close()
			span.RecordError(err)
			span.SetStatus(codes.Error, "db scan failed")
			subLog.Error().Stack().Err(err).Msg("failed to load eod prices -- db query scan failed")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		b.date = NormalizeDate(b.date)
		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "db read failed")
		subLog.Error().Stack().Err(err).Msg("failed to load eod prices -- reading rows failed")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if len(bars) == 0 {
		span.SetStatus(codes.Error, "no eod prices found")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	return historyFromBars(symbol, bars)
}
