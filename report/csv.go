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

// Package report turns a finalized portfolio engine into the artifacts a
// user looks at: a semicolon separated table, a PNG chart and a summary.
package report

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/rs/zerolog/log"
)

const DateFormat = "2006-01-02"

var (
	ErrNotFinalized  = errors.New("portfolio has not been finalized")
	ErrNotEnoughData = errors.New("not enough data points")
)

// Point is the state of the portfolio at the close of one date
type Point struct {
	Date          time.Time `json:"date"`
	Value         float64   `json:"value"`
	ProfitAndLoss float64   `json:"profitAndLoss"`
	Invested      float64   `json:"invested"`
}

// Points lists value, profit and loss and invested capital on every
// portfolio date
func Points(engine *portfolio.Engine) ([]Point, error) {
	if !engine.Finalized() {
		return nil, ErrNotFinalized
	}

	values := engine.PortfolioValues()
	pl := engine.PortfolioProfitAndLoss()
	dates := values.Dates()
	vals := values.Values()

	points := make([]Point, len(dates))
	for idx, dt := range dates {
		profit, _ := pl.ValueAt(dt)
		points[idx] = Point{
			Date:          dt,
			Value:         vals[idx],
			ProfitAndLoss: profit,
			Invested:      engine.TotalExpensesAsOf(dt),
		}
	}

	return points, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes the Date;Value;P&L table. A profit and loss of exactly 0
// repeats the previously written value. A run of zero rows keeps carrying the
// last nonzero P&L forward rather than repeating it only on the first zero.
func WriteCSV(w io.Writer, engine *portfolio.Engine) error {
	points, err := Points(engine)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	writer.Comma = ';'

	if err := writer.Write([]string{"Date", "Value", "P&L"}); err != nil {
		return err
	}

	lastPL := 0.0
	for _, point := range points {
		if point.ProfitAndLoss != 0 {
			lastPL = point.ProfitAndLoss
		}
		if err := writer.Write([]string{
			point.Date.Format(DateFormat),
			formatFloat(point.Value),
			formatFloat(lastPL),
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveCSV writes the table to fn
func SaveCSV(fn string, engine *portfolio.Engine) error {
	fh, err := os.Create(fn)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("could not create report file")
		return err
	}

	if err := WriteCSV(fh, engine); err != nil {
		fh.Close()
		return err
	}

	return fh.Close()
}
