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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// CSVFile reads histories from `<dir>/<SYMBOL>.csv` files in the layout of a
// Yahoo Finance download: Date,Open,High,Low,Close,Adj Close with optional
// Volume and Dividend columns.
type CSVFile struct {
	dir string
}

func NewCSVFile(dir string) *CSVFile {
	return &CSVFile{dir: dir}
}

func (c *CSVFile) Name() string {
	return ProviderCSV
}

func (c *CSVFile) History(ctx context.Context, symbol string, begin, end time.Time) (*PriceHistory, error) {
	if err := checkRange(begin, end); err != nil {
		return nil, err
	}

	fn := filepath.Join(c.dir, strings.ToUpper(symbol)+".csv")
	fh, err := os.Open(fn)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (%s)", ErrNotFound, symbol, fn)
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	history, err := ReadCSV(fh, symbol, begin, end)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not parse price history file")
		return nil, err
	}
	return history, nil
}

var csvColumns = []string{"date", "open", "high", "low", "close", "adj close"}

// ReadCSV parses a price history in the CSV layout and keeps the rows between
// begin and end inclusive. Rows containing "null" prices are skipped.
func ReadCSV(r io.Reader, symbol string, begin, end time.Time) (*PriceHistory, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %s missing header: %s", ErrMalformedInput, symbol, err)
	}

	cols := make(map[string]int, len(header))
	for idx, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	for _, name := range csvColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s missing column %q", ErrMalformedInput, symbol, name)
		}
	}
	divCol, hasDividends := cols["dividend"]

	begin = NormalizeDate(begin)
	end = NormalizeDate(end)

	bars := make([]bar, 0, 252)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMalformedInput, err)
		}

		dt, err := time.Parse("2006-01-02", record[cols["date"]])
		if err != nil {
			return nil, fmt.Errorf("%w: %s invalid date %q", ErrMalformedInput, symbol, record[cols["date"]])
		}
		if dt.Before(begin) || dt.After(end) {
			continue
		}

		vals := make([]float64, len(csvColumns)-1)
		skip := false
		for idx, name := range csvColumns[1:] {
			raw := record[cols[name]]
			if raw == "null" || raw == "" {
				skip = true
				break
			}
			if vals[idx], err = strconv.ParseFloat(raw, 64); err != nil {
				return nil, fmt.Errorf("%w: %s invalid %s %q on %s", ErrMalformedInput, symbol, name, raw, record[cols["date"]])
			}
		}
		if skip {
			continue
		}

		b := bar{
			date:     dt,
			open:     vals[0],
			high:     vals[1],
			low:      vals[2],
			close:    vals[3],
			adjClose: vals[4],
		}
		if hasDividends && record[divCol] != "" {
			if b.dividend, err = strconv.ParseFloat(record[divCol], 64); err != nil {
				return nil, fmt.Errorf("%w: %s invalid dividend %q", ErrMalformedInput, symbol, record[divCol])
			}
		}
		bars = append(bars, b)
	}

	return historyFromBars(strings.ToUpper(symbol), bars)
}
