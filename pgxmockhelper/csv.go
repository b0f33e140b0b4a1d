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

package pgxmockhelper

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/pashagolub/pgxmock"
	"github.com/rs/zerolog/log"
)

// CSVRows turns a CSV fixture into pgxmock rows. typeMap converts the named
// columns to "date" or "float64"; other columns are passed through as strings.
type CSVRows struct {
	rows    [][]any
	header  []string
	dateCol int
}

func NewCSVRows(csvFn string, typeMap map[string]string) *CSVRows {
	subLog := log.With().Str("CsvFn", csvFn).Logger()

	fh, err := os.Open(csvFn)
	if err != nil {
		subLog.Panic().Err(err).Msg("could not open file")
	}
	defer fh.Close()

	records, err := csv.NewReader(fh).ReadAll()
	if err != nil {
		subLog.Panic().Err(err).Msg("could not parse csv")
	}
	if len(records) == 0 {
		subLog.Panic().Msg("input file is missing a header")
	}

	rows := &CSVRows{
		header:  records[0],
		dateCol: -1,
		rows:    make([][]any, 0, len(records)-1),
	}

	for _, record := range records[1:] {
		cols := make([]any, len(rows.header))
		for idx, val := range record {
			switch typeMap[rows.header[idx]] {
			case "date":
				parsed, err := time.Parse("2006-01-02", val)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to datetime of format 2006-01-02")
				}
				cols[idx] = parsed
				rows.dateCol = idx
			case "float64":
				parsed, err := strconv.ParseFloat(val, 64)
				if err != nil {
					subLog.Panic().Err(err).Str("Val", val).Msg("could not convert val to float64")
				}
				cols[idx] = parsed
			default:
				cols[idx] = val
			}
		}
		rows.rows = append(rows.rows, cols)
	}

	return rows
}

func (csvRows *CSVRows) Between(a time.Time, b time.Time) *CSVRows {
	newRows := make([][]any, 0, len(csvRows.rows))
	if len(csvRows.rows) == 0 {
		return csvRows
	}
	if csvRows.dateCol == -1 {
		log.Panic().Time("a", a).Time("b", b).Msg("no date column found")
	}
	for _, row := range csvRows.rows {
		t := row[csvRows.dateCol].(time.Time)
		if (t.Before(b) || t.Equal(b)) && (t.After(a) || t.Equal(a)) {
			newRows = append(newRows, row)
		}
	}
	csvRows.rows = newRows
	return csvRows
}

func (csvRows *CSVRows) Rows() *pgxmock.Rows {
	r := pgxmock.NewRows(csvRows.header)
	for _, row := range csvRows.rows {
		r.AddRow(row...)
	}
	return r
}

// MockDBEodQuery expects a single eod price query answered with the rows of
// fn that fall between begin and end
func MockDBEodQuery(db pgxmock.PgxConnIface, fn string, begin, end time.Time) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT event_date, open, low, high, close, adj_close").WillReturnRows(
		NewCSVRows(fn, map[string]string{
			"event_date": "date",
			"open":       "float64",
			"low":        "float64",
			"high":       "float64",
			"close":      "float64",
			"adj_close":  "float64",
			"dividend":   "float64",
		}).Between(begin, end).Rows())
	db.ExpectCommit()
}
