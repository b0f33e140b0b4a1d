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
	"time"

	"github.com/goccy/go-json"
)

type priceHistoryJSON struct {
	Symbol    string              `json:"symbol"`
	Dates     []time.Time         `json:"dates"`
	Opens     []float64           `json:"open"`
	Lows      []float64           `json:"low"`
	Highs     []float64           `json:"high"`
	Closes    []float64           `json:"close"`
	AdjCloses []float64           `json:"adjClose"`
	Dividends []dividendEntryJSON `json:"dividends,omitempty"`
}

type dividendEntryJSON struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

func (h *PriceHistory) MarshalJSON() ([]byte, error) {
	out := priceHistoryJSON{
		Symbol:    h.Symbol,
		Dates:     h.dates,
		Opens:     h.opens.Values(),
		Lows:      h.lows.Values(),
		Highs:     h.highs.Values(),
		Closes:    h.closes.Values(),
		AdjCloses: h.adjCloses.Values(),
	}

	divDates := h.dividends.Dates()
	divVals := h.dividends.Values()
	for idx := range divDates {
		out.Dividends = append(out.Dividends, dividendEntryJSON{Date: divDates[idx], Amount: divVals[idx]})
	}

	return json.Marshal(out)
}

func (h *PriceHistory) UnmarshalJSON(b []byte) error {
	var in priceHistoryJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}

	dividends := make(map[time.Time]float64, len(in.Dividends))
	for _, div := range in.Dividends {
		dividends[div.Date.UTC()] = div.Amount
	}

	dates := make([]time.Time, len(in.Dates))
	for idx, dt := range in.Dates {
		dates[idx] = dt.UTC()
	}

	history, err := NewPriceHistory(in.Symbol, dates, in.Opens, in.Lows, in.Highs, in.Closes, in.AdjCloses, dividends)
	if err != nil {
		return err
	}
	*h = *history
	return nil
}
