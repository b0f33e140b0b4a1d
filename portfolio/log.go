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
	"github.com/rs/zerolog"
)

func (o *Transaction) MarshalZerologObject(e *zerolog.Event) {
	e.Str("TransactionID", o.ID.String()).
		Str("SourceID", o.SourceID).
		Time("Date", o.Date).
		Str("Kind", o.Kind).
		Str("Ticker", o.Ticker).
		Float64("Shares", o.Shares).
		Float64("PricePerShare", o.PricePerShare).
		Float64("TotalValue", o.TotalValue).
		Str("Source", o.Source)
}

func (s *Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Time("Start", s.Start).
		Time("End", s.End).
		Float64("FinalValue", s.FinalValue).
		Float64("TotalExpenses", s.TotalExpenses).
		Float64("TotalReturn", s.TotalReturn).
		Float64("XIRR", s.XIRR)
}

func (h *HoldingView) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", h.Ticker).Int("NumEntries", h.Shares.Len())
	if dt, shares, ok := h.Shares.Last(); ok {
		_, cost, _ := h.CostBasis.Last()
		e.Time("LastTransactionDate", dt).Float64("Shares", shares).Float64("CostBasis", cost)
	}
}
