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

package report

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/dca-backtest/portfolio"
)

// ceilPercent converts a fraction to a percentage rounded up to 2 decimals.
// Float noise below 1e-6 of a basis point does not round up.
func ceilPercent(v float64) float64 {
	return math.Ceil(v*100*100-1e-6) / 100
}

// SummaryTable renders the headline statistics and the final allocation
func SummaryTable(name string, summary portfolio.Summary, allocations map[string]float64) string {
	s := &strings.Builder{}

	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Strategy", name})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk([][]string{
		{"Start", summary.Start.Format(DateFormat)},
		{"End", summary.End.Format(DateFormat)},
		{"Total Return", fmt.Sprintf("%.2f%%", ceilPercent(summary.TotalReturn))},
		{"Internal Rate of Return", fmt.Sprintf("%.2f%%", ceilPercent(summary.XIRR))},
		{"Invested", fmt.Sprintf("%.2f", summary.TotalExpenses)},
		{"Portfolio End Value", fmt.Sprintf("%.2f", summary.FinalValue)},
	})
	table.Render()

	if len(allocations) == 0 {
		return s.String()
	}

	tickers := make([]string, 0, len(allocations))
	for ticker := range allocations {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	s.WriteString("\n")
	allocTable := tablewriter.NewWriter(s)
	allocTable.SetHeader([]string{"Ticker", "Allocation"})
	allocTable.SetBorder(false)
	for _, ticker := range tickers {
		allocTable.Append([]string{ticker, fmt.Sprintf("%.2f%%", allocations[ticker]*100)})
	}
	allocTable.Render()

	return s.String()
}
