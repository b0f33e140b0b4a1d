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

package report_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/penny-vault/dca-backtest/report"
)

func day(n int) time.Time {
	return time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

var _ = Describe("Report", func() {
	var engine *portfolio.Engine

	BeforeEach(func() {
		closes := []float64{10, 8, 12, 7, 15, 10, 13}
		dates := make([]time.Time, len(closes))
		for idx := range closes {
			dates[idx] = day(idx)
		}
		asset, err := data.NewPriceHistory("SPY", dates, closes, closes, closes, closes, closes, nil)
		Expect(err).To(BeNil())

		engine = portfolio.NewEngine()
		Expect(engine.Buy(asset, 1, day(0))).To(Succeed())
	})

	It("carries the last P&L across consecutive zero rows", func() {
		closes := []float64{10, 12, 10, 10, 11}
		dates := make([]time.Time, len(closes))
		for idx := range closes {
			dates[idx] = day(idx)
		}
		asset, err := data.NewPriceHistory("QQQ", dates, closes, closes, closes, closes, closes, nil)
		Expect(err).To(BeNil())

		flat := portfolio.NewEngine()
		Expect(flat.Buy(asset, 1, day(0))).To(Succeed())
		flat.Finalize()

		var buf bytes.Buffer
		Expect(report.WriteCSV(&buf, flat)).To(Succeed())
		Expect(buf.String()).To(Equal(
			"Date;Value;P&L\n" +
				"2021-01-04;10;0\n" +
				"2021-01-05;12;2\n" +
				"2021-01-06;10;2\n" +
				"2021-01-07;10;2\n" +
				"2021-01-08;11;1\n"))
	})

	It("requires a finalized engine", func() {
		_, err := report.Points(engine)
		Expect(errors.Is(err, report.ErrNotFinalized)).To(BeTrue())
		Expect(errors.Is(report.WriteCSV(&bytes.Buffer{}, engine), report.ErrNotFinalized)).To(BeTrue())
	})

	Context("when finalized", func() {
		BeforeEach(func() {
			engine.Finalize()
		})

		It("lists every portfolio date", func() {
			points, err := report.Points(engine)
			Expect(err).To(BeNil())
			Expect(points).To(HaveLen(7))
			Expect(points[1].Value).To(Equal(8.0))
			Expect(points[1].ProfitAndLoss).To(Equal(-2.0))
			Expect(points[1].Invested).To(Equal(10.0))
		})

		It("writes the semicolon table and repeats the last P&L over zeros", func() {
			var buf bytes.Buffer
			Expect(report.WriteCSV(&buf, engine)).To(Succeed())
			Expect(buf.String()).To(Equal(
				"Date;Value;P&L\n" +
					"2021-01-04;10;0\n" +
					"2021-01-05;8;-2\n" +
					"2021-01-06;12;2\n" +
					"2021-01-07;7;-3\n" +
					"2021-01-08;15;5\n" +
					"2021-01-09;10;5\n" +
					"2021-01-10;13;3\n"))
		})

		It("saves the table to disk", func() {
			fn := filepath.Join(GinkgoT().TempDir(), "portfolio.csv")
			Expect(report.SaveCSV(fn, engine)).To(Succeed())
			contents, err := os.ReadFile(fn)
			Expect(err).To(BeNil())
			Expect(string(contents)).To(HavePrefix("Date;Value;P&L\n2021-01-04;10;0\n"))
		})

		It("renders a png chart", func() {
			img, err := report.RenderChart(engine, "SPY")
			Expect(err).To(BeNil())
			Expect(img[:8]).To(Equal([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}))
		})

		It("summarizes the run", func() {
			summary := engine.Summary()
			table := report.SummaryTable("dca", summary, engine.PercentageAllocations(summary.End))
			Expect(table).To(ContainSubstring("2021-01-04"))
			Expect(table).To(ContainSubstring("2021-01-10"))
			Expect(table).To(ContainSubstring("30.00%"))
			Expect(table).To(ContainSubstring("100.00%"))
			Expect(table).To(ContainSubstring("13.00"))
		})
	})

	It("needs two points to chart", func() {
		asset, err := data.NewPriceHistory("ONE", []time.Time{day(0)}, []float64{1}, []float64{1}, []float64{1}, []float64{1}, []float64{1}, nil)
		Expect(err).To(BeNil())
		single := portfolio.NewEngine()
		Expect(single.Buy(asset, 1, day(0))).To(Succeed())
		single.Finalize()

		_, err = report.RenderChart(single, "ONE")
		Expect(errors.Is(err, report.ErrNotEnoughData)).To(BeTrue())
	})
})
