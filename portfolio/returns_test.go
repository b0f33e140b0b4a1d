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

package portfolio_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/dca-backtest/portfolio"
)

var _ = Describe("Returns", func() {
	var engine *portfolio.Engine

	BeforeEach(func() {
		engine = portfolio.NewEngine()
	})

	It("is zero when nothing happened", func() {
		Expect(engine.TotalReturn()).To(Equal(0.0))
		Expect(engine.XIRR(1e-3, 1000)).To(Equal(0.0))
		Expect(engine.Summary()).To(Equal(portfolio.Summary{}))
	})

	It("computes the total return after finalize", func() {
		asset := historyOn("ANNUAL", []time.Time{day(0), day(365)}, []float64{100, 110})
		Expect(engine.Buy(asset, 1, day(0))).To(Succeed())
		Expect(engine.TotalReturn()).To(Equal(0.0))

		engine.Finalize()
		Expect(engine.TotalReturn()).To(BeNumerically("~", 0.1, 1e-9))
	})

	DescribeTable("matches the closed form for a single deposit",
		func(days int, begin, end float64) {
			asset := historyOn("XIRR", []time.Time{day(0), day(days)}, []float64{begin, end})
			Expect(engine.Buy(asset, 1, day(0))).To(Succeed())
			engine.Finalize()

			expected := math.Pow(end/begin, 365/float64(days)) - 1
			Expect(engine.XIRR(1e-6, 1000)).To(BeNumerically("~", expected, 1e-6))
		},
		Entry("one year gain", 365, 100.0, 110.0),
		Entry("two year gain", 730, 100.0, 121.0),
		Entry("half year loss", 182, 100.0, 95.0),
	)

	It("ignores negligible cash flows", func() {
		asset := historyOn("XIRR", []time.Time{day(0), day(100), day(365)}, []float64{100, 0.0001, 55})
		Expect(engine.Buy(asset, 1, day(0))).To(Succeed())
		Expect(engine.Buy(asset, 1, day(100))).To(Succeed())
		engine.Finalize()

		Expect(engine.XIRR(1e-6, 1000)).To(BeNumerically("~", 0.1, 1e-5))
	})

	It("returns the bracket midpoint when it runs out of iterations", func() {
		asset := historyOn("XIRR", []time.Time{day(0), day(365)}, []float64{100, 110})
		Expect(engine.Buy(asset, 1, day(0))).To(Succeed())
		engine.Finalize()

		Expect(engine.XIRR(1e-12, 1)).To(Equal(0.0))
		Expect(engine.XIRR(1e-12, 2)).To(Equal(0.5))
	})

	It("summarizes the run", func() {
		asset := historyOn("ANNUAL", []time.Time{day(0), day(365)}, []float64{100, 110})
		Expect(engine.Buy(asset, 2, day(0))).To(Succeed())
		engine.Finalize()

		summary := engine.Summary()
		Expect(summary.Start).To(Equal(day(0)))
		Expect(summary.End).To(Equal(day(365)))
		Expect(summary.FinalValue).To(BeNumerically("~", 220, 1e-9))
		Expect(summary.TotalExpenses).To(BeNumerically("~", 200, 1e-9))
		Expect(summary.TotalReturn).To(BeNumerically("~", 0.1, 1e-9))
		Expect(summary.XIRR).To(BeNumerically("~", 0.1, 1e-3))
	})
})
