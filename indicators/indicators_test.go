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

package indicators_test

import (
	"errors"
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/dca-backtest/indicators"
	"github.com/penny-vault/dca-backtest/timeseries"
)

func tradingDays(n int) []time.Time {
	dates := make([]time.Time, n)
	for ii := range dates {
		dates[ii] = time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, ii)
	}
	return dates
}

func series(vals ...float64) *timeseries.TimeSeries {
	return timeseries.Must(timeseries.New(tradingDays(len(vals)), vals))
}

func expectClose(actual, expected []float64, tol float64) {
	Expect(actual).To(HaveLen(len(expected)))
	for ii := range expected {
		Expect(actual[ii]).To(BeNumerically("~", expected[ii], tol), "index %d", ii)
	}
}

var _ = Describe("Indicators", func() {
	var (
		linear  *timeseries.TimeSeries
		choppy  *timeseries.TimeSeries
		dates   []time.Time
		choppyV = []float64{100, 90, 110, 90, 120, 140, 100, 90, 140, 145}
	)

	BeforeEach(func() {
		linear = series(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
		choppy = series(choppyV...)
		dates = tradingDays(10)
	})

	Context("moving averages", func() {
		It("computes the vector form", func() {
			sma, err := indicators.SimpleMovingAverages(linear.Values(), 3)
			Expect(err).To(BeNil())
			Expect(sma).To(Equal([]float64{2, 3, 4, 5, 6, 7, 8, 9}))
		})

		It("keys the average by the date following its window", func() {
			sma, err := indicators.SMA(linear, 3)
			Expect(err).To(BeNil())
			Expect(sma.Dates()).To(Equal(dates[3:]))
			Expect(sma.Values()).To(Equal([]float64{2, 3, 4, 5, 6, 7, 8}))
		})

		It("computes exponential averages", func() {
			ts := series(100, 105, 110, 115, 120, 125, 130, 135, 140, 145)
			emas, err := indicators.ExponentialMovingAverages(ts.Values(), 5)
			Expect(err).To(BeNil())
			expectClose(emas, []float64{110, 115, 120, 125, 130, 135}, 0.01)

			keyed, err := indicators.EMA(ts, 5)
			Expect(err).To(BeNil())
			Expect(keyed.Dates()).To(Equal(dates[5:]))
			expectClose(keyed.Values(), []float64{110, 115, 120, 125, 130}, 0.01)
		})

		It("rejects a window larger than the series", func() {
			_, err := indicators.SimpleMovingAverages(linear.Values(), 11)
			Expect(errors.Is(err, indicators.ErrInvalidWindow)).To(BeTrue())

			_, err = indicators.SMA(linear, 10)
			Expect(errors.Is(err, indicators.ErrInvalidWindow)).To(BeTrue())
		})
	})

	Context("drawdowns", func() {
		DescribeTable("vector form",
			func(window int, expected []float64) {
				mdd, err := indicators.MaximumDrawdowns(choppyV, window)
				Expect(err).To(BeNil())
				Expect(mdd).To(Equal(expected))
			},
			Entry("window of 2", 2, []float64{10, 0, 20, 0, 0, 40, 10, 0, 0}),
			Entry("window of 4", 4, []float64{20, 20, 20, 40, 50, 50, 10}),
		)

		It("keys the drawdown after its window", func() {
			mdd, err := indicators.MaxDrawdown(choppy, 4)
			Expect(err).To(BeNil())
			Expect(mdd.Dates()).To(Equal(dates[4:]))
			Expect(mdd.Values()).To(Equal([]float64{20, 20, 20, 40, 50, 50}))
		})
	})

	Context("changes", func() {
		It("computes percent changes", func() {
			pct, err := indicators.PctChanges(choppyV)
			Expect(err).To(BeNil())
			expectClose(pct, []float64{-0.1, 20.0 / 90.0, -20.0 / 110.0, 30.0 / 90.0, 20.0 / 120.0,
				-40.0 / 140.0, -0.1, 50.0 / 90.0, 5.0 / 140.0}, 1e-12)
		})

		It("keys percent changes two dates later", func() {
			pct, err := indicators.PctChange(choppy)
			Expect(err).To(BeNil())
			Expect(pct.Dates()).To(Equal(dates[2:]))
			expectClose(pct.Values(), []float64{-0.1, 20.0 / 90.0, -20.0 / 110.0, 30.0 / 90.0,
				20.0 / 120.0, -40.0 / 140.0, -0.1, 50.0 / 90.0}, 1e-12)
		})

		It("computes log returns", func() {
			lr, err := indicators.LogReturn(series(100, 110, 121, 100))
			Expect(err).To(BeNil())
			expectClose(lr.Values(), []float64{math.Log(1.1), math.Log(1.1)}, 1e-12)
		})

		It("needs enough values", func() {
			_, err := indicators.PctChange(series(1, 2))
			Expect(errors.Is(err, indicators.ErrNotEnoughData)).To(BeTrue())
			_, err = indicators.LogReturns([]float64{1})
			Expect(errors.Is(err, indicators.ErrNotEnoughData)).To(BeTrue())
		})
	})

	Context("volatility", func() {
		It("computes the population standard deviation", func() {
			vols, err := indicators.Volatilities(choppyV, 4)
			Expect(err).To(BeNil())
			expectClose(vols, []float64{8.29, 12.99, 18.03, 19.20, 19.20, 22.78, 24.08}, 0.01)
		})

		It("keys volatility after its window", func() {
			vols, err := indicators.Volatility(choppy, 4)
			Expect(err).To(BeNil())
			Expect(vols.Dates()).To(Equal(dates[4:]))
			expectClose(vols.Values(), []float64{8.29, 12.99, 18.03, 19.20, 19.20, 22.78}, 0.01)
		})

		It("requires a window of at least two", func() {
			_, err := indicators.Volatilities(choppyV, 1)
			Expect(errors.Is(err, indicators.ErrInvalidWindow)).To(BeTrue())
		})
	})

	Context("relative strength", func() {
		prices := []float64{283.46, 280.69, 285.48, 294.08, 293.90, 299.92, 301.15, 284.45, 294.09, 302.77, 301.97,
			306.85, 305.02, 301.06, 291.97, 284.18, 286.48, 284.54, 276.82, 284.49, 275.01, 279.07}
		expected := []float64{55.37, 50.07, 51.55, 50.20, 45.14, 50.48, 44.69, 47.47}

		It("uses Wilder smoothing", func() {
			rsis, err := indicators.RSIs(prices, 14)
			Expect(err).To(BeNil())
			expectClose(rsis, expected, 0.01)
		})

		It("keys the index after its window", func() {
			rsi, err := indicators.RSI(series(prices...), 14)
			Expect(err).To(BeNil())
			Expect(rsi.Dates()).To(Equal(tradingDays(len(prices))[14:]))
			expectClose(rsi.Values(), expected, 0.01)
		})
	})
})
