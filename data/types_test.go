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

package data_test

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/timeseries"
)

var _ = Describe("PriceHistory", func() {
	var (
		dates   []time.Time
		opens   []float64
		lows    []float64
		highs   []float64
		history *data.PriceHistory
	)

	BeforeEach(func() {
		dates = fixtureDates()
		opens = []float64{100, 90, 110, 90, 120, 140, 100, 90, 140, 145}
		lows = []float64{1, 2.12, 3.14, 40, 5, 6, 7.10, 8.01, 9, 10}
		highs = []float64{1.3, 2, 3, 42, 5.05, 6.32, 7, 8, 9.9, 10}

		var err error
		history, err = data.NewPriceHistory("TEST_TICKER", dates, opens, lows, highs, fixtureCloses, fixtureCloses,
			map[time.Time]float64{date(2021, 1, 8): 0.5})
		Expect(err).To(BeNil())
	})

	It("rejects sequences of different lengths", func() {
		_, err := data.NewPriceHistory("TEST_TICKER", dates, opens[:9], lows, highs, fixtureCloses, fixtureCloses, nil)
		Expect(errors.Is(err, data.ErrMalformedInput)).To(BeTrue())

		_, err = data.NewPriceHistory("TEST_TICKER", dates, opens, lows, highs, fixtureCloses, fixtureCloses[:3], nil)
		Expect(errors.Is(err, data.ErrMalformedInput)).To(BeTrue())
	})

	It("rejects unsorted dates", func() {
		dates[0], dates[1] = dates[1], dates[0]
		_, err := data.NewPriceHistory("TEST_TICKER", dates, opens, lows, highs, fixtureCloses, fixtureCloses, nil)
		Expect(errors.Is(err, data.ErrMalformedInput)).To(BeTrue())
	})

	It("computes the open close spread", func() {
		expected := timeseries.Must(timeseries.New(dates, []float64{0, 10, -10, 0, 10, -60, 2.23, 0.01, -0.15, 0}))
		Expect(history.OpenCloseSpread().Equal(expected)).To(BeTrue())
	})

	It("computes the high low spread", func() {
		expected := timeseries.Must(timeseries.New(dates, []float64{0.3, -0.12, -0.14, 2, 0.05, 0.32, -0.1, -0.01, 0.9, 0}))
		Expect(history.HighLowSpread().Equal(expected)).To(BeTrue())
	})

	It("looks up closes as of a date", func() {
		Expect(history.CloseOn(date(2021, 1, 7))).To(Equal(90.0))
		// saturday falls back to friday's close
		Expect(history.CloseOn(date(2021, 1, 9))).To(Equal(130.0))
		Expect(history.CloseOn(date(2021, 1, 1))).To(Equal(0.0))
	})

	It("looks up dividends on exact dates", func() {
		div, ok := history.DividendOn(date(2021, 1, 8))
		Expect(ok).To(BeTrue())
		Expect(div).To(Equal(0.5))

		_, ok = history.DividendOn(date(2021, 1, 11))
		Expect(ok).To(BeFalse())
	})

	It("stores dates as UTC midnight of their calendar day", func() {
		cet := time.FixedZone("CET", 3600)
		local := []time.Time{
			time.Date(2021, 1, 4, 0, 0, 0, 0, cet),
			time.Date(2021, 1, 5, 15, 30, 0, 0, cet),
		}
		prices := []float64{100, 101}
		h, err := data.NewPriceHistory("LOCAL", local, prices, prices, prices, prices, prices,
			map[time.Time]float64{local[1]: 0.25})
		Expect(err).To(BeNil())

		Expect(h.Dates()).To(Equal([]time.Time{date(2021, 1, 4), date(2021, 1, 5)}))
		Expect(h.CloseOn(local[0])).To(Equal(100.0))
		Expect(h.CloseOn(date(2021, 1, 5))).To(Equal(101.0))

		div, ok := h.DividendOn(local[1])
		Expect(ok).To(BeTrue())
		Expect(div).To(Equal(0.25))
	})

	It("returns series by metric", func() {
		closes, err := history.Metric(data.MetricClose)
		Expect(err).To(BeNil())
		Expect(closes.Values()).To(Equal(fixtureCloses))

		_, err = history.Metric(data.Metric("Volume"))
		Expect(errors.Is(err, data.ErrUnsupportedMetric)).To(BeTrue())
	})

	It("survives a JSON round trip", func() {
		raw, err := json.Marshal(history)
		Expect(err).To(BeNil())

		restored := &data.PriceHistory{}
		Expect(json.Unmarshal(raw, restored)).To(Succeed())
		Expect(restored.Symbol).To(Equal("TEST_TICKER"))
		Expect(restored.Dates()).To(Equal(dates))
		Expect(restored.Closes().Equal(history.Closes())).To(BeTrue())
		Expect(restored.Dividends().Map()).To(Equal(history.Dividends().Map()))
	})
})
