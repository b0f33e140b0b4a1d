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

package strategy_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/dca-backtest/strategy"
)

var _ = Describe("Config", func() {
	It("loads a dca config and fills defaults", func() {
		cfg, err := strategy.LoadConfig("testdata/dca.toml")
		Expect(err).To(BeNil())
		Expect(cfg.Kind).To(Equal(strategy.KindDCA))
		Expect(cfg.Name).To(Equal("balanced-dca"))
		Expect(cfg.DCA.StartingAmount).To(Equal(1000.0))
		Expect(cfg.DCA.RecurringAmount).To(Equal(100.0))
		Expect(cfg.DCA.RebalanceEvery).To(Equal(20))
		Expect(cfg.DCA.Schedule).To(Equal("@monthbegin"))
		Expect(cfg.DCA.DividendReinvestRate).To(Equal(0.7))
		Expect(cfg.DCA.Allocations).To(Equal(map[string]float64{"SPY": 0.6, "TLT": 0.4}))
		Expect(cfg.Tickers()).To(Equal([]string{"SPY", "TLT"}))
	})

	It("loads an sma config", func() {
		cfg, err := strategy.LoadConfig("testdata/sma.toml")
		Expect(err).To(BeNil())
		Expect(cfg.Kind).To(Equal(strategy.KindSMA))
		Expect(cfg.Name).To(Equal(strategy.KindSMA))
		Expect(cfg.SMA.Window).To(Equal(3))
		Expect(cfg.SMA.DipThreshold).To(Equal(0.07))
		Expect(cfg.SMA.Deadline).To(Equal("@monthend"))
	})

	It("loads a lump sum config", func() {
		cfg, err := strategy.LoadConfig("testdata/lumpsum.toml")
		Expect(err).To(BeNil())
		Expect(cfg.Kind).To(Equal(strategy.KindLumpSum))
		Expect(cfg.LumpSum.InitialAmount).To(Equal(10000.0))
		Expect(cfg.LumpSum.DividendReinvestRate).To(Equal(0.0))
		Expect(cfg.Tickers()).To(Equal([]string{"SPY", "TLT"}))
	})

	It("rejects allocations that do not sum to one", func() {
		_, err := strategy.LoadConfig("testdata/bad_allocation.toml")
		Expect(errors.Is(err, strategy.ErrInvalidAllocation)).To(BeTrue())
	})

	It("fails when the file is missing", func() {
		_, err := strategy.LoadConfig("testdata/does-not-exist.toml")
		Expect(err).ToNot(BeNil())
	})

	DescribeTable("validation",
		func(doc string, expected error) {
			_, err := strategy.ParseConfig([]byte(doc))
			Expect(errors.Is(err, expected)).To(BeTrue(), "got %v", err)
		},
		Entry("unknown kind", "kind = \"momentum\"\n[dca.allocations]\nSPY = 1.0\n", strategy.ErrUnknownKind),
		Entry("no tickers", "kind = \"dca\"\n", strategy.ErrInvalidAllocation),
		Entry("non-positive allocation", "kind = \"dca\"\n[dca.allocations]\nSPY = 1.0\nTLT = 0.0\n", strategy.ErrInvalidAllocation),
		Entry("negative amount", "kind = \"dca\"\n[dca]\nrecurring_amount = -5.0\n[dca.allocations]\nSPY = 1.0\n", strategy.ErrInvalidConfig),
		Entry("bad schedule", "kind = \"dca\"\n[dca]\nschedule = \"@fortnightly\"\n[dca.allocations]\nSPY = 1.0\n", strategy.ErrInvalidConfig),
		Entry("bad window", "kind = \"sma\"\n[dca.allocations]\nSPY = 1.0\n[sma]\nwindow = 0\n", strategy.ErrInvalidConfig),
		Entry("missing initial amount", "kind = \"lumpsum\"\n[lumpsum.allocations]\nSPY = 1.0\n", strategy.ErrInvalidConfig),
		Entry("malformed toml", "kind = ", strategy.ErrInvalidConfig),
	)
})

var _ = Describe("Registry", func() {
	It("describes the built-in strategies", func() {
		info, err := strategy.Lookup(strategy.KindDCA)
		Expect(err).To(BeNil())
		Expect(info.Name).To(Equal("Dollar Cost Averaging"))
		Expect(info.Arguments).To(HaveKey("recurring_amount"))
		Expect(info.Factory).ToNot(BeNil())

		Expect(strategy.StrategyList).To(HaveLen(3))
		Expect(strategy.StrategyList[0].Shortcode).To(Equal(strategy.KindDCA))
		Expect(strategy.StrategyList[1].Shortcode).To(Equal(strategy.KindLumpSum))
		Expect(strategy.StrategyList[2].Shortcode).To(Equal(strategy.KindSMA))
	})

	It("does not know other strategies", func() {
		_, err := strategy.Lookup("momentum")
		Expect(errors.Is(err, strategy.ErrStrategyNotDefined)).To(BeTrue())
	})

	It("is idempotent", func() {
		strategy.InitializeStrategyMap()
		strategy.InitializeStrategyMap()
		Expect(strategy.StrategyList).To(HaveLen(3))
	})
})
