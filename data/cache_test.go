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
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/dca-backtest/common"
	"github.com/penny-vault/dca-backtest/data"
)

var _ = Describe("Cached", func() {
	var (
		stub   *stubProvider
		cached *data.Cached
		ctx    context.Context
	)

	BeforeEach(func() {
		cache, err := common.NewCache(16)
		Expect(err).To(BeNil())
		stub = &stubProvider{name: "stub"}
		cached = data.NewCached(stub, cache)
		ctx = context.Background()
	})

	It("downloads once per request", func() {
		first, err := cached.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())
		second, err := cached.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())

		Expect(stub.Calls()).To(Equal(1))
		Expect(second.Symbol).To(Equal(first.Symbol))
		Expect(second.Closes().Equal(first.Closes())).To(BeTrue())

		_, ok := cached.LastFetched("SPY")
		Expect(ok).To(BeTrue())
	})

	It("keys requests by range", func() {
		_, err := cached.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())
		_, err = cached.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 14))
		Expect(err).To(BeNil())
		Expect(stub.Calls()).To(Equal(2))
	})

	It("refreshes on demand", func() {
		_, err := cached.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())
		_, err = cached.Refresh(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())
		Expect(stub.Calls()).To(Equal(2))
	})

	It("reports the wrapped provider name", func() {
		Expect(cached.Name()).To(Equal("stub"))
	})

	It("builds stable cache keys", func() {
		a := data.CacheKey("yahoo", "SPY", date(2021, 1, 4), date(2021, 1, 15))
		b := data.CacheKey("yahoo", "SPY", date(2021, 1, 4), date(2021, 1, 15))
		c := data.CacheKey("csv", "SPY", date(2021, 1, 4), date(2021, 1, 15))
		Expect(a).To(Equal(b))
		Expect(a).NotTo(Equal(c))
		Expect(a).To(HaveLen(64))
	})
})
