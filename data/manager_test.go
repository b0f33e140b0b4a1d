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
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/dca-backtest/data"
)

var _ = Describe("Manager", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("uses the first registered provider by default", func() {
		first := &stubProvider{name: "first"}
		second := &stubProvider{name: "second"}
		manager := data.NewManager(first, second)

		Expect(manager.Active()).To(Equal("first"))
		Expect(manager.Providers()).To(Equal([]string{"first", "second"}))

		_, err := manager.History(ctx, "spy", date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())
		Expect(first.Calls()).To(Equal(1))

		Expect(manager.Use("second")).To(Succeed())
		_, err = manager.History(ctx, "spy", date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())
		Expect(second.Calls()).To(Equal(1))
	})

	It("rejects unknown providers", func() {
		manager := data.NewManager(&stubProvider{name: "first"})
		Expect(errors.Is(manager.Use("missing"), data.ErrUnknownProvider)).To(BeTrue())

		_, err := data.NewManager().History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
		Expect(errors.Is(err, data.ErrUnknownProvider)).To(BeTrue())
	})

	It("downloads several symbols concurrently", func() {
		stub := &stubProvider{name: "stub"}
		manager := data.NewManager(stub)

		histories, err := manager.Histories(ctx, []string{"spy", "QQQ", "SPY"}, date(2021, 1, 4), date(2021, 1, 15))
		Expect(err).To(BeNil())
		Expect(histories).To(HaveLen(2))
		Expect(histories).To(HaveKey("SPY"))
		Expect(histories).To(HaveKey("QQQ"))
		Expect(stub.Calls()).To(Equal(2))
	})

	It("returns the download error", func() {
		manager := data.NewManager(&stubProvider{name: "stub", err: data.ErrNotFound})
		_, err := manager.Histories(ctx, []string{"SPY", "QQQ"}, date(2021, 1, 4), date(2021, 1, 15))
		Expect(errors.Is(err, data.ErrNotFound)).To(BeTrue())
	})

	It("rejects inverted ranges", func() {
		manager := data.NewManager(&stubProvider{name: "stub"})
		_, err := manager.History(ctx, "SPY", date(2021, 1, 15), date(2021, 1, 4))
		Expect(errors.Is(err, data.ErrInvalidTimeRange)).To(BeTrue())
	})
})

var _ = Describe("Calendar helpers", func() {
	It("unions trading days", func() {
		a, err := data.NewPriceHistory("A", []time.Time{date(2021, 1, 4), date(2021, 1, 6)}, []float64{1, 1}, []float64{1, 1}, []float64{1, 1}, []float64{1, 1}, []float64{1, 1}, nil)
		Expect(err).To(BeNil())
		b, err := data.NewPriceHistory("B", []time.Time{date(2021, 1, 5), date(2021, 1, 6)}, []float64{1, 1}, []float64{1, 1}, []float64{1, 1}, []float64{1, 1}, []float64{1, 1}, nil)
		Expect(err).To(BeNil())

		Expect(data.UnionDates(a, b, nil)).To(Equal([]time.Time{date(2021, 1, 4), date(2021, 1, 5), date(2021, 1, 6)}))
	})

	It("finds month boundaries", func() {
		calendar := []time.Time{
			date(2021, 1, 28), date(2021, 1, 29), date(2021, 2, 1), date(2021, 2, 2),
			date(2021, 2, 26), date(2021, 3, 1),
		}
		Expect(data.MonthBeginDates(calendar)).To(Equal([]time.Time{date(2021, 1, 28), date(2021, 2, 1), date(2021, 3, 1)}))
		Expect(data.MonthEndDates(calendar)).To(Equal([]time.Time{date(2021, 1, 29), date(2021, 2, 26), date(2021, 3, 1)}))
	})

	It("filters with tradecron specs", func() {
		days, err := data.FilterDays("@weekbegin", fixtureDates())
		Expect(err).To(BeNil())
		Expect(days).To(Equal([]time.Time{date(2021, 1, 4), date(2021, 1, 11)}))

		_, err = data.FilterDays("@bogus", fixtureDates())
		Expect(err).NotTo(BeNil())
	})
})
