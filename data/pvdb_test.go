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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/data/database"
	"github.com/penny-vault/dca-backtest/pgxmockhelper"
)

var _ = Describe("PVDB tests", func() {
	var (
		dbPool pgxmock.PgxConnIface
		pvdb   *data.PvDb
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)
		pvdb = data.NewPvDb()
		ctx = context.Background()
	})

	Context("when interacting with pvdb", func() {
		It("loads prices and dividends", func() {
			pgxmockhelper.MockDBEodQuery(dbPool, "../testdata/spy_eod.csv", date(2021, 1, 4), date(2021, 1, 15))

			history, err := pvdb.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
			Expect(err).To(BeNil())
			Expect(history.Dates()).To(Equal(fixtureDates()))
			Expect(history.Closes().Values()).To(Equal(fixtureCloses))
			Expect(history.Lows().Values()[5]).To(Equal(79.0))

			div, ok := history.DividendOn(date(2021, 1, 8))
			Expect(ok).To(BeTrue())
			Expect(div).To(Equal(1.5))
			Expect(history.Dividends().Len()).To(Equal(1))

			Expect(dbPool.ExpectationsWereMet()).To(Succeed())
			Expect(database.NumOpenTransactions()).To(Equal(0))
		})

		It("returns not found when no rows match", func() {
			pgxmockhelper.MockDBEodQuery(dbPool, "../testdata/spy_eod.csv", date(2020, 1, 1), date(2020, 1, 31))

			_, err := pvdb.History(ctx, "SPY", date(2020, 1, 1), date(2020, 1, 31))
			Expect(errors.Is(err, data.ErrNotFound)).To(BeTrue())
		})

		It("rolls back when the query fails", func() {
			dbPool.ExpectBegin()
			dbPool.ExpectQuery("SELECT event_date").WillReturnError(errors.New("relation eod does not exist"))
			dbPool.ExpectRollback()

			_, err := pvdb.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 15))
			Expect(err).NotTo(BeNil())
			Expect(dbPool.ExpectationsWereMet()).To(Succeed())
			Expect(database.NumOpenTransactions()).To(Equal(0))
		})
	})
})
