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
	"net/http"
	"os"

	"github.com/jarcoal/httpmock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/dca-backtest/data"
)

var _ = Describe("Yahoo", func() {
	var (
		client *http.Client
		yahoo  *data.Yahoo
		ctx    context.Context
	)

	chartURL := `=~^https://query2\.finance\.yahoo\.com/v8/finance/chart/SPY`

	BeforeEach(func() {
		client = &http.Client{}
		httpmock.ActivateNonDefault(client)
		yahoo = data.NewYahoo(data.WithYahooHTTPClient(client), data.WithYahooRateLimit(100))
		ctx = context.Background()
	})

	AfterEach(func() {
		httpmock.DeactivateAndReset()
	})

	It("parses the chart response", func() {
		content, err := os.ReadFile("../testdata/yahoo_spy.json")
		Expect(err).To(BeNil())
		httpmock.RegisterResponder("GET", chartURL, httpmock.NewBytesResponder(200, content))

		history, err := yahoo.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 18))
		Expect(err).To(BeNil())
		Expect(httpmock.GetTotalCallCount()).To(Equal(1))

		Expect(history.Symbol).To(Equal("SPY"))
		Expect(history.Dates()).To(Equal(fixtureDates()))
		Expect(history.Closes().Values()).To(Equal(fixtureCloses))
		Expect(history.Opens().Values()[5]).To(Equal(140.0))

		div, ok := history.DividendOn(date(2021, 1, 8))
		Expect(ok).To(BeTrue())
		Expect(div).To(Equal(1.5))
	})

	It("sends the requested range", func() {
		content, err := os.ReadFile("../testdata/yahoo_spy.json")
		Expect(err).To(BeNil())
		httpmock.RegisterResponder("GET", chartURL, func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			Expect(q.Get("period1")).To(Equal("1609718400"))
			Expect(q.Get("period2")).To(Equal("1611014400"))
			Expect(q.Get("interval")).To(Equal("1d"))
			Expect(q.Get("events")).To(Equal("div"))
			return httpmock.NewBytesResponse(200, content), nil
		})

		_, err = yahoo.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 18))
		Expect(err).To(BeNil())
	})

	It("returns an APIError for error statuses", func() {
		content, err := os.ReadFile("../testdata/yahoo_not_found.json")
		Expect(err).To(BeNil())
		httpmock.RegisterResponder("GET", chartURL, httpmock.NewBytesResponder(404, content))

		_, err = yahoo.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 18))
		var apiErr *data.APIError
		Expect(errors.As(err, &apiErr)).To(BeTrue())
		Expect(apiErr.StatusCode).To(Equal(404))
		Expect(apiErr.Message).To(Equal("No data found, symbol may be delisted"))
	})

	It("rejects malformed bodies", func() {
		httpmock.RegisterResponder("GET", chartURL, httpmock.NewStringResponder(200, "<html>"))

		_, err := yahoo.History(ctx, "SPY", date(2021, 1, 4), date(2021, 1, 18))
		Expect(errors.Is(err, data.ErrUnexpectedResponse)).To(BeTrue())
	})

	It("rejects inverted ranges without a request", func() {
		_, err := yahoo.History(ctx, "SPY", date(2021, 1, 18), date(2021, 1, 4))
		Expect(errors.Is(err, data.ErrInvalidTimeRange)).To(BeTrue())
		Expect(httpmock.GetTotalCallCount()).To(Equal(0))
	})
})
