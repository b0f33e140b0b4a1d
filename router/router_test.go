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

package router_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/dca-backtest/common"
	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/handler"
	"github.com/penny-vault/dca-backtest/middleware"
	"github.com/penny-vault/dca-backtest/router"
	"github.com/penny-vault/dca-backtest/strategy"
)

type stubLoader struct {
	histories map[string]*data.PriceHistory
	err       error
	requested []string
}

func (s *stubLoader) Histories(ctx context.Context, symbols []string, begin, end time.Time) (map[string]*data.PriceHistory, error) {
	s.requested = symbols
	if s.err != nil {
		return nil, s.err
	}
	res := make(map[string]*data.PriceHistory, len(symbols))
	for _, symbol := range symbols {
		if h, ok := s.histories[symbol]; ok {
			res[symbol] = h
		}
	}
	return res, nil
}

// flatHistory trades every weekday of the first quarter of 2021 at price
func flatHistory(symbol string, price float64) *data.PriceHistory {
	dates := []time.Time{}
	closes := []float64{}
	for dt := time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC); dt.Month() <= time.March; dt = dt.AddDate(0, 0, 1) {
		if dt.Weekday() == time.Saturday || dt.Weekday() == time.Sunday {
			continue
		}
		dates = append(dates, dt)
		closes = append(closes, price)
	}
	h, err := data.NewPriceHistory(symbol, dates, closes, closes, closes, closes, closes, nil)
	Expect(err).To(BeNil())
	return h
}

var _ = Describe("Router", func() {
	var (
		app    *fiber.App
		loader *stubLoader
	)

	do := func(method, target string, body []byte) (int, []byte) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req := httptest.NewRequest(method, target, reader)
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		resp, err := app.Test(req, -1)
		Expect(err).To(BeNil())
		defer resp.Body.Close()
		raw, err := io.ReadAll(resp.Body)
		Expect(err).To(BeNil())
		return resp.StatusCode, raw
	}

	backtestBody := func(allocations string) []byte {
		return []byte(fmt.Sprintf(`{
			"strategy": {
				"kind": "dca",
				"name": "api",
				"dca": {"startingAmount": 1000, "recurringAmount": 100, "allocations": %s}
			},
			"begin": "2021-01-04",
			"end": "2021-03-31"
		}`, allocations))
	}

	BeforeEach(func() {
		app = fiber.New(fiber.Config{
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		})
		app.Use(middleware.NewLogger())
		router.SetupRoutes(app)

		loader = &stubLoader{
			histories: map[string]*data.PriceHistory{
				"SPY": flatHistory("SPY", 100),
				"TLT": flatHistory("TLT", 50),
			},
		}
		handler.SetHistoryLoader(loader)
	})

	It("answers health checks", func() {
		code, raw := do(http.MethodGet, "/v1/healthz", nil)
		Expect(code).To(Equal(fiber.StatusOK))

		var ping handler.PingResponse
		Expect(json.Unmarshal(raw, &ping)).To(Succeed())
		Expect(ping.Status).To(Equal("success"))
		Expect(ping.Build.Version).To(Equal(common.CurrentVersion.String()))
	})

	It("lists the registered strategies", func() {
		code, raw := do(http.MethodGet, "/v1/strategy/", nil)
		Expect(code).To(Equal(fiber.StatusOK))

		var infos []strategy.Info
		Expect(json.Unmarshal(raw, &infos)).To(Succeed())
		shortcodes := make([]string, len(infos))
		for idx, info := range infos {
			shortcodes[idx] = info.Shortcode
		}
		Expect(shortcodes).To(Equal([]string{"dca", "lumpsum", "sma"}))
	})

	It("returns a single strategy", func() {
		code, raw := do(http.MethodGet, "/v1/strategy/dca", nil)
		Expect(code).To(Equal(fiber.StatusOK))

		var info strategy.Info
		Expect(json.Unmarshal(raw, &info)).To(Succeed())
		Expect(info.Name).To(Equal("Dollar Cost Averaging"))
		Expect(info.Arguments).To(HaveKey("recurring_amount"))
	})

	It("returns 404 for an unknown strategy", func() {
		code, _ := do(http.MethodGet, "/v1/strategy/does-not-exist", nil)
		Expect(code).To(Equal(fiber.StatusNotFound))
	})

	Context("when running a backtest", func() {
		It("returns the summary, series and journal", func() {
			code, raw := do(http.MethodPost, "/v1/backtest", backtestBody(`{"spy": 0.6, "TLT": 0.4}`))
			Expect(code).To(Equal(fiber.StatusOK), string(raw))

			var resp handler.BacktestResponse
			Expect(json.Unmarshal(raw, &resp)).To(Succeed())

			Expect(loader.requested).To(ConsistOf("SPY", "TLT"))
			Expect(resp.Name).To(Equal("api"))
			Expect(resp.Kind).To(Equal("dca"))

			// three month begins: 1100 then 100 and 100 at flat prices
			Expect(resp.TotalExpenses).To(BeNumerically("~", 1300, 1e-9))
			Expect(resp.FinalValue).To(BeNumerically("~", 1300, 1e-9))
			Expect(resp.TotalReturn).To(BeNumerically("~", 0, 1e-9))
			Expect(resp.Allocations["SPY"]).To(BeNumerically("~", 0.6, 1e-9))
			Expect(resp.Allocations["TLT"]).To(BeNumerically("~", 0.4, 1e-9))
			Expect(resp.Transactions).To(HaveLen(6))

			Expect(resp.Series).ToNot(BeEmpty())
			last := resp.Series[len(resp.Series)-1]
			Expect(last.Date).To(BeTemporally("==", time.Date(2021, 3, 31, 0, 0, 0, 0, time.UTC)))
			Expect(last.Value).To(BeNumerically("~", 1300, 1e-9))
			Expect(last.Invested).To(BeNumerically("~", 1300, 1e-9))
		})

		It("rejects allocations that do not sum to one", func() {
			code, _ := do(http.MethodPost, "/v1/backtest", backtestBody(`{"SPY": 0.6, "TLT": 0.6}`))
			Expect(code).To(Equal(fiber.StatusBadRequest))
			Expect(loader.requested).To(BeNil())
		})

		It("rejects a malformed body", func() {
			code, _ := do(http.MethodPost, "/v1/backtest", []byte(`{"strategy":`))
			Expect(code).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a malformed date", func() {
			code, _ := do(http.MethodPost, "/v1/backtest", []byte(`{"strategy":{"kind":"dca","dca":{"allocations":{"SPY":1}}},"begin":"01/04/2021"}`))
			Expect(code).To(Equal(fiber.StatusBadRequest))
		})

		It("maps unknown symbols to 404", func() {
			loader.err = fmt.Errorf("%w: XYZ", data.ErrNotFound)
			code, _ := do(http.MethodPost, "/v1/backtest", backtestBody(`{"XYZ": 1}`))
			Expect(code).To(Equal(fiber.StatusNotFound))
		})

		It("reports an unavailable service without a loader", func() {
			handler.SetHistoryLoader(nil)
			code, _ := do(http.MethodPost, "/v1/backtest", backtestBody(`{"SPY": 1}`))
			Expect(code).To(Equal(fiber.StatusServiceUnavailable))
		})
	})
})
