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

package data

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/penny-vault/dca-backtest/observability/opentelemetry"
)

const (
	YahooBaseURL   = "https://query2.finance.yahoo.com"
	YahooTimeout   = 30 * time.Second
	YahooRateLimit = 2 // requests per second
	yahooUserAgent = "Mozilla/5.0 (compatible; dcabt/1.0)"
)

// Yahoo downloads daily bars and dividends from the Yahoo Finance chart API
type Yahoo struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type YahooOption func(*Yahoo)

func WithYahooBaseURL(baseURL string) YahooOption {
	return func(y *Yahoo) {
		y.baseURL = baseURL
	}
}

func WithYahooHTTPClient(client *http.Client) YahooOption {
	return func(y *Yahoo) {
		y.httpClient = client
	}
}

// WithYahooRateLimit caps the number of requests per second
func WithYahooRateLimit(requestsPerSecond int) YahooOption {
	return func(y *Yahoo) {
		y.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

func NewYahoo(opts ...YahooOption) *Yahoo {
	y := &Yahoo{
		baseURL: YahooBaseURL,
		httpClient: &http.Client{
			Timeout: YahooTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(YahooRateLimit), YahooRateLimit),
	}

	for _, opt := range opts {
		opt(y)
	}

	return y
}

type yahooChartResponse struct {
	Chart struct {
		Result []yahooChartResult `json:"result"`
		Error  *yahooChartError   `json:"error"`
	} `json:"chart"`
}

type yahooChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type yahooChartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		Currency  string `json:"currency"`
		GMTOffset int64  `json:"gmtoffset"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Open  []*float64 `json:"open"`
			Low   []*float64 `json:"low"`
			High  []*float64 `json:"high"`
			Close []*float64 `json:"close"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

func (y *Yahoo) Name() string {
	return ProviderYahoo
}

// History downloads the daily history of symbol between begin and end
func (y *Yahoo) History(ctx context.Context, symbol string, begin, end time.Time) (*PriceHistory, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "yahoo.History")
	defer span.End()

	span.SetAttributes(
		attribute.String("Symbol", symbol),
		attribute.String("Begin", begin.Format("2006-01-02")),
		attribute.String("End", end.Format("2006-01-02")),
	)

	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if err := checkRange(begin, end); err != nil {
		span.SetStatus(codes.Error, "invalid time range")
		return nil, err
	}

	if err := y.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limit wait failed")
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	endpoint := fmt.Sprintf("/v8/finance/chart/%s", url.PathEscape(symbol))
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(begin.Unix(), 10))
	// period2 is exclusive; extend it so the end date is included
	params.Set("period2", strconv.FormatInt(end.AddDate(0, 0, 1).Unix(), 10))
	params.Set("interval", "1d")
	params.Set("events", "div")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?%s", y.baseURL, endpoint, params.Encode()), nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create request")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", yahooUserAgent)

	subLog.Debug().Str("Endpoint", endpoint).Msg("yahoo chart request")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		msg := "http request to yahoo failed"
		span.SetStatus(codes.Error, msg)
		subLog.Error().Err(err).Msg(msg)
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not read response body")
		return nil, err
	}

	var chart yahooChartResponse
	decodeErr := json.Unmarshal(body, &chart)

	if resp.StatusCode >= 400 {
		span.SetAttributes(attribute.Int("StatusCode", resp.StatusCode))
		msg := string(body)
		if decodeErr == nil && chart.Chart.Error != nil {
			msg = chart.Chart.Error.Description
		}
		span.SetStatus(codes.Error, "yahoo returned an error status")
		subLog.Error().Int("HTTPResponseStatusCode", resp.StatusCode).Msg("yahoo returned an error status")
		return nil, &APIError{StatusCode: resp.StatusCode, Message: msg, Endpoint: endpoint}
	}

	if decodeErr != nil {
		span.RecordError(decodeErr)
		span.SetStatus(codes.Error, "could not decode yahoo response")
		subLog.Error().Err(decodeErr).Msg("could not decode yahoo response")
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedResponse, decodeErr)
	}

	if chart.Chart.Error != nil {
		span.SetStatus(codes.Error, chart.Chart.Error.Description)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: chart.Chart.Error.Description, Endpoint: endpoint}
	}

	if len(chart.Chart.Result) == 0 {
		span.SetStatus(codes.Error, "no results returned")
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	history, err := chart.Chart.Result[0].history(symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed chart result")
		return nil, err
	}

	subLog.Debug().Object("History", history).Msg("downloaded history")
	return history, nil
}

// history converts the chart result into a PriceHistory. Bars with a missing
// price are dropped; timestamps are shifted into the exchange time zone and
// truncated to the calendar day.
func (r *yahooChartResult) history(symbol string) (*PriceHistory, error) {
	if r.Meta.Symbol != "" {
		symbol = r.Meta.Symbol
	}

	if len(r.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("%w: %s has no quote indicators", ErrMalformedInput, symbol)
	}
	quote := r.Indicators.Quote[0]
	var adjCloses []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adjCloses = r.Indicators.AdjClose[0].AdjClose
	}

	n := len(r.Timestamp)
	if len(quote.Open) != n || len(quote.Low) != n || len(quote.High) != n || len(quote.Close) != n {
		return nil, fmt.Errorf("%w: %s quote arrays do not match %d timestamps", ErrMalformedInput, symbol, n)
	}
	if adjCloses != nil && len(adjCloses) != n {
		return nil, fmt.Errorf("%w: %s adjclose array does not match %d timestamps", ErrMalformedInput, symbol, n)
	}

	dividends := make(map[time.Time]float64, len(r.Events.Dividends))
	for key, div := range r.Events.Dividends {
		ts := div.Date
		if ts == 0 {
			parsed, err := strconv.ParseInt(key, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: dividend key %q", ErrMalformedInput, key)
			}
			ts = parsed
		}
		dividends[r.day(ts)] += div.Amount
	}

	bars := make([]bar, 0, n)
	for idx, ts := range r.Timestamp {
		if quote.Open[idx] == nil || quote.Low[idx] == nil || quote.High[idx] == nil || quote.Close[idx] == nil {
			continue
		}

		b := bar{
			date:  r.day(ts),
			open:  *quote.Open[idx],
			low:   *quote.Low[idx],
			high:  *quote.High[idx],
			close: *quote.Close[idx],
		}
		b.adjClose = b.close
		if adjCloses != nil && adjCloses[idx] != nil {
			b.adjClose = *adjCloses[idx]
		}

		b.dividend = dividends[b.date]

		// the chart API sometimes repeats the current day
		if len(bars) > 0 && !b.date.After(bars[len(bars)-1].date) {
			bars[len(bars)-1] = b
			continue
		}
		bars = append(bars, b)
	}

	return historyFromBars(symbol, bars)
}

func (r *yahooChartResult) day(ts int64) time.Time {
	return NormalizeDate(time.Unix(ts+r.Meta.GMTOffset, 0).UTC())
}
