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
	"encoding/hex"
	"fmt"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"

	"github.com/penny-vault/dca-backtest/common"
)

// Cached wraps a provider and stores every downloaded history in a
// common.Cache keyed by provider, symbol and date range
type Cached struct {
	provider Provider
	cache    *common.Cache
	fetched  *haxmap.Map[string, time.Time]
}

func NewCached(provider Provider, cache *common.Cache) *Cached {
	return &Cached{
		provider: provider,
		cache:    cache,
		fetched:  haxmap.New[string, time.Time](),
	}
}

// Name returns the name of the wrapped provider
func (c *Cached) Name() string {
	return c.provider.Name()
}

// CacheKey returns the hex encoded blake3 hash identifying a request
func CacheKey(provider, symbol string, begin, end time.Time) string {
	h := blake3.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", provider, symbol, begin.Format("2006-01-02"), end.Format("2006-01-02"))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Cached) History(ctx context.Context, symbol string, begin, end time.Time) (*PriceHistory, error) {
	key := CacheKey(c.provider.Name(), symbol, begin, end)
	subLog := log.With().Str("Symbol", symbol).Str("CacheKey", key).Logger()

	raw, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		subLog.Warn().Err(err).Msg("cache lookup failed")
	}
	if ok {
		history := &PriceHistory{}
		if err := json.Unmarshal(raw, history); err == nil {
			subLog.Debug().Msg("price history served from cache")
			return history, nil
		}
		subLog.Warn().Err(err).Msg("discarding unreadable cache entry")
	}

	return c.Refresh(ctx, symbol, begin, end)
}

// Refresh downloads the history from the wrapped provider and replaces the
// cached copy
func (c *Cached) Refresh(ctx context.Context, symbol string, begin, end time.Time) (*PriceHistory, error) {
	history, err := c.provider.History(ctx, symbol, begin, end)
	if err != nil {
		return nil, err
	}

	key := CacheKey(c.provider.Name(), symbol, begin, end)
	raw, err := json.Marshal(history)
	if err != nil {
		log.Warn().Err(err).Str("Symbol", symbol).Msg("could not serialize price history")
		return history, nil
	}
	if err := c.cache.Set(ctx, key, raw); err != nil {
		log.Warn().Err(err).Str("Symbol", symbol).Msg("could not store price history in cache")
	}
	c.fetched.Set(symbol, time.Now())

	return history, nil
}

// LastFetched returns when symbol was last downloaded by this process
func (c *Cached) LastFetched(symbol string) (time.Time, bool) {
	return c.fetched.Get(symbol)
}
