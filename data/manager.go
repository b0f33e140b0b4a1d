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
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Manager routes history requests to a registered provider
type Manager struct {
	providers map[string]Provider
	active    string
}

type quoteResult struct {
	Ticker  string
	History *PriceHistory
	Err     error
}

// NewManager creates a manager; the first registered provider becomes active
func NewManager(providers ...Provider) *Manager {
	m := &Manager{
		providers: make(map[string]Provider, len(providers)),
	}
	for _, p := range providers {
		m.RegisterDataProvider(p)
	}
	return m
}

// RegisterDataProvider add a data provider to the system
func (m *Manager) RegisterDataProvider(p Provider) {
	if m.active == "" {
		m.active = p.Name()
	}
	m.providers[p.Name()] = p
}

// Use selects the provider answering subsequent requests
func (m *Manager) Use(name string) error {
	if _, ok := m.providers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	m.active = name
	return nil
}

// Active returns the name of the provider answering requests
func (m *Manager) Active() string {
	return m.active
}

// Providers returns the registered provider names sorted alphabetically
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// History loads the price history of a single symbol
func (m *Manager) History(ctx context.Context, symbol string, begin, end time.Time) (*PriceHistory, error) {
	provider, ok := m.providers[m.active]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, m.active)
	}
	if err := checkRange(begin, end); err != nil {
		return nil, err
	}
	return provider.History(ctx, strings.ToUpper(symbol), NormalizeDate(begin), NormalizeDate(end))
}

// Histories downloads every symbol concurrently. The first error encountered
// is returned after all downloads finish.
func (m *Manager) Histories(ctx context.Context, symbols []string, begin, end time.Time) (map[string]*PriceHistory, error) {
	unique := make(map[string]struct{}, len(symbols))
	for _, symbol := range symbols {
		unique[strings.ToUpper(symbol)] = struct{}{}
	}

	ch := make(chan quoteResult, len(unique))
	for symbol := range unique {
		go func(symbol string) {
			history, err := m.History(ctx, symbol, begin, end)
			ch <- quoteResult{Ticker: symbol, History: history, Err: err}
		}(symbol)
	}

	res := make(map[string]*PriceHistory, len(unique))
	var firstErr error
	for range unique {
		v := <-ch
		if v.Err != nil {
			log.Warn().Str("Ticker", v.Ticker).Err(v.Err).Msg("cannot download ticker data")
			if firstErr == nil {
				firstErr = v.Err
			}
			continue
		}
		res[v.Ticker] = v.History
	}

	if firstErr != nil {
		return nil, firstErr
	}
	return res, nil
}
