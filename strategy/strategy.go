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

// Package strategy drives a portfolio engine through a backtest. Each
// TransactionPolicy decides which buys and sells to place on a date; Run walks
// the trading calendar and finalizes the engine once every date is applied.
package strategy

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/rs/zerolog/log"
)

var (
	ErrUnknownKind        = errors.New("unknown strategy kind")
	ErrInvalidAllocation  = errors.New("invalid allocation")
	ErrMissingHistory     = errors.New("no price history for allocated ticker")
	ErrInvalidConfig      = errors.New("invalid strategy configuration")
	ErrDatesOutOfOrder    = errors.New("backtest dates must be ascending")
	ErrNoDates            = errors.New("no dates to backtest")
	ErrStrategyNotDefined = errors.New("strategy info not found")
)

const (
	KindDCA     = "dca"
	KindSMA     = "sma"
	KindLumpSum = "lumpsum"
)

// TransactionPolicy places the transactions of a strategy on one date at a
// time. Dates are applied in ascending order.
type TransactionPolicy interface {
	Name() string
	Apply(date time.Time) error
}

// Factory builds a policy over engine for the assets keyed by ticker
type Factory func(cfg Config, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (TransactionPolicy, error)

// Argument an argument to a strategy
type Argument struct {
	Name        string `toml:"name" json:"name"`
	Description string `toml:"description" json:"description"`
	Typecode    string `toml:"typecode" json:"typecode"`
	Default     string `toml:"default" json:"default"`
}

// Info information about a strategy
type Info struct {
	Name        string              `toml:"name" json:"name"`
	Shortcode   string              `toml:"shortcode" json:"shortcode"`
	Description string              `toml:"description" json:"description"`
	Arguments   map[string]Argument `toml:"arguments" json:"arguments"`
	Factory     Factory             `toml:"-" json:"-"`
}

//go:embed info/*.toml
var resources embed.FS

var (
	registerOnce sync.Once
	registryMu   sync.RWMutex

	// StrategyList List of all strategies
	StrategyList = []Info{}

	// StrategyMap Map of strategies
	StrategyMap = make(map[string]*Info)
)

// InitializeStrategyMap registers the built-in strategies. It is safe to call
// more than once.
func InitializeStrategyMap() {
	registerOnce.Do(func() {
		Register(KindDCA, dcaFactory)
		Register(KindSMA, smaFactory)
		Register(KindLumpSum, lumpSumFactory)
	})
}

// Register loads info/<shortcode>.toml and associates it with factory
func Register(shortcode string, factory Factory) {
	fn := fmt.Sprintf("info/%s.toml", shortcode)
	doc, err := resources.ReadFile(fn)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("failed to read strategy info")
		doc = []byte{}
	}

	var info Info
	if err := toml.Unmarshal(doc, &info); err != nil {
		log.Error().Err(err).Str("File", fn).Msg("failed to parse toml file")
	}

	if info.Shortcode == "" {
		info.Shortcode = shortcode
	}
	info.Factory = factory

	registryMu.Lock()
	defer registryMu.Unlock()

	StrategyList = append(StrategyList, info)
	sort.SliceStable(StrategyList, func(i, j int) bool { return StrategyList[i].Shortcode < StrategyList[j].Shortcode })
	for idx := range StrategyList {
		StrategyMap[StrategyList[idx].Shortcode] = &StrategyList[idx]
	}
}

// Lookup returns the registered strategy with the given shortcode
func Lookup(shortcode string) (*Info, error) {
	InitializeStrategyMap()

	registryMu.RLock()
	defer registryMu.RUnlock()

	info, ok := StrategyMap[shortcode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrStrategyNotDefined, shortcode)
	}
	return info, nil
}

// New builds the policy selected by cfg.Kind
func New(cfg Config, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (TransactionPolicy, error) {
	info, err := Lookup(cfg.Kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
	return info.Factory(cfg, engine, assets)
}

func dcaFactory(cfg Config, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (TransactionPolicy, error) {
	return NewDCA(cfg.Name, cfg.DCA, engine, assets)
}

func smaFactory(cfg Config, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (TransactionPolicy, error) {
	return NewSMA(cfg.Name, cfg.DCA, cfg.SMA, engine, assets)
}

func lumpSumFactory(cfg Config, engine *portfolio.Engine, assets map[string]*data.PriceHistory) (TransactionPolicy, error) {
	return NewLumpSum(cfg.Name, cfg.LumpSum, engine, assets)
}
