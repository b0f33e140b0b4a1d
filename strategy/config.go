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

package strategy

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/dca-backtest/tradecron"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDividendReinvestRate = 0.7
	DefaultDipThreshold         = 0.07
	DefaultSMAWindow            = 20

	allocationTolerance = 1e-9
)

// DCAConfig configures dollar cost averaging. RebalanceThreshold is an
// absolute difference between actual and target allocation.
type DCAConfig struct {
	StartingAmount       float64            `toml:"starting_amount" json:"startingAmount"`
	RecurringAmount      float64            `toml:"recurring_amount" json:"recurringAmount"`
	Allocations          map[string]float64 `toml:"allocations" json:"allocations"`
	RebalanceEvery       int                `toml:"rebalance_every" json:"rebalanceEvery"`
	RebalanceThreshold   float64            `toml:"rebalance_threshold" json:"rebalanceThreshold"`
	DividendReinvestRate float64            `toml:"dividend_reinvest_rate" json:"dividendReinvestRate"`
	Schedule             string             `toml:"schedule" json:"schedule"`
}

// SMAConfig holds the parameters that gate DCA buys on a moving average
type SMAConfig struct {
	Window       int     `toml:"window" json:"window"`
	DipThreshold float64 `toml:"dip_threshold" json:"dipThreshold"`
	Deadline     string  `toml:"deadline" json:"deadline"`
}

// LumpSumConfig configures a single up-front investment. RebalanceThreshold is
// relative to the target allocation.
type LumpSumConfig struct {
	InitialAmount        float64            `toml:"initial_amount" json:"initialAmount"`
	Allocations          map[string]float64 `toml:"allocations" json:"allocations"`
	RebalanceEvery       int                `toml:"rebalance_every" json:"rebalanceEvery"`
	RebalanceThreshold   float64            `toml:"rebalance_threshold" json:"rebalanceThreshold"`
	DividendReinvestRate float64            `toml:"dividend_reinvest_rate" json:"dividendReinvestRate"`
}

// Config is the on-disk description of a strategy. Kind selects which of the
// policy tables is used; the sma kind reads both [dca] and [sma].
type Config struct {
	Kind    string        `toml:"kind" json:"kind"`
	Name    string        `toml:"name" json:"name"`
	DCA     DCAConfig     `toml:"dca" json:"dca"`
	SMA     SMAConfig     `toml:"sma" json:"sma"`
	LumpSum LumpSumConfig `toml:"lumpsum" json:"lumpsum"`
}

// DefaultConfig returns a config with every optional field set. Decoding into
// it keeps the defaults for keys the document leaves out.
func DefaultConfig() Config {
	return Config{
		Kind: KindDCA,
		DCA: DCAConfig{
			DividendReinvestRate: DefaultDividendReinvestRate,
			Schedule:             tradecron.AtMonthBegin,
		},
		SMA: SMAConfig{
			Window:       DefaultSMAWindow,
			DipThreshold: DefaultDipThreshold,
			Deadline:     tradecron.AtMonthEnd,
		},
		LumpSum: LumpSumConfig{
			DividendReinvestRate: DefaultDividendReinvestRate,
		},
	}
}

// LoadConfig reads and validates a toml strategy file
func LoadConfig(fn string) (Config, error) {
	doc, err := os.ReadFile(fn)
	if err != nil {
		log.Error().Err(err).Str("File", fn).Msg("could not read strategy config")
		return Config{}, err
	}
	return ParseConfig(doc)
}

// ParseConfig decodes and validates a toml strategy document
func ParseConfig(doc []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := toml.Unmarshal(doc, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate normalizes tickers to upper case and checks the fields used by
// the selected kind
func (cfg *Config) Validate() error {
	cfg.Kind = strings.ToLower(strings.TrimSpace(cfg.Kind))
	if cfg.Name == "" {
		cfg.Name = cfg.Kind
	}

	switch cfg.Kind {
	case KindDCA:
		return cfg.DCA.validate()
	case KindSMA:
		if err := cfg.DCA.validate(); err != nil {
			return err
		}
		return cfg.SMA.validate()
	case KindLumpSum:
		return cfg.LumpSum.validate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}
}

// Tickers returns the sorted tickers the selected kind allocates to
func (cfg *Config) Tickers() []string {
	if cfg.Kind == KindLumpSum {
		return sortedTickers(cfg.LumpSum.Allocations)
	}
	return sortedTickers(cfg.DCA.Allocations)
}

func (c *DCAConfig) validate() error {
	allocations, err := validateAllocations(c.Allocations)
	if err != nil {
		return err
	}
	c.Allocations = allocations

	switch {
	case c.StartingAmount < 0:
		return fmt.Errorf("%w: starting amount must not be negative", ErrInvalidConfig)
	case c.RecurringAmount < 0:
		return fmt.Errorf("%w: recurring amount must not be negative", ErrInvalidConfig)
	case c.RebalanceEvery < 0:
		return fmt.Errorf("%w: rebalance every must not be negative", ErrInvalidConfig)
	case c.RebalanceThreshold < 0:
		return fmt.Errorf("%w: rebalance threshold must not be negative", ErrInvalidConfig)
	case c.DividendReinvestRate < 0 || c.DividendReinvestRate > 1:
		return fmt.Errorf("%w: dividend reinvest rate must be between 0 and 1", ErrInvalidConfig)
	}

	if c.Schedule == "" {
		c.Schedule = tradecron.AtMonthBegin
	}
	if _, err := tradecron.New(c.Schedule); err != nil {
		return fmt.Errorf("%w: schedule %q: %s", ErrInvalidConfig, c.Schedule, err)
	}

	return nil
}

func (c *SMAConfig) validate() error {
	if c.Window < 1 {
		return fmt.Errorf("%w: sma window must be positive", ErrInvalidConfig)
	}
	if c.DipThreshold < 0 {
		return fmt.Errorf("%w: dip threshold must not be negative", ErrInvalidConfig)
	}
	if c.Deadline == "" {
		c.Deadline = tradecron.AtMonthEnd
	}
	if _, err := tradecron.New(c.Deadline); err != nil {
		return fmt.Errorf("%w: deadline %q: %s", ErrInvalidConfig, c.Deadline, err)
	}
	return nil
}

func (c *LumpSumConfig) validate() error {
	allocations, err := validateAllocations(c.Allocations)
	if err != nil {
		return err
	}
	c.Allocations = allocations

	switch {
	case c.InitialAmount <= 0:
		return fmt.Errorf("%w: initial amount must be positive", ErrInvalidConfig)
	case c.RebalanceEvery < 0:
		return fmt.Errorf("%w: rebalance every must not be negative", ErrInvalidConfig)
	case c.RebalanceThreshold < 0:
		return fmt.Errorf("%w: rebalance threshold must not be negative", ErrInvalidConfig)
	case c.DividendReinvestRate < 0 || c.DividendReinvestRate > 1:
		return fmt.Errorf("%w: dividend reinvest rate must be between 0 and 1", ErrInvalidConfig)
	}

	return nil
}

// validateAllocations requires at least one ticker, every weight positive and
// the weights to sum to 1. Tickers are upper cased.
func validateAllocations(allocations map[string]float64) (map[string]float64, error) {
	if len(allocations) == 0 {
		return nil, fmt.Errorf("%w: no tickers", ErrInvalidAllocation)
	}

	normalized := make(map[string]float64, len(allocations))
	sum := 0.0
	for ticker, pct := range allocations {
		if pct <= 0 {
			return nil, fmt.Errorf("%w: %s must be > 0, got %f", ErrInvalidAllocation, ticker, pct)
		}
		normalized[strings.ToUpper(ticker)] += pct
		sum += pct
	}

	if math.Abs(sum-1) >= allocationTolerance {
		return nil, fmt.Errorf("%w: allocations sum to %f, expected 1", ErrInvalidAllocation, sum)
	}

	return normalized, nil
}

func sortedTickers(allocations map[string]float64) []string {
	tickers := make([]string, 0, len(allocations))
	for ticker := range allocations {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func (cfg Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Kind", cfg.Kind).Str("Name", cfg.Name).Strs("Tickers", cfg.Tickers())
	switch cfg.Kind {
	case KindDCA, KindSMA:
		e.Float64("StartingAmount", cfg.DCA.StartingAmount).
			Float64("RecurringAmount", cfg.DCA.RecurringAmount).
			Str("Schedule", cfg.DCA.Schedule).
			Int("RebalanceEvery", cfg.DCA.RebalanceEvery).
			Float64("RebalanceThreshold", cfg.DCA.RebalanceThreshold).
			Float64("DividendReinvestRate", cfg.DCA.DividendReinvestRate)
		if cfg.Kind == KindSMA {
			e.Int("Window", cfg.SMA.Window).Float64("DipThreshold", cfg.SMA.DipThreshold).Str("Deadline", cfg.SMA.Deadline)
		}
	case KindLumpSum:
		e.Float64("InitialAmount", cfg.LumpSum.InitialAmount).
			Int("RebalanceEvery", cfg.LumpSum.RebalanceEvery).
			Float64("RebalanceThreshold", cfg.LumpSum.RebalanceThreshold).
			Float64("DividendReinvestRate", cfg.LumpSum.DividendReinvestRate)
	}
}
