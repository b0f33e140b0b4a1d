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

package cmd

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/penny-vault/dca-backtest/common"
	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/data/database"
)

var ErrMissingCSVDir = errors.New("csv provider requires --csv-dir")

// setupDataManager registers every configured provider behind the shared
// cache and activates the one named by `data.provider`. The returned map
// exposes the cached wrappers so callers can force a refresh.
func setupDataManager(ctx context.Context) (*data.Manager, map[string]*data.Cached, error) {
	cache, err := common.SetupCache()
	if err != nil {
		return nil, nil, err
	}

	providers := make([]data.Provider, 0, 3)
	providers = append(providers, data.NewYahoo(
		data.WithYahooBaseURL(viper.GetString("yahoo.base_url")),
		data.WithYahooRateLimit(viper.GetInt("yahoo.rate_limit")),
	))

	active := viper.GetString("data.provider")

	if active == data.ProviderPvDb || viper.GetString("database.url") != "" {
		if err := database.Connect(ctx); err != nil {
			log.Error().Err(err).Msg("could not connect to price database")
			return nil, nil, err
		}
		providers = append(providers, data.NewPvDb())
	}

	if dir := viper.GetString("data.csv_dir"); dir != "" {
		providers = append(providers, data.NewCSVFile(dir))
	} else if active == data.ProviderCSV {
		return nil, nil, ErrMissingCSVDir
	}

	cached := make(map[string]*data.Cached, len(providers))
	manager := data.NewManager()
	for _, provider := range providers {
		c := data.NewCached(provider, cache)
		cached[c.Name()] = c
		manager.RegisterDataProvider(c)
	}

	if err := manager.Use(active); err != nil {
		log.Error().Err(err).Strs("Available", manager.Providers()).Str("Provider", active).Msg("requested provider is not configured")
		return nil, nil, err
	}

	log.Info().Str("Provider", manager.Active()).Strs("Available", manager.Providers()).Msg("initialized data framework")
	return manager, cached, nil
}
