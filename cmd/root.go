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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/dca-backtest/common"
	"github.com/penny-vault/dca-backtest/data"
)

var Profile bool
var Trace bool

func init() {
	// Logging configuration
	viper.BindEnv("log.level", "DCABT_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "DCABT_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "DCABT_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "DCABT_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "Print human readable log lines instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Data providers
	viper.BindEnv("data.provider", "DCABT_PROVIDER")
	rootCmd.PersistentFlags().String("provider", data.ProviderYahoo, "Price data provider one of: `yahoo`, `pvdb`, or `csv`")
	viper.BindPFlag("data.provider", rootCmd.PersistentFlags().Lookup("provider"))

	viper.BindEnv("data.csv_dir", "DCABT_CSV_DIR")
	rootCmd.PersistentFlags().String("csv-dir", "", "Directory holding <SYMBOL>.csv price files for the csv provider")
	viper.BindPFlag("data.csv_dir", rootCmd.PersistentFlags().Lookup("csv-dir"))

	viper.BindEnv("yahoo.base_url", "YAHOO_BASE_URL")
	rootCmd.PersistentFlags().String("yahoo-base-url", data.YahooBaseURL, "Yahoo Finance chart API base URL")
	viper.BindPFlag("yahoo.base_url", rootCmd.PersistentFlags().Lookup("yahoo-base-url"))

	viper.BindEnv("yahoo.rate_limit", "YAHOO_RATE_LIMIT")
	rootCmd.PersistentFlags().Int("yahoo-rate-limit", data.YahooRateLimit, "Maximum Yahoo requests per second")
	viper.BindPFlag("yahoo.rate_limit", rootCmd.PersistentFlags().Lookup("yahoo-rate-limit"))

	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string for the pvdb provider")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Cache
	viper.BindEnv("cache.local_size", "DCABT_CACHE_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 128, "Number of price histories kept in the local LRU cache")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	viper.BindEnv("cache.redis", "DCABT_CACHE_REDIS")
	rootCmd.PersistentFlags().Bool("cache-redis", false, "Share downloaded price histories through redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("cache-redis-url", "redis://localhost:6379/0", "Redis connection string")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("cache-redis-url"))

	viper.BindEnv("cache.ttl", "DCABT_CACHE_TTL")
	rootCmd.PersistentFlags().Int("cache-ttl", 86400, "Seconds a price history stays in redis")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	rootCmd.PersistentFlags().String("otlp-endpoint", "", "OTLP collector to send traces to, if blank tracing is disabled")
	viper.BindPFlag("otlp.endpoint", rootCmd.PersistentFlags().Lookup("otlp-endpoint"))

	viper.BindEnv("otlp.http", "DCABT_OTLP_HTTP")
	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP instead of gRPC for the OTLP connection")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))

	rootCmd.PersistentFlags().BoolVar(&Profile, "cpu-profile", false, "Run pprof and save in profile.out")
	rootCmd.PersistentFlags().BoolVar(&Trace, "trace", false, "Trace program execution and save in trace.out")
}

var rootCmd = &cobra.Command{
	Use:     "dcabt",
	Version: common.CurrentVersion.String(),
	Short:   "dcabt backtests dollar cost averaging and lump sum investment plans",
	Long: `Backtest dollar cost averaging, SMA gated DCA and lump sum investment plans
against daily price histories and report the portfolio value, profit and loss,
total return and money weighted rate of return.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return common.SetupLogging()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
