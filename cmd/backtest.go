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
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/observability/opentelemetry"
	"github.com/penny-vault/dca-backtest/portfolio"
	"github.com/penny-vault/dca-backtest/report"
	"github.com/penny-vault/dca-backtest/strategy"
)

var (
	backtestConfig    string
	backtestBegin     string
	backtestEnd       string
	backtestOutput    string
	backtestChart     string
	backtestQuiet     bool
	discardSellCredit bool
)

func init() {
	backtestCmd.Flags().StringVarP(&backtestConfig, "config", "c", "", "Strategy definition (toml)")
	backtestCmd.Flags().StringVarP(&backtestBegin, "begin", "b", "1990-01-01", "First date to download (YYYY-MM-DD)")
	backtestCmd.Flags().StringVarP(&backtestEnd, "end", "e", "now", "Last date to download (YYYY-MM-DD or now)")
	backtestCmd.Flags().StringVarP(&backtestOutput, "output", "o", "backtest.csv", "Write the daily value and P&L to this CSV file")
	backtestCmd.Flags().StringVar(&backtestChart, "chart", "", "Render the portfolio value and invested capital to this PNG file")
	backtestCmd.Flags().BoolVarP(&backtestQuiet, "quiet", "q", false, "Do not display a progress bar")
	backtestCmd.Flags().BoolVar(&discardSellCredit, "discard-rejected-sell-credit", false, "Only credit sale proceeds to the cash flow when the sale succeeds")
	backtestCmd.MarkFlagRequired("config")

	rootCmd.AddCommand(backtestCmd)
}

func parseDateFlag(name, val string) time.Time {
	if val == "now" {
		return data.NormalizeDate(time.Now())
	}
	dt, err := time.Parse("2006-01-02", val)
	if err != nil {
		log.Fatal().Err(err).Str("Flag", name).Str("Value", val).Msg("date must be formatted as YYYY-MM-DD")
	}
	return dt
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a backtest of an investment plan",
	Long: `Download the price history of every ticker in the strategy definition,
simulate the plan day by day and report how the portfolio performed.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		stop := startProfiling()
		defer stop()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		shutdown, err := opentelemetry.Setup(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn().Err(err).Msg("tracer shutdown failed")
			}
		}()

		cfg, err := strategy.LoadConfig(backtestConfig)
		if err != nil {
			log.Fatal().Err(err).Str("File", backtestConfig).Msg("could not load strategy definition")
		}

		begin := parseDateFlag("begin", backtestBegin)
		end := parseDateFlag("end", backtestEnd)

		manager, _, err := setupDataManager(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize data framework")
		}

		histories, err := manager.Histories(ctx, cfg.Tickers(), begin, end)
		if err != nil {
			log.Fatal().Err(err).Strs("Tickers", cfg.Tickers()).Msg("could not download price histories")
		}

		opts := []strategy.RunOption{}
		if !backtestQuiet {
			opts = append(opts, strategy.WithProgressBar(os.Stderr))
		}
		if discardSellCredit {
			opts = append(opts, strategy.WithEngineOptions(portfolio.WithDiscardRejectedSellCashFlow()))
		}

		engine, err := strategy.Backtest(ctx, cfg, histories, opts...)
		if err != nil {
			log.Fatal().Err(err).Object("Config", cfg).Msg("backtest failed")
		}

		if err := report.SaveCSV(backtestOutput, engine); err != nil {
			log.Fatal().Err(err).Str("File", backtestOutput).Msg("could not save report")
		}
		log.Info().Str("File", backtestOutput).Msg("saved daily report")

		if backtestChart != "" {
			png, err := report.RenderChart(engine, cfg.Name)
			if err != nil {
				log.Fatal().Err(err).Msg("could not render chart")
			}
			if err := os.WriteFile(backtestChart, png, 0644); err != nil {
				log.Fatal().Err(err).Str("File", backtestChart).Msg("could not save chart")
			}
			log.Info().Str("File", backtestChart).Msg("saved chart")
		}

		summary := engine.Summary()
		fmt.Println(report.SummaryTable(cfg.Name, summary, engine.PercentageAllocations(summary.End)))
	},
}
