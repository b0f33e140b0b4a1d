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

	"github.com/go-co-op/gocron"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/dca-backtest/data"
	"github.com/penny-vault/dca-backtest/handler"
	"github.com/penny-vault/dca-backtest/middleware"
	"github.com/penny-vault/dca-backtest/observability/opentelemetry"
	"github.com/penny-vault/dca-backtest/router"
	"github.com/penny-vault/dca-backtest/strategy"
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("server.cors_origins", "DCABT_CORS_ORIGINS")
	serveCmd.Flags().String("cors-origins", "*", "Comma separated list of origins allowed to call the API")
	viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origins"))

	serveCmd.Flags().StringSlice("watch", []string{}, "Symbols whose price history is refreshed in the background")
	viper.BindPFlag("serve.watch", serveCmd.Flags().Lookup("watch"))

	serveCmd.Flags().Int("refresh-hours", 12, "Hours between background refreshes of watched symbols")
	viper.BindPFlag("serve.refresh_hours", serveCmd.Flags().Lookup("refresh-hours"))

	serveCmd.Flags().String("watch-begin", "1990-01-01", "First date of the refreshed price histories")
	viper.BindPFlag("serve.watch_begin", serveCmd.Flags().Lookup("watch-begin"))

	rootCmd.AddCommand(serveCmd)
}

// refreshWatched downloads every watched symbol again so that backtests over
// the watched range are served from the cache
func refreshWatched(ctx context.Context, provider *data.Cached, symbols []string, begin time.Time) {
	end := data.NormalizeDate(time.Now())
	for _, symbol := range symbols {
		if _, err := provider.Refresh(ctx, symbol, begin, end); err != nil {
			log.Warn().Err(err).Str("Symbol", symbol).Msg("could not refresh price history")
			continue
		}
		log.Info().Str("Symbol", symbol).Msg("refreshed price history")
	}
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dcabt API server",
	Long:  `Run HTTP server that backtests investment plans on request`,
	Run: func(cmd *cobra.Command, args []string) {
		stop := startProfiling()
		defer stop()

		ctx := context.Background()
		shutdown, err := opentelemetry.Setup(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
		defer shutdown(ctx)

		manager, cached, err := setupDataManager(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("could not initialize data framework")
		}
		handler.SetHistoryLoader(manager)

		// initialize strategies
		strategy.InitializeStrategyMap()

		// Create new Fiber instance
		app := fiber.New(fiber.Config{
			JSONEncoder: json.Marshal,
			JSONDecoder: json.Unmarshal,
		})

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c // block until signal is read
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("server shutdown failed")
			}
		}()

		// Configure CORS
		corsConfig := cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD",
		}
		app.Use(cors.New(corsConfig))

		// Setup logging middleware
		app.Use(middleware.NewLogger())

		// Setup routes
		router.SetupRoutes(app)

		// Refresh watched symbols
		if watch := viper.GetStringSlice("serve.watch"); len(watch) > 0 {
			begin, err := time.Parse("2006-01-02", viper.GetString("serve.watch_begin"))
			if err != nil {
				log.Fatal().Err(err).Msg("watch-begin must be formatted as YYYY-MM-DD")
			}

			provider := cached[manager.Active()]
			tz, _ := time.LoadLocation("America/New_York") // New York is the reference time
			scheduler := gocron.NewScheduler(tz)
			scheduler.Every(viper.GetInt("serve.refresh_hours")).Hours().Do(refreshWatched, ctx, provider, watch, begin)
			scheduler.StartAsync()
			defer scheduler.Stop()
		}

		err = app.Listen(":" + viper.GetString("server.port"))
		if err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	},
}
