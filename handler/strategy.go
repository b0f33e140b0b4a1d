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

package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/dca-backtest/strategy"
)

func ListStrategies(c *fiber.Ctx) error {
	strategy.InitializeStrategyMap()
	return c.JSON(strategy.StrategyList)
}

func GetStrategy(c *fiber.Ctx) error {
	shortcode := c.Params("shortcode")
	info, err := strategy.Lookup(shortcode)
	if err != nil {
		log.Warn().Str("Shortcode", shortcode).Msg("requested strategy does not exist")
		return fiber.ErrNotFound
	}
	return c.JSON(info)
}
