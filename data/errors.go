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
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("security not found")
	ErrMalformedInput     = errors.New("malformed price history")
	ErrInvalidTimeRange   = errors.New("start must be before end")
	ErrNoTradingDays      = errors.New("no trading days available")
	ErrUnsupportedMetric  = errors.New("unsupported metric")
	ErrUnknownProvider    = errors.New("unknown data provider")
	ErrUnexpectedResponse = errors.New("unexpected response from data provider")
)

// APIError is returned when a remote data provider responds with an error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("data provider error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}
