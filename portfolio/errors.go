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

package portfolio

import "errors"

var (
	ErrInsufficientShares     = errors.New("not enough shares available to sell")
	ErrUnknownAsset           = errors.New("ticker not in portfolio")
	ErrInvalidShares          = errors.New("share count must be positive")
	ErrTransactionsOutOfOrder = errors.New("transactions would be out-of-order if executed")
	ErrNilAsset               = errors.New("asset price history is nil")
	ErrDidNotConverge         = errors.New("did not converge")
)
