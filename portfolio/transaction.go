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

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

const (
	BuyTransaction  = "BUY"
	SellTransaction = "SELL"
)

// Transaction is an accepted buy or sell recorded in the engine journal
type Transaction struct {
	ID            uuid.UUID
	SourceID      string
	Date          time.Time
	Kind          string
	Ticker        string
	Shares        float64
	PricePerShare float64
	TotalValue    float64
	Source        string
}

func newTransaction(kind, ticker, source string, date time.Time, shares, price float64) *Transaction {
	t := &Transaction{
		ID:            uuid.New(),
		Date:          date,
		Kind:          kind,
		Ticker:        ticker,
		Shares:        shares,
		PricePerShare: price,
		TotalValue:    shares * price,
		Source:        source,
	}

	if err := computeTransactionSourceID(t); err != nil {
		log.Warn().Stack().Err(err).Time("TransactionDate", date).Str("TransactionTicker", ticker).Str("TransactionType", kind).Msg("couldn't compute SourceID for transaction")
	}

	return t
}

// computeTransactionSourceID fingerprints the economic content of a
// transaction so two runs over the same inputs produce the same SourceIDs
func computeTransactionSourceID(t *Transaction) error {
	h := blake3.New()

	d, err := t.Date.UTC().MarshalText()
	if err != nil {
		return err
	}

	for _, part := range [][]byte{
		d,
		[]byte(t.Source),
		[]byte(t.Ticker),
		[]byte(t.Kind),
		[]byte(fmt.Sprintf("%.5f", t.PricePerShare)),
		[]byte(fmt.Sprintf("%.5f", t.Shares)),
		[]byte(fmt.Sprintf("%.5f", t.TotalValue)),
	} {
		if _, err := h.Write(part); err != nil {
			log.Error().Stack().Err(err).Msg("could not write transaction field to blake3 hasher")
			return err
		}
	}

	buf := make([]byte, 16)
	if _, err := h.Digest().Read(buf); err != nil {
		return err
	}

	t.SourceID = hex.EncodeToString(buf)
	return nil
}
