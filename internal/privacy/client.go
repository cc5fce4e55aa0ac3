/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package privacy

import (
	"context"

	"private-stake-go/internal/models"
)

// Client is an owner-scoped handle on the privacy-balance service.
type Client interface {
	GetLatestPrivateBalance(ctx context.Context, kind models.TokenKind) (uint64, error)
	EstimateSendFee(ctx context.Context, amount uint64, kind models.TokenKind, recipient string) (models.FeeEstimate, error)
	EstimateTopUpFee(ctx context.Context, amount uint64, kind models.TokenKind) (models.FeeEstimate, error)
	// BuildSendTransaction moves amount out of the private balance to a public recipient.
	BuildSendTransaction(ctx context.Context, amount uint64, recipient string, kind models.TokenKind) (*models.Tx, error)
	// BuildTopUpTransaction moves amount from payer's public account into the
	// private balance. The payer signs the returned transaction before Submit.
	BuildTopUpTransaction(ctx context.Context, amount uint64, kind models.TokenKind, payer string) (*models.Tx, error)
	Submit(ctx context.Context, tx *models.Tx) (string, error)
	DeriveKeyMaterial(ctx context.Context, label string, nonce int64, length int) ([]byte, error)
}

// Connector opens an owner session on the privacy-balance service from the
// owner's capability seed.
type Connector interface {
	Connect(ctx context.Context, owner string, seed []byte) (Client, error)
}
