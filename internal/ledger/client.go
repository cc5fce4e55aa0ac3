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

package ledger

import (
	"context"

	"private-stake-go/internal/keys"
	"private-stake-go/internal/models"
)

// Client is the ledger RPC surface the pipeline depends on. Amounts are base units.
type Client interface {
	GetBalance(ctx context.Context, address string) (uint64, error)
	// GetTokenAccountBalance returns the owner's balance of mint; a missing token account is zero.
	GetTokenAccountBalance(ctx context.Context, owner, mint string) (uint64, error)

	// SignTransaction adds signatures for the given keypairs, leaving other signers untouched.
	SignTransaction(ctx context.Context, tx *models.Tx, signers ...*keys.Keypair) (*models.Tx, error)
	SendTransaction(ctx context.Context, tx *models.Tx, signers ...*keys.Keypair) (string, error)
	// ConfirmTransaction blocks until the signature reaches commitment, was rejected, or timed out.
	ConfirmTransaction(ctx context.Context, signature string, commitment models.Commitment) error

	GetMinimumRentExemption(ctx context.Context, size uint64) (uint64, error)
	GetCurrentTimestamp(ctx context.Context) (int64, error)

	BuildTransfer(ctx context.Context, from, to string, amount uint64) (*models.Tx, error)
	// BuildTokenTransfer moves mint between the owners' associated token accounts,
	// creating the destination account (paid by from) when missing.
	BuildTokenTransfer(ctx context.Context, from, to, mint string, amount uint64) (*models.Tx, error)
}

// SendAndConfirm submits a transaction and waits for the given commitment.
func SendAndConfirm(ctx context.Context, c Client, tx *models.Tx, commitment models.Commitment, signers ...*keys.Keypair) (string, error) {
	sig, err := c.SendTransaction(ctx, tx, signers...)
	if err != nil {
		return "", err
	}
	if err := c.ConfirmTransaction(ctx, sig, commitment); err != nil {
		return sig, err
	}
	return sig, nil
}
