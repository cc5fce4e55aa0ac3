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
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"private-stake-go/internal/keys"
	"private-stake-go/internal/models"

	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type SolanaClient struct {
	rpc            *rpc.Client
	limiter        *rate.Limiter
	confirmTimeout time.Duration
	pollInterval   time.Duration
}

var _ Client = (*SolanaClient)(nil)

func NewSolanaClient(cfg models.LedgerConfig) (*SolanaClient, error) {
	if cfg.RpcUrl == "" {
		return nil, fmt.Errorf("ledger rpc url is required")
	}
	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &SolanaClient{
		rpc:            rpc.New(cfg.RpcUrl),
		limiter:        rate.NewLimiter(limit, burst),
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
	}, nil
}

func (c *SolanaClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rpc throttle: %w", models.ErrServiceUnavailable, err)
	}
	return nil
}

func (c *SolanaClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	pk, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", address, err)
	}
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	res, err := c.rpc.GetBalance(ctx, pk, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("%w: get balance: %w", models.ErrServiceUnavailable, err)
	}
	return res.Value, nil
}

func (c *SolanaClient) GetTokenAccountBalance(ctx context.Context, owner, mint string) (uint64, error) {
	ownerKey, err := solana.PublicKeyFromBase58(owner)
	if err != nil {
		return 0, fmt.Errorf("invalid owner %q: %w", owner, err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return 0, fmt.Errorf("invalid mint %q: %w", mint, err)
	}
	ata, _, err := solana.FindAssociatedTokenAddress(ownerKey, mintKey)
	if err != nil {
		return 0, fmt.Errorf("unable to find associated token address: %w", err)
	}
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	res, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentConfirmed)
	if err != nil {
		if isMissingAccount(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: get token balance: %w", models.ErrServiceUnavailable, err)
	}
	if res.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

func (c *SolanaClient) SignTransaction(_ context.Context, tx *models.Tx, signers ...*keys.Keypair) (*models.Tx, error) {
	decoded, err := decodeTx(tx)
	if err != nil {
		return nil, err
	}
	if err := partialSign(decoded, signers); err != nil {
		return nil, err
	}
	return encodeTx(decoded)
}

func (c *SolanaClient) SendTransaction(ctx context.Context, tx *models.Tx, signers ...*keys.Keypair) (string, error) {
	decoded, err := decodeTx(tx)
	if err != nil {
		return "", err
	}
	if err := partialSign(decoded, signers); err != nil {
		return "", err
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	sig, err := c.rpc.SendTransaction(ctx, decoded)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			zap.L().Warn("Ledger rejected transaction",
				append(models.LogFields(ctx),
					zap.Int("code", rpcErr.Code),
					zap.String("message", rpcErr.Message))...)
			return "", fmt.Errorf("%w: %s", models.ErrTransactionRejected, rpcErr.Message)
		}
		return "", fmt.Errorf("%w: send transaction: %w", models.ErrServiceUnavailable, err)
	}

	zap.L().Debug("Transaction submitted",
		append(models.LogFields(ctx), zap.String("signature", sig.String()))...)
	return sig.String(), nil
}

func (c *SolanaClient) ConfirmTransaction(ctx context.Context, signature string, commitment models.Commitment) error {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	timeout := c.confirmTimeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	interval := c.pollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		done, err := c.checkStatus(ctx, sig, commitment)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s not %s after %s", models.ErrConfirmationTimeout, signature, commitment, timeout)
		case <-ticker.C:
		}
	}
}

// checkStatus returns true once sig reached commitment. Transient RPC errors
// keep polling.
func (c *SolanaClient) checkStatus(ctx context.Context, sig solana.Signature, commitment models.Commitment) (bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return false, nil
	}
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		zap.L().Debug("Signature status poll failed", zap.String("signature", sig.String()), zap.Error(err))
		return false, nil
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return false, nil
	}
	status := res.Value[0]
	if status.Err != nil {
		return false, fmt.Errorf("%w: %s failed on chain: %v", models.ErrTransactionRejected, sig, status.Err)
	}
	return reached(status.ConfirmationStatus, commitment), nil
}

func reached(status rpc.ConfirmationStatusType, want models.Commitment) bool {
	switch status {
	case rpc.ConfirmationStatusFinalized:
		return true
	case rpc.ConfirmationStatusConfirmed:
		return want == models.CommitmentConfirmed
	}
	return false
}

func (c *SolanaClient) GetMinimumRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	rent, err := c.rpc.GetMinimumBalanceForRentExemption(ctx, size, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("%w: rent exemption: %w", models.ErrServiceUnavailable, err)
	}
	return rent, nil
}

// GetCurrentTimestamp is the block time of the latest confirmed slot.
func (c *SolanaClient) GetCurrentTimestamp(ctx context.Context) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	slot, err := c.rpc.GetSlot(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("unable to get slot: %w", err)
	}
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	blockTime, err := c.rpc.GetBlockTime(ctx, slot)
	if err != nil {
		return 0, fmt.Errorf("unable to get block time for slot %d: %w", slot, err)
	}
	if blockTime == nil {
		return 0, fmt.Errorf("no block time for slot %d", slot)
	}
	return int64(*blockTime), nil
}

func (c *SolanaClient) BuildTransfer(ctx context.Context, from, to string, amount uint64) (*models.Tx, error) {
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}

	instr := system.NewTransferInstruction(amount, fromKey, toKey).Build()
	return c.buildTx(ctx, fromKey, instr)
}

func (c *SolanaClient) BuildTokenTransfer(ctx context.Context, from, to, mint string, amount uint64) (*models.Tx, error) {
	fromKey, err := solana.PublicKeyFromBase58(from)
	if err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	toKey, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", to, err)
	}
	mintKey, err := solana.PublicKeyFromBase58(mint)
	if err != nil {
		return nil, fmt.Errorf("invalid mint %q: %w", mint, err)
	}

	srcAta, _, err := solana.FindAssociatedTokenAddress(fromKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("unable to find source token account: %w", err)
	}
	dstAta, _, err := solana.FindAssociatedTokenAddress(toKey, mintKey)
	if err != nil {
		return nil, fmt.Errorf("unable to find destination token account: %w", err)
	}

	var instrs []solana.Instruction
	exists, err := c.accountExists(ctx, dstAta)
	if err != nil {
		return nil, err
	}
	if !exists {
		instrs = append(instrs, associatedtokenaccount.NewCreateInstruction(fromKey, toKey, mintKey).Build())
	}
	instrs = append(instrs, token.NewTransferInstruction(amount, srcAta, dstAta, fromKey, nil).Build())

	return c.buildTx(ctx, fromKey, instrs...)
}

func (c *SolanaClient) accountExists(ctx context.Context, account solana.PublicKey) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}
	_, err := c.rpc.GetAccountInfo(ctx, account)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("%w: get account info: %w", models.ErrServiceUnavailable, err)
}

func (c *SolanaClient) buildTx(ctx context.Context, payer solana.PublicKey, instrs ...solana.Instruction) (*models.Tx, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return nil, fmt.Errorf("%w: latest blockhash: %w", models.ErrServiceUnavailable, err)
	}
	tx, err := solana.NewTransaction(instrs, recent.Value.Blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("unable to build transaction: %w", err)
	}
	return encodeTx(tx)
}

func isMissingAccount(err error) bool {
	return errors.Is(err, rpc.ErrNotFound) || strings.Contains(err.Error(), "could not find account")
}

func decodeTx(tx *models.Tx) (*solana.Transaction, error) {
	if tx == nil || len(tx.Payload) == 0 {
		return nil, fmt.Errorf("empty transaction")
	}
	decoded, err := solana.TransactionFromBase64(base64.StdEncoding.EncodeToString(tx.Payload))
	if err != nil {
		return nil, fmt.Errorf("unable to decode transaction: %w", err)
	}
	return decoded, nil
}

func encodeTx(tx *solana.Transaction) (*models.Tx, error) {
	payload, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("unable to encode transaction: %w", err)
	}
	return &models.Tx{Payload: payload}, nil
}

func partialSign(tx *solana.Transaction, signers []*keys.Keypair) error {
	if len(signers) == 0 {
		return nil
	}
	byKey := make(map[solana.PublicKey]solana.PrivateKey, len(signers))
	for _, s := range signers {
		byKey[s.PublicKey()] = s.SolanaKey()
	}
	_, err := tx.PartialSign(func(key solana.PublicKey) *solana.PrivateKey {
		if priv, ok := byKey[key]; ok {
			return &priv
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("unable to sign transaction: %w", err)
	}
	return nil
}
