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

package staking

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"

	"private-stake-go/internal/gateway"
	"private-stake-go/internal/models"

	"go.uber.org/zap"
)

// Client builds staking-protocol transactions. The owner argument is the
// account that signs and pays; for the stake pipeline that is the burner.
type Client interface {
	BuildDepositTransaction(ctx context.Context, amount uint64, owner, mintTo string) (*models.DepositTx, error)
	BuildLiquidUnstakeTransaction(ctx context.Context, amount uint64, owner string) (*models.Tx, error)
}

type Service struct {
	client *gateway.Client
}

var _ Client = (*Service)(nil)

func NewService(cfg models.StakingConfig) (*Service, error) {
	client, err := gateway.NewClient(cfg.GatewayUrl, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Service{client: client}, nil
}

type depositRequest struct {
	Amount string `json:"amount"`
	Owner  string `json:"owner"`
	MintTo string `json:"mint_to"`
}

type depositResponse struct {
	Transaction       string `json:"transaction"`
	DerivativeAccount string `json:"derivative_account"`
}

type unstakeRequest struct {
	Amount string `json:"amount"`
	Owner  string `json:"owner"`
}

type unstakeResponse struct {
	Transaction string `json:"transaction"`
}

func (s *Service) BuildDepositTransaction(ctx context.Context, amount uint64, owner, mintTo string) (*models.DepositTx, error) {
	zap.L().Info("Building staking deposit",
		append(models.LogFields(ctx),
			zap.Uint64("amount", amount),
			zap.String("mint_to", mintTo))...)

	var resp depositResponse
	err := s.client.Post(ctx, "/v1/deposit", depositRequest{
		Amount: strconv.FormatUint(amount, 10),
		Owner:  owner,
		MintTo: mintTo,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("unable to build deposit: %w", classify(err))
	}

	tx, err := decode(resp.Transaction)
	if err != nil {
		return nil, err
	}
	return &models.DepositTx{Tx: tx, DerivativeAccount: resp.DerivativeAccount}, nil
}

func (s *Service) BuildLiquidUnstakeTransaction(ctx context.Context, amount uint64, owner string) (*models.Tx, error) {
	zap.L().Info("Building liquid unstake",
		append(models.LogFields(ctx), zap.Uint64("amount", amount))...)

	var resp unstakeResponse
	err := s.client.Post(ctx, "/v1/liquid-unstake", unstakeRequest{
		Amount: strconv.FormatUint(amount, 10),
		Owner:  owner,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("unable to build liquid unstake: %w", classify(err))
	}
	return decode(resp.Transaction)
}

func classify(err error) error {
	if gateway.IsClientError(err) {
		return fmt.Errorf("%w: %w", models.ErrTransactionRejected, err)
	}
	return err
}

func decode(b64 string) (*models.Tx, error) {
	payload, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid staking transaction: %w", err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("staking gateway returned an empty transaction")
	}
	return &models.Tx{Payload: payload}, nil
}
