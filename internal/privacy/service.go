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
	"encoding/base64"
	"fmt"
	"net/url"
	"strconv"

	"private-stake-go/internal/gateway"
	"private-stake-go/internal/models"

	"go.uber.org/zap"
)

// Gateway connects owners to the privacy-balance HTTP gateway.
type Gateway struct {
	client   *gateway.Client
	cluster  string
	registry models.TokenRegistry
}

var _ Connector = (*Gateway)(nil)

func NewGateway(cfg models.PrivacyConfig, registry models.TokenRegistry) (*Gateway, error) {
	client, err := gateway.NewClient(cfg.GatewayUrl, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	if cfg.ApiKey != "" {
		client = client.WithHeader("X-Api-Key", cfg.ApiKey)
	}
	return &Gateway{client: client, cluster: cfg.Cluster, registry: registry}, nil
}

type sessionRequest struct {
	Owner   string `json:"owner"`
	Seed    string `json:"seed"`
	Cluster string `json:"cluster,omitempty"`
}

type sessionResponse struct {
	Token string `json:"token"`
}

func (g *Gateway) Connect(ctx context.Context, owner string, seed []byte) (Client, error) {
	if owner == "" {
		return nil, models.ErrNotConnected
	}
	if len(seed) == 0 {
		return nil, models.ErrSigningUnavailable
	}

	var resp sessionResponse
	err := g.client.Post(ctx, "/v1/sessions", sessionRequest{
		Owner:   owner,
		Seed:    base64.StdEncoding.EncodeToString(seed),
		Cluster: g.cluster,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%w: privacy session: %w", models.ErrServiceUnavailable, err)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("%w: privacy session returned no token", models.ErrServiceUnavailable)
	}

	zap.L().Info("Privacy session opened", zap.String("owner", owner), zap.String("cluster", g.cluster))

	return &Service{
		client:   g.client.WithHeader("Authorization", "Bearer "+resp.Token),
		owner:    owner,
		registry: g.registry,
	}, nil
}

// Service is one owner's session on the gateway.
type Service struct {
	client   *gateway.Client
	owner    string
	registry models.TokenRegistry
}

var _ Client = (*Service)(nil)

type amountResponse struct {
	Amount string `json:"amount"`
	Token  string `json:"token,omitempty"`
}

type feeRequest struct {
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Recipient string `json:"recipient,omitempty"`
}

type buildRequest struct {
	Amount    string `json:"amount"`
	Token     string `json:"token"`
	Recipient string `json:"recipient,omitempty"`
	FeePayer  string `json:"fee_payer,omitempty"`
}

type transactionPayload struct {
	Transaction string `json:"transaction"`
}

type submitResponse struct {
	Signature string `json:"signature"`
}

type deriveRequest struct {
	Label  string `json:"label"`
	Nonce  int64  `json:"nonce"`
	Length int    `json:"length"`
}

type deriveResponse struct {
	Material string `json:"material"`
}

func (s *Service) symbol(kind models.TokenKind) string {
	return s.registry.Info(kind).Symbol
}

func (s *Service) GetLatestPrivateBalance(ctx context.Context, kind models.TokenKind) (uint64, error) {
	var resp amountResponse
	if err := s.client.Get(ctx, "/v1/balance", url.Values{"token": {s.symbol(kind)}}, &resp); err != nil {
		return 0, fmt.Errorf("unable to get private %s balance: %w", kind, err)
	}
	return parseAmount(resp.Amount)
}

func (s *Service) EstimateSendFee(ctx context.Context, amount uint64, kind models.TokenKind, recipient string) (models.FeeEstimate, error) {
	return s.estimate(ctx, "/v1/fees/send", feeRequest{
		Amount:    strconv.FormatUint(amount, 10),
		Token:     s.symbol(kind),
		Recipient: recipient,
	}, kind)
}

func (s *Service) EstimateTopUpFee(ctx context.Context, amount uint64, kind models.TokenKind) (models.FeeEstimate, error) {
	return s.estimate(ctx, "/v1/fees/topup", feeRequest{
		Amount: strconv.FormatUint(amount, 10),
		Token:  s.symbol(kind),
	}, kind)
}

func (s *Service) estimate(ctx context.Context, path string, req feeRequest, kind models.TokenKind) (models.FeeEstimate, error) {
	var resp amountResponse
	if err := s.client.Post(ctx, path, req, &resp); err != nil {
		return models.FeeEstimate{}, err
	}
	amount, err := parseAmount(resp.Amount)
	if err != nil {
		return models.FeeEstimate{}, err
	}
	feeKind := kind
	if resp.Token != "" {
		feeKind, err = models.ParseTokenKind(resp.Token, s.registry)
		if err != nil {
			return models.FeeEstimate{}, err
		}
	}
	return models.FeeEstimate{Amount: amount, Kind: feeKind}, nil
}

func (s *Service) BuildSendTransaction(ctx context.Context, amount uint64, recipient string, kind models.TokenKind) (*models.Tx, error) {
	return s.build(ctx, "/v1/transactions/send", buildRequest{
		Amount:    strconv.FormatUint(amount, 10),
		Token:     s.symbol(kind),
		Recipient: recipient,
	})
}

func (s *Service) BuildTopUpTransaction(ctx context.Context, amount uint64, kind models.TokenKind, payer string) (*models.Tx, error) {
	return s.build(ctx, "/v1/transactions/topup", buildRequest{
		Amount:   strconv.FormatUint(amount, 10),
		Token:    s.symbol(kind),
		FeePayer: payer,
	})
}

func (s *Service) build(ctx context.Context, path string, req buildRequest) (*models.Tx, error) {
	var resp transactionPayload
	if err := s.client.Post(ctx, path, req, &resp); err != nil {
		if gateway.IsClientError(err) {
			return nil, fmt.Errorf("%w: %w", models.ErrTransactionRejected, err)
		}
		return nil, err
	}
	payload, err := base64.StdEncoding.DecodeString(resp.Transaction)
	if err != nil || len(payload) == 0 {
		return nil, fmt.Errorf("invalid transaction from %s", path)
	}
	return &models.Tx{Payload: payload}, nil
}

func (s *Service) Submit(ctx context.Context, tx *models.Tx) (string, error) {
	if tx == nil || len(tx.Payload) == 0 {
		return "", fmt.Errorf("empty transaction")
	}
	var resp submitResponse
	err := s.client.Post(ctx, "/v1/transactions/submit", transactionPayload{
		Transaction: base64.StdEncoding.EncodeToString(tx.Payload),
	}, &resp)
	if err != nil {
		if gateway.IsClientError(err) {
			return "", fmt.Errorf("%w: %w", models.ErrTransactionRejected, err)
		}
		return "", err
	}
	if resp.Signature == "" {
		return "", fmt.Errorf("%w: submit returned no signature", models.ErrTransactionRejected)
	}

	zap.L().Info("Privacy transaction submitted",
		append(models.LogFields(ctx), zap.String("signature", resp.Signature))...)
	return resp.Signature, nil
}

func (s *Service) DeriveKeyMaterial(ctx context.Context, label string, nonce int64, length int) ([]byte, error) {
	var resp deriveResponse
	if err := s.client.Post(ctx, "/v1/keys/derive", deriveRequest{Label: label, Nonce: nonce, Length: length}, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSigningUnavailable, err)
	}
	material, err := base64.StdEncoding.DecodeString(resp.Material)
	if err != nil {
		return nil, fmt.Errorf("invalid key material: %w", err)
	}
	if len(material) != length {
		return nil, fmt.Errorf("key material is %d bytes, want %d", len(material), length)
	}
	return material, nil
}

func parseAmount(s string) (uint64, error) {
	amount, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}
