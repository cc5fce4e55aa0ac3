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

package recovery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"private-stake-go/internal/fees"
	"private-stake-go/internal/keys"
	"private-stake-go/internal/ledger"
	"private-stake-go/internal/metrics"
	"private-stake-go/internal/models"
	"private-stake-go/internal/session"
	"private-stake-go/internal/store"

	"go.uber.org/zap"
)

// Manager returns whatever a burner still holds to its owner: privately
// through a top-up, else publicly by direct transfer, else it reports the
// balance as stranded.
type Manager struct {
	registry models.TokenRegistry
	txFee    uint64
	journal  store.OperationJournal
	audit    store.AuditTrail
	metrics  *metrics.Recorder
}

type Params struct {
	Registry models.TokenRegistry
	TxFee    uint64
	Journal  store.OperationJournal
	Audit    store.AuditTrail
	Metrics  *metrics.Recorder
}

func NewManager(p Params) *Manager {
	m := &Manager{
		registry: p.Registry,
		txFee:    p.TxFee,
		journal:  p.Journal,
		audit:    p.Audit,
		metrics:  p.Metrics,
	}
	if m.journal == nil {
		m.journal = store.NoopJournal{}
	}
	if m.audit == nil {
		m.audit = store.NoopAudit{}
	}
	return m
}

// Expected lists the token kinds a burner may hold with an approximate
// amount for each. A kind missing from it is never looked at.
type Expected map[models.TokenKind]uint64

// Add marks kind as possibly held and raises its approximate amount.
func (e Expected) Add(kind models.TokenKind, amount uint64) {
	e[kind] += amount
}

// Recover sweeps the burner's derivative balance, then its native balance,
// which pays the fees of the first. It never returns an error: everything it
// could not move is listed in the outcome's Stranded.
func (m *Manager) Recover(ctx context.Context, sess *session.Session, burner *keys.Burner, operationId string) *models.RecoveryOutcome {
	return m.RecoverExpected(ctx, sess, burner, operationId, nil)
}

// RecoverExpected is Recover limited to the kinds in expected. When the
// ledger cannot report a balance, the expected amount is what gets recorded
// as stranded. A nil expected covers every kind with unknown amounts.
func (m *Manager) RecoverExpected(ctx context.Context, sess *session.Session, burner *keys.Burner, operationId string, expected Expected) *models.RecoveryOutcome {
	outcome := &models.RecoveryOutcome{}
	for _, kind := range []models.TokenKind{models.TokenDerivative, models.TokenNative} {
		approx, ok := expected[kind]
		if expected != nil && !ok {
			continue
		}
		m.recoverKind(ctx, sess, burner, operationId, kind, approx, outcome)
	}

	if outcome.Recovered() {
		zap.L().Info("Burner recovery finished",
			append(models.LogFields(ctx),
				zap.String("burner", burner.Address()),
				zap.Int("signatures", len(outcome.Signatures)),
				zap.Bool("public_fallback", outcome.PublicFallback))...)
	}
	return outcome
}

func (m *Manager) recoverKind(ctx context.Context, sess *session.Session, burner *keys.Burner, operationId string, kind models.TokenKind, approx uint64, outcome *models.RecoveryOutcome) {
	info := m.registry.Info(kind)
	fields := append(models.LogFields(ctx),
		zap.String("burner", burner.Address()),
		zap.String("token", info.Symbol))

	balance, dust, err := m.balance(ctx, sess, burner, kind)
	if err != nil {
		reason := fmt.Sprintf("balance unavailable, amount unknown: %v", err)
		if approx > 0 {
			reason = fmt.Sprintf("balance unavailable, amount approximate: %v", err)
		}
		m.strand(ctx, sess, burner, operationId, kind, approx, reason, outcome)
		return
	}
	if balance <= dust {
		if balance > 0 {
			zap.L().Debug("Leaving dust in burner", append(fields, zap.Uint64("amount", balance))...)
		}
		return
	}

	sig, amount, privateErr := m.topUp(ctx, sess, burner, kind, balance)
	if privateErr == nil {
		outcome.Signatures = append(outcome.Signatures, sig)
		m.metrics.Recovery(metrics.PathPrivate)
		m.record(ctx, burner, operationId, kind, amount, sig, store.PrivateAccount(sess.Owner()))
		zap.L().Info("Recovered burner balance to private balance",
			append(fields, zap.Uint64("amount", amount), zap.String("signature", sig))...)
		return
	}

	zap.L().Warn("Private recovery failed, falling back to public transfer",
		append(fields, zap.Uint64("amount", balance), zap.Error(privateErr))...)

	sig, amount, publicErr := m.transfer(ctx, sess, burner, kind, balance)
	if publicErr == nil {
		outcome.Signatures = append(outcome.Signatures, sig)
		outcome.PublicFallback = true
		m.metrics.Recovery(metrics.PathPublic)
		m.record(ctx, burner, operationId, kind, amount, sig, store.PublicAccount(sess.Owner()))
		zap.L().Info("Recovered burner balance to public wallet",
			append(fields, zap.Uint64("amount", amount), zap.String("signature", sig))...)
		return
	}

	reason := fmt.Sprintf("private: %v; public: %v", privateErr, publicErr)
	m.strand(ctx, sess, burner, operationId, kind, balance, reason, outcome)
}

// balance reads the burner's holding of kind and the amount below which
// moving it is not worth a transaction.
func (m *Manager) balance(ctx context.Context, sess *session.Session, burner *keys.Burner, kind models.TokenKind) (uint64, uint64, error) {
	client := sess.Ledger()
	if client == nil {
		return 0, 0, models.ErrServiceUnavailable
	}
	if kind == models.TokenDerivative {
		balance, err := client.GetTokenAccountBalance(ctx, burner.Address(), m.registry.Derivative.Mint)
		return balance, 0, err
	}

	balance, err := client.GetBalance(ctx, burner.Address())
	if err != nil {
		return 0, 0, err
	}
	rent, err := client.GetMinimumRentExemption(ctx, 0)
	if err != nil {
		return 0, 0, err
	}
	return balance, rent + m.txFee, nil
}

// topUp moves the balance into the owner's private balance, signed by the
// burner. Native top-ups pay their own fee and keep the rent reserve.
func (m *Manager) topUp(ctx context.Context, sess *session.Session, burner *keys.Burner, kind models.TokenKind, balance uint64) (string, uint64, error) {
	privacyClient := sess.Privacy()
	if privacyClient == nil {
		return "", 0, models.ErrServiceUnavailable
	}

	amount := balance
	if kind == models.TokenNative {
		adj, err := fees.NewAdjuster(privacyClient, sess.Ledger(), fees.Limits{}).Adjust(ctx, fees.Request{
			Amount:   balance,
			Kind:     kind,
			Transfer: models.TransferTopUp,
		})
		if err != nil {
			return "", 0, err
		}
		amount = adj.Safe
	}

	tx, err := privacyClient.BuildTopUpTransaction(ctx, amount, kind, burner.Address())
	if err != nil {
		return "", 0, err
	}
	signed, err := sess.Ledger().SignTransaction(ctx, tx, burner.Keypair)
	if err != nil {
		return "", 0, err
	}
	sig, err := privacyClient.Submit(ctx, signed)
	if err != nil {
		return "", 0, err
	}
	return sig, amount, nil
}

// transfer sends the balance to the owner's public wallet over the ledger alone.
func (m *Manager) transfer(ctx context.Context, sess *session.Session, burner *keys.Burner, kind models.TokenKind, balance uint64) (string, uint64, error) {
	client := sess.Ledger()
	var (
		tx     *models.Tx
		amount uint64
		err    error
	)
	if kind == models.TokenDerivative {
		amount = balance
		tx, err = client.BuildTokenTransfer(ctx, burner.Address(), sess.Owner(), m.registry.Derivative.Mint, amount)
	} else {
		if balance <= m.txFee {
			return "", 0, fmt.Errorf("%w: balance %d does not cover the transfer fee", models.ErrInsufficientFunds, balance)
		}
		amount = balance - m.txFee
		tx, err = client.BuildTransfer(ctx, burner.Address(), sess.Owner(), amount)
	}
	if err != nil {
		return "", 0, err
	}
	sig, err := ledger.SendAndConfirm(ctx, client, tx, models.CommitmentConfirmed, burner.Keypair)
	if err != nil {
		return "", 0, err
	}
	return sig, amount, nil
}

func (m *Manager) strand(ctx context.Context, sess *session.Session, burner *keys.Burner, operationId string, kind models.TokenKind, amount uint64, reason string, outcome *models.RecoveryOutcome) {
	funds := models.StrandedFunds{
		OperationId:   operationId,
		Owner:         sess.Owner(),
		BurnerAddress: burner.Address(),
		BurnerNonce:   burner.Nonce,
		Kind:          kind,
		Amount:        amount,
		Reason:        reason,
		CreatedAt:     time.Now().UTC(),
	}
	if saved, err := m.journal.RecordStranded(ctx, funds); err != nil {
		zap.L().Error("Failed to journal stranded funds", append(models.LogFields(ctx), zap.Error(err))...)
	} else if saved != nil {
		funds = *saved
	}
	outcome.Stranded = append(outcome.Stranded, funds)
	m.metrics.Recovery(metrics.PathStranded)

	info := m.registry.Info(kind)
	zap.L().Error("CRITICAL: funds stranded in burner - manual intervention required",
		append(models.LogFields(ctx),
			zap.String("owner", funds.Owner),
			zap.String("burner", funds.BurnerAddress),
			zap.Int64("nonce", funds.BurnerNonce),
			zap.String("token", info.Symbol),
			zap.String("amount", info.ToDecimal(amount).String()),
			zap.String("reason", reason))...)
}

func (m *Manager) record(ctx context.Context, burner *keys.Burner, operationId string, kind models.TokenKind, amount uint64, sig, destination string) {
	stage := models.StatusFailed
	if oc := models.GetOperationContext(ctx); oc != nil && oc.Stage != "" {
		stage = oc.Stage
	}
	err := m.audit.RecordMovement(ctx, store.MovementParams{
		OperationId: operationId,
		Reference:   fmt.Sprintf("%s:recover:%s", operationId, sig),
		Source:      store.BurnerAccount(burner.Address()),
		Destination: destination,
		Kind:        kind,
		Symbol:      m.registry.Info(kind).Symbol,
		Amount:      amount,
		Signature:   sig,
		Stage:       stage,
		At:          time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		zap.L().Warn("Failed to record recovery movement", append(models.LogFields(ctx), zap.Error(err))...)
	}
}
