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

package orchestrator

import (
	"context"
	"fmt"
	"time"

	"private-stake-go/internal/models"
	"private-stake-go/internal/session"
	"private-stake-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TopUpResult is the outcome of moving public funds into the private balance.
type TopUpResult struct {
	Id        string
	Kind      models.TokenKind
	Amount    uint64
	Fee       models.FeeEstimate
	Signature string
	Snapshot  models.BalanceSnapshot
	Warnings  []string
}

// TopUp moves amount of kind from the owner's public wallet into their
// private balance. The owner signs and pays the fee; no burner is involved.
func (o *Orchestrator) TopUp(ctx context.Context, sess *session.Session, kind models.TokenKind, amount uint64) (*TopUpResult, error) {
	if sess == nil {
		return nil, models.ErrNotConnected
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("invalid token kind %d", kind)
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: top-up amount must be positive", models.ErrAmountBelowMinimum)
	}
	if err := sess.TryAcquire(); err != nil {
		return nil, err
	}
	defer sess.Release()

	privacyClient := sess.Privacy()
	if sess.Ledger() == nil || privacyClient == nil {
		return nil, fmt.Errorf("%w: ledger and privacy clients are required", models.ErrServiceUnavailable)
	}

	result := &TopUpResult{Id: uuid.New().String(), Kind: kind, Amount: amount}
	ctx = models.WithOperationContext(ctx, &models.OperationContext{OperationId: result.Id, Stage: models.StatusPending})
	info := o.registry.Info(kind)

	fee, err := privacyClient.EstimateTopUpFee(ctx, amount, kind)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrFeeEstimationFailed, err)
	}
	result.Fee = fee

	refreshed := o.reconciler.Refresh(ctx, sess)
	result.Warnings = append(result.Warnings, refreshed.Warnings...)
	if err := o.coversTopUp(refreshed.Snapshot, kind, amount, fee); err != nil {
		return nil, err
	}

	owner := sess.Owner()
	tx, err := privacyClient.BuildTopUpTransaction(ctx, amount, kind, owner)
	if err != nil {
		return nil, err
	}
	signed, err := sess.Signer().SignTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSigningUnavailable, err)
	}
	sig, err := privacyClient.Submit(ctx, signed)
	if err != nil {
		return nil, err
	}
	result.Signature = sig

	if err := o.audit.RecordMovement(ctx, store.MovementParams{
		OperationId: result.Id,
		Reference:   result.Id + ":topup",
		Source:      store.PublicAccount(owner),
		Destination: store.PrivateAccount(owner),
		Kind:        kind,
		Symbol:      info.Symbol,
		Amount:      amount,
		Signature:   sig,
		Stage:       models.StatusCompleted,
		At:          time.Now().UTC(),
	}); err != nil {
		zap.L().Warn("Failed to record movement", append(models.LogFields(ctx), zap.Error(err))...)
	}

	zap.L().Info("Private balance topped up",
		append(models.LogFields(ctx),
			zap.String("owner", owner),
			zap.String("amount", info.Format(amount)),
			zap.String("fee", o.registry.Info(fee.Kind).Format(fee.Amount)),
			zap.String("signature", sig))...)

	refreshed = o.reconciler.Refresh(ctx, sess)
	result.Snapshot = refreshed.Snapshot
	result.Warnings = append(result.Warnings, refreshed.Warnings...)
	return result, nil
}

// coversTopUp checks the public wallet holds the amount plus the fee, which
// may be charged in the other token.
func (o *Orchestrator) coversTopUp(snap models.BalanceSnapshot, kind models.TokenKind, amount uint64, fee models.FeeEstimate) error {
	required := map[models.TokenKind]uint64{kind: amount}
	required[fee.Kind] += fee.Amount
	for _, k := range []models.TokenKind{models.TokenNative, models.TokenDerivative} {
		need, held := required[k], snap.Public(k)
		if held < need {
			info := o.registry.Info(k)
			return fmt.Errorf("%w: public %s balance %s, needs %s", models.ErrInsufficientFunds,
				info.Symbol, info.Format(held), info.Format(need))
		}
	}
	return nil
}
