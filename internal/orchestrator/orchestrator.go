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
	"errors"
	"fmt"
	"time"

	"private-stake-go/internal/balance"
	"private-stake-go/internal/fees"
	"private-stake-go/internal/keys"
	"private-stake-go/internal/metrics"
	"private-stake-go/internal/models"
	"private-stake-go/internal/recovery"
	"private-stake-go/internal/session"
	"private-stake-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPollInterval    = 2 * time.Second
	defaultRecoveryTimeout = 3 * time.Minute
)

// Orchestrator runs stake and unstake operations through a burner:
// fund it, move principal to it privately, act on the staking protocol from
// it, sweep the proceeds back into the private balance, reconcile.
type Orchestrator struct {
	cfg          models.OrchestratorConfig
	registry     models.TokenRegistry
	reconciler   *balance.Reconciler
	recovery     *recovery.Manager
	journal      store.OperationJournal
	audit        store.AuditTrail
	metrics      *metrics.Recorder
	pollInterval time.Duration
}

type Params struct {
	Config     models.OrchestratorConfig
	Registry   models.TokenRegistry
	Reconciler *balance.Reconciler
	Recovery   *recovery.Manager
	Journal    store.OperationJournal
	Audit      store.AuditTrail
	Metrics    *metrics.Recorder
	// PollInterval is the wait before re-deriving a burner that is already in use.
	PollInterval time.Duration
}

func New(p Params) *Orchestrator {
	o := &Orchestrator{
		cfg:          p.Config,
		registry:     p.Registry,
		reconciler:   p.Reconciler,
		recovery:     p.Recovery,
		journal:      p.Journal,
		audit:        p.Audit,
		metrics:      p.Metrics,
		pollInterval: p.PollInterval,
	}
	if o.journal == nil {
		o.journal = store.NoopJournal{}
	}
	if o.audit == nil {
		o.audit = store.NoopAudit{}
	}
	if o.reconciler == nil {
		o.reconciler = balance.NewReconciler(p.Registry)
	}
	if o.recovery == nil {
		o.recovery = recovery.NewManager(recovery.Params{
			Registry: p.Registry,
			Journal:  o.journal,
			Audit:    o.audit,
			Metrics:  p.Metrics,
		})
	}
	if o.pollInterval <= 0 {
		o.pollInterval = defaultPollInterval
	}
	if o.cfg.RecoveryTimeout <= 0 {
		o.cfg.RecoveryTimeout = defaultRecoveryTimeout
	}
	return o
}

// settle returns a context that keeps ctx's values but not its cancellation,
// bounded by the recovery timeout. Once funds have left the owner's wallet,
// recovery and journaling run on it even if the caller has given up.
func (o *Orchestrator) settle(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.cfg.RecoveryTimeout)
}

// Stake converts private native tokens into private derivative tokens.
func (o *Orchestrator) Stake(ctx context.Context, sess *session.Session, amount uint64) (*models.OperationResult, error) {
	return o.Execute(ctx, sess, models.DirectionStake, amount)
}

// Unstake converts private derivative tokens back into private native tokens.
func (o *Orchestrator) Unstake(ctx context.Context, sess *session.Session, amount uint64) (*models.OperationResult, error) {
	return o.Execute(ctx, sess, models.DirectionUnstake, amount)
}

// run holds the state of one operation while it moves through the stages.
type run struct {
	sess     *session.Session
	op       *models.StakeOperation
	oc       *models.OperationContext
	adjuster *fees.Adjuster
	burner   *keys.Burner
	rent     uint64
	result   *models.OperationResult
}

// Execute runs one operation. A non-nil result is returned whenever the
// operation got past preflight, including when it failed; failures after
// funds left the owner's wallet carry a recovery outcome in *models.StakeError.
func (o *Orchestrator) Execute(ctx context.Context, sess *session.Session, direction models.Direction, amount uint64) (*models.OperationResult, error) {
	if sess == nil {
		return nil, models.ErrNotConnected
	}
	if err := sess.TryAcquire(); err != nil {
		return nil, err
	}
	defer sess.Release()

	limits := fees.Limits{MinStake: o.cfg.MinStake, MinUnstake: o.cfg.MinUnstake}
	adjuster := fees.NewAdjuster(sess.Privacy(), sess.Ledger(), limits)
	if err := adjuster.Preflight(amount, direction); err != nil {
		return nil, err
	}
	if sess.Ledger() == nil || sess.Privacy() == nil || sess.Staking() == nil {
		return nil, fmt.Errorf("%w: ledger, privacy and staking clients are required", models.ErrServiceUnavailable)
	}

	start := time.Now()
	op := &models.StakeOperation{
		Id:              uuid.New().String(),
		Owner:           sess.Owner(),
		Direction:       direction,
		RequestedAmount: amount,
		SourceKind:      direction.SourceKind(),
		DestinationKind: direction.DestinationKind(),
		Status:          models.StatusPending,
		CreatedAt:       start.UTC(),
	}
	oc := &models.OperationContext{OperationId: op.Id, Direction: direction, Stage: models.StatusPending}
	ctx = models.WithOperationContext(ctx, oc)

	r := &run{
		sess:     sess,
		op:       op,
		oc:       oc,
		adjuster: adjuster,
		result:   &models.OperationResult{Operation: op},
	}

	if err := o.journal.RecordOperation(ctx, op); err != nil {
		zap.L().Warn("Failed to journal operation", append(models.LogFields(ctx), zap.Error(err))...)
	}

	source := o.registry.Info(op.SourceKind)
	zap.L().Info("Starting operation",
		append(models.LogFields(ctx),
			zap.String("owner", op.Owner),
			zap.String("amount", source.Format(amount)))...)

	err := o.pipeline(ctx, r)
	if err != nil {
		sctx, cancel := o.settle(ctx)
		o.reconcile(sctx, r)
		cancel()
	}

	o.metrics.Operation(direction, op.Status, time.Since(start))
	if err != nil {
		return r.result, err
	}
	return r.result, nil
}

func (o *Orchestrator) reconcile(ctx context.Context, r *run) {
	refreshed := o.reconciler.Refresh(ctx, r.sess)
	r.result.Snapshot = refreshed.Snapshot
	r.result.Warnings = append(r.result.Warnings, refreshed.Warnings...)
}

func (o *Orchestrator) pipeline(ctx context.Context, r *run) error {
	burner, err := o.deriveBurner(ctx, r.sess)
	if err != nil {
		return o.fail(ctx, r, err, false)
	}
	r.burner = burner
	r.oc.Burner = burner.Address()
	r.op.BurnerAddress = burner.Address()
	r.op.BurnerNonce = burner.Nonce

	refreshed := o.reconciler.Refresh(ctx, r.sess)
	r.result.Warnings = append(r.result.Warnings, refreshed.Warnings...)

	available := refreshed.Snapshot.Private(r.op.SourceKind)
	if available == 0 || available < r.op.RequestedAmount {
		err := fmt.Errorf("%w: private balance %s, requested %s", models.ErrInsufficientFunds,
			o.registry.Info(r.op.SourceKind).Format(available),
			o.registry.Info(r.op.SourceKind).Format(r.op.RequestedAmount))
		return o.fail(ctx, r, err, false)
	}

	o.advance(ctx, r, models.StatusFunding, store.TransitionParams{
		BurnerAddress: burner.Address(),
		BurnerNonce:   burner.Nonce,
	})
	sig, err := o.fund(ctx, r)
	if err != nil {
		return o.fail(ctx, r, err, false)
	}

	o.advance(ctx, r, models.StatusTransferring, store.TransitionParams{Signature: sig})
	if sig, err = o.transfer(ctx, r); err != nil {
		return o.fail(ctx, r, err, true)
	}

	o.advance(ctx, r, models.StatusExecuting, store.TransitionParams{SafeAmount: r.op.SafeAmount, Signature: sig})
	if sig, err = o.execute(ctx, r); err != nil {
		return o.fail(ctx, r, err, true)
	}
	r.op.Signature = sig
	r.result.Signature = sig

	o.advance(ctx, r, models.StatusSweeping, store.TransitionParams{Signature: sig, ProtocolSignature: sig})
	if sig, err = o.sweep(ctx, r); err != nil {
		return o.fail(ctx, r, err, true)
	}

	sctx, cancel := o.settle(ctx)
	defer cancel()

	residual := o.recovery.RecoverExpected(sctx, r.sess, burner, r.op.Id, o.expectedHoldings(r))
	r.result.Residual = residual
	if !residual.Recovered() {
		r.result.Warnings = append(r.result.Warnings,
			fmt.Sprintf("%d residual balance(s) left in burner %s", len(residual.Stranded), burner.Address()))
	}

	o.advance(sctx, r, models.StatusReconciling, store.TransitionParams{Signature: sig})
	o.reconcile(sctx, r)
	o.advance(sctx, r, models.StatusCompleted, store.TransitionParams{})

	zap.L().Info("Operation completed",
		append(models.LogFields(ctx),
			zap.String("signature", r.op.Signature),
			zap.String("staked", o.registry.Info(r.op.SourceKind).Format(r.op.SafeAmount)))...)
	return nil
}

// deriveBurner derives a burner from a fresh ledger timestamp, re-deriving
// while the burner already holds funds or its nonce is journaled.
func (o *Orchestrator) deriveBurner(ctx context.Context, sess *session.Session) (*keys.Burner, error) {
	deriver := sess.Deriver()
	if deriver == nil {
		return nil, models.ErrSigningUnavailable
	}
	attempts := o.cfg.NonceAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		burner, err := deriver.DeriveFresh(ctx)
		if err != nil {
			return nil, err
		}
		used, err := o.burnerUsed(ctx, sess, burner)
		if err != nil {
			return nil, err
		}
		if !used {
			return burner, nil
		}

		zap.L().Warn("Derived burner already in use",
			append(models.LogFields(ctx),
				zap.String("candidate", burner.Address()),
				zap.Int64("nonce", burner.Nonce),
				zap.Int("attempt", i+1))...)

		if i+1 < attempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(o.pollInterval):
			}
		}
	}
	return nil, fmt.Errorf("%w: no unused burner after %d attempts", models.ErrBurnerInUse, attempts)
}

func (o *Orchestrator) burnerUsed(ctx context.Context, sess *session.Session, burner *keys.Burner) (bool, error) {
	used, err := o.journal.NonceInUse(ctx, sess.Owner(), burner.Nonce)
	if err != nil {
		zap.L().Warn("Failed to check journal for burner nonce", append(models.LogFields(ctx), zap.Error(err))...)
	} else if used {
		return true, nil
	}

	held, err := sess.Ledger().GetBalance(ctx, burner.Address())
	if err != nil {
		return false, fmt.Errorf("%w: burner balance: %w", models.ErrServiceUnavailable, err)
	}
	return held > 0, nil
}

// fund sends rent plus the funding reserve from the owner's public wallet.
func (o *Orchestrator) fund(ctx context.Context, r *run) (string, error) {
	ledgerClient := r.sess.Ledger()
	rent, err := ledgerClient.GetMinimumRentExemption(ctx, 0)
	if err != nil {
		return "", err
	}
	r.rent = rent
	amount := rent + o.cfg.FundingReserve

	tx, err := ledgerClient.BuildTransfer(ctx, r.op.Owner, r.burner.Address(), amount)
	if err != nil {
		return "", err
	}
	signer := r.sess.Signer()
	signed, err := signer.SignTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", models.ErrSigningUnavailable, err)
	}
	sig, err := signer.SendAndConfirm(ctx, signed)
	if err != nil {
		return "", err
	}

	o.record(ctx, r, models.TokenNative, amount, sig, store.PublicAccount(r.op.Owner), store.BurnerAccount(r.burner.Address()))
	zap.L().Info("Burner funded",
		append(models.LogFields(ctx),
			zap.String("amount", o.registry.Native.Format(amount)),
			zap.String("signature", sig))...)
	return sig, nil
}

// transfer moves the safe amount privately from the owner to the burner.
func (o *Orchestrator) transfer(ctx context.Context, r *run) (string, error) {
	kind := r.op.SourceKind
	adj, err := r.adjuster.Adjust(ctx, fees.Request{
		Amount:    r.op.RequestedAmount,
		Kind:      kind,
		Transfer:  models.TransferSend,
		Recipient: r.burner.Address(),
	})
	if err != nil {
		return "", err
	}

	privacyClient := r.sess.Privacy()
	tx, err := privacyClient.BuildSendTransaction(ctx, adj.Safe, r.burner.Address(), kind)
	if err != nil {
		return "", err
	}
	sig, err := privacyClient.Submit(ctx, tx)
	if err != nil {
		return "", err
	}
	r.op.SafeAmount = adj.Safe

	o.record(ctx, r, kind, adj.Safe, sig, store.PrivateAccount(r.op.Owner), store.BurnerAccount(r.burner.Address()))
	zap.L().Info("Principal sent to burner",
		append(models.LogFields(ctx),
			zap.String("amount", o.registry.Info(kind).Format(adj.Safe)),
			zap.String("fee", o.registry.Info(adj.Fee.Kind).Format(adj.Fee.Amount)),
			zap.String("signature", sig))...)
	return sig, nil
}

// execute reads what actually reached the burner and submits the protocol
// action signed by the burner, waiting for finalization.
func (o *Orchestrator) execute(ctx context.Context, r *run) (string, error) {
	ledgerClient := r.sess.Ledger()
	burner := r.burner.Address()

	var (
		tx     *models.Tx
		amount uint64
	)
	switch r.op.Direction {
	case models.DirectionStake:
		held, err := ledgerClient.GetBalance(ctx, burner)
		if err != nil {
			return "", err
		}
		keep := r.rent + o.cfg.ProtocolReserve
		if held <= keep {
			return "", fmt.Errorf("%w: burner holds %d, needs more than %d", models.ErrInsufficientFunds, held, keep)
		}
		amount = min(r.op.SafeAmount, held-keep)
		deposit, err := r.sess.Staking().BuildDepositTransaction(ctx, amount, burner, burner)
		if err != nil {
			return "", err
		}
		tx = deposit.Tx
		zap.L().Debug("Deposit built",
			append(models.LogFields(ctx), zap.String("derivative_account", deposit.DerivativeAccount))...)
	default:
		held, err := ledgerClient.GetTokenAccountBalance(ctx, burner, o.registry.Derivative.Mint)
		if err != nil {
			return "", err
		}
		available := min(r.op.SafeAmount, held)
		if available <= o.cfg.UnstakeReserve {
			return "", fmt.Errorf("%w: burner holds %d derivative, reserve %d", models.ErrInsufficientFunds, held, o.cfg.UnstakeReserve)
		}
		amount = available - o.cfg.UnstakeReserve
		if tx, err = r.sess.Staking().BuildLiquidUnstakeTransaction(ctx, amount, burner); err != nil {
			return "", err
		}
	}

	sig, err := sendAndConfirm(ctx, r, tx, models.CommitmentFinalized)
	if err != nil {
		return "", err
	}

	o.record(ctx, r, r.op.SourceKind, amount, sig, store.BurnerAccount(burner), store.ProtocolAccount())
	zap.L().Info("Protocol action finalized",
		append(models.LogFields(ctx),
			zap.String("amount", o.registry.Info(r.op.SourceKind).Format(amount)),
			zap.String("signature", sig))...)
	return sig, nil
}

// sweep tops up the owner's private balance with the proceeds held by the burner.
func (o *Orchestrator) sweep(ctx context.Context, r *run) (string, error) {
	ledgerClient := r.sess.Ledger()
	burner := r.burner.Address()
	kind := r.op.DestinationKind

	var amount uint64
	if kind == models.TokenDerivative {
		held, err := ledgerClient.GetTokenAccountBalance(ctx, burner, o.registry.Derivative.Mint)
		if err != nil {
			return "", err
		}
		amount = held
	} else {
		held, err := ledgerClient.GetBalance(ctx, burner)
		if err != nil {
			return "", err
		}
		adj, err := r.adjuster.Adjust(ctx, fees.Request{Amount: held, Kind: kind, Transfer: models.TransferTopUp})
		if err != nil {
			return "", err
		}
		amount = adj.Safe
	}
	if amount == 0 {
		return "", errors.New("no proceeds in burner")
	}

	privacyClient := r.sess.Privacy()
	tx, err := privacyClient.BuildTopUpTransaction(ctx, amount, kind, burner)
	if err != nil {
		return "", err
	}
	signed, err := ledgerClient.SignTransaction(ctx, tx, r.burner.Keypair)
	if err != nil {
		return "", err
	}
	sig, err := privacyClient.Submit(ctx, signed)
	if err != nil {
		return "", err
	}

	o.record(ctx, r, kind, amount, sig, store.BurnerAccount(burner), store.PrivateAccount(r.op.Owner))
	zap.L().Info("Proceeds swept to private balance",
		append(models.LogFields(ctx),
			zap.String("amount", o.registry.Info(kind).Format(amount)),
			zap.String("signature", sig))...)
	return sig, nil
}

func sendAndConfirm(ctx context.Context, r *run, tx *models.Tx, commitment models.Commitment) (string, error) {
	ledgerClient := r.sess.Ledger()
	sig, err := ledgerClient.SendTransaction(ctx, tx, r.burner.Keypair)
	if err != nil {
		return "", err
	}
	if err := ledgerClient.ConfirmTransaction(ctx, sig, commitment); err != nil {
		return sig, err
	}
	return sig, nil
}

// advance closes the current stage and enters the next one.
func (o *Orchestrator) advance(ctx context.Context, r *run, next models.Status, params store.TransitionParams) {
	prev := r.op.Status
	if prev != models.StatusPending {
		o.metrics.Stage(r.op.Direction, prev, nil)
	}
	r.op.Status = next
	r.op.UpdatedAt = time.Now().UTC()
	r.oc.Stage = next

	params.OperationId = r.op.Id
	params.Status = next
	params.At = r.op.UpdatedAt
	jctx, cancel := o.settle(ctx)
	defer cancel()
	if err := o.journal.RecordTransition(jctx, params); err != nil {
		zap.L().Warn("Failed to journal transition", append(models.LogFields(ctx), zap.Error(err))...)
	}
	zap.L().Info("Stage entered", append(models.LogFields(ctx), zap.String("from", string(prev)))...)
}

// fail moves the operation to Failed, running recovery first when funds may
// have reached the burner.
func (o *Orchestrator) fail(ctx context.Context, r *run, err error, withRecovery bool) error {
	stage := r.op.Status
	o.metrics.Stage(r.op.Direction, stage, err)

	serr := &models.StakeError{
		OperationId: r.op.Id,
		Stage:       stage,
		Kind:        failureKind(stage, err),
		Err:         err,
	}

	zap.L().Error("Stage failed",
		append(models.LogFields(ctx), zap.Bool("recovering", withRecovery), zap.Error(err))...)

	ctx, cancel := o.settle(ctx)
	defer cancel()

	var recovered *bool
	if withRecovery && r.burner != nil {
		outcome := o.recovery.RecoverExpected(ctx, r.sess, r.burner, r.op.Id, o.expectedHoldings(r))
		serr.Recovery = outcome
		r.op.Recovery = outcome
		ok := outcome.Recovered()
		recovered = &ok
	}

	r.op.Status = models.StatusFailed
	r.op.Error = err.Error()
	r.op.UpdatedAt = time.Now().UTC()
	r.oc.Stage = models.StatusFailed

	if jerr := o.journal.RecordTransition(ctx, store.TransitionParams{
		OperationId: r.op.Id,
		Status:      models.StatusFailed,
		Error:       r.op.Error,
		Recovered:   recovered,
		At:          r.op.UpdatedAt,
	}); jerr != nil {
		zap.L().Warn("Failed to journal failure", append(models.LogFields(ctx), zap.Error(jerr))...)
	}
	return serr
}

// expectedHoldings estimates what the burner holds at the current stage.
// The funding always reached it; the principal did from Transferring on,
// and the proceeds may have from Executing on.
func (o *Orchestrator) expectedHoldings(r *run) recovery.Expected {
	expected := recovery.Expected{models.TokenNative: r.rent + o.cfg.FundingReserve}
	switch r.op.Status {
	case models.StatusTransferring:
		expected.Add(r.op.SourceKind, r.op.SafeAmount)
	case models.StatusExecuting:
		expected.Add(r.op.SourceKind, r.op.SafeAmount)
		expected.Add(r.op.DestinationKind, 0)
	default:
		expected.Add(r.op.SourceKind, 0)
		expected.Add(r.op.DestinationKind, r.op.SafeAmount)
	}
	return expected
}

func failureKind(stage models.Status, err error) error {
	if stage == models.StatusSweeping {
		return models.ErrSweepFailed
	}
	if kind := models.Classify(err); kind != nil {
		return kind
	}
	if stage == models.StatusPending {
		return nil
	}
	return models.ErrTransactionRejected
}

func (o *Orchestrator) record(ctx context.Context, r *run, kind models.TokenKind, amount uint64, sig, source, destination string) {
	err := o.audit.RecordMovement(ctx, store.MovementParams{
		OperationId: r.op.Id,
		Reference:   r.op.Id + ":" + string(r.op.Status),
		Source:      source,
		Destination: destination,
		Kind:        kind,
		Symbol:      o.registry.Info(kind).Symbol,
		Amount:      amount,
		Signature:   sig,
		Stage:       r.op.Status,
		At:          time.Now().UTC(),
	})
	if err != nil {
		zap.L().Warn("Failed to record movement", append(models.LogFields(ctx), zap.Error(err))...)
	}
}
