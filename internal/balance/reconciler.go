package balance

import (
	"context"
	"fmt"
	"sync"

	"private-stake-go/internal/models"
	"private-stake-go/internal/session"

	"go.uber.org/zap"
)

// Result is a refreshed snapshot and one warning per query that failed.
type Result struct {
	Snapshot models.BalanceSnapshot
	Warnings []string
}

// Reconciler refreshes the four balance observables of a session.
type Reconciler struct {
	registry models.TokenRegistry
}

func NewReconciler(registry models.TokenRegistry) *Reconciler {
	return &Reconciler{registry: registry}
}

type query struct {
	name  string
	fetch func(ctx context.Context) (uint64, error)
	set   func(snap *models.BalanceSnapshot, v uint64)
}

// Refresh queries the ledger and privacy service concurrently. A failed query
// keeps that field's previous value and adds a warning; Refresh never fails.
func (r *Reconciler) Refresh(ctx context.Context, sess *session.Session) *Result {
	snap := sess.Snapshot()
	queries := r.queries(sess)

	values := make([]uint64, len(queries))
	errs := make([]error, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q query) {
			defer wg.Done()
			values[i], errs[i] = q.fetch(ctx)
		}(i, q)
	}
	wg.Wait()

	result := &Result{}
	for i, q := range queries {
		if errs[i] != nil {
			zap.L().Warn("Balance query failed, keeping last known value",
				append(models.LogFields(ctx),
					zap.String("owner", sess.Owner()),
					zap.String("balance", q.name),
					zap.Error(errs[i]))...)
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s balance unavailable: %v", q.name, errs[i]))
			continue
		}
		q.set(&snap, values[i])
	}

	sess.SetSnapshot(snap)
	result.Snapshot = snap

	zap.L().Debug("Balances refreshed",
		zap.String("owner", sess.Owner()),
		zap.Uint64("public_native", snap.PublicNative),
		zap.Uint64("public_derivative", snap.PublicDerivative),
		zap.Uint64("private_native", snap.PrivateNative),
		zap.Uint64("private_derivative", snap.PrivateDerivative),
		zap.Int("warnings", len(result.Warnings)))

	return result
}

func (r *Reconciler) queries(sess *session.Session) []query {
	owner := sess.Owner()
	ledgerClient := sess.Ledger()
	privacyClient := sess.Privacy()
	mint := r.registry.Derivative.Mint

	return []query{
		{
			name: "public " + r.registry.Native.Symbol,
			fetch: func(ctx context.Context) (uint64, error) {
				if ledgerClient == nil {
					return 0, models.ErrServiceUnavailable
				}
				return ledgerClient.GetBalance(ctx, owner)
			},
			set: func(s *models.BalanceSnapshot, v uint64) { s.PublicNative = v },
		},
		{
			name: "public " + r.registry.Derivative.Symbol,
			fetch: func(ctx context.Context) (uint64, error) {
				if ledgerClient == nil {
					return 0, models.ErrServiceUnavailable
				}
				return ledgerClient.GetTokenAccountBalance(ctx, owner, mint)
			},
			set: func(s *models.BalanceSnapshot, v uint64) { s.PublicDerivative = v },
		},
		{
			name: "private " + r.registry.Native.Symbol,
			fetch: func(ctx context.Context) (uint64, error) {
				if privacyClient == nil {
					return 0, models.ErrServiceUnavailable
				}
				return privacyClient.GetLatestPrivateBalance(ctx, models.TokenNative)
			},
			set: func(s *models.BalanceSnapshot, v uint64) { s.PrivateNative = v },
		},
		{
			name: "private " + r.registry.Derivative.Symbol,
			fetch: func(ctx context.Context) (uint64, error) {
				if privacyClient == nil {
					return 0, models.ErrServiceUnavailable
				}
				return privacyClient.GetLatestPrivateBalance(ctx, models.TokenDerivative)
			},
			set: func(s *models.BalanceSnapshot, v uint64) { s.PrivateDerivative = v },
		},
	}
}
