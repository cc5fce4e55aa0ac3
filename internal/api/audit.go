package api

import (
	"context"
	"errors"
	"fmt"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	"go.uber.org/zap"
)

var ErrAuditDisabled = errors.New("audit ledger not configured")

// AuditBalance is one audit ledger account balance rendered for display
type AuditBalance struct {
	Account string
	Token   string
	Balance string
}

// AuditBalances reads the owner's private and public accounts from the audit
// ledger, plus the burners of the owner's latest operations. A burner left
// with a non-zero balance holds funds the pipeline did not return.
func (s *OperationsService) AuditBalances(ctx context.Context, owner string, limit int) ([]AuditBalance, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}
	if s.audit == nil {
		return nil, ErrAuditDisabled
	}
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	ops, err := s.journal.ListOperations(ctx, owner, limit, 0)
	if err != nil {
		zap.L().Error("Failed to list operations", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve operation history")
	}

	accounts := []string{store.PrivateAccount(owner), store.PublicAccount(owner)}
	seen := make(map[string]bool)
	for _, op := range ops {
		if op.BurnerAddress == "" || seen[op.BurnerAddress] {
			continue
		}
		seen[op.BurnerAddress] = true
		accounts = append(accounts, store.BurnerAccount(op.BurnerAddress))
	}

	var result []AuditBalance
	for _, account := range accounts {
		for _, kind := range []models.TokenKind{models.TokenNative, models.TokenDerivative} {
			balance, err := s.audit.AccountBalance(ctx, account, kind)
			if err != nil {
				zap.L().Error("Failed to read audit balance",
					zap.String("account", account),
					zap.String("token", kind.String()),
					zap.Error(err))
				return nil, fmt.Errorf("failed to retrieve audit balances")
			}
			info := s.registry.Info(kind)
			result = append(result, AuditBalance{
				Account: account,
				Token:   info.Symbol,
				Balance: balance.String() + " " + info.Symbol,
			})
		}
	}
	return result, nil
}
