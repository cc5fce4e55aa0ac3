package formance

import (
	"context"
	"fmt"
	"math/big"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var _ store.AuditReader = (*Service)(nil)

// AccountBalance returns what the audit ledger has seen flow through an
// account path for one token kind. Unknown accounts hold zero.
func (s *Service) AccountBalance(ctx context.Context, account string, kind models.TokenKind) (decimal.Decimal, error) {
	zap.L().Debug("Getting audit balance from Formance",
		zap.String("account", account), zap.String("token", kind.String()))

	vols, err := s.getAccountVolumes(ctx, account)
	if err != nil {
		return decimal.Zero, err
	}
	info := s.registry.Info(kind)
	return bigIntToDecimal(volumeBalance(vols, formanceAsset(info)), info.Decimals), nil
}

// getAccountVolumes fetches volumes for a single account via GetAccount (clean GET).
func (s *Service) getAccountVolumes(ctx context.Context, address string) (map[string]shared.V2Volume, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account volumes for %s: %w", address, err)
	}
	return resp.V2AccountResponse.Data.Volumes, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}
