package fees

import (
	"context"
	"fmt"

	"private-stake-go/internal/models"

	"go.uber.org/zap"
)

// Quoter quotes privacy-service fees for the next transfer.
type Quoter interface {
	EstimateSendFee(ctx context.Context, amount uint64, kind models.TokenKind, recipient string) (models.FeeEstimate, error)
	EstimateTopUpFee(ctx context.Context, amount uint64, kind models.TokenKind) (models.FeeEstimate, error)
}

// RentSource reports the minimum balance an account of a given data size must hold.
type RentSource interface {
	GetMinimumRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// Limits are the staking protocol's minimum operation sizes, in base units.
type Limits struct {
	MinStake   uint64
	MinUnstake uint64
}

// Request describes a transfer to size.
type Request struct {
	Amount    uint64
	Kind      models.TokenKind
	Transfer  models.TransferKind
	Recipient string // send recipient; ignored for top-ups
}

// Adjuster reserves fees and rent out of requested amounts. Quotes are
// fetched on every call and never reused across stages.
type Adjuster struct {
	quoter Quoter
	rent   RentSource
	limits Limits
}

func NewAdjuster(quoter Quoter, rent RentSource, limits Limits) *Adjuster {
	return &Adjuster{quoter: quoter, rent: rent, limits: limits}
}

// Minimum is the floor for a transfer: the protocol minimum for sends that
// feed a stake or unstake, zero for top-ups.
func (a *Adjuster) Minimum(kind models.TokenKind, transfer models.TransferKind) uint64 {
	if transfer == models.TransferTopUp {
		return 0
	}
	if kind == models.TokenDerivative {
		return a.limits.MinUnstake
	}
	return a.limits.MinStake
}

// Preflight rejects amounts that cannot pass the protocol minimum without any
// network call.
func (a *Adjuster) Preflight(amount uint64, direction models.Direction) error {
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", models.ErrAmountBelowMinimum)
	}
	minimum := a.Minimum(direction.SourceKind(), models.TransferSend)
	if amount < minimum {
		return fmt.Errorf("%w: requested %d, minimum %d", models.ErrAmountBelowMinimum, amount, minimum)
	}
	return nil
}

// Adjust quotes the fee, reserves rent for native transfers and returns the safe amount.
func (a *Adjuster) Adjust(ctx context.Context, req Request) (models.Adjustment, error) {
	if a.quoter == nil {
		return models.Adjustment{}, fmt.Errorf("%w: no fee quoter", models.ErrServiceUnavailable)
	}

	var fee models.FeeEstimate
	var err error
	switch req.Transfer {
	case models.TransferSend:
		fee, err = a.quoter.EstimateSendFee(ctx, req.Amount, req.Kind, req.Recipient)
	case models.TransferTopUp:
		fee, err = a.quoter.EstimateTopUpFee(ctx, req.Amount, req.Kind)
	default:
		return models.Adjustment{}, fmt.Errorf("unknown transfer kind %d", req.Transfer)
	}
	if err != nil {
		return models.Adjustment{}, fmt.Errorf("%w: %w", models.ErrFeeEstimationFailed, err)
	}

	var reserve uint64
	if req.Kind == models.TokenNative {
		if a.rent == nil {
			return models.Adjustment{}, fmt.Errorf("%w: no rent source", models.ErrServiceUnavailable)
		}
		reserve, err = a.rent.GetMinimumRentExemption(ctx, 0)
		if err != nil {
			return models.Adjustment{}, fmt.Errorf("%w: rent exemption: %w", models.ErrFeeEstimationFailed, err)
		}
	}

	// Fees charged in another token do not reduce this transfer.
	charged := fee.Amount
	if fee.Kind != req.Kind {
		charged = 0
	}

	safe, err := Compute(req.Amount, charged, reserve, a.Minimum(req.Kind, req.Transfer))
	if err != nil {
		return models.Adjustment{}, err
	}

	zap.L().Debug("Adjusted transfer amount",
		append(models.LogFields(ctx),
			zap.String("transfer", req.Transfer.String()),
			zap.String("token", req.Kind.String()),
			zap.Uint64("requested", req.Amount),
			zap.Uint64("fee", fee.Amount),
			zap.Uint64("reserve", reserve),
			zap.Uint64("safe", safe))...)

	return models.Adjustment{
		Requested: req.Amount,
		Fee:       fee,
		Reserve:   reserve,
		Safe:      safe,
	}, nil
}

// Compute returns amount - fee - reserve, failing when nothing positive or
// nothing at or above minimum would remain.
func Compute(amount, fee, reserve, minimum uint64) (uint64, error) {
	deduction := fee + reserve
	if deduction < fee {
		return 0, fmt.Errorf("%w: fee and reserve overflow", models.ErrAmountBelowMinimum)
	}
	if amount <= deduction {
		return 0, fmt.Errorf("%w: amount %d does not cover fee %d and reserve %d",
			models.ErrAmountBelowMinimum, amount, fee, reserve)
	}
	safe := amount - deduction
	if safe < minimum {
		return 0, fmt.Errorf("%w: %d after fees, minimum %d", models.ErrAmountBelowMinimum, safe, minimum)
	}
	return safe, nil
}
