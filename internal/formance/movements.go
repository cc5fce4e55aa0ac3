package formance

import (
	"context"
	"fmt"
	"strconv"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript template. Metadata is set inside the script via set_tx_meta() so
// the Formance transaction is fully self-describing. Every account is fed
// from the chain, not from the audit ledger, so sources may overdraft.
// ---------------------------------------------------------------------------

const numscriptMovement = `vars {
  asset $asset
  number $amount
  account $source
  account $destination
  string $operation_id
  string $signature
  string $stage
  string $token_symbol
}

send [$asset $amount] (
  source = $source allowing unbounded overdraft
  destination = $destination
)

set_tx_meta("event_type", "stake_movement")
set_tx_meta("operation_id", $operation_id)
set_tx_meta("signature", $signature)
set_tx_meta("stage", $stage)
set_tx_meta("token_symbol", $token_symbol)
`

// RecordMovement posts one confirmed movement. The movement reference is the
// transaction reference, so replays are idempotent.
func (s *Service) RecordMovement(ctx context.Context, params store.MovementParams) error {
	if params.Amount == 0 {
		return nil
	}
	postTx := movementTransaction(params, s.registry.Info(params.Kind))

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil // idempotent
		}
		return fmt.Errorf("error recording movement %s: %w", params.Reference, err)
	}

	zap.L().Debug("Movement recorded in Formance",
		append(models.LogFields(ctx),
			zap.String("reference", params.Reference),
			zap.String("source", params.Source),
			zap.String("destination", params.Destination),
			zap.Uint64("amount", params.Amount))...)
	return nil
}

func movementTransaction(params store.MovementParams, info models.TokenInfo) shared.V2PostTransaction {
	symbol := params.Symbol
	if symbol == "" {
		symbol = info.Symbol
	}
	postTx := shared.V2PostTransaction{
		Reference: strPtr(params.Reference),
		Script: &shared.V2PostTransactionScript{
			Plain: numscriptMovement,
			Vars: map[string]string{
				"asset":        formanceAsset(info),
				"amount":       strconv.FormatUint(params.Amount, 10),
				"source":       params.Source,
				"destination":  params.Destination,
				"operation_id": params.OperationId,
				"signature":    params.Signature,
				"stage":        string(params.Stage),
				"token_symbol": symbol,
			},
		},
	}
	if !params.At.IsZero() {
		at := params.At
		postTx.Timestamp = &at
	}
	return postTx
}

func strPtr(s string) *string { return &s }
