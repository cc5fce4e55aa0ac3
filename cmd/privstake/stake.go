package main

import (
	"fmt"

	"private-stake-go/internal/common"
	"private-stake-go/internal/models"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStakeCmd() *cobra.Command {
	return newOperationCmd(models.DirectionStake, "Convert private native tokens into private derivative tokens")
}

func newUnstakeCmd() *cobra.Command {
	return newOperationCmd(models.DirectionUnstake, "Convert private derivative tokens back into private native tokens")
}

func newOperationCmd(direction models.Direction, short string) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   direction.String(),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOperation(cmd, direction, amount)
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount in display units of the source token, e.g. 1.5")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func runOperation(cmd *cobra.Command, direction models.Direction, rawAmount string) error {
	services, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer services.Close()

	amount, err := parseAmount(rawAmount, services.Registry.Info(direction.SourceKind()))
	if err != nil {
		return err
	}

	zap.L().Info("Starting operation",
		zap.String("direction", direction.String()),
		zap.String("amount", rawAmount),
		zap.String("owner", services.Session.Owner()))

	result, err := services.Orchestrator.Execute(cmd.Context(), services.Session, direction, amount)
	if result != nil {
		common.PrintHeader(fmt.Sprintf("%s %s", direction, services.Registry.Info(direction.SourceKind()).Format(amount)), common.DefaultWidth)
		common.PrintResult(result, services.Registry)
		common.PrintFooter(result.Operation.StatusLabel(), common.DefaultWidth)
	}
	return err
}

// parseAmount reads a display-unit amount such as "1.5" into base units.
func parseAmount(raw string, info models.TokenInfo) (uint64, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("amount must be positive: %s", raw)
	}
	return info.FromDecimal(d)
}
