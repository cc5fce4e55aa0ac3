package main

import (
	"fmt"

	"private-stake-go/internal/common"
	"private-stake-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTopUpCmd() *cobra.Command {
	var amount, token string

	cmd := &cobra.Command{
		Use:   "topup",
		Short: "Move tokens from the public wallet into the private balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := openServices(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			kind, base, err := parseTopUp(amount, token, services.Registry)
			if err != nil {
				return err
			}
			info := services.Registry.Info(kind)

			zap.L().Info("Starting top-up",
				zap.String("token", info.Symbol),
				zap.String("amount", amount),
				zap.String("owner", services.Session.Owner()))

			result, err := services.Orchestrator.TopUp(cmd.Context(), services.Session, kind, base)
			if err != nil {
				return err
			}

			common.PrintHeader("Top-up "+info.Format(base), common.DefaultWidth)
			fmt.Printf("Signature:  %s\n", result.Signature)
			fmt.Printf("Fee:        %s\n", services.Registry.Info(result.Fee.Kind).Format(result.Fee.Amount))
			common.PrintSnapshot(result.Snapshot, services.Registry)
			for _, w := range result.Warnings {
				fmt.Printf("Warning: %s\n", w)
			}
			common.PrintFooter("topped up", common.DefaultWidth)
			return nil
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "amount in display units, e.g. 1.5")
	cmd.Flags().StringVar(&token, "token", "native", "token to top up: native, derivative or a configured symbol")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func parseTopUp(rawAmount, rawToken string, registry models.TokenRegistry) (models.TokenKind, uint64, error) {
	kind, err := models.ParseTokenKind(rawToken, registry)
	if err != nil {
		return 0, 0, err
	}
	amount, err := parseAmount(rawAmount, registry.Info(kind))
	if err != nil {
		return 0, 0, err
	}
	return kind, amount, nil
}
