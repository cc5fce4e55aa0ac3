package main

import (
	"fmt"

	"private-stake-go/internal/common"
	"private-stake-go/internal/models"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRecoverCmd() *cobra.Command {
	var (
		nonce       int64
		operationId string
	)

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Return whatever a burner still holds to the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := openServices(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			if err := services.Session.TryAcquire(); err != nil {
				return err
			}
			defer services.Session.Release()

			ctx := cmd.Context()
			burner, err := services.Session.Deriver().Derive(ctx, nonce)
			if err != nil {
				return err
			}
			if operationId == "" {
				operationId = fmt.Sprintf("manual-%d", nonce)
			}

			ctx = models.WithOperationContext(ctx, &models.OperationContext{
				OperationId: operationId,
				Stage:       models.StatusFailed,
				Burner:      burner.Address(),
			})
			zap.L().Info("Recovering burner", models.LogFields(ctx)...)

			outcome := services.Recovery.Recover(ctx, services.Session, burner, operationId)

			common.PrintHeader("Recovery of "+burner.Address(), common.DefaultWidth)
			for i, sig := range outcome.Signatures {
				fmt.Printf("%s%s\n", common.BoxPrefix(i == len(outcome.Signatures)-1), sig)
			}
			if outcome.PublicFallback {
				fmt.Println("Some funds were returned to the public wallet")
			}
			if !outcome.Recovered() {
				for _, f := range outcome.Stranded {
					fmt.Printf("STRANDED %s: %s\n", services.Registry.Info(f.Kind).Format(f.Amount), f.Reason)
				}
				return models.ErrStrandedFunds
			}
			common.PrintFooter("Burner recovered", common.DefaultWidth)
			return nil
		},
	}

	cmd.Flags().Int64Var(&nonce, "nonce", 0, "burner nonce to recover")
	cmd.Flags().StringVar(&operationId, "operation", "", "operation id the recovery belongs to")
	_ = cmd.MarkFlagRequired("nonce")
	return cmd
}
