package main

import (
	"fmt"

	"private-stake-go/internal/common"

	"github.com/spf13/cobra"
)

func newBalancesCmd() *cobra.Command {
	var audit bool
	var limit int

	cmd := &cobra.Command{
		Use:   "balances",
		Short: "Show the owner's public and private balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := openServices(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			owner := services.Session.Owner()
			result := services.Reconciler.Refresh(cmd.Context(), services.Session)

			common.PrintHeader("Balances for "+owner, common.DefaultWidth)
			common.PrintSnapshot(result.Snapshot, services.Registry)
			for _, w := range result.Warnings {
				fmt.Printf("Warning: %s\n", w)
			}

			if !audit {
				return nil
			}
			balances, err := services.Operations.AuditBalances(cmd.Context(), owner, limit)
			if err != nil {
				return err
			}
			common.PrintHeader("Audit ledger", common.DefaultWidth)
			common.PrintAuditBalances(balances)
			return nil
		},
	}

	cmd.Flags().BoolVar(&audit, "audit", false, "also show audit ledger balances of the owner and recent burners")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of recent operations whose burners are shown")
	return cmd
}
