package main

import (
	"fmt"

	"private-stake-go/internal/api"
	"private-stake-go/internal/common"

	"github.com/spf13/cobra"
)

func newOperationsCmd() *cobra.Command {
	var (
		owner           string
		limit, offset   int
		stranded        bool
		includeResolved bool
	)

	cmd := &cobra.Command{
		Use:   "operations",
		Short: "List journaled operations or stranded funds of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			journal, registry, err := common.InitializeJournalOnly(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer journal.Close()

			svc := api.NewOperationsService(journal, registry)
			if err := svc.HealthCheck(cmd.Context()); err != nil {
				return err
			}

			if stranded {
				records, err := svc.ListStranded(cmd.Context(), owner, includeResolved)
				if err != nil {
					return err
				}
				common.PrintHeader(fmt.Sprintf("Stranded funds for %s (%d)", owner, len(records)), common.WideWidth)
				common.PrintStranded(records)
				return nil
			}

			records, err := svc.ListOperations(cmd.Context(), owner, limit, offset)
			if err != nil {
				return err
			}
			common.PrintHeader(fmt.Sprintf("Operations for %s", owner), common.WideWidth)
			common.PrintOperations(records)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owner wallet address")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of operations (1-100)")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of operations to skip")
	cmd.Flags().BoolVar(&stranded, "stranded", false, "list stranded funds instead of operations")
	cmd.Flags().BoolVar(&includeResolved, "all", false, "include resolved stranded funds")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
