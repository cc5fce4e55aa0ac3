package main

import (
	"fmt"

	"private-stake-go/internal/keys"

	"github.com/spf13/cobra"
)

func newBurnerCmd() *cobra.Command {
	var (
		nonce        int64
		showMnemonic bool
	)

	cmd := &cobra.Command{
		Use:   "burner",
		Short: "Show the burner derived for a nonce",
		Long: "Re-derives a burner from the owner's capability seed. Without --nonce the " +
			"current ledger timestamp is used, which is the burner the next operation would pick.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			services, err := openServices(cmd)
			if err != nil {
				return err
			}
			defer services.Close()

			ctx := cmd.Context()
			deriver := services.Session.Deriver()

			var burner *keys.Burner
			if cmd.Flags().Changed("nonce") {
				burner, err = deriver.Derive(ctx, nonce)
			} else {
				burner, err = deriver.DeriveFresh(ctx)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Nonce:    %d\n", burner.Nonce)
			fmt.Printf("Address:  %s\n", burner.Address())

			if showMnemonic {
				mnemonic, err := burner.Keypair.Mnemonic()
				if err != nil {
					return err
				}
				fmt.Printf("Mnemonic: %s\n", mnemonic)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&nonce, "nonce", 0, "burner nonce (ledger timestamp of the operation)")
	cmd.Flags().BoolVar(&showMnemonic, "mnemonic", false, "print the burner key as a BIP-39 mnemonic for wallet import")
	return cmd
}
