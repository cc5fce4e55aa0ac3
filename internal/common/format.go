package common

import (
	"fmt"
	"strings"

	"private-stake-go/internal/api"
	"private-stake-go/internal/models"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", width))
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	fmt.Println("\n" + strings.Repeat("=", width))
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// PrintSnapshot prints the four balances of an owner
func PrintSnapshot(snapshot models.BalanceSnapshot, registry models.TokenRegistry) {
	rows := []struct {
		label  string
		kind   models.TokenKind
		amount uint64
	}{
		{"public", models.TokenNative, snapshot.PublicNative},
		{"public", models.TokenDerivative, snapshot.PublicDerivative},
		{"private", models.TokenNative, snapshot.PrivateNative},
		{"private", models.TokenDerivative, snapshot.PrivateDerivative},
	}
	for i, r := range rows {
		fmt.Printf("%s%-8s %s\n", BoxPrefix(i == len(rows)-1), r.label, registry.Info(r.kind).Format(r.amount))
	}
}

// PrintResult prints the outcome of a stake or unstake
func PrintResult(result *models.OperationResult, registry models.TokenRegistry) {
	op := result.Operation
	fmt.Printf("Operation:  %s\n", op.Id)
	fmt.Printf("Direction:  %s\n", op.Direction)
	fmt.Printf("Status:     %s\n", op.StatusLabel())
	fmt.Printf("Requested:  %s\n", registry.Info(op.SourceKind).Format(op.RequestedAmount))
	if op.SafeAmount > 0 {
		fmt.Printf("Moved:      %s\n", registry.Info(op.SourceKind).Format(op.SafeAmount))
	}
	if result.Signature != "" {
		fmt.Printf("Signature:  %s\n", result.Signature)
	}
	if op.Error != "" {
		fmt.Printf("Error:      %s\n", op.Error)
	}
	if op.Recovery != nil {
		printStranded(op.Recovery.Stranded, registry)
	}
	if result.Residual != nil {
		printStranded(result.Residual.Stranded, registry)
	}
	for _, w := range result.Warnings {
		fmt.Printf("Warning:    %s\n", w)
	}
	fmt.Println("Balances:")
	PrintSnapshot(result.Snapshot, registry)
}

func printStranded(stranded []models.StrandedFunds, registry models.TokenRegistry) {
	for i, f := range stranded {
		last := i == len(stranded)-1
		fmt.Printf("%sSTRANDED %s in %s (nonce %d)\n",
			BoxPrefix(last), registry.Info(f.Kind).Format(f.Amount), f.BurnerAddress, f.BurnerNonce)
		fmt.Printf("%s%s\n", BoxDetailPrefix(last), f.Reason)
	}
}

// PrintOperations prints an operation history table
func PrintOperations(records []api.OperationRecord) {
	fmt.Printf("%-36s  %-8s  %-17s  %-22s  %s\n", "ID", "DIR", "STATUS", "AMOUNT", "CREATED")
	for _, r := range records {
		fmt.Printf("%-36s  %-8s  %-17s  %-22s  %s\n",
			r.Id, r.Direction, r.Status, r.Requested, r.CreatedAt.Format("2006-01-02 15:04:05"))
		if r.Error != "" {
			fmt.Printf("%s%s\n", BoxPrefix(true), r.Error)
		}
	}
}

// PrintStranded prints stranded funds records
func PrintStranded(records []api.StrandedRecord) {
	for i, r := range records {
		last := i == len(records)-1
		state := "open"
		if r.Resolved {
			state = "resolved"
		}
		fmt.Printf("%s%s  %s  nonce %d  [%s]\n", BoxPrefix(last), r.Burner, r.Amount, r.Nonce, state)
		fmt.Printf("%soperation %s: %s\n", BoxDetailPrefix(last), r.OperationId, r.Reason)
	}
}

// PrintAuditBalances prints audit ledger balances per account
func PrintAuditBalances(balances []api.AuditBalance) {
	fmt.Printf("%-60s  %s\n", "ACCOUNT", "BALANCE")
	for _, b := range balances {
		fmt.Printf("%-60s  %s\n", b.Account, b.Balance)
	}
}
