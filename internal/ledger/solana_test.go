package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"private-stake-go/internal/keys"
	"private-stake-go/internal/models"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcFailure struct {
	code    int
	message string
}

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// newRPCServer answers JSON-RPC calls from a method → result table.
func newRPCServer(t *testing.T, results map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			result = rpcFailure{code: -32601, message: "method not found"}
		}
		if f, isFailure := result.(rpcFailure); isFailure {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"jsonrpc": "2.0",
				"id":      req.ID,
				"error":   map[string]any{"code": f.code, "message": f.message},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, results map[string]any) *SolanaClient {
	t.Helper()
	srv := newRPCServer(t, results)
	c, err := NewSolanaClient(models.LedgerConfig{
		RpcUrl:         srv.URL,
		ConfirmTimeout: 200 * time.Millisecond,
		PollInterval:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	return c
}

func testKeypair(t *testing.T, b byte) *keys.Keypair {
	t.Helper()
	seed := make([]byte, keys.SeedSize)
	seed[0] = b
	kp, err := keys.NewKeypairFromSeed(seed)
	require.NoError(t, err)
	return kp
}

func TestNewSolanaClientRequiresURL(t *testing.T) {
	_, err := NewSolanaClient(models.LedgerConfig{})
	assert.Error(t, err)
}

func TestGetBalance(t *testing.T) {
	c := newTestClient(t, map[string]any{
		"getBalance": map[string]any{"context": map[string]any{"slot": 1}, "value": 2_000_000_000},
	})
	got, err := c.GetBalance(context.Background(), testKeypair(t, 1).Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(2_000_000_000), got)

	_, err = c.GetBalance(context.Background(), "not-base58-0OIl")
	assert.Error(t, err)
}

func TestGetTokenAccountBalance(t *testing.T) {
	owner := testKeypair(t, 1).Address()
	mint := models.DefaultTokenRegistry().Derivative.Mint

	c := newTestClient(t, map[string]any{
		"getTokenAccountBalance": map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   map[string]any{"amount": "1234567", "decimals": 9, "uiAmountString": "0.001234567"},
		},
	})
	got, err := c.GetTokenAccountBalance(context.Background(), owner, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567), got)

	c = newTestClient(t, map[string]any{
		"getTokenAccountBalance": rpcFailure{code: -32602, message: "Invalid param: could not find account"},
	})
	got, err = c.GetTokenAccountBalance(context.Background(), owner, mint)
	require.NoError(t, err)
	assert.Zero(t, got)

	c = newTestClient(t, map[string]any{})
	_, err = c.GetTokenAccountBalance(context.Background(), owner, mint)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestGetCurrentTimestamp(t *testing.T) {
	c := newTestClient(t, map[string]any{
		"getSlot":      250_000_000,
		"getBlockTime": 1_700_000_123,
	})
	ts, err := c.GetCurrentTimestamp(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_123), ts)
}

func TestGetMinimumRentExemption(t *testing.T) {
	c := newTestClient(t, map[string]any{"getMinimumBalanceForRentExemption": 890_880})
	rent, err := c.GetMinimumRentExemption(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(890_880), rent)
}

func TestBuildTransferAndSign(t *testing.T) {
	blockhash := solana.Hash{7, 7, 7}
	c := newTestClient(t, map[string]any{
		"getLatestBlockhash": map[string]any{
			"context": map[string]any{"slot": 1},
			"value":   map[string]any{"blockhash": blockhash.String(), "lastValidBlockHeight": 100},
		},
	})
	owner := testKeypair(t, 1)
	burner := testKeypair(t, 2)

	tx, err := c.BuildTransfer(context.Background(), owner.Address(), burner.Address(), 50_000_000)
	require.NoError(t, err)

	signed, err := c.SignTransaction(context.Background(), tx, owner)
	require.NoError(t, err)

	decoded, err := decodeTx(signed)
	require.NoError(t, err)
	assert.Equal(t, blockhash, decoded.Message.RecentBlockhash)
	require.NotEmpty(t, decoded.Signatures)
	assert.False(t, decoded.Signatures[0].IsZero())
	require.NoError(t, decoded.VerifySignatures())
}

func TestConfirmTransaction(t *testing.T) {
	sig := solana.Signature{1, 2, 3}
	status := func(s string, txErr any) map[string]any {
		return map[string]any{
			"getSignatureStatuses": map[string]any{
				"context": map[string]any{"slot": 1},
				"value": []any{map[string]any{
					"slot": 1, "confirmations": nil, "err": txErr, "confirmationStatus": s,
				}},
			},
		}
	}
	ctx := context.Background()

	c := newTestClient(t, status("finalized", nil))
	assert.NoError(t, c.ConfirmTransaction(ctx, sig.String(), models.CommitmentFinalized))

	c = newTestClient(t, status("confirmed", nil))
	assert.NoError(t, c.ConfirmTransaction(ctx, sig.String(), models.CommitmentConfirmed))
	assert.ErrorIs(t, c.ConfirmTransaction(ctx, sig.String(), models.CommitmentFinalized), models.ErrConfirmationTimeout)

	c = newTestClient(t, status("confirmed", map[string]any{"InstructionError": []any{0, "Custom"}}))
	assert.ErrorIs(t, c.ConfirmTransaction(ctx, sig.String(), models.CommitmentConfirmed), models.ErrTransactionRejected)
}

func TestReached(t *testing.T) {
	assert.True(t, reached(rpc.ConfirmationStatusFinalized, models.CommitmentFinalized))
	assert.True(t, reached(rpc.ConfirmationStatusFinalized, models.CommitmentConfirmed))
	assert.True(t, reached(rpc.ConfirmationStatusConfirmed, models.CommitmentConfirmed))
	assert.False(t, reached(rpc.ConfirmationStatusConfirmed, models.CommitmentFinalized))
	assert.False(t, reached(rpc.ConfirmationStatusProcessed, models.CommitmentConfirmed))
}
