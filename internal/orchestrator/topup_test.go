package orchestrator

import (
	"context"
	"testing"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopUpNativeFromPublicWallet(t *testing.T) {
	f := newFixture(t)
	audit := &recordingAudit{}
	f.orch.audit = audit

	result, err := f.orch.TopUp(context.Background(), f.sess, models.TokenNative, 500_000_000)
	require.NoError(t, err)

	assert.Contains(t, result.Signature, "topup")
	assert.Equal(t, models.FeeEstimate{Amount: f.chain.TopUpFee, Kind: models.TokenNative}, result.Fee)
	assert.Equal(t, uint64(500_000_000), f.chain.PrivateOf(models.TokenNative))
	// the owner pays the fee on top of the amount
	assert.Equal(t, uint64(1*sol-500_000_000-f.chain.TopUpFee), f.chain.NativeOf(f.sess.Owner()))
	assert.Equal(t, uint64(500_000_000), result.Snapshot.PrivateNative)
	assert.Equal(t, f.chain.NativeOf(f.sess.Owner()), result.Snapshot.PublicNative)

	calls := f.chain.Calls()
	assert.Contains(t, calls, "signer.SignTransaction")
	assert.NotContains(t, calls, "ledger.SignTransaction")

	require.Len(t, audit.movements, 1)
	assert.Equal(t, store.PublicAccount(f.sess.Owner()), audit.movements[0].Source)
	assert.Equal(t, store.PrivateAccount(f.sess.Owner()), audit.movements[0].Destination)
	assert.Equal(t, result.Id+":topup", audit.movements[0].Reference)
	assert.False(t, f.sess.Busy())
}

func TestTopUpDerivativePaysFeeInNative(t *testing.T) {
	f := newFixture(t)
	f.chain.SetDerivative(f.sess.Owner(), 1*sol)

	result, err := f.orch.TopUp(context.Background(), f.sess, models.TokenDerivative, 1*sol)
	require.NoError(t, err)

	assert.Equal(t, uint64(1*sol), f.chain.PrivateOf(models.TokenDerivative))
	assert.Zero(t, f.chain.DerivativeOf(f.sess.Owner()))
	assert.Equal(t, uint64(1*sol-f.chain.TopUpFee), f.chain.NativeOf(f.sess.Owner()))
	assert.Equal(t, uint64(1*sol), result.Snapshot.PrivateDerivative)
}

func TestTopUpRequiresAmountAndFee(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.TopUp(context.Background(), f.sess, models.TokenNative, 1*sol)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.ErrorContains(t, err, "SOL")
	assert.NotContains(t, f.chain.Calls(), "privacy.BuildTopUpTransaction")
	assert.Equal(t, uint64(1*sol), f.chain.NativeOf(f.sess.Owner()))

	_, err = f.orch.TopUp(context.Background(), f.sess, models.TokenDerivative, 1)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	_, err = f.orch.TopUp(context.Background(), f.sess, models.TokenNative, 0)
	assert.ErrorIs(t, err, models.ErrAmountBelowMinimum)
	assert.False(t, f.sess.Busy())
}

func TestTopUpRejectedWhileOperationRuns(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.TryAcquire())
	defer f.sess.Release()

	_, err := f.orch.TopUp(context.Background(), f.sess, models.TokenNative, 1_000_000)
	assert.ErrorIs(t, err, models.ErrOperationInProgress)
}

func TestTopUpSubmitFailure(t *testing.T) {
	f := newFixture(t)
	f.chain.FailOn("privacy.Submit:topup", models.ErrServiceUnavailable)

	_, err := f.orch.TopUp(context.Background(), f.sess, models.TokenNative, 100_000_000)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
	assert.Equal(t, uint64(1*sol), f.chain.NativeOf(f.sess.Owner()))
	assert.Zero(t, f.chain.PrivateOf(models.TokenNative))
}
