package sweeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"private-stake-go/internal/database"
	"private-stake-go/internal/keys"
	"private-stake-go/internal/models"
	"private-stake-go/internal/recovery"
	"private-stake-go/internal/session"
	"private-stake-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	chain   *testutil.Chain
	sess    *session.Session
	journal *database.Service
	sweeper *Sweeper
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	chain := testutil.NewChain()

	sess, err := session.Open(ctx, session.OpenParams{
		Signer:  chain.Signer(testutil.NewKeypair(1)),
		Ledger:  chain.Ledger(),
		Privacy: chain.Connector(),
		Staking: chain.Staking(),
		Label:   "TEST_STAKE_KEY",
	})
	require.NoError(t, err)

	journal, err := database.NewService(ctx, models.DatabaseConfig{
		Path:         t.TempDir() + "/journal.db",
		MaxOpenConns: 1,
		PingTimeout:  time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(journal.Close)

	return &fixture{
		chain:   chain,
		sess:    sess,
		journal: journal,
		sweeper: New(Config{
			Session: sess,
			Journal: journal,
			Recovery: recovery.NewManager(recovery.Params{
				Registry: models.DefaultTokenRegistry(),
				TxFee:    chain.TxFee,
			}),
		}),
	}
}

// strand funds a burner and journals both of its balances as stranded.
func (f *fixture) strand(t *testing.T, nonce int64, native, derivative uint64) *keys.Burner {
	t.Helper()
	ctx := context.Background()
	burner, err := f.sess.Deriver().Derive(ctx, nonce)
	require.NoError(t, err)

	f.chain.SetNative(burner.Address(), native)
	f.chain.SetDerivative(burner.Address(), derivative)
	for _, kind := range []models.TokenKind{models.TokenDerivative, models.TokenNative} {
		amount := native
		if kind == models.TokenDerivative {
			amount = derivative
		}
		_, err := f.journal.RecordStranded(ctx, models.StrandedFunds{
			OperationId:   "op-stranded",
			Owner:         f.sess.Owner(),
			BurnerAddress: burner.Address(),
			BurnerNonce:   nonce,
			Kind:          kind,
			Amount:        amount,
			Reason:        "private: unavailable; public: unavailable",
		})
		require.NoError(t, err)
	}
	return burner
}

func TestRunOnceResolvesRecoveredBurner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burner := f.strand(t, 42, 60_000_000, 1_000_000_000)
	privateBefore := f.chain.PrivateOf(models.TokenDerivative)

	summary, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Burners: 1, Resolved: 2, Remaining: 0}, summary)

	assert.Equal(t, privateBefore+1_000_000_000, f.chain.PrivateOf(models.TokenDerivative))
	assert.Zero(t, f.chain.DerivativeOf(burner.Address()))

	open, err := f.journal.ListStranded(ctx, f.sess.Owner(), false)
	require.NoError(t, err)
	assert.Empty(t, open)

	all, err := f.journal.ListStranded(ctx, f.sess.Owner(), true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, r := range all {
		assert.NotNil(t, r.ResolvedAt)
		assert.NotEmpty(t, r.Resolution)
	}
	assert.False(t, f.sess.Busy())
}

func TestRunOnceKeepsUnrecoveredRecordsOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.strand(t, 42, 60_000_000, 1_000_000_000)
	f.chain.FailOn("privacy.Submit", models.ErrServiceUnavailable)
	f.chain.FailOn("ledger.SendTransaction", errors.New("blockhash not found"))

	summary, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Remaining)
	assert.Zero(t, summary.Resolved)

	open, err := f.journal.ListStranded(ctx, f.sess.Owner(), false)
	require.NoError(t, err)
	assert.Len(t, open, 2, "the sweep must not journal duplicates")

	// the next tick succeeds once the services recover
	f.chain.FailOn("privacy.Submit", nil)
	f.chain.FailOn("ledger.SendTransaction", nil)
	summary, err = f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Resolved)
}

func TestRunOnceResolvesOnlyRecoveredKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.strand(t, 42, 60_000_000, 1_000_000_000)
	f.chain.FailOn("ledger.GetTokenAccountBalance", models.ErrServiceUnavailable)

	summary, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Resolved)
	assert.Equal(t, 1, summary.Remaining)

	open, err := f.journal.ListStranded(ctx, f.sess.Owner(), false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, models.TokenDerivative, open[0].Kind)
}

func TestRunOnceRetriesOnlyRecordedKinds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	burner, err := f.sess.Deriver().Derive(ctx, 43)
	require.NoError(t, err)
	f.chain.SetNative(burner.Address(), 60_000_000)
	_, err = f.journal.RecordStranded(ctx, models.StrandedFunds{
		OperationId:   "op-native",
		Owner:         f.sess.Owner(),
		BurnerAddress: burner.Address(),
		BurnerNonce:   43,
		Kind:          models.TokenNative,
		Amount:        60_000_000,
	})
	require.NoError(t, err)
	f.chain.FailOn("ledger.GetTokenAccountBalance", models.ErrServiceUnavailable)

	summary, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Burners: 1, Resolved: 1, Remaining: 0}, summary)
	assert.NotContains(t, f.chain.Calls(), "ledger.GetTokenAccountBalance")
	assert.Equal(t, f.chain.Rent, f.chain.NativeOf(burner.Address()))
}

func TestRunOnceSkipsMismatchedBurner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.journal.RecordStranded(ctx, models.StrandedFunds{
		OperationId:   "op-other",
		Owner:         f.sess.Owner(),
		BurnerAddress: testutil.NewKeypair(5).Address(),
		BurnerNonce:   7,
		Kind:          models.TokenNative,
		Amount:        10_000_000,
	})
	require.NoError(t, err)

	summary, err := f.sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Summary{Burners: 1, Resolved: 0, Remaining: 1}, summary)
	assert.NotContains(t, f.chain.Calls(), "privacy.BuildTopUpTransaction")
}

func TestRunOnceWithNothingStranded(t *testing.T) {
	f := newFixture(t)

	summary, err := f.sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Summary{}, summary)
}

func TestRunOnceSkipsBusySession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.sess.TryAcquire())
	defer f.sess.Release()

	_, err := f.sweeper.RunOnce(context.Background())
	assert.ErrorIs(t, err, models.ErrOperationInProgress)
}

func TestStartAndStop(t *testing.T) {
	f := newFixture(t)
	f.strand(t, 42, 60_000_000, 0)

	require.NoError(t, f.sweeper.Start(context.Background()))
	f.sweeper.Stop()

	// the startup sweep already ran
	open, err := f.journal.ListStranded(context.Background(), f.sess.Owner(), false)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	f := newFixture(t)
	s := New(Config{
		Session:  f.sess,
		Journal:  f.journal,
		Recovery: recovery.NewManager(recovery.Params{Registry: models.DefaultTokenRegistry()}),
		Schedule: "every now and then",
	})

	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "invalid sweeper schedule")
}
