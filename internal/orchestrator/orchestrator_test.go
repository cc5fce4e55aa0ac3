package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"private-stake-go/internal/database"
	"private-stake-go/internal/keys"
	"private-stake-go/internal/ledger"
	"private-stake-go/internal/models"
	"private-stake-go/internal/recovery"
	"private-stake-go/internal/session"
	"private-stake-go/internal/store"
	"private-stake-go/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sol = 1_000_000_000

type fixture struct {
	chain   *testutil.Chain
	sess    *session.Session
	journal *database.Service
	orch    *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithLedger(t, nil)
}

// newFixtureWithLedger lets wrap stand between the session and the chain's ledger.
func newFixtureWithLedger(t *testing.T, wrap func(ledger.Client) ledger.Client) *fixture {
	t.Helper()
	ctx := context.Background()
	chain := testutil.NewChain()
	owner := testutil.NewKeypair(1)

	var ledgerClient ledger.Client = chain.Ledger()
	if wrap != nil {
		ledgerClient = wrap(ledgerClient)
	}

	sess, err := session.Open(ctx, session.OpenParams{
		Signer:  chain.Signer(owner),
		Ledger:  ledgerClient,
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

	registry := models.DefaultTokenRegistry()
	orch := New(Params{
		Config: models.OrchestratorConfig{
			FundingReserve:  50_000_000,
			ProtocolReserve: 10_000_000,
			MinStake:        1_300_000_000,
			MinUnstake:      1_000_000,
			NonceAttempts:   2,
		},
		Registry: registry,
		Journal:  journal,
		Recovery: recovery.NewManager(recovery.Params{
			Registry: registry,
			TxFee:    chain.TxFee,
			Journal:  journal,
		}),
		PollInterval: time.Millisecond,
	})

	chain.SetNative(owner.Address(), 1*sol)
	return &fixture{chain: chain, sess: sess, journal: journal, orch: orch}
}

// total is everything the owner holds plus what is left in burners.
func (f *fixture) total(burners ...string) uint64 {
	owner := f.sess.Owner()
	sum := f.chain.NativeOf(owner) + f.chain.DerivativeOf(owner) +
		f.chain.PrivateOf(models.TokenNative) + f.chain.PrivateOf(models.TokenDerivative)
	for _, b := range burners {
		sum += f.chain.NativeOf(b) + f.chain.DerivativeOf(b)
	}
	return sum
}

func TestStakeCompletes(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)

	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)
	require.NoError(t, err)

	op := result.Operation
	assert.Equal(t, models.StatusCompleted, op.Status)
	assert.NotEmpty(t, result.Signature)
	assert.Equal(t, op.Signature, result.Signature)
	assert.Contains(t, result.Signature, "deposit")
	assert.Equal(t, int64(1_700_000_000), op.BurnerNonce)

	// 1.5 SOL less the 0.005 send fee and the rent reserve
	assert.Equal(t, uint64(1_494_109_120), op.SafeAmount)
	assert.Equal(t, uint64(1_494_109_120), f.chain.PrivateOf(models.TokenDerivative))
	assert.Equal(t, uint64(1_494_109_120), result.Snapshot.PrivateDerivative)

	// residual funding returned privately, the rent stays in the burner
	require.NotNil(t, result.Residual)
	assert.True(t, result.Residual.Recovered())
	assert.False(t, result.Residual.PublicFallback)
	assert.Equal(t, f.chain.Rent, f.chain.NativeOf(op.BurnerAddress))
	assert.Equal(t, uint64(546_885_880), f.chain.PrivateOf(models.TokenNative))

	stored, err := f.journal.GetOperation(context.Background(), op.Id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, result.Signature, stored.Signature)
	assert.Equal(t, op.BurnerAddress, stored.BurnerAddress)
	assert.False(t, f.sess.Busy())
}

func TestStakeBelowMinimumMakesNoCalls(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	before := len(f.chain.Calls())

	result, err := f.orch.Stake(context.Background(), f.sess, 1*sol)

	assert.ErrorIs(t, err, models.ErrAmountBelowMinimum)
	assert.Nil(t, result)
	assert.Len(t, f.chain.Calls(), before)

	_, err = f.orch.Stake(context.Background(), f.sess, 0)
	assert.ErrorIs(t, err, models.ErrAmountBelowMinimum)
}

func TestProtocolRejectionRecoversToPrivateBalance(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	f.chain.FailOn("ledger.SendTransaction:deposit", models.ErrTransactionRejected)

	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)
	require.Error(t, err)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusExecuting, serr.Stage)
	assert.ErrorIs(t, err, models.ErrTransactionRejected)
	assert.NotErrorIs(t, err, models.ErrStrandedFunds)

	require.NotNil(t, serr.Recovery)
	assert.True(t, serr.Recovery.Recovered())
	assert.Len(t, serr.Recovery.Signatures, 1)

	op := result.Operation
	assert.Equal(t, models.StatusFailed, op.Status)
	assert.Equal(t, "failed+recovered", op.StatusLabel())
	assert.Equal(t, f.chain.Rent, f.chain.NativeOf(op.BurnerAddress))

	stored, err := f.journal.GetOperation(context.Background(), op.Id)
	require.NoError(t, err)
	assert.Equal(t, "failed+recovered", stored.StatusLabel())
}

func TestProtocolRejectionWithFailedSweepStrandsFunds(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	f.chain.FailOn("ledger.SendTransaction:deposit", models.ErrTransactionRejected)
	f.chain.FailOn("privacy.Submit:topup", models.ErrServiceUnavailable)
	// the funding transfer goes through, the recovery transfer does not
	f.chain.FailOnAfter("ledger.SendTransaction:transfer", 1, models.ErrServiceUnavailable)

	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStrandedFunds)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	require.Len(t, serr.Recovery.Stranded, 1)
	stranded := serr.Recovery.Stranded[0]
	assert.Equal(t, models.TokenNative, stranded.Kind)
	assert.Equal(t, f.chain.NativeOf(result.Operation.BurnerAddress), stranded.Amount)
	assert.Equal(t, result.Operation.BurnerNonce, stranded.BurnerNonce)
	assert.Equal(t, "failed+stranded", result.Operation.StatusLabel())

	open, err := f.journal.ListStranded(context.Background(), f.sess.Owner(), false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, stranded.Id, open[0].Id)
}

func TestConcurrentOperationIsRejected(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	reached, release := f.chain.Pause("signer.SendAndConfirm")
	defer release()

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)
		done <- err
	}()
	<-reached

	before := len(f.chain.Calls())
	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)
	assert.ErrorIs(t, err, models.ErrOperationInProgress)
	assert.Nil(t, result)
	assert.Len(t, f.chain.Calls(), before)

	release()
	require.NoError(t, <-done)
	assert.False(t, f.sess.Busy())
}

func TestStakeThenUnstakeConservesValue(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	ctx := context.Background()
	before := f.total()

	staked, err := f.orch.Stake(ctx, f.sess, 1_500_000_000)
	require.NoError(t, err)

	f.chain.AdvanceClock(60)
	unstaked, err := f.orch.Unstake(ctx, f.sess, 1*sol)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, unstaked.Operation.Status)
	assert.NotEqual(t, staked.Operation.BurnerAddress, unstaked.Operation.BurnerAddress)
	assert.Contains(t, unstaked.Signature, "unstake")

	after := f.total(staked.Operation.BurnerAddress, unstaked.Operation.BurnerAddress)
	require.Less(t, after, before)

	// five fee-charging stages per operation, none above the largest fee
	maxFee := max(f.chain.SendFee, f.chain.TopUpFee, f.chain.TxFee)
	assert.LessOrEqual(t, before-after, 10*maxFee)

	// unstake proceeds less the top-up fee and rent
	assert.Equal(t, uint64(494_109_120), f.chain.PrivateOf(models.TokenDerivative))
	assert.Equal(t, f.chain.Rent, f.chain.NativeOf(unstaked.Operation.BurnerAddress))
}

func TestUsedBurnerIsRederived(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	ctx := context.Background()

	taken, err := f.sess.Deriver().Derive(ctx, f.chain.Timestamp)
	require.NoError(t, err)
	f.chain.SetNative(taken.Address(), 1)
	f.chain.ClockStep = 1

	result, err := f.orch.Stake(ctx, f.sess, 1_500_000_000)
	require.NoError(t, err)
	assert.NotEqual(t, taken.Address(), result.Operation.BurnerAddress)
	assert.Equal(t, taken.Nonce+1, result.Operation.BurnerNonce)
}

func TestBurnerInUseFailsBeforeFunding(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	ctx := context.Background()

	taken, err := f.sess.Deriver().Derive(ctx, f.chain.Timestamp)
	require.NoError(t, err)
	f.chain.SetNative(taken.Address(), 1)

	result, err := f.orch.Stake(ctx, f.sess, 1_500_000_000)
	assert.ErrorIs(t, err, models.ErrBurnerInUse)
	assert.Equal(t, models.StatusFailed, result.Operation.Status)
	assert.Equal(t, uint64(1*sol), f.chain.NativeOf(f.sess.Owner()))
	assert.NotContains(t, f.chain.Calls(), "signer.SendAndConfirm")
}

func TestJournaledNonceIsNotReused(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 4*sol)
	ctx := context.Background()

	first, err := f.orch.Stake(ctx, f.sess, 1_500_000_000)
	require.NoError(t, err)

	// the burner keeps only its rent, so the journal is what blocks reuse
	f.chain.SetNative(first.Operation.BurnerAddress, 0)
	_, err = f.orch.Stake(ctx, f.sess, 1_500_000_000)
	assert.ErrorIs(t, err, models.ErrBurnerInUse)
}

func TestInsufficientPrivateBalance(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 1_400_000_000)

	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	assert.Equal(t, models.StatusFailed, result.Operation.Status)
	assert.Equal(t, uint64(1*sol), f.chain.NativeOf(f.sess.Owner()))
}

func TestFundingFailureSkipsRecovery(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	f.chain.FailOn("signer.SendAndConfirm", errors.New("wallet disconnected"))

	_, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusFunding, serr.Stage)
	assert.Nil(t, serr.Recovery)
	assert.NotContains(t, f.chain.Calls(), "privacy.BuildSendTransaction")
}

func TestTransferFailureReturnsFunding(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	f.chain.FailOn("privacy.Submit:private_send", models.ErrServiceUnavailable)

	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusTransferring, serr.Stage)
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
	require.NotNil(t, serr.Recovery)
	assert.True(t, serr.Recovery.Recovered())
	assert.Equal(t, f.chain.Rent, f.chain.NativeOf(result.Operation.BurnerAddress))
	// funding less the top-up fee and rent
	assert.Equal(t, uint64(2*sol+48_000_000), f.chain.PrivateOf(models.TokenNative))
}

func TestSweepFailureIsClassified(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	f.chain.FailOn("privacy.Submit:topup", models.ErrServiceUnavailable)

	_, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusSweeping, serr.Stage)
	assert.ErrorIs(t, err, models.ErrSweepFailed)
	// derivative and residual native returned over the ledger
	assert.True(t, serr.Recovery.Recovered())
	assert.True(t, serr.Recovery.PublicFallback)
	assert.Equal(t, uint64(1_494_109_120), f.chain.DerivativeOf(f.sess.Owner()))
}

func TestCancelledContextStillRecovers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixtureWithLedger(t, func(inner ledger.Client) ledger.Client {
		return &cancellingLedger{Client: inner, cancel: cancel}
	})
	f.chain.SetPrivate(models.TokenNative, 2*sol)

	result, err := f.orch.Stake(ctx, f.sess, 1_500_000_000)
	require.Error(t, err)
	require.Error(t, ctx.Err())

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusExecuting, serr.Stage)
	assert.ErrorIs(t, err, context.Canceled)

	// the deposit landed before the caller gave up, so the burner holds
	// derivative tokens that must reach the private balance
	require.NotNil(t, serr.Recovery)
	assert.True(t, serr.Recovery.Recovered())
	assert.Empty(t, serr.Recovery.Stranded)
	assert.False(t, serr.Recovery.PublicFallback)
	assert.Equal(t, uint64(1_494_109_120), f.chain.PrivateOf(models.TokenDerivative))
	assert.Zero(t, f.chain.DerivativeOf(result.Operation.BurnerAddress))
	assert.Equal(t, f.chain.Rent, f.chain.NativeOf(result.Operation.BurnerAddress))

	stored, err := f.journal.GetOperation(context.Background(), result.Operation.Id)
	require.NoError(t, err)
	assert.Equal(t, "failed+recovered", stored.StatusLabel())
	assert.Equal(t, result.Operation.BurnerAddress, stored.BurnerAddress)

	open, err := f.journal.ListStranded(context.Background(), f.sess.Owner(), false)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestCancelledContextJournalsStrandedFunds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixtureWithLedger(t, func(inner ledger.Client) ledger.Client {
		return &cancellingLedger{Client: inner, cancel: cancel}
	})
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	f.chain.FailOn("privacy.Submit:topup", models.ErrServiceUnavailable)
	f.chain.FailOn("ledger.SendTransaction:token_transfer", models.ErrServiceUnavailable)

	result, err := f.orch.Stake(ctx, f.sess, 1_500_000_000)
	assert.ErrorIs(t, err, models.ErrStrandedFunds)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	require.Len(t, serr.Recovery.Stranded, 1)
	stranded := serr.Recovery.Stranded[0]
	assert.Equal(t, models.TokenDerivative, stranded.Kind)
	assert.Equal(t, uint64(1_494_109_120), stranded.Amount)
	assert.NotEmpty(t, stranded.Id)

	open, err := f.journal.ListStranded(context.Background(), f.sess.Owner(), false)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, result.Operation.BurnerNonce, open[0].BurnerNonce)
	assert.Equal(t, uint64(1_494_109_120), open[0].Amount)
}

func TestUnstakeRejectionRecoversDerivative(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 1*sol)
	f.chain.SetPrivate(models.TokenDerivative, 2*sol)
	f.chain.FailOn("ledger.SendTransaction:unstake", models.ErrTransactionRejected)

	result, err := f.orch.Unstake(context.Background(), f.sess, 1*sol)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusExecuting, serr.Stage)
	assert.ErrorIs(t, err, models.ErrTransactionRejected)
	require.NotNil(t, serr.Recovery)
	assert.True(t, serr.Recovery.Recovered())
	assert.False(t, serr.Recovery.PublicFallback)
	// derivative first, then the funding reserve that paid its fee
	require.Len(t, serr.Recovery.Signatures, 2)
	assert.Contains(t, serr.Recovery.Signatures[0], "topup")

	burner := result.Operation.BurnerAddress
	assert.Zero(t, f.chain.DerivativeOf(burner))
	assert.Equal(t, f.chain.Rent, f.chain.NativeOf(burner))
	// the derivative principal is back, the private send fee is not
	assert.Equal(t, uint64(2*sol), f.chain.PrivateOf(models.TokenDerivative))
	assert.Equal(t, "failed+recovered", result.Operation.StatusLabel())
}

func TestUnstakeSweepFailureFallsBackToPublicWallet(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 1*sol)
	f.chain.SetPrivate(models.TokenDerivative, 2*sol)
	f.chain.FailOn("privacy.Submit:topup", models.ErrServiceUnavailable)
	ownerBefore := f.chain.NativeOf(f.sess.Owner())

	result, err := f.orch.Unstake(context.Background(), f.sess, 1*sol)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusSweeping, serr.Stage)
	assert.ErrorIs(t, err, models.ErrSweepFailed)
	require.NotNil(t, serr.Recovery)
	assert.True(t, serr.Recovery.Recovered())
	assert.True(t, serr.Recovery.PublicFallback)

	burner := result.Operation.BurnerAddress
	assert.Zero(t, f.chain.DerivativeOf(burner))
	assert.Zero(t, f.chain.NativeOf(burner))
	// funding and proceeds return to the public wallet, less three ledger fees
	assert.Equal(t, ownerBefore+1*sol-3*f.chain.TxFee, f.chain.NativeOf(f.sess.Owner()))
	assert.Equal(t, uint64(1*sol), f.chain.PrivateOf(models.TokenDerivative))
}

func TestConfirmationTimeoutIsRecovered(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	// funding and the recovery transfers confirm, the deposit does not
	f.chain.FailOnAfter("ledger.ConfirmTransaction", 1, models.ErrConfirmationTimeout)

	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)

	var serr *models.StakeError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, models.StatusExecuting, serr.Stage)
	assert.ErrorIs(t, err, models.ErrConfirmationTimeout)
	assert.Equal(t, models.ErrConfirmationTimeout, serr.Kind)

	// the deposit landed without confirming, the private top-ups never wait on the ledger
	require.NotNil(t, serr.Recovery)
	assert.True(t, serr.Recovery.Recovered())
	assert.Equal(t, uint64(1_494_109_120), f.chain.PrivateOf(models.TokenDerivative))
	assert.Zero(t, f.chain.DerivativeOf(result.Operation.BurnerAddress))
}

func TestAuditTrailReceivesMovements(t *testing.T) {
	f := newFixture(t)
	f.chain.SetPrivate(models.TokenNative, 2*sol)
	audit := &recordingAudit{}
	f.orch.audit = audit

	result, err := f.orch.Stake(context.Background(), f.sess, 1_500_000_000)
	require.NoError(t, err)

	require.Len(t, audit.movements, 4)
	burner := store.BurnerAccount(result.Operation.BurnerAddress)
	assert.Equal(t, store.PublicAccount(f.sess.Owner()), audit.movements[0].Source)
	assert.Equal(t, burner, audit.movements[1].Destination)
	assert.Equal(t, store.ProtocolAccount(), audit.movements[2].Destination)
	assert.Equal(t, store.PrivateAccount(f.sess.Owner()), audit.movements[3].Destination)
	assert.Equal(t, models.TokenDerivative, audit.movements[3].Kind)
}

type recordingAudit struct {
	movements []store.MovementParams
}

func (a *recordingAudit) RecordMovement(_ context.Context, p store.MovementParams) error {
	a.movements = append(a.movements, p)
	return nil
}

// cancellingLedger honours ctx on every call and cancels it while the
// protocol action waits for finalization.
type cancellingLedger struct {
	ledger.Client
	cancel context.CancelFunc
}

func (l *cancellingLedger) GetBalance(ctx context.Context, address string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.Client.GetBalance(ctx, address)
}

func (l *cancellingLedger) GetTokenAccountBalance(ctx context.Context, owner, mint string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.Client.GetTokenAccountBalance(ctx, owner, mint)
}

func (l *cancellingLedger) SignTransaction(ctx context.Context, tx *models.Tx, signers ...*keys.Keypair) (*models.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Client.SignTransaction(ctx, tx, signers...)
}

func (l *cancellingLedger) SendTransaction(ctx context.Context, tx *models.Tx, signers ...*keys.Keypair) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.Client.SendTransaction(ctx, tx, signers...)
}

func (l *cancellingLedger) ConfirmTransaction(ctx context.Context, sig string, commitment models.Commitment) error {
	if commitment == models.CommitmentFinalized {
		l.cancel()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.Client.ConfirmTransaction(ctx, sig, commitment)
}

func (l *cancellingLedger) GetMinimumRentExemption(ctx context.Context, size uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.Client.GetMinimumRentExemption(ctx, size)
}

func (l *cancellingLedger) GetCurrentTimestamp(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return l.Client.GetCurrentTimestamp(ctx)
}

func (l *cancellingLedger) BuildTransfer(ctx context.Context, from, to string, amount uint64) (*models.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Client.BuildTransfer(ctx, from, to, amount)
}

func (l *cancellingLedger) BuildTokenTransfer(ctx context.Context, from, to, mint string, amount uint64) (*models.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.Client.BuildTokenTransfer(ctx, from, to, mint, amount)
}
