package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"private-stake-go/internal/models"
	"private-stake-go/internal/privacy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSigner struct {
	address string
	sig     []byte
	err     error
}

func (s *stubSigner) Address() string { return s.address }
func (s *stubSigner) SignMessage(context.Context, []byte) ([]byte, error) {
	return s.sig, s.err
}
func (s *stubSigner) SignTransaction(_ context.Context, tx *models.Tx) (*models.Tx, error) {
	return tx, nil
}
func (s *stubSigner) SendAndConfirm(context.Context, *models.Tx) (string, error) {
	return "sig", nil
}

type stubConnector struct {
	seed  []byte
	owner string
	err   error
}

func (c *stubConnector) Connect(_ context.Context, owner string, seed []byte) (privacy.Client, error) {
	c.owner, c.seed = owner, seed
	return nil, c.err
}

func TestNewRequiresSigner(t *testing.T) {
	_, err := New(Params{})
	assert.ErrorIs(t, err, models.ErrNotConnected)

	_, err = New(Params{Signer: &stubSigner{}})
	assert.ErrorIs(t, err, models.ErrNotConnected)

	s, err := New(Params{Signer: &stubSigner{address: "owner"}})
	require.NoError(t, err)
	assert.Equal(t, "owner", s.Owner())
}

func TestOpenSignsSeedAndConnects(t *testing.T) {
	conn := &stubConnector{}
	s, err := Open(context.Background(), OpenParams{
		Signer:  &stubSigner{address: "owner", sig: []byte("signature")},
		Privacy: conn,
		Label:   "LABEL",
	})
	require.NoError(t, err)
	assert.Equal(t, "owner", conn.owner)
	assert.Equal(t, []byte("signature"), conn.seed)
	require.NotNil(t, s.Deriver())

	burner, err := s.Deriver().Derive(context.Background(), 5)
	require.NoError(t, err)
	assert.NotEmpty(t, burner.Address())
}

func TestOpenFailures(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, OpenParams{Privacy: &stubConnector{}})
	assert.ErrorIs(t, err, models.ErrNotConnected)

	_, err = Open(ctx, OpenParams{Signer: &stubSigner{address: "owner", sig: []byte("s")}})
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)

	_, err = Open(ctx, OpenParams{
		Signer:  &stubSigner{address: "owner", err: errors.New("rejected")},
		Privacy: &stubConnector{},
	})
	assert.ErrorIs(t, err, models.ErrSigningUnavailable)

	_, err = Open(ctx, OpenParams{
		Signer:  &stubSigner{address: "owner", sig: []byte("s")},
		Privacy: &stubConnector{err: models.ErrServiceUnavailable},
	})
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
}

func TestSingleFlightGuard(t *testing.T) {
	s, err := New(Params{Signer: &stubSigner{address: "owner"}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	acquired := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryAcquire() == nil {
				mu.Lock()
				acquired++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, acquired)
	assert.True(t, s.Busy())
	assert.ErrorIs(t, s.TryAcquire(), models.ErrOperationInProgress)

	s.Release()
	assert.NoError(t, s.TryAcquire())
}

func TestSnapshot(t *testing.T) {
	s, err := New(Params{Signer: &stubSigner{address: "owner"}})
	require.NoError(t, err)

	snap := models.BalanceSnapshot{PublicNative: 1, PrivateDerivative: 4}
	s.SetSnapshot(snap)
	assert.Equal(t, snap, s.Snapshot())
}
