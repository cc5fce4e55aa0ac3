package session

import (
	"context"
	"sync"
	"sync/atomic"

	"private-stake-go/internal/keys"
	"private-stake-go/internal/ledger"
	"private-stake-go/internal/models"
	"private-stake-go/internal/privacy"
	"private-stake-go/internal/staking"

	"go.uber.org/zap"
)

// Signer is the connected owner's wallet capability.
type Signer interface {
	Address() string
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
	SignTransaction(ctx context.Context, tx *models.Tx) (*models.Tx, error)
	SendAndConfirm(ctx context.Context, tx *models.Tx) (string, error)
}

// Session is one owner's connection lifetime. Only the balance reconciler
// writes the snapshot; the busy flag admits a single operation at a time.
type Session struct {
	owner   string
	signer  Signer
	ledger  ledger.Client
	privacy privacy.Client
	staking staking.Client
	deriver *keys.Deriver

	mu       sync.RWMutex
	snapshot models.BalanceSnapshot

	busy atomic.Bool
}

type Params struct {
	Signer  Signer
	Ledger  ledger.Client
	Privacy privacy.Client
	Staking staking.Client
	Deriver *keys.Deriver
}

func New(p Params) (*Session, error) {
	if p.Signer == nil || p.Signer.Address() == "" {
		return nil, models.ErrNotConnected
	}
	return &Session{
		owner:   p.Signer.Address(),
		signer:  p.Signer,
		ledger:  p.Ledger,
		privacy: p.Privacy,
		staking: p.Staking,
		deriver: p.Deriver,
	}, nil
}

type OpenParams struct {
	Signer  Signer
	Ledger  ledger.Client
	Privacy privacy.Connector
	Staking staking.Client
	Label   string
	// RemoteDerivation takes burner key material from the privacy service
	// instead of deriving it locally from the capability seed.
	RemoteDerivation bool
}

// Open asks the owner to sign the seed message, opens the privacy session and
// builds the burner deriver.
func Open(ctx context.Context, p OpenParams) (*Session, error) {
	if p.Signer == nil || p.Signer.Address() == "" {
		return nil, models.ErrNotConnected
	}
	if p.Privacy == nil {
		return nil, models.ErrServiceUnavailable
	}

	seed, err := keys.CapabilitySeed(ctx, p.Signer)
	if err != nil {
		return nil, err
	}

	privacyClient, err := p.Privacy.Connect(ctx, p.Signer.Address(), seed)
	if err != nil {
		return nil, err
	}

	var source keys.MaterialSource = keys.NewHKDFSource(seed)
	if p.RemoteDerivation {
		source = privacyClient
	}

	zap.L().Info("Session opened", zap.String("owner", p.Signer.Address()))

	return New(Params{
		Signer:  p.Signer,
		Ledger:  p.Ledger,
		Privacy: privacyClient,
		Staking: p.Staking,
		Deriver: keys.NewDeriver(p.Label, p.Ledger, source),
	})
}

func (s *Session) Owner() string           { return s.owner }
func (s *Session) Signer() Signer          { return s.signer }
func (s *Session) Ledger() ledger.Client   { return s.ledger }
func (s *Session) Privacy() privacy.Client { return s.privacy }
func (s *Session) Staking() staking.Client { return s.staking }
func (s *Session) Deriver() *keys.Deriver  { return s.deriver }

// Snapshot returns the latest balance observation.
func (s *Session) Snapshot() models.BalanceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// SetSnapshot replaces the balance observation.
func (s *Session) SetSnapshot(snapshot models.BalanceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = snapshot
}

// TryAcquire claims the session for one operation.
func (s *Session) TryAcquire() error {
	if !s.busy.CompareAndSwap(false, true) {
		return models.ErrOperationInProgress
	}
	return nil
}

func (s *Session) Release() {
	s.busy.Store(false)
}

// Busy reports whether an operation holds the session.
func (s *Session) Busy() bool {
	return s.busy.Load()
}
