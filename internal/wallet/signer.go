package wallet

import (
	"context"
	"fmt"

	"private-stake-go/internal/keys"
	"private-stake-go/internal/ledger"
	"private-stake-go/internal/models"

	"github.com/gagliardetto/solana-go"
)

// LocalSigner is an owner wallet backed by a keypair held in process.
type LocalSigner struct {
	keypair    *keys.Keypair
	ledger     ledger.Client
	commitment models.Commitment
}

func NewLocalSigner(kp *keys.Keypair, client ledger.Client, commitment models.Commitment) *LocalSigner {
	if commitment == "" {
		commitment = models.CommitmentConfirmed
	}
	return &LocalSigner{keypair: kp, ledger: client, commitment: commitment}
}

// LoadKeypairFile reads a solana-keygen JSON keypair file.
func LoadKeypairFile(path string) (*keys.Keypair, error) {
	priv, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to load keypair %s: %w", path, err)
	}
	return keys.NewKeypairFromPrivateKey(priv)
}

func (s *LocalSigner) Address() string {
	return s.keypair.Address()
}

func (s *LocalSigner) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	return s.keypair.Sign(message), nil
}

func (s *LocalSigner) SignTransaction(ctx context.Context, tx *models.Tx) (*models.Tx, error) {
	if s.ledger == nil {
		return nil, models.ErrServiceUnavailable
	}
	return s.ledger.SignTransaction(ctx, tx, s.keypair)
}

func (s *LocalSigner) SendAndConfirm(ctx context.Context, tx *models.Tx) (string, error) {
	if s.ledger == nil {
		return "", models.ErrServiceUnavailable
	}
	return ledger.SendAndConfirm(ctx, s.ledger, tx, s.commitment, s.keypair)
}
