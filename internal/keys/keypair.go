package keys

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/tyler-smith/go-bip39"
)

// SeedSize is the ed25519 seed length in bytes.
const SeedSize = ed25519.SeedSize

// Keypair is a ledger keypair.
type Keypair struct {
	key solana.PrivateKey
}

// NewKeypairFromSeed builds a keypair from a 32-byte seed.
func NewKeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("keypair seed must be %d bytes, got %d", SeedSize, len(seed))
	}
	return &Keypair{key: solana.PrivateKey(ed25519.NewKeyFromSeed(seed))}, nil
}

// NewKeypairFromPrivateKey wraps a 64-byte private key.
func NewKeypairFromPrivateKey(priv []byte) (*Keypair, error) {
	key := make(solana.PrivateKey, len(priv))
	copy(key, priv)
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Keypair{key: key}, nil
}

func (k *Keypair) PublicKey() solana.PublicKey {
	return k.key.PublicKey()
}

// SolanaKey returns the key in the form transaction signing takes.
func (k *Keypair) SolanaKey() solana.PrivateKey {
	return k.key
}

// PrivateKey returns a copy of the 64-byte private key.
func (k *Keypair) PrivateKey() []byte {
	out := make([]byte, len(k.key))
	copy(out, k.key)
	return out
}

// Address is the base58 public key, the ledger's account address format.
func (k *Keypair) Address() string {
	return k.PublicKey().String()
}

func (k *Keypair) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(k.key), message)
}

// Mnemonic renders the keypair seed as a 24-word phrase so an operator can
// import a burner into a wallet by hand.
func (k *Keypair) Mnemonic() (string, error) {
	return bip39.NewMnemonic(ed25519.PrivateKey(k.key).Seed())
}

// KeypairFromMnemonic reverses Mnemonic.
func KeypairFromMnemonic(mnemonic string) (*Keypair, error) {
	seed, err := bip39.EntropyFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return NewKeypairFromSeed(seed)
}

// Verify checks an ed25519 signature against a base58 address.
func Verify(address string, message, signature []byte) (bool, error) {
	pub, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return false, fmt.Errorf("invalid address %q: %w", address, err)
	}
	if len(signature) != ed25519.SignatureSize {
		return false, nil
	}
	return pub.Verify(message, solana.SignatureFromBytes(signature)), nil
}
