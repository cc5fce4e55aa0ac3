package keys

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strconv"

	"private-stake-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

// SeedMessage is the fixed message the owner signs to produce the capability seed.
const SeedMessage = "Sign this message to derive your private balance keys.\n\nOnly sign this message on trusted applications."

// MessageSigner produces a signature over arbitrary bytes.
type MessageSigner interface {
	SignMessage(ctx context.Context, message []byte) ([]byte, error)
}

// Clock returns the current ledger timestamp.
type Clock interface {
	GetCurrentTimestamp(ctx context.Context) (int64, error)
}

// MaterialSource expands a label and nonce into deterministic key material.
type MaterialSource interface {
	DeriveKeyMaterial(ctx context.Context, label string, nonce int64, length int) ([]byte, error)
}

// CapabilitySeed asks the owner's signer to sign SeedMessage.
func CapabilitySeed(ctx context.Context, signer MessageSigner) ([]byte, error) {
	if signer == nil {
		return nil, models.ErrSigningUnavailable
	}
	seed, err := signer.SignMessage(ctx, []byte(SeedMessage))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrSigningUnavailable, err)
	}
	if len(seed) == 0 {
		return nil, fmt.Errorf("%w: empty signature", models.ErrSigningUnavailable)
	}
	return seed, nil
}

// DeriveMaterial is HKDF-SHA256 over the seed with label and nonce as info.
func DeriveMaterial(seed []byte, label string, nonce int64, length int) ([]byte, error) {
	if len(seed) == 0 {
		return nil, models.ErrSigningUnavailable
	}
	info := label + ":" + strconv.FormatInt(nonce, 10)
	reader := hkdf.New(sha256.New, seed, nil, []byte(info))
	out := make([]byte, length)
	if _, err := io.ReadFull(reader, out); err != nil {
		return nil, err
	}
	return out, nil
}

// HKDFSource derives key material locally from the capability seed.
type HKDFSource struct {
	seed []byte
}

func NewHKDFSource(seed []byte) *HKDFSource {
	cp := make([]byte, len(seed))
	copy(cp, seed)
	return &HKDFSource{seed: cp}
}

func (s *HKDFSource) DeriveKeyMaterial(_ context.Context, label string, nonce int64, length int) ([]byte, error) {
	return DeriveMaterial(s.seed, label, nonce, length)
}

// Burner is a session-scoped clearing keypair together with the nonce it was derived from.
type Burner struct {
	*Keypair
	Nonce int64
}

// Deriver produces burners from a material source and the ledger clock.
type Deriver struct {
	label  string
	clock  Clock
	source MaterialSource
}

func NewDeriver(label string, clock Clock, source MaterialSource) *Deriver {
	return &Deriver{label: label, clock: clock, source: source}
}

// Derive is deterministic: the same source and nonce always give the same burner.
func (d *Deriver) Derive(ctx context.Context, nonce int64) (*Burner, error) {
	if d.source == nil {
		return nil, models.ErrSigningUnavailable
	}
	material, err := d.source.DeriveKeyMaterial(ctx, d.label, nonce, SeedSize)
	if err != nil {
		if errors.Is(err, models.ErrSigningUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to derive burner key material: %w", err)
	}
	kp, err := NewKeypairFromSeed(material)
	if err != nil {
		return nil, err
	}
	return &Burner{Keypair: kp, Nonce: nonce}, nil
}

// Nonce reads a fresh ledger timestamp.
func (d *Deriver) Nonce(ctx context.Context) (int64, error) {
	if d.clock == nil {
		return 0, models.ErrClockUnavailable
	}
	ts, err := d.clock.GetCurrentTimestamp(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrClockUnavailable, err)
	}
	return ts, nil
}

// DeriveFresh derives a burner for the current ledger timestamp.
func (d *Deriver) DeriveFresh(ctx context.Context) (*Burner, error) {
	nonce, err := d.Nonce(ctx)
	if err != nil {
		return nil, err
	}
	burner, err := d.Derive(ctx, nonce)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Derived burner",
		zap.String("burner", burner.Address()),
		zap.Int64("nonce", nonce))
	return burner, nil
}
