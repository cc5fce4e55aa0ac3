// Package testutil provides an in-memory ledger, privacy service, staking
// protocol and owner wallet that share one balance sheet, for pipeline tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"private-stake-go/internal/keys"
	"private-stake-go/internal/ledger"
	"private-stake-go/internal/models"
	"private-stake-go/internal/privacy"
	"private-stake-go/internal/staking"
)

const (
	opTransfer      = "transfer"
	opTokenTransfer = "token_transfer"
	opPrivateSend   = "private_send"
	opTopUp         = "topup"
	opDeposit       = "deposit"
	opUnstake       = "unstake"
)

type instruction struct {
	Op     string           `json:"op"`
	From   string           `json:"from"`
	To     string           `json:"to"`
	Kind   models.TokenKind `json:"kind"`
	Amount uint64           `json:"amount"`
}

// Chain is the shared balance sheet. Amounts are base units; the staking
// exchange rate is 1:1.
type Chain struct {
	mu sync.Mutex

	Native     map[string]uint64
	Derivative map[string]uint64
	Private    map[models.TokenKind]uint64

	Rent       uint64
	TxFee      uint64
	SendFee    uint64
	TopUpFee   uint64
	Timestamp  int64
	// ClockStep is added to Timestamp after every GetCurrentTimestamp.
	ClockStep  int64
	Mint       string
	failures   map[string]failure
	pauses     map[string]*pause
	calls      []string
	sigCounter int
}

type failure struct {
	err  error
	skip int
}

type pause struct {
	reached chan struct{}
	release chan struct{}
	once    sync.Once
}

func NewChain() *Chain {
	return &Chain{
		Native:     map[string]uint64{},
		Derivative: map[string]uint64{},
		Private:    map[models.TokenKind]uint64{},
		Rent:       890_880,
		TxFee:      5_000,
		SendFee:    5_000_000,
		TopUpFee:   2_000_000,
		Timestamp:  1_700_000_000,
		Mint:       models.DefaultTokenRegistry().Derivative.Mint,
		failures:   map[string]failure{},
		pauses:     map[string]*pause{},
	}
}

// FailOn makes every call named key fail with err until cleared with a nil err.
// Keys are "<component>.<method>" and, for submissions, "<component>.<method>:<op>".
func (c *Chain) FailOn(key string, err error) {
	c.FailOnAfter(key, 0, err)
}

// FailOnAfter lets the first skip calls named key succeed, then fails the rest.
func (c *Chain) FailOnAfter(key string, skip int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		delete(c.failures, key)
		return
	}
	c.failures[key] = failure{err: err, skip: skip}
}

// Pause blocks the next call named key until release is called. reached is
// closed once the call is blocked. Only owner wallet submissions can be paused.
func (c *Chain) Pause(key string) (reached <-chan struct{}, release func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &pause{reached: make(chan struct{}), release: make(chan struct{})}
	c.pauses[key] = p
	return p.reached, func() { p.once.Do(func() { close(p.release) }) }
}

func (c *Chain) wait(key string) {
	c.mu.Lock()
	p, ok := c.pauses[key]
	delete(c.pauses, key)
	c.mu.Unlock()
	if !ok {
		return
	}
	close(p.reached)
	<-p.release
}

// Calls lists every call made so far, in order.
func (c *Chain) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *Chain) SetNative(address string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Native[address] = amount
}

func (c *Chain) NativeOf(address string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Native[address]
}

func (c *Chain) SetDerivative(address string, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Derivative[address] = amount
}

func (c *Chain) DerivativeOf(address string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Derivative[address]
}

func (c *Chain) SetPrivate(kind models.TokenKind, amount uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Private[kind] = amount
}

func (c *Chain) PrivateOf(kind models.TokenKind) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Private[kind]
}

// call records a call and returns its injected failure, if any. Caller holds mu.
func (c *Chain) call(names ...string) error {
	c.calls = append(c.calls, names[0])
	for _, k := range names {
		f, ok := c.failures[k]
		if !ok {
			continue
		}
		if f.skip > 0 {
			f.skip--
			c.failures[k] = f
			continue
		}
		return f.err
	}
	return nil
}

func (c *Chain) nextSig(op string) string {
	c.sigCounter++
	return fmt.Sprintf("%s-sig-%d", op, c.sigCounter)
}

func encode(in instruction) *models.Tx {
	payload, _ := json.Marshal(in)
	return &models.Tx{Payload: payload}
}

func decode(tx *models.Tx) (instruction, error) {
	var in instruction
	if tx == nil {
		return in, fmt.Errorf("nil transaction")
	}
	if err := json.Unmarshal(tx.Payload, &in); err != nil {
		return in, fmt.Errorf("invalid transaction: %w", err)
	}
	return in, nil
}

func (c *Chain) debitNative(address string, amount uint64) error {
	if c.Native[address] < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", models.ErrTransactionRejected, address, c.Native[address], amount)
	}
	c.Native[address] -= amount
	return nil
}

func (c *Chain) debitDerivative(address string, amount uint64) error {
	if c.Derivative[address] < amount {
		return fmt.Errorf("%w: %s holds %d derivative, needs %d", models.ErrTransactionRejected, address, c.Derivative[address], amount)
	}
	c.Derivative[address] -= amount
	return nil
}

// apply executes a ledger instruction. Caller holds mu.
func (c *Chain) apply(in instruction) error {
	switch in.Op {
	case opTransfer:
		if err := c.debitNative(in.From, in.Amount+c.TxFee); err != nil {
			return err
		}
		c.Native[in.To] += in.Amount
	case opTokenTransfer:
		if err := c.debitNative(in.From, c.TxFee); err != nil {
			return err
		}
		if err := c.debitDerivative(in.From, in.Amount); err != nil {
			c.Native[in.From] += c.TxFee
			return err
		}
		c.Derivative[in.To] += in.Amount
	case opDeposit:
		if err := c.debitNative(in.From, in.Amount+c.TxFee); err != nil {
			return err
		}
		c.Derivative[in.To] += in.Amount
	case opUnstake:
		if err := c.debitNative(in.From, c.TxFee); err != nil {
			return err
		}
		if err := c.debitDerivative(in.From, in.Amount); err != nil {
			c.Native[in.From] += c.TxFee
			return err
		}
		c.Native[in.From] += in.Amount
	default:
		return fmt.Errorf("%w: ledger cannot execute %q", models.ErrTransactionRejected, in.Op)
	}
	return nil
}

func (c *Chain) Ledger() *Ledger       { return &Ledger{chain: c} }
func (c *Chain) Privacy() *Privacy     { return &Privacy{chain: c} }
func (c *Chain) Staking() *Staking     { return &Staking{chain: c} }
func (c *Chain) Connector() *Connector { return &Connector{chain: c} }

// AdvanceClock moves the ledger timestamp forward.
func (c *Chain) AdvanceClock(seconds int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Timestamp += seconds
}

// Signer returns an owner wallet for kp that submits through this chain.
func (c *Chain) Signer(kp *keys.Keypair) *Signer {
	return &Signer{chain: c, keypair: kp}
}

// Ledger implements ledger.Client over the chain.
type Ledger struct {
	chain *Chain
}

var _ ledger.Client = (*Ledger)(nil)

func (l *Ledger) GetBalance(_ context.Context, address string) (uint64, error) {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.GetBalance"); err != nil {
		return 0, err
	}
	return c.Native[address], nil
}

func (l *Ledger) GetTokenAccountBalance(_ context.Context, owner, mint string) (uint64, error) {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.GetTokenAccountBalance"); err != nil {
		return 0, err
	}
	if mint != c.Mint {
		return 0, nil
	}
	return c.Derivative[owner], nil
}

func (l *Ledger) SignTransaction(_ context.Context, tx *models.Tx, _ ...*keys.Keypair) (*models.Tx, error) {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.SignTransaction"); err != nil {
		return nil, err
	}
	return tx, nil
}

func (l *Ledger) SendTransaction(_ context.Context, tx *models.Tx, _ ...*keys.Keypair) (string, error) {
	in, err := decode(tx)
	if err != nil {
		return "", err
	}
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.SendTransaction", "ledger.SendTransaction:"+in.Op); err != nil {
		return "", err
	}
	if err := c.apply(in); err != nil {
		return "", err
	}
	return c.nextSig(in.Op), nil
}

func (l *Ledger) ConfirmTransaction(_ context.Context, _ string, _ models.Commitment) error {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.call("ledger.ConfirmTransaction")
}

func (l *Ledger) GetMinimumRentExemption(_ context.Context, _ uint64) (uint64, error) {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.GetMinimumRentExemption"); err != nil {
		return 0, err
	}
	return c.Rent, nil
}

func (l *Ledger) GetCurrentTimestamp(_ context.Context) (int64, error) {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.GetCurrentTimestamp"); err != nil {
		return 0, err
	}
	ts := c.Timestamp
	c.Timestamp += c.ClockStep
	return ts, nil
}

func (l *Ledger) BuildTransfer(_ context.Context, from, to string, amount uint64) (*models.Tx, error) {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.BuildTransfer"); err != nil {
		return nil, err
	}
	return encode(instruction{Op: opTransfer, From: from, To: to, Kind: models.TokenNative, Amount: amount}), nil
}

func (l *Ledger) BuildTokenTransfer(_ context.Context, from, to, _ string, amount uint64) (*models.Tx, error) {
	c := l.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("ledger.BuildTokenTransfer"); err != nil {
		return nil, err
	}
	return encode(instruction{Op: opTokenTransfer, From: from, To: to, Kind: models.TokenDerivative, Amount: amount}), nil
}

// Privacy implements privacy.Client over the chain. Send fees are charged to
// the private native balance; top-up fees to the payer's public native balance.
type Privacy struct {
	chain *Chain
}

var _ privacy.Client = (*Privacy)(nil)

func (p *Privacy) GetLatestPrivateBalance(_ context.Context, kind models.TokenKind) (uint64, error) {
	c := p.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.GetLatestPrivateBalance"); err != nil {
		return 0, err
	}
	return c.Private[kind], nil
}

func (p *Privacy) EstimateSendFee(_ context.Context, _ uint64, _ models.TokenKind, _ string) (models.FeeEstimate, error) {
	c := p.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.EstimateSendFee"); err != nil {
		return models.FeeEstimate{}, err
	}
	return models.FeeEstimate{Amount: c.SendFee, Kind: models.TokenNative}, nil
}

func (p *Privacy) EstimateTopUpFee(_ context.Context, _ uint64, _ models.TokenKind) (models.FeeEstimate, error) {
	c := p.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.EstimateTopUpFee"); err != nil {
		return models.FeeEstimate{}, err
	}
	return models.FeeEstimate{Amount: c.TopUpFee, Kind: models.TokenNative}, nil
}

func (p *Privacy) BuildSendTransaction(_ context.Context, amount uint64, recipient string, kind models.TokenKind) (*models.Tx, error) {
	c := p.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.BuildSendTransaction"); err != nil {
		return nil, err
	}
	return encode(instruction{Op: opPrivateSend, To: recipient, Kind: kind, Amount: amount}), nil
}

func (p *Privacy) BuildTopUpTransaction(_ context.Context, amount uint64, kind models.TokenKind, payer string) (*models.Tx, error) {
	c := p.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.BuildTopUpTransaction"); err != nil {
		return nil, err
	}
	return encode(instruction{Op: opTopUp, From: payer, Kind: kind, Amount: amount}), nil
}

func (p *Privacy) Submit(_ context.Context, tx *models.Tx) (string, error) {
	in, err := decode(tx)
	if err != nil {
		return "", err
	}
	c := p.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.Submit", "privacy.Submit:"+in.Op); err != nil {
		return "", err
	}

	switch in.Op {
	case opPrivateSend:
		need := in.Amount
		if in.Kind == models.TokenNative {
			need += c.SendFee
		} else if c.Private[models.TokenNative] < c.SendFee {
			return "", fmt.Errorf("%w: private fee balance", models.ErrTransactionRejected)
		}
		if c.Private[in.Kind] < need {
			return "", fmt.Errorf("%w: private balance %d, needs %d", models.ErrTransactionRejected, c.Private[in.Kind], need)
		}
		c.Private[in.Kind] -= need
		if in.Kind != models.TokenNative {
			c.Private[models.TokenNative] -= c.SendFee
		}
		if in.Kind == models.TokenNative {
			c.Native[in.To] += in.Amount
		} else {
			c.Derivative[in.To] += in.Amount
		}
	case opTopUp:
		fee := c.TopUpFee
		if in.Kind == models.TokenNative {
			if err := c.debitNative(in.From, in.Amount+fee); err != nil {
				return "", err
			}
		} else {
			if err := c.debitNative(in.From, fee); err != nil {
				return "", err
			}
			if err := c.debitDerivative(in.From, in.Amount); err != nil {
				c.Native[in.From] += fee
				return "", err
			}
		}
		c.Private[in.Kind] += in.Amount
	default:
		return "", fmt.Errorf("%w: privacy service cannot execute %q", models.ErrTransactionRejected, in.Op)
	}
	return c.nextSig(in.Op), nil
}

func (p *Privacy) DeriveKeyMaterial(_ context.Context, label string, nonce int64, length int) ([]byte, error) {
	c := p.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.DeriveKeyMaterial"); err != nil {
		return nil, err
	}
	return keys.DeriveMaterial([]byte("privacy-service-seed"), label, nonce, length)
}

// Connector opens privacy sessions on the chain.
type Connector struct {
	chain *Chain
}

var _ privacy.Connector = (*Connector)(nil)

func (cn *Connector) Connect(_ context.Context, owner string, seed []byte) (privacy.Client, error) {
	c := cn.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("privacy.Connect"); err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, models.ErrNotConnected
	}
	if len(seed) == 0 {
		return nil, models.ErrSigningUnavailable
	}
	return &Privacy{chain: c}, nil
}

// Staking implements staking.Client over the chain.
type Staking struct {
	chain *Chain
}

var _ staking.Client = (*Staking)(nil)

func (s *Staking) BuildDepositTransaction(_ context.Context, amount uint64, owner, mintTo string) (*models.DepositTx, error) {
	c := s.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("staking.BuildDepositTransaction"); err != nil {
		return nil, err
	}
	return &models.DepositTx{
		Tx:                encode(instruction{Op: opDeposit, From: owner, To: mintTo, Kind: models.TokenNative, Amount: amount}),
		DerivativeAccount: mintTo + "-ata",
	}, nil
}

func (s *Staking) BuildLiquidUnstakeTransaction(_ context.Context, amount uint64, owner string) (*models.Tx, error) {
	c := s.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("staking.BuildLiquidUnstakeTransaction"); err != nil {
		return nil, err
	}
	return encode(instruction{Op: opUnstake, From: owner, Kind: models.TokenDerivative, Amount: amount}), nil
}

// Signer is an owner wallet submitting through the chain.
type Signer struct {
	chain   *Chain
	keypair *keys.Keypair
}

func (s *Signer) Address() string { return s.keypair.Address() }

func (s *Signer) SignMessage(_ context.Context, message []byte) ([]byte, error) {
	c := s.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("signer.SignMessage"); err != nil {
		return nil, err
	}
	return s.keypair.Sign(message), nil
}

func (s *Signer) SignTransaction(_ context.Context, tx *models.Tx) (*models.Tx, error) {
	c := s.chain
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.call("signer.SignTransaction"); err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *Signer) SendAndConfirm(ctx context.Context, tx *models.Tx) (string, error) {
	c := s.chain
	c.wait("signer.SendAndConfirm")
	c.mu.Lock()
	err := c.call("signer.SendAndConfirm")
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return ledger.SendAndConfirm(ctx, c.Ledger(), tx, models.CommitmentConfirmed, s.keypair)
}

// NewKeypair returns a deterministic keypair for test identity b.
func NewKeypair(b byte) *keys.Keypair {
	seed := make([]byte, keys.SeedSize)
	seed[0] = b
	seed[1] = 0xA5
	kp, err := keys.NewKeypairFromSeed(seed)
	if err != nil {
		panic(err)
	}
	return kp
}
