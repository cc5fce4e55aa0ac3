package store

import (
	"context"
	"errors"
	"time"

	"private-stake-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrOperationNotFound  = errors.New("operation not found")
	ErrDuplicateOperation = errors.New("duplicate operation")
	ErrStrandedNotFound   = errors.New("stranded funds record not found")
)

// TransitionParams records one status change of an operation.
type TransitionParams struct {
	OperationId       string
	Status            models.Status
	SafeAmount        uint64
	BurnerAddress     string
	BurnerNonce       int64
	Signature         string // signature confirmed in the stage just left, if any
	ProtocolSignature string // staking action signature, once confirmed
	Error             string
	Recovered         *bool // set on Failed once recovery has run
	At                time.Time
}

// MovementParams describes one confirmed fund movement for the audit trail.
type MovementParams struct {
	OperationId string
	Reference   string // unique per movement; replays are idempotent
	Source      string // audit account path, e.g. "owners:<addr>:private"
	Destination string
	Kind        models.TokenKind
	Symbol      string
	Amount      uint64
	Signature   string
	Stage       models.Status
	At          time.Time
}

// OperationJournal persists operations, their transitions and stranded funds.
// Nothing in the pipeline depends on it for correctness.
type OperationJournal interface {
	// --- Operations ---
	RecordOperation(ctx context.Context, op *models.StakeOperation) error
	RecordTransition(ctx context.Context, params TransitionParams) error
	GetOperation(ctx context.Context, id string) (*models.StakeOperation, error)
	ListOperations(ctx context.Context, owner string, limit, offset int) ([]models.StakeOperation, error)
	// NonceInUse reports whether an operation for owner already claimed the burner nonce.
	NonceInUse(ctx context.Context, owner string, nonce int64) (bool, error)

	// --- Stranded funds ---
	RecordStranded(ctx context.Context, funds models.StrandedFunds) (*models.StrandedFunds, error)
	ListStranded(ctx context.Context, owner string, includeResolved bool) ([]models.StrandedFunds, error)
	ResolveStranded(ctx context.Context, id, resolution string) error

	// --- Lifecycle ---
	Close()
}

// AuditTrail mirrors confirmed fund movements into an external ledger.
type AuditTrail interface {
	RecordMovement(ctx context.Context, params MovementParams) error
}

// AuditReader reads back what an audit trail has recorded for one account path.
type AuditReader interface {
	AccountBalance(ctx context.Context, account string, kind models.TokenKind) (decimal.Decimal, error)
}

// NoopJournal discards every write and reports no history.
type NoopJournal struct{}

var _ OperationJournal = NoopJournal{}

func (NoopJournal) RecordOperation(context.Context, *models.StakeOperation) error { return nil }
func (NoopJournal) RecordTransition(context.Context, TransitionParams) error      { return nil }
func (NoopJournal) GetOperation(context.Context, string) (*models.StakeOperation, error) {
	return nil, ErrOperationNotFound
}
func (NoopJournal) ListOperations(context.Context, string, int, int) ([]models.StakeOperation, error) {
	return nil, nil
}
func (NoopJournal) NonceInUse(context.Context, string, int64) (bool, error) { return false, nil }
func (NoopJournal) RecordStranded(_ context.Context, f models.StrandedFunds) (*models.StrandedFunds, error) {
	return &f, nil
}
func (NoopJournal) ListStranded(context.Context, string, bool) ([]models.StrandedFunds, error) {
	return nil, nil
}
func (NoopJournal) ResolveStranded(context.Context, string, string) error { return ErrStrandedNotFound }
func (NoopJournal) Close()                                                {}

// NoopAudit discards movements.
type NoopAudit struct{}

var _ AuditTrail = NoopAudit{}

func (NoopAudit) RecordMovement(context.Context, MovementParams) error { return nil }

// Account paths shared by audit trail backends.
func PrivateAccount(owner string) string { return "owners:" + owner + ":private" }
func PublicAccount(owner string) string  { return "owners:" + owner + ":public" }
func BurnerAccount(burner string) string { return "burners:" + burner }
func ProtocolAccount() string            { return "protocol:staking" }
func FeesAccount() string                { return "fees:network" }
