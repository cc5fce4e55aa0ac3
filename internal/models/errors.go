package models

import (
	"errors"
	"fmt"
)

// Failure taxonomy for the stake pipeline.
var (
	ErrNotConnected        = errors.New("no connected owner")
	ErrServiceUnavailable  = errors.New("service unavailable")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrAmountBelowMinimum  = errors.New("amount below minimum")
	ErrFeeEstimationFailed = errors.New("fee estimation failed")
	ErrTransactionRejected = errors.New("transaction rejected")
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	ErrSweepFailed         = errors.New("sweep failed")
	ErrStrandedFunds       = errors.New("funds stranded in burner")

	ErrOperationInProgress = errors.New("operation in progress")
	ErrSigningUnavailable  = errors.New("signing unavailable")
	ErrClockUnavailable    = errors.New("ledger clock unavailable")
	ErrBurnerInUse         = errors.New("burner already in use")
)

// StakeError is a pipeline failure annotated with where it happened and what
// the recovery layer did about it.
type StakeError struct {
	OperationId string
	Stage       Status
	Kind        error
	Err         error
	Recovery    *RecoveryOutcome
}

func (e *StakeError) Error() string {
	msg := fmt.Sprintf("%s failed during %s: %v", e.OperationId, e.Stage, e.Err)
	if e.Recovery != nil && !e.Recovery.Recovered() {
		msg += fmt.Sprintf(" (%d stranded balance(s))", len(e.Recovery.Stranded))
	}
	return msg
}

// Unwrap exposes both the taxonomy kind and the underlying cause to errors.Is.
func (e *StakeError) Unwrap() []error {
	errs := []error{}
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	if e.Recovery != nil && !e.Recovery.Recovered() {
		errs = append(errs, ErrStrandedFunds)
	}
	return errs
}

// Classify returns the taxonomy sentinel an error belongs to, or nil.
func Classify(err error) error {
	for _, kind := range []error{
		ErrStrandedFunds,
		ErrNotConnected,
		ErrServiceUnavailable,
		ErrInsufficientFunds,
		ErrAmountBelowMinimum,
		ErrFeeEstimationFailed,
		ErrTransactionRejected,
		ErrConfirmationTimeout,
		ErrSweepFailed,
		ErrOperationInProgress,
		ErrSigningUnavailable,
		ErrClockUnavailable,
		ErrBurnerInUse,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
