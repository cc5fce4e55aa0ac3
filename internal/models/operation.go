/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import (
	"fmt"
	"time"
)

// Direction is the way an operation converts between tokens.
type Direction int

const (
	DirectionStake Direction = iota
	DirectionUnstake
)

func (d Direction) String() string {
	if d == DirectionUnstake {
		return "unstake"
	}
	return "stake"
}

// SourceKind is the token that leaves the private balance.
func (d Direction) SourceKind() TokenKind {
	if d == DirectionUnstake {
		return TokenDerivative
	}
	return TokenNative
}

// DestinationKind is the token that returns to the private balance.
func (d Direction) DestinationKind() TokenKind {
	if d == DirectionUnstake {
		return TokenNative
	}
	return TokenDerivative
}

// ParseDirection parses "stake" or "unstake".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "stake":
		return DirectionStake, nil
	case "unstake":
		return DirectionUnstake, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Status is the pipeline position of a StakeOperation.
type Status string

const (
	StatusPending      Status = "pending"
	StatusFunding      Status = "funding"
	StatusTransferring Status = "transferring"
	StatusExecuting    Status = "executing"
	StatusSweeping     Status = "sweeping"
	StatusReconciling  Status = "reconciling"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TransferKind distinguishes transfers out of and into the private balance.
type TransferKind int

const (
	// TransferSend moves funds from the private balance to a public address.
	TransferSend TransferKind = iota
	// TransferTopUp moves funds from a public address into the private balance.
	TransferTopUp
)

func (k TransferKind) String() string {
	if k == TransferTopUp {
		return "topup"
	}
	return "send"
}

// Commitment is the ledger confirmation level awaited for a transaction.
type Commitment string

const (
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// StakeOperation is one user-initiated stake or unstake.
type StakeOperation struct {
	Id              string
	Owner           string
	Direction       Direction
	RequestedAmount uint64
	SourceKind      TokenKind
	DestinationKind TokenKind
	SafeAmount      uint64
	Status          Status
	BurnerAddress   string
	BurnerNonce     int64
	Signature       string // protocol action signature once executed
	Error           string
	Recovery        *RecoveryOutcome
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// StatusLabel renders Failed as failed+recovered or failed+stranded.
func (op *StakeOperation) StatusLabel() string {
	if op.Status != StatusFailed || op.Recovery == nil {
		return string(op.Status)
	}
	if op.Recovery.Recovered() {
		return string(StatusFailed) + "+recovered"
	}
	return string(StatusFailed) + "+stranded"
}

// BalanceSnapshot is the latest observation of the owner's four balances, in base units.
type BalanceSnapshot struct {
	PublicNative      uint64
	PublicDerivative  uint64
	PrivateNative     uint64
	PrivateDerivative uint64
}

// Private returns the private balance of a token kind.
func (b BalanceSnapshot) Private(kind TokenKind) uint64 {
	if kind == TokenDerivative {
		return b.PrivateDerivative
	}
	return b.PrivateNative
}

// Public returns the public balance of a token kind.
func (b BalanceSnapshot) Public(kind TokenKind) uint64 {
	if kind == TokenDerivative {
		return b.PublicDerivative
	}
	return b.PublicNative
}

// FeeEstimate is a fee quote valid only for the next transfer.
type FeeEstimate struct {
	Amount uint64
	Kind   TokenKind
}

// Adjustment is the result of reserving fees and rent from a requested amount.
type Adjustment struct {
	Requested uint64
	Fee       FeeEstimate
	Reserve   uint64
	Safe      uint64
}

// Tx is a serialized ledger transaction handed between builders, signers and submitters.
type Tx struct {
	Payload []byte
}

// DepositTx is a staking deposit transaction plus the account receiving minted tokens.
type DepositTx struct {
	Tx                *Tx
	DerivativeAccount string
}

// StrandedFunds identifies funds left in a burner after every recovery path failed.
// The burner is re-derivable from the owner's capability seed and Nonce.
type StrandedFunds struct {
	Id            string
	OperationId   string
	Owner         string
	BurnerAddress string
	BurnerNonce   int64
	Kind          TokenKind
	Amount        uint64
	Reason        string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	Resolution    string
}

// RecoveryOutcome reports what the recovery layer managed to return.
type RecoveryOutcome struct {
	Signatures []string
	// PublicFallback is set when at least one kind was returned by public transfer.
	PublicFallback bool
	Stranded       []StrandedFunds
}

// Recovered reports whether nothing is left stranded.
func (r *RecoveryOutcome) Recovered() bool {
	return r != nil && len(r.Stranded) == 0
}

// OperationResult is returned for every orchestrated operation, successful or not.
type OperationResult struct {
	Operation *StakeOperation
	Signature string
	Snapshot  BalanceSnapshot
	// Residual is the recovery outcome for leftovers swept after a completed pipeline.
	Residual *RecoveryOutcome
	Warnings []string
}
