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

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) RecordOperation(ctx context.Context, op *models.StakeOperation) error {
	if op == nil || op.Id == "" {
		return fmt.Errorf("operation id is required")
	}
	now := time.Now().UTC()
	createdAt := op.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, queryInsertOperation,
		op.Id, op.Owner, op.Direction.String(),
		strconv.FormatUint(op.RequestedAmount, 10),
		op.SourceKind.String(), op.DestinationKind.String(),
		strconv.FormatUint(op.SafeAmount, 10),
		string(op.Status), op.BurnerAddress, op.BurnerNonce, op.Signature, op.Error,
		createdAt, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: %s", store.ErrDuplicateOperation, op.Id)
		}
		return fmt.Errorf("failed to insert operation: %w", err)
	}

	zap.L().Debug("Operation recorded",
		zap.String("operation_id", op.Id),
		zap.String("owner", op.Owner),
		zap.String("direction", op.Direction.String()),
		zap.Uint64("requested", op.RequestedAmount))
	return nil
}

// RecordTransition updates the operation row and appends an event atomically.
func (s *Service) RecordTransition(ctx context.Context, params store.TransitionParams) error {
	at := params.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			zap.L().Warn("Failed to roll back transition", zap.Error(err))
		}
	}()

	var version int64
	if err := tx.QueryRowContext(ctx, queryGetOperationVersion, params.OperationId).Scan(&version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", store.ErrOperationNotFound, params.OperationId)
		}
		return fmt.Errorf("failed to read operation version: %w", err)
	}

	var recovered any
	if params.Recovered != nil {
		recovered = *params.Recovered
	}
	safe := strconv.FormatUint(params.SafeAmount, 10)

	result, err := tx.ExecContext(ctx, queryUpdateOperationStatus,
		string(params.Status),
		safe, safe,
		params.BurnerAddress, params.BurnerAddress,
		params.BurnerNonce, params.BurnerNonce,
		params.ProtocolSignature, params.ProtocolSignature,
		params.Error, params.Error,
		recovered,
		at,
		params.OperationId, version)
	if err != nil {
		return fmt.Errorf("failed to update operation status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: operation %s", ErrConcurrentModification, params.OperationId)
	}

	if _, err := tx.ExecContext(ctx, queryInsertOperationEvent,
		uuid.New().String(), params.OperationId, string(params.Status), params.Signature, params.Error, at); err != nil {
		return fmt.Errorf("failed to insert operation event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}
	return nil
}

func (s *Service) GetOperation(ctx context.Context, id string) (*models.StakeOperation, error) {
	op, err := scanOperation(s.db.QueryRowContext(ctx, queryGetOperation, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrOperationNotFound, id)
		}
		return nil, err
	}
	if err := s.attachRecovery(ctx, op); err != nil {
		return nil, err
	}
	return op, nil
}

func (s *Service) ListOperations(ctx context.Context, owner string, limit, offset int) ([]models.StakeOperation, error) {
	rows, err := s.db.QueryContext(ctx, queryListOperations, owner, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}()

	var ops []models.StakeOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, *op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}

	for i := range ops {
		if err := s.attachRecovery(ctx, &ops[i]); err != nil {
			return nil, err
		}
	}
	return ops, nil
}

func (s *Service) NonceInUse(ctx context.Context, owner string, nonce int64) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, queryNonceInUse, owner, nonce).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check burner nonce: %w", err)
	}
	return count > 0, nil
}

// attachRecovery rebuilds the recovery outcome of a failed operation from its
// unresolved stranded records.
func (s *Service) attachRecovery(ctx context.Context, op *models.StakeOperation) error {
	if op.Recovery == nil {
		return nil
	}
	stranded, err := s.queryStranded(ctx, queryListStrandedForOperation, op.Id)
	if err != nil {
		return err
	}
	op.Recovery.Stranded = stranded
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*models.StakeOperation, error) {
	var (
		op                      models.StakeOperation
		direction, source, dest string
		requested, safe, status string
		recovered               sql.NullBool
		createdAt, updatedAt    time.Time
	)
	err := row.Scan(&op.Id, &op.Owner, &direction, &requested, &source, &dest, &safe,
		&status, &op.BurnerAddress, &op.BurnerNonce, &op.Signature, &op.Error, &recovered,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if op.Direction, err = models.ParseDirection(direction); err != nil {
		return nil, err
	}
	if op.SourceKind, err = parseKind(source); err != nil {
		return nil, err
	}
	if op.DestinationKind, err = parseKind(dest); err != nil {
		return nil, err
	}
	if op.RequestedAmount, err = strconv.ParseUint(requested, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid requested amount %q: %w", requested, err)
	}
	if op.SafeAmount, err = strconv.ParseUint(safe, 10, 64); err != nil {
		return nil, fmt.Errorf("invalid safe amount %q: %w", safe, err)
	}
	op.Status = models.Status(status)
	if recovered.Valid {
		op.Recovery = &models.RecoveryOutcome{}
	}
	op.CreatedAt = createdAt
	op.UpdatedAt = updatedAt
	return &op, nil
}

func parseKind(s string) (models.TokenKind, error) {
	switch s {
	case models.TokenNative.String():
		return models.TokenNative, nil
	case models.TokenDerivative.String():
		return models.TokenDerivative, nil
	}
	return 0, fmt.Errorf("unknown token kind %q", s)
}
