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

package api

import (
	"context"
	"errors"
	"fmt"
	"time"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	"go.uber.org/zap"
)

// OperationRecord is an operation rendered for display
type OperationRecord struct {
	Id        string
	Direction string
	Status    string
	Requested string
	Safe      string
	Burner    string
	Signature string
	Error     string
	CreatedAt time.Time
}

// StrandedRecord is a stranded funds entry rendered for display
type StrandedRecord struct {
	Id          string
	OperationId string
	Burner      string
	Nonce       int64
	Amount      string
	Reason      string
	Resolved    bool
	CreatedAt   time.Time
}

// GetOperation returns one operation by id
func (s *OperationsService) GetOperation(ctx context.Context, id string) (*OperationRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("operation id is required")
	}

	op, err := s.journal.GetOperation(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrOperationNotFound) {
			return nil, err
		}
		zap.L().Error("Failed to get operation", zap.String("operation_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve operation")
	}

	record := s.operationRecord(op)
	return &record, nil
}

// ListOperations returns paginated operation history for an owner, newest first
func (s *OperationsService) ListOperations(ctx context.Context, owner string, limit, offset int) ([]OperationRecord, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}

	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}

	ops, err := s.journal.ListOperations(ctx, owner, limit, offset)
	if err != nil {
		zap.L().Error("Failed to list operations", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve operation history")
	}

	result := make([]OperationRecord, len(ops))
	for i := range ops {
		result[i] = s.operationRecord(&ops[i])
	}
	return result, nil
}

// ListStranded returns an owner's stranded funds, optionally including resolved entries
func (s *OperationsService) ListStranded(ctx context.Context, owner string, includeResolved bool) ([]StrandedRecord, error) {
	if owner == "" {
		return nil, fmt.Errorf("owner is required")
	}

	funds, err := s.journal.ListStranded(ctx, owner, includeResolved)
	if err != nil {
		zap.L().Error("Failed to list stranded funds", zap.String("owner", owner), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve stranded funds")
	}

	result := make([]StrandedRecord, len(funds))
	for i, f := range funds {
		result[i] = StrandedRecord{
			Id:          f.Id,
			OperationId: f.OperationId,
			Burner:      f.BurnerAddress,
			Nonce:       f.BurnerNonce,
			Amount:      s.registry.Info(f.Kind).Format(f.Amount),
			Reason:      f.Reason,
			Resolved:    f.ResolvedAt != nil,
			CreatedAt:   f.CreatedAt,
		}
	}
	return result, nil
}

func (s *OperationsService) operationRecord(op *models.StakeOperation) OperationRecord {
	return OperationRecord{
		Id:        op.Id,
		Direction: op.Direction.String(),
		Status:    op.StatusLabel(),
		Requested: s.registry.Info(op.SourceKind).Format(op.RequestedAmount),
		Safe:      s.registry.Info(op.SourceKind).Format(op.SafeAmount),
		Burner:    op.BurnerAddress,
		Signature: op.Signature,
		Error:     op.Error,
		CreatedAt: op.CreatedAt,
	}
}
