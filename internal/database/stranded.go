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
	"fmt"
	"strconv"
	"time"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) RecordStranded(ctx context.Context, funds models.StrandedFunds) (*models.StrandedFunds, error) {
	if funds.Id == "" {
		funds.Id = uuid.New().String()
	}
	if funds.CreatedAt.IsZero() {
		funds.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, queryInsertStranded,
		funds.Id, funds.OperationId, funds.Owner, funds.BurnerAddress, funds.BurnerNonce,
		funds.Kind.String(), strconv.FormatUint(funds.Amount, 10), funds.Reason, funds.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert stranded funds: %w", err)
	}

	zap.L().Info("Stranded funds recorded",
		zap.String("id", funds.Id),
		zap.String("operation_id", funds.OperationId),
		zap.String("burner", funds.BurnerAddress),
		zap.Int64("nonce", funds.BurnerNonce),
		zap.String("token", funds.Kind.String()),
		zap.Uint64("amount", funds.Amount))
	return &funds, nil
}

func (s *Service) ListStranded(ctx context.Context, owner string, includeResolved bool) ([]models.StrandedFunds, error) {
	return s.queryStranded(ctx, queryListStranded, owner, includeResolved)
}

// ResolveStranded marks a record recovered; resolution is typically the sweep signature.
func (s *Service) ResolveStranded(ctx context.Context, id, resolution string) error {
	result, err := s.db.ExecContext(ctx, queryResolveStranded, time.Now().UTC(), resolution, id)
	if err != nil {
		return fmt.Errorf("failed to resolve stranded funds: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", store.ErrStrandedNotFound, id)
	}
	return nil
}

func (s *Service) queryStranded(ctx context.Context, query string, args ...any) ([]models.StrandedFunds, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query stranded funds: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}()

	var out []models.StrandedFunds
	for rows.Next() {
		var (
			f          models.StrandedFunds
			kind       string
			amount     string
			resolvedAt sql.NullTime
		)
		if err := rows.Scan(&f.Id, &f.OperationId, &f.Owner, &f.BurnerAddress, &f.BurnerNonce,
			&kind, &amount, &f.Reason, &f.CreatedAt, &resolvedAt, &f.Resolution); err != nil {
			return nil, fmt.Errorf("failed to scan stranded funds: %w", err)
		}
		if f.Kind, err = parseKind(kind); err != nil {
			return nil, err
		}
		if f.Amount, err = strconv.ParseUint(amount, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid stranded amount %q: %w", amount, err)
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			f.ResolvedAt = &t
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stranded funds: %w", err)
	}
	return out, nil
}
