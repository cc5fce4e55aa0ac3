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
	"fmt"

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// OperationsService provides a read-only view over the operation journal
// and, when configured, the audit ledger
type OperationsService struct {
	journal  store.OperationJournal
	audit    store.AuditReader
	registry models.TokenRegistry
}

func NewOperationsService(journal store.OperationJournal, registry models.TokenRegistry) *OperationsService {
	return &OperationsService{
		journal:  journal,
		registry: registry,
	}
}

// WithAudit enables AuditBalances over the given audit ledger.
func (s *OperationsService) WithAudit(audit store.AuditReader) *OperationsService {
	s.audit = audit
	return s
}

func (s *OperationsService) HealthCheck(ctx context.Context) error {
	_, err := s.journal.ListOperations(ctx, "", 1, 0)
	if err != nil {
		return fmt.Errorf("journal health check failed: %w", err)
	}
	return nil
}
