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

	"private-stake-go/internal/models"
	"private-stake-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.OperationJournal.
var _ store.OperationJournal = (*Service)(nil)

var ErrConcurrentModification = errors.New("concurrent modification detected")

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	-- Operations table (one row per stake or unstake)
	CREATE TABLE IF NOT EXISTS operations (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL,
		direction TEXT NOT NULL,
		requested_amount TEXT NOT NULL,
		source_kind TEXT NOT NULL,
		destination_kind TEXT NOT NULL,
		safe_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		burner_address TEXT NOT NULL DEFAULT '',
		burner_nonce INTEGER NOT NULL DEFAULT 0,
		signature TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		recovered BOOLEAN,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operations_owner_created ON operations(owner, created_at);
	CREATE INDEX IF NOT EXISTS idx_operations_owner_nonce ON operations(owner, burner_nonce);
	CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status);

	-- Status transitions (audit trail of the pipeline)
	CREATE TABLE IF NOT EXISTS operation_events (
		id TEXT PRIMARY KEY,
		operation_id TEXT NOT NULL REFERENCES operations(id) ON DELETE CASCADE,
		status TEXT NOT NULL,
		signature TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_operation_events_operation ON operation_events(operation_id, created_at);

	-- Funds left in burners after every recovery path failed
	CREATE TABLE IF NOT EXISTS stranded_funds (
		id TEXT PRIMARY KEY,
		operation_id TEXT NOT NULL,
		owner TEXT NOT NULL,
		burner_address TEXT NOT NULL,
		burner_nonce INTEGER NOT NULL,
		kind TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		resolved_at TIMESTAMP,
		resolution TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_stranded_owner_resolved ON stranded_funds(owner, resolved_at);
	CREATE INDEX IF NOT EXISTS idx_stranded_operation ON stranded_funds(operation_id);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
