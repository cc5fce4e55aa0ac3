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

const (
	// Operation queries
	queryInsertOperation = `
		INSERT INTO operations (id, owner, direction, requested_amount, source_kind, destination_kind,
			safe_amount, status, burner_address, burner_nonce, signature, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetOperationVersion = `
		SELECT version FROM operations WHERE id = ?`

	queryUpdateOperationStatus = `
		UPDATE operations
		SET status = ?,
			safe_amount = CASE WHEN ? != '0' THEN ? ELSE safe_amount END,
			burner_address = CASE WHEN ? != '' THEN ? ELSE burner_address END,
			burner_nonce = CASE WHEN ? != 0 THEN ? ELSE burner_nonce END,
			signature = CASE WHEN ? != '' THEN ? ELSE signature END,
			error = CASE WHEN ? != '' THEN ? ELSE error END,
			recovered = COALESCE(?, recovered),
			version = version + 1,
			updated_at = ?
		WHERE id = ? AND version = ?`

	queryInsertOperationEvent = `
		INSERT INTO operation_events (id, operation_id, status, signature, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	queryGetOperation = `
		SELECT id, owner, direction, requested_amount, source_kind, destination_kind, safe_amount,
			status, burner_address, burner_nonce, signature, error, recovered, created_at, updated_at
		FROM operations
		WHERE id = ?`

	queryListOperations = `
		SELECT id, owner, direction, requested_amount, source_kind, destination_kind, safe_amount,
			status, burner_address, burner_nonce, signature, error, recovered, created_at, updated_at
		FROM operations
		WHERE owner = ?
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?`

	queryNonceInUse = `
		SELECT COUNT(1) FROM operations WHERE owner = ? AND burner_nonce = ?`

	// Stranded funds queries
	queryInsertStranded = `
		INSERT INTO stranded_funds (id, operation_id, owner, burner_address, burner_nonce, kind, amount,
			reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryListStranded = `
		SELECT id, operation_id, owner, burner_address, burner_nonce, kind, amount, reason,
			created_at, resolved_at, resolution
		FROM stranded_funds
		WHERE owner = ? AND (? OR resolved_at IS NULL)
		ORDER BY created_at, id`

	queryListStrandedForOperation = `
		SELECT id, operation_id, owner, burner_address, burner_nonce, kind, amount, reason,
			created_at, resolved_at, resolution
		FROM stranded_funds
		WHERE operation_id = ? AND resolved_at IS NULL
		ORDER BY created_at, id`

	queryResolveStranded = `
		UPDATE stranded_funds
		SET resolved_at = ?, resolution = ?
		WHERE id = ? AND resolved_at IS NULL`
)
