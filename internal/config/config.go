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

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"private-stake-go/internal/models"
)

const (
	// 0.05 native tokens, enough for the burner's protocol and sweep fees
	defaultFundingReserve = 50_000_000
	// kept back from the deposit for the derivative account rent and later top-up fees
	defaultProtocolReserve = 10_000_000
	defaultMinStake        = 1_000_000
	defaultMinUnstake      = 1_000_000
	defaultTxFee           = 5_000
)

func Load() (*models.Config, error) {
	confirmTimeout, err := getEnvDuration("LEDGER_CONFIRM_TIMEOUT", 90*time.Second)
	if err != nil {
		return nil, err
	}

	pollInterval, err := getEnvDuration("LEDGER_POLL_INTERVAL", 2*time.Second)
	if err != nil {
		return nil, err
	}

	privacyTimeout, err := getEnvDuration("PRIVACY_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, err
	}

	stakingTimeout, err := getEnvDuration("STAKING_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	recoveryTimeout, err := getEnvDuration("RECOVERY_TIMEOUT", 3*time.Minute)
	if err != nil {
		return nil, err
	}

	fundingReserve, err := getEnvUint64("FUNDING_RESERVE", defaultFundingReserve)
	if err != nil {
		return nil, err
	}

	protocolReserve, err := getEnvUint64("PROTOCOL_RESERVE", defaultProtocolReserve)
	if err != nil {
		return nil, err
	}

	unstakeReserve, err := getEnvUint64("UNSTAKE_RESERVE", 0)
	if err != nil {
		return nil, err
	}

	minStake, err := getEnvUint64("MIN_STAKE", defaultMinStake)
	if err != nil {
		return nil, err
	}

	minUnstake, err := getEnvUint64("MIN_UNSTAKE", defaultMinUnstake)
	if err != nil {
		return nil, err
	}

	txFee, err := getEnvUint64("LEDGER_TX_FEE", defaultTxFee)
	if err != nil {
		return nil, err
	}

	if protocolReserve >= fundingReserve {
		return nil, fmt.Errorf("PROTOCOL_RESERVE (%d) must be lower than FUNDING_RESERVE (%d)", protocolReserve, fundingReserve)
	}

	commitment := models.Commitment(getEnvString("LEDGER_COMMITMENT", string(models.CommitmentFinalized)))
	if commitment != models.CommitmentConfirmed && commitment != models.CommitmentFinalized {
		return nil, fmt.Errorf("invalid LEDGER_COMMITMENT: %q", commitment)
	}

	return &models.Config{
		Ledger: models.LedgerConfig{
			RpcUrl:         getEnvString("LEDGER_RPC_URL", "https://api.mainnet-beta.solana.com"),
			Commitment:     commitment,
			ConfirmTimeout: confirmTimeout,
			PollInterval:   pollInterval,
			RequestsPerSec: getEnvFloat("LEDGER_RPC_RPS", 8),
			Burst:          getEnvInt("LEDGER_RPC_BURST", 4),
			TxFee:          txFee,
		},
		Privacy: models.PrivacyConfig{
			GatewayUrl: getEnvString("PRIVACY_GATEWAY_URL", "http://127.0.0.1:8787"),
			ApiKey:     os.Getenv("PRIVACY_API_KEY"),
			Cluster:    getEnvString("PRIVACY_CLUSTER", "mainnet-beta"),
			Timeout:    privacyTimeout,
			DeriveKeys: getEnvBool("PRIVACY_DERIVE_KEYS", false),
		},
		Staking: models.StakingConfig{
			GatewayUrl: getEnvString("STAKING_GATEWAY_URL", "http://127.0.0.1:8788"),
			Timeout:    stakingTimeout,
		},
		Orchestrator: models.OrchestratorConfig{
			FundingReserve:  fundingReserve,
			ProtocolReserve: protocolReserve,
			UnstakeReserve:  unstakeReserve,
			MinStake:        minStake,
			MinUnstake:      minUnstake,
			BurnerLabel:     getEnvString("BURNER_LABEL", "MARINADE_LIQUID_STAKE_KEY"),
			NonceAttempts:   getEnvInt("BURNER_NONCE_ATTEMPTS", 3),
			TokensFile:      getEnvString("TOKENS_FILE", "tokens.yaml"),
			RecoveryTimeout: recoveryTimeout,
		},
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "operations.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 4),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Formance: models.FormanceConfig{
			StackURL:     os.Getenv("FORMANCE_STACK_URL"),
			ClientID:     os.Getenv("FORMANCE_CLIENT_ID"),
			ClientSecret: os.Getenv("FORMANCE_CLIENT_SECRET"),
			LedgerName:   getEnvString("FORMANCE_LEDGER", "private-stake"),
		},
		Wallet: models.WalletConfig{
			KeypairPath: getEnvString("WALLET_KEYPAIR", "id.json"),
		},
		Sweeper: models.SweeperConfig{
			Schedule: getEnvString("SWEEPER_SCHEDULE", "@every 10m"),
		},
		Metrics: models.MetricsConfig{
			ListenAddr: os.Getenv("METRICS_LISTEN_ADDR"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvUint64(key string, defaultValue uint64) (uint64, error) {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid base-unit amount for %s: %q (%w)", key, value, err)
		}
		return parsed, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
