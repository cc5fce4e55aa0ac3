package models

import "time"

// Config represents the application configuration
type Config struct {
	Ledger       LedgerConfig
	Privacy      PrivacyConfig
	Staking      StakingConfig
	Orchestrator OrchestratorConfig
	Database     DatabaseConfig
	Formance     FormanceConfig
	Wallet       WalletConfig
	Sweeper      SweeperConfig
	Metrics      MetricsConfig
}

// LedgerConfig holds ledger RPC settings
type LedgerConfig struct {
	RpcUrl         string
	Commitment     Commitment
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
	RequestsPerSec float64
	Burst          int
	TxFee          uint64 // base fee per signature, in native base units
}

// PrivacyConfig holds privacy-balance gateway settings
type PrivacyConfig struct {
	GatewayUrl string
	ApiKey     string
	Cluster    string
	Timeout    time.Duration
	// DeriveKeys routes burner key material through the gateway instead of local HKDF
	DeriveKeys bool
}

// StakingConfig holds staking-protocol gateway settings
type StakingConfig struct {
	GatewayUrl string
	Timeout    time.Duration
}

// OrchestratorConfig holds pipeline amounts and burner derivation settings
type OrchestratorConfig struct {
	FundingReserve  uint64
	ProtocolReserve uint64
	UnstakeReserve  uint64
	MinStake        uint64
	MinUnstake      uint64
	BurnerLabel     string
	NonceAttempts   int
	TokensFile      string
	// RecoveryTimeout bounds recovery and journaling once funds have left
	// the owner's wallet; they outlive the caller's context.
	RecoveryTimeout time.Duration
}

// DatabaseConfig holds operation journal connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// FormanceConfig holds the optional audit ledger settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Enabled reports whether an audit ledger is configured.
func (c FormanceConfig) Enabled() bool {
	return c.StackURL != ""
}

// WalletConfig locates the owner's keypair
type WalletConfig struct {
	KeypairPath string
}

// SweeperConfig holds stranded-funds sweeper settings
type SweeperConfig struct {
	Schedule string
}

// MetricsConfig holds the metrics endpoint settings
type MetricsConfig struct {
	ListenAddr string
}
