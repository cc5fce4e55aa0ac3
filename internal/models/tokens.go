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
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// TokenKind is the closed set of tokens the stake pipeline moves.
type TokenKind int

const (
	TokenNative TokenKind = iota
	TokenDerivative
)

func (k TokenKind) String() string {
	switch k {
	case TokenNative:
		return "native"
	case TokenDerivative:
		return "derivative"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

// Valid reports whether k is one of the known kinds.
func (k TokenKind) Valid() bool {
	return k == TokenNative || k == TokenDerivative
}

// ParseTokenKind accepts the kind name or the configured symbol of either token.
func ParseTokenKind(s string, registry TokenRegistry) (TokenKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "native", strings.ToLower(registry.Native.Symbol):
		return TokenNative, nil
	case "derivative", strings.ToLower(registry.Derivative.Symbol):
		return TokenDerivative, nil
	}
	return 0, fmt.Errorf("unknown token kind %q", s)
}

// TokenInfo describes one token on the ledger.
type TokenInfo struct {
	Kind     TokenKind
	Symbol   string
	Mint     string // empty for the native token
	Decimals int32
}

// ToDecimal converts base units into display units.
func (t TokenInfo) ToDecimal(amount uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -t.Decimals)
}

// FromDecimal converts display units into base units, truncating extra precision.
func (t TokenInfo) FromDecimal(amount decimal.Decimal) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative: %s", amount.String())
	}
	base := amount.Shift(t.Decimals).Truncate(0)
	if !base.BigInt().IsUint64() {
		return 0, fmt.Errorf("amount %s %s overflows base units", amount.String(), t.Symbol)
	}
	return base.BigInt().Uint64(), nil
}

// Format renders a base-unit amount with the token symbol.
func (t TokenInfo) Format(amount uint64) string {
	return t.ToDecimal(amount).String() + " " + t.Symbol
}

// TokenRegistry holds the native and derivative token definitions.
type TokenRegistry struct {
	Native     TokenInfo
	Derivative TokenInfo
}

// Info returns the token definition for a kind.
func (r TokenRegistry) Info(kind TokenKind) TokenInfo {
	if kind == TokenDerivative {
		return r.Derivative
	}
	return r.Native
}

// DefaultTokenRegistry is SOL / mSOL on Solana mainnet.
func DefaultTokenRegistry() TokenRegistry {
	return TokenRegistry{
		Native: TokenInfo{
			Kind:     TokenNative,
			Symbol:   "SOL",
			Decimals: 9,
		},
		Derivative: TokenInfo{
			Kind:     TokenDerivative,
			Symbol:   "mSOL",
			Mint:     "mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So",
			Decimals: 9,
		},
	}
}
