package common

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"private-stake-go/internal/models"

	"github.com/mr-tron/base58"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type TokenConfig struct {
	Symbol   string `yaml:"symbol"`
	Mint     string `yaml:"mint"`
	Decimals int32  `yaml:"decimals"`
}

type TokensConfig struct {
	Native     TokenConfig `yaml:"native"`
	Derivative TokenConfig `yaml:"derivative"`
}

// LoadTokenRegistry reads the token definitions from tokensFile. A missing
// file yields the default SOL / mSOL registry.
func LoadTokenRegistry(tokensFile string) (models.TokenRegistry, error) {
	tokensPath := tokensFile
	if !filepath.IsAbs(tokensFile) {
		wd, err := os.Getwd()
		if err != nil {
			return models.TokenRegistry{}, fmt.Errorf("failed to get working directory: %w", err)
		}
		tokensPath = filepath.Join(wd, tokensFile)
	}

	data, err := os.ReadFile(tokensPath)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("No token file found, using default tokens", zap.String("path", tokensPath))
		return models.DefaultTokenRegistry(), nil
	}
	if err != nil {
		return models.TokenRegistry{}, fmt.Errorf("unable to read %s: %w", tokensFile, err)
	}

	return ParseTokenRegistry(data)
}

// ParseTokenRegistry parses and validates a tokens YAML document.
func ParseTokenRegistry(data []byte) (models.TokenRegistry, error) {
	var config TokensConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return models.TokenRegistry{}, fmt.Errorf("unable to parse tokens: %w", err)
	}

	if config.Native.Symbol == "" || config.Derivative.Symbol == "" {
		return models.TokenRegistry{}, fmt.Errorf("native and derivative symbols are required")
	}
	if config.Native.Symbol == config.Derivative.Symbol {
		return models.TokenRegistry{}, fmt.Errorf("native and derivative symbols must differ")
	}
	for name, t := range map[string]TokenConfig{"native": config.Native, "derivative": config.Derivative} {
		if t.Decimals < 0 || t.Decimals > 18 {
			return models.TokenRegistry{}, fmt.Errorf("%s decimals out of range: %d", name, t.Decimals)
		}
	}
	if config.Native.Mint != "" {
		return models.TokenRegistry{}, fmt.Errorf("native token must not have a mint")
	}
	if err := validateMint(config.Derivative.Mint); err != nil {
		return models.TokenRegistry{}, fmt.Errorf("derivative mint: %w", err)
	}

	return models.TokenRegistry{
		Native: models.TokenInfo{
			Kind:     models.TokenNative,
			Symbol:   config.Native.Symbol,
			Decimals: config.Native.Decimals,
		},
		Derivative: models.TokenInfo{
			Kind:     models.TokenDerivative,
			Symbol:   config.Derivative.Symbol,
			Mint:     config.Derivative.Mint,
			Decimals: config.Derivative.Decimals,
		},
	}, nil
}

func validateMint(mint string) error {
	if mint == "" {
		return fmt.Errorf("missing")
	}
	raw, err := base58.Decode(mint)
	if err != nil {
		return fmt.Errorf("invalid base58 %q: %w", mint, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%q decodes to %d bytes, want 32", mint, len(raw))
	}
	return nil
}
