package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the platform wiring parameters.
type Config struct {
	Service string        `toml:"service"`
	Env     string        `toml:"env"`
	Fees    FeesConfig    `toml:"fees"`
	Oracle  OracleConfig  `toml:"oracle"`
	Storage StorageConfig `toml:"storage"`
}

// FeesConfig configures the default fee ratio and the treasury address that
// receives routed fees.
type FeesConfig struct {
	Numerator   uint64 `toml:"numerator"`
	Denominator uint64 `toml:"denominator"`
	Treasury    string `toml:"treasury"`
}

// OracleConfig controls price feed freshness handling.
type OracleConfig struct {
	MaxQuoteAgeSeconds int64 `toml:"max_quote_age_seconds"`
}

// StorageConfig selects the database backend. An empty path selects the
// in-memory store.
type StorageConfig struct {
	Path string `toml:"path"`
}

// Load reads the TOML configuration from path and applies defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg.Normalise(), nil
}

// Normalise applies defaults and canonical casing to the configuration
// values.
func (c Config) Normalise() Config {
	cfg := c
	if strings.TrimSpace(cfg.Service) == "" {
		cfg.Service = "tokenvest"
	}
	if cfg.Fees.Denominator == 0 {
		cfg.Fees.Numerator = 1
		cfg.Fees.Denominator = 100
	}
	if cfg.Oracle.MaxQuoteAgeSeconds <= 0 {
		cfg.Oracle.MaxQuoteAgeSeconds = 120
	}
	cfg.Fees.Treasury = strings.TrimSpace(cfg.Fees.Treasury)
	cfg.Storage.Path = strings.TrimSpace(cfg.Storage.Path)
	return cfg
}

// TreasuryAddress decodes the configured treasury hex address.
func (c Config) TreasuryAddress() ([20]byte, error) {
	return ParseAddress(c.Fees.Treasury)
}

// ParseAddress decodes a 20-byte hex address with an optional 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("config: invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("config: invalid address length %d", len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
