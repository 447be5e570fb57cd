package token

import (
	"fmt"
	"math/big"
	"strings"

	"tokenvest/native/common"
)

// Metadata describes a registered fungible token. Both payment currencies and
// issued asset tokens share the same ledger representation.
type Metadata struct {
	Symbol      string
	Name        string
	Decimals    uint8
	TotalSupply *big.Int
}

// Clone returns a deep copy so callers can mutate the result without touching
// the stored instance.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	if m.TotalSupply != nil {
		clone.TotalSupply = new(big.Int).Set(m.TotalSupply)
	} else {
		clone.TotalSupply = big.NewInt(0)
	}
	return &clone
}

// Holder pairs an address with its ledger balance, used when enumerating the
// holder set for snapshots.
type Holder struct {
	Address [20]byte
	Balance *big.Int
}

// NormalizeSymbol canonicalises a token symbol to uppercase without
// surrounding whitespace.
func NormalizeSymbol(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", fmt.Errorf("token: %w: empty symbol", common.ErrValidation)
	}
	return trimmed, nil
}

// SanitizeMetadata validates and normalises a token definition, returning a
// cloned instance with canonical symbol casing and a non-nil supply.
func SanitizeMetadata(m *Metadata) (*Metadata, error) {
	if m == nil {
		return nil, fmt.Errorf("token: %w: nil metadata", common.ErrValidation)
	}
	clone := m.Clone()
	symbol, err := NormalizeSymbol(clone.Symbol)
	if err != nil {
		return nil, err
	}
	clone.Symbol = symbol
	if clone.TotalSupply.Sign() < 0 {
		return nil, fmt.Errorf("token: %w: negative total supply", common.ErrValidation)
	}
	return clone, nil
}
