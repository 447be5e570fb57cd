package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"
)

// AddressHex renders a 20-byte address as lowercase hex without prefix.
func AddressHex(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

// FormatAmount renders an amount for event attributes, treating nil as zero.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// FormatInt renders a signed integer attribute value.
func FormatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

// FormatUint renders an unsigned integer attribute value.
func FormatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// NormalizeToken canonicalises token symbols used in event attributes.
func NormalizeToken(symbol string) string {
	trimmed := strings.TrimSpace(symbol)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(trimmed)
}
