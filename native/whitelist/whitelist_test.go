package whitelist

import (
	"bytes"
	"testing"
)

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func TestOpenOracleApprovesEveryone(t *testing.T) {
	if !(OpenOracle{}).IsWalletApproved(newTestAddress(0x01)) {
		t.Fatalf("open oracle should approve any wallet")
	}
}

func TestManualRegistry(t *testing.T) {
	registry := NewManualRegistry()
	alice := newTestAddress(0xA1)
	bob := newTestAddress(0xB2)

	if registry.IsWalletApproved(alice) {
		t.Fatalf("fresh registry should approve nobody")
	}
	registry.Approve(alice)
	if !registry.IsWalletApproved(alice) {
		t.Fatalf("approved wallet should pass")
	}
	if registry.IsWalletApproved(bob) {
		t.Fatalf("approval must not leak to other wallets")
	}
	registry.Revoke(alice)
	if registry.IsWalletApproved(alice) {
		t.Fatalf("revoked wallet should fail")
	}
	// Revoking an unknown wallet is a no-op.
	registry.Revoke(bob)
}
