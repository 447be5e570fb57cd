package whitelist

import "sync"

// Oracle answers whether a wallet has passed the external KYC/approval
// process. Campaign investments and liquidation claims consult it whenever a
// campaign requires whitelisting.
type Oracle interface {
	IsWalletApproved(wallet [20]byte) bool
}

// OpenOracle approves every wallet. It backs campaigns that do not require
// whitelisting.
type OpenOracle struct{}

// IsWalletApproved implements the Oracle interface.
func (OpenOracle) IsWalletApproved([20]byte) bool { return true }

// ManualRegistry provides an in-memory oracle implementation used for tests
// and manual overrides during incident response.
type ManualRegistry struct {
	mu       sync.RWMutex
	approved map[[20]byte]bool
}

// NewManualRegistry constructs an empty manual registry.
func NewManualRegistry() *ManualRegistry {
	return &ManualRegistry{approved: make(map[[20]byte]bool)}
}

// Approve marks the wallet as whitelist-approved.
func (r *ManualRegistry) Approve(wallet [20]byte) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.approved[wallet] = true
	r.mu.Unlock()
}

// Revoke removes the wallet's approval.
func (r *ManualRegistry) Revoke(wallet [20]byte) {
	if r == nil {
		return
	}
	r.mu.Lock()
	delete(r.approved, wallet)
	r.mu.Unlock()
}

// IsWalletApproved implements the Oracle interface.
func (r *ManualRegistry) IsWalletApproved(wallet [20]byte) bool {
	if r == nil {
		return false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.approved[wallet]
}
