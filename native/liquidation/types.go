package liquidation

import (
	"fmt"
	"math/big"
	"sync"

	"tokenvest/native/common"
)

// Record captures the terminal settlement of an asset: the settled price, the
// frozen holder-balance snapshot and the collected settlement funds. Records
// persist as an audit trail; only the claimed set grows afterwards.
type Record struct {
	AssetToken        string
	PaymentToken      string
	CampaignID        [32]byte
	Owner             [20]byte
	Liquidated        bool
	WhitelistRequired bool
	LiquidationPrice  *big.Int
	CampaignPrice     *big.Int
	FundsCollected    *big.Int
	Snapshot          map[[20]byte]*big.Int
	LiquidatedAt      int64
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	clone := *r
	clone.LiquidationPrice = cloneBigInt(r.LiquidationPrice)
	clone.CampaignPrice = cloneBigInt(r.CampaignPrice)
	clone.FundsCollected = cloneBigInt(r.FundsCollected)
	clone.Snapshot = make(map[[20]byte]*big.Int, len(r.Snapshot))
	for addr, bal := range r.Snapshot {
		clone.Snapshot[addr] = cloneBigInt(bal)
	}
	return &clone
}

// SnapshotBalance returns the holder's frozen balance at liquidation time.
func (r *Record) SnapshotBalance(holder [20]byte) *big.Int {
	if r == nil || r.Snapshot == nil {
		return big.NewInt(0)
	}
	return cloneBigInt(r.Snapshot[holder])
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Quote is a price feed observation for an asset. ObservedAt is the unix
// second the feed priced the asset, Expiry the unix second after which the
// quote must not be used; SnapshotSupply reports the token supply the feed
// observed when pricing.
type Quote struct {
	Price          *big.Int
	ObservedAt     int64
	Expiry         int64
	SnapshotSupply *big.Int
}

// Fresh reports whether the quote is usable at the given time. A nil or
// non-positive price is never fresh.
func (q Quote) Fresh(now int64) bool {
	if q.Price == nil || q.Price.Sign() <= 0 {
		return false
	}
	return q.Expiry > now
}

// PriceFeed resolves a live market price for an asset token.
type PriceFeed interface {
	GetPrice(asset string) (Quote, error)
}

// ManualFeed provides an in-memory feed implementation used for tests and
// manual overrides.
type ManualFeed struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

// NewManualFeed constructs an empty manual feed.
func NewManualFeed() *ManualFeed {
	return &ManualFeed{quotes: make(map[string]Quote)}
}

// Set stores the quote for the asset.
func (f *ManualFeed) Set(asset string, quote Quote) {
	if f == nil {
		return
	}
	f.mu.Lock()
	f.quotes[asset] = Quote{
		Price:          cloneBigInt(quote.Price),
		ObservedAt:     quote.ObservedAt,
		Expiry:         quote.Expiry,
		SnapshotSupply: cloneBigInt(quote.SnapshotSupply),
	}
	f.mu.Unlock()
}

// GetPrice implements the PriceFeed interface.
func (f *ManualFeed) GetPrice(asset string) (Quote, error) {
	if f == nil {
		return Quote{}, fmt.Errorf("liquidation: manual feed not configured")
	}
	f.mu.RLock()
	quote, ok := f.quotes[asset]
	f.mu.RUnlock()
	if !ok {
		return Quote{}, fmt.Errorf("liquidation: %w: quote for %s", common.ErrNotFound, asset)
	}
	return Quote{
		Price:          cloneBigInt(quote.Price),
		ObservedAt:     quote.ObservedAt,
		Expiry:         quote.Expiry,
		SnapshotSupply: cloneBigInt(quote.SnapshotSupply),
	}, nil
}
