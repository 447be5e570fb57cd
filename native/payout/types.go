package payout

import (
	"fmt"
	"math/big"

	"tokenvest/native/common"
)

// Payout records one reward distribution against a merkle snapshot of asset
// holders. Records are never destroyed; cancellation only zeroes the
// remaining reward so the audit trail survives.
type Payout struct {
	ID          uint64
	Owner       [20]byte
	AssetToken  string
	RewardToken string
	// TotalAssetAmount is the snapshot denominator used for the proportional
	// reward division.
	TotalAssetAmount *big.Int
	// IgnoredHolders are excluded from distribution, e.g. the issuer's own
	// holdings at snapshot time.
	IgnoredHolders  [][20]byte
	MerkleRoot      [32]byte
	MerkleDepth     int
	SnapshotBlock   uint64
	MerkleIPFSHash  string
	TotalReward     *big.Int
	RemainingReward *big.Int
	Cancelled       bool
	CreatedAt       int64
}

// Clone returns a deep copy of the payout record.
func (p *Payout) Clone() *Payout {
	if p == nil {
		return nil
	}
	clone := *p
	clone.TotalAssetAmount = cloneBigInt(p.TotalAssetAmount)
	clone.TotalReward = cloneBigInt(p.TotalReward)
	clone.RemainingReward = cloneBigInt(p.RemainingReward)
	clone.IgnoredHolders = append([][20]byte(nil), p.IgnoredHolders...)
	return &clone
}

// IsIgnored reports whether the holder was excluded from the distribution.
func (p *Payout) IsIgnored(holder [20]byte) bool {
	for _, ignored := range p.IgnoredHolders {
		if ignored == holder {
			return true
		}
	}
	return false
}

// Reward computes the holder's share: floor(totalReward * balance /
// totalAssetAmount).
func (p *Payout) Reward(balance *big.Int) *big.Int {
	if balance == nil || balance.Sign() <= 0 || p.TotalAssetAmount == nil || p.TotalAssetAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(cloneBigInt(p.TotalReward), balance)
	return reward.Div(reward, p.TotalAssetAmount)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// SanitizePayout validates a stored payout record, returning a clone with
// non-nil amounts.
func SanitizePayout(p *Payout) (*Payout, error) {
	if p == nil {
		return nil, fmt.Errorf("payout: %w: nil payout", common.ErrValidation)
	}
	clone := p.Clone()
	if clone.MerkleDepth <= 0 {
		return nil, fmt.Errorf("payout: %w: merkle depth must be positive", common.ErrValidation)
	}
	if clone.TotalAssetAmount.Sign() <= 0 {
		return nil, fmt.Errorf("payout: %w: cannot create payout without holders", common.ErrValidation)
	}
	if clone.TotalReward.Sign() <= 0 {
		return nil, fmt.Errorf("payout: %w: reward must be positive", common.ErrValidation)
	}
	if clone.RemainingReward.Sign() < 0 || clone.RemainingReward.Cmp(clone.TotalReward) > 0 {
		return nil, fmt.Errorf("payout: %w: remaining reward out of range", common.ErrValidation)
	}
	return clone, nil
}
