package campaign

import "math/big"

// ClaimStrategy decides how many of an investor's purchased tokens are
// releasable at a point in time. Strategies are stateless; claimed progress is
// tracked on the investment record.
type ClaimStrategy interface {
	Releasable(totalTokens, alreadyClaimed *big.Int, now int64) *big.Int
}

// ImmediateClaim releases the full purchased amount as soon as the campaign is
// finalized.
type ImmediateClaim struct{}

// Releasable implements the ClaimStrategy interface.
func (ImmediateClaim) Releasable(totalTokens, alreadyClaimed *big.Int, _ int64) *big.Int {
	remaining := new(big.Int).Sub(cloneBigInt(totalTokens), cloneBigInt(alreadyClaimed))
	if remaining.Sign() < 0 {
		return big.NewInt(0)
	}
	return remaining
}

// VestingClaim releases tokens linearly over Duration seconds starting at
// Start, with nothing claimable before Start+Cliff.
type VestingClaim struct {
	Start    int64
	Cliff    int64
	Duration int64
}

// Releasable implements the ClaimStrategy interface.
func (v VestingClaim) Releasable(totalTokens, alreadyClaimed *big.Int, now int64) *big.Int {
	total := cloneBigInt(totalTokens)
	claimed := cloneBigInt(alreadyClaimed)
	vested := v.vested(total, now)
	releasable := vested.Sub(vested, claimed)
	if releasable.Sign() < 0 {
		return big.NewInt(0)
	}
	return releasable
}

func (v VestingClaim) vested(total *big.Int, now int64) *big.Int {
	if now < v.Start+v.Cliff {
		return big.NewInt(0)
	}
	if v.Duration <= 0 || now >= v.Start+v.Duration {
		return total
	}
	elapsed := now - v.Start
	vested := new(big.Int).Mul(total, big.NewInt(elapsed))
	return vested.Div(vested, big.NewInt(v.Duration))
}

func (c *Campaign) claimStrategy() ClaimStrategy {
	if c.ClaimMode == ClaimVesting {
		return VestingClaim{Start: c.Vesting.Start, Cliff: c.Vesting.Cliff, Duration: c.Vesting.Duration}
	}
	return ImmediateClaim{}
}
