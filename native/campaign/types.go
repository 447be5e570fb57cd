package campaign

import (
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"tokenvest/native/common"
	"tokenvest/native/fees"
)

// Status represents the lifecycle states of a crowdfunding campaign. Finalized
// and Cancelled are terminal; there is no transition back to Active.
type Status uint8

const (
	StatusActive Status = iota
	StatusFinalized
	StatusCancelled
)

// Valid reports whether the status value is within the supported range.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusFinalized, StatusCancelled:
		return true
	default:
		return false
	}
}

// ClaimMode selects the strategy investors claim purchased tokens with.
type ClaimMode uint8

const (
	// ClaimImmediate releases the full token amount on the first claim.
	ClaimImmediate ClaimMode = iota
	// ClaimVesting releases tokens linearly after a cliff.
	ClaimVesting
)

// VestingSchedule parameterises the time-released claim strategy. All values
// are unix seconds; Duration counts from Start. A zero Start is resolved to
// the finalization timestamp.
type VestingSchedule struct {
	Start    int64
	Cliff    int64
	Duration int64
}

// Campaign captures the full crowdfunding state for one asset sale. Amounts
// are denominated in the smallest unit of the respective token; TokenPrice is
// the number of payment units one asset unit costs.
type Campaign struct {
	ID                [32]byte
	Name              string
	Owner             [20]byte
	AssetToken        string
	PaymentToken      string
	TokenPrice        *big.Int
	SoftCap           *big.Int
	MinInvestment     *big.Int
	MaxInvestment     *big.Int
	TokensForSale     *big.Int
	WhitelistRequired bool
	ClaimMode         ClaimMode
	Vesting           VestingSchedule
	FeeOverride       *fees.Config
	Status            Status
	FundsRaised       *big.Int
	// TokensSold tracks the claimable token total across investors, i.e. the
	// sum of floor(investment / price) per investor. The per-investor flooring
	// leaves payment dust in escrow that is refunded at claim time.
	TokensSold     *big.Int
	InvestorsCount uint64
	ClaimsCount    uint64
	CreatedAt      int64
	FinalizedAt    int64
}

// Investment records one investor's position in a campaign.
type Investment struct {
	Investor      [20]byte
	Amount        *big.Int
	TokensClaimed *big.Int
	Claimed       bool
}

// Clone returns a deep copy of the campaign.
func (c *Campaign) Clone() *Campaign {
	if c == nil {
		return nil
	}
	clone := *c
	clone.TokenPrice = cloneBigInt(c.TokenPrice)
	clone.SoftCap = cloneBigInt(c.SoftCap)
	clone.MinInvestment = cloneBigInt(c.MinInvestment)
	clone.MaxInvestment = cloneBigInt(c.MaxInvestment)
	clone.TokensForSale = cloneBigInt(c.TokensForSale)
	clone.FundsRaised = cloneBigInt(c.FundsRaised)
	clone.TokensSold = cloneBigInt(c.TokensSold)
	if c.FeeOverride != nil {
		override := *c.FeeOverride
		clone.FeeOverride = &override
	}
	return &clone
}

// Clone returns a deep copy of the investment record.
func (i *Investment) Clone() *Investment {
	if i == nil {
		return nil
	}
	clone := *i
	clone.Amount = cloneBigInt(i.Amount)
	clone.TokensClaimed = cloneBigInt(i.TokensClaimed)
	return &clone
}

// EscrowAddress derives the deterministic account holding the campaign's
// payment and asset balances.
func (c *Campaign) EscrowAddress() [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256(c.ID[:], []byte("escrow"))
	copy(addr[:], digest[12:])
	return addr
}

// MaxFundable reports the hard cap in payment units: every token for sale sold
// at the campaign price.
func (c *Campaign) MaxFundable() *big.Int {
	return new(big.Int).Mul(cloneBigInt(c.TokensForSale), cloneBigInt(c.TokenPrice))
}

// FeeSubject is the schedule key used when no explicit override is attached to
// the campaign.
func (c *Campaign) FeeSubject() string {
	return fmt.Sprintf("campaign/%x", c.ID)
}

// CampaignID derives the deterministic identifier for a campaign from its
// owner, asset and name.
func CampaignID(owner [20]byte, assetToken, name string) [32]byte {
	var id [32]byte
	digest := ethcrypto.Keccak256(owner[:], []byte(strings.ToUpper(strings.TrimSpace(assetToken))), []byte(strings.TrimSpace(name)))
	copy(id[:], digest)
	return id
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// SanitizeCampaign validates a stored campaign record, returning a clone with
// non-nil amounts.
func SanitizeCampaign(c *Campaign) (*Campaign, error) {
	if c == nil {
		return nil, fmt.Errorf("campaign: %w: nil campaign", common.ErrValidation)
	}
	clone := c.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("campaign: %w: invalid status %d", common.ErrValidation, clone.Status)
	}
	if clone.TokenPrice.Sign() <= 0 {
		return nil, fmt.Errorf("campaign: %w: token price must be positive", common.ErrValidation)
	}
	if clone.FundsRaised.Sign() < 0 || clone.TokensSold.Sign() < 0 {
		return nil, fmt.Errorf("campaign: %w: negative counters", common.ErrValidation)
	}
	if clone.FeeOverride != nil {
		if err := clone.FeeOverride.Validate(); err != nil {
			return nil, err
		}
	}
	return clone, nil
}
