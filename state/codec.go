package state

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"tokenvest/native/campaign"
	"tokenvest/native/fees"
	"tokenvest/native/liquidation"
	"tokenvest/native/payout"
	"tokenvest/native/token"
)

// The stored* structs are the RLP shapes persisted to the key-value store.
// Amounts travel as decimal strings and timestamps as uint64 so the records
// stay within RLP's type surface.

type storedToken struct {
	Symbol      string
	Name        string
	Decimals    uint8
	TotalSupply string
}

type storedCampaign struct {
	ID                [32]byte
	Name              string
	Owner             [20]byte
	AssetToken        string
	PaymentToken      string
	TokenPrice        string
	SoftCap           string
	MinInvestment     string
	MaxInvestment     string
	TokensForSale     string
	WhitelistRequired bool
	ClaimMode         uint8
	VestingStart      uint64
	VestingCliff      uint64
	VestingDuration   uint64
	HasFeeOverride    bool
	FeeNumerator      uint64
	FeeDenominator    uint64
	Status            uint8
	FundsRaised       string
	TokensSold        string
	InvestorsCount    uint64
	ClaimsCount       uint64
	CreatedAt         uint64
	FinalizedAt       uint64
}

type storedInvestment struct {
	Investor      [20]byte
	Amount        string
	TokensClaimed string
	Claimed       bool
}

type storedPayout struct {
	ID               uint64
	Owner            [20]byte
	AssetToken       string
	RewardToken      string
	TotalAssetAmount string
	IgnoredHolders   [][20]byte
	MerkleRoot       [32]byte
	MerkleDepth      uint64
	SnapshotBlock    uint64
	MerkleIPFSHash   string
	TotalReward      string
	RemainingReward  string
	Cancelled        bool
	CreatedAt        uint64
}

type storedLiquidation struct {
	AssetToken        string
	PaymentToken      string
	CampaignID        [32]byte
	Owner             [20]byte
	Liquidated        bool
	WhitelistRequired bool
	LiquidationPrice  string
	CampaignPrice     string
	FundsCollected    string
	Holders           [][20]byte
	Balances          []string
	LiquidatedAt      uint64
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("state: invalid stored amount %q", s)
	}
	return v, nil
}

func encodeToken(meta *token.Metadata) storedToken {
	return storedToken{
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    meta.Decimals,
		TotalSupply: formatAmount(meta.TotalSupply),
	}
}

func decodeToken(stored storedToken) (*token.Metadata, error) {
	supply, err := parseAmount(stored.TotalSupply)
	if err != nil {
		return nil, err
	}
	return &token.Metadata{
		Symbol:      stored.Symbol,
		Name:        stored.Name,
		Decimals:    stored.Decimals,
		TotalSupply: supply,
	}, nil
}

func encodeCampaign(c *campaign.Campaign) storedCampaign {
	stored := storedCampaign{
		ID:                c.ID,
		Name:              c.Name,
		Owner:             c.Owner,
		AssetToken:        c.AssetToken,
		PaymentToken:      c.PaymentToken,
		TokenPrice:        formatAmount(c.TokenPrice),
		SoftCap:           formatAmount(c.SoftCap),
		MinInvestment:     formatAmount(c.MinInvestment),
		MaxInvestment:     formatAmount(c.MaxInvestment),
		TokensForSale:     formatAmount(c.TokensForSale),
		WhitelistRequired: c.WhitelistRequired,
		ClaimMode:         uint8(c.ClaimMode),
		VestingStart:      uint64(c.Vesting.Start),
		VestingCliff:      uint64(c.Vesting.Cliff),
		VestingDuration:   uint64(c.Vesting.Duration),
		Status:            uint8(c.Status),
		FundsRaised:       formatAmount(c.FundsRaised),
		TokensSold:        formatAmount(c.TokensSold),
		InvestorsCount:    c.InvestorsCount,
		ClaimsCount:       c.ClaimsCount,
		CreatedAt:         uint64(c.CreatedAt),
		FinalizedAt:       uint64(c.FinalizedAt),
	}
	if c.FeeOverride != nil {
		stored.HasFeeOverride = true
		stored.FeeNumerator = c.FeeOverride.Numerator
		stored.FeeDenominator = c.FeeOverride.Denominator
	}
	return stored
}

func decodeCampaign(stored storedCampaign) (*campaign.Campaign, error) {
	c := &campaign.Campaign{
		ID:                stored.ID,
		Name:              stored.Name,
		Owner:             stored.Owner,
		AssetToken:        stored.AssetToken,
		PaymentToken:      stored.PaymentToken,
		WhitelistRequired: stored.WhitelistRequired,
		ClaimMode:         campaign.ClaimMode(stored.ClaimMode),
		Vesting: campaign.VestingSchedule{
			Start:    int64(stored.VestingStart),
			Cliff:    int64(stored.VestingCliff),
			Duration: int64(stored.VestingDuration),
		},
		Status:         campaign.Status(stored.Status),
		InvestorsCount: stored.InvestorsCount,
		ClaimsCount:    stored.ClaimsCount,
		CreatedAt:      int64(stored.CreatedAt),
		FinalizedAt:    int64(stored.FinalizedAt),
	}
	var err error
	if c.TokenPrice, err = parseAmount(stored.TokenPrice); err != nil {
		return nil, err
	}
	if c.SoftCap, err = parseAmount(stored.SoftCap); err != nil {
		return nil, err
	}
	if c.MinInvestment, err = parseAmount(stored.MinInvestment); err != nil {
		return nil, err
	}
	if c.MaxInvestment, err = parseAmount(stored.MaxInvestment); err != nil {
		return nil, err
	}
	if c.TokensForSale, err = parseAmount(stored.TokensForSale); err != nil {
		return nil, err
	}
	if c.FundsRaised, err = parseAmount(stored.FundsRaised); err != nil {
		return nil, err
	}
	if c.TokensSold, err = parseAmount(stored.TokensSold); err != nil {
		return nil, err
	}
	if stored.HasFeeOverride {
		c.FeeOverride = &fees.Config{Numerator: stored.FeeNumerator, Denominator: stored.FeeDenominator}
	}
	return c, nil
}

func encodeInvestment(inv *campaign.Investment) storedInvestment {
	return storedInvestment{
		Investor:      inv.Investor,
		Amount:        formatAmount(inv.Amount),
		TokensClaimed: formatAmount(inv.TokensClaimed),
		Claimed:       inv.Claimed,
	}
}

func decodeInvestment(stored storedInvestment) (*campaign.Investment, error) {
	amount, err := parseAmount(stored.Amount)
	if err != nil {
		return nil, err
	}
	claimed, err := parseAmount(stored.TokensClaimed)
	if err != nil {
		return nil, err
	}
	return &campaign.Investment{
		Investor:      stored.Investor,
		Amount:        amount,
		TokensClaimed: claimed,
		Claimed:       stored.Claimed,
	}, nil
}

func encodePayout(p *payout.Payout) storedPayout {
	return storedPayout{
		ID:               p.ID,
		Owner:            p.Owner,
		AssetToken:       p.AssetToken,
		RewardToken:      p.RewardToken,
		TotalAssetAmount: formatAmount(p.TotalAssetAmount),
		IgnoredHolders:   append([][20]byte(nil), p.IgnoredHolders...),
		MerkleRoot:       p.MerkleRoot,
		MerkleDepth:      uint64(p.MerkleDepth),
		SnapshotBlock:    p.SnapshotBlock,
		MerkleIPFSHash:   p.MerkleIPFSHash,
		TotalReward:      formatAmount(p.TotalReward),
		RemainingReward:  formatAmount(p.RemainingReward),
		Cancelled:        p.Cancelled,
		CreatedAt:        uint64(p.CreatedAt),
	}
}

func decodePayout(stored storedPayout) (*payout.Payout, error) {
	p := &payout.Payout{
		ID:             stored.ID,
		Owner:          stored.Owner,
		AssetToken:     stored.AssetToken,
		RewardToken:    stored.RewardToken,
		IgnoredHolders: append([][20]byte(nil), stored.IgnoredHolders...),
		MerkleRoot:     stored.MerkleRoot,
		MerkleDepth:    int(stored.MerkleDepth),
		SnapshotBlock:  stored.SnapshotBlock,
		MerkleIPFSHash: stored.MerkleIPFSHash,
		Cancelled:      stored.Cancelled,
		CreatedAt:      int64(stored.CreatedAt),
	}
	var err error
	if p.TotalAssetAmount, err = parseAmount(stored.TotalAssetAmount); err != nil {
		return nil, err
	}
	if p.TotalReward, err = parseAmount(stored.TotalReward); err != nil {
		return nil, err
	}
	if p.RemainingReward, err = parseAmount(stored.RemainingReward); err != nil {
		return nil, err
	}
	return p, nil
}

func encodeLiquidation(r *liquidation.Record) storedLiquidation {
	stored := storedLiquidation{
		AssetToken:        r.AssetToken,
		PaymentToken:      r.PaymentToken,
		CampaignID:        r.CampaignID,
		Owner:             r.Owner,
		Liquidated:        r.Liquidated,
		WhitelistRequired: r.WhitelistRequired,
		LiquidationPrice:  formatAmount(r.LiquidationPrice),
		CampaignPrice:     formatAmount(r.CampaignPrice),
		FundsCollected:    formatAmount(r.FundsCollected),
		LiquidatedAt:      uint64(r.LiquidatedAt),
	}
	addrs := make([][20]byte, 0, len(r.Snapshot))
	for addr := range r.Snapshot {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })
	for _, addr := range addrs {
		stored.Holders = append(stored.Holders, addr)
		stored.Balances = append(stored.Balances, formatAmount(r.Snapshot[addr]))
	}
	return stored
}

func decodeLiquidation(stored storedLiquidation) (*liquidation.Record, error) {
	if len(stored.Holders) != len(stored.Balances) {
		return nil, fmt.Errorf("state: liquidation snapshot length mismatch")
	}
	r := &liquidation.Record{
		AssetToken:        stored.AssetToken,
		PaymentToken:      stored.PaymentToken,
		CampaignID:        stored.CampaignID,
		Owner:             stored.Owner,
		Liquidated:        stored.Liquidated,
		WhitelistRequired: stored.WhitelistRequired,
		Snapshot:          make(map[[20]byte]*big.Int, len(stored.Holders)),
		LiquidatedAt:      int64(stored.LiquidatedAt),
	}
	var err error
	if r.LiquidationPrice, err = parseAmount(stored.LiquidationPrice); err != nil {
		return nil, err
	}
	if r.CampaignPrice, err = parseAmount(stored.CampaignPrice); err != nil {
		return nil, err
	}
	if r.FundsCollected, err = parseAmount(stored.FundsCollected); err != nil {
		return nil, err
	}
	for i, addr := range stored.Holders {
		bal, err := parseAmount(stored.Balances[i])
		if err != nil {
			return nil, err
		}
		r.Snapshot[addr] = bal
	}
	return r, nil
}
