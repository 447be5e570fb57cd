package platform

import (
	"bytes"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tokenvest/config"
	"tokenvest/core/events"
	"tokenvest/native/autoinvest"
	"tokenvest/native/campaign"
	"tokenvest/native/liquidation"
	"tokenvest/native/payout"
	"tokenvest/native/token"
)

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(evt events.Event) {
	r.types = append(r.types, evt.EventType())
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestPlatform(t *testing.T, sinks ...events.Emitter) *Platform {
	t.Helper()
	cfg := config.Config{}
	cfg.Fees.Numerator = 1
	cfg.Fees.Denominator = 10
	cfg.Fees.Treasury = "0xfefefefefefefefefefefefefefefefefefefefe"
	p, err := New(cfg, sinks...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func (p *Platform) mustBalance(t *testing.T, symbol string, addr [20]byte) *big.Int {
	t.Helper()
	balance, err := p.Ledger.BalanceOf(symbol, addr)
	require.NoError(t, err)
	return balance
}

func TestModuleAddressIsDeterministic(t *testing.T) {
	require.Equal(t, ModuleAddress("treasury"), ModuleAddress("treasury"))
	require.NotEqual(t, ModuleAddress("payout-vault"), ModuleAddress("liquidation-vault"))
	require.NotEqual(t, [20]byte{}, ModuleAddress("treasury"))
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.Config{}
	cfg.Fees.Numerator = 2
	cfg.Fees.Denominator = 1
	_, err := New(cfg)
	require.Error(t, err)

	cfg = config.Config{}
	cfg.Fees.Treasury = "not-an-address"
	_, err = New(cfg)
	require.Error(t, err)
}

// TestCampaignLifecycleEndToEnd drives a full sale through the assembled
// platform: two investors fund half the cap each, the owner finalizes at the
// 10% fee, both investors claim, and the issuer later runs a reward payout and
// the final liquidation against the live ledger.
func TestCampaignLifecycleEndToEnd(t *testing.T) {
	sink := &recordingEmitter{}
	p := newTestPlatform(t, sink)

	treasury, err := p.Config.TreasuryAddress()
	require.NoError(t, err)

	owner := newTestAddress(0x01)
	alice := newTestAddress(0xA1)
	jane := newTestAddress(0xB2)

	_, err = p.Ledger.Register(&token.Metadata{Symbol: "USD", Name: "Settlement Dollar", Decimals: 2})
	require.NoError(t, err)
	_, err = p.Ledger.Register(&token.Metadata{Symbol: "ACME", Name: "Acme Equity", Decimals: 0})
	require.NoError(t, err)

	require.NoError(t, p.Ledger.Mint("ACME", owner, big.NewInt(200_000)))
	require.NoError(t, p.Ledger.Mint("USD", alice, big.NewInt(100_000)))
	require.NoError(t, p.Ledger.Mint("USD", jane, big.NewInt(100_000)))

	campaignID := campaign.CampaignID(owner, "ACME", "Series A")
	escrow := (&campaign.Campaign{ID: campaignID}).EscrowAddress()
	require.NoError(t, p.Ledger.Approve("ACME", owner, escrow, big.NewInt(200_000)))

	created, err := p.Campaigns.Create(campaign.CreateParams{
		Name:          "Series A",
		Owner:         owner,
		AssetToken:    "ACME",
		PaymentToken:  "USD",
		TokenPrice:    big.NewInt(1),
		SoftCap:       big.NewInt(100_000),
		MaxInvestment: big.NewInt(100_000),
		TokensForSale: big.NewInt(200_000),
	})
	require.NoError(t, err)
	require.Equal(t, campaignID, created.ID)

	// Alice invests directly.
	require.NoError(t, p.Ledger.Approve("USD", alice, escrow, big.NewInt(100_000)))
	require.NoError(t, p.Campaigns.Invest(campaignID, alice, alice, alice, big.NewInt(100_000)))

	// Jane goes through the batch service.
	require.NoError(t, p.Ledger.Approve("USD", jane, escrow, big.NewInt(100_000)))
	janeReq := autoinvest.Request{Investor: jane, CampaignID: campaignID, Amount: big.NewInt(100_000)}
	statuses, err := p.AutoInvest.GetStatus([]autoinvest.Request{janeReq})
	require.NoError(t, err)
	require.True(t, statuses[0].Ready)
	require.Zero(t, statuses[0].EffectiveAmount.Cmp(big.NewInt(100_000)))
	results, err := p.AutoInvest.InvestFor([]autoinvest.Request{janeReq})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	state, err := p.Campaigns.GetCampaign(campaignID)
	require.NoError(t, err)
	require.Zero(t, state.FundsRaised.Cmp(big.NewInt(200_000)))
	require.Zero(t, state.TokensSold.Cmp(big.NewInt(200_000)))
	require.EqualValues(t, 2, state.InvestorsCount)

	// Finalize: 10% of 200,000 to the treasury, the rest to the owner.
	require.NoError(t, p.Campaigns.Finalize(campaignID, owner))
	require.Zero(t, p.mustBalance(t, "USD", treasury).Cmp(big.NewInt(20_000)))
	require.Zero(t, p.mustBalance(t, "USD", owner).Cmp(big.NewInt(180_000)))

	require.NoError(t, p.Campaigns.Claim(campaignID, alice))
	require.NoError(t, p.Campaigns.Claim(campaignID, jane))
	require.Zero(t, p.mustBalance(t, "ACME", alice).Cmp(big.NewInt(100_000)))
	require.Zero(t, p.mustBalance(t, "ACME", jane).Cmp(big.NewInt(100_000)))

	// Revenue distribution: snapshot the live holder set and pay 600 USD.
	holders, err := p.Ledger.Holders("ACME")
	require.NoError(t, err)
	entries := make([]payout.SnapshotEntry, 0, len(holders))
	for _, holder := range holders {
		entries = append(entries, payout.SnapshotEntry{Address: holder.Address, Balance: holder.Balance})
	}
	tree, err := payout.BuildSnapshotTree(entries)
	require.NoError(t, err)

	require.NoError(t, p.Ledger.Approve("USD", owner, ModuleAddress("payout-vault"), big.NewInt(660)))
	dist, err := p.Payouts.Create(payout.CreateParams{
		Owner:            owner,
		AssetToken:       "ACME",
		RewardToken:      "USD",
		TotalAssetAmount: tree.TotalBalance(),
		MerkleRoot:       tree.Root(),
		MerkleDepth:      tree.Depth(),
		TotalReward:      big.NewInt(600),
	})
	require.NoError(t, err)

	proof, ok := tree.Proof(alice)
	require.True(t, ok)
	reward, err := p.Payouts.Claim(dist.ID, alice, big.NewInt(100_000), proof)
	require.NoError(t, err)
	require.Zero(t, reward.Cmp(big.NewInt(300)))

	// Liquidation: a fresh market quote above the sale price wins. The quote
	// must also be younger than the configured max quote age.
	feed := liquidation.NewManualFeed()
	feed.Set("ACME", liquidation.Quote{
		Price:      big.NewInt(2),
		ObservedAt: time.Now().Unix(),
		Expiry:     time.Now().Unix() + 600,
	})
	p.SetPriceFeed(feed)

	require.NoError(t, p.Ledger.Mint("USD", owner, big.NewInt(400_000)))
	require.NoError(t, p.Ledger.Approve("USD", owner, ModuleAddress("liquidation-vault"), big.NewInt(400_000)))
	record, err := p.Liquidations.Liquidate(campaignID, owner)
	require.NoError(t, err)
	require.Zero(t, record.LiquidationPrice.Cmp(big.NewInt(2)))
	require.Zero(t, record.FundsCollected.Cmp(big.NewInt(400_000)))

	// The supply is swept back to the owner and holders settle in USD.
	require.Zero(t, p.mustBalance(t, "ACME", owner).Cmp(big.NewInt(200_000)))
	share, err := p.Liquidations.ClaimShare("ACME", alice)
	require.NoError(t, err)
	require.Zero(t, share.Cmp(big.NewInt(200_000)))

	// Every engine event reached the extra sink alongside the metrics
	// collector.
	require.Contains(t, sink.types, campaign.EventTypeCampaignCreated)
	require.Contains(t, sink.types, campaign.EventTypeCampaignFinalized)
	require.Contains(t, sink.types, payout.EventTypePayoutClaimed)
	require.Contains(t, sink.types, liquidation.EventTypeShareClaimed)
}
