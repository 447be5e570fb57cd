package campaign

import (
	"encoding/hex"
	"math/big"

	"tokenvest/core/events"
	"tokenvest/core/types"
)

const (
	EventTypeCampaignCreated             = "campaign.created"
	EventTypeCampaignInvested            = "campaign.invested"
	EventTypeCampaignInvestmentCancelled = "campaign.investment_cancelled"
	EventTypeCampaignFinalized           = "campaign.finalized"
	EventTypeCampaignCancelled           = "campaign.cancelled"
	EventTypeCampaignClaimed             = "campaign.claimed"
)

type campaignEvent struct {
	evt *types.Event
}

func (e campaignEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e campaignEvent) Event() *types.Event { return e.evt }

func newCampaignEvent(eventType string, c *Campaign, extra map[string]string) events.Event {
	attrs := map[string]string{
		"id":          hex.EncodeToString(c.ID[:]),
		"owner":       events.AddressHex(c.Owner),
		"asset":       c.AssetToken,
		"payment":     c.PaymentToken,
		"tokenPrice":  events.FormatAmount(c.TokenPrice),
		"softCap":     events.FormatAmount(c.SoftCap),
		"fundsRaised": events.FormatAmount(c.FundsRaised),
		"tokensSold":  events.FormatAmount(c.TokensSold),
		"investors":   events.FormatUint(c.InvestorsCount),
		"status":      events.FormatUint(uint64(c.Status)),
		"createdAt":   events.FormatInt(c.CreatedAt),
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return campaignEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}

func newInvestmentEvent(eventType string, c *Campaign, investor [20]byte, amount *big.Int, ts int64) events.Event {
	return campaignEvent{evt: &types.Event{Type: eventType, Attributes: map[string]string{
		"id":          hex.EncodeToString(c.ID[:]),
		"investor":    events.AddressHex(investor),
		"amount":      events.FormatAmount(amount),
		"fundsRaised": events.FormatAmount(c.FundsRaised),
		"timestamp":   events.FormatInt(ts),
	}}}
}

func newClaimEvent(c *Campaign, investor [20]byte, tokens, remainder *big.Int, ts int64) events.Event {
	return campaignEvent{evt: &types.Event{Type: EventTypeCampaignClaimed, Attributes: map[string]string{
		"id":        hex.EncodeToString(c.ID[:]),
		"investor":  events.AddressHex(investor),
		"tokens":    events.FormatAmount(tokens),
		"remainder": events.FormatAmount(remainder),
		"timestamp": events.FormatInt(ts),
	}}}
}
