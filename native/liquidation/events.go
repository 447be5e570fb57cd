package liquidation

import (
	"encoding/hex"
	"math/big"

	"tokenvest/core/events"
	"tokenvest/core/types"
)

const (
	EventTypeAssetLiquidated = "liquidation.liquidated"
	EventTypeShareClaimed    = "liquidation.share_claimed"
)

type liquidationEvent struct {
	evt *types.Event
}

func (e liquidationEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e liquidationEvent) Event() *types.Event { return e.evt }

func newLiquidatedEvent(r *Record) events.Event {
	return liquidationEvent{evt: &types.Event{Type: EventTypeAssetLiquidated, Attributes: map[string]string{
		"asset":          r.AssetToken,
		"campaignId":     hex.EncodeToString(r.CampaignID[:]),
		"owner":          events.AddressHex(r.Owner),
		"price":          events.FormatAmount(r.LiquidationPrice),
		"campaignPrice":  events.FormatAmount(r.CampaignPrice),
		"fundsCollected": events.FormatAmount(r.FundsCollected),
		"holders":        events.FormatUint(uint64(len(r.Snapshot))),
		"liquidatedAt":   events.FormatInt(r.LiquidatedAt),
	}}}
}

func newShareClaimedEvent(r *Record, holder [20]byte, balance, share *big.Int, ts int64) events.Event {
	return liquidationEvent{evt: &types.Event{Type: EventTypeShareClaimed, Attributes: map[string]string{
		"asset":     r.AssetToken,
		"holder":    events.AddressHex(holder),
		"balance":   events.FormatAmount(balance),
		"share":     events.FormatAmount(share),
		"timestamp": events.FormatInt(ts),
	}}}
}
