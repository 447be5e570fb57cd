package payout

import (
	"encoding/hex"
	"math/big"

	"tokenvest/core/events"
	"tokenvest/core/types"
)

const (
	EventTypePayoutCreated   = "payout.created"
	EventTypePayoutClaimed   = "payout.claimed"
	EventTypePayoutCancelled = "payout.cancelled"
)

type payoutEvent struct {
	evt *types.Event
}

func (e payoutEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e payoutEvent) Event() *types.Event { return e.evt }

func newPayoutEvent(eventType string, p *Payout, extra map[string]string) events.Event {
	attrs := map[string]string{
		"id":          events.FormatUint(p.ID),
		"owner":       events.AddressHex(p.Owner),
		"asset":       p.AssetToken,
		"rewardToken": p.RewardToken,
		"totalReward": events.FormatAmount(p.TotalReward),
		"remaining":   events.FormatAmount(p.RemainingReward),
		"merkleRoot":  hex.EncodeToString(p.MerkleRoot[:]),
		"ipfsHash":    p.MerkleIPFSHash,
		"createdAt":   events.FormatInt(p.CreatedAt),
	}
	for k, v := range extra {
		attrs[k] = v
	}
	return payoutEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}

func newClaimEvent(p *Payout, holder [20]byte, balance, reward *big.Int, ts int64) events.Event {
	return payoutEvent{evt: &types.Event{Type: EventTypePayoutClaimed, Attributes: map[string]string{
		"id":        events.FormatUint(p.ID),
		"holder":    events.AddressHex(holder),
		"balance":   events.FormatAmount(balance),
		"reward":    events.FormatAmount(reward),
		"remaining": events.FormatAmount(p.RemainingReward),
		"timestamp": events.FormatInt(ts),
	}}}
}
