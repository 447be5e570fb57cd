package payout

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"tokenvest/core/events"
	"tokenvest/native/common"
	"tokenvest/native/fees"
	"tokenvest/native/token"
)

var (
	errNilState    = errors.New("payout engine: state not configured")
	errNilLedger   = errors.New("payout engine: token ledger not configured")
	errNilSchedule = errors.New("payout engine: fee schedule not configured")
	errNilVault    = errors.New("payout engine: vault not configured")
)

// EngineState is the persistence surface the payout engine operates against.
type EngineState interface {
	PayoutNextID() (uint64, error)
	PayoutGet(id uint64) (*Payout, bool, error)
	PayoutPut(*Payout) error
	PayoutClaimed(id uint64, holder [20]byte) (bool, error)
	PayoutMarkClaimed(id uint64, holder [20]byte) error
	PayoutIDsByAsset(asset string) ([]uint64, error)
	PayoutIDsByOwner(owner [20]byte) ([]uint64, error)
}

// TokenLedger is the subset of the token ledger the engine moves value with.
type TokenLedger interface {
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error
}

// Engine creates and resolves reward distributions keyed by merkle snapshots.
// Reward funds sit in a dedicated vault account between creation and claims.
type Engine struct {
	state    EngineState
	ledger   TokenLedger
	schedule *fees.Schedule
	vault    [20]byte
	emitter  events.Emitter
	nowFn    func() int64
}

// NewEngine constructs a payout engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetLedger configures the token ledger used for reward movements.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetFeeSchedule configures the revenue fee schedule applied at creation.
func (e *Engine) SetFeeSchedule(schedule *fees.Schedule) { e.schedule = schedule }

// SetVault configures the account holding undistributed rewards.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used by the engine.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireWired() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.ledger == nil {
		return errNilLedger
	}
	if e.schedule == nil {
		return errNilSchedule
	}
	if e.vault == ([20]byte{}) {
		return errNilVault
	}
	return nil
}

// revenueFeeSubject keys the fee schedule lookup for distributions of the
// given asset.
func revenueFeeSubject(asset string) string {
	return "revenue/" + asset
}

// CreateParams captures a new distribution definition.
type CreateParams struct {
	Owner            [20]byte
	AssetToken       string
	RewardToken      string
	TotalAssetAmount *big.Int
	IgnoredHolders   [][20]byte
	MerkleRoot       [32]byte
	MerkleDepth      int
	SnapshotBlock    uint64
	MerkleIPFSHash   string
	TotalReward      *big.Int
}

// Create validates the definition, pulls the reward plus the distribution fee
// from the owner (fee routed to the treasury) and stores the payout record.
// The owner must have approved the vault for totalReward plus fee.
func (e *Engine) Create(params CreateParams) (*Payout, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	assetSym, err := token.NormalizeSymbol(params.AssetToken)
	if err != nil {
		return nil, err
	}
	rewardSym, err := token.NormalizeSymbol(params.RewardToken)
	if err != nil {
		return nil, err
	}
	params.AssetToken = assetSym
	params.RewardToken = rewardSym
	if params.TotalAssetAmount == nil || params.TotalAssetAmount.Sign() <= 0 {
		return nil, fmt.Errorf("payout: %w: cannot create payout without holders", common.ErrValidation)
	}
	if params.TotalReward == nil || params.TotalReward.Sign() <= 0 {
		return nil, fmt.Errorf("payout: %w: reward must be positive", common.ErrValidation)
	}
	if params.MerkleDepth <= 0 {
		return nil, fmt.Errorf("payout: %w: merkle depth must be positive", common.ErrValidation)
	}

	reward := cloneBigInt(params.TotalReward)
	fee := e.schedule.Calculate(revenueFeeSubject(params.AssetToken), reward)

	// Pull reward and fee in one approval: the owner approves vault spending
	// for reward+fee; a short approval surfaces as insufficient funds.
	if err := e.ledger.TransferFrom(params.RewardToken, e.vault, params.Owner, e.vault, new(big.Int).Add(reward, fee)); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.ledger.Transfer(params.RewardToken, e.vault, e.schedule.Treasury(), fee); err != nil {
			return nil, err
		}
	}

	id, err := e.state.PayoutNextID()
	if err != nil {
		return nil, err
	}
	p := &Payout{
		ID:               id,
		Owner:            params.Owner,
		AssetToken:       params.AssetToken,
		RewardToken:      params.RewardToken,
		TotalAssetAmount: cloneBigInt(params.TotalAssetAmount),
		IgnoredHolders:   append([][20]byte(nil), params.IgnoredHolders...),
		MerkleRoot:       params.MerkleRoot,
		MerkleDepth:      params.MerkleDepth,
		SnapshotBlock:    params.SnapshotBlock,
		MerkleIPFSHash:   params.MerkleIPFSHash,
		TotalReward:      reward,
		RemainingReward:  cloneBigInt(reward),
		CreatedAt:        e.now(),
	}
	if err := e.state.PayoutPut(p); err != nil {
		return nil, err
	}
	e.emit(newPayoutEvent(EventTypePayoutCreated, p, map[string]string{"fee": fee.String()}))
	return p.Clone(), nil
}

func (e *Engine) loadPayout(id uint64) (*Payout, error) {
	p, ok, err := e.state.PayoutGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("payout: %w: id %d", common.ErrNotFound, id)
	}
	return p, nil
}

// Claim transfers the holder's proportional reward after verifying the
// (holder, balance) pair against the payout's merkle commitment.
func (e *Engine) Claim(id uint64, holder [20]byte, balance *big.Int, proof [][32]byte) (*big.Int, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	p, err := e.loadPayout(id)
	if err != nil {
		return nil, err
	}
	if p.Cancelled {
		return nil, fmt.Errorf("payout: %w: payout cancelled", common.ErrInvalidState)
	}
	if balance == nil || balance.Sign() <= 0 {
		return nil, fmt.Errorf("payout: %w: holder balance must be positive", common.ErrValidation)
	}
	if p.IsIgnored(holder) {
		return nil, fmt.Errorf("payout: %w: holder excluded from distribution", common.ErrValidation)
	}
	claimed, err := e.state.PayoutClaimed(id, holder)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, fmt.Errorf("payout: %w: wallet already claimed", common.ErrAlreadyProcessed)
	}
	if !VerifyProof(p.MerkleRoot, p.MerkleDepth, holder, balance, proof) {
		return nil, fmt.Errorf("payout: %w: pair not contained in payout", common.ErrValidation)
	}

	reward := p.Reward(balance)
	if reward.Cmp(p.RemainingReward) > 0 {
		return nil, fmt.Errorf("payout: %w: reward exceeds remaining funds", common.ErrInsufficientFunds)
	}
	if reward.Sign() > 0 {
		if err := e.ledger.Transfer(p.RewardToken, e.vault, holder, reward); err != nil {
			return nil, err
		}
	}
	if err := e.state.PayoutMarkClaimed(id, holder); err != nil {
		return nil, err
	}
	p.RemainingReward = new(big.Int).Sub(p.RemainingReward, reward)
	if err := e.state.PayoutPut(p); err != nil {
		return nil, err
	}
	e.emit(newClaimEvent(p, holder, balance, reward, e.now()))
	return reward, nil
}

// Cancel refunds the remaining reward to the owner and marks the payout
// cancelled. The refunded amount reflects prior partial claims.
func (e *Engine) Cancel(id uint64, caller [20]byte) (*big.Int, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	p, err := e.loadPayout(id)
	if err != nil {
		return nil, err
	}
	if caller != p.Owner {
		return nil, fmt.Errorf("payout: %w: only the owner may cancel", common.ErrUnauthorized)
	}
	if p.Cancelled {
		return nil, fmt.Errorf("payout: %w: already cancelled", common.ErrInvalidState)
	}
	refund := cloneBigInt(p.RemainingReward)
	if refund.Sign() > 0 {
		if err := e.ledger.Transfer(p.RewardToken, e.vault, p.Owner, refund); err != nil {
			return nil, err
		}
	}
	p.Cancelled = true
	p.RemainingReward = big.NewInt(0)
	if err := e.state.PayoutPut(p); err != nil {
		return nil, err
	}
	e.emit(newPayoutEvent(EventTypePayoutCancelled, p, map[string]string{"refunded": refund.String()}))
	return refund, nil
}

// Get returns the stored payout record.
func (e *Engine) Get(id uint64) (*Payout, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPayout(id)
}

// HasClaimed reports whether the holder already claimed the payout.
func (e *Engine) HasClaimed(id uint64, holder [20]byte) (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.PayoutClaimed(id, holder)
}

// ByAsset lists every payout ever created for the asset.
func (e *Engine) ByAsset(asset string) ([]*Payout, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.PayoutIDsByAsset(asset)
	if err != nil {
		return nil, err
	}
	return e.collect(ids)
}

// ByOwner lists every payout ever created by the owner.
func (e *Engine) ByOwner(owner [20]byte) ([]*Payout, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ids, err := e.state.PayoutIDsByOwner(owner)
	if err != nil {
		return nil, err
	}
	return e.collect(ids)
}

func (e *Engine) collect(ids []uint64) ([]*Payout, error) {
	payouts := make([]*Payout, 0, len(ids))
	for _, id := range ids {
		p, ok, err := e.state.PayoutGet(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		payouts = append(payouts, p)
	}
	return payouts, nil
}
