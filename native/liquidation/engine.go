package liquidation

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"tokenvest/core/events"
	"tokenvest/native/common"
	"tokenvest/native/token"
	"tokenvest/native/whitelist"
)

var (
	errNilState  = errors.New("liquidation engine: state not configured")
	errNilLedger = errors.New("liquidation engine: token ledger not configured")
	errNilSource = errors.New("liquidation engine: campaign source not configured")
	errNilVault  = errors.New("liquidation engine: vault not configured")
)

// EngineState is the persistence surface the liquidation engine operates
// against.
type EngineState interface {
	LiquidationGet(asset string) (*Record, bool, error)
	LiquidationPut(*Record) error
	LiquidationClaimed(asset string, holder [20]byte) (bool, error)
	LiquidationMarkClaimed(asset string, holder [20]byte) error
}

// TokenLedger is the subset of the token ledger the engine settles with.
type TokenLedger interface {
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error
	BalanceOf(symbol string, addr [20]byte) (*big.Int, error)
	TotalSupply(symbol string) (*big.Int, error)
	Holders(symbol string) ([]token.Holder, error)
}

// CampaignInfo is the slice of campaign state liquidation settles against.
type CampaignInfo struct {
	Owner             [20]byte
	AssetToken        string
	PaymentToken      string
	TokenPrice        *big.Int
	Finalized         bool
	WhitelistRequired bool
}

// CampaignSource resolves campaign information by id, decoupling the
// liquidation engine from the campaign store.
type CampaignSource interface {
	CampaignInfo(id [32]byte) (CampaignInfo, error)
}

// Engine settles an asset's lifecycle end: it reconciles the campaign's
// historical price with a live market quote, collects the settlement funds
// from the owner and lets holders claim pro-rata shares from a frozen balance
// snapshot.
type Engine struct {
	state       EngineState
	ledger      TokenLedger
	source      CampaignSource
	feed        PriceFeed
	whitelist   whitelist.Oracle
	vault       [20]byte
	emitter     events.Emitter
	nowFn       func() int64
	maxQuoteAge int64
}

// NewEngine constructs a liquidation engine with a no-op emitter and an open
// whitelist.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		whitelist: whitelist.OpenOracle{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetLedger configures the token ledger used for settlement movements.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetCampaignSource configures the campaign lookup used at liquidation time.
func (e *Engine) SetCampaignSource(source CampaignSource) { e.source = source }

// SetPriceFeed configures the market price feed. A nil feed means settlements
// always use the campaign's historical price.
func (e *Engine) SetPriceFeed(feed PriceFeed) { e.feed = feed }

// SetVault configures the account holding collected settlement funds.
func (e *Engine) SetVault(addr [20]byte) { e.vault = addr }

// SetMaxQuoteAge bounds how old a market quote may be, in seconds, counted
// from its observation time. Zero or negative disables the bound and leaves
// only the quote's own expiry in force.
func (e *Engine) SetMaxQuoteAge(seconds int64) {
	if seconds < 0 {
		seconds = 0
	}
	e.maxQuoteAge = seconds
}

// SetWhitelist configures the KYC oracle. Passing nil resets to an open
// whitelist.
func (e *Engine) SetWhitelist(oracle whitelist.Oracle) {
	if oracle == nil {
		e.whitelist = whitelist.OpenOracle{}
		return
	}
	e.whitelist = oracle
}

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
	if e.source == nil {
		return errNilSource
	}
	if e.vault == ([20]byte{}) {
		return errNilVault
	}
	return nil
}

// settlementPrice returns the higher of the campaign's historical price and a
// fresh market quote. An expired, stale or invalid quote is treated as
// absent, never as zero.
func (e *Engine) settlementPrice(asset string, campaignPrice *big.Int) *big.Int {
	price := cloneBigInt(campaignPrice)
	if e.feed == nil {
		return price
	}
	quote, err := e.feed.GetPrice(asset)
	if err != nil {
		return price
	}
	now := e.now()
	if !quote.Fresh(now) {
		return price
	}
	if e.maxQuoteAge > 0 && (quote.ObservedAt <= 0 || now-quote.ObservedAt > e.maxQuoteAge) {
		return price
	}
	if quote.Price.Cmp(price) > 0 {
		return cloneBigInt(quote.Price)
	}
	return price
}

// Liquidate settles the campaign's asset. Only the campaign owner may invoke
// it, and only for a finalized campaign that has not been liquidated yet. The
// owner must have approved the vault for (totalSupply - own balance) *
// settlement price of the payment token; in exchange the full token supply is
// swept to the owner and a frozen holder snapshot is captured for the claim
// phase.
func (e *Engine) Liquidate(campaignID [32]byte, caller [20]byte) (*Record, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	info, err := e.source.CampaignInfo(campaignID)
	if err != nil {
		return nil, err
	}
	if caller != info.Owner {
		return nil, fmt.Errorf("liquidation: %w: only the owner may liquidate", common.ErrUnauthorized)
	}
	if !info.Finalized {
		return nil, fmt.Errorf("liquidation: %w: campaign not finalized", common.ErrInvalidState)
	}
	if existing, ok, err := e.state.LiquidationGet(info.AssetToken); err != nil {
		return nil, err
	} else if ok && existing.Liquidated {
		return nil, fmt.Errorf("liquidation: %w: asset already liquidated", common.ErrInvalidState)
	}

	price := e.settlementPrice(info.AssetToken, info.TokenPrice)
	supply, err := e.ledger.TotalSupply(info.AssetToken)
	if err != nil {
		return nil, err
	}
	ownerBalance, err := e.ledger.BalanceOf(info.AssetToken, info.Owner)
	if err != nil {
		return nil, err
	}
	// The owner is simultaneously payer and beneficiary; their own holdings
	// are netted out of the required funds.
	outstanding := new(big.Int).Sub(supply, ownerBalance)
	if outstanding.Sign() < 0 {
		outstanding = big.NewInt(0)
	}
	required := new(big.Int).Mul(outstanding, price)
	if required.Sign() > 0 {
		if err := e.ledger.TransferFrom(info.PaymentToken, e.vault, info.Owner, e.vault, required); err != nil {
			return nil, err
		}
	}

	holders, err := e.ledger.Holders(info.AssetToken)
	if err != nil {
		return nil, err
	}
	snapshot := make(map[[20]byte]*big.Int, len(holders))
	for _, holder := range holders {
		if holder.Address == info.Owner {
			continue
		}
		snapshot[holder.Address] = cloneBigInt(holder.Balance)
		// Sweep the tokens to the owner; the asset becomes inert.
		if err := e.ledger.Transfer(info.AssetToken, holder.Address, info.Owner, holder.Balance); err != nil {
			return nil, err
		}
	}

	record := &Record{
		AssetToken:        info.AssetToken,
		PaymentToken:      info.PaymentToken,
		CampaignID:        campaignID,
		Owner:             info.Owner,
		Liquidated:        true,
		WhitelistRequired: info.WhitelistRequired,
		LiquidationPrice:  price,
		CampaignPrice:     cloneBigInt(info.TokenPrice),
		FundsCollected:    required,
		Snapshot:          snapshot,
		LiquidatedAt:      e.now(),
	}
	if err := e.state.LiquidationPut(record); err != nil {
		return nil, err
	}
	e.emit(newLiquidatedEvent(record))
	return record.Clone(), nil
}

// ClaimShare transfers the holder's pro-rata settlement: frozen snapshot
// balance * liquidation price of the payment token.
func (e *Engine) ClaimShare(asset string, holder [20]byte) (*big.Int, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	record, ok, err := e.state.LiquidationGet(asset)
	if err != nil {
		return nil, err
	}
	if !ok || !record.Liquidated {
		return nil, fmt.Errorf("liquidation: %w: asset not liquidated", common.ErrInvalidState)
	}
	if record.WhitelistRequired && !e.whitelist.IsWalletApproved(holder) {
		return nil, fmt.Errorf("liquidation: %w: wallet not whitelisted", common.ErrUnauthorized)
	}
	balance := record.SnapshotBalance(holder)
	if balance.Sign() <= 0 {
		return nil, fmt.Errorf("liquidation: %w: no tokens to claim", common.ErrValidation)
	}
	claimed, err := e.state.LiquidationClaimed(asset, holder)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, fmt.Errorf("liquidation: %w: share already claimed", common.ErrAlreadyProcessed)
	}

	share := new(big.Int).Mul(balance, record.LiquidationPrice)
	if err := e.ledger.Transfer(record.PaymentToken, e.vault, holder, share); err != nil {
		return nil, err
	}
	if err := e.state.LiquidationMarkClaimed(asset, holder); err != nil {
		return nil, err
	}
	e.emit(newShareClaimedEvent(record, holder, balance, share, e.now()))
	return share, nil
}

// Get returns the stored liquidation record for the asset.
func (e *Engine) Get(asset string) (*Record, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.LiquidationGet(asset)
}
