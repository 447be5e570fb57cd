package campaign

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"tokenvest/core/events"
	"tokenvest/native/common"
	"tokenvest/native/fees"
	"tokenvest/native/token"
	"tokenvest/native/whitelist"
)

var (
	errNilState    = errors.New("campaign engine: state not configured")
	errNilLedger   = errors.New("campaign engine: token ledger not configured")
	errNilSchedule = errors.New("campaign engine: fee schedule not configured")
)

// EngineState is the persistence surface the campaign engine operates against.
type EngineState interface {
	CampaignGet(id [32]byte) (*Campaign, bool, error)
	CampaignPut(*Campaign) error
	InvestmentGet(id [32]byte, investor [20]byte) (*Investment, bool, error)
	InvestmentPut(id [32]byte, inv *Investment) error
	InvestmentDelete(id [32]byte, investor [20]byte) error
}

// TokenLedger is the subset of the token ledger the engine moves value with.
type TokenLedger interface {
	Transfer(symbol string, from, to [20]byte, amount *big.Int) error
	TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error
	BalanceOf(symbol string, addr [20]byte) (*big.Int, error)
	Allowance(symbol string, owner, spender [20]byte) (*big.Int, error)
}

// Engine drives the crowdfunding state machine: investments against a funding
// cap, cancellation, finalization with fee routing, and post-finalize token
// claims.
type Engine struct {
	state     EngineState
	ledger    TokenLedger
	schedule  *fees.Schedule
	whitelist whitelist.Oracle
	emitter   events.Emitter
	nowFn     func() int64
}

// NewEngine constructs a campaign engine with a no-op emitter and an open
// whitelist. Callers wire state, ledger and schedule before use.
func NewEngine() *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		whitelist: whitelist.OpenOracle{},
		nowFn:     func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state EngineState) { e.state = state }

// SetLedger configures the token ledger used for escrow movements.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetFeeSchedule configures the fee schedule consulted at finalization.
func (e *Engine) SetFeeSchedule(schedule *fees.Schedule) { e.schedule = schedule }

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

// SetNowFunc overrides the time source used by the engine. Primarily intended
// for tests to provide deterministic timestamps.
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
	return nil
}

func (e *Engine) loadCampaign(id [32]byte) (*Campaign, error) {
	c, ok, err := e.state.CampaignGet(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("campaign: %w: %x", common.ErrNotFound, id)
	}
	return c, nil
}

// CreateParams captures the campaign definition supplied at creation time.
type CreateParams struct {
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
}

// Create registers a campaign and pulls the tokens for sale from the owner
// into the campaign escrow. The owner must have approved the escrow address
// for at least TokensForSale of the asset.
func (e *Engine) Create(params CreateParams) (*Campaign, error) {
	if err := e.requireWired(); err != nil {
		return nil, err
	}
	assetSym, err := token.NormalizeSymbol(params.AssetToken)
	if err != nil {
		return nil, err
	}
	paymentSym, err := token.NormalizeSymbol(params.PaymentToken)
	if err != nil {
		return nil, err
	}
	if assetSym == paymentSym {
		return nil, fmt.Errorf("campaign: %w: asset and payment token must differ", common.ErrValidation)
	}
	price := cloneBigInt(params.TokenPrice)
	if price.Sign() <= 0 {
		return nil, fmt.Errorf("campaign: %w: token price must be positive", common.ErrValidation)
	}
	forSale := cloneBigInt(params.TokensForSale)
	if forSale.Sign() <= 0 {
		return nil, fmt.Errorf("campaign: %w: tokens for sale must be positive", common.ErrValidation)
	}
	minInvestment := cloneBigInt(params.MinInvestment)
	maxInvestment := cloneBigInt(params.MaxInvestment)
	if minInvestment.Sign() < 0 {
		return nil, fmt.Errorf("campaign: %w: negative minimum investment", common.ErrValidation)
	}
	if maxInvestment.Sign() > 0 && maxInvestment.Cmp(minInvestment) < 0 {
		return nil, fmt.Errorf("campaign: %w: maximum investment below minimum", common.ErrValidation)
	}
	softCap := cloneBigInt(params.SoftCap)
	maxFundable := new(big.Int).Mul(forSale, price)
	if softCap.Cmp(maxFundable) > 0 {
		return nil, fmt.Errorf("campaign: %w: soft cap above maximum fundable amount", common.ErrValidation)
	}
	if params.FeeOverride != nil {
		if err := params.FeeOverride.Validate(); err != nil {
			return nil, err
		}
	}

	id := CampaignID(params.Owner, assetSym, params.Name)
	if _, ok, err := e.state.CampaignGet(id); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("campaign: %w: identifier already exists", common.ErrValidation)
	}

	c := &Campaign{
		ID:                id,
		Name:              params.Name,
		Owner:             params.Owner,
		AssetToken:        assetSym,
		PaymentToken:      paymentSym,
		TokenPrice:        price,
		SoftCap:           softCap,
		MinInvestment:     minInvestment,
		MaxInvestment:     maxInvestment,
		TokensForSale:     forSale,
		WhitelistRequired: params.WhitelistRequired,
		ClaimMode:         params.ClaimMode,
		Vesting:           params.Vesting,
		Status:            StatusActive,
		FundsRaised:       big.NewInt(0),
		TokensSold:        big.NewInt(0),
		CreatedAt:         e.now(),
	}
	if params.FeeOverride != nil {
		override := *params.FeeOverride
		c.FeeOverride = &override
	}

	escrow := c.EscrowAddress()
	if err := e.ledger.TransferFrom(assetSym, escrow, params.Owner, escrow, forSale); err != nil {
		return nil, err
	}
	if err := e.state.CampaignPut(c); err != nil {
		return nil, err
	}
	e.emit(newCampaignEvent(EventTypeCampaignCreated, c, nil))
	return c.Clone(), nil
}

// GetCampaign returns the stored campaign record.
func (e *Engine) GetCampaign(id [32]byte) (*Campaign, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadCampaign(id)
}

// GetInvestment returns the investor's position in the campaign, if any.
func (e *Engine) GetInvestment(id [32]byte, investor [20]byte) (*Investment, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.InvestmentGet(id, investor)
}

// Invest moves amount of the payment token from the spender into the campaign
// escrow and credits the beneficiary's position. The caller must be either the
// spender or the beneficiary; a third party may not pair someone else's funds
// with someone else's credit.
func (e *Engine) Invest(id [32]byte, caller, spender, beneficiary [20]byte, amount *big.Int) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if c.Status != StatusActive {
		return fmt.Errorf("campaign: %w: not active", common.ErrInvalidState)
	}
	if caller != spender && caller != beneficiary {
		return fmt.Errorf("campaign: %w: caller must be spender or beneficiary", common.ErrUnauthorized)
	}
	if c.WhitelistRequired && !e.whitelist.IsWalletApproved(beneficiary) {
		return fmt.Errorf("campaign: %w: wallet not whitelisted", common.ErrUnauthorized)
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("campaign: %w: amount must be positive", common.ErrValidation)
	}

	existing, ok, err := e.state.InvestmentGet(id, beneficiary)
	if err != nil {
		return err
	}
	prior := big.NewInt(0)
	if ok {
		prior = cloneBigInt(existing.Amount)
	}
	total := new(big.Int).Add(prior, amt)
	if total.Cmp(c.MinInvestment) < 0 {
		return fmt.Errorf("campaign: %w: investment below minimum", common.ErrValidation)
	}
	if c.MaxInvestment.Sign() > 0 && total.Cmp(c.MaxInvestment) > 0 {
		return fmt.Errorf("campaign: %w: investment above maximum", common.ErrValidation)
	}
	raised := new(big.Int).Add(c.FundsRaised, amt)
	if raised.Cmp(c.MaxFundable()) > 0 {
		return fmt.Errorf("campaign: %w: investment exceeds campaign cap", common.ErrValidation)
	}

	escrow := c.EscrowAddress()
	if err := e.ledger.TransferFrom(c.PaymentToken, escrow, spender, escrow, amt); err != nil {
		return err
	}

	inv := &Investment{Investor: beneficiary, Amount: total, TokensClaimed: big.NewInt(0)}
	if ok {
		inv.TokensClaimed = cloneBigInt(existing.TokensClaimed)
		inv.Claimed = existing.Claimed
	}
	if err := e.state.InvestmentPut(id, inv); err != nil {
		return err
	}

	priorTokens := new(big.Int).Div(prior, c.TokenPrice)
	totalTokens := new(big.Int).Div(total, c.TokenPrice)
	c.FundsRaised = raised
	c.TokensSold = new(big.Int).Add(c.TokensSold, new(big.Int).Sub(totalTokens, priorTokens))
	if !ok {
		c.InvestorsCount++
	}
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	e.emit(newInvestmentEvent(EventTypeCampaignInvested, c, beneficiary, amt, e.now()))
	return nil
}

// CancelInvestment refunds the caller's full position. Self-service
// cancellation is permitted any time before the campaign is finalized.
func (e *Engine) CancelInvestment(id [32]byte, investor [20]byte) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if c.Status == StatusFinalized {
		return fmt.Errorf("campaign: %w: already finalized", common.ErrInvalidState)
	}
	return e.refundInvestment(c, investor)
}

// CancelInvestmentFor refunds another investor's position. Anyone may trigger
// it, but only once the campaign itself has been cancelled; until then only
// the investor may cancel their own position.
func (e *Engine) CancelInvestmentFor(id [32]byte, caller, investor [20]byte) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if caller == investor {
		if c.Status == StatusFinalized {
			return fmt.Errorf("campaign: %w: already finalized", common.ErrInvalidState)
		}
	} else if c.Status != StatusCancelled {
		return fmt.Errorf("campaign: %w: campaign not cancelled", common.ErrInvalidState)
	}
	return e.refundInvestment(c, investor)
}

func (e *Engine) refundInvestment(c *Campaign, investor [20]byte) error {
	inv, ok, err := e.state.InvestmentGet(c.ID, investor)
	if err != nil {
		return err
	}
	if !ok || inv.Amount == nil || inv.Amount.Sign() == 0 {
		return fmt.Errorf("campaign: %w: no investment to cancel", common.ErrNotFound)
	}
	if inv.Claimed || (inv.TokensClaimed != nil && inv.TokensClaimed.Sign() > 0) {
		return fmt.Errorf("campaign: %w: investment already claimed", common.ErrAlreadyProcessed)
	}
	amount := cloneBigInt(inv.Amount)
	escrow := c.EscrowAddress()
	if err := e.ledger.Transfer(c.PaymentToken, escrow, investor, amount); err != nil {
		return err
	}
	if err := e.state.InvestmentDelete(c.ID, investor); err != nil {
		return err
	}
	c.FundsRaised = new(big.Int).Sub(c.FundsRaised, amount)
	c.TokensSold = new(big.Int).Sub(c.TokensSold, new(big.Int).Div(amount, c.TokenPrice))
	if c.InvestorsCount > 0 {
		c.InvestorsCount--
	}
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	e.emit(newInvestmentEvent(EventTypeCampaignInvestmentCancelled, c, investor, amount, e.now()))
	return nil
}

// CanFinalize reports whether the soft cap has been reached, treating a
// shortfall smaller than one token's price as reached: integer division
// between payment and token precision can leave a gap no further valid
// investment is able to close.
func (c *Campaign) CanFinalize() bool {
	if c.FundsRaised.Cmp(c.SoftCap) >= 0 {
		return true
	}
	shortfall := new(big.Int).Sub(c.SoftCap, c.FundsRaised)
	return shortfall.Cmp(c.TokenPrice) < 0
}

// Finalize closes a successful campaign: routes the fee to the treasury, pays
// the sale proceeds to the owner, returns unsold tokens and marks the campaign
// Finalized. Claim-time refunds of per-investor rounding dust stay in escrow.
func (e *Engine) Finalize(id [32]byte, caller [20]byte) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if caller != c.Owner {
		return fmt.Errorf("campaign: %w: only the owner may finalize", common.ErrUnauthorized)
	}
	if c.Status != StatusActive {
		return fmt.Errorf("campaign: %w: not active", common.ErrInvalidState)
	}
	if !c.CanFinalize() {
		return fmt.Errorf("campaign: %w: soft cap not reached", common.ErrValidation)
	}

	feeCfg := e.feeConfig(c)
	fee := feeCfg.Apply(c.FundsRaised)
	// Dust is the part of FundsRaised not backed by whole tokens; it must stay
	// in escrow to honour claim-time refunds.
	dust := new(big.Int).Sub(c.FundsRaised, new(big.Int).Mul(c.TokensSold, c.TokenPrice))
	ownerPayout := new(big.Int).Sub(c.FundsRaised, dust)
	ownerPayout.Sub(ownerPayout, fee)
	if ownerPayout.Sign() < 0 {
		fee = new(big.Int).Sub(c.FundsRaised, dust)
		ownerPayout = big.NewInt(0)
	}

	escrow := c.EscrowAddress()
	if fee.Sign() > 0 {
		if err := e.ledger.Transfer(c.PaymentToken, escrow, e.schedule.Treasury(), fee); err != nil {
			return err
		}
	}
	if ownerPayout.Sign() > 0 {
		if err := e.ledger.Transfer(c.PaymentToken, escrow, c.Owner, ownerPayout); err != nil {
			return err
		}
	}
	unsold := new(big.Int).Sub(c.TokensForSale, c.TokensSold)
	if unsold.Sign() > 0 {
		if err := e.ledger.Transfer(c.AssetToken, escrow, c.Owner, unsold); err != nil {
			return err
		}
	}

	now := e.now()
	c.Status = StatusFinalized
	c.FinalizedAt = now
	if c.ClaimMode == ClaimVesting && c.Vesting.Start == 0 {
		c.Vesting.Start = now
	}
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	e.emit(newCampaignEvent(EventTypeCampaignFinalized, c, map[string]string{
		"fee":         fee.String(),
		"ownerPayout": ownerPayout.String(),
		"unsold":      unsold.String(),
	}))
	return nil
}

func (e *Engine) feeConfig(c *Campaign) fees.Config {
	if c.FeeOverride != nil {
		return *c.FeeOverride
	}
	return e.schedule.FeeFor(c.FeeSubject())
}

// CancelCampaign aborts an active campaign and returns the tokens for sale to
// the owner. Investors are subsequently refunded through CancelInvestment or
// CancelInvestmentFor.
func (e *Engine) CancelCampaign(id [32]byte, caller [20]byte) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if caller != c.Owner {
		return fmt.Errorf("campaign: %w: only the owner may cancel", common.ErrUnauthorized)
	}
	if c.Status != StatusActive {
		return fmt.Errorf("campaign: %w: not active", common.ErrInvalidState)
	}
	escrow := c.EscrowAddress()
	if c.TokensForSale.Sign() > 0 {
		if err := e.ledger.Transfer(c.AssetToken, escrow, c.Owner, c.TokensForSale); err != nil {
			return err
		}
	}
	c.Status = StatusCancelled
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	e.emit(newCampaignEvent(EventTypeCampaignCancelled, c, nil))
	return nil
}

// Claim releases the investor's purchased tokens according to the campaign's
// claim strategy. The payment remainder that could not buy a whole token is
// refunded with the first claim.
func (e *Engine) Claim(id [32]byte, investor [20]byte) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	c, err := e.loadCampaign(id)
	if err != nil {
		return err
	}
	if c.Status != StatusFinalized {
		return fmt.Errorf("campaign: %w: not finalized", common.ErrInvalidState)
	}
	inv, ok, err := e.state.InvestmentGet(id, investor)
	if err != nil {
		return err
	}
	if !ok || inv.Amount == nil || inv.Amount.Sign() == 0 {
		return fmt.Errorf("campaign: %w: no investment to claim", common.ErrNotFound)
	}
	if inv.Claimed {
		return fmt.Errorf("campaign: %w: already claimed", common.ErrAlreadyProcessed)
	}

	totalTokens := new(big.Int).Div(inv.Amount, c.TokenPrice)
	claimed := cloneBigInt(inv.TokensClaimed)
	releasable := c.claimStrategy().Releasable(totalTokens, claimed, e.now())
	if releasable.Sign() <= 0 {
		return fmt.Errorf("campaign: %w: no tokens releasable yet", common.ErrValidation)
	}

	escrow := c.EscrowAddress()
	firstClaim := claimed.Sign() == 0
	if err := e.ledger.Transfer(c.AssetToken, escrow, investor, releasable); err != nil {
		return err
	}
	remainder := big.NewInt(0)
	if firstClaim {
		remainder = new(big.Int).Sub(inv.Amount, new(big.Int).Mul(totalTokens, c.TokenPrice))
		if remainder.Sign() > 0 {
			if err := e.ledger.Transfer(c.PaymentToken, escrow, investor, remainder); err != nil {
				return err
			}
		}
	}

	inv.TokensClaimed = new(big.Int).Add(claimed, releasable)
	if inv.TokensClaimed.Cmp(totalTokens) >= 0 {
		inv.Claimed = true
		c.ClaimsCount++
	}
	if err := e.state.InvestmentPut(id, inv); err != nil {
		return err
	}
	if err := e.state.CampaignPut(c); err != nil {
		return err
	}
	e.emit(newClaimEvent(c, investor, releasable, remainder, e.now()))
	return nil
}
