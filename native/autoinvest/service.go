package autoinvest

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/google/uuid"

	"tokenvest/native/campaign"
	"tokenvest/native/whitelist"
)

var (
	errNilEngine = errors.New("autoinvest: campaign engine not configured")
	errNilLedger = errors.New("autoinvest: token ledger not configured")
)

// CampaignEngine is the slice of the campaign engine the service drives.
type CampaignEngine interface {
	GetCampaign(id [32]byte) (*campaign.Campaign, error)
	GetInvestment(id [32]byte, investor [20]byte) (*campaign.Investment, bool, error)
	Invest(id [32]byte, caller, spender, beneficiary [20]byte, amount *big.Int) error
}

// TokenLedger is the read surface used to evaluate investor readiness.
type TokenLedger interface {
	BalanceOf(symbol string, addr [20]byte) (*big.Int, error)
	Allowance(symbol string, owner, spender [20]byte) (*big.Int, error)
}

// Request asks the service to invest amount on behalf of the investor.
type Request struct {
	Investor   [20]byte
	CampaignID [32]byte
	Amount     *big.Int
}

// Status is the readiness projection for one request. EffectiveAmount is the
// amount actually investable right now: the requested amount capped to the
// investor's balance, allowance and the campaign's remaining per-investor
// headroom.
type Status struct {
	Request         Request
	Ready           bool
	EffectiveAmount *big.Int
	Reason          string
}

// Result is the outcome of one batch item. Err is nil for items that
// succeeded.
type Result struct {
	Request Request
	Err     error
}

// Service evaluates investor readiness and executes eligible investments in
// batches. Its defining contract is fault isolation: one failing item never
// aborts the rest of the batch.
type Service struct {
	engine    CampaignEngine
	ledger    TokenLedger
	whitelist whitelist.Oracle
	logger    *slog.Logger
}

// NewService constructs the service with an open whitelist and the default
// logger unless configured otherwise.
func NewService(engine CampaignEngine, ledger TokenLedger) *Service {
	return &Service{
		engine:    engine,
		ledger:    ledger,
		whitelist: whitelist.OpenOracle{},
		logger:    slog.Default(),
	}
}

// SetWhitelist configures the KYC oracle consulted during readiness checks.
// Passing nil resets to an open whitelist.
func (s *Service) SetWhitelist(oracle whitelist.Oracle) {
	if oracle == nil {
		s.whitelist = whitelist.OpenOracle{}
		return
	}
	s.whitelist = oracle
}

// SetLogger configures the logger used for skipped batch items.
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger == nil {
		s.logger = slog.Default()
		return
	}
	s.logger = logger
}

func (s *Service) requireWired() error {
	if s == nil || s.engine == nil {
		return errNilEngine
	}
	if s.ledger == nil {
		return errNilLedger
	}
	return nil
}

// GetStatus evaluates each request without mutating any state.
func (s *Service) GetStatus(requests []Request) ([]Status, error) {
	if err := s.requireWired(); err != nil {
		return nil, err
	}
	statuses := make([]Status, 0, len(requests))
	for _, req := range requests {
		statuses = append(statuses, s.status(req))
	}
	return statuses, nil
}

func (s *Service) status(req Request) Status {
	status := Status{Request: req, EffectiveAmount: big.NewInt(0)}
	c, err := s.engine.GetCampaign(req.CampaignID)
	if err != nil {
		status.Reason = "campaign not found"
		return status
	}
	if c.Status != campaign.StatusActive {
		status.Reason = "campaign not active"
		return status
	}
	if c.WhitelistRequired && !s.whitelist.IsWalletApproved(req.Investor) {
		status.Reason = "wallet not whitelisted"
		return status
	}
	escrow := c.EscrowAddress()
	balance, err := s.ledger.BalanceOf(c.PaymentToken, req.Investor)
	if err != nil {
		status.Reason = "balance unavailable"
		return status
	}
	allowance, err := s.ledger.Allowance(c.PaymentToken, req.Investor, escrow)
	if err != nil {
		status.Reason = "allowance unavailable"
		return status
	}
	effective := minBig(req.Amount, balance, allowance)
	// A zero maximum means the campaign has no per-investor cap.
	if c.MaxInvestment != nil && c.MaxInvestment.Sign() > 0 {
		headroom := new(big.Int).Set(c.MaxInvestment)
		if inv, ok, err := s.engine.GetInvestment(req.CampaignID, req.Investor); err == nil && ok {
			headroom.Sub(headroom, inv.Amount)
		}
		if headroom.Sign() < 0 {
			headroom = big.NewInt(0)
		}
		effective = minBig(effective, headroom)
	}
	status.EffectiveAmount = effective

	amount := big.NewInt(0)
	if req.Amount != nil {
		amount = req.Amount
	}
	switch {
	case balance.Sign() == 0:
		status.Reason = "zero balance"
	case allowance.Cmp(amount) < 0:
		status.Reason = "allowance below requested amount"
	default:
		status.Ready = true
	}
	return status
}

func minBig(values ...*big.Int) *big.Int {
	var lowest *big.Int
	for _, v := range values {
		if v == nil {
			continue
		}
		if lowest == nil || v.Cmp(lowest) < 0 {
			lowest = v
		}
	}
	if lowest == nil || lowest.Sign() < 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Set(lowest)
}

// InvestFor attempts every request and captures per-item outcomes. Items that
// fail, for example because an investor's whitelist approval was revoked
// between GetStatus and InvestFor, are skipped; the rest of the batch still
// executes.
func (s *Service) InvestFor(requests []Request) ([]Result, error) {
	if err := s.requireWired(); err != nil {
		return nil, err
	}
	batchID := uuid.NewString()
	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		err := s.engine.Invest(req.CampaignID, req.Investor, req.Investor, req.Investor, req.Amount)
		if err != nil {
			s.logger.Warn("autoinvest item skipped",
				"batch", batchID,
				"investor", fmt.Sprintf("%x", req.Investor),
				"campaign", fmt.Sprintf("%x", req.CampaignID),
				"err", err,
			)
		}
		results = append(results, Result{Request: req, Err: err})
	}
	return results, nil
}
