package platform

import (
	"fmt"
	"log/slog"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"

	"tokenvest/config"
	"tokenvest/core/events"
	"tokenvest/native/autoinvest"
	"tokenvest/native/campaign"
	"tokenvest/native/fees"
	"tokenvest/native/liquidation"
	"tokenvest/native/payout"
	"tokenvest/native/token"
	"tokenvest/native/whitelist"
	"tokenvest/observability/logging"
	"tokenvest/observability/metrics"
	"tokenvest/state"
	"tokenvest/storage"
)

// Platform wires the token ledger, fee schedule, whitelist registry and the
// native engines against a shared state manager.
type Platform struct {
	Config       config.Config
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	State        *state.Manager
	Ledger       *token.Ledger
	Schedule     *fees.Schedule
	Whitelist    *whitelist.ManualRegistry
	Campaigns    *campaign.Engine
	Payouts      *payout.Engine
	Liquidations *liquidation.Engine
	AutoInvest   *autoinvest.Service

	db storage.Database
}

// ModuleAddress derives the deterministic account for a named platform
// module, e.g. the payout and liquidation vaults.
func ModuleAddress(name string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("tokenvest/module/" + name))
	copy(addr[:], digest[12:])
	return addr
}

type campaignSource struct {
	engine *campaign.Engine
}

func (s campaignSource) CampaignInfo(id [32]byte) (liquidation.CampaignInfo, error) {
	c, err := s.engine.GetCampaign(id)
	if err != nil {
		return liquidation.CampaignInfo{}, err
	}
	return liquidation.CampaignInfo{
		Owner:             c.Owner,
		AssetToken:        c.AssetToken,
		PaymentToken:      c.PaymentToken,
		TokenPrice:        c.TokenPrice,
		Finalized:         c.Status == campaign.StatusFinalized,
		WhitelistRequired: c.WhitelistRequired,
	}, nil
}

// New assembles a platform from the configuration. Extra emitters, e.g. test
// sinks or indexers, receive every engine event alongside the metrics
// collector.
func New(cfg config.Config, extraEmitters ...events.Emitter) (*Platform, error) {
	cfg = cfg.Normalise()
	logger := logging.Setup(cfg.Service, cfg.Env)

	treasury := ModuleAddress("treasury")
	if cfg.Fees.Treasury != "" {
		parsed, err := cfg.TreasuryAddress()
		if err != nil {
			return nil, err
		}
		treasury = parsed
	}
	schedule, err := fees.NewSchedule(fees.Config{
		Numerator:   cfg.Fees.Numerator,
		Denominator: cfg.Fees.Denominator,
	}, treasury)
	if err != nil {
		return nil, err
	}

	var db storage.Database
	if cfg.Storage.Path == "" {
		db = storage.NewMemDB()
	} else {
		db, err = storage.NewLevelDB(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("platform: open storage: %w", err)
		}
	}
	manager := state.NewManager(db)

	registry := prometheus.NewRegistry()
	emitter := events.Fanout{metrics.NewCollector(registry)}
	emitter = append(emitter, extraEmitters...)

	ledger := token.NewLedger()
	ledger.SetState(manager)

	approvals := whitelist.NewManualRegistry()

	campaigns := campaign.NewEngine()
	campaigns.SetState(manager)
	campaigns.SetLedger(ledger)
	campaigns.SetFeeSchedule(schedule)
	campaigns.SetWhitelist(approvals)
	campaigns.SetEmitter(emitter)

	payouts := payout.NewEngine()
	payouts.SetState(manager)
	payouts.SetLedger(ledger)
	payouts.SetFeeSchedule(schedule)
	payouts.SetVault(ModuleAddress("payout-vault"))
	payouts.SetEmitter(emitter)

	liquidations := liquidation.NewEngine()
	liquidations.SetState(manager)
	liquidations.SetLedger(ledger)
	liquidations.SetCampaignSource(campaignSource{engine: campaigns})
	liquidations.SetVault(ModuleAddress("liquidation-vault"))
	liquidations.SetWhitelist(approvals)
	liquidations.SetEmitter(emitter)
	liquidations.SetMaxQuoteAge(cfg.Oracle.MaxQuoteAgeSeconds)

	invest := autoinvest.NewService(campaigns, ledger)
	invest.SetWhitelist(approvals)
	invest.SetLogger(logger)

	return &Platform{
		Config:       cfg,
		Logger:       logger,
		Registry:     registry,
		State:        manager,
		Ledger:       ledger,
		Schedule:     schedule,
		Whitelist:    approvals,
		Campaigns:    campaigns,
		Payouts:      payouts,
		Liquidations: liquidations,
		AutoInvest:   invest,
		db:           db,
	}, nil
}

// SetPriceFeed wires the market price feed into the liquidation engine.
func (p *Platform) SetPriceFeed(feed liquidation.PriceFeed) {
	p.Liquidations.SetPriceFeed(feed)
}

// Close releases the underlying database.
func (p *Platform) Close() {
	if p == nil || p.db == nil {
		return
	}
	p.db.Close()
}
