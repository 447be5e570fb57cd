package state

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"tokenvest/native/campaign"
	"tokenvest/native/liquidation"
	"tokenvest/native/payout"
	"tokenvest/native/token"
	"tokenvest/storage"
)

// Manager persists the platform state in a key-value store, implementing the
// narrow state interfaces of every native engine. It also maintains the
// secondary indices that stand in for "all instances ever deployed"
// registries: campaigns by issuer and asset, payouts by asset and owner.
type Manager struct {
	db storage.Database
}

// NewManager wraps the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// Close releases the underlying database.
func (m *Manager) Close() {
	if m == nil || m.db == nil {
		return
	}
	m.db.Close()
}

func (m *Manager) putRecord(key []byte, record interface{}) error {
	encoded, err := rlp.EncodeToBytes(record)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

func (m *Manager) getRecord(key []byte, record interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, rlp.DecodeBytes(raw, record)
}

// --- token.LedgerState ---

func (m *Manager) TokenGet(symbol string) (*token.Metadata, bool, error) {
	var stored storedToken
	ok, err := m.getRecord(tokenMetaKey(symbol), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	meta, err := decodeToken(stored)
	if err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

func (m *Manager) TokenPut(meta *token.Metadata) error {
	sanitized, err := token.SanitizeMetadata(meta)
	if err != nil {
		return err
	}
	return m.putRecord(tokenMetaKey(sanitized.Symbol), encodeToken(sanitized))
}

func (m *Manager) BalanceGet(symbol string, addr [20]byte) (*big.Int, error) {
	var stored string
	ok, err := m.getRecord(tokenBalanceKey(symbol, addr), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(stored)
}

func (m *Manager) BalancePut(symbol string, addr [20]byte, amount *big.Int) error {
	return m.putRecord(tokenBalanceKey(symbol, addr), formatAmount(amount))
}

func (m *Manager) AllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error) {
	var stored string
	ok, err := m.getRecord(tokenAllowanceKey(symbol, owner, spender), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return parseAmount(stored)
}

func (m *Manager) AllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error {
	return m.putRecord(tokenAllowanceKey(symbol, owner, spender), formatAmount(amount))
}

func (m *Manager) HolderIndexAdd(symbol string, addr [20]byte) error {
	return m.addrListAdd(tokenHoldersKey(symbol), addr)
}

func (m *Manager) HolderIndexRemove(symbol string, addr [20]byte) error {
	key := tokenHoldersKey(symbol)
	list, err := m.addrList(key)
	if err != nil {
		return err
	}
	filtered := list[:0]
	for _, entry := range list {
		if entry != addr {
			filtered = append(filtered, entry)
		}
	}
	return m.putRecord(key, filtered)
}

func (m *Manager) HolderIndexList(symbol string) ([][20]byte, error) {
	return m.addrList(tokenHoldersKey(symbol))
}

func (m *Manager) addrList(key []byte) ([][20]byte, error) {
	var list [][20]byte
	if _, err := m.getRecord(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) addrListAdd(key []byte, addr [20]byte) error {
	list, err := m.addrList(key)
	if err != nil {
		return err
	}
	for _, entry := range list {
		if entry == addr {
			return nil
		}
	}
	return m.putRecord(key, append(list, addr))
}

// --- campaign.EngineState ---

func (m *Manager) CampaignGet(id [32]byte) (*campaign.Campaign, bool, error) {
	var stored storedCampaign
	ok, err := m.getRecord(campaignKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	c, err := decodeCampaign(stored)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

func (m *Manager) CampaignPut(c *campaign.Campaign) error {
	sanitized, err := campaign.SanitizeCampaign(c)
	if err != nil {
		return err
	}
	key := campaignKey(sanitized.ID)
	exists, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if err := m.putRecord(key, encodeCampaign(sanitized)); err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := m.idList32Add(campaignIssuerIndexKey(sanitized.Owner), sanitized.ID); err != nil {
		return err
	}
	return m.idList32Add(campaignAssetIndexKey(sanitized.AssetToken), sanitized.ID)
}

func (m *Manager) InvestmentGet(id [32]byte, investor [20]byte) (*campaign.Investment, bool, error) {
	var stored storedInvestment
	ok, err := m.getRecord(investmentKey(id, investor), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	inv, err := decodeInvestment(stored)
	if err != nil {
		return nil, false, err
	}
	return inv, true, nil
}

func (m *Manager) InvestmentPut(id [32]byte, inv *campaign.Investment) error {
	if inv == nil {
		return errors.New("state: nil investment")
	}
	return m.putRecord(investmentKey(id, inv.Investor), encodeInvestment(inv))
}

func (m *Manager) InvestmentDelete(id [32]byte, investor [20]byte) error {
	return m.db.Delete(investmentKey(id, investor))
}

// CampaignIDsByIssuer lists every campaign the issuer ever created.
func (m *Manager) CampaignIDsByIssuer(issuer [20]byte) ([][32]byte, error) {
	return m.idList32(campaignIssuerIndexKey(issuer))
}

// CampaignIDsByAsset lists every campaign ever run for the asset.
func (m *Manager) CampaignIDsByAsset(asset string) ([][32]byte, error) {
	return m.idList32(campaignAssetIndexKey(asset))
}

func (m *Manager) idList32(key []byte) ([][32]byte, error) {
	var list [][32]byte
	if _, err := m.getRecord(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) idList32Add(key []byte, id [32]byte) error {
	list, err := m.idList32(key)
	if err != nil {
		return err
	}
	for _, entry := range list {
		if entry == id {
			return nil
		}
	}
	return m.putRecord(key, append(list, id))
}

// --- payout.EngineState ---

func (m *Manager) PayoutNextID() (uint64, error) {
	var current uint64
	if _, err := m.getRecord([]byte(payoutSeqKey), &current); err != nil {
		return 0, err
	}
	next := current + 1
	if err := m.putRecord([]byte(payoutSeqKey), next); err != nil {
		return 0, err
	}
	return next, nil
}

func (m *Manager) PayoutGet(id uint64) (*payout.Payout, bool, error) {
	var stored storedPayout
	ok, err := m.getRecord(payoutKey(id), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	p, err := decodePayout(stored)
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (m *Manager) PayoutPut(p *payout.Payout) error {
	sanitized, err := payout.SanitizePayout(p)
	if err != nil {
		return err
	}
	key := payoutKey(sanitized.ID)
	exists, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if err := m.putRecord(key, encodePayout(sanitized)); err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := m.idList64Add(payoutAssetIndexKey(sanitized.AssetToken), sanitized.ID); err != nil {
		return err
	}
	return m.idList64Add(payoutOwnerIndexKey(sanitized.Owner), sanitized.ID)
}

func (m *Manager) PayoutClaimed(id uint64, holder [20]byte) (bool, error) {
	return m.db.Has(payoutClaimedKey(id, holder))
}

func (m *Manager) PayoutMarkClaimed(id uint64, holder [20]byte) error {
	return m.db.Put(payoutClaimedKey(id, holder), []byte{1})
}

func (m *Manager) PayoutIDsByAsset(asset string) ([]uint64, error) {
	return m.idList64(payoutAssetIndexKey(asset))
}

func (m *Manager) PayoutIDsByOwner(owner [20]byte) ([]uint64, error) {
	return m.idList64(payoutOwnerIndexKey(owner))
}

func (m *Manager) idList64(key []byte) ([]uint64, error) {
	var list []uint64
	if _, err := m.getRecord(key, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) idList64Add(key []byte, id uint64) error {
	list, err := m.idList64(key)
	if err != nil {
		return err
	}
	for _, entry := range list {
		if entry == id {
			return nil
		}
	}
	return m.putRecord(key, append(list, id))
}

// --- liquidation.EngineState ---

func (m *Manager) LiquidationGet(asset string) (*liquidation.Record, bool, error) {
	var stored storedLiquidation
	ok, err := m.getRecord(liquidationKey(asset), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	record, err := decodeLiquidation(stored)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

func (m *Manager) LiquidationPut(record *liquidation.Record) error {
	if record == nil {
		return errors.New("state: nil liquidation record")
	}
	return m.putRecord(liquidationKey(record.AssetToken), encodeLiquidation(record))
}

func (m *Manager) LiquidationClaimed(asset string, holder [20]byte) (bool, error) {
	return m.db.Has(liquidationClaimedKey(asset, holder))
}

func (m *Manager) LiquidationMarkClaimed(asset string, holder [20]byte) error {
	return m.db.Put(liquidationClaimedKey(asset, holder), []byte{1})
}
