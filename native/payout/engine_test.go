package payout

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"tokenvest/native/common"
	"tokenvest/native/fees"
)

type mockState struct {
	nextID  uint64
	payouts map[uint64]*Payout
	claimed map[string]bool
	byAsset map[string][]uint64
	byOwner map[[20]byte][]uint64
}

func newMockState() *mockState {
	return &mockState{
		payouts: make(map[uint64]*Payout),
		claimed: make(map[string]bool),
		byAsset: make(map[string][]uint64),
		byOwner: make(map[[20]byte][]uint64),
	}
}

func claimKey(id uint64, holder [20]byte) string {
	return fmt.Sprintf("%d|%x", id, holder)
}

func (m *mockState) PayoutNextID() (uint64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockState) PayoutGet(id uint64) (*Payout, bool, error) {
	p, ok := m.payouts[id]
	if !ok {
		return nil, false, nil
	}
	return p.Clone(), true, nil
}

func (m *mockState) PayoutPut(p *Payout) error {
	sanitized, err := SanitizePayout(p)
	if err != nil {
		return err
	}
	if _, existed := m.payouts[sanitized.ID]; !existed {
		m.byAsset[sanitized.AssetToken] = append(m.byAsset[sanitized.AssetToken], sanitized.ID)
		m.byOwner[sanitized.Owner] = append(m.byOwner[sanitized.Owner], sanitized.ID)
	}
	m.payouts[sanitized.ID] = sanitized
	return nil
}

func (m *mockState) PayoutClaimed(id uint64, holder [20]byte) (bool, error) {
	return m.claimed[claimKey(id, holder)], nil
}

func (m *mockState) PayoutMarkClaimed(id uint64, holder [20]byte) error {
	m.claimed[claimKey(id, holder)] = true
	return nil
}

func (m *mockState) PayoutIDsByAsset(asset string) ([]uint64, error) {
	return append([]uint64(nil), m.byAsset[asset]...), nil
}

func (m *mockState) PayoutIDsByOwner(owner [20]byte) ([]uint64, error) {
	return append([]uint64(nil), m.byOwner[owner]...), nil
}

type memLedger struct {
	balances   map[string]map[[20]byte]*big.Int
	allowances map[string]map[string]*big.Int
}

func newMemLedger() *memLedger {
	return &memLedger{
		balances:   make(map[string]map[[20]byte]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
	}
}

func allowanceKey(owner, spender [20]byte) string {
	return fmt.Sprintf("%x|%x", owner, spender)
}

func (l *memLedger) balance(symbol string, addr [20]byte) *big.Int {
	if bals, ok := l.balances[symbol]; ok {
		if bal, ok := bals[addr]; ok {
			return bal
		}
	}
	return big.NewInt(0)
}

func (l *memLedger) mint(symbol string, addr [20]byte, amount int64) {
	if l.balances[symbol] == nil {
		l.balances[symbol] = make(map[[20]byte]*big.Int)
	}
	l.balances[symbol][addr] = new(big.Int).Add(l.balance(symbol, addr), big.NewInt(amount))
}

func (l *memLedger) approve(symbol string, owner, spender [20]byte, amount int64) {
	if l.allowances[symbol] == nil {
		l.allowances[symbol] = make(map[string]*big.Int)
	}
	l.allowances[symbol][allowanceKey(owner, spender)] = big.NewInt(amount)
}

func (l *memLedger) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	fromBal := l.balance(symbol, from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: %w: balance below transfer amount", common.ErrInsufficientFunds)
	}
	if l.balances[symbol] == nil {
		l.balances[symbol] = make(map[[20]byte]*big.Int)
	}
	l.balances[symbol][from] = new(big.Int).Sub(fromBal, amount)
	l.balances[symbol][to] = new(big.Int).Add(l.balance(symbol, to), amount)
	return nil
}

func (l *memLedger) TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	allowance := big.NewInt(0)
	if allowances, ok := l.allowances[symbol]; ok {
		if a, ok := allowances[allowanceKey(from, spender)]; ok {
			allowance = a
		}
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("ledger: %w: allowance below transfer amount", common.ErrInsufficientFunds)
	}
	if err := l.Transfer(symbol, from, to, amount); err != nil {
		return err
	}
	l.allowances[symbol][allowanceKey(from, spender)] = new(big.Int).Sub(allowance, amount)
	return nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

type testEnv struct {
	engine   *Engine
	state    *mockState
	ledger   *memLedger
	treasury [20]byte
	vault    [20]byte
	owner    [20]byte
	tree     *SnapshotTree
	entries  []SnapshotEntry
}

// newTestEnv builds an engine plus a three-holder snapshot (100/200/300 of
// ACME) and funds the owner for a 1000 USD reward at the default 10% fee.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:    newMockState(),
		ledger:   newMemLedger(),
		treasury: newTestAddress(0xFE),
		vault:    newTestAddress(0xFD),
		owner:    newTestAddress(0x01),
	}
	schedule, err := fees.NewSchedule(fees.Config{Numerator: 1, Denominator: 10}, env.treasury)
	if err != nil {
		t.Fatalf("fee schedule: %v", err)
	}
	engine := NewEngine()
	engine.SetState(env.state)
	engine.SetLedger(env.ledger)
	engine.SetFeeSchedule(schedule)
	engine.SetVault(env.vault)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	env.engine = engine

	env.entries = []SnapshotEntry{
		{Address: newTestAddress(0xA1), Balance: big.NewInt(100)},
		{Address: newTestAddress(0xA2), Balance: big.NewInt(200)},
		{Address: newTestAddress(0xA3), Balance: big.NewInt(300)},
	}
	env.tree, err = BuildSnapshotTree(env.entries)
	if err != nil {
		t.Fatalf("snapshot tree: %v", err)
	}
	env.ledger.mint("USD", env.owner, 1100)
	env.ledger.approve("USD", env.owner, env.vault, 1100)
	return env
}

func (env *testEnv) createParams() CreateParams {
	return CreateParams{
		Owner:            env.owner,
		AssetToken:       "ACME",
		RewardToken:      "USD",
		TotalAssetAmount: env.tree.TotalBalance(),
		MerkleRoot:       env.tree.Root(),
		MerkleDepth:      env.tree.Depth(),
		SnapshotBlock:    42,
		MerkleIPFSHash:   "QmSnapshot",
		TotalReward:      big.NewInt(1000),
	}
}

func (env *testEnv) create(t *testing.T) *Payout {
	t.Helper()
	p, err := env.engine.Create(env.createParams())
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}
	return p
}

func (env *testEnv) claim(t *testing.T, id uint64, entry SnapshotEntry) *big.Int {
	t.Helper()
	proof, ok := env.tree.Proof(entry.Address)
	if !ok {
		t.Fatalf("no proof for %x", entry.Address)
	}
	reward, err := env.engine.Claim(id, entry.Address, entry.Balance, proof)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	return reward
}

func TestCreateChargesRevenueFee(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t)

	if p.ID != 1 {
		t.Fatalf("expected first payout id 1, got %d", p.ID)
	}
	// 10% of the 1000 reward goes to the treasury on top of the reward itself.
	if got := env.ledger.balance("USD", env.vault); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("vault should hold the reward, got %s", got)
	}
	if got := env.ledger.balance("USD", env.treasury); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("treasury should hold the fee, got %s", got)
	}
	if got := env.ledger.balance("USD", env.owner); got.Sign() != 0 {
		t.Fatalf("owner should be fully debited, got %s", got)
	}
	if p.RemainingReward.Cmp(p.TotalReward) != 0 {
		t.Fatalf("fresh payout should have full remaining reward")
	}
}

func TestCreateNormalizesTokenSymbols(t *testing.T) {
	env := newTestEnv(t)
	params := env.createParams()
	params.AssetToken = "acme"
	params.RewardToken = "usd"

	p, err := env.engine.Create(params)
	if err != nil {
		t.Fatalf("create payout: %v", err)
	}
	if p.AssetToken != "ACME" || p.RewardToken != "USD" {
		t.Fatalf("symbols should be stored canonical, got %q/%q", p.AssetToken, p.RewardToken)
	}
	// Fee subject and index both resolve under the canonical symbol.
	if got := env.ledger.balance("USD", env.treasury); got.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("treasury should hold the fee, got %s", got)
	}
	byAsset, err := env.engine.ByAsset("ACME")
	if err != nil {
		t.Fatalf("by asset: %v", err)
	}
	if len(byAsset) != 1 || byAsset[0].ID != p.ID {
		t.Fatalf("payout should index under the canonical asset: %+v", byAsset)
	}
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t)

	params := env.createParams()
	params.TotalAssetAmount = big.NewInt(0)
	if _, err := env.engine.Create(params); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("zero snapshot total should fail, got %v", err)
	}
	params = env.createParams()
	params.TotalReward = big.NewInt(0)
	if _, err := env.engine.Create(params); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("zero reward should fail, got %v", err)
	}
	params = env.createParams()
	params.MerkleDepth = 0
	if _, err := env.engine.Create(params); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("zero depth should fail, got %v", err)
	}
	// Approval covering the reward but not the fee.
	env.ledger.approve("USD", env.owner, env.vault, 1000)
	if _, err := env.engine.Create(env.createParams()); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("short approval should fail, got %v", err)
	}
}

func TestClaimPaysProportionalFloor(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t)

	// floor(1000 * 100 / 600) = 166.
	reward := env.claim(t, p.ID, env.entries[0])
	if reward.Cmp(big.NewInt(166)) != 0 {
		t.Fatalf("expected reward 166, got %s", reward)
	}
	if got := env.ledger.balance("USD", env.entries[0].Address); got.Cmp(big.NewInt(166)) != 0 {
		t.Fatalf("reward should land with the holder, got %s", got)
	}
	stored, err := env.engine.Get(p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.RemainingReward.Cmp(big.NewInt(834)) != 0 {
		t.Fatalf("expected remaining 834, got %s", stored.RemainingReward)
	}
	claimed, err := env.engine.HasClaimed(p.ID, env.entries[0].Address)
	if err != nil || !claimed {
		t.Fatalf("holder should be marked claimed, claimed=%v err=%v", claimed, err)
	}

	// The other two shares drain the pool to the rounding residue.
	env.claim(t, p.ID, env.entries[1])
	env.claim(t, p.ID, env.entries[2])
	stored, _ = env.engine.Get(p.ID)
	// 166 + 333 + 500 claimed of 1000.
	if stored.RemainingReward.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("expected rounding residue 1, got %s", stored.RemainingReward)
	}
}

func TestClaimRejections(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t)
	holder := env.entries[0]
	proof, _ := env.tree.Proof(holder.Address)

	// Proof bound to a different balance.
	if _, err := env.engine.Claim(p.ID, holder.Address, big.NewInt(150), proof); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("mismatched balance should fail, got %v", err)
	}
	// Unknown payout.
	if _, err := env.engine.Claim(99, holder.Address, holder.Balance, proof); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unknown payout should fail, got %v", err)
	}
	// Double claim.
	env.claim(t, p.ID, holder)
	if _, err := env.engine.Claim(p.ID, holder.Address, holder.Balance, proof); !errors.Is(err, common.ErrAlreadyProcessed) {
		t.Fatalf("double claim should fail, got %v", err)
	}
}

func TestClaimRespectsIgnoredHolders(t *testing.T) {
	env := newTestEnv(t)
	params := env.createParams()
	params.IgnoredHolders = [][20]byte{env.entries[1].Address}
	p, err := env.engine.Create(params)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	proof, _ := env.tree.Proof(env.entries[1].Address)
	if _, err := env.engine.Claim(p.ID, env.entries[1].Address, env.entries[1].Balance, proof); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("ignored holder should fail, got %v", err)
	}
	// Non-ignored holders remain claimable.
	env.claim(t, p.ID, env.entries[0])
}

func TestCancelRefundsRemaining(t *testing.T) {
	env := newTestEnv(t)
	p := env.create(t)
	env.claim(t, p.ID, env.entries[0])

	if _, err := env.engine.Cancel(p.ID, newTestAddress(0xCC)); !errors.Is(err, common.ErrUnauthorized) {
		t.Fatalf("non-owner cancel should fail, got %v", err)
	}
	refund, err := env.engine.Cancel(p.ID, env.owner)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// 1000 - 166 already claimed.
	if refund.Cmp(big.NewInt(834)) != 0 {
		t.Fatalf("expected refund 834, got %s", refund)
	}
	if got := env.ledger.balance("USD", env.owner); got.Cmp(big.NewInt(834)) != 0 {
		t.Fatalf("refund should land with the owner, got %s", got)
	}

	stored, _ := env.engine.Get(p.ID)
	if !stored.Cancelled || stored.RemainingReward.Sign() != 0 {
		t.Fatalf("cancelled payout should zero remaining reward: %+v", stored)
	}
	proof, _ := env.tree.Proof(env.entries[1].Address)
	if _, err := env.engine.Claim(p.ID, env.entries[1].Address, env.entries[1].Balance, proof); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("claim on cancelled payout should fail, got %v", err)
	}
	if _, err := env.engine.Cancel(p.ID, env.owner); !errors.Is(err, common.ErrInvalidState) {
		t.Fatalf("double cancel should fail, got %v", err)
	}
}

func TestLookupsByAssetAndOwner(t *testing.T) {
	env := newTestEnv(t)
	first := env.create(t)
	env.ledger.mint("USD", env.owner, 1100)
	env.ledger.approve("USD", env.owner, env.vault, 1100)
	second := env.create(t)

	byAsset, err := env.engine.ByAsset("ACME")
	if err != nil {
		t.Fatalf("by asset: %v", err)
	}
	if len(byAsset) != 2 || byAsset[0].ID != first.ID || byAsset[1].ID != second.ID {
		t.Fatalf("unexpected asset listing: %+v", byAsset)
	}
	byOwner, err := env.engine.ByOwner(env.owner)
	if err != nil {
		t.Fatalf("by owner: %v", err)
	}
	if len(byOwner) != 2 {
		t.Fatalf("expected 2 payouts for owner, got %d", len(byOwner))
	}
}
