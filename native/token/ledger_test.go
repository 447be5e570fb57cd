package token

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"testing"

	"tokenvest/native/common"
)

type mockState struct {
	tokens     map[string]*Metadata
	balances   map[string]map[[20]byte]*big.Int
	allowances map[string]map[string]*big.Int
	holders    map[string][][20]byte
}

func newMockState() *mockState {
	return &mockState{
		tokens:     make(map[string]*Metadata),
		balances:   make(map[string]map[[20]byte]*big.Int),
		allowances: make(map[string]map[string]*big.Int),
		holders:    make(map[string][][20]byte),
	}
}

func allowanceKey(owner, spender [20]byte) string {
	return fmt.Sprintf("%x|%x", owner, spender)
}

func (m *mockState) TokenGet(symbol string) (*Metadata, bool, error) {
	meta, ok := m.tokens[symbol]
	if !ok {
		return nil, false, nil
	}
	return meta.Clone(), true, nil
}

func (m *mockState) TokenPut(meta *Metadata) error {
	m.tokens[meta.Symbol] = meta.Clone()
	return nil
}

func (m *mockState) BalanceGet(symbol string, addr [20]byte) (*big.Int, error) {
	if bals, ok := m.balances[symbol]; ok {
		if bal, ok := bals[addr]; ok {
			return new(big.Int).Set(bal), nil
		}
	}
	return big.NewInt(0), nil
}

func (m *mockState) BalancePut(symbol string, addr [20]byte, amount *big.Int) error {
	if m.balances[symbol] == nil {
		m.balances[symbol] = make(map[[20]byte]*big.Int)
	}
	m.balances[symbol][addr] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) AllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error) {
	if allowances, ok := m.allowances[symbol]; ok {
		if amount, ok := allowances[allowanceKey(owner, spender)]; ok {
			return new(big.Int).Set(amount), nil
		}
	}
	return big.NewInt(0), nil
}

func (m *mockState) AllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error {
	if m.allowances[symbol] == nil {
		m.allowances[symbol] = make(map[string]*big.Int)
	}
	m.allowances[symbol][allowanceKey(owner, spender)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockState) HolderIndexAdd(symbol string, addr [20]byte) error {
	for _, existing := range m.holders[symbol] {
		if existing == addr {
			return nil
		}
	}
	m.holders[symbol] = append(m.holders[symbol], addr)
	return nil
}

func (m *mockState) HolderIndexRemove(symbol string, addr [20]byte) error {
	list := m.holders[symbol]
	for i, existing := range list {
		if existing == addr {
			m.holders[symbol] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockState) HolderIndexList(symbol string) ([][20]byte, error) {
	return append([][20]byte(nil), m.holders[symbol]...), nil
}

func newTestAddress(fill byte) [20]byte {
	var addr [20]byte
	copy(addr[:], bytes.Repeat([]byte{fill}, 20))
	return addr
}

func newTestLedger(t *testing.T) (*Ledger, *mockState) {
	t.Helper()
	state := newMockState()
	ledger := NewLedger()
	ledger.SetState(state)
	if _, err := ledger.Register(&Metadata{Symbol: "usd", Name: "Settlement Dollar", Decimals: 2}); err != nil {
		t.Fatalf("register: %v", err)
	}
	return ledger, state
}

func TestRegisterNormalizesAndRejectsDuplicates(t *testing.T) {
	ledger, _ := newTestLedger(t)

	supply, err := ledger.TotalSupply("USD")
	if err != nil {
		t.Fatalf("total supply: %v", err)
	}
	if supply.Sign() != 0 {
		t.Fatalf("fresh token should have zero supply, got %s", supply)
	}
	decimals, err := ledger.Decimals(" usd ")
	if err != nil {
		t.Fatalf("decimals: %v", err)
	}
	if decimals != 2 {
		t.Fatalf("expected 2 decimals, got %d", decimals)
	}
	if _, err := ledger.Register(&Metadata{Symbol: "USD"}); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("duplicate registration should fail, got %v", err)
	}
	if _, err := ledger.BalanceOf("ACME", newTestAddress(0x01)); !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("unregistered token should be not found, got %v", err)
	}
}

func TestMintGrowsSupplyAndIndex(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := newTestAddress(0xA1)

	if err := ledger.Mint("USD", alice, big.NewInt(500)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Mint("USD", alice, big.NewInt(0)); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("zero mint should fail, got %v", err)
	}
	supply, _ := ledger.TotalSupply("USD")
	if supply.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected supply 500, got %s", supply)
	}
	holders, err := ledger.Holders("USD")
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 1 || holders[0].Address != alice || holders[0].Balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("unexpected holder set: %+v", holders)
	}
}

func TestTransferMaintainsHolderIndex(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := newTestAddress(0xA1)
	bob := newTestAddress(0xB2)

	if err := ledger.Mint("USD", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("USD", alice, bob, big.NewInt(150)); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("overdraft should fail, got %v", err)
	}
	if err := ledger.Transfer("USD", alice, bob, big.NewInt(100)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	holders, err := ledger.Holders("USD")
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 1 || holders[0].Address != bob {
		t.Fatalf("drained sender should leave the holder set: %+v", holders)
	}
	balance, _ := ledger.BalanceOf("USD", alice)
	if balance.Sign() != 0 {
		t.Fatalf("expected zero balance after transfer, got %s", balance)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	owner := newTestAddress(0xA1)
	spender := newTestAddress(0xB2)
	sink := newTestAddress(0xC3)

	if err := ledger.Mint("USD", owner, big.NewInt(1000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.TransferFrom("USD", spender, owner, sink, big.NewInt(10)); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("missing allowance should fail, got %v", err)
	}
	if err := ledger.Approve("USD", owner, spender, big.NewInt(300)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom("USD", spender, owner, sink, big.NewInt(200)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	remaining, err := ledger.Allowance("USD", owner, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if remaining.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("expected remaining allowance 100, got %s", remaining)
	}
	if err := ledger.TransferFrom("USD", spender, owner, sink, big.NewInt(150)); !errors.Is(err, common.ErrInsufficientFunds) {
		t.Fatalf("spending beyond allowance should fail, got %v", err)
	}
}

func TestHoldersSortedByAddress(t *testing.T) {
	ledger, _ := newTestLedger(t)
	for _, fill := range []byte{0xC3, 0xA1, 0xB2} {
		if err := ledger.Mint("USD", newTestAddress(fill), big.NewInt(1)); err != nil {
			t.Fatalf("mint: %v", err)
		}
	}
	holders, err := ledger.Holders("USD")
	if err != nil {
		t.Fatalf("holders: %v", err)
	}
	if len(holders) != 3 {
		t.Fatalf("expected 3 holders, got %d", len(holders))
	}
	for i := 1; i < len(holders); i++ {
		if bytes.Compare(holders[i-1].Address[:], holders[i].Address[:]) >= 0 {
			t.Fatalf("holder set not sorted: %x before %x", holders[i-1].Address, holders[i].Address)
		}
	}
}
