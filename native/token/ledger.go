package token

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"tokenvest/native/common"
)

var (
	errNilState = errors.New("token ledger: state not configured")
)

// LedgerState is the persistence surface the ledger operates against.
type LedgerState interface {
	TokenGet(symbol string) (*Metadata, bool, error)
	TokenPut(meta *Metadata) error
	BalanceGet(symbol string, addr [20]byte) (*big.Int, error)
	BalancePut(symbol string, addr [20]byte, amount *big.Int) error
	AllowanceGet(symbol string, owner, spender [20]byte) (*big.Int, error)
	AllowancePut(symbol string, owner, spender [20]byte, amount *big.Int) error
	HolderIndexAdd(symbol string, addr [20]byte) error
	HolderIndexRemove(symbol string, addr [20]byte) error
	HolderIndexList(symbol string) ([][20]byte, error)
}

// Ledger implements fungible token accounting for every currency the platform
// touches: registration, transfers, allowances and holder enumeration.
type Ledger struct {
	state LedgerState
}

// NewLedger constructs an unwired ledger. SetState must be called before use.
func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState configures the state backend used by the ledger.
func (l *Ledger) SetState(state LedgerState) { l.state = state }

func (l *Ledger) requireState() error {
	if l == nil || l.state == nil {
		return errNilState
	}
	return nil
}

func (l *Ledger) metadata(symbol string) (*Metadata, error) {
	normalized, err := NormalizeSymbol(symbol)
	if err != nil {
		return nil, err
	}
	meta, ok, err := l.state.TokenGet(normalized)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("token: %w: %s not registered", common.ErrNotFound, normalized)
	}
	return meta, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// Register stores a new token definition with zero initial supply. Supply is
// created exclusively through Mint so the holder index stays consistent.
func (l *Ledger) Register(meta *Metadata) (*Metadata, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	sanitized, err := SanitizeMetadata(meta)
	if err != nil {
		return nil, err
	}
	if _, ok, err := l.state.TokenGet(sanitized.Symbol); err != nil {
		return nil, err
	} else if ok {
		return nil, fmt.Errorf("token: %w: %s already registered", common.ErrValidation, sanitized.Symbol)
	}
	sanitized.TotalSupply = big.NewInt(0)
	if err := l.state.TokenPut(sanitized); err != nil {
		return nil, err
	}
	return sanitized.Clone(), nil
}

// Mint creates amount new units credited to the recipient and grows the total
// supply accordingly.
func (l *Ledger) Mint(symbol string, to [20]byte, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() <= 0 {
		return fmt.Errorf("token: %w: mint amount must be positive", common.ErrValidation)
	}
	if err := l.credit(meta.Symbol, to, amt); err != nil {
		return err
	}
	meta.TotalSupply = new(big.Int).Add(meta.TotalSupply, amt)
	return l.state.TokenPut(meta)
}

// BalanceOf reports the ledger balance for the address.
func (l *Ledger) BalanceOf(symbol string, addr [20]byte) (*big.Int, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return nil, err
	}
	bal, err := l.state.BalanceGet(meta.Symbol, addr)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(bal), nil
}

// Allowance reports how much the spender may move out of the owner's balance.
func (l *Ledger) Allowance(symbol string, owner, spender [20]byte) (*big.Int, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return nil, err
	}
	allowance, err := l.state.AllowanceGet(meta.Symbol, owner, spender)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(allowance), nil
}

// Decimals reports the registered precision for the token.
func (l *Ledger) Decimals(symbol string) (uint8, error) {
	if err := l.requireState(); err != nil {
		return 0, err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// TotalSupply reports the minted supply for the token.
func (l *Ledger) TotalSupply(symbol string) (*big.Int, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return nil, err
	}
	return cloneBigInt(meta.TotalSupply), nil
}

// Approve sets the spender allowance to the provided amount, replacing any
// previous value.
func (l *Ledger) Approve(symbol string, owner, spender [20]byte, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() < 0 {
		return fmt.Errorf("token: %w: allowance must be non-negative", common.ErrValidation)
	}
	return l.state.AllowancePut(meta.Symbol, owner, spender, amt)
}

// Transfer moves amount from the sender's balance to the recipient. Zero
// amounts are a no-op.
func (l *Ledger) Transfer(symbol string, from, to [20]byte, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return err
	}
	return l.move(meta.Symbol, from, to, cloneBigInt(amount))
}

// TransferFrom moves amount from the owner's balance on behalf of the spender,
// consuming allowance.
func (l *Ledger) TransferFrom(symbol string, spender, from, to [20]byte, amount *big.Int) error {
	if err := l.requireState(); err != nil {
		return err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("token: %w: negative transfer amount", common.ErrValidation)
	}
	allowance, err := l.state.AllowanceGet(meta.Symbol, from, spender)
	if err != nil {
		return err
	}
	allowance = cloneBigInt(allowance)
	if allowance.Cmp(amt) < 0 {
		return fmt.Errorf("token: %w: allowance below transfer amount", common.ErrInsufficientFunds)
	}
	if err := l.move(meta.Symbol, from, to, amt); err != nil {
		return err
	}
	allowance.Sub(allowance, amt)
	return l.state.AllowancePut(meta.Symbol, from, spender, allowance)
}

// Holders enumerates every address with a positive balance, sorted by address
// for deterministic snapshots.
func (l *Ledger) Holders(symbol string) ([]Holder, error) {
	if err := l.requireState(); err != nil {
		return nil, err
	}
	meta, err := l.metadata(symbol)
	if err != nil {
		return nil, err
	}
	addrs, err := l.state.HolderIndexList(meta.Symbol)
	if err != nil {
		return nil, err
	}
	holders := make([]Holder, 0, len(addrs))
	for _, addr := range addrs {
		bal, err := l.state.BalanceGet(meta.Symbol, addr)
		if err != nil {
			return nil, err
		}
		if bal == nil || bal.Sign() <= 0 {
			continue
		}
		holders = append(holders, Holder{Address: addr, Balance: new(big.Int).Set(bal)})
	}
	sort.Slice(holders, func(i, j int) bool {
		return string(holders[i].Address[:]) < string(holders[j].Address[:])
	})
	return holders, nil
}

func (l *Ledger) move(symbol string, from, to [20]byte, amt *big.Int) error {
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("token: %w: negative transfer amount", common.ErrValidation)
	}
	fromBal, err := l.state.BalanceGet(symbol, from)
	if err != nil {
		return err
	}
	fromBal = cloneBigInt(fromBal)
	if fromBal.Cmp(amt) < 0 {
		return fmt.Errorf("token: %w: balance below transfer amount", common.ErrInsufficientFunds)
	}
	fromBal.Sub(fromBal, amt)
	if err := l.state.BalancePut(symbol, from, fromBal); err != nil {
		return err
	}
	if fromBal.Sign() == 0 {
		if err := l.state.HolderIndexRemove(symbol, from); err != nil {
			return err
		}
	}
	return l.credit(symbol, to, amt)
}

func (l *Ledger) credit(symbol string, to [20]byte, amt *big.Int) error {
	toBal, err := l.state.BalanceGet(symbol, to)
	if err != nil {
		return err
	}
	toBal = cloneBigInt(toBal)
	hadBalance := toBal.Sign() > 0
	toBal.Add(toBal, amt)
	if err := l.state.BalancePut(symbol, to, toBal); err != nil {
		return err
	}
	if !hadBalance && toBal.Sign() > 0 {
		return l.state.HolderIndexAdd(symbol, to)
	}
	return nil
}
