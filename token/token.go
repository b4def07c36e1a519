// Package token implements the fee-reflecting token ledger. Balances are
// 256-bit words with EVM wrap and compare semantics; every transfer
// between non-whitelisted accounts runs the two-phase fee protocol
// against the dynamic fee manager.
package token

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/wesenditmedia/contracts-sub001/access_control"
)

var (
	ErrInvalidParameter      = errors.New("invalid parameter")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrPaused                = errors.New("token is paused")
	ErrBelowMinTxAmount      = errors.New("amount below minimum transaction amount")
	ErrMissingRole           = errors.New("caller is missing required role")
	ErrAmountOverflow        = errors.New("amount exceeds 256 bits")
)

// BurnAddress receives burned tokens.
var BurnAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// FeeManager is the reflection engine consulted on every fee-bearing
// transfer: dry run first to learn the escrow amount, wet run after the
// escrow moved.
type FeeManager interface {
	Address() common.Address
	ReflectFees(ctx context.Context, caller, from, to common.Address, amount *big.Int, dryRun bool) (net, totalFee *big.Int, err error)
}

// AccessControl supplies the whitelist and pause-bypass roles.
type AccessControl interface {
	HasRole(role common.Hash, account common.Address) bool
}

// Token is the ledger. stateMu guards the balance and allowance maps;
// transferMu serializes fee-bearing transfers end to end so the two
// reflection phases of one transfer never interleave with another's.
type Token struct {
	name    string
	symbol  string
	address common.Address
	owner   common.Address

	stateMu     sync.Mutex
	transferMu  sync.Mutex
	totalSupply *uint256.Int
	balances    map[common.Address]*uint256.Int
	allowances  map[common.Address]map[common.Address]*uint256.Int

	paused      bool
	minTxAmount *uint256.Int

	feeManager FeeManager
	access     AccessControl
	logger     *zap.Logger
}

// Option configures a Token.
type Option func(*Token)

// WithLogger replaces the default nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Token) { t.logger = l }
}

// WithFeeManager wires the reflection engine at construction time.
func WithFeeManager(fm FeeManager) Option {
	return func(t *Token) { t.feeManager = fm }
}

// NewToken creates the ledger and mints the initial supply to owner.
// Minting happens at genesis only; there is no later mint path.
func NewToken(name, symbol string, address, owner common.Address, initialSupply *big.Int, access AccessControl, opts ...Option) (*Token, error) {
	supply, overflow := uint256.FromBig(initialSupply)
	if overflow {
		return nil, ErrAmountOverflow
	}
	t := &Token{
		name:        name,
		symbol:      symbol,
		address:     address,
		owner:       owner,
		totalSupply: supply,
		balances:    map[common.Address]*uint256.Int{owner: supply.Clone()},
		allowances:  make(map[common.Address]map[common.Address]*uint256.Int),
		minTxAmount: uint256.NewInt(0),
		access:      access,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return 18 }
func (t *Token) Address() common.Address { return t.address }

// TotalSupply returns the circulating supply, burned amounts excluded.
func (t *Token) TotalSupply() *big.Int {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.totalSupply.ToBig()
}

// BalanceOf returns the balance of addr.
func (t *Token) BalanceOf(addr common.Address) *big.Int {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if b, ok := t.balances[addr]; ok {
		return b.ToBig()
	}
	return new(big.Int)
}

// Allowance returns what spender may move on owner's behalf.
func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if m, ok := t.allowances[owner]; ok {
		if a, ok := m[spender]; ok {
			return a.ToBig()
		}
	}
	return new(big.Int)
}

// Approve lets spender move up to amount of owner's balance.
func (t *Token) Approve(owner, spender common.Address, amount *big.Int) error {
	a, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	m, ok := t.allowances[owner]
	if !ok {
		m = make(map[common.Address]*uint256.Int)
		t.allowances[owner] = m
	}
	m[spender] = a
	return nil
}

// Transfer moves amount from from to to, reflecting fees unless either
// side is whitelisted. An abort leaves every balance as before the call.
func (t *Token) Transfer(from, to common.Address, amount *big.Int) error {
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer to the zero address", ErrInvalidParameter)
	}

	if err := t.checkPaused(from); err != nil {
		return err
	}
	if t.feeExempt(from, to) {
		return t.move(from, to, value)
	}
	if !t.minTxAmount.IsZero() && value.Lt(t.minTxAmount) {
		return ErrBelowMinTxAmount
	}
	return t.transferWithFees(from, to, value)
}

// TransferFrom moves amount on behalf of from, consuming spender's
// allowance first.
func (t *Token) TransferFrom(spender, from, to common.Address, amount *big.Int) error {
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}
	if err := t.spendAllowance(from, spender, value); err != nil {
		return err
	}
	if err := t.Transfer(from, to, amount); err != nil {
		t.restoreAllowance(from, spender, value)
		return err
	}
	return nil
}

// Burn destroys amount of caller's balance, shrinking the supply.
func (t *Token) Burn(caller common.Address, amount *big.Int) error {
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	balance, ok := t.balances[caller]
	if !ok || balance.Lt(value) {
		return ErrInsufficientBalance
	}
	balance.Sub(balance, value)
	t.totalSupply.Sub(t.totalSupply, value)
	t.logger.Info("tokens burned",
		zap.Stringer("from", caller),
		zap.String("amount", value.Dec()),
	)
	return nil
}

// SetPaused freezes fee-bearing and plain transfers for everyone without
// the bypass role. Admin only.
func (t *Token) SetPaused(caller common.Address, paused bool) error {
	if !t.access.HasRole(access_control.AdminRole, caller) {
		return ErrMissingRole
	}
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.paused = paused
	t.logger.Info("token pause switched", zap.Bool("paused", paused))
	return nil
}

// SetMinTxAmount sets the smallest fee-bearing transfer. Admin only.
func (t *Token) SetMinTxAmount(caller common.Address, amount *big.Int) error {
	if !t.access.HasRole(access_control.AdminRole, caller) {
		return ErrMissingRole
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return ErrAmountOverflow
	}
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	t.minTxAmount = value
	return nil
}

// SetFeeManager swaps the reflection engine. Admin only; nil disables
// fee reflection entirely.
func (t *Token) SetFeeManager(caller common.Address, fm FeeManager) error {
	if !t.access.HasRole(access_control.AdminRole, caller) {
		return ErrMissingRole
	}
	t.transferMu.Lock()
	defer t.transferMu.Unlock()
	t.feeManager = fm
	return nil
}

func (t *Token) checkPaused(from common.Address) error {
	t.stateMu.Lock()
	paused := t.paused
	t.stateMu.Unlock()
	if paused && !t.access.HasRole(access_control.BypassPauseRole, from) {
		return ErrPaused
	}
	return nil
}

// feeExempt reports whether a transfer skips reflection: no manager
// wired, a whitelisted party, or the manager's own escrow moves.
func (t *Token) feeExempt(from, to common.Address) bool {
	if t.feeManager == nil {
		return true
	}
	managerAddr := t.feeManager.Address()
	if from == managerAddr || to == managerAddr {
		return true
	}
	return t.access.HasRole(access_control.FeeWhitelistRole, from) ||
		t.access.HasRole(access_control.ReceiverFeeWhitelistRole, to)
}

// transferWithFees runs the two-phase protocol: escrow the dry-run total
// to the manager, reflect for real, then move the net amount. A failed
// wet phase refunds the escrow before reporting the error.
func (t *Token) transferWithFees(from, to common.Address, value *uint256.Int) error {
	t.transferMu.Lock()
	defer t.transferMu.Unlock()

	ctx := context.Background()
	amount := value.ToBig()

	_, dryFee, err := t.feeManager.ReflectFees(ctx, t.address, from, to, amount, true)
	if err != nil {
		return fmt.Errorf("reflect fees (dry): %w", err)
	}
	fee, overflow := uint256.FromBig(dryFee)
	if overflow {
		return ErrAmountOverflow
	}

	// The sender needs fee plus net, which is exactly amount.
	if t.balanceOf(from).Lt(value) {
		return ErrInsufficientBalance
	}
	if !fee.IsZero() {
		if err := t.move(from, t.feeManager.Address(), fee); err != nil {
			return err
		}
	}

	net, _, err := t.feeManager.ReflectFees(ctx, t.address, from, to, amount, false)
	if err != nil {
		if !fee.IsZero() {
			if rerr := t.move(t.feeManager.Address(), from, fee); rerr != nil {
				t.logger.Error("escrow refund failed", zap.Error(rerr))
			}
		}
		return fmt.Errorf("reflect fees: %w", err)
	}

	netValue, overflow := uint256.FromBig(net)
	if overflow {
		return ErrAmountOverflow
	}
	return t.move(from, to, netValue)
}

func (t *Token) balanceOf(addr common.Address) *uint256.Int {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if b, ok := t.balances[addr]; ok {
		return b.Clone()
	}
	return uint256.NewInt(0)
}

func (t *Token) move(from, to common.Address, value *uint256.Int) error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	src, ok := t.balances[from]
	if !ok || src.Lt(value) {
		return ErrInsufficientBalance
	}
	dst, ok := t.balances[to]
	if !ok {
		dst = uint256.NewInt(0)
		t.balances[to] = dst
	}
	src.Sub(src, value)
	dst.Add(dst, value)
	return nil
}

func (t *Token) spendAllowance(owner, spender common.Address, value *uint256.Int) error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	m, ok := t.allowances[owner]
	if !ok {
		return ErrInsufficientAllowance
	}
	allowance, ok := m[spender]
	if !ok || allowance.Lt(value) {
		return ErrInsufficientAllowance
	}
	allowance.Sub(allowance, value)
	return nil
}

func (t *Token) restoreAllowance(owner, spender common.Address, value *uint256.Int) {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	if m, ok := t.allowances[owner]; ok {
		if allowance, ok := m[spender]; ok {
			allowance.Add(allowance, value)
		}
	}
}
