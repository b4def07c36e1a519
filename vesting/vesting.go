// Package vesting implements the multi-beneficiary vesting wallet: one
// global start/cliff/duration schedule, per-beneficiary allocations,
// linear release after the cliff.
package vesting

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wesenditmedia/contracts-sub001/access_control"
)

var (
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrMissingRole         = errors.New("caller is missing required role")
	ErrUnknownBeneficiary  = errors.New("unknown beneficiary")
	ErrScheduleStarted     = errors.New("vesting schedule already started")
	ErrNothingToRelease    = errors.New("nothing to release")
	ErrDuplicateAllocation = errors.New("beneficiary already allocated")
)

// TokenLedger moves released tokens out of the wallet's account.
type TokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) *big.Int
}

// AccessControl gates beneficiary management.
type AccessControl interface {
	HasRole(role common.Hash, account common.Address) bool
}

type allocation struct {
	total    *big.Int
	released *big.Int
}

// Wallet is the vesting wallet. Released never exceeds vested; schedule
// arithmetic is pure and floor-divided.
type Wallet struct {
	mu sync.Mutex

	address common.Address
	token   TokenLedger
	access  AccessControl

	start    time.Time
	cliff    time.Duration
	duration time.Duration

	allocations map[common.Address]*allocation

	clock  func() time.Time
	logger *zap.Logger
}

// Option configures a Wallet.
type Option func(*Wallet)

// WithLogger replaces the default nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Wallet) { w.logger = l }
}

// WithClock replaces the wall clock, used by tests.
func WithClock(clock func() time.Time) Option {
	return func(w *Wallet) { w.clock = clock }
}

// NewWallet creates a vesting wallet. address is the wallet's token
// account, which must be funded with at least the sum of all
// allocations before the first release.
func NewWallet(address common.Address, token TokenLedger, access AccessControl, start time.Time, cliff, duration time.Duration, opts ...Option) (*Wallet, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", ErrInvalidParameter)
	}
	if cliff < 0 || cliff > duration {
		return nil, fmt.Errorf("%w: cliff outside [0, duration]", ErrInvalidParameter)
	}
	w := &Wallet{
		address:     address,
		token:       token,
		access:      access,
		start:       start,
		cliff:       cliff,
		duration:    duration,
		allocations: make(map[common.Address]*allocation),
		clock:       time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Address returns the wallet's token account.
func (w *Wallet) Address() common.Address { return w.address }

// Start returns the schedule start.
func (w *Wallet) Start() time.Time { return w.start }

// AddBeneficiary allocates amount to addr. Admin only, and only before
// the schedule starts.
func (w *Wallet) AddBeneficiary(caller, addr common.Address, amount *big.Int) error {
	if !w.access.HasRole(access_control.AdminRole, caller) {
		return ErrMissingRole
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidParameter)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.clock().Before(w.start) {
		return ErrScheduleStarted
	}
	if _, ok := w.allocations[addr]; ok {
		return ErrDuplicateAllocation
	}
	w.allocations[addr] = &allocation{
		total:    new(big.Int).Set(amount),
		released: new(big.Int),
	}
	w.logger.Info("beneficiary added",
		zap.Stringer("beneficiary", addr),
		zap.String("amount", amount.String()),
	)
	return nil
}

// Allocation returns the total and released amounts of addr.
func (w *Wallet) Allocation(addr common.Address) (total, released *big.Int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.allocations[addr]
	if !ok {
		return nil, nil, ErrUnknownBeneficiary
	}
	return new(big.Int).Set(a.total), new(big.Int).Set(a.released), nil
}

// vestedAt is the linear schedule: zero before the cliff, everything at
// start+duration, floored linear interpolation in between.
func (w *Wallet) vestedAt(a *allocation, at time.Time) *big.Int {
	if at.Before(w.start.Add(w.cliff)) {
		return new(big.Int)
	}
	end := w.start.Add(w.duration)
	if !at.Before(end) {
		return new(big.Int).Set(a.total)
	}
	elapsed := big.NewInt(int64(at.Sub(w.start) / time.Second))
	total := big.NewInt(int64(w.duration / time.Second))
	vested := new(big.Int).Mul(a.total, elapsed)
	return vested.Div(vested, total)
}

// Releasable returns what addr could release right now.
func (w *Wallet) Releasable(addr common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.allocations[addr]
	if !ok {
		return nil, ErrUnknownBeneficiary
	}
	return new(big.Int).Sub(w.vestedAt(a, w.clock()), a.released), nil
}

// Release transfers addr's releasable amount out of the wallet account.
func (w *Wallet) Release(addr common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	a, ok := w.allocations[addr]
	if !ok {
		return nil, ErrUnknownBeneficiary
	}
	amount := new(big.Int).Sub(w.vestedAt(a, w.clock()), a.released)
	if amount.Sign() <= 0 {
		return nil, ErrNothingToRelease
	}
	if err := w.token.Transfer(w.address, addr, amount); err != nil {
		return nil, fmt.Errorf("release vested tokens: %w", err)
	}
	a.released.Add(a.released, amount)
	w.logger.Info("vested tokens released",
		zap.Stringer("beneficiary", addr),
		zap.String("amount", amount.String()),
	)
	return amount, nil
}
