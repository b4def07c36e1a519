// Package dynamic_fee_manager implements the fee rule set and the
// reflection engine that routes transaction fees to their destinations:
// plain transfer, burn, threshold-triggered swap-and-liquify and
// swap-for-stable, and synchronous receiver callbacks.
package dynamic_fee_manager

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wesenditmedia/contracts-sub001/access_control"
	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager/shared"
)

// Manager holds the ordered fee entry list and the per-bucket accumulator
// map. One mutex serializes every mutating call; the inFlight latch
// rejects reentrant mutation while an AMM action is being dispatched.
type Manager struct {
	mu       sync.Mutex
	inFlight bool

	address      common.Address
	tokenAddress common.Address

	entries []shared.FeeEntry
	amounts map[common.Hash]*big.Int

	router        Router
	stableToken   common.Address
	wrappedNative common.Address

	token     TokenLedger
	access    AccessControl
	receivers map[common.Address]FeeReceiver

	callbackTimeout time.Duration
	deadline        time.Duration

	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger replaces the default nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithRecorder replaces the default NopRecorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithRouter wires the AMM router at construction time.
func WithRouter(r Router) Option {
	return func(m *Manager) { m.router = r }
}

// WithStableToken sets the stable token for swap-for-stable actions.
func WithStableToken(addr common.Address) Option {
	return func(m *Manager) { m.stableToken = addr }
}

// WithWrappedNative sets the intermediate hop of the swap paths.
func WithWrappedNative(addr common.Address) Option {
	return func(m *Manager) { m.wrappedNative = addr }
}

// WithCallbackTimeout bounds fee-receiver callbacks.
func WithCallbackTimeout(d time.Duration) Option {
	return func(m *Manager) { m.callbackTimeout = d }
}

// NewManager creates a fee manager. address is the manager's own escrow
// account on the token ledger, tokenAddress the managed token.
func NewManager(
	address common.Address,
	tokenAddress common.Address,
	token TokenLedger,
	access AccessControl,
	opts ...Option,
) *Manager {
	m := &Manager{
		address:         address,
		tokenAddress:    tokenAddress,
		amounts:         make(map[common.Hash]*big.Int),
		token:           token,
		access:          access,
		receivers:       make(map[common.Address]FeeReceiver),
		callbackTimeout: 5 * time.Second,
		deadline:        time.Minute,
		logger:          zap.NewNop(),
		recorder:        NopRecorder{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Address returns the manager's escrow account.
func (m *Manager) Address() common.Address { return m.address }

// AddFee appends a fee entry and returns its index. Admin only. The
// percentage is scaled by shared.FeeDivider; the aggregate percentage any
// single (from, to) pair could collect must stay at or below 100%.
func (m *Manager) AddFee(
	caller common.Address,
	from, to common.Address,
	percentage *big.Int,
	destination common.Address,
	doCallback, doLiquify, doSwapForStable bool,
	swapOrLiquifyAmount *big.Int,
) (int, error) {
	if !m.access.HasRole(access_control.AdminRole, caller) {
		return 0, shared.ErrMissingRole
	}
	if percentage == nil || percentage.Sign() <= 0 || percentage.Cmp(big.NewInt(shared.FeeDivider)) > 0 {
		return 0, fmt.Errorf("%w: percentage must be in (0, %d]", shared.ErrInvalidParameter, shared.FeeDivider)
	}
	if swapOrLiquifyAmount == nil {
		swapOrLiquifyAmount = new(big.Int)
	}
	if swapOrLiquifyAmount.Sign() < 0 {
		return 0, fmt.Errorf("%w: negative swapOrLiquifyAmount", shared.ErrInvalidParameter)
	}
	if doLiquify && doSwapForStable {
		return 0, fmt.Errorf("%w: liquify and swap-for-stable are exclusive", shared.ErrInvalidParameter)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return 0, shared.ErrReentrantCall
	}

	entry := shared.FeeEntry{
		Id:                  shared.FeeEntryId(destination, doLiquify, doSwapForStable, swapOrLiquifyAmount),
		From:                from,
		To:                  to,
		Percentage:          new(big.Int).Set(percentage),
		Destination:         destination,
		DoCallback:          doCallback,
		DoLiquify:           doLiquify,
		DoSwapForStable:     doSwapForStable,
		SwapOrLiquifyAmount: new(big.Int).Set(swapOrLiquifyAmount),
	}
	if err := m.checkFeeLimit(&entry); err != nil {
		return 0, err
	}

	m.entries = append(m.entries, entry)
	index := len(m.entries) - 1
	m.logger.Info("fee entry added",
		zap.Int("index", index),
		zap.Stringer("id", entry.Id),
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.String("percentage", percentage.String()),
		zap.Stringer("destination", destination),
		zap.Bool("doCallback", doCallback),
		zap.Bool("doLiquify", doLiquify),
		zap.Bool("doSwapForStable", doSwapForStable),
		zap.String("swapOrLiquifyAmount", swapOrLiquifyAmount.String()),
	)
	return index, nil
}

// checkFeeLimit rejects an entry whose percentage, summed with every
// existing entry that could co-match some (from, to) pair, exceeds 100%.
// The co-match test is an over-approximation and may reject configurations
// no single pair could actually overcharge on; it never admits one that
// could.
func (m *Manager) checkFeeLimit(entry *shared.FeeEntry) error {
	limit := big.NewInt(shared.FeeDivider)
	total := new(big.Int).Set(entry.Percentage)
	for i := range m.entries {
		e := &m.entries[i]
		if matcherCompatible(e.From, entry.From) && matcherCompatible(e.To, entry.To) {
			total.Add(total, e.Percentage)
		}
	}
	if total.Cmp(limit) > 0 {
		return shared.ErrFeeExceedsLimit
	}
	return nil
}

func matcherCompatible(a, b common.Address) bool {
	return a == shared.WildcardAddress || b == shared.WildcardAddress || a == b
}

// RemoveFee deletes the entry at index by swapping the last entry into
// its slot. Indices are not stable across removals. Admin only. The
// entry's accumulator bucket is kept; other entries may share it.
func (m *Manager) RemoveFee(caller common.Address, index int) error {
	if !m.access.HasRole(access_control.AdminRole, caller) {
		return shared.ErrMissingRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return shared.ErrReentrantCall
	}
	if index < 0 || index >= len(m.entries) {
		return shared.ErrIndexOutOfBounds
	}

	removed := m.entries[index]
	last := len(m.entries) - 1
	m.entries[index] = m.entries[last]
	m.entries = m.entries[:last]

	m.logger.Info("fee entry removed",
		zap.Int("index", index),
		zap.Stringer("id", removed.Id),
	)
	return nil
}

// GetFee returns a copy of the entry at index.
func (m *Manager) GetFee(index int) (shared.FeeEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.entries) {
		return shared.FeeEntry{}, shared.ErrIndexOutOfBounds
	}
	entry := m.entries[index]
	entry.Percentage = new(big.Int).Set(entry.Percentage)
	entry.SwapOrLiquifyAmount = new(big.Int).Set(entry.SwapOrLiquifyAmount)
	return entry, nil
}

// FeeCount returns the number of fee entries.
func (m *Manager) FeeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Fees returns a copy of the ordered entry list.
func (m *Manager) Fees() []shared.FeeEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]shared.FeeEntry, len(m.entries))
	for i, e := range m.entries {
		e.Percentage = new(big.Int).Set(e.Percentage)
		e.SwapOrLiquifyAmount = new(big.Int).Set(e.SwapOrLiquifyAmount)
		out[i] = e
	}
	return out
}

// FeeAmount returns the accumulated, not yet consumed amount of the
// bucket id.
func (m *Manager) FeeAmount(id common.Hash) *big.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount, ok := m.amounts[id]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

// CalculateFees previews the fee for a transfer without touching state.
// All matching entries' percentages sum; no-match returns (amount, 0).
func (m *Manager) CalculateFees(from, to common.Address, amount *big.Int) (net, totalFee *big.Int, err error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, fmt.Errorf("%w: negative amount", shared.ErrInvalidParameter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sumFees(from, to, amount)
}

func (m *Manager) sumFees(from, to common.Address, amount *big.Int) (net, totalFee *big.Int, err error) {
	sumPercentage := new(big.Int)
	for i := range m.entries {
		if m.entries[i].Matches(from, to) {
			sumPercentage.Add(sumPercentage, m.entries[i].Percentage)
		}
	}
	totalFee = sumPercentage.Mul(sumPercentage, amount)
	totalFee.Div(totalFee, big.NewInt(shared.FeeDivider))
	net = new(big.Int).Sub(amount, totalFee)
	return net, totalFee, nil
}

// SetRouter updates the AMM router. Admin only.
func (m *Manager) SetRouter(caller common.Address, router Router) error {
	if !m.access.HasRole(access_control.AdminRole, caller) {
		return shared.ErrMissingRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return shared.ErrReentrantCall
	}
	m.router = router
	if router != nil {
		m.logger.Info("router updated", zap.Stringer("router", router.Address()))
	}
	return nil
}

// SetStableToken updates the swap-for-stable output token. Admin only.
func (m *Manager) SetStableToken(caller, addr common.Address) error {
	if !m.access.HasRole(access_control.AdminRole, caller) {
		return shared.ErrMissingRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return shared.ErrReentrantCall
	}
	m.stableToken = addr
	m.logger.Info("stable token updated", zap.Stringer("stable", addr))
	return nil
}

// RegisterFeeReceiver attaches a callback to a destination address. Admin
// only. A nil receiver unregisters.
func (m *Manager) RegisterFeeReceiver(caller, destination common.Address, receiver FeeReceiver) error {
	if !m.access.HasRole(access_control.AdminRole, caller) {
		return shared.ErrMissingRole
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if receiver == nil {
		delete(m.receivers, destination)
		return nil
	}
	m.receivers[destination] = receiver
	return nil
}
