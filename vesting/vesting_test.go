package vesting

import (
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/wesenditmedia/contracts-sub001/access_control"
)

var (
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	walletAddr = common.HexToAddress("0x00000000000000000000000000000000000000B3")
	aliceAddr  = common.HexToAddress("0x00000000000000000000000000000000000000D1")
	bobAddr    = common.HexToAddress("0x00000000000000000000000000000000000000D2")
)

type ledgerMock struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
}

func newLedgerMock() *ledgerMock {
	return &ledgerMock{balances: make(map[common.Address]*big.Int)}
}

func (l *ledgerMock) Transfer(from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	src, ok := l.balances[from]
	if !ok || src.Cmp(amount) < 0 {
		return errors.New("insufficient balance")
	}
	src.Sub(src, amount)
	dst, ok := l.balances[to]
	if !ok {
		dst = new(big.Int)
		l.balances[to] = dst
	}
	dst.Add(dst, amount)
	return nil
}

func (l *ledgerMock) BalanceOf(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestWallet(t *testing.T) (*Wallet, *ledgerMock, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	ledger := newLedgerMock()
	ledger.balances[walletAddr] = big.NewInt(10_000_000)
	acl := access_control.New(adminAddr)

	// Schedule starts one day out, 30-day cliff, vests over 360 days.
	start := clk.Now().Add(24 * time.Hour)
	w, err := NewWallet(walletAddr, ledger, acl, start, 30*24*time.Hour, 360*24*time.Hour, WithClock(clk.Now))
	require.NoError(t, err)
	return w, ledger, clk
}

func TestNewWalletValidation(t *testing.T) {
	acl := access_control.New(adminAddr)
	_, err := NewWallet(walletAddr, newLedgerMock(), acl, time.Now(), 0, 0)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = NewWallet(walletAddr, newLedgerMock(), acl, time.Now(), 2*time.Hour, time.Hour)
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestAddBeneficiaryRules(t *testing.T) {
	w, _, clk := newTestWallet(t)

	require.ErrorIs(t, w.AddBeneficiary(aliceAddr, aliceAddr, big.NewInt(100)), ErrMissingRole)
	require.ErrorIs(t, w.AddBeneficiary(adminAddr, aliceAddr, big.NewInt(0)), ErrInvalidParameter)

	require.NoError(t, w.AddBeneficiary(adminAddr, aliceAddr, big.NewInt(3_600_000)))
	require.ErrorIs(t, w.AddBeneficiary(adminAddr, aliceAddr, big.NewInt(1)), ErrDuplicateAllocation)

	// Once the schedule starts the allocation set is frozen.
	clk.advance(25 * time.Hour)
	require.ErrorIs(t, w.AddBeneficiary(adminAddr, bobAddr, big.NewInt(1)), ErrScheduleStarted)
}

func TestLinearRelease(t *testing.T) {
	w, ledger, clk := newTestWallet(t)
	require.NoError(t, w.AddBeneficiary(adminAddr, aliceAddr, big.NewInt(3_600_000)))

	// Before the cliff nothing is releasable.
	clk.advance(24*time.Hour + 29*24*time.Hour)
	releasable, err := w.Releasable(aliceAddr)
	require.NoError(t, err)
	require.Zero(t, releasable.Sign())
	_, err = w.Release(aliceAddr)
	require.ErrorIs(t, err, ErrNothingToRelease)

	// At the cliff the full elapsed fraction unlocks: 30/360 of the
	// total.
	clk.advance(24 * time.Hour)
	releasable, err = w.Releasable(aliceAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000), releasable)

	paid, err := w.Release(aliceAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(300_000), paid)
	require.Equal(t, big.NewInt(300_000), ledger.BalanceOf(aliceAddr))

	// Released amounts do not release twice.
	releasable, err = w.Releasable(aliceAddr)
	require.NoError(t, err)
	require.Zero(t, releasable.Sign())

	// Halfway through: 180/360 vested, 30/360 already out.
	clk.advance(150 * 24 * time.Hour)
	paid, err = w.Release(aliceAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_500_000), paid)

	// Past the end everything vests.
	clk.advance(400 * 24 * time.Hour)
	paid, err = w.Release(aliceAddr)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(1_800_000), paid)

	total, released, err := w.Allocation(aliceAddr)
	require.NoError(t, err)
	require.Equal(t, total, released, "released never exceeds vested")
}

func TestUnknownBeneficiary(t *testing.T) {
	w, _, _ := newTestWallet(t)
	_, err := w.Releasable(bobAddr)
	require.ErrorIs(t, err, ErrUnknownBeneficiary)
	_, err = w.Release(bobAddr)
	require.ErrorIs(t, err, ErrUnknownBeneficiary)
	_, _, err = w.Allocation(bobAddr)
	require.ErrorIs(t, err, ErrUnknownBeneficiary)
}
