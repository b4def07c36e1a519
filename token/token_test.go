package token

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/wesenditmedia/contracts-sub001/access_control"
	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager"
	dfmShared "github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager/shared"
)

var (
	adminAddr   = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000B1")
	managerAddr = common.HexToAddress("0x00000000000000000000000000000000000000C1")
	aliceAddr   = common.HexToAddress("0x00000000000000000000000000000000000000D1")
	bobAddr     = common.HexToAddress("0x00000000000000000000000000000000000000D2")
	carolAddr   = common.HexToAddress("0x00000000000000000000000000000000000000D3")
)

func newTestToken(t *testing.T, opts ...Option) (*Token, *access_control.Registry) {
	t.Helper()
	acl := access_control.New(adminAddr)
	tok, err := NewToken("WeSendit", "WSI", tokenAddr, adminAddr, big.NewInt(1_000_000_000), acl, opts...)
	require.NoError(t, err)
	return tok, acl
}

// withBurnFeeManager wires a real fee manager carrying one 5% wildcard
// burn fee.
func withBurnFeeManager(t *testing.T, tok *Token, acl *access_control.Registry) *dynamic_fee_manager.Manager {
	t.Helper()
	require.NoError(t, acl.GrantRole(adminAddr, access_control.CallReflectFeesRole, tokenAddr))
	m := dynamic_fee_manager.NewManager(managerAddr, tokenAddr, tok, acl)
	_, err := m.AddFee(adminAddr, dfmShared.WildcardAddress, dfmShared.WildcardAddress,
		big.NewInt(5000), BurnAddress, false, false, false, nil)
	require.NoError(t, err)
	require.NoError(t, tok.SetFeeManager(adminAddr, m))
	return m
}

func TestGenesisSupply(t *testing.T) {
	tok, _ := newTestToken(t)
	require.Equal(t, big.NewInt(1_000_000_000), tok.TotalSupply())
	require.Equal(t, big.NewInt(1_000_000_000), tok.BalanceOf(adminAddr))
	require.Equal(t, "WeSendit", tok.Name())
	require.Equal(t, "WSI", tok.Symbol())
	require.Equal(t, uint8(18), tok.Decimals())
}

func TestPlainTransferWithoutManager(t *testing.T) {
	tok, _ := newTestToken(t)
	require.NoError(t, tok.Transfer(adminAddr, aliceAddr, big.NewInt(1000)))
	require.Equal(t, big.NewInt(1000), tok.BalanceOf(aliceAddr))

	err := tok.Transfer(aliceAddr, bobAddr, big.NewInt(2000))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.Equal(t, big.NewInt(1000), tok.BalanceOf(aliceAddr))

	err = tok.Transfer(aliceAddr, common.Address{}, big.NewInt(1))
	require.ErrorIs(t, err, ErrInvalidParameter)
}

func TestTransferReflectsFees(t *testing.T) {
	tok, acl := newTestToken(t)
	withBurnFeeManager(t, tok, acl)
	require.NoError(t, tok.Transfer(adminAddr, aliceAddr, big.NewInt(1_000_000)))
	// admin holds the admin role, which is not a fee whitelist; the seed
	// transfer above paid 5% too, so fund alice precisely.
	aliceStart := tok.BalanceOf(aliceAddr)

	require.NoError(t, tok.Transfer(aliceAddr, bobAddr, big.NewInt(100_000)))

	require.Equal(t, big.NewInt(95_000), tok.BalanceOf(bobAddr))
	require.Equal(t, new(big.Int).Sub(aliceStart, big.NewInt(100_000)), tok.BalanceOf(aliceAddr))
	require.Equal(t, big.NewInt(5000+50_000), tok.BalanceOf(BurnAddress))
	require.Zero(t, tok.BalanceOf(managerAddr).Sign(), "escrow fully drained")
}

func TestWhitelistSkipsFees(t *testing.T) {
	tok, acl := newTestToken(t)
	withBurnFeeManager(t, tok, acl)
	require.NoError(t, acl.GrantRole(adminAddr, access_control.FeeWhitelistRole, adminAddr))

	require.NoError(t, tok.Transfer(adminAddr, aliceAddr, big.NewInt(100_000)))
	require.Equal(t, big.NewInt(100_000), tok.BalanceOf(aliceAddr))
	require.Zero(t, tok.BalanceOf(BurnAddress).Sign())

	// Receiver-side whitelist works the same way.
	require.NoError(t, acl.GrantRole(adminAddr, access_control.ReceiverFeeWhitelistRole, bobAddr))
	require.NoError(t, tok.Transfer(aliceAddr, bobAddr, big.NewInt(50_000)))
	require.Equal(t, big.NewInt(50_000), tok.BalanceOf(bobAddr))
	require.Zero(t, tok.BalanceOf(BurnAddress).Sign())
}

func TestPauseAndBypass(t *testing.T) {
	tok, acl := newTestToken(t)
	require.ErrorIs(t, tok.SetPaused(aliceAddr, true), ErrMissingRole)
	require.NoError(t, tok.SetPaused(adminAddr, true))

	err := tok.Transfer(adminAddr, aliceAddr, big.NewInt(1))
	require.ErrorIs(t, err, ErrPaused)

	require.NoError(t, acl.GrantRole(adminAddr, access_control.BypassPauseRole, adminAddr))
	require.NoError(t, tok.Transfer(adminAddr, aliceAddr, big.NewInt(1)))

	require.NoError(t, tok.SetPaused(adminAddr, false))
	require.NoError(t, tok.Transfer(aliceAddr, bobAddr, big.NewInt(1)))
}

func TestMinTxAmount(t *testing.T) {
	tok, acl := newTestToken(t)
	withBurnFeeManager(t, tok, acl)
	require.NoError(t, tok.SetMinTxAmount(adminAddr, big.NewInt(1000)))
	require.NoError(t, tok.Transfer(adminAddr, aliceAddr, big.NewInt(10_000)))

	err := tok.Transfer(aliceAddr, bobAddr, big.NewInt(999))
	require.ErrorIs(t, err, ErrBelowMinTxAmount)
	require.NoError(t, tok.Transfer(aliceAddr, bobAddr, big.NewInt(1000)))
}

func TestTransferFromAllowance(t *testing.T) {
	tok, _ := newTestToken(t)
	require.NoError(t, tok.Transfer(adminAddr, aliceAddr, big.NewInt(10_000)))
	require.NoError(t, tok.Approve(aliceAddr, carolAddr, big.NewInt(5000)))

	require.NoError(t, tok.TransferFrom(carolAddr, aliceAddr, bobAddr, big.NewInt(3000)))
	require.Equal(t, big.NewInt(3000), tok.BalanceOf(bobAddr))
	require.Equal(t, big.NewInt(2000), tok.Allowance(aliceAddr, carolAddr))

	err := tok.TransferFrom(carolAddr, aliceAddr, bobAddr, big.NewInt(3000))
	require.ErrorIs(t, err, ErrInsufficientAllowance)

	// A failed transfer restores the allowance it consumed.
	err = tok.TransferFrom(carolAddr, aliceAddr, common.Address{}, big.NewInt(1000))
	require.ErrorIs(t, err, ErrInvalidParameter)
	require.Equal(t, big.NewInt(2000), tok.Allowance(aliceAddr, carolAddr))
}

func TestBurnShrinksSupply(t *testing.T) {
	tok, _ := newTestToken(t)
	require.NoError(t, tok.Burn(adminAddr, big.NewInt(1_000_000)))
	require.Equal(t, big.NewInt(999_000_000), tok.TotalSupply())
	require.Equal(t, big.NewInt(999_000_000), tok.BalanceOf(adminAddr))

	require.ErrorIs(t, tok.Burn(aliceAddr, big.NewInt(1)), ErrInsufficientBalance)
}

// failingWetManager passes the dry phase and fails the wet one.
type failingWetManager struct{}

func (failingWetManager) Address() common.Address { return managerAddr }

func (failingWetManager) ReflectFees(_ context.Context, _, _, _ common.Address, amount *big.Int, dryRun bool) (*big.Int, *big.Int, error) {
	fee := new(big.Int).Div(amount, big.NewInt(10))
	if dryRun {
		return new(big.Int).Sub(amount, fee), fee, nil
	}
	return nil, nil, errors.New("router unavailable")
}

func TestWetPhaseFailureRefundsEscrow(t *testing.T) {
	tok, _ := newTestToken(t)
	require.NoError(t, tok.Transfer(adminAddr, aliceAddr, big.NewInt(10_000)))
	require.NoError(t, tok.SetFeeManager(adminAddr, failingWetManager{}))

	err := tok.Transfer(aliceAddr, bobAddr, big.NewInt(10_000))
	require.Error(t, err)

	// The escrowed fee came back; no balance moved.
	require.Equal(t, big.NewInt(10_000), tok.BalanceOf(aliceAddr))
	require.Zero(t, tok.BalanceOf(bobAddr).Sign())
	require.Zero(t, tok.BalanceOf(managerAddr).Sign())
}
