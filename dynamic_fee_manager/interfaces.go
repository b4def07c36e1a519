package dynamic_fee_manager

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TokenLedger is the token collaborator the manager moves collected fees
// with. The fee manager only ever spends its own balance, filled by the
// two-phase escrow transfer of the token's Transfer path.
type TokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) *big.Int
	Approve(owner, spender common.Address, amount *big.Int) error
}

// Router is the AMM collaborator behind the liquify and swap-for-stable
// actions. Failures are fatal to the triggering reflection.
type Router interface {
	Address() common.Address
	SwapExactTokensForNative(ctx context.Context, amountIn, amountOutMin *big.Int, path []common.Address, recipient common.Address, deadline time.Time) (*big.Int, error)
	SwapExactTokensForTokens(ctx context.Context, amountIn, amountOutMin *big.Int, path []common.Address, recipient common.Address, deadline time.Time) (*big.Int, error)
	AddLiquidity(ctx context.Context, token common.Address, amountToken, amountNative, amountTokenMin, amountNativeMin *big.Int, recipient common.Address, deadline time.Time) error
}

// FeeReceiver is the synchronous callback a fee destination may register.
// A failing or slow receiver never aborts the enclosing reflection; the
// error is recorded and the fee accounting stands.
type FeeReceiver interface {
	OnFeeReceived(ctx context.Context, token, from, to common.Address, amount *big.Int) error
}

// AccessControl gates the manager's entry points.
type AccessControl interface {
	HasRole(role common.Hash, account common.Address) bool
}
