package shared

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Constants and common types shared by the fee manager and the store.
const (
	// FeeDivider scales fee percentages: 100_000 equals 100%.
	FeeDivider = 100_000
)

var (
	// WildcardAddress matches any sender or receiver in a fee entry.
	WildcardAddress = common.Address{}

	// BurnAddress is the conventional dead address fees are burned to.
	BurnAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")
)

var (
	ErrInvalidParameter   = errors.New("invalid parameter")
	ErrIndexOutOfBounds   = errors.New("fee entry index out of bounds")
	ErrFeeExceedsLimit    = errors.New("fee percentages exceed 100%")
	ErrMissingRole        = errors.New("caller is missing required role")
	ErrTransferFailed     = errors.New("fee transfer failed")
	ErrExternalCallFailed = errors.New("external call failed")
	ErrReentrantCall      = errors.New("reentrant call")
)

// FeeEntry is one fee rule. From and To are matchers (WildcardAddress
// matches everything), Percentage is scaled by FeeDivider, Destination
// receives the collected amount, and SwapOrLiquifyAmount is the
// accumulator threshold triggering the liquify / swap-for-stable action.
type FeeEntry struct {
	Id                  common.Hash
	From                common.Address
	To                  common.Address
	Percentage          *big.Int
	Destination         common.Address
	DoCallback          bool
	DoLiquify           bool
	DoSwapForStable     bool
	SwapOrLiquifyAmount *big.Int
}

// Matches reports whether the entry applies to a transfer between from
// and to. Matching is additive across entries, there is no priority.
func (e *FeeEntry) Matches(from, to common.Address) bool {
	return (e.From == WildcardAddress || e.From == from) &&
		(e.To == WildcardAddress || e.To == to)
}

// FeeEntryId derives the deterministic identifier of a fee entry from the
// fields that define its action bucket. Entries sharing destination,
// liquify flag, swap flag and threshold share one accumulator even when
// their matchers differ, so several logical rules can fund one trigger.
// A nil threshold hashes as zero.
func FeeEntryId(destination common.Address, doLiquify, doSwapForStable bool, swapOrLiquifyAmount *big.Int) common.Hash {
	if swapOrLiquifyAmount == nil {
		swapOrLiquifyAmount = new(big.Int)
	}
	flag := func(b bool) byte {
		if b {
			return 1
		}
		return 0
	}
	buf := make([]byte, 0, common.AddressLength+2+32)
	buf = append(buf, destination.Bytes()...)
	buf = append(buf, flag(doLiquify), flag(doSwapForStable))
	buf = append(buf, common.BigToHash(swapOrLiquifyAmount).Bytes()...)
	return crypto.Keccak256Hash(buf)
}
