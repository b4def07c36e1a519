// Package wesendit_math implements the deterministic fixed-point primitives
// behind the pool factor curve and the staking yield curves. All functions
// use floor (truncating) integer division so results match the EVM word
// arithmetic of the original deployment bit for bit.
package wesendit_math

import (
	"errors"
	"math/big"
)

const (
	// SecondsPerDay is the length of one duration unit.
	SecondsPerDay = 86_400

	// PercentFloor is the lower bound of the pool factor curve (15%).
	PercentFloor = 15

	// DefaultPrecision is the fixed-point precision of the yield curves.
	// Unit(DefaultPrecision) equals the fee percentage denominator, so a
	// yield value of 100_000 means 100%.
	DefaultPrecision = 5

	// DefaultMaxDuration is the longest stakable duration in days.
	DefaultMaxDuration = 364

	// DefaultCompoundInterval is the number of compounding periods over a
	// full DefaultMaxDuration, one per 12 hours.
	DefaultCompoundInterval = 728

	// BaseROI is the simple interest in percent earned over a full
	// duration at a pool factor of 100%.
	BaseROI = 50
)

var (
	// Scale is the 1e18 fixed-point scale shared by token amounts, curve
	// angles and pool factors.
	Scale = new(big.Int).SetUint64(1_000_000_000_000_000_000)

	// Pi and HalfPi are 1e18-scaled radians.
	Pi     = new(big.Int).SetUint64(3_141_592_653_589_793_238)
	HalfPi = new(big.Int).SetUint64(1_570_796_326_794_896_619)

	// DefaultMaxPoolBalance is the curve domain end: 120,000,000 tokens
	// at 1e18 decimals.
	DefaultMaxPoolBalance = new(big.Int).Mul(big.NewInt(120_000_000), Scale)

	big2   = big.NewInt(2)
	big10  = big.NewInt(10)
	big100 = big.NewInt(100)
)

// Unit returns 10^precision, the fixed-point one for Power and the yield
// curves.
func Unit(precision uint) *big.Int {
	return new(big.Int).Exp(big10, new(big.Int).SetUint64(uint64(precision)), nil)
}

// mulDiv computes x*y/denominator with floor rounding.
func mulDiv(x, y, denominator *big.Int) (*big.Int, error) {
	if denominator.Sign() == 0 {
		return nil, errors.New("mulDiv: division by zero")
	}
	prod := new(big.Int).Mul(x, y)
	return prod.Div(prod, denominator), nil
}
