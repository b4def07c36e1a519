package wesendit_math

import (
	"errors"
	"math/big"
)

// factorUnits rescales a 1e18-scaled percent factor onto the yield curve
// unit, so a factor of 100e18 becomes exactly Unit(precision).
func factorUnits(factor *big.Int, precision uint) (*big.Int, error) {
	if factor == nil || factor.Sign() < 0 {
		return nil, errors.New("yield curve: factor must be non-negative")
	}
	denominator := new(big.Int).Mul(big100, Scale)
	return mulDiv(factor, Unit(precision), denominator)
}

// Apy returns the compounded yield earned over duration days at the given
// pool factor, scaled by 10^precision (100_000 = 100% at the default
// precision).
//
// The per-period rate is x = unit + factorUnits*BaseROI/(compoundInterval*100)
// and the period count y = compoundInterval*duration/maxDuration, so a
// position compounds once per interval for the staked fraction of the full
// duration. Every division floors, which underestimates continuous
// compounding slightly; the pool keeps that margin.
func Apy(duration uint64, factor *big.Int, maxDuration, compoundInterval uint64, precision uint) (*big.Int, error) {
	if maxDuration == 0 || compoundInterval == 0 {
		return nil, errors.New("Apy: maxDuration and compoundInterval must be positive")
	}
	if duration > maxDuration {
		duration = maxDuration
	}

	units, err := factorUnits(factor, precision)
	if err != nil {
		return nil, err
	}

	unit := Unit(precision)
	rate := new(big.Int).Mul(units, big.NewInt(BaseROI))
	rate.Div(rate, new(big.Int).SetUint64(compoundInterval*100))

	x := new(big.Int).Add(unit, rate)
	y := new(big.Int).SetUint64(compoundInterval * duration / maxDuration)

	compounded, err := Power(x, y, precision)
	if err != nil {
		return nil, err
	}
	return compounded.Sub(compounded, unit), nil
}
