package wesendit_math

import (
	"errors"
	"math/big"
)

// Apr returns the simple (non-compounded) yield earned over duration days
// at the given pool factor, scaled by 10^precision. It is the linear
// counterpart of Apy and is computed from the same floored per-period
// rate times the same period count, so Apy(d) >= Apr(d) holds for every
// duration under truncating division.
func Apr(duration uint64, factor *big.Int, maxDuration, compoundInterval uint64, precision uint) (*big.Int, error) {
	if maxDuration == 0 || compoundInterval == 0 {
		return nil, errors.New("Apr: maxDuration and compoundInterval must be positive")
	}
	if duration > maxDuration {
		duration = maxDuration
	}

	units, err := factorUnits(factor, precision)
	if err != nil {
		return nil, err
	}

	rate := new(big.Int).Mul(units, big.NewInt(BaseROI))
	rate.Div(rate, new(big.Int).SetUint64(compoundInterval*100))

	periods := new(big.Int).SetUint64(compoundInterval * duration / maxDuration)
	return rate.Mul(rate, periods), nil
}
