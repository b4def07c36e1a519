package wesendit_math

import (
	"errors"
	"math/big"
)

// PoolFactor maps a pool balance onto the cosine incentive curve and
// returns a percentage scaled by 1e18. An empty pool yields the curve
// maximum (100e18), a pool at maxBalance yields the floor (15e18), and
// the value is monotonic non-increasing in between.
//
// The angle sweeps [0, pi] across the balance domain. The cosine series
// is only valid up to pi/2, so the upper half is folded back through
// cos(a) = -cos(pi-a): the reflected cosine is first added to the scale
// unit and the doubled fraction subtracted afterwards, keeping every
// intermediate value non-negative.
func PoolFactor(balance, maxBalance *big.Int) (*big.Int, error) {
	if balance == nil || maxBalance == nil {
		return nil, errors.New("PoolFactor: nil argument")
	}
	if maxBalance.Sign() <= 0 {
		return nil, errors.New("PoolFactor: maxBalance must be positive")
	}
	if balance.Sign() < 0 {
		return nil, errors.New("PoolFactor: balance must be non-negative")
	}

	clamped := balance
	if clamped.Cmp(maxBalance) > 0 {
		clamped = maxBalance
	}

	// angle = pi * balance / maxBalance
	angle, err := mulDiv(Pi, clamped, maxBalance)
	if err != nil {
		return nil, err
	}

	// fraction = (1 + cos(angle)) / 2 on the 1e18 scale.
	fraction := new(big.Int)
	if angle.Cmp(HalfPi) <= 0 {
		c, err := Cos(angle)
		if err != nil {
			return nil, err
		}
		fraction.Add(Scale, c)
		fraction.Div(fraction, big2)
	} else {
		reflected := new(big.Int).Sub(Pi, angle)
		c, err := Cos(reflected)
		if err != nil {
			return nil, err
		}
		fraction.Sub(Scale, c)
		fraction.Div(fraction, big2)
	}

	// Floor-weight the raw fraction into [15, 100] percent at 1e17, then
	// rescale to the 1e18 percent convention of the callers.
	f := fraction.Div(fraction, big10)
	result := new(big.Int).Mul(f, big.NewInt(100-PercentFloor))
	floor := new(big.Int).Mul(big.NewInt(PercentFloor), new(big.Int).Div(Scale, big10))
	result.Add(result, floor)
	return result.Mul(result, big10), nil
}
