package wesendit_math

import (
	"errors"
	"math/big"
)

// Power raises a fixed-point base to an integer exponent, rescaling by
// 10^precision after every multiplication. The loop multiplies
// sequentially instead of squaring so every intermediate value is floored
// exactly once per step, matching the original word-arithmetic trace.
//
// exponent = 0 returns 10^precision, exponent = 1 returns base unchanged.
func Power(base, exponent *big.Int, precision uint) (*big.Int, error) {
	if base == nil || exponent == nil {
		return nil, errors.New("Power: nil argument")
	}
	if base.Sign() < 0 || exponent.Sign() < 0 {
		return nil, errors.New("Power: negative argument")
	}

	unit := Unit(precision)
	if exponent.Sign() == 0 {
		return unit, nil
	}

	result := new(big.Int).Set(base)
	one := big.NewInt(1)
	for i := new(big.Int).Set(one); i.Cmp(exponent) < 0; i.Add(i, one) {
		result.Mul(result, base)
		result.Div(result, unit)
	}
	return result, nil
}
