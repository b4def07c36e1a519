package wesendit_math

import (
	"fmt"
	"math/big"
)

// (2k)! for k = 1..8, enough series depth for sub-nanounit error at
// x = pi/2.
var cosFactorials = []int64{
	2,
	24,
	720,
	40_320,
	3_628_800,
	479_001_600,
	87_178_291_200,
	20_922_789_888_000,
}

// Cos evaluates the cosine power series for a 1e18-scaled angle in
// [0, pi/2]. Angles outside that range must be phase-shifted by the
// caller first; PoolFactor folds the upper half of its domain through
// cos(a) = -cos(pi-a) before calling here.
func Cos(x *big.Int) (*big.Int, error) {
	if x == nil || x.Sign() < 0 {
		return nil, fmt.Errorf("Cos: angle must be non-negative")
	}
	if x.Cmp(HalfPi) > 0 {
		return nil, fmt.Errorf("Cos: angle %s outside [0, pi/2]", x)
	}

	// xx = x^2 / 1e18, keeping the 1e18 scale on every power term.
	xx := new(big.Int).Mul(x, x)
	xx.Div(xx, Scale)

	result := new(big.Int).Set(Scale)
	pow := new(big.Int).Set(Scale)
	term := new(big.Int)
	for k, fact := range cosFactorials {
		pow.Mul(pow, xx)
		pow.Div(pow, Scale)
		term.Div(pow, big.NewInt(fact))
		if k%2 == 0 {
			result.Sub(result, term)
		} else {
			result.Add(result, term)
		}
	}

	// Truncation can land a hair outside [0, 1e18] at the domain edges.
	if result.Sign() < 0 {
		result.SetInt64(0)
	}
	if result.Cmp(Scale) > 0 {
		result.Set(Scale)
	}
	return result, nil
}
