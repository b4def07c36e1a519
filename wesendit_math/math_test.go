package wesendit_math

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func scaled(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), Scale)
}

func TestPowerEdgeExponents(t *testing.T) {
	unit := Unit(DefaultPrecision)

	out, err := Power(big.NewInt(123_456), big.NewInt(0), DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, unit, out, "exponent 0 must return the unit")

	out, err = Power(big.NewInt(123_456), big.NewInt(1), DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(123_456), out, "exponent 1 must return the base")

	_, err = Power(big.NewInt(-1), big.NewInt(2), DefaultPrecision)
	require.Error(t, err)
}

func TestPowerSequentialFloor(t *testing.T) {
	// 2.0^10 at precision 5: exact, no truncation loss.
	out, err := Power(big.NewInt(200_000), big.NewInt(10), DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(102_400_000), out)

	// 1.00068^4 floors once per step: 100068 -> 100136 -> 100204 -> 100272.
	out, err = Power(big.NewInt(100_068), big.NewInt(4), DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(100_272), out)
}

func TestCosDomain(t *testing.T) {
	out, err := Cos(big.NewInt(0))
	require.NoError(t, err)
	require.Equal(t, Scale, out)

	_, err = Cos(big.NewInt(-1))
	require.Error(t, err)

	_, err = Cos(new(big.Int).Add(HalfPi, big.NewInt(1)))
	require.Error(t, err)
}

func TestCosKnownValues(t *testing.T) {
	tolerance := big.NewInt(10_000_000) // 1e-11 of the scale

	// cos(pi/3) = 0.5
	third := new(big.Int).Div(Pi, big.NewInt(3))
	out, err := Cos(third)
	require.NoError(t, err)
	diff := new(big.Int).Sub(out, big.NewInt(500_000_000_000_000_000))
	require.True(t, diff.CmpAbs(tolerance) <= 0, "cos(pi/3) = %s", out)

	// cos(pi/2) = 0
	out, err = Cos(HalfPi)
	require.NoError(t, err)
	require.True(t, out.CmpAbs(tolerance) <= 0, "cos(pi/2) = %s", out)
}

func TestCosMonotonicOnDomain(t *testing.T) {
	steps := int64(50)
	prev := new(big.Int).Set(Scale)
	for i := int64(1); i <= steps; i++ {
		x := new(big.Int).Mul(HalfPi, big.NewInt(i))
		x.Div(x, big.NewInt(steps))
		out, err := Cos(x)
		require.NoError(t, err)
		require.True(t, out.Cmp(prev) <= 0, "cos must not increase on [0, pi/2], step %d", i)
		prev = out
	}
}

func TestPoolFactorEndpoints(t *testing.T) {
	max := DefaultMaxPoolBalance

	out, err := PoolFactor(big.NewInt(0), max)
	require.NoError(t, err)
	require.Equal(t, scaled(100), out, "empty pool sits at the curve maximum")

	out, err = PoolFactor(max, max)
	require.NoError(t, err)
	require.Equal(t, scaled(PercentFloor), out, "full pool sits at the floor")

	// Balances beyond the domain clamp to the floor.
	over := new(big.Int).Mul(max, big.NewInt(3))
	out, err = PoolFactor(over, max)
	require.NoError(t, err)
	require.Equal(t, scaled(PercentFloor), out)
}

func TestPoolFactorMidpoint(t *testing.T) {
	max := DefaultMaxPoolBalance
	half := new(big.Int).Div(max, big.NewInt(2))

	out, err := PoolFactor(half, max)
	require.NoError(t, err)

	// (15 + 100)/2 = 57.5 percent.
	want := new(big.Int).Mul(big.NewInt(575), new(big.Int).Div(Scale, big.NewInt(10)))
	diff := new(big.Int).Sub(out, want)
	require.True(t, diff.CmpAbs(big.NewInt(1_000_000_000)) <= 0, "midpoint factor = %s", out)
}

func TestPoolFactorMonotonicNonIncreasing(t *testing.T) {
	max := DefaultMaxPoolBalance
	steps := int64(100)

	prev, err := PoolFactor(big.NewInt(0), max)
	require.NoError(t, err)
	for i := int64(1); i <= steps; i++ {
		balance := new(big.Int).Mul(max, big.NewInt(i))
		balance.Div(balance, big.NewInt(steps))
		out, err := PoolFactor(balance, max)
		require.NoError(t, err)
		require.True(t, out.Cmp(prev) <= 0, "pool factor must not increase with balance, step %d", i)
		prev = out
	}
}

func TestApyAprZeroDuration(t *testing.T) {
	factor := scaled(100)

	apy, err := Apy(0, factor, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
	require.NoError(t, err)
	require.Zero(t, apy.Sign())

	apr, err := Apr(0, factor, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
	require.NoError(t, err)
	require.Zero(t, apr.Sign())
}

func TestApyKnownSmallDurations(t *testing.T) {
	full := scaled(100)

	// One day at full factor: two periods of 68/100000 each, no
	// compounding gain visible yet.
	apy, err := Apy(1, full, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(136), apy)

	apy, err = Apy(2, full, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(272), apy)

	// At the floor factor the per-period rate floors to 10.
	floor := scaled(PercentFloor)
	apy, err = Apy(1, floor, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, big.NewInt(20), apy)
}

func TestApyFullDurationRange(t *testing.T) {
	apy, err := Apy(DefaultMaxDuration, scaled(100), DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
	require.NoError(t, err)

	// (1 + 68/100000)^728 - 1 is a little over 64%; sequential flooring
	// may shave a few units but never adds.
	require.True(t, apy.Cmp(big.NewInt(63_000)) > 0, "apy = %s", apy)
	require.True(t, apy.Cmp(big.NewInt(65_000)) < 0, "apy = %s", apy)

	// Durations beyond the maximum clamp.
	clamped, err := Apy(DefaultMaxDuration*10, scaled(100), DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
	require.NoError(t, err)
	require.Equal(t, apy, clamped)
}

func TestApyDominatesApr(t *testing.T) {
	factors := []*big.Int{scaled(PercentFloor), scaled(40), scaled(75), scaled(100)}
	durations := []uint64{1, 2, 7, 30, 91, 182, 270, 364}

	for _, factor := range factors {
		for _, duration := range durations {
			apy, err := Apy(duration, factor, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
			require.NoError(t, err)
			apr, err := Apr(duration, factor, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
			require.NoError(t, err)
			require.True(t, apy.Cmp(apr) >= 0,
				"apy %s < apr %s at duration %d factor %s", apy, apr, duration, factor)
		}
	}
}

func TestYieldCurvesMonotonic(t *testing.T) {
	factor := scaled(80)
	prevApy := big.NewInt(-1)
	prevApr := big.NewInt(-1)
	for duration := uint64(0); duration <= DefaultMaxDuration; duration += 7 {
		apy, err := Apy(duration, factor, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
		require.NoError(t, err)
		apr, err := Apr(duration, factor, DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
		require.NoError(t, err)
		require.True(t, apy.Cmp(prevApy) >= 0, "apy must not decrease with duration")
		require.True(t, apr.Cmp(prevApr) >= 0, "apr must not decrease with duration")
		prevApy, prevApr = apy, apr
	}

	// Monotonic in factor as well.
	prevApy = big.NewInt(-1)
	for pct := int64(PercentFloor); pct <= 100; pct += 5 {
		apy, err := Apy(182, scaled(pct), DefaultMaxDuration, DefaultCompoundInterval, DefaultPrecision)
		require.NoError(t, err)
		require.True(t, apy.Cmp(prevApy) >= 0, "apy must not decrease with factor")
		prevApy = apy
	}
}
