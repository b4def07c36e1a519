package shared

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// MinDurationDays and MaxDurationDays bound the stakable lock.
	MinDurationDays = 1
	MaxDurationDays = 364

	// CompoundInterval is the number of reward periods over a full
	// MaxDurationDays, one per twelve hours.
	CompoundInterval = 728

	// PeriodSeconds is the length of one reward period.
	PeriodSeconds = 43_200

	// AccPrecision scales the global reward-per-share accumulator.
	AccPrecision = 1_000_000_000_000 // 1e12
)

var (
	ErrInvalidParameter     = errors.New("invalid parameter")
	ErrInvalidState         = errors.New("invalid position state")
	ErrUnknownPosition      = errors.New("unknown position")
	ErrPoolCapacityExceeded = errors.New("pool share capacity exceeded")
	ErrMissingRole          = errors.New("caller is missing required role")
	ErrStakingPaused        = errors.New("staking is paused")
	ErrNotEmergencyMode     = errors.New("emergency mode is not enabled")
	ErrNotOwner             = errors.New("caller does not own the position")
)

// StakingPosition is one stake. Once IsUnstaked is set the position is
// immutable and excluded from pending-reward queries; positions are never
// physically removed.
type StakingPosition struct {
	Id             uint64
	Owner          common.Address
	Amount         *big.Int
	DurationDays   uint64
	Shares         *big.Int
	RewardDebt     *big.Int
	ClaimedRewards *big.Int
	LastClaimedAt  time.Time
	CreatedAt      time.Time
	IsAutoCompound bool
	IsUnstaked     bool
}

// LockEnd returns the instant the position's lock expires.
func (p *StakingPosition) LockEnd() time.Time {
	return p.CreatedAt.Add(time.Duration(p.DurationDays) * 24 * time.Hour)
}

// Clone deep-copies the position.
func (p *StakingPosition) Clone() *StakingPosition {
	c := *p
	c.Amount = new(big.Int).Set(p.Amount)
	c.Shares = new(big.Int).Set(p.Shares)
	c.RewardDebt = new(big.Int).Set(p.RewardDebt)
	c.ClaimedRewards = new(big.Int).Set(p.ClaimedRewards)
	return &c
}

// PoolState is the global accumulator state persisted across restarts.
type PoolState struct {
	AllocatedShares   *big.Int
	TotalStaked       *big.Int
	AccRewardPerShare *big.Int
	LastRewardTime    time.Time
	NextPositionId    uint64
	Paused            bool
	EmergencyMode     bool
}
