package staking_pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// StakeEvent records a new position.
type StakeEvent struct {
	PositionId   uint64
	Owner        common.Address
	Amount       *big.Int
	DurationDays uint64
	Shares       *big.Int
	AutoCompound bool
}

// RewardEvent records a claim, a compound or the reward part of an
// unstake.
type RewardEvent struct {
	PositionId uint64
	Owner      common.Address
	Kind       string // "claim", "compound", "unstake"
	Amount     *big.Int
}

// Recorder persists staking events. The store package provides a SQLite
// implementation; NopRecorder drops everything.
type Recorder interface {
	RecordStake(evt *StakeEvent) error
	RecordReward(evt *RewardEvent) error
}

type NopRecorder struct{}

func (NopRecorder) RecordStake(*StakeEvent) error   { return nil }
func (NopRecorder) RecordReward(*RewardEvent) error { return nil }
