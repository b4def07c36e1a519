package staking_pool

import (
	"math/big"

	"github.com/wesenditmedia/contracts-sub001/staking_pool/shared"
)

// State is a point-in-time copy of the pool's durable state.
type State struct {
	Pool      shared.PoolState
	Positions []*shared.StakingPosition
}

// Snapshot copies the durable state for persistence.
func (p *Pool) Snapshot() *State {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := &State{
		Pool: shared.PoolState{
			AllocatedShares:   new(big.Int).Set(p.allocatedShares),
			TotalStaked:       new(big.Int).Set(p.totalStaked),
			AccRewardPerShare: new(big.Int).Set(p.accRewardPerShare),
			LastRewardTime:    p.lastRewardTime,
			NextPositionId:    p.nextPositionId,
			Paused:            p.paused,
			EmergencyMode:     p.emergencyMode,
		},
		Positions: make([]*shared.StakingPosition, 0, len(p.positions)),
	}
	for _, position := range p.positions {
		s.Positions = append(s.Positions, position.Clone())
	}
	return s
}

// Restore replaces the pool's durable state.
func (p *Pool) Restore(s *State) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocatedShares = new(big.Int).Set(s.Pool.AllocatedShares)
	p.totalStaked = new(big.Int).Set(s.Pool.TotalStaked)
	p.accRewardPerShare = new(big.Int).Set(s.Pool.AccRewardPerShare)
	p.lastRewardTime = s.Pool.LastRewardTime
	p.nextPositionId = s.Pool.NextPositionId
	p.paused = s.Pool.Paused
	p.emergencyMode = s.Pool.EmergencyMode
	p.positions = make(map[uint64]*shared.StakingPosition, len(s.Positions))
	for _, position := range s.Positions {
		p.positions[position.Id] = position.Clone()
	}
	return nil
}
