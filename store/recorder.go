package store

import (
	"time"

	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager"
	"github.com/wesenditmedia/contracts-sub001/staking_pool"
)

// The Store doubles as the event recorder of both engines.
var (
	_ dynamic_fee_manager.Recorder = (*Store)(nil)
	_ staking_pool.Recorder        = (*Store)(nil)
)

func (s *Store) RecordFeeReflected(evt *dynamic_fee_manager.FeeReflectedEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO fee_reflections (timestamp, id, from_addr, to_addr, destination, amount) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), evt.Id.Hex(), evt.From.Hex(), evt.To.Hex(), evt.Destination.Hex(), evt.Amount.String(),
	)
	return err
}

func (s *Store) RecordSwapAndLiquify(evt *dynamic_fee_manager.SwapAndLiquifyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO swap_liquifies (timestamp, id, swapped_token, native, added_token) VALUES (?, ?, ?, ?, ?)`,
		time.Now().Unix(), evt.Id.Hex(), evt.SwappedToken.String(), evt.Native.String(), evt.AddedToken.String(),
	)
	return err
}

func (s *Store) RecordSwapForStable(evt *dynamic_fee_manager.SwapForStableEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO swap_stables (timestamp, id, amount_in, stable_out, destination) VALUES (?, ?, ?, ?, ?)`,
		time.Now().Unix(), evt.Id.Hex(), evt.AmountIn.String(), evt.StableOut.String(), evt.Destination.Hex(),
	)
	return err
}

func (s *Store) RecordCallbackFailure(evt *dynamic_fee_manager.CallbackFailureEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO callback_failures (timestamp, id, destination, reason) VALUES (?, ?, ?, ?)`,
		time.Now().Unix(), evt.Id.Hex(), evt.Destination.Hex(), evt.Reason,
	)
	return err
}

func (s *Store) RecordStake(evt *staking_pool.StakeEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO stakes (timestamp, position_id, owner, amount, duration_days, shares, auto_compound) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		time.Now().Unix(), evt.PositionId, evt.Owner.Hex(), evt.Amount.String(), evt.DurationDays, evt.Shares.String(), boolInt(evt.AutoCompound),
	)
	return err
}

func (s *Store) RecordReward(evt *staking_pool.RewardEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO rewards (timestamp, position_id, owner, kind, amount) VALUES (?, ?, ?, ?, ?)`,
		time.Now().Unix(), evt.PositionId, evt.Owner.Hex(), evt.Kind, evt.Amount.String(),
	)
	return err
}
