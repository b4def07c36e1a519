package store

import (
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager"
	dfmShared "github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager/shared"
	"github.com/wesenditmedia/contracts-sub001/staking_pool"
	spShared "github.com/wesenditmedia/contracts-sub001/staking_pool/shared"
)

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad integer %q", s)
	}
	return v, nil
}

// SaveFeeState replaces the persisted fee manager snapshot.
func (s *Store) SaveFeeState(state *dynamic_fee_manager.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM fee_entries`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM fee_amounts`); err != nil {
		return err
	}
	for position, e := range state.Entries {
		_, err := tx.Exec(
			`INSERT INTO fee_entries (position, id, from_addr, to_addr, percentage, destination, do_callback, do_liquify, do_swap, action_amount)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			position, e.Id.Hex(), e.From.Hex(), e.To.Hex(), e.Percentage.String(), e.Destination.Hex(),
			boolInt(e.DoCallback), boolInt(e.DoLiquify), boolInt(e.DoSwapForStable), e.SwapOrLiquifyAmount.String(),
		)
		if err != nil {
			return err
		}
	}
	for id, amount := range state.Amounts {
		if _, err := tx.Exec(`INSERT INTO fee_amounts (id, amount) VALUES (?, ?)`, id.Hex(), amount.String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadFeeState reads the fee manager snapshot, entries in their stored
// order. An empty database yields an empty state.
func (s *Store) LoadFeeState() (*dynamic_fee_manager.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := &dynamic_fee_manager.State{Amounts: make(map[common.Hash]*big.Int)}

	rows, err := s.db.Query(
		`SELECT id, from_addr, to_addr, percentage, destination, do_callback, do_liquify, do_swap, action_amount
		 FROM fee_entries ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, from, to, percentage, destination, actionAmount string
		var doCallback, doLiquify, doSwap int
		if err := rows.Scan(&id, &from, &to, &percentage, &destination, &doCallback, &doLiquify, &doSwap, &actionAmount); err != nil {
			return nil, err
		}
		pct, err := parseBig(percentage)
		if err != nil {
			return nil, err
		}
		threshold, err := parseBig(actionAmount)
		if err != nil {
			return nil, err
		}
		state.Entries = append(state.Entries, dfmShared.FeeEntry{
			Id:                  common.HexToHash(id),
			From:                common.HexToAddress(from),
			To:                  common.HexToAddress(to),
			Percentage:          pct,
			Destination:         common.HexToAddress(destination),
			DoCallback:          doCallback != 0,
			DoLiquify:           doLiquify != 0,
			DoSwapForStable:     doSwap != 0,
			SwapOrLiquifyAmount: threshold,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	amountRows, err := s.db.Query(`SELECT id, amount FROM fee_amounts`)
	if err != nil {
		return nil, err
	}
	defer amountRows.Close()
	for amountRows.Next() {
		var id, amount string
		if err := amountRows.Scan(&id, &amount); err != nil {
			return nil, err
		}
		v, err := parseBig(amount)
		if err != nil {
			return nil, err
		}
		state.Amounts[common.HexToHash(id)] = v
	}
	return state, amountRows.Err()
}

// SaveStakingState replaces the persisted staking pool snapshot.
func (s *Store) SaveStakingState(state *staking_pool.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM staking_positions`); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM pool_state`); err != nil {
		return err
	}
	for _, p := range state.Positions {
		_, err := tx.Exec(
			`INSERT INTO staking_positions (id, owner, amount, duration_days, shares, reward_debt, claimed, last_claimed, created, auto_compound, unstaked)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Id, p.Owner.Hex(), p.Amount.String(), p.DurationDays, p.Shares.String(), p.RewardDebt.String(),
			p.ClaimedRewards.String(), p.LastClaimedAt.Unix(), p.CreatedAt.Unix(),
			boolInt(p.IsAutoCompound), boolInt(p.IsUnstaked),
		)
		if err != nil {
			return err
		}
	}
	_, err = tx.Exec(
		`INSERT INTO pool_state (id, allocated_shares, total_staked, acc_reward, last_reward, next_position, paused, emergency)
		 VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		state.Pool.AllocatedShares.String(), state.Pool.TotalStaked.String(), state.Pool.AccRewardPerShare.String(),
		state.Pool.LastRewardTime.Unix(), state.Pool.NextPositionId, boolInt(state.Pool.Paused), boolInt(state.Pool.EmergencyMode),
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// LoadStakingState reads the staking pool snapshot. Returns nil when no
// snapshot has been saved yet.
func (s *Store) LoadStakingState() (*staking_pool.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &staking_pool.State{}
	row := s.db.QueryRow(`SELECT allocated_shares, total_staked, acc_reward, last_reward, next_position, paused, emergency FROM pool_state WHERE id = 1`)
	var allocated, totalStaked, acc string
	var lastReward, nextPosition int64
	var paused, emergency int
	if err := row.Scan(&allocated, &totalStaked, &acc, &lastReward, &nextPosition, &paused, &emergency); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	var err error
	if state.Pool.AllocatedShares, err = parseBig(allocated); err != nil {
		return nil, err
	}
	if state.Pool.TotalStaked, err = parseBig(totalStaked); err != nil {
		return nil, err
	}
	if state.Pool.AccRewardPerShare, err = parseBig(acc); err != nil {
		return nil, err
	}
	state.Pool.LastRewardTime = time.Unix(lastReward, 0).UTC()
	state.Pool.NextPositionId = uint64(nextPosition)
	state.Pool.Paused = paused != 0
	state.Pool.EmergencyMode = emergency != 0

	rows, err := s.db.Query(
		`SELECT id, owner, amount, duration_days, shares, reward_debt, claimed, last_claimed, created, auto_compound, unstaked
		 FROM staking_positions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, durationDays, lastClaimed, created int64
		var owner, amount, shares, debt, claimed string
		var autoCompound, unstaked int
		if err := rows.Scan(&id, &owner, &amount, &durationDays, &shares, &debt, &claimed, &lastClaimed, &created, &autoCompound, &unstaked); err != nil {
			return nil, err
		}
		p := &spShared.StakingPosition{
			Id:             uint64(id),
			Owner:          common.HexToAddress(owner),
			DurationDays:   uint64(durationDays),
			LastClaimedAt:  time.Unix(lastClaimed, 0).UTC(),
			CreatedAt:      time.Unix(created, 0).UTC(),
			IsAutoCompound: autoCompound != 0,
			IsUnstaked:     unstaked != 0,
		}
		if p.Amount, err = parseBig(amount); err != nil {
			return nil, err
		}
		if p.Shares, err = parseBig(shares); err != nil {
			return nil, err
		}
		if p.RewardDebt, err = parseBig(debt); err != nil {
			return nil, err
		}
		if p.ClaimedRewards, err = parseBig(claimed); err != nil {
			return nil, err
		}
		state.Positions = append(state.Positions, p)
	}
	return state, rows.Err()
}
