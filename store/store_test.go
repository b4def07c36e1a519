package store

import (
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager"
	dfmShared "github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager/shared"
	"github.com/wesenditmedia/contracts-sub001/staking_pool"
	spShared "github.com/wesenditmedia/contracts-sub001/staking_pool/shared"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "wesendit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFeeStateRoundTrip(t *testing.T) {
	s := openTestStore(t)

	dest := common.HexToAddress("0x00000000000000000000000000000000000000E1")
	threshold := big.NewInt(1_000_000)
	id := dfmShared.FeeEntryId(dest, true, false, threshold)
	state := &dynamic_fee_manager.State{
		Entries: []dfmShared.FeeEntry{
			{
				Id:                  id,
				From:                common.HexToAddress("0x00000000000000000000000000000000000000D1"),
				To:                  dfmShared.WildcardAddress,
				Percentage:          big.NewInt(2500),
				Destination:         dest,
				DoLiquify:           true,
				SwapOrLiquifyAmount: threshold,
			},
			{
				Id:                  dfmShared.FeeEntryId(dfmShared.BurnAddress, false, false, new(big.Int)),
				From:                dfmShared.WildcardAddress,
				To:                  dfmShared.WildcardAddress,
				Percentage:          big.NewInt(5000),
				Destination:         dfmShared.BurnAddress,
				SwapOrLiquifyAmount: new(big.Int),
			},
		},
		Amounts: map[common.Hash]*big.Int{id: big.NewInt(123_456)},
	}
	require.NoError(t, s.SaveFeeState(state))

	loaded, err := s.LoadFeeState()
	require.NoError(t, err)
	require.Equal(t, state.Entries, loaded.Entries, "entry order must survive")
	require.Equal(t, state.Amounts, loaded.Amounts)

	// Snapshots replace, not append.
	state.Entries = state.Entries[:1]
	require.NoError(t, s.SaveFeeState(state))
	loaded, err = s.LoadFeeState()
	require.NoError(t, err)
	require.Len(t, loaded.Entries, 1)
}

func TestStakingStateRoundTrip(t *testing.T) {
	s := openTestStore(t)

	empty, err := s.LoadStakingState()
	require.NoError(t, err)
	require.Nil(t, empty, "no snapshot saved yet")

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	state := &staking_pool.State{
		Pool: spShared.PoolState{
			AllocatedShares:   big.NewInt(164_000),
			TotalStaked:       big.NewInt(100_000),
			AccRewardPerShare: big.NewInt(680_000_000),
			LastRewardTime:    now,
			NextPositionId:    2,
			Paused:            true,
		},
		Positions: []*spShared.StakingPosition{
			{
				Id:             1,
				Owner:          common.HexToAddress("0x00000000000000000000000000000000000000D1"),
				Amount:         big.NewInt(100_000),
				DurationDays:   364,
				Shares:         big.NewInt(164_000),
				RewardDebt:     big.NewInt(0),
				ClaimedRewards: big.NewInt(42),
				LastClaimedAt:  now,
				CreatedAt:      now.Add(-24 * time.Hour),
				IsAutoCompound: true,
			},
		},
	}
	require.NoError(t, s.SaveStakingState(state))

	loaded, err := s.LoadStakingState()
	require.NoError(t, err)
	require.True(t, loaded.Pool.LastRewardTime.Equal(state.Pool.LastRewardTime))
	loaded.Pool.LastRewardTime = state.Pool.LastRewardTime
	require.Equal(t, state.Pool, loaded.Pool)

	require.Len(t, loaded.Positions, 1)
	require.True(t, loaded.Positions[0].CreatedAt.Equal(state.Positions[0].CreatedAt))
	require.True(t, loaded.Positions[0].LastClaimedAt.Equal(state.Positions[0].LastClaimedAt))
	loaded.Positions[0].CreatedAt = state.Positions[0].CreatedAt
	loaded.Positions[0].LastClaimedAt = state.Positions[0].LastClaimedAt
	require.Equal(t, state.Positions, loaded.Positions)
}

func TestRecorderInserts(t *testing.T) {
	s := openTestStore(t)
	id := common.HexToHash("0xabcdef")

	require.NoError(t, s.RecordFeeReflected(&dynamic_fee_manager.FeeReflectedEvent{
		Id:          id,
		From:        common.HexToAddress("0x1"),
		To:          common.HexToAddress("0x2"),
		Destination: common.HexToAddress("0x3"),
		Amount:      big.NewInt(50_000),
	}))
	require.NoError(t, s.RecordSwapAndLiquify(&dynamic_fee_manager.SwapAndLiquifyEvent{
		Id:           id,
		SwappedToken: big.NewInt(500),
		Native:       big.NewInt(1000),
		AddedToken:   big.NewInt(500),
	}))
	require.NoError(t, s.RecordSwapForStable(&dynamic_fee_manager.SwapForStableEvent{
		Id:          id,
		AmountIn:    big.NewInt(1000),
		StableOut:   big.NewInt(995),
		Destination: common.HexToAddress("0x4"),
	}))
	require.NoError(t, s.RecordCallbackFailure(&dynamic_fee_manager.CallbackFailureEvent{
		Id:          id,
		Destination: common.HexToAddress("0x5"),
		Reason:      "receiver reverted",
	}))
	require.NoError(t, s.RecordStake(&staking_pool.StakeEvent{
		PositionId:   1,
		Owner:        common.HexToAddress("0x6"),
		Amount:       big.NewInt(1000),
		DurationDays: 30,
		Shares:       big.NewInt(1100),
	}))
	require.NoError(t, s.RecordReward(&staking_pool.RewardEvent{
		PositionId: 1,
		Owner:      common.HexToAddress("0x6"),
		Kind:       "claim",
		Amount:     big.NewInt(7),
	}))

	for _, table := range []string{"fee_reflections", "swap_liquifies", "swap_stables", "callback_failures", "stakes", "rewards"} {
		var count int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&count))
		require.Equal(t, 1, count, table)
	}
}
