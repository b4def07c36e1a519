// Package staking_pool implements the time-locked, share-based staking
// ledger. Shares are principal scaled by a duration-weighted multiplier
// from the yield curve; rewards accrue through a global reward-per-share
// accumulator advanced once per twelve-hour period.
package staking_pool

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wesenditmedia/contracts-sub001/access_control"
	"github.com/wesenditmedia/contracts-sub001/staking_pool/shared"
	wesenditMath "github.com/wesenditmedia/contracts-sub001/wesendit_math"
)

// TokenLedger moves principal and rewards between stakers and the pool's
// token account.
type TokenLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
	BalanceOf(addr common.Address) *big.Int
}

// AccessControl gates the pool's owner-only switches.
type AccessControl interface {
	HasRole(role common.Hash, account common.Address) bool
}

// Pool is the staking ledger. One mutex serializes every operation so a
// caller observes either the fully-pre-call or fully-post-call state.
type Pool struct {
	mu sync.Mutex

	address common.Address
	token   TokenLedger
	access  AccessControl

	positions      map[uint64]*shared.StakingPosition
	nextPositionId uint64

	allocatedShares   *big.Int
	totalStaked       *big.Int
	accRewardPerShare *big.Int
	lastRewardTime    time.Time

	paused        bool
	emergencyMode bool

	shareCapacity  *big.Int
	maxPoolBalance *big.Int

	clock    func() time.Time
	logger   *zap.Logger
	recorder Recorder
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger replaces the default nop logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithRecorder replaces the default NopRecorder.
func WithRecorder(r Recorder) Option {
	return func(p *Pool) { p.recorder = r }
}

// WithClock replaces the wall clock, used by tests to step periods.
func WithClock(clock func() time.Time) Option {
	return func(p *Pool) { p.clock = clock }
}

// WithShareCapacity overrides the default total share capacity.
func WithShareCapacity(capacity *big.Int) Option {
	return func(p *Pool) { p.shareCapacity = new(big.Int).Set(capacity) }
}

// WithMaxPoolBalance overrides the pool factor curve domain end.
func WithMaxPoolBalance(max *big.Int) Option {
	return func(p *Pool) { p.maxPoolBalance = new(big.Int).Set(max) }
}

// NewPool creates a staking pool. address is the pool's token account
// holding staked principal and the reward reserve.
func NewPool(address common.Address, token TokenLedger, access AccessControl, opts ...Option) *Pool {
	p := &Pool{
		address:           address,
		token:             token,
		access:            access,
		positions:         make(map[uint64]*shared.StakingPosition),
		allocatedShares:   new(big.Int),
		totalStaked:       new(big.Int),
		accRewardPerShare: new(big.Int),
		shareCapacity:     new(big.Int).Mul(big.NewInt(240_000_000), wesenditMath.Scale),
		maxPoolBalance:    new(big.Int).Set(wesenditMath.DefaultMaxPoolBalance),
		clock:             time.Now,
		logger:            zap.NewNop(),
		recorder:          NopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.lastRewardTime = p.clock()
	return p
}

// Address returns the pool's token account.
func (p *Pool) Address() common.Address { return p.address }

// PoolFactor returns the current pool factor, a 1e18-scaled percent
// driven by total staked principal.
func (p *Pool) PoolFactor() (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return wesenditMath.PoolFactor(p.totalStaked, p.maxPoolBalance)
}

// Apy returns the compounded yield for duration days at the current pool
// factor, scaled by 1e5.
func (p *Pool) Apy(durationDays uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.apyLocked(durationDays)
}

// Apr returns the simple-interest yield for duration days at the current
// pool factor, scaled by 1e5.
func (p *Pool) Apr(durationDays uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	factor, err := wesenditMath.PoolFactor(p.totalStaked, p.maxPoolBalance)
	if err != nil {
		return nil, err
	}
	return wesenditMath.Apr(durationDays, factor, shared.MaxDurationDays, shared.CompoundInterval, wesenditMath.DefaultPrecision)
}

func (p *Pool) apyLocked(durationDays uint64) (*big.Int, error) {
	factor, err := wesenditMath.PoolFactor(p.totalStaked, p.maxPoolBalance)
	if err != nil {
		return nil, err
	}
	return wesenditMath.Apy(durationDays, factor, shared.MaxDurationDays, shared.CompoundInterval, wesenditMath.DefaultPrecision)
}

// perPeriodRewardRate is the x - unit term of the yield curve at the
// current factor: the per-period yield every share earns, on the 1e5
// unit scale.
func (p *Pool) perPeriodRewardRate() (*big.Int, error) {
	factor, err := wesenditMath.PoolFactor(p.totalStaked, p.maxPoolBalance)
	if err != nil {
		return nil, err
	}
	unit := wesenditMath.Unit(wesenditMath.DefaultPrecision)
	units := new(big.Int).Mul(factor, unit)
	units.Div(units, new(big.Int).Mul(big.NewInt(100), wesenditMath.Scale))
	rate := units.Mul(units, big.NewInt(wesenditMath.BaseROI))
	return rate.Div(rate, big.NewInt(shared.CompoundInterval*100)), nil
}

// accDelta converts elapsed periods into accumulator growth on the
// AccPrecision scale.
func accDelta(rate *big.Int, elapsedPeriods int64) *big.Int {
	delta := new(big.Int).Mul(rate, big.NewInt(elapsedPeriods))
	delta.Mul(delta, big.NewInt(shared.AccPrecision))
	return delta.Div(delta, wesenditMath.Unit(wesenditMath.DefaultPrecision))
}

// UpdatePool advances the reward-per-share accumulator to the current
// period. Idempotent within a period.
func (p *Pool) UpdatePool() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updatePoolLocked()
}

func (p *Pool) updatePoolLocked() error {
	now := p.clock()
	elapsed := int64(now.Sub(p.lastRewardTime) / (shared.PeriodSeconds * time.Second))
	if elapsed <= 0 {
		return nil
	}
	rate, err := p.perPeriodRewardRate()
	if err != nil {
		return err
	}
	p.accRewardPerShare.Add(p.accRewardPerShare, accDelta(rate, elapsed))
	p.lastRewardTime = p.lastRewardTime.Add(time.Duration(elapsed) * shared.PeriodSeconds * time.Second)
	return nil
}

// projectedAcc returns the accumulator as UpdatePool would leave it,
// without mutating anything.
func (p *Pool) projectedAcc() (*big.Int, error) {
	now := p.clock()
	elapsed := int64(now.Sub(p.lastRewardTime) / (shared.PeriodSeconds * time.Second))
	if elapsed <= 0 {
		return new(big.Int).Set(p.accRewardPerShare), nil
	}
	rate, err := p.perPeriodRewardRate()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Add(p.accRewardPerShare, accDelta(rate, elapsed)), nil
}

// sharesFor computes the duration-weighted share allocation of a
// principal amount at the current factor.
func (p *Pool) sharesFor(amount *big.Int, durationDays uint64) (*big.Int, error) {
	apy, err := p.apyLocked(durationDays)
	if err != nil {
		return nil, err
	}
	unit := wesenditMath.Unit(wesenditMath.DefaultPrecision)
	multiplier := new(big.Int).Add(unit, apy)
	shares := multiplier.Mul(multiplier, amount)
	return shares.Div(shares, unit), nil
}

func rewardDebt(shares, acc *big.Int) *big.Int {
	debt := new(big.Int).Mul(shares, acc)
	return debt.Div(debt, big.NewInt(shared.AccPrecision))
}

// Stake locks amount for durationDays and returns the new position id.
// Principal moves from owner into the pool's token account.
func (p *Pool) Stake(owner common.Address, amount *big.Int, durationDays uint64, autoCompound bool) (uint64, error) {
	if amount == nil || amount.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", shared.ErrInvalidParameter)
	}
	if durationDays < shared.MinDurationDays || durationDays > shared.MaxDurationDays {
		return 0, fmt.Errorf("%w: duration %d outside [%d, %d] days",
			shared.ErrInvalidParameter, durationDays, shared.MinDurationDays, shared.MaxDurationDays)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.paused {
		return 0, shared.ErrStakingPaused
	}
	if err := p.updatePoolLocked(); err != nil {
		return 0, err
	}

	shares, err := p.sharesFor(amount, durationDays)
	if err != nil {
		return 0, err
	}
	allocated := new(big.Int).Add(p.allocatedShares, shares)
	if allocated.Cmp(p.shareCapacity) > 0 {
		return 0, shared.ErrPoolCapacityExceeded
	}

	if err := p.token.Transfer(owner, p.address, amount); err != nil {
		return 0, fmt.Errorf("stake principal: %w", err)
	}

	now := p.clock()
	p.nextPositionId++
	position := &shared.StakingPosition{
		Id:             p.nextPositionId,
		Owner:          owner,
		Amount:         new(big.Int).Set(amount),
		DurationDays:   durationDays,
		Shares:         shares,
		RewardDebt:     rewardDebt(shares, p.accRewardPerShare),
		ClaimedRewards: new(big.Int),
		CreatedAt:      now,
		LastClaimedAt:  now,
		IsAutoCompound: autoCompound,
	}
	p.positions[position.Id] = position
	p.allocatedShares = allocated
	p.totalStaked.Add(p.totalStaked, amount)

	p.logger.Info("position staked",
		zap.Uint64("id", position.Id),
		zap.Stringer("owner", owner),
		zap.String("amount", amount.String()),
		zap.Uint64("durationDays", durationDays),
		zap.String("shares", shares.String()),
		zap.Bool("autoCompound", autoCompound),
	)
	if err := p.recorder.RecordStake(&StakeEvent{
		PositionId:   position.Id,
		Owner:        owner,
		Amount:       new(big.Int).Set(amount),
		DurationDays: durationDays,
		Shares:       new(big.Int).Set(shares),
		AutoCompound: autoCompound,
	}); err != nil {
		p.logger.Warn("record stake", zap.Error(err))
	}
	return position.Id, nil
}

// Position returns a copy of the position.
func (p *Pool) Position(id uint64) (*shared.StakingPosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	position, ok := p.positions[id]
	if !ok {
		return nil, shared.ErrUnknownPosition
	}
	return position.Clone(), nil
}

// PendingRewards returns the rewards the position has accrued but not
// claimed or compounded, projected to the current period without mutating
// state. Unstaked positions accrue nothing.
func (p *Pool) PendingRewards(id uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	position, ok := p.positions[id]
	if !ok {
		return nil, shared.ErrUnknownPosition
	}
	if position.IsUnstaked {
		return new(big.Int), nil
	}
	acc, err := p.projectedAcc()
	if err != nil {
		return nil, err
	}
	return new(big.Int).Sub(rewardDebt(position.Shares, acc), position.RewardDebt), nil
}

// pendingLocked assumes updatePoolLocked already ran this period.
func (p *Pool) pendingLocked(position *shared.StakingPosition) *big.Int {
	return new(big.Int).Sub(rewardDebt(position.Shares, p.accRewardPerShare), position.RewardDebt)
}

// ClaimRewards pays the position's pending rewards out of the pool
// account. Auto-compounding positions cannot claim; they fold instead.
func (p *Pool) ClaimRewards(caller common.Address, id uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	position, ok := p.positions[id]
	if !ok {
		return nil, shared.ErrUnknownPosition
	}
	if position.Owner != caller {
		return nil, shared.ErrNotOwner
	}
	if position.IsUnstaked || position.IsAutoCompound {
		return nil, shared.ErrInvalidState
	}
	if err := p.updatePoolLocked(); err != nil {
		return nil, err
	}

	pending := p.pendingLocked(position)
	if pending.Sign() > 0 {
		if err := p.token.Transfer(p.address, position.Owner, pending); err != nil {
			return nil, fmt.Errorf("pay rewards: %w", err)
		}
	}
	position.RewardDebt = rewardDebt(position.Shares, p.accRewardPerShare)
	position.ClaimedRewards.Add(position.ClaimedRewards, pending)
	position.LastClaimedAt = p.clock()

	p.logger.Info("rewards claimed",
		zap.Uint64("id", id),
		zap.String("amount", pending.String()),
	)
	if err := p.recorder.RecordReward(&RewardEvent{
		PositionId: id,
		Owner:      position.Owner,
		Kind:       "claim",
		Amount:     new(big.Int).Set(pending),
	}); err != nil {
		p.logger.Warn("record claim", zap.Error(err))
	}
	return pending, nil
}

// Compound folds the position's pending rewards into principal and
// shares. Only auto-compounding positions compound.
func (p *Pool) Compound(caller common.Address, id uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	position, ok := p.positions[id]
	if !ok {
		return nil, shared.ErrUnknownPosition
	}
	if position.Owner != caller {
		return nil, shared.ErrNotOwner
	}
	if position.IsUnstaked || !position.IsAutoCompound {
		return nil, shared.ErrInvalidState
	}
	if err := p.updatePoolLocked(); err != nil {
		return nil, err
	}

	pending := p.pendingLocked(position)
	if pending.Sign() > 0 {
		extraShares, err := p.sharesFor(pending, position.DurationDays)
		if err != nil {
			return nil, err
		}
		allocated := new(big.Int).Add(p.allocatedShares, extraShares)
		if allocated.Cmp(p.shareCapacity) > 0 {
			return nil, shared.ErrPoolCapacityExceeded
		}
		position.Amount.Add(position.Amount, pending)
		position.Shares.Add(position.Shares, extraShares)
		p.allocatedShares = allocated
		p.totalStaked.Add(p.totalStaked, pending)
	}
	position.RewardDebt = rewardDebt(position.Shares, p.accRewardPerShare)
	position.LastClaimedAt = p.clock()

	p.logger.Info("position compounded",
		zap.Uint64("id", id),
		zap.String("amount", pending.String()),
	)
	if err := p.recorder.RecordReward(&RewardEvent{
		PositionId: id,
		Owner:      position.Owner,
		Kind:       "compound",
		Amount:     new(big.Int).Set(pending),
	}); err != nil {
		p.logger.Warn("record compound", zap.Error(err))
	}
	return pending, nil
}

// Unstake pays out principal plus pending rewards once the lock has
// elapsed, marks the position unstaked and frees its shares. A position
// unstakes exactly once.
func (p *Pool) Unstake(caller common.Address, id uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	position, ok := p.positions[id]
	if !ok {
		return nil, shared.ErrUnknownPosition
	}
	if position.Owner != caller {
		return nil, shared.ErrNotOwner
	}
	if position.IsUnstaked {
		return nil, fmt.Errorf("%w: already unstaked", shared.ErrInvalidState)
	}
	if p.clock().Before(position.LockEnd()) {
		return nil, fmt.Errorf("%w: lock has not elapsed", shared.ErrInvalidState)
	}
	if err := p.updatePoolLocked(); err != nil {
		return nil, err
	}

	pending := p.pendingLocked(position)
	payout := new(big.Int).Add(position.Amount, pending)
	if err := p.token.Transfer(p.address, position.Owner, payout); err != nil {
		return nil, fmt.Errorf("pay out principal: %w", err)
	}
	p.releaseLocked(position)
	position.RewardDebt = rewardDebt(position.Shares, p.accRewardPerShare)
	position.ClaimedRewards.Add(position.ClaimedRewards, pending)
	position.LastClaimedAt = p.clock()

	p.logger.Info("position unstaked",
		zap.Uint64("id", id),
		zap.String("payout", payout.String()),
	)
	if err := p.recorder.RecordReward(&RewardEvent{
		PositionId: id,
		Owner:      position.Owner,
		Kind:       "unstake",
		Amount:     new(big.Int).Set(pending),
	}); err != nil {
		p.logger.Warn("record unstake", zap.Error(err))
	}
	return payout, nil
}

// EmergencyUnstake returns the principal immediately, forfeiting rewards
// and ignoring the lock. Only available while emergency mode is enabled.
func (p *Pool) EmergencyUnstake(caller common.Address, id uint64) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.emergencyMode {
		return nil, shared.ErrNotEmergencyMode
	}
	position, ok := p.positions[id]
	if !ok {
		return nil, shared.ErrUnknownPosition
	}
	if position.Owner != caller {
		return nil, shared.ErrNotOwner
	}
	if position.IsUnstaked {
		return nil, fmt.Errorf("%w: already unstaked", shared.ErrInvalidState)
	}

	principal := new(big.Int).Set(position.Amount)
	if err := p.token.Transfer(p.address, position.Owner, principal); err != nil {
		return nil, fmt.Errorf("pay out principal: %w", err)
	}
	p.releaseLocked(position)

	p.logger.Warn("position emergency unstaked",
		zap.Uint64("id", id),
		zap.String("principal", principal.String()),
	)
	return principal, nil
}

// releaseLocked marks the position unstaked and returns its shares and
// principal to the pool totals.
func (p *Pool) releaseLocked(position *shared.StakingPosition) {
	position.IsUnstaked = true
	p.allocatedShares.Sub(p.allocatedShares, position.Shares)
	p.totalStaked.Sub(p.totalStaked, position.Amount)
}

// SetPaused toggles new stakes. Admin only.
func (p *Pool) SetPaused(caller common.Address, paused bool) error {
	if !p.access.HasRole(access_control.AdminRole, caller) {
		return shared.ErrMissingRole
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = paused
	p.logger.Info("staking pause switched", zap.Bool("paused", paused))
	return nil
}

// SetEmergencyMode toggles emergency unstaking. Admin only.
func (p *Pool) SetEmergencyMode(caller common.Address, enabled bool) error {
	if !p.access.HasRole(access_control.AdminRole, caller) {
		return shared.ErrMissingRole
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.emergencyMode = enabled
	p.logger.Warn("emergency mode switched", zap.Bool("enabled", enabled))
	return nil
}

// AllocatedShares returns the current total share allocation.
func (p *Pool) AllocatedShares() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.allocatedShares)
}

// TotalStaked returns the total locked principal.
func (p *Pool) TotalStaked() *big.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(big.Int).Set(p.totalStaked)
}
