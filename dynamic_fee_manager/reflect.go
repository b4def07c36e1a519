package dynamic_fee_manager

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/wesenditmedia/contracts-sub001/access_control"
	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager/shared"
)

// contribution is one matching entry's share of one transfer.
type contribution struct {
	entry shared.FeeEntry
	fee   *big.Int
}

// action is a staged threshold trigger. At most one SwapOrLiquifyAmount is
// consumed per bucket per reflection; anything above the threshold carries
// to the next call.
type action struct {
	entry   shared.FeeEntry
	consume *big.Int
}

// ReflectFees is the stateful counterpart of CalculateFees, called by the
// token ledger in two phases: first with dryRun=true to learn the total
// fee it escrows to the manager's account, then with dryRun=false to run
// the per-entry bookkeeping and any triggered actions.
//
// The total is the sum of per-entry floored fees, so both phases tally
// identically and the wet phase never double-counts. Immediate-transfer
// entries (neither liquify nor swap) move their fee straight to the
// destination; the others accumulate toward their bucket threshold. A
// router failure aborts the whole call with no state change. Receiver
// callbacks run after commit, bounded and isolated.
func (m *Manager) ReflectFees(ctx context.Context, caller, from, to common.Address, amount *big.Int, dryRun bool) (net, totalFee *big.Int, err error) {
	if !m.access.HasRole(access_control.CallReflectFeesRole, caller) {
		return nil, nil, shared.ErrMissingRole
	}
	if amount == nil || amount.Sign() < 0 {
		return nil, nil, fmt.Errorf("%w: negative amount", shared.ErrInvalidParameter)
	}

	m.mu.Lock()
	if m.inFlight {
		m.mu.Unlock()
		return nil, nil, shared.ErrReentrantCall
	}

	contributions, totalFee := m.matchContributions(from, to, amount)
	net = new(big.Int).Sub(amount, totalFee)

	if dryRun || len(contributions) == 0 {
		m.mu.Unlock()
		return net, totalFee, nil
	}

	actions := m.stageActions(contributions)

	// Dispatch router actions outside the lock; the latch turns any
	// reentrant mutation during that window into an explicit error
	// instead of a deadlock or a partial view.
	m.inFlight = true
	router := m.router
	m.mu.Unlock()

	results, err := m.executeActions(ctx, router, actions)
	if err != nil {
		m.mu.Lock()
		m.inFlight = false
		m.mu.Unlock()
		return nil, nil, err
	}

	m.mu.Lock()
	if err := m.commit(from, to, contributions, actions); err != nil {
		m.inFlight = false
		m.mu.Unlock()
		return nil, nil, err
	}
	m.inFlight = false
	m.mu.Unlock()

	m.recordActions(results)
	m.dispatchCallbacks(ctx, from, to, contributions)
	return net, totalFee, nil
}

// matchContributions collects every matching entry with its floored fee.
// Caller holds the lock.
func (m *Manager) matchContributions(from, to common.Address, amount *big.Int) ([]contribution, *big.Int) {
	divider := big.NewInt(shared.FeeDivider)
	total := new(big.Int)
	var out []contribution
	for i := range m.entries {
		e := &m.entries[i]
		if !e.Matches(from, to) {
			continue
		}
		fee := new(big.Int).Mul(amount, e.Percentage)
		fee.Div(fee, divider)
		total.Add(total, fee)
		entry := *e
		entry.Percentage = new(big.Int).Set(e.Percentage)
		entry.SwapOrLiquifyAmount = new(big.Int).Set(e.SwapOrLiquifyAmount)
		out = append(out, contribution{entry: entry, fee: fee})
	}
	return out, total
}

// stageActions projects the post-commit bucket amounts and schedules at
// most one threshold consumption per bucket. Caller holds the lock.
func (m *Manager) stageActions(contributions []contribution) []action {
	staged := make(map[common.Hash]*big.Int)
	for _, c := range contributions {
		if !c.entry.DoLiquify && !c.entry.DoSwapForStable {
			continue
		}
		bucket, ok := staged[c.entry.Id]
		if !ok {
			bucket = new(big.Int)
			if cur, exists := m.amounts[c.entry.Id]; exists {
				bucket.Set(cur)
			}
			staged[c.entry.Id] = bucket
		}
		bucket.Add(bucket, c.fee)
	}

	var actions []action
	triggered := make(map[common.Hash]bool)
	for _, c := range contributions {
		e := c.entry
		if triggered[e.Id] || (!e.DoLiquify && !e.DoSwapForStable) {
			continue
		}
		if e.SwapOrLiquifyAmount.Sign() <= 0 {
			continue
		}
		if staged[e.Id].Cmp(e.SwapOrLiquifyAmount) >= 0 {
			triggered[e.Id] = true
			actions = append(actions, action{
				entry:   e,
				consume: new(big.Int).Set(e.SwapOrLiquifyAmount),
			})
		}
	}
	return actions
}

// actionResult pairs an executed action with what the router returned.
type actionResult struct {
	action    action
	native    *big.Int
	stableOut *big.Int
	swapped   *big.Int
	added     *big.Int
}

// executeActions runs the staged router calls. Any failure is fatal to
// the whole reflection; nothing has been committed yet.
func (m *Manager) executeActions(ctx context.Context, router Router, actions []action) ([]actionResult, error) {
	if len(actions) == 0 {
		return nil, nil
	}
	if router == nil {
		return nil, fmt.Errorf("%w: no router configured", shared.ErrExternalCallFailed)
	}

	results := make([]actionResult, 0, len(actions))
	for _, a := range actions {
		var res actionResult
		var err error
		if a.entry.DoLiquify {
			res, err = m.swapAndLiquify(ctx, router, a)
		} else {
			res, err = m.swapForStable(ctx, router, a)
		}
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// swapAndLiquify swaps half of the consumed amount into the native asset
// and supplies both halves as paired liquidity. LP receipts go to the
// entry's destination.
func (m *Manager) swapAndLiquify(ctx context.Context, router Router, a action) (actionResult, error) {
	half := new(big.Int).Div(a.consume, big.NewInt(2))
	otherHalf := new(big.Int).Sub(a.consume, half)
	deadline := time.Now().Add(m.deadline)

	if err := m.token.Approve(m.address, router.Address(), a.consume); err != nil {
		return actionResult{}, fmt.Errorf("%w: approve router: %v", shared.ErrExternalCallFailed, err)
	}
	native, err := router.SwapExactTokensForNative(ctx, half, new(big.Int), m.nativePath(), m.address, deadline)
	if err != nil {
		return actionResult{}, fmt.Errorf("%w: swap for native: %v", shared.ErrExternalCallFailed, err)
	}
	err = router.AddLiquidity(ctx, m.tokenAddress, otherHalf, native, new(big.Int), new(big.Int), a.entry.Destination, deadline)
	if err != nil {
		return actionResult{}, fmt.Errorf("%w: add liquidity: %v", shared.ErrExternalCallFailed, err)
	}
	return actionResult{action: a, native: native, swapped: half, added: otherHalf}, nil
}

// swapForStable swaps the consumed amount into the stable token, credited
// directly to the entry's destination.
func (m *Manager) swapForStable(ctx context.Context, router Router, a action) (actionResult, error) {
	if m.stableToken == (common.Address{}) {
		return actionResult{}, fmt.Errorf("%w: no stable token configured", shared.ErrExternalCallFailed)
	}
	deadline := time.Now().Add(m.deadline)

	if err := m.token.Approve(m.address, router.Address(), a.consume); err != nil {
		return actionResult{}, fmt.Errorf("%w: approve router: %v", shared.ErrExternalCallFailed, err)
	}
	out, err := router.SwapExactTokensForTokens(ctx, a.consume, new(big.Int), m.stablePath(), a.entry.Destination, deadline)
	if err != nil {
		return actionResult{}, fmt.Errorf("%w: swap for stable: %v", shared.ErrExternalCallFailed, err)
	}
	return actionResult{action: a, stableOut: out}, nil
}

func (m *Manager) nativePath() []common.Address {
	return []common.Address{m.tokenAddress, m.wrappedNative}
}

func (m *Manager) stablePath() []common.Address {
	if m.wrappedNative == (common.Address{}) {
		return []common.Address{m.tokenAddress, m.stableToken}
	}
	return []common.Address{m.tokenAddress, m.wrappedNative, m.stableToken}
}

// commit applies the staged deltas: the immediate destination transfers,
// accumulator additions, and consumed threshold subtractions. The token
// moves come first, pre-checked against the escrow balance and unwound
// on a mid-loop failure; the in-memory deltas and recorder writes apply
// only once no transfer can fail, so an abort leaves every ledger as it
// was before the call. Caller holds the lock.
func (m *Manager) commit(from, to common.Address, contributions []contribution, actions []action) error {
	immediateTotal := new(big.Int)
	for _, c := range contributions {
		if !c.entry.DoLiquify && !c.entry.DoSwapForStable {
			immediateTotal.Add(immediateTotal, c.fee)
		}
	}
	if immediateTotal.Sign() > 0 && m.token.BalanceOf(m.address).Cmp(immediateTotal) < 0 {
		return fmt.Errorf("%w: escrow below fee total", shared.ErrTransferFailed)
	}

	var paid []contribution
	for _, c := range contributions {
		if c.entry.DoLiquify || c.entry.DoSwapForStable || c.fee.Sign() == 0 {
			continue
		}
		if err := m.token.Transfer(m.address, c.entry.Destination, c.fee); err != nil {
			for _, p := range paid {
				if uerr := m.token.Transfer(p.entry.Destination, m.address, p.fee); uerr != nil {
					m.logger.Error("unwind fee transfer",
						zap.Stringer("destination", p.entry.Destination),
						zap.Error(uerr),
					)
				}
			}
			return fmt.Errorf("%w: %v", shared.ErrTransferFailed, err)
		}
		paid = append(paid, c)
	}

	for _, c := range contributions {
		e := c.entry
		if e.DoLiquify || e.DoSwapForStable {
			bucket, ok := m.amounts[e.Id]
			if !ok {
				bucket = new(big.Int)
				m.amounts[e.Id] = bucket
			}
			bucket.Add(bucket, c.fee)
		}
		if err := m.recorder.RecordFeeReflected(&FeeReflectedEvent{
			Id:          e.Id,
			From:        from,
			To:          to,
			Destination: e.Destination,
			Amount:      new(big.Int).Set(c.fee),
		}); err != nil {
			m.logger.Warn("record fee reflection", zap.Error(err))
		}
	}
	for _, a := range actions {
		m.amounts[a.entry.Id].Sub(m.amounts[a.entry.Id], a.consume)
	}
	return nil
}

func (m *Manager) recordActions(results []actionResult) {
	for _, res := range results {
		if res.action.entry.DoLiquify {
			m.logger.Info("swap and liquify",
				zap.Stringer("id", res.action.entry.Id),
				zap.String("swapped", res.swapped.String()),
				zap.String("native", res.native.String()),
			)
			if err := m.recorder.RecordSwapAndLiquify(&SwapAndLiquifyEvent{
				Id:           res.action.entry.Id,
				SwappedToken: res.swapped,
				Native:       res.native,
				AddedToken:   res.added,
			}); err != nil {
				m.logger.Warn("record swap and liquify", zap.Error(err))
			}
			continue
		}
		m.logger.Info("swap for stable",
			zap.Stringer("id", res.action.entry.Id),
			zap.String("amountIn", res.action.consume.String()),
			zap.String("stableOut", res.stableOut.String()),
		)
		if err := m.recorder.RecordSwapForStable(&SwapForStableEvent{
			Id:          res.action.entry.Id,
			AmountIn:    res.action.consume,
			StableOut:   res.stableOut,
			Destination: res.action.entry.Destination,
		}); err != nil {
			m.logger.Warn("record swap for stable", zap.Error(err))
		}
	}
}

// dispatchCallbacks notifies registered fee receivers after commit. Errors
// and timeouts are recorded, never propagated.
func (m *Manager) dispatchCallbacks(ctx context.Context, from, to common.Address, contributions []contribution) {
	for _, c := range contributions {
		if !c.entry.DoCallback || c.fee.Sign() == 0 {
			continue
		}
		m.mu.Lock()
		receiver, ok := m.receivers[c.entry.Destination]
		m.mu.Unlock()
		if !ok {
			continue
		}

		// The receiver runs on its own goroutine so one that ignores
		// its context cannot stall the reflection past the timeout.
		cbCtx, cancel := context.WithTimeout(ctx, m.callbackTimeout)
		done := make(chan error, 1)
		go func(rc FeeReceiver, fee *big.Int) {
			done <- rc.OnFeeReceived(cbCtx, m.tokenAddress, from, to, fee)
		}(receiver, c.fee)
		var err error
		select {
		case err = <-done:
		case <-cbCtx.Done():
			err = cbCtx.Err()
		}
		cancel()
		if err == nil {
			continue
		}
		m.logger.Warn("fee receiver callback failed",
			zap.Stringer("destination", c.entry.Destination),
			zap.Error(err),
		)
		if rerr := m.recorder.RecordCallbackFailure(&CallbackFailureEvent{
			Id:          c.entry.Id,
			Destination: c.entry.Destination,
			Reason:      err.Error(),
		}); rerr != nil {
			m.logger.Warn("record callback failure", zap.Error(rerr))
		}
	}
}
