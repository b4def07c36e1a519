package dynamic_fee_manager

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager/shared"
)

// State is a point-in-time copy of the manager's durable state: the
// ordered entry list and the accumulator buckets.
type State struct {
	Entries []shared.FeeEntry
	Amounts map[common.Hash]*big.Int
}

// Snapshot copies the durable state for persistence.
func (m *Manager) Snapshot() *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &State{
		Entries: make([]shared.FeeEntry, len(m.entries)),
		Amounts: make(map[common.Hash]*big.Int, len(m.amounts)),
	}
	for i, e := range m.entries {
		e.Percentage = new(big.Int).Set(e.Percentage)
		e.SwapOrLiquifyAmount = new(big.Int).Set(e.SwapOrLiquifyAmount)
		s.Entries[i] = e
	}
	for id, amount := range m.amounts {
		s.Amounts[id] = new(big.Int).Set(amount)
	}
	return s
}

// Restore replaces the manager's durable state, preserving entry order.
func (m *Manager) Restore(s *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight {
		return shared.ErrReentrantCall
	}
	m.entries = make([]shared.FeeEntry, len(s.Entries))
	for i, e := range s.Entries {
		e.Percentage = new(big.Int).Set(e.Percentage)
		e.SwapOrLiquifyAmount = new(big.Int).Set(e.SwapOrLiquifyAmount)
		m.entries[i] = e
	}
	m.amounts = make(map[common.Hash]*big.Int, len(s.Amounts))
	for id, amount := range s.Amounts {
		m.amounts[id] = new(big.Int).Set(amount)
	}
	return nil
}
