package dynamic_fee_manager

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// FeeReflectedEvent is one rule's contribution to one transfer.
type FeeReflectedEvent struct {
	Id          common.Hash
	From        common.Address
	To          common.Address
	Destination common.Address
	Amount      *big.Int
}

// SwapAndLiquifyEvent records a threshold-triggered liquify.
type SwapAndLiquifyEvent struct {
	Id           common.Hash
	SwappedToken *big.Int
	Native       *big.Int
	AddedToken   *big.Int
}

// SwapForStableEvent records a threshold-triggered swap to the stable
// token.
type SwapForStableEvent struct {
	Id          common.Hash
	AmountIn    *big.Int
	StableOut   *big.Int
	Destination common.Address
}

// CallbackFailureEvent records a fee-receiver callback that errored. The
// reflection it belongs to completed regardless.
type CallbackFailureEvent struct {
	Id          common.Hash
	Destination common.Address
	Reason      string
}

// Recorder persists fee manager events. The store package provides a
// SQLite implementation; NopRecorder drops everything.
type Recorder interface {
	RecordFeeReflected(evt *FeeReflectedEvent) error
	RecordSwapAndLiquify(evt *SwapAndLiquifyEvent) error
	RecordSwapForStable(evt *SwapForStableEvent) error
	RecordCallbackFailure(evt *CallbackFailureEvent) error
}

type NopRecorder struct{}

func (NopRecorder) RecordFeeReflected(*FeeReflectedEvent) error     { return nil }
func (NopRecorder) RecordSwapAndLiquify(*SwapAndLiquifyEvent) error { return nil }
func (NopRecorder) RecordSwapForStable(*SwapForStableEvent) error   { return nil }
func (NopRecorder) RecordCallbackFailure(*CallbackFailureEvent) error {
	return nil
}
