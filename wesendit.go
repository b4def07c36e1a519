package wesendit

import (
	"github.com/wesenditmedia/contracts-sub001/access_control"
	"github.com/wesenditmedia/contracts-sub001/dynamic_fee_manager"
	"github.com/wesenditmedia/contracts-sub001/staking_pool"
	"github.com/wesenditmedia/contracts-sub001/token"
	"github.com/wesenditmedia/contracts-sub001/vesting"
)

// NewAccessControl creates the role registry shared by all components.
//
// Example:
//
// acl := wesendit.NewAccessControl(ownerAddr)
//
// acl.GrantRole(ownerAddr, access_control.CallReflectFeesRole, tokenAddr)
var NewAccessControl = access_control.New

// NewToken creates the fee-reflecting token ledger.
//
// Example:
//
// wsi, _ := wesendit.NewToken("WeSendit", "WSI", tokenAddr, ownerAddr, supply, acl)
//
// wsi.Transfer(alice, bob, amount)
var NewToken = token.NewToken

// NewDynamicFeeManager creates the fee rule set and reflection engine.
//
// Example:
//
// manager := wesendit.NewDynamicFeeManager(managerAddr, tokenAddr, wsi, acl)
//
// manager.AddFee(ownerAddr, wildcard, wildcard, pct, burnAddr, false, false, false, nil)
var NewDynamicFeeManager = dynamic_fee_manager.NewManager

// NewStakingPool creates the share-based staking pool.
//
// Example:
//
// pool := wesendit.NewStakingPool(poolAddr, wsi, acl)
//
// pool.Stake(alice, amount, 364, true)
var NewStakingPool = staking_pool.NewPool

// NewVestingWallet creates the multi-beneficiary vesting wallet.
var NewVestingWallet = vesting.NewWallet
