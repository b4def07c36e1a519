// Package access_control implements the role registry consulted by every
// mutating entry point of the fee manager, the staking pool, the token
// ledger and the vesting wallet. Roles are keccak-derived identifiers; one
// registry instance is shared by all components of a deployment.
package access_control

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrMissingRole      = errors.New("caller is missing required role")
	ErrMissingRoleAdmin = errors.New("caller is not an admin of the role")
)

// Role identifies a capability. The zero hash is the admin role, which
// administers every other role by default.
type Role = common.Hash

var (
	// AdminRole gates configuration mutators across all components.
	AdminRole = Role{}

	// FeeWhitelistRole exempts a sender from transfer fees.
	FeeWhitelistRole = crypto.Keccak256Hash([]byte("FEE_WHITELIST"))

	// ReceiverFeeWhitelistRole exempts a receiver from transfer fees.
	ReceiverFeeWhitelistRole = crypto.Keccak256Hash([]byte("RECEIVER_FEE_WHITELIST"))

	// BypassPauseRole lets an address transfer while the token is paused.
	BypassPauseRole = crypto.Keccak256Hash([]byte("BYPASS_PAUSE"))

	// CallReflectFeesRole gates the stateful ReflectFees entry point; only
	// the token ledger carries it.
	CallReflectFeesRole = crypto.Keccak256Hash([]byte("CALL_REFLECT_FEES"))
)

type roleMembers struct {
	admin   Role
	members map[common.Address]struct{}
}

// Registry is a thread-safe role registry. The account passed to New
// receives the admin role.
type Registry struct {
	mu    sync.RWMutex
	roles map[Role]*roleMembers
}

func New(admin common.Address) *Registry {
	r := &Registry{roles: make(map[Role]*roleMembers)}
	r.grant(AdminRole, admin)
	return r
}

// HasRole reports whether account carries role.
func (r *Registry) HasRole(role Role, account common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.roles[role]
	if !ok {
		return false
	}
	_, ok = rm.members[account]
	return ok
}

// RoleAdmin returns the role that administers role. Unconfigured roles are
// administered by AdminRole.
func (r *Registry) RoleAdmin(role Role) Role {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if rm, ok := r.roles[role]; ok {
		return rm.admin
	}
	return AdminRole
}

// SetRoleAdmin changes the admin role of role. Only AdminRole holders may
// call it.
func (r *Registry) SetRoleAdmin(caller common.Address, role, admin Role) error {
	if !r.HasRole(AdminRole, caller) {
		return ErrMissingRole
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.roles[role]
	if !ok {
		rm = &roleMembers{admin: AdminRole, members: make(map[common.Address]struct{})}
		r.roles[role] = rm
	}
	rm.admin = admin
	return nil
}

// GrantRole gives account the role. The caller must hold the role's admin
// role.
func (r *Registry) GrantRole(caller common.Address, role Role, account common.Address) error {
	if !r.HasRole(r.RoleAdmin(role), caller) {
		return ErrMissingRoleAdmin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grant(role, account)
	return nil
}

// RevokeRole removes the role from account. The caller must hold the
// role's admin role.
func (r *Registry) RevokeRole(caller common.Address, role Role, account common.Address) error {
	if !r.HasRole(r.RoleAdmin(role), caller) {
		return ErrMissingRoleAdmin
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.roles[role]; ok {
		delete(rm.members, account)
	}
	return nil
}

// RenounceRole removes caller's own role without an admin check.
func (r *Registry) RenounceRole(caller common.Address, role Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.roles[role]; ok {
		delete(rm.members, caller)
	}
}

// RoleMembers enumerates the accounts holding role. The result order is
// unspecified.
func (r *Registry) RoleMembers(role Role) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.roles[role]
	if !ok {
		return nil
	}
	out := make([]common.Address, 0, len(rm.members))
	for a := range rm.members {
		out = append(out, a)
	}
	return out
}

func (r *Registry) grant(role Role, account common.Address) {
	rm, ok := r.roles[role]
	if !ok {
		rm = &roleMembers{admin: AdminRole, members: make(map[common.Address]struct{})}
		r.roles[role] = rm
	}
	rm.members[account] = struct{}{}
}
