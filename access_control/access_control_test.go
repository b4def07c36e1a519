package access_control

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

var (
	admin = common.HexToAddress("0x0000000000000000000000000000000000000A01")
	alice = common.HexToAddress("0x0000000000000000000000000000000000000A02")
	bob   = common.HexToAddress("0x0000000000000000000000000000000000000A03")
)

func TestGrantAndRevoke(t *testing.T) {
	r := New(admin)
	require.True(t, r.HasRole(AdminRole, admin))
	require.False(t, r.HasRole(FeeWhitelistRole, alice))

	require.NoError(t, r.GrantRole(admin, FeeWhitelistRole, alice))
	require.True(t, r.HasRole(FeeWhitelistRole, alice))

	require.NoError(t, r.RevokeRole(admin, FeeWhitelistRole, alice))
	require.False(t, r.HasRole(FeeWhitelistRole, alice))
}

func TestGrantRequiresRoleAdmin(t *testing.T) {
	r := New(admin)
	err := r.GrantRole(alice, FeeWhitelistRole, bob)
	require.ErrorIs(t, err, ErrMissingRoleAdmin)
	require.False(t, r.HasRole(FeeWhitelistRole, bob))
}

func TestSetRoleAdmin(t *testing.T) {
	r := New(admin)
	require.Equal(t, AdminRole, r.RoleAdmin(BypassPauseRole))

	require.NoError(t, r.SetRoleAdmin(admin, BypassPauseRole, FeeWhitelistRole))
	require.NoError(t, r.GrantRole(admin, FeeWhitelistRole, alice))

	// alice now administers BypassPauseRole through FeeWhitelistRole.
	require.NoError(t, r.GrantRole(alice, BypassPauseRole, bob))
	require.True(t, r.HasRole(BypassPauseRole, bob))

	// admin no longer qualifies for that role's grants.
	require.ErrorIs(t, r.GrantRole(bob, BypassPauseRole, bob), ErrMissingRoleAdmin)
}

func TestRenounceRole(t *testing.T) {
	r := New(admin)
	require.NoError(t, r.GrantRole(admin, CallReflectFeesRole, alice))
	r.RenounceRole(alice, CallReflectFeesRole)
	require.False(t, r.HasRole(CallReflectFeesRole, alice))
}

func TestRoleMembers(t *testing.T) {
	r := New(admin)
	require.NoError(t, r.GrantRole(admin, FeeWhitelistRole, alice))
	require.NoError(t, r.GrantRole(admin, FeeWhitelistRole, bob))

	members := r.RoleMembers(FeeWhitelistRole)
	require.Len(t, members, 2)
	require.ElementsMatch(t, []common.Address{alice, bob}, members)

	require.Empty(t, r.RoleMembers(BypassPauseRole))
}
