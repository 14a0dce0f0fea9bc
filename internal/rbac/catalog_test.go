package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradewind-bank/tradewind/internal/shared"
)

func TestCatalogValidates(t *testing.T) {
	require.NoError(t, ValidateCatalog())
}

func TestEveryRoleHasPermissions(t *testing.T) {
	for _, role := range AllRoles() {
		set, err := PermissionsForRole(role)
		require.NoError(t, err, "role %s", role)
		require.NotEmpty(t, set, "role %s must map to a non-empty set", role)
	}
}

func TestSuperAdministratorHoldsUniverse(t *testing.T) {
	set, err := PermissionsForRole(RoleSuperAdministrator)
	require.NoError(t, err)
	require.ElementsMatch(t, AllPermissions(), set.List())
}

func TestAdministratorLacksSettingsCarveout(t *testing.T) {
	set, err := PermissionsForRole(RoleAdministrator)
	require.NoError(t, err)
	for _, p := range shared.SettingsCarveout() {
		require.False(t, set.Has(p), "administrator must not hold %s", p)
	}
	require.True(t, set.Has(shared.PermSettingsView))
	require.Len(t, set, len(AllPermissions())-len(shared.SettingsCarveout()))
}

func TestTreasurerExcludesSettings(t *testing.T) {
	set, err := PermissionsForRole(RoleTreasurer)
	require.NoError(t, err)
	for _, p := range []string{
		shared.PermSettingsView,
		shared.PermSettingsEdit,
		shared.PermSettingsManageUsers,
		shared.PermSettingsManageRoles,
	} {
		require.False(t, set.Has(p), "treasurer must not hold %s", p)
	}
	require.True(t, set.Has(shared.PermQueueApprove))
	require.True(t, set.Has(shared.Perm(shared.DomainFXSales, shared.VerbCreate)))
}

func TestEveryTokenClaimedBySomeRole(t *testing.T) {
	claimed := make(map[string]bool)
	for _, role := range AllRoles() {
		set, err := PermissionsForRole(role)
		require.NoError(t, err)
		for _, p := range set.List() {
			claimed[p] = true
		}
	}
	for _, p := range AllPermissions() {
		require.True(t, claimed[p], "permission %s claimed by no role", p)
	}
}

func TestUnknownRoleFails(t *testing.T) {
	_, err := PermissionsForRole(Role("intern"))
	require.Error(t, err)

	_, err = ParseRole("intern")
	require.Error(t, err)
}

func TestPermissionsForRoleReturnsCopy(t *testing.T) {
	first, err := PermissionsForRole(RoleMaker)
	require.NoError(t, err)
	delete(first, shared.PermDashboardView)

	second, err := PermissionsForRole(RoleMaker)
	require.NoError(t, err)
	require.True(t, second.Has(shared.PermDashboardView), "catalog must not observe caller mutation")
}
