package rbac

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tradewind-bank/tradewind/internal/shared"
)

func TestAuthorizeRoleDefaults(t *testing.T) {
	maker := Actor{ID: "u-1", Role: RoleMaker}
	checker := Actor{ID: "u-2", Role: RoleChecker}

	require.True(t, Authorize(maker, shared.Perm(shared.DomainFormM, shared.VerbCreate)))
	require.False(t, Authorize(maker, shared.PermQueueApprove))

	require.True(t, Authorize(checker, shared.PermQueueApprove))
	require.False(t, Authorize(checker, shared.Perm(shared.DomainFormM, shared.VerbCreate)))
}

func TestOverridesFullyReplaceRoleSet(t *testing.T) {
	custom := Actor{
		ID:        "u-3",
		Role:      RoleMaker,
		Overrides: []string{shared.Perm(shared.DomainFXSales, shared.VerbView)},
	}

	set, err := EffectivePermissions(custom)
	require.NoError(t, err)
	require.Equal(t, []string{shared.Perm(shared.DomainFXSales, shared.VerbView)}, set.List())

	// The role's defaults are gone entirely, not merged.
	require.False(t, Authorize(custom, shared.Perm(shared.DomainFormM, shared.VerbCreate)))
	require.True(t, Authorize(custom, shared.Perm(shared.DomainFXSales, shared.VerbView)))
}

func TestEmptyOverrideListGrantsNothing(t *testing.T) {
	locked := Actor{ID: "u-4", Role: RoleSuperAdministrator, Overrides: []string{}}
	set, err := EffectivePermissions(locked)
	require.NoError(t, err)
	require.Empty(t, set)
	require.False(t, Authorize(locked, shared.PermQueueApprove))
}

func TestAuthorizeDeniesUnknownRole(t *testing.T) {
	require.False(t, Authorize(Actor{ID: "u-5", Role: Role("intern")}, shared.PermDashboardView))
}
