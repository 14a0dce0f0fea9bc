package rbac

import (
	"fmt"
	"sort"

	"github.com/tradewind-bank/tradewind/internal/shared"
)

// PermissionSet is a flat set of permission tokens. Membership is the only
// operation; there is no hierarchy and no wildcard matching.
type PermissionSet map[string]struct{}

// Has reports whether the set contains the token.
func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// List returns the tokens in sorted order.
func (s PermissionSet) List() []string {
	perms := make([]string, 0, len(s))
	for p := range s {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

func newSet(scopes ...[]string) PermissionSet {
	set := make(PermissionSet)
	for _, scope := range scopes {
		for _, p := range scope {
			set[p] = struct{}{}
		}
	}
	return set
}

func (s PermissionSet) clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

func (s PermissionSet) without(tokens ...string) PermissionSet {
	out := s.clone()
	for _, t := range tokens {
		delete(out, t)
	}
	return out
}

// catalog is the explicit role-to-permission table, computed once at package
// init. Additions to the shared authz scope lists flow into the universe and
// are asserted claimed by ValidateCatalog.
var catalog map[Role]PermissionSet

func universe() PermissionSet {
	return newSet(shared.CoreScopes(), shared.TradeScopes(), shared.QueueScopes())
}

func init() {
	viewAllTrade := shared.TradeScopesForVerb(shared.VerbView)
	fxAll := []string{
		shared.Perm(shared.DomainFXSales, shared.VerbView),
		shared.Perm(shared.DomainFXSales, shared.VerbCreate),
		shared.Perm(shared.DomainFXSales, shared.VerbEdit),
		shared.Perm(shared.DomainFXSales, shared.VerbDelete),
	}
	loanAll := []string{
		shared.Perm(shared.DomainTradeLoan, shared.VerbView),
		shared.Perm(shared.DomainTradeLoan, shared.VerbCreate),
		shared.Perm(shared.DomainTradeLoan, shared.VerbEdit),
		shared.Perm(shared.DomainTradeLoan, shared.VerbDelete),
	}

	catalog = map[Role]PermissionSet{
		RoleMaker: newSet(
			shared.TradeScopes(),
			[]string{shared.PermDashboardView, shared.PermReportsView},
		),
		RoleChecker: newSet(
			viewAllTrade,
			shared.CheckerScopes(),
			[]string{shared.PermDashboardView, shared.PermReportsView},
		),
		RoleSupervisor: newSet(
			viewAllTrade,
			shared.CheckerScopes(),
			[]string{shared.PermDashboardView, shared.PermReportsView, shared.PermReportsExport, shared.PermSettingsView},
		),
		// Treasurer holds everything outside settings management, matching the
		// desk head profile: full trade surface plus the checker queue.
		RoleTreasurer: universe().without(
			shared.PermSettingsView,
			shared.PermSettingsEdit,
			shared.PermSettingsManageUsers,
			shared.PermSettingsManageRoles,
		),
		RoleDealer: newSet(
			fxAll,
			[]string{
				shared.Perm(shared.DomainTradeLoan, shared.VerbView),
				shared.PermDashboardView,
				shared.PermReportsView,
			},
		),
		RoleSeniorDealer: newSet(
			fxAll,
			loanAll,
			shared.CheckerScopes(),
			[]string{shared.PermDashboardView, shared.PermReportsView, shared.PermReportsExport},
		),
		RoleRiskOfficer: newSet(
			viewAllTrade,
			[]string{
				shared.PermQueueView,
				shared.PermDashboardView,
				shared.PermReportsView,
				shared.PermReportsExport,
				shared.PermSettingsView,
			},
		),
		RoleMiddleOffice: newSet(
			viewAllTrade,
			[]string{
				shared.PermQueueView,
				shared.PermDashboardView,
				shared.PermReportsView,
				shared.PermReportsExport,
			},
		),
		RoleBackOffice: newSet(
			viewAllTrade,
			[]string{
				shared.PermQueueView,
				shared.PermQueueComplete,
				shared.PermDashboardView,
				shared.PermReportsView,
			},
		),
		RoleComplianceOfficer: newSet(
			viewAllTrade,
			[]string{
				shared.PermQueueView,
				shared.PermDashboardView,
				shared.PermReportsView,
				shared.PermReportsExport,
				shared.PermSettingsView,
			},
		),
		RoleAdministrator:      universe().without(shared.SettingsCarveout()...),
		RoleSuperAdministrator: universe(),
	}
}

// PermissionsForRole returns the default permission set for a role. The
// returned set is a copy; callers may not mutate the catalog. An unknown role
// indicates a catalog/enumeration mismatch and is reported as an error so the
// caller can fail fast.
func PermissionsForRole(role Role) (PermissionSet, error) {
	set, ok := catalog[role]
	if !ok {
		return nil, fmt.Errorf("rbac: no permission set for role %q", role)
	}
	return set.clone(), nil
}

// AllPermissions returns every known permission token in sorted order.
func AllPermissions() []string {
	return universe().List()
}

// ValidateCatalog asserts the catalog's structural invariants: every role in
// the enumeration has a non-empty set, every token is claimed by at least one
// role, and Super Administrator holds the full universe. Deployments call
// this at startup and treat failure as fatal.
func ValidateCatalog() error {
	claimed := make(PermissionSet)
	for _, role := range AllRoles() {
		set, ok := catalog[role]
		if !ok {
			return fmt.Errorf("rbac: role %q missing from catalog", role)
		}
		if len(set) == 0 {
			return fmt.Errorf("rbac: role %q has an empty permission set", role)
		}
		for p := range set {
			claimed[p] = struct{}{}
		}
	}
	all := universe()
	for p := range all {
		if !claimed.Has(p) {
			return fmt.Errorf("rbac: permission %q claimed by no role", p)
		}
	}
	super := catalog[RoleSuperAdministrator]
	for p := range all {
		if !super.Has(p) {
			return fmt.Errorf("rbac: super administrator missing permission %q", p)
		}
	}
	if len(super) != len(all) {
		return fmt.Errorf("rbac: super administrator set diverges from the permission universe")
	}
	return nil
}
