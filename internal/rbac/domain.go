package rbac

import "fmt"

// Role is one of a closed enumeration of banking roles. The catalog maps
// every role to a deterministic permission set; an unlisted role is a
// programmer error, never a silent default.
type Role string

const (
	RoleMaker              Role = "maker"
	RoleChecker            Role = "checker"
	RoleSupervisor         Role = "supervisor"
	RoleTreasurer          Role = "treasurer"
	RoleDealer             Role = "dealer"
	RoleSeniorDealer       Role = "senior_dealer"
	RoleRiskOfficer        Role = "risk_officer"
	RoleMiddleOffice       Role = "middle_office"
	RoleBackOffice         Role = "back_office"
	RoleComplianceOfficer  Role = "compliance_officer"
	RoleAdministrator      Role = "administrator"
	RoleSuperAdministrator Role = "super_administrator"
)

// AllRoles lists the closed role enumeration.
func AllRoles() []Role {
	return []Role{
		RoleMaker,
		RoleChecker,
		RoleSupervisor,
		RoleTreasurer,
		RoleDealer,
		RoleSeniorDealer,
		RoleRiskOfficer,
		RoleMiddleOffice,
		RoleBackOffice,
		RoleComplianceOfficer,
		RoleAdministrator,
		RoleSuperAdministrator,
	}
}

// ParseRole validates a raw role string against the enumeration.
func ParseRole(raw string) (Role, error) {
	role := Role(raw)
	for _, known := range AllRoles() {
		if role == known {
			return role, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown role %q", raw)
}

// Actor describes the authenticated principal performing an action. It is
// supplied by the session layer and never mutated by workflow operations.
// Overrides, when non-nil, fully replaces the role's default permission set;
// it is a complete list, not a delta.
type Actor struct {
	ID         string
	Name       string
	Role       Role
	Department string
	Branch     string
	Overrides  []string
}
