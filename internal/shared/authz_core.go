package shared

// Core platform permissions.
const (
	PermDashboardView = "dashboard:view"

	PermReportsView   = "reports:view"
	PermReportsExport = "reports:export"

	PermSettingsView        = "settings:view"
	PermSettingsEdit        = "settings:edit"
	PermSettingsManageUsers = "settings:manage_users"
	PermSettingsManageRoles = "settings:manage_roles"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermDashboardView,
		PermReportsView,
		PermReportsExport,
		PermSettingsView,
		PermSettingsEdit,
		PermSettingsManageUsers,
		PermSettingsManageRoles,
	}
}

// SettingsCarveout lists the settings-management permissions withheld from
// Administrator. Only Super Administrator holds these.
func SettingsCarveout() []string {
	return []string{
		PermSettingsEdit,
		PermSettingsManageUsers,
		PermSettingsManageRoles,
	}
}
