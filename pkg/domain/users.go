package domain

// Permission is an action tag granted to a user.
type Permission string

// Permission tags.
const (
	PermViewDashboard          Permission = "view_dashboard"
	PermManageEmployees        Permission = "manage_employees"
	PermManagePpe              Permission = "manage_ppe"
	PermManageIncidents        Permission = "manage_incidents"
	PermManageTrainings        Permission = "manage_trainings"
	PermManageInspections      Permission = "manage_inspections"
	PermManageSafetyInspection Permission = "manage_safety_inspections"
	PermManageJha              Permission = "manage_jha"
	PermManageChemicals        Permission = "manage_chemicals"
	PermManageActivities       Permission = "manage_activities"
	PermManageWorkPermits      Permission = "manage_work_permits"
	PermManageWaste            Permission = "manage_waste"
	PermManageAudits           Permission = "manage_audits"
	PermViewReports            Permission = "view_reports"
	PermManageUsers            Permission = "manage_users"
	PermManageSettings         Permission = "manage_settings"
)

// AllPermissions lists every permission tag in menu order.
var AllPermissions = []Permission{
	PermViewDashboard,
	PermManageEmployees,
	PermManagePpe,
	PermManageIncidents,
	PermManageTrainings,
	PermManageInspections,
	PermManageSafetyInspection,
	PermManageJha,
	PermManageChemicals,
	PermManageActivities,
	PermManageWorkPermits,
	PermManageWaste,
	PermManageAudits,
	PermViewReports,
	PermManageUsers,
	PermManageSettings,
}

// UserLevel is the role of a user.
type UserLevel string

// User levels.
const (
	LevelAdmin      UserLevel = "Administrador"
	LevelSupervisor UserLevel = "Supervisor"
	LevelOperator   UserLevel = "Operador"
)

// User is an application account. Only the bcrypt hash of the password is
// persisted; LegacyPassword is read from old snapshots and cleared by migration.
type User struct {
	Base
	EmployeeNumber string       `json:"employeeNumber"`
	PasswordHash   string       `json:"passwordHash,omitempty"`
	LegacyPassword string       `json:"password,omitempty"`
	FullName       string       `json:"fullName"`
	Level          UserLevel    `json:"level"`
	Permissions    []Permission `json:"permissions"`
}

// HasPermission reports whether the user holds p.
func (u User) HasPermission(p Permission) bool {
	for _, have := range u.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

// Redacted returns a copy without credential material.
func (u User) Redacted() User {
	u.PasswordHash = ""
	u.LegacyPassword = ""
	u.Permissions = append([]Permission(nil), u.Permissions...)
	return u
}

// Default administrator created when the users collection is empty.
const (
	DefaultAdminID       = "default_admin_001"
	DefaultAdminLogin    = "admin"
	DefaultAdminPassword = "admin"
	DefaultAdminName     = "Administrador del Sistema"
)
