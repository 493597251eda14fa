package constants

// Role is the closed enumeration of onboarding roles. The selected role
// determines which steps are reachable and which terminal destination applies.
type Role string

const (
	RolePlatformAdmin      Role = "platform-admin"
	RoleInstitutionAdmin   Role = "institution-admin"
	RoleClinicalPreceptor  Role = "clinical-preceptor"
	RoleClinicalSupervisor Role = "clinical-supervisor"
	RoleStudent            Role = "student"
)

// AllRoles returns every selectable role
func AllRoles() []Role {
	return []Role{
		RolePlatformAdmin,
		RoleInstitutionAdmin,
		RoleClinicalPreceptor,
		RoleClinicalSupervisor,
		RoleStudent,
	}
}

// IsValidRole checks whether s names a known role
func IsValidRole(s string) bool {
	for _, r := range AllRoles() {
		if string(r) == s {
			return true
		}
	}
	return false
}
