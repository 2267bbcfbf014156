package shared

// RoleAdmin gates every mutating operation on users, roles and permissions.
const RoleAdmin = "admin"

// Authorize decides whether a caller role set satisfies the required role.
// Pure membership check; no side effects.
func Authorize(callerRoles []string, required string) bool {
	for _, r := range callerRoles {
		if r == required {
			return true
		}
	}
	return false
}
