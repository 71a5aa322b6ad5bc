package shared

// Role slugs stored in roles.slug.
const (
	RoleAdmin    = "admin"
	RoleEnforcer = "enforcer"
	RoleCashier  = "cashier"
)

// ValidRole reports whether slug names a known role.
func ValidRole(slug string) bool {
	switch slug {
	case RoleAdmin, RoleEnforcer, RoleCashier:
		return true
	}
	return false
}
