package middleware

// Board roles. Tokens without a role claim are treated as RoleMember.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// CanWrite reports whether role may publish board events.
func CanWrite(role string) bool {
	return role == RoleAdmin || role == RoleMember
}
