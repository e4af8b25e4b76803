package models

const (
	AdminRole = "admin"
	UserRole  = "user"
)

// ValidRole reports whether role is one of the fixed account roles.
func ValidRole(role string) bool {
	return role == AdminRole || role == UserRole
}
