package common

// User roles.
const (
	RoleTenant = "tenant"
	RoleClient = "client" // building manager
	RoleAdmin  = "admin"
)

// CanManageBuildings reports whether role may publish and reorder building content.
func CanManageBuildings(role string) bool {
	return role == RoleClient || role == RoleAdmin
}
