package rbac

const (
	PermJobCreate = "job:create"
	PermJobView   = "job:view"
)

const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Default policy for the fixup service.
var RolePermissions = map[string][]string{
	RoleOperator: {
		PermJobCreate,
		PermJobView,
	},
	RoleViewer: {
		PermJobView,
	},
	RoleAdmin: {
		"*", // everything
	},
}
