package auth

// RBACPermission represents a specific action on a kind of resource
type RBACPermission string

const (
	// Marketplace permissions
	SolutionsWrite RBACPermission = "solutions.write"

	// Networking permissions
	ConnectionsWrite RBACPermission = "connections.write"

	// Project permissions
	ProjectsWrite RBACPermission = "projects.write"
	ProjectsWork  RBACPermission = "projects.work"

	// Procurement permissions
	RFPsWrite RBACPermission = "rfps.write"
	BidsWrite RBACPermission = "bids.write"

	// Funding permissions
	FundingApply  RBACPermission = "funding.apply"
	FundingManage RBACPermission = "funding.manage"

	// Template permissions
	TemplatesWrite RBACPermission = "templates.write"

	// Benchmark permissions
	BenchmarkRead RBACPermission = "benchmark.read"

	// Audit permissions
	AuditReadAll RBACPermission = "audit.read_all"

	// System permissions
	SystemAdmin RBACPermission = "system.admin"
)

// Role represents a user role with a set of permissions
type Role struct {
	Name        string
	Permissions []RBACPermission
}

// HasPermission checks if the role has a specific permission
func (r *Role) HasPermission(permission RBACPermission) bool {
	for _, p := range r.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// Predefined roles
var (
	// AdminRole has all permissions
	AdminRole = &Role{
		Name: "admin",
		Permissions: []RBACPermission{
			SolutionsWrite, ConnectionsWrite, ProjectsWrite, ProjectsWork, RFPsWrite, BidsWrite,
			FundingApply, FundingManage, TemplatesWrite, BenchmarkRead, AuditReadAll, SystemAdmin,
		},
	}

	// MunicipalityRole runs projects, posts RFPs and applies for funding
	MunicipalityRole = &Role{
		Name: "municipality",
		Permissions: []RBACPermission{
			ConnectionsWrite, ProjectsWrite, ProjectsWork, RFPsWrite, FundingApply, TemplatesWrite, BenchmarkRead,
		},
	}

	// DeveloperRole lists solutions and bids on RFPs
	DeveloperRole = &Role{
		Name: "developer",
		Permissions: []RBACPermission{
			SolutionsWrite, ConnectionsWrite, BidsWrite, TemplatesWrite,
		},
	}

	// IntegratorRole bids on RFPs and delivers projects it is assigned to
	IntegratorRole = &Role{
		Name: "integrator",
		Permissions: []RBACPermission{
			ConnectionsWrite, ProjectsWork, BidsWrite, TemplatesWrite,
		},
	}
)

// GetRoleByName returns a predefined role by name
// Returns nil if the role is not found
func GetRoleByName(name string) *Role {
	switch name {
	case "admin":
		return AdminRole
	case "municipality":
		return MunicipalityRole
	case "developer":
		return DeveloperRole
	case "integrator":
		return IntegratorRole
	default:
		return nil
	}
}

// UserHasPermission checks if any of the user's roles has the required permission
func UserHasPermission(roles []string, permission RBACPermission) bool {
	for _, roleName := range roles {
		role := GetRoleByName(roleName)
		if role != nil && role.HasPermission(permission) {
			return true
		}
	}
	return false
}

// Can reports whether the principal holds permission
func Can(p *Principal, permission RBACPermission) bool {
	return p != nil && UserHasPermission(p.Roles, permission)
}

// IsAdmin reports whether the principal is a platform administrator
func IsAdmin(p *Principal) bool {
	return Can(p, SystemAdmin)
}
