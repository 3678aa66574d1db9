package auth

const (
	RoleEmployee    = "Employee"
	RoleManager     = "Manager"
	RoleHR          = "HR"
	RoleFinance     = "Finance"
	RoleSystemAdmin = "SystemAdmin"
	// RoleService is assigned to machine callers holding the payroll API key.
	RoleService = "Service"
)

const (
	PermFinanceRead     = "finance.requests.read"
	PermFinanceWrite    = "finance.requests.write"
	PermFinanceApprove  = "finance.requests.approve"
	PermFinanceDisburse = "finance.requests.disburse"
	PermPayrollRead     = "payroll.read"
	PermPayrollWrite    = "payroll.write"
	PermPayrollRun      = "payroll.run"
	PermMaintenanceRun  = "maintenance.run"
)

var DefaultPermissions = []string{
	PermFinanceRead,
	PermFinanceWrite,
	PermFinanceApprove,
	PermFinanceDisburse,
	PermPayrollRead,
	PermPayrollWrite,
	PermPayrollRun,
	PermMaintenanceRun,
}

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermFinanceRead,
		PermFinanceWrite,
		PermPayrollRead,
	},
	RoleManager: {
		PermFinanceRead,
		PermFinanceWrite,
		PermFinanceApprove,
		PermPayrollRead,
	},
	RoleHR: {
		PermFinanceRead,
		PermFinanceWrite,
		PermFinanceApprove,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
	},
	RoleFinance: {
		PermFinanceRead,
		PermFinanceApprove,
		PermFinanceDisburse,
		PermPayrollRead,
		PermPayrollWrite,
		PermPayrollRun,
	},
	RoleSystemAdmin: {
		PermMaintenanceRun,
		PermFinanceRead,
		PermPayrollRead,
	},
	RoleService: {
		PermFinanceRead,
		PermPayrollRead,
		PermPayrollRun,
	},
}

// StaticPermissions resolves permissions from RolePermissions by role name.
type StaticPermissions struct {
	byRole map[string]map[string]struct{}
}

func NewStaticPermissions() *StaticPermissions {
	byRole := make(map[string]map[string]struct{}, len(RolePermissions))
	for role, perms := range RolePermissions {
		set := make(map[string]struct{}, len(perms))
		for _, perm := range perms {
			set[perm] = struct{}{}
		}
		byRole[role] = set
	}
	return &StaticPermissions{byRole: byRole}
}

func (p *StaticPermissions) Allows(roleName, permission string) bool {
	_, ok := p.byRole[roleName][permission]
	return ok
}
