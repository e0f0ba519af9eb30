package domain

import "fmt"

// Role is the discriminant of a resolved identity.
type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleEmployer   Role = "employer"
	RoleEmployee   Role = "employee"
	RoleContractor Role = "contractor"
	RoleUnassigned Role = "unassigned"
)

// RolePriority lists the assignable roles from highest to lowest priority.
var RolePriority = []Role{RoleSuperAdmin, RoleEmployer, RoleEmployee, RoleContractor}

// Rank returns the position of r in RolePriority, or len(RolePriority) for
// roles outside it.
func (r Role) Rank() int {
	for i, candidate := range RolePriority {
		if candidate == r {
			return i
		}
	}
	return len(RolePriority)
}

// ParseRole validates a role name.
func ParseRole(value string) (Role, error) {
	switch r := Role(value); r {
	case RoleSuperAdmin, RoleEmployer, RoleEmployee, RoleContractor, RoleUnassigned:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", value)
	}
}

// RoleRecord is exactly one of SuperAdmin, Employer, Employee or Contractor.
type RoleRecord interface {
	Role() Role
	companyID() *string
}

// SuperAdmin is a platform operator. It never belongs to a company.
type SuperAdmin struct {
	TeamMembershipID string `json:"team_membership_id"`
	SuperAdminRole   string `json:"super_admin_role"`
}

func (SuperAdmin) Role() Role         { return RoleSuperAdmin }
func (SuperAdmin) companyID() *string { return nil }

// Employer is an employer administrator of one company.
type Employer struct {
	EmployerRecordID string `json:"employer_record_id"`
	CompanyID        string `json:"company_id"`
}

func (Employer) Role() Role           { return RoleEmployer }
func (e Employer) companyID() *string { return nonEmpty(e.CompanyID) }

// Employee belongs to one company.
type Employee struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeCode string `json:"employee_code"`
	CompanyID    string `json:"company_id"`
}

func (Employee) Role() Role           { return RoleEmployee }
func (e Employee) companyID() *string { return nonEmpty(e.CompanyID) }

// Contractor may hold several contracts; CompanyID comes from the contract
// flagged current and is nil when none is.
type Contractor struct {
	ContractorID      string  `json:"contractor_id"`
	ContractorCode    string  `json:"contractor_code"`
	CompanyID         *string `json:"company_id,omitempty"`
	CurrentContractID *string `json:"current_contract_id,omitempty"`
}

func (Contractor) Role() Role           { return RoleContractor }
func (c Contractor) companyID() *string { return c.CompanyID }

func nonEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
