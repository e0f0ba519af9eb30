package domain

// AuthUser is the resolved identity exposed to the rest of the application.
// Role-specific fields are set only for the matching role.
type AuthUser struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Role  Role   `json:"role" yaml:"role"`

	TeamMembershipID *string `json:"team_membership_id,omitempty" yaml:"team_membership_id,omitempty"`
	SuperAdminRole   *string `json:"super_admin_role,omitempty" yaml:"super_admin_role,omitempty"`

	EmployerRecordID *string `json:"employer_record_id,omitempty" yaml:"employer_record_id,omitempty"`

	EmployeeID   *string `json:"employee_id,omitempty" yaml:"employee_id,omitempty"`
	EmployeeCode *string `json:"employee_code,omitempty" yaml:"employee_code,omitempty"`

	ContractorID      *string `json:"contractor_id,omitempty" yaml:"contractor_id,omitempty"`
	ContractorCode    *string `json:"contractor_code,omitempty" yaml:"contractor_code,omitempty"`
	CurrentContractID *string `json:"current_contract_id,omitempty" yaml:"current_contract_id,omitempty"`

	CompanyID   *string `json:"company_id" yaml:"company_id"`
	CompanyName *string `json:"company_name" yaml:"company_name"`
}

// NewAuthUser flattens a principal and its role record. A nil record yields an
// unassigned user; company is ignored for records that carry no company id.
func NewAuthUser(p Principal, record RoleRecord, company *CompanySummary) *AuthUser {
	user := &AuthUser{
		ID:    p.ID,
		Name:  displayName(p),
		Email: p.Email,
		Role:  RoleUnassigned,
	}
	if record == nil {
		return user
	}

	user.Role = record.Role()
	switch r := record.(type) {
	case SuperAdmin:
		user.TeamMembershipID = strPtr(r.TeamMembershipID)
		user.SuperAdminRole = strPtr(r.SuperAdminRole)
	case Employer:
		user.EmployerRecordID = strPtr(r.EmployerRecordID)
	case Employee:
		user.EmployeeID = strPtr(r.EmployeeID)
		user.EmployeeCode = strPtr(r.EmployeeCode)
	case Contractor:
		user.ContractorID = strPtr(r.ContractorID)
		user.ContractorCode = strPtr(r.ContractorCode)
		user.CurrentContractID = copyPtr(r.CurrentContractID)
	}

	if id := record.companyID(); id != nil {
		user.CompanyID = strPtr(*id)
		if company != nil {
			user.CompanyName = strPtr(company.Name())
		}
	}
	return user
}

// Clone returns a deep copy.
func (u *AuthUser) Clone() *AuthUser {
	if u == nil {
		return nil
	}
	c := *u
	c.TeamMembershipID = copyPtr(u.TeamMembershipID)
	c.SuperAdminRole = copyPtr(u.SuperAdminRole)
	c.EmployerRecordID = copyPtr(u.EmployerRecordID)
	c.EmployeeID = copyPtr(u.EmployeeID)
	c.EmployeeCode = copyPtr(u.EmployeeCode)
	c.ContractorID = copyPtr(u.ContractorID)
	c.ContractorCode = copyPtr(u.ContractorCode)
	c.CurrentContractID = copyPtr(u.CurrentContractID)
	c.CompanyID = copyPtr(u.CompanyID)
	c.CompanyName = copyPtr(u.CompanyName)
	return &c
}

func displayName(p Principal) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.Email
}

func strPtr(value string) *string {
	return &value
}

func copyPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
