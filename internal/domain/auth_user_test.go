package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompanySummaryName(t *testing.T) {
	display := "Acme"
	blank := "  "

	assert.Equal(t, "Acme", CompanySummary{LegalName: "Acme Holdings Ltd", DisplayName: &display}.Name())
	assert.Equal(t, "Acme Holdings Ltd", CompanySummary{LegalName: "Acme Holdings Ltd"}.Name())
	assert.Equal(t, "Acme Holdings Ltd", CompanySummary{LegalName: "Acme Holdings Ltd", DisplayName: &blank}.Name())
}

func TestNewAuthUser(t *testing.T) {
	principal := Principal{ID: "u1", Email: "ada@example.com"}
	display := "Acme"
	acme := &CompanySummary{ID: "c1", LegalName: "Acme Holdings Ltd", DisplayName: &display}
	contract := "k1"
	company := "c1"

	tests := []struct {
		name        string
		record      RoleRecord
		company     *CompanySummary
		wantRole    Role
		wantCompany *string
		wantName    *string
		check       func(t *testing.T, u *AuthUser)
	}{
		{
			name:     "no record is unassigned",
			wantRole: RoleUnassigned,
		},
		{
			name:     "superadmin carries no company",
			record:   SuperAdmin{TeamMembershipID: "tm1", SuperAdminRole: "ops"},
			company:  acme,
			wantRole: RoleSuperAdmin,
			check: func(t *testing.T, u *AuthUser) {
				require.NotNil(t, u.SuperAdminRole)
				assert.Equal(t, "ops", *u.SuperAdminRole)
				assert.Equal(t, "tm1", *u.TeamMembershipID)
			},
		},
		{
			name:        "employer gets company display name",
			record:      Employer{EmployerRecordID: "e1", CompanyID: "c1"},
			company:     acme,
			wantRole:    RoleEmployer,
			wantCompany: &company,
			wantName:    &display,
			check: func(t *testing.T, u *AuthUser) {
				assert.Equal(t, "e1", *u.EmployerRecordID)
				assert.Nil(t, u.EmployeeID)
			},
		},
		{
			name:        "employee without joined company keeps id only",
			record:      Employee{EmployeeID: "em1", EmployeeCode: "E-7", CompanyID: "c1"},
			wantRole:    RoleEmployee,
			wantCompany: &company,
			check: func(t *testing.T, u *AuthUser) {
				assert.Equal(t, "E-7", *u.EmployeeCode)
			},
		},
		{
			name:     "contractor without current contract has no company",
			record:   Contractor{ContractorID: "ct1", ContractorCode: "C-1"},
			company:  acme,
			wantRole: RoleContractor,
			check: func(t *testing.T, u *AuthUser) {
				assert.Nil(t, u.CurrentContractID)
			},
		},
		{
			name:        "contractor with current contract",
			record:      Contractor{ContractorID: "ct1", ContractorCode: "C-1", CompanyID: &company, CurrentContractID: &contract},
			company:     acme,
			wantRole:    RoleContractor,
			wantCompany: &company,
			wantName:    &display,
			check: func(t *testing.T, u *AuthUser) {
				assert.Equal(t, "k1", *u.CurrentContractID)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := NewAuthUser(principal, tt.record, tt.company)

			assert.Equal(t, "u1", u.ID)
			assert.Equal(t, "ada@example.com", u.Name)
			assert.Equal(t, tt.wantRole, u.Role)
			assert.Equal(t, tt.wantCompany, u.CompanyID)
			assert.Equal(t, tt.wantName, u.CompanyName)
			if tt.check != nil {
				tt.check(t, u)
			}
		})
	}
}

func TestAuthUserCloneIsDeep(t *testing.T) {
	company := "c1"
	u := NewAuthUser(Principal{ID: "u1", Email: "a@b.c", DisplayName: "Ada"}, Employer{EmployerRecordID: "e1", CompanyID: company}, nil)

	c := u.Clone()
	*c.CompanyID = "other"
	*c.EmployerRecordID = "other"

	assert.Equal(t, "c1", *u.CompanyID)
	assert.Equal(t, "e1", *u.EmployerRecordID)
	assert.Equal(t, "Ada", c.Name)
	assert.Nil(t, (*AuthUser)(nil).Clone())
}

func TestRedirectMap(t *testing.T) {
	m := DefaultRedirects()

	path, ok := m.PathFor(RoleEmployer)
	assert.True(t, ok)
	assert.Equal(t, "/employer/dashboard", path)

	_, ok = m.PathFor(RoleUnassigned)
	assert.False(t, ok)

	overridden := m.With(map[Role]string{RoleUnassigned: "/pending"})
	path, ok = overridden.PathFor(RoleUnassigned)
	assert.True(t, ok)
	assert.Equal(t, "/pending", path)
	_, ok = m.PathFor(RoleUnassigned)
	assert.False(t, ok, "With must not mutate the receiver")
}

func TestRoleRank(t *testing.T) {
	assert.Less(t, RoleSuperAdmin.Rank(), RoleEmployer.Rank())
	assert.Less(t, RoleEmployer.Rank(), RoleEmployee.Rank())
	assert.Less(t, RoleEmployee.Rank(), RoleContractor.Rank())
	assert.Less(t, RoleContractor.Rank(), RoleUnassigned.Rank())

	_, err := ParseRole("owner")
	assert.Error(t, err)
}
