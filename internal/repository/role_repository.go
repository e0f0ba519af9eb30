package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/tenant-session/internal/domain"
	"github.com/spec-kit/tenant-session/internal/resolver"
)

// rowQuerier is the subset of pgxpool.Pool the role probes need.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// RoleProbes returns the four role lookups backed by Postgres, in priority order.
func RoleProbes(db rowQuerier) []resolver.Probe {
	return []resolver.Probe{
		NewSuperAdminProbe(db),
		NewEmployerProbe(db),
		NewEmployeeProbe(db),
		NewContractorProbe(db),
	}
}

type superAdminProbe struct{ db rowQuerier }

// NewSuperAdminProbe looks up active platform team memberships.
func NewSuperAdminProbe(db rowQuerier) resolver.Probe { return &superAdminProbe{db: db} }

func (p *superAdminProbe) Role() domain.Role { return domain.RoleSuperAdmin }

func (p *superAdminProbe) Lookup(ctx context.Context, principalID string) (*resolver.Match, error) {
	const query = `
        SELECT id, role
        FROM team_members
        WHERE user_id=$1 AND is_active=true
        ORDER BY created_at
        LIMIT 1`

	var record domain.SuperAdmin
	err := p.db.QueryRow(ctx, query, principalID).Scan(&record.TeamMembershipID, &record.SuperAdminRole)
	return found(&resolver.Match{Record: record}, err)
}

type employerProbe struct{ db rowQuerier }

// NewEmployerProbe looks up employer administrators joined to their company.
func NewEmployerProbe(db rowQuerier) resolver.Probe { return &employerProbe{db: db} }

func (p *employerProbe) Role() domain.Role { return domain.RoleEmployer }

func (p *employerProbe) Lookup(ctx context.Context, principalID string) (*resolver.Match, error) {
	const query = `
        SELECT e.id, e.company_id, c.id, c.legal_name, c.display_name
        FROM employers e
        LEFT JOIN companies c ON c.id = e.company_id
        WHERE e.user_id=$1
        LIMIT 1`

	var (
		record  domain.Employer
		company companyColumns
	)
	err := p.db.QueryRow(ctx, query, principalID).Scan(
		&record.EmployerRecordID,
		&record.CompanyID,
		&company.ID,
		&company.LegalName,
		&company.DisplayName,
	)
	return found(&resolver.Match{Record: record, Company: company.summary()}, err)
}

type employeeProbe struct{ db rowQuerier }

// NewEmployeeProbe looks up employees joined to their company.
func NewEmployeeProbe(db rowQuerier) resolver.Probe { return &employeeProbe{db: db} }

func (p *employeeProbe) Role() domain.Role { return domain.RoleEmployee }

func (p *employeeProbe) Lookup(ctx context.Context, principalID string) (*resolver.Match, error) {
	const query = `
        SELECT em.id, em.employee_code, em.company_id, c.id, c.legal_name, c.display_name
        FROM employees em
        LEFT JOIN companies c ON c.id = em.company_id
        WHERE em.user_id=$1
        LIMIT 1`

	var (
		record  domain.Employee
		company companyColumns
	)
	err := p.db.QueryRow(ctx, query, principalID).Scan(
		&record.EmployeeID,
		&record.EmployeeCode,
		&record.CompanyID,
		&company.ID,
		&company.LegalName,
		&company.DisplayName,
	)
	return found(&resolver.Match{Record: record, Company: company.summary()}, err)
}

type contractorProbe struct{ db rowQuerier }

// NewContractorProbe looks up contractors. Only the contract flagged current
// contributes a company; without one the company columns are null.
func NewContractorProbe(db rowQuerier) resolver.Probe { return &contractorProbe{db: db} }

func (p *contractorProbe) Role() domain.Role { return domain.RoleContractor }

func (p *contractorProbe) Lookup(ctx context.Context, principalID string) (*resolver.Match, error) {
	const query = `
        SELECT ct.id, ct.contractor_code, cc.id, cc.company_id, c.id, c.legal_name, c.display_name
        FROM contractors ct
        LEFT JOIN contractor_contracts cc ON cc.contractor_id = ct.id AND cc.is_current = true
        LEFT JOIN companies c ON c.id = cc.company_id
        WHERE ct.user_id=$1
        ORDER BY cc.starts_on DESC NULLS LAST
        LIMIT 1`

	var (
		record  domain.Contractor
		company companyColumns
	)
	err := p.db.QueryRow(ctx, query, principalID).Scan(
		&record.ContractorID,
		&record.ContractorCode,
		&record.CurrentContractID,
		&record.CompanyID,
		&company.ID,
		&company.LegalName,
		&company.DisplayName,
	)
	return found(&resolver.Match{Record: record, Company: company.summary()}, err)
}

// companyColumns receives the nullable side of a LEFT JOIN on companies.
type companyColumns struct {
	ID          *string
	LegalName   *string
	DisplayName *string
}

func (c companyColumns) summary() *domain.CompanySummary {
	if c.ID == nil {
		return nil
	}
	summary := &domain.CompanySummary{ID: *c.ID, DisplayName: c.DisplayName}
	if c.LegalName != nil {
		summary.LegalName = *c.LegalName
	}
	return summary
}

// found maps "no row" to an empty, non-error result.
func found(match *resolver.Match, err error) (*resolver.Match, error) {
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return match, nil
}
