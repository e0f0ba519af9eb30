package domain

import "strings"

// CompanySummary is the company row joined by the role probes.
type CompanySummary struct {
	ID          string  `json:"id"`
	LegalName   string  `json:"legal_name"`
	DisplayName *string `json:"display_name,omitempty"`
}

// Name prefers the display name over the legal name.
func (c CompanySummary) Name() string {
	if c.DisplayName != nil && strings.TrimSpace(*c.DisplayName) != "" {
		return *c.DisplayName
	}
	return c.LegalName
}
