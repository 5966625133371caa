package domain

import "time"

// Lead is a prospect within an organization. Email is the identity key
// inside one organization. Leads are created by import/API and are
// read-only as far as the outreach core is concerned.
type Lead struct {
	ID             string `json:"id" db:"id"`
	OrganizationID string `json:"organization_id" db:"organization_id"`
	Email          string `json:"email" db:"email"`
	Name           string `json:"name" db:"name"`
	Company        string `json:"company" db:"company"`
	Title          string `json:"title" db:"title"`

	// Enrichment attributes, best-effort populated at import time.
	Website     string `json:"website" db:"website"`
	LinkedInURL string `json:"linkedin_url" db:"linkedin_url"`
	Location    string `json:"location" db:"location"`
	Industry    string `json:"industry" db:"industry"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FirstName derives the lead's first name: the first whitespace-separated
// token of Name, or "" when the name is empty.
func (l *Lead) FirstName() string {
	for i, r := range l.Name {
		if r == ' ' || r == '\t' {
			return l.Name[:i]
		}
	}
	return l.Name
}
