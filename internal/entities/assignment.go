package entities

import (
	"fmt"
	"time"
)

// CompanyPermission links a user to their single company-level template.
// At most one row exists per user.
type CompanyPermission struct {
	UserID            string
	CompanyTemplateID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Validate checks the company permission's required fields.
func (p *CompanyPermission) Validate() error {
	if p.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if p.CompanyTemplateID == "" {
		return fmt.Errorf("company template ID is required")
	}
	return nil
}

// ProjectAssignment is a user's membership on a project, created when the
// user joins. The template reference is optional: a member without one falls
// back to read-only access on every project tool at resolution time.
type ProjectAssignment struct {
	ID        string
	UserID    string
	ProjectID string

	// ProjectTemplateID references a PROJECT-scoped template, or is empty
	// when no template is attached.
	ProjectTemplateID string

	// RoleOverride is a free-form display label ("Foreman", "Inspector").
	// The resolver never interprets it.
	RoleOverride string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the assignment's required fields.
func (a *ProjectAssignment) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("user ID is required")
	}
	if a.ProjectID == "" {
		return fmt.Errorf("project ID is required")
	}
	return nil
}

// HasTemplate reports whether a project template is attached.
func (a *ProjectAssignment) HasTemplate() bool {
	return a.ProjectTemplateID != ""
}
