package entities

// ToolGrants is the resolved view of one scope level: a total map over the
// configured tool vocabulary plus the granular pass-through from the
// template that produced it.
type ToolGrants struct {
	// Tools always carries one entry per tool in the relevant vocabulary,
	// never a sparse map.
	Tools map[string]AccessLevel

	// Granular is copied verbatim from the source template. Empty when no
	// template applied. Meaningless under the owner/admin bypass, where
	// callers must treat every action as permitted.
	Granular map[string][]string
}

// ProjectGrants is the resolved view of a single project assignment.
type ProjectGrants struct {
	ProjectID    string
	AssignmentID string

	// TemplateID is the project template the grants came from, or empty when
	// the member-without-template read-only default applied.
	TemplateID string

	// RoleOverride is the assignment's informational label, passed through.
	RoleOverride string

	ToolGrants
}

// EffectivePermissions is the full resolved access view for one user:
// the bypass flag, the company-level grants, and one entry per project
// the user is assigned to.
type EffectivePermissions struct {
	UserID string

	// IsOwnerAdmin is true when stored templates were bypassed entirely,
	// either because the user's global role is the administrator role or
	// because their company template is protected. When set, every tool at
	// every level resolves to ADMIN and all granular actions are permitted.
	IsOwnerAdmin bool

	Company  ToolGrants
	Projects []ProjectGrants
}

// ProjectGrantsFor returns the resolved grants for one project, or nil when
// the user has no assignment there.
func (e *EffectivePermissions) ProjectGrantsFor(projectID string) *ProjectGrants {
	for i := range e.Projects {
		if e.Projects[i].ProjectID == projectID {
			return &e.Projects[i]
		}
	}
	return nil
}

// CompanyToolAccess returns the resolved company-level access for a tool.
// Tools outside the company vocabulary resolve to NONE.
func (e *EffectivePermissions) CompanyToolAccess(tool string) AccessLevel {
	if level, ok := e.Company.Tools[tool]; ok {
		return level
	}
	return AccessNone
}
