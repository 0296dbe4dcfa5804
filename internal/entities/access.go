package entities

import (
	"fmt"
	"strings"
)

// AccessLevel is the coarse grant a user holds on a single tool.
type AccessLevel string

const (
	AccessNone     AccessLevel = "NONE"
	AccessReadOnly AccessLevel = "READ_ONLY"
	AccessStandard AccessLevel = "STANDARD"
	AccessAdmin    AccessLevel = "ADMIN"
)

// ParseAccessLevel parses an access level string case-insensitively.
// Returns an error for anything outside the four known levels.
func ParseAccessLevel(s string) (AccessLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(AccessNone):
		return AccessNone, nil
	case string(AccessReadOnly):
		return AccessReadOnly, nil
	case string(AccessStandard):
		return AccessStandard, nil
	case string(AccessAdmin):
		return AccessAdmin, nil
	default:
		return "", fmt.Errorf("unknown access level: %q", s)
	}
}

// IsValid reports whether the access level is one of the four known levels.
func (a AccessLevel) IsValid() bool {
	switch a {
	case AccessNone, AccessReadOnly, AccessStandard, AccessAdmin:
		return true
	}
	return false
}

// TemplateScope identifies the level a template applies at.
type TemplateScope string

const (
	ScopeCompany TemplateScope = "COMPANY"
	ScopeProject TemplateScope = "PROJECT"
)

// ParseTemplateScope parses a scope string case-insensitively.
func ParseTemplateScope(s string) (TemplateScope, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ScopeCompany):
		return ScopeCompany, nil
	case string(ScopeProject):
		return ScopeProject, nil
	default:
		return "", fmt.Errorf("unknown template scope: %q", s)
	}
}

// IsValid reports whether the scope is COMPANY or PROJECT.
func (s TemplateScope) IsValid() bool {
	return s == ScopeCompany || s == ScopeProject
}

// GlobalRole is the caller-verified platform role of a user. The engine only
// cares whether it is the administrator role; everything else is opaque.
type GlobalRole string

const (
	RoleAdmin   GlobalRole = "admin"
	RoleManager GlobalRole = "manager"
	RoleMember  GlobalRole = "member"
)

// IsAdmin reports whether the role grants the owner/admin bypass.
func (r GlobalRole) IsAdmin() bool {
	return r == RoleAdmin
}

// ToolCatalog holds the closed tool vocabularies the resolver operates over.
// Tools outside these lists do not exist as far as the engine is concerned,
// no matter what a stored template claims.
type ToolCatalog struct {
	CompanyTools []string
	ProjectTools []string
}

// HasCompanyTool reports whether the tool is part of the company vocabulary.
func (c *ToolCatalog) HasCompanyTool(tool string) bool {
	return containsTool(c.CompanyTools, tool)
}

// HasProjectTool reports whether the tool is part of the project vocabulary.
func (c *ToolCatalog) HasProjectTool(tool string) bool {
	return containsTool(c.ProjectTools, tool)
}

// ToolsForScope returns the vocabulary matching the given scope.
func (c *ToolCatalog) ToolsForScope(scope TemplateScope) []string {
	if scope == ScopeCompany {
		return c.CompanyTools
	}
	return c.ProjectTools
}

// Validate checks that both vocabularies are non-empty and free of
// duplicates and blank entries.
func (c *ToolCatalog) Validate() error {
	if len(c.CompanyTools) == 0 {
		return fmt.Errorf("company tool list is empty")
	}
	if len(c.ProjectTools) == 0 {
		return fmt.Errorf("project tool list is empty")
	}
	if err := checkToolList("company", c.CompanyTools); err != nil {
		return err
	}
	return checkToolList("project", c.ProjectTools)
}

func checkToolList(kind string, tools []string) error {
	seen := make(map[string]struct{}, len(tools))
	for _, tool := range tools {
		if strings.TrimSpace(tool) == "" {
			return fmt.Errorf("%s tool list contains a blank entry", kind)
		}
		if _, dup := seen[tool]; dup {
			return fmt.Errorf("%s tool list contains duplicate entry: %s", kind, tool)
		}
		seen[tool] = struct{}{}
	}
	return nil
}

func containsTool(tools []string, tool string) bool {
	for _, t := range tools {
		if t == tool {
			return true
		}
	}
	return false
}
