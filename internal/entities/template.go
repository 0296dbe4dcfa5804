package entities

import (
	"fmt"
	"strings"
	"time"
)

// PermissionTemplate is a reusable, named set of tool grants that an
// administrator assembles once and applies to many users. A template is
// usable only at the level matching its scope.
type PermissionTemplate struct {
	ID          string
	Name        string
	Description string
	Scope       TemplateScope

	// ToolPermissions maps a tool identifier to its access level. Tools
	// absent from the map resolve to NONE; the map is stored exactly as
	// written and only filled in at resolution time.
	ToolPermissions map[string]AccessLevel

	// GranularPermissions maps a resource/action key to fine-grained
	// capability strings. The engine passes these through untouched.
	GranularPermissions map[string][]string

	// IsSystemDefault marks a template pre-seeded by the system. It blocks
	// deletion but not editing.
	IsSystemDefault bool

	// IsProtected templates can never be edited or deleted. A protected
	// company template also grants its holder the owner/admin bypass.
	IsProtected bool

	// SortOrder is display ordering only.
	SortOrder int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the template's structural invariants. Tool vocabulary
// membership is checked separately against the catalog by the service layer.
func (t *PermissionTemplate) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("template name is required")
	}
	if !t.Scope.IsValid() {
		return fmt.Errorf("invalid template scope: %q", t.Scope)
	}
	for tool, level := range t.ToolPermissions {
		if strings.TrimSpace(tool) == "" {
			return fmt.Errorf("tool permissions contain a blank tool identifier")
		}
		if !level.IsValid() {
			return fmt.Errorf("invalid access level %q for tool %s", level, tool)
		}
	}
	for key := range t.GranularPermissions {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("granular permissions contain a blank key")
		}
	}
	return nil
}

// ToolAccess returns the access level stored for a tool, defaulting to NONE
// when the tool is absent from the map.
func (t *PermissionTemplate) ToolAccess(tool string) AccessLevel {
	if level, ok := t.ToolPermissions[tool]; ok {
		return level
	}
	return AccessNone
}

// Clone returns a deep copy of the template so callers can mutate the result
// without aliasing the stored maps.
func (t *PermissionTemplate) Clone() *PermissionTemplate {
	if t == nil {
		return nil
	}
	clone := *t
	if t.ToolPermissions != nil {
		clone.ToolPermissions = make(map[string]AccessLevel, len(t.ToolPermissions))
		for tool, level := range t.ToolPermissions {
			clone.ToolPermissions[tool] = level
		}
	}
	if t.GranularPermissions != nil {
		clone.GranularPermissions = make(map[string][]string, len(t.GranularPermissions))
		for key, actions := range t.GranularPermissions {
			clone.GranularPermissions[key] = append([]string(nil), actions...)
		}
	}
	return &clone
}
