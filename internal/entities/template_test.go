package entities

import "testing"

func TestPermissionTemplate_Validate(t *testing.T) {
	tests := []struct {
		name     string
		template *PermissionTemplate
		wantErr  bool
	}{
		{
			name: "valid company template",
			template: &PermissionTemplate{
				Name:  "Office Staff",
				Scope: ScopeCompany,
				ToolPermissions: map[string]AccessLevel{
					"projects":   AccessReadOnly,
					"financials": AccessNone,
				},
			},
			wantErr: false,
		},
		{
			name: "valid project template with granular permissions",
			template: &PermissionTemplate{
				Name:  "Field Worker",
				Scope: ScopeProject,
				ToolPermissions: map[string]AccessLevel{
					"daily_logs": AccessStandard,
				},
				GranularPermissions: map[string][]string{
					"daily_logs.entries": {"create", "read"},
				},
			},
			wantErr: false,
		},
		{
			name: "missing name",
			template: &PermissionTemplate{
				Name:  "   ",
				Scope: ScopeCompany,
			},
			wantErr: true,
		},
		{
			name: "invalid scope",
			template: &PermissionTemplate{
				Name:  "Broken",
				Scope: TemplateScope("GLOBAL"),
			},
			wantErr: true,
		},
		{
			name: "invalid access level",
			template: &PermissionTemplate{
				Name:  "Broken",
				Scope: ScopeProject,
				ToolPermissions: map[string]AccessLevel{
					"safety": AccessLevel("FULL"),
				},
			},
			wantErr: true,
		},
		{
			name: "blank tool identifier",
			template: &PermissionTemplate{
				Name:  "Broken",
				Scope: ScopeProject,
				ToolPermissions: map[string]AccessLevel{
					" ": AccessAdmin,
				},
			},
			wantErr: true,
		},
		{
			name: "blank granular key",
			template: &PermissionTemplate{
				Name:  "Broken",
				Scope: ScopeProject,
				GranularPermissions: map[string][]string{
					"": {"read"},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.template.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPermissionTemplate_ToolAccess(t *testing.T) {
	template := &PermissionTemplate{
		Name:  "Project Manager",
		Scope: ScopeProject,
		ToolPermissions: map[string]AccessLevel{
			"safety":     AccessStandard,
			"financials": AccessNone,
		},
	}

	tests := []struct {
		name string
		tool string
		want AccessLevel
	}{
		{name: "present tool", tool: "safety", want: AccessStandard},
		{name: "explicit NONE stays NONE", tool: "financials", want: AccessNone},
		{name: "absent tool defaults to NONE", tool: "daily_logs", want: AccessNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := template.ToolAccess(tt.tool); got != tt.want {
				t.Errorf("ToolAccess(%q) = %v, want %v", tt.tool, got, tt.want)
			}
		})
	}
}

func TestPermissionTemplate_ToolAccess_NilMap(t *testing.T) {
	template := &PermissionTemplate{Name: "Empty", Scope: ScopeProject}
	if got := template.ToolAccess("safety"); got != AccessNone {
		t.Errorf("ToolAccess on nil map = %v, want %v", got, AccessNone)
	}
}

func TestPermissionTemplate_Clone(t *testing.T) {
	original := &PermissionTemplate{
		ID:    "tmpl-1",
		Name:  "Field Worker",
		Scope: ScopeProject,
		ToolPermissions: map[string]AccessLevel{
			"daily_logs": AccessStandard,
		},
		GranularPermissions: map[string][]string{
			"daily_logs.entries": {"create"},
		},
	}

	clone := original.Clone()
	clone.ToolPermissions["daily_logs"] = AccessAdmin
	clone.GranularPermissions["daily_logs.entries"][0] = "delete"

	if original.ToolPermissions["daily_logs"] != AccessStandard {
		t.Error("Clone() shares the tool permission map with the original")
	}
	if original.GranularPermissions["daily_logs.entries"][0] != "create" {
		t.Error("Clone() shares the granular permission slices with the original")
	}
}

func TestPermissionTemplate_Clone_Nil(t *testing.T) {
	var template *PermissionTemplate
	if clone := template.Clone(); clone != nil {
		t.Errorf("Clone() of nil = %v, want nil", clone)
	}
}
