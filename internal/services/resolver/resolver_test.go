package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/repositories/memory"
	"github.com/asagiri/genbamon/pkg/cache/memorycache"
)

func testCatalog() entities.ToolCatalog {
	return entities.ToolCatalog{
		CompanyTools: []string{"projects", "directory", "time_tracking", "financials", "settings"},
		ProjectTools: []string{"daily_logs", "tasks", "safety", "financials", "photos"},
	}
}

func seedTemplate(t *testing.T, store *memory.Store, template *entities.PermissionTemplate) {
	t.Helper()
	if err := store.Insert(context.Background(), template); err != nil {
		t.Fatalf("failed to seed template %s: %v", template.Name, err)
	}
}

func seedCompanyAssignment(t *testing.T, store *memory.Store, userID, templateID string) {
	t.Helper()
	err := store.UpsertCompanyAssignment(context.Background(), &entities.CompanyPermission{
		UserID:            userID,
		CompanyTemplateID: templateID,
	})
	if err != nil {
		t.Fatalf("failed to seed company assignment: %v", err)
	}
}

func seedProjectMember(t *testing.T, store *memory.Store, id, userID, projectID, templateID string) {
	t.Helper()
	err := store.InsertProjectAssignment(context.Background(), &entities.ProjectAssignment{
		ID:                id,
		UserID:            userID,
		ProjectID:         projectID,
		ProjectTemplateID: templateID,
	})
	if err != nil {
		t.Fatalf("failed to seed project assignment: %v", err)
	}
}

func requireAllTools(t *testing.T, grants entities.ToolGrants, tools []string, want entities.AccessLevel) {
	t.Helper()
	if len(grants.Tools) != len(tools) {
		t.Errorf("tool map has %d entries, want %d (never sparse)", len(grants.Tools), len(tools))
	}
	for _, tool := range tools {
		got, ok := grants.Tools[tool]
		if !ok {
			t.Errorf("tool %s missing from resolved map", tool)
			continue
		}
		if got != want {
			t.Errorf("tool %s = %v, want %v", tool, got, want)
		}
	}
}

func TestComputeEffectivePermissions_AdminRoleBypass(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()

	// A restrictive template must be ignored entirely under the bypass.
	seedTemplate(t, store, &entities.PermissionTemplate{
		ID:    "tmpl-company",
		Name:  "Locked Down",
		Scope: entities.ScopeCompany,
		ToolPermissions: map[string]entities.AccessLevel{
			"projects": entities.AccessNone,
		},
	})
	seedCompanyAssignment(t, store, "alice", "tmpl-company")
	seedProjectMember(t, store, "pa-1", "alice", "proj-1", "")

	r := NewResolver(store, store, catalog)
	view, err := r.ComputeEffectivePermissions(context.Background(), "alice", entities.RoleAdmin)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}

	if !view.IsOwnerAdmin {
		t.Error("IsOwnerAdmin = false, want true for admin role")
	}
	requireAllTools(t, view.Company, catalog.CompanyTools, entities.AccessAdmin)
	if len(view.Projects) != 1 {
		t.Fatalf("got %d project entries, want 1", len(view.Projects))
	}
	requireAllTools(t, view.Projects[0].ToolGrants, catalog.ProjectTools, entities.AccessAdmin)
}

func TestComputeEffectivePermissions_ProtectedTemplateBypass(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()

	seedTemplate(t, store, &entities.PermissionTemplate{
		ID:          "tmpl-owner",
		Name:        "Account Owner",
		Scope:       entities.ScopeCompany,
		IsProtected: true,
		ToolPermissions: map[string]entities.AccessLevel{
			"projects": entities.AccessReadOnly,
		},
	})
	seedCompanyAssignment(t, store, "bob", "tmpl-owner")
	seedProjectMember(t, store, "pa-1", "bob", "proj-9", "")

	r := NewResolver(store, store, catalog)
	view, err := r.ComputeEffectivePermissions(context.Background(), "bob", entities.RoleMember)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}

	if !view.IsOwnerAdmin {
		t.Error("IsOwnerAdmin = false, want true for protected company template")
	}
	requireAllTools(t, view.Company, catalog.CompanyTools, entities.AccessAdmin)
	requireAllTools(t, view.Projects[0].ToolGrants, catalog.ProjectTools, entities.AccessAdmin)
}

func TestComputeEffectivePermissions_NoCompanyTemplateDefaultsToNone(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()

	r := NewResolver(store, store, catalog)
	view, err := r.ComputeEffectivePermissions(context.Background(), "carol", entities.RoleMember)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}

	if view.IsOwnerAdmin {
		t.Error("IsOwnerAdmin = true, want false")
	}
	// Strict company default: no access until explicitly granted.
	requireAllTools(t, view.Company, catalog.CompanyTools, entities.AccessNone)
	if len(view.Company.Granular) != 0 {
		t.Errorf("granular = %v, want empty without a template", view.Company.Granular)
	}
	if len(view.Projects) != 0 {
		t.Errorf("got %d project entries, want 0", len(view.Projects))
	}
}

func TestComputeEffectivePermissions_MemberWithoutTemplateDefaultsToReadOnly(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()
	seedProjectMember(t, store, "pa-1", "dave", "proj-1", "")

	r := NewResolver(store, store, catalog)
	view, err := r.ComputeEffectivePermissions(context.Background(), "dave", entities.RoleMember)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}

	if len(view.Projects) != 1 {
		t.Fatalf("got %d project entries, want 1", len(view.Projects))
	}
	// Project membership without a template grants visibility, never
	// silence and never write access.
	requireAllTools(t, view.Projects[0].ToolGrants, catalog.ProjectTools, entities.AccessReadOnly)
	if view.Projects[0].TemplateID != "" {
		t.Errorf("TemplateID = %q, want empty", view.Projects[0].TemplateID)
	}
}

func TestComputeEffectivePermissions_IncompleteProjectTemplate(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()

	// A template that only grants safety: every other project tool must
	// resolve to NONE, not to the member read-only default.
	seedTemplate(t, store, &entities.PermissionTemplate{
		ID:    "tmpl-safety",
		Name:  "Safety Inspector",
		Scope: entities.ScopeProject,
		ToolPermissions: map[string]entities.AccessLevel{
			"safety": entities.AccessStandard,
		},
	})
	seedProjectMember(t, store, "pa-1", "erin", "proj-7", "tmpl-safety")

	r := NewResolver(store, store, catalog)
	view, err := r.ComputeEffectivePermissions(context.Background(), "erin", entities.RoleMember)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}

	grants := view.Projects[0]
	if grants.ProjectID != "proj-7" {
		t.Errorf("ProjectID = %q, want proj-7", grants.ProjectID)
	}
	if grants.TemplateID != "tmpl-safety" {
		t.Errorf("TemplateID = %q, want tmpl-safety", grants.TemplateID)
	}
	for _, tool := range catalog.ProjectTools {
		want := entities.AccessNone
		if tool == "safety" {
			want = entities.AccessStandard
		}
		if got := grants.Tools[tool]; got != want {
			t.Errorf("tool %s = %v, want %v", tool, got, want)
		}
	}
}

func TestComputeEffectivePermissions_CompanyTemplateGrants(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()

	seedTemplate(t, store, &entities.PermissionTemplate{
		ID:    "tmpl-office",
		Name:  "Office Staff",
		Scope: entities.ScopeCompany,
		ToolPermissions: map[string]entities.AccessLevel{
			"projects":      entities.AccessStandard,
			"time_tracking": entities.AccessAdmin,
		},
		GranularPermissions: map[string][]string{
			"time_tracking.entries": {"approve", "export"},
		},
	})
	seedCompanyAssignment(t, store, "frank", "tmpl-office")

	r := NewResolver(store, store, catalog)
	view, err := r.ComputeEffectivePermissions(context.Background(), "frank", entities.RoleMember)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}

	wantLevels := map[string]entities.AccessLevel{
		"projects":      entities.AccessStandard,
		"directory":     entities.AccessNone,
		"time_tracking": entities.AccessAdmin,
		"financials":    entities.AccessNone,
		"settings":      entities.AccessNone,
	}
	for tool, want := range wantLevels {
		if got := view.Company.Tools[tool]; got != want {
			t.Errorf("tool %s = %v, want %v", tool, got, want)
		}
	}

	actions := view.Company.Granular["time_tracking.entries"]
	if len(actions) != 2 || actions[0] != "approve" || actions[1] != "export" {
		t.Errorf("granular pass-through = %v, want [approve export]", actions)
	}
}

func TestComputeEffectivePermissions_IndependentProjects(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()

	seedTemplate(t, store, &entities.PermissionTemplate{
		ID:    "tmpl-pm",
		Name:  "Project Manager",
		Scope: entities.ScopeProject,
		ToolPermissions: map[string]entities.AccessLevel{
			"daily_logs": entities.AccessAdmin,
			"tasks":      entities.AccessAdmin,
			"safety":     entities.AccessStandard,
			"financials": entities.AccessStandard,
			"photos":     entities.AccessAdmin,
		},
	})
	seedProjectMember(t, store, "pa-1", "grace", "proj-a", "tmpl-pm")
	seedProjectMember(t, store, "pa-2", "grace", "proj-b", "")

	r := NewResolver(store, store, catalog)
	view, err := r.ComputeEffectivePermissions(context.Background(), "grace", entities.RoleMember)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}

	if len(view.Projects) != 2 {
		t.Fatalf("got %d project entries, want 2", len(view.Projects))
	}

	byProject := map[string]entities.ProjectGrants{}
	for _, p := range view.Projects {
		byProject[p.ProjectID] = p
	}
	if got := byProject["proj-a"].Tools["daily_logs"]; got != entities.AccessAdmin {
		t.Errorf("proj-a daily_logs = %v, want ADMIN", got)
	}
	requireAllTools(t, byProject["proj-b"].ToolGrants, catalog.ProjectTools, entities.AccessReadOnly)
}

func TestComputeEffectivePermissions_RoleOverridePassThrough(t *testing.T) {
	store := memory.NewStore()
	err := store.InsertProjectAssignment(context.Background(), &entities.ProjectAssignment{
		ID:           "pa-1",
		UserID:       "henry",
		ProjectID:    "proj-1",
		RoleOverride: "Foreman",
	})
	if err != nil {
		t.Fatalf("failed to seed assignment: %v", err)
	}

	r := NewResolver(store, store, testCatalog())
	view, err := r.ComputeEffectivePermissions(context.Background(), "henry", entities.RoleMember)
	if err != nil {
		t.Fatalf("ComputeEffectivePermissions() error = %v", err)
	}
	if view.Projects[0].RoleOverride != "Foreman" {
		t.Errorf("RoleOverride = %q, want Foreman", view.Projects[0].RoleOverride)
	}
}

func TestComputeEffectivePermissions_MissingUserID(t *testing.T) {
	r := NewResolver(memory.NewStore(), memory.NewStore(), testCatalog())
	if _, err := r.ComputeEffectivePermissions(context.Background(), "", entities.RoleMember); err == nil {
		t.Error("ComputeEffectivePermissions(\"\") error = nil, want error")
	}
}

func TestComputeEffectivePermissions_CachedResolution(t *testing.T) {
	store := memory.NewStore()
	catalog := testCatalog()
	seedProjectMember(t, store, "pa-1", "iris", "proj-1", "")

	c := memorycache.New(memorycache.Config{MaxEntries: 100, DefaultTTL: time.Minute})
	r := NewResolverWithCache(store, store, catalog, c, store, time.Minute)

	ctx := context.Background()
	first, err := r.ComputeEffectivePermissions(ctx, "iris", entities.RoleMember)
	if err != nil {
		t.Fatalf("first resolution error = %v", err)
	}
	second, err := r.ComputeEffectivePermissions(ctx, "iris", entities.RoleMember)
	if err != nil {
		t.Fatalf("second resolution error = %v", err)
	}
	if c.Metrics().Hits != 1 {
		t.Errorf("cache hits = %d, want 1", c.Metrics().Hits)
	}
	if second.Projects[0].ProjectID != first.Projects[0].ProjectID {
		t.Error("cached view differs from computed view")
	}

	// A mutation moves the snapshot token; the stale entry must not serve.
	seedTemplate(t, store, &entities.PermissionTemplate{
		ID:    "tmpl-new",
		Name:  "Field Worker",
		Scope: entities.ScopeProject,
		ToolPermissions: map[string]entities.AccessLevel{
			"daily_logs": entities.AccessStandard,
		},
	})
	if err := store.SetProjectTemplate(ctx, "iris", "proj-1", "tmpl-new"); err != nil {
		t.Fatalf("failed to assign template: %v", err)
	}

	third, err := r.ComputeEffectivePermissions(ctx, "iris", entities.RoleMember)
	if err != nil {
		t.Fatalf("third resolution error = %v", err)
	}
	if got := third.Projects[0].Tools["daily_logs"]; got != entities.AccessStandard {
		t.Errorf("post-mutation daily_logs = %v, want STANDARD (stale cache served?)", got)
	}
}
