// Package resolver computes the effective permission view for a user: the
// owner/admin bypass, company-level tool grants, and per-project tool
// grants. Resolution is a pure read over the template and assignment stores
// and never fails on absent data; absence is a defined state with a
// defined default.
package resolver

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/repositories"
	"github.com/asagiri/genbamon/pkg/cache"
)

// ResolverInterface defines the interface for permission resolution.
type ResolverInterface interface {
	ComputeEffectivePermissions(ctx context.Context, userID string, role entities.GlobalRole) (*entities.EffectivePermissions, error)
}

// Resolver resolves effective permissions from the two stores. The optional
// cache keys on a store snapshot token, so results survive only as long as
// the data they were computed from.
type Resolver struct {
	templateRepo   repositories.TemplateRepository
	assignmentRepo repositories.AssignmentRepository
	catalog        entities.ToolCatalog

	cache     cache.Cache
	snapshots repositories.SnapshotProvider
	cacheTTL  time.Duration
}

// NewResolver creates a Resolver without caching.
func NewResolver(
	templateRepo repositories.TemplateRepository,
	assignmentRepo repositories.AssignmentRepository,
	catalog entities.ToolCatalog,
) *Resolver {
	return &Resolver{
		templateRepo:   templateRepo,
		assignmentRepo: assignmentRepo,
		catalog:        catalog,
	}
}

// NewResolverWithCache creates a Resolver that caches resolved views.
func NewResolverWithCache(
	templateRepo repositories.TemplateRepository,
	assignmentRepo repositories.AssignmentRepository,
	catalog entities.ToolCatalog,
	c cache.Cache,
	snapshots repositories.SnapshotProvider,
	cacheTTL time.Duration,
) *Resolver {
	return &Resolver{
		templateRepo:   templateRepo,
		assignmentRepo: assignmentRepo,
		catalog:        catalog,
		cache:          c,
		snapshots:      snapshots,
		cacheTTL:       cacheTTL,
	}
}

// accessDecision is the tagged outcome of the bypass evaluation: either the
// owner/admin bypass, or resolution through a template that may be nil.
// Both the company and project steps consume it the same way.
type accessDecision struct {
	bypass   bool
	template *entities.PermissionTemplate
}

// grants builds the total tool map for one scope level. Every tool in the
// vocabulary gets an entry: ADMIN under bypass, the template's stored level
// (absent keys resolve to NONE) when a template applies, and the fallback
// when no template is attached.
func (d accessDecision) grants(tools []string, fallback entities.AccessLevel) entities.ToolGrants {
	resolved := entities.ToolGrants{
		Tools:    make(map[string]entities.AccessLevel, len(tools)),
		Granular: map[string][]string{},
	}

	for _, tool := range tools {
		switch {
		case d.bypass:
			resolved.Tools[tool] = entities.AccessAdmin
		case d.template != nil:
			resolved.Tools[tool] = d.template.ToolAccess(tool)
		default:
			resolved.Tools[tool] = fallback
		}
	}

	if !d.bypass && d.template != nil {
		for key, actions := range d.template.GranularPermissions {
			resolved.Granular[key] = append([]string(nil), actions...)
		}
	}
	return resolved
}

// ComputeEffectivePermissions resolves the full access view for a user.
//
// Step 1 decides the owner/admin bypass: the caller-verified global role is
// the administrator role, or the user's company template is protected.
// Step 2 resolves company tools (default NONE without a template).
// Step 3 resolves each project assignment independently (default READ_ONLY
// for members without a template: visibility, never silence, never write).
func (r *Resolver) ComputeEffectivePermissions(ctx context.Context, userID string, role entities.GlobalRole) (*entities.EffectivePermissions, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	useCache := r.cache != nil && r.snapshots != nil
	var cacheKey string
	if useCache {
		token, err := r.snapshots.SnapshotToken(ctx)
		if err != nil {
			// Resolve without the cache rather than fail the read.
			useCache = false
		} else {
			cacheKey = resolutionCacheKey(userID, role, token)
			if cached, found := r.cache.Get(ctx, cacheKey); found {
				if view, ok := cached.(*entities.EffectivePermissions); ok {
					return view, nil
				}
			}
		}
	}

	companyAssignment, err := r.assignmentRepo.FindCompanyAssignment(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get company assignment: %w", err)
	}

	// Each template is fetched exactly once per resolution, so the tool and
	// granular maps always come from the same template version.
	templatesByID := make(map[string]*entities.PermissionTemplate)

	var companyTemplate *entities.PermissionTemplate
	if companyAssignment != nil {
		companyTemplate, err = r.fetchTemplate(ctx, templatesByID, companyAssignment.CompanyTemplateID)
		if err != nil {
			return nil, err
		}
	}

	bypass := role.IsAdmin() || (companyTemplate != nil && companyTemplate.IsProtected)

	view := &entities.EffectivePermissions{
		UserID:       userID,
		IsOwnerAdmin: bypass,
		Company:      accessDecision{bypass: bypass, template: companyTemplate}.grants(r.catalog.CompanyTools, entities.AccessNone),
	}

	assignments, err := r.assignmentRepo.ListProjectAssignmentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list project assignments: %w", err)
	}

	for _, assignment := range assignments {
		var projectTemplate *entities.PermissionTemplate
		if assignment.HasTemplate() {
			projectTemplate, err = r.fetchTemplate(ctx, templatesByID, assignment.ProjectTemplateID)
			if err != nil {
				return nil, err
			}
		}

		decision := accessDecision{bypass: bypass, template: projectTemplate}
		view.Projects = append(view.Projects, entities.ProjectGrants{
			ProjectID:    assignment.ProjectID,
			AssignmentID: assignment.ID,
			TemplateID:   assignment.ProjectTemplateID,
			RoleOverride: assignment.RoleOverride,
			ToolGrants:   decision.grants(r.catalog.ProjectTools, entities.AccessReadOnly),
		})
	}

	if useCache && cacheKey != "" {
		_ = r.cache.Set(ctx, cacheKey, view, r.cacheTTL)
	}
	return view, nil
}

func (r *Resolver) fetchTemplate(ctx context.Context, memo map[string]*entities.PermissionTemplate, id string) (*entities.PermissionTemplate, error) {
	if template, ok := memo[id]; ok {
		return template, nil
	}
	template, err := r.templateRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}
	memo[id] = template
	return template, nil
}

func resolutionCacheKey(userID string, role entities.GlobalRole, snapshotToken string) string {
	keyData := fmt.Sprintf("%s:%s:%s", userID, role, snapshotToken)
	hash := sha256.Sum256([]byte(keyData))
	return hex.EncodeToString(hash[:])
}
