package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/repositories"
)

// TemplateServiceInterface defines the interface for template catalog
// operations.
type TemplateServiceInterface interface {
	CreateTemplate(ctx context.Context, input *CreateTemplateInput) (*entities.PermissionTemplate, error)
	UpdateTemplate(ctx context.Context, id string, input *UpdateTemplateInput) (*entities.PermissionTemplate, error)
	DeleteTemplate(ctx context.Context, id string) error
	GetTemplate(ctx context.Context, id string) (*entities.PermissionTemplate, error)
	GetTemplateByName(ctx context.Context, name string) (*entities.PermissionTemplate, error)
	ListTemplates(ctx context.Context, scope *entities.TemplateScope) ([]*entities.PermissionTemplate, error)
}

// TemplateService owns template identity and lifecycle: name uniqueness,
// the protection and system-default guards, and the usage-count delete
// guard. Tool identifiers are validated against the closed catalog on every
// write; stored maps are otherwise kept exactly as written, with omitted
// tools filled in only at resolution time.
type TemplateService struct {
	templateRepo repositories.TemplateRepository
	catalog      entities.ToolCatalog
}

// NewTemplateService creates a new TemplateService.
func NewTemplateService(templateRepo repositories.TemplateRepository, catalog entities.ToolCatalog) *TemplateService {
	return &TemplateService{
		templateRepo: templateRepo,
		catalog:      catalog,
	}
}

// CreateTemplateInput carries the fields for creating a template.
type CreateTemplateInput struct {
	Name                string
	Description         string
	Scope               entities.TemplateScope
	ToolPermissions     map[string]entities.AccessLevel
	GranularPermissions map[string][]string

	// SortOrder is optional; when nil the template is appended after the
	// highest existing sort order.
	SortOrder *int

	// IsSystemDefault and IsProtected are settable on creation only, for
	// the seeding path. Updates can never flip them.
	IsSystemDefault bool
	IsProtected     bool
}

// UpdateTemplateInput carries the partial fields for updating a template.
// Nil fields keep their stored values.
type UpdateTemplateInput struct {
	Name                *string
	Description         *string
	ToolPermissions     map[string]entities.AccessLevel
	GranularPermissions map[string][]string
	SortOrder           *int
}

// CreateTemplate validates and stores a new template.
func (s *TemplateService) CreateTemplate(ctx context.Context, input *CreateTemplateInput) (*entities.PermissionTemplate, error) {
	if !input.Scope.IsValid() {
		return nil, fmt.Errorf("%w: %q", entities.ErrInvalidScope, input.Scope)
	}

	template := &entities.PermissionTemplate{
		ID:                  uuid.NewString(),
		Name:                strings.TrimSpace(input.Name),
		Description:         input.Description,
		Scope:               input.Scope,
		ToolPermissions:     input.ToolPermissions,
		GranularPermissions: input.GranularPermissions,
		IsSystemDefault:     input.IsSystemDefault,
		IsProtected:         input.IsProtected,
	}
	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if err := s.checkToolVocabulary(template); err != nil {
		return nil, err
	}

	if input.SortOrder != nil {
		template.SortOrder = *input.SortOrder
	} else {
		max, err := s.templateRepo.MaxSortOrder(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to assign sort order: %w", err)
		}
		template.SortOrder = max + 1
	}

	if err := s.templateRepo.Insert(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// UpdateTemplate applies a partial update to an unprotected template.
func (s *TemplateService) UpdateTemplate(ctx context.Context, id string, input *UpdateTemplateInput) (*entities.PermissionTemplate, error) {
	if id == "" {
		return nil, fmt.Errorf("template ID is required")
	}

	template, err := s.templateRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if template.IsProtected {
		return nil, entities.ErrProtectedTemplate
	}

	if input.Name != nil {
		template.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		template.Description = *input.Description
	}
	if input.ToolPermissions != nil {
		template.ToolPermissions = input.ToolPermissions
	}
	if input.GranularPermissions != nil {
		template.GranularPermissions = input.GranularPermissions
	}
	if input.SortOrder != nil {
		template.SortOrder = *input.SortOrder
	}

	if err := template.Validate(); err != nil {
		return nil, fmt.Errorf("invalid template: %w", err)
	}
	if err := s.checkToolVocabulary(template); err != nil {
		return nil, err
	}

	if err := s.templateRepo.Update(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

// DeleteTemplate removes a template that is not protected, not a system
// default, and not referenced by any assignment.
func (s *TemplateService) DeleteTemplate(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("template ID is required")
	}

	template, err := s.templateRepo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if template.IsProtected {
		return entities.ErrProtectedTemplate
	}
	if template.IsSystemDefault {
		return entities.ErrSystemDefaultTemplate
	}

	// The repository settles the usage-count guard atomically against
	// concurrent assigns.
	return s.templateRepo.Delete(ctx, id)
}

// GetTemplate retrieves a template by id.
func (s *TemplateService) GetTemplate(ctx context.Context, id string) (*entities.PermissionTemplate, error) {
	if id == "" {
		return nil, fmt.Errorf("template ID is required")
	}
	return s.templateRepo.FindByID(ctx, id)
}

// GetTemplateByName retrieves a template by its trimmed name.
func (s *TemplateService) GetTemplateByName(ctx context.Context, name string) (*entities.PermissionTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("template name is required")
	}
	return s.templateRepo.FindByName(ctx, name)
}

// ListTemplates retrieves templates in display order, optionally filtered by
// scope.
func (s *TemplateService) ListTemplates(ctx context.Context, scope *entities.TemplateScope) ([]*entities.PermissionTemplate, error) {
	return s.templateRepo.List(ctx, scope)
}

// checkToolVocabulary rejects tool identifiers outside the closed set for
// the template's scope.
func (s *TemplateService) checkToolVocabulary(template *entities.PermissionTemplate) error {
	tools := s.catalog.ToolsForScope(template.Scope)
	for tool := range template.ToolPermissions {
		if !containsString(tools, tool) {
			return fmt.Errorf("%w: %q is not a %s tool", entities.ErrUnknownTool, tool, strings.ToLower(string(template.Scope)))
		}
	}
	return nil
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
