package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/repositories"
)

// AssignmentServiceInterface defines the interface for assignment
// operations.
type AssignmentServiceInterface interface {
	SetCompanyTemplate(ctx context.Context, userID, templateID string) error
	GetCompanyAssignment(ctx context.Context, userID string) (*entities.CompanyPermission, error)
	AddProjectMember(ctx context.Context, userID, projectID, roleOverride string) (*entities.ProjectAssignment, error)
	RemoveProjectMember(ctx context.Context, userID, projectID string) error
	AssignProjectTemplate(ctx context.Context, userID, projectID, templateID string) error
	ClearProjectTemplate(ctx context.Context, assignmentID string) error
	ListProjectAssignments(ctx context.Context, userID string) ([]*entities.ProjectAssignment, error)
	ListProjectMembers(ctx context.Context, projectID string) ([]*entities.ProjectAssignment, error)
}

// AssignmentService owns the mapping from users to templates: one company
// template per user, and per-project membership rows with optional project
// templates. It enforces the scope rules and the member-before-template
// ordering; it stores only template ids, never template content.
type AssignmentService struct {
	templateRepo   repositories.TemplateRepository
	assignmentRepo repositories.AssignmentRepository
}

// NewAssignmentService creates a new AssignmentService.
func NewAssignmentService(templateRepo repositories.TemplateRepository, assignmentRepo repositories.AssignmentRepository) *AssignmentService {
	return &AssignmentService{
		templateRepo:   templateRepo,
		assignmentRepo: assignmentRepo,
	}
}

// SetCompanyTemplate attaches a COMPANY-scoped template to a user,
// replacing any previous company template.
func (s *AssignmentService) SetCompanyTemplate(ctx context.Context, userID, templateID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if templateID == "" {
		return fmt.Errorf("template ID is required")
	}

	template, err := s.templateRepo.FindByID(ctx, templateID)
	if err != nil {
		return err
	}
	if template.Scope != entities.ScopeCompany {
		return fmt.Errorf("%w: template %s is %s-scoped, company template required", entities.ErrScopeMismatch, templateID, template.Scope)
	}

	return s.assignmentRepo.UpsertCompanyAssignment(ctx, &entities.CompanyPermission{
		UserID:            userID,
		CompanyTemplateID: templateID,
	})
}

// GetCompanyAssignment retrieves a user's company permission row, or
// (nil, nil) when the user has none.
func (s *AssignmentService) GetCompanyAssignment(ctx context.Context, userID string) (*entities.CompanyPermission, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	return s.assignmentRepo.FindCompanyAssignment(ctx, userID)
}

// AddProjectMember creates the membership row for a user joining a project.
// The new member has no template; resolution gives them read-only access on
// every project tool until one is assigned.
func (s *AssignmentService) AddProjectMember(ctx context.Context, userID, projectID, roleOverride string) (*entities.ProjectAssignment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	assignment := &entities.ProjectAssignment{
		ID:           uuid.NewString(),
		UserID:       userID,
		ProjectID:    projectID,
		RoleOverride: roleOverride,
	}
	if err := s.assignmentRepo.InsertProjectAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// RemoveProjectMember deletes a membership row, releasing its template
// reference.
func (s *AssignmentService) RemoveProjectMember(ctx context.Context, userID, projectID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if projectID == "" {
		return fmt.Errorf("project ID is required")
	}
	return s.assignmentRepo.DeleteProjectAssignment(ctx, userID, projectID)
}

// AssignProjectTemplate attaches a PROJECT-scoped template to an existing
// project member. The user must already hold a membership row.
func (s *AssignmentService) AssignProjectTemplate(ctx context.Context, userID, projectID, templateID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if projectID == "" {
		return fmt.Errorf("project ID is required")
	}
	if templateID == "" {
		return fmt.Errorf("template ID is required")
	}

	assignment, err := s.assignmentRepo.FindProjectAssignment(ctx, userID, projectID)
	if err != nil {
		return err
	}
	if assignment == nil {
		return fmt.Errorf("%w: user %s on project %s", entities.ErrNotAssignedToProject, userID, projectID)
	}

	template, err := s.templateRepo.FindByID(ctx, templateID)
	if err != nil {
		return err
	}
	if template.Scope != entities.ScopeProject {
		return fmt.Errorf("%w: template %s is %s-scoped, project template required", entities.ErrScopeMismatch, templateID, template.Scope)
	}

	err = s.assignmentRepo.SetProjectTemplate(ctx, userID, projectID, templateID)
	if errors.Is(err, entities.ErrNotFound) {
		// Membership row vanished between the check and the write.
		return fmt.Errorf("%w: user %s on project %s", entities.ErrNotAssignedToProject, userID, projectID)
	}
	return err
}

// ClearProjectTemplate detaches the template from a membership row, keeping
// the membership itself. Calling it again on an already-clear row is a
// no-op.
func (s *AssignmentService) ClearProjectTemplate(ctx context.Context, assignmentID string) error {
	if assignmentID == "" {
		return fmt.Errorf("assignment ID is required")
	}
	return s.assignmentRepo.ClearProjectTemplate(ctx, assignmentID)
}

// ListProjectAssignments retrieves every project membership for a user.
func (s *AssignmentService) ListProjectAssignments(ctx context.Context, userID string) ([]*entities.ProjectAssignment, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	return s.assignmentRepo.ListProjectAssignmentsByUser(ctx, userID)
}

// ListProjectMembers retrieves every membership on a project.
func (s *AssignmentService) ListProjectMembers(ctx context.Context, projectID string) ([]*entities.ProjectAssignment, error) {
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}
	return s.assignmentRepo.ListProjectAssignmentsByProject(ctx, projectID)
}
