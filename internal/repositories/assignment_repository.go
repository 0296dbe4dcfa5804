package repositories

import (
	"context"

	"github.com/asagiri/genbamon/internal/entities"
)

// AssignmentRepository defines the interface for company and project
// assignment data access. Absence of an assignment is a defined state, not
// an error: lookup methods return (nil, nil) when no row exists.
type AssignmentRepository interface {
	// FindCompanyAssignment retrieves the user's company permission row, or
	// (nil, nil) when the user has none.
	FindCompanyAssignment(ctx context.Context, userID string) (*entities.CompanyPermission, error)

	// UpsertCompanyAssignment creates or replaces the user's company
	// permission row.
	UpsertCompanyAssignment(ctx context.Context, permission *entities.CompanyPermission) error

	// FindProjectAssignment retrieves the membership row for a (user,
	// project) pair, or (nil, nil) when the user is not a member.
	FindProjectAssignment(ctx context.Context, userID, projectID string) (*entities.ProjectAssignment, error)

	// FindProjectAssignmentByID retrieves a membership row by its id.
	// Returns entities.ErrNotFound when absent.
	FindProjectAssignmentByID(ctx context.Context, id string) (*entities.ProjectAssignment, error)

	// ListProjectAssignmentsByUser retrieves every project membership for a
	// user, ordered by project id.
	ListProjectAssignmentsByUser(ctx context.Context, userID string) ([]*entities.ProjectAssignment, error)

	// ListProjectAssignmentsByProject retrieves every membership on a
	// project, ordered by user id.
	ListProjectAssignmentsByProject(ctx context.Context, projectID string) ([]*entities.ProjectAssignment, error)

	// InsertProjectAssignment creates a new membership row. Returns
	// entities.ErrConflict when the (user, project) pair already exists.
	InsertProjectAssignment(ctx context.Context, assignment *entities.ProjectAssignment) error

	// SetProjectTemplate attaches a template to an existing membership row.
	// Returns entities.ErrNotFound when no row exists for the pair.
	SetProjectTemplate(ctx context.Context, userID, projectID, templateID string) error

	// ClearProjectTemplate detaches the template from a membership row,
	// never deleting the row itself. A second call on the same row is a
	// no-op. Returns entities.ErrNotFound when the row does not exist.
	ClearProjectTemplate(ctx context.Context, assignmentID string) error

	// DeleteProjectAssignment removes a membership row entirely. Returns
	// entities.ErrNotFound when no row exists for the pair.
	DeleteProjectAssignment(ctx context.Context, userID, projectID string) error
}

// SnapshotProvider hands out opaque tokens that change whenever template or
// assignment data changes. Resolution caches key on the token so stale
// entries die on the next mutation.
type SnapshotProvider interface {
	SnapshotToken(ctx context.Context) (string, error)
}
