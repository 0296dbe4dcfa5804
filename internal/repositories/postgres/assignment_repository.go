package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/repositories"
)

// PostgresAssignmentRepository implements AssignmentRepository using
// PostgreSQL. Template references carry ON DELETE RESTRICT foreign keys, so
// an assign racing a template delete fails on whichever side lands second.
type PostgresAssignmentRepository struct {
	db *sql.DB
}

// NewPostgresAssignmentRepository creates a new PostgreSQL assignment repository.
func NewPostgresAssignmentRepository(db *sql.DB) repositories.AssignmentRepository {
	return &PostgresAssignmentRepository{db: db}
}

// FindCompanyAssignment retrieves the user's company permission row.
// A missing row is a defined state and returns (nil, nil).
func (r *PostgresAssignmentRepository) FindCompanyAssignment(ctx context.Context, userID string) (*entities.CompanyPermission, error) {
	query := `
		SELECT user_id, company_template_id, created_at, updated_at
		FROM company_permissions
		WHERE user_id = $1
	`
	var permission entities.CompanyPermission
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&permission.UserID,
		&permission.CompanyTemplateID,
		&permission.CreatedAt,
		&permission.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("failed to get company assignment", err)
	}
	return &permission, nil
}

// UpsertCompanyAssignment creates or replaces the user's company permission.
func (r *PostgresAssignmentRepository) UpsertCompanyAssignment(ctx context.Context, permission *entities.CompanyPermission) error {
	query := `
		INSERT INTO company_permissions (user_id, company_template_id, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET company_template_id = EXCLUDED.company_template_id, updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query, permission.UserID, permission.CompanyTemplateID, now)
	if err != nil {
		if isForeignKeyViolation(err) {
			return entities.ErrNotFound
		}
		return storeError("failed to upsert company assignment", err)
	}
	return nil
}

// FindProjectAssignment retrieves the membership row for a (user, project)
// pair, or (nil, nil) when the user is not a member.
func (r *PostgresAssignmentRepository) FindProjectAssignment(ctx context.Context, userID, projectID string) (*entities.ProjectAssignment, error) {
	query := selectAssignmentColumns + ` WHERE user_id = $1 AND project_id = $2`
	assignment, err := scanAssignment(r.db.QueryRowContext(ctx, query, userID, projectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// FindProjectAssignmentByID retrieves a membership row by id.
func (r *PostgresAssignmentRepository) FindProjectAssignmentByID(ctx context.Context, id string) (*entities.ProjectAssignment, error) {
	query := selectAssignmentColumns + ` WHERE id = $1`
	assignment, err := scanAssignment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entities.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return assignment, nil
}

// ListProjectAssignmentsByUser retrieves every membership for a user.
func (r *PostgresAssignmentRepository) ListProjectAssignmentsByUser(ctx context.Context, userID string) ([]*entities.ProjectAssignment, error) {
	query := selectAssignmentColumns + ` WHERE user_id = $1 ORDER BY project_id`
	return r.queryAssignments(ctx, query, userID)
}

// ListProjectAssignmentsByProject retrieves every membership on a project.
func (r *PostgresAssignmentRepository) ListProjectAssignmentsByProject(ctx context.Context, projectID string) ([]*entities.ProjectAssignment, error) {
	query := selectAssignmentColumns + ` WHERE project_id = $1 ORDER BY user_id`
	return r.queryAssignments(ctx, query, projectID)
}

// InsertProjectAssignment creates a membership row.
func (r *PostgresAssignmentRepository) InsertProjectAssignment(ctx context.Context, assignment *entities.ProjectAssignment) error {
	query := `
		INSERT INTO project_assignments
			(id, user_id, project_id, project_template_id, role_override, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		assignment.ID,
		assignment.UserID,
		assignment.ProjectID,
		nullableString(assignment.ProjectTemplateID),
		nullableString(assignment.RoleOverride),
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ErrConflict
		}
		if isForeignKeyViolation(err) {
			return entities.ErrNotFound
		}
		return storeError("failed to insert project assignment", err)
	}
	assignment.CreatedAt = now
	assignment.UpdatedAt = now
	return nil
}

// SetProjectTemplate attaches a template to an existing membership row.
func (r *PostgresAssignmentRepository) SetProjectTemplate(ctx context.Context, userID, projectID, templateID string) error {
	query := `
		UPDATE project_assignments
		SET project_template_id = $1, updated_at = $2
		WHERE user_id = $3 AND project_id = $4
	`
	result, err := r.db.ExecContext(ctx, query, templateID, time.Now(), userID, projectID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return entities.ErrNotFound
		}
		return storeError("failed to set project template", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// ClearProjectTemplate detaches the template from a membership row. Clearing
// an already-clear row succeeds, so the operation is idempotent.
func (r *PostgresAssignmentRepository) ClearProjectTemplate(ctx context.Context, assignmentID string) error {
	query := `
		UPDATE project_assignments
		SET project_template_id = NULL, updated_at = $1
		WHERE id = $2
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), assignmentID)
	if err != nil {
		return storeError("failed to clear project template", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return entities.ErrNotFound
	}
	return nil
}

// DeleteProjectAssignment removes a membership row.
func (r *PostgresAssignmentRepository) DeleteProjectAssignment(ctx context.Context, userID, projectID string) error {
	query := `DELETE FROM project_assignments WHERE user_id = $1 AND project_id = $2`
	result, err := r.db.ExecContext(ctx, query, userID, projectID)
	if err != nil {
		return storeError("failed to delete project assignment", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return entities.ErrNotFound
	}
	return nil
}

const selectAssignmentColumns = `
	SELECT id, user_id, project_id, project_template_id, role_override, created_at, updated_at
	FROM project_assignments`

func (r *PostgresAssignmentRepository) queryAssignments(ctx context.Context, query string, arg interface{}) ([]*entities.ProjectAssignment, error) {
	rows, err := r.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, storeError("failed to list project assignments", err)
	}
	defer rows.Close()

	var assignments []*entities.ProjectAssignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate project assignments", err)
	}
	return assignments, nil
}

func scanAssignment(row rowScanner) (*entities.ProjectAssignment, error) {
	var (
		assignment   entities.ProjectAssignment
		templateID   sql.NullString
		roleOverride sql.NullString
	)
	err := row.Scan(
		&assignment.ID,
		&assignment.UserID,
		&assignment.ProjectID,
		&templateID,
		&roleOverride,
		&assignment.CreatedAt,
		&assignment.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, storeError("failed to scan project assignment", err)
	}
	assignment.ProjectTemplateID = templateID.String
	assignment.RoleOverride = roleOverride.String
	return &assignment, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
