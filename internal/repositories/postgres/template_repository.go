package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/asagiri/genbamon/internal/entities"
	"github.com/asagiri/genbamon/internal/repositories"
)

// Postgres error codes used to translate constraint violations into domain
// error kinds.
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// storeError wraps a driver-level failure so callers can match
// entities.ErrStoreUnavailable and decide to retry.
func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, entities.ErrStoreUnavailable, err)
}

// PostgresTemplateRepository implements TemplateRepository using PostgreSQL.
// Name uniqueness rides on the unique index over name, so concurrent inserts
// of the same name settle inside the database.
type PostgresTemplateRepository struct {
	db *sql.DB
}

// NewPostgresTemplateRepository creates a new PostgreSQL template repository.
func NewPostgresTemplateRepository(db *sql.DB) repositories.TemplateRepository {
	return &PostgresTemplateRepository{db: db}
}

// Insert stores a new template.
func (r *PostgresTemplateRepository) Insert(ctx context.Context, template *entities.PermissionTemplate) error {
	toolJSON, granularJSON, err := marshalPermissionMaps(template)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO permission_templates
			(id, name, description, scope, tool_permissions, granular_permissions,
			 is_system_default, is_protected, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	now := time.Now()
	_, err = r.db.ExecContext(ctx, query,
		template.ID,
		template.Name,
		template.Description,
		string(template.Scope),
		toolJSON,
		granularJSON,
		template.IsSystemDefault,
		template.IsProtected,
		template.SortOrder,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ErrDuplicateName
		}
		return storeError("failed to insert template", err)
	}

	template.CreatedAt = now
	template.UpdatedAt = now
	return nil
}

// Update replaces the stored template content.
func (r *PostgresTemplateRepository) Update(ctx context.Context, template *entities.PermissionTemplate) error {
	toolJSON, granularJSON, err := marshalPermissionMaps(template)
	if err != nil {
		return err
	}

	query := `
		UPDATE permission_templates
		SET name = $1, description = $2, tool_permissions = $3,
		    granular_permissions = $4, sort_order = $5, updated_at = $6
		WHERE id = $7
	`
	now := time.Now()
	result, err := r.db.ExecContext(ctx, query,
		template.Name,
		template.Description,
		toolJSON,
		granularJSON,
		template.SortOrder,
		now,
		template.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return entities.ErrDuplicateName
		}
		return storeError("failed to update template", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return entities.ErrNotFound
	}

	template.UpdatedAt = now
	return nil
}

// Delete removes an unreferenced template. The reference guard and the
// delete run as a single statement, so a concurrent assign either lands
// before (blocking the delete) or fails its foreign key check after.
func (r *PostgresTemplateRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM permission_templates t
		WHERE t.id = $1
		  AND NOT EXISTS (
			SELECT 1 FROM company_permissions cp WHERE cp.company_template_id = t.id
		  )
		  AND NOT EXISTS (
			SELECT 1 FROM project_assignments pa WHERE pa.project_template_id = t.id
		  )
	`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			count, countErr := r.CountReferences(ctx, id)
			if countErr != nil {
				count = 1
			}
			return &entities.TemplateInUseError{TemplateID: id, Count: count}
		}
		return storeError("failed to delete template", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storeError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		count, err := r.CountReferences(ctx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return &entities.TemplateInUseError{TemplateID: id, Count: count}
		}
		return entities.ErrNotFound
	}

	return nil
}

// FindByID retrieves a template by id.
func (r *PostgresTemplateRepository) FindByID(ctx context.Context, id string) (*entities.PermissionTemplate, error) {
	query := selectTemplateColumns + ` WHERE id = $1`
	return r.queryOne(ctx, query, id)
}

// FindByName retrieves a template by exact name.
func (r *PostgresTemplateRepository) FindByName(ctx context.Context, name string) (*entities.PermissionTemplate, error) {
	query := selectTemplateColumns + ` WHERE name = $1`
	return r.queryOne(ctx, query, name)
}

// List retrieves templates, optionally filtered by scope, in display order.
func (r *PostgresTemplateRepository) List(ctx context.Context, scope *entities.TemplateScope) ([]*entities.PermissionTemplate, error) {
	query := selectTemplateColumns
	args := []interface{}{}
	if scope != nil {
		query += ` WHERE scope = $1`
		args = append(args, string(*scope))
	}
	query += ` ORDER BY sort_order, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError("failed to list templates", err)
	}
	defer rows.Close()

	var templates []*entities.PermissionTemplate
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("failed to iterate templates", err)
	}
	return templates, nil
}

// CountReferences returns the number of live assignments pointing at the
// template.
func (r *PostgresTemplateRepository) CountReferences(ctx context.Context, id string) (int, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM company_permissions WHERE company_template_id = $1) +
			(SELECT COUNT(*) FROM project_assignments WHERE project_template_id = $1)
	`
	var count int
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return 0, storeError("failed to count template references", err)
	}
	return count, nil
}

// MaxSortOrder returns the highest sort order across all templates.
func (r *PostgresTemplateRepository) MaxSortOrder(ctx context.Context) (int, error) {
	query := `SELECT COALESCE(MAX(sort_order), 0) FROM permission_templates`
	var max int
	if err := r.db.QueryRowContext(ctx, query).Scan(&max); err != nil {
		return 0, storeError("failed to get max sort order", err)
	}
	return max, nil
}

const selectTemplateColumns = `
	SELECT id, name, description, scope, tool_permissions, granular_permissions,
	       is_system_default, is_protected, sort_order, created_at, updated_at
	FROM permission_templates`

func (r *PostgresTemplateRepository) queryOne(ctx context.Context, query string, arg interface{}) (*entities.PermissionTemplate, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	template, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, entities.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return template, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*entities.PermissionTemplate, error) {
	var (
		template     entities.PermissionTemplate
		scope        string
		toolJSON     []byte
		granularJSON []byte
	)
	err := row.Scan(
		&template.ID,
		&template.Name,
		&template.Description,
		&scope,
		&toolJSON,
		&granularJSON,
		&template.IsSystemDefault,
		&template.IsProtected,
		&template.SortOrder,
		&template.CreatedAt,
		&template.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, storeError("failed to scan template", err)
	}

	template.Scope = entities.TemplateScope(scope)
	if err := json.Unmarshal(toolJSON, &template.ToolPermissions); err != nil {
		return nil, fmt.Errorf("failed to decode tool permissions: %w", err)
	}
	if err := json.Unmarshal(granularJSON, &template.GranularPermissions); err != nil {
		return nil, fmt.Errorf("failed to decode granular permissions: %w", err)
	}
	return &template, nil
}

func marshalPermissionMaps(template *entities.PermissionTemplate) ([]byte, []byte, error) {
	toolPermissions := template.ToolPermissions
	if toolPermissions == nil {
		toolPermissions = map[string]entities.AccessLevel{}
	}
	toolJSON, err := json.Marshal(toolPermissions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode tool permissions: %w", err)
	}

	granularPermissions := template.GranularPermissions
	if granularPermissions == nil {
		granularPermissions = map[string][]string{}
	}
	granularJSON, err := json.Marshal(granularPermissions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode granular permissions: %w", err)
	}
	return toolJSON, granularJSON, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == pqUniqueViolation
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == pqForeignKeyViolation
	}
	return false
}
