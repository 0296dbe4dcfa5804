package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asagiri/genbamon/internal/entities"
)

func newAssignmentRepoMock(t *testing.T) (*PostgresAssignmentRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresAssignmentRepository{db: db}, mock
}

func assignmentRows(a *entities.ProjectAssignment) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "project_id", "project_template_id", "role_override", "created_at", "updated_at",
	}).AddRow(a.ID, a.UserID, a.ProjectID, nullable(a.ProjectTemplateID), nullable(a.RoleOverride), a.CreatedAt, a.UpdatedAt)
}

// nullable renders an optional column the way the driver would.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func TestPostgresAssignmentRepository_FindCompanyAssignment(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM company_permissions")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "company_template_id", "created_at", "updated_at"}).
			AddRow("user-1", "tmpl-1", now, now))

	permission, err := repo.FindCompanyAssignment(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, permission)
	assert.Equal(t, "tmpl-1", permission.CompanyTemplateID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_FindCompanyAssignmentAbsent(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	// No company template is a defined state, not an error.
	mock.ExpectQuery(regexp.QuoteMeta("FROM company_permissions")).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

	permission, err := repo.FindCompanyAssignment(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Nil(t, permission)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_UpsertCompanyAssignment(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id)")).
		WithArgs("user-1", "tmpl-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpsertCompanyAssignment(context.Background(), &entities.CompanyPermission{
		UserID:            "user-1",
		CompanyTemplateID: "tmpl-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_UpsertUnknownTemplate(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (user_id)")).
		WillReturnError(&pq.Error{Code: pqForeignKeyViolation})

	err := repo.UpsertCompanyAssignment(context.Background(), &entities.CompanyPermission{
		UserID:            "user-1",
		CompanyTemplateID: "tmpl-missing",
	})
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_FindProjectAssignmentAbsent(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM project_assignments")).
		WithArgs("user-1", "proj-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	assignment, err := repo.FindProjectAssignment(context.Background(), "user-1", "proj-1")
	require.NoError(t, err)
	assert.Nil(t, assignment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_InsertProjectAssignment(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	// A fresh member has no template; the column stores NULL, not "".
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_assignments")).
		WithArgs("pa-1", "user-1", "proj-1",
			sql.NullString{}, sql.NullString{String: "Foreman", Valid: true},
			sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.InsertProjectAssignment(context.Background(), &entities.ProjectAssignment{
		ID:           "pa-1",
		UserID:       "user-1",
		ProjectID:    "proj-1",
		RoleOverride: "Foreman",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_InsertDuplicateMembership(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO project_assignments")).
		WillReturnError(&pq.Error{Code: pqUniqueViolation})

	err := repo.InsertProjectAssignment(context.Background(), &entities.ProjectAssignment{
		ID: "pa-2", UserID: "user-1", ProjectID: "proj-1",
	})
	assert.ErrorIs(t, err, entities.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_SetProjectTemplate(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET project_template_id = $1")).
		WithArgs("tmpl-1", sqlmock.AnyArg(), "user-1", "proj-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetProjectTemplate(context.Background(), "user-1", "proj-1", "tmpl-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_SetProjectTemplateNoMembership(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET project_template_id = $1")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetProjectTemplate(context.Background(), "user-9", "proj-9", "tmpl-1")
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_ClearProjectTemplate(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("SET project_template_id = NULL")).
		WithArgs(sqlmock.AnyArg(), "pa-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.ClearProjectTemplate(context.Background(), "pa-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_DeleteProjectAssignment(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM project_assignments")).
		WithArgs("user-1", "proj-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteProjectAssignment(context.Background(), "user-1", "proj-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignmentRepository_ListByUserScansNulls(t *testing.T) {
	repo, mock := newAssignmentRepoMock(t)

	now := time.Now()
	rows := assignmentRows(&entities.ProjectAssignment{
		ID: "pa-1", UserID: "user-1", ProjectID: "proj-1",
		CreatedAt: now, UpdatedAt: now,
	})
	rows.AddRow("pa-2", "user-1", "proj-2", "tmpl-1", "Inspector", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 ORDER BY project_id")).
		WithArgs("user-1").
		WillReturnRows(rows)

	assignments, err := repo.ListProjectAssignmentsByUser(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Empty(t, assignments[0].ProjectTemplateID)
	assert.Empty(t, assignments[0].RoleOverride)
	assert.Equal(t, "tmpl-1", assignments[1].ProjectTemplateID)
	assert.Equal(t, "Inspector", assignments[1].RoleOverride)
	assert.NoError(t, mock.ExpectationsWereMet())
}
