// Package memory provides a mutex-guarded in-memory implementation of the
// repository interfaces. It backs the service and resolver tests and is
// handy for wiring the engine without a database. All invariants that the
// PostgreSQL implementation settles with constraints (name uniqueness, the
// delete-vs-assign race) are settled here under a single lock.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/asagiri/genbamon/internal/entities"
)

// Store holds templates and assignments in memory. It implements
// repositories.TemplateRepository, repositories.AssignmentRepository, and
// repositories.SnapshotProvider.
type Store struct {
	mu          sync.RWMutex
	templates   map[string]*entities.PermissionTemplate
	company     map[string]*entities.CompanyPermission // keyed by user id
	assignments map[string]*entities.ProjectAssignment // keyed by assignment id
	revision    uint64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		templates:   make(map[string]*entities.PermissionTemplate),
		company:     make(map[string]*entities.CompanyPermission),
		assignments: make(map[string]*entities.ProjectAssignment),
	}
}

// SnapshotToken returns the store revision, which advances on every write.
func (s *Store) SnapshotToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return strconv.FormatUint(s.revision, 10), nil
}

// Insert stores a new template.
func (s *Store) Insert(ctx context.Context, template *entities.PermissionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.templates {
		if existing.Name == template.Name {
			return entities.ErrDuplicateName
		}
	}
	now := time.Now()
	template.CreatedAt = now
	template.UpdatedAt = now
	s.templates[template.ID] = template.Clone()
	s.revision++
	return nil
}

// Update replaces a stored template.
func (s *Store) Update(ctx context.Context, template *entities.PermissionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.templates[template.ID]
	if !ok {
		return entities.ErrNotFound
	}
	for id, other := range s.templates {
		if id != template.ID && other.Name == template.Name {
			return entities.ErrDuplicateName
		}
	}
	template.CreatedAt = existing.CreatedAt
	template.UpdatedAt = time.Now()
	s.templates[template.ID] = template.Clone()
	s.revision++
	return nil
}

// Delete removes an unreferenced template.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[id]; !ok {
		return entities.ErrNotFound
	}
	if count := s.countReferencesLocked(id); count > 0 {
		return &entities.TemplateInUseError{TemplateID: id, Count: count}
	}
	delete(s.templates, id)
	s.revision++
	return nil
}

// FindByID retrieves a template by id.
func (s *Store) FindByID(ctx context.Context, id string) (*entities.PermissionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	template, ok := s.templates[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	return template.Clone(), nil
}

// FindByName retrieves a template by exact name.
func (s *Store) FindByName(ctx context.Context, name string) (*entities.PermissionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, template := range s.templates {
		if template.Name == name {
			return template.Clone(), nil
		}
	}
	return nil, entities.ErrNotFound
}

// List retrieves templates in display order.
func (s *Store) List(ctx context.Context, scope *entities.TemplateScope) ([]*entities.PermissionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var templates []*entities.PermissionTemplate
	for _, template := range s.templates {
		if scope != nil && template.Scope != *scope {
			continue
		}
		templates = append(templates, template.Clone())
	}
	sortTemplates(templates)
	return templates, nil
}

// CountReferences returns the number of assignments pointing at a template.
func (s *Store) CountReferences(ctx context.Context, id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countReferencesLocked(id), nil
}

// MaxSortOrder returns the highest sort order across all templates.
func (s *Store) MaxSortOrder(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	max := 0
	for _, template := range s.templates {
		if template.SortOrder > max {
			max = template.SortOrder
		}
	}
	return max, nil
}

// FindCompanyAssignment retrieves a user's company permission, or (nil, nil).
func (s *Store) FindCompanyAssignment(ctx context.Context, userID string) (*entities.CompanyPermission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	permission, ok := s.company[userID]
	if !ok {
		return nil, nil
	}
	copied := *permission
	return &copied, nil
}

// UpsertCompanyAssignment creates or replaces a user's company permission.
func (s *Store) UpsertCompanyAssignment(ctx context.Context, permission *entities.CompanyPermission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[permission.CompanyTemplateID]; !ok {
		return entities.ErrNotFound
	}
	now := time.Now()
	copied := *permission
	if existing, ok := s.company[permission.UserID]; ok {
		copied.CreatedAt = existing.CreatedAt
	} else {
		copied.CreatedAt = now
	}
	copied.UpdatedAt = now
	s.company[permission.UserID] = &copied
	s.revision++
	return nil
}

// FindProjectAssignment retrieves a membership row, or (nil, nil).
func (s *Store) FindProjectAssignment(ctx context.Context, userID, projectID string) (*entities.ProjectAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, assignment := range s.assignments {
		if assignment.UserID == userID && assignment.ProjectID == projectID {
			copied := *assignment
			return &copied, nil
		}
	}
	return nil, nil
}

// FindProjectAssignmentByID retrieves a membership row by id.
func (s *Store) FindProjectAssignmentByID(ctx context.Context, id string) (*entities.ProjectAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	assignment, ok := s.assignments[id]
	if !ok {
		return nil, entities.ErrNotFound
	}
	copied := *assignment
	return &copied, nil
}

// ListProjectAssignmentsByUser retrieves every membership for a user.
func (s *Store) ListProjectAssignmentsByUser(ctx context.Context, userID string) ([]*entities.ProjectAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var assignments []*entities.ProjectAssignment
	for _, assignment := range s.assignments {
		if assignment.UserID == userID {
			copied := *assignment
			assignments = append(assignments, &copied)
		}
	}
	sortAssignmentsByProject(assignments)
	return assignments, nil
}

// ListProjectAssignmentsByProject retrieves every membership on a project.
func (s *Store) ListProjectAssignmentsByProject(ctx context.Context, projectID string) ([]*entities.ProjectAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var assignments []*entities.ProjectAssignment
	for _, assignment := range s.assignments {
		if assignment.ProjectID == projectID {
			copied := *assignment
			assignments = append(assignments, &copied)
		}
	}
	sortAssignmentsByUser(assignments)
	return assignments, nil
}

// InsertProjectAssignment creates a membership row.
func (s *Store) InsertProjectAssignment(ctx context.Context, assignment *entities.ProjectAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.assignments {
		if existing.UserID == assignment.UserID && existing.ProjectID == assignment.ProjectID {
			return entities.ErrConflict
		}
	}
	if assignment.ProjectTemplateID != "" {
		if _, ok := s.templates[assignment.ProjectTemplateID]; !ok {
			return entities.ErrNotFound
		}
	}
	now := time.Now()
	copied := *assignment
	copied.CreatedAt = now
	copied.UpdatedAt = now
	s.assignments[assignment.ID] = &copied
	s.revision++
	return nil
}

// SetProjectTemplate attaches a template to an existing membership row.
func (s *Store) SetProjectTemplate(ctx context.Context, userID, projectID, templateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[templateID]; !ok {
		return entities.ErrNotFound
	}
	for _, assignment := range s.assignments {
		if assignment.UserID == userID && assignment.ProjectID == projectID {
			assignment.ProjectTemplateID = templateID
			assignment.UpdatedAt = time.Now()
			s.revision++
			return nil
		}
	}
	return entities.ErrNotFound
}

// ClearProjectTemplate detaches the template from a membership row.
func (s *Store) ClearProjectTemplate(ctx context.Context, assignmentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	assignment, ok := s.assignments[assignmentID]
	if !ok {
		return entities.ErrNotFound
	}
	assignment.ProjectTemplateID = ""
	assignment.UpdatedAt = time.Now()
	s.revision++
	return nil
}

// DeleteProjectAssignment removes a membership row.
func (s *Store) DeleteProjectAssignment(ctx context.Context, userID, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, assignment := range s.assignments {
		if assignment.UserID == userID && assignment.ProjectID == projectID {
			delete(s.assignments, id)
			s.revision++
			return nil
		}
	}
	return entities.ErrNotFound
}

func (s *Store) countReferencesLocked(templateID string) int {
	count := 0
	for _, permission := range s.company {
		if permission.CompanyTemplateID == templateID {
			count++
		}
	}
	for _, assignment := range s.assignments {
		if assignment.ProjectTemplateID == templateID {
			count++
		}
	}
	return count
}
