package repositories

import (
	"context"

	"github.com/asagiri/genbamon/internal/entities"
)

// TemplateRepository defines the interface for permission template data
// access. Implementations must make the uniqueness check on Insert/Update
// and the reference guard on Delete atomic: two concurrent inserts of the
// same name must not both succeed, and a delete racing an assign must fail
// on one side or the other, never leave a dangling reference.
type TemplateRepository interface {
	// Insert stores a new template. Returns entities.ErrDuplicateName when
	// another template already holds the name.
	Insert(ctx context.Context, template *entities.PermissionTemplate) error

	// Update replaces the stored template. Returns entities.ErrNotFound when
	// the id is unknown and entities.ErrDuplicateName when a rename collides.
	Update(ctx context.Context, template *entities.PermissionTemplate) error

	// Delete removes a template with no live references. Returns
	// entities.ErrNotFound when the id is unknown and a
	// *entities.TemplateInUseError when assignments still point at it.
	Delete(ctx context.Context, id string) error

	// FindByID retrieves a template. Returns entities.ErrNotFound when absent.
	FindByID(ctx context.Context, id string) (*entities.PermissionTemplate, error)

	// FindByName retrieves a template by exact name. Returns
	// entities.ErrNotFound when absent.
	FindByName(ctx context.Context, name string) (*entities.PermissionTemplate, error)

	// List retrieves templates ordered by sort order then name. A nil scope
	// lists everything.
	List(ctx context.Context, scope *entities.TemplateScope) ([]*entities.PermissionTemplate, error)

	// CountReferences returns the number of company permissions plus project
	// assignments currently pointing at the template.
	CountReferences(ctx context.Context, id string) (int, error)

	// MaxSortOrder returns the highest sort order across all templates, or
	// zero when none exist.
	MaxSortOrder(ctx context.Context) (int, error)
}
