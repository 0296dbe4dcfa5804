package entities

import (
	"errors"
	"fmt"
)

// Domain error kinds. These are policy violations surfaced directly to the
// caller, never retried. Store-level faults use ErrStoreUnavailable or
// ErrConflict instead and may be retried with the same operation.
var (
	// ErrNotFound means a referenced template or assignment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateName means a template name collides with an existing
	// template. Names are compared case-sensitively after trimming.
	ErrDuplicateName = errors.New("template name already exists")

	// ErrProtectedTemplate means an edit or delete targeted a protected
	// template. No field of a protected template may ever change.
	ErrProtectedTemplate = errors.New("template is protected")

	// ErrSystemDefaultTemplate means a delete targeted a system-default
	// template, which is never deletable even when unprotected.
	ErrSystemDefaultTemplate = errors.New("template is a system default")

	// ErrTemplateInUse means a delete was blocked by live references.
	// Returned wrapped in a TemplateInUseError carrying the count.
	ErrTemplateInUse = errors.New("template is in use")

	// ErrScopeMismatch means a COMPANY template was used where PROJECT is
	// required, or vice versa.
	ErrScopeMismatch = errors.New("template scope mismatch")

	// ErrInvalidScope means a template was created with a scope outside
	// COMPANY/PROJECT.
	ErrInvalidScope = errors.New("invalid template scope")

	// ErrUnknownTool means a template write referenced a tool outside the
	// closed vocabulary for its scope.
	ErrUnknownTool = errors.New("unknown tool identifier")

	// ErrNotAssignedToProject means a project template was attached to a
	// user who is not yet a member of that project.
	ErrNotAssignedToProject = errors.New("user is not assigned to project")

	// ErrStoreUnavailable wraps store I/O failures.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConflict wraps a lost race on an atomic conditional write.
	ErrConflict = errors.New("conflicting concurrent update")
)

// TemplateInUseError reports how many assignments still reference a template
// so the caller can render "reassign N users first".
type TemplateInUseError struct {
	TemplateID string
	Count      int
}

// Error implements the error interface.
func (e *TemplateInUseError) Error() string {
	return fmt.Sprintf("template %s is in use by %d assignment(s)", e.TemplateID, e.Count)
}

// Is makes errors.Is(err, ErrTemplateInUse) match.
func (e *TemplateInUseError) Is(target error) bool {
	return target == ErrTemplateInUse
}
