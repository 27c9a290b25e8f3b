package lifecycle

import "errors"

// ErrValidation is returned for malformed input: missing identifiers, an
// unknown document type, or an empty rejection reason.
var ErrValidation = errors.New("validation failed")

// ErrUnauthorized is returned when the acting role does not own the current
// stage, or the actor is not the owner for owner-only operations.
var ErrUnauthorized = errors.New("unauthorized")

// ErrDependency classifies collaborator (notification, certificate) failures.
// These are logged and counted after a committed transition; they are never
// returned from the transition itself.
var ErrDependency = errors.New("collaborator failure")
