package garden

import "errors"

// Error kinds surfaced by the engine. Callers branch with errors.Is; the
// engine never relies on message text.
var (
	// ErrMustBeUnique reports an insert that would duplicate an existing id.
	ErrMustBeUnique = errors.New("must be unique")

	// ErrNotAllowed reports an operation the current state forbids.
	ErrNotAllowed = errors.New("not allowed")

	// ErrValue reports stored data that could not be decoded.
	ErrValue = errors.New("invalid value")

	// ErrNotFound reports a lookup that matched nothing.
	ErrNotFound = errors.New("not found")
)
