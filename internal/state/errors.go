package state

import "errors"

// Error taxonomy for cache and argument resolution failures. Collaborator
// failures are wrapped with %w and surfaced unchanged; everything else maps
// to one of these sentinels so callers can classify with errors.Is.
var (
	// ErrNotFound means a name, id or uid did not resolve against the
	// loaded snapshot.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguous means a fragment matched more than one entry.
	ErrAmbiguous = errors.New("ambiguous name")

	// ErrNotLoaded means an operation required a category that has not
	// been loaded yet.
	ErrNotLoaded = errors.New("not loaded")

	// ErrBadNumber means an item argument did not parse as a number.
	ErrBadNumber = errors.New("not a number")

	// ErrBadRange means an item range was inverted or out of bounds.
	ErrBadRange = errors.New("invalid range")

	// ErrBadWildcard means '*' was combined with other item arguments.
	ErrBadWildcard = errors.New("incorrect use of *")

	// ErrSelectionMode means id and uid selection were both requested.
	ErrSelectionMode = errors.New("id and uid selection are mutually exclusive")
)
