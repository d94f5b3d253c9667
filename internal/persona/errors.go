package persona

import "errors"

// Domain errors for the persona package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, persona.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a persona name does not exist.
	ErrNotFound = errors.New("persona: not found")

	// ErrExists is returned when creating a persona with a name that already exists.
	ErrExists = errors.New("persona: already exists")

	// ErrInvalid is returned when persona validation fails.
	ErrInvalid = errors.New("persona: invalid")

	// ErrNoneAvailable is returned when random selection is requested but the
	// store holds no personas.
	ErrNoneAvailable = errors.New("persona: none available")
)
