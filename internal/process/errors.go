package process

import "errors"

// Domain errors for the process package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, process.ErrAlreadyRegistered) {
//	    // handle duplicate name case
//	}
var (
	// ErrAlreadyRegistered is returned when Start is called with a name
	// that is already in the registry. Names are unique keys; reusing one
	// is a programming error and is rejected rather than overwriting the
	// existing entry.
	ErrAlreadyRegistered = errors.New("process: already registered")

	// ErrNotRegistered is returned when a status lookup names an unknown process.
	ErrNotRegistered = errors.New("process: not registered")

	// ErrEmptyCommand is returned when Start is called with an empty command line.
	ErrEmptyCommand = errors.New("process: empty command line")
)
