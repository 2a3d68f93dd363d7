package flow

import "errors"

var (
	// ErrUnknownHandler is returned when no handler is registered for a domain.
	ErrUnknownHandler = errors.New("unknown flow handler")
	// ErrUnknownFlow is returned for flow IDs that are not in progress.
	ErrUnknownFlow = errors.New("unknown flow")
	// ErrUnknownStep is returned when a handler has no step with the requested name.
	ErrUnknownStep = errors.New("unknown flow step")
	// ErrInvalidInput is returned when submitted input does not satisfy the form schema.
	ErrInvalidInput = errors.New("invalid flow input")
	// ErrAlreadyInProgress is returned when a reauth flow for the same entry is already running.
	ErrAlreadyInProgress = errors.New("flow already in progress")
)
