package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidSelector rejects selection calls made with an empty slug.
var ErrInvalidSelector = errors.New("engine selector must be a non-empty slug")

// NotFoundError means no descriptor is registered for the slug. This is a
// configuration error: the operator asked for an engine that does not exist.
type NotFoundError struct {
	Kind Kind
	Slug string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s engine registered with slug %q", e.Kind, e.Slug)
}

// UnavailableError means the descriptor exists but a runtime dependency is
// missing on this machine. Reason names each missing dependency. Distinct
// from NotFoundError so callers can tell "doesn't exist" from "exists but
// cannot run here".
type UnavailableError struct {
	Kind   Kind
	Slug   string
	Reason error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s engine %q is unavailable: %v", e.Kind, e.Slug, e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Reason }

// InitError means the engine's factory failed irrecoverably, for example
// because acoustic-model files are missing. Raised once at construction,
// never per call.
type InitError struct {
	Kind Kind
	Slug string
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initializing %s engine %q: %v", e.Kind, e.Slug, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
