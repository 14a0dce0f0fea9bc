package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrSessionExpired indicates the bearer token no longer resolves to an actor.
	ErrSessionExpired = errors.New("session expired")
	// ErrActorMissing occurs when a protected handler runs without an actor in context.
	ErrActorMissing = errors.New("actor missing from request context")
)
