package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error taxonomy. Callers branch with errors.Is against these sentinels; the
// wrapping IntentError carries the structured detail (actor, transaction,
// violated rule) an audit trail needs.
var (
	// ErrNotFound indicates record missing.
	ErrNotFound = errors.New("workflow: not found")
	// ErrUnauthorized indicates the actor lacks the required permission.
	ErrUnauthorized = errors.New("workflow: permission denied")
	// ErrSegregationOfDuties indicates a maker attempted a checker decision
	// on their own submission. Distinct from ErrUnauthorized: the remedy is a
	// different approver, not more access.
	ErrSegregationOfDuties = errors.New("workflow: maker cannot decide own submission")
	// ErrIllegalTransition indicates the request is not valid from the
	// transaction's current status, typically a stale client view.
	ErrIllegalTransition = errors.New("workflow: illegal status transition")
	// ErrValidation indicates caller-correctable invalid input.
	ErrValidation = errors.New("workflow: invalid input")
	// ErrAlreadyDecided indicates a second decision on a queue item; exactly
	// one decision is recorded per item and later attempts lose.
	ErrAlreadyDecided = errors.New("workflow: decision already recorded")
	// ErrConflict indicates a concurrent update race was lost; refetch and
	// re-evaluate before retrying.
	ErrConflict = errors.New("workflow: conflicting concurrent update")
)

// IntentError is a rejected workflow intent. It never partially applies: the
// orchestrator returns it before any write, or the enclosing repository
// transaction rolls back.
type IntentError struct {
	Kind          error
	Rule          string
	ActorID       string
	TransactionID uuid.UUID
	Event         Event
}

func (e *IntentError) Error() string {
	if e.Rule == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Rule)
}

// Unwrap exposes the taxonomy sentinel for errors.Is.
func (e *IntentError) Unwrap() error {
	return e.Kind
}

func reject(kind error, rule string, actorID string, txID uuid.UUID, event Event) error {
	return &IntentError{Kind: kind, Rule: rule, ActorID: actorID, TransactionID: txID, Event: event}
}
