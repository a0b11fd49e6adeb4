package service

import "fmt"

// ValidationError reports a malformed or contradictory request. It is always
// raised before any lookup or write.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NotFoundError reports a referenced entity that does not exist, including a
// section that resolves to zero members.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// AuthorizationError reports a sender who does not hold custody of the
// process they are trying to forward.
type AuthorizationError struct {
	Reason string
}

func (e *AuthorizationError) Error() string {
	return e.Reason
}

// TransactionError wraps any failure inside the atomic write sequence. By the
// time it is returned every write in the sequence has been rolled back.
type TransactionError struct {
	Err error
}

func (e *TransactionError) Error() string {
	return "dispatch transaction failed: " + e.Err.Error()
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}
