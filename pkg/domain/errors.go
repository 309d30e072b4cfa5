package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Sentinel errors matched with errors.Is against the typed errors below.
var (
	ErrValidation        = errors.New("validation failed")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrDeleteGuard       = errors.New("delete guard violation")
	ErrNotFound          = errors.New("not found")
	ErrPersistence       = errors.New("persistence failure")
	ErrForbidden         = errors.New("forbidden")
	// ErrVersionConflict is wrapped in a PersistenceError when a stored
	// collection changed since it was loaded.
	ErrVersionConflict = errors.New("version conflict")
)

// ValidationError reports a missing or malformed field.
type ValidationError struct {
	Entity  EntityType
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Entity, e.Message)
	}
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Message)
}

// Is matches ErrValidation.
func (e ValidationError) Is(target error) bool { return target == ErrValidation }

// InsufficientStockError is returned when a withdrawal or approval would drive
// stock below zero.
type InsufficientStockError struct {
	PpeID     string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("ppe item %s has %s in stock, %s requested", e.PpeID, e.Available.String(), e.Requested.String())
}

// Is matches ErrInsufficientStock.
func (e InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// IllegalTransitionError is returned when a workflow action is not allowed
// from the entity's current state.
type IllegalTransitionError struct {
	Entity EntityType
	ID     string
	From   string
	Action string
	Reason string
}

func (e IllegalTransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s %s %s in state %q", e.Action, e.Entity, e.ID, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is matches ErrIllegalTransition.
func (e IllegalTransitionError) Is(target error) bool { return target == ErrIllegalTransition }

// DeleteGuardViolation is returned when an entity is still referenced.
type DeleteGuardViolation struct {
	Entity       EntityType
	ID           string
	ReferencedBy EntityType
	ReferenceID  string
	Message      string
}

func (e DeleteGuardViolation) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("cannot delete %s %q: %s", e.Entity, e.ID, e.Message)
	}
	return fmt.Sprintf("%s %q still referenced by %s %q", e.Entity, e.ID, e.ReferencedBy, e.ReferenceID)
}

// Is matches ErrDeleteGuard.
func (e DeleteGuardViolation) Is(target error) bool { return target == ErrDeleteGuard }

// NotFoundError is returned when an operation targets a missing entity.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is matches ErrNotFound.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError wraps a backend failure for a collection key.
type PersistenceError struct {
	Key string
	Op  string
	Err error
}

func (e PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

// Unwrap exposes the backend error.
func (e PersistenceError) Unwrap() error { return e.Err }

// Is matches ErrPersistence.
func (e PersistenceError) Is(target error) bool { return target == ErrPersistence }

// AuthorizationError is returned when the acting user lacks a permission or level.
type AuthorizationError struct {
	UserID     string
	Permission Permission
	Level      UserLevel
	Action     string
}

func (e AuthorizationError) Error() string {
	switch {
	case e.Permission != "":
		return fmt.Sprintf("user %q lacks permission %s to %s", e.UserID, e.Permission, e.Action)
	case e.Level != "":
		return fmt.Sprintf("user %q with level %s may not %s", e.UserID, e.Level, e.Action)
	default:
		return fmt.Sprintf("user %q may not %s", e.UserID, e.Action)
	}
}

// Is matches ErrForbidden.
func (e AuthorizationError) Is(target error) bool { return target == ErrForbidden }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
