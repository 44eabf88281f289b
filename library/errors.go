package library

import (
	"errors"
	"fmt"
	"strings"
)

// Category sentinels. Every failure the package returns matches exactly one
// of these via errors.Is, so callers can tell a business-rule rejection from
// a missing row or a broken database.
var (
	ErrNotFound           = errors.New("not found")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrValidationFailed   = errors.New("validation failed")
)

// Not-found failures.
var (
	ErrBookNotFound      = fmt.Errorf("book %w", ErrNotFound)
	ErrMemberNotFound    = fmt.Errorf("member %w", ErrNotFound)
	ErrBorrowingNotFound = fmt.Errorf("borrowing %w", ErrNotFound)
)

// Business-rule failures.
var (
	ErrNoCopiesAvailable     = fmt.Errorf("%w: no copies available", ErrPreconditionFailed)
	ErrAllCopiesAvailable    = fmt.Errorf("%w: all copies are already available", ErrPreconditionFailed)
	ErrMemberNotActive       = fmt.Errorf("%w: member is not active", ErrPreconditionFailed)
	ErrBorrowingLimitReached = fmt.Errorf("%w: borrowing limit reached", ErrPreconditionFailed)
	ErrAlreadyReturned       = fmt.Errorf("%w: book already returned", ErrPreconditionFailed)
	ErrHasOpenBorrowings     = fmt.Errorf("%w: open borrowings exist", ErrPreconditionFailed)
)

// Uniqueness failures.
var (
	ErrDuplicateISBN       = fmt.Errorf("%w: a book with this ISBN already exists", ErrConflict)
	ErrDuplicateMemberCode = fmt.Errorf("%w: a member with this code already exists", ErrConflict)
	ErrDuplicateEmail      = fmt.Errorf("%w: a member with this email already exists", ErrConflict)
)

// ErrInvalidCredentials is returned when the librarian password does not
// verify.
var ErrInvalidCredentials = errors.New("invalid credentials")

// StorageError wraps a driver or connection failure so it is never mistaken
// for a business-rule rejection.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches the ErrStorageUnavailable category.
func (e *StorageError) Is(target error) bool { return target == ErrStorageUnavailable }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Violation is a single field-level validation failure.
type Violation struct {
	Field  string
	Reason string
}

func (v Violation) String() string { return v.Field + ": " + v.Reason }

// ValidationError reports every rule an entity failed, not just the first.
type ValidationError struct {
	Entity     string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(parts, "; "))
}

// Is matches the ErrValidationFailed category.
func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }
