package entity

import (
	"errors"
	"fmt"
)

var (
	// Enrollment errors
	ErrInvalidSlot       = errors.New("invalid time slot for course")
	ErrSlotFull          = errors.New("time slot is full")
	ErrAlreadyEnrolled   = errors.New("user is already enrolled in a course")
	ErrAlreadyWaitlisted = errors.New("user is already on a waitlist")
	ErrNotEnrolled       = errors.New("user is not enrolled in any course")
	ErrNotWaitlisted     = errors.New("user is not on a waitlist")
	ErrInvalidSeatCount  = errors.New("seat count cannot be negative")

	// Catalog errors
	ErrCourseNotFound = errors.New("course not found")
	ErrLineNotFound   = errors.New("line not found")
	ErrFAQNotFound    = errors.New("faq entry not found")
	ErrSchoolNotFound = errors.New("school not found")
	ErrSchoolExists   = errors.New("school already exists")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already in use")

	// General errors
	ErrInvalidInput       = errors.New("invalid input")
	ErrTransactionFailure = errors.New("transaction failed")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden operation")
	ErrMaintenance        = errors.New("site is under maintenance")
)

// TxError wraps a persistence failure that aborted a transaction.
// errors.Is(err, ErrTransactionFailure) holds for every TxError.
type TxError struct {
	Op  string
	Err error
}

func (e *TxError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

func (e *TxError) Is(target error) bool {
	return target == ErrTransactionFailure
}

// NewTxError wraps err unless it already is a domain error or a TxError.
func NewTxError(op string, err error) error {
	if err == nil {
		return nil
	}
	if IsDomainError(err) {
		return err
	}
	var txErr *TxError
	if errors.As(err, &txErr) {
		return err
	}
	return &TxError{Op: op, Err: err}
}

var domainErrors = []error{
	ErrInvalidSlot, ErrSlotFull, ErrAlreadyEnrolled, ErrAlreadyWaitlisted,
	ErrNotEnrolled, ErrNotWaitlisted, ErrInvalidSeatCount, ErrCourseNotFound,
	ErrLineNotFound, ErrFAQNotFound, ErrSchoolNotFound, ErrSchoolExists,
	ErrUserNotFound, ErrEmailTaken, ErrInvalidInput, ErrUnauthorized, ErrForbidden,
}

// IsDomainError reports whether err is one of the sentinel business errors.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
