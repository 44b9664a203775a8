package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrAttendeeNotFound = errors.New("attendee not found")
	ErrAlreadyCheckedIn = errors.New("attendance already marked")
	ErrStoreUnavailable = errors.New("attendance store unavailable")

	ErrStaffNotFound      = errors.New("staff member not found")
	ErrEmailTaken         = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrCannotDeleteSelf   = errors.New("cannot delete your own account")
	ErrNothingToUpdate    = errors.New("no fields to update")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
)

// AlreadyCheckedInError несёт уже существующую отметку, а не новую.
type AlreadyCheckedInError struct {
	Attendee  Attendee
	EntryTime time.Time
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("%s at %s", ErrAlreadyCheckedIn.Error(), e.EntryTime.Format(time.RFC3339))
}

func (e *AlreadyCheckedInError) Unwrap() error { return ErrAlreadyCheckedIn }
