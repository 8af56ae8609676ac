package controller

import (
	"github.com/Skryldev/people/internal/errors"
)

// Domain sentinels. They reach callers inside a *DomainError, so both
// errors.Is(err, ErrNotRegistered) and IsDomain(err) hold.
var (
	ErrAlreadyExists      = errors.New("person already registered")
	ErrNotRegistered      = errors.New("person not registered")
	ErrInvalidField       = errors.New("invalid field")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrForbidden          = errors.New("action not allowed for this role")
	ErrNoStorage          = errors.New("no storage selected")
	ErrUnknownStorage     = errors.New("unknown storage")
)

// DomainError is a failure the caller can recover from by changing its
// input. Anything else the controller returns is an infrastructure failure.
type DomainError struct {
	Sentinel error
	Detail   string
	Cause    error
}

func (e *DomainError) Error() string {
	if e.Detail == "" {
		return e.Sentinel.Error()
	}
	return e.Sentinel.Error() + ": " + e.Detail
}

func (e *DomainError) Is(target error) bool { return errors.Is(e.Sentinel, target) }
func (e *DomainError) Unwrap() error        { return e.Cause }

// IsDomain reports whether err is recoverable.
func IsDomain(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

func domainError(sentinel, cause error, detail string) error {
	return errors.WithStack(&DomainError{Sentinel: sentinel, Detail: detail, Cause: cause})
}
