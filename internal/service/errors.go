package service

import (
	"context"
	"errors"
	"fmt"

	"fleettrack/internal/repository"
)

// Kind classifies an Error for callers deciding whether to retry or how to report it.
type Kind string

const (
	// KindNotFound means a referenced driver, vehicle, device or session does not exist.
	KindNotFound Kind = "NOT_FOUND"

	// KindPreconditionFailed means the request is well-formed but the current
	// state forbids it.
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"

	// KindInvalidArgument means the request itself is malformed.
	KindInvalidArgument Kind = "INVALID_ARGUMENT"

	// KindTransient means the store failed in a retryable way and no side
	// effects were persisted.
	KindTransient Kind = "TRANSIENT_STORE_ERROR"

	// KindInvariant means stored state contradicts the one-active-session rules.
	KindInvariant Kind = "INVARIANT_VIOLATION"
)

// Error is a classified failure with a stable machine-readable code.
// Two Errors match under errors.Is when their codes are equal.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func (e *Error) Unwrap() error {
	return e.Err
}

// withCause returns a copy of e carrying cause.
func (e *Error) withCause(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func newError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	// ErrDeviceNotFound is returned when a tap or boarding names an unknown device.
	ErrDeviceNotFound = newError(KindNotFound, "DEVICE_NOT_FOUND", "device not found")

	// ErrVehicleNotFound is returned when a vehicle does not exist.
	ErrVehicleNotFound = newError(KindNotFound, "VEHICLE_NOT_FOUND", "vehicle not found")

	// ErrDriverNotFound is returned when a driver does not exist.
	ErrDriverNotFound = newError(KindNotFound, "DRIVER_NOT_FOUND", "driver not found")

	// ErrSessionNotFound is returned when a work session does not exist.
	ErrSessionNotFound = newError(KindNotFound, "SESSION_NOT_FOUND", "work session not found")

	// ErrVehicleInactive is returned when the vehicle is not in service.
	ErrVehicleInactive = newError(KindPreconditionFailed, "VEHICLE_INACTIVE", "vehicle is not active")

	// ErrDriverNotFoundOrInactive is returned when a tapped card matches no active driver.
	ErrDriverNotFoundOrInactive = newError(KindPreconditionFailed, "DRIVER_NOT_FOUND_OR_INACTIVE", "no active driver for this card")

	// ErrDriverInactive is returned when an explicitly named driver is deactivated.
	ErrDriverInactive = newError(KindPreconditionFailed, "DRIVER_INACTIVE", "driver is not active")

	// ErrVehicleAlreadyInUse is returned when another driver holds the vehicle.
	ErrVehicleAlreadyInUse = newError(KindPreconditionFailed, "VEHICLE_ALREADY_IN_USE", "vehicle already has an active session")

	// ErrDriverHasActiveSession is returned when an explicit start finds the driver already working.
	ErrDriverHasActiveSession = newError(KindPreconditionFailed, "DRIVER_HAS_ACTIVE_SESSION", "driver already has an active session")

	// ErrSessionAlreadyCompleted is returned when ending a session that has ended.
	ErrSessionAlreadyCompleted = newError(KindPreconditionFailed, "SESSION_ALREADY_COMPLETED", "work session already completed")

	// ErrNoActiveSessionForVehicle is returned when a boarding arrives on an idle vehicle.
	ErrNoActiveSessionForVehicle = newError(KindPreconditionFailed, "NO_ACTIVE_SESSION_FOR_VEHICLE", "vehicle has no active session")

	// ErrDuplicateTap is returned when the same card taps the same device twice in quick succession.
	ErrDuplicateTap = newError(KindPreconditionFailed, "DUPLICATE_TAP", "tap repeated too quickly")

	ErrInvalidRFIDCode  = newError(KindInvalidArgument, "INVALID_RFID_CODE", "rfid code is required")
	ErrInvalidDeviceID  = newError(KindInvalidArgument, "INVALID_DEVICE_ID", "device id is required")
	ErrInvalidDriverID  = newError(KindInvalidArgument, "INVALID_DRIVER_ID", "driver id is required")
	ErrInvalidVehicleID = newError(KindInvalidArgument, "INVALID_VEHICLE_ID", "vehicle id is required")
	ErrInvalidSessionID = newError(KindInvalidArgument, "INVALID_SESSION_ID", "session id is required")
	ErrInvalidDate      = newError(KindInvalidArgument, "INVALID_DATE", "date must be YYYY-MM-DD")
	ErrInvalidDateRange = newError(KindInvalidArgument, "INVALID_DATE_RANGE", "invalid date range")
	ErrInvalidDuration  = newError(KindInvalidArgument, "INVALID_DURATION", "duration must be positive")

	// ErrTransientStore is returned when the store failed in a retryable way.
	ErrTransientStore = newError(KindTransient, "TRANSIENT_STORE_ERROR", "temporary store failure, retry the request")

	// ErrInvariantViolation is returned when stored sessions break the
	// one-active-per-driver/vehicle rule.
	ErrInvariantViolation = newError(KindInvariant, "INVARIANT_VIOLATION", "stored sessions are inconsistent")
)

// KindOf returns the Kind of err, or "" if err is not a classified Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf returns the code of err, or "INTERNAL" if err is not a classified Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL"
}

// isRetryable reports whether err may succeed if the whole operation runs again.
// A unique-index hit on the active-session indexes means a concurrent writer
// won; re-running re-evaluates the decision against the committed state.
func isRetryable(err error) bool {
	return errors.Is(err, repository.ErrTransient) ||
		errors.Is(err, repository.ErrActiveSessionConflict) ||
		errors.Is(err, context.DeadlineExceeded)
}

// classify converts store errors into classified Errors.
// Errors already classified, and unknown errors, pass through.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, repository.ErrInvariant):
		return ErrInvariantViolation.withCause(err)
	case isRetryable(err):
		return ErrTransientStore.withCause(err)
	default:
		return err
	}
}
