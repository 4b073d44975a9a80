package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"fleettrack/internal/repository"
)

// SQLSTATE codes the adapter reacts to.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgQueryCanceled        = "57014"
	pgUniqueViolation      = "23505"
	pgClassConnection      = "08"
)

// Names of the partial unique indexes guarding the active-session invariant.
const (
	idxActivePerDriver  = "work_sessions_one_active_per_driver"
	idxActivePerVehicle = "work_sessions_one_active_per_vehicle"
)

// classify maps driver errors onto the repository sentinels.
// Unrecognized errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable, pgQueryCanceled:
			return fmt.Errorf("%w: %v", repository.ErrTransient, err)
		case pgUniqueViolation:
			if pqErr.Constraint == idxActivePerDriver || pqErr.Constraint == idxActivePerVehicle {
				return fmt.Errorf("%w: %s", repository.ErrActiveSessionConflict, pqErr.Constraint)
			}
		}
		if string(pqErr.Code.Class()) == pgClassConnection {
			return fmt.Errorf("%w: %v", repository.ErrTransient, err)
		}
		return err
	}

	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", repository.ErrTransient, err)
	}

	return err
}
