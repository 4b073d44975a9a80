package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// SessionRepository is a PostgreSQL implementation of repository.SessionRepository.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new PostgreSQL work session repository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, driver_id, vehicle_id, started_at, ended_at, passenger_count, status`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.WorkSession, error) {
	var session domain.WorkSession
	var endedAt sql.NullTime

	if err := row.Scan(
		&session.ID,
		&session.DriverID,
		&session.VehicleID,
		&session.StartedAt,
		&endedAt,
		&session.PassengerCount,
		&session.Status,
	); err != nil {
		return nil, err
	}

	if endedAt.Valid {
		session.EndedAt = endedAt.Time
	}

	return &session, nil
}

// Create persists a new session.
func (r *SessionRepository) Create(ctx context.Context, session *domain.WorkSession) error {
	query := `
		INSERT INTO work_sessions (id, driver_id, vehicle_id, started_at, ended_at, passenger_count, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var endedAt sql.NullTime
	if !session.EndedAt.IsZero() {
		endedAt = sql.NullTime{Time: session.EndedAt, Valid: true}
	}

	_, err := querier(ctx, r.db).ExecContext(ctx, query,
		session.ID,
		session.DriverID,
		session.VehicleID,
		session.StartedAt,
		endedAt,
		session.PassengerCount,
		session.Status,
	)

	return classify(err)
}

// GetByID retrieves a session by ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// LockByID retrieves a session by ID and locks the row.
func (r *SessionRepository) LockByID(ctx context.Context, id string) (*domain.WorkSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM work_sessions WHERE id = $1 FOR UPDATE`
	return r.getOne(ctx, query, id)
}

func (r *SessionRepository) getOne(ctx context.Context, query, id string) (*domain.WorkSession, error) {
	session, err := scanSession(querier(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, classify(err)
	}
	return session, nil
}

// GetActiveByDriverID retrieves the active session for a driver.
func (r *SessionRepository) GetActiveByDriverID(ctx context.Context, driverID string) (*domain.WorkSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM work_sessions
		WHERE driver_id = $1 AND status = $2
		LIMIT 2
		FOR UPDATE
	`
	return r.getActive(ctx, query, driverID)
}

// GetActiveByVehicleID retrieves the active session for a vehicle.
func (r *SessionRepository) GetActiveByVehicleID(ctx context.Context, vehicleID string) (*domain.WorkSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM work_sessions
		WHERE vehicle_id = $1 AND status = $2
		LIMIT 2
		FOR UPDATE
	`
	return r.getActive(ctx, query, vehicleID)
}

func (r *SessionRepository) getActive(ctx context.Context, query, key string) (*domain.WorkSession, error) {
	sessions, err := r.list(ctx, query, key, domain.SessionStatusActive)
	if err != nil {
		return nil, err
	}

	switch len(sessions) {
	case 0:
		return nil, nil
	case 1:
		return sessions[0], nil
	default:
		return nil, fmt.Errorf("%w: %d active sessions for %s", repository.ErrInvariant, len(sessions), key)
	}
}

// ListActive retrieves all active sessions.
func (r *SessionRepository) ListActive(ctx context.Context) ([]*domain.WorkSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM work_sessions
		WHERE status = $1
		ORDER BY started_at DESC
	`
	return r.list(ctx, query, domain.SessionStatusActive)
}

func (r *SessionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.WorkSession, error) {
	rows, err := querier(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var sessions []*domain.WorkSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, classify(err)
		}
		sessions = append(sessions, session)
	}

	return sessions, classify(rows.Err())
}

// Complete stamps the end time of an active session.
func (r *SessionRepository) Complete(ctx context.Context, session *domain.WorkSession) error {
	query := `
		UPDATE work_sessions
		SET ended_at = $1, status = $2
		WHERE id = $3 AND status = $4
	`

	result, err := querier(ctx, r.db).ExecContext(ctx, query,
		session.EndedAt,
		domain.SessionStatusCompleted,
		session.ID,
		domain.SessionStatusActive,
	)
	if err != nil {
		return classify(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return classify(err)
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// IncrementPassengerCount atomically adds one boarding to an active session.
func (r *SessionRepository) IncrementPassengerCount(ctx context.Context, sessionID string) (int, error) {
	query := `
		UPDATE work_sessions
		SET passenger_count = passenger_count + 1
		WHERE id = $1 AND status = $2
		RETURNING passenger_count
	`

	var count int
	err := querier(ctx, r.db).QueryRowContext(ctx, query, sessionID, domain.SessionStatusActive).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, repository.ErrNotFound
		}
		return 0, classify(err)
	}

	return count, nil
}

// Ensure SessionRepository implements repository.SessionRepository.
var _ repository.SessionRepository = (*SessionRepository)(nil)
