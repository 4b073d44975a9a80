package postgres

import (
	"context"
	"database/sql"

	"fleettrack/internal/domain"
	"fleettrack/internal/repository"
)

// PassengerEventRepository is a PostgreSQL implementation of repository.PassengerEventRepository.
type PassengerEventRepository struct {
	db *sql.DB
}

// NewPassengerEventRepository creates a new PostgreSQL passenger event repository.
func NewPassengerEventRepository(db *sql.DB) *PassengerEventRepository {
	return &PassengerEventRepository{db: db}
}

// Create appends a passenger event.
func (r *PassengerEventRepository) Create(ctx context.Context, event *domain.PassengerEvent) error {
	query := `
		INSERT INTO passenger_events (id, session_id, rfid_code, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := querier(ctx, r.db).ExecContext(ctx, query, event.ID, event.SessionID, event.RFIDCode, event.CreatedAt)
	return classify(err)
}

// CountBySessionID returns the number of events attributed to a session.
func (r *PassengerEventRepository) CountBySessionID(ctx context.Context, sessionID string) (int, error) {
	var count int
	err := querier(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM passenger_events WHERE session_id = $1`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, classify(err)
	}
	return count, nil
}

// Ensure PassengerEventRepository implements repository.PassengerEventRepository.
var _ repository.PassengerEventRepository = (*PassengerEventRepository)(nil)
