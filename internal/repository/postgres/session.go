package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// PostgresSessionRepository implements the SessionRepository interface
type PostgresSessionRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(config *RepositoryConfig) repositories.SessionRepository {
	return &PostgresSessionRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

// Create inserts a session, assigning the next monotonic number for the
// profile in the same statement
func (r *PostgresSessionRepository) Create(ctx context.Context, session *models.Session) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, number, name, is_active, created_at)
		VALUES ($1, (SELECT COALESCE(MAX(number), 0) + 1 FROM %s WHERE profile_id = $1), $2, $3, $4)
		RETURNING id, number, created_at
	`, r.tables.Sessions, r.tables.Sessions)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		session.ProfileID,
		session.Name,
		session.IsActive,
		time.Now().UTC(),
	).Scan(&session.ID, &session.Number, &session.CreatedAt)

	if err != nil {
		if isPgForeignKeyError(err) {
			return fmt.Errorf("profile %d: %w", session.ProfileID, domain.ErrNotFound)
		}
		return fmt.Errorf("create session: %w", err)
	}

	return nil
}

// GetByID retrieves a session by ID
func (r *PostgresSessionRepository) GetByID(ctx context.Context, id int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, profile_id, number, name, is_active, created_at
		FROM %s
		WHERE id = $1
	`, r.tables.Sessions)

	var session models.Session
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.ProfileID,
		&session.Number,
		&session.Name,
		&session.IsActive,
		&session.CreatedAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	return &session, nil
}

// GetActive retrieves the active session for a profile
func (r *PostgresSessionRepository) GetActive(ctx context.Context, profileID int64) (*models.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, profile_id, number, name, is_active, created_at
		FROM %s
		WHERE profile_id = $1 AND is_active
		ORDER BY id
		LIMIT 1
	`, r.tables.Sessions)

	var session models.Session
	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, profileID).Scan(
		&session.ID,
		&session.ProfileID,
		&session.Number,
		&session.Name,
		&session.IsActive,
		&session.CreatedAt,
	)

	if err != nil {
		if isPgNoRowsError(err) {
			return nil, &domain.NoActiveSessionError{ProfileID: profileID}
		}
		return nil, fmt.Errorf("get active session: %w", err)
	}

	return &session, nil
}

// List retrieves all sessions for a profile, newest first
func (r *PostgresSessionRepository) List(ctx context.Context, profileID int64) ([]models.Session, error) {
	query := fmt.Sprintf(`
		SELECT id, profile_id, number, name, is_active, created_at
		FROM %s
		WHERE profile_id = $1
		ORDER BY number DESC
	`, r.tables.Sessions)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var session models.Session
		err := rows.Scan(
			&session.ID,
			&session.ProfileID,
			&session.Number,
			&session.Name,
			&session.IsActive,
			&session.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// Activate clears the profile's other sessions and activates the target,
// atomically via a single statement
func (r *PostgresSessionRepository) Activate(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`
		WITH target AS (
			SELECT profile_id FROM %s WHERE id = $1
		), cleared AS (
			UPDATE %s s SET is_active = false
			FROM target t
			WHERE s.profile_id = t.profile_id AND s.is_active AND s.id <> $1
		)
		UPDATE %s SET is_active = true WHERE id = $1
	`, r.tables.Sessions, r.tables.Sessions, r.tables.Sessions)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("activate session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// Update renames a session
func (r *PostgresSessionRepository) Update(ctx context.Context, session *models.Session) error {
	query := fmt.Sprintf(`
		UPDATE %s SET name = $1 WHERE id = $2
	`, r.tables.Sessions)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, session.Name, session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %d: %w", session.ID, domain.ErrNotFound)
	}

	return nil
}

// Delete removes a session and its turns
func (r *PostgresSessionRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Sessions)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("session %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
