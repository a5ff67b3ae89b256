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

// PostgresTurnRepository implements the TurnRepository interface
type PostgresTurnRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewTurnRepository creates a new turn repository
func NewTurnRepository(config *RepositoryConfig) repositories.TurnRepository {
	return &PostgresTurnRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const turnColumns = `id, session_id, input, json_input, response, stripped_turn, display_response, accepted, created_at`

// scanner abstracts pgx.Row and pgx.Rows for shared scan helpers
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTurn(s scanner) (*models.Turn, error) {
	var turn models.Turn
	err := s.Scan(
		&turn.ID,
		&turn.SessionID,
		&turn.Input,
		&turn.JSONInput,
		&turn.Response,
		&turn.StrippedTurn,
		&turn.DisplayResponse,
		&turn.Accepted,
		&turn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &turn, nil
}

// Create inserts a turn
func (r *PostgresTurnRepository) Create(ctx context.Context, turn *models.Turn) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (session_id, input, json_input, response, stripped_turn, display_response, accepted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`, r.tables.Turns)

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		turn.SessionID,
		turn.Input,
		turn.JSONInput,
		turn.Response,
		turn.StrippedTurn,
		turn.DisplayResponse,
		turn.Accepted,
		time.Now().UTC(),
	).Scan(&turn.ID, &turn.CreatedAt)

	if err != nil {
		if isPgForeignKeyError(err) {
			return fmt.Errorf("session %d: %w", turn.SessionID, domain.ErrNotFound)
		}
		return fmt.Errorf("create turn: %w", err)
	}

	return nil
}

// GetByID retrieves a turn by ID
func (r *PostgresTurnRepository) GetByID(ctx context.Context, id int64) (*models.Turn, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, turnColumns, r.tables.Turns)

	turn, err := scanTurn(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("turn %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get turn: %w", err)
	}

	return turn, nil
}

// ListBySession retrieves all turns of a session, oldest first
func (r *PostgresTurnRepository) ListBySession(ctx context.Context, sessionID int64) ([]models.Turn, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE session_id = $1
		ORDER BY id
	`, turnColumns, r.tables.Turns)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	defer rows.Close()

	turns := []models.Turn{}
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	return turns, nil
}

// GetRecentAccepted retrieves up to limit accepted turns preceding
// beforeTurnID, returned oldest first
func (r *PostgresTurnRepository) GetRecentAccepted(ctx context.Context, sessionID int64, limit int, beforeTurnID int64) ([]models.Turn, error) {
	if limit <= 0 {
		return []models.Turn{}, nil
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE session_id = $1 AND accepted AND id < $2
		ORDER BY id DESC
		LIMIT $3
	`, turnColumns, r.tables.Turns)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, sessionID, beforeTurnID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns: %w", err)
	}
	defer rows.Close()

	turns := []models.Turn{}
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turns = append(turns, *turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}

	// Newest-first from the query; callers want oldest first.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// UpdateResponse sets response and display_response
func (r *PostgresTurnRepository) UpdateResponse(ctx context.Context, id int64, response, displayResponse string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET response = $1, display_response = $2 WHERE id = $3
	`, r.tables.Turns)

	return r.exec(ctx, query, id, response, displayResponse, id)
}

// UpdateInput sets input and json_input
func (r *PostgresTurnRepository) UpdateInput(ctx context.Context, id int64, input, jsonInput string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET input = $1, json_input = $2 WHERE id = $3
	`, r.tables.Turns)

	return r.exec(ctx, query, id, input, jsonInput, id)
}

// UpdateAccepted toggles the accepted flag
func (r *PostgresTurnRepository) UpdateAccepted(ctx context.Context, id int64, accepted bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET accepted = $1 WHERE id = $2
	`, r.tables.Turns)

	return r.exec(ctx, query, id, accepted, id)
}

// UpdateStripped sets the stripped_turn text
func (r *PostgresTurnRepository) UpdateStripped(ctx context.Context, id int64, stripped string) error {
	query := fmt.Sprintf(`
		UPDATE %s SET stripped_turn = $1 WHERE id = $2
	`, r.tables.Turns)

	return r.exec(ctx, query, id, stripped, id)
}

// ClearStrippedBySession blanks stripped_turn for a whole session
func (r *PostgresTurnRepository) ClearStrippedBySession(ctx context.Context, sessionID int64) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET stripped_turn = '' WHERE session_id = $1 AND stripped_turn <> ''
	`, r.tables.Turns)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, sessionID)
	if err != nil {
		return 0, fmt.Errorf("clear stripped turns: %w", err)
	}

	return result.RowsAffected(), nil
}

// Delete removes a turn
func (r *PostgresTurnRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.Turns)

	return r.exec(ctx, query, id, id)
}

// exec runs a statement that must touch exactly one turn row
func (r *PostgresTurnRepository) exec(ctx context.Context, query string, id int64, args ...interface{}) error {
	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update turn: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("turn %d: %w", id, domain.ErrNotFound)
	}

	return nil
}
