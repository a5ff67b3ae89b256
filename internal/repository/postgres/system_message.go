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

// PostgresSystemMessageRepository implements the SystemMessageRepository
// interface
type PostgresSystemMessageRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
}

// NewSystemMessageRepository creates a new system message repository
func NewSystemMessageRepository(config *RepositoryConfig) repositories.SystemMessageRepository {
	return &PostgresSystemMessageRepository{
		pool:   config.Pool,
		tables: config.Tables,
	}
}

const systemMessageColumns = `id, profile_id, name, content, type, is_active, is_archived, version,
	parent_id, attached_to_personas, attached_to_perceptions, is_user_profile, created_at, modified_at`

func scanSystemMessage(s scanner) (*models.SystemMessage, error) {
	var msg models.SystemMessage
	err := s.Scan(
		&msg.ID,
		&msg.ProfileID,
		&msg.Name,
		&msg.Content,
		&msg.Type,
		&msg.IsActive,
		&msg.IsArchived,
		&msg.Version,
		&msg.ParentID,
		&msg.AttachedToPersonas,
		&msg.AttachedToPerceptions,
		&msg.IsUserProfile,
		&msg.CreatedAt,
		&msg.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if msg.AttachedToPersonas == nil {
		msg.AttachedToPersonas = []int64{}
	}
	if msg.AttachedToPerceptions == nil {
		msg.AttachedToPerceptions = []int64{}
	}
	return &msg, nil
}

// Create inserts a system message
func (r *PostgresSystemMessageRepository) Create(ctx context.Context, msg *models.SystemMessage) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, name, content, type, is_active, is_archived, version,
			parent_id, attached_to_personas, attached_to_perceptions, is_user_profile, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)
		RETURNING id, created_at, modified_at
	`, r.tables.SystemMessages)

	if msg.Version == 0 {
		msg.Version = 1
	}
	if msg.AttachedToPersonas == nil {
		msg.AttachedToPersonas = []int64{}
	}
	if msg.AttachedToPerceptions == nil {
		msg.AttachedToPerceptions = []int64{}
	}

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		msg.ProfileID,
		msg.Name,
		msg.Content,
		msg.Type,
		msg.IsActive,
		msg.IsArchived,
		msg.Version,
		msg.ParentID,
		msg.AttachedToPersonas,
		msg.AttachedToPerceptions,
		msg.IsUserProfile,
		time.Now().UTC(),
	).Scan(&msg.ID, &msg.CreatedAt, &msg.ModifiedAt)

	if err != nil {
		if isPgForeignKeyError(err) {
			return fmt.Errorf("profile %d: %w", msg.ProfileID, domain.ErrNotFound)
		}
		return fmt.Errorf("create system message: %w", err)
	}

	return nil
}

// GetByID retrieves a system message by ID
func (r *PostgresSystemMessageRepository) GetByID(ctx context.Context, id int64) (*models.SystemMessage, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, systemMessageColumns, r.tables.SystemMessages)

	msg, err := scanSystemMessage(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("system message %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get system message: %w", err)
	}

	return msg, nil
}

// GetByIDs retrieves system messages by ID, preserving input order
func (r *PostgresSystemMessageRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.SystemMessage, error) {
	if len(ids) == 0 {
		return []models.SystemMessage{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1)`, systemMessageColumns, r.tables.SystemMessages)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get system messages: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]models.SystemMessage, len(ids))
	for rows.Next() {
		msg, err := scanSystemMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan system message: %w", err)
		}
		byID[msg.ID] = *msg
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate system messages: %w", err)
	}

	msgs := make([]models.SystemMessage, 0, len(byID))
	for _, id := range ids {
		if msg, ok := byID[id]; ok {
			msgs = append(msgs, msg)
		}
	}

	return msgs, nil
}

// List retrieves a profile's system messages
func (r *PostgresSystemMessageRepository) List(ctx context.Context, profileID int64, includeArchived bool) ([]models.SystemMessage, error) {
	filter := "AND NOT is_archived"
	if includeArchived {
		filter = ""
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 %s
		ORDER BY is_active DESC, type, name, version
	`, systemMessageColumns, r.tables.SystemMessages, filter)

	return r.queryMany(ctx, query, profileID)
}

// GetActiveByType retrieves active, non-archived messages of a type
func (r *PostgresSystemMessageRepository) GetActiveByType(ctx context.Context, profileID int64, t models.SystemMessageType) ([]models.SystemMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND type = $2 AND is_active AND NOT is_archived
		ORDER BY id
	`, systemMessageColumns, r.tables.SystemMessages)

	return r.queryMany(ctx, query, profileID, t)
}

// GetAttachedContextFiles retrieves active ContextFile messages attached to
// the persona, id ascending
func (r *PostgresSystemMessageRepository) GetAttachedContextFiles(ctx context.Context, profileID, personaID int64) ([]models.SystemMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND type = $2 AND is_active AND NOT is_archived
			AND $3 = ANY(attached_to_personas)
		ORDER BY id
	`, systemMessageColumns, r.tables.SystemMessages)

	return r.queryMany(ctx, query, profileID, models.SystemMessageContextFile, personaID)
}

// GetPerceptionContextFiles retrieves active ContextFile messages attached
// to the perception, id ascending
func (r *PostgresSystemMessageRepository) GetPerceptionContextFiles(ctx context.Context, profileID, perceptionID int64) ([]models.SystemMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND type = $2 AND is_active AND NOT is_archived
			AND $3 = ANY(attached_to_perceptions)
		ORDER BY id
	`, systemMessageColumns, r.tables.SystemMessages)

	return r.queryMany(ctx, query, profileID, models.SystemMessageContextFile, perceptionID)
}

// GetUserProfileMessage retrieves the active message flagged as the user
// profile
func (r *PostgresSystemMessageRepository) GetUserProfileMessage(ctx context.Context, profileID int64) (*models.SystemMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND is_user_profile AND is_active AND NOT is_archived
		ORDER BY id
		LIMIT 1
	`, systemMessageColumns, r.tables.SystemMessages)

	msg, err := scanSystemMessage(GetExecutor(ctx, r.pool).QueryRow(ctx, query, profileID))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("user profile message: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user profile message: %w", err)
	}

	return msg, nil
}

// GetVersions retrieves every version of a family, version ascending
func (r *PostgresSystemMessageRepository) GetVersions(ctx context.Context, rootID int64) ([]models.SystemMessage, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE id = $1 OR parent_id = $1
		ORDER BY version
	`, systemMessageColumns, r.tables.SystemMessages)

	return r.queryMany(ctx, query, rootID)
}

// MaxVersion returns the highest version number in a family
func (r *PostgresSystemMessageRepository) MaxVersion(ctx context.Context, rootID int64) (int, error) {
	query := fmt.Sprintf(`
		SELECT COALESCE(MAX(version), 0) FROM %s WHERE id = $1 OR parent_id = $1
	`, r.tables.SystemMessages)

	var max int
	if err := GetExecutor(ctx, r.pool).QueryRow(ctx, query, rootID).Scan(&max); err != nil {
		return 0, fmt.Errorf("max version: %w", err)
	}

	return max, nil
}

// DeactivateFamily clears is_active on every version of a family
func (r *PostgresSystemMessageRepository) DeactivateFamily(ctx context.Context, rootID int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_active = false, modified_at = $2 WHERE id = $1 OR parent_id = $1
	`, r.tables.SystemMessages)

	if _, err := GetExecutor(ctx, r.pool).Exec(ctx, query, rootID, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate family: %w", err)
	}

	return nil
}

// SetActive activates a single row
func (r *PostgresSystemMessageRepository) SetActive(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_active = true, modified_at = $2 WHERE id = $1
	`, r.tables.SystemMessages)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("activate system message: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("system message %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// SetArchived flips the archived flag
func (r *PostgresSystemMessageRepository) SetArchived(ctx context.Context, id int64, archived bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_archived = $2, modified_at = $3 WHERE id = $1
	`, r.tables.SystemMessages)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id, archived, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("archive system message: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("system message %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// DeleteFamily removes the root and all its versions
func (r *PostgresSystemMessageRepository) DeleteFamily(ctx context.Context, rootID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 OR parent_id = $1`, r.tables.SystemMessages)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, rootID)
	if err != nil {
		return fmt.Errorf("delete system message family: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("system message %d: %w", rootID, domain.ErrNotFound)
	}

	return nil
}

// CopyProfile duplicates the active versions of one profile's messages into
// another as fresh version-1 roots. Attachment id lists reference rows of
// the source profile, so copies start unattached.
func (r *PostgresSystemMessageRepository) CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, name, content, type, is_active, is_archived, version,
			parent_id, attached_to_personas, attached_to_perceptions, is_user_profile, created_at, modified_at)
		SELECT $2, name, content, type, is_active, is_archived, 1,
			NULL, '{}', '{}', is_user_profile, $3, $3
		FROM %s
		WHERE profile_id = $1 AND is_active AND NOT is_archived
	`, r.tables.SystemMessages, r.tables.SystemMessages)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, fromProfileID, toProfileID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("copy system messages: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *PostgresSystemMessageRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]models.SystemMessage, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query system messages: %w", err)
	}
	defer rows.Close()

	msgs := []models.SystemMessage{}
	for rows.Next() {
		msg, err := scanSystemMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan system message: %w", err)
		}
		msgs = append(msgs, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate system messages: %w", err)
	}

	return msgs, nil
}
