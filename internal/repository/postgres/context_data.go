package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"reverie/internal/domain"
	"reverie/internal/domain/models"
	"reverie/internal/domain/repositories"
)

// PostgresContextDataRepository implements the ContextDataRepository
// interface
type PostgresContextDataRepository struct {
	pool   *pgxpool.Pool
	tables *TableNames
	logger *slog.Logger
}

// NewContextDataRepository creates a new context data repository
func NewContextDataRepository(config *RepositoryConfig) repositories.ContextDataRepository {
	return &PostgresContextDataRepository{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

const contextDataColumns = `id, profile_id, name, content, type, availability,
	token_count, token_count_updated_at, is_enabled, is_archived, sort_order,
	trigger_keywords, trigger_lookback_turns, trigger_min_match_count, trigger_count, last_triggered_at,
	use_next_turn_only, use_every_turn, previous_availability,
	in_vector_db, tags, source_session_id, speaker, path, nonverbal_behavior, is_user,
	created_at, modified_at`

func scanContextData(s scanner) (*models.ContextData, error) {
	var data models.ContextData
	var prev *string
	err := s.Scan(
		&data.ID,
		&data.ProfileID,
		&data.Name,
		&data.Content,
		&data.Type,
		&data.Availability,
		&data.TokenCount,
		&data.TokenCountUpdatedAt,
		&data.IsEnabled,
		&data.IsArchived,
		&data.SortOrder,
		&data.TriggerKeywords,
		&data.TriggerLookbackTurns,
		&data.TriggerMinMatchCount,
		&data.TriggerCount,
		&data.LastTriggeredAt,
		&data.UseNextTurnOnly,
		&data.UseEveryTurn,
		&prev,
		&data.InVectorDB,
		&data.Tags,
		&data.SourceSessionID,
		&data.Speaker,
		&data.Path,
		&data.NonverbalBehavior,
		&data.IsUser,
		&data.CreatedAt,
		&data.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		a := models.Availability(*prev)
		data.PreviousAvailability = &a
	}
	if data.Tags == nil {
		data.Tags = []string{}
	}
	return &data, nil
}

// Create inserts a record
func (r *PostgresContextDataRepository) Create(ctx context.Context, data *models.ContextData) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, name, content, type, availability,
			token_count, token_count_updated_at, is_enabled, is_archived, sort_order,
			trigger_keywords, trigger_lookback_turns, trigger_min_match_count, trigger_count, last_triggered_at,
			use_next_turn_only, use_every_turn, previous_availability,
			in_vector_db, tags, source_session_id, speaker, path, nonverbal_behavior, is_user,
			created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $26)
		RETURNING id, created_at, modified_at
	`, r.tables.ContextData)

	if data.Tags == nil {
		data.Tags = []string{}
	}

	err := GetExecutor(ctx, r.pool).QueryRow(ctx, query,
		data.ProfileID,
		data.Name,
		data.Content,
		data.Type,
		data.Availability,
		data.TokenCount,
		data.TokenCountUpdatedAt,
		data.IsEnabled,
		data.IsArchived,
		data.SortOrder,
		data.TriggerKeywords,
		data.TriggerLookbackTurns,
		data.TriggerMinMatchCount,
		data.TriggerCount,
		data.LastTriggeredAt,
		data.UseNextTurnOnly,
		data.UseEveryTurn,
		availabilityPtr(data.PreviousAvailability),
		data.InVectorDB,
		data.Tags,
		data.SourceSessionID,
		data.Speaker,
		data.Path,
		data.NonverbalBehavior,
		data.IsUser,
		time.Now().UTC(),
	).Scan(&data.ID, &data.CreatedAt, &data.ModifiedAt)

	if err != nil {
		if isPgForeignKeyError(err) {
			return fmt.Errorf("profile %d: %w", data.ProfileID, domain.ErrNotFound)
		}
		return fmt.Errorf("create context data: %w", err)
	}

	return nil
}

// GetByID retrieves a record by ID
func (r *PostgresContextDataRepository) GetByID(ctx context.Context, id int64) (*models.ContextData, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, contextDataColumns, r.tables.ContextData)

	data, err := scanContextData(GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if isPgNoRowsError(err) {
			return nil, fmt.Errorf("context data %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get context data: %w", err)
	}

	return data, nil
}

// GetByIDs retrieves records by ID; missing ids are dropped
func (r *PostgresContextDataRepository) GetByIDs(ctx context.Context, ids []int64) ([]models.ContextData, error) {
	if len(ids) == 0 {
		return []models.ContextData{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ANY($1)`, contextDataColumns, r.tables.ContextData)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get context data by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]models.ContextData, len(ids))
	for rows.Next() {
		data, err := scanContextData(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context data: %w", err)
		}
		byID[data.ID] = *data
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context data: %w", err)
	}

	result := make([]models.ContextData, 0, len(byID))
	for _, id := range ids {
		if data, ok := byID[id]; ok {
			result = append(result, data)
		}
	}

	return result, nil
}

// List retrieves records for a profile with optional type and availability
// filters
func (r *PostgresContextDataRepository) List(ctx context.Context, profileID int64, t *models.ContextType, a *models.Availability, includeArchived bool) ([]models.ContextData, error) {
	var filters []string
	args := []interface{}{profileID}

	filters = append(filters, "profile_id = $1")
	if t != nil {
		args = append(args, *t)
		filters = append(filters, fmt.Sprintf("type = $%d", len(args)))
	}
	if a != nil {
		args = append(args, *a)
		filters = append(filters, fmt.Sprintf("availability = $%d", len(args)))
	}
	if !includeArchived {
		filters = append(filters, "NOT is_archived")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE %s
		ORDER BY type, sort_order, id
	`, contextDataColumns, r.tables.ContextData, strings.Join(filters, " AND "))

	return r.queryMany(ctx, query, args...)
}

// GetAlwaysOn retrieves enabled, non-archived AlwaysOn records
func (r *PostgresContextDataRepository) GetAlwaysOn(ctx context.Context, profileID int64, t *models.ContextType) ([]models.ContextData, error) {
	typeFilter := ""
	args := []interface{}{profileID, models.AvailabilityAlwaysOn}
	if t != nil {
		args = append(args, *t)
		typeFilter = "AND type = $3"
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND availability = $2 AND is_enabled AND NOT is_archived %s
		ORDER BY sort_order, id
	`, contextDataColumns, r.tables.ContextData, typeFilter)

	return r.queryMany(ctx, query, args...)
}

// GetActiveManual retrieves enabled Manual records with an override flag set
func (r *PostgresContextDataRepository) GetActiveManual(ctx context.Context, profileID int64) ([]models.ContextData, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND availability = $2 AND is_enabled AND NOT is_archived
			AND (use_next_turn_only OR use_every_turn)
		ORDER BY sort_order, id
	`, contextDataColumns, r.tables.ContextData)

	return r.queryMany(ctx, query, profileID, models.AvailabilityManual)
}

// GetTriggers retrieves enabled, non-archived Trigger records
func (r *PostgresContextDataRepository) GetTriggers(ctx context.Context, profileID int64) ([]models.ContextData, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND availability = $2 AND is_enabled AND NOT is_archived
		ORDER BY sort_order, id
	`, contextDataColumns, r.tables.ContextData)

	return r.queryMany(ctx, query, profileID, models.AvailabilityTrigger)
}

// GetUserProfile retrieves the enabled CharacterProfile with is_user set,
// lowest id winning when several qualify
func (r *PostgresContextDataRepository) GetUserProfile(ctx context.Context, profileID int64) (*models.ContextData, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND type = $2 AND is_user AND is_enabled AND NOT is_archived
		ORDER BY id
		LIMIT 2
	`, contextDataColumns, r.tables.ContextData)

	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, profileID, models.ContextTypeCharacterProfile)
	if err != nil {
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	defer rows.Close()

	var found []models.ContextData
	for rows.Next() {
		data, err := scanContextData(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context data: %w", err)
		}
		found = append(found, *data)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context data: %w", err)
	}

	if len(found) == 0 {
		return nil, fmt.Errorf("user profile: %w", domain.ErrNotFound)
	}
	if len(found) > 1 {
		r.logger.Warn("multiple user character profiles; using lowest id",
			"profile_id", profileID, "chosen_id", found[0].ID)
	}

	return &found[0], nil
}

// GetSemanticCandidates retrieves enabled, embedded Semantic records of a
// type
func (r *PostgresContextDataRepository) GetSemanticCandidates(ctx context.Context, profileID int64, t models.ContextType) ([]models.ContextData, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE profile_id = $1 AND type = $2 AND availability = $3
			AND is_enabled AND NOT is_archived AND in_vector_db
		ORDER BY id
	`, contextDataColumns, r.tables.ContextData)

	return r.queryMany(ctx, query, profileID, t, models.AvailabilitySemantic)
}

// Update persists all mutable fields
func (r *PostgresContextDataRepository) Update(ctx context.Context, data *models.ContextData) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			name = $1, content = $2, type = $3, availability = $4,
			token_count = $5, token_count_updated_at = $6, is_enabled = $7, is_archived = $8, sort_order = $9,
			trigger_keywords = $10, trigger_lookback_turns = $11, trigger_min_match_count = $12,
			use_next_turn_only = $13, use_every_turn = $14, previous_availability = $15,
			in_vector_db = $16, tags = $17, speaker = $18, path = $19, nonverbal_behavior = $20, is_user = $21,
			modified_at = $22
		WHERE id = $23
	`, r.tables.ContextData)

	if data.Tags == nil {
		data.Tags = []string{}
	}

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		data.Name,
		data.Content,
		data.Type,
		data.Availability,
		data.TokenCount,
		data.TokenCountUpdatedAt,
		data.IsEnabled,
		data.IsArchived,
		data.SortOrder,
		data.TriggerKeywords,
		data.TriggerLookbackTurns,
		data.TriggerMinMatchCount,
		data.UseNextTurnOnly,
		data.UseEveryTurn,
		availabilityPtr(data.PreviousAvailability),
		data.InVectorDB,
		data.Tags,
		data.Speaker,
		data.Path,
		data.NonverbalBehavior,
		data.IsUser,
		time.Now().UTC(),
		data.ID,
	)

	if err != nil {
		return fmt.Errorf("update context data: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("context data %d: %w", data.ID, domain.ErrNotFound)
	}

	return nil
}

// UpdateOverrideState atomically writes the override tuple
func (r *PostgresContextDataRepository) UpdateOverrideState(ctx context.Context, id int64, availability models.Availability, previous *models.Availability, useNextTurnOnly, useEveryTurn bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET
			availability = $1, previous_availability = $2,
			use_next_turn_only = $3, use_every_turn = $4,
			is_archived = (CASE WHEN $1 = '%s' THEN true ELSE is_archived END),
			modified_at = $5
		WHERE id = $6
	`, r.tables.ContextData, models.AvailabilityArchive)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query,
		availability,
		availabilityPtr(previous),
		useNextTurnOnly,
		useEveryTurn,
		time.Now().UTC(),
		id,
	)

	if err != nil {
		return fmt.Errorf("update override state: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("context data %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// SetEmbedded flips the in_vector_db flag
func (r *PostgresContextDataRepository) SetEmbedded(ctx context.Context, id int64, embedded bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET in_vector_db = $1, modified_at = $2 WHERE id = $3
	`, r.tables.ContextData)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, embedded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set embedded: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("context data %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// SetArchived flips the archived flag
func (r *PostgresContextDataRepository) SetArchived(ctx context.Context, id int64, archived bool) error {
	query := fmt.Sprintf(`
		UPDATE %s SET is_archived = $1, modified_at = $2 WHERE id = $3
	`, r.tables.ContextData)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, archived, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set archived: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("context data %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// IncrementTrigger bumps trigger_count and stamps last_triggered_at
func (r *PostgresContextDataRepository) IncrementTrigger(ctx context.Context, id int64, at time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s SET trigger_count = trigger_count + 1, last_triggered_at = $1 WHERE id = $2
	`, r.tables.ContextData)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("increment trigger: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("context data %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// ProcessPostTurn clears one-shot overrides in a single statement: every
// enabled row with use_next_turn_only set loses the flag; rows not also held
// by use_every_turn revert to their snapshotted availability.
func (r *PostgresContextDataRepository) ProcessPostTurn(ctx context.Context, profileID int64) (int64, error) {
	query := fmt.Sprintf(`
		UPDATE %s SET
			availability = CASE
				WHEN NOT use_every_turn AND previous_availability IS NOT NULL THEN previous_availability
				ELSE availability
			END,
			previous_availability = CASE
				WHEN NOT use_every_turn THEN NULL
				ELSE previous_availability
			END,
			use_next_turn_only = false,
			modified_at = $2
		WHERE profile_id = $1 AND is_enabled AND use_next_turn_only
	`, r.tables.ContextData)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, profileID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("post-turn override sweep: %w", err)
	}

	return result.RowsAffected(), nil
}

// Delete removes a record
func (r *PostgresContextDataRepository) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.tables.ContextData)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete context data: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("context data %d: %w", id, domain.ErrNotFound)
	}

	return nil
}

// CopyProfile duplicates a profile's records. Copies are never marked as
// embedded and lose session provenance, since sessions are not copied.
func (r *PostgresContextDataRepository) CopyProfile(ctx context.Context, fromProfileID, toProfileID int64) (int64, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (profile_id, name, content, type, availability,
			token_count, token_count_updated_at, is_enabled, is_archived, sort_order,
			trigger_keywords, trigger_lookback_turns, trigger_min_match_count, trigger_count, last_triggered_at,
			use_next_turn_only, use_every_turn, previous_availability,
			in_vector_db, tags, source_session_id, speaker, path, nonverbal_behavior, is_user,
			created_at, modified_at)
		SELECT $2, name, content, type, availability,
			token_count, token_count_updated_at, is_enabled, is_archived, sort_order,
			trigger_keywords, trigger_lookback_turns, trigger_min_match_count, trigger_count, last_triggered_at,
			use_next_turn_only, use_every_turn, previous_availability,
			false, tags, NULL, speaker, path, nonverbal_behavior, is_user,
			$3, $3
		FROM %s
		WHERE profile_id = $1
	`, r.tables.ContextData, r.tables.ContextData)

	result, err := GetExecutor(ctx, r.pool).Exec(ctx, query, fromProfileID, toProfileID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("copy context data: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *PostgresContextDataRepository) queryMany(ctx context.Context, query string, args ...interface{}) ([]models.ContextData, error) {
	rows, err := GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query context data: %w", err)
	}
	defer rows.Close()

	result := []models.ContextData{}
	for rows.Next() {
		data, err := scanContextData(rows)
		if err != nil {
			return nil, fmt.Errorf("scan context data: %w", err)
		}
		result = append(result, *data)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate context data: %w", err)
	}

	return result, nil
}

// availabilityPtr converts *models.Availability to a *string for encoding
func availabilityPtr(a *models.Availability) *string {
	if a == nil {
		return nil
	}
	s := string(*a)
	return &s
}
