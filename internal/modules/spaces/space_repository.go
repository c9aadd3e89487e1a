package spaces

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const spaceColumns = `id, account_id, name, space_type, balance, icon, color,
	is_visible, is_frozen, frozen_at, unfrozen_at,
	last_balance_update_reason, last_balance_update_at,
	target_amount, target_date,
	auto_transfer_enabled, auto_transfer_frequency, auto_transfer_amount,
	auto_transfer_source_space_id, auto_transfer_last_run_at,
	version, created_at, updated_at`

// SpaceRepository handles persistence of spaces
type SpaceRepository struct {
	q   querier
	log zerolog.Logger
}

// NewSpaceRepository creates a new space repository
func NewSpaceRepository(q querier, log zerolog.Logger) *SpaceRepository {
	return &SpaceRepository{
		q:   q,
		log: log.With().Str("repository", "space").Logger(),
	}
}

// Get gets a space by ID
func (r *SpaceRepository) Get(ctx context.Context, spaceID string) (*Space, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+spaceColumns+" FROM spaces WHERE id = ?", spaceID)

	space, err := scanSpace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get space by ID: %w", err)
	}

	return space, nil
}

// GetAllForAccount gets every space of an account, MAIN first
func (r *SpaceRepository) GetAllForAccount(ctx context.Context, accountID string) ([]*Space, error) {
	query := "SELECT " + spaceColumns + ` FROM spaces WHERE account_id = ?
		ORDER BY CASE space_type WHEN 'MAIN' THEN 0 ELSE 1 END, created_at, id`
	rows, err := r.q.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to get spaces for account: %w", err)
	}
	defer rows.Close()

	return scanSpaces(rows)
}

// GetMain gets the MAIN space of an account
func (r *SpaceRepository) GetMain(ctx context.Context, accountID string) (*Space, error) {
	query := "SELECT " + spaceColumns + " FROM spaces WHERE account_id = ? AND space_type = 'MAIN'"
	row := r.q.QueryRowContext(ctx, query, accountID)

	space, err := scanSpace(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get main space: %w", err)
	}

	return space, nil
}

// Insert creates a new space at version 1
func (r *SpaceRepository) Insert(ctx context.Context, space *Space) error {
	space.Version = 1
	args := append([]interface{}{space.ID, space.AccountID}, spaceValues(space)...)
	args = append(args, space.Version, formatTime(space.CreatedAt))

	_, err := r.q.ExecContext(ctx, `INSERT INTO spaces
		(id, account_id, name, space_type, balance, icon, color,
		 is_visible, is_frozen, frozen_at, unfrozen_at,
		 last_balance_update_reason, last_balance_update_at,
		 target_amount, target_date,
		 auto_transfer_enabled, auto_transfer_frequency, auto_transfer_amount,
		 auto_transfer_source_space_id, auto_transfer_last_run_at,
		 updated_at, version, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Message: fmt.Sprintf("account %s already has a main space", space.AccountID)}
		}
		return fmt.Errorf("failed to insert space: %w", err)
	}

	r.log.Debug().Str("space_id", space.ID).Str("account_id", space.AccountID).Msg("Inserted space")
	return nil
}

// Save writes every mutable column, guarded by the version read with the space.
// A stale version yields a ConflictError; on success space.Version is bumped.
func (r *SpaceRepository) Save(ctx context.Context, space *Space) error {
	args := append(spaceValues(space), space.ID, space.Version)

	result, err := r.q.ExecContext(ctx, `UPDATE spaces SET
		name = ?, space_type = ?, balance = ?, icon = ?, color = ?,
		is_visible = ?, is_frozen = ?, frozen_at = ?, unfrozen_at = ?,
		last_balance_update_reason = ?, last_balance_update_at = ?,
		target_amount = ?, target_date = ?,
		auto_transfer_enabled = ?, auto_transfer_frequency = ?, auto_transfer_amount = ?,
		auto_transfer_source_space_id = ?, auto_transfer_last_run_at = ?,
		updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`, args...)
	if err != nil {
		return fmt.Errorf("failed to save space: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return &ConflictError{Message: fmt.Sprintf("space %s was modified concurrently (version %d)", space.ID, space.Version)}
	}

	space.Version++
	return nil
}

// ListAccountIDs lists every account that owns at least one space
func (r *SpaceRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT DISTINCT account_id FROM spaces ORDER BY account_id")
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan account id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListAutoTransferSpaces lists spaces with an enabled automatic transfer
func (r *SpaceRepository) ListAutoTransferSpaces(ctx context.Context) ([]*Space, error) {
	query := "SELECT " + spaceColumns + " FROM spaces WHERE auto_transfer_enabled = 1 ORDER BY account_id, created_at, id"
	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list auto-transfer spaces: %w", err)
	}
	defer rows.Close()

	return scanSpaces(rows)
}

// spaceValues returns the mutable columns in the order shared by Insert and Save
func spaceValues(s *Space) []interface{} {
	var (
		targetAmount, targetDate                   sql.NullString
		atEnabled                                  bool
		atFrequency, atAmount, atSource, atLastRun sql.NullString
	)
	if s.Goal != nil {
		if s.Goal.TargetAmount != nil {
			targetAmount = sql.NullString{String: formatAmount(*s.Goal.TargetAmount), Valid: true}
		}
		targetDate = nullTime(s.Goal.TargetDate)
	}
	if s.AutoTransfer != nil {
		atEnabled = s.AutoTransfer.Enabled
		atFrequency = sql.NullString{String: string(s.AutoTransfer.Frequency), Valid: true}
		atAmount = sql.NullString{String: formatAmount(s.AutoTransfer.Amount), Valid: true}
		atSource = nullString(s.AutoTransfer.SourceSpaceID)
		atLastRun = nullTime(s.AutoTransfer.LastRunAt)
	}

	return []interface{}{
		s.Name,
		string(s.Type),
		formatAmount(s.Balance),
		nullString(s.Icon),
		nullString(s.Color),
		s.IsVisible,
		s.IsFrozen,
		nullTime(s.FrozenAt),
		nullTime(s.UnfrozenAt),
		nullString(s.LastBalanceUpdateReason),
		nullTime(s.LastBalanceUpdateAt),
		targetAmount,
		targetDate,
		atEnabled,
		atFrequency,
		atAmount,
		atSource,
		atLastRun,
		formatTime(s.UpdatedAt),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSpace(row rowScanner) (*Space, error) {
	var (
		s                                          Space
		spaceType, balance, createdAt, updatedAt   string
		icon, color, frozenAt, unfrozenAt          sql.NullString
		reason, reasonAt, targetAmount, targetDate sql.NullString
		atEnabled                                  bool
		atFrequency, atAmount, atSource, atLastRun sql.NullString
	)

	err := row.Scan(
		&s.ID, &s.AccountID, &s.Name, &spaceType, &balance, &icon, &color,
		&s.IsVisible, &s.IsFrozen, &frozenAt, &unfrozenAt,
		&reason, &reasonAt,
		&targetAmount, &targetDate,
		&atEnabled, &atFrequency, &atAmount, &atSource, &atLastRun,
		&s.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Type = SpaceType(spaceType)
	if s.Balance, err = parseStoredAmount(balance); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	s.Icon = ptrString(icon)
	s.Color = ptrString(color)
	s.LastBalanceUpdateReason = ptrString(reason)
	if s.FrozenAt, err = ptrTime(frozenAt); err != nil {
		return nil, err
	}
	if s.UnfrozenAt, err = ptrTime(unfrozenAt); err != nil {
		return nil, err
	}
	if s.LastBalanceUpdateAt, err = ptrTime(reasonAt); err != nil {
		return nil, err
	}

	if targetAmount.Valid || targetDate.Valid {
		goal := &Goal{}
		if targetAmount.Valid {
			amount, err := parseStoredAmount(targetAmount.String)
			if err != nil {
				return nil, err
			}
			goal.TargetAmount = &amount
		}
		if goal.TargetDate, err = ptrTime(targetDate); err != nil {
			return nil, err
		}
		s.Goal = goal
	}

	if atFrequency.Valid {
		cfg := &AutoTransferConfig{
			Enabled:       atEnabled,
			Frequency:     Frequency(atFrequency.String),
			SourceSpaceID: ptrString(atSource),
		}
		if atAmount.Valid {
			if cfg.Amount, err = parseStoredAmount(atAmount.String); err != nil {
				return nil, err
			}
		}
		if cfg.LastRunAt, err = ptrTime(atLastRun); err != nil {
			return nil, err
		}
		s.AutoTransfer = cfg
	}

	return &s, nil
}

func scanSpaces(rows *sql.Rows) ([]*Space, error) {
	var spaces []*Space
	for rows.Next() {
		space, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan space: %w", err)
		}
		spaces = append(spaces, space)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate spaces: %w", err)
	}
	return spaces, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func ptrString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return stringPtr(ns.String)
}

func ptrTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var target interface{ Code() int }
	if errors.As(err, &target) {
		// SQLITE_CONSTRAINT_UNIQUE
		if target.Code() == 2067 {
			return true
		}
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
