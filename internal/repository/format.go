package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/adpulse/adpulse/internal/model"
)

const formatColumns = `id, user_id, name, description, metrics, is_default, created_at, updated_at`

// CreateFormat inserts a report format. A new default format demotes the
// user's previous default.
func (r *Repository) CreateFormat(ctx context.Context, f *model.ReportFormat) error {
	metrics, err := json.Marshal(f.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if f.IsDefault {
		if err := clearDefaultFormat(ctx, tx, f.UserID); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO report_formats (`+formatColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.UserID, f.Name, f.Description, metrics, f.IsDefault, f.CreatedAt, f.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateFormat
	}
	if err != nil {
		return fmt.Errorf("failed to create report format: %w", err)
	}
	return tx.Commit(ctx)
}

// GetFormat returns one of the user's report formats.
func (r *Repository) GetFormat(ctx context.Context, userID, id string) (*model.ReportFormat, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+formatColumns+` FROM report_formats WHERE id = $1 AND user_id = $2`, id, userID)
	f, err := scanFormat(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFormatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report format: %w", err)
	}
	return f, nil
}

// ListFormats returns the user's formats, default first.
func (r *Repository) ListFormats(ctx context.Context, userID string) ([]*model.ReportFormat, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+formatColumns+` FROM report_formats
		WHERE user_id = $1
		ORDER BY is_default DESC, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report formats: %w", err)
	}
	defer rows.Close()

	var formats []*model.ReportFormat
	for rows.Next() {
		f, err := scanFormat(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report format: %w", err)
		}
		formats = append(formats, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating report formats: %w", err)
	}
	return formats, nil
}

// UpdateFormat overwrites a format's editable fields. Making it the default
// demotes the user's previous default.
func (r *Repository) UpdateFormat(ctx context.Context, f *model.ReportFormat) error {
	metrics, err := json.Marshal(f.Metrics)
	if err != nil {
		return fmt.Errorf("encode metrics: %w", err)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if f.IsDefault {
		if err := clearDefaultFormat(ctx, tx, f.UserID); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx, `
		UPDATE report_formats SET
			name = $3, description = $4, metrics = $5, is_default = $6, updated_at = $7
		WHERE id = $1 AND user_id = $2`,
		f.ID, f.UserID, f.Name, f.Description, metrics, f.IsDefault, f.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateFormat
	}
	if err != nil {
		return fmt.Errorf("failed to update report format: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFormatNotFound
	}
	return tx.Commit(ctx)
}

// DeleteFormat removes a format. Clients and schedules that used it fall
// back to the default metrics.
func (r *Repository) DeleteFormat(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM report_formats WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete report format: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrFormatNotFound
	}
	return nil
}

// SeedDefaultFormats creates the built-in formats the user does not have yet
// and returns the ones created. Existing names are left untouched.
func (r *Repository) SeedDefaultFormats(ctx context.Context, userID string) ([]*model.ReportFormat, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var hasDefault bool
	if err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM report_formats WHERE user_id = $1 AND is_default)`, userID,
	).Scan(&hasDefault); err != nil {
		return nil, fmt.Errorf("check default format: %w", err)
	}

	now := time.Now().UTC()
	var created []*model.ReportFormat
	for _, tmpl := range model.DefaultReportFormats {
		f := tmpl
		f.ID = uuid.NewString()
		f.UserID = userID
		f.IsDefault = tmpl.IsDefault && !hasDefault
		f.CreatedAt = now
		f.UpdatedAt = now

		metrics, err := json.Marshal(f.Metrics)
		if err != nil {
			return nil, fmt.Errorf("encode metrics: %w", err)
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO report_formats (`+formatColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, name) DO NOTHING`,
			f.ID, f.UserID, f.Name, f.Description, metrics, f.IsDefault, f.CreatedAt, f.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("seed format %q: %w", f.Name, err)
		}
		if tag.RowsAffected() == 1 {
			created = append(created, &f)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}
	return created, nil
}

func clearDefaultFormat(ctx context.Context, tx pgx.Tx, userID string) error {
	if _, err := tx.Exec(ctx, `
		UPDATE report_formats SET is_default = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_default`, userID); err != nil {
		return fmt.Errorf("clear default format: %w", err)
	}
	return nil
}

func scanFormat(row pgx.Row) (*model.ReportFormat, error) {
	var (
		f       model.ReportFormat
		metrics []byte
	)
	if err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.Name,
		&f.Description,
		&metrics,
		&f.IsDefault,
		&f.CreatedAt,
		&f.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if err := decodeMetrics(metrics, &f.Metrics); err != nil {
		return nil, err
	}
	return &f, nil
}

func decodeMetrics(raw []byte, dst *[]model.Metric) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode format metrics: %w", err)
	}
	return nil
}
