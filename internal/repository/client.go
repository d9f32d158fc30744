package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adpulse/adpulse/internal/model"
)

const clientColumns = `id, user_id, name, account_id, report_format_id, is_active, created_at, updated_at`

// CreateClient inserts a client.
func (r *Repository) CreateClient(ctx context.Context, c *model.Client) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO clients (`+clientColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.UserID, c.Name, c.AccountID, c.ReportFormatID, c.IsActive, c.CreatedAt, c.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return ErrFormatNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

// GetClient returns one of the user's clients.
func (r *Repository) GetClient(ctx context.Context, userID, id string) (*model.Client, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE id = $1 AND user_id = $2`, id, userID)
	c, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrClientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return c, nil
}

// ListClients returns the user's clients ordered by name.
func (r *Repository) ListClients(ctx context.Context, userID string) ([]*model.Client, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer rows.Close()

	var clients []*model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clients: %w", err)
	}
	return clients, nil
}

// SetClientActive toggles whether the client is reported on.
func (r *Repository) SetClientActive(ctx context.Context, userID, id string, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE clients SET is_active = $3, updated_at = $4
		WHERE id = $1 AND user_id = $2`,
		id, userID, active, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

// DeleteClient removes a client together with its schedules and saved
// reports.
func (r *Repository) DeleteClient(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM clients WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete client: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrClientNotFound
	}
	return nil
}

func scanClient(row pgx.Row) (*model.Client, error) {
	var c model.Client
	if err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.Name,
		&c.AccountID,
		&c.ReportFormatID,
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}
