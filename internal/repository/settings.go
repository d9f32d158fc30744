package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adpulse/adpulse/internal/model"
)

// GetSettings returns the user's ads platform credentials.
func (r *Repository) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	var s model.Settings
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, access_token, api_version, updated_at
		FROM settings
		WHERE user_id = $1`, userID,
	).Scan(&s.UserID, &s.AccessToken, &s.APIVersion, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &s, nil
}

// UpsertSettings creates or replaces the user's settings.
func (r *Repository) UpsertSettings(ctx context.Context, s *model.Settings) error {
	version := s.APIVersion
	if version == "" {
		version = model.DefaultAPIVersion
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO settings (user_id, access_token, api_version, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id) DO UPDATE
		SET access_token = EXCLUDED.access_token,
		    api_version  = EXCLUDED.api_version,
		    updated_at   = NOW()
		RETURNING api_version, updated_at`,
		s.UserID, s.AccessToken, version,
	).Scan(&s.APIVersion, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert settings: %w", err)
	}
	return nil
}
