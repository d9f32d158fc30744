package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/metaads"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/repository"
)

// AccountStore persists settings and clients.
type AccountStore interface {
	GetSettings(ctx context.Context, userID string) (*model.Settings, error)
	UpsertSettings(ctx context.Context, s *model.Settings) error
	CreateClient(ctx context.Context, c *model.Client) error
	GetClient(ctx context.Context, userID, id string) (*model.Client, error)
	ListClients(ctx context.Context, userID string) ([]*model.Client, error)
	SetClientActive(ctx context.Context, userID, id string, active bool) error
	DeleteClient(ctx context.Context, userID, id string) error
}

// AccountService manages a user's credentials and clients.
type AccountService struct {
	store   AccountStore
	formats FormatLookup
	logger  *slog.Logger
	now     func() time.Time
}

// NewAccountService creates a new AccountService. formats may be nil.
func NewAccountService(store AccountStore, formats FormatLookup, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		store:   store,
		formats: formats,
		logger:  logger.With("component", "account_service"),
		now:     time.Now,
	}
}

// GetSettings returns the user's settings. Users without settings get an
// empty, unconfigured value.
func (s *AccountService) GetSettings(ctx context.Context, userID string) (*model.Settings, error) {
	settings, err := s.store.GetSettings(ctx, userID)
	if errors.Is(err, repository.ErrSettingsNotFound) {
		return &model.Settings{UserID: userID, APIVersion: model.DefaultAPIVersion}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings stores the user's access token and API version.
func (s *AccountService) UpdateSettings(ctx context.Context, userID, accessToken, apiVersion string) (*model.Settings, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, fmt.Errorf("%w: access_token is required", ErrInvalidSettings)
	}
	apiVersion = strings.TrimSpace(apiVersion)
	if apiVersion != "" && !strings.HasPrefix(apiVersion, "v") {
		return nil, fmt.Errorf("%w: api_version must look like v23.0", ErrInvalidSettings)
	}

	settings := &model.Settings{UserID: userID, AccessToken: accessToken, APIVersion: apiVersion}
	if err := s.store.UpsertSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}
	s.logger.Info("settings updated", "user_id", userID, "api_version", settings.APIVersion)
	return settings, nil
}

// CreateClientInput defines input for creating a client.
type CreateClientInput struct {
	UserID         string
	Name           string
	AccountID      string
	ReportFormatID *string
}

// CreateClient validates and stores a client. The account id is stored in
// its act_ form.
func (s *AccountService) CreateClient(ctx context.Context, input CreateClientInput) (*model.Client, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidClient)
	}
	if strings.TrimSpace(input.AccountID) == "" {
		return nil, fmt.Errorf("%w: account_id is required", ErrInvalidClient)
	}

	formatID := nonEmpty(input.ReportFormatID)
	if formatID != nil && s.formats != nil {
		if _, err := s.formats.GetFormat(ctx, input.UserID, *formatID); err != nil {
			if errors.Is(err, repository.ErrFormatNotFound) {
				return nil, ErrFormatNotFound
			}
			return nil, fmt.Errorf("failed to load report format: %w", err)
		}
	}

	now := s.now().UTC()
	c := &model.Client{
		ID:             uuid.NewString(),
		UserID:         input.UserID,
		Name:           name,
		AccountID:      metaads.NormalizeAccountID(input.AccountID),
		ReportFormatID: formatID,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateClient(ctx, c); err != nil {
		if errors.Is(err, repository.ErrFormatNotFound) {
			return nil, ErrFormatNotFound
		}
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return c, nil
}

// ListClients returns the user's clients.
func (s *AccountService) ListClients(ctx context.Context, userID string) ([]*model.Client, error) {
	clients, err := s.store.ListClients(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

// SetClientActive pauses or resumes reporting for a client.
func (s *AccountService) SetClientActive(ctx context.Context, userID, id string, active bool) (*model.Client, error) {
	if err := s.store.SetClientActive(ctx, userID, id, active); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	c, err := s.store.GetClient(ctx, userID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload client: %w", err)
	}
	return c, nil
}

// DeleteClient removes a client. Its schedules and saved reports go with it.
func (s *AccountService) DeleteClient(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteClient(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return ErrClientNotFound
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	s.logger.Info("client deleted", "user_id", userID, "client_id", id)
	return nil
}
