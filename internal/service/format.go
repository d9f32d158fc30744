package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/repository"
)

// FormatStore persists report formats.
type FormatStore interface {
	CreateFormat(ctx context.Context, f *model.ReportFormat) error
	GetFormat(ctx context.Context, userID, id string) (*model.ReportFormat, error)
	ListFormats(ctx context.Context, userID string) ([]*model.ReportFormat, error)
	UpdateFormat(ctx context.Context, f *model.ReportFormat) error
	DeleteFormat(ctx context.Context, userID, id string) error
	SeedDefaultFormats(ctx context.Context, userID string) ([]*model.ReportFormat, error)
}

// FormatService manages report formats.
type FormatService struct {
	store  FormatStore
	logger *slog.Logger
	now    func() time.Time
}

// NewFormatService creates a new FormatService.
func NewFormatService(store FormatStore, logger *slog.Logger) *FormatService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FormatService{
		store:  store,
		logger: logger.With("component", "format_service"),
		now:    time.Now,
	}
}

// CreateFormatInput defines input for creating a format.
type CreateFormatInput struct {
	UserID      string
	Name        string
	Description string
	Metrics     []model.Metric
	IsDefault   bool
}

// Create validates and stores a format.
func (s *FormatService) Create(ctx context.Context, input CreateFormatInput) (*model.ReportFormat, error) {
	now := s.now().UTC()
	f := &model.ReportFormat{
		ID:          uuid.NewString(),
		UserID:      input.UserID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Metrics:     input.Metrics,
		IsDefault:   input.IsDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if err := s.store.CreateFormat(ctx, f); err != nil {
		if errors.Is(err, repository.ErrDuplicateFormat) {
			return nil, ErrDuplicateFormat
		}
		return nil, fmt.Errorf("failed to create report format: %w", err)
	}
	return f, nil
}

// Get returns one of the user's formats.
func (s *FormatService) Get(ctx context.Context, userID, id string) (*model.ReportFormat, error) {
	f, err := s.store.GetFormat(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrFormatNotFound) {
			return nil, ErrFormatNotFound
		}
		return nil, fmt.Errorf("failed to get report format: %w", err)
	}
	return f, nil
}

// List returns the user's formats, default first.
func (s *FormatService) List(ctx context.Context, userID string) ([]*model.ReportFormat, error) {
	formats, err := s.store.ListFormats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list report formats: %w", err)
	}
	return formats, nil
}

// UpdateFormatInput defines a partial format update. Nil fields are left
// unchanged.
type UpdateFormatInput struct {
	UserID      string
	ID          string
	Name        *string
	Description *string
	Metrics     []model.Metric
	IsDefault   *bool
}

// Update applies a partial update and returns the stored format.
func (s *FormatService) Update(ctx context.Context, input UpdateFormatInput) (*model.ReportFormat, error) {
	current, err := s.Get(ctx, input.UserID, input.ID)
	if err != nil {
		return nil, err
	}

	f := *current
	if input.Name != nil {
		f.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		f.Description = strings.TrimSpace(*input.Description)
	}
	if input.Metrics != nil {
		f.Metrics = input.Metrics
	}
	if input.IsDefault != nil {
		f.IsDefault = *input.IsDefault
	}
	f.UpdatedAt = s.now().UTC()
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	if err := s.store.UpdateFormat(ctx, &f); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateFormat):
			return nil, ErrDuplicateFormat
		case errors.Is(err, repository.ErrFormatNotFound):
			return nil, ErrFormatNotFound
		}
		return nil, fmt.Errorf("failed to update report format: %w", err)
	}
	return &f, nil
}

// Delete removes one of the user's formats.
func (s *FormatService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteFormat(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrFormatNotFound) {
			return ErrFormatNotFound
		}
		return fmt.Errorf("failed to delete report format: %w", err)
	}
	return nil
}

// SeedDefaults creates the built-in formats the user is missing.
func (s *FormatService) SeedDefaults(ctx context.Context, userID string) ([]*model.ReportFormat, error) {
	created, err := s.store.SeedDefaultFormats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to seed report formats: %w", err)
	}
	s.logger.Info("default report formats seeded", "user_id", userID, "created", len(created))
	return created, nil
}
