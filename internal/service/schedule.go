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
	"github.com/adpulse/adpulse/internal/webhook"
)

// DefaultTimezone applies to schedules created without one.
const DefaultTimezone = "America/Sao_Paulo"

// ScheduleStore persists scheduled reports.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, j *model.ScheduledJob) error
	GetSchedule(ctx context.Context, userID, id string) (*model.ScheduledJob, error)
	ListSchedules(ctx context.Context, userID string) ([]*model.ScheduledJob, error)
	UpdateSchedule(ctx context.Context, userID, id string, u repository.ScheduleUpdate) (*model.ScheduledJob, error)
	DeleteSchedule(ctx context.Context, userID, id string) error
}

// FormatLookup resolves report formats by id.
type FormatLookup interface {
	GetFormat(ctx context.Context, userID, id string) (*model.ReportFormat, error)
}

// URLValidator checks webhook targets.
type URLValidator interface {
	Validate(rawURL string) error
}

// DeliveryLister reads the webhook delivery log.
type DeliveryLister interface {
	ListDeliveries(ctx context.Context, filter webhook.DeliveryFilter) ([]*model.WebhookDelivery, error)
}

// ScheduleService manages weekly report schedules.
type ScheduleService struct {
	store      ScheduleStore
	clients    ClientStore
	formats    FormatLookup
	validator  URLValidator
	deliveries DeliveryLister
	logger     *slog.Logger
	now        func() time.Time
}

// NewScheduleService creates a new ScheduleService. deliveries may be nil.
func NewScheduleService(store ScheduleStore, clients ClientStore, formats FormatLookup, validator URLValidator, deliveries DeliveryLister, logger *slog.Logger) *ScheduleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ScheduleService{
		store:      store,
		clients:    clients,
		formats:    formats,
		validator:  validator,
		deliveries: deliveries,
		logger:     logger.With("component", "schedule_service"),
		now:        time.Now,
	}
}

// CreateScheduleInput defines input for creating a schedule.
type CreateScheduleInput struct {
	UserID         string
	ClientID       string
	ReportFormatID *string
	WebhookURL     string
	DayOfWeek      int
	RunTime        string
	Timezone       string
	BestAdScope    model.BestAdScope
	IsActive       *bool
}

// Create validates and stores a schedule.
func (s *ScheduleService) Create(ctx context.Context, input CreateScheduleInput) (*model.ScheduledJob, error) {
	now := s.now().UTC()
	input.ReportFormatID = nonEmpty(input.ReportFormatID)
	job := &model.ScheduledJob{
		ID:             uuid.NewString(),
		UserID:         input.UserID,
		ClientID:       input.ClientID,
		ReportFormatID: input.ReportFormatID,
		WebhookURL:     strings.TrimSpace(input.WebhookURL),
		DayOfWeek:      input.DayOfWeek,
		RunTime:        input.RunTime,
		Timezone:       input.Timezone,
		IsActive:       true,
		BestAdScope:    input.BestAdScope,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if job.Timezone == "" {
		job.Timezone = DefaultTimezone
	}
	if job.BestAdScope == "" {
		job.BestAdScope = model.BestAdScopeAll
	}
	if input.IsActive != nil {
		job.IsActive = *input.IsActive
	}

	if err := s.validate(ctx, job); err != nil {
		return nil, err
	}
	if _, err := s.clients.GetClient(ctx, job.UserID, job.ClientID); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to load client: %w", err)
	}

	if err := s.store.CreateSchedule(ctx, job); err != nil {
		if errors.Is(err, repository.ErrClientNotFound) {
			return nil, ErrClientNotFound
		}
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}

	s.logger.Info("schedule created",
		"schedule_id", job.ID,
		"client_id", job.ClientID,
		"day_of_week", job.DayOfWeek,
		"run_time", job.RunTime,
		"timezone", job.Timezone,
	)
	return s.Get(ctx, job.UserID, job.ID)
}

// Get returns one of the user's schedules.
func (s *ScheduleService) Get(ctx context.Context, userID, id string) (*model.ScheduledJob, error) {
	job, err := s.store.GetSchedule(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			return nil, ErrScheduleNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return job, nil
}

// List returns the user's schedules.
func (s *ScheduleService) List(ctx context.Context, userID string) ([]*model.ScheduledJob, error) {
	jobs, err := s.store.ListSchedules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return jobs, nil
}

// UpdateScheduleInput carries a partial update. Nil fields are unchanged.
type UpdateScheduleInput struct {
	ReportFormatID *string
	WebhookURL     *string
	DayOfWeek      *int
	RunTime        *string
	Timezone       *string
	IsActive       *bool
	BestAdScope    *model.BestAdScope
}

// Update validates the merged schedule before storing the change.
// last_run_at is never touched here.
func (s *ScheduleService) Update(ctx context.Context, userID, id string, input UpdateScheduleInput) (*model.ScheduledJob, error) {
	current, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	merged := *current
	input.ReportFormatID = nonEmpty(input.ReportFormatID)
	if input.ReportFormatID != nil {
		merged.ReportFormatID = input.ReportFormatID
	}
	if input.WebhookURL != nil {
		trimmed := strings.TrimSpace(*input.WebhookURL)
		input.WebhookURL = &trimmed
		merged.WebhookURL = trimmed
	}
	if input.DayOfWeek != nil {
		merged.DayOfWeek = *input.DayOfWeek
	}
	if input.RunTime != nil {
		merged.RunTime = *input.RunTime
	}
	if input.Timezone != nil {
		merged.Timezone = *input.Timezone
	}
	if input.BestAdScope != nil {
		merged.BestAdScope = *input.BestAdScope
	}
	if err := s.validate(ctx, &merged); err != nil {
		return nil, err
	}

	job, err := s.store.UpdateSchedule(ctx, userID, id, repository.ScheduleUpdate{
		ReportFormatID: input.ReportFormatID,
		WebhookURL:     input.WebhookURL,
		DayOfWeek:      input.DayOfWeek,
		RunTime:        input.RunTime,
		Timezone:       input.Timezone,
		IsActive:       input.IsActive,
		BestAdScope:    input.BestAdScope,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrScheduleNotFound):
			return nil, ErrScheduleNotFound
		case errors.Is(err, repository.ErrFormatNotFound):
			return nil, ErrFormatNotFound
		}
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	return job, nil
}

// Delete removes one of the user's schedules.
func (s *ScheduleService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteSchedule(ctx, userID, id); err != nil {
		if errors.Is(err, repository.ErrScheduleNotFound) {
			return ErrScheduleNotFound
		}
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	s.logger.Info("schedule deleted", "schedule_id", id)
	return nil
}

// Deliveries returns the newest delivery attempts for one of the user's
// schedules.
func (s *ScheduleService) Deliveries(ctx context.Context, userID, id string, limit int) ([]*model.WebhookDelivery, error) {
	if s.deliveries == nil {
		return []*model.WebhookDelivery{}, nil
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	deliveries, err := s.deliveries.ListDeliveries(ctx, webhook.DeliveryFilter{ScheduleID: id, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	return deliveries, nil
}

func (s *ScheduleService) validate(ctx context.Context, job *model.ScheduledJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	if s.validator != nil {
		if err := s.validator.Validate(job.WebhookURL); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidWebhookURL, err)
		}
	}
	if job.ReportFormatID != nil && s.formats != nil {
		if _, err := s.formats.GetFormat(ctx, job.UserID, *job.ReportFormatID); err != nil {
			if errors.Is(err, repository.ErrFormatNotFound) {
				return ErrFormatNotFound
			}
			return fmt.Errorf("failed to load report format: %w", err)
		}
	}
	return nil
}

// nonEmpty drops pointers to blank ids. A blank format id keeps the current
// format.
func nonEmpty(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}
