package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/adpulse/adpulse/internal/model"
)

// scheduleSelect joins each schedule with its client and effective report
// format. A schedule without a format inherits the client's.
const scheduleSelect = `
	SELECT s.id, s.user_id, s.client_id, s.report_format_id, s.webhook_url,
	       s.day_of_week, s.run_time, s.timezone, s.is_active, s.best_ad_scope,
	       s.last_run_at, s.created_at, s.updated_at,
	       c.name, c.account_id, c.report_format_id, c.is_active,
	       f.id, f.name, f.metrics
	FROM scheduled_reports s
	JOIN clients c ON c.id = s.client_id
	LEFT JOIN report_formats f ON f.id = COALESCE(s.report_format_id, c.report_format_id)`

// ScheduleUpdate carries the fields a PATCH may change. Nil fields are kept.
type ScheduleUpdate struct {
	ReportFormatID *string
	WebhookURL     *string
	DayOfWeek      *int
	RunTime        *string
	Timezone       *string
	IsActive       *bool
	BestAdScope    *model.BestAdScope
}

// CreateSchedule inserts a scheduled report.
func (r *Repository) CreateSchedule(ctx context.Context, j *model.ScheduledJob) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO scheduled_reports (
			id, user_id, client_id, report_format_id, webhook_url, day_of_week,
			run_time, timezone, is_active, best_ad_scope, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		j.ID, j.UserID, j.ClientID, j.ReportFormatID, j.WebhookURL, j.DayOfWeek,
		j.RunTime, j.Timezone, j.IsActive, string(j.BestAdScope), j.CreatedAt, j.UpdatedAt,
	)
	if isForeignKeyViolation(err) {
		return ErrClientNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}
	return nil
}

// GetSchedule returns one of the user's schedules with client and format.
func (r *Repository) GetSchedule(ctx context.Context, userID, id string) (*model.ScheduledJob, error) {
	row := r.pool.QueryRow(ctx, scheduleSelect+` WHERE s.id = $1 AND s.user_id = $2`, id, userID)
	j, err := scanSchedule(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrScheduleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}
	return j, nil
}

// ListSchedules returns the user's schedules, newest first.
func (r *Repository) ListSchedules(ctx context.Context, userID string) ([]*model.ScheduledJob, error) {
	rows, err := r.pool.Query(ctx, scheduleSelect+` WHERE s.user_id = $1 ORDER BY s.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	return collectSchedules(rows)
}

// ListActiveSchedules returns every active schedule whose client is active,
// across all users. last_run_at is read fresh on every call.
func (r *Repository) ListActiveSchedules(ctx context.Context) ([]*model.ScheduledJob, error) {
	rows, err := r.pool.Query(ctx, scheduleSelect+`
		WHERE s.is_active AND c.is_active
		ORDER BY s.day_of_week, s.run_time, s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active schedules: %w", err)
	}
	return collectSchedules(rows)
}

// UpdateSchedule applies a partial update and returns the stored schedule.
func (r *Repository) UpdateSchedule(ctx context.Context, userID, id string, u ScheduleUpdate) (*model.ScheduledJob, error) {
	var scope *string
	if u.BestAdScope != nil {
		s := string(*u.BestAdScope)
		scope = &s
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE scheduled_reports SET
			report_format_id = COALESCE($3, report_format_id),
			webhook_url      = COALESCE($4, webhook_url),
			day_of_week      = COALESCE($5, day_of_week),
			run_time         = COALESCE($6, run_time),
			timezone         = COALESCE($7, timezone),
			is_active        = COALESCE($8, is_active),
			best_ad_scope    = COALESCE($9, best_ad_scope),
			updated_at       = $10
		WHERE id = $1 AND user_id = $2`,
		id, userID, u.ReportFormatID, u.WebhookURL, u.DayOfWeek, u.RunTime,
		u.Timezone, u.IsActive, scope, time.Now().UTC(),
	)
	if isForeignKeyViolation(err) {
		return nil, ErrFormatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrScheduleNotFound
	}
	return r.GetSchedule(ctx, userID, id)
}

// DeleteSchedule removes one of the user's schedules.
func (r *Repository) DeleteSchedule(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM scheduled_reports WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

// MarkScheduleRun records that a schedule was processed at the given time.
// This is the only column the scheduler writes.
func (r *Repository) MarkScheduleRun(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE scheduled_reports SET last_run_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark schedule run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrScheduleNotFound
	}
	return nil
}

func collectSchedules(rows pgx.Rows) ([]*model.ScheduledJob, error) {
	defer rows.Close()

	var jobs []*model.ScheduledJob
	for rows.Next() {
		j, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating schedules: %w", err)
	}
	return jobs, nil
}

func scanSchedule(row pgx.Row) (*model.ScheduledJob, error) {
	var (
		j          model.ScheduledJob
		c          model.Client
		scope      string
		formatID   *string
		formatName *string
		metrics    []byte
	)
	if err := row.Scan(
		&j.ID,
		&j.UserID,
		&j.ClientID,
		&j.ReportFormatID,
		&j.WebhookURL,
		&j.DayOfWeek,
		&j.RunTime,
		&j.Timezone,
		&j.IsActive,
		&scope,
		&j.LastRunAt,
		&j.CreatedAt,
		&j.UpdatedAt,
		&c.Name,
		&c.AccountID,
		&c.ReportFormatID,
		&c.IsActive,
		&formatID,
		&formatName,
		&metrics,
	); err != nil {
		return nil, err
	}

	j.BestAdScope = model.BestAdScope(scope)
	c.ID = j.ClientID
	c.UserID = j.UserID
	j.Client = &c

	if formatID != nil {
		f := &model.ReportFormat{ID: *formatID, UserID: j.UserID}
		if formatName != nil {
			f.Name = *formatName
		}
		if err := decodeMetrics(metrics, &f.Metrics); err != nil {
			return nil, err
		}
		j.Format = f
	}
	return &j, nil
}
